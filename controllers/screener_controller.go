package controllers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"wheel-screener/models"
	"wheel-screener/services"
)

// ScreenerController handles screening, comparison and payoff requests
type ScreenerController struct {
	screeningService *services.ScreeningService
	timeout          time.Duration
}

// NewScreenerController creates a new screener controller
func NewScreenerController(screeningService *services.ScreeningService) *ScreenerController {
	return &ScreenerController{
		screeningService: screeningService,
		timeout:          60 * time.Second,
	}
}

// RegisterRoutes mounts the screener endpoints on r
func (sc *ScreenerController) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", sc.HandleHealth)

	api := r.Group("/api/v1")
	{
		api.POST("/screen", sc.HandleScreen)
		api.POST("/compare", sc.HandleCompare)
		api.POST("/payoff", sc.HandlePayoff)
		api.GET("/sources", sc.HandleGetSources)
		api.DELETE("/cache", sc.HandleFlushCache)
		api.GET("/runs/:id/candidates/:index", sc.HandleGetCandidate)
	}
}

// HandleScreen runs a screening pass
// POST /api/v1/screen
func (sc *ScreenerController) HandleScreen(c *gin.Context) {
	var req services.ScreenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), sc.timeout)
	defer cancel()

	resp, err := sc.screeningService.Run(ctx, req)
	if err != nil {
		c.JSON(statusFor(err), gin.H{
			"error":   "Failed to run screen",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// CompareRequest selects candidates of a previous run by index
type CompareRequest struct {
	RunID   string `json:"run_id" binding:"required"`
	Indices []int  `json:"indices" binding:"required"`
}

// HandleCompare builds a side-by-side comparison
// POST /api/v1/compare
func (sc *ScreenerController) HandleCompare(c *gin.Context) {
	var req CompareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	comparison, err := sc.screeningService.Compare(req.RunID, req.Indices)
	if err != nil {
		c.JSON(statusFor(err), gin.H{
			"error":   "Failed to compare candidates",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, comparison)
}

// HandleGetCandidate returns the drill-down for one candidate
// GET /api/v1/runs/:id/candidates/:index
func (sc *ScreenerController) HandleGetCandidate(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid candidate index",
			"details": err.Error(),
		})
		return
	}

	detail, err := sc.screeningService.Detail(c.Param("id"), index)
	if err != nil {
		c.JSON(statusFor(err), gin.H{
			"error":   "Failed to get candidate",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, detail)
}

// PayoffRequest describes a short put for the payoff curve
type PayoffRequest struct {
	Strike  float64 `json:"strike" binding:"required,gt=0"`
	Premium float64 `json:"premium" binding:"required,gt=0"`
	Spot    float64 `json:"spot" binding:"required,gt=0"`
	Points  int     `json:"points" binding:"omitempty,min=2,max=1000"`
}

// HandlePayoff samples the P/L at expiration
// POST /api/v1/payoff
func (sc *ScreenerController) HandlePayoff(c *gin.Context) {
	var req PayoffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"strike":    req.Strike,
		"premium":   req.Premium,
		"breakeven": req.Strike - req.Premium,
		"points":    services.PayoffCurve(req.Strike, req.Premium, req.Spot, req.Points),
	})
}

// HandleGetSources lists the data source modes and whether they are configured
// GET /api/v1/sources
func (sc *ScreenerController) HandleGetSources(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"sources":  sc.screeningService.Sources(),
		"criteria": sc.screeningService.DefaultCriteria(),
	})
}

// HandleFlushCache drops cached quotes
// DELETE /api/v1/cache
func (sc *ScreenerController) HandleFlushCache(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"flushed": sc.screeningService.FlushQuoteCache(),
	})
}

// HandleHealth reports liveness
// GET /health
func (sc *ScreenerController) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidCriteria),
		errors.Is(err, services.ErrUnknownSource),
		errors.Is(err, services.ErrInvalidSelection):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
