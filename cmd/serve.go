package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"wheel-screener/controllers"
	"wheel-screener/services"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the screener HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}

		addr, err := cmd.Flags().GetString("addr")
		if err != nil {
			return fmt.Errorf("error getting addr: %w", err)
		}
		if addr == "" {
			addr = a.cfg.ServerAddr
		}

		srv := &http.Server{
			Addr:    addr,
			Handler: NewRouter(a.screening),
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		go func() {
			log.WithField("addr", addr).Info("Starting wheel screener API")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("Server stopped")
				stop()
			}
		}()

		<-ctx.Done()
		log.Info("Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (defaults to SERVER_ADDR)")
}

// NewRouter builds the gin engine with every screener route
func NewRouter(screening *services.ScreeningService) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	controllers.NewScreenerController(screening).RegisterRoutes(r)
	return r
}
