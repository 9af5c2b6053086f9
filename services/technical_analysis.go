package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/sirupsen/logrus"

	"wheel-screener/interfaces"
)

const (
	// HVWindow is the number of daily log returns used for historical volatility
	HVWindow = 20
	// TradingDaysPerYear annualizes daily volatility
	TradingDaysPerYear = 252
	// DefaultHVFallback is used when there is not enough price history
	DefaultHVFallback = 0.30
)

// ErrInsufficientHistory means fewer than HVWindow returns were available
var ErrInsufficientHistory = errors.New("insufficient price history")

// CalculateLogReturns returns ln(close[i]/close[i-1]), skipping non-positive closes
func CalculateLogReturns(closes []float64) []float64 {
	returns := make([]float64, 0, len(closes))
	for i := 1; i < len(closes); i++ {
		prev, cur := closes[i-1], closes[i]
		if prev <= 0 || cur <= 0 || math.IsNaN(prev) || math.IsNaN(cur) {
			continue
		}
		returns = append(returns, math.Log(cur/prev))
	}
	return returns
}

// CalculateHV20 annualizes the sample standard deviation of the trailing 20
// log returns
func CalculateHV20(closes []float64) (float64, error) {
	returns := CalculateLogReturns(closes)
	if len(returns) < HVWindow {
		return 0, fmt.Errorf("%w: %d returns, need %d", ErrInsufficientHistory, len(returns), HVWindow)
	}

	sd, err := stats.StandardDeviationSample(returns[len(returns)-HVWindow:])
	if err != nil {
		return 0, fmt.Errorf("failed to compute deviation: %w", err)
	}

	hv := sd * math.Sqrt(TradingDaysPerYear)
	if math.IsNaN(hv) || math.IsInf(hv, 0) {
		return 0, fmt.Errorf("%w: non-finite volatility", ErrInsufficientHistory)
	}
	return hv, nil
}

// EstimateHV returns HV20 or the fallback when history is short
func EstimateHV(closes []float64, fallback float64) (hv float64, fallbackUsed bool) {
	hv, err := CalculateHV20(closes)
	if err != nil {
		return fallback, true
	}
	return hv, false
}

// UnderlyingAnalysis is the price context for one ticker
type UnderlyingAnalysis struct {
	Symbol       string    `json:"symbol"`
	CurrentPrice float64   `json:"current_price"`
	HV20         float64   `json:"hv_20"`
	FallbackUsed bool      `json:"hv_fallback_used"`
	Closes       []float64 `json:"-"`
}

// TechnicalAnalysisService derives the underlying price and volatility from daily bars
type TechnicalAnalysisService struct {
	dataService interfaces.DataService
	hvFallback  float64
	logger      *logrus.Logger
}

// NewTechnicalAnalysisService creates a new technical analysis service
func NewTechnicalAnalysisService(dataService interfaces.DataService, hvFallback float64) *TechnicalAnalysisService {
	if hvFallback <= 0 {
		hvFallback = DefaultHVFallback
	}
	return &TechnicalAnalysisService{
		dataService: dataService,
		hvFallback:  hvFallback,
		logger:      newLogger(),
	}
}

// Analyze loads about two months of daily bars and computes price and HV20
func (tas *TechnicalAnalysisService) Analyze(ctx context.Context, symbol string) (*UnderlyingAnalysis, error) {
	end := time.Now()
	start := end.AddDate(0, 0, -60)

	bars, err := tas.dataService.GetHistoricalBars(ctx, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to get bars for %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("no bars data available for %s", symbol)
	}

	closes := interfaces.Closes(bars)
	price := closes[len(closes)-1]

	// prefer the latest trade when the feed has one
	if trade, err := tas.dataService.GetLatestTrade(ctx, symbol); err == nil && trade != nil && trade.Price > 0 {
		price = trade.Price
	}

	hv, fallbackUsed := EstimateHV(closes, tas.hvFallback)
	if fallbackUsed {
		tas.logger.WithFields(logrus.Fields{
			"symbol": symbol,
			"bars":   len(bars),
		}).Warn("Not enough history for HV20, using fallback")
	}

	return &UnderlyingAnalysis{
		Symbol:       symbol,
		CurrentPrice: price,
		HV20:         hv,
		FallbackUsed: fallbackUsed,
		Closes:       closes,
	}, nil
}
