package interfaces

import (
	"context"
	"time"
)

// DataService defines the interface for underlying market data
type DataService interface {
	GetHistoricalBars(ctx context.Context, symbol string, start, end time.Time) ([]*Bar, error)
	GetLatestTrade(ctx context.Context, symbol string) (*Trade, error)
}

type Bar struct {
	Symbol    string
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
	VWAP      float64
}

type Trade struct {
	Symbol    string
	Price     float64
	Size      int64
	Timestamp time.Time
}

// Closes extracts closing prices in bar order
func Closes(bars []*Bar) []float64 {
	out := make([]float64, 0, len(bars))
	for _, b := range bars {
		if b == nil {
			continue
		}
		out = append(out, b.Close)
	}
	return out
}
