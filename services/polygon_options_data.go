package services

import (
	"context"
	"fmt"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"
	"github.com/sirupsen/logrus"

	"wheel-screener/interfaces"
)

const polygonSourceName = "polygon"

// PolygonOptionsDataService reads daily aggregates and option chain snapshots from Polygon
type PolygonOptionsDataService struct {
	client     *polygon.Client
	maxDTE     int
	hvFallback float64
	logger     *logrus.Logger
}

// NewPolygonOptionsDataService creates a new Polygon options data service
func NewPolygonOptionsDataService(apiKey string) *PolygonOptionsDataService {
	return &PolygonOptionsDataService{
		client:     polygon.New(apiKey),
		maxDTE:     60,
		hvFallback: DefaultHVFallback,
		logger:     newLogger(),
	}
}

func (s *PolygonOptionsDataService) Name() string { return polygonSourceName }

func (s *PolygonOptionsDataService) Provenance() interfaces.Provenance {
	return interfaces.ProvenanceLiveQuotes
}

// GetHistoricalBars returns adjusted daily aggregates in ascending order
func (s *PolygonOptionsDataService) GetHistoricalBars(ctx context.Context, symbol string, start, end time.Time) ([]*interfaces.Bar, error) {
	params := models.ListAggsParams{
		Ticker:     symbol,
		Multiplier: 1,
		Timespan:   models.Day,
		From:       models.Millis(start),
		To:         models.Millis(end),
	}.WithOrder(models.Asc).WithAdjusted(true)

	iter := s.client.ListAggs(ctx, params)

	var bars []*interfaces.Bar
	for iter.Next() {
		agg := iter.Item()
		bars = append(bars, &interfaces.Bar{
			Symbol:    symbol,
			Timestamp: time.Time(agg.Timestamp),
			Open:      agg.Open,
			High:      agg.High,
			Low:       agg.Low,
			Close:     agg.Close,
			Volume:    int64(agg.Volume),
			VWAP:      agg.VWAP,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list aggregates: %w", err)
	}
	return bars, nil
}

// GetLatestTrade uses the last daily close; the snapshot endpoint carries the live price
func (s *PolygonOptionsDataService) GetLatestTrade(ctx context.Context, symbol string) (*interfaces.Trade, error) {
	end := time.Now()
	bars, err := s.GetHistoricalBars(ctx, symbol, end.AddDate(0, 0, -7), end)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("no recent bars for %s", symbol)
	}
	last := bars[len(bars)-1]
	return &interfaces.Trade{
		Symbol:    symbol,
		Price:     last.Close,
		Timestamp: last.Timestamp,
	}, nil
}

// FetchChain loads daily closes and the put side of the chain snapshot
func (s *PolygonOptionsDataService) FetchChain(ctx context.Context, ticker string) (*interfaces.RawChain, error) {
	analysis, err := NewTechnicalAnalysisService(s, s.hvFallback).Analyze(ctx, ticker)
	if err != nil {
		return nil, err
	}

	horizon := time.Now().AddDate(0, 0, s.maxDTE)
	price := analysis.CurrentPrice

	iter := s.client.ListOptionsChainSnapshot(ctx, &models.ListOptionsChainParams{
		UnderlyingAsset: ticker,
	})

	quotes := make([]interfaces.RawQuote, 0)
	seen := 0
	for iter.Next() {
		snap := iter.Item()
		seen++
		if snap.Details.ContractType != "put" {
			continue
		}
		expiration := time.Time(snap.Details.ExpirationDate)
		if expiration.After(horizon) {
			continue
		}
		if snap.UnderlyingAsset.Price > 0 {
			price = snap.UnderlyingAsset.Price
		}
		quotes = append(quotes, polygonQuote(snap, expiration))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list option chain: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"symbol":    ticker,
		"contracts": seen,
		"puts":      len(quotes),
	}).Debug("Fetched Polygon option chain")

	return &interfaces.RawChain{
		Ticker:          ticker,
		Source:          polygonSourceName,
		Provenance:      interfaces.ProvenanceLiveQuotes,
		UnderlyingPrice: price,
		Closes:          analysis.Closes,
		Quotes:          quotes,
	}, nil
}

func polygonQuote(snap models.OptionContractSnapshot, expiration time.Time) interfaces.RawQuote {
	q := interfaces.RawQuote{
		Symbol:       snap.Details.Ticker,
		Expiration:   expiration,
		Strike:       snap.Details.StrikePrice,
		Bid:          floatPtr(snap.LastQuote.Bid),
		Ask:          floatPtr(snap.LastQuote.Ask),
		Volume:       int64Ptr(int64(snap.Day.Volume)),
		OpenInterest: int64Ptr(int64(snap.OpenInterest)),
	}
	if snap.Day.Close > 0 {
		q.Last = floatPtr(snap.Day.Close)
	}
	if snap.ImpliedVolatility > 0 {
		q.ImpliedVolatility = floatPtr(snap.ImpliedVolatility)
	}
	// an all-zero greeks block means the provider did not compute them
	if snap.Greeks.Delta != 0 || snap.Greeks.Gamma != 0 || snap.Greeks.Theta != 0 {
		q.Delta = floatPtr(snap.Greeks.Delta)
		q.Gamma = floatPtr(snap.Greeks.Gamma)
		q.Theta = floatPtr(snap.Greeks.Theta)
	}
	return q
}
