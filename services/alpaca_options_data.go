package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/civil"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/sirupsen/logrus"

	"wheel-screener/interfaces"
)

const alpacaSourceName = "alpaca"

// AlpacaOptionsDataService reads bars, trades and put chains from the Alpaca market data API
type AlpacaOptionsDataService struct {
	client     *marketdata.Client
	maxDTE     int
	hvFallback float64
	logger     *logrus.Logger
}

// NewAlpacaOptionsDataService creates a new Alpaca options data service.
// An empty baseURL uses the SDK default.
func NewAlpacaOptionsDataService(apiKey, secretKey, baseURL string) *AlpacaOptionsDataService {
	client := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: secretKey,
		BaseURL:   baseURL,
	})

	return &AlpacaOptionsDataService{
		client:     client,
		maxDTE:     60,
		hvFallback: DefaultHVFallback,
		logger:     newLogger(),
	}
}

func (s *AlpacaOptionsDataService) Name() string { return alpacaSourceName }

func (s *AlpacaOptionsDataService) Provenance() interfaces.Provenance {
	return interfaces.ProvenanceBrokerFeed
}

// GetHistoricalBars returns daily bars between start and end
func (s *AlpacaOptionsDataService) GetHistoricalBars(ctx context.Context, symbol string, start, end time.Time) ([]*interfaces.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bars, err := s.client.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame:  marketdata.OneDay,
		Adjustment: marketdata.All,
		Start:      start,
		End:        end,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get bars: %w", err)
	}

	result := make([]*interfaces.Bar, len(bars))
	for i, bar := range bars {
		result[i] = &interfaces.Bar{
			Symbol:    symbol,
			Timestamp: bar.Timestamp,
			Open:      bar.Open,
			High:      bar.High,
			Low:       bar.Low,
			Close:     bar.Close,
			Volume:    int64(bar.Volume),
			VWAP:      bar.VWAP,
		}
	}
	return result, nil
}

// GetLatestTrade returns the most recent trade for the underlying
func (s *AlpacaOptionsDataService) GetLatestTrade(ctx context.Context, symbol string) (*interfaces.Trade, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	trade, err := s.client.GetLatestTrade(symbol, marketdata.GetLatestTradeRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to get latest trade: %w", err)
	}
	if trade == nil {
		return nil, fmt.Errorf("no trade for %s", symbol)
	}

	return &interfaces.Trade{
		Symbol:    symbol,
		Price:     trade.Price,
		Size:      int64(trade.Size),
		Timestamp: trade.Timestamp,
	}, nil
}

// FetchChain loads the underlying context and the put side of the option chain
func (s *AlpacaOptionsDataService) FetchChain(ctx context.Context, ticker string) (*interfaces.RawChain, error) {
	analysis, err := NewTechnicalAnalysisService(s, s.hvFallback).Analyze(ctx, ticker)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	price := analysis.CurrentPrice
	snapshots, err := s.client.GetOptionChain(ticker, marketdata.GetOptionChainRequest{
		StrikePriceGte:    price * 0.7,
		StrikePriceLte:    price * 1.05,
		ExpirationDateLte: civil.DateOf(time.Now().AddDate(0, 0, s.maxDTE)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get option chain: %w", err)
	}

	symbols := make([]string, 0, len(snapshots))
	for symbol := range snapshots {
		symbols = append(symbols, symbol)
	}
	// map order is random; keep the chain stable for the screener
	sort.Strings(symbols)

	quotes := make([]interfaces.RawQuote, 0, len(symbols))
	for _, symbol := range symbols {
		parsed, err := ParseOptionSymbol(symbol)
		if err != nil {
			s.logger.WithError(err).WithField("symbol", symbol).Debug("Skipping unparseable contract")
			continue
		}
		if !parsed.Put {
			continue
		}
		quotes = append(quotes, alpacaQuote(symbol, parsed, snapshots[symbol]))
	}

	s.logger.WithFields(logrus.Fields{
		"symbol":    ticker,
		"contracts": len(snapshots),
		"puts":      len(quotes),
	}).Debug("Fetched Alpaca option chain")

	return &interfaces.RawChain{
		Ticker:          ticker,
		Source:          alpacaSourceName,
		Provenance:      interfaces.ProvenanceBrokerFeed,
		UnderlyingPrice: price,
		Closes:          analysis.Closes,
		Quotes:          quotes,
	}, nil
}

func alpacaQuote(symbol string, parsed OptionSymbol, snap marketdata.OptionSnapshot) interfaces.RawQuote {
	q := interfaces.RawQuote{
		Symbol:     symbol,
		Expiration: parsed.Expiration,
		Strike:     parsed.Strike,
	}
	if snap.LatestQuote != nil {
		q.Bid = floatPtr(snap.LatestQuote.BidPrice)
		q.Ask = floatPtr(snap.LatestQuote.AskPrice)
	}
	if snap.LatestTrade != nil {
		q.Last = floatPtr(snap.LatestTrade.Price)
	}
	if snap.ImpliedVolatility > 0 {
		q.ImpliedVolatility = floatPtr(snap.ImpliedVolatility)
	}
	if snap.Greeks != nil {
		q.Delta = floatPtr(snap.Greeks.Delta)
		q.Gamma = floatPtr(snap.Greeks.Gamma)
		q.Theta = floatPtr(snap.Greeks.Theta)
	}
	return q
}

func floatPtr(v float64) *float64 { return &v }

func int64Ptr(v int64) *int64 { return &v }
