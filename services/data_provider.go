package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"wheel-screener/interfaces"
)

// SourceMode selects which backing sources a fetch may use
type SourceMode string

const (
	SourceSynthetic  SourceMode = "synthetic"
	SourceLiveQuotes SourceMode = "liveQuotes"
	SourceBrokerFeed SourceMode = "brokerFeed"
)

// ErrUnknownSource is returned for a source mode that is not supported
var ErrUnknownSource = errors.New("unknown data source")

// ParseSourceMode accepts mode names case-insensitively
func ParseSourceMode(s string) (SourceMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "synthetic", "mock":
		return SourceSynthetic, nil
	case "livequotes", "live", "polygon":
		return SourceLiveQuotes, nil
	case "brokerfeed", "broker", "alpaca":
		return SourceBrokerFeed, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSource, s)
}

// FetchErrorKind classifies why a ticker produced no snapshot
type FetchErrorKind string

const (
	FetchSourceUnavailable FetchErrorKind = "source_unavailable"
	FetchEmptyChain        FetchErrorKind = "empty_chain"
	FetchInvalidUnderlying FetchErrorKind = "invalid_underlying"
	FetchNotConfigured     FetchErrorKind = "not_configured"
)

// FetchError is the per-ticker failure reported by the data provider
type FetchError struct {
	Ticker string
	Source string
	Kind   FetchErrorKind
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s via %s: %s: %v", e.Ticker, e.Source, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// TickerResult is the outcome for one requested ticker
type TickerResult struct {
	Ticker   string                         `json:"ticker"`
	Snapshot *interfaces.UnderlyingSnapshot `json:"-"`
	Source   string                         `json:"source,omitempty"`
	Err      error                          `json:"-"`
	Error    string                         `json:"error,omitempty"`
}

// Diagnostic is a user-facing note about one ticker and source
type Diagnostic struct {
	Ticker  string `json:"ticker"`
	Source  string `json:"source,omitempty"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// FetchResult holds snapshots in request order plus everything that went wrong
type FetchResult struct {
	Snapshots   []*interfaces.UnderlyingSnapshot
	Results     []TickerResult
	Diagnostics []Diagnostic
}

// DiagnosticHVFallback marks a snapshot whose HV20 is the fallback constant
const DiagnosticHVFallback = "insufficient_history"

// DataProvider hides the backing sources behind one fetch call
type DataProvider struct {
	synthetic  interfaces.OptionChainSource
	liveQuotes interfaces.OptionChainSource
	broker     interfaces.OptionChainSource
	hvFallback float64
	now        func() time.Time
	logger     *logrus.Logger
}

// NewDataProvider creates a provider. Nil sources are reported as not configured.
func NewDataProvider(synthetic, liveQuotes, broker interfaces.OptionChainSource, hvFallback float64) *DataProvider {
	if hvFallback <= 0 {
		hvFallback = DefaultHVFallback
	}
	return &DataProvider{
		synthetic:  synthetic,
		liveQuotes: liveQuotes,
		broker:     broker,
		hvFallback: hvFallback,
		now:        time.Now,
		logger:     newLogger(),
	}
}

type strategy struct {
	name   string
	source interfaces.OptionChainSource
}

// strategies is the explicit per-mode fallback order
func (p *DataProvider) strategies(mode SourceMode) []strategy {
	switch mode {
	case SourceSynthetic:
		return []strategy{{syntheticSourceName, p.synthetic}}
	case SourceLiveQuotes:
		return []strategy{{polygonSourceName, p.liveQuotes}}
	case SourceBrokerFeed:
		return []strategy{{alpacaSourceName, p.broker}, {polygonSourceName, p.liveQuotes}}
	}
	return nil
}

// SourceStatus describes whether a mode can be served
type SourceStatus struct {
	Mode       SourceMode `json:"mode"`
	Sources    []string   `json:"sources"`
	Configured bool       `json:"configured"`
}

// Sources lists every mode with its fallback order and configuration state
func (p *DataProvider) Sources() []SourceStatus {
	modes := []SourceMode{SourceSynthetic, SourceLiveQuotes, SourceBrokerFeed}
	out := make([]SourceStatus, 0, len(modes))
	for _, mode := range modes {
		status := SourceStatus{Mode: mode}
		for _, s := range p.strategies(mode) {
			status.Sources = append(status.Sources, s.name)
			if s.source != nil {
				status.Configured = true
			}
		}
		out = append(out, status)
	}
	return out
}

// FlushCaches empties every cached source and returns how many were flushed
func (p *DataProvider) FlushCaches() int {
	flushed := 0
	for _, src := range []interfaces.OptionChainSource{p.synthetic, p.liveQuotes, p.broker} {
		if c, ok := src.(*CachedChainSource); ok && c != nil {
			c.Flush()
			flushed++
			p.logger.WithField("source", c.Name()).Info("Quote cache flushed")
		}
	}
	return flushed
}

// Fetch builds a snapshot per ticker, trying each strategy of mode once in
// order. Tickers that fail every strategy are skipped and reported.
func (p *DataProvider) Fetch(ctx context.Context, tickers []string, mode SourceMode) (*FetchResult, error) {
	strategies := p.strategies(mode)
	if strategies == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, mode)
	}

	result := &FetchResult{
		Snapshots:   make([]*interfaces.UnderlyingSnapshot, 0, len(tickers)),
		Results:     make([]TickerResult, 0, len(tickers)),
		Diagnostics: make([]Diagnostic, 0),
	}

	seen := make(map[string]bool, len(tickers))
	for _, raw := range tickers {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		ticker := strings.ToUpper(strings.TrimSpace(raw))
		if ticker == "" || seen[ticker] {
			continue
		}
		seen[ticker] = true

		tr := p.fetchTicker(ctx, ticker, strategies, result)
		result.Results = append(result.Results, tr)
		if tr.Snapshot == nil {
			continue
		}

		result.Snapshots = append(result.Snapshots, tr.Snapshot)
		if tr.Snapshot.HVFallbackUsed {
			result.Diagnostics = append(result.Diagnostics, Diagnostic{
				Ticker:  ticker,
				Source:  tr.Source,
				Kind:    DiagnosticHVFallback,
				Message: fmt.Sprintf("not enough price history, HV20 set to %.2f", tr.Snapshot.HistoricalVolatility20d),
			})
		}
	}

	p.logger.WithFields(logrus.Fields{
		"mode":      mode,
		"requested": len(tickers),
		"snapshots": len(result.Snapshots),
	}).Info("Fetch complete")

	return result, nil
}

func (p *DataProvider) fetchTicker(ctx context.Context, ticker string, strategies []strategy, result *FetchResult) TickerResult {
	var lastErr error
	for _, s := range strategies {
		if s.source == nil {
			fe := &FetchError{Ticker: ticker, Source: s.name, Kind: FetchNotConfigured, Err: fmt.Errorf("no credentials configured")}
			result.Diagnostics = append(result.Diagnostics, diagnosticFor(fe))
			lastErr = fe
			continue
		}

		snapshot, err := p.fetchFrom(ctx, ticker, s)
		if err != nil {
			p.logger.WithError(err).WithFields(logrus.Fields{
				"symbol": ticker,
				"source": s.name,
			}).Warn("Failed to fetch option chain")
			result.Diagnostics = append(result.Diagnostics, diagnosticFor(err))
			lastErr = err
			continue
		}

		return TickerResult{Ticker: ticker, Snapshot: snapshot, Source: s.name}
	}
	tr := TickerResult{Ticker: ticker, Err: lastErr}
	if lastErr != nil {
		tr.Error = lastErr.Error()
	}
	return tr
}

func (p *DataProvider) fetchFrom(ctx context.Context, ticker string, s strategy) (*interfaces.UnderlyingSnapshot, error) {
	chain, err := s.source.FetchChain(ctx, ticker)
	if err != nil {
		return nil, &FetchError{Ticker: ticker, Source: s.name, Kind: FetchSourceUnavailable, Err: err}
	}
	if chain == nil {
		return nil, &FetchError{Ticker: ticker, Source: s.name, Kind: FetchEmptyChain, Err: fmt.Errorf("source returned no chain")}
	}
	// cached sources share the chain between requests, fill a copy
	filled := *chain
	chain = &filled
	if chain.Ticker == "" {
		chain.Ticker = ticker
	}
	if chain.Source == "" {
		chain.Source = s.name
	}
	if chain.Provenance == "" {
		chain.Provenance = s.source.Provenance()
	}

	snapshot, err := NormalizeChain(chain, p.now(), p.hvFallback)
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			fe.Ticker, fe.Source = ticker, s.name
			return nil, fe
		}
		return nil, &FetchError{Ticker: ticker, Source: s.name, Kind: FetchEmptyChain, Err: err}
	}
	return snapshot, nil
}

func diagnosticFor(err error) Diagnostic {
	var fe *FetchError
	if errors.As(err, &fe) {
		msg := "unknown error"
		if fe.Err != nil {
			msg = fe.Err.Error()
		}
		return Diagnostic{Ticker: fe.Ticker, Source: fe.Source, Kind: string(fe.Kind), Message: msg}
	}
	return Diagnostic{Kind: string(FetchSourceUnavailable), Message: err.Error()}
}
