package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wheel-screener/interfaces"
)

type fakeChainSource struct {
	name       string
	provenance interfaces.Provenance
	chains     map[string]*interfaces.RawChain
	err        error
	calls      []string
}

func (f *fakeChainSource) Name() string                       { return f.name }
func (f *fakeChainSource) Provenance() interfaces.Provenance { return f.provenance }

func (f *fakeChainSource) FetchChain(ctx context.Context, ticker string) (*interfaces.RawChain, error) {
	f.calls = append(f.calls, ticker)
	if f.err != nil {
		return nil, f.err
	}
	chain, ok := f.chains[ticker]
	if !ok {
		return nil, errors.New("unknown ticker")
	}
	return chain, nil
}

func newFakeSource(name string, provenance interfaces.Provenance, tickers ...string) *fakeChainSource {
	src := &fakeChainSource{name: name, provenance: provenance, chains: map[string]*interfaces.RawChain{}}
	for _, ticker := range tickers {
		chain := testChain(fullQuote(95))
		chain.Ticker = ticker
		chain.Source = name
		chain.Provenance = provenance
		src.chains[ticker] = chain
	}
	return src
}

func newTestProvider(synthetic, live, broker interfaces.OptionChainSource) *DataProvider {
	p := NewDataProvider(synthetic, live, broker, 0.3)
	p.now = func() time.Time { return testAsOf }
	return p
}

func TestParseSourceMode(t *testing.T) {
	for in, want := range map[string]SourceMode{
		"synthetic":  SourceSynthetic,
		"liveQuotes": SourceLiveQuotes,
		"LIVEQUOTES": SourceLiveQuotes,
		"brokerFeed": SourceBrokerFeed,
		" broker ":   SourceBrokerFeed,
	} {
		got, err := ParseSourceMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseSourceMode("yahoo")
	assert.ErrorIs(t, err, ErrUnknownSource)
}

func TestFetch_KeepsRequestOrder(t *testing.T) {
	src := newFakeSource("synthetic", interfaces.ProvenanceSynthetic, "MSFT", "AAPL", "TSLA")
	p := newTestProvider(src, nil, nil)

	result, err := p.Fetch(context.Background(), []string{"tsla", "MSFT", "AAPL", "TSLA"}, SourceSynthetic)
	require.NoError(t, err)

	require.Len(t, result.Snapshots, 3)
	assert.Equal(t, "TSLA", result.Snapshots[0].Ticker)
	assert.Equal(t, "MSFT", result.Snapshots[1].Ticker)
	assert.Equal(t, "AAPL", result.Snapshots[2].Ticker)
	assert.Equal(t, []string{"TSLA", "MSFT", "AAPL"}, src.calls)
}

func TestFetch_SkipsFailedTickers(t *testing.T) {
	src := newFakeSource("polygon", interfaces.ProvenanceLiveQuotes, "AAPL")
	p := newTestProvider(nil, src, nil)

	result, err := p.Fetch(context.Background(), []string{"AAPL", "NOPE"}, SourceLiveQuotes)
	require.NoError(t, err)

	require.Len(t, result.Snapshots, 1)
	require.Len(t, result.Results, 2)
	assert.Equal(t, "polygon", result.Results[0].Source)

	var fe *FetchError
	require.True(t, errors.As(result.Results[1].Err, &fe))
	assert.Equal(t, FetchSourceUnavailable, fe.Kind)
	assert.Equal(t, "NOPE", fe.Ticker)
	assert.NotEmpty(t, result.Results[1].Error)

	require.Len(t, result.Diagnostics, 1)
	assert.Equal(t, string(FetchSourceUnavailable), result.Diagnostics[0].Kind)
}

func TestFetch_BrokerFallsBackToLiveQuotesOnce(t *testing.T) {
	broker := newFakeSource("alpaca", interfaces.ProvenanceBrokerFeed)
	broker.err = errors.New("subscription required")
	live := newFakeSource("polygon", interfaces.ProvenanceLiveQuotes, "AAPL")
	p := newTestProvider(nil, live, broker)

	result, err := p.Fetch(context.Background(), []string{"AAPL"}, SourceBrokerFeed)
	require.NoError(t, err)

	require.Len(t, result.Snapshots, 1)
	assert.Equal(t, interfaces.ProvenanceLiveQuotes, result.Snapshots[0].Provenance)
	assert.Equal(t, []string{"AAPL"}, broker.calls)
	assert.Equal(t, []string{"AAPL"}, live.calls)
	require.Len(t, result.Diagnostics, 1)
	assert.Equal(t, "alpaca", result.Diagnostics[0].Source)
}

func TestFetch_LiveQuotesNeverFallsBackToBroker(t *testing.T) {
	broker := newFakeSource("alpaca", interfaces.ProvenanceBrokerFeed, "AAPL")
	live := newFakeSource("polygon", interfaces.ProvenanceLiveQuotes)
	p := newTestProvider(nil, live, broker)

	result, err := p.Fetch(context.Background(), []string{"AAPL"}, SourceLiveQuotes)
	require.NoError(t, err)

	assert.Empty(t, result.Snapshots)
	assert.Empty(t, broker.calls)
}

func TestFetch_NotConfigured(t *testing.T) {
	p := newTestProvider(nil, nil, nil)

	result, err := p.Fetch(context.Background(), []string{"AAPL"}, SourceBrokerFeed)
	require.NoError(t, err)

	assert.Empty(t, result.Snapshots)
	require.Len(t, result.Diagnostics, 2)
	assert.Equal(t, string(FetchNotConfigured), result.Diagnostics[0].Kind)
	assert.Equal(t, "alpaca", result.Diagnostics[0].Source)
	assert.Equal(t, "polygon", result.Diagnostics[1].Source)

	var fe *FetchError
	require.True(t, errors.As(result.Results[0].Err, &fe))
	assert.Equal(t, FetchNotConfigured, fe.Kind)
}

func TestFetch_NormalizationErrorsKeepKind(t *testing.T) {
	src := newFakeSource("synthetic", interfaces.ProvenanceSynthetic, "BAD")
	src.chains["BAD"].UnderlyingPrice = 0
	p := newTestProvider(src, nil, nil)

	result, err := p.Fetch(context.Background(), []string{"BAD"}, SourceSynthetic)
	require.NoError(t, err)

	require.Len(t, result.Diagnostics, 1)
	assert.Equal(t, string(FetchInvalidUnderlying), result.Diagnostics[0].Kind)
	assert.Equal(t, "synthetic", result.Diagnostics[0].Source)
}

func TestFetch_HVFallbackDiagnostic(t *testing.T) {
	src := newFakeSource("synthetic", interfaces.ProvenanceSynthetic, "NEW")
	src.chains["NEW"].HV20 = nil
	src.chains["NEW"].Closes = []float64{10, 11}
	p := newTestProvider(src, nil, nil)

	result, err := p.Fetch(context.Background(), []string{"NEW"}, SourceSynthetic)
	require.NoError(t, err)

	require.Len(t, result.Snapshots, 1)
	assert.True(t, result.Snapshots[0].HVFallbackUsed)
	require.Len(t, result.Diagnostics, 1)
	assert.Equal(t, DiagnosticHVFallback, result.Diagnostics[0].Kind)
}

func TestFetch_UnknownMode(t *testing.T) {
	_, err := newTestProvider(nil, nil, nil).Fetch(context.Background(), []string{"AAPL"}, SourceMode("yahoo"))
	assert.ErrorIs(t, err, ErrUnknownSource)
}

func TestFetch_Cancelled(t *testing.T) {
	src := newFakeSource("synthetic", interfaces.ProvenanceSynthetic, "AAPL")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestProvider(src, nil, nil).Fetch(ctx, []string{"AAPL"}, SourceSynthetic)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, src.calls)
}

func TestDataProvider_Sources(t *testing.T) {
	p := newTestProvider(newFakeSource("synthetic", interfaces.ProvenanceSynthetic), nil, nil)

	sources := p.Sources()
	require.Len(t, sources, 3)
	assert.True(t, sources[0].Configured)
	assert.False(t, sources[1].Configured)
	assert.Equal(t, []string{"alpaca", "polygon"}, sources[2].Sources)
	assert.False(t, sources[2].Configured)
}

func TestCachedChainSource(t *testing.T) {
	src := newFakeSource("polygon", interfaces.ProvenanceLiveQuotes, "AAPL")
	cached := NewCachedChainSource(src, time.Minute)

	first, err := cached.FetchChain(context.Background(), "AAPL")
	require.NoError(t, err)
	second, err := cached.FetchChain(context.Background(), "aapl")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Len(t, src.calls, 1)
	assert.Equal(t, "polygon", cached.Name())

	_, err = cached.FetchChain(context.Background(), "MISSING")
	assert.Error(t, err)
	_, err = cached.FetchChain(context.Background(), "MISSING")
	assert.Error(t, err)
	assert.Len(t, src.calls, 3)

	cached.Flush()
	_, err = cached.FetchChain(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Len(t, src.calls, 4)
}

func TestFetch_DoesNotMutateSourceChain(t *testing.T) {
	src := newFakeSource("polygon", interfaces.ProvenanceLiveQuotes, "AAPL")
	shared := src.chains["AAPL"]
	shared.Ticker, shared.Source, shared.Provenance = "", "", ""

	p := newTestProvider(nil, NewCachedChainSource(src, time.Minute), nil)
	result, err := p.Fetch(context.Background(), []string{"AAPL"}, SourceLiveQuotes)
	require.NoError(t, err)

	require.Len(t, result.Snapshots, 1)
	assert.Equal(t, "AAPL", result.Snapshots[0].Ticker)
	assert.Equal(t, "polygon", result.Snapshots[0].Source)
	assert.Equal(t, interfaces.ProvenanceLiveQuotes, result.Snapshots[0].Provenance)

	assert.Empty(t, shared.Ticker)
	assert.Empty(t, shared.Source)
	assert.Empty(t, shared.Provenance)
}

func TestDataProvider_FlushCaches(t *testing.T) {
	src := newFakeSource("polygon", interfaces.ProvenanceLiveQuotes, "AAPL")
	p := newTestProvider(newFakeSource("synthetic", interfaces.ProvenanceSynthetic), NewCachedChainSource(src, time.Minute), nil)

	_, err := p.Fetch(context.Background(), []string{"AAPL"}, SourceLiveQuotes)
	require.NoError(t, err)
	_, err = p.Fetch(context.Background(), []string{"AAPL"}, SourceLiveQuotes)
	require.NoError(t, err)
	assert.Len(t, src.calls, 1)

	assert.Equal(t, 1, p.FlushCaches())

	_, err = p.Fetch(context.Background(), []string{"AAPL"}, SourceLiveQuotes)
	require.NoError(t, err)
	assert.Len(t, src.calls, 2)
}
