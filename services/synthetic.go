package services

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"strings"

	"github.com/sirupsen/logrus"

	"wheel-screener/interfaces"
)

const syntheticSourceName = "synthetic"

// GenerateSyntheticOptions fabricates a put ladder from 0.85x to 1.02x the
// underlying price in unit strike steps. Quotes are randomized but consistent:
// IV sits above hv, delta follows moneyness, gamma and theta follow DTE and premium.
func GenerateSyntheticOptions(rng *rand.Rand, price, hv float64) []interfaces.RawOption {
	if price <= 0 || !isFinite(price) {
		return nil
	}

	options := make([]interfaces.RawOption, 0)
	for strike := price * 0.85; strike < price*1.02; strike += 1.0 {
		dte := 18 + rng.Intn(23)
		iv := hv + uniform(rng, 0.05, 0.15)
		moneyness := (strike - price) / price
		years := float64(dte) / 365

		premium := math.Max(0.05, strike*math.Exp(moneyness)*0.015*math.Sqrt(years)*iv)
		delta := -math.Max(0.05, math.Min(0.55, 0.5+moneyness*5))
		gamma := (0.6 / (strike * math.Sqrt(years))) * uniform(rng, 0.8, 1.2)
		theta := -(premium / float64(dte)) * uniform(rng, 0.8, 1.2)

		options = append(options, interfaces.RawOption{
			Strike:            strike,
			Premium:           premium,
			ImpliedVolatility: iv,
			Delta:             delta,
			Gamma:             gamma,
			Theta:             theta,
			DaysToExpiration:  dte,
			Volume:            int64(50 + rng.Intn(1950)),
			OpenInterest:      int64(200 + rng.Intn(9800)),
			Bid:               premium * 0.99,
			Ask:               premium * 1.01,
			Last:              premium,
		})
	}
	return options
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

// SyntheticSource serves generated chains. The underlying comes from dataService
// when one is set, otherwise from a random walk; both are seeded per ticker.
type SyntheticSource struct {
	seed        int64
	dataService interfaces.DataService
	hvFallback  float64
	logger      *logrus.Logger
}

// NewSyntheticSource creates a synthetic source; dataService may be nil
func NewSyntheticSource(seed int64, dataService interfaces.DataService, hvFallback float64) *SyntheticSource {
	if hvFallback <= 0 {
		hvFallback = DefaultHVFallback
	}
	return &SyntheticSource{
		seed:        seed,
		dataService: dataService,
		hvFallback:  hvFallback,
		logger:      newLogger(),
	}
}

func (s *SyntheticSource) Name() string { return syntheticSourceName }

func (s *SyntheticSource) Provenance() interfaces.Provenance {
	return interfaces.ProvenanceSynthetic
}

// FetchChain generates a chain for ticker. The same seed and ticker always
// produce the same chain when no dataService is configured.
func (s *SyntheticSource) FetchChain(ctx context.Context, ticker string) (*interfaces.RawChain, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(s.seed ^ tickerSeed(ticker)))

	var closes []float64
	if s.dataService != nil {
		analysis, err := NewTechnicalAnalysisService(s.dataService, s.hvFallback).Analyze(ctx, ticker)
		if err != nil {
			s.logger.WithError(err).WithField("symbol", ticker).Warn("Underlying data unavailable, using random walk")
		} else {
			closes = analysis.Closes
			// the live price may differ from the last close
			closes = append(closes[:len(closes):len(closes)], analysis.CurrentPrice)
		}
	}
	if len(closes) == 0 {
		closes = RandomWalkCloses(rng, 60)
	}

	price := closes[len(closes)-1]
	hv, _ := EstimateHV(closes, s.hvFallback)

	generated := GenerateSyntheticOptions(rng, price, hv)
	quotes := make([]interfaces.RawQuote, len(generated))
	for i, opt := range generated {
		quotes[i] = syntheticQuote(opt)
	}

	return &interfaces.RawChain{
		Ticker:          strings.ToUpper(ticker),
		Source:          syntheticSourceName,
		Provenance:      interfaces.ProvenanceSynthetic,
		UnderlyingPrice: price,
		Closes:          closes,
		Quotes:          quotes,
	}, nil
}

// RandomWalkCloses produces n daily closes from a geometric random walk with a
// random starting price and annual volatility
func RandomWalkCloses(rng *rand.Rand, n int) []float64 {
	price := uniform(rng, 20, 500)
	dailyVol := uniform(rng, 0.15, 0.60) / math.Sqrt(TradingDaysPerYear)

	closes := make([]float64, n)
	for i := range closes {
		price *= math.Exp(rng.NormFloat64()*dailyVol - 0.5*dailyVol*dailyVol)
		closes[i] = price
	}
	return closes
}

func tickerSeed(ticker string) int64 {
	h := fnv.New64a()
	h.Write([]byte(strings.ToUpper(ticker)))
	return int64(h.Sum64())
}

func syntheticQuote(opt interfaces.RawOption) interfaces.RawQuote {
	dte := opt.DaysToExpiration
	return interfaces.RawQuote{
		DaysToExpiration:  &dte,
		Strike:            opt.Strike,
		Mark:              floatPtr(opt.Premium),
		Bid:               floatPtr(opt.Bid),
		Ask:               floatPtr(opt.Ask),
		Last:              floatPtr(opt.Last),
		ImpliedVolatility: floatPtr(opt.ImpliedVolatility),
		Delta:             floatPtr(opt.Delta),
		Gamma:             floatPtr(opt.Gamma),
		Theta:             floatPtr(opt.Theta),
		Volume:            int64Ptr(opt.Volume),
		OpenInterest:      int64Ptr(opt.OpenInterest),
	}
}
