package services

import (
	"fmt"
	"math"
	"time"

	"wheel-screener/interfaces"
)

// NormalizeChain turns a provider chain into a snapshot the screener can
// consume without further checks. Rows that cannot be made valid are dropped;
// a bad underlying or an empty result is returned as a *FetchError.
func NormalizeChain(chain *interfaces.RawChain, asOf time.Time, hvFallback float64) (*interfaces.UnderlyingSnapshot, error) {
	if chain == nil {
		return nil, &FetchError{Kind: FetchEmptyChain, Err: fmt.Errorf("nil chain")}
	}
	if hvFallback <= 0 || !isFinite(hvFallback) {
		hvFallback = DefaultHVFallback
	}

	price := chain.UnderlyingPrice
	if !isFinite(price) || price <= 0 {
		return nil, &FetchError{
			Ticker: chain.Ticker,
			Source: chain.Source,
			Kind:   FetchInvalidUnderlying,
			Err:    fmt.Errorf("underlying price %v is not positive", price),
		}
	}

	hv, fallbackUsed := 0.0, false
	if chain.HV20 != nil && isFinite(*chain.HV20) && *chain.HV20 >= 0 {
		hv = *chain.HV20
	} else {
		hv, fallbackUsed = EstimateHV(chain.Closes, hvFallback)
	}

	options := make([]interfaces.RawOption, 0, len(chain.Quotes))
	for _, q := range chain.Quotes {
		if opt, ok := normalizeQuote(q, price, hv, asOf); ok {
			options = append(options, opt)
		}
	}

	if len(options) == 0 {
		return nil, &FetchError{
			Ticker: chain.Ticker,
			Source: chain.Source,
			Kind:   FetchEmptyChain,
			Err:    fmt.Errorf("no usable put quotes out of %d", len(chain.Quotes)),
		}
	}

	return &interfaces.UnderlyingSnapshot{
		Ticker:                  chain.Ticker,
		UnderlyingPrice:         price,
		HistoricalVolatility20d: hv,
		HVFallbackUsed:          fallbackUsed,
		Provenance:              chain.Provenance,
		Source:                  chain.Source,
		AsOf:                    asOf,
		Options:                 options,
	}, nil
}

func normalizeQuote(q interfaces.RawQuote, price, hv float64, asOf time.Time) (interfaces.RawOption, bool) {
	if !isFinite(q.Strike) || q.Strike <= 0 {
		return interfaces.RawOption{}, false
	}

	bid := nonNegative(q.Bid)
	ask := nonNegative(q.Ask)

	premium := 0.0
	switch {
	case q.Mark != nil && isFinite(*q.Mark) && *q.Mark > 0:
		premium = *q.Mark
	case bid > 0 && ask > 0:
		premium = (bid + ask) / 2
	case q.Last != nil && isFinite(*q.Last) && *q.Last > 0:
		premium = *q.Last
	default:
		return interfaces.RawOption{}, false
	}

	dte, ok := daysToExpiration(q, asOf)
	if !ok {
		return interfaces.RawOption{}, false
	}

	iv := 0.0
	switch {
	case q.ImpliedVolatility != nil && isFinite(*q.ImpliedVolatility) && *q.ImpliedVolatility > 0:
		iv = *q.ImpliedVolatility
	case hv > 0:
		iv = hv
	default:
		return interfaces.RawOption{}, false
	}

	var approx *PutGreeks
	greek := func(v *float64, pick func(PutGreeks) float64) float64 {
		if v != nil && isFinite(*v) {
			return *v
		}
		if approx == nil {
			g := ApproximatePutGreeks(price, q.Strike, iv, dte)
			approx = &g
		}
		return pick(*approx)
	}

	delta := greek(q.Delta, func(g PutGreeks) float64 { return g.Delta })
	gamma := greek(q.Gamma, func(g PutGreeks) float64 { return g.Gamma })
	theta := greek(q.Theta, func(g PutGreeks) float64 { return g.Theta })

	// some feeds report put delta unsigned
	delta = -math.Min(math.Abs(delta), 1)
	gamma = math.Max(gamma, 0)

	last := premium
	if q.Last != nil && isFinite(*q.Last) && *q.Last > 0 {
		last = *q.Last
	}

	opt := interfaces.RawOption{
		Symbol:            q.Symbol,
		Expiration:        q.Expiration,
		Strike:            q.Strike,
		Premium:           premium,
		ImpliedVolatility: iv,
		Delta:             delta,
		Gamma:             gamma,
		Theta:             theta,
		DaysToExpiration:  dte,
		Volume:            nonNegativeInt(q.Volume),
		OpenInterest:      nonNegativeInt(q.OpenInterest),
		Bid:               bid,
		Ask:               ask,
		Last:              last,
	}

	for _, v := range []float64{opt.Premium, opt.ImpliedVolatility, opt.Delta, opt.Gamma, opt.Theta} {
		if !isFinite(v) {
			return interfaces.RawOption{}, false
		}
	}
	return opt, true
}

// daysToExpiration prefers the expiration date over a provider DTE
func daysToExpiration(q interfaces.RawQuote, asOf time.Time) (int, bool) {
	if !q.Expiration.IsZero() {
		dte := CalendarDaysBetween(asOf, q.Expiration)
		return dte, dte >= 0
	}
	if q.DaysToExpiration != nil {
		return *q.DaysToExpiration, *q.DaysToExpiration >= 0
	}
	return 0, false
}

// CalendarDaysBetween counts calendar days from one date to another, ignoring clock time
func CalendarDaysBetween(from, to time.Time) int {
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()
	a := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	b := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(math.Round(b.Sub(a).Hours() / 24))
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func nonNegative(v *float64) float64 {
	if v == nil || !isFinite(*v) || *v < 0 {
		return 0
	}
	return *v
}

func nonNegativeInt(v *int64) int64 {
	if v == nil || *v < 0 {
		return 0
	}
	return *v
}
