package models

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"wheel-screener/interfaces"
)

// DerivedMetrics is the metric set computed for one option quote.
// Values are unrounded; use Rounded for display.
type DerivedMetrics struct {
	PremiumYieldPct        float64 `json:"premium_yield_pct"`
	AssignmentScore        float64 `json:"assignment_score"` // lower is better
	ProbabilityOfProfitPct float64 `json:"pop_pct"`
	MoneynessPct           float64 `json:"moneyness_pct"`
	ExpectedPnl            float64 `json:"expected_pnl"`
	// ReturnOnRiskPct is +Inf when strike <= premium. The sentinel is kept on
	// purpose so callers can exclude or label degenerate contracts.
	ReturnOnRiskPct float64 `json:"-"`
	Breakeven       float64 `json:"breakeven"`
	ThetaDailyDecay float64 `json:"theta_daily"`
}

// Rounded returns a display copy: 2 places for percentages and prices,
// 4 for the assignment score, 3 for theta
func (m DerivedMetrics) Rounded() DerivedMetrics {
	return DerivedMetrics{
		PremiumYieldPct:        round(m.PremiumYieldPct, 2),
		AssignmentScore:        round(m.AssignmentScore, 4),
		ProbabilityOfProfitPct: round(m.ProbabilityOfProfitPct, 2),
		MoneynessPct:           round(m.MoneynessPct, 2),
		ExpectedPnl:            round(m.ExpectedPnl, 2),
		ReturnOnRiskPct:        round(m.ReturnOnRiskPct, 2),
		Breakeven:              round(m.Breakeven, 2),
		ThetaDailyDecay:        round(m.ThetaDailyDecay, 3),
	}
}

// IsDegenerate reports whether return on risk is undefined for the contract
func (m DerivedMetrics) IsDegenerate() bool {
	return math.IsInf(m.ReturnOnRiskPct, 1)
}

func round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// Candidate is one ranked screening row: ticker context, the raw quote and its metrics
type Candidate struct {
	Ticker                  string
	Provenance              interfaces.Provenance
	UnderlyingPrice         float64
	HistoricalVolatility20d float64

	Option  interfaces.RawOption
	Metrics DerivedMetrics
}

// NewCandidate is the only place a screening row is assembled
func NewCandidate(snapshot *interfaces.UnderlyingSnapshot, option interfaces.RawOption, metrics DerivedMetrics) Candidate {
	return Candidate{
		Ticker:                  snapshot.Ticker,
		Provenance:              snapshot.Provenance,
		UnderlyingPrice:         snapshot.UnderlyingPrice,
		HistoricalVolatility20d: snapshot.HistoricalVolatility20d,
		Option:                  option,
		Metrics:                 metrics,
	}
}

// SortValue returns the unrounded metric backing a sort field
func (c Candidate) SortValue(f SortField) float64 {
	switch f {
	case SortByAssignmentScore:
		return c.Metrics.AssignmentScore
	case SortByProbOfProfit:
		return c.Metrics.ProbabilityOfProfitPct
	case SortByMoneyness:
		return c.Metrics.MoneynessPct
	case SortByReturnOnRisk:
		return c.Metrics.ReturnOnRiskPct
	default:
		return c.Metrics.PremiumYieldPct
	}
}

// CandidateView is the presentation row shared by the API, the CLI table and CSV export
type CandidateView struct {
	Index           int                   `json:"index" csv:"index"`
	Ticker          string                `json:"ticker" csv:"ticker"`
	Provenance      interfaces.Provenance `json:"provenance" csv:"provenance"`
	UnderlyingPrice float64               `json:"underlying_price" csv:"underlying_price"`
	HV20Pct         float64               `json:"hv20_pct" csv:"hv20_pct"`
	Symbol          string                `json:"symbol,omitempty" csv:"symbol"`
	Expiration      string                `json:"expiration,omitempty" csv:"expiration"`
	Strike          float64               `json:"strike" csv:"strike"`
	DTE             int                   `json:"dte" csv:"dte"`
	Premium         float64               `json:"premium" csv:"premium"`
	Bid             float64               `json:"bid" csv:"bid"`
	Ask             float64               `json:"ask" csv:"ask"`
	Last            float64               `json:"last" csv:"last"`
	IVPct           float64               `json:"iv_pct" csv:"iv_pct"`
	Delta           float64               `json:"delta" csv:"delta"`
	Gamma           float64               `json:"gamma" csv:"gamma"`
	Theta           float64               `json:"theta" csv:"theta"`
	Volume          int64                 `json:"volume" csv:"volume"`
	OpenInterest    int64                 `json:"open_interest" csv:"open_interest"`

	PremiumYieldPct        float64 `json:"premium_yield_pct" csv:"premium_yield_pct"`
	AssignmentScore        float64 `json:"assignment_score" csv:"assignment_score"`
	ProbabilityOfProfitPct float64 `json:"pop_pct" csv:"pop_pct"`
	MoneynessPct           float64 `json:"moneyness_pct" csv:"moneyness_pct"`
	ExpectedPnl            float64 `json:"expected_pnl" csv:"expected_pnl"`
	// nil means N/A (degenerate contract)
	ReturnOnRiskPct *float64 `json:"return_on_risk_pct" csv:"return_on_risk_pct"`
	Breakeven       float64  `json:"breakeven" csv:"breakeven"`
	ThetaDailyDecay float64  `json:"theta_daily" csv:"theta_daily"`
}

// View renders the candidate for display; index is its position in the ranked list
func (c Candidate) View(index int) CandidateView {
	m := c.Metrics.Rounded()
	v := CandidateView{
		Index:           index,
		Ticker:          c.Ticker,
		Provenance:      c.Provenance,
		UnderlyingPrice: round(c.UnderlyingPrice, 2),
		HV20Pct:         round(c.HistoricalVolatility20d*100, 2),
		Symbol:          c.Option.Symbol,
		Strike:          c.Option.Strike,
		DTE:             c.Option.DaysToExpiration,
		Premium:         round(c.Option.Premium, 2),
		Bid:             c.Option.Bid,
		Ask:             c.Option.Ask,
		Last:            c.Option.Last,
		IVPct:           round(c.Option.ImpliedVolatility*100, 1),
		Delta:           c.Option.Delta,
		Gamma:           c.Option.Gamma,
		Theta:           c.Option.Theta,
		Volume:          c.Option.Volume,
		OpenInterest:    c.Option.OpenInterest,

		PremiumYieldPct:        m.PremiumYieldPct,
		AssignmentScore:        m.AssignmentScore,
		ProbabilityOfProfitPct: m.ProbabilityOfProfitPct,
		MoneynessPct:           m.MoneynessPct,
		ExpectedPnl:            m.ExpectedPnl,
		Breakeven:              m.Breakeven,
		ThetaDailyDecay:        m.ThetaDailyDecay,
	}
	if !c.Option.Expiration.IsZero() {
		v.Expiration = c.Option.Expiration.Format(time.DateOnly)
	}
	if !m.IsDegenerate() {
		ror := m.ReturnOnRiskPct
		v.ReturnOnRiskPct = &ror
	}
	return v
}

// Views renders a ranked list
func Views(candidates []Candidate) []CandidateView {
	out := make([]CandidateView, len(candidates))
	for i, c := range candidates {
		out[i] = c.View(i)
	}
	return out
}
