package services

import (
	"math"

	"wheel-screener/interfaces"
	"wheel-screener/models"
)

// MetricsFunc computes the derived metrics for one option
type MetricsFunc func(option interfaces.RawOption, snapshot *interfaces.UnderlyingSnapshot, kParam float64) models.DerivedMetrics

// CalculateMetrics derives the decision metrics for a short put.
//
// It is pure and total over normalized input: a zero HV20 yields an assignment
// score of 0 and strike <= premium yields a +Inf return on risk. Callers must
// not pass a non-positive strike or premium.
func CalculateMetrics(option interfaces.RawOption, snapshot *interfaces.UnderlyingSnapshot, kParam float64) models.DerivedMetrics {
	strike := option.Strike
	premium := option.Premium
	price := snapshot.UnderlyingPrice
	hv20 := snapshot.HistoricalVolatility20d
	absDelta := math.Abs(option.Delta)

	moneyness := (strike - price) / price

	assignmentScore := 0.0
	if hv20 > 0 {
		assignmentScore = (option.ImpliedVolatility / hv20) * absDelta * math.Exp(-kParam*math.Abs(moneyness))
	}

	// delta plus a gamma convexity term over the expected move, capped at 100%
	expectedMove := price * option.ImpliedVolatility * math.Sqrt(float64(option.DaysToExpiration)/365)
	pop := math.Min(absDelta+option.Gamma*expectedMove*0.5, 1.0)

	returnOnRisk := math.Inf(1)
	if strike > premium {
		returnOnRisk = premium / (strike - premium) * 100
	}

	return models.DerivedMetrics{
		PremiumYieldPct:        premium / strike * 100,
		AssignmentScore:        assignmentScore,
		ProbabilityOfProfitPct: pop * 100,
		MoneynessPct:           moneyness * 100,
		ExpectedPnl:            premium * (1 - absDelta),
		ReturnOnRiskPct:        returnOnRisk,
		Breakeven:              strike - premium,
		ThetaDailyDecay:        math.Abs(option.Theta),
	}
}
