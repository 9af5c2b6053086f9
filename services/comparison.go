package services

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"wheel-screener/models"
)

const (
	// HighDeltaThreshold flags contracts likely to finish in the money
	HighDeltaThreshold = 0.45
	// DefaultPayoffPoints is the number of samples on a payoff curve
	DefaultPayoffPoints = 100
	// MaxPayoffPoints caps the samples a caller can ask for
	MaxPayoffPoints = 1000
)

// ErrInvalidSelection is returned when comparison indices do not match the candidate list
var ErrInvalidSelection = errors.New("invalid selection")

// RiskAssessment holds the detail-view risk badges for one candidate
type RiskAssessment struct {
	HighAssignmentRisk bool    `json:"high_assignment_risk"`
	AssignmentQ3       float64 `json:"assignment_score_q3"`
	HighDelta          bool    `json:"high_delta"`
}

// AssessRisk compares a candidate against the whole ranked list
func AssessRisk(candidate models.Candidate, all []models.Candidate) RiskAssessment {
	q3 := Quantile(metricValues(all, models.SortByAssignmentScore), 0.75)
	return RiskAssessment{
		HighAssignmentRisk: len(all) > 0 && candidate.Metrics.AssignmentScore > q3,
		AssignmentQ3:       q3,
		HighDelta:          math.Abs(candidate.Option.Delta) > HighDeltaThreshold,
	}
}

// Band is a quartile bucket used for color coding
type Band string

const (
	BandTop    Band = "top"
	BandMiddle Band = "middle"
	BandBottom Band = "bottom"
)

// QuartileBands buckets every candidate on field. Assignment score is
// lower-is-better so its bands are inverted.
func QuartileBands(all []models.Candidate, field models.SortField) []Band {
	values := metricValues(all, field)
	q1 := Quantile(values, 0.25)
	q3 := Quantile(values, 0.75)

	bands := make([]Band, len(values))
	for i, v := range values {
		if field == models.SortByAssignmentScore {
			switch {
			case v <= q1:
				bands[i] = BandTop
			case v > q3:
				bands[i] = BandBottom
			default:
				bands[i] = BandMiddle
			}
			continue
		}
		switch {
		case v >= q3:
			bands[i] = BandTop
		case v < q1:
			bands[i] = BandBottom
		default:
			bands[i] = BandMiddle
		}
	}
	return bands
}

// Quantile uses linear interpolation between closest ranks. NaN values are
// ignored; an empty input returns 0.
func Quantile(values []float64, q float64) float64 {
	sorted := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			sorted = append(sorted, v)
		}
	}
	if len(sorted) == 0 {
		return 0
	}
	sort.Float64s(sorted)

	q = math.Max(0, math.Min(1, q))
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	if math.IsInf(sorted[hi], 1) {
		return sorted[hi]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

func metricValues(all []models.Candidate, field models.SortField) []float64 {
	values := make([]float64, len(all))
	for i, c := range all {
		values[i] = c.SortValue(field)
	}
	return values
}

// RadarPoint is one candidate on the comparison radar, every axis scaled to 0-100
type RadarPoint struct {
	Label                   string  `json:"label"`
	PremiumYield            float64 `json:"premium_yield"`
	ProbabilityOfProfit     float64 `json:"pop"`
	AssignmentScoreInverted float64 `json:"assignment_score_inverted"`
}

// Comparison is the side-by-side view of selected candidates
type Comparison struct {
	Indices []int                  `json:"indices"`
	Rows    []models.CandidateView `json:"rows"`
	Radar   []RadarPoint           `json:"radar"`
	Risks   []RiskAssessment       `json:"risks"`
}

// BuildComparison validates selected indices against all and builds the
// comparison. Duplicate indices are collapsed and the result is in index order.
func BuildComparison(all []models.Candidate, selected []int) (*Comparison, error) {
	if len(selected) == 0 {
		return nil, fmt.Errorf("%w: no candidates selected", ErrInvalidSelection)
	}

	uniq := make(map[int]bool, len(selected))
	indices := make([]int, 0, len(selected))
	for _, idx := range selected {
		if idx < 0 || idx >= len(all) {
			return nil, fmt.Errorf("%w: index %d out of range [0, %d)", ErrInvalidSelection, idx, len(all))
		}
		if uniq[idx] {
			continue
		}
		uniq[idx] = true
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	maxAS, err := stats.Max(metricValues(all, models.SortByAssignmentScore))
	if err != nil {
		maxAS = 0
	}

	cmp := &Comparison{
		Indices: indices,
		Rows:    make([]models.CandidateView, 0, len(indices)),
		Radar:   make([]RadarPoint, 0, len(indices)),
		Risks:   make([]RiskAssessment, 0, len(indices)),
	}

	maxYield, maxPOP := 0.0, 0.0
	for _, idx := range indices {
		c := all[idx]
		maxYield = math.Max(maxYield, c.Metrics.PremiumYieldPct)
		maxPOP = math.Max(maxPOP, c.Metrics.ProbabilityOfProfitPct)
	}
	if maxYield == 0 {
		maxYield = 1
	}
	if maxPOP == 0 {
		maxPOP = 1
	}

	for _, idx := range indices {
		c := all[idx]
		inverted := 100.0
		if maxAS > 0 {
			inverted = (1 - c.Metrics.AssignmentScore/maxAS) * 100
		}
		cmp.Rows = append(cmp.Rows, c.View(idx))
		cmp.Risks = append(cmp.Risks, AssessRisk(c, all))
		cmp.Radar = append(cmp.Radar, RadarPoint{
			Label:                   fmt.Sprintf("%s $%.0f", c.Ticker, c.Option.Strike),
			PremiumYield:            c.Metrics.PremiumYieldPct / maxYield * 100,
			ProbabilityOfProfit:     c.Metrics.ProbabilityOfProfitPct / maxPOP * 100,
			AssignmentScoreInverted: inverted,
		})
	}
	return cmp, nil
}

// PayoffPoint is the short put P/L at expiration for one underlying price
type PayoffPoint struct {
	Price float64 `json:"price"`
	PnL   float64 `json:"pnl"`
}

// PayoffCurve samples the short put P/L per share over 80%-120% of spot.
// Profit is capped at the premium; points < 2 uses DefaultPayoffPoints and
// points is capped at MaxPayoffPoints.
func PayoffCurve(strike, premium, spot float64, points int) []PayoffPoint {
	if points < 2 {
		points = DefaultPayoffPoints
	}
	if points > MaxPayoffPoints {
		points = MaxPayoffPoints
	}
	lo, hi := spot*0.8, spot*1.2
	step := (hi - lo) / float64(points-1)

	curve := make([]PayoffPoint, points)
	for i := range curve {
		s := lo + step*float64(i)
		curve[i] = PayoffPoint{
			Price: s,
			PnL:   math.Min(premium, premium-(strike-s)),
		}
	}
	return curve
}
