package services

import (
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"wheel-screener/interfaces"
	"wheel-screener/models"
)

// ScreenStatus distinguishes the empty outcomes of a screening pass
type ScreenStatus string

const (
	ScreenOK           ScreenStatus = "ok"
	ScreenNoData       ScreenStatus = "no_data"       // no ticker data was available
	ScreenNoCandidates ScreenStatus = "no_candidates" // data was available but nothing passed the filters
)

// ScreenResult is the ordered output of one screening pass
type ScreenResult struct {
	Status     ScreenStatus
	Candidates []models.Candidate
	// Evaluated counts options that reached the metrics engine
	Evaluated int
}

// Screener flattens snapshots into ranked candidates. It holds no state between calls.
type Screener struct {
	metrics MetricsFunc
	logger  *logrus.Logger
}

// NewScreener creates a screener backed by CalculateMetrics
func NewScreener() *Screener {
	return NewScreenerWithMetrics(CalculateMetrics)
}

// NewScreenerWithMetrics swaps the metrics engine, mostly for tests
func NewScreenerWithMetrics(fn MetricsFunc) *Screener {
	return &Screener{
		metrics: fn,
		logger:  newLogger(),
	}
}

// Screen applies the criteria to every option of every snapshot and returns
// the survivors sorted by criteria.SortField. Criteria are assumed validated.
//
// Snapshots are enumerated in slice order and options in chain order; the sort
// is stable so equal keys keep that order.
func (s *Screener) Screen(snapshots []*interfaces.UnderlyingSnapshot, criteria models.ScreeningCriteria) ScreenResult {
	if len(snapshots) == 0 {
		return ScreenResult{Status: ScreenNoData}
	}

	result := ScreenResult{Status: ScreenOK}
	candidates := make([]models.Candidate, 0)

	for _, snapshot := range snapshots {
		if snapshot == nil {
			continue
		}
		for _, option := range snapshot.Options {
			// delta gate runs on raw data so rejected rows never reach the engine
			if math.Abs(option.Delta) > criteria.MaxAbsDelta {
				continue
			}

			metrics := s.metrics(option, snapshot, criteria.KParam)
			result.Evaluated++

			candidate := models.NewCandidate(snapshot, option, metrics)
			if candidate.Metrics.PremiumYieldPct < criteria.MinYieldPct {
				continue
			}
			if candidate.Option.DaysToExpiration > criteria.MaxDaysToExpiration {
				continue
			}
			candidates = append(candidates, candidate)
		}
	}

	if len(candidates) == 0 {
		s.logger.WithFields(logrus.Fields{
			"tickers":   len(snapshots),
			"evaluated": result.Evaluated,
		}).Info("No candidates passed the filters")
		result.Status = ScreenNoCandidates
		result.Candidates = candidates
		return result
	}

	SortCandidates(candidates, criteria.SortField, criteria.SortAscending)

	s.logger.WithFields(logrus.Fields{
		"tickers":    len(snapshots),
		"evaluated":  result.Evaluated,
		"candidates": len(candidates),
		"sort":       criteria.SortField,
		"ascending":  criteria.SortAscending,
	}).Debug("Screening pass complete")

	result.Candidates = candidates
	return result
}

// SortCandidates stably orders candidates by a metric. +Inf values (degenerate
// return on risk) land last when ascending and first when descending.
func SortCandidates(candidates []models.Candidate, field models.SortField, ascending bool) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a := candidates[i].SortValue(field)
		b := candidates[j].SortValue(field)
		if ascending {
			return a < b
		}
		return b < a
	})
}
