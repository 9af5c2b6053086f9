package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"wheel-screener/models"
)

// ErrRunNotFound is returned when a run ID is unknown or has expired
var ErrRunNotFound = errors.New("screening run not found")

const (
	messageNoData       = "no ticker data available"
	messageNoCandidates = "no options match the current filters, widen your filters"
)

// ScreenRequest is one screening pass as asked for by a caller
type ScreenRequest struct {
	Tickers  []string                   `json:"tickers"`
	Source   string                     `json:"source"`
	Criteria *models.CriteriaOverrides `json:"criteria,omitempty"`
}

// ScreenResponse is the outcome of a screening pass
type ScreenResponse struct {
	RunID       string                   `json:"run_id"`
	Status      ScreenStatus             `json:"status"`
	Message     string                   `json:"message,omitempty"`
	Source      SourceMode               `json:"source"`
	Criteria    models.ScreeningCriteria `json:"criteria"`
	Candidates  []models.CandidateView   `json:"candidates"`
	Tickers     []TickerResult           `json:"tickers"`
	Diagnostics []Diagnostic             `json:"diagnostics"`
	CreatedAt   time.Time                `json:"created_at"`
}

// CandidateDetail is the single-candidate drill-down
type CandidateDetail struct {
	Candidate models.CandidateView `json:"candidate"`
	Risk      RiskAssessment       `json:"risk"`
	Payoff    []PayoffPoint        `json:"payoff"`
}

type screeningRun struct {
	candidates []models.Candidate
}

// ScreeningService runs fetch plus screen and keeps recent runs for drill-downs
type ScreeningService struct {
	provider      *DataProvider
	screener      *Screener
	runs          *cache.Cache
	defaultSource SourceMode
	defaults      models.ScreeningCriteria
	logger        *logrus.Logger
}

// NewScreeningService creates a new screening service. Runs are kept for runTTL.
func NewScreeningService(provider *DataProvider, screener *Screener, defaultSource SourceMode, defaults models.ScreeningCriteria, runTTL time.Duration) *ScreeningService {
	if runTTL <= 0 {
		runTTL = DefaultQuoteCacheTTL
	}
	return &ScreeningService{
		provider:      provider,
		screener:      screener,
		runs:          cache.New(runTTL, 2*runTTL),
		defaultSource: defaultSource,
		defaults:      defaults,
		logger:        newLogger(),
	}
}

// DefaultCriteria returns the criteria used when a request carries none
func (s *ScreeningService) DefaultCriteria() models.ScreeningCriteria {
	return s.defaults
}

// Sources lists the data source modes
func (s *ScreeningService) Sources() []SourceStatus {
	return s.provider.Sources()
}

// FlushQuoteCache drops cached provider quotes so the next run refetches
func (s *ScreeningService) FlushQuoteCache() int {
	return s.provider.FlushCaches()
}

// Run validates the request, fetches snapshots and screens them
func (s *ScreeningService) Run(ctx context.Context, req ScreenRequest) (*ScreenResponse, error) {
	tickers := nonBlank(req.Tickers)
	if len(tickers) == 0 {
		return nil, models.ErrNoTickers
	}

	criteria := req.Criteria.Apply(s.defaults)
	if err := criteria.Validate(); err != nil {
		return nil, err
	}

	mode := s.defaultSource
	if req.Source != "" {
		parsed, err := ParseSourceMode(req.Source)
		if err != nil {
			return nil, err
		}
		mode = parsed
	}

	fetched, err := s.provider.Fetch(ctx, tickers, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch option data: %w", err)
	}

	result := s.screener.Screen(fetched.Snapshots, criteria)

	resp := &ScreenResponse{
		RunID:       uuid.New().String(),
		Status:      result.Status,
		Source:      mode,
		Criteria:    criteria,
		Candidates:  models.Views(result.Candidates),
		Tickers:     fetched.Results,
		Diagnostics: fetched.Diagnostics,
		CreatedAt:   time.Now(),
	}
	switch result.Status {
	case ScreenNoData:
		resp.Message = messageNoData
	case ScreenNoCandidates:
		resp.Message = messageNoCandidates
	}

	s.runs.Set(resp.RunID, &screeningRun{candidates: result.Candidates}, cache.DefaultExpiration)

	s.logger.WithFields(logrus.Fields{
		"run_id":     resp.RunID,
		"source":     mode,
		"tickers":    len(tickers),
		"status":     resp.Status,
		"candidates": len(resp.Candidates),
	}).Info("Screening run complete")

	return resp, nil
}

func nonBlank(tickers []string) []string {
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func (s *ScreeningService) run(runID string) (*screeningRun, error) {
	item, found := s.runs.Get(runID)
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return item.(*screeningRun), nil
}

// Compare builds the side-by-side comparison for candidates of a previous run
func (s *ScreeningService) Compare(runID string, indices []int) (*Comparison, error) {
	run, err := s.run(runID)
	if err != nil {
		return nil, err
	}
	return BuildComparison(run.candidates, indices)
}

// Detail returns the drill-down for one candidate of a previous run
func (s *ScreeningService) Detail(runID string, index int) (*CandidateDetail, error) {
	run, err := s.run(runID)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(run.candidates) {
		return nil, fmt.Errorf("%w: index %d out of range [0, %d)", ErrInvalidSelection, index, len(run.candidates))
	}

	c := run.candidates[index]
	return &CandidateDetail{
		Candidate: c.View(index),
		Risk:      AssessRisk(c, run.candidates),
		Payoff:    PayoffCurve(c.Option.Strike, c.Option.Premium, c.UnderlyingPrice, DefaultPayoffPoints),
	}, nil
}
