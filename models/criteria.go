package models

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrInvalidCriteria wraps every criteria validation failure
	ErrInvalidCriteria = errors.New("invalid screening criteria")
	// ErrNoTickers is returned when a screening request names no tickers
	ErrNoTickers = fmt.Errorf("%w: at least one ticker is required", ErrInvalidCriteria)
)

// SortField selects the candidate metric used for ranking
type SortField string

const (
	SortByYield           SortField = "yield"
	SortByAssignmentScore SortField = "assignment_score"
	SortByProbOfProfit    SortField = "prob_of_profit"
	SortByMoneyness       SortField = "moneyness"
	SortByReturnOnRisk    SortField = "return_on_risk"
)

var sortFieldAliases = map[string]SortField{
	"yield":            SortByYield,
	"premium_yield":    SortByYield,
	"assignment_score": SortByAssignmentScore,
	"assignmentscore":  SortByAssignmentScore,
	"as":               SortByAssignmentScore,
	"prob_of_profit":   SortByProbOfProfit,
	"probofprofit":     SortByProbOfProfit,
	"pop":              SortByProbOfProfit,
	"moneyness":        SortByMoneyness,
	"return_on_risk":   SortByReturnOnRisk,
	"returnonrisk":     SortByReturnOnRisk,
	"ror":              SortByReturnOnRisk,
}

// ParseSortField accepts the canonical names and a few short aliases
func ParseSortField(s string) (SortField, error) {
	if f, ok := sortFieldAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return f, nil
	}
	return "", fmt.Errorf("%w: unknown sort field %q", ErrInvalidCriteria, s)
}

// DefaultAscending reports the natural direction for a field. Assignment score
// is lower-is-better, everything else ranks higher values first.
func DefaultAscending(f SortField) bool {
	return f == SortByAssignmentScore
}

// ScreeningCriteria holds the user thresholds for one screening request.
// It is treated as immutable once a request starts.
type ScreeningCriteria struct {
	MinYieldPct         float64   `json:"min_yield_pct" yaml:"min_yield_pct"`
	MaxDaysToExpiration int       `json:"max_dte" yaml:"max_dte"`
	MaxAbsDelta         float64   `json:"max_abs_delta" yaml:"max_abs_delta"`
	KParam              float64   `json:"k_param" yaml:"k_param"`
	SortField           SortField `json:"sort_field" yaml:"sort_field"`
	SortAscending       bool      `json:"sort_ascending" yaml:"sort_ascending"`
}

// DefaultCriteria mirrors the dashboard's initial filter panel
func DefaultCriteria() ScreeningCriteria {
	return ScreeningCriteria{
		MinYieldPct:         0.5,
		MaxDaysToExpiration: 35,
		MaxAbsDelta:         0.4,
		KParam:              10,
		SortField:           SortByYield,
		SortAscending:       false,
	}
}

// Validate checks thresholds and normalizes the sort field alias in place
func (c *ScreeningCriteria) Validate() error {
	if math.IsNaN(c.MinYieldPct) || math.IsInf(c.MinYieldPct, 0) || c.MinYieldPct < 0 {
		return fmt.Errorf("%w: min_yield_pct must be a non-negative number", ErrInvalidCriteria)
	}
	if c.MaxDaysToExpiration < 0 {
		return fmt.Errorf("%w: max_dte must be >= 0", ErrInvalidCriteria)
	}
	if math.IsNaN(c.MaxAbsDelta) || c.MaxAbsDelta < 0 || c.MaxAbsDelta > 1 {
		return fmt.Errorf("%w: max_abs_delta must be within [0, 1]", ErrInvalidCriteria)
	}
	if math.IsNaN(c.KParam) || math.IsInf(c.KParam, 0) || c.KParam <= 0 {
		return fmt.Errorf("%w: k_param must be a positive number", ErrInvalidCriteria)
	}
	if c.SortField == "" {
		c.SortField = SortByYield
	}
	f, err := ParseSortField(string(c.SortField))
	if err != nil {
		return err
	}
	c.SortField = f
	return nil
}

// CriteriaOverrides is a partial ScreeningCriteria. Only the fields that are
// set replace the base values.
type CriteriaOverrides struct {
	MinYieldPct         *float64   `json:"min_yield_pct,omitempty" yaml:"min_yield_pct"`
	MaxDaysToExpiration *int       `json:"max_dte,omitempty" yaml:"max_dte"`
	MaxAbsDelta         *float64   `json:"max_abs_delta,omitempty" yaml:"max_abs_delta"`
	KParam              *float64   `json:"k_param,omitempty" yaml:"k_param"`
	SortField           *SortField `json:"sort_field,omitempty" yaml:"sort_field"`
	SortAscending       *bool      `json:"sort_ascending,omitempty" yaml:"sort_ascending"`
}

// Apply lays the set fields over base. A new sort field without an explicit
// direction takes that field's natural direction.
func (o *CriteriaOverrides) Apply(base ScreeningCriteria) ScreeningCriteria {
	c := base
	if o == nil {
		return c
	}
	if o.MinYieldPct != nil {
		c.MinYieldPct = *o.MinYieldPct
	}
	if o.MaxDaysToExpiration != nil {
		c.MaxDaysToExpiration = *o.MaxDaysToExpiration
	}
	if o.MaxAbsDelta != nil {
		c.MaxAbsDelta = *o.MaxAbsDelta
	}
	if o.KParam != nil {
		c.KParam = *o.KParam
	}
	if o.SortField != nil {
		c.SortField = *o.SortField
		if f, err := ParseSortField(string(c.SortField)); err == nil {
			c.SortAscending = DefaultAscending(f)
		}
	}
	if o.SortAscending != nil {
		c.SortAscending = *o.SortAscending
	}
	return c
}

// Overrides returns overrides that set every field of c
func (c ScreeningCriteria) Overrides() *CriteriaOverrides {
	return &CriteriaOverrides{
		MinYieldPct:         &c.MinYieldPct,
		MaxDaysToExpiration: &c.MaxDaysToExpiration,
		MaxAbsDelta:         &c.MaxAbsDelta,
		KParam:              &c.KParam,
		SortField:           &c.SortField,
		SortAscending:       &c.SortAscending,
	}
}
