package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCriteria(t *testing.T) {
	c := DefaultCriteria()

	assert.Equal(t, 0.5, c.MinYieldPct)
	assert.Equal(t, 35, c.MaxDaysToExpiration)
	assert.Equal(t, 0.4, c.MaxAbsDelta)
	assert.Equal(t, 10.0, c.KParam)
	assert.Equal(t, SortByYield, c.SortField)
	assert.False(t, c.SortAscending)
	assert.NoError(t, c.Validate())
}

func TestParseSortField(t *testing.T) {
	for in, want := range map[string]SortField{
		"yield":            SortByYield,
		"AS":               SortByAssignmentScore,
		"assignment_score": SortByAssignmentScore,
		"pop":              SortByProbOfProfit,
		" Moneyness ":      SortByMoneyness,
		"ror":              SortByReturnOnRisk,
	} {
		got, err := ParseSortField(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseSortField("volume")
	assert.ErrorIs(t, err, ErrInvalidCriteria)
}

func TestDefaultAscending(t *testing.T) {
	assert.True(t, DefaultAscending(SortByAssignmentScore))
	assert.False(t, DefaultAscending(SortByYield))
	assert.False(t, DefaultAscending(SortByReturnOnRisk))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *ScreeningCriteria)
	}{
		{"negative yield", func(c *ScreeningCriteria) { c.MinYieldPct = -0.1 }},
		{"nan yield", func(c *ScreeningCriteria) { c.MinYieldPct = math.NaN() }},
		{"negative dte", func(c *ScreeningCriteria) { c.MaxDaysToExpiration = -1 }},
		{"delta above one", func(c *ScreeningCriteria) { c.MaxAbsDelta = 1.5 }},
		{"negative delta", func(c *ScreeningCriteria) { c.MaxAbsDelta = -0.1 }},
		{"zero k", func(c *ScreeningCriteria) { c.KParam = 0 }},
		{"infinite k", func(c *ScreeningCriteria) { c.KParam = math.Inf(1) }},
		{"unknown sort", func(c *ScreeningCriteria) { c.SortField = "volume" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultCriteria()
			tt.mutate(&c)
			assert.ErrorIs(t, c.Validate(), ErrInvalidCriteria)
		})
	}
}

func TestValidate_NormalizesSortField(t *testing.T) {
	c := DefaultCriteria()
	c.SortField = "pop"
	require.NoError(t, c.Validate())
	assert.Equal(t, SortByProbOfProfit, c.SortField)

	c.SortField = ""
	require.NoError(t, c.Validate())
	assert.Equal(t, SortByYield, c.SortField)
}

func TestCriteriaOverrides_Apply(t *testing.T) {
	base := DefaultCriteria()

	var none *CriteriaOverrides
	assert.Equal(t, base, none.Apply(base))

	k := 5.0
	got := (&CriteriaOverrides{KParam: &k}).Apply(base)
	assert.Equal(t, 5.0, got.KParam)
	assert.Equal(t, base.MinYieldPct, got.MinYieldPct)
	assert.Equal(t, base.MaxDaysToExpiration, got.MaxDaysToExpiration)

	field := SortField("as")
	got = (&CriteriaOverrides{SortField: &field}).Apply(base)
	assert.True(t, got.SortAscending)

	desc := false
	got = (&CriteriaOverrides{SortField: &field, SortAscending: &desc}).Apply(base)
	assert.False(t, got.SortAscending)
}

func TestScreeningCriteria_Overrides(t *testing.T) {
	c := ScreeningCriteria{MinYieldPct: 1, MaxDaysToExpiration: 21, MaxAbsDelta: 0.3, KParam: 7, SortField: SortByMoneyness, SortAscending: true}
	assert.Equal(t, c, c.Overrides().Apply(DefaultCriteria()))
}
