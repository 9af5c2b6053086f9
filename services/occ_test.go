package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOptionSymbol(t *testing.T) {
	parsed, err := ParseOptionSymbol("AAPL240315P00172500")
	require.NoError(t, err)

	assert.Equal(t, "AAPL", parsed.Root)
	assert.True(t, parsed.Put)
	assert.Equal(t, 172.5, parsed.Strike)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), parsed.Expiration)

	parsed, err = ParseOptionSymbol("O:SPY241220C00600000")
	require.NoError(t, err)
	assert.Equal(t, "SPY", parsed.Root)
	assert.False(t, parsed.Put)
	assert.Equal(t, 600.0, parsed.Strike)
}

func TestParseOptionSymbol_Invalid(t *testing.T) {
	for _, symbol := range []string{"", "AAPL", "240315P00172500", "AAPL241315P00172500", "AAPL240315X00172500", "AAPL240315P0017250x"} {
		_, err := ParseOptionSymbol(symbol)
		assert.Error(t, err, symbol)
	}
}
