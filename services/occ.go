package services

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// OptionSymbol is a parsed OCC contract symbol
type OptionSymbol struct {
	Root       string
	Expiration time.Time
	Put        bool
	Strike     float64
}

// ParseOptionSymbol parses <root><YYMMDD><C|P><strike*1000 as 8 digits>.
// A leading "O:" prefix is accepted.
func ParseOptionSymbol(symbol string) (OptionSymbol, error) {
	s := strings.TrimPrefix(strings.TrimSpace(symbol), "O:")
	if len(s) < 16 {
		return OptionSymbol{}, fmt.Errorf("option symbol %q too short", symbol)
	}

	tail := s[len(s)-15:]
	root := strings.TrimSpace(s[:len(s)-15])
	if root == "" {
		return OptionSymbol{}, fmt.Errorf("option symbol %q has no root", symbol)
	}

	exp, err := time.Parse("060102", tail[:6])
	if err != nil {
		return OptionSymbol{}, fmt.Errorf("option symbol %q has bad expiration: %w", symbol, err)
	}

	var put bool
	switch tail[6] {
	case 'P':
		put = true
	case 'C':
	default:
		return OptionSymbol{}, fmt.Errorf("option symbol %q has bad type %q", symbol, tail[6])
	}

	strike, err := strconv.ParseInt(tail[7:], 10, 64)
	if err != nil {
		return OptionSymbol{}, fmt.Errorf("option symbol %q has bad strike: %w", symbol, err)
	}

	return OptionSymbol{
		Root:       root,
		Expiration: exp,
		Put:        put,
		Strike:     float64(strike) / 1000,
	}, nil
}
