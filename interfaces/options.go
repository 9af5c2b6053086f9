package interfaces

import (
	"context"
	"time"
)

// Provenance tags where a snapshot's quotes came from
type Provenance string

const (
	ProvenanceSynthetic  Provenance = "synthetic"
	ProvenanceLiveQuotes Provenance = "liveQuotes"
	ProvenanceBrokerFeed Provenance = "brokerFeed"
)

// RawOption is one normalized PUT quote. Every field is populated and finite;
// Strike and Premium are strictly positive.
type RawOption struct {
	Symbol            string    `json:"symbol,omitempty"` // OCC symbol when the source has one
	Expiration        time.Time `json:"expiration,omitempty"`
	Strike            float64   `json:"strike"`
	Premium           float64   `json:"premium"` // mid or last
	ImpliedVolatility float64   `json:"iv"`
	Delta             float64   `json:"delta"` // negative for a put
	Gamma             float64   `json:"gamma"`
	Theta             float64   `json:"theta"`
	DaysToExpiration  int       `json:"dte"`
	Volume            int64     `json:"volume"`
	OpenInterest      int64     `json:"open_interest"`
	Bid               float64   `json:"bid"`
	Ask               float64   `json:"ask"`
	Last              float64   `json:"last"`
}

// UnderlyingSnapshot is the per-ticker context handed to the screener.
// It is built once per fetch and never mutated afterwards.
type UnderlyingSnapshot struct {
	Ticker                  string      `json:"ticker"`
	UnderlyingPrice         float64     `json:"underlying_price"`
	HistoricalVolatility20d float64     `json:"hv20"`
	HVFallbackUsed          bool        `json:"hv_fallback_used"`
	Provenance              Provenance  `json:"provenance"`
	Source                  string      `json:"source"`
	AsOf                    time.Time   `json:"as_of"`
	Options                 []RawOption `json:"options"`
}

// RawQuote is a provider option row before normalization. Pointer fields are
// the ones a provider may leave unset.
type RawQuote struct {
	Symbol            string
	Expiration        time.Time // zero when the provider only reports DTE
	DaysToExpiration  *int
	Strike            float64
	Mark              *float64
	Bid               *float64
	Ask               *float64
	Last              *float64
	ImpliedVolatility *float64
	Delta             *float64
	Gamma             *float64
	Theta             *float64
	Volume            *int64
	OpenInterest      *int64
}

// RawChain is everything a source knows about one ticker's put chain.
type RawChain struct {
	Ticker          string
	Source          string
	Provenance      Provenance
	UnderlyingPrice float64
	// HV20 is set when the provider computes it; otherwise Closes is used.
	HV20   *float64
	Closes []float64
	Quotes []RawQuote
}

// OptionChainSource fetches the raw put chain for a single ticker
type OptionChainSource interface {
	Name() string
	Provenance() Provenance
	FetchChain(ctx context.Context, ticker string) (*RawChain, error)
}
