// Package marketdata defines the price-fetch boundary. The engine only ever
// needs two shapes of answer from the market: a current quote vector for a
// set of symbols, and a single closing price for a symbol on a date.
package marketdata

import (
	"context"
	"time"

	"papertrade/internal/models"
)

// Symbol identifies an instrument to a provider.
type Symbol struct {
	Ticker string
	Type   models.SymbolType
}

// Provider fetches market prices. Implementations should return as many
// prices as possible; a symbol missing from the returned map is treated as
// a data-integrity warning by callers, not a failure.
type Provider interface {
	// Quotes returns current prices keyed by ticker for the given symbols.
	Quotes(ctx context.Context, symbols []Symbol) (map[string]float64, error)

	// ClosingPrice returns the closing price of one symbol on the given
	// date. Returns ErrPriceUnavailable when the provider has no price.
	ClosingPrice(ctx context.Context, symbol Symbol, date time.Time) (float64, error)
}
