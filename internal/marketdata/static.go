package marketdata

import (
	"context"
	"time"
)

// StaticProvider serves prices from a fixed in-memory table. Used by tests
// and by local development setups that have no network access.
type StaticProvider struct {
	prices map[string]float64
}

// NewStaticProvider creates a provider backed by the given ticker → price table.
func NewStaticProvider(prices map[string]float64) *StaticProvider {
	if prices == nil {
		prices = map[string]float64{}
	}
	return &StaticProvider{prices: prices}
}

// SetPrice sets or replaces the price for a ticker.
func (p *StaticProvider) SetPrice(ticker string, price float64) {
	p.prices[ticker] = price
}

// Quotes returns the known prices for the requested symbols. Unknown symbols
// are left out of the map.
func (p *StaticProvider) Quotes(_ context.Context, symbols []Symbol) (map[string]float64, error) {
	out := make(map[string]float64, len(symbols))
	for _, s := range symbols {
		if price, ok := p.prices[s.Ticker]; ok {
			out[s.Ticker] = price
		}
	}
	return out, nil
}

// ClosingPrice returns the fixed price for the symbol regardless of date.
func (p *StaticProvider) ClosingPrice(_ context.Context, symbol Symbol, _ time.Time) (float64, error) {
	price, ok := p.prices[symbol.Ticker]
	if !ok {
		return 0, ErrPriceUnavailable
	}
	return price, nil
}
