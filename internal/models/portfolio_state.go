package models

import (
	"database/sql/driver"
	"time"
)

// Holding is a derived position in one symbol: units currently held and the
// amount invested at weighted-average cost. Holdings are never persisted on
// their own; they exist inside valuation results, participant documents,
// and group snapshots.
type Holding struct {
	Symbol     string     `json:"symbol"`
	SymbolType SymbolType `json:"symbol_type"`
	Units      float64    `json:"units"`
	Invested   float64    `json:"invested"`
}

// BreakEvenPrice returns the weighted-average cost per unit, 0 for an empty holding.
func (h *Holding) BreakEvenPrice() float64 {
	if h.Units == 0 {
		return 0
	}
	return h.Invested / h.Units
}

// HoldingList is a holdings snapshot stored as a JSON column.
type HoldingList []Holding

// Value implements driver.Valuer.
func (l HoldingList) Value() (driver.Value, error) { return jsonValue(l) }

// Scan implements sql.Scanner.
func (l *HoldingList) Scan(src interface{}) error { return jsonScan(l, src) }

// PortfolioState is a point-in-time snapshot of an account's financial state,
// produced fresh by every valuation and never mutated in place.
// Invariant: GainValue = HoldingsBalance − Invested.
type PortfolioState struct {
	CashOnHand      float64 `json:"cash_on_hand"`
	Invested        float64 `json:"invested"`
	HoldingsBalance float64 `json:"holdings_balance"`

	GainValue      float64 `json:"gain_value"`
	GainPercentage float64 `json:"gain_percentage"`

	RealizedGainValue      float64 `json:"realized_gain_value"`
	RealizedGainPercentage float64 `json:"realized_gain_percentage"`

	BuyCount  int     `json:"buy_count"`
	SellCount int     `json:"sell_count"`
	FeesPaid  float64 `json:"fees_paid"`

	FirstTransactionAt *time.Time `json:"first_transaction_at,omitempty"`
	LastTransactionAt  *time.Time `json:"last_transaction_at,omitempty"`
	SnapshotAt         time.Time  `json:"snapshot_at"`
}

// TotalBalance returns cash plus the market value of holdings.
func (s *PortfolioState) TotalBalance() float64 {
	return s.CashOnHand + s.HoldingsBalance
}
