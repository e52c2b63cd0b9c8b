package models

import (
	"database/sql/driver"
	"time"

	"papertrade/internal/uuid"

	"gorm.io/gorm"
)

// Side represents the direction of a transaction.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// SymbolType represents the kind of instrument a symbol identifies.
type SymbolType string

const (
	SymbolTypeEquity SymbolType = "equity"
	SymbolTypeCrypto SymbolType = "crypto"
	SymbolTypeIndex  SymbolType = "index"
)

// FractionalUnits reports whether the instrument trades in fractional units.
func (t SymbolType) FractionalUnits() bool { return t == SymbolTypeCrypto }

// TransactionRecord is one entry of an account's append-only ledger.
// Records are immutable once created: no updates, no soft deletes.
// Calendar ledgers leave SimulatorID nil; simulator-scoped ledgers carry
// the simulator id and the round the record was placed in.
type TransactionRecord struct {
	ID          string  `gorm:"type:uuid;primaryKey" json:"id"`
	AccountID   string  `gorm:"type:uuid;not null;index" json:"account_id"`
	SimulatorID *string `gorm:"type:uuid;index" json:"simulator_id,omitempty"`
	Round       int     `gorm:"not null;default:0" json:"round"`

	Symbol     string     `gorm:"not null" json:"symbol"`
	SymbolType SymbolType `gorm:"not null" json:"symbol_type"`
	Side       Side       `gorm:"not null" json:"side"`
	Units      float64    `gorm:"not null" json:"units"`
	UnitPrice  float64    `gorm:"not null" json:"unit_price"`
	Fee        float64    `gorm:"not null;default:0" json:"fee"`

	// Realized return against the weighted-average cost at time of sale.
	// Zero for BUY records.
	ReturnValue      float64 `gorm:"not null;default:0" json:"return_value"`
	ReturnPercentage float64 `gorm:"not null;default:0" json:"return_percentage"`

	Date      time.Time `gorm:"not null;index" json:"date"`
	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (t *TransactionRecord) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.New()
	}
	return nil
}

// NotionalValue returns units × unit price, before fees.
func (t *TransactionRecord) NotionalValue() float64 {
	return t.Units * t.UnitPrice
}

// TransactionList is a bounded list of transaction records stored as a JSON
// column on aggregate documents (simulator boards, group snapshots).
type TransactionList []TransactionRecord

// Value implements driver.Valuer.
func (l TransactionList) Value() (driver.Value, error) { return jsonValue(l) }

// Scan implements sql.Scanner.
func (l *TransactionList) Scan(src interface{}) error { return jsonScan(l, src) }
