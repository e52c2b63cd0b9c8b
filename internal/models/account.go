package models

// AccountMode is the capability mode of an account. It gates the cash
// ceiling, fee simulation, and custom pricing branches in the order path;
// components take the mode as a parameter rather than ad hoc flags.
type AccountMode string

const (
	// AccountModeBasic enforces the cash ceiling and simulates broker fees.
	AccountModeBasic AccountMode = "basic"
	// AccountModeCustom allows caller-supplied total-value pricing, has no
	// cash ceiling, and charges no fees.
	AccountModeCustom AccountMode = "custom"
)

// EnforcesCashCeiling reports whether BUY orders must be covered by cash on hand.
func (m AccountMode) EnforcesCashCeiling() bool { return m == AccountModeBasic }

// SimulatesFees reports whether a broker fee is applied to each transaction.
func (m AccountMode) SimulatesFees() bool { return m == AccountModeBasic }

// AllowsCustomPrice reports whether a caller-supplied total value may override
// the fetched closing price.
func (m AccountMode) AllowsCustomPrice() bool { return m == AccountModeCustom }

// Account represents a trading account owning an append-only transaction
// ledger. The embedded PortfolioState is a persisted convenience copy,
// refreshed after writes; the ledger is always the source of truth.
type Account struct {
	Base
	DisplayName  string      `gorm:"not null" json:"display_name"`
	Mode         AccountMode `gorm:"not null;default:'basic'" json:"mode"`
	StartingCash float64     `gorm:"not null;default:0" json:"starting_cash"`
	GroupID      *string     `gorm:"type:uuid;index" json:"group_id,omitempty"`
	IsActive     bool        `gorm:"default:true" json:"is_active"`

	State PortfolioState `gorm:"embedded;embeddedPrefix:state_" json:"state"`

	// Relationships
	Transactions []TransactionRecord `gorm:"foreignKey:AccountID" json:"transactions,omitempty"`
}
