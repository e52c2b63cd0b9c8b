package models

import (
	"database/sql/driver"
	"time"
)

// Group is a social circle of accounts whose combined holdings and state are
// recomputed by the periodic rollup pass. Membership is derived from each
// account's GroupID at rollup time, so joins and leaves are picked up on the
// next pass without touching the group row.
type Group struct {
	Base
	OwnerAccountID string `gorm:"type:uuid;not null;index" json:"owner_account_id"`
	Name           string `gorm:"not null" json:"name"`
	IsClosed       bool   `gorm:"default:false;index" json:"is_closed"`

	// LastRollupAt orders groups by staleness for batch paging.
	LastRollupAt *time.Time `gorm:"index" json:"last_rollup_at,omitempty"`
}

// MemberRank is one member's row in a group snapshot's ranked member list.
type MemberRank struct {
	AccountID    string  `json:"account_id"`
	DisplayName  string  `json:"display_name"`
	GainValue    float64 `json:"gain_value"`
	Balance      float64 `json:"balance"`
	Rank         int     `json:"rank"`
	PreviousRank int     `json:"previous_rank"`
	RankChange   int     `json:"rank_change"`
}

// MemberRankList is the ranked member list stored as a JSON column.
type MemberRankList []MemberRank

// Value implements driver.Valuer.
func (l MemberRankList) Value() (driver.Value, error) { return jsonValue(l) }

// Scan implements sql.Scanner.
func (l *MemberRankList) Scan(src interface{}) error { return jsonScan(l, src) }

// GroupSnapshot is one day's rolled-up view of a group. The rollup replaces
// the snapshot when one already exists for the same date, so re-running a
// pass never double-counts a day.
type GroupSnapshot struct {
	Base
	GroupID      string    `gorm:"type:uuid;not null;index" json:"group_id"`
	SnapshotDate time.Time `gorm:"not null;index" json:"snapshot_date"`

	Holdings HoldingList    `gorm:"type:text" json:"holdings"`
	State    PortfolioState `gorm:"embedded;embeddedPrefix:state_" json:"state"`

	// Day-over-day change in total balance versus the previous snapshot.
	BalanceChange float64 `gorm:"not null;default:0" json:"balance_change"`

	LastTransactions  TransactionList `gorm:"type:text" json:"last_transactions"`
	BestTransactions  TransactionList `gorm:"type:text" json:"best_transactions"`
	WorstTransactions TransactionList `gorm:"type:text" json:"worst_transactions"`

	Members MemberRankList `gorm:"type:text" json:"members"`
}
