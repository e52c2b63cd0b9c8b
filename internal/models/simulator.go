package models

import (
	"database/sql/driver"
	"time"
)

// SimulatorState is the lifecycle state of a trading simulator.
// Transitions: draft → live → started → historical (terminal).
type SimulatorState string

const (
	SimulatorStateDraft      SimulatorState = "draft"
	SimulatorStateLive       SimulatorState = "live"
	SimulatorStateStarted    SimulatorState = "started"
	SimulatorStateHistorical SimulatorState = "historical"
)

// Simulator is a round-based trading competition. Time advances in discrete
// rounds instead of calendar days; every round tick revalues all participants
// against the round-indexed symbol prices.
type Simulator struct {
	Base
	OwnerAccountID string         `gorm:"type:uuid;not null;index" json:"owner_account_id"`
	Name           string         `gorm:"not null" json:"name"`
	State          SimulatorState `gorm:"not null;default:'draft';index" json:"state"`

	CurrentRound     int        `gorm:"not null;default:0" json:"current_round"`
	RoundDurationSec int        `gorm:"not null" json:"round_duration_sec"`
	NextRoundAt      *time.Time `json:"next_round_at,omitempty"`
	StartAt          *time.Time `json:"start_at,omitempty"`

	// Cash every participant starts the competition with.
	StartingCash float64 `gorm:"not null" json:"starting_cash"`

	// Relationships
	Symbols      []SimulatorSymbol      `gorm:"foreignKey:SimulatorID" json:"symbols,omitempty"`
	Participants []SimulatorParticipant `gorm:"foreignKey:SimulatorID" json:"participants,omitempty"`
}

// RoundDuration returns the round length as a time.Duration.
func (s *Simulator) RoundDuration() time.Duration {
	return time.Duration(s.RoundDurationSec) * time.Second
}

// PriceSeries holds one price per round for a simulator symbol.
type PriceSeries []float64

// Value implements driver.Valuer.
func (p PriceSeries) Value() (driver.Value, error) { return jsonValue(p) }

// Scan implements sql.Scanner.
func (p *PriceSeries) Scan(src interface{}) error { return jsonScan(p, src) }

// At returns the price for the given round. Rounds past the end of the
// series clamp to the last known price.
func (p PriceSeries) At(round int) (float64, bool) {
	if len(p) == 0 {
		return 0, false
	}
	if round >= len(p) {
		round = len(p) - 1
	}
	if round < 0 {
		round = 0
	}
	return p[round], true
}

// SimulatorSymbol is a tradable instrument inside one simulator, with a
// precomputed per-round price series and the round it becomes tradable.
type SimulatorSymbol struct {
	Base
	SimulatorID string      `gorm:"type:uuid;not null;index" json:"simulator_id"`
	Symbol      string      `gorm:"not null" json:"symbol"`
	SymbolType  SymbolType  `gorm:"not null;default:'equity'" json:"symbol_type"`
	Prices      PriceSeries `gorm:"type:text" json:"prices"`
	IssueRound  int         `gorm:"not null;default:0" json:"issue_round"`
}

// GrowthPoint is one entry of a participant's portfolio-growth time series.
type GrowthPoint struct {
	Round   int     `json:"round"`
	Balance float64 `json:"balance"`
}

// GrowthSeries is an append-only growth history, one point per round.
type GrowthSeries []GrowthPoint

// Value implements driver.Valuer.
func (g GrowthSeries) Value() (driver.Value, error) { return jsonValue(g) }

// Scan implements sql.Scanner.
func (g *GrowthSeries) Scan(src interface{}) error { return jsonScan(g, src) }

// SimulatorParticipant is one account's presence in a simulator: its
// round-indexed ledger lives in the shared transactions table; holdings,
// state, growth history, and rank are mutated once per round by the tick.
type SimulatorParticipant struct {
	Base
	SimulatorID string `gorm:"type:uuid;not null;uniqueIndex:uq_participant" json:"simulator_id"`
	AccountID   string `gorm:"type:uuid;not null;uniqueIndex:uq_participant" json:"account_id"`

	Holdings HoldingList    `gorm:"type:text" json:"holdings"`
	State    PortfolioState `gorm:"embedded;embeddedPrefix:state_" json:"state"`
	Growth   GrowthSeries   `gorm:"type:text" json:"growth"`

	Rank          int `gorm:"not null;default:0" json:"rank"`
	PreviousRank  int `gorm:"not null;default:0" json:"previous_rank"`
	RankChange    int `gorm:"not null;default:0" json:"rank_change"`
	RankAsOfRound int `gorm:"not null;default:0" json:"rank_as_of_round"`
}

// RankEntry is one row of a simulator's aggregate ranking.
type RankEntry struct {
	AccountID    string  `json:"account_id"`
	Balance      float64 `json:"balance"`
	Rank         int     `json:"rank"`
	PreviousRank int     `json:"previous_rank"`
	RankChange   int     `json:"rank_change"`
}

// RankingList is the full ranking stored as a JSON column.
type RankingList []RankEntry

// Value implements driver.Valuer.
func (l RankingList) Value() (driver.Value, error) { return jsonValue(l) }

// Scan implements sql.Scanner.
func (l *RankingList) Scan(src interface{}) error { return jsonScan(l, src) }

// SimulatorBoard is the simulator-wide aggregate document: current ranking
// plus bounded transaction lists. Recomputed wholesale on every round tick.
type SimulatorBoard struct {
	Base
	SimulatorID string `gorm:"type:uuid;not null;uniqueIndex" json:"simulator_id"`

	Rankings          RankingList     `gorm:"type:text" json:"rankings"`
	LastTransactions  TransactionList `gorm:"type:text" json:"last_transactions"`
	BestTransactions  TransactionList `gorm:"type:text" json:"best_transactions"`
	WorstTransactions TransactionList `gorm:"type:text" json:"worst_transactions"`
	AsOfRound         int             `gorm:"not null;default:0" json:"as_of_round"`
}
