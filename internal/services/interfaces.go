package services

import (
	"context"
	"time"

	"papertrade/internal/models"
	"papertrade/internal/pagination"
	"papertrade/internal/valuation"
)

// OrderRequest is the input of the order placement entry point.
type OrderRequest struct {
	Symbol     string
	SymbolType models.SymbolType
	Side       models.Side
	Units      float64
	Date       time.Time

	// CustomTotalValue, when set and allowed by the account mode, overrides
	// the fetched closing price: unit price = total value / units.
	CustomTotalValue *float64
}

// AccountServicer defines the contract for account-related business logic.
type AccountServicer interface {
	CreateAccount(displayName string, mode models.AccountMode, startingCash float64) (*models.Account, error)
	GetAccountByID(accountID string) (*models.Account, error)
	JoinGroup(accountID, groupID string) error
	LeaveGroup(accountID string) error
}

// LedgerServicer defines the contract for ledger reads and the transaction
// writer. The ledger is append-only: records are created, never updated.
type LedgerServicer interface {
	CreateTransaction(ctx context.Context, accountID string, order OrderRequest) (*models.TransactionRecord, error)
	GetLedger(accountID string) ([]models.TransactionRecord, error)
	GetAccountTransactions(accountID string, page pagination.PageRequest) (*pagination.PageResponse[models.TransactionRecord], error)
	GetPortfolio(ctx context.Context, accountID string) (*valuation.Result, error)
	RefreshState(ctx context.Context, accountID string) (*models.PortfolioState, error)
}

// SymbolSpec describes one tradable symbol when creating a simulator.
type SymbolSpec struct {
	Symbol     string
	SymbolType models.SymbolType
	Prices     []float64
	IssueRound int
}

// SimulatorServicer defines the contract for the simulator lifecycle and the
// round advancement state machine.
type SimulatorServicer interface {
	CreateSimulator(ownerAccountID, name string, roundDurationSec int, startAt time.Time, startingCash float64, symbols []SymbolSpec) (*models.Simulator, error)
	GetSimulatorByID(simulatorID string) (*models.Simulator, error)
	Join(simulatorID, accountID string) (*models.SimulatorParticipant, error)
	GoLive(simulatorID, ownerAccountID string) error
	Start(simulatorID, ownerAccountID string, now time.Time) error
	PlaceOrder(ctx context.Context, simulatorID, accountID string, order OrderRequest) (*models.TransactionRecord, error)
	Tick(ctx context.Context, simulatorID string, now time.Time) error
	RunDueTicks(ctx context.Context, now time.Time) (int, error)
	GetBoard(simulatorID string) (*models.SimulatorBoard, error)
}

// GroupServicer defines the contract for groups and the periodic rollup pass.
type GroupServicer interface {
	CreateGroup(ownerAccountID, name string) (*models.Group, error)
	GetGroupByID(groupID string) (*models.Group, error)
	CloseGroup(groupID, ownerAccountID string) error
	GetLatestSnapshot(groupID string) (*models.GroupSnapshot, error)
	RollupPass(ctx context.Context, now time.Time) (int, error)
}
