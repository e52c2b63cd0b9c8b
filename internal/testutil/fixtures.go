package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"papertrade/internal/models"

	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestAccount creates a basic-mode account with the given starting cash.
func CreateTestAccount(t *testing.T, db *gorm.DB, startingCash float64) *models.Account {
	t.Helper()
	return CreateTestAccountWithMode(t, db, models.AccountModeBasic, startingCash)
}

// CreateTestAccountWithMode creates an account in the given mode.
func CreateTestAccountWithMode(t *testing.T, db *gorm.DB, mode models.AccountMode, startingCash float64) *models.Account {
	t.Helper()

	account := &models.Account{
		DisplayName:  fmt.Sprintf("Test Account %d", nextID()),
		Mode:         mode,
		StartingCash: startingCash,
		IsActive:     true,
	}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("failed to create test account: %v", err)
	}
	return account
}

// CreateTestGroup creates an open group owned by the given account.
func CreateTestGroup(t *testing.T, db *gorm.DB, ownerAccountID string) *models.Group {
	t.Helper()

	group := &models.Group{
		OwnerAccountID: ownerAccountID,
		Name:           fmt.Sprintf("Test Group %d", nextID()),
	}
	if err := db.Create(group).Error; err != nil {
		t.Fatalf("failed to create test group: %v", err)
	}
	return group
}

// AddAccountToGroup sets the account's group membership directly.
func AddAccountToGroup(t *testing.T, db *gorm.DB, account *models.Account, groupID string) {
	t.Helper()

	account.GroupID = &groupID
	if err := db.Save(account).Error; err != nil {
		t.Fatalf("failed to add account to group: %v", err)
	}
}

// CreateTestTransaction appends a BUY or SELL record to an account's calendar ledger.
func CreateTestTransaction(t *testing.T, db *gorm.DB, accountID string, side models.Side, symbol string, units, unitPrice float64, date time.Time) *models.TransactionRecord {
	t.Helper()

	record := &models.TransactionRecord{
		AccountID:  accountID,
		Symbol:     symbol,
		SymbolType: models.SymbolTypeEquity,
		Side:       side,
		Units:      units,
		UnitPrice:  unitPrice,
		Date:       date,
	}
	if err := db.Create(record).Error; err != nil {
		t.Fatalf("failed to create test transaction: %v", err)
	}
	return record
}

// CreateTestSimulator creates a draft simulator with one symbol priced per round.
func CreateTestSimulator(t *testing.T, db *gorm.DB, ownerAccountID string, startingCash float64, prices models.PriceSeries) *models.Simulator {
	t.Helper()

	sim := &models.Simulator{
		OwnerAccountID:   ownerAccountID,
		Name:             fmt.Sprintf("Test Simulator %d", nextID()),
		State:            models.SimulatorStateDraft,
		RoundDurationSec: 60,
		StartingCash:     startingCash,
	}
	if err := db.Create(sim).Error; err != nil {
		t.Fatalf("failed to create test simulator: %v", err)
	}

	symbol := &models.SimulatorSymbol{
		SimulatorID: sim.ID,
		Symbol:      fmt.Sprintf("SYM%d", nextID()),
		SymbolType:  models.SymbolTypeEquity,
		Prices:      prices,
	}
	if err := db.Create(symbol).Error; err != nil {
		t.Fatalf("failed to create test simulator symbol: %v", err)
	}
	sim.Symbols = []models.SimulatorSymbol{*symbol}

	return sim
}

// LastWeekday returns the most recent weekday at or before the given number
// of days ago, so ledger fixtures never land on a weekend.
func LastWeekday(daysAgo int) time.Time {
	d := time.Now().UTC().AddDate(0, 0, -daysAgo)
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, -1)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}
