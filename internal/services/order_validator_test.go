package services

import (
	"testing"
	"time"

	"papertrade/internal/models"
	"papertrade/internal/testutil"
)

func basicAccount(startingCash float64) *models.Account {
	return &models.Account{
		DisplayName:  "validator-test",
		Mode:         models.AccountModeBasic,
		StartingCash: startingCash,
	}
}

// lastWeekday returns the most recent weekday strictly in the past.
func lastWeekday(daysAgo int) time.Time {
	d := time.Now().UTC().AddDate(0, 0, -daysAgo)
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

func TestValidateUnits(t *testing.T) {
	v := NewOrderValidator(5, testFeeRate)
	account := basicAccount(10000)

	t.Run("zero_units", func(t *testing.T) {
		err := v.Validate(account, nil, OrderRequest{
			Symbol: "ACME", SymbolType: models.SymbolTypeEquity,
			Side: models.SideBuy, Units: 0, Date: lastWeekday(1),
		}, 50)
		testutil.AssertAppError(t, err, "UNITS_NOT_POSITIVE")
	})

	t.Run("negative_units", func(t *testing.T) {
		err := v.Validate(account, nil, OrderRequest{
			Symbol: "ACME", SymbolType: models.SymbolTypeEquity,
			Side: models.SideBuy, Units: -3, Date: lastWeekday(1),
		}, 50)
		testutil.AssertAppError(t, err, "UNITS_NOT_POSITIVE")
	})

	t.Run("fractional_equity_units", func(t *testing.T) {
		err := v.Validate(account, nil, OrderRequest{
			Symbol: "ACME", SymbolType: models.SymbolTypeEquity,
			Side: models.SideBuy, Units: 2.5, Date: lastWeekday(1),
		}, 50)
		testutil.AssertAppError(t, err, "UNITS_NOT_INTEGER")
	})

	t.Run("fractional_crypto_units_allowed", func(t *testing.T) {
		err := v.Validate(account, nil, OrderRequest{
			Symbol: "BTC-USD", SymbolType: models.SymbolTypeCrypto,
			Side: models.SideBuy, Units: 0.25, Date: lastWeekday(1),
		}, 100)
		testutil.AssertNoError(t, err)
	})
}

func TestValidateDate(t *testing.T) {
	v := NewOrderValidator(5, testFeeRate)
	account := basicAccount(10000)

	t.Run("zero_date", func(t *testing.T) {
		err := v.Validate(account, nil, OrderRequest{
			Symbol: "ACME", SymbolType: models.SymbolTypeEquity,
			Side: models.SideBuy, Units: 1,
		}, 50)
		testutil.AssertAppError(t, err, "DATE_INVALID")
	})

	t.Run("future_date", func(t *testing.T) {
		err := v.Validate(account, nil, OrderRequest{
			Symbol: "ACME", SymbolType: models.SymbolTypeEquity,
			Side: models.SideBuy, Units: 1, Date: time.Now().AddDate(0, 0, 7),
		}, 50)
		testutil.AssertAppError(t, err, "DATE_IN_FUTURE")
	})

	t.Run("weekend_date", func(t *testing.T) {
		d := time.Now().UTC().AddDate(0, 0, -1)
		for d.Weekday() != time.Saturday {
			d = d.AddDate(0, 0, -1)
		}
		err := v.Validate(account, nil, OrderRequest{
			Symbol: "ACME", SymbolType: models.SymbolTypeEquity,
			Side: models.SideBuy, Units: 1, Date: d,
		}, 50)
		testutil.AssertAppError(t, err, "DATE_ON_WEEKEND")
	})

	t.Run("too_old", func(t *testing.T) {
		err := v.Validate(account, nil, OrderRequest{
			Symbol: "ACME", SymbolType: models.SymbolTypeEquity,
			Side: models.SideBuy, Units: 1, Date: lastWeekday(6 * 365),
		}, 50)
		testutil.AssertAppError(t, err, "DATE_TOO_OLD")
	})
}

func TestValidateCashCeiling(t *testing.T) {
	v := NewOrderValidator(5, testFeeRate)

	t.Run("insufficient_cash", func(t *testing.T) {
		err := v.Validate(basicAccount(100), nil, OrderRequest{
			Symbol: "ACME", SymbolType: models.SymbolTypeEquity,
			Side: models.SideBuy, Units: 3, Date: lastWeekday(1),
		}, 50)
		testutil.AssertAppError(t, err, "INSUFFICIENT_CASH")
	})

	// A fee-simulating account pays notional plus fee, so cash covering only
	// the notional is not enough to keep cash on hand non-negative.
	t.Run("exact_notional_leaves_fee_uncovered", func(t *testing.T) {
		err := v.Validate(basicAccount(150), nil, OrderRequest{
			Symbol: "ACME", SymbolType: models.SymbolTypeEquity,
			Side: models.SideBuy, Units: 3, Date: lastWeekday(1),
		}, 50)
		testutil.AssertAppError(t, err, "INSUFFICIENT_CASH")
	})

	t.Run("notional_plus_fee_passes", func(t *testing.T) {
		// fee on a 150 notional at 0.25% rounds to 0.38
		err := v.Validate(basicAccount(150.38), nil, OrderRequest{
			Symbol: "ACME", SymbolType: models.SymbolTypeEquity,
			Side: models.SideBuy, Units: 3, Date: lastWeekday(1),
		}, 50)
		testutil.AssertNoError(t, err)
	})

	t.Run("custom_mode_has_no_ceiling", func(t *testing.T) {
		account := basicAccount(100)
		account.Mode = models.AccountModeCustom
		err := v.Validate(account, nil, OrderRequest{
			Symbol: "ACME", SymbolType: models.SymbolTypeEquity,
			Side: models.SideBuy, Units: 100, Date: lastWeekday(1),
		}, 50)
		testutil.AssertNoError(t, err)
	})

	t.Run("prior_buys_consume_cash", func(t *testing.T) {
		ledger := []models.TransactionRecord{
			{Symbol: "GLOBEX", SymbolType: models.SymbolTypeEquity, Side: models.SideBuy, Units: 10, UnitPrice: 90, Date: lastWeekday(3)},
		}
		err := v.Validate(basicAccount(1000), ledger, OrderRequest{
			Symbol: "ACME", SymbolType: models.SymbolTypeEquity,
			Side: models.SideBuy, Units: 3, Date: lastWeekday(1),
		}, 50)
		testutil.AssertAppError(t, err, "INSUFFICIENT_CASH")
	})
}

func TestValidateUnitAvailability(t *testing.T) {
	v := NewOrderValidator(5, testFeeRate)
	account := basicAccount(10000)

	ledger := []models.TransactionRecord{
		{Symbol: "ACME", SymbolType: models.SymbolTypeEquity, Side: models.SideBuy, Units: 5, UnitPrice: 40, Date: lastWeekday(5)},
		{Symbol: "ACME", SymbolType: models.SymbolTypeEquity, Side: models.SideSell, Units: 2, UnitPrice: 45, Date: lastWeekday(3)},
	}

	t.Run("sell_within_held", func(t *testing.T) {
		err := v.Validate(account, ledger, OrderRequest{
			Symbol: "ACME", SymbolType: models.SymbolTypeEquity,
			Side: models.SideSell, Units: 3, Date: lastWeekday(1),
		}, 50)
		testutil.AssertNoError(t, err)
	})

	t.Run("sell_exceeds_held", func(t *testing.T) {
		err := v.Validate(account, ledger, OrderRequest{
			Symbol: "ACME", SymbolType: models.SymbolTypeEquity,
			Side: models.SideSell, Units: 4, Date: lastWeekday(1),
		}, 50)
		testutil.AssertAppError(t, err, "INSUFFICIENT_UNITS")
	})

	t.Run("sell_never_held", func(t *testing.T) {
		err := v.Validate(account, ledger, OrderRequest{
			Symbol: "GLOBEX", SymbolType: models.SymbolTypeEquity,
			Side: models.SideSell, Units: 1, Date: lastWeekday(1),
		}, 50)
		testutil.AssertAppError(t, err, "INSUFFICIENT_UNITS")
	})
}

func TestValidateRoundOrder(t *testing.T) {
	v := NewOrderValidator(5, testFeeRate)

	t.Run("no_date_required", func(t *testing.T) {
		err := v.ValidateRoundOrder(10000, nil, OrderRequest{
			Symbol: "ACME", SymbolType: models.SymbolTypeEquity,
			Side: models.SideBuy, Units: 5,
		}, 50)
		testutil.AssertNoError(t, err)
	})

	t.Run("ceiling_always_enforced", func(t *testing.T) {
		err := v.ValidateRoundOrder(100, nil, OrderRequest{
			Symbol: "ACME", SymbolType: models.SymbolTypeEquity,
			Side: models.SideBuy, Units: 5,
		}, 50)
		testutil.AssertAppError(t, err, "INSUFFICIENT_CASH")
	})

	t.Run("sell_requires_units", func(t *testing.T) {
		err := v.ValidateRoundOrder(10000, nil, OrderRequest{
			Symbol: "ACME", SymbolType: models.SymbolTypeEquity,
			Side: models.SideSell, Units: 1,
		}, 50)
		testutil.AssertAppError(t, err, "INSUFFICIENT_UNITS")
	})
}
