package services

import (
	"math"
	"time"

	apperrors "papertrade/internal/errors"
	"papertrade/internal/models"
	"papertrade/internal/money"
	"papertrade/internal/valuation"
)

// OrderValidator runs the pre-flight checks before a transaction is appended
// to a ledger. Checks run in a fixed order and fail fast; each failure is a
// distinct AppError whose message is surfaced verbatim to the requester.
// No state is retained between checks or between calls.
type OrderValidator struct {
	lookbackYears int
	feeRate       float64
}

// NewOrderValidator creates an OrderValidator with the configured lookback
// window and fee rate. The fee rate matters to the cash ceiling: a BUY in a
// fee-simulating account costs notional plus fee, and accepting an order the
// account cannot cover in full would drive cash negative.
func NewOrderValidator(lookbackYears int, feeRate float64) *OrderValidator {
	return &OrderValidator{lookbackYears: lookbackYears, feeRate: feeRate}
}

// Validate checks the order against the account's current ledger state.
// The order date is expected to already be shifted off weekends by the
// caller; a weekend date here is rejected, not corrected.
func (v *OrderValidator) Validate(account *models.Account, ledger []models.TransactionRecord, order OrderRequest, priceOnDate float64) error {
	if order.Units <= 0 {
		return apperrors.ErrUnitsNotPositive
	}

	if !order.SymbolType.FractionalUnits() && order.Units != math.Trunc(order.Units) {
		return apperrors.ErrUnitsNotInteger
	}

	now := time.Now()
	if order.Date.IsZero() {
		return apperrors.ErrDateInvalid
	}
	if order.Date.After(now) {
		return apperrors.ErrDateInFuture
	}
	if wd := order.Date.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return apperrors.ErrDateOnWeekend
	}

	if order.Date.Before(now.AddDate(-v.lookbackYears, 0, 0)) {
		return apperrors.ErrDateTooOld
	}

	if order.Side == models.SideBuy && account.Mode.EnforcesCashCeiling() {
		cash := valuation.CashAfter(account.StartingCash, ledger)
		cost := order.Units * priceOnDate
		if account.Mode.SimulatesFees() {
			cost += money.RoundCurrency(v.feeRate * money.Notional(order.Units, priceOnDate))
		}
		if cash < cost {
			return apperrors.ErrInsufficientCash
		}
	}

	if order.Side == models.SideSell {
		held := valuation.HoldingFor(ledger, order.Symbol)
		if held.Units < order.Units {
			return apperrors.ErrInsufficientUnits
		}
	}

	return nil
}

// ValidateRoundOrder checks a simulator order. Round-indexed ledgers have no
// calendar date, so the date checks do not apply; unit and availability
// checks are the same as the calendar path, and the cash ceiling is always
// enforced because every participant plays with the simulator's fixed
// starting cash.
func (v *OrderValidator) ValidateRoundOrder(startingCash float64, ledger []models.TransactionRecord, order OrderRequest, price float64) error {
	if order.Units <= 0 {
		return apperrors.ErrUnitsNotPositive
	}

	if !order.SymbolType.FractionalUnits() && order.Units != math.Trunc(order.Units) {
		return apperrors.ErrUnitsNotInteger
	}

	if order.Side == models.SideBuy {
		cash := valuation.CashAfter(startingCash, ledger)
		if cash < order.Units*price {
			return apperrors.ErrInsufficientCash
		}
	}

	if order.Side == models.SideSell {
		held := valuation.HoldingFor(ledger, order.Symbol)
		if held.Units < order.Units {
			return apperrors.ErrInsufficientUnits
		}
	}

	return nil
}
