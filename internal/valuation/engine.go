// Package valuation folds an append-only transaction ledger and a price
// vector into a point-in-time portfolio state. The fold is pure: no stores
// are touched, and the same ledger and prices always produce bit-identical
// output, which is what makes batch retries safe.
package valuation

import (
	"time"

	"papertrade/internal/logger"
	"papertrade/internal/models"
	"papertrade/internal/money"
)

// Result is the output of one valuation: the derived portfolio state and
// the surviving holdings, in first-acquired order.
type Result struct {
	State    models.PortfolioState
	Holdings []models.Holding
}

// Valuate folds the ledger in ledger order, then joins the surviving
// holdings against the supplied price vector.
//
// SELL records reduce the invested amount proportionally at the current
// weighted-average cost, not at original lot cost. A holding whose units
// reach exactly zero is discarded. A holding whose symbol is missing from
// the price vector is dropped with a warning; the rest of the valuation
// proceeds.
func Valuate(startingCash float64, ledger []models.TransactionRecord, prices map[string]float64, asOf time.Time) Result {
	var (
		positions []*models.Holding
		index     = make(map[string]*models.Holding)

		cash      = startingCash
		realized  float64
		soldCost  float64
		feesPaid  float64
		buyCount  int
		sellCount int

		firstDate *time.Time
		lastDate  *time.Time
	)

	for i := range ledger {
		rec := &ledger[i]
		notional := rec.Units * rec.UnitPrice

		switch rec.Side {
		case models.SideBuy:
			h, ok := index[rec.Symbol]
			if !ok {
				h = &models.Holding{Symbol: rec.Symbol, SymbolType: rec.SymbolType}
				positions = append(positions, h)
				index[rec.Symbol] = h
			}
			h.Units += rec.Units
			h.Invested += notional
			cash -= notional + rec.Fee
			buyCount++

		case models.SideSell:
			h, ok := index[rec.Symbol]
			if !ok || h.Units < rec.Units {
				// A validated ledger never sells more than it holds; a record
				// that does is a data-integrity problem, not a valuation error.
				logger.Get().Warnw("sell exceeds held units, record skipped",
					"transaction_id", rec.ID,
					"symbol", rec.Symbol,
				)
				continue
			}
			removed := h.Invested * (rec.Units / h.Units)
			realized += notional - removed
			soldCost += removed
			h.Invested -= removed
			h.Units -= rec.Units
			if h.Units == 0 {
				h.Invested = 0
			}
			cash += notional - rec.Fee
			sellCount++

		default:
			logger.Get().Warnw("unknown transaction side, record skipped",
				"transaction_id", rec.ID,
				"side", rec.Side,
			)
			continue
		}

		feesPaid += rec.Fee
		d := rec.Date
		if firstDate == nil || d.Before(*firstDate) {
			firstDate = &d
		}
		if lastDate == nil || d.After(*lastDate) {
			lastDate = &d
		}
	}

	// Join surviving holdings against the price vector.
	var (
		holdings        []models.Holding
		invested        float64
		holdingsBalance float64
	)
	for _, pos := range positions {
		if pos.Units == 0 {
			continue
		}
		price, ok := prices[pos.Symbol]
		if !ok {
			logger.Get().Warnw("no price for held symbol, holding dropped from valuation",
				"symbol", pos.Symbol,
				"units", pos.Units,
			)
			continue
		}
		h := *pos
		h.Invested = money.RoundCurrency(h.Invested)
		holdings = append(holdings, h)
		invested += pos.Invested
		holdingsBalance += pos.Units * price
	}

	invested = money.RoundCurrency(invested)
	holdingsBalance = money.RoundCurrency(holdingsBalance)
	gainValue := money.RoundCurrency(holdingsBalance - invested)

	state := models.PortfolioState{
		CashOnHand:      money.RoundCurrency(cash),
		Invested:        invested,
		HoldingsBalance: holdingsBalance,

		GainValue:      gainValue,
		GainPercentage: money.Ratio(gainValue, holdingsBalance),

		RealizedGainValue:      money.RoundCurrency(realized),
		RealizedGainPercentage: money.Ratio(realized, soldCost),

		BuyCount:  buyCount,
		SellCount: sellCount,
		FeesPaid:  money.RoundCurrency(feesPaid),

		FirstTransactionAt: firstDate,
		LastTransactionAt:  lastDate,
		SnapshotAt:         asOf,
	}

	return Result{State: state, Holdings: holdings}
}

// Positions folds the ledger into its surviving holdings without pricing
// them. Callers use this to learn which symbols need quotes before running
// the full valuation.
func Positions(ledger []models.TransactionRecord) []models.Holding {
	var (
		positions []*models.Holding
		index     = make(map[string]*models.Holding)
	)
	for i := range ledger {
		rec := &ledger[i]
		switch rec.Side {
		case models.SideBuy:
			h, ok := index[rec.Symbol]
			if !ok {
				h = &models.Holding{Symbol: rec.Symbol, SymbolType: rec.SymbolType}
				positions = append(positions, h)
				index[rec.Symbol] = h
			}
			h.Units += rec.Units
			h.Invested += rec.Units * rec.UnitPrice
		case models.SideSell:
			h, ok := index[rec.Symbol]
			if !ok || h.Units < rec.Units {
				continue
			}
			h.Invested -= h.Invested * (rec.Units / h.Units)
			h.Units -= rec.Units
			if h.Units == 0 {
				h.Invested = 0
			}
		}
	}
	var out []models.Holding
	for _, pos := range positions {
		if pos.Units > 0 {
			out = append(out, *pos)
		}
	}
	return out
}

// HoldingFor returns the running holding of one symbol after folding the
// ledger, or a zero-valued holding when the symbol was never held or has
// been fully sold. Used by pre-trade checks that need the position a new
// order would execute against.
func HoldingFor(ledger []models.TransactionRecord, symbol string) models.Holding {
	h := models.Holding{Symbol: symbol}
	for i := range ledger {
		rec := &ledger[i]
		if rec.Symbol != symbol {
			continue
		}
		switch rec.Side {
		case models.SideBuy:
			h.SymbolType = rec.SymbolType
			h.Units += rec.Units
			h.Invested += rec.Units * rec.UnitPrice
		case models.SideSell:
			if h.Units <= 0 || rec.Units > h.Units {
				continue
			}
			h.Invested -= h.Invested * (rec.Units / h.Units)
			h.Units -= rec.Units
			if h.Units == 0 {
				h.Invested = 0
			}
		}
	}
	return h
}

// CashAfter returns starting cash plus the running cash effect of every
// ledger record: BUY subtracts notional plus fee, SELL adds notional minus fee.
func CashAfter(startingCash float64, ledger []models.TransactionRecord) float64 {
	cash := startingCash
	for i := range ledger {
		rec := &ledger[i]
		notional := rec.Units * rec.UnitPrice
		switch rec.Side {
		case models.SideBuy:
			cash -= notional + rec.Fee
		case models.SideSell:
			cash += notional - rec.Fee
		}
	}
	return cash
}
