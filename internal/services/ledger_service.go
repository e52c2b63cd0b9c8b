package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "papertrade/internal/errors"
	"papertrade/internal/marketdata"
	"papertrade/internal/metrics"
	"papertrade/internal/models"
	"papertrade/internal/money"
	"papertrade/internal/pagination"
	"papertrade/internal/valuation"
)

// ledgerService handles ledger reads and the transaction writer.
type ledgerService struct {
	db             *gorm.DB
	provider       marketdata.Provider
	validator      *OrderValidator
	accountService AccountServicer
	feeRate        float64
}

// NewLedgerService creates a new LedgerServicer.
func NewLedgerService(db *gorm.DB, provider marketdata.Provider, validator *OrderValidator, accountService AccountServicer, feeRate float64) LedgerServicer {
	return &ledgerService{
		db:             db,
		provider:       provider,
		validator:      validator,
		accountService: accountService,
		feeRate:        feeRate,
	}
}

// shiftOffWeekend moves a weekend date one day back. Applied twice by the
// caller so a Sunday lands on Friday via Saturday.
func shiftOffWeekend(d time.Time) time.Time {
	if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return d.AddDate(0, 0, -1)
	}
	return d
}

// GetLedger returns an account's calendar ledger in ledger order.
func (s *ledgerService) GetLedger(accountID string) ([]models.TransactionRecord, error) {
	var ledger []models.TransactionRecord
	if err := s.db.
		Where("account_id = ? AND simulator_id IS NULL", accountID).
		Order("date ASC, created_at ASC").
		Find(&ledger).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return ledger, nil
}

// CreateTransaction validates and appends one transaction to the account's
// calendar ledger. The append is the only write; the persisted portfolio
// state is refreshed separately by callers that need it.
func (s *ledgerService) CreateTransaction(ctx context.Context, accountID string, order OrderRequest) (*models.TransactionRecord, error) {
	account, err := s.accountService.GetAccountByID(accountID)
	if err != nil {
		return nil, err
	}

	ledger, err := s.GetLedger(accountID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrLedgerNotFound, err)
	}

	// Weekend orders execute at the preceding business day's close.
	// Shift twice: a Sunday first lands on Saturday.
	order.Date = shiftOffWeekend(shiftOffWeekend(order.Date))

	closingPrice, err := s.provider.ClosingPrice(ctx, marketdata.Symbol{Ticker: order.Symbol, Type: order.SymbolType}, order.Date)
	if err != nil {
		if errors.Is(err, marketdata.ErrPriceUnavailable) {
			return nil, apperrors.ErrSymbolNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if err := s.validator.Validate(account, ledger, order, closingPrice); err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			metrics.OrderRejections.WithLabelValues(appErr.Code).Inc()
		}
		return nil, err
	}

	unitPrice := closingPrice
	if order.CustomTotalValue != nil && account.Mode.AllowsCustomPrice() {
		unitPrice = *order.CustomTotalValue / order.Units
	}

	var returnValue, returnPct float64
	if order.Side == models.SideSell {
		held := valuation.HoldingFor(ledger, order.Symbol)
		// The break-even is a currency amount like every other price on the
		// record, so it is rounded before the realized return is computed.
		breakEven := money.RoundCurrency(held.BreakEvenPrice())
		returnValue = money.RoundCurrency((unitPrice - breakEven) * order.Units)
		returnPct = money.Growth(unitPrice, breakEven)
	}

	var fee float64
	if account.Mode.SimulatesFees() {
		fee = money.RoundCurrency(s.feeRate * money.Notional(order.Units, unitPrice))
	}

	record := &models.TransactionRecord{
		AccountID:        accountID,
		Symbol:           order.Symbol,
		SymbolType:       order.SymbolType,
		Side:             order.Side,
		Units:            order.Units,
		UnitPrice:        unitPrice,
		Fee:              fee,
		ReturnValue:      returnValue,
		ReturnPercentage: returnPct,
		Date:             order.Date,
	}
	if err := s.db.Create(record).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	metrics.OrdersCreated.WithLabelValues(string(order.Side)).Inc()
	return record, nil
}

// GetAccountTransactions returns a paginated ledger listing, newest first.
func (s *ledgerService) GetAccountTransactions(accountID string, page pagination.PageRequest) (*pagination.PageResponse[models.TransactionRecord], error) {
	if _, err := s.accountService.GetAccountByID(accountID); err != nil {
		return nil, err
	}

	page.Defaults()

	base := s.db.Model(&models.TransactionRecord{}).
		Where("account_id = ? AND simulator_id IS NULL", accountID)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var records []models.TransactionRecord
	if err := base.Order("date DESC, created_at DESC").
		Scopes(pagination.Paginate(page)).Find(&records).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(records, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// valuate loads the account's ledger, fetches quotes for its positions, and
// runs the valuation fold.
func (s *ledgerService) valuate(ctx context.Context, account *models.Account) (*valuation.Result, error) {
	ledger, err := s.GetLedger(account.ID)
	if err != nil {
		return nil, err
	}

	positions := valuation.Positions(ledger)
	symbols := make([]marketdata.Symbol, 0, len(positions))
	for _, h := range positions {
		symbols = append(symbols, marketdata.Symbol{Ticker: h.Symbol, Type: h.SymbolType})
	}

	prices, err := s.provider.Quotes(ctx, symbols)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := valuation.Valuate(account.StartingCash, ledger, prices, time.Now())
	return &result, nil
}

// GetPortfolio returns a fresh valuation of the account's calendar ledger.
func (s *ledgerService) GetPortfolio(ctx context.Context, accountID string) (*valuation.Result, error) {
	account, err := s.accountService.GetAccountByID(accountID)
	if err != nil {
		return nil, err
	}
	return s.valuate(ctx, account)
}

// RefreshState revalues the account and persists the resulting state on the
// account row. Safe to call redundantly: the valuation recomputes from the
// ledger, it never patches the stored state incrementally.
func (s *ledgerService) RefreshState(ctx context.Context, accountID string) (*models.PortfolioState, error) {
	account, err := s.accountService.GetAccountByID(accountID)
	if err != nil {
		return nil, err
	}

	result, err := s.valuate(ctx, account)
	if err != nil {
		return nil, err
	}

	account.State = result.State
	if err := s.db.Save(account).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &result.State, nil
}
