package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "papertrade/internal/errors"
	"papertrade/internal/models"
	"papertrade/internal/pagination"
	"papertrade/internal/services"
)

// OrderHandler handles order placement and ledger reads.
type OrderHandler struct {
	ledgerService services.LedgerServicer
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(ledgerService services.LedgerServicer) *OrderHandler {
	return &OrderHandler{ledgerService: ledgerService}
}

// PlaceOrderRequest represents the request payload for placing an order.
// Date is the trade date in YYYY-MM-DD form; it may be in the past up to the
// configured lookback window.
type PlaceOrderRequest struct {
	Symbol           string            `json:"symbol" binding:"required,min=1,max=20"`
	SymbolType       models.SymbolType `json:"symbol_type" binding:"required,symbol_type"`
	Side             models.Side       `json:"side" binding:"required,side"`
	Units            float64           `json:"units" binding:"required"`
	Date             string            `json:"date" binding:"required"`
	CustomTotalValue *float64          `json:"custom_total_value" binding:"omitempty,gt=0"`
}

// PlaceOrder validates and appends a transaction to the account's ledger.
func (h *OrderHandler) PlaceOrder(c *gin.Context) {
	accountID, err := getAccountID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		respondWithError(c, apperrors.ErrDateInvalid)
		return
	}

	record, err := h.ledgerService.CreateTransaction(c.Request.Context(), accountID, services.OrderRequest{
		Symbol:           req.Symbol,
		SymbolType:       req.SymbolType,
		Side:             req.Side,
		Units:            req.Units,
		Date:             date,
		CustomTotalValue: req.CustomTotalValue,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"transaction": record})
}

// ListTransactions returns the account's ledger, newest first, paginated.
func (h *OrderHandler) ListTransactions(c *gin.Context) {
	accountID, err := getAccountID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	resp, err := h.ledgerService.GetAccountTransactions(accountID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetPortfolio values the account's ledger against live quotes.
func (h *OrderHandler) GetPortfolio(c *gin.Context) {
	accountID, err := getAccountID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.ledgerService.GetPortfolio(c.Request.Context(), accountID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"state":    result.State,
		"holdings": result.Holdings,
	})
}

// RefreshPortfolio revalues the ledger and persists the state copy.
func (h *OrderHandler) RefreshPortfolio(c *gin.Context) {
	accountID, err := getAccountID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	state, err := h.ledgerService.RefreshState(c.Request.Context(), accountID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"state": state})
}
