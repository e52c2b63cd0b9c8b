package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "papertrade/internal/errors"
	"papertrade/internal/middleware"
	"papertrade/internal/models"
	"papertrade/internal/services"
)

// AccountHandler handles account-related requests.
type AccountHandler struct {
	accountService services.AccountServicer
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountService services.AccountServicer) *AccountHandler {
	return &AccountHandler{accountService: accountService}
}

// CreateAccountRequest represents the request payload for creating an account.
type CreateAccountRequest struct {
	DisplayName  string             `json:"display_name" binding:"required,min=1,max=100"`
	Mode         models.AccountMode `json:"mode" binding:"omitempty,account_mode"`
	StartingCash float64            `json:"starting_cash" binding:"gte=0"`
}

// JoinGroupRequest represents the request payload for joining a group.
type JoinGroupRequest struct {
	GroupID string `json:"group_id" binding:"required,uuid"`
}

// CreateAccount handles the creation of a new trading account. The response
// includes a signed token for local use; deployments fronted by the auth
// service ignore it.
func (h *AccountHandler) CreateAccount(c *gin.Context) {
	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	if req.Mode == "" {
		req.Mode = models.AccountModeBasic
	}

	account, err := h.accountService.CreateAccount(req.DisplayName, req.Mode, req.StartingCash)
	if err != nil {
		respondWithError(c, err)
		return
	}

	token, err := middleware.GenerateAccountToken(account.ID)
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return
	}

	c.JSON(http.StatusCreated, gin.H{"account": account, "token": token})
}

// GetAccount returns the authenticated account.
func (h *AccountHandler) GetAccount(c *gin.Context) {
	accountID, err := getAccountID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	account, err := h.accountService.GetAccountByID(accountID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"account": account})
}

// JoinGroup adds the authenticated account to a group.
func (h *AccountHandler) JoinGroup(c *gin.Context) {
	accountID, err := getAccountID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req JoinGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	if err := h.accountService.JoinGroup(accountID, req.GroupID); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Joined group"})
}

// LeaveGroup removes the authenticated account from its group.
func (h *AccountHandler) LeaveGroup(c *gin.Context) {
	accountID, err := getAccountID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.accountService.LeaveGroup(accountID); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Left group"})
}
