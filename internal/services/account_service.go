package services

import (
	"errors"

	"gorm.io/gorm"

	apperrors "papertrade/internal/errors"
	"papertrade/internal/models"
)

// accountService handles account-related business logic.
type accountService struct {
	db *gorm.DB
}

// NewAccountService creates a new AccountServicer.
func NewAccountService(db *gorm.DB) AccountServicer {
	return &accountService{db: db}
}

// CreateAccount creates a trading account in the given mode.
func (s *accountService) CreateAccount(displayName string, mode models.AccountMode, startingCash float64) (*models.Account, error) {
	if displayName == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Display name is required")
	}
	if startingCash < 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Starting cash cannot be negative")
	}
	if mode == "" {
		mode = models.AccountModeBasic
	}

	account := &models.Account{
		DisplayName:  displayName,
		Mode:         mode,
		StartingCash: startingCash,
		IsActive:     true,
	}
	account.State.CashOnHand = startingCash

	if err := s.db.Create(account).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return account, nil
}

// GetAccountByID returns an account by id.
func (s *accountService) GetAccountByID(accountID string) (*models.Account, error) {
	var account models.Account
	if err := s.db.First(&account, "id = ?", accountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAccountNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &account, nil
}

// JoinGroup sets the account's group membership. The rollup pass derives
// membership from this field, so the change takes effect on the next pass.
func (s *accountService) JoinGroup(accountID, groupID string) error {
	account, err := s.GetAccountByID(accountID)
	if err != nil {
		return err
	}

	var group models.Group
	if err := s.db.First(&group, "id = ?", groupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrGroupNotFound
		}
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if group.IsClosed {
		return apperrors.WithMessage(apperrors.ErrForbidden, "Group is closed")
	}

	if err := s.db.Model(account).Update("group_id", groupID).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// LeaveGroup clears the account's group membership.
func (s *accountService) LeaveGroup(accountID string) error {
	account, err := s.GetAccountByID(accountID)
	if err != nil {
		return err
	}
	if err := s.db.Model(account).Update("group_id", nil).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}
