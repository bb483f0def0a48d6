package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"digiwallet/internal/model"
	"digiwallet/internal/store"
	"digiwallet/pkg/logger"
)

var pinPattern = regexp.MustCompile(`^[0-9]{4,6}$`)

// AccountService covers the non-balance side of accounts: profile reads and
// edits, receiver lookup, and soft-disable. It never moves money.
type AccountService struct {
	store store.Store
}

func NewAccountService(st store.Store) *AccountService {
	return &AccountService{store: st}
}

func (s *AccountService) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	account, err := s.store.GetAccount(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return account, nil
}

// LookupByContact resolves an email or phone to the matching account's
// public projection (name only). Balance and secrets never leave through
// this path.
func (s *AccountService) LookupByContact(ctx context.Context, contact string) (*model.AccountPublic, error) {
	contact = strings.TrimSpace(contact)
	if contact == "" {
		return nil, fmt.Errorf("%w: contact is required", ErrValidation)
	}

	account, err := s.store.FindAccountByContact(ctx, contact)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrAccountNotFound):
			return nil, ErrReceiverNotFound
		case errors.Is(err, store.ErrAmbiguousContact):
			return nil, ErrAmbiguousReceiver
		default:
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}
	if account.Status != model.AccountStatusActive {
		return nil, ErrReceiverNotFound
	}

	return account.Public(), nil
}

// UpdateProfile changes the display name and/or transaction PIN. Empty
// arguments leave the corresponding field untouched; balance is never
// writable through this path.
func (s *AccountService) UpdateProfile(ctx context.Context, id, name, pin string) error {
	updates := map[string]interface{}{}

	if name = strings.TrimSpace(name); name != "" {
		updates["name"] = name
	}
	if pin != "" {
		if !pinPattern.MatchString(pin) {
			return fmt.Errorf("%w: PIN must be 4-6 digits", ErrValidation)
		}
		pinHash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		updates["pin_hash"] = string(pinHash)
	}

	if len(updates) == 0 {
		return fmt.Errorf("%w: nothing to update", ErrValidation)
	}

	if err := s.store.UpdateAccountProfile(ctx, id, updates); err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Disable soft-disables the account. Accounts are never deleted; the ledger
// history must keep resolving their ids.
func (s *AccountService) Disable(ctx context.Context, id string) error {
	if err := s.store.SetAccountStatus(ctx, id, model.AccountStatusDisabled); err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	logger.Info("account disabled", logger.Fields{"account_id": id})
	return nil
}
