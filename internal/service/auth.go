package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"digiwallet/internal/model"
	"digiwallet/internal/store"
	"digiwallet/pkg/logger"
)

// SessionStore maps opaque session tokens to account ids with a TTL.
type SessionStore interface {
	Put(ctx context.Context, token, accountID string, ttl time.Duration) error
	// Get returns the account id for token, or "" when the token is
	// unknown or expired.
	Get(ctx context.Context, token string) (string, error)
	Delete(ctx context.Context, token string) error
}

// AuthService issues and resolves sessions. The ledger itself never touches
// credentials; it trusts the account id this service yields.
type AuthService struct {
	store      store.Store
	sessions   SessionStore
	sessionTTL time.Duration
}

func NewAuthService(st store.Store, sessions SessionStore, sessionTTL time.Duration) *AuthService {
	return &AuthService{
		store:      st,
		sessions:   sessions,
		sessionTTL: sessionTTL,
	}
}

type RegisterRequest struct {
	Name     string
	Email    string
	Phone    string
	Password string
}

// Register creates an account with a zero balance.
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*model.Account, error) {
	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	phone := strings.TrimSpace(req.Phone)

	if name == "" || email == "" || phone == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: name, email, phone and password are required", ErrValidation)
	}
	if !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: invalid email address", ErrValidation)
	}
	if len(req.Password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", ErrValidation)
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	account := &model.Account{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		Phone:        phone,
		PasswordHash: string(passwordHash),
		Balance:      decimal.Zero,
		Status:       model.AccountStatusActive,
	}

	if err := s.store.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, store.ErrDuplicateContact) {
			return nil, ErrDuplicateContact
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	logger.Info("account registered", logger.Fields{
		"account_id": account.ID,
		"email":      account.Email,
	})
	return account, nil
}

// Login verifies credentials against the account matching contact (email or
// phone) and issues a session token.
func (s *AuthService) Login(ctx context.Context, contact, password string) (string, *model.Account, error) {
	contact = strings.TrimSpace(contact)
	if contact == "" || password == "" {
		return "", nil, fmt.Errorf("%w: contact and password are required", ErrValidation)
	}

	account, err := s.store.FindAccountByContact(ctx, contact)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) || errors.Is(err, store.ErrAmbiguousContact) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if account.Status != model.AccountStatusActive {
		return "", nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token := uuid.NewString()
	if err := s.sessions.Put(ctx, token, account.ID, s.sessionTTL); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return token, account, nil
}

// CurrentAccountID resolves a session token to the account that owns it.
func (s *AuthService) CurrentAccountID(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrSessionExpired
	}
	accountID, err := s.sessions.Get(ctx, token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if accountID == "" {
		return "", ErrSessionExpired
	}
	return accountID, nil
}

func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.Delete(ctx, token)
}
