// Package accounts owns Account records. Balances are never written here
// directly; they change only through ledger-applied deltas.
package accounts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ledgerflow-dev/ledgerflow/internal/id"
	"github.com/ledgerflow-dev/ledgerflow/internal/model"
	"github.com/ledgerflow-dev/ledgerflow/internal/store"
)

const defaultCurrency = "USD"

// Service provides account CRUD on top of the store.
type Service struct {
	store store.Store
	log   *zap.Logger
	now   func() time.Time
}

// NewService creates an accounts Service. A nil logger is replaced by a no-op.
func NewService(st store.Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: st, log: log, now: time.Now}
}

// CreateParams holds parameters for opening an account.
type CreateParams struct {
	UserID         string
	Name           string
	Type           model.AccountType
	InitialBalance decimal.Decimal
	Currency       string
}

// Create opens a new account. Both balance fields start at the initial
// balance.
func (s *Service) Create(ctx context.Context, p CreateParams) (model.Account, error) {
	if p.UserID == "" {
		return model.Account{}, fmt.Errorf("user id is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return model.Account{}, fmt.Errorf("account name is required")
	}
	if !p.Type.Valid() {
		return model.Account{}, fmt.Errorf("unknown account type %q", p.Type)
	}
	currency := p.Currency
	if currency == "" {
		currency = defaultCurrency
	}

	now := s.now()
	a := model.Account{
		ID:              id.New(),
		UserID:          p.UserID,
		Name:            strings.TrimSpace(p.Name),
		Type:            p.Type,
		InitialBalance:  p.InitialBalance,
		CurrentBalance:  p.InitialBalance,
		ProbableBalance: p.InitialBalance,
		Currency:        strings.ToUpper(currency),
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.CreateAccount(ctx, a); err != nil {
		return model.Account{}, fmt.Errorf("creating account: %w", err)
	}

	s.log.Info("account created",
		zap.String("account_id", a.ID),
		zap.String("type", string(a.Type)),
		zap.String("currency", a.Currency))
	return a, nil
}

// Get returns an account by ID.
func (s *Service) Get(ctx context.Context, accountID string) (model.Account, error) {
	return s.store.GetAccount(ctx, accountID)
}

// List returns all of a user's accounts, including deactivated ones.
func (s *Service) List(ctx context.Context, userID string) ([]model.Account, error) {
	return s.store.ListAccounts(ctx, userID)
}

// Rename changes an account's display name.
func (s *Service) Rename(ctx context.Context, accountID, name string) (model.Account, error) {
	if strings.TrimSpace(name) == "" {
		return model.Account{}, fmt.Errorf("account name is required")
	}
	a, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return model.Account{}, err
	}
	a.Name = strings.TrimSpace(name)
	a.UpdatedAt = s.now()
	if err := s.store.UpdateAccount(ctx, a); err != nil {
		return model.Account{}, fmt.Errorf("renaming account: %w", err)
	}
	return a, nil
}

// SetActive toggles the account's active flag. Deactivation is the only way
// an account leaves service; balances and history stay in place.
func (s *Service) SetActive(ctx context.Context, accountID string, active bool) (model.Account, error) {
	a, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return model.Account{}, err
	}
	if a.IsActive == active {
		return a, nil
	}
	a.IsActive = active
	a.UpdatedAt = s.now()
	if err := s.store.UpdateAccount(ctx, a); err != nil {
		return model.Account{}, fmt.Errorf("toggling account: %w", err)
	}

	s.log.Info("account active flag changed",
		zap.String("account_id", a.ID),
		zap.Bool("active", active))
	return a, nil
}

// Deactivate soft-deletes an account.
func (s *Service) Deactivate(ctx context.Context, accountID string) (model.Account, error) {
	return s.SetActive(ctx, accountID, false)
}

// RulesReferencing returns the rules that use the account as source or
// destination. Read query for external collaborators; no business rules here.
func (s *Service) RulesReferencing(ctx context.Context, accountID string) ([]model.AccountRule, error) {
	return s.store.ListRules(ctx, store.RuleFilter{References: accountID})
}
