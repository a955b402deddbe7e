// Package ledger keeps account balances consistent with recorded transaction
// history. Every mutation commits the record change and its balance deltas as
// one atomic store batch.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ledgerflow-dev/ledgerflow/internal/id"
	"github.com/ledgerflow-dev/ledgerflow/internal/model"
	"github.com/ledgerflow-dev/ledgerflow/internal/store"
)

// Service is the transaction ledger.
type Service struct {
	store store.Store
	log   *zap.Logger
	now   func() time.Time
}

// NewService creates a ledger Service. A nil logger is replaced by a no-op.
func NewService(st store.Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: st, log: log, now: time.Now}
}

// CreateParams holds parameters for recording a transaction.
type CreateParams struct {
	UserID               string
	Type                 model.TransactionType
	Amount               decimal.Decimal
	Status               model.TransactionStatus // defaults to completed
	SourceAccountID      string
	DestinationAccountID string
	Category             string
	Description          string
	Date                 time.Time // defaults to now
	RuleID               string    // set by the rule engine for generated transfers
}

// Create validates and records a transaction, applying its balance effect in
// the same atomic batch. User-entered transactions carry no funds-sufficiency
// check; a manual expense may drive an account negative. The rule engine
// checks funds before it generates transfers.
func (s *Service) Create(ctx context.Context, p CreateParams) (model.Transaction, error) {
	now := s.now()
	status := p.Status
	if status == "" {
		status = model.StatusCompleted
	}
	date := p.Date
	if date.IsZero() {
		date = now
	}

	tx := model.Transaction{
		ID:                   id.New(),
		UserID:               p.UserID,
		Type:                 p.Type,
		Amount:               p.Amount,
		Status:               status,
		SourceAccountID:      p.SourceAccountID,
		DestinationAccountID: p.DestinationAccountID,
		Category:             p.Category,
		Description:          p.Description,
		Date:                 date,
		RuleID:               p.RuleID,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := validateDraft(tx); err != nil {
		return model.Transaction{}, err
	}
	if err := s.checkAccounts(ctx, tx); err != nil {
		return model.Transaction{}, err
	}

	ops := []store.Op{store.PutTransaction{Transaction: tx}}
	ops = append(ops, balanceOps(tx.Effect())...)
	if err := s.store.Apply(ctx, ops); err != nil {
		return model.Transaction{}, fmt.Errorf("recording transaction: %w", err)
	}

	s.log.Info("transaction recorded",
		zap.String("transaction_id", tx.ID),
		zap.String("type", string(tx.Type)),
		zap.String("status", string(tx.Status)),
		zap.String("amount", tx.Amount.String()),
		zap.Bool("rule_generated", tx.RuleGenerated()))
	return tx, nil
}

// UpdateParams holds optional field changes; nil fields are left as stored.
type UpdateParams struct {
	Status      *model.TransactionStatus
	Amount      *decimal.Decimal
	Category    *string
	Description *string
	Date        *time.Time
}

// Update edits a stored transaction. When status or amount changes, the
// reversal of the old balance effect and the application of the new one
// commit together with the field updates in one batch.
func (s *Service) Update(ctx context.Context, txID string, u UpdateParams) (model.Transaction, error) {
	old, err := s.store.GetTransaction(ctx, txID)
	if err != nil {
		return model.Transaction{}, err
	}

	next := old
	if u.Status != nil {
		next.Status = *u.Status
	}
	if u.Amount != nil {
		next.Amount = *u.Amount
	}
	if u.Category != nil {
		next.Category = *u.Category
	}
	if u.Description != nil {
		next.Description = *u.Description
	}
	if u.Date != nil {
		next.Date = *u.Date
	}
	next.UpdatedAt = s.now()

	if err := validateDraft(next); err != nil {
		return model.Transaction{}, err
	}

	// Net change: reverse the old effect, apply the new one. Unchanged
	// accounts drop out in the merge.
	deltas := model.MergeDeltas(model.NegateDeltas(old.Effect()), next.Effect())

	ops := []store.Op{store.PutTransaction{Transaction: next}}
	ops = append(ops, balanceOps(deltas)...)
	if err := s.store.Apply(ctx, ops); err != nil {
		return model.Transaction{}, fmt.Errorf("updating transaction: %w", err)
	}

	s.log.Info("transaction updated",
		zap.String("transaction_id", next.ID),
		zap.String("status", string(next.Status)),
		zap.String("amount", next.Amount.String()))
	return next, nil
}

// Delete reverses the stored transaction's balance effect and removes the
// record in one batch.
func (s *Service) Delete(ctx context.Context, txID string) error {
	old, err := s.store.GetTransaction(ctx, txID)
	if err != nil {
		return err
	}

	ops := balanceOps(model.NegateDeltas(old.Effect()))
	ops = append(ops, store.RemoveTransaction{ID: txID})
	if err := s.store.Apply(ctx, ops); err != nil {
		return fmt.Errorf("deleting transaction: %w", err)
	}

	s.log.Info("transaction deleted", zap.String("transaction_id", txID))
	return nil
}

// Get returns a transaction by ID.
func (s *Service) Get(ctx context.Context, txID string) (model.Transaction, error) {
	return s.store.GetTransaction(ctx, txID)
}

// List returns transactions matching the filter, newest first. This is the
// read surface for the presentation and analytics collaborators.
func (s *Service) List(ctx context.Context, f store.TransactionFilter) ([]model.Transaction, error) {
	return s.store.ListTransactions(ctx, f)
}

// checkAccounts verifies every referenced account exists, belongs to the
// transaction's user and, for transfers, that both sides use the same
// currency (conversion is out of scope, so a mismatch is rejected).
func (s *Service) checkAccounts(ctx context.Context, tx model.Transaction) error {
	var src, dst model.Account
	var err error
	if tx.SourceAccountID != "" {
		if src, err = s.store.GetAccount(ctx, tx.SourceAccountID); err != nil {
			return err
		}
		if src.UserID != tx.UserID {
			return ValidationError{Field: "sourceAccountId", Reason: "account belongs to a different user"}
		}
	}
	if tx.DestinationAccountID != "" {
		if dst, err = s.store.GetAccount(ctx, tx.DestinationAccountID); err != nil {
			return err
		}
		if dst.UserID != tx.UserID {
			return ValidationError{Field: "destinationAccountId", Reason: "account belongs to a different user"}
		}
	}
	if tx.Type == model.TransactionTypeTransfer && src.Currency != dst.Currency {
		return ValidationError{Field: "accounts", Reason: fmt.Sprintf(
			"transfer between currencies %s and %s is not supported", src.Currency, dst.Currency)}
	}
	return nil
}

func balanceOps(deltas []model.BalanceDelta) []store.Op {
	var ops []store.Op
	for _, d := range deltas {
		if d.IsZero() {
			continue
		}
		ops = append(ops, store.AddBalance{AccountID: d.AccountID, Current: d.Current, Probable: d.Probable})
	}
	return ops
}
