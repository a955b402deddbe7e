// Package store defines the persistence contract shared by the ledger and
// rule engine. Implementations must commit a write batch atomically and apply
// balance deltas as true atomic increments, never as read-modify-write.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerflow-dev/ledgerflow/internal/model"
)

// ErrNotFound is returned when a record does not exist. Callers wrap it with
// the entity kind and ID.
var ErrNotFound = errors.New("record not found")

// ErrConflict is returned when a write collides with an existing record ID.
var ErrConflict = errors.New("record already exists")

// Op is a single write belonging to an atomic batch.
type Op interface{ isOp() }

// PutTransaction inserts or replaces a transaction record.
type PutTransaction struct {
	Transaction model.Transaction
}

// RemoveTransaction deletes a transaction record by ID.
type RemoveTransaction struct {
	ID string
}

// AddBalance atomically increments an account's balance fields by the given
// signed amounts.
type AddBalance struct {
	AccountID string
	Current   decimal.Decimal
	Probable  decimal.Decimal
}

func (PutTransaction) isOp()    {}
func (RemoveTransaction) isOp() {}
func (AddBalance) isOp()        {}

// TransactionFilter narrows transaction queries. Zero values are ignored.
// AccountID matches either side of a transaction.
type TransactionFilter struct {
	UserID    string
	AccountID string
	Category  string
	Status    model.TransactionStatus
	From      time.Time
	To        time.Time
}

// RuleFilter narrows rule queries. Zero values are ignored. DueBefore matches
// rules whose NextExecutionAt is set and not after the given time.
type RuleFilter struct {
	UserID     string
	AccountID  string // source account
	References string // matches source or destination
	Trigger    model.TriggerType
	ActiveOnly bool
	DueBefore  time.Time
}

// Store is the persistence boundary. All single-record methods are atomic on
// their own; Apply commits every op in the batch or none of them.
type Store interface {
	CreateAccount(ctx context.Context, a model.Account) error
	GetAccount(ctx context.Context, id string) (model.Account, error)
	ListAccounts(ctx context.Context, userID string) ([]model.Account, error)
	UpdateAccount(ctx context.Context, a model.Account) error

	GetTransaction(ctx context.Context, id string) (model.Transaction, error)
	ListTransactions(ctx context.Context, f TransactionFilter) ([]model.Transaction, error)

	CreateRule(ctx context.Context, r model.AccountRule) error
	GetRule(ctx context.Context, id string) (model.AccountRule, error)
	ListRules(ctx context.Context, f RuleFilter) ([]model.AccountRule, error)
	UpdateRule(ctx context.Context, r model.AccountRule) error

	// MarkRuleExecuted records a successful firing: it atomically increments
	// the execution counter and sets lastExecutedAt (and nextExecutionAt when
	// next is non-nil).
	MarkRuleExecuted(ctx context.Context, id string, executedAt time.Time, next *time.Time) error

	// Apply commits a batch of writes atomically. On error no op has been
	// applied; the caller owns any retry.
	Apply(ctx context.Context, ops []Op) error

	Close(ctx context.Context) error
}
