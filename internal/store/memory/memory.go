// Package memory provides an in-memory Store. It backs tests and the
// `--store memory` mode; data is lost on process exit.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ledgerflow-dev/ledgerflow/internal/model"
	"github.com/ledgerflow-dev/ledgerflow/internal/store"
)

// Store keeps all records in maps guarded by one mutex. A batch is applied
// while the lock is held, so Apply is atomic with respect to every other
// method. Records are copied on the way in and out.
type Store struct {
	mu           sync.RWMutex
	accounts     map[string]model.Account
	transactions map[string]model.Transaction
	rules        map[string]model.AccountRule
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		accounts:     make(map[string]model.Account),
		transactions: make(map[string]model.Transaction),
		rules:        make(map[string]model.AccountRule),
	}
}

// CreateAccount inserts a new account.
func (s *Store) CreateAccount(_ context.Context, a model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[a.ID]; exists {
		return fmt.Errorf("account %s: %w", a.ID, store.ErrConflict)
	}
	s.accounts[a.ID] = a
	return nil
}

// GetAccount returns an account by ID.
func (s *Store) GetAccount(_ context.Context, id string) (model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return model.Account{}, fmt.Errorf("account %s: %w", id, store.ErrNotFound)
	}
	return a, nil
}

// ListAccounts returns all accounts for a user, sorted by creation time.
func (s *Store) ListAccounts(_ context.Context, userID string) ([]model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Account
	for _, a := range s.accounts {
		if userID == "" || a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// UpdateAccount replaces an existing account record.
func (s *Store) UpdateAccount(_ context.Context, a model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[a.ID]; !ok {
		return fmt.Errorf("account %s: %w", a.ID, store.ErrNotFound)
	}
	s.accounts[a.ID] = a
	return nil
}

// GetTransaction returns a transaction by ID.
func (s *Store) GetTransaction(_ context.Context, id string) (model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactions[id]
	if !ok {
		return model.Transaction{}, fmt.Errorf("transaction %s: %w", id, store.ErrNotFound)
	}
	return tx, nil
}

// ListTransactions returns transactions matching the filter, newest first.
func (s *Store) ListTransactions(_ context.Context, f store.TransactionFilter) ([]model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Transaction
	for _, tx := range s.transactions {
		if matchTransaction(tx, f) {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func matchTransaction(tx model.Transaction, f store.TransactionFilter) bool {
	if f.UserID != "" && tx.UserID != f.UserID {
		return false
	}
	if f.AccountID != "" && tx.SourceAccountID != f.AccountID && tx.DestinationAccountID != f.AccountID {
		return false
	}
	if f.Category != "" && tx.Category != f.Category {
		return false
	}
	if f.Status != "" && tx.Status != f.Status {
		return false
	}
	if !f.From.IsZero() && tx.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && tx.Date.After(f.To) {
		return false
	}
	return true
}

// CreateRule inserts a new rule.
func (s *Store) CreateRule(_ context.Context, r model.AccountRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rules[r.ID]; exists {
		return fmt.Errorf("rule %s: %w", r.ID, store.ErrConflict)
	}
	s.rules[r.ID] = r
	return nil
}

// GetRule returns a rule by ID.
func (s *Store) GetRule(_ context.Context, id string) (model.AccountRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rules[id]
	if !ok {
		return model.AccountRule{}, fmt.Errorf("rule %s: %w", id, store.ErrNotFound)
	}
	return r, nil
}

// ListRules returns rules matching the filter, oldest first.
func (s *Store) ListRules(_ context.Context, f store.RuleFilter) ([]model.AccountRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.AccountRule
	for _, r := range s.rules {
		if matchRule(r, f) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func matchRule(r model.AccountRule, f store.RuleFilter) bool {
	if f.UserID != "" && r.UserID != f.UserID {
		return false
	}
	if f.AccountID != "" && r.SourceAccountID != f.AccountID {
		return false
	}
	if f.References != "" && r.SourceAccountID != f.References && r.DestinationAccountID != f.References {
		return false
	}
	if f.Trigger != "" && r.Trigger != f.Trigger {
		return false
	}
	if f.ActiveOnly && !r.IsActive {
		return false
	}
	if !f.DueBefore.IsZero() {
		if r.NextExecutionAt == nil || r.NextExecutionAt.After(f.DueBefore) {
			return false
		}
	}
	return true
}

// UpdateRule replaces an existing rule record.
func (s *Store) UpdateRule(_ context.Context, r model.AccountRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rules[r.ID]; !ok {
		return fmt.Errorf("rule %s: %w", r.ID, store.ErrNotFound)
	}
	s.rules[r.ID] = r
	return nil
}

// MarkRuleExecuted atomically bumps execution bookkeeping for one rule.
func (s *Store) MarkRuleExecuted(_ context.Context, id string, executedAt time.Time, next *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rules[id]
	if !ok {
		return fmt.Errorf("rule %s: %w", id, store.ErrNotFound)
	}
	r.ExecutionCount++
	at := executedAt
	r.LastExecutedAt = &at
	if next != nil {
		n := *next
		r.NextExecutionAt = &n
	}
	r.UpdatedAt = executedAt
	s.rules[id] = r
	return nil
}

// Apply commits the batch under one lock. Ops are validated against a staged
// view first, so a failing op leaves nothing applied.
func (s *Store) Apply(_ context.Context, ops []store.Op) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stagedAccounts := make(map[string]model.Account)
	stagedTx := make(map[string]*model.Transaction)

	stageAccount := func(id string) (model.Account, error) {
		if a, ok := stagedAccounts[id]; ok {
			return a, nil
		}
		a, ok := s.accounts[id]
		if !ok {
			return model.Account{}, fmt.Errorf("account %s: %w", id, store.ErrNotFound)
		}
		return a, nil
	}

	for _, op := range ops {
		switch op := op.(type) {
		case store.PutTransaction:
			tx := op.Transaction
			stagedTx[tx.ID] = &tx
		case store.RemoveTransaction:
			if _, staged := stagedTx[op.ID]; !staged {
				if _, ok := s.transactions[op.ID]; !ok {
					return fmt.Errorf("transaction %s: %w", op.ID, store.ErrNotFound)
				}
			}
			stagedTx[op.ID] = nil
		case store.AddBalance:
			a, err := stageAccount(op.AccountID)
			if err != nil {
				return err
			}
			a.CurrentBalance = a.CurrentBalance.Add(op.Current)
			a.ProbableBalance = a.ProbableBalance.Add(op.Probable)
			stagedAccounts[op.AccountID] = a
		default:
			return fmt.Errorf("unknown op type %T", op)
		}
	}

	// Every op validated; commit the staged state.
	for id, a := range stagedAccounts {
		s.accounts[id] = a
	}
	for id, tx := range stagedTx {
		if tx == nil {
			delete(s.transactions, id)
			continue
		}
		s.transactions[id] = *tx
	}
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close(context.Context) error { return nil }
