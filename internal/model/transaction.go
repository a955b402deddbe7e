package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType determines which accounts a transaction touches.
type TransactionType string

const (
	TransactionTypeIncome   TransactionType = "income"
	TransactionTypeExpense  TransactionType = "expense"
	TransactionTypeTransfer TransactionType = "transfer"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeIncome, TransactionTypeExpense, TransactionTypeTransfer:
		return true
	}
	return false
}

// TransactionStatus is the lifecycle state of a transaction.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusCancelled TransactionStatus = "cancelled"
)

// Valid reports whether s is a known transaction status.
func (s TransactionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Transaction records a single movement of money. Income requires a
// destination account, expense a source account, and transfer both.
// RuleID is set when the transaction was generated by an account rule;
// such transfers are excluded from rule trigger evaluation.
type Transaction struct {
	ID                   string            `json:"id"`
	UserID               string            `json:"userId"`
	Type                 TransactionType   `json:"type"`
	Amount               decimal.Decimal   `json:"amount"`
	Status               TransactionStatus `json:"status"`
	SourceAccountID      string            `json:"sourceAccountId,omitempty"`
	DestinationAccountID string            `json:"destinationAccountId,omitempty"`
	Category             string            `json:"category,omitempty"`
	Description          string            `json:"description,omitempty"`
	Date                 time.Time         `json:"date"`
	RuleID               string            `json:"ruleId,omitempty"`
	CreatedAt            time.Time         `json:"createdAt"`
	UpdatedAt            time.Time         `json:"updatedAt"`
}

// RuleGenerated reports whether the transaction was created by the rule engine.
func (t Transaction) RuleGenerated() bool { return t.RuleID != "" }

// BalanceDelta is a signed change to one account's balance fields.
type BalanceDelta struct {
	AccountID string
	Current   decimal.Decimal
	Probable  decimal.Decimal
}

// IsZero reports whether the delta changes nothing.
func (d BalanceDelta) IsZero() bool {
	return d.Current.IsZero() && d.Probable.IsZero()
}

// Negate returns the reversal of the delta.
func (d BalanceDelta) Negate() BalanceDelta {
	return BalanceDelta{
		AccountID: d.AccountID,
		Current:   d.Current.Neg(),
		Probable:  d.Probable.Neg(),
	}
}

// Effect returns the signed balance deltas this transaction contributes in
// its current status. Completed transactions move both balance fields,
// pending transactions move only the probable balance, and cancelled
// transactions move neither.
func (t Transaction) Effect() []BalanceDelta {
	var current, probable decimal.Decimal
	switch t.Status {
	case StatusCompleted:
		current = t.Amount
		probable = t.Amount
	case StatusPending:
		probable = t.Amount
	default:
		return nil
	}

	switch t.Type {
	case TransactionTypeIncome:
		return []BalanceDelta{{AccountID: t.DestinationAccountID, Current: current, Probable: probable}}
	case TransactionTypeExpense:
		return []BalanceDelta{{AccountID: t.SourceAccountID, Current: current.Neg(), Probable: probable.Neg()}}
	case TransactionTypeTransfer:
		return []BalanceDelta{
			{AccountID: t.SourceAccountID, Current: current.Neg(), Probable: probable.Neg()},
			{AccountID: t.DestinationAccountID, Current: current, Probable: probable},
		}
	}
	return nil
}

// NegateDeltas reverses every delta in the slice.
func NegateDeltas(deltas []BalanceDelta) []BalanceDelta {
	out := make([]BalanceDelta, len(deltas))
	for i, d := range deltas {
		out[i] = d.Negate()
	}
	return out
}

// MergeDeltas sums deltas per account, dropping accounts whose net change is
// zero. Order of first appearance is preserved so batches stay deterministic.
func MergeDeltas(deltas ...[]BalanceDelta) []BalanceDelta {
	sums := make(map[string]BalanceDelta)
	var order []string
	for _, group := range deltas {
		for _, d := range group {
			sum, seen := sums[d.AccountID]
			if !seen {
				order = append(order, d.AccountID)
				sum = BalanceDelta{AccountID: d.AccountID}
			}
			sum.Current = sum.Current.Add(d.Current)
			sum.Probable = sum.Probable.Add(d.Probable)
			sums[d.AccountID] = sum
		}
	}

	var out []BalanceDelta
	for _, id := range order {
		if !sums[id].IsZero() {
			out = append(out, sums[id])
		}
	}
	return out
}
