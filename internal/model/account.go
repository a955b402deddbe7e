package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType classifies a user's financial accounts.
type AccountType string

const (
	AccountTypeChecking   AccountType = "checking"
	AccountTypeSavings    AccountType = "savings"
	AccountTypeCash       AccountType = "cash"
	AccountTypeInvestment AccountType = "investment"
	AccountTypeCredit     AccountType = "credit"
)

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeChecking, AccountTypeSavings, AccountTypeCash,
		AccountTypeInvestment, AccountTypeCredit:
		return true
	}
	return false
}

// Account is a single financial account owned by a user.
//
// CurrentBalance always equals InitialBalance plus the sum of applied
// completed-transaction deltas. ProbableBalance additionally includes the
// effects of pending transactions. Accounts are never hard-deleted; a
// deactivated account keeps its balances and history.
type Account struct {
	ID              string          `json:"id"`
	UserID          string          `json:"userId"`
	Name            string          `json:"name"`
	Type            AccountType     `json:"type"`
	InitialBalance  decimal.Decimal `json:"initialBalance"`
	CurrentBalance  decimal.Decimal `json:"currentBalance"`
	ProbableBalance decimal.Decimal `json:"probableBalance"`
	Currency        string          `json:"currency"`
	IsActive        bool            `json:"isActive"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}
