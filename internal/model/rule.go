package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RuleType determines how a rule computes its transfer amount.
type RuleType string

const (
	RuleTypePercentage  RuleType = "percentage"
	RuleTypeFixedAmount RuleType = "fixed_amount"
)

// Valid reports whether t is a known rule type.
func (t RuleType) Valid() bool {
	return t == RuleTypePercentage || t == RuleTypeFixedAmount
}

// TriggerType determines when a rule fires.
type TriggerType string

const (
	TriggerOnIncome  TriggerType = "on_income"
	TriggerOnExpense TriggerType = "on_expense"
	TriggerScheduled TriggerType = "scheduled"
)

// Valid reports whether t is a known trigger type.
func (t TriggerType) Valid() bool {
	switch t {
	case TriggerOnIncome, TriggerOnExpense, TriggerScheduled:
		return true
	}
	return false
}

// Frequency is the repeat interval of a scheduled rule.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// Valid reports whether f is a known frequency.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

// Next returns the execution time one frequency interval after from.
// Monthly follows the calendar (Jan 31 + 1 month normalizes per time.AddDate).
func (f Frequency) Next(from time.Time) time.Time {
	switch f {
	case FrequencyDaily:
		return from.AddDate(0, 0, 1)
	case FrequencyWeekly:
		return from.AddDate(0, 0, 7)
	case FrequencyMonthly:
		return from.AddDate(0, 1, 0)
	}
	return from
}

// AccountRule moves money from a source to a destination account, either in
// reaction to a completed income/expense transaction or on a schedule.
//
// MinAmount and MaxAmount bound the computed transfer: below the minimum the
// rule does not fire at all; above the maximum the amount is clamped. A zero
// MaxAmount means no cap.
type AccountRule struct {
	ID                   string          `json:"id"`
	UserID               string          `json:"userId"`
	SourceAccountID      string          `json:"sourceAccountId"`
	DestinationAccountID string          `json:"destinationAccountId"`
	Type                 RuleType        `json:"type"`
	Value                decimal.Decimal `json:"value"`
	Trigger              TriggerType     `json:"triggerType"`
	Frequency            Frequency       `json:"frequency,omitempty"`
	NextExecutionAt      *time.Time      `json:"nextExecutionDate,omitempty"`
	MinAmount            decimal.Decimal `json:"minAmount"`
	MaxAmount            decimal.Decimal `json:"maxAmount"`
	IsActive             bool            `json:"isActive"`
	LastExecutedAt       *time.Time      `json:"lastExecutedAt,omitempty"`
	ExecutionCount       int64           `json:"executionCount"`
	CreatedAt            time.Time       `json:"createdAt"`
	UpdatedAt            time.Time       `json:"updatedAt"`
}
