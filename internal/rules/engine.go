// Package rules evaluates account rules and generates automatic transfers
// through the ledger.
package rules

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ledgerflow-dev/ledgerflow/internal/id"
	"github.com/ledgerflow-dev/ledgerflow/internal/ledger"
	"github.com/ledgerflow-dev/ledgerflow/internal/model"
	"github.com/ledgerflow-dev/ledgerflow/internal/store"
)

const ruleTransferCategory = "automatic_transfer"

var oneHundred = decimal.NewFromInt(100)

// Result reports the outcome of evaluating one rule. A skipped rule is not an
// error: Executed is false and Reason says why.
type Result struct {
	RuleID         string          `json:"ruleId"`
	Executed       bool            `json:"executed"`
	TransferAmount decimal.Decimal `json:"transferAmount"`
	TransactionID  string          `json:"transactionId,omitempty"`
	Reason         string          `json:"reason,omitempty"`
}

// Engine selects and fires account rules.
type Engine struct {
	store  store.Store
	ledger *ledger.Service
	log    *zap.Logger
	now    func() time.Time
}

// NewEngine creates a rule engine. A nil logger is replaced by a no-op.
func NewEngine(st store.Store, lg *ledger.Service, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{store: st, ledger: lg, log: log, now: time.Now}
}

// CreateParams holds parameters for defining a rule.
type CreateParams struct {
	UserID               string
	SourceAccountID      string
	DestinationAccountID string
	Type                 model.RuleType
	Value                decimal.Decimal
	Trigger              model.TriggerType
	Frequency            model.Frequency
	MinAmount            decimal.Decimal
	MaxAmount            decimal.Decimal
}

// CreateRule validates and stores a new rule. Scheduled rules get their first
// NextExecutionAt one frequency interval from now.
func (e *Engine) CreateRule(ctx context.Context, p CreateParams) (model.AccountRule, error) {
	if err := validateRule(p); err != nil {
		return model.AccountRule{}, err
	}
	src, err := e.store.GetAccount(ctx, p.SourceAccountID)
	if err != nil {
		return model.AccountRule{}, err
	}
	dst, err := e.store.GetAccount(ctx, p.DestinationAccountID)
	if err != nil {
		return model.AccountRule{}, err
	}
	if src.UserID != p.UserID || dst.UserID != p.UserID {
		return model.AccountRule{}, ledger.ValidationError{Field: "accounts", Reason: "account belongs to a different user"}
	}

	now := e.now()
	r := model.AccountRule{
		ID:                   id.New(),
		UserID:               p.UserID,
		SourceAccountID:      p.SourceAccountID,
		DestinationAccountID: p.DestinationAccountID,
		Type:                 p.Type,
		Value:                p.Value,
		Trigger:              p.Trigger,
		Frequency:            p.Frequency,
		MinAmount:            p.MinAmount,
		MaxAmount:            p.MaxAmount,
		IsActive:             true,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if p.Trigger == model.TriggerScheduled {
		next := p.Frequency.Next(now)
		r.NextExecutionAt = &next
	}
	if err := e.store.CreateRule(ctx, r); err != nil {
		return model.AccountRule{}, fmt.Errorf("creating rule: %w", err)
	}

	e.log.Info("rule created",
		zap.String("rule_id", r.ID),
		zap.String("type", string(r.Type)),
		zap.String("trigger", string(r.Trigger)))
	return r, nil
}

// UpdateParams holds optional rule edits; nil fields are left as stored.
type UpdateParams struct {
	Value     *decimal.Decimal
	MinAmount *decimal.Decimal
	MaxAmount *decimal.Decimal
	IsActive  *bool
}

// UpdateRule edits a stored rule's parameters or activation flag.
func (e *Engine) UpdateRule(ctx context.Context, ruleID string, u UpdateParams) (model.AccountRule, error) {
	r, err := e.store.GetRule(ctx, ruleID)
	if err != nil {
		return model.AccountRule{}, err
	}
	if u.Value != nil {
		if !u.Value.IsPositive() {
			return model.AccountRule{}, ledger.ValidationError{Field: "value", Reason: "must be greater than zero"}
		}
		r.Value = *u.Value
	}
	if u.MinAmount != nil {
		r.MinAmount = *u.MinAmount
	}
	if u.MaxAmount != nil {
		r.MaxAmount = *u.MaxAmount
	}
	if u.IsActive != nil {
		r.IsActive = *u.IsActive
	}
	r.UpdatedAt = e.now()
	if err := e.store.UpdateRule(ctx, r); err != nil {
		return model.AccountRule{}, fmt.Errorf("updating rule: %w", err)
	}
	return r, nil
}

// GetRule returns a rule by ID.
func (e *Engine) GetRule(ctx context.Context, ruleID string) (model.AccountRule, error) {
	return e.store.GetRule(ctx, ruleID)
}

// ListRules returns a user's rules, oldest first.
func (e *Engine) ListRules(ctx context.Context, userID string) ([]model.AccountRule, error) {
	return e.store.ListRules(ctx, store.RuleFilter{UserID: userID})
}

// TriggerForTransaction evaluates event-triggered rules for a completed
// transaction. Rule-generated transfers are excluded so one firing pass can
// never cascade into further automatic transfers. An error in one rule is
// logged and does not stop the rest of the batch.
func (e *Engine) TriggerForTransaction(ctx context.Context, tx model.Transaction) []Result {
	if tx.Status != model.StatusCompleted || tx.RuleGenerated() {
		return nil
	}

	var accountID string
	var trigger model.TriggerType
	switch tx.Type {
	case model.TransactionTypeIncome:
		accountID, trigger = tx.DestinationAccountID, model.TriggerOnIncome
	case model.TransactionTypeExpense:
		accountID, trigger = tx.SourceAccountID, model.TriggerOnExpense
	default:
		return nil
	}

	matched, err := e.store.ListRules(ctx, store.RuleFilter{
		UserID:     tx.UserID,
		AccountID:  accountID,
		Trigger:    trigger,
		ActiveOnly: true,
	})
	if err != nil {
		e.log.Error("selecting rules for transaction failed",
			zap.String("transaction_id", tx.ID), zap.Error(err))
		return nil
	}

	var results []Result
	for _, r := range matched {
		res, err := e.fire(ctx, r, computeTransferAmount(r, tx.Amount))
		if err != nil {
			e.log.Error("rule execution failed",
				zap.String("rule_id", r.ID),
				zap.String("transaction_id", tx.ID),
				zap.Error(err))
			continue
		}
		results = append(results, res)
	}
	return results
}

// Execute fires one rule on demand. With no originating transaction the
// transfer amount is the rule's value itself, clamped, exactly as a scheduled
// tick fires.
func (e *Engine) Execute(ctx context.Context, ruleID string) (Result, error) {
	r, err := e.store.GetRule(ctx, ruleID)
	if err != nil {
		return Result{}, err
	}
	if !r.IsActive {
		return Result{RuleID: r.ID, TransferAmount: decimal.Zero, Reason: "rule is inactive"}, nil
	}
	return e.fire(ctx, r, clampTransferAmount(r, r.Value))
}

// fire runs one rule with an already computed and clamped transfer amount:
// check funds, create the transfer through the ledger, then update rule
// bookkeeping. Bookkeeping is skipped when the ledger call fails, so the rule
// stays eligible for retry.
func (e *Engine) fire(ctx context.Context, r model.AccountRule, amount decimal.Decimal) (Result, error) {
	if amount.IsZero() {
		return Result{RuleID: r.ID, TransferAmount: decimal.Zero, Reason: "computed amount below minimum"}, nil
	}

	src, err := e.store.GetAccount(ctx, r.SourceAccountID)
	if err != nil {
		return Result{}, err
	}
	if src.CurrentBalance.LessThan(amount) {
		e.log.Info("rule skipped: insufficient funds",
			zap.String("rule_id", r.ID),
			zap.String("needed", amount.String()),
			zap.String("available", src.CurrentBalance.String()))
		return Result{RuleID: r.ID, TransferAmount: decimal.Zero, Reason: "insufficient funds"}, nil
	}

	now := e.now()
	tx, err := e.ledger.Create(ctx, ledger.CreateParams{
		UserID:               r.UserID,
		Type:                 model.TransactionTypeTransfer,
		Amount:               amount,
		Status:               model.StatusCompleted,
		SourceAccountID:      r.SourceAccountID,
		DestinationAccountID: r.DestinationAccountID,
		Category:             ruleTransferCategory,
		Description:          fmt.Sprintf("Automatic transfer (rule %s)", r.ID),
		Date:                 now,
		RuleID:               r.ID,
	})
	if err != nil {
		return Result{}, fmt.Errorf("creating rule transfer: %w", err)
	}

	var next *time.Time
	if r.Trigger == model.TriggerScheduled {
		n := r.Frequency.Next(now)
		next = &n
	}
	if err := e.store.MarkRuleExecuted(ctx, r.ID, now, next); err != nil {
		// The transfer exists; only the counters are stale. Surface it.
		return Result{}, fmt.Errorf("updating rule bookkeeping: %w", err)
	}

	e.log.Info("rule executed",
		zap.String("rule_id", r.ID),
		zap.String("transaction_id", tx.ID),
		zap.String("amount", amount.String()))
	return Result{RuleID: r.ID, Executed: true, TransferAmount: amount, TransactionID: tx.ID}, nil
}

// computeTransferAmount applies the rule's formula to the triggering
// transaction amount and clamps the outcome.
func computeTransferAmount(r model.AccountRule, txAmount decimal.Decimal) decimal.Decimal {
	switch r.Type {
	case model.RuleTypePercentage:
		return clampTransferAmount(r, txAmount.Mul(r.Value).Div(oneHundred))
	case model.RuleTypeFixedAmount:
		return clampTransferAmount(r, r.Value)
	default:
		return decimal.Zero
	}
}

// clampTransferAmount bounds a transfer amount: below MinAmount the rule does
// not fire (zero), above MaxAmount the amount is capped. Zero MaxAmount means
// no cap.
func clampTransferAmount(r model.AccountRule, amount decimal.Decimal) decimal.Decimal {
	if amount.LessThan(r.MinAmount) {
		return decimal.Zero
	}
	if !r.MaxAmount.IsZero() && amount.GreaterThan(r.MaxAmount) {
		return r.MaxAmount
	}
	if !amount.IsPositive() {
		return decimal.Zero
	}
	return amount
}

func validateRule(p CreateParams) error {
	if p.UserID == "" {
		return ledger.ValidationError{Field: "userId", Reason: "is required"}
	}
	if p.SourceAccountID == "" || p.DestinationAccountID == "" {
		return ledger.ValidationError{Field: "accounts", Reason: "rule requires source and destination accounts"}
	}
	if p.SourceAccountID == p.DestinationAccountID {
		return ledger.ValidationError{Field: "accounts", Reason: "rule source and destination must differ"}
	}
	if !p.Type.Valid() {
		return ledger.ValidationError{Field: "type", Reason: fmt.Sprintf("unknown rule type %q", p.Type)}
	}
	if !p.Value.IsPositive() {
		return ledger.ValidationError{Field: "value", Reason: "must be greater than zero"}
	}
	if !p.Trigger.Valid() {
		return ledger.ValidationError{Field: "triggerType", Reason: fmt.Sprintf("unknown trigger %q", p.Trigger)}
	}
	if p.Trigger == model.TriggerScheduled && !p.Frequency.Valid() {
		return ledger.ValidationError{Field: "frequency", Reason: "scheduled rules require a frequency"}
	}
	if p.MinAmount.IsNegative() || p.MaxAmount.IsNegative() {
		return ledger.ValidationError{Field: "clamp", Reason: "minAmount and maxAmount must not be negative"}
	}
	if !p.MaxAmount.IsZero() && p.MaxAmount.LessThan(p.MinAmount) {
		return ledger.ValidationError{Field: "clamp", Reason: "maxAmount must not be below minAmount"}
	}
	if p.Type == model.RuleTypePercentage && p.Value.GreaterThan(oneHundred) {
		return ledger.ValidationError{Field: "value", Reason: "percentage must not exceed 100"}
	}
	return nil
}
