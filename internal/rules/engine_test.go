package rules

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerflow-dev/ledgerflow/internal/ledger"
	"github.com/ledgerflow-dev/ledgerflow/internal/model"
	"github.com/ledgerflow-dev/ledgerflow/internal/store"
	"github.com/ledgerflow-dev/ledgerflow/internal/store/memory"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newEngine(t *testing.T) (*Engine, *ledger.Service, *memory.Store) {
	t.Helper()
	st := memory.New()
	lg := ledger.NewService(st, nil)
	e := NewEngine(st, lg, nil)
	e.now = func() time.Time { return testNow }
	return e, lg, st
}

func seedAccount(t *testing.T, st *memory.Store, accountID, balance string) {
	t.Helper()
	require.NoError(t, st.CreateAccount(context.Background(), model.Account{
		ID:              accountID,
		UserID:          "u1",
		Name:            accountID,
		Type:            model.AccountTypeChecking,
		InitialBalance:  dec(balance),
		CurrentBalance:  dec(balance),
		ProbableBalance: dec(balance),
		Currency:        "USD",
		IsActive:        true,
		CreatedAt:       time.Now(),
	}))
}

func currentBalance(t *testing.T, st *memory.Store, accountID string) decimal.Decimal {
	t.Helper()
	a, err := st.GetAccount(context.Background(), accountID)
	require.NoError(t, err)
	return a.CurrentBalance
}

func TestComputeTransferAmount(t *testing.T) {
	tests := []struct {
		name  string
		rule  model.AccountRule
		basis string
		want  string
	}{
		{"percentage", model.AccountRule{Type: model.RuleTypePercentage, Value: dec("10")}, "3000", "300"},
		{"fixed", model.AccountRule{Type: model.RuleTypeFixedAmount, Value: dec("500")}, "3000", "500"},
		{"below min skips", model.AccountRule{Type: model.RuleTypePercentage, Value: dec("10"), MinAmount: dec("500"), MaxAmount: dec("5000")}, "3000", "0"},
		{"above max clamps", model.AccountRule{Type: model.RuleTypePercentage, Value: dec("10"), MinAmount: dec("500"), MaxAmount: dec("5000")}, "60000", "5000"},
		{"at min fires", model.AccountRule{Type: model.RuleTypePercentage, Value: dec("10"), MinAmount: dec("300")}, "3000", "300"},
		{"no max means no cap", model.AccountRule{Type: model.RuleTypePercentage, Value: dec("10")}, "60000", "6000"},
		{"unknown type", model.AccountRule{Type: model.RuleType("ratio"), Value: dec("10")}, "3000", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := computeTransferAmount(tt.rule, dec(tt.basis))
			assert.True(t, got.Equal(dec(tt.want)), "got %s, want %s", got, tt.want)
		})
	}
}

func TestTriggerForTransaction_EndToEnd(t *testing.T) {
	// Income of 500 into A with a 20% A->B rule: A ends at 1400, B at 100.
	ctx := context.Background()
	e, lg, st := newEngine(t)
	seedAccount(t, st, "a", "1000")
	seedAccount(t, st, "b", "0")

	rule, err := e.CreateRule(ctx, CreateParams{
		UserID: "u1", SourceAccountID: "a", DestinationAccountID: "b",
		Type: model.RuleTypePercentage, Value: dec("20"),
		Trigger: model.TriggerOnIncome, MaxAmount: dec("1000"),
	})
	require.NoError(t, err)

	income, err := lg.Create(ctx, ledger.CreateParams{
		UserID: "u1", Type: model.TransactionTypeIncome, Amount: dec("500"), DestinationAccountID: "a",
	})
	require.NoError(t, err)
	require.True(t, currentBalance(t, st, "a").Equal(dec("1500")))

	results := e.TriggerForTransaction(ctx, income)
	require.Len(t, results, 1)
	assert.True(t, results[0].Executed)
	assert.True(t, results[0].TransferAmount.Equal(dec("100")))
	assert.NotEmpty(t, results[0].TransactionID)

	assert.True(t, currentBalance(t, st, "a").Equal(dec("1400")))
	assert.True(t, currentBalance(t, st, "b").Equal(dec("100")))

	got, err := e.GetRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ExecutionCount)
	require.NotNil(t, got.LastExecutedAt)
	assert.Equal(t, testNow, *got.LastExecutedAt)

	transfer, err := lg.Get(ctx, results[0].TransactionID)
	require.NoError(t, err)
	assert.True(t, transfer.RuleGenerated())
	assert.Equal(t, rule.ID, transfer.RuleID)
}

func TestTriggerForTransaction_BelowMinSkips(t *testing.T) {
	ctx := context.Background()
	e, lg, st := newEngine(t)
	seedAccount(t, st, "a", "10000")
	seedAccount(t, st, "b", "0")

	rule, err := e.CreateRule(ctx, CreateParams{
		UserID: "u1", SourceAccountID: "a", DestinationAccountID: "b",
		Type: model.RuleTypePercentage, Value: dec("10"),
		Trigger: model.TriggerOnIncome, MinAmount: dec("500"), MaxAmount: dec("5000"),
	})
	require.NoError(t, err)

	income, err := lg.Create(ctx, ledger.CreateParams{
		UserID: "u1", Type: model.TransactionTypeIncome, Amount: dec("3000"), DestinationAccountID: "a",
	})
	require.NoError(t, err)

	results := e.TriggerForTransaction(ctx, income)
	require.Len(t, results, 1)
	assert.False(t, results[0].Executed)
	assert.True(t, results[0].TransferAmount.IsZero())

	assert.True(t, currentBalance(t, st, "b").IsZero(), "no transfer on skip")
	got, err := e.GetRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.ExecutionCount, "skipped rule keeps its counters")
}

func TestTriggerForTransaction_ClampsToMax(t *testing.T) {
	ctx := context.Background()
	e, lg, st := newEngine(t)
	seedAccount(t, st, "a", "100000")
	seedAccount(t, st, "b", "0")

	_, err := e.CreateRule(ctx, CreateParams{
		UserID: "u1", SourceAccountID: "a", DestinationAccountID: "b",
		Type: model.RuleTypePercentage, Value: dec("10"),
		Trigger: model.TriggerOnIncome, MinAmount: dec("500"), MaxAmount: dec("5000"),
	})
	require.NoError(t, err)

	income, err := lg.Create(ctx, ledger.CreateParams{
		UserID: "u1", Type: model.TransactionTypeIncome, Amount: dec("60000"), DestinationAccountID: "a",
	})
	require.NoError(t, err)

	results := e.TriggerForTransaction(ctx, income)
	require.Len(t, results, 1)
	assert.True(t, results[0].Executed)
	assert.True(t, results[0].TransferAmount.Equal(dec("5000")))
	assert.True(t, currentBalance(t, st, "b").Equal(dec("5000")))
}

func TestTriggerForTransaction_InsufficientFunds(t *testing.T) {
	ctx := context.Background()
	e, lg, st := newEngine(t)
	seedAccount(t, st, "a", "200")
	seedAccount(t, st, "b", "0")

	_, err := e.CreateRule(ctx, CreateParams{
		UserID: "u1", SourceAccountID: "a", DestinationAccountID: "b",
		Type: model.RuleTypeFixedAmount, Value: dec("500"), Trigger: model.TriggerOnExpense,
	})
	require.NoError(t, err)

	expense, err := lg.Create(ctx, ledger.CreateParams{
		UserID: "u1", Type: model.TransactionTypeExpense, Amount: dec("50"), SourceAccountID: "a",
	})
	require.NoError(t, err)

	results := e.TriggerForTransaction(ctx, expense)
	require.Len(t, results, 1)
	assert.False(t, results[0].Executed, "insufficient funds is a skip, not an error")
	assert.True(t, results[0].TransferAmount.IsZero())
	assert.Equal(t, "insufficient funds", results[0].Reason)
	assert.True(t, currentBalance(t, st, "a").Equal(dec("150")), "only the expense applied")
	assert.True(t, currentBalance(t, st, "b").IsZero())
}

func TestTriggerForTransaction_NoCascade(t *testing.T) {
	// R1 moves income from X to Y; R2 watches Y. One income into X must fire
	// R1 only: the generated transfer may not re-enter trigger evaluation.
	ctx := context.Background()
	e, lg, st := newEngine(t)
	seedAccount(t, st, "x", "1000")
	seedAccount(t, st, "y", "0")
	seedAccount(t, st, "z", "0")

	_, err := e.CreateRule(ctx, CreateParams{
		UserID: "u1", SourceAccountID: "x", DestinationAccountID: "y",
		Type: model.RuleTypePercentage, Value: dec("50"), Trigger: model.TriggerOnIncome,
	})
	require.NoError(t, err)
	r2, err := e.CreateRule(ctx, CreateParams{
		UserID: "u1", SourceAccountID: "y", DestinationAccountID: "z",
		Type: model.RuleTypePercentage, Value: dec("50"), Trigger: model.TriggerOnIncome,
	})
	require.NoError(t, err)

	income, err := lg.Create(ctx, ledger.CreateParams{
		UserID: "u1", Type: model.TransactionTypeIncome, Amount: dec("100"), DestinationAccountID: "x",
	})
	require.NoError(t, err)

	results := e.TriggerForTransaction(ctx, income)
	require.Len(t, results, 1, "only R1 may fire")

	gotR2, err := e.GetRule(ctx, r2.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), gotR2.ExecutionCount)
	assert.True(t, currentBalance(t, st, "z").IsZero())

	// Feeding the generated transfer back in explicitly is also a no-op.
	transfer, err := lg.Get(ctx, results[0].TransactionID)
	require.NoError(t, err)
	assert.Empty(t, e.TriggerForTransaction(ctx, transfer))
}

func TestTriggerForTransaction_IgnoresPendingAndTransfers(t *testing.T) {
	ctx := context.Background()
	e, _, st := newEngine(t)
	seedAccount(t, st, "a", "1000")

	pending := model.Transaction{ID: "t1", UserID: "u1", Type: model.TransactionTypeIncome,
		Amount: dec("100"), Status: model.StatusPending, DestinationAccountID: "a"}
	assert.Empty(t, e.TriggerForTransaction(ctx, pending))

	transfer := model.Transaction{ID: "t2", UserID: "u1", Type: model.TransactionTypeTransfer,
		Amount: dec("100"), Status: model.StatusCompleted, SourceAccountID: "a", DestinationAccountID: "b"}
	assert.Empty(t, e.TriggerForTransaction(ctx, transfer))
}

func TestExecute_InactiveRule(t *testing.T) {
	ctx := context.Background()
	e, _, st := newEngine(t)
	seedAccount(t, st, "a", "1000")
	seedAccount(t, st, "b", "0")

	rule, err := e.CreateRule(ctx, CreateParams{
		UserID: "u1", SourceAccountID: "a", DestinationAccountID: "b",
		Type: model.RuleTypeFixedAmount, Value: dec("100"), Trigger: model.TriggerOnIncome,
	})
	require.NoError(t, err)

	inactive := false
	_, err = e.UpdateRule(ctx, rule.ID, UpdateParams{IsActive: &inactive})
	require.NoError(t, err)

	res, err := e.Execute(ctx, rule.ID)
	require.NoError(t, err)
	assert.False(t, res.Executed)
	assert.Equal(t, "rule is inactive", res.Reason)
}

func TestExecute_Manual(t *testing.T) {
	ctx := context.Background()
	e, _, st := newEngine(t)
	seedAccount(t, st, "a", "1000")
	seedAccount(t, st, "b", "0")

	rule, err := e.CreateRule(ctx, CreateParams{
		UserID: "u1", SourceAccountID: "a", DestinationAccountID: "b",
		Type: model.RuleTypeFixedAmount, Value: dec("250"), Trigger: model.TriggerOnIncome,
	})
	require.NoError(t, err)

	res, err := e.Execute(ctx, rule.ID)
	require.NoError(t, err)
	assert.True(t, res.Executed)
	assert.True(t, res.TransferAmount.Equal(dec("250")))
	assert.True(t, currentBalance(t, st, "b").Equal(dec("250")))
}

func TestExecute_ManualPercentageUsesValue(t *testing.T) {
	ctx := context.Background()
	e, _, st := newEngine(t)
	seedAccount(t, st, "a", "1000")
	seedAccount(t, st, "b", "0")

	rule, err := e.CreateRule(ctx, CreateParams{
		UserID: "u1", SourceAccountID: "a", DestinationAccountID: "b",
		Type: model.RuleTypePercentage, Value: dec("20"), Trigger: model.TriggerOnIncome,
	})
	require.NoError(t, err)

	res, err := e.Execute(ctx, rule.ID)
	require.NoError(t, err)
	assert.True(t, res.Executed)
	assert.True(t, res.TransferAmount.Equal(dec("20")))
	assert.True(t, currentBalance(t, st, "b").Equal(dec("20")))
}

func TestFire_LedgerFailureSkipsBookkeeping(t *testing.T) {
	// Destination account vanished between rule creation and firing: the
	// ledger call fails and the rule keeps its counters for a later retry.
	ctx := context.Background()
	e, _, st := newEngine(t)
	seedAccount(t, st, "a", "1000")
	seedAccount(t, st, "b", "0")

	rule, err := e.CreateRule(ctx, CreateParams{
		UserID: "u1", SourceAccountID: "a", DestinationAccountID: "b",
		Type: model.RuleTypeFixedAmount, Value: dec("100"), Trigger: model.TriggerOnIncome,
	})
	require.NoError(t, err)

	// Simulate the missing destination with a rule edit in the store.
	r, err := st.GetRule(ctx, rule.ID)
	require.NoError(t, err)
	r.DestinationAccountID = "ghost"
	require.NoError(t, st.UpdateRule(ctx, r))

	_, err = e.Execute(ctx, rule.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	got, err := e.GetRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.ExecutionCount, "failed ledger call must not update bookkeeping")
	assert.Nil(t, got.LastExecutedAt)
	assert.True(t, currentBalance(t, st, "a").Equal(dec("1000")))
}

func TestCreateRule_Validation(t *testing.T) {
	ctx := context.Background()
	e, _, st := newEngine(t)
	seedAccount(t, st, "a", "1000")
	seedAccount(t, st, "b", "0")

	base := CreateParams{
		UserID: "u1", SourceAccountID: "a", DestinationAccountID: "b",
		Type: model.RuleTypePercentage, Value: dec("10"), Trigger: model.TriggerOnIncome,
	}

	tests := []struct {
		name   string
		mutate func(*CreateParams)
	}{
		{"same accounts", func(p *CreateParams) { p.DestinationAccountID = "a" }},
		{"zero value", func(p *CreateParams) { p.Value = dec("0") }},
		{"percentage above 100", func(p *CreateParams) { p.Value = dec("150") }},
		{"unknown trigger", func(p *CreateParams) { p.Trigger = model.TriggerType("on_transfer") }},
		{"scheduled without frequency", func(p *CreateParams) { p.Trigger = model.TriggerScheduled }},
		{"max below min", func(p *CreateParams) { p.MinAmount = dec("100"); p.MaxAmount = dec("50") }},
		{"negative min", func(p *CreateParams) { p.MinAmount = dec("-1") }},
		{"accounts owned by another user", func(p *CreateParams) { p.UserID = "u2" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base
			tt.mutate(&p)
			_, err := e.CreateRule(ctx, p)
			var verr ledger.ValidationError
			require.ErrorAs(t, err, &verr)
		})
	}
}
