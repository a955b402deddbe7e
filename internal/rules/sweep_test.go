package rules

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerflow-dev/ledgerflow/internal/model"
)

func TestSweep_FiresDueRules(t *testing.T) {
	ctx := context.Background()
	e, _, st := newEngine(t)
	seedAccount(t, st, "a", "1000")
	seedAccount(t, st, "b", "0")

	rule, err := e.CreateRule(ctx, CreateParams{
		UserID: "u1", SourceAccountID: "a", DestinationAccountID: "b",
		Type: model.RuleTypeFixedAmount, Value: dec("100"),
		Trigger: model.TriggerScheduled, Frequency: model.FrequencyWeekly,
	})
	require.NoError(t, err)

	// Make the rule due.
	r, err := st.GetRule(ctx, rule.ID)
	require.NoError(t, err)
	due := testNow.Add(-time.Hour)
	r.NextExecutionAt = &due
	require.NoError(t, st.UpdateRule(ctx, r))

	results := e.Sweep(ctx, time.Second)
	require.Len(t, results, 1)
	assert.True(t, results[0].Executed)
	assert.True(t, currentBalance(t, st, "b").Equal(dec("100")))

	got, err := e.GetRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ExecutionCount)
	require.NotNil(t, got.NextExecutionAt)
	assert.Equal(t, testNow.AddDate(0, 0, 7), *got.NextExecutionAt,
		"weekly rule fired at T reschedules to exactly T+7d")
}

func TestSweep_PercentageRuleTransfersItsValue(t *testing.T) {
	// Without a triggering transaction there is no amount to take a
	// percentage of; the rule's value is the transfer amount itself.
	ctx := context.Background()
	e, _, st := newEngine(t)
	seedAccount(t, st, "a", "1000")
	seedAccount(t, st, "b", "0")

	rule, err := e.CreateRule(ctx, CreateParams{
		UserID: "u1", SourceAccountID: "a", DestinationAccountID: "b",
		Type: model.RuleTypePercentage, Value: dec("10"),
		Trigger: model.TriggerScheduled, Frequency: model.FrequencyDaily,
	})
	require.NoError(t, err)

	r, err := st.GetRule(ctx, rule.ID)
	require.NoError(t, err)
	due := testNow.Add(-time.Hour)
	r.NextExecutionAt = &due
	require.NoError(t, st.UpdateRule(ctx, r))

	results := e.Sweep(ctx, time.Second)
	require.Len(t, results, 1)
	assert.True(t, results[0].Executed)
	assert.True(t, results[0].TransferAmount.Equal(dec("10")),
		"scheduled percentage rule transfers its value, not value^2/100")
	assert.True(t, currentBalance(t, st, "b").Equal(dec("10")))
}

func TestSweep_SkipsFutureAndInactive(t *testing.T) {
	ctx := context.Background()
	e, _, st := newEngine(t)
	seedAccount(t, st, "a", "1000")
	seedAccount(t, st, "b", "0")

	future, err := e.CreateRule(ctx, CreateParams{
		UserID: "u1", SourceAccountID: "a", DestinationAccountID: "b",
		Type: model.RuleTypeFixedAmount, Value: dec("100"),
		Trigger: model.TriggerScheduled, Frequency: model.FrequencyDaily,
	})
	require.NoError(t, err)

	inactive, err := e.CreateRule(ctx, CreateParams{
		UserID: "u1", SourceAccountID: "a", DestinationAccountID: "b",
		Type: model.RuleTypeFixedAmount, Value: dec("100"),
		Trigger: model.TriggerScheduled, Frequency: model.FrequencyDaily,
	})
	require.NoError(t, err)
	r, err := st.GetRule(ctx, inactive.ID)
	require.NoError(t, err)
	past := testNow.Add(-time.Hour)
	r.NextExecutionAt = &past
	r.IsActive = false
	require.NoError(t, st.UpdateRule(ctx, r))

	assert.Empty(t, e.Sweep(ctx, time.Second))

	gotFuture, err := e.GetRule(ctx, future.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), gotFuture.ExecutionCount)
}

func TestSweep_IsolatesFailingRule(t *testing.T) {
	// A rule whose source account is gone must not stop the next rule.
	ctx := context.Background()
	e, _, st := newEngine(t)
	seedAccount(t, st, "a", "1000")
	seedAccount(t, st, "b", "0")

	broken, err := e.CreateRule(ctx, CreateParams{
		UserID: "u1", SourceAccountID: "a", DestinationAccountID: "b",
		Type: model.RuleTypeFixedAmount, Value: dec("10"),
		Trigger: model.TriggerScheduled, Frequency: model.FrequencyDaily,
	})
	require.NoError(t, err)
	healthy, err := e.CreateRule(ctx, CreateParams{
		UserID: "u1", SourceAccountID: "a", DestinationAccountID: "b",
		Type: model.RuleTypeFixedAmount, Value: dec("25"),
		Trigger: model.TriggerScheduled, Frequency: model.FrequencyDaily,
	})
	require.NoError(t, err)

	past := testNow.Add(-time.Hour)
	for _, ruleID := range []string{broken.ID, healthy.ID} {
		r, err := st.GetRule(ctx, ruleID)
		require.NoError(t, err)
		r.NextExecutionAt = &past
		if ruleID == broken.ID {
			r.SourceAccountID = "ghost"
		}
		require.NoError(t, st.UpdateRule(ctx, r))
	}

	results := e.Sweep(ctx, time.Second)
	require.Len(t, results, 1, "broken rule is skipped, healthy rule still fires")
	assert.True(t, results[0].Executed)
	assert.Equal(t, healthy.ID, results[0].RuleID)
	assert.True(t, currentBalance(t, st, "b").Equal(dec("25")))
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	e, _, _ := newEngine(t)
	sweeper := NewSweeper(e, 10*time.Millisecond, time.Second, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancellation")
	}
}
