// Package importer records bank CSV exports through the ledger, so imported
// history obeys the same invariants and fires the same rules as any other
// transaction.
package importer

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/ledgerflow-dev/ledgerflow/internal/ledger"
	"github.com/ledgerflow-dev/ledgerflow/internal/model"
	"github.com/ledgerflow-dev/ledgerflow/internal/rules"
)

// Importer replays parsed bank rows into the ledger for one account.
type Importer struct {
	ledger *ledger.Service
	engine *rules.Engine
	log    *zap.Logger
}

// New creates an Importer. The rule engine may be nil to import without
// triggering rules. A nil logger is replaced by a no-op.
func New(lg *ledger.Service, engine *rules.Engine, log *zap.Logger) *Importer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Importer{ledger: lg, engine: engine, log: log}
}

// Summary reports what an import pass did.
type Summary struct {
	Imported     int
	RulesFired   int
	Transactions []model.Transaction
}

// Import parses the CSV and records each row against the account: negative
// amounts become expenses, positive amounts income. Rows are committed one at
// a time; on error the already-imported rows stay recorded and the error says
// which row failed.
func (im *Importer) Import(ctx context.Context, r io.Reader, userID, accountID string) (Summary, error) {
	rows, err := ParseRows(r)
	if err != nil {
		return Summary{}, err
	}

	var summary Summary
	for i, row := range rows {
		params := ledger.CreateParams{
			UserID:      userID,
			Amount:      row.Amount.Abs(),
			Status:      model.StatusCompleted,
			Category:    row.Category,
			Description: row.Description,
			Date:        row.Date,
		}
		if row.Amount.IsNegative() {
			params.Type = model.TransactionTypeExpense
			params.SourceAccountID = accountID
		} else {
			params.Type = model.TransactionTypeIncome
			params.DestinationAccountID = accountID
		}

		tx, err := im.ledger.Create(ctx, params)
		if err != nil {
			return summary, fmt.Errorf("row %d: %w", i+2, err)
		}
		summary.Imported++
		summary.Transactions = append(summary.Transactions, tx)

		if im.engine != nil {
			for _, res := range im.engine.TriggerForTransaction(ctx, tx) {
				if res.Executed {
					summary.RulesFired++
				}
			}
		}
	}

	im.log.Info("import finished",
		zap.String("account_id", accountID),
		zap.Int("imported", summary.Imported),
		zap.Int("rules_fired", summary.RulesFired))
	return summary, nil
}
