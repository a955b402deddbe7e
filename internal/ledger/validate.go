package ledger

import (
	"fmt"

	"github.com/ledgerflow-dev/ledgerflow/internal/model"
)

// ValidationError describes a single rejected field. Validation runs before
// any mutation, so a returned ValidationError means nothing was written.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// validateDraft enforces the structural invariants of a transaction record:
// a positive amount, known type and status, and the account references the
// type requires (income needs a destination, expense a source, transfer both
// and they must differ).
func validateDraft(tx model.Transaction) error {
	if tx.UserID == "" {
		return ValidationError{Field: "userId", Reason: "is required"}
	}
	if !tx.Type.Valid() {
		return ValidationError{Field: "type", Reason: fmt.Sprintf("unknown transaction type %q", tx.Type)}
	}
	if !tx.Status.Valid() {
		return ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", tx.Status)}
	}
	if !tx.Amount.IsPositive() {
		return ValidationError{Field: "amount", Reason: "must be greater than zero"}
	}

	switch tx.Type {
	case model.TransactionTypeIncome:
		if tx.DestinationAccountID == "" {
			return ValidationError{Field: "destinationAccountId", Reason: "income requires a destination account"}
		}
	case model.TransactionTypeExpense:
		if tx.SourceAccountID == "" {
			return ValidationError{Field: "sourceAccountId", Reason: "expense requires a source account"}
		}
	case model.TransactionTypeTransfer:
		if tx.SourceAccountID == "" || tx.DestinationAccountID == "" {
			return ValidationError{Field: "accounts", Reason: "transfer requires source and destination accounts"}
		}
		if tx.SourceAccountID == tx.DestinationAccountID {
			return ValidationError{Field: "accounts", Reason: "transfer source and destination must differ"}
		}
	}
	return nil
}
