package mongo

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ledgerflow-dev/ledgerflow/internal/model"
)

// Document shapes persisted to MongoDB. Money fields are Decimal128 so $inc
// stays exact; conversion to shopspring decimal goes through the string form.

type accountDoc struct {
	ID              string               `bson:"_id"`
	UserID          string               `bson:"userId"`
	Name            string               `bson:"name"`
	Type            string               `bson:"type"`
	InitialBalance  primitive.Decimal128 `bson:"initialBalance"`
	CurrentBalance  primitive.Decimal128 `bson:"currentBalance"`
	ProbableBalance primitive.Decimal128 `bson:"probableBalance"`
	Currency        string               `bson:"currency"`
	IsActive        bool                 `bson:"isActive"`
	CreatedAt       time.Time            `bson:"createdAt"`
	UpdatedAt       time.Time            `bson:"updatedAt"`
}

type transactionDoc struct {
	ID                   string               `bson:"_id"`
	UserID               string               `bson:"userId"`
	Type                 string               `bson:"type"`
	Amount               primitive.Decimal128 `bson:"amount"`
	Status               string               `bson:"status"`
	SourceAccountID      string               `bson:"sourceAccountId,omitempty"`
	DestinationAccountID string               `bson:"destinationAccountId,omitempty"`
	Category             string               `bson:"category,omitempty"`
	Description          string               `bson:"description,omitempty"`
	Date                 time.Time            `bson:"date"`
	RuleID               string               `bson:"ruleId,omitempty"`
	CreatedAt            time.Time            `bson:"createdAt"`
	UpdatedAt            time.Time            `bson:"updatedAt"`
}

type ruleDoc struct {
	ID                   string               `bson:"_id"`
	UserID               string               `bson:"userId"`
	SourceAccountID      string               `bson:"sourceAccountId"`
	DestinationAccountID string               `bson:"destinationAccountId"`
	Type                 string               `bson:"type"`
	Value                primitive.Decimal128 `bson:"value"`
	TriggerType          string               `bson:"triggerType"`
	Frequency            string               `bson:"frequency,omitempty"`
	NextExecutionDate    *time.Time           `bson:"nextExecutionDate,omitempty"`
	MinAmount            primitive.Decimal128 `bson:"minAmount"`
	MaxAmount            primitive.Decimal128 `bson:"maxAmount"`
	IsActive             bool                 `bson:"isActive"`
	LastExecutedAt       *time.Time           `bson:"lastExecutedAt,omitempty"`
	ExecutionCount       int64                `bson:"executionCount"`
	CreatedAt            time.Time            `bson:"createdAt"`
	UpdatedAt            time.Time            `bson:"updatedAt"`
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	out, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("converting decimal %s: %w", d, err)
	}
	return out, nil
}

func fromDecimal128(d primitive.Decimal128) (decimal.Decimal, error) {
	out, err := decimal.NewFromString(d.String())
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("converting decimal128 %s: %w", d, err)
	}
	return out, nil
}

func accountToDoc(a model.Account) (accountDoc, error) {
	initial, err := toDecimal128(a.InitialBalance)
	if err != nil {
		return accountDoc{}, err
	}
	current, err := toDecimal128(a.CurrentBalance)
	if err != nil {
		return accountDoc{}, err
	}
	probable, err := toDecimal128(a.ProbableBalance)
	if err != nil {
		return accountDoc{}, err
	}
	return accountDoc{
		ID:              a.ID,
		UserID:          a.UserID,
		Name:            a.Name,
		Type:            string(a.Type),
		InitialBalance:  initial,
		CurrentBalance:  current,
		ProbableBalance: probable,
		Currency:        a.Currency,
		IsActive:        a.IsActive,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}, nil
}

func docToAccount(doc accountDoc) (model.Account, error) {
	initial, err := fromDecimal128(doc.InitialBalance)
	if err != nil {
		return model.Account{}, err
	}
	current, err := fromDecimal128(doc.CurrentBalance)
	if err != nil {
		return model.Account{}, err
	}
	probable, err := fromDecimal128(doc.ProbableBalance)
	if err != nil {
		return model.Account{}, err
	}
	return model.Account{
		ID:              doc.ID,
		UserID:          doc.UserID,
		Name:            doc.Name,
		Type:            model.AccountType(doc.Type),
		InitialBalance:  initial,
		CurrentBalance:  current,
		ProbableBalance: probable,
		Currency:        doc.Currency,
		IsActive:        doc.IsActive,
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
	}, nil
}

func transactionToDoc(t model.Transaction) (transactionDoc, error) {
	amount, err := toDecimal128(t.Amount)
	if err != nil {
		return transactionDoc{}, err
	}
	return transactionDoc{
		ID:                   t.ID,
		UserID:               t.UserID,
		Type:                 string(t.Type),
		Amount:               amount,
		Status:               string(t.Status),
		SourceAccountID:      t.SourceAccountID,
		DestinationAccountID: t.DestinationAccountID,
		Category:             t.Category,
		Description:          t.Description,
		Date:                 t.Date,
		RuleID:               t.RuleID,
		CreatedAt:            t.CreatedAt,
		UpdatedAt:            t.UpdatedAt,
	}, nil
}

func docToTransaction(doc transactionDoc) (model.Transaction, error) {
	amount, err := fromDecimal128(doc.Amount)
	if err != nil {
		return model.Transaction{}, err
	}
	return model.Transaction{
		ID:                   doc.ID,
		UserID:               doc.UserID,
		Type:                 model.TransactionType(doc.Type),
		Amount:               amount,
		Status:               model.TransactionStatus(doc.Status),
		SourceAccountID:      doc.SourceAccountID,
		DestinationAccountID: doc.DestinationAccountID,
		Category:             doc.Category,
		Description:          doc.Description,
		Date:                 doc.Date,
		RuleID:               doc.RuleID,
		CreatedAt:            doc.CreatedAt,
		UpdatedAt:            doc.UpdatedAt,
	}, nil
}

func ruleToDoc(r model.AccountRule) (ruleDoc, error) {
	value, err := toDecimal128(r.Value)
	if err != nil {
		return ruleDoc{}, err
	}
	minAmount, err := toDecimal128(r.MinAmount)
	if err != nil {
		return ruleDoc{}, err
	}
	maxAmount, err := toDecimal128(r.MaxAmount)
	if err != nil {
		return ruleDoc{}, err
	}
	return ruleDoc{
		ID:                   r.ID,
		UserID:               r.UserID,
		SourceAccountID:      r.SourceAccountID,
		DestinationAccountID: r.DestinationAccountID,
		Type:                 string(r.Type),
		Value:                value,
		TriggerType:          string(r.Trigger),
		Frequency:            string(r.Frequency),
		NextExecutionDate:    r.NextExecutionAt,
		MinAmount:            minAmount,
		MaxAmount:            maxAmount,
		IsActive:             r.IsActive,
		LastExecutedAt:       r.LastExecutedAt,
		ExecutionCount:       r.ExecutionCount,
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}, nil
}

func docToRule(doc ruleDoc) (model.AccountRule, error) {
	value, err := fromDecimal128(doc.Value)
	if err != nil {
		return model.AccountRule{}, err
	}
	minAmount, err := fromDecimal128(doc.MinAmount)
	if err != nil {
		return model.AccountRule{}, err
	}
	maxAmount, err := fromDecimal128(doc.MaxAmount)
	if err != nil {
		return model.AccountRule{}, err
	}
	return model.AccountRule{
		ID:                   doc.ID,
		UserID:               doc.UserID,
		SourceAccountID:      doc.SourceAccountID,
		DestinationAccountID: doc.DestinationAccountID,
		Type:                 model.RuleType(doc.Type),
		Value:                value,
		Trigger:              model.TriggerType(doc.TriggerType),
		Frequency:            model.Frequency(doc.Frequency),
		NextExecutionAt:      doc.NextExecutionDate,
		MinAmount:            minAmount,
		MaxAmount:            maxAmount,
		IsActive:             doc.IsActive,
		LastExecutedAt:       doc.LastExecutedAt,
		ExecutionCount:       doc.ExecutionCount,
		CreatedAt:            doc.CreatedAt,
		UpdatedAt:            doc.UpdatedAt,
	}, nil
}
