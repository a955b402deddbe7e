package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/ledgerflow-dev/ledgerflow/internal/accounts"
	"github.com/ledgerflow-dev/ledgerflow/internal/ledger"
	"github.com/ledgerflow-dev/ledgerflow/internal/model"
	"github.com/ledgerflow-dev/ledgerflow/internal/rules"
	"github.com/ledgerflow-dev/ledgerflow/internal/store"
)

const dateOnly = "2006-01-02"

// parseDate accepts a plain date or an RFC 3339 timestamp.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(dateOnly, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

type createAccountRequest struct {
	UserID         string            `json:"userId"`
	Name           string            `json:"name"`
	Type           model.AccountType `json:"type"`
	InitialBalance decimal.Decimal   `json:"initialBalance"`
	Currency       string            `json:"currency"`
}

func (s *Server) createAccount(c *fiber.Ctx) error {
	var req createAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed request body")
	}
	a, err := s.accounts.Create(c.Context(), accounts.CreateParams{
		UserID:         req.UserID,
		Name:           req.Name,
		Type:           req.Type,
		InitialBalance: req.InitialBalance,
		Currency:       req.Currency,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(a)
}

func (s *Server) listAccounts(c *fiber.Ctx) error {
	out, err := s.accounts.List(c.Context(), c.Query("userId"))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (s *Server) getAccount(c *fiber.Ctx) error {
	a, err := s.accounts.Get(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(a)
}

func (s *Server) listAccountRules(c *fiber.Ctx) error {
	out, err := s.accounts.RulesReferencing(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (s *Server) deactivateAccount(c *fiber.Ctx) error {
	a, err := s.accounts.Deactivate(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(a)
}

type createTransactionRequest struct {
	UserID               string                  `json:"userId"`
	Type                 model.TransactionType   `json:"type"`
	Amount               decimal.Decimal         `json:"amount"`
	Status               model.TransactionStatus `json:"status"`
	SourceAccountID      string                  `json:"sourceAccountId"`
	DestinationAccountID string                  `json:"destinationAccountId"`
	Category             string                  `json:"category"`
	Description          string                  `json:"description"`
	Date                 string                  `json:"date"`
}

type transactionResponse struct {
	Transaction model.Transaction `json:"transaction"`
	RuleResults []rules.Result    `json:"ruleResults,omitempty"`
}

func (s *Server) createTransaction(c *fiber.Ctx) error {
	var req createTransactionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed request body")
	}
	params := ledger.CreateParams{
		UserID:               req.UserID,
		Type:                 req.Type,
		Amount:               req.Amount,
		Status:               req.Status,
		SourceAccountID:      req.SourceAccountID,
		DestinationAccountID: req.DestinationAccountID,
		Category:             req.Category,
		Description:          req.Description,
	}
	if req.Date != "" {
		date, err := parseDate(req.Date)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "malformed date")
		}
		params.Date = date
	}

	tx, err := s.ledger.Create(c.Context(), params)
	if err != nil {
		return err
	}
	results := s.engine.TriggerForTransaction(c.Context(), tx)
	return c.Status(fiber.StatusCreated).JSON(transactionResponse{Transaction: tx, RuleResults: results})
}

type updateTransactionRequest struct {
	Status      *model.TransactionStatus `json:"status"`
	Amount      *decimal.Decimal         `json:"amount"`
	Category    *string                  `json:"category"`
	Description *string                  `json:"description"`
	Date        *string                  `json:"date"`
}

func (s *Server) updateTransaction(c *fiber.Ctx) error {
	var req updateTransactionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed request body")
	}

	old, err := s.ledger.Get(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}

	params := ledger.UpdateParams{
		Status:      req.Status,
		Amount:      req.Amount,
		Category:    req.Category,
		Description: req.Description,
	}
	if req.Date != nil {
		date, err := parseDate(*req.Date)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "malformed date")
		}
		params.Date = &date
	}

	tx, err := s.ledger.Update(c.Context(), c.Params("id"), params)
	if err != nil {
		return err
	}

	// A transaction that just became completed is a trigger event.
	var results []rules.Result
	if old.Status != model.StatusCompleted && tx.Status == model.StatusCompleted {
		results = s.engine.TriggerForTransaction(c.Context(), tx)
	}
	return c.JSON(transactionResponse{Transaction: tx, RuleResults: results})
}

func (s *Server) deleteTransaction(c *fiber.Ctx) error {
	if err := s.ledger.Delete(c.Context(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) getTransaction(c *fiber.Ctx) error {
	tx, err := s.ledger.Get(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(tx)
}

func (s *Server) listTransactions(c *fiber.Ctx) error {
	f := store.TransactionFilter{
		UserID:    c.Query("userId"),
		AccountID: c.Query("accountId"),
		Category:  c.Query("category"),
		Status:    model.TransactionStatus(c.Query("status")),
	}
	if from := c.Query("from"); from != "" {
		t, err := parseDate(from)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "malformed from date")
		}
		f.From = t
	}
	if to := c.Query("to"); to != "" {
		t, err := parseDate(to)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "malformed to date")
		}
		f.To = t
	}

	out, err := s.ledger.List(c.Context(), f)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

type createRuleRequest struct {
	UserID               string            `json:"userId"`
	SourceAccountID      string            `json:"sourceAccountId"`
	DestinationAccountID string            `json:"destinationAccountId"`
	Type                 model.RuleType    `json:"type"`
	Value                decimal.Decimal   `json:"value"`
	TriggerType          model.TriggerType `json:"triggerType"`
	Frequency            model.Frequency   `json:"frequency"`
	MinAmount            decimal.Decimal   `json:"minAmount"`
	MaxAmount            decimal.Decimal   `json:"maxAmount"`
}

func (s *Server) createRule(c *fiber.Ctx) error {
	var req createRuleRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed request body")
	}
	r, err := s.engine.CreateRule(c.Context(), rules.CreateParams{
		UserID:               req.UserID,
		SourceAccountID:      req.SourceAccountID,
		DestinationAccountID: req.DestinationAccountID,
		Type:                 req.Type,
		Value:                req.Value,
		Trigger:              req.TriggerType,
		Frequency:            req.Frequency,
		MinAmount:            req.MinAmount,
		MaxAmount:            req.MaxAmount,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(r)
}

type updateRuleRequest struct {
	Value     *decimal.Decimal `json:"value"`
	MinAmount *decimal.Decimal `json:"minAmount"`
	MaxAmount *decimal.Decimal `json:"maxAmount"`
	IsActive  *bool            `json:"isActive"`
}

func (s *Server) updateRule(c *fiber.Ctx) error {
	var req updateRuleRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed request body")
	}
	r, err := s.engine.UpdateRule(c.Context(), c.Params("id"), rules.UpdateParams{
		Value:     req.Value,
		MinAmount: req.MinAmount,
		MaxAmount: req.MaxAmount,
		IsActive:  req.IsActive,
	})
	if err != nil {
		return err
	}
	return c.JSON(r)
}

func (s *Server) getRule(c *fiber.Ctx) error {
	r, err := s.engine.GetRule(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(r)
}

func (s *Server) listRules(c *fiber.Ctx) error {
	out, err := s.engine.ListRules(c.Context(), c.Query("userId"))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (s *Server) executeRule(c *fiber.Ctx) error {
	res, err := s.engine.Execute(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(res)
}
