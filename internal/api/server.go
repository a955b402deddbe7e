// Package api exposes the ledger, accounts, and rule engine over HTTP for
// the presentation layer. It holds no balance or clamping logic of its own.
package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ledgerflow-dev/ledgerflow/internal/accounts"
	"github.com/ledgerflow-dev/ledgerflow/internal/ledger"
	"github.com/ledgerflow-dev/ledgerflow/internal/rules"
	"github.com/ledgerflow-dev/ledgerflow/internal/store"
)

// Server wires the HTTP routes to the services.
type Server struct {
	app      *fiber.App
	accounts *accounts.Service
	ledger   *ledger.Service
	engine   *rules.Engine
	log      *zap.Logger
}

// NewServer builds the fiber app and registers all routes. A nil logger is
// replaced by a no-op.
func NewServer(acc *accounts.Service, lg *ledger.Service, engine *rules.Engine, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		accounts: acc,
		ledger:   lg,
		engine:   engine,
		log:      log,
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          s.errorHandler,
	})

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	v1 := app.Group("/v1")
	v1.Post("/accounts", s.createAccount)
	v1.Get("/accounts", s.listAccounts)
	v1.Get("/accounts/:id", s.getAccount)
	v1.Get("/accounts/:id/rules", s.listAccountRules)
	v1.Delete("/accounts/:id", s.deactivateAccount)

	v1.Post("/transactions", s.createTransaction)
	v1.Get("/transactions", s.listTransactions)
	v1.Get("/transactions/:id", s.getTransaction)
	v1.Patch("/transactions/:id", s.updateTransaction)
	v1.Delete("/transactions/:id", s.deleteTransaction)

	v1.Post("/rules", s.createRule)
	v1.Get("/rules", s.listRules)
	v1.Get("/rules/:id", s.getRule)
	v1.Patch("/rules/:id", s.updateRule)
	v1.Post("/rules/:id/execute", s.executeRule)

	s.app = app
	return s
}

// Listen serves until Shutdown is called.
func (s *Server) Listen(addr string) error {
	s.log.Info("http server listening", zap.String("addr", addr))
	if err := s.app.Listen(addr); err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains connections and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// errorHandler maps service errors onto HTTP statuses: validation failures
// are 400, missing records 404, everything else 500.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	var verr ledger.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": verr.Error()})
	case errors.Is(err, store.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, store.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(fiber.Map{"error": fiberErr.Message})
	}

	s.log.Error("request failed",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
}
