package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ledgerflow-dev/ledgerflow/internal/accounts"
	"github.com/ledgerflow-dev/ledgerflow/internal/api"
	"github.com/ledgerflow-dev/ledgerflow/internal/config"
	"github.com/ledgerflow-dev/ledgerflow/internal/ledger"
	"github.com/ledgerflow-dev/ledgerflow/internal/logging"
	"github.com/ledgerflow-dev/ledgerflow/internal/rules"
	"github.com/ledgerflow-dev/ledgerflow/internal/store"
	"github.com/ledgerflow-dev/ledgerflow/internal/store/memory"
	"github.com/ledgerflow-dev/ledgerflow/internal/store/mongo"
)

func newServeCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the scheduled rule sweeper",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "ledgerflow.yaml", "path to config file")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log, err := logging.New(logging.Environment(cfg.Logging.Environment), cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := st.Close(closeCtx); err != nil {
			log.Warn("closing store", zap.Error(err))
		}
	}()

	accountsSvc := accounts.NewService(st, log)
	ledgerSvc := ledger.NewService(st, log)
	engine := rules.NewEngine(st, ledgerSvc, log)

	sweeper := rules.NewSweeper(engine, cfg.Sweep.Interval, cfg.Sweep.RuleTimeout, log)
	go sweeper.Run(ctx)

	server := api.NewServer(accountsSvc, ledgerSvc, engine, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Listen(cfg.Server.Addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case "memory":
		return memory.New(), nil
	case "mongo":
		return mongo.Open(ctx, mongo.Config{
			URI:      cfg.Store.URI,
			Database: cfg.Store.Database,
		})
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
