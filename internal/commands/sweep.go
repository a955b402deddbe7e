package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ledgerflow-dev/ledgerflow/internal/config"
	"github.com/ledgerflow-dev/ledgerflow/internal/ledger"
	"github.com/ledgerflow-dev/ledgerflow/internal/logging"
	"github.com/ledgerflow-dev/ledgerflow/internal/rules"
)

func newSweepCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Execute all due scheduled rules once and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return runSweep(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "ledgerflow.yaml", "path to config file")

	return cmd
}

func runSweep(ctx context.Context, cfg *config.Config) error {
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
		_ = st.Close(closeCtx)
	}()

	engine := rules.NewEngine(st, ledger.NewService(st, log), log)
	results := engine.Sweep(ctx, cfg.Sweep.RuleTimeout)

	executed := 0
	for _, r := range results {
		if r.Executed {
			executed++
		} else if r.Reason != "" {
			fmt.Printf("rule %s skipped: %s\n", r.RuleID, r.Reason)
		}
	}
	fmt.Printf("Swept %d due rule(s), executed %d\n", len(results), executed)
	return nil
}
