package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ledgerflow-dev/ledgerflow/internal/config"
	"github.com/ledgerflow-dev/ledgerflow/internal/importer"
	"github.com/ledgerflow-dev/ledgerflow/internal/ledger"
	"github.com/ledgerflow-dev/ledgerflow/internal/logging"
	"github.com/ledgerflow-dev/ledgerflow/internal/rules"
)

func newImportCommand() *cobra.Command {
	var configPath string
	var userID string
	var accountID string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import bank transactions from a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return runImport(cmd.Context(), cfg, args[0], userID, accountID, dryRun)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "ledgerflow.yaml", "path to config file")
	cmd.Flags().StringVar(&userID, "user", "", "user the transactions belong to (required)")
	cmd.Flags().StringVar(&accountID, "account", "", "account to import into (required)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "parse and report without recording anything")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}

func runImport(ctx context.Context, cfg *config.Config, path, userID, accountID string, dryRun bool) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	if dryRun {
		rows, err := importer.ParseRows(f)
		if err != nil {
			return err
		}
		for _, row := range rows {
			fmt.Printf("%s  %s  %s  %s\n",
				row.Date.Format("2006-01-02"), row.Amount.StringFixed(2), row.Category, row.Description)
		}
		fmt.Printf("Parsed %d row(s), nothing recorded\n", len(rows))
		return nil
	}

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

	ledgerSvc := ledger.NewService(st, log)
	engine := rules.NewEngine(st, ledgerSvc, log)
	im := importer.New(ledgerSvc, engine, log)

	summary, err := im.Import(ctx, f, userID, accountID)
	if err != nil {
		return err
	}

	fmt.Printf("Imported %d transaction(s), %d rule(s) fired\n", summary.Imported, summary.RulesFired)
	return nil
}
