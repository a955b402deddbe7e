package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ledgerflow-dev/ledgerflow/internal/buildinfo"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "ledgerflow",
		Short:   "Personal finance ledger with rule-driven automatic transfers",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newSweepCommand())
	rootCmd.AddCommand(newImportCommand())

	return rootCmd
}
