package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/coa/internal/buildinfo"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "coa",
		Short:   "Multi-company chart of accounts",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newCompanyCommand())
	rootCmd.AddCommand(newAccountCommand())
	rootCmd.AddCommand(newGroupCommand())
	rootCmd.AddCommand(newChartCommand())

	return rootCmd
}
