package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/coa/internal/accounts"
)

func newChartCommand() *cobra.Command {
	chartCmd := &cobra.Command{
		Use:   "chart",
		Short: "Chart of accounts import and export",
	}
	chartCmd.AddCommand(newChartImportCommand())
	chartCmd.AddCommand(newChartExportCommand())
	return chartCmd
}

func newChartImportCommand() *cobra.Command {
	var repoDir string
	var companyID int64
	var allocate bool

	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Create accounts and opening balances from a CSV chart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening chart: %w", err)
			}
			defer f.Close()
			rows, err := accounts.ReadChart(f)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			r, err := openRepo(ctx, repoDir)
			if err != nil {
				return err
			}
			defer r.Close()

			company, err := r.company(ctx, companyID)
			if err != nil {
				return err
			}
			res, err := r.accounts().Import(ctx, company, rows, accounts.ImportOptions{User: r.cfg.User.Name, Allocate: allocate})
			if err != nil {
				return err
			}
			if _, err := r.snapshot(ctx, fmt.Sprintf("chart: import %s", filepath.Base(args[0]))); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Imported %d account(s)\n", len(res.Created))
			if !res.Imbalance.IsZero() {
				fmt.Fprintf(out, "Opening balances were off by %s, booked on the undistributed earnings account\n", res.Imbalance.StringFixed(2))
			}
			return nil
		},
	}

	addRepoFlag(cmd, &repoDir)
	cmd.Flags().Int64Var(&companyID, "company", 0, "company id (default: the only company)")
	cmd.Flags().BoolVar(&allocate, "allocate", false, "give rows whose code is taken the next free code")
	return cmd
}

func newChartExportCommand() *cobra.Command {
	var repoDir, output string
	var companyID int64

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a company's chart as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			r, err := openRepo(ctx, repoDir)
			if err != nil {
				return err
			}
			defer r.Close()

			company, err := r.company(ctx, companyID)
			if err != nil {
				return err
			}
			rows, err := r.accounts().Export(ctx, company)
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("creating %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}
			return accounts.WriteChart(w, rows)
		},
	}

	addRepoFlag(cmd, &repoDir)
	cmd.Flags().Int64Var(&companyID, "company", 0, "company id (default: the only company)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to a file instead of stdout")
	return cmd
}
