package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/coa/internal/model"
	"github.com/cleared-dev/coa/internal/store"
)

const dateLayout = "2006-01-02"

func newCompanyCommand() *cobra.Command {
	companyCmd := &cobra.Command{
		Use:   "company",
		Short: "Company operations",
	}
	companyCmd.AddCommand(newCompanyAddCommand())
	companyCmd.AddCommand(newCompanyLockCommand())
	companyCmd.AddCommand(newCompanyListCommand())
	return companyCmd
}

func newCompanyAddCommand() *cobra.Command {
	var repoDir string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a company",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			r, err := openRepo(ctx, repoDir)
			if err != nil {
				return err
			}
			defer r.Close()

			c := model.Company{Name: args[0]}
			if err := r.db.InTx(ctx, func(tx *store.Tx) error {
				return tx.CreateCompany(ctx, &c)
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added company %d %q\n", c.ID, c.Name)
			return nil
		},
	}

	addRepoFlag(cmd, &repoDir)
	return cmd
}

func newCompanyLockCommand() *cobra.Command {
	var repoDir, fiscal, hard string

	cmd := &cobra.Command{
		Use:   "lock <company-id>",
		Short: "Set a company's lock dates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			fiscalDate, err := parseDate(fiscal)
			if err != nil {
				return err
			}
			hardDate, err := parseDate(hard)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			r, err := openRepo(ctx, repoDir)
			if err != nil {
				return err
			}
			defer r.Close()

			if err := r.db.InTx(ctx, func(tx *store.Tx) error {
				return tx.SetLockDates(ctx, ids[0], fiscalDate, hardDate)
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Locked company %d (fiscal %s, hard %s)\n", ids[0], orNone(fiscal), orNone(hard))
			return nil
		},
	}

	addRepoFlag(cmd, &repoDir)
	cmd.Flags().StringVar(&fiscal, "fiscal", "", "fiscal year lock date (YYYY-MM-DD, empty clears)")
	cmd.Flags().StringVar(&hard, "hard", "", "hard lock date (YYYY-MM-DD, empty clears)")
	return cmd
}

func newCompanyListCommand() *cobra.Command {
	var repoDir string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List companies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			r, err := openRepo(ctx, repoDir)
			if err != nil {
				return err
			}
			defer r.Close()

			companies, err := r.companies(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, c := range companies {
				lock := "-"
				if d, ok := c.LockDate(); ok {
					lock = d.Format(dateLayout)
				}
				fmt.Fprintf(out, "%-4d %-30s locked until %s\n", c.ID, c.Name, lock)
			}
			return nil
		},
	}

	addRepoFlag(cmd, &repoDir)
	return cmd
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return t, nil
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
