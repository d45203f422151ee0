package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/coa/internal/accounts"
	"github.com/cleared-dev/coa/internal/merge"
	"github.com/cleared-dev/coa/internal/model"
)

func newAccountCommand() *cobra.Command {
	accountCmd := &cobra.Command{
		Use:   "account",
		Short: "Account operations",
	}
	accountCmd.AddCommand(newAccountCreateCommand())
	accountCmd.AddCommand(newAccountCopyCommand())
	accountCmd.AddCommand(newAccountListCommand())
	accountCmd.AddCommand(newAccountDeleteCommand())
	accountCmd.AddCommand(newAccountNextCodeCommand())
	accountCmd.AddCommand(newAccountMergeCommand())
	return accountCmd
}

func newAccountCreateCommand() *cobra.Command {
	var repoDir, typ string
	var companyID int64
	var reconcile bool
	var p accounts.CreateParams

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create an account",
		Long:  "Create an account. A name such as \"101000 Cash\" also sets the code.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			r, err := openRepo(ctx, repoDir)
			if err != nil {
				return err
			}
			defer r.Close()

			if p.CompanyID, err = r.company(ctx, companyID); err != nil {
				return err
			}
			p.Name = args[0]
			p.Type = model.AccountType(typ)
			if cmd.Flags().Changed("reconcile") {
				p.Reconcile = &reconcile
			}

			a, err := r.accounts().Create(ctx, p)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created account %d %s (%s)\n", a.ID, a.DisplayName(p.CompanyID), a.Type)
			return nil
		},
	}

	addRepoFlag(cmd, &repoDir)
	cmd.Flags().Int64Var(&companyID, "company", 0, "company id (default: the only company)")
	cmd.Flags().StringVar(&p.Code, "code", "", "account code")
	cmd.Flags().StringVar(&p.Prefix, "prefix", "", "allocate the first free code starting with this prefix")
	cmd.Flags().IntVar(&p.Digits, "digits", 6, "code length used with --prefix")
	cmd.Flags().StringVar(&typ, "type", "", "account type (default: type of the preceding code)")
	cmd.Flags().BoolVar(&reconcile, "reconcile", false, "allow reconciliation (default: per type)")
	cmd.Flags().StringVar(&p.Currency, "currency", "", "restrict entries to one currency")
	cmd.Flags().BoolVar(&p.NonTrade, "non-trade", false, "mark a receivable or payable as non-trade")
	cmd.Flags().StringVar(&p.Note, "note", "", "internal note")
	return cmd
}

func newAccountCopyCommand() *cobra.Command {
	var repoDir string
	var companyID int64

	cmd := &cobra.Command{
		Use:   "copy <account-id>...",
		Short: "Copy accounts, allocating fresh codes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			r, err := openRepo(ctx, repoDir)
			if err != nil {
				return err
			}
			defer r.Close()

			copies, err := r.accounts().Copy(ctx, ids, companyID)
			if err != nil {
				return err
			}
			for _, a := range copies {
				fmt.Fprintf(cmd.OutOrStdout(), "Created account %d %s\n", a.ID, a.DisplayName(a.Companies[0]))
			}
			return nil
		},
	}

	addRepoFlag(cmd, &repoDir)
	cmd.Flags().Int64Var(&companyID, "company", 0, "target company (default: each account's first company)")
	return cmd
}

func newAccountListCommand() *cobra.Command {
	var repoDir string
	var companyID int64

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a company's accounts by code",
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
			accts, err := r.accounts().List(ctx, company)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, a := range accts {
				fmt.Fprintf(out, "%-4d %-10s %-40s %s\n", a.ID, a.Code(company), a.Name, a.Type)
			}
			return nil
		},
	}

	addRepoFlag(cmd, &repoDir)
	cmd.Flags().Int64Var(&companyID, "company", 0, "company id (default: the only company)")
	return cmd
}

func newAccountDeleteCommand() *cobra.Command {
	var repoDir string

	cmd := &cobra.Command{
		Use:   "delete <account-id>...",
		Short: "Delete unused accounts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			r, err := openRepo(ctx, repoDir)
			if err != nil {
				return err
			}
			defer r.Close()

			if err := r.accounts().Delete(ctx, r.cfg.User.Name, ids); err != nil {
				return err
			}
			if _, err := r.snapshot(ctx, fmt.Sprintf("account: delete %v", ids)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d account(s)\n", len(ids))
			return nil
		},
	}

	addRepoFlag(cmd, &repoDir)
	return cmd
}

func newAccountNextCodeCommand() *cobra.Command {
	var repoDir string
	var companyID int64

	cmd := &cobra.Command{
		Use:   "next-code <start>",
		Short: "Print the first free code at or after start",
		Args:  cobra.ExactArgs(1),
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
			c, err := r.accounts().NextCode(ctx, company, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), c)
			return nil
		},
	}

	addRepoFlag(cmd, &repoDir)
	cmd.Flags().Int64Var(&companyID, "company", 0, "company id (default: the only company)")
	return cmd
}

func newAccountMergeCommand() *cobra.Command {
	var repoDir string
	var yes bool

	cmd := &cobra.Command{
		Use:   "merge <account-id> <account-id>...",
		Short: "Merge accounts into one",
		Long: "Merge accounts into one. Journal items and other references move to the surviving\n" +
			"account, the others are deleted. The survivor is the account holding hashed entries,\n" +
			"or the first one given.",
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			r, err := openRepo(ctx, repoDir)
			if err != nil {
				return err
			}
			defer r.Close()

			user, err := r.user(ctx)
			if err != nil {
				return err
			}
			confirm := promptConfirmer{in: cmd.InOrStdin(), out: cmd.OutOrStdout()}
			survivor, err := merge.NewCoordinator(r.db, r.log, r.audit, confirm).MergeAccounts(ctx, user, ids, yes)
			if err != nil {
				return err
			}
			if _, err := r.snapshot(ctx, fmt.Sprintf("account: merge %v into %d", ids, survivor)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Accounts successfully merged into %d\n", survivor)
			return nil
		},
	}

	addRepoFlag(cmd, &repoDir)
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

// promptConfirmer asks on the terminal before a merge runs.
type promptConfirmer struct {
	in  io.Reader
	out io.Writer
}

func (p promptConfirmer) Confirm(_ context.Context, plan merge.Plan) (bool, error) {
	fmt.Fprint(p.out, "Are you sure? This will perform the following operations:\n")
	fmt.Fprint(p.out, merge.Describe(plan))
	fmt.Fprint(p.out, "Proceed? [y/N] ")
	line, err := bufio.NewReader(p.in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("reading answer: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
