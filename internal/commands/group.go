package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/coa/internal/model"
)

func newGroupCommand() *cobra.Command {
	groupCmd := &cobra.Command{
		Use:   "group",
		Short: "Account group operations",
	}
	groupCmd.AddCommand(newGroupCreateCommand())
	groupCmd.AddCommand(newGroupUpdateCommand())
	groupCmd.AddCommand(newGroupDeleteCommand())
	groupCmd.AddCommand(newGroupListCommand())
	groupCmd.AddCommand(newGroupResolveCommand())
	return groupCmd
}

func newGroupCreateCommand() *cobra.Command {
	var repoDir string
	var g model.Group

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a group covering a code prefix range",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			r, err := openRepo(ctx, repoDir)
			if err != nil {
				return err
			}
			defer r.Close()

			if g.CompanyID, err = r.company(ctx, g.CompanyID); err != nil {
				return err
			}
			g.Name = args[0]
			created, err := r.groups().Create(ctx, g)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created group %d %s\n", created.ID, created.DisplayName())
			return nil
		},
	}

	addRepoFlag(cmd, &repoDir)
	cmd.Flags().Int64Var(&g.CompanyID, "company", 0, "company id (default: the only company)")
	cmd.Flags().StringVar(&g.PrefixStart, "start", "", "first code prefix covered")
	cmd.Flags().StringVar(&g.PrefixEnd, "end", "", "last code prefix covered (default: --start)")
	return cmd
}

func newGroupUpdateCommand() *cobra.Command {
	var repoDir string
	var g model.Group

	cmd := &cobra.Command{
		Use:   "update <group-id>",
		Short: "Rename a group or change its prefix range",
		Args:  cobra.ExactArgs(1),
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

			g.ID = ids[0]
			svc := r.groups()
			if err := svc.Update(ctx, g); err != nil {
				return err
			}
			updated, err := svc.Get(ctx, g.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated group %d %s\n", updated.ID, updated.DisplayName())
			return nil
		},
	}

	addRepoFlag(cmd, &repoDir)
	cmd.Flags().StringVar(&g.Name, "name", "", "new name")
	cmd.Flags().StringVar(&g.PrefixStart, "start", "", "new first code prefix")
	cmd.Flags().StringVar(&g.PrefixEnd, "end", "", "new last code prefix")
	return cmd
}

func newGroupDeleteCommand() *cobra.Command {
	var repoDir string

	cmd := &cobra.Command{
		Use:   "delete <group-id>",
		Short: "Delete a group, moving its children to its parent",
		Args:  cobra.ExactArgs(1),
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

			if err := r.groups().Delete(ctx, ids[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted group %d\n", ids[0])
			return nil
		},
	}

	addRepoFlag(cmd, &repoDir)
	return cmd
}

func newGroupListCommand() *cobra.Command {
	var repoDir string
	var companyID int64

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a company's groups with their parents",
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
			groups, err := r.groups().List(ctx, company)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, g := range groups {
				parent := "-"
				if g.ParentID != 0 {
					parent = fmt.Sprint(g.ParentID)
				}
				fmt.Fprintf(out, "%-4d %-40s parent %s\n", g.ID, g.DisplayName(), parent)
			}
			return nil
		},
	}

	addRepoFlag(cmd, &repoDir)
	cmd.Flags().Int64Var(&companyID, "company", 0, "company id (default: the only company)")
	return cmd
}

func newGroupResolveCommand() *cobra.Command {
	var repoDir string

	cmd := &cobra.Command{
		Use:   "resolve [company-id]...",
		Short: "Recompute group parents (default: every company)",
		RunE: func(cmd *cobra.Command, args []string) error {
			companies, err := parseIDs(args)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			r, err := openRepo(ctx, repoDir)
			if err != nil {
				return err
			}
			defer r.Close()

			if len(companies) == 0 {
				all, err := r.companies(ctx)
				if err != nil {
					return err
				}
				for _, c := range all {
					companies = append(companies, c.ID)
				}
			}
			changed, err := r.groups().Resolve(ctx, companies)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d group parent(s) changed\n", len(changed))
			return nil
		},
	}

	addRepoFlag(cmd, &repoDir)
	return cmd
}
