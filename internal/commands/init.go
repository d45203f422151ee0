package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/coa/internal/accounts"
	"github.com/cleared-dev/coa/internal/config"
	"github.com/cleared-dev/coa/internal/gitops"
	"github.com/cleared-dev/coa/internal/model"
	"github.com/cleared-dev/coa/internal/store"
)

func newInitCommand() *cobra.Command {
	var company string
	var empty, git bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new chart of accounts repository",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			return runInit(cmd.Context(), cmd.OutOrStdout(), absDir, company, empty, git)
		},
	}

	cmd.Flags().StringVar(&company, "company", "", "name of the first company (required)")
	_ = cmd.MarkFlagRequired("company")
	cmd.Flags().BoolVar(&empty, "empty", false, "do not load the default chart")
	cmd.Flags().BoolVar(&git, "git", false, "version chart snapshots in a git repository")

	return cmd
}

func runInit(ctx context.Context, out io.Writer, dir, companyName string, empty, git bool) error {
	cfgPath := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(cfgPath); err == nil {
		return fmt.Errorf("%s already exists", cfgPath)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("checking config: %w", err)
	}

	for _, d := range []string{dir, filepath.Join(dir, "logs")} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	cfg := config.Default()
	cfg.Git.Enabled = git
	if err := config.Save(cfgPath, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	gitignore := cfg.Database.Path + "\n" + cfg.Database.Path + "-*\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}

	r, err := openRepo(ctx, dir)
	if err != nil {
		return err
	}
	defer r.Close()

	c := model.Company{Name: companyName}
	if err := r.db.InTx(ctx, func(tx *store.Tx) error {
		return tx.CreateCompany(ctx, &c)
	}); err != nil {
		return fmt.Errorf("creating company: %w", err)
	}

	n := 0
	if !empty {
		res, err := r.accounts().Import(ctx, c.ID, accounts.DefaultChart(), accounts.ImportOptions{User: cfg.User.Name})
		if err != nil {
			return fmt.Errorf("loading default chart: %w", err)
		}
		n = len(res.Created)
	}

	if git {
		if err := gitops.Init(ctx, dir); err != nil {
			return err
		}
		hash, err := r.snapshot(ctx, "init: Initialize "+companyName)
		if err != nil {
			return fmt.Errorf("initial commit: %w", err)
		}
		fmt.Fprintf(out, "Committed initial chart (%s)\n", hash)
	}

	fmt.Fprintf(out, "Initialized chart of accounts at %s (company %d %q, %d accounts)\n", dir, c.ID, c.Name, n)
	return nil
}
