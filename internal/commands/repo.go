package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cleared-dev/coa/internal/accounts"
	"github.com/cleared-dev/coa/internal/auditlog"
	"github.com/cleared-dev/coa/internal/config"
	"github.com/cleared-dev/coa/internal/gitops"
	"github.com/cleared-dev/coa/internal/groups"
	"github.com/cleared-dev/coa/internal/logging"
	"github.com/cleared-dev/coa/internal/model"
	"github.com/cleared-dev/coa/internal/store"
)

// repo is an opened coa repository: its config, database and logger.
type repo struct {
	dir   string
	cfg   *config.Config
	db    *store.DB
	log   *zap.Logger
	audit *auditlog.Recorder
}

func addRepoFlag(cmd *cobra.Command, dir *string) {
	cmd.Flags().StringVar(dir, "repo", ".", "repository directory")
}

func openRepo(ctx context.Context, dir string) (*repo, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	cfg, err := config.Load(filepath.Join(absDir, config.FileName))
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	db, err := store.Open(ctx, resolve(absDir, cfg.Database.Path))
	if err != nil {
		return nil, err
	}

	r := &repo{dir: absDir, cfg: cfg, db: db, log: log}
	if cfg.Audit.Enabled {
		r.audit = auditlog.NewRecorder(resolve(absDir, cfg.Audit.Path))
	}
	return r, nil
}

func (r *repo) Close() error {
	_ = r.log.Sync()
	return r.db.Close()
}

func resolve(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

func (r *repo) accounts() *accounts.Service {
	return accounts.NewService(r.db, r.log, accounts.Options{
		DefaultType: r.cfg.DefaultAccountType(),
		Audit:       r.audit,
	})
}

func (r *repo) groups() *groups.Service {
	return groups.NewService(r.db, r.log, groups.Options{User: r.cfg.User.Name, Audit: r.audit})
}

func (r *repo) companies(ctx context.Context) ([]model.Company, error) {
	var out []model.Company
	err := r.db.InTx(ctx, func(tx *store.Tx) error {
		var err error
		out, err = tx.Companies(ctx)
		return err
	})
	return out, err
}

// user returns the configured user. An empty company list grants every company.
func (r *repo) user(ctx context.Context) (model.User, error) {
	u := model.User{Name: r.cfg.User.Name, CompanyIDs: r.cfg.User.Companies, ReadOnly: r.cfg.User.ReadOnly}
	if len(u.CompanyIDs) > 0 {
		return u, nil
	}
	companies, err := r.companies(ctx)
	if err != nil {
		return model.User{}, err
	}
	for _, c := range companies {
		u.CompanyIDs = append(u.CompanyIDs, c.ID)
	}
	return u, nil
}

// company returns id, or the only company of the repository when id is 0.
func (r *repo) company(ctx context.Context, id int64) (int64, error) {
	if id != 0 {
		return id, nil
	}
	companies, err := r.companies(ctx)
	if err != nil {
		return 0, err
	}
	if len(companies) != 1 {
		return 0, fmt.Errorf("--company is required when the repository has %d companies", len(companies))
	}
	return companies[0].ID, nil
}

// snapshot exports every company's chart under chart/ and commits the
// repository. It does nothing unless git snapshots are enabled.
func (r *repo) snapshot(ctx context.Context, message string) (string, error) {
	if !r.cfg.Git.Enabled || !gitops.IsRepo(r.dir) {
		return "", nil
	}
	companies, err := r.companies(ctx)
	if err != nil {
		return "", err
	}
	chartDir := filepath.Join(r.dir, "chart")
	if err := os.MkdirAll(chartDir, 0o755); err != nil {
		return "", fmt.Errorf("creating chart directory: %w", err)
	}
	svc := r.accounts()
	for _, c := range companies {
		rows, err := svc.Export(ctx, c.ID)
		if err != nil {
			return "", err
		}
		f, err := os.Create(filepath.Join(chartDir, fmt.Sprintf("company-%d.csv", c.ID)))
		if err != nil {
			return "", fmt.Errorf("writing chart snapshot: %w", err)
		}
		err = accounts.WriteChart(f, rows)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return "", fmt.Errorf("writing chart snapshot: %w", err)
		}
	}
	hash, err := gitops.CommitAll(ctx, r.dir, message, r.cfg.Git.AuthorName, r.cfg.Git.AuthorEmail)
	if err != nil {
		return "", err
	}
	if hash != "" {
		r.log.Info("chart snapshot committed", zap.String("commit", hash), zap.String("message", message))
	}
	return hash, nil
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := strconv.ParseInt(a, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", a)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
