// Package accounts manages the accounts of the chart: creation with code
// allocation, copies, edits, guarded deletion and CSV import/export.
package accounts

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cleared-dev/coa/internal/auditlog"
	"github.com/cleared-dev/coa/internal/code"
	"github.com/cleared-dev/coa/internal/errs"
	"github.com/cleared-dev/coa/internal/model"
	"github.com/cleared-dev/coa/internal/store"
)

// Options configures a Service.
type Options struct {
	DefaultType model.AccountType // type of a new account when no code precedes it
	Audit       *auditlog.Recorder
}

// Service provides account operations over the store.
type Service struct {
	db   *store.DB
	log  *zap.Logger
	opts Options
}

// NewService creates an account Service.
func NewService(db *store.DB, log *zap.Logger, opts Options) *Service {
	if opts.DefaultType == "" {
		opts.DefaultType = model.AccountTypeCurrentAsset
	}
	return &Service{db: db, log: log, opts: opts}
}

// CreateParams holds parameters for creating an account in one company.
type CreateParams struct {
	CompanyID int64
	Name      string // "101000 Cash" is split into code and name when Code is empty
	Code      string
	Prefix    string // with Digits: allocate the first free code of the numbering plan
	Digits    int
	Type      model.AccountType // empty = type of the nearest preceding code
	Reconcile *bool             // nil = the type's default
	Currency  string
	NonTrade  bool
	Note      string
	TaxIDs    []int64
	TagIDs    []int64 // nil = tags of the nearest preceding code
}

// Create creates an account.
func (s *Service) Create(ctx context.Context, p CreateParams) (model.Account, error) {
	var a model.Account
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		var err error
		a, err = s.createTx(ctx, tx, p, code.NewSet())
		return err
	})
	if err != nil {
		return model.Account{}, err
	}
	s.log.Info("account created",
		zap.Int64("id", a.ID),
		zap.Int64("company", p.CompanyID),
		zap.String("code", a.Code(p.CompanyID)),
		zap.String("type", string(a.Type)))
	return a, nil
}

// createTx creates an account inside tx. tried holds the codes already handed
// out by the surrounding batch.
func (s *Service) createTx(ctx context.Context, tx *store.Tx, p CreateParams, tried code.Set) (model.Account, error) {
	if _, err := tx.Company(ctx, p.CompanyID); err != nil {
		return model.Account{}, err
	}

	name, c := p.Name, p.Code
	switch {
	case p.Prefix != "":
		if p.Digits <= 0 {
			return model.Account{}, errs.Validationf("digits", "the number of code digits must be positive")
		}
		var err error
		c, err = code.NextAvailable(code.FromPrefix(p.Prefix, p.Digits), usedIn(ctx, tx, p.CompanyID), tried)
		if err != nil {
			return model.Account{}, err
		}
	case c == "":
		c, name = code.SplitCodeName(p.Name)
	}
	if c == "" {
		return model.Account{}, errs.Validationf("code", "the code must be set for every company to which account %q belongs", name)
	}
	tried.Add(c)

	a := model.Account{
		Name:      name,
		Type:      p.Type,
		Currency:  p.Currency,
		NonTrade:  p.NonTrade,
		Note:      p.Note,
		Companies: []int64{p.CompanyID},
		TaxIDs:    p.TaxIDs,
		TagIDs:    p.TagIDs,
	}
	a.SetCode(p.CompanyID, c)

	if a.Type == "" || a.TagIDs == nil {
		existing, err := tx.AccountsByCompany(ctx, p.CompanyID)
		if err != nil {
			return model.Account{}, err
		}
		if a.Type == "" {
			a.Type = typeIndex(existing, p.CompanyID).Preceding(c, s.opts.DefaultType)
		}
		if a.TagIDs == nil {
			a.TagIDs = tagIndex(existing, p.CompanyID).Preceding(c, nil)
		}
	}
	a.Reconcile = a.Type.DefaultReconcile()
	if p.Reconcile != nil {
		a.Reconcile = *p.Reconcile
	}

	if err := validateTx(ctx, tx, a, nil); err != nil {
		return model.Account{}, err
	}
	if err := tx.CreateAccount(ctx, &a); err != nil {
		return model.Account{}, err
	}
	if err := EnsureCodesUnique(ctx, []model.Account{a}, tx); err != nil {
		return model.Account{}, err
	}
	return a, nil
}

// Copy duplicates accounts into a company (0 = each source's first company).
// Codes are allocated from the source code, names get a " (copy)" suffix and
// taxes of other companies are dropped.
func (s *Service) Copy(ctx context.Context, ids []int64, companyID int64) ([]model.Account, error) {
	var out []model.Account
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		srcs, err := tx.Accounts(ctx, ids)
		if err != nil {
			return err
		}
		tried := make(map[int64]code.Set)
		for _, src := range srcs {
			company := companyID
			if company == 0 {
				company = src.Companies[0]
			}
			if tried[company] == nil {
				tried[company] = code.NewSet()
			}

			start := src.Code(company)
			if start == "" {
				start = src.Code(src.Companies[0])
			}
			c, err := code.NextAvailable(start, usedIn(ctx, tx, company), tried[company])
			if err != nil {
				return err
			}
			tried[company].Add(c)

			taxCompanies, err := tx.TaxCompanies(ctx, src.TaxIDs)
			if err != nil {
				return err
			}
			var taxes []int64
			for _, t := range src.TaxIDs {
				if taxCompanies[t] == company {
					taxes = append(taxes, t)
				}
			}

			dup := model.Account{
				Name:       fmt.Sprintf("%s (copy)", src.Name),
				Type:       src.Type,
				Reconcile:  src.Reconcile,
				Currency:   src.Currency,
				Deprecated: src.Deprecated,
				NonTrade:   src.NonTrade,
				Note:       src.Note,
				Companies:  []int64{company},
				TaxIDs:     taxes,
				TagIDs:     src.TagIDs,
			}
			dup.SetCode(company, c)
			if err := validateTx(ctx, tx, dup, nil); err != nil {
				return err
			}
			if err := tx.CreateAccount(ctx, &dup); err != nil {
				return err
			}
			out = append(out, dup)
		}
		return EnsureCodesUnique(ctx, out, tx)
	})
	if err != nil {
		return nil, err
	}
	for _, a := range out {
		s.log.Info("account copied", zap.Int64("id", a.ID), zap.String("name", a.Name))
	}
	return out, nil
}

// Update writes every attribute of an existing account, including its
// companies and per-company codes.
func (s *Service) Update(ctx context.Context, a model.Account) error {
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		prev, err := tx.Account(ctx, a.ID)
		if err != nil {
			return err
		}
		if err := validateTx(ctx, tx, a, &prev); err != nil {
			return err
		}
		if err := tx.UpdateAccount(ctx, a); err != nil {
			return err
		}
		return EnsureCodesUnique(ctx, []model.Account{a}, tx)
	})
	if err != nil {
		return err
	}
	s.log.Info("account updated", zap.Int64("id", a.ID))
	return nil
}

// Delete removes accounts that nothing in the ledger depends on.
func (s *Service) Delete(ctx context.Context, user string, ids []int64) error {
	var accts []model.Account
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		var err error
		accts, err = tx.Accounts(ctx, ids)
		if err != nil {
			return err
		}
		for _, a := range accts {
			if err := checkDeletable(ctx, tx, a); err != nil {
				return err
			}
		}
		return tx.DeleteAccounts(ctx, ids)
	})
	if err != nil {
		return err
	}
	for _, a := range accts {
		s.log.Info("account deleted", zap.Int64("id", a.ID), zap.String("name", a.Name))
		details := fmt.Sprintf("deleted account %d %q", a.ID, a.Name)
		if err := s.opts.Audit.Record(user, auditlog.ActionDeleteAccount, details, ""); err != nil {
			s.log.Warn("audit log write failed", zap.Error(err))
		}
	}
	return nil
}

func checkDeletable(ctx context.Context, tx *store.Tx, a model.Account) error {
	has, err := tx.HasEntries(ctx, a.ID)
	if err != nil {
		return err
	}
	if has {
		return errs.Userf("you cannot perform this action on an account that contains journal items (account %q)", a.Name)
	}
	used, err := tx.ReferencedByProperty(ctx, model.Reference{Model: model.ModelAccount, ID: a.ID})
	if err != nil {
		return err
	}
	if used {
		return errs.Userf("you can't delete the account %q, as it is used on a contact", a.Name)
	}
	used, err = tx.UsedOnTaxRepartition(ctx, a.ID)
	if err != nil {
		return err
	}
	if used {
		return errs.Userf("you cannot remove the account %q which is set on a tax repartition line", a.Name)
	}
	return nil
}

// NextCode returns the first free code strictly after start in a company.
func (s *Service) NextCode(ctx context.Context, companyID int64, start string) (string, error) {
	var next string
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		if _, err := tx.Company(ctx, companyID); err != nil {
			return err
		}
		var err error
		next, err = code.NextAvailable(start, usedIn(ctx, tx, companyID), nil)
		return err
	})
	if err != nil {
		return "", err
	}
	s.log.Debug("code allocated", zap.String("start", start), zap.String("code", next))
	return next, nil
}

// Get returns an account by ID.
func (s *Service) Get(ctx context.Context, id int64) (model.Account, error) {
	var a model.Account
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		var err error
		a, err = tx.Account(ctx, id)
		return err
	})
	return a, err
}

// List returns a company's accounts ordered by code.
func (s *Service) List(ctx context.Context, companyID int64) ([]model.Account, error) {
	var accts []model.Account
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		var err error
		accts, err = tx.AccountsByCompany(ctx, companyID)
		return err
	})
	return accts, err
}

func usedIn(ctx context.Context, tx *store.Tx, companyID int64) code.UsedFunc {
	return func(c string) (bool, error) {
		return tx.CodeTaken(ctx, companyID, c)
	}
}
