// Package merge folds several accounts into one. A merge is checked, confirmed
// by the user, then executed in a single transaction: references to the
// absorbed accounts are repointed to the survivor before they are deleted.
package merge

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/cleared-dev/coa/internal/accounts"
	"github.com/cleared-dev/coa/internal/auditlog"
	"github.com/cleared-dev/coa/internal/errs"
	"github.com/cleared-dev/coa/internal/id"
	"github.com/cleared-dev/coa/internal/model"
	"github.com/cleared-dev/coa/internal/store"
)

// Confirmer asks the user whether a checked merge may proceed.
type Confirmer interface {
	Confirm(ctx context.Context, p Plan) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, p Plan) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, p Plan) (bool, error) { return f(ctx, p) }

// Coordinator runs account merges.
type Coordinator struct {
	db      *store.DB
	log     *zap.Logger
	audit   *auditlog.Recorder
	confirm Confirmer
}

// NewCoordinator creates a Coordinator. confirm may be nil, in which case
// only pre-confirmed merges run.
func NewCoordinator(db *store.DB, log *zap.Logger, audit *auditlog.Recorder, confirm Confirmer) *Coordinator {
	return &Coordinator{db: db, log: log, audit: audit, confirm: confirm}
}

// Preview checks a merge without writing anything.
func (c *Coordinator) Preview(ctx context.Context, ids []int64) (Plan, error) {
	var plan Plan
	err := c.db.InTx(ctx, func(tx *store.Tx) error {
		var err error
		plan, err = checkTx(ctx, tx, ids)
		return err
	})
	return plan, err
}

// MergeAccounts merges the accounts ids and returns the survivor's ID.
// Unless confirmed is set the Confirmer is asked first.
func (c *Coordinator) MergeAccounts(ctx context.Context, user model.User, ids []int64, confirmed bool) (int64, error) {
	op := id.NewOperationID()
	log := c.log.With(zap.String("operation", op), zap.Int64s("accounts", ids))

	if !confirmed {
		plan, err := c.Preview(ctx, ids)
		if err != nil {
			log.Info("merge rejected", zap.Error(err))
			return 0, err
		}
		log.Info("merge validated",
			zap.Int64("survivor", plan.Survivor.ID),
			zap.Bool("irreversible", plan.Irreversible()))
		if err := c.Confirm(ctx, plan); err != nil {
			return 0, err
		}
	}

	var plan Plan
	err := c.db.InTx(ctx, func(tx *store.Tx) error {
		var err error
		// state may have moved since the preview
		if plan, err = checkTx(ctx, tx, ids); err != nil {
			return err
		}
		return Execute(ctx, tx, user, plan)
	})
	if err != nil {
		log.Warn("merge aborted", zap.Error(err))
		return 0, err
	}

	log.Info("merge executed",
		zap.Int64("survivor", plan.Survivor.ID),
		zap.Int64s("absorbed", plan.AbsorbedIDs()),
		zap.Int64s("companies", plan.Companies()))
	if err := c.audit.Record(user.Name, auditlog.ActionMerge, describe(plan), op); err != nil {
		log.Warn("audit log write failed", zap.Error(err))
	}
	return plan.Survivor.ID, nil
}

// Confirm asks the Confirmer about plan. A refusal is a UserError.
func (c *Coordinator) Confirm(ctx context.Context, p Plan) error {
	if c.confirm == nil {
		return errs.Userf("merging accounts must be confirmed:\n%s", Describe(p))
	}
	ok, err := c.confirm.Confirm(ctx, p)
	if err != nil {
		return fmt.Errorf("confirming merge: %w", err)
	}
	if !ok {
		return errs.Userf("merge cancelled")
	}
	return nil
}

func checkTx(ctx context.Context, tx *store.Tx, ids []int64) (Plan, error) {
	var unique []int64
	for _, v := range ids {
		if !slices.Contains(unique, v) {
			unique = append(unique, v)
		}
	}
	accts, err := tx.Accounts(ctx, unique)
	if err != nil {
		return Plan{}, fmt.Errorf("loading accounts: %w", err)
	}
	return Check(ctx, tx, accts)
}

// Execute applies a checked plan inside tx. Any error leaves tx to be rolled back.
func Execute(ctx context.Context, tx *store.Tx, user model.User, p Plan) error {
	if user.ReadOnly {
		return errs.Userf("user %q may not merge accounts", user.Name)
	}
	companies := p.Companies()
	var forbidden []string
	for _, c := range companies {
		if !user.CanAccess(c) {
			forbidden = append(forbidden, fmt.Sprint(c))
		}
	}
	if len(forbidden) > 0 {
		return errs.Userf("you do not have the right to perform this operation as you do not have access to the following companies: %s",
			strings.Join(forbidden, ", "))
	}

	absorbed := p.AbsorbedIDs()
	if _, err := tx.ReplaceAccountReferences(ctx, absorbed, p.Survivor.ID); err != nil {
		return fmt.Errorf("repointing references: %w", err)
	}
	tx.InvalidateCaches()
	if err := tx.DeleteAccounts(ctx, absorbed); err != nil {
		return fmt.Errorf("deleting merged accounts: %w", err)
	}
	tx.InvalidateCaches()

	codeCompanies := make([]int64, 0, len(p.CodeByCompany))
	for c := range p.CodeByCompany {
		codeCompanies = append(codeCompanies, c)
	}
	slices.Sort(codeCompanies)
	for _, c := range codeCompanies {
		if err := tx.SetAccountCode(ctx, p.Survivor.ID, c, p.CodeByCompany[c]); err != nil {
			return err
		}
	}
	if err := tx.SetAccountCompanies(ctx, p.Survivor.ID, companies); err != nil {
		return err
	}

	merged, err := tx.Account(ctx, p.Survivor.ID)
	if err != nil {
		return err
	}
	return accounts.EnsureCodesUnique(ctx, []model.Account{merged}, tx)
}

// Describe renders the confirmation text for a plan.
func Describe(p Plan) string {
	var b strings.Builder
	for _, a := range p.Absorbed {
		fmt.Fprintf(&b, "- %s (companies: %s) will be merged into %s (companies: %s)\n",
			label(a), joinIDs(a.Companies), label(p.Survivor), joinIDs(p.Survivor.Companies))
	}
	if p.Irreversible() {
		b.WriteString("This cannot be undone because you are merging accounts belonging to the same company.\n")
		b.WriteString("After merging, journal items can no longer be separated based on which account they originally referenced.\n")
	}
	return b.String()
}

func describe(p Plan) string {
	return fmt.Sprintf("merged %v into %d (companies %v)", p.AbsorbedIDs(), p.Survivor.ID, p.Companies())
}

func label(a model.Account) string {
	if len(a.Companies) == 0 {
		return a.Name
	}
	return a.DisplayName(a.Companies[0])
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, v := range ids {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ",")
}
