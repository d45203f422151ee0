package accounts

import (
	"context"
	"slices"

	"github.com/cleared-dev/coa/internal/code"
	"github.com/cleared-dev/coa/internal/errs"
	"github.com/cleared-dev/coa/internal/model"
	"github.com/cleared-dev/coa/internal/store"
)

// Validate checks the invariants of a single account that need no store access.
func Validate(a model.Account) error {
	if a.Name == "" {
		return errs.Validationf("name", "account name is required")
	}
	if len(a.Companies) == 0 {
		return errs.Validationf("companies", "account %q must belong to at least one company", a.Name)
	}
	if !a.Type.Valid() {
		return errs.ValidationError{Field: "account_type", Message: model.UnknownAccountType(a.Type)}
	}
	for _, c := range a.Companies {
		if a.Code(c) == "" {
			continue // reported by EnsureCodesUnique
		}
		if err := code.Check(a.Code(c)); err != nil {
			return err
		}
	}
	if a.Type.DefaultReconcile() && !a.Reconcile {
		return errs.Validationf("reconcile",
			"you cannot have a receivable/payable account that is not reconcilable (account %s)", a.DisplayName(a.Companies[0]))
	}
	if a.Type == model.AccountTypeOffBalance {
		if a.Reconcile {
			return errs.Validationf("reconcile", "an off-balance account can not be reconcilable")
		}
		if len(a.TaxIDs) > 0 {
			return errs.Validationf("tax_ids", "an off-balance account can not have taxes")
		}
	}
	return nil
}

// validateTx runs Validate plus the checks that read other records. prev is
// the stored version of a when a is being updated.
func validateTx(ctx context.Context, tx *store.Tx, a model.Account, prev *model.Account) error {
	if err := Validate(a); err != nil {
		return err
	}

	for _, c := range a.Companies {
		if _, err := tx.Company(ctx, c); err != nil {
			return err
		}
	}

	if a.Type == model.AccountTypeUnaffectedEarning {
		for _, c := range a.Companies {
			ids, err := tx.AccountIDsOfType(ctx, c, model.AccountTypeUnaffectedEarning)
			if err != nil {
				return err
			}
			if slices.ContainsFunc(ids, func(id int64) bool { return id != a.ID }) {
				return errs.Validationf("account_type",
					"you cannot have more than one account with %q as type in company %d", a.Type, c)
			}
		}
	}

	if len(a.TaxIDs) > 0 {
		owners, err := tx.TaxCompanies(ctx, a.TaxIDs)
		if err != nil {
			return err
		}
		for _, t := range a.TaxIDs {
			owner, ok := owners[t]
			if !ok {
				return errs.Validationf("tax_ids", "unknown tax %d", t)
			}
			if !a.InCompany(owner) {
				return errs.Validationf("tax_ids", "tax %d belongs to company %d, which account %q is not part of", t, owner, a.Name)
			}
		}
	}

	if prev != nil && a.Currency != "" && a.Currency != prev.Currency {
		other, err := tx.HasLinesInOtherCurrency(ctx, a.ID, a.Currency)
		if err != nil {
			return err
		}
		if other {
			return errs.Userf("you cannot set a currency on this account as it already has some journal entries having a different foreign currency")
		}
	}
	return nil
}
