package accounts

import (
	"context"
	"slices"
	"strings"

	"github.com/cleared-dev/coa/internal/errs"
	"github.com/cleared-dev/coa/internal/model"
	"github.com/cleared-dev/coa/internal/store"
)

// CodeOwnerLookup finds accounts holding codes in a company.
type CodeOwnerLookup interface {
	CodeOwners(ctx context.Context, companyID int64, codes []string, exclude []int64) ([]store.CodeOwner, error)
}

// EnsureCodesUnique checks that every account has a code in each of its
// companies and that no two accounts sharing a company share a code. When
// lookup is non-nil, accounts outside accts are checked too.
func EnsureCodesUnique(ctx context.Context, accts []model.Account, lookup CodeOwnerLookup) error {
	ids := make([]int64, 0, len(accts))
	byCompany := make(map[int64]map[string]int) // company -> code -> holders
	var companies []int64
	for _, a := range accts {
		ids = append(ids, a.ID)
		for _, c := range a.Companies {
			code := a.Code(c)
			if code == "" {
				return errs.Validationf("code", "the code must be set for every company to which account %q belongs", a.Name)
			}
			if byCompany[c] == nil {
				byCompany[c] = make(map[string]int)
				companies = append(companies, c)
			}
			byCompany[c][code]++
		}
	}
	slices.Sort(companies)

	var dups []string
	for _, c := range companies {
		codes := make([]string, 0, len(byCompany[c]))
		for code, n := range byCompany[c] {
			if n > 1 {
				dups = append(dups, code)
			}
			codes = append(codes, code)
		}
		if lookup == nil {
			continue
		}
		slices.Sort(codes)
		owners, err := lookup.CodeOwners(ctx, c, codes, ids)
		if err != nil {
			return err
		}
		for _, o := range owners {
			dups = append(dups, o.Code)
		}
	}
	if len(dups) == 0 {
		return nil
	}
	slices.Sort(dups)
	dups = slices.Compact(dups)
	return errs.Validationf("code", "account codes must be unique, duplicate codes: %s", strings.Join(dups, ", "))
}
