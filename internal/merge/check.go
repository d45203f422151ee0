package merge

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/cleared-dev/coa/internal/errs"
	"github.com/cleared-dev/coa/internal/model"
	"github.com/cleared-dev/coa/internal/store"
)

// Plan is the outcome of a successful Check.
type Plan struct {
	Survivor      model.Account
	Absorbed      []model.Account
	CodeByCompany map[int64]string
}

// Companies returns the union of the companies of every merged account.
func (p Plan) Companies() []int64 {
	var out []int64
	for _, a := range append([]model.Account{p.Survivor}, p.Absorbed...) {
		out = append(out, a.Companies...)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// AbsorbedIDs returns the IDs of the accounts that disappear.
func (p Plan) AbsorbedIDs() []int64 {
	ids := make([]int64, len(p.Absorbed))
	for i, a := range p.Absorbed {
		ids[i] = a.ID
	}
	return ids
}

// Irreversible reports whether two merged accounts shared a company. Their
// journal items can no longer be told apart afterwards.
func (p Plan) Irreversible() bool {
	n := len(p.Survivor.Companies)
	for _, a := range p.Absorbed {
		n += len(a.Companies)
	}
	return n != len(p.Companies())
}

// Predicates answers the ledger questions Check asks about each account.
type Predicates interface {
	HasHashedEntries(ctx context.Context, accountID int64) (bool, error)
	LockDate(ctx context.Context, companyID int64) (date time.Time, ok bool, err error)
	HasLockedEntries(ctx context.Context, accountID, companyID int64, lockDate time.Time) (bool, error)
}

var _ Predicates = (*store.Tx)(nil)

// Check verifies that accts can be merged and picks the survivor and the
// code it keeps in each company. accts is in caller order.
func Check(ctx context.Context, q Predicates, accts []model.Account) (Plan, error) {
	if len(accts) < 2 {
		return Plan{}, errs.Userf("you must select at least 2 accounts to merge")
	}
	if diff := differingFields(accts); len(diff) > 0 {
		return Plan{}, errs.Userf("you may only merge accounts with the same type, currency, deprecated status, reconciliation and trade flags (they differ in %s)",
			strings.Join(diff, ", "))
	}

	var hashed []model.Account
	for _, a := range accts {
		ok, err := q.HasHashedEntries(ctx, a.ID)
		if err != nil {
			return Plan{}, err
		}
		if ok {
			hashed = append(hashed, a)
		}
	}
	var survivor *model.Account
	codes := make(map[int64]string)
	switch len(hashed) {
	case 0:
	case 1:
		survivor = &hashed[0]
		for _, c := range survivor.Companies {
			codes[c] = survivor.Code(c)
		}
	default:
		return Plan{}, errs.Userf("accounts %s contain hashed entries, so cannot be merged", displayNames(hashed))
	}

	final := accts[0]
	if survivor != nil {
		final = *survivor
	}

	for _, c := range companiesOf(accts) {
		members := inCompany(accts, c)
		lockDate, hasLock, err := q.LockDate(ctx, c)
		if err != nil {
			return Plan{}, err
		}
		if len(members) < 2 || !hasLock {
			codes[c] = codeOwner(members, final, c).Code(c)
			continue
		}

		var locked []model.Account
		for _, a := range members {
			ok, err := q.HasLockedEntries(ctx, a.ID, c, lockDate)
			if err != nil {
				return Plan{}, err
			}
			if ok {
				locked = append(locked, a)
			}
		}
		day := lockDate.Format("2006-01-02")
		switch {
		case len(locked) == 0:
			codes[c] = codeOwner(members, final, c).Code(c)
		case survivor != nil && survivor.InCompany(c) && (len(locked) > 1 || locked[0].ID != survivor.ID):
			return Plan{}, errs.Userf("company %d (lock date %s): cannot merge account %s that contains hashed entries with accounts %s that contain locked entries",
				c, day, survivor.DisplayName(c), displayNames(without(locked, survivor.ID)))
		case len(locked) == 1:
			codes[c] = locked[0].Code(c)
		default:
			return Plan{}, errs.Userf("company %d (lock date %s): cannot merge accounts %s that both contain locked entries",
				c, day, displayNames(locked))
		}
	}

	return Plan{
		Survivor:      final,
		Absorbed:      without(accts, final.ID),
		CodeByCompany: codes,
	}, nil
}

func differingFields(accts []model.Account) []string {
	first := accts[0]
	var diff []string
	add := func(name string, differs bool) {
		if differs && !slices.Contains(diff, name) {
			diff = append(diff, name)
		}
	}
	for _, a := range accts[1:] {
		add("account type", a.Type != first.Type)
		add("currency", a.Currency != first.Currency)
		add("deprecated", a.Deprecated != first.Deprecated)
		add("reconcile", a.Reconcile != first.Reconcile)
		add("non-trade", a.NonTrade != first.NonTrade)
	}
	return diff
}

// codeOwner picks whose code a company keeps when nothing is locked: the
// survivor when it belongs to the company, else the lowest account ID.
func codeOwner(members []model.Account, survivor model.Account, companyID int64) model.Account {
	if survivor.InCompany(companyID) {
		return survivor
	}
	return slices.MinFunc(members, func(a, b model.Account) int { return cmp.Compare(a.ID, b.ID) })
}

func companiesOf(accts []model.Account) []int64 {
	var out []int64
	for _, a := range accts {
		out = append(out, a.Companies...)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func inCompany(accts []model.Account, companyID int64) []model.Account {
	var out []model.Account
	for _, a := range accts {
		if a.InCompany(companyID) {
			out = append(out, a)
		}
	}
	return out
}

func without(accts []model.Account, id int64) []model.Account {
	var out []model.Account
	for _, a := range accts {
		if a.ID != id {
			out = append(out, a)
		}
	}
	return out
}

func displayNames(accts []model.Account) string {
	names := make([]string, len(accts))
	for i, a := range accts {
		name := a.Name
		if len(a.Companies) > 0 {
			name = a.DisplayName(a.Companies[0])
		}
		names[i] = fmt.Sprintf("%q", name)
	}
	return strings.Join(names, ", ")
}
