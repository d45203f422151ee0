package groups

import (
	"context"
	"fmt"
	"slices"

	"github.com/cleared-dev/coa/internal/errs"
	"github.com/cleared-dev/coa/internal/model"
	"github.com/cleared-dev/coa/internal/store"
)

// isParentOf reports whether p's prefix range contains c's and is strictly coarser.
func isParentOf(p, c model.Group) bool {
	if p.ID == c.ID || p.PrefixStart == "" || c.PrefixStart == "" {
		return false
	}
	if len(p.PrefixStart) >= len(c.PrefixStart) {
		return false
	}
	return p.PrefixStart <= c.PrefixStart[:len(p.PrefixStart)] &&
		p.PrefixEnd >= head(c.PrefixEnd, len(p.PrefixEnd))
}

// MostSpecificParents returns, for every group, the ID of the eligible parent
// with the longest prefix (lowest ID on ties), or 0 when none is eligible.
// groups must all belong to the same company.
func MostSpecificParents(groups []model.Group) map[int64]int64 {
	parents := make(map[int64]int64, len(groups))
	for _, c := range groups {
		var best *model.Group
		for i := range groups {
			p := &groups[i]
			if !isParentOf(*p, c) {
				continue
			}
			if best == nil || len(p.PrefixStart) > len(best.PrefixStart) ||
				(len(p.PrefixStart) == len(best.PrefixStart) && p.ID < best.ID) {
				best = p
			}
		}
		if best != nil {
			parents[c.ID] = best.ID
		} else {
			parents[c.ID] = 0
		}
	}
	return parents
}

// ResolveParents recomputes the parent of every group of the given companies
// and writes the links that changed. It returns the IDs of the groups whose
// parent changed; a second run without prefix edits returns none.
func ResolveParents(ctx context.Context, tx *store.Tx, companies []int64) ([]int64, error) {
	companies = slices.Clone(companies)
	slices.Sort(companies)
	companies = slices.Compact(companies)

	var changed []int64
	for _, c := range companies {
		groups, err := tx.GroupsByCompany(ctx, c)
		if err != nil {
			return nil, err
		}
		parents := MostSpecificParents(groups)
		if err := checkAcyclic(parents); err != nil {
			return nil, err
		}
		for _, g := range groups {
			if parents[g.ID] == g.ParentID {
				continue
			}
			if err := tx.SetGroupParent(ctx, g.ID, parents[g.ID]); err != nil {
				return nil, err
			}
			changed = append(changed, g.ID)
		}
	}
	slices.Sort(changed)
	return changed, nil
}

// checkAcyclic rejects a parent assignment containing a cycle. Geometry makes
// one impossible since a parent always has a strictly shorter prefix.
func checkAcyclic(parents map[int64]int64) error {
	for start := range parents {
		seen := map[int64]bool{start: true}
		for cur := parents[start]; cur != 0; cur = parents[cur] {
			if seen[cur] {
				return errs.ValidationError{Field: "parent_id", Message: fmt.Sprintf("you cannot create recursive groups (group %d)", start)}
			}
			seen[cur] = true
		}
	}
	return nil
}

func head(s string, n int) string {
	if len(s) < n {
		return s
	}
	return s[:n]
}
