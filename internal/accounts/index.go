package accounts

import (
	"sort"

	"github.com/cleared-dev/coa/internal/model"
)

// CodeIndex is a read-only sorted index of a company's account codes.
type CodeIndex[V any] struct {
	codes  []string
	values []V
}

// NewCodeIndex builds an index over code -> value.
func NewCodeIndex[V any](entries map[string]V) *CodeIndex[V] {
	ix := &CodeIndex[V]{codes: make([]string, 0, len(entries))}
	for c := range entries {
		ix.codes = append(ix.codes, c)
	}
	sort.Strings(ix.codes)
	ix.values = make([]V, len(ix.codes))
	for i, c := range ix.codes {
		ix.values[i] = entries[c]
	}
	return ix
}

// Len returns the number of indexed codes.
func (ix *CodeIndex[V]) Len() int { return len(ix.codes) }

// Preceding returns the value of the code sorting immediately before target,
// or def when no code does. An exact match of target is skipped.
func (ix *CodeIndex[V]) Preceding(target string, def V) V {
	i := sort.SearchStrings(ix.codes, target)
	if i == 0 {
		return def
	}
	return ix.values[i-1]
}

// InheritFromNearestPreceding is Preceding over a one-off index.
func InheritFromNearestPreceding[V any](companyCodes map[string]V, target string, def V) V {
	return NewCodeIndex(companyCodes).Preceding(target, def)
}

// typeIndex indexes the account types of a company's accounts by code.
func typeIndex(accts []model.Account, companyID int64) *CodeIndex[model.AccountType] {
	m := make(map[string]model.AccountType, len(accts))
	for _, a := range accts {
		if c := a.Code(companyID); c != "" {
			m[c] = a.Type
		}
	}
	return NewCodeIndex(m)
}

// tagIndex indexes the tag sets of a company's accounts by code.
func tagIndex(accts []model.Account, companyID int64) *CodeIndex[[]int64] {
	m := make(map[string][]int64, len(accts))
	for _, a := range accts {
		if c := a.Code(companyID); c != "" {
			m[c] = a.TagIDs
		}
	}
	return NewCodeIndex(m)
}
