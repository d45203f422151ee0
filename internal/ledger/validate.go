package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/coa/internal/errs"
	"github.com/cleared-dev/coa/internal/model"
)

// AccountChecker resolves the accounts an entry books on.
type AccountChecker interface {
	Lookup(accountID int64) (model.Account, bool)
}

// accountSet is an AccountChecker over accounts already loaded from the store.
type accountSet map[int64]model.Account

func (s accountSet) Lookup(id int64) (model.Account, bool) {
	a, ok := s[id]
	return a, ok
}

var hundred = decimal.NewFromInt(100)

// Validate checks an entry before it is posted and returns every violation found.
func Validate(e model.Entry, accounts AccountChecker) []errs.ValidationError {
	var out []errs.ValidationError
	fail := func(field, format string, args ...any) {
		out = append(out, errs.ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if len(e.Lines) < 2 {
		fail("lines", "entry %s needs at least two lines", e.Name)
	}
	if !e.Balanced() {
		debit, credit := decimal.Zero, decimal.Zero
		for _, l := range e.Lines {
			debit = debit.Add(l.Debit)
			credit = credit.Add(l.Credit)
		}
		fail("lines", "entry %s: debits (%s) != credits (%s)", e.Name, debit.StringFixed(2), credit.StringFixed(2))
	}

	for i, l := range e.Lines {
		field := fmt.Sprintf("lines[%d]", i)

		if l.Debit.IsNegative() || l.Credit.IsNegative() {
			fail(field, "amounts must not be negative")
		}
		if l.Debit.IsZero() == l.Credit.IsZero() {
			fail(field, "line must have exactly one of debit or credit")
		}
		for _, amt := range []decimal.Decimal{l.Debit, l.Credit} {
			if !amt.Mul(hundred).Equal(amt.Mul(hundred).Floor()) {
				fail(field, "amount %s has more than 2 decimal places", amt)
			}
		}

		acct, ok := accounts.Lookup(l.AccountID)
		switch {
		case !ok:
			fail(field, "unknown account %d", l.AccountID)
		case !acct.InCompany(e.CompanyID):
			fail(field, "account %s does not belong to company %d", acct.Name, e.CompanyID)
		case acct.Deprecated:
			fail(field, "account %s is deprecated", acct.DisplayName(e.CompanyID))
		case acct.Currency != "" && l.Currency != "" && l.Currency != acct.Currency:
			fail(field, "account %s only accepts %s, got %s", acct.DisplayName(e.CompanyID), acct.Currency, l.Currency)
		}
	}
	return out
}
