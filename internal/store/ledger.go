package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/coa/internal/model"
)

// OpeningBalance is the opening debit/credit of an account in a company.
type OpeningBalance struct {
	CompanyID int64
	AccountID int64
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// CreateEntry inserts a journal entry with its lines and sets the IDs.
func (tx *Tx) CreateEntry(ctx context.Context, e *model.Entry) error {
	id, err := tx.insert(ctx,
		`INSERT INTO move (company_id, name, date, state, inalterable_hash) VALUES (?, ?, ?, ?, ?)`,
		e.CompanyID, e.Name, formatDate(e.Date), string(e.State), e.Hash)
	if err != nil {
		return fmt.Errorf("inserting entry: %w", err)
	}
	e.ID = id
	for i := range e.Lines {
		l := &e.Lines[i]
		lineID, err := tx.insert(ctx,
			`INSERT INTO move_line (move_id, company_id, account_id, date, label, debit, credit, currency)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.CompanyID, l.AccountID, formatDate(e.Date), l.Label,
			l.Debit.String(), l.Credit.String(), l.Currency)
		if err != nil {
			return fmt.Errorf("inserting line %d of entry %s: %w", i, e.Name, err)
		}
		l.ID = lineID
	}
	return nil
}

// EntryNames returns the names of a company's entries starting with prefix.
func (tx *Tx) EntryNames(ctx context.Context, companyID int64, prefix string) ([]string, error) {
	rows, err := tx.tx.QueryContext(ctx,
		`SELECT name FROM move WHERE company_id = ? AND substr(name, 1, ?) = ? ORDER BY name`,
		companyID, len(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("querying entry names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scanning entry name: %w", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// LastHash returns the inalterable hash of a company's most recent hashed entry.
func (tx *Tx) LastHash(ctx context.Context, companyID int64) (string, error) {
	var h string
	err := tx.tx.QueryRowContext(ctx,
		`SELECT inalterable_hash FROM move
		  WHERE company_id = ? AND state = 'posted' AND inalterable_hash != ''
		  ORDER BY id DESC LIMIT 1`, companyID).Scan(&h)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading last hash: %w", err)
	}
	return h, nil
}

// EntryLines returns the lines booked on an account, oldest first.
func (tx *Tx) EntryLines(ctx context.Context, accountID int64) ([]model.Line, error) {
	rows, err := tx.tx.QueryContext(ctx,
		`SELECT id, account_id, label, debit, credit, currency FROM move_line WHERE account_id = ? ORDER BY id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("querying lines: %w", err)
	}
	defer rows.Close()

	var out []model.Line
	for rows.Next() {
		var l model.Line
		var debit, credit string
		if err := rows.Scan(&l.ID, &l.AccountID, &l.Label, &debit, &credit, &l.Currency); err != nil {
			return nil, fmt.Errorf("scanning line: %w", err)
		}
		if l.Debit, err = decimal.NewFromString(debit); err != nil {
			return nil, fmt.Errorf("parsing debit %q: %w", debit, err)
		}
		if l.Credit, err = decimal.NewFromString(credit); err != nil {
			return nil, fmt.Errorf("parsing credit %q: %w", credit, err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// HasEntries reports whether any line is booked on the account.
func (tx *Tx) HasEntries(ctx context.Context, accountID int64) (bool, error) {
	return tx.exists(ctx, `SELECT 1 FROM move_line WHERE account_id = ? LIMIT 1`, accountID)
}

// HasHashedEntries reports whether the account holds a line of a posted entry
// carrying an inalterable hash.
func (tx *Tx) HasHashedEntries(ctx context.Context, accountID int64) (bool, error) {
	return tx.exists(ctx, `
		SELECT 1 FROM move_line l
		  JOIN move m ON m.id = l.move_id
		 WHERE l.account_id = ? AND m.state = 'posted' AND m.inalterable_hash != ''
		 LIMIT 1`, accountID)
}

// HasLockedEntries reports whether the account holds, in a company, a line of a
// posted entry dated on or before lockDate.
func (tx *Tx) HasLockedEntries(ctx context.Context, accountID, companyID int64, lockDate time.Time) (bool, error) {
	return tx.exists(ctx, `
		SELECT 1 FROM move_line l
		  JOIN move m ON m.id = l.move_id
		 WHERE l.account_id = ? AND l.company_id = ? AND m.state = 'posted' AND l.date <= ?
		 LIMIT 1`, accountID, companyID, formatDate(lockDate))
}

// HasLinesInOtherCurrency reports whether the account holds lines in a foreign
// currency other than currency.
func (tx *Tx) HasLinesInOtherCurrency(ctx context.Context, accountID int64, currency string) (bool, error) {
	return tx.exists(ctx,
		`SELECT 1 FROM move_line WHERE account_id = ? AND currency != '' AND currency != ? LIMIT 1`,
		accountID, currency)
}

// SetOpeningBalance replaces the opening balance of an account in a company.
func (tx *Tx) SetOpeningBalance(ctx context.Context, ob OpeningBalance) error {
	if _, err := tx.tx.ExecContext(ctx,
		`DELETE FROM opening_balance WHERE company_id = ? AND account_id = ?`, ob.CompanyID, ob.AccountID); err != nil {
		return fmt.Errorf("clearing opening balance: %w", err)
	}
	if ob.Debit.IsZero() && ob.Credit.IsZero() {
		return nil
	}
	if _, err := tx.tx.ExecContext(ctx,
		`INSERT INTO opening_balance (company_id, account_id, debit, credit) VALUES (?, ?, ?, ?)`,
		ob.CompanyID, ob.AccountID, ob.Debit.String(), ob.Credit.String()); err != nil {
		return fmt.Errorf("writing opening balance: %w", err)
	}
	return nil
}

// OpeningBalances returns a company's opening balances, one per account.
func (tx *Tx) OpeningBalances(ctx context.Context, companyID int64) ([]OpeningBalance, error) {
	rows, err := tx.tx.QueryContext(ctx,
		`SELECT account_id, debit, credit FROM opening_balance WHERE company_id = ? ORDER BY account_id, id`, companyID)
	if err != nil {
		return nil, fmt.Errorf("querying opening balances: %w", err)
	}
	defer rows.Close()

	var out []OpeningBalance
	for rows.Next() {
		var acct int64
		var debit, credit string
		if err := rows.Scan(&acct, &debit, &credit); err != nil {
			return nil, fmt.Errorf("scanning opening balance: %w", err)
		}
		d, err := decimal.NewFromString(debit)
		if err != nil {
			return nil, fmt.Errorf("parsing debit %q: %w", debit, err)
		}
		c, err := decimal.NewFromString(credit)
		if err != nil {
			return nil, fmt.Errorf("parsing credit %q: %w", credit, err)
		}
		// merged accounts may leave several rows behind
		if n := len(out); n > 0 && out[n-1].AccountID == acct {
			out[n-1].Debit = out[n-1].Debit.Add(d)
			out[n-1].Credit = out[n-1].Credit.Add(c)
			continue
		}
		out = append(out, OpeningBalance{CompanyID: companyID, AccountID: acct, Debit: d, Credit: c})
	}
	return out, rows.Err()
}
