package store

import (
	"context"
	"fmt"
	"slices"

	"github.com/cleared-dev/coa/internal/errs"
	"github.com/cleared-dev/coa/internal/model"
)

const accountColumns = `a.id, a.name, a.account_type, a.reconcile, a.currency, a.deprecated, a.non_trade, a.note`

// CodeOwner is an account holding a code in a company.
type CodeOwner struct {
	AccountID int64
	CompanyID int64
	Code      string
}

// CreateAccount inserts an account with its companies, codes, taxes and tags,
// and sets its ID.
func (tx *Tx) CreateAccount(ctx context.Context, a *model.Account) error {
	id, err := tx.insert(ctx,
		`INSERT INTO account (name, account_type, reconcile, currency, deprecated, non_trade, note)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.Name, string(a.Type), boolToInt(a.Reconcile), a.Currency,
		boolToInt(a.Deprecated), boolToInt(a.NonTrade), a.Note)
	if err != nil {
		return fmt.Errorf("inserting account: %w", err)
	}
	a.ID = id
	if err := tx.writeAccountSets(ctx, *a); err != nil {
		return err
	}
	return nil
}

// UpdateAccount writes every attribute of an existing account, replacing its
// company, code, tax and tag sets.
func (tx *Tx) UpdateAccount(ctx context.Context, a model.Account) error {
	n, err := tx.Exec(ctx,
		`UPDATE account SET name = ?, account_type = ?, reconcile = ?, currency = ?,
		        deprecated = ?, non_trade = ?, note = ?
		  WHERE id = ?`,
		a.Name, string(a.Type), boolToInt(a.Reconcile), a.Currency,
		boolToInt(a.Deprecated), boolToInt(a.NonTrade), a.Note, a.ID)
	if err != nil {
		return fmt.Errorf("updating account %d: %w", a.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("account %d: %w", a.ID, errs.ErrNotFound)
	}
	if err := tx.clearAccountSets(ctx, []int64{a.ID}); err != nil {
		return err
	}
	return tx.writeAccountSets(ctx, a)
}

// DeleteAccounts removes accounts and their company, code, tax and tag rows.
// Rows elsewhere that still reference the accounts make the delete fail.
func (tx *Tx) DeleteAccounts(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	if err := tx.clearAccountSets(ctx, ids); err != nil {
		return err
	}
	q := `DELETE FROM account WHERE id IN (` + placeholders(len(ids)) + `)`
	if _, err := tx.tx.ExecContext(ctx, q, int64Args(ids)...); err != nil {
		return fmt.Errorf("deleting accounts %v: %w", ids, err)
	}
	return nil
}

// Account returns an account by ID.
func (tx *Tx) Account(ctx context.Context, id int64) (model.Account, error) {
	accts, err := tx.Accounts(ctx, []int64{id})
	if err != nil {
		return model.Account{}, err
	}
	return accts[0], nil
}

// Accounts returns accounts in the order of ids. A missing id is ErrNotFound.
func (tx *Tx) Accounts(ctx context.Context, ids []int64) ([]model.Account, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := `SELECT ` + accountColumns + ` FROM account a WHERE a.id IN (` + placeholders(len(ids)) + `)`
	found, err := tx.queryAccounts(ctx, q, int64Args(ids)...)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]model.Account, len(found))
	for _, a := range found {
		byID[a.ID] = a
	}
	out := make([]model.Account, 0, len(ids))
	for _, id := range ids {
		a, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("account %d: %w", id, errs.ErrNotFound)
		}
		out = append(out, a)
	}
	return out, nil
}

// AccountsByCompany returns the accounts of a company ordered by their code there.
func (tx *Tx) AccountsByCompany(ctx context.Context, companyID int64) ([]model.Account, error) {
	q := `SELECT ` + accountColumns + `
	        FROM account a
	        JOIN account_company ac ON ac.account_id = a.id AND ac.company_id = ?
	   LEFT JOIN account_code c ON c.account_id = a.id AND c.company_id = ac.company_id
	    ORDER BY COALESCE(c.code, ''), a.id`
	return tx.queryAccounts(ctx, q, companyID)
}

// AccountIDsOfType returns the IDs of a company's accounts of the given type.
func (tx *Tx) AccountIDsOfType(ctx context.Context, companyID int64, t model.AccountType) ([]int64, error) {
	rows, err := tx.tx.QueryContext(ctx,
		`SELECT a.id FROM account a
		   JOIN account_company ac ON ac.account_id = a.id
		  WHERE ac.company_id = ? AND a.account_type = ?
		  ORDER BY a.id`, companyID, string(t))
	if err != nil {
		return nil, fmt.Errorf("querying accounts of type %s: %w", t, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning account id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CodeTaken reports whether any account uses code in a company.
func (tx *Tx) CodeTaken(ctx context.Context, companyID int64, code string) (bool, error) {
	ok, err := tx.exists(ctx,
		`SELECT 1 FROM account_code WHERE company_id = ? AND code = ? LIMIT 1`, companyID, code)
	if err != nil {
		return false, fmt.Errorf("checking code %q: %w", code, err)
	}
	return ok, nil
}

// CodeOwners returns the holders of any of codes in a company, excluding the
// accounts in exclude.
func (tx *Tx) CodeOwners(ctx context.Context, companyID int64, codes []string, exclude []int64) ([]CodeOwner, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	args := []any{companyID}
	for _, c := range codes {
		args = append(args, c)
	}
	q := `SELECT account_id, company_id, code FROM account_code
	       WHERE company_id = ? AND code IN (` + placeholders(len(codes)) + `)`
	if len(exclude) > 0 {
		q += ` AND account_id NOT IN (` + placeholders(len(exclude)) + `)`
		args = append(args, int64Args(exclude)...)
	}
	q += ` ORDER BY code, account_id`

	rows, err := tx.tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying code owners: %w", err)
	}
	defer rows.Close()

	var out []CodeOwner
	for rows.Next() {
		var o CodeOwner
		if err := rows.Scan(&o.AccountID, &o.CompanyID, &o.Code); err != nil {
			return nil, fmt.Errorf("scanning code owner: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (tx *Tx) queryAccounts(ctx context.Context, q string, args ...any) ([]model.Account, error) {
	rows, err := tx.tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying accounts: %w", err)
	}
	var accts []model.Account
	for rows.Next() {
		var a model.Account
		var typ string
		var reconcile, deprecated, nonTrade int
		if err := rows.Scan(&a.ID, &a.Name, &typ, &reconcile, &a.Currency, &deprecated, &nonTrade, &a.Note); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning account: %w", err)
		}
		a.Type = model.AccountType(typ)
		a.Reconcile = reconcile != 0
		a.Deprecated = deprecated != 0
		a.NonTrade = nonTrade != 0
		a.Codes = make(map[int64]string)
		accts = append(accts, a)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("reading accounts: %w", err)
	}
	rows.Close()

	if err := tx.hydrate(ctx, accts); err != nil {
		return nil, err
	}
	return accts, nil
}

// hydrate loads the company, code, tax and tag sets of accts.
func (tx *Tx) hydrate(ctx context.Context, accts []model.Account) error {
	if len(accts) == 0 {
		return nil
	}
	index := make(map[int64]int, len(accts))
	ids := make([]int64, len(accts))
	for i, a := range accts {
		index[a.ID] = i
		ids[i] = a.ID
	}
	in := `(` + placeholders(len(ids)) + `)`

	err := tx.eachPair(ctx, `SELECT account_id, company_id FROM account_company WHERE account_id IN `+in+` ORDER BY company_id`, ids,
		func(acct, v int64) { accts[index[acct]].Companies = append(accts[index[acct]].Companies, v) })
	if err != nil {
		return fmt.Errorf("loading account companies: %w", err)
	}
	err = tx.eachPair(ctx, `SELECT account_id, tax_id FROM account_tax WHERE account_id IN `+in+` ORDER BY tax_id`, ids,
		func(acct, v int64) { accts[index[acct]].TaxIDs = append(accts[index[acct]].TaxIDs, v) })
	if err != nil {
		return fmt.Errorf("loading account taxes: %w", err)
	}
	err = tx.eachPair(ctx, `SELECT account_id, tag_id FROM account_tag WHERE account_id IN `+in+` ORDER BY tag_id`, ids,
		func(acct, v int64) { accts[index[acct]].TagIDs = append(accts[index[acct]].TagIDs, v) })
	if err != nil {
		return fmt.Errorf("loading account tags: %w", err)
	}

	rows, err := tx.tx.QueryContext(ctx, `SELECT account_id, company_id, code FROM account_code WHERE account_id IN `+in, int64Args(ids)...)
	if err != nil {
		return fmt.Errorf("loading account codes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var acct, company int64
		var code string
		if err := rows.Scan(&acct, &company, &code); err != nil {
			return fmt.Errorf("scanning account code: %w", err)
		}
		accts[index[acct]].Codes[company] = code
	}
	return rows.Err()
}

func (tx *Tx) eachPair(ctx context.Context, q string, ids []int64, fn func(acct, v int64)) error {
	rows, err := tx.tx.QueryContext(ctx, q, int64Args(ids)...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var acct, v int64
		if err := rows.Scan(&acct, &v); err != nil {
			return err
		}
		fn(acct, v)
	}
	return rows.Err()
}

func (tx *Tx) clearAccountSets(ctx context.Context, ids []int64) error {
	in := `(` + placeholders(len(ids)) + `)`
	for _, table := range []string{"account_company", "account_code", "account_tax", "account_tag"} {
		if _, err := tx.tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE account_id IN `+in, int64Args(ids)...); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}
	return nil
}

func (tx *Tx) writeAccountSets(ctx context.Context, a model.Account) error {
	for _, c := range uniqueIDs(a.Companies) {
		if _, err := tx.tx.ExecContext(ctx,
			`INSERT INTO account_company (account_id, company_id) VALUES (?, ?)`, a.ID, c); err != nil {
			return fmt.Errorf("linking account %d to company %d: %w", a.ID, c, err)
		}
	}
	companies := make([]int64, 0, len(a.Codes))
	for c := range a.Codes {
		companies = append(companies, c)
	}
	slices.Sort(companies)
	for _, c := range companies {
		if a.Codes[c] == "" {
			continue
		}
		if _, err := tx.tx.ExecContext(ctx,
			`INSERT INTO account_code (account_id, company_id, code) VALUES (?, ?, ?)`, a.ID, c, a.Codes[c]); err != nil {
			return fmt.Errorf("writing code of account %d in company %d: %w", a.ID, c, err)
		}
	}
	for _, t := range uniqueIDs(a.TaxIDs) {
		if _, err := tx.tx.ExecContext(ctx,
			`INSERT INTO account_tax (account_id, tax_id) VALUES (?, ?)`, a.ID, t); err != nil {
			return fmt.Errorf("linking account %d to tax %d: %w", a.ID, t, err)
		}
	}
	for _, t := range uniqueIDs(a.TagIDs) {
		if _, err := tx.tx.ExecContext(ctx,
			`INSERT INTO account_tag (account_id, tag_id) VALUES (?, ?)`, a.ID, t); err != nil {
			return fmt.Errorf("linking account %d to tag %d: %w", a.ID, t, err)
		}
	}
	return nil
}

func uniqueIDs(ids []int64) []int64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

// SetAccountCode sets an account's code in one company.
func (tx *Tx) SetAccountCode(ctx context.Context, accountID, companyID int64, code string) error {
	_, err := tx.tx.ExecContext(ctx,
		`INSERT INTO account_code (account_id, company_id, code) VALUES (?, ?, ?)
		 ON CONFLICT (account_id, company_id) DO UPDATE SET code = excluded.code`,
		accountID, companyID, code)
	if err != nil {
		return fmt.Errorf("setting code of account %d in company %d: %w", accountID, companyID, err)
	}
	return nil
}

// SetAccountCompanies replaces the set of companies an account belongs to.
func (tx *Tx) SetAccountCompanies(ctx context.Context, accountID int64, companies []int64) error {
	if _, err := tx.tx.ExecContext(ctx, `DELETE FROM account_company WHERE account_id = ?`, accountID); err != nil {
		return fmt.Errorf("clearing companies of account %d: %w", accountID, err)
	}
	for _, c := range uniqueIDs(companies) {
		if _, err := tx.tx.ExecContext(ctx,
			`INSERT INTO account_company (account_id, company_id) VALUES (?, ?)`, accountID, c); err != nil {
			return fmt.Errorf("linking account %d to company %d: %w", accountID, c, err)
		}
	}
	return nil
}
