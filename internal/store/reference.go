package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cleared-dev/coa/internal/errs"
	"github.com/cleared-dev/coa/internal/model"
)

// foreignKeySite is a column holding an account id. Link tables pair the
// account with another key; rewriting them must collapse duplicate pairs.
type foreignKeySite struct {
	table  string
	column string
	link   bool
}

// polymorphicSite stores a model.Reference as a (model, id) column pair.
type polymorphicSite struct {
	table       string
	modelColumn string
	idColumn    string
}

// accountForeignKeys lists every column that points at account.id, except
// account_company and account_code: those describe the account itself and
// are rebuilt explicitly by whoever rewrites references.
var accountForeignKeys = []foreignKeySite{
	{table: "move_line", column: "account_id"},
	{table: "journal", column: "default_account_id"},
	{table: "tax_repartition_line", column: "account_id"},
	{table: "opening_balance", column: "account_id"},
	{table: "account_tax", column: "account_id", link: true},
	{table: "account_tag", column: "account_id", link: true},
}

var polymorphicSites = []polymorphicSite{
	{table: "attachment", modelColumn: "res_model", idColumn: "res_id"},
	{table: "property", modelColumn: "value_model", idColumn: "value_id"},
	{table: "external_id", modelColumn: "model", idColumn: "res_id"},
}

// ReplaceAccountReferences repoints every foreign key and polymorphic
// reference from the accounts in from to the account to. It returns the
// number of rows rewritten.
func (tx *Tx) ReplaceAccountReferences(ctx context.Context, from []int64, to int64) (int64, error) {
	if len(from) == 0 {
		return 0, nil
	}
	in := `(` + placeholders(len(from)) + `)`
	var total int64

	for _, site := range accountForeignKeys {
		args := append([]any{to}, int64Args(from)...)
		update := `UPDATE `
		if site.link {
			update += `OR IGNORE `
		}
		n, err := tx.Exec(ctx, update+site.table+` SET `+site.column+` = ? WHERE `+site.column+` IN `+in, args...)
		if err != nil {
			return 0, fmt.Errorf("rewriting %s.%s: %w", site.table, site.column, err)
		}
		total += n
		if site.link {
			// pairs the survivor already had are left behind by OR IGNORE
			if _, err := tx.Exec(ctx, `DELETE FROM `+site.table+` WHERE `+site.column+` IN `+in, int64Args(from)...); err != nil {
				return 0, fmt.Errorf("dropping duplicate %s rows: %w", site.table, err)
			}
		}
	}

	for _, site := range polymorphicSites {
		args := append([]any{to, model.ModelAccount}, int64Args(from)...)
		n, err := tx.Exec(ctx,
			`UPDATE `+site.table+` SET `+site.idColumn+` = ? WHERE `+site.modelColumn+` = ? AND `+site.idColumn+` IN `+in, args...)
		if err != nil {
			return 0, fmt.Errorf("rewriting %s.%s: %w", site.table, site.idColumn, err)
		}
		total += n
	}
	return total, nil
}

// CreateJournal inserts a journal whose default account is defaultAccountID (0 = none).
func (tx *Tx) CreateJournal(ctx context.Context, companyID int64, code string, defaultAccountID int64) (int64, error) {
	var acct any
	if defaultAccountID != 0 {
		acct = defaultAccountID
	}
	id, err := tx.insert(ctx,
		`INSERT INTO journal (company_id, code, default_account_id) VALUES (?, ?, ?)`, companyID, code, acct)
	if err != nil {
		return 0, fmt.Errorf("inserting journal: %w", err)
	}
	return id, nil
}

// JournalDefaultAccount returns the default account of a journal (0 = none).
func (tx *Tx) JournalDefaultAccount(ctx context.Context, journalID int64) (int64, error) {
	var acct sql.NullInt64
	err := tx.tx.QueryRowContext(ctx, `SELECT default_account_id FROM journal WHERE id = ?`, journalID).Scan(&acct)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("journal %d: %w", journalID, errs.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("reading journal %d: %w", journalID, err)
	}
	return acct.Int64, nil
}

// CreateTax inserts a tax owned by a company.
func (tx *Tx) CreateTax(ctx context.Context, companyID int64, name string) (int64, error) {
	id, err := tx.insert(ctx, `INSERT INTO tax (company_id, name) VALUES (?, ?)`, companyID, name)
	if err != nil {
		return 0, fmt.Errorf("inserting tax: %w", err)
	}
	return id, nil
}

// TaxCompanies maps tax IDs to their owning company.
func (tx *Tx) TaxCompanies(ctx context.Context, taxIDs []int64) (map[int64]int64, error) {
	out := make(map[int64]int64, len(taxIDs))
	if len(taxIDs) == 0 {
		return out, nil
	}
	rows, err := tx.tx.QueryContext(ctx,
		`SELECT id, company_id FROM tax WHERE id IN (`+placeholders(len(taxIDs))+`)`, int64Args(taxIDs)...)
	if err != nil {
		return nil, fmt.Errorf("querying taxes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, company int64
		if err := rows.Scan(&id, &company); err != nil {
			return nil, fmt.Errorf("scanning tax: %w", err)
		}
		out[id] = company
	}
	return out, rows.Err()
}

// CreateTaxRepartitionLine inserts a repartition line booking tax amounts on an account.
func (tx *Tx) CreateTaxRepartitionLine(ctx context.Context, taxID, accountID int64) (int64, error) {
	id, err := tx.insert(ctx, `INSERT INTO tax_repartition_line (tax_id, account_id) VALUES (?, ?)`, taxID, accountID)
	if err != nil {
		return 0, fmt.Errorf("inserting tax repartition line: %w", err)
	}
	return id, nil
}

// UsedOnTaxRepartition reports whether a tax repartition line books on the account.
func (tx *Tx) UsedOnTaxRepartition(ctx context.Context, accountID int64) (bool, error) {
	return tx.exists(ctx, `SELECT 1 FROM tax_repartition_line WHERE account_id = ? LIMIT 1`, accountID)
}

// CreateAttachment inserts an attachment pointing at ref.
func (tx *Tx) CreateAttachment(ctx context.Context, name string, ref model.Reference) (int64, error) {
	id, err := tx.insert(ctx, `INSERT INTO attachment (name, res_model, res_id) VALUES (?, ?, ?)`, name, ref.Model, ref.ID)
	if err != nil {
		return 0, fmt.Errorf("inserting attachment: %w", err)
	}
	return id, nil
}

// AttachmentTarget returns the record an attachment points at.
func (tx *Tx) AttachmentTarget(ctx context.Context, id int64) (model.Reference, error) {
	var ref model.Reference
	err := tx.tx.QueryRowContext(ctx, `SELECT res_model, res_id FROM attachment WHERE id = ?`, id).Scan(&ref.Model, &ref.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Reference{}, fmt.Errorf("attachment %d: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return model.Reference{}, fmt.Errorf("reading attachment %d: %w", id, err)
	}
	return ref, nil
}

// SetProperty stores a company-scoped property whose value is ref.
func (tx *Tx) SetProperty(ctx context.Context, name string, companyID int64, ref model.Reference) (int64, error) {
	var company any
	if companyID != 0 {
		company = companyID
	}
	id, err := tx.insert(ctx,
		`INSERT INTO property (name, company_id, value_model, value_id) VALUES (?, ?, ?, ?)`, name, company, ref.Model, ref.ID)
	if err != nil {
		return 0, fmt.Errorf("inserting property: %w", err)
	}
	return id, nil
}

// PropertyValue returns the value of a property by ID.
func (tx *Tx) PropertyValue(ctx context.Context, id int64) (model.Reference, error) {
	var ref model.Reference
	err := tx.tx.QueryRowContext(ctx, `SELECT value_model, value_id FROM property WHERE id = ?`, id).Scan(&ref.Model, &ref.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Reference{}, fmt.Errorf("property %d: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return model.Reference{}, fmt.Errorf("reading property %d: %w", id, err)
	}
	return ref, nil
}

// ReferencedByProperty reports whether any property value points at ref.
func (tx *Tx) ReferencedByProperty(ctx context.Context, ref model.Reference) (bool, error) {
	return tx.exists(ctx, `SELECT 1 FROM property WHERE value_model = ? AND value_id = ? LIMIT 1`, ref.Model, ref.ID)
}

// SetExternalID names a record with a stable external identifier.
func (tx *Tx) SetExternalID(ctx context.Context, name string, ref model.Reference) error {
	if _, err := tx.tx.ExecContext(ctx,
		`INSERT INTO external_id (name, model, res_id) VALUES (?, ?, ?)
		 ON CONFLICT (name) DO UPDATE SET model = excluded.model, res_id = excluded.res_id`,
		name, ref.Model, ref.ID); err != nil {
		return fmt.Errorf("writing external id %q: %w", name, err)
	}
	tx.db.mu.Lock()
	delete(tx.db.extIDs, name)
	tx.db.mu.Unlock()
	return nil
}

// ResolveExternalID returns the record named by an external identifier.
// Lookups are cached on the DB until InvalidateCaches.
func (tx *Tx) ResolveExternalID(ctx context.Context, name string) (model.Reference, error) {
	tx.db.mu.Lock()
	ref, ok := tx.db.extIDs[name]
	tx.db.mu.Unlock()
	if ok {
		return ref, nil
	}

	err := tx.tx.QueryRowContext(ctx, `SELECT model, res_id FROM external_id WHERE name = ?`, name).Scan(&ref.Model, &ref.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Reference{}, fmt.Errorf("external id %q: %w", name, errs.ErrNotFound)
	}
	if err != nil {
		return model.Reference{}, fmt.Errorf("reading external id %q: %w", name, err)
	}

	tx.db.mu.Lock()
	tx.db.extIDs[name] = ref
	tx.db.mu.Unlock()
	return ref, nil
}
