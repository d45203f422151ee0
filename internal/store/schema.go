package store

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS company (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		fiscal_lock_date TEXT NOT NULL DEFAULT '',
		hard_lock_date TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS account (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		account_type TEXT NOT NULL,
		reconcile INTEGER NOT NULL DEFAULT 0,
		currency TEXT NOT NULL DEFAULT '',
		deprecated INTEGER NOT NULL DEFAULT 0,
		non_trade INTEGER NOT NULL DEFAULT 0,
		note TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS account_company (
		account_id INTEGER NOT NULL REFERENCES account(id),
		company_id INTEGER NOT NULL REFERENCES company(id),
		PRIMARY KEY (account_id, company_id)
	)`,
	`CREATE TABLE IF NOT EXISTS account_code (
		account_id INTEGER NOT NULL REFERENCES account(id),
		company_id INTEGER NOT NULL REFERENCES company(id),
		code TEXT NOT NULL,
		PRIMARY KEY (account_id, company_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_account_code_company_code ON account_code(company_id, code)`,
	`CREATE TABLE IF NOT EXISTS tax (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		company_id INTEGER NOT NULL REFERENCES company(id),
		name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS account_tax (
		account_id INTEGER NOT NULL REFERENCES account(id),
		tax_id INTEGER NOT NULL REFERENCES tax(id),
		PRIMARY KEY (account_id, tax_id)
	)`,
	`CREATE TABLE IF NOT EXISTS account_tag (
		account_id INTEGER NOT NULL REFERENCES account(id),
		tag_id INTEGER NOT NULL,
		PRIMARY KEY (account_id, tag_id)
	)`,
	`CREATE TABLE IF NOT EXISTS account_group (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		company_id INTEGER NOT NULL REFERENCES company(id),
		name TEXT NOT NULL,
		code_prefix_start TEXT NOT NULL DEFAULT '',
		code_prefix_end TEXT NOT NULL DEFAULT '',
		parent_id INTEGER REFERENCES account_group(id),
		CHECK (length(code_prefix_start) = length(code_prefix_end))
	)`,
	`CREATE INDEX IF NOT EXISTS idx_account_group_company ON account_group(company_id)`,
	`CREATE TABLE IF NOT EXISTS journal (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		company_id INTEGER NOT NULL REFERENCES company(id),
		code TEXT NOT NULL,
		default_account_id INTEGER REFERENCES account(id)
	)`,
	`CREATE TABLE IF NOT EXISTS move (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		company_id INTEGER NOT NULL REFERENCES company(id),
		name TEXT NOT NULL,
		date TEXT NOT NULL,
		state TEXT NOT NULL,
		inalterable_hash TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS move_line (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		move_id INTEGER NOT NULL REFERENCES move(id),
		company_id INTEGER NOT NULL REFERENCES company(id),
		account_id INTEGER NOT NULL REFERENCES account(id),
		date TEXT NOT NULL,
		label TEXT NOT NULL DEFAULT '',
		debit TEXT NOT NULL DEFAULT '0',
		credit TEXT NOT NULL DEFAULT '0',
		currency TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_move_line_account ON move_line(account_id)`,
	`CREATE TABLE IF NOT EXISTS tax_repartition_line (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tax_id INTEGER NOT NULL REFERENCES tax(id),
		account_id INTEGER REFERENCES account(id)
	)`,
	`CREATE TABLE IF NOT EXISTS opening_balance (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		company_id INTEGER NOT NULL REFERENCES company(id),
		account_id INTEGER NOT NULL REFERENCES account(id),
		debit TEXT NOT NULL DEFAULT '0',
		credit TEXT NOT NULL DEFAULT '0'
	)`,
	`CREATE TABLE IF NOT EXISTS attachment (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		res_model TEXT NOT NULL,
		res_id INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS property (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		company_id INTEGER REFERENCES company(id),
		value_model TEXT NOT NULL,
		value_id INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS external_id (
		name TEXT PRIMARY KEY,
		model TEXT NOT NULL,
		res_id INTEGER NOT NULL
	)`,
}

func (d *DB) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}
	return nil
}
