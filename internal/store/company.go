package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cleared-dev/coa/internal/errs"
	"github.com/cleared-dev/coa/internal/model"
)

// CreateCompany inserts a company and sets its ID.
func (tx *Tx) CreateCompany(ctx context.Context, c *model.Company) error {
	id, err := tx.insert(ctx,
		`INSERT INTO company (name, fiscal_lock_date, hard_lock_date) VALUES (?, ?, ?)`,
		c.Name, formatDate(c.FiscalLockDate), formatDate(c.HardLockDate))
	if err != nil {
		return fmt.Errorf("inserting company: %w", err)
	}
	c.ID = id
	return nil
}

// Company returns a company by ID.
func (tx *Tx) Company(ctx context.Context, id int64) (model.Company, error) {
	row := tx.tx.QueryRowContext(ctx,
		`SELECT id, name, fiscal_lock_date, hard_lock_date FROM company WHERE id = ?`, id)
	c, err := scanCompany(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Company{}, fmt.Errorf("company %d: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return model.Company{}, fmt.Errorf("reading company %d: %w", id, err)
	}
	return c, nil
}

// Companies returns all companies ordered by ID.
func (tx *Tx) Companies(ctx context.Context) ([]model.Company, error) {
	rows, err := tx.tx.QueryContext(ctx,
		`SELECT id, name, fiscal_lock_date, hard_lock_date FROM company ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying companies: %w", err)
	}
	defer rows.Close()

	var out []model.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning company: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SetLockDates updates a company's fiscal and hard lock dates.
func (tx *Tx) SetLockDates(ctx context.Context, companyID int64, fiscal, hard time.Time) error {
	n, err := tx.Exec(ctx,
		`UPDATE company SET fiscal_lock_date = ?, hard_lock_date = ? WHERE id = ?`,
		formatDate(fiscal), formatDate(hard), companyID)
	if err != nil {
		return fmt.Errorf("updating lock dates: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("company %d: %w", companyID, errs.ErrNotFound)
	}
	return nil
}

// LockDate returns the governing lock date of a company: the later of its two
// lock dates. ok is false when the company has none.
func (tx *Tx) LockDate(ctx context.Context, companyID int64) (date time.Time, ok bool, err error) {
	c, err := tx.Company(ctx, companyID)
	if err != nil {
		return time.Time{}, false, err
	}
	date, ok = c.LockDate()
	return date, ok, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCompany(s scanner) (model.Company, error) {
	var c model.Company
	var fiscal, hard string
	if err := s.Scan(&c.ID, &c.Name, &fiscal, &hard); err != nil {
		return model.Company{}, err
	}
	var err error
	if c.FiscalLockDate, err = parseDate(fiscal); err != nil {
		return model.Company{}, err
	}
	if c.HardLockDate, err = parseDate(hard); err != nil {
		return model.Company{}, err
	}
	return c, nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateFormat)
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return t, nil
}
