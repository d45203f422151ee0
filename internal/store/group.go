package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cleared-dev/coa/internal/errs"
	"github.com/cleared-dev/coa/internal/model"
)

const groupColumns = `id, company_id, name, code_prefix_start, code_prefix_end, COALESCE(parent_id, 0)`

// CreateGroup inserts a group and sets its ID. The parent link is not written.
func (tx *Tx) CreateGroup(ctx context.Context, g *model.Group) error {
	id, err := tx.insert(ctx,
		`INSERT INTO account_group (company_id, name, code_prefix_start, code_prefix_end) VALUES (?, ?, ?, ?)`,
		g.CompanyID, g.Name, g.PrefixStart, g.PrefixEnd)
	if err != nil {
		return fmt.Errorf("inserting group: %w", err)
	}
	g.ID = id
	return nil
}

// UpdateGroup writes a group's name and prefix range. The parent link is not written.
func (tx *Tx) UpdateGroup(ctx context.Context, g model.Group) error {
	n, err := tx.Exec(ctx,
		`UPDATE account_group SET name = ?, code_prefix_start = ?, code_prefix_end = ? WHERE id = ?`,
		g.Name, g.PrefixStart, g.PrefixEnd, g.ID)
	if err != nil {
		return fmt.Errorf("updating group %d: %w", g.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("group %d: %w", g.ID, errs.ErrNotFound)
	}
	return nil
}

// SetGroupParent links a group to its parent; parentID 0 clears the link.
func (tx *Tx) SetGroupParent(ctx context.Context, id, parentID int64) error {
	var parent any
	if parentID != 0 {
		parent = parentID
	}
	if _, err := tx.tx.ExecContext(ctx, `UPDATE account_group SET parent_id = ? WHERE id = ?`, parent, id); err != nil {
		return fmt.Errorf("setting parent of group %d: %w", id, err)
	}
	return nil
}

// ReparentGroups moves every child of fromParent under toParent (0 = top-level).
func (tx *Tx) ReparentGroups(ctx context.Context, fromParent, toParent int64) error {
	var parent any
	if toParent != 0 {
		parent = toParent
	}
	if _, err := tx.tx.ExecContext(ctx, `UPDATE account_group SET parent_id = ? WHERE parent_id = ?`, parent, fromParent); err != nil {
		return fmt.Errorf("reparenting children of group %d: %w", fromParent, err)
	}
	return nil
}

// DeleteGroup removes a group.
func (tx *Tx) DeleteGroup(ctx context.Context, id int64) error {
	n, err := tx.Exec(ctx, `DELETE FROM account_group WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting group %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("group %d: %w", id, errs.ErrNotFound)
	}
	return nil
}

// Group returns a group by ID.
func (tx *Tx) Group(ctx context.Context, id int64) (model.Group, error) {
	row := tx.tx.QueryRowContext(ctx, `SELECT `+groupColumns+` FROM account_group WHERE id = ?`, id)
	g, err := scanGroup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Group{}, fmt.Errorf("group %d: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return model.Group{}, fmt.Errorf("reading group %d: %w", id, err)
	}
	return g, nil
}

// GroupsByCompany returns a company's groups ordered by prefix start, then ID.
func (tx *Tx) GroupsByCompany(ctx context.Context, companyID int64) ([]model.Group, error) {
	rows, err := tx.tx.QueryContext(ctx,
		`SELECT `+groupColumns+` FROM account_group WHERE company_id = ? ORDER BY code_prefix_start, id`, companyID)
	if err != nil {
		return nil, fmt.Errorf("querying groups: %w", err)
	}
	defer rows.Close()

	var out []model.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning group: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// OverlappingGroups returns the IDs of same-company groups whose prefixes have
// the same length as g's and whose range intersects [g.PrefixStart, g.PrefixEnd].
func (tx *Tx) OverlappingGroups(ctx context.Context, g model.Group) ([]int64, error) {
	rows, err := tx.tx.QueryContext(ctx, `
		SELECT other.id FROM account_group other
		 WHERE other.company_id = ?
		   AND other.id != ?
		   AND length(other.code_prefix_start) = length(?)
		   AND other.code_prefix_start != ''
		   AND other.code_prefix_start <= ?
		   AND other.code_prefix_end >= ?
		 ORDER BY other.id`,
		g.CompanyID, g.ID, g.PrefixStart, g.PrefixEnd, g.PrefixStart)
	if err != nil {
		return nil, fmt.Errorf("querying overlapping groups: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning group id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanGroup(s scanner) (model.Group, error) {
	var g model.Group
	err := s.Scan(&g.ID, &g.CompanyID, &g.Name, &g.PrefixStart, &g.PrefixEnd, &g.ParentID)
	return g, err
}
