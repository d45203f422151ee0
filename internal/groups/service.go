// Package groups maintains the account group tree. A group's parent is never
// set by callers: it is derived from prefix containment after every write.
package groups

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/cleared-dev/coa/internal/auditlog"
	"github.com/cleared-dev/coa/internal/errs"
	"github.com/cleared-dev/coa/internal/id"
	"github.com/cleared-dev/coa/internal/model"
	"github.com/cleared-dev/coa/internal/store"
)

// Options configures a Service.
type Options struct {
	User  string
	Audit *auditlog.Recorder
}

// Service provides group operations over the store.
type Service struct {
	db   *store.DB
	log  *zap.Logger
	opts Options
}

// NewService creates a group Service.
func NewService(db *store.DB, log *zap.Logger, opts Options) *Service {
	return &Service{db: db, log: log, opts: opts}
}

// Create creates a group and resolves its company's hierarchy.
func (s *Service) Create(ctx context.Context, g model.Group) (model.Group, error) {
	err := s.run(ctx, false, func(w *Writer) error {
		return w.Create(ctx, &g)
	})
	return g, err
}

// Update changes a group's name and prefix range.
func (s *Service) Update(ctx context.Context, g model.Group) error {
	return s.run(ctx, false, func(w *Writer) error {
		return w.Update(ctx, g)
	})
}

// SetParent always fails: parents are derived, never assigned.
func (s *Service) SetParent(ctx context.Context, groupID, parentID int64) error {
	return errParentOverride
}

// Delete removes a group, moving its children under its parent.
func (s *Service) Delete(ctx context.Context, groupID int64) error {
	return s.run(ctx, false, func(w *Writer) error {
		return w.Delete(ctx, groupID)
	})
}

// Batch runs several group writes in one transaction with resolution
// deferred, then resolves every touched company once.
func (s *Service) Batch(ctx context.Context, fn func(w *Writer) error) error {
	return s.run(ctx, true, fn)
}

// Resolve recomputes the hierarchy of companies and returns the groups whose
// parent changed.
func (s *Service) Resolve(ctx context.Context, companies []int64) ([]int64, error) {
	var changed []int64
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		var err error
		changed, err = ResolveParents(ctx, tx, companies)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.resolved(companies, changed)
	return changed, nil
}

func (s *Service) run(ctx context.Context, deferred bool, fn func(w *Writer) error) error {
	var w *Writer
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		w = newWriter(tx, deferred)
		if err := fn(w); err != nil {
			return err
		}
		return w.flush(ctx)
	})
	if err != nil {
		return err
	}
	s.resolved(w.touchedCompanies(), w.changed)
	return nil
}

func (s *Service) resolved(companies, changed []int64) {
	op := id.NewOperationID()
	s.log.Info("group parents resolved",
		zap.String("operation", op),
		zap.Int64s("companies", companies),
		zap.Int("changed", len(changed)))
	if len(changed) == 0 {
		return
	}
	details := fmt.Sprintf("companies %v: %d group parents changed %v", companies, len(changed), changed)
	if err := s.opts.Audit.Record(s.opts.User, auditlog.ActionResolveGroups, details, op); err != nil {
		s.log.Warn("audit log write failed", zap.Error(err))
	}
}

// Get returns a group by ID.
func (s *Service) Get(ctx context.Context, groupID int64) (model.Group, error) {
	var g model.Group
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		var err error
		g, err = tx.Group(ctx, groupID)
		return err
	})
	return g, err
}

// List returns a company's groups ordered by prefix.
func (s *Service) List(ctx context.Context, companyID int64) ([]model.Group, error) {
	var groups []model.Group
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		var err error
		groups, err = tx.GroupsByCompany(ctx, companyID)
		return err
	})
	return groups, err
}

// GroupForCode returns the most specific group of a company covering code.
func (s *Service) GroupForCode(ctx context.Context, companyID int64, code string) (model.Group, bool, error) {
	groups, err := s.List(ctx, companyID)
	if err != nil {
		return model.Group{}, false, err
	}
	g, ok := ForCode(groups, code)
	return g, ok, nil
}

// ForCode returns the group with the longest prefix range covering code,
// lowest ID first on ties.
func ForCode(groups []model.Group, code string) (model.Group, bool) {
	var best *model.Group
	for i := range groups {
		g := &groups[i]
		if !g.Contains(code) {
			continue
		}
		if best == nil || len(g.PrefixStart) > len(best.PrefixStart) ||
			(len(g.PrefixStart) == len(best.PrefixStart) && g.ID < best.ID) {
			best = g
		}
	}
	if best == nil {
		return model.Group{}, false
	}
	return *best, true
}

// Writer applies group writes inside one transaction. When resolution is
// deferred the touched companies are resolved once, at the end.
type Writer struct {
	tx       *store.Tx
	deferred bool
	touched  []int64
	changed  []int64
}

func newWriter(tx *store.Tx, deferred bool) *Writer {
	return &Writer{tx: tx, deferred: deferred}
}

// Create inserts a group and sets its ID.
func (w *Writer) Create(ctx context.Context, g *model.Group) error {
	if g.ParentID != 0 {
		return errParentOverride
	}
	if _, err := w.tx.Company(ctx, g.CompanyID); err != nil {
		return err
	}
	g.PrefixStart, g.PrefixEnd = Normalize(g.PrefixStart, g.PrefixEnd)
	if err := w.checkPrefixes(ctx, *g); err != nil {
		return err
	}
	if err := w.tx.CreateGroup(ctx, g); err != nil {
		return err
	}
	if err := w.touch(ctx, g.CompanyID); err != nil {
		return err
	}
	if !w.deferred {
		stored, err := w.tx.Group(ctx, g.ID)
		if err != nil {
			return err
		}
		g.ParentID = stored.ParentID
	}
	return nil
}

// Update writes a group's name and prefix range. An empty bound keeps the
// stored one; zero CompanyID and ParentID mean unchanged. Setting another
// parent is rejected.
func (w *Writer) Update(ctx context.Context, g model.Group) error {
	prev, err := w.tx.Group(ctx, g.ID)
	if err != nil {
		return err
	}
	if g.ParentID != 0 && g.ParentID != prev.ParentID {
		return errParentOverride
	}
	if g.CompanyID == 0 {
		g.CompanyID = prev.CompanyID
	}
	if g.Name == "" {
		g.Name = prev.Name
	}
	if g.CompanyID != prev.CompanyID {
		return errs.Validationf("company_id", "a group cannot move to another company")
	}
	if g.PrefixStart == "" {
		g.PrefixStart = prev.PrefixStart
	}
	if g.PrefixEnd == "" {
		g.PrefixEnd = prev.PrefixEnd
	}
	g.PrefixStart, g.PrefixEnd = Normalize(g.PrefixStart, g.PrefixEnd)
	if err := w.checkPrefixes(ctx, g); err != nil {
		return err
	}
	if err := w.tx.UpdateGroup(ctx, g); err != nil {
		return err
	}
	if g.PrefixStart == prev.PrefixStart && g.PrefixEnd == prev.PrefixEnd {
		return nil
	}
	return w.touch(ctx, g.CompanyID)
}

// Delete removes a group. Its children move under its parent.
func (w *Writer) Delete(ctx context.Context, groupID int64) error {
	g, err := w.tx.Group(ctx, groupID)
	if err != nil {
		return err
	}
	if err := w.tx.ReparentGroups(ctx, g.ID, g.ParentID); err != nil {
		return err
	}
	return w.tx.DeleteGroup(ctx, g.ID)
}

var errParentOverride = errs.ValidationError{
	Field:   "parent_id",
	Message: "the parent of a group is derived from its code prefixes and cannot be set",
}

// Normalize fills an empty bound from the other one. An end sorting before
// the start is replaced by the start.
func Normalize(start, end string) (string, string) {
	if end == "" || (start != "" && end < start) {
		end = start
	}
	if start == "" || (end != "" && start > end) {
		start = end
	}
	return start, end
}

func (w *Writer) checkPrefixes(ctx context.Context, g model.Group) error {
	if len(g.PrefixStart) != len(g.PrefixEnd) {
		return errs.Validationf("code_prefix", "the length of the starting and the ending code prefix must be the same")
	}
	if g.PrefixStart == "" {
		return nil
	}
	ids, err := w.tx.OverlappingGroups(ctx, g)
	if err != nil {
		return err
	}
	if len(ids) > 0 {
		return errs.Validationf("code_prefix", "account groups with the same granularity can't overlap (%s overlaps groups %v)", g.DisplayName(), ids)
	}
	return nil
}

func (w *Writer) touch(ctx context.Context, companyID int64) error {
	if !slices.Contains(w.touched, companyID) {
		w.touched = append(w.touched, companyID)
	}
	if w.deferred {
		return nil
	}
	changed, err := ResolveParents(ctx, w.tx, []int64{companyID})
	if err != nil {
		return err
	}
	w.changed = append(w.changed, changed...)
	return nil
}

func (w *Writer) flush(ctx context.Context) error {
	if !w.deferred {
		return nil
	}
	changed, err := ResolveParents(ctx, w.tx, w.touched)
	if err != nil {
		return err
	}
	w.changed = append(w.changed, changed...)
	return nil
}

func (w *Writer) touchedCompanies() []int64 {
	out := slices.Clone(w.touched)
	slices.Sort(out)
	return out
}
