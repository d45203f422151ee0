// Package ledger posts minimal journal entries and maintains opening balances.
//
// It exists so that accounts carry the hashed and locked entries that merge
// and deletion rules depend on; it is not a bookkeeping engine.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cleared-dev/coa/internal/errs"
	"github.com/cleared-dev/coa/internal/id"
	"github.com/cleared-dev/coa/internal/model"
	"github.com/cleared-dev/coa/internal/store"
)

// Service posts entries into the store.
type Service struct {
	db  *store.DB
	log *zap.Logger
}

// NewService creates a ledger Service.
func NewService(db *store.DB, log *zap.Logger) *Service {
	return &Service{db: db, log: log}
}

// PostParams holds parameters for posting an entry.
type PostParams struct {
	CompanyID int64
	Date      time.Time
	Lines     []model.Line
	Draft     bool // leave the entry unposted
	Hash      bool // chain the entry into the company's inalterable hash
}

// Post validates and stores an entry and returns it with its name and IDs set.
func (s *Service) Post(ctx context.Context, p PostParams) (model.Entry, error) {
	var e model.Entry
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		var err error
		e, err = PostTx(ctx, tx, p)
		return err
	})
	if err != nil {
		return model.Entry{}, err
	}
	s.log.Info("entry posted",
		zap.String("name", e.Name),
		zap.Int64("company", e.CompanyID),
		zap.Bool("hashed", e.Hashed()))
	return e, nil
}

// PostTx is Post inside an existing transaction.
func PostTx(ctx context.Context, tx *store.Tx, p PostParams) (model.Entry, error) {
	year, month := p.Date.Year(), int(p.Date.Month())
	names, err := tx.EntryNames(ctx, p.CompanyID, id.EntryPrefix(year, month))
	if err != nil {
		return model.Entry{}, err
	}

	e := model.Entry{
		CompanyID: p.CompanyID,
		Name:      id.FormatEntryName(year, month, id.NextSeq(names)),
		Date:      p.Date,
		State:     model.EntryPosted,
		Lines:     p.Lines,
	}
	if p.Draft {
		e.State = model.EntryDraft
	}

	ids := make([]int64, 0, len(p.Lines))
	for _, l := range p.Lines {
		ids = append(ids, l.AccountID)
	}
	known := make(accountSet, len(ids))
	for _, aid := range ids {
		a, err := tx.Account(ctx, aid)
		if err != nil {
			continue // reported by Validate as unknown
		}
		known[a.ID] = a
	}

	if verrs := Validate(e, known); len(verrs) > 0 {
		msgs := make([]string, len(verrs))
		for i, ve := range verrs {
			msgs[i] = ve.Error()
		}
		return model.Entry{}, errs.ValidationError{Field: "entry", Message: strings.Join(msgs, "; ")}
	}

	if e.State == model.EntryPosted {
		lock, ok, err := tx.LockDate(ctx, p.CompanyID)
		if err != nil {
			return model.Entry{}, err
		}
		if ok && !e.Date.After(lock) {
			return model.Entry{}, errs.Userf("cannot post %s: the period up to %s is locked",
				e.Date.Format("2006-01-02"), lock.Format("2006-01-02"))
		}
	}

	if p.Hash {
		if e.State != model.EntryPosted {
			return model.Entry{}, errs.Validationf("hash", "only posted entries can be hashed")
		}
		prev, err := tx.LastHash(ctx, p.CompanyID)
		if err != nil {
			return model.Entry{}, err
		}
		e.Hash = ComputeHash(prev, e)
	}

	if err := tx.CreateEntry(ctx, &e); err != nil {
		return model.Entry{}, fmt.Errorf("storing entry %s: %w", e.Name, err)
	}
	return e, nil
}
