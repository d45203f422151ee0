package accounts

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cleared-dev/coa/internal/auditlog"
	"github.com/cleared-dev/coa/internal/code"
	"github.com/cleared-dev/coa/internal/errs"
	"github.com/cleared-dev/coa/internal/id"
	"github.com/cleared-dev/coa/internal/ledger"
	"github.com/cleared-dev/coa/internal/model"
	"github.com/cleared-dev/coa/internal/store"
)

// ImportOptions controls Import.
type ImportOptions struct {
	User     string
	Allocate bool // give rows whose code is taken the next free code instead of failing
}

// ImportResult reports what Import did.
type ImportResult struct {
	Created   []model.Account
	Imbalance decimal.Decimal // opening debits minus credits before balancing
}

// Import creates one account per row in a company, all in one transaction.
// Opening balances are accumulated and written once at the end.
func (s *Service) Import(ctx context.Context, companyID int64, rows []ChartRow, opts ImportOptions) (ImportResult, error) {
	var res ImportResult
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		tried := code.NewSet()
		batch := ledger.NewBatch()
		for i, row := range rows {
			c := row.Code
			if c != "" && opts.Allocate {
				var err error
				c, err = code.NextAvailable(c, usedIn(ctx, tx, companyID), tried)
				if err != nil {
					return fmt.Errorf("row %d: %w", i+2, err)
				}
			}
			a, err := s.createTx(ctx, tx, CreateParams{
				CompanyID: companyID,
				Name:      row.Name,
				Code:      c,
				Type:      row.Type,
				Reconcile: row.Reconcile,
				Currency:  row.Currency,
			}, tried)
			if err != nil {
				return fmt.Errorf("row %d: %w", i+2, err)
			}
			if !row.OpeningDebit.IsZero() || !row.OpeningCredit.IsZero() {
				if !a.Type.IncludeInitialBalance() {
					return fmt.Errorf("row %d: %w", i+2,
						errs.Validationf("opening_balance", "account %s of type %s cannot carry an opening balance", a.DisplayName(companyID), a.Type))
				}
				batch.Add(companyID, a.ID, row.OpeningDebit, row.OpeningCredit)
			}
			res.Created = append(res.Created, a)
		}

		imbalance, err := batch.Finalize(ctx, tx)
		if err != nil {
			return err
		}
		res.Imbalance = imbalance[companyID]
		return nil
	})
	if err != nil {
		return ImportResult{}, err
	}

	op := id.NewOperationID()
	s.log.Info("chart imported",
		zap.String("operation", op),
		zap.Int64("company", companyID),
		zap.Int("accounts", len(res.Created)),
		zap.String("imbalance", res.Imbalance.StringFixed(2)))
	details := fmt.Sprintf("imported %d accounts into company %d", len(res.Created), companyID)
	if err := s.opts.Audit.Record(opts.User, auditlog.ActionImportChart, details, op); err != nil {
		s.log.Warn("audit log write failed", zap.Error(err))
	}
	return res, nil
}

// Export returns a company's chart with its opening balances, ordered by code.
func (s *Service) Export(ctx context.Context, companyID int64) ([]ChartRow, error) {
	var rows []ChartRow
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		accts, err := tx.AccountsByCompany(ctx, companyID)
		if err != nil {
			return err
		}
		obs, err := tx.OpeningBalances(ctx, companyID)
		if err != nil {
			return err
		}
		opening := make(map[int64]store.OpeningBalance, len(obs))
		for _, ob := range obs {
			opening[ob.AccountID] = ob
		}
		for _, a := range accts {
			reconcile := a.Reconcile
			rows = append(rows, ChartRow{
				Code:          a.Code(companyID),
				Name:          a.Name,
				Type:          a.Type,
				Reconcile:     &reconcile,
				Currency:      a.Currency,
				OpeningDebit:  opening[a.ID].Debit,
				OpeningCredit: opening[a.ID].Credit,
			})
		}
		return nil
	})
	return rows, err
}
