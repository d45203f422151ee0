package accounts

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cleared-dev/coa/internal/auditlog"
	"github.com/cleared-dev/coa/internal/errs"
	"github.com/cleared-dev/coa/internal/model"
	"github.com/cleared-dev/coa/internal/store"
)

func newTestService(t *testing.T) (*Service, *store.DB, int64) {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	db, err := store.Open(ctx, filepath.Join(dir, "coa.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	var company int64
	require.NoError(t, db.InTx(ctx, func(tx *store.Tx) error {
		c := model.Company{Name: "Acme"}
		if err := tx.CreateCompany(ctx, &c); err != nil {
			return err
		}
		company = c.ID
		return nil
	}))

	svc := NewService(db, zap.NewNop(), Options{
		DefaultType: model.AccountTypeCurrentAsset,
		Audit:       auditlog.NewRecorder(filepath.Join(dir, auditlog.DefaultPath)),
	})
	return svc, db, company
}

func addCompany(t *testing.T, db *store.DB, name string) int64 {
	t.Helper()
	ctx := context.Background()
	var id int64
	require.NoError(t, db.InTx(ctx, func(tx *store.Tx) error {
		c := model.Company{Name: name}
		err := tx.CreateCompany(ctx, &c)
		id = c.ID
		return err
	}))
	return id
}

func TestCreate(t *testing.T) {
	svc, _, company := newTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, CreateParams{CompanyID: company, Name: "Receivable", Code: "121000", Type: model.AccountTypeReceivable})
	require.NoError(t, err)
	assert.NotZero(t, a.ID)
	assert.Equal(t, "121000", a.Code(company))
	assert.True(t, a.Reconcile, "receivables reconcile by default")

	got, err := svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.Name, got.Name)
	assert.Equal(t, []int64{company}, got.Companies)
}

func TestCreate_SplitsCodeFromName(t *testing.T) {
	svc, _, company := newTestService(t)
	a, err := svc.Create(context.Background(), CreateParams{CompanyID: company, Name: "101000 Cash"})
	require.NoError(t, err)
	assert.Equal(t, "Cash", a.Name)
	assert.Equal(t, "101000", a.Code(company))

	_, err = svc.Create(context.Background(), CreateParams{CompanyID: company, Name: "Cash"})
	assert.True(t, errs.IsValidation(err), "no code anywhere")
}

func TestCreate_InheritsFromNearestPrecedingCode(t *testing.T) {
	svc, _, company := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateParams{CompanyID: company, Code: "600000", Name: "Expenses", Type: model.AccountTypeExpense, TagIDs: []int64{4}})
	require.NoError(t, err)

	a, err := svc.Create(ctx, CreateParams{CompanyID: company, Code: "610000", Name: "Rent"})
	require.NoError(t, err)
	assert.Equal(t, model.AccountTypeExpense, a.Type)
	assert.Equal(t, []int64{4}, a.TagIDs)

	b, err := svc.Create(ctx, CreateParams{CompanyID: company, Code: "100000", Name: "First"})
	require.NoError(t, err)
	assert.Equal(t, model.AccountTypeCurrentAsset, b.Type, "nothing precedes: configured default")
	assert.Empty(t, b.TagIDs)
}

func TestCreate_FromPrefix(t *testing.T) {
	svc, _, company := newTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, CreateParams{CompanyID: company, Name: "Bank", Prefix: "1012", Digits: 6, Type: model.AccountTypeCash})
	require.NoError(t, err)
	assert.Equal(t, "101201", a.Code(company))

	b, err := svc.Create(ctx, CreateParams{CompanyID: company, Name: "Bank 2", Prefix: "1012", Digits: 6, Type: model.AccountTypeCash})
	require.NoError(t, err)
	assert.Equal(t, "101202", b.Code(company))

	_, err = svc.Create(ctx, CreateParams{CompanyID: company, Name: "Bad", Prefix: "1", Digits: 0})
	assert.True(t, errs.IsValidation(err))
}

func TestCreate_Validation(t *testing.T) {
	svc, _, company := newTestService(t)
	ctx := context.Background()
	no, yes := false, true

	_, err := svc.Create(ctx, CreateParams{CompanyID: company, Name: "Tax", Code: "2510", Type: model.AccountTypeCurrentLiability})
	require.NoError(t, err)

	tests := []struct {
		name string
		p    CreateParams
		want string
	}{
		{"duplicate code", CreateParams{Name: "Dup", Code: "2510"}, "duplicate codes: 2510"},
		{"bad code", CreateParams{Name: "Bad", Code: "10-00"}, "alphanumeric"},
		{"payable not reconcilable", CreateParams{Name: "AP", Code: "2110", Type: model.AccountTypePayable, Reconcile: &no}, "not reconcilable"},
		{"off balance reconcilable", CreateParams{Name: "Memo", Code: "9000", Type: model.AccountTypeOffBalance, Reconcile: &yes}, "off-balance"},
		{"unknown type", CreateParams{Name: "X", Code: "9100", Type: "asset_bogus"}, "unknown account type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.p.CompanyID = company
			_, err := svc.Create(ctx, tt.p)
			require.Error(t, err)
			assert.True(t, errs.IsValidation(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err = svc.Create(ctx, CreateParams{CompanyID: 999, Name: "X", Code: "1"})
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestCreate_SingleUnaffectedEarnings(t *testing.T) {
	svc, _, company := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateParams{CompanyID: company, Name: "Undistributed", Code: "999999", Type: model.AccountTypeUnaffectedEarning})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateParams{CompanyID: company, Name: "Again", Code: "999998", Type: model.AccountTypeUnaffectedEarning})
	assert.True(t, errs.IsValidation(err))
}

func TestCreate_OffBalanceRejectsTaxes(t *testing.T) {
	svc, db, company := newTestService(t)
	ctx := context.Background()

	var tax int64
	require.NoError(t, db.InTx(ctx, func(tx *store.Tx) error {
		var err error
		tax, err = tx.CreateTax(ctx, company, "VAT")
		return err
	}))

	_, err := svc.Create(ctx, CreateParams{CompanyID: company, Name: "Memo", Code: "9000", Type: model.AccountTypeOffBalance, TaxIDs: []int64{tax}})
	assert.ErrorContains(t, err, "can not have taxes")

	other := addCompany(t, db, "Other")
	var foreign int64
	require.NoError(t, db.InTx(ctx, func(tx *store.Tx) error {
		var err error
		foreign, err = tx.CreateTax(ctx, other, "Foreign VAT")
		return err
	}))
	_, err = svc.Create(ctx, CreateParams{CompanyID: company, Name: "Sales", Code: "4000", Type: model.AccountTypeIncome, TaxIDs: []int64{foreign}})
	assert.ErrorContains(t, err, "belongs to company")
}

func TestCopy(t *testing.T) {
	svc, db, company := newTestService(t)
	ctx := context.Background()
	other := addCompany(t, db, "Other")

	var taxHere, taxThere int64
	require.NoError(t, db.InTx(ctx, func(tx *store.Tx) error {
		var err error
		if taxHere, err = tx.CreateTax(ctx, company, "VAT"); err != nil {
			return err
		}
		taxThere, err = tx.CreateTax(ctx, other, "VAT other")
		return err
	}))

	src, err := svc.Create(ctx, CreateParams{CompanyID: company, Name: "Sales", Code: "400000", Type: model.AccountTypeIncome, TaxIDs: []int64{taxHere}})
	require.NoError(t, err)
	src.Companies = []int64{company, other}
	src.SetCode(other, "700000")
	src.TaxIDs = []int64{taxHere, taxThere}
	require.NoError(t, svc.Update(ctx, src))

	copies, err := svc.Copy(ctx, []int64{src.ID, src.ID}, 0)
	require.NoError(t, err)
	require.Len(t, copies, 2)
	assert.Equal(t, "Sales (copy)", copies[0].Name)
	assert.Equal(t, "400001", copies[0].Code(company))
	assert.Equal(t, "400002", copies[1].Code(company), "codes handed out in the same batch are skipped")
	assert.Equal(t, []int64{taxHere}, copies[0].TaxIDs)

	copies, err = svc.Copy(ctx, []int64{src.ID}, other)
	require.NoError(t, err)
	assert.Equal(t, "700001", copies[0].Code(other))
	assert.Equal(t, []int64{taxThere}, copies[0].TaxIDs)
}

func TestCopy_IntoCompanyWithoutSourceCode(t *testing.T) {
	svc, db, company := newTestService(t)
	ctx := context.Background()
	other := addCompany(t, db, "Other")

	src, err := svc.Create(ctx, CreateParams{CompanyID: company, Name: "Cash", Code: "101000", Type: model.AccountTypeCash})
	require.NoError(t, err)

	copies, err := svc.Copy(ctx, []int64{src.ID}, other)
	require.NoError(t, err)
	assert.Equal(t, "101000", copies[0].Code(other), "free in the target company")
}

func TestUpdate_CompanyMembershipNeedsCode(t *testing.T) {
	svc, db, company := newTestService(t)
	ctx := context.Background()
	other := addCompany(t, db, "Other")

	a, err := svc.Create(ctx, CreateParams{CompanyID: company, Name: "Cash", Code: "101000", Type: model.AccountTypeCash})
	require.NoError(t, err)
	a.Companies = append(a.Companies, other)
	err = svc.Update(ctx, a)
	assert.ErrorContains(t, err, "must be set for every company")

	a.SetCode(other, "101000")
	assert.NoError(t, svc.Update(ctx, a))
}

func TestUpdate_CurrencyGuard(t *testing.T) {
	svc, db, company := newTestService(t)
	ctx := context.Background()

	bank, err := svc.Create(ctx, CreateParams{CompanyID: company, Name: "Bank", Code: "101200", Type: model.AccountTypeCash})
	require.NoError(t, err)
	sales, err := svc.Create(ctx, CreateParams{CompanyID: company, Name: "Sales", Code: "400000", Type: model.AccountTypeIncome})
	require.NoError(t, err)

	require.NoError(t, db.InTx(ctx, func(tx *store.Tx) error {
		e := model.Entry{
			CompanyID: company, Name: "2025-01-001", State: model.EntryPosted,
			Date: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
			Lines: []model.Line{
				{AccountID: bank.ID, Debit: decimal.NewFromInt(1), Currency: "USD"},
				{AccountID: sales.ID, Credit: decimal.NewFromInt(1)},
			},
		}
		return tx.CreateEntry(ctx, &e)
	}))

	bank.Currency = "EUR"
	assert.True(t, errs.IsUser(svc.Update(ctx, bank)))
	bank.Currency = "USD"
	assert.NoError(t, svc.Update(ctx, bank))
}

func TestDelete_Guards(t *testing.T) {
	svc, db, company := newTestService(t)
	ctx := context.Background()

	used, err := svc.Create(ctx, CreateParams{CompanyID: company, Name: "Used", Code: "101000", Type: model.AccountTypeCash})
	require.NoError(t, err)
	onContact, err := svc.Create(ctx, CreateParams{CompanyID: company, Name: "On contact", Code: "121000", Type: model.AccountTypeReceivable})
	require.NoError(t, err)
	onTax, err := svc.Create(ctx, CreateParams{CompanyID: company, Name: "On tax", Code: "251000", Type: model.AccountTypeCurrentLiability})
	require.NoError(t, err)
	free, err := svc.Create(ctx, CreateParams{CompanyID: company, Name: "Free", Code: "109000", Type: model.AccountTypeCash})
	require.NoError(t, err)
	counter, err := svc.Create(ctx, CreateParams{CompanyID: company, Name: "Counterpart", Code: "400000", Type: model.AccountTypeIncome})
	require.NoError(t, err)

	require.NoError(t, db.InTx(ctx, func(tx *store.Tx) error {
		e := model.Entry{
			CompanyID: company, Name: "2025-01-001", State: model.EntryDraft,
			Date: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
			Lines: []model.Line{
				{AccountID: used.ID, Debit: decimal.NewFromInt(1)},
				{AccountID: counter.ID, Credit: decimal.NewFromInt(1)},
			},
		}
		if err := tx.CreateEntry(ctx, &e); err != nil {
			return err
		}
		if _, err := tx.SetProperty(ctx, "property_account_receivable", company, model.Reference{Model: model.ModelAccount, ID: onContact.ID}); err != nil {
			return err
		}
		tax, err := tx.CreateTax(ctx, company, "VAT")
		if err != nil {
			return err
		}
		_, err = tx.CreateTaxRepartitionLine(ctx, tax, onTax.ID)
		return err
	}))

	assert.ErrorContains(t, svc.Delete(ctx, "admin", []int64{used.ID}), "contains journal items")
	assert.ErrorContains(t, svc.Delete(ctx, "admin", []int64{onContact.ID}), "used on a contact")
	assert.ErrorContains(t, svc.Delete(ctx, "admin", []int64{onTax.ID}), "tax repartition line")

	require.NoError(t, svc.Delete(ctx, "admin", []int64{free.ID}))
	_, err = svc.Get(ctx, free.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestNextCode(t *testing.T) {
	svc, _, company := newTestService(t)
	ctx := context.Background()

	for _, c := range []string{"9998", "9999"} {
		_, err := svc.Create(ctx, CreateParams{CompanyID: company, Name: "Acct " + c, Code: c})
		require.NoError(t, err)
	}
	next, err := svc.NextCode(ctx, company, "9998")
	require.NoError(t, err)
	assert.Equal(t, "9998.copy", next)

	next, err = svc.NextCode(ctx, company, "1000")
	require.NoError(t, err)
	assert.Equal(t, "1001", next, "the start code itself is never returned")
}

func TestList(t *testing.T) {
	svc, _, company := newTestService(t)
	ctx := context.Background()
	for _, c := range []string{"300000", "100000", "200000"} {
		_, err := svc.Create(ctx, CreateParams{CompanyID: company, Name: "Acct", Code: c, Type: model.AccountTypeEquity})
		require.NoError(t, err)
	}
	accts, err := svc.List(ctx, company)
	require.NoError(t, err)
	require.Len(t, accts, 3)
	assert.Equal(t, "100000", accts[0].Code(company))
	assert.Equal(t, "300000", accts[2].Code(company))
}
