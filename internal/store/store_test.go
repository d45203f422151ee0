package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/cleared-dev/coa/internal/errs"
	"github.com/cleared-dev/coa/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "coa.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func inTx(t *testing.T, db *DB, fn func(tx *Tx)) {
	t.Helper()
	require.NoError(t, db.InTx(context.Background(), func(tx *Tx) error {
		fn(tx)
		return nil
	}))
}

func mustCompany(t *testing.T, tx *Tx, name string) int64 {
	t.Helper()
	c := model.Company{Name: name}
	require.NoError(t, tx.CreateCompany(context.Background(), &c))
	return c.ID
}

func mustAccount(t *testing.T, tx *Tx, name, code string, companies ...int64) model.Account {
	t.Helper()
	a := model.Account{Name: name, Type: model.AccountTypeCurrentAsset, Companies: companies}
	for _, c := range companies {
		a.SetCode(c, code)
	}
	require.NoError(t, tx.CreateAccount(context.Background(), &a))
	return a
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coa.db")
	db, err := Open(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, path, db.Path())
	require.NoError(t, db.Close())
}

func TestInTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	boom := errors.New("boom")

	err := db.InTx(ctx, func(tx *Tx) error {
		mustCompany(t, tx, "Acme")
		return boom
	})
	assert.Same(t, boom, err)

	inTx(t, db, func(tx *Tx) {
		companies, err := tx.Companies(ctx)
		require.NoError(t, err)
		assert.Empty(t, companies)
	})
}

func TestInTxRollsBackOnPanic(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	assert.Panics(t, func() {
		_ = db.InTx(ctx, func(tx *Tx) error {
			mustCompany(t, tx, "Acme")
			panic("boom")
		})
	})

	inTx(t, db, func(tx *Tx) {
		companies, err := tx.Companies(ctx)
		require.NoError(t, err)
		assert.Empty(t, companies)
	})
}

func TestAccountRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	inTx(t, db, func(tx *Tx) {
		c1 := mustCompany(t, tx, "Acme")
		c2 := mustCompany(t, tx, "Acme EU")
		tax, err := tx.CreateTax(ctx, c1, "VAT 20%")
		require.NoError(t, err)

		a := model.Account{
			Name:      "Receivable",
			Type:      model.AccountTypeReceivable,
			Reconcile: true,
			Currency:  "EUR",
			Companies: []int64{c1, c2},
			Codes:     map[int64]string{c1: "121000", c2: "411000"},
			TaxIDs:    []int64{tax},
			TagIDs:    []int64{7, 3},
		}
		require.NoError(t, tx.CreateAccount(ctx, &a))
		require.NotZero(t, a.ID)

		got, err := tx.Account(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, "Receivable", got.Name)
		assert.Equal(t, model.AccountTypeReceivable, got.Type)
		assert.True(t, got.Reconcile)
		assert.Equal(t, "EUR", got.Currency)
		assert.Equal(t, []int64{c1, c2}, got.Companies)
		assert.Equal(t, "121000", got.Code(c1))
		assert.Equal(t, "411000", got.Code(c2))
		assert.Equal(t, []int64{tax}, got.TaxIDs)
		assert.Equal(t, []int64{3, 7}, got.TagIDs)

		got.Name = "Trade Receivable"
		got.TagIDs = []int64{3}
		require.NoError(t, tx.UpdateAccount(ctx, got))
		got, err = tx.Account(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, "Trade Receivable", got.Name)
		assert.Equal(t, []int64{3}, got.TagIDs)
	})
}

func TestAccountNotFound(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	inTx(t, db, func(tx *Tx) {
		_, err := tx.Account(ctx, 42)
		assert.ErrorIs(t, err, errs.ErrNotFound)
		err = tx.UpdateAccount(ctx, model.Account{ID: 42, Name: "x", Type: model.AccountTypeEquity})
		assert.ErrorIs(t, err, errs.ErrNotFound)
	})
}

func TestAccountsByCompanyOrderedByCode(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	inTx(t, db, func(tx *Tx) {
		c := mustCompany(t, tx, "Acme")
		mustAccount(t, tx, "Bank", "101200", c)
		mustAccount(t, tx, "Cash", "101000", c)
		mustAccount(t, tx, "Stock", "110000", c)

		accts, err := tx.AccountsByCompany(ctx, c)
		require.NoError(t, err)
		require.Len(t, accts, 3)
		assert.Equal(t, "101000", accts[0].Code(c))
		assert.Equal(t, "101200", accts[1].Code(c))
		assert.Equal(t, "110000", accts[2].Code(c))
	})
}

func TestCodeOwners(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	inTx(t, db, func(tx *Tx) {
		c1 := mustCompany(t, tx, "Acme")
		c2 := mustCompany(t, tx, "Other")
		a := mustAccount(t, tx, "Cash", "101000", c1)
		b := mustAccount(t, tx, "Bank", "101200", c1)
		mustAccount(t, tx, "Cash", "101000", c2)

		owners, err := tx.CodeOwners(ctx, c1, []string{"101000", "101200", "999999"}, nil)
		require.NoError(t, err)
		assert.Equal(t, []CodeOwner{
			{AccountID: a.ID, CompanyID: c1, Code: "101000"},
			{AccountID: b.ID, CompanyID: c1, Code: "101200"},
		}, owners)

		owners, err = tx.CodeOwners(ctx, c1, []string{"101000"}, []int64{a.ID})
		require.NoError(t, err)
		assert.Empty(t, owners)

		taken, err := tx.CodeTaken(ctx, c2, "101200")
		require.NoError(t, err)
		assert.False(t, taken)
	})
}

func TestGroups(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	inTx(t, db, func(tx *Tx) {
		c := mustCompany(t, tx, "Acme")
		parent := model.Group{CompanyID: c, Name: "Assets", PrefixStart: "1", PrefixEnd: "1"}
		require.NoError(t, tx.CreateGroup(ctx, &parent))
		child := model.Group{CompanyID: c, Name: "Cash", PrefixStart: "10", PrefixEnd: "10"}
		require.NoError(t, tx.CreateGroup(ctx, &child))
		require.NoError(t, tx.SetGroupParent(ctx, child.ID, parent.ID))

		got, err := tx.Group(ctx, child.ID)
		require.NoError(t, err)
		assert.Equal(t, parent.ID, got.ParentID)

		overlap := model.Group{CompanyID: c, PrefixStart: "09", PrefixEnd: "11"}
		ids, err := tx.OverlappingGroups(ctx, overlap)
		require.NoError(t, err)
		assert.Equal(t, []int64{child.ID}, ids)

		require.NoError(t, tx.ReparentGroups(ctx, parent.ID, 0))
		require.NoError(t, tx.DeleteGroup(ctx, parent.ID))
		got, err = tx.Group(ctx, child.ID)
		require.NoError(t, err)
		assert.Zero(t, got.ParentID)

		_, err = tx.Group(ctx, parent.ID)
		assert.ErrorIs(t, err, errs.ErrNotFound)
	})
}

func TestLockDate(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	inTx(t, db, func(tx *Tx) {
		c := mustCompany(t, tx, "Acme")
		_, ok, err := tx.LockDate(ctx, c)
		require.NoError(t, err)
		assert.False(t, ok)

		fiscal := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
		hard := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
		require.NoError(t, tx.SetLockDates(ctx, c, fiscal, hard))

		d, ok, err := tx.LockDate(ctx, c)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, fiscal, d)
	})
}

func TestEntryPredicates(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	inTx(t, db, func(tx *Tx) {
		c := mustCompany(t, tx, "Acme")
		cash := mustAccount(t, tx, "Cash", "101000", c)
		sales := mustAccount(t, tx, "Sales", "400000", c)
		idle := mustAccount(t, tx, "Idle", "109000", c)

		e := model.Entry{
			CompanyID: c, Name: "2025-01-001", State: model.EntryPosted, Hash: "abc",
			Date: time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
			Lines: []model.Line{
				{AccountID: cash.ID, Debit: decimal.RequireFromString("10.00")},
				{AccountID: sales.ID, Credit: decimal.RequireFromString("10.00"), Currency: "USD"},
			},
		}
		require.NoError(t, tx.CreateEntry(ctx, &e))

		hashed, err := tx.HasHashedEntries(ctx, cash.ID)
		require.NoError(t, err)
		assert.True(t, hashed)
		hashed, err = tx.HasHashedEntries(ctx, idle.ID)
		require.NoError(t, err)
		assert.False(t, hashed)

		locked, err := tx.HasLockedEntries(ctx, cash.ID, c, time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		assert.True(t, locked)
		locked, err = tx.HasLockedEntries(ctx, cash.ID, c, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		assert.False(t, locked)

		other, err := tx.HasLinesInOtherCurrency(ctx, sales.ID, "EUR")
		require.NoError(t, err)
		assert.True(t, other)
		other, err = tx.HasLinesInOtherCurrency(ctx, sales.ID, "USD")
		require.NoError(t, err)
		assert.False(t, other)

		last, err := tx.LastHash(ctx, c)
		require.NoError(t, err)
		assert.Equal(t, "abc", last)

		names, err := tx.EntryNames(ctx, c, "2025-01-")
		require.NoError(t, err)
		assert.Equal(t, []string{"2025-01-001"}, names)
	})
}

func TestReplaceAccountReferences(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	inTx(t, db, func(tx *Tx) {
		c := mustCompany(t, tx, "Acme")
		tax, err := tx.CreateTax(ctx, c, "VAT")
		require.NoError(t, err)

		keep := mustAccount(t, tx, "Bank", "101200", c)
		keep.TaxIDs = []int64{tax}
		keep.TagIDs = []int64{1}
		require.NoError(t, tx.UpdateAccount(ctx, keep))

		gone := mustAccount(t, tx, "Bank 2", "101300", c)
		gone.TaxIDs = []int64{tax}
		gone.TagIDs = []int64{1, 2}
		require.NoError(t, tx.UpdateAccount(ctx, gone))

		e := model.Entry{
			CompanyID: c, Name: "2025-01-001", State: model.EntryPosted,
			Date: time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
			Lines: []model.Line{
				{AccountID: gone.ID, Debit: decimal.NewFromInt(5)},
				{AccountID: keep.ID, Credit: decimal.NewFromInt(5)},
			},
		}
		require.NoError(t, tx.CreateEntry(ctx, &e))
		journal, err := tx.CreateJournal(ctx, c, "BNK", gone.ID)
		require.NoError(t, err)
		att, err := tx.CreateAttachment(ctx, "statement.pdf", model.Reference{Model: model.ModelAccount, ID: gone.ID})
		require.NoError(t, err)
		prop, err := tx.SetProperty(ctx, "default_receivable", c, model.Reference{Model: model.ModelAccount, ID: gone.ID})
		require.NoError(t, err)
		require.NoError(t, tx.SetExternalID(ctx, "coa.bank2", model.Reference{Model: model.ModelAccount, ID: gone.ID}))
		_, err = tx.ResolveExternalID(ctx, "coa.bank2") // primes the cache
		require.NoError(t, err)

		n, err := tx.ReplaceAccountReferences(ctx, []int64{gone.ID}, keep.ID)
		require.NoError(t, err)
		assert.Positive(t, n)
		require.NoError(t, tx.DeleteAccounts(ctx, []int64{gone.ID}))
		tx.InvalidateCaches()

		lines, err := tx.EntryLines(ctx, keep.ID)
		require.NoError(t, err)
		assert.Len(t, lines, 2)

		def, err := tx.JournalDefaultAccount(ctx, journal)
		require.NoError(t, err)
		assert.Equal(t, keep.ID, def)

		ref, err := tx.AttachmentTarget(ctx, att)
		require.NoError(t, err)
		assert.Equal(t, keep.ID, ref.ID)

		ref, err = tx.PropertyValue(ctx, prop)
		require.NoError(t, err)
		assert.Equal(t, keep.ID, ref.ID)

		ref, err = tx.ResolveExternalID(ctx, "coa.bank2")
		require.NoError(t, err)
		assert.Equal(t, keep.ID, ref.ID)

		got, err := tx.Account(ctx, keep.ID)
		require.NoError(t, err)
		assert.Equal(t, []int64{tax}, got.TaxIDs)
		assert.Equal(t, []int64{1, 2}, got.TagIDs)
	})
}

func TestDeleteReferencedAccountFails(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	err := db.InTx(ctx, func(tx *Tx) error {
		c := mustCompany(t, tx, "Acme")
		a := mustAccount(t, tx, "Cash", "101000", c)
		if _, err := tx.CreateJournal(ctx, c, "CSH", a.ID); err != nil {
			return err
		}
		return tx.DeleteAccounts(ctx, []int64{a.ID})
	})
	assert.Error(t, err)
}

func TestOpeningBalancesSumMergedRows(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	inTx(t, db, func(tx *Tx) {
		c := mustCompany(t, tx, "Acme")
		a := mustAccount(t, tx, "Cash", "101000", c)
		b := mustAccount(t, tx, "Bank", "101200", c)

		require.NoError(t, tx.SetOpeningBalance(ctx, OpeningBalance{CompanyID: c, AccountID: a.ID, Debit: decimal.NewFromInt(100)}))
		require.NoError(t, tx.SetOpeningBalance(ctx, OpeningBalance{CompanyID: c, AccountID: b.ID, Debit: decimal.NewFromInt(50)}))
		_, err := tx.ReplaceAccountReferences(ctx, []int64{b.ID}, a.ID)
		require.NoError(t, err)

		obs, err := tx.OpeningBalances(ctx, c)
		require.NoError(t, err)
		require.Len(t, obs, 1)
		assert.True(t, obs[0].Debit.Equal(decimal.NewFromInt(150)))
	})
}
