package ledger

import (
	"context"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/coa/internal/model"
	"github.com/cleared-dev/coa/internal/store"
)

type balanceKey struct {
	company int64
	account int64
}

// Batch accumulates opening balances across many account writes and flushes
// them once with Finalize. A Batch is not safe for concurrent use.
type Batch struct {
	balances map[balanceKey]*store.OpeningBalance
	order    []balanceKey
	done     bool
}

// NewBatch returns an empty opening balance batch.
func NewBatch() *Batch {
	return &Batch{balances: make(map[balanceKey]*store.OpeningBalance)}
}

// Add adds debit and credit to an account's opening balance in a company.
func (b *Batch) Add(companyID, accountID int64, debit, credit decimal.Decimal) {
	k := balanceKey{companyID, accountID}
	ob, ok := b.balances[k]
	if !ok {
		ob = &store.OpeningBalance{CompanyID: companyID, AccountID: accountID}
		b.balances[k] = ob
		b.order = append(b.order, k)
	}
	ob.Debit = ob.Debit.Add(debit)
	ob.Credit = ob.Credit.Add(credit)
}

// Len returns the number of accounts with an accumulated balance.
func (b *Batch) Len() int { return len(b.order) }

// Finalize writes the accumulated balances, replacing what each account had.
// Each company's remaining difference between opening debits and credits is
// booked on its undistributed profits account when it has one; the returned
// map holds the difference found per company, balanced or not. Finalize may
// only be called once.
func (b *Batch) Finalize(ctx context.Context, tx *store.Tx) (map[int64]decimal.Decimal, error) {
	if b.done {
		return nil, fmt.Errorf("opening balance batch already finalized")
	}
	b.done = true

	var companies []int64
	for _, k := range b.order {
		if !slices.Contains(companies, k.company) {
			companies = append(companies, k.company)
		}
	}
	slices.Sort(companies)

	imbalance := make(map[int64]decimal.Decimal, len(companies))
	for _, c := range companies {
		stored, err := tx.OpeningBalances(ctx, c)
		if err != nil {
			return nil, err
		}
		diff := decimal.Zero
		for _, k := range b.order {
			if k.company == c {
				diff = diff.Add(b.balances[k].Debit).Sub(b.balances[k].Credit)
			}
		}
		for _, ob := range stored {
			if _, ok := b.balances[balanceKey{c, ob.AccountID}]; !ok {
				diff = diff.Add(ob.Debit).Sub(ob.Credit)
			}
		}
		imbalance[c] = diff
		if diff.IsZero() {
			continue
		}

		ids, err := tx.AccountIDsOfType(ctx, c, model.AccountTypeUnaffectedEarning)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			continue
		}
		k := balanceKey{c, ids[0]}
		if _, ok := b.balances[k]; !ok {
			// carry its stored balance into the batch so the write below keeps it
			for _, ob := range stored {
				if ob.AccountID == ids[0] {
					b.Add(c, ids[0], ob.Debit, ob.Credit)
				}
			}
		}
		if diff.IsPositive() {
			b.Add(c, ids[0], decimal.Zero, diff)
		} else {
			b.Add(c, ids[0], diff.Neg(), decimal.Zero)
		}
	}

	for _, k := range b.order {
		if err := tx.SetOpeningBalance(ctx, *b.balances[k]); err != nil {
			return nil, fmt.Errorf("writing opening balance of account %d: %w", k.account, err)
		}
	}
	return imbalance, nil
}
