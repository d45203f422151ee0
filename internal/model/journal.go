package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryState represents the lifecycle state of a journal entry.
type EntryState string

const (
	EntryDraft  EntryState = "draft"
	EntryPosted EntryState = "posted"
)

// Entry is a journal entry: a dated, balanced set of lines in one company.
type Entry struct {
	ID        int64
	CompanyID int64
	Name      string // "2025-01-001"
	Date      time.Time
	State     EntryState
	Hash      string // inalterable hash, empty unless the entry is chained
	Lines     []Line
}

// Line is one side of a double-entry.
type Line struct {
	ID        int64
	AccountID int64
	Label     string
	Debit     decimal.Decimal // zero if credit side
	Credit    decimal.Decimal // zero if debit side
	Currency  string
}

// Balanced reports whether total debits equal total credits.
func (e Entry) Balanced() bool {
	debit, credit := decimal.Zero, decimal.Zero
	for _, l := range e.Lines {
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	return debit.Equal(credit)
}

// Hashed reports whether the entry is posted and anchored in the hash chain.
func (e Entry) Hashed() bool {
	return e.State == EntryPosted && e.Hash != ""
}
