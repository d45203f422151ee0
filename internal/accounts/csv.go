package accounts

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/coa/internal/model"
)

// ChartRow is one line of a chart-of-accounts CSV file.
type ChartRow struct {
	Code          string
	Name          string
	Type          model.AccountType // empty = inherit
	Reconcile     *bool             // nil = the type's default
	Currency      string
	OpeningDebit  decimal.Decimal
	OpeningCredit decimal.Decimal
}

// ChartHeader is the header row of a chart CSV file.
var ChartHeader = []string{"code", "name", "account_type", "reconcile", "currency", "opening_debit", "opening_credit"}

const (
	numFields        = 7
	colCode          = 0
	colName          = 1
	colType          = 2
	colReconcile     = 3
	colCurrency      = 4
	colOpeningDebit  = 5
	colOpeningCredit = 6
)

// ReadChart reads a chart CSV file. The first row is the header.
func ReadChart(r io.Reader) ([]ChartRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading chart CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	var rows []ChartRow
	for i, rec := range records[1:] {
		row, err := UnmarshalChartRow(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteChart writes a chart CSV file.
func WriteChart(w io.Writer, rows []ChartRow) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(ChartHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, row := range rows {
		if err := cw.Write(MarshalChartRow(row)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalChartRow converts a ChartRow to a CSV record.
func MarshalChartRow(row ChartRow) []string {
	rec := make([]string, numFields)
	rec[colCode] = row.Code
	rec[colName] = row.Name
	rec[colType] = string(row.Type)
	if row.Reconcile != nil {
		rec[colReconcile] = strconv.FormatBool(*row.Reconcile)
	}
	rec[colCurrency] = row.Currency
	if !row.OpeningDebit.IsZero() {
		rec[colOpeningDebit] = row.OpeningDebit.StringFixed(2)
	}
	if !row.OpeningCredit.IsZero() {
		rec[colOpeningCredit] = row.OpeningCredit.StringFixed(2)
	}
	return rec
}

// UnmarshalChartRow converts a CSV record to a ChartRow.
func UnmarshalChartRow(rec []string) (ChartRow, error) {
	if len(rec) != numFields {
		return ChartRow{}, fmt.Errorf("expected %d fields, got %d", numFields, len(rec))
	}

	row := ChartRow{
		Code:     rec[colCode],
		Name:     rec[colName],
		Type:     model.AccountType(rec[colType]),
		Currency: rec[colCurrency],
	}
	if row.Type != "" && !row.Type.Valid() {
		return ChartRow{}, errors.New(model.UnknownAccountType(row.Type))
	}
	if rec[colReconcile] != "" {
		b, err := strconv.ParseBool(rec[colReconcile])
		if err != nil {
			return ChartRow{}, fmt.Errorf("parsing reconcile %q: %w", rec[colReconcile], err)
		}
		row.Reconcile = &b
	}

	var err error
	if row.OpeningDebit, err = parseAmount(rec[colOpeningDebit]); err != nil {
		return ChartRow{}, fmt.Errorf("parsing opening_debit %q: %w", rec[colOpeningDebit], err)
	}
	if row.OpeningCredit, err = parseAmount(rec[colOpeningCredit]); err != nil {
		return ChartRow{}, fmt.Errorf("parsing opening_credit %q: %w", rec[colOpeningCredit], err)
	}
	return row, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
