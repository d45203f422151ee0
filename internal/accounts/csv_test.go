package accounts

import (
	"bytes"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/coa/internal/model"
)

func TestChartRoundTrip(t *testing.T) {
	yes := true
	rows := []ChartRow{
		{Code: "101000", Name: "Cash", Type: model.AccountTypeCash, OpeningDebit: decimal.RequireFromString("150.5")},
		{Code: "121000", Name: "Receivable, trade", Type: model.AccountTypeReceivable, Reconcile: &yes, Currency: "EUR"},
		{Code: "999999", Name: "Undistributed", OpeningCredit: decimal.RequireFromString("150.50")},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteChart(&buf, rows))
	assert.True(t, strings.HasPrefix(buf.String(), "code,name,account_type,reconcile,currency,opening_debit,opening_credit\n"))

	got, err := ReadChart(&buf)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "101000", got[0].Code)
	assert.True(t, got[0].OpeningDebit.Equal(decimal.RequireFromString("150.50")))
	assert.Nil(t, got[0].Reconcile)

	assert.Equal(t, "Receivable, trade", got[1].Name)
	require.NotNil(t, got[1].Reconcile)
	assert.True(t, *got[1].Reconcile)
	assert.Equal(t, "EUR", got[1].Currency)

	assert.Equal(t, model.AccountType(""), got[2].Type)
	assert.True(t, got[2].OpeningCredit.Equal(decimal.RequireFromString("150.50")))
}

func TestUnmarshalChartRow_Errors(t *testing.T) {
	tests := []struct {
		name string
		rec  []string
		want string
	}{
		{"field count", []string{"1", "2"}, "expected 7 fields"},
		{"type", []string{"1", "x", "asset_csh", "", "", "", ""}, `unknown account type "asset_csh" (did you mean "asset_cash"?)`},
		{"reconcile", []string{"1", "x", "", "maybe", "", "", ""}, "parsing reconcile"},
		{"debit", []string{"1", "x", "", "", "", "ten", ""}, "parsing opening_debit"},
		{"credit", []string{"1", "x", "", "", "", "", "ten"}, "parsing opening_credit"},
	}
	for _, tt := range tests {
		_, err := UnmarshalChartRow(tt.rec)
		assert.ErrorContains(t, err, tt.want, tt.name)
	}
}

func TestReadChart_Empty(t *testing.T) {
	rows, err := ReadChart(strings.NewReader(""))
	require.NoError(t, err)
	assert.Nil(t, rows)
}

func TestDefaultChart(t *testing.T) {
	chart := DefaultChart()
	require.NotEmpty(t, chart)

	seen := make(map[string]bool)
	unaffected := 0
	for _, row := range chart {
		assert.False(t, seen[row.Code], "duplicate code %s", row.Code)
		seen[row.Code] = true
		assert.NotEmpty(t, row.Name)
		assert.True(t, row.Type.Valid(), "account %s has type %q", row.Code, row.Type)
		if row.Type == model.AccountTypeUnaffectedEarning {
			unaffected++
		}
	}
	assert.Equal(t, 1, unaffected)
}
