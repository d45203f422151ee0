package accounts

import "github.com/cleared-dev/coa/internal/model"

// DefaultChart returns the chart seeded into a new company.
func DefaultChart() []ChartRow {
	return []ChartRow{
		{Code: "101000", Name: "Cash", Type: model.AccountTypeCash},
		{Code: "101200", Name: "Bank", Type: model.AccountTypeCash},
		{Code: "121000", Name: "Account Receivable", Type: model.AccountTypeReceivable},
		{Code: "131000", Name: "Stock Valuation", Type: model.AccountTypeCurrentAsset},
		{Code: "151000", Name: "Fixed Asset", Type: model.AccountTypeFixedAsset},
		{Code: "211000", Name: "Account Payable", Type: model.AccountTypePayable},
		{Code: "251000", Name: "Tax Received", Type: model.AccountTypeCurrentLiability},
		{Code: "252000", Name: "Tax Paid", Type: model.AccountTypeCurrentAsset},
		{Code: "301000", Name: "Capital", Type: model.AccountTypeEquity},
		{Code: "400000", Name: "Product Sales", Type: model.AccountTypeIncome},
		{Code: "450000", Name: "Other Income", Type: model.AccountTypeOtherIncome},
		{Code: "600000", Name: "Expenses", Type: model.AccountTypeExpense},
		{Code: "610000", Name: "Cost of Goods Sold", Type: model.AccountTypeDirectCost},
		{Code: "620000", Name: "Depreciation", Type: model.AccountTypeDepreciation},
		{Code: "999999", Name: "Undistributed Profits/Losses", Type: model.AccountTypeUnaffectedEarning},
	}
}
