package model

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hbollon/go-edlib"
)

// AccountType classifies accounts in the chart of accounts. The token before
// the first underscore is the internal group.
type AccountType string

const (
	AccountTypeReceivable        AccountType = "asset_receivable"
	AccountTypeCash              AccountType = "asset_cash"
	AccountTypeCurrentAsset      AccountType = "asset_current"
	AccountTypeNonCurrentAsset   AccountType = "asset_non_current"
	AccountTypePrepayments       AccountType = "asset_prepayments"
	AccountTypeFixedAsset        AccountType = "asset_fixed"
	AccountTypePayable           AccountType = "liability_payable"
	AccountTypeCreditCard        AccountType = "liability_credit_card"
	AccountTypeCurrentLiability  AccountType = "liability_current"
	AccountTypeNonCurrentLiab    AccountType = "liability_non_current"
	AccountTypeEquity            AccountType = "equity"
	AccountTypeUnaffectedEarning AccountType = "equity_unaffected"
	AccountTypeIncome            AccountType = "income"
	AccountTypeOtherIncome       AccountType = "income_other"
	AccountTypeExpense           AccountType = "expense"
	AccountTypeDepreciation      AccountType = "expense_depreciation"
	AccountTypeDirectCost        AccountType = "expense_direct_cost"
	AccountTypeOffBalance        AccountType = "off_balance"
)

// AccountTypes lists every known account type in chart order.
var AccountTypes = []AccountType{
	AccountTypeReceivable,
	AccountTypeCash,
	AccountTypeCurrentAsset,
	AccountTypeNonCurrentAsset,
	AccountTypePrepayments,
	AccountTypeFixedAsset,
	AccountTypePayable,
	AccountTypeCreditCard,
	AccountTypeCurrentLiability,
	AccountTypeNonCurrentLiab,
	AccountTypeEquity,
	AccountTypeUnaffectedEarning,
	AccountTypeIncome,
	AccountTypeOtherIncome,
	AccountTypeExpense,
	AccountTypeDepreciation,
	AccountTypeDirectCost,
	AccountTypeOffBalance,
}

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	return slices.Contains(AccountTypes, t)
}

// ClosestAccountType returns the known type nearest to t by edit distance
// when it is within three edits, which catches most typos.
func ClosestAccountType(t AccountType) (AccountType, bool) {
	best, bestDistance := AccountType(""), 4
	for _, known := range AccountTypes {
		if d := edlib.LevenshteinDistance(string(t), string(known)); d < bestDistance {
			best, bestDistance = known, d
		}
	}
	return best, best != ""
}

// UnknownAccountType describes an invalid type, suggesting the closest one.
func UnknownAccountType(t AccountType) string {
	if guess, ok := ClosestAccountType(t); ok {
		return fmt.Sprintf("unknown account type %q (did you mean %q?)", t, guess)
	}
	return fmt.Sprintf("unknown account type %q", t)
}

// InternalGroup returns the coarse classification of t:
// asset, liability, equity, income, expense or off.
// "asset_current" -> "asset"
func (t AccountType) InternalGroup() string {
	group, _, _ := strings.Cut(string(t), "_")
	return group
}

// DefaultReconcile reports whether accounts of type t are reconcilable by default.
func (t AccountType) DefaultReconcile() bool {
	return t == AccountTypeReceivable || t == AccountTypePayable
}

// IncludeInitialBalance reports whether balances of type t carry over fiscal years.
func (t AccountType) IncludeInitialBalance() bool {
	g := t.InternalGroup()
	return g != "income" && g != "expense"
}

// Account is a leaf of the chart of accounts. An account may be shared by
// several companies and carries one code per company.
type Account struct {
	ID         int64
	Name       string
	Type       AccountType
	Reconcile  bool
	Currency   string // empty = entries may use any currency
	Deprecated bool
	NonTrade   bool
	Note       string
	Companies  []int64
	Codes      map[int64]string // company id -> code
	TaxIDs     []int64
	TagIDs     []int64
}

// Code returns the account's code in a company, or "" when unset.
func (a Account) Code(companyID int64) string {
	return a.Codes[companyID]
}

// SetCode sets the account's code in a company.
func (a *Account) SetCode(companyID int64, code string) {
	if a.Codes == nil {
		a.Codes = make(map[int64]string)
	}
	a.Codes[companyID] = code
}

// InCompany reports whether the account belongs to a company.
func (a Account) InCompany(companyID int64) bool {
	return slices.Contains(a.Companies, companyID)
}

// InternalGroup returns the internal group derived from the account type.
func (a Account) InternalGroup() string {
	return a.Type.InternalGroup()
}

// DisplayName returns "code name" as seen from a company.
func (a Account) DisplayName(companyID int64) string {
	code := a.Code(companyID)
	if code == "" {
		return a.Name
	}
	return code + " " + a.Name
}
