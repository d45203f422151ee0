package model

import (
	"slices"
	"time"
)

// Company owns a slice of the chart of accounts and its lock dates.
type Company struct {
	ID             int64
	Name           string
	FiscalLockDate time.Time // zero = unset
	HardLockDate   time.Time // zero = unset
}

// LockDate returns the later of the two lock dates. ok is false when neither is set.
func (c Company) LockDate() (date time.Time, ok bool) {
	date = c.FiscalLockDate
	if c.HardLockDate.After(date) {
		date = c.HardLockDate
	}
	return date, !date.IsZero()
}

// User is the caller on whose behalf a structural operation runs.
type User struct {
	Name       string
	CompanyIDs []int64
	ReadOnly   bool
}

// CanAccess reports whether the user may act on a company.
func (u User) CanAccess(companyID int64) bool {
	return slices.Contains(u.CompanyIDs, companyID)
}
