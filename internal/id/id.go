// Package id formats ledger entry names and operation identifiers.
package id

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// FormatEntryName returns an entry name like "2025-01-001".
func FormatEntryName(year, month, seq int) string {
	return fmt.Sprintf("%04d-%02d-%03d", year, month, seq)
}

// EntryPrefix returns the name prefix shared by a month's entries: "2025-01-".
func EntryPrefix(year, month int) string {
	return fmt.Sprintf("%04d-%02d-", year, month)
}

// ParseEntryName parses "2025-01-001" into year, month, seq.
func ParseEntryName(name string) (year, month, seq int, err error) {
	parts := strings.SplitN(name, "-", 3)
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("invalid entry name format: %q", name)
	}

	year, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid year in entry name %q: %w", name, err)
	}

	month, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid month in entry name %q: %w", name, err)
	}

	seq, err = strconv.Atoi(parts[2])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid sequence in entry name %q: %w", name, err)
	}

	return year, month, seq, nil
}

// NextSeq returns one past the highest sequence among names. Names that do
// not parse are ignored.
func NextSeq(names []string) int {
	maxSeq := 0
	for _, n := range names {
		_, _, seq, err := ParseEntryName(n)
		if err != nil {
			continue
		}
		maxSeq = max(maxSeq, seq)
	}
	return maxSeq + 1
}

// NewOperationID returns a random identifier correlating the log lines and
// audit rows of one structural operation.
func NewOperationID() string {
	return uuid.NewString()
}
