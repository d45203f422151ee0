package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/cleared-dev/coa/internal/model"
)

// ComputeHash chains an entry onto prev. Any change to the entry's name, date,
// or to a line's account or amounts changes the hash and every later one.
func ComputeHash(prev string, e model.Entry) string {
	h := sha256.New()
	_, _ = io.WriteString(h, prev)
	_, _ = fmt.Fprintf(h, "|%s|%s", e.Name, e.Date.Format("2006-01-02"))
	for _, l := range e.Lines {
		_, _ = fmt.Fprintf(h, "|%d:%s:%s", l.AccountID, l.Debit.StringFixed(2), l.Credit.StringFixed(2))
	}
	return hex.EncodeToString(h.Sum(nil))
}
