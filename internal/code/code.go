// Package code allocates and validates account codes.
package code

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/cleared-dev/coa/internal/errs"
)

// maxCopies bounds the ".copy" fallback: ".copy", ".copy2" ... ".copy99".
const maxCopies = 99

var codePattern = regexp.MustCompile(`^[A-Za-z0-9.]+$`)

// UsedFunc reports whether a code is already taken.
type UsedFunc func(code string) (bool, error)

// Set is a set of codes already handed out or known to be taken.
type Set map[string]struct{}

// NewSet returns a Set holding codes.
func NewSet(codes ...string) Set {
	s := make(Set, len(codes))
	for _, c := range codes {
		s.Add(c)
	}
	return s
}

// Add marks code as taken.
func (s Set) Add(code string) { s[code] = struct{}{} }

// Has reports whether code is in the set.
func (s Set) Has(code string) bool {
	_, ok := s[code]
	return ok
}

// NextAvailable returns the first free code derived from start.
//
// A nil tried set means {start}: the result is then strictly different from
// start. Pass an empty, non-nil set to allow start itself.
//
// Candidates, in order: start; start with its last digit run incremented up to
// the run's width ("1021A" -> "1022A", "10.01.08" -> "10.01.09"); then
// start+".copy", start+".copy2" ... start+".copy99".
func NextAvailable(start string, used UsedFunc, tried Set) (string, error) {
	if tried == nil {
		tried = NewSet(start)
	}
	available := func(c string) (bool, error) {
		if tried.Has(c) {
			return false, nil
		}
		taken, err := used(c)
		if err != nil {
			return false, fmt.Errorf("checking code %q: %w", c, err)
		}
		return !taken, nil
	}

	ok, err := available(start)
	if err != nil {
		return "", err
	}
	if ok {
		return start, nil
	}

	prefix, digits, suffix := Split(start)
	if digits != "" {
		width := len(digits)
		n, err := strconv.ParseUint(digits, 10, 64)
		// Runs too long for uint64 go straight to the copy fallback.
		if err == nil && width < 20 {
			limit := pow10(width)
			for num := n + 1; num < limit; num++ {
				candidate := fmt.Sprintf("%s%0*d%s", prefix, width, num, suffix)
				ok, err := available(candidate)
				if err != nil {
					return "", err
				}
				if ok {
					return candidate, nil
				}
			}
		}
	}

	for i := 1; i <= maxCopies; i++ {
		candidate := start + ".copy"
		if i > 1 {
			candidate += strconv.Itoa(i)
		}
		ok, err := available(candidate)
		if err != nil {
			return "", err
		}
		if ok {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w (starting from %q)", errs.ErrAllocationExhausted, start)
}

// Split breaks a code into the text before its last digit run, the run, and
// the non-digit tail. Codes without digits return ("", "", code).
// "10.01.97" -> ("10.01.", "97", "")
// "1021A"    -> ("", "1021", "A")
func Split(c string) (prefix, digits, suffix string) {
	end := len(c)
	for end > 0 && !isDigit(c[end-1]) {
		end--
	}
	if end == 0 {
		return "", "", c
	}
	begin := end
	for begin > 0 && isDigit(c[begin-1]) {
		begin--
	}
	return c[:begin], c[begin:end], c[end:]
}

// FromPrefix builds the first code of a numbering plan: the prefix padded with
// zeros to digits-1 characters followed by "1". Prefixes already digits long
// are returned unchanged.
// ("10", 6) -> "100001"
func FromPrefix(prefix string, digits int) string {
	if len(prefix) >= digits {
		return prefix
	}
	return prefix + strings.Repeat("0", digits-1-len(prefix)) + "1"
}

// Check rejects codes with characters other than letters, digits and dots.
func Check(c string) error {
	if !codePattern.MatchString(c) {
		return errs.Validationf("code", "the account code %q can only contain alphanumeric characters and dots", c)
	}
	return nil
}

// SplitCodeName splits "101000 Cash" into ("101000", "Cash"). The first word
// is taken as the code only when it contains a digit.
func SplitCodeName(s string) (c, name string) {
	if s == "" || unicode.IsSpace(rune(s[0])) {
		return "", strings.TrimSpace(s)
	}
	word, rest := s, ""
	if i := strings.IndexFunc(s, unicode.IsSpace); i >= 0 {
		word, rest = s[:i], s[i:]
	}
	if !strings.ContainsFunc(word, unicode.IsDigit) {
		return "", strings.TrimSpace(s)
	}
	return word, strings.TrimSpace(rest)
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func pow10(n int) uint64 {
	p := uint64(1)
	for i := 0; i < n; i++ {
		p *= 10
	}
	return p
}
