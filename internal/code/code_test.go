package code

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/coa/internal/errs"
)

func usedSet(codes ...string) UsedFunc {
	s := NewSet(codes...)
	return func(c string) (bool, error) { return s.Has(c), nil }
}

func TestNextAvailable(t *testing.T) {
	tests := []struct {
		start string
		used  []string
		want  string
	}{
		{"102100", []string{"102100"}, "102101"},
		{"1598", []string{"1598", "1599"}, "1600"},
		{"10.01.08", []string{"10.01.08"}, "10.01.09"},
		{"10.01.97", []string{"10.01.97", "10.01.98", "10.01.99"}, "10.01.97.copy"},
		{"1021A", []string{"1021A"}, "1022A"},
		{"hello", []string{"hello"}, "hello.copy"},
		{"9998", []string{"9998", "9999"}, "9998.copy"},
		{"9998", []string{"9998", "9999", "9998.copy"}, "9998.copy2"},
		{"A1B2C", []string{"A1B2C"}, "A1B3C"},
		{"0099", []string{"0099"}, "0100"},
	}
	for _, tt := range tests {
		got, err := NextAvailable(tt.start, usedSet(tt.used...), nil)
		require.NoError(t, err, tt.start)
		assert.Equal(t, tt.want, got, "NextAvailable(%q, %v)", tt.start, tt.used)
	}
}

func TestNextAvailable_DefaultTriedExcludesStart(t *testing.T) {
	// start is free but a nil tried set still skips it
	got, err := NextAvailable("4000", usedSet(), nil)
	require.NoError(t, err)
	assert.Equal(t, "4001", got)
}

func TestNextAvailable_EmptyTriedAllowsStart(t *testing.T) {
	got, err := NextAvailable("4000", usedSet(), NewSet())
	require.NoError(t, err)
	assert.Equal(t, "4000", got)
}

func TestNextAvailable_TriedSetSkipsCandidates(t *testing.T) {
	tried := NewSet("4000", "4001")
	got, err := NextAvailable("4000", usedSet("4002"), tried)
	require.NoError(t, err)
	assert.Equal(t, "4003", got)
}

func TestNextAvailable_PreservesLength(t *testing.T) {
	used := NewSet("500000")
	for i := 0; i < 25; i++ {
		got, err := NextAvailable("500000", func(c string) (bool, error) { return used.Has(c), nil }, nil)
		require.NoError(t, err)
		assert.Len(t, got, 6)
		assert.False(t, used.Has(got))
		used.Add(got)
	}
}

func TestNextAvailable_Exhausted(t *testing.T) {
	used := NewSet("hello")
	used.Add("hello.copy")
	for i := 2; i <= 99; i++ {
		used.Add(fmt.Sprintf("hello.copy%d", i))
	}
	_, err := NextAvailable("hello", func(c string) (bool, error) { return used.Has(c), nil }, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrAllocationExhausted))
}

func TestNextAvailable_PropagatesLookupError(t *testing.T) {
	boom := errors.New("db down")
	_, err := NextAvailable("1000", func(string) (bool, error) { return false, boom }, NewSet())
	assert.ErrorIs(t, err, boom)
}

func TestSplit(t *testing.T) {
	tests := []struct {
		in                     string
		prefix, digits, suffix string
	}{
		{"10.01.97", "10.01.", "97", ""},
		{"1021A", "", "1021", "A"},
		{"hello", "", "", "hello"},
		{"A1B2C", "A1B", "2", "C"},
		{"", "", "", ""},
	}
	for _, tt := range tests {
		p, d, s := Split(tt.in)
		assert.Equal(t, []string{tt.prefix, tt.digits, tt.suffix}, []string{p, d, s}, "Split(%q)", tt.in)
	}
}

func TestFromPrefix(t *testing.T) {
	assert.Equal(t, "100001", FromPrefix("10", 6))
	assert.Equal(t, "4001", FromPrefix("4", 4))
	assert.Equal(t, "123456", FromPrefix("123456", 6))
	assert.Equal(t, "1234567", FromPrefix("1234567", 6))
}

func TestCheck(t *testing.T) {
	assert.NoError(t, Check("101000"))
	assert.NoError(t, Check("10.01.A"))
	for _, bad := range []string{"", "10 00", "10-00", "10/00"} {
		err := Check(bad)
		assert.True(t, errs.IsValidation(err), "Check(%q)", bad)
	}
}

func TestSplitCodeName(t *testing.T) {
	tests := []struct {
		in, code, name string
	}{
		{"101000 Cash", "101000", "Cash"},
		{"101000", "101000", ""},
		{"Cash", "", "Cash"},
		{"Cash 101", "", "Cash 101"},
		{" 101 Cash", "", "101 Cash"},
		{"4A2\tSales", "4A2", "Sales"},
	}
	for _, tt := range tests {
		c, n := SplitCodeName(tt.in)
		assert.Equal(t, tt.code, c, "code of %q", tt.in)
		assert.Equal(t, tt.name, n, "name of %q", tt.in)
	}
}
