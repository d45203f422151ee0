package model

// Group is a node of the account group tree. A group covers every account code
// whose first len(PrefixStart) characters fall within [PrefixStart, PrefixEnd].
type Group struct {
	ID          int64
	CompanyID   int64
	Name        string
	PrefixStart string
	PrefixEnd   string
	ParentID    int64 // 0 = top-level
}

// Contains reports whether code falls under the group's prefix range.
func (g Group) Contains(code string) bool {
	if g.PrefixStart == "" {
		return false
	}
	return g.PrefixStart <= head(code, len(g.PrefixStart)) && g.PrefixEnd >= head(code, len(g.PrefixEnd))
}

// DisplayName returns "start-end name", or "start name" for single-prefix groups.
func (g Group) DisplayName() string {
	prefix := g.PrefixStart
	if prefix != "" && g.PrefixEnd != g.PrefixStart {
		prefix += "-" + g.PrefixEnd
	}
	switch {
	case prefix == "":
		return g.Name
	case g.Name == "":
		return prefix
	default:
		return prefix + " " + g.Name
	}
}

func head(s string, n int) string {
	if len(s) < n {
		return s
	}
	return s[:n]
}
