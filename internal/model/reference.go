package model

import (
	"fmt"
	"strconv"
	"strings"
)

// ModelAccount is the model name polymorphic references use for accounts.
const ModelAccount = "account.account"

// Reference points at any record by model name and id. It is how polymorphic
// rows (attachments, properties) store their target.
type Reference struct {
	Model string
	ID    int64
}

// String returns "model,id".
func (r Reference) String() string {
	return fmt.Sprintf("%s,%d", r.Model, r.ID)
}

// ParseReference parses "model,id".
func ParseReference(s string) (Reference, error) {
	m, idStr, ok := strings.Cut(s, ",")
	if !ok || m == "" {
		return Reference{}, fmt.Errorf("invalid reference %q", s)
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return Reference{}, fmt.Errorf("invalid reference id in %q: %w", s, err)
	}
	return Reference{Model: m, ID: id}, nil
}
