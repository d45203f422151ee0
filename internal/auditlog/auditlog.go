// Package auditlog keeps a CSV trail of structural chart operations.
package auditlog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Entry is one row in the audit log.
type Entry struct {
	Timestamp   time.Time
	User        string
	Action      string
	Details     string
	OperationID string
}

// Header is the CSV header of the audit log.
const Header = "timestamp,user,action,details,operation_id"

// DefaultPath is the audit log location relative to the repository root.
const DefaultPath = "logs/audit-log.csv"

const (
	numFields      = 5
	colTimestamp   = 0
	colUser        = 1
	colAction      = 2
	colDetails     = 3
	colOperationID = 4
)

// Actions recorded by the services.
const (
	ActionMerge         = "merge_accounts"
	ActionResolveGroups = "resolve_groups"
	ActionImportChart   = "import_chart"
	ActionDeleteAccount = "delete_account"
)

// Recorder appends entries to a log file. The zero value is disabled.
type Recorder struct {
	path string
	now  func() time.Time
}

// NewRecorder returns a Recorder writing to path. An empty path disables it.
func NewRecorder(path string) *Recorder {
	return &Recorder{path: path, now: time.Now}
}

// Enabled reports whether the recorder writes anywhere.
func (r *Recorder) Enabled() bool {
	return r != nil && r.path != ""
}

// Record appends one entry stamped with the current time.
func (r *Recorder) Record(user, action, details, operationID string) error {
	if !r.Enabled() {
		return nil
	}
	return Append(r.path, []Entry{{
		Timestamp:   r.now().UTC(),
		User:        user,
		Action:      action,
		Details:     details,
		OperationID: operationID,
	}})
}

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.Format(time.RFC3339)
	row[colUser] = e.User
	row[colAction] = e.Action
	row[colDetails] = e.Details
	row[colOperationID] = e.OperationID
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTimestamp])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}

	return Entry{
		Timestamp:   ts,
		User:        record[colUser],
		Action:      record[colAction],
		Details:     record[colDetails],
		OperationID: record[colOperationID],
	}, nil
}

// Append writes entries to the log at path, creating the file and header if needed.
func Append(path string, entries []Entry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating audit log dir: %w", err)
	}

	needsHeader := false
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	defer cw.Flush()

	if needsHeader {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}

	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}

	return cw.Error()
}

// Read returns all entries of the log at path.
// Returns nil if the file does not exist.
func Read(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading audit log CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var entries []Entry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
