// Package runlog keeps a CSV audit trail of import batches.
package runlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cleared-dev/invoicemap/internal/importer"
)

// Status values.
const (
	StatusImported = "imported"
	StatusFailed   = "failed"
)

// Entry is one row in the run log: the outcome of one file.
type Entry struct {
	Timestamp time.Time
	RunID     string
	File      string
	Mapping   string
	Status    string
	Headers   int
	Lines     int
	Skipped   int
	Error     string
}

// Header is the CSV header of the run log.
const Header = "timestamp,run_id,file,mapping,status,headers,lines,skipped,error"

const (
	numFields    = 9
	colTimestamp = 0
	colRunID     = 1
	colFile      = 2
	colMapping   = 3
	colStatus    = 4
	colHeaders   = 5
	colLines     = 6
	colSkipped   = 7
	colError     = 8
)

// Entries converts a batch into one entry per file.
func Entries(b importer.Batch, mapping string, now time.Time) []Entry {
	entries := make([]Entry, 0, len(b.Files))
	for _, f := range b.Files {
		e := Entry{
			Timestamp: now,
			RunID:     b.RunID,
			File:      filepath.Base(f.Path),
			Mapping:   mapping,
			Status:    StatusImported,
			Headers:   f.Summary.HeadersImported,
			Lines:     f.Summary.LinesImported,
			Skipped:   len(f.Summary.Skipped),
		}
		if f.Err != nil {
			e.Status = StatusFailed
			e.Error = f.Err.Error()
		}
		entries = append(entries, e)
	}
	return entries
}

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.Format(time.RFC3339)
	row[colRunID] = e.RunID
	row[colFile] = e.File
	row[colMapping] = e.Mapping
	row[colStatus] = e.Status
	row[colHeaders] = strconv.Itoa(e.Headers)
	row[colLines] = strconv.Itoa(e.Lines)
	row[colSkipped] = strconv.Itoa(e.Skipped)
	row[colError] = e.Error
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
	counts := make([]int, 3)
	for i, col := range []int{colHeaders, colLines, colSkipped} {
		if counts[i], err = strconv.Atoi(record[col]); err != nil {
			return Entry{}, fmt.Errorf("parsing count %q: %w", record[col], err)
		}
	}

	return Entry{
		Timestamp: ts,
		RunID:     record[colRunID],
		File:      record[colFile],
		Mapping:   record[colMapping],
		Status:    record[colStatus],
		Headers:   counts[0],
		Lines:     counts[1],
		Skipped:   counts[2],
		Error:     record[colError],
	}, nil
}

// Append writes entries to the log at path, creating the file, its
// directory and the header if needed.
func Append(path string, entries []Entry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating run log dir: %w", err)
	}

	needsHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening run log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
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
	cw.Flush()
	return cw.Error()
}

// Read returns all entries of the log at path, or nil when it does not
// exist.
func Read(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening run log: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading run log CSV: %w", err)
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
