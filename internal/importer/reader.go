package importer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cleared-dev/invoicemap/internal/model"
)

// Reader converts an input file into a header row plus data rows.
type Reader interface {
	Read(r io.Reader) (*model.Table, error)
	Format() string
}

// ReaderOptions configures the built-in readers.
type ReaderOptions struct {
	Delimiter rune   // CSV delimiter, ',' when zero
	Encoding  string // CSV encoding: utf-8 (default), windows-1252 or latin-1
	Sheet     string // xlsx sheet, first sheet when empty
}

// Registry holds named readers.
type Registry struct {
	readers map[string]Reader
}

// NewRegistry creates an empty reader registry.
func NewRegistry() *Registry {
	return &Registry{readers: make(map[string]Reader)}
}

// Register adds a reader. Panics on duplicate format.
func (r *Registry) Register(rd Reader) {
	key := strings.ToLower(rd.Format())
	if _, ok := r.readers[key]; ok {
		panic("duplicate reader format: " + key)
	}
	r.readers[key] = rd
}

// Get returns the reader for format, or nil.
func (r *Registry) Get(format string) Reader {
	return r.readers[strings.ToLower(format)]
}

// DefaultRegistry returns a registry with the csv and xlsx readers.
func DefaultRegistry(opts ReaderOptions) *Registry {
	r := NewRegistry()
	r.Register(&CSVReader{Delimiter: opts.Delimiter, Encoding: opts.Encoding})
	r.Register(&XLSXReader{Sheet: opts.Sheet})
	return r
}

// formatByExt maps file extensions onto reader formats.
var formatByExt = map[string]string{
	".csv":  "csv",
	".txt":  "csv",
	".xlsx": "xlsx",
}

// ReaderFor picks the reader for path by its extension.
func (r *Registry) ReaderFor(path string) (Reader, error) {
	ext := strings.ToLower(filepath.Ext(path))
	rd := r.Get(formatByExt[ext])
	if rd == nil {
		return nil, fmt.Errorf("no reader for %s files", ext)
	}
	return rd, nil
}

// ReadFile opens and reads path with the matching reader.
func (r *Registry) ReadFile(path string) (*model.Table, error) {
	rd, err := r.ReaderFor(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	t, err := rd.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	return t, nil
}

// ErrDuplicateHeader is returned when two columns share a header name.
var ErrDuplicateHeader = errors.New("duplicate column header")

// newTable builds a Table from a header record and data records. Header
// names are trimmed and must be unique; columns with a blank header carry
// no values. Short records are padded with empty cells and extra cells are
// ignored. lines holds the source line of each record.
func newTable(header []string, records [][]string, lines []int) (*model.Table, error) {
	t := &model.Table{Headers: make([]string, len(header))}
	seen := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h != "" {
			if prev, ok := seen[h]; ok {
				return nil, fmt.Errorf("%w: %q in columns %d and %d", ErrDuplicateHeader, h, prev+1, i+1)
			}
			seen[h] = i
		}
		t.Headers[i] = h
	}
	t.Rows = make([]model.Row, 0, len(records))
	for i, rec := range records {
		vals := make(map[string]string, len(t.Headers))
		for j, h := range t.Headers {
			if h == "" {
				continue
			}
			if j < len(rec) {
				vals[h] = rec[j]
			} else {
				vals[h] = ""
			}
		}
		t.Rows = append(t.Rows, model.Row{Number: lines[i], Values: vals})
	}
	return t, nil
}
