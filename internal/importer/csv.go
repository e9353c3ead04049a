package importer

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"github.com/cleared-dev/invoicemap/internal/model"
)

// ErrNoHeader is returned for input files without a header row.
var ErrNoHeader = errors.New("file has no header row")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVReader reads delimited text exports.
type CSVReader struct {
	Delimiter rune
	Encoding  string
}

// Format returns the reader name.
func (c *CSVReader) Format() string { return "csv" }

// Read parses a CSV file whose first record is the header.
func (c *CSVReader) Read(r io.Reader) (*model.Table, error) {
	src, err := c.decode(r)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(src)
	if c.Delimiter != 0 {
		cr.Comma = c.Delimiter
	}
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	var records [][]string
	var lines []int
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV: %w", err)
		}
		line, _ := cr.FieldPos(0)
		records = append(records, rec)
		lines = append(lines, line)
	}
	return newTable(header, records, lines)
}

func (c *CSVReader) decode(r io.Reader) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(c.Encoding)) {
	case "", "utf-8", "utf8":
		br := bufio.NewReader(r)
		if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
			_, _ = br.Discard(len(utf8BOM))
		}
		return br, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder().Reader(r), nil
	case "latin-1", "latin1", "iso-8859-1":
		return charmap.ISO8859_1.NewDecoder().Reader(r), nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", c.Encoding)
	}
}
