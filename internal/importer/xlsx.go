package importer

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/cleared-dev/invoicemap/internal/model"
)

// XLSXReader reads one worksheet of an Excel workbook.
type XLSXReader struct {
	Sheet string
}

// Format returns the reader name.
func (x *XLSXReader) Format() string { return "xlsx" }

// Read parses the configured sheet (or the first one); its first row is
// the header. Cells come back as their formatted text.
func (x *XLSXReader) Read(r io.Reader) (*model.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	sheet := x.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, ErrNoHeader
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, ErrNoHeader
	}

	lines := make([]int, len(rows)-1)
	for i := range lines {
		lines[i] = i + 2
	}
	return newTable(rows[0], rows[1:], lines)
}
