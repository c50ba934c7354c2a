package dataset

// decode.go turns uploaded workbook bytes into rectangular tables.
// Spreadsheet parsing itself is excelize's job; this file only picks the
// sheet and header row, pads ragged rows, and canonicalizes headers.

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// Workbook wraps an open xlsx file so the workbook ingestion path can
// extract several sheets from one upload.
type Workbook struct {
	f *excelize.File
}

// OpenWorkbook parses workbook bytes. The caller must Close it.
func OpenWorkbook(b []byte) (*Workbook, error) {
	f, err := excelize.OpenReader(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	return &Workbook{f: f}, nil
}

// Close releases the workbook.
func (w *Workbook) Close() error { return w.f.Close() }

// Sheets lists the sheet names in workbook order.
func (w *Workbook) Sheets() []string { return w.f.GetSheetList() }

// Table extracts one sheet as a Table. headerRow is 1-based; rows above it
// are discarded. Headers are canonicalized (slug + alias) and ragged data
// rows are padded to the header width.
func (w *Workbook) Table(sheet string, headerRow int) (*Table, error) {
	rows, err := w.f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if headerRow < 1 {
		headerRow = 1
	}
	if len(rows) < headerRow {
		return nil, fmt.Errorf("sheet %q: no header row %d", sheet, headerRow)
	}

	header := rows[headerRow-1]
	t := &Table{Columns: append([]string(nil), header...)}
	for _, r := range rows[headerRow:] {
		padded := make([]string, len(t.Columns))
		for i := range padded {
			if i < len(r) {
				padded[i] = r[i]
			}
		}
		t.Rows = append(t.Rows, padded)
	}
	CanonicalizeHeaders(t)
	return t, nil
}

// DecodeModule decodes a single-module upload: the first sheet of the
// file, header on row 1. A parse failure is fatal to the whole staging
// attempt, wrapped as a DecodeError naming the module.
func DecodeModule(m Module, raw []byte) (*Table, error) {
	wb, err := OpenWorkbook(raw)
	if err != nil {
		return nil, &DecodeError{Module: m, Err: err}
	}
	defer wb.Close()

	sheets := wb.Sheets()
	if len(sheets) == 0 {
		return nil, &DecodeError{Module: m, Err: errors.New("workbook has no sheets")}
	}
	t, err := wb.Table(sheets[0], 1)
	if err != nil {
		return nil, &DecodeError{Module: m, Sheet: sheets[0], Err: err}
	}
	return t, nil
}
