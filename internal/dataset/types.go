// Package dataset implements the versioned publishing pipeline for the
// municipal rural-economy registry: spreadsheet ingestion, schema
// validation, staging into per-version SQLite files, atomic promotion of a
// staged version to "current", and the normalized query layer that serves
// the published data.
package dataset

import (
	"errors"
	"fmt"
)

// Module identifies one of the fixed dataset modules. Each module maps to
// exactly one base table in a published version.
type Module string

const (
	ModuleRuea             Module = "ruea"
	ModuleIndicadores      Module = "indicadores"
	ModuleComercializacion Module = "comercializacion"
	ModuleNodos            Module = "nodos"
)

// AllModules lists every known module in a stable order.
var AllModules = []Module{ModuleRuea, ModuleIndicadores, ModuleComercializacion, ModuleNodos}

// ParseModule validates a module name from user input.
func ParseModule(s string) (Module, error) {
	for _, m := range AllModules {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown module %q", s)
}

// BaseTable returns the SQLite table name holding the module's rows.
func (m Module) BaseTable() string {
	return "base_" + string(m)
}

// Table is a rectangular block of cells decoded from a spreadsheet.
// Cells are kept as strings; typed coercion happens per column during
// staging and never rewrites the raw text columns.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Cell returns the value at (row, col), or "" when the row is ragged.
func (t *Table) Cell(row, col int) string {
	if col >= len(t.Rows[row]) {
		return ""
	}
	return t.Rows[row][col]
}

// ColumnIndex maps column names to their position, or -1 when absent.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// FieldType is the declared storage type for a column.
type FieldType int

const (
	FieldText FieldType = iota
	FieldEnum
	FieldInt
	FieldDate
)

// FieldSpec declares the validation rules for a single column.
// Violations are reported, never rejected: the pipeline publishes
// best-effort coerced data alongside the report.
type FieldSpec struct {
	Name       string
	Type       FieldType
	Required   bool     // column must exist in the decoded table
	EnumValues []string // closed set for FieldEnum ("" entries allowed)
	Min, Max   int64    // inclusive range for FieldInt when Ranged
	Ranged     bool
}

// ReportEntry is one validation failure: which column, which rule, the
// offending value and the zero-based data row it came from.
type ReportEntry struct {
	Column string `json:"column"`
	Check  string `json:"check"`
	Value  string `json:"value"`
	Row    int    `json:"row"`
}

// Report is the ordered sequence of validation failures for one module in
// one staging attempt. An empty report means a clean publish; a non-empty
// one is persisted with the version for audit and, by default, does not
// block promotion.
type Report []ReportEntry

// ErrRefreshInProgress signals that a second refresh was attempted while
// one is already staging or promoting. The caller must retry later; the
// pipeline never queues refreshes behind each other.
var ErrRefreshInProgress = errors.New("a refresh is already in progress")

// ErrValidationFailed is returned in strict mode when a staging attempt
// produced a non-empty validation report.
var ErrValidationFailed = errors.New("validation report is not empty")

// DecodeError is fatal to a staging attempt: the uploaded bytes could not
// be parsed, or the requested sheet does not exist in the workbook.
type DecodeError struct {
	Module Module
	Sheet  string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Sheet != "" {
		return fmt.Sprintf("decode %s: sheet %q: %v", e.Module, e.Sheet, e.Err)
	}
	return fmt.Sprintf("decode %s: %v", e.Module, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
