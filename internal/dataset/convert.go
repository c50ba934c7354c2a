package dataset

// convert.go provides best-effort cell coercion for spreadsheet data.
//
// Source sheets are maintained by hand, so the converters tolerate the
// usual artifacts: mixed date formats, thousands separators, BOMs, Excel
// formula prefixes (="value"). All To* functions return a Null* value with
// Valid=false for empty or unparsable input; unparsable numeric and date
// cells become explicit NULLs in the staged tables while text cells keep
// their raw value.

import (
	"database/sql"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the canonical storage form for date columns.
const DateLayout = "2006-01-02"

var dateLayouts = []string{
	"2006-01-02", "2006/01/02", "2006.01.02",
	"2/1/2006", "02/01/2006", "2-1-2006", "02-01-2006",
	"2.1.2006", "02.01.2006",
	"20060102",
	"2006-01-02 15:04:05", "2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
}

// CleanCell strips the junk a cell may carry before any parsing: BOM,
// non-breaking spaces, surrounding whitespace and the Excel ="..." wrapper.
func CleanCell(s string) string {
	s = strings.TrimPrefix(s, "\uFEFF")
	s = strings.ReplaceAll(s, " ", " ")
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`) && len(s) > 3 {
		s = s[2 : len(s)-1]
	}
	return strings.TrimSpace(s)
}

// ToText converts a cell to a nullable string. Whitespace-only cells
// become NULL.
func ToText(s string) sql.NullString {
	s = CleanCell(s)
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// ToInt converts a cell to a nullable integer. Spreadsheets frequently
// render integers as "42.0", so a float that is exactly integral is
// accepted too.
func ToInt(s string) sql.NullInt64 {
	s = CleanCell(s)
	if s == "" {
		return sql.NullInt64{}
	}
	s = strings.ReplaceAll(s, ",", "")
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return sql.NullInt64{Int64: n, Valid: true}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int64(f)) {
		return sql.NullInt64{Int64: int64(f), Valid: true}
	}
	return sql.NullInt64{}
}

// ToFloat converts a cell to a nullable float, tolerating thousands
// separators.
func ToFloat(s string) sql.NullFloat64 {
	s = CleanCell(s)
	if s == "" {
		return sql.NullFloat64{}
	}
	s = strings.ReplaceAll(s, ",", "")
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return sql.NullFloat64{Float64: f, Valid: true}
	}
	return sql.NullFloat64{}
}

// ToDate parses a cell into the canonical YYYY-MM-DD form. Day-first
// layouts are tried because the source sheets are es-CO.
func ToDate(s string) sql.NullString {
	s = CleanCell(s)
	if s == "" {
		return sql.NullString{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return sql.NullString{String: t.Format(DateLayout), Valid: true}
		}
	}
	// Excel serial date numbers show up when a workbook column loses its
	// format. 25569 is the serial for 1970-01-01.
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 20000 && serial < 80000 {
		t := time.Unix(int64((serial-25569)*86400), 0).UTC()
		return sql.NullString{String: t.Format(DateLayout), Valid: true}
	}
	return sql.NullString{}
}
