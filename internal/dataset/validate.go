package dataset

// validate.go checks a decoded table against its module schema and
// collects per-cell failures into an ordered Report.
//
// Validation is deliberately soft: a failing cell produces a report entry
// but never removes the row, and by default a non-empty report does not
// block promotion. Text cells keep their raw value even when a categorical
// check fails; numeric and date cells that cannot be parsed are the only
// ones rewritten, and only to an explicit NULL at staging time.

import "strconv"

// Validate checks every cell of t against the module's declared schema and
// returns the failures in row-major order. The table itself is not
// modified; coercion happens in the staging writer using the same
// converters the checks use, so a cell that validates here stages cleanly.
func Validate(m Module, t *Table) Report {
	specs := ModuleSchema(m)
	var report Report

	for _, spec := range specs {
		if spec.Required && t.ColumnIndex(spec.Name) < 0 {
			report = append(report, ReportEntry{
				Column: spec.Name,
				Check:  "column_required",
				Row:    -1,
			})
		}
	}

	for row := range t.Rows {
		for col, name := range t.Columns {
			spec, ok := specFor(specs, name)
			if !ok {
				continue // undeclared columns pass through
			}
			raw := CleanCell(t.Cell(row, col))
			if entry, bad := checkCell(raw, spec); bad {
				entry.Row = row
				report = append(report, entry)
			}
		}
	}
	return report
}

// checkCell applies one spec to one cleaned cell value.
func checkCell(raw string, spec FieldSpec) (ReportEntry, bool) {
	switch spec.Type {
	case FieldEnum:
		// Exact membership: "f" is reported, the sheets are expected to
		// carry the closed set verbatim.
		for _, v := range spec.EnumValues {
			if raw == v {
				return ReportEntry{}, false
			}
		}
		return ReportEntry{Column: spec.Name, Check: "isin", Value: raw}, true

	case FieldInt:
		if raw == "" {
			return ReportEntry{}, false
		}
		n := ToInt(raw)
		if !n.Valid {
			return ReportEntry{Column: spec.Name, Check: "integer", Value: raw}, true
		}
		if spec.Ranged && (n.Int64 < spec.Min || n.Int64 > spec.Max) {
			return ReportEntry{
				Column: spec.Name,
				Check:  "in_range(" + strconv.FormatInt(spec.Min, 10) + "," + strconv.FormatInt(spec.Max, 10) + ")",
				Value:  raw,
			}, true
		}
		return ReportEntry{}, false

	case FieldDate:
		if raw == "" {
			return ReportEntry{}, false
		}
		if !ToDate(raw).Valid {
			return ReportEntry{Column: spec.Name, Check: "date", Value: raw}, true
		}
		return ReportEntry{}, false

	case FieldText:
		if spec.Required && raw == "" {
			return ReportEntry{Column: spec.Name, Check: "not_null", Value: raw}, true
		}
		return ReportEntry{}, false
	}
	return ReportEntry{}, false
}
