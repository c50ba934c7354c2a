package dataset

// stage.go builds a new dataset version in a directory that is not yet
// reachable as current. The staged version is self-contained: base tables,
// derived rollups, manifest and quality report all live under
// staging/<version>/ until the publisher promotes it.
//
// Modules absent from the upload are carried over by copying their base
// tables from the outgoing current version, so every published version is
// complete on its own. Rollups are always recomputed from the freshly
// staged base tables, never copied.

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
)

// StagedVersion describes a fully written staging directory, ready for
// promotion.
type StagedVersion struct {
	Version  string
	Dir      string
	Modules  []Module          // modules freshly ingested in this attempt
	Reports  map[Module]Report // validation reports per ingested module
	RowCount map[Module]int
}

// TotalFailures counts report entries across all modules.
func (s *StagedVersion) TotalFailures() int {
	n := 0
	for _, r := range s.Reports {
		n += len(r)
	}
	return n
}

// Stage validates the decoded tables and writes them into a fresh version
// directory under the layout's staging root. On error the partially
// written directory is left behind for inspection and never promoted.
func Stage(ctx context.Context, layout Layout, version string, tables map[Module]*Table) (*StagedVersion, error) {
	dir := layout.Staging(version)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}

	db, err := OpenWrite(dir + "/" + DatabaseFile)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	staged := &StagedVersion{
		Version:  version,
		Dir:      dir,
		Reports:  make(map[Module]Report),
		RowCount: make(map[Module]int),
	}

	// Deterministic module order keeps logs and reports stable.
	mods := make([]Module, 0, len(tables))
	for m := range tables {
		mods = append(mods, m)
	}
	sort.Slice(mods, func(i, j int) bool { return mods[i] < mods[j] })

	for _, m := range mods {
		t := tables[m]
		staged.Reports[m] = Validate(m, t)
		if err := writeModuleTable(ctx, db, m, t); err != nil {
			return nil, fmt.Errorf("stage %s: %w", m, err)
		}
		staged.Modules = append(staged.Modules, m)
		staged.RowCount[m] = len(t.Rows)
	}

	carried, err := carryOverModules(ctx, db, layout, mods)
	if err != nil {
		return nil, err
	}

	allModules := append(append([]Module(nil), staged.Modules...), carried...)
	sort.Slice(allModules, func(i, j int) bool { return allModules[i] < allModules[j] })

	if err := BuildRollups(ctx, db, allModules); err != nil {
		return nil, fmt.Errorf("build rollups: %w", err)
	}

	if err := WriteQualityReport(staged); err != nil {
		return nil, fmt.Errorf("write quality report: %w", err)
	}

	meta := Meta{
		Version:   version,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Modules:   allModules,
	}
	if err := WriteMeta(dir, meta); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}
	return staged, nil
}

// writeModuleTable creates the module's base table and bulk-inserts the
// coerced rows inside one transaction.
func writeModuleTable(ctx context.Context, db *sql.DB, m Module, t *Table) error {
	if len(t.Columns) == 0 {
		return fmt.Errorf("table has no columns")
	}
	specs := ModuleSchema(m)

	defs := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		defs[i] = quoteIdent(c) + " " + columnType(specs, c)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	name := quoteIdent(m.BaseTable())
	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+name); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "CREATE TABLE "+name+" ("+strings.Join(defs, ", ")+")"); err != nil {
		return err
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(t.Columns)), ",")
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO "+name+" VALUES ("+placeholders+")")
	if err != nil {
		return err
	}
	defer stmt.Close()

	args := make([]any, len(t.Columns))
	for row := range t.Rows {
		for col, cname := range t.Columns {
			args[col] = coerceCell(specs, cname, t.Cell(row, col))
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("row %d: %w", row, err)
		}
	}
	return tx.Commit()
}

// coerceCell converts one cell to its storage value. Failed numeric and
// date parses become NULL; text keeps its raw (trimmed) value even when a
// categorical check failed, because validation is soft.
func coerceCell(specs []FieldSpec, column, raw string) any {
	spec, declared := specFor(specs, column)
	if declared {
		switch spec.Type {
		case FieldInt:
			return ToInt(raw)
		case FieldDate:
			return ToDate(raw)
		}
	}
	if !declared && IsDateColumn(column) {
		return ToDate(raw)
	}
	if !declared && !IsTextColumn(column) {
		// Undeclared columns keep whatever numeric shape they have.
		if n := ToInt(raw); n.Valid {
			return n
		}
		if f := ToFloat(raw); f.Valid {
			return f
		}
	}
	return ToText(raw)
}

// columnType picks the SQLite column affinity for a declared column.
func columnType(specs []FieldSpec, column string) string {
	if spec, ok := specFor(specs, column); ok && spec.Type == FieldInt {
		return "INTEGER"
	}
	return "TEXT"
}

// carryOverModules copies the base tables of modules that were not part of
// this upload from the current version, so the staged version stays
// complete. Returns the carried module names.
func carryOverModules(ctx context.Context, db *sql.DB, layout Layout, fresh []Module) ([]Module, error) {
	currentMeta, err := ReadMeta(layout.Current())
	if err != nil {
		return nil, err
	}
	if currentMeta.Version == "" {
		return nil, nil
	}

	isFresh := make(map[Module]bool, len(fresh))
	for _, m := range fresh {
		isFresh[m] = true
	}

	var carried []Module
	attached := false
	for _, m := range currentMeta.Modules {
		if isFresh[m] {
			continue
		}
		if !attached {
			if _, err := db.ExecContext(ctx,
				"ATTACH DATABASE 'file:"+layout.CurrentDB()+"?mode=ro' AS prev"); err != nil {
				return nil, fmt.Errorf("attach current version: %w", err)
			}
			attached = true
		}
		name := quoteIdent(m.BaseTable())
		if _, err := db.ExecContext(ctx,
			"CREATE TABLE "+name+" AS SELECT * FROM prev."+name); err != nil {
			return nil, fmt.Errorf("carry over %s: %w", m, err)
		}
		carried = append(carried, m)
	}
	if attached {
		if _, err := db.ExecContext(ctx, "DETACH DATABASE prev"); err != nil {
			return nil, fmt.Errorf("detach current version: %w", err)
		}
	}
	return carried, nil
}

// quoteIdent quotes an identifier for SQLite. Identifiers here come from
// slugified headers and fixed table names, never raw user input.
func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
