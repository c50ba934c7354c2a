package dataset

// query.go builds the normalized, parameterized queries served from the
// current version. Predicates are assembled from tagged filter kinds and
// bound parameters; the only text spliced into SQL is fixed column names
// validated against the live table, never user input.
//
// Geographic filters compare canonical forms on both sides: the parameter
// is normalized in-process and the column through the registered
// norm_* scalar functions, which run the same code (see store.go).

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/portal-alcaldia/ruea-api/internal/textnorm"
	"github.com/xuri/excelize/v2"
)

// RegistryFilters are the optional facet filters on the registry module.
// Empty fields are inactive.
type RegistryFilters struct {
	Corregimiento   string
	Vereda          string
	LineaProductiva string
	Escolaridad     string
	Sexo            string
}

// PageParams control ordering and pagination of a registry page.
type PageParams struct {
	OrderBy string
	Desc    bool
	Limit   int
	Offset  int
	Fields  []string // campos projection; unknown names are dropped
}

// DefaultPageLimit caps pages when the client sends nothing.
const DefaultPageLimit = 50

// MaxPageLimit is the hard ceiling for one page.
const MaxPageLimit = 1000

// filterKind tags how a filter predicate is built.
type filterKind int

const (
	filterGeo   filterKind = iota // canonical equality or substring
	filterLabel                   // case-insensitive substring on raw text
)

// registryFacetFields enumerates the facetable registry fields in response
// order.
var registryFacetFields = []struct {
	name string
	kind filterKind
}{
	{"corregimiento", filterGeo},
	{"vereda", filterGeo},
	{"linea_productiva", filterLabel},
	{"escolaridad", filterLabel},
	{"sexo", filterLabel},
}

// value extracts the active filter value for one field.
func (f RegistryFilters) value(field string) string {
	switch field {
	case "corregimiento":
		return f.Corregimiento
	case "vereda":
		return f.Vereda
	case "linea_productiva":
		return f.LineaProductiva
	case "escolaridad":
		return f.Escolaridad
	case "sexo":
		return f.Sexo
	}
	return ""
}

// Queries serves reads against whatever version is currently published.
type Queries struct {
	store *Store
}

// NewQueries wires the read side to an injected store handle.
func NewQueries(store *Store) *Queries {
	return &Queries{store: store}
}

// whereRegistry builds the WHERE clause for the active filters, skipping
// the field named by exclude (used for facet self-exclusion).
func whereRegistry(f RegistryFilters, exclude string, cols map[string]bool) (string, []any) {
	var preds []string
	var args []any

	for _, field := range registryFacetFields {
		if field.name == exclude {
			continue
		}
		raw := f.value(field.name)
		if raw == "" || !cols[field.name] {
			continue
		}
		switch field.kind {
		case filterGeo:
			expr := NormExpr(field.name, quoteIdent(field.name))
			val := textnorm.Geo(field.name, raw)
			preds = append(preds, "("+expr+" = ? OR "+expr+" LIKE ?)")
			args = append(args, val, "%"+val+"%")
		case filterLabel:
			preds = append(preds, "LOWER(COALESCE("+quoteIdent(field.name)+",'')) LIKE ?")
			args = append(args, "%"+strings.ToLower(strings.TrimSpace(raw))+"%")
		}
	}
	if len(preds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(preds, " AND "), args
}

// orderClause resolves the sort expression. Geographic columns sort by
// canonical form with empty values last in both directions; any other
// known column sorts naturally with NULLs last; unknown columns fall back
// to documento, then to the first column.
func orderClause(p PageParams, cols []string) string {
	dir := "ASC"
	if p.Desc {
		dir = "DESC"
	}

	name := strings.ToLower(strings.TrimSpace(p.OrderBy))
	name = strings.TrimSuffix(name, "_norm")

	switch name {
	case "corregimiento", "vereda":
		expr := NormExpr(name, quoteIdent(name))
		return " ORDER BY CASE WHEN " + expr + " = '' THEN 1 ELSE 0 END, " + expr + " " + dir
	}

	col := ""
	for _, c := range cols {
		if c == name {
			col = c
			break
		}
	}
	if col == "" {
		for _, c := range cols {
			if c == "documento" {
				col = c
				break
			}
		}
	}
	if col == "" && len(cols) > 0 {
		col = cols[0]
	}
	if col == "" {
		return ""
	}
	return " ORDER BY " + quoteIdent(col) + " " + dir + " NULLS LAST"
}

// RegistryPage is one page of registry rows plus the filtered total.
type RegistryPage struct {
	Count int              `json:"count"`
	Items []map[string]any `json:"items"`
}

// Registry returns a filtered, sorted, paginated page of registry rows.
// With no published version it returns the empty page.
func (q *Queries) Registry(ctx context.Context, f RegistryFilters, p PageParams) (*RegistryPage, error) {
	db, meta, release, err := q.store.Reader(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	if db == nil || !meta.HasModule(ModuleRuea) {
		return &RegistryPage{Items: []map[string]any{}}, nil
	}

	cols, colSet, err := registryColumns(ctx, db)
	if err != nil {
		return nil, err
	}

	where, args := whereRegistry(f, "", colSet)

	var count int
	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM base_ruea"+where, args...).Scan(&count); err != nil {
		return nil, err
	}

	limit := p.Limit
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	offset := p.Offset
	if offset < 0 {
		offset = 0
	}

	sel := projectionList(p.Fields, cols)
	query := "SELECT " + sel + " FROM base_ruea" + where + orderClause(p, cols) + " LIMIT ? OFFSET ?"
	rows, err := db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanMaps(rows)
	if err != nil {
		return nil, err
	}
	return &RegistryPage{Count: count, Items: items}, nil
}

// Facets returns, per facetable field, the distinct canonical values
// present under the other active filters. Each field's candidate list is
// built excluding its own filter, so narrowing a facet never shrinks its
// own choices.
func (q *Queries) Facets(ctx context.Context, f RegistryFilters) (map[string][]string, error) {
	out := make(map[string][]string, len(registryFacetFields))
	for _, field := range registryFacetFields {
		out[field.name] = []string{}
	}

	db, meta, release, err := q.store.Reader(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	if db == nil || !meta.HasModule(ModuleRuea) {
		return out, nil
	}

	_, colSet, err := registryColumns(ctx, db)
	if err != nil {
		return nil, err
	}

	for _, field := range registryFacetFields {
		if !colSet[field.name] {
			continue
		}
		var expr string
		switch field.kind {
		case filterGeo:
			expr = NormExpr(field.name, quoteIdent(field.name))
		default:
			expr = "LOWER(TRIM(" + quoteIdent(field.name) + "))"
		}
		where, args := whereRegistry(f, field.name, colSet)
		cond := "COALESCE(" + quoteIdent(field.name) + ",'') <> ''"
		if where == "" {
			where = " WHERE " + cond
		} else {
			where += " AND " + cond
		}

		rows, err := db.QueryContext(ctx,
			"SELECT DISTINCT "+expr+" FROM base_ruea"+where+" ORDER BY 1", args...)
		if err != nil {
			return nil, err
		}
		values := []string{}
		for rows.Next() {
			var v string
			if err := rows.Scan(&v); err != nil {
				rows.Close()
				return nil, err
			}
			values = append(values, v)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
		out[field.name] = values
	}
	return out, nil
}

// StatsBucket is one grouped count.
type StatsBucket struct {
	Name  string `json:"name"`
	Total int    `json:"total"`
}

// Stats groups the filtered registry rows by one facetable field and
// counts them, descending. top truncates the list when positive.
func (q *Queries) Stats(ctx context.Context, f RegistryFilters, by string, top int) ([]StatsBucket, error) {
	db, meta, release, err := q.store.Reader(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	if db == nil || !meta.HasModule(ModuleRuea) {
		return []StatsBucket{}, nil
	}

	_, colSet, err := registryColumns(ctx, db)
	if err != nil {
		return nil, err
	}

	by = strings.ToLower(strings.TrimSpace(by))
	kind := filterLabel
	known := false
	for _, field := range registryFacetFields {
		if field.name == by {
			kind = field.kind
			known = true
			break
		}
	}
	if !known || !colSet[by] {
		by = "corregimiento"
		kind = filterGeo
		if !colSet[by] {
			return []StatsBucket{}, nil
		}
	}

	var expr string
	if kind == filterGeo {
		expr = NormExpr(by, quoteIdent(by))
	} else {
		expr = "LOWER(TRIM(COALESCE(" + quoteIdent(by) + ",'')))"
	}

	where, args := whereRegistry(f, "", colSet)
	query := "SELECT " + expr + " AS nombre, COUNT(*) AS total FROM base_ruea" + where +
		" GROUP BY 1 ORDER BY 2 DESC, 1 ASC"
	if top > 0 {
		query += " LIMIT ?"
		args = append(args, top)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	buckets := []StatsBucket{}
	for rows.Next() {
		var b StatsBucket
		if err := rows.Scan(&b.Name, &b.Total); err != nil {
			return nil, err
		}
		buckets = append(buckets, b)
	}
	return buckets, rows.Err()
}

// Summary is the dashboard header block: filtered total plus the top five
// districts and villages.
type Summary struct {
	Total            int           `json:"total"`
	TopCorregimiento []StatsBucket `json:"top_corregimiento"`
	TopVereda        []StatsBucket `json:"top_vereda"`
}

// RegistrySummary computes the filtered total and top-5 geographic
// breakdowns in one call.
func (q *Queries) RegistrySummary(ctx context.Context, f RegistryFilters) (*Summary, error) {
	page, err := q.Registry(ctx, f, PageParams{Limit: 1})
	if err != nil {
		return nil, err
	}
	topCorr, err := q.Stats(ctx, f, "corregimiento", 5)
	if err != nil {
		return nil, err
	}
	topVer, err := q.Stats(ctx, f, "vereda", 5)
	if err != nil {
		return nil, err
	}
	return &Summary{Total: page.Count, TopCorregimiento: topCorr, TopVereda: topVer}, nil
}

// YearFilter is an optional exact match used by the rollup endpoints.
type YearFilter struct {
	Anio  *int
	Label string // eje or estrategia, exact match
}

// Indicadores reads the indicator rollup, optionally filtered by year and
// axis. Missing rollup table (module never published) yields empty rows.
func (q *Queries) Indicadores(ctx context.Context, f YearFilter) ([]map[string]any, error) {
	return q.rollup(ctx, "mv_indicadores", "eje", f)
}

// Comercializacion reads the commercialization rollup, optionally filtered
// by year and strategy.
func (q *Queries) Comercializacion(ctx context.Context, f YearFilter) ([]map[string]any, error) {
	return q.rollup(ctx, "mv_comercializacion", "estrategia", f)
}

func (q *Queries) rollup(ctx context.Context, table, labelCol string, f YearFilter) ([]map[string]any, error) {
	db, _, release, err := q.store.Reader(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	if db == nil {
		return []map[string]any{}, nil
	}
	if ok, err := tableExists(ctx, db, table); err != nil || !ok {
		return []map[string]any{}, err
	}

	var preds []string
	var args []any
	if f.Anio != nil {
		preds = append(preds, "anio = ?")
		args = append(args, *f.Anio)
	}
	if f.Label != "" {
		preds = append(preds, quoteIdent(labelCol)+" = ?")
		args = append(args, f.Label)
	}
	query := "SELECT * FROM " + quoteIdent(table)
	if len(preds) > 0 {
		query += " WHERE " + strings.Join(preds, " AND ")
	}
	query += " ORDER BY anio, " + quoteIdent(labelCol)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMaps(rows)
}

// Export streams the full filtered registry (no pagination) through fn,
// which receives the projected header and a row iterator.
func (q *Queries) export(ctx context.Context, f RegistryFilters, fields []string, fn func(header []string, next func() ([]string, error)) error) error {
	db, meta, release, err := q.store.Reader(ctx)
	if err != nil {
		return err
	}
	defer release()
	if db == nil || !meta.HasModule(ModuleRuea) {
		return fn([]string{}, func() ([]string, error) { return nil, io.EOF })
	}

	cols, colSet, err := registryColumns(ctx, db)
	if err != nil {
		return err
	}
	where, args := whereRegistry(f, "", colSet)

	sel := projectionList(fields, cols)
	rows, err := db.QueryContext(ctx, "SELECT "+sel+" FROM base_ruea"+where+" ORDER BY 1", args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	header, err := rows.Columns()
	if err != nil {
		return err
	}

	vals := make([]any, len(header))
	ptrs := make([]any, len(header))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	next := func() ([]string, error) {
		if !rows.Next() {
			if err := rows.Err(); err != nil {
				return nil, err
			}
			return nil, io.EOF
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		out := make([]string, len(vals))
		for i, v := range vals {
			out[i] = cellString(v)
		}
		return out, nil
	}
	return fn(header, next)
}

// ExportCSV writes the filtered registry as CSV.
func (q *Queries) ExportCSV(ctx context.Context, w io.Writer, f RegistryFilters, fields []string) error {
	return q.export(ctx, f, fields, func(header []string, next func() ([]string, error)) error {
		cw := csv.NewWriter(w)
		if len(header) > 0 {
			if err := cw.Write(header); err != nil {
				return err
			}
		}
		for {
			row, err := next()
			if err == io.EOF {
				break
			}
			if err != nil {
				return err
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
}

// ExportXLSX writes the filtered registry as a single-sheet workbook.
func (q *Queries) ExportXLSX(ctx context.Context, w io.Writer, f RegistryFilters, fields []string) error {
	return q.export(ctx, f, fields, func(header []string, next func() ([]string, error)) error {
		wb := excelize.NewFile()
		defer wb.Close()

		const sheet = "ruea"
		if err := wb.SetSheetName("Sheet1", sheet); err != nil {
			return err
		}
		rowNum := 1
		writeRow := func(cells []string) error {
			ref, err := excelize.CoordinatesToCellName(1, rowNum)
			if err != nil {
				return err
			}
			vals := make([]any, len(cells))
			for i, c := range cells {
				vals[i] = c
			}
			rowNum++
			return wb.SetSheetRow(sheet, ref, &vals)
		}

		if len(header) > 0 {
			if err := writeRow(header); err != nil {
				return err
			}
		}
		for {
			row, err := next()
			if err == io.EOF {
				break
			}
			if err != nil {
				return err
			}
			if err := writeRow(row); err != nil {
				return err
			}
		}
		return wb.Write(w)
	})
}

// registryColumns returns the registry table's columns in declaration
// order plus a membership set.
func registryColumns(ctx context.Context, db *sql.DB) ([]string, map[string]bool, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT name FROM pragma_table_info('base_ruea') ORDER BY cid")
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var cols []string
	set := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, nil, err
		}
		cols = append(cols, name)
		set[name] = true
	}
	return cols, set, rows.Err()
}

// projectionList resolves the campos projection: requested fields not in
// the table are silently dropped; an empty result selects everything.
func projectionList(fields, cols []string) string {
	if len(fields) == 0 {
		return "*"
	}
	colSet := make(map[string]bool, len(cols))
	for _, c := range cols {
		colSet[c] = true
	}
	var keep []string
	for _, f := range fields {
		f = strings.ToLower(strings.TrimSpace(f))
		if colSet[f] {
			keep = append(keep, quoteIdent(f))
		}
	}
	if len(keep) == 0 {
		return "*"
	}
	return strings.Join(keep, ", ")
}

func tableExists(ctx context.Context, db *sql.DB, name string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type IN ('table','view') AND name = ?", name).Scan(&n)
	return n > 0, err
}

// scanMaps reads all rows into name->value maps with driver bytes decoded
// to strings.
func scanMaps(rows *sql.Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	items := []map[string]any{}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		item := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				item[c] = string(b)
			} else {
				item[c] = vals[i]
			}
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// cellString renders a scanned value for export.
func cellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(t)
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}
