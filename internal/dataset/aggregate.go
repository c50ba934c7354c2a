package dataset

// aggregate.go recomputes the derived rollup tables of a staged version.
// Rollups are always built from the base tables sitting in the same
// staging database, never from the outgoing current version; a promoted
// version therefore serves aggregates consistent with its own rows.

import (
	"context"
	"database/sql"
	"fmt"
)

// rollupStatements maps each module to the statements rebuilding its
// derived tables. Missing columns would make a statement fail, so each is
// guarded by the column checks in BuildRollups.
var rollupStatements = map[Module][]string{
	ModuleIndicadores: {
		`CREATE TABLE mv_indicadores AS
		 SELECT COALESCE(anio, 0) AS anio,
		        COALESCE(eje, '') AS eje,
		        SUM(COALESCE(valor, 0)) AS total,
		        AVG(COALESCE(cumplimiento, 0)) AS cumplimiento
		 FROM base_indicadores
		 GROUP BY 1, 2
		 ORDER BY 1, 2`,
	},
	ModuleComercializacion: {
		`CREATE TABLE mv_comercializacion AS
		 SELECT COALESCE(anio, 0) AS anio,
		        COALESCE(estrategia, '') AS estrategia,
		        SUM(COALESCE(monto, 0)) AS total,
		        COUNT(*) AS operaciones
		 FROM base_comercializacion
		 GROUP BY 1, 2
		 ORDER BY 1, 2`,
	},
	ModuleRuea: {
		`CREATE TABLE mv_ruea_corregimiento AS
		 SELECT norm_corregimiento(COALESCE(corregimiento, '')) AS corregimiento,
		        COUNT(*) AS total
		 FROM base_ruea
		 GROUP BY 1
		 ORDER BY 2 DESC`,
	},
}

// BuildRollups rebuilds the rollup tables for every module present in the
// staged database.
func BuildRollups(ctx context.Context, db *sql.DB, modules []Module) error {
	for _, m := range modules {
		stmts, ok := rollupStatements[m]
		if !ok {
			continue
		}
		cols, err := tableColumns(ctx, db, m.BaseTable())
		if err != nil {
			return err
		}
		if !hasRollupColumns(m, cols) {
			// A sparse upload without the rollup columns still publishes;
			// the rollup table is simply absent for this version.
			continue
		}
		for _, stmt := range stmts {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("rollup for %s: %w", m, err)
			}
		}
	}
	return nil
}

// hasRollupColumns checks the base table carries the columns its rollup
// groups by.
func hasRollupColumns(m Module, cols map[string]bool) bool {
	switch m {
	case ModuleIndicadores:
		return cols["anio"] && cols["eje"]
	case ModuleComercializacion:
		return cols["anio"] && cols["estrategia"]
	case ModuleRuea:
		return cols["corregimiento"]
	}
	return false
}

// tableColumns returns the column set of a table.
func tableColumns(ctx context.Context, db *sql.DB, table string) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		return nil, fmt.Errorf("table info %s: %w", table, err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		cols[name] = true
	}
	return cols, rows.Err()
}
