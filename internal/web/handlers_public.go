package web

// handlers_public.go serves the read API. Malformed query input falls back
// to safe defaults instead of failing the request; an empty catalog (no
// version ever published) yields well-typed empty results.

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/portal-alcaldia/ruea-api/internal/dataset"
)

// handleMeta reports which dataset version is currently live.
func (s *Server) handleMeta(w http.ResponseWriter, r *http.Request) {
	defer s.observe("meta", time.Now())

	meta, err := s.service.CurrentMeta()
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if setCacheHeaders(w, r, "meta:"+meta.Version) {
		return
	}
	respondJSON(w, http.StatusOK, meta)
}

// handleIndicadores serves the indicator rollup.
func (s *Server) handleIndicadores(w http.ResponseWriter, r *http.Request) {
	defer s.observe("indicadores", time.Now())

	f := dataset.YearFilter{Label: r.URL.Query().Get("eje")}
	if v := r.URL.Query().Get("anio"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			f.Anio = &n
		}
	}

	rows, err := s.service.Queries().Indicadores(r.Context(), f)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if setCacheHeaders(w, r, fmt.Sprintf("indicadores:%s:%d", r.URL.RawQuery, len(rows))) {
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

// handleComercializacion serves the commercialization rollup.
func (s *Server) handleComercializacion(w http.ResponseWriter, r *http.Request) {
	defer s.observe("comercializacion", time.Now())

	f := dataset.YearFilter{Label: r.URL.Query().Get("estrategia")}
	if v := r.URL.Query().Get("anio"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			f.Anio = &n
		}
	}

	rows, err := s.service.Queries().Comercializacion(r.Context(), f)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if setCacheHeaders(w, r, fmt.Sprintf("comercializacion:%s:%d", r.URL.RawQuery, len(rows))) {
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

// registryFilters extracts the facet filters shared by the registry
// endpoints.
func registryFilters(r *http.Request) dataset.RegistryFilters {
	q := r.URL.Query()
	return dataset.RegistryFilters{
		Corregimiento:   q.Get("corregimiento"),
		Vereda:          q.Get("vereda"),
		LineaProductiva: q.Get("linea_productiva"),
		Escolaridad:     q.Get("escolaridad"),
		Sexo:            q.Get("sexo"),
	}
}

// fieldsParam parses the campos projection list.
func fieldsParam(r *http.Request) []string {
	raw := r.URL.Query().Get("campos")
	if raw == "" {
		return nil
	}
	var fields []string
	for _, f := range strings.Split(raw, ",") {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

// handleRegistry serves a filtered, sorted, paginated registry page.
func (s *Server) handleRegistry(w http.ResponseWriter, r *http.Request) {
	defer s.observe("ruea", time.Now())
	q := r.URL.Query()

	page := dataset.PageParams{
		OrderBy: q.Get("order_by"),
		Desc:    strings.EqualFold(q.Get("order_dir"), "desc"),
		Fields:  fieldsParam(r),
	}
	if n, err := strconv.Atoi(q.Get("limit")); err == nil {
		page.Limit = n
	}
	if n, err := strconv.Atoi(q.Get("offset")); err == nil {
		page.Offset = n
	}

	result, err := s.service.Queries().Registry(r.Context(), registryFilters(r), page)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if setCacheHeaders(w, r, fmt.Sprintf("ruea:%s:%d", r.URL.RawQuery, result.Count)) {
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// handleFacets serves the distinct canonical values per facet field under
// the other active filters.
func (s *Server) handleFacets(w http.ResponseWriter, r *http.Request) {
	defer s.observe("facetas", time.Now())

	facets, err := s.service.Queries().Facets(r.Context(), registryFilters(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if setCacheHeaders(w, r, fmt.Sprintf("facetas:%s:%d", r.URL.RawQuery, len(facets))) {
		return
	}
	respondJSON(w, http.StatusOK, facets)
}

// handleStats serves grouped counts by one chosen field.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	defer s.observe("stats", time.Now())
	q := r.URL.Query()

	top := 0
	if n, err := strconv.Atoi(q.Get("top")); err == nil && n > 0 {
		top = n
	}

	buckets, err := s.service.Queries().Stats(r.Context(), registryFilters(r), q.Get("by"), top)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if setCacheHeaders(w, r, fmt.Sprintf("stats:%s:%d", r.URL.RawQuery, len(buckets))) {
		return
	}
	respondJSON(w, http.StatusOK, buckets)
}

// handleSummary serves the dashboard totals block.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	defer s.observe("summary", time.Now())

	summary, err := s.service.Queries().RegistrySummary(r.Context(), registryFilters(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if setCacheHeaders(w, r, fmt.Sprintf("summary:%s:%d", r.URL.RawQuery, summary.Total)) {
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// handleExportCSV streams the filtered registry as CSV.
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	defer s.observe("export_csv", time.Now())

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="ruea.csv"`)
	if err := s.service.Queries().ExportCSV(r.Context(), w, registryFilters(r), fieldsParam(r)); err != nil {
		// Headers are gone; all that is left is logging the failure.
		s.logExportError(r, err)
	}
}

// handleExportXLSX streams the filtered registry as a workbook.
func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	defer s.observe("export_xlsx", time.Now())

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="ruea.xlsx"`)
	if err := s.service.Queries().ExportXLSX(r.Context(), w, registryFilters(r), fieldsParam(r)); err != nil {
		s.logExportError(r, err)
	}
}
