package web

// handlers_admin.go drives the refresh pipeline. The per-module file path
// is asynchronous: files are read into memory, a job id is handed back and
// the stage-and-promote cycle runs on a background goroutine. The workbook
// path is synchronous and reports the published version directly.

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/portal-alcaldia/ruea-api/internal/dataset"
	"github.com/portal-alcaldia/ruea-api/internal/logging"
)

// handleRefresh accepts one uploaded file per module and schedules a
// refresh. Responds 202 with the job id, or 409 when a refresh is already
// in flight.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid multipart body", Code: "BAD_UPLOAD"})
		return
	}

	files := make(map[dataset.Module][]byte)
	for _, m := range dataset.AllModules {
		raw, ok, err := formFileBytes(r, string(m))
		if err != nil {
			respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "unreadable upload for " + string(m), Code: "BAD_UPLOAD"})
			return
		}
		if ok {
			files[m] = raw
		}
	}
	if len(files) == 0 {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "no files provided", Code: "NO_FILES"})
		return
	}

	jobID, err := s.service.ScheduleRefresh(files)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("refresh scheduled",
		"job_id", jobID,
		"modules", len(files),
	)
	respondJSON(w, http.StatusAccepted, map[string]string{
		"status": "scheduled",
		"job":    jobID,
	})
}

// handleRefreshWorkbook ingests a single master workbook synchronously.
// sheet_map and header_rows are JSON form fields mapping module names to
// the sheet holding their table and its 1-based header row.
func (s *Server) handleRefreshWorkbook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid multipart body", Code: "BAD_UPLOAD"})
		return
	}

	workbook, ok, err := formFileBytes(r, "file")
	if err != nil || !ok {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "workbook file is required", Code: "NO_FILES"})
		return
	}

	sheetMap := map[dataset.Module]string{dataset.ModuleRuea: "GENERAL"}
	if raw := r.FormValue("sheet_map"); raw != "" {
		var m map[dataset.Module]string
		if err := json.Unmarshal([]byte(raw), &m); err == nil {
			sheetMap = m
		}
	}
	headerRows := map[dataset.Module]int{dataset.ModuleRuea: 1}
	if raw := r.FormValue("header_rows"); raw != "" {
		var m map[dataset.Module]int
		if err := json.Unmarshal([]byte(raw), &m); err == nil {
			headerRows = m
		}
	}
	if sheetMap[dataset.ModuleRuea] == "" {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "sheet_map must name the sheet for ruea",
			Code:  "NO_SHEET",
		})
		return
	}

	result, err := s.service.RefreshFromWorkbook(r.Context(), workbook, sheetMap, headerRows)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// formFileBytes reads one named multipart file fully. ok is false when the
// field is absent.
func formFileBytes(r *http.Request, field string) (raw []byte, ok bool, err error) {
	file, _, err := r.FormFile(field)
	if err == http.ErrMissingFile {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer func(f multipart.File) { _ = f.Close() }(file)

	raw, err = io.ReadAll(file)
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}
