package handlers

import (
	"net/http"

	"github.com/thomasbroadsword/PhotoGenSeo/internal/export"
	"github.com/thomasbroadsword/PhotoGenSeo/internal/workflow"
)

// HandleExport streams the session's results as a spreadsheet-ready CSV.
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	session, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	if session.State() != workflow.StateResults {
		h.writeError(w, "No results to export yet", http.StatusConflict)
		return
	}

	data := export.CSV(session.Results())
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.CSVFilename+`"`)
	if _, err := w.Write(data); err != nil {
		return
	}
}
