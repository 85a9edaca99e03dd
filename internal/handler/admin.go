package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/pavelanni/coursecore/internal/i18n"
	"github.com/pavelanni/coursecore/internal/service"
)

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.ListUsers(r.Context(), actorFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var in service.UserInput
	if !decodeJSON(w, r, &in) {
		return
	}
	u, err := h.svc.CreateUser(r.Context(), actorFrom(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// handleImportCatalog accepts a catalog document as a multipart upload in
// the "catalog" field.
func (h *Handler) handleImportCatalog(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxBody); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: i18n.T(r.Context(), "ErrBadRequest"), Detail: err.Error()})
		return
	}
	file, header, err := r.FormFile("catalog")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: i18n.T(r.Context(), "ErrBadRequest"), Detail: err.Error()})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.importer.Import(r.Context(), header.Filename, data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("uploaded catalog via admin", "filename", header.Filename, "courses", res.Courses, "skipped", res.Skipped)

	status := http.StatusCreated
	if res.Skipped {
		status = http.StatusOK
	}
	writeJSON(w, status, map[string]any{
		"skipped":   res.Skipped,
		"changed":   res.Changed,
		"courses":   res.Courses,
		"chapters":  res.Chapters,
		"questions": res.Questions,
	})
}
