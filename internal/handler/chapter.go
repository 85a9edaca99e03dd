package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/coursecore/internal/model"
	"github.com/pavelanni/coursecore/internal/service"
)

func (h *Handler) handleCreateCourse(w http.ResponseWriter, r *http.Request) {
	var in service.CourseInput
	if !decodeJSON(w, r, &in) {
		return
	}
	c, err := h.svc.CreateCourse(r.Context(), actorFrom(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) handleSetCourseStatus(w http.ResponseWriter, r *http.Request) {
	var in statusRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	c, err := h.svc.SetCourseStatus(r.Context(), actorFrom(r), chi.URLParam(r, "id"), model.CourseStatus(in.Status))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) handleCreateModule(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Title string `json:"title"`
	}
	if !decodeJSON(w, r, &in) {
		return
	}
	m, err := h.svc.CreateModule(r.Context(), actorFrom(r), chi.URLParam(r, "id"), in.Title)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *Handler) handleEnroll(w http.ResponseWriter, r *http.Request) {
	e, err := h.svc.Enroll(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (h *Handler) handleUnenroll(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Unenroll(r.Context(), actorFrom(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListChapters serves both /chapters?module_id= and /modules/{id}/chapters.
func (h *Handler) handleListChapters(w http.ResponseWriter, r *http.Request) {
	moduleID := chi.URLParam(r, "id")
	if moduleID == "" {
		moduleID = r.URL.Query().Get("module_id")
	}
	page, err := h.svc.ListChapters(r.Context(), actorFrom(r), moduleID, r.URL.Query().Get("search"), pageParams(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handler) handleGetChapter(w http.ResponseWriter, r *http.Request) {
	ch, err := h.svc.GetChapter(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ch)
}

func (h *Handler) handleCreateChapter(w http.ResponseWriter, r *http.Request) {
	var in service.ChapterInput
	if !decodeJSON(w, r, &in) {
		return
	}
	ch, err := h.svc.CreateChapter(r.Context(), actorFrom(r), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ch)
}

func (h *Handler) handleUpdateChapter(w http.ResponseWriter, r *http.Request) {
	var patch service.ChapterPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	ch, err := h.svc.UpdateChapter(r.Context(), actorFrom(r), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ch)
}

func (h *Handler) handleDeleteChapter(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteChapter(r.Context(), actorFrom(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleReorderChapters(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ReorderChapters(r.Context(), actorFrom(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSummarizeChapter(w http.ResponseWriter, r *http.Request) {
	ch, err := h.svc.SummarizeChapter(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ch)
}
