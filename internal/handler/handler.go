// Package handler exposes the service layer as a JSON API.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/coursecore/internal/catalog"
	"github.com/pavelanni/coursecore/internal/i18n"
	"github.com/pavelanni/coursecore/internal/model"
	"github.com/pavelanni/coursecore/internal/pagination"
	"github.com/pavelanni/coursecore/internal/service"
)

// maxBody caps request bodies, catalog uploads included.
const maxBody = 10 << 20

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	svc      *service.Service
	importer *catalog.Importer
}

// New creates a new Handler.
func New(svc *service.Service, importer *catalog.Importer) *Handler {
	return &Handler{svc: svc, importer: importer}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(actorMiddleware)

		staff := requireRole(model.UserRoleTeacher, model.UserRoleAdmin)
		learner := requireRole(model.UserRoleStudent, model.UserRoleAdmin)
		r.With(staff).Post("/courses", h.handleCreateCourse)
		r.With(staff).Patch("/courses/{id}/status", h.handleSetCourseStatus)
		r.With(staff).Post("/courses/{id}/modules", h.handleCreateModule)
		r.With(learner).Post("/courses/{id}/enrollment", h.handleEnroll)
		r.With(learner).Delete("/courses/{id}/enrollment", h.handleUnenroll)

		r.Get("/chapters", h.handleListChapters)
		r.Get("/modules/{id}/chapters", h.handleListChapters)
		r.Post("/modules/{id}/chapters", h.handleCreateChapter)
		r.Post("/modules/{id}/chapters/reorder", h.handleReorderChapters)
		r.Get("/chapters/{id}", h.handleGetChapter)
		r.Patch("/chapters/{id}", h.handleUpdateChapter)
		r.Delete("/chapters/{id}", h.handleDeleteChapter)
		r.Post("/chapters/{id}/summarize", h.handleSummarizeChapter)

		r.Get("/exams", h.handleListExams)
		r.Post("/modules/{id}/exam", h.handleCreateExam)
		r.Get("/exams/{id}", h.handleGetExam)
		r.Patch("/exams/{id}/status", h.handleSetExamStatus)
		r.Get("/exams/{id}/questions", h.handleListQuestions(examParent))
		r.Post("/exams/{id}/questions", h.handleCreateQuestion(examParent))
		r.Post("/exams/{id}/questions/reorder", h.handleReorderQuestions(examParent))
		r.Post("/exams/{id}/attempts", h.handleStartExam)
		r.Get("/exams/{id}/export", h.handleExportExam)

		r.Get("/pretests", h.handleListPretests)
		r.Post("/pretests", h.handleCreatePretest)
		r.Get("/pretests/{id}", h.handleGetPretest)
		r.Get("/pretests/{id}/questions", h.handleListQuestions(pretestParent))
		r.Post("/pretests/{id}/questions", h.handleCreateQuestion(pretestParent))
		r.Post("/pretests/{id}/questions/reorder", h.handleReorderQuestions(pretestParent))
		r.Post("/pretests/{id}/attempts", h.handleStartPretest)
		r.Get("/pretests/{id}/evaluation", h.handleEvaluatePretest)

		r.Get("/questions/{id}", h.handleGetQuestion)
		r.Patch("/questions/{id}", h.handleUpdateQuestion)
		r.Delete("/questions/{id}", h.handleDeleteQuestion)
		r.Patch("/options/{id}", h.handleUpdateOption)

		r.Get("/answers", h.handleListAnswers(""))
		r.Get("/questions/{id}/answers", h.handleListAnswers("question"))
		r.Get("/options/{id}/answers", h.handleListAnswers("option"))
		r.Get("/attempts/{id}/answers", h.handleListAnswers("attempt"))
		r.Get("/answers/{id}", h.handleGetAnswer)
		r.Patch("/answers/{id}", h.handleUpdateAnswer)
		r.Post("/attempts/{id}/answers", h.handleSubmitAnswer)
		r.Post("/attempts/{id}/submit", h.handleSubmitAttempt)

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireRole(model.UserRoleAdmin))
			r.Get("/users", h.handleListUsers)
			r.Post("/users", h.handleCreateUser)
			r.Post("/catalog", h.handleImportCatalog)
		})
	})
}

func pageParams(r *http.Request) pagination.Params {
	q := r.URL.Query()
	return pagination.Parse(q.Get("page"), q.Get("limit"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// decodeJSON reads the request body into v. On failure it writes a 400
// response and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error:  i18n.T(r.Context(), "ErrBadRequest"),
			Detail: err.Error(),
		})
		return false
	}
	return true
}

type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// errorStatus maps an error kind to its HTTP status and message id.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, "ErrNotFound"
	case errors.Is(err, model.ErrForbidden):
		return http.StatusForbidden, "ErrForbidden"
	case errors.Is(err, model.ErrConflict):
		return http.StatusConflict, "ErrConflict"
	case errors.Is(err, model.ErrInvalidRange):
		return http.StatusBadRequest, "ErrInvalidRange"
	case errors.Is(err, model.ErrInvalidRole):
		return http.StatusBadRequest, "ErrInvalidRole"
	case errors.Is(err, model.ErrUpstream):
		return http.StatusBadGateway, "ErrUpstream"
	}
	return http.StatusInternalServerError, "ErrInternal"
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msgID := errorStatus(err)
	body := errorBody{Error: i18n.T(r.Context(), msgID)}
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		body.Detail = err.Error()
	}
	writeJSON(w, status, body)
}
