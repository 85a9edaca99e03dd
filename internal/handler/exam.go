package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/coursecore/internal/grading"
	"github.com/pavelanni/coursecore/internal/i18n"
	"github.com/pavelanni/coursecore/internal/model"
	"github.com/pavelanni/coursecore/internal/service"
)

func examParent(id string) service.QuestionParent    { return service.QuestionParent{ExamID: id} }
func pretestParent(id string) service.QuestionParent { return service.QuestionParent{PretestID: id} }

func (h *Handler) handleListExams(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.svc.ListExams(r.Context(), actorFrom(r), q.Get("module_id"), q.Get("search"), pageParams(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handler) handleGetExam(w http.ResponseWriter, r *http.Request) {
	e, err := h.svc.GetExam(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *Handler) handleCreateExam(w http.ResponseWriter, r *http.Request) {
	var in service.ExamInput
	if !decodeJSON(w, r, &in) {
		return
	}
	e, err := h.svc.CreateExam(r.Context(), actorFrom(r), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (h *Handler) handleSetExamStatus(w http.ResponseWriter, r *http.Request) {
	var in statusRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	e, err := h.svc.SetExamStatus(r.Context(), actorFrom(r), chi.URLParam(r, "id"), model.ExamStatus(in.Status))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *Handler) handleExportExam(w http.ResponseWriter, r *http.Request) {
	export, err := h.svc.ExportExam(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, export)
}

func (h *Handler) handleStartExam(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.StartExam(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *Handler) handleListPretests(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.ListPretests(r.Context(), actorFrom(r), r.URL.Query().Get("search"), pageParams(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handler) handleGetPretest(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetPretest(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) handleCreatePretest(w http.ResponseWriter, r *http.Request) {
	var in service.PretestInput
	if !decodeJSON(w, r, &in) {
		return
	}
	p, err := h.svc.CreatePretest(r.Context(), actorFrom(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) handleStartPretest(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.StartPretest(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

type resultResponse struct {
	grading.Result
	Message string `json:"message"`
}

func scored(r *http.Request, res grading.Result) resultResponse {
	return resultResponse{
		Result:  res,
		Message: i18n.Td(r.Context(), "AttemptScored", map[string]any{"Score": res.Score, "Total": res.Total}),
	}
}

func (h *Handler) handleEvaluatePretest(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.EvaluatePretest(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scored(r, res))
}

func (h *Handler) handleListQuestions(parent func(string) service.QuestionParent) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := h.svc.ListQuestions(r.Context(), actorFrom(r), parent(chi.URLParam(r, "id")), r.URL.Query().Get("search"), pageParams(r))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, page)
	}
}

func (h *Handler) handleCreateQuestion(parent func(string) service.QuestionParent) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in service.QuestionInput
		if !decodeJSON(w, r, &in) {
			return
		}
		q, err := h.svc.CreateQuestion(r.Context(), actorFrom(r), parent(chi.URLParam(r, "id")), in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, q)
	}
}

func (h *Handler) handleReorderQuestions(parent func(string) service.QuestionParent) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.svc.ReorderQuestions(r.Context(), actorFrom(r), parent(chi.URLParam(r, "id"))); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handler) handleGetQuestion(w http.ResponseWriter, r *http.Request) {
	q, err := h.svc.GetQuestion(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handler) handleUpdateQuestion(w http.ResponseWriter, r *http.Request) {
	var patch service.QuestionPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	q, err := h.svc.UpdateQuestion(r.Context(), actorFrom(r), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handler) handleDeleteQuestion(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteQuestion(r.Context(), actorFrom(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleUpdateOption(w http.ResponseWriter, r *http.Request) {
	var patch service.OptionPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	o, err := h.svc.UpdateOption(r.Context(), actorFrom(r), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// handleListAnswers lists answers, scoped by the path parameter named by
// scope when it is set.
func (h *Handler) handleListAnswers(scope string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f := service.AnswerFilter{
			AttemptID:        q.Get("attempt_id"),
			QuestionID:       q.Get("question_id"),
			SelectedOptionID: q.Get("option_id"),
			Search:           q.Get("search"),
		}
		switch scope {
		case "question":
			f.QuestionID = chi.URLParam(r, "id")
		case "option":
			f.SelectedOptionID = chi.URLParam(r, "id")
		case "attempt":
			f.AttemptID = chi.URLParam(r, "id")
		}
		page, err := h.svc.ListAnswers(r.Context(), actorFrom(r), f, pageParams(r))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, page)
	}
}

func (h *Handler) handleGetAnswer(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.GetAnswer(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type answerRequest struct {
	SelectedOptionID string `json:"selected_option_id"`
	AnswerText       string `json:"answer_text"`
}

func (h *Handler) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var in answerRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	a, err := h.svc.SubmitAnswer(r.Context(), actorFrom(r), chi.URLParam(r, "id"), in.SelectedOptionID, in.AnswerText)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *Handler) handleUpdateAnswer(w http.ResponseWriter, r *http.Request) {
	var in answerRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	a, err := h.svc.UpdateAnswer(r.Context(), actorFrom(r), chi.URLParam(r, "id"), in.SelectedOptionID, in.AnswerText)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) handleSubmitAttempt(w http.ResponseWriter, r *http.Request) {
	attempt, res, err := h.svc.SubmitAttempt(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Attempt model.ExamAttempt `json:"attempt"`
		resultResponse
	}{attempt, scored(r, res)})
}
