package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/coursecore/internal/catalog"
	"github.com/pavelanni/coursecore/internal/i18n"
	"github.com/pavelanni/coursecore/internal/model"
	"github.com/pavelanni/coursecore/internal/service"
	"github.com/pavelanni/coursecore/internal/store"
)

func TestMain(m *testing.M) {
	if err := i18n.Init("en"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(m.Run())
}

type testEnv struct {
	router  http.Handler
	svc     *service.Service
	teacher model.Actor
	student model.Actor
	admin   model.Actor
	module  model.CourseModule
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	st, err := store.New(store.DialectSQLite, ":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	svc := service.New(st)
	ctx := context.Background()

	actor := func(name string, role model.UserRole) model.Actor {
		u := model.User{Username: name, Role: role}
		if err := st.CreateUser(ctx, &u); err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
		return model.Actor{ID: u.ID, Role: role}
	}
	env := testEnv{
		svc:     svc,
		teacher: actor("teacher", model.UserRoleTeacher),
		student: actor("student", model.UserRoleStudent),
		admin:   actor("admin", model.UserRoleAdmin),
	}
	course, err := svc.CreateCourse(ctx, env.teacher, service.CourseInput{Title: "Go"})
	if err != nil {
		t.Fatalf("CreateCourse: %v", err)
	}
	if _, err := svc.SetCourseStatus(ctx, env.teacher, course.ID, model.CoursePublished); err != nil {
		t.Fatalf("SetCourseStatus: %v", err)
	}
	if env.module, err = svc.CreateModule(ctx, env.teacher, course.ID, "Basics"); err != nil {
		t.Fatalf("CreateModule: %v", err)
	}

	r := chi.NewRouter()
	r.Use(i18n.Middleware())
	New(svc, catalog.NewImporter(svc, st)).Routes(r)
	env.router = r
	return env
}

func (e testEnv) do(t *testing.T, actor *model.Actor, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != nil {
		req.Header.Set(headerActorID, actor.ID)
		req.Header.Set(headerActorRole, string(actor.Role))
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("chapter x: %w", model.ErrNotFound), http.StatusNotFound},
		{model.ErrForbidden, http.StatusForbidden},
		{model.ErrConflict, http.StatusConflict},
		{model.ErrInvalidRange, http.StatusBadRequest},
		{model.ErrInvalidRole, http.StatusBadRequest},
		{&model.UpstreamError{Op: "asr", Status: 500}, http.StatusBadGateway},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got, _ := errorStatus(tt.err); got != tt.want {
				t.Errorf("errorStatus(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestHealthzNeedsNoActor(t *testing.T) {
	env := newTestEnv(t)
	if rec := env.do(t, nil, http.MethodGet, "/healthz", nil); rec.Code != http.StatusOK {
		t.Fatalf("healthz = %d", rec.Code)
	}
}

func TestActorHeaders(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, nil, http.MethodGet, "/chapters", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing headers = %d, want 401", rec.Code)
	}

	guest := model.Actor{ID: "g", Role: "GUEST"}
	rec = env.do(t, &guest, http.MethodGet, "/chapters", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown role = %d, want 400", rec.Code)
	}

	rec = env.do(t, &env.teacher, http.MethodGet, "/admin/users", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("teacher on admin route = %d, want 403", rec.Code)
	}
	rec = env.do(t, &env.admin, http.MethodGet, "/admin/users", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin on admin route = %d, want 200", rec.Code)
	}
}

func TestCourseRouteRoles(t *testing.T) {
	env := newTestEnv(t)
	course := "/courses/" + env.module.CourseID

	tests := []struct {
		name   string
		actor  *model.Actor
		method string
		path   string
		body   any
		want   int
	}{
		{"student cannot change status", &env.student, http.MethodPatch, course + "/status", statusRequest{Status: "DRAFT"}, http.StatusForbidden},
		{"student cannot add modules", &env.student, http.MethodPost, course + "/modules", map[string]string{"title": "x"}, http.StatusForbidden},
		{"teacher cannot enroll", &env.teacher, http.MethodPost, course + "/enrollment", nil, http.StatusForbidden},
		{"teacher cannot unenroll", &env.teacher, http.MethodDelete, course + "/enrollment", nil, http.StatusForbidden},
		{"teacher adds a module", &env.teacher, http.MethodPost, course + "/modules", map[string]string{"title": "Advanced"}, http.StatusCreated},
		{"student enrolls", &env.student, http.MethodPost, course + "/enrollment", nil, http.StatusCreated},
		{"student unenrolls", &env.student, http.MethodDelete, course + "/enrollment", nil, http.StatusNoContent},
		{"student enrolls again", &env.student, http.MethodPost, course + "/enrollment", nil, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := env.do(t, tt.actor, tt.method, tt.path, tt.body); rec.Code != tt.want {
				t.Errorf("%s %s = %d, want %d: %s", tt.method, tt.path, rec.Code, tt.want, rec.Body)
			}
		})
	}
}

func TestChapterEndpoints(t *testing.T) {
	env := newTestEnv(t)
	base := "/modules/" + env.module.ID + "/chapters"

	rec := env.do(t, &env.teacher, http.MethodPost, base, service.ChapterInput{Title: "Intro"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d: %s", rec.Code, rec.Body)
	}
	intro := decode[model.Chapter](t, rec)
	if intro.OrderIndex != 1 {
		t.Errorf("first chapter index = %d", intro.OrderIndex)
	}

	tests := []struct {
		name  string
		actor *model.Actor
		in    service.ChapterInput
		want  int
	}{
		{"explicit append", &env.teacher, service.ChapterInput{Title: "Two", OrderIndex: 2}, http.StatusCreated},
		{"taken index", &env.teacher, service.ChapterInput{Title: "Dup", OrderIndex: 1}, http.StatusConflict},
		{"out of range", &env.teacher, service.ChapterInput{Title: "Far", OrderIndex: 9}, http.StatusBadRequest},
		{"not the owner", &env.student, service.ChapterInput{Title: "Mine"}, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := env.do(t, tt.actor, http.MethodPost, base, tt.in); rec.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body)
			}
		})
	}

	rec = env.do(t, &env.student, http.MethodGet, "/chapters/"+intro.ID, nil, "Accept-Language", "ru")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unenrolled student get = %d, want 404", rec.Code)
	}
	body := decode[errorBody](t, rec)
	if body.Error != "Запрошенный ресурс не найден." {
		t.Errorf("localized error = %q", body.Error)
	}

	rec = env.do(t, &env.teacher, http.MethodGet, base+"?page=1&limit=1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list = %d", rec.Code)
	}
	page := decode[struct {
		Items []model.Chapter `json:"items"`
		Total int             `json:"total"`
	}](t, rec)
	if page.Total != 2 || len(page.Items) != 1 {
		t.Errorf("page = %+v", page)
	}

	if rec := env.do(t, &env.teacher, http.MethodDelete, "/chapters/"+intro.ID, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", rec.Code)
	}
	rec = env.do(t, &env.teacher, http.MethodGet, base, nil)
	left := decode[struct {
		Items []model.Chapter `json:"items"`
	}](t, rec)
	if len(left.Items) != 1 || left.Items[0].OrderIndex != 1 {
		t.Errorf("after delete = %+v", left.Items)
	}
}

func TestSummarizeWithoutBackendIsBadGateway(t *testing.T) {
	env := newTestEnv(t)
	ch, err := env.svc.CreateChapter(context.Background(), env.teacher, env.module.ID, service.ChapterInput{Title: "Video"})
	if err != nil {
		t.Fatalf("CreateChapter: %v", err)
	}
	rec := env.do(t, &env.teacher, http.MethodPost, "/chapters/"+ch.ID+"/summarize", nil)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("summarize = %d, want 502", rec.Code)
	}
}

func TestExamFlow(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, &env.teacher, http.MethodPost, "/modules/"+env.module.ID+"/exam", service.ExamInput{Title: "Final", PassingScore: 50})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create exam = %d: %s", rec.Code, rec.Body)
	}
	exam := decode[model.Exam](t, rec)

	rec = env.do(t, &env.teacher, http.MethodPost, "/exams/"+exam.ID+"/questions", service.QuestionInput{
		Text: "2+2?", Points: 4,
		Options: []service.OptionInput{{Text: "4", IsCorrect: true}, {Text: "5"}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create question = %d: %s", rec.Code, rec.Body)
	}
	q := decode[service.QuestionDetail](t, rec)

	if rec := env.do(t, &env.teacher, http.MethodPatch, "/exams/"+exam.ID+"/status", statusRequest{Status: "PUBLISHED"}); rec.Code != http.StatusOK {
		t.Fatalf("publish = %d", rec.Code)
	}

	if rec := env.do(t, &env.student, http.MethodPost, "/exams/"+exam.ID+"/attempts", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unenrolled start = %d, want 404", rec.Code)
	}

	if rec := env.do(t, &env.student, http.MethodPost, "/courses/"+env.module.CourseID+"/enrollment", nil); rec.Code != http.StatusCreated {
		t.Fatalf("enroll = %d: %s", rec.Code, rec.Body)
	}
	rec = env.do(t, &env.student, http.MethodPost, "/exams/"+exam.ID+"/attempts", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("start = %d: %s", rec.Code, rec.Body)
	}
	attempt := decode[model.ExamAttempt](t, rec)

	rec = env.do(t, &env.student, http.MethodPost, "/attempts/"+attempt.ID+"/answers", answerRequest{SelectedOptionID: q.Options[0].ID})
	if rec.Code != http.StatusCreated {
		t.Fatalf("answer = %d: %s", rec.Code, rec.Body)
	}
	rec = env.do(t, &env.student, http.MethodPost, "/attempts/"+attempt.ID+"/answers", answerRequest{SelectedOptionID: q.Options[1].ID})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate answer = %d, want 409", rec.Code)
	}

	rec = env.do(t, &env.student, http.MethodPost, "/attempts/"+attempt.ID+"/submit", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit = %d: %s", rec.Code, rec.Body)
	}
	res := decode[struct {
		Score   int    `json:"score"`
		Total   int    `json:"total"`
		Passed  bool   `json:"passed"`
		Message string `json:"message"`
	}](t, rec)
	if res.Score != 4 || res.Total != 4 || !res.Passed || !strings.Contains(res.Message, "4 of 4") {
		t.Errorf("unexpected result %+v", res)
	}

	rec = env.do(t, &env.teacher, http.MethodGet, "/questions/"+q.ID+"/answers", nil)
	answers := decode[struct {
		Total int `json:"total"`
	}](t, rec)
	if answers.Total != 1 {
		t.Errorf("teacher sees %d answers, want 1", answers.Total)
	}
}

func TestImportCatalogUpload(t *testing.T) {
	env := newTestEnv(t)
	doc := `{"courses": [{"title": "Uploaded", "teacher": "teacher", "modules": [{"title": "m", "chapters": [{"title": "c"}]}]}]}`

	upload := func() *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("catalog", "upload.json")
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		fw.Write([]byte(doc))
		mw.Close()
		req := httptest.NewRequest(http.MethodPost, "/admin/catalog", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set(headerActorID, env.admin.ID)
		req.Header.Set(headerActorRole, string(env.admin.Role))
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		return rec
	}

	if rec := upload(); rec.Code != http.StatusCreated {
		t.Fatalf("first upload = %d: %s", rec.Code, rec.Body)
	}
	rec := upload()
	if rec.Code != http.StatusOK {
		t.Fatalf("second upload = %d: %s", rec.Code, rec.Body)
	}
	if got := decode[map[string]any](t, rec); got["skipped"] != true {
		t.Errorf("second upload should be skipped: %v", got)
	}
}
