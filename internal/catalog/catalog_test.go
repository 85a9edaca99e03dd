package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/pavelanni/coursecore/internal/model"
	"github.com/pavelanni/coursecore/internal/pagination"
	"github.com/pavelanni/coursecore/internal/service"
	"github.com/pavelanni/coursecore/internal/store"
)

const sample = `{
  "courses": [{
    "title": "Go Basics",
    "teacher": "ann",
    "status": "PUBLISHED",
    "modules": [{
      "title": "Concurrency",
      "chapters": [
        {"title": "Goroutines", "is_preview": true},
        {"title": "Channels"},
        {"title": "Select"}
      ],
      "exam": {
        "title": "Concurrency quiz",
        "passing_score": 50,
        "status": "PUBLISHED",
        "questions": [
          {"question": "Is a goroutine a thread?", "points": 1,
           "options": [{"option_text": "no", "is_correct": true}, {"option_text": "yes"}]},
          {"question": "Can channels be closed?", "points": 2, "type": "TRUE_FALSE",
           "options": [{"option_text": "true", "is_correct": true}, {"option_text": "false"}]}
        ]
      }
    }]
  }]
}`

func newImporter(t *testing.T) (*Importer, *service.Service, model.Actor) {
	t.Helper()
	st, err := store.New(store.DialectSQLite, ":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	svc := service.New(st)
	u, err := svc.CreateUser(context.Background(), service.SystemActor, service.UserInput{
		Username: "ann", Password: "secret", Role: model.UserRoleTeacher,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return NewImporter(svc, st), svc, model.Actor{ID: u.ID, Role: u.Role}
}

func TestImport(t *testing.T) {
	im, svc, teacher := newImporter(t)
	ctx := context.Background()

	res, err := im.Import(ctx, "go.json", []byte(sample))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if res.Skipped || res.Courses != 1 || res.Chapters != 3 || res.Questions != 2 {
		t.Fatalf("unexpected result %+v", res)
	}

	page, err := svc.ListChapters(ctx, teacher, "", "", pagination.Params{})
	if err != nil {
		t.Fatalf("ListChapters: %v", err)
	}
	if page.Total != 3 {
		t.Fatalf("expected 3 chapters, got %d", page.Total)
	}
	for i, ch := range page.Items {
		if ch.OrderIndex != i+1 {
			t.Errorf("chapter %q has index %d, want %d", ch.Title, ch.OrderIndex, i+1)
		}
	}

	exams, err := svc.ListExams(ctx, teacher, "", "", pagination.Params{})
	if err != nil {
		t.Fatalf("ListExams: %v", err)
	}
	if exams.Total != 1 || exams.Items[0].Status != model.ExamPublished {
		t.Fatalf("unexpected exams %+v", exams.Items)
	}
}

func TestImportSkipsKnownDocuments(t *testing.T) {
	im, _, _ := newImporter(t)
	ctx := context.Background()
	if _, err := im.Import(ctx, "go.json", []byte(sample)); err != nil {
		t.Fatalf("Import: %v", err)
	}

	res, err := im.Import(ctx, "go.json", []byte(sample))
	if err != nil {
		t.Fatalf("second Import: %v", err)
	}
	if !res.Skipped || res.Changed {
		t.Errorf("unchanged document should be skipped, got %+v", res)
	}

	res, err = im.Import(ctx, "go.json", []byte(sample+"\n"))
	if err != nil {
		t.Fatalf("third Import: %v", err)
	}
	if !res.Skipped || !res.Changed {
		t.Errorf("changed document should be skipped as changed, got %+v", res)
	}
}

func TestImportErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{"malformed", `{"courses": [`, model.ErrInvalidRange},
		{"unknown teacher", `{"courses": [{"title": "x", "teacher": "nobody"}]}`, model.ErrNotFound},
		{"student owner", `{"courses": [{"title": "x", "teacher": "sam"}]}`, model.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			im, svc, _ := newImporter(t)
			if _, err := svc.CreateUser(context.Background(), service.SystemActor, service.UserInput{
				Username: "sam", Password: "pw", Role: model.UserRoleStudent,
			}); err != nil {
				t.Fatalf("CreateUser: %v", err)
			}
			if _, err := im.Import(context.Background(), "bad.json", []byte(tt.doc)); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
