package grading_test

import (
	"context"
	"errors"
	"testing"

	"github.com/pavelanni/coursecore/internal/grading"
	"github.com/pavelanni/coursecore/internal/model"
	"github.com/pavelanni/coursecore/internal/ordering"
	"github.com/pavelanni/coursecore/internal/store"
)

type fixture struct {
	store   *store.Store
	engine  *grading.Engine
	student model.Actor
	other   model.Actor
	teacher model.Actor
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	s, err := store.New(store.DialectSQLite, ":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	users := make([]model.User, 3)
	for i, u := range []model.User{
		{Username: "student", Role: model.UserRoleStudent},
		{Username: "other", Role: model.UserRoleStudent},
		{Username: "teacher", Role: model.UserRoleTeacher},
	} {
		users[i] = u
		if err := s.CreateUser(ctx, &users[i]); err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
	}
	return fixture{
		store:   s,
		engine:  grading.NewEngine(s),
		student: model.Actor{ID: users[0].ID, Role: model.UserRoleStudent},
		other:   model.Actor{ID: users[1].ID, Role: model.UserRoleStudent},
		teacher: model.Actor{ID: users[2].ID, Role: model.UserRoleTeacher},
	}
}

func (f fixture) pretest(t *testing.T, owner model.Actor, passing, maxAttempts int) model.Pretest {
	t.Helper()
	p := model.Pretest{UserID: owner.ID, Title: "warmup", PassingScore: passing, MaxAttempts: maxAttempts}
	if err := f.store.CreatePretest(context.Background(), &p); err != nil {
		t.Fatalf("CreatePretest: %v", err)
	}
	return p
}

// question adds a question with a correct and a wrong option and returns
// the two option ids.
func (f fixture) question(t *testing.T, scope ordering.Scope, points int) (model.Question, string, string) {
	t.Helper()
	ctx := context.Background()
	q := model.Question{Text: "q", Points: points}
	opts := []model.QuestionOption{{Text: "right", IsCorrect: true}, {Text: "wrong"}}
	mgr := ordering.NewManager[*store.Tx](f.store)
	if _, err := mgr.Create(ctx, scope, 0, func(tx *store.Tx, idx int) error {
		return tx.InsertQuestion(ctx, &q, opts, idx)
	}); err != nil {
		t.Fatalf("create question: %v", err)
	}
	return q, opts[0].ID, opts[1].ID
}

func (f fixture) publishedExam(t *testing.T, maxAttempts int) model.Exam {
	t.Helper()
	ctx := context.Background()
	c := model.Course{Title: "c", TeacherID: f.teacher.ID, Status: model.CoursePublished}
	if err := f.store.CreateCourse(ctx, &c); err != nil {
		t.Fatalf("CreateCourse: %v", err)
	}
	m := model.CourseModule{CourseID: c.ID, Title: "m"}
	if err := f.store.CreateModule(ctx, &m); err != nil {
		t.Fatalf("CreateModule: %v", err)
	}
	e := model.Exam{ModuleID: m.ID, Title: "e", Status: model.ExamPublished, MaxAttempts: maxAttempts, PassingScore: 50}
	if err := f.store.CreateExam(ctx, &e); err != nil {
		t.Fatalf("CreateExam: %v", err)
	}
	if _, err := f.store.Enroll(ctx, f.student.ID, c.ID); err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	return e
}

func TestEvaluatePretestExample(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.pretest(t, f.student, 60, 0)
	scope := ordering.PretestQuestions(p.ID)
	_, _, wrong5 := f.question(t, scope, 5)
	_, right10, _ := f.question(t, scope, 10)

	attempt, err := f.engine.StartAttempt(ctx, f.student, "", p.ID)
	if err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}
	for _, opt := range []string{wrong5, right10} {
		if _, err := f.engine.SubmitAnswer(ctx, f.student, attempt.ID, opt, ""); err != nil {
			t.Fatalf("SubmitAnswer: %v", err)
		}
	}

	r, err := f.engine.EvaluatePretest(ctx, f.student, p.ID)
	if err != nil {
		t.Fatalf("EvaluatePretest: %v", err)
	}
	if r.Score != 10 || r.Total != 15 || !r.Passed {
		t.Errorf("expected 10/15 passed at 60%%, got %+v", r)
	}
}

func TestSnapshotSurvivesOptionEdit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.pretest(t, f.student, 100, 0)
	q, right, wrong := f.question(t, ordering.PretestQuestions(p.ID), 4)

	attempt, err := f.engine.StartAttempt(ctx, f.student, "", p.ID)
	if err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}
	ans, err := f.engine.SubmitAnswer(ctx, f.student, attempt.ID, right, "")
	if err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	if ans.CorrectOptionID != right {
		t.Fatalf("expected snapshot %s, got %s", right, ans.CorrectOptionID)
	}

	// Flip which option is correct after the fact.
	for _, o := range []model.QuestionOption{
		{ID: right, QuestionID: q.ID, Text: "right", IsCorrect: false},
		{ID: wrong, QuestionID: q.ID, Text: "wrong", IsCorrect: true},
	} {
		if err := f.store.UpdateOption(ctx, o); err != nil {
			t.Fatalf("UpdateOption: %v", err)
		}
	}

	stored, err := f.store.AnswerByID(ctx, ans.ID)
	if err != nil {
		t.Fatalf("AnswerByID: %v", err)
	}
	if stored.CorrectOptionID != right {
		t.Errorf("snapshot changed to %s", stored.CorrectOptionID)
	}
	r, err := f.engine.EvaluatePretest(ctx, f.student, p.ID)
	if err != nil {
		t.Fatalf("EvaluatePretest: %v", err)
	}
	if r.Score != 4 || !r.Passed {
		t.Errorf("expected the original answer to still score, got %+v", r)
	}
}

func TestSubmitAnswerTwiceConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.pretest(t, f.student, 50, 0)
	_, right, wrong := f.question(t, ordering.PretestQuestions(p.ID), 1)

	attempt, err := f.engine.StartAttempt(ctx, f.student, "", p.ID)
	if err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}
	if _, err := f.engine.SubmitAnswer(ctx, f.student, attempt.ID, right, ""); err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	if _, err := f.engine.SubmitAnswer(ctx, f.student, attempt.ID, wrong, ""); !errors.Is(err, model.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestSubmitAnswerRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.pretest(t, f.student, 50, 0)
	_, right, _ := f.question(t, ordering.PretestQuestions(p.ID), 1)
	otherPretest := f.pretest(t, f.student, 50, 0)
	_, foreign, _ := f.question(t, ordering.PretestQuestions(otherPretest.ID), 1)

	attempt, err := f.engine.StartAttempt(ctx, f.student, "", p.ID)
	if err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}

	tests := []struct {
		name    string
		actor   model.Actor
		option  string
		wantErr error
	}{
		{"someone else's attempt", f.other, right, model.ErrNotFound},
		{"unknown option", f.student, "nope", model.ErrNotFound},
		{"question from another pretest", f.student, foreign, model.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.SubmitAnswer(ctx, tt.actor, attempt.ID, tt.option, "")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestSubmitAnswerWithoutCorrectOption(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.pretest(t, f.student, 50, 0)
	q, right, _ := f.question(t, ordering.PretestQuestions(p.ID), 1)
	if err := f.store.UpdateOption(ctx, model.QuestionOption{ID: right, QuestionID: q.ID, Text: "right"}); err != nil {
		t.Fatalf("UpdateOption: %v", err)
	}
	attempt, err := f.engine.StartAttempt(ctx, f.student, "", p.ID)
	if err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}
	if _, err := f.engine.SubmitAnswer(ctx, f.student, attempt.ID, right, ""); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateAnswerKeepsSnapshotOnSameQuestion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.pretest(t, f.student, 50, 0)
	scope := ordering.PretestQuestions(p.ID)
	q1, right1, wrong1 := f.question(t, scope, 1)
	q2, right2, _ := f.question(t, scope, 1)

	attempt, err := f.engine.StartAttempt(ctx, f.student, "", p.ID)
	if err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}
	ans, err := f.engine.SubmitAnswer(ctx, f.student, attempt.ID, wrong1, "")
	if err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}

	// Mark the wrong option correct; a reselection on the same question keeps the old snapshot.
	if err := f.store.UpdateOption(ctx, model.QuestionOption{ID: wrong1, QuestionID: q1.ID, Text: "wrong", IsCorrect: true}); err != nil {
		t.Fatalf("UpdateOption: %v", err)
	}
	updated, err := f.engine.UpdateAnswer(ctx, f.student, ans.ID, wrong1, "")
	if err != nil {
		t.Fatalf("UpdateAnswer: %v", err)
	}
	if updated.CorrectOptionID != right1 {
		t.Errorf("snapshot retaken on same question: %s", updated.CorrectOptionID)
	}

	moved, err := f.engine.UpdateAnswer(ctx, f.student, ans.ID, right2, "")
	if err != nil {
		t.Fatalf("UpdateAnswer: %v", err)
	}
	if moved.QuestionID != q2.ID || moved.CorrectOptionID != right2 {
		t.Errorf("expected re-snapshot on question change, got %+v", moved)
	}
}

func TestStartAttemptHonorsMaxAttempts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	exam := f.publishedExam(t, 2)

	for i := range 2 {
		if _, err := f.engine.StartAttempt(ctx, f.student, exam.ID, ""); err != nil {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
	}
	if _, err := f.engine.StartAttempt(ctx, f.student, exam.ID, ""); !errors.Is(err, model.ErrConflict) {
		t.Errorf("expected ErrConflict after max attempts, got %v", err)
	}
	// Not enrolled: the exam is invisible.
	if _, err := f.engine.StartAttempt(ctx, f.other, exam.ID, ""); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unenrolled student, got %v", err)
	}
	if _, err := f.engine.StartAttempt(ctx, f.student, exam.ID, "also-a-pretest"); !errors.Is(err, model.ErrInvalidRange) {
		t.Errorf("expected ErrInvalidRange for two targets, got %v", err)
	}
}

func TestSubmitAttemptScoresAndCloses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	exam := f.publishedExam(t, 0)
	scope := ordering.ExamQuestions(exam.ID)
	_, right1, _ := f.question(t, scope, 3)
	_, _, wrong2 := f.question(t, scope, 3)

	attempt, err := f.engine.StartAttempt(ctx, f.student, exam.ID, "")
	if err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}
	for _, opt := range []string{right1, wrong2} {
		if _, err := f.engine.SubmitAnswer(ctx, f.student, attempt.ID, opt, ""); err != nil {
			t.Fatalf("SubmitAnswer: %v", err)
		}
	}

	closed, r, err := f.engine.SubmitAttempt(ctx, f.student, attempt.ID)
	if err != nil {
		t.Fatalf("SubmitAttempt: %v", err)
	}
	if r.Score != 3 || r.Total != 6 || !r.Passed {
		t.Errorf("unexpected result %+v", r)
	}
	if closed.Status != model.AttemptSubmitted || closed.SubmittedAt == nil {
		t.Errorf("attempt not closed: %+v", closed)
	}

	if _, _, err := f.engine.SubmitAttempt(ctx, f.student, attempt.ID); !errors.Is(err, model.ErrConflict) {
		t.Errorf("expected ErrConflict on resubmit, got %v", err)
	}
	if _, err := f.engine.SubmitAnswer(ctx, f.student, attempt.ID, right1, ""); !errors.Is(err, model.ErrConflict) {
		t.Errorf("expected ErrConflict answering a submitted attempt, got %v", err)
	}
}
