package model

import (
	"context"
	"time"
)

// UserRole represents a user's access level.
type UserRole string

const (
	// UserRoleStudent is a student user role.
	UserRoleStudent UserRole = "STUDENT"
	// UserRoleTeacher is a teacher user role.
	UserRoleTeacher UserRole = "TEACHER"
	// UserRoleAdmin is an admin user role.
	UserRoleAdmin UserRole = "ADMIN"
)

// User represents a system user.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Fullname     string    `json:"fullname"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         UserRole  `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Actor is the authenticated identity a request runs as.
// It arrives pre-validated from the gateway.
type Actor struct {
	ID   string
	Role UserRole
}

type actorCtxKey struct{}

// ContextWithActor stores the acting identity in the request context.
func ContextWithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorCtxKey{}, a)
}

// ActorFromContext retrieves the acting identity from context.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorCtxKey{}).(Actor)
	return a, ok
}

// CourseStatus is the publication state of a course.
type CourseStatus string

const (
	CourseDraft     CourseStatus = "DRAFT"
	CoursePublished CourseStatus = "PUBLISHED"
)

// ExamStatus is the publication state of an exam.
type ExamStatus string

const (
	ExamDraft     ExamStatus = "DRAFT"
	ExamPublished ExamStatus = "PUBLISHED"
)

// EnrollmentStatus represents the state of a user's enrollment.
type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "ACTIVE"
	EnrollmentCompleted EnrollmentStatus = "COMPLETED"
	EnrollmentDropped   EnrollmentStatus = "DROPPED"
)

// QuestionType is the answer format of a question.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionTrueFalse      QuestionType = "TRUE_FALSE"
)

// AttemptStatus represents the status of an exam or pretest attempt.
type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "IN_PROGRESS"
	AttemptSubmitted  AttemptStatus = "SUBMITTED"
)

// Course is owned by a teacher and groups modules.
type Course struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	TeacherID   string       `json:"teacher_id"`
	Status      CourseStatus `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
}

// CourseModule belongs to one course and holds chapters and at most one exam.
type CourseModule struct {
	ID         string `json:"id"`
	CourseID   string `json:"course_id"`
	Title      string `json:"title"`
	OrderIndex int    `json:"order_index"`
}

// Chapter is a lesson within a module.
type Chapter struct {
	ID          string    `json:"id"`
	ModuleID    string    `json:"module_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Content     string    `json:"content"`
	VideoKey    string    `json:"video_key"`
	OrderIndex  int       `json:"order_index"`
	IsPreview   bool      `json:"is_preview"`
	Summary     string    `json:"summary,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Enrollment links a user to a course.
type Enrollment struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	CourseID  string           `json:"course_id"`
	Status    EnrollmentStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
}

// Exam is the assessment attached to a module.
type Exam struct {
	ID               string     `json:"id"`
	ModuleID         string     `json:"module_id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	TimeLimit        int        `json:"time_limit"`
	PassingScore     int        `json:"passing_score"`
	MaxAttempts      int        `json:"max_attempts"`
	ShuffleQuestions bool       `json:"shuffle_questions"`
	Status           ExamStatus `json:"status"`
	CreatedAt        time.Time  `json:"created_at"`
}

// Question belongs to exactly one of an exam or a pretest.
type Question struct {
	ID         string       `json:"id"`
	ExamID     *string      `json:"exam_id,omitempty"`
	PretestID  *string      `json:"pretest_id,omitempty"`
	Text       string       `json:"question"`
	Type       QuestionType `json:"type"`
	Points     int          `json:"points"`
	OrderIndex int          `json:"order_index"`
	CreatedAt  time.Time    `json:"created_at"`
}

// QuestionOption is one selectable answer of a question.
type QuestionOption struct {
	ID          string `json:"id"`
	QuestionID  string `json:"question_id"`
	Text        string `json:"option_text"`
	IsCorrect   bool   `json:"is_correct"`
	Explanation string `json:"explanation"`
}

// ExamAttempt is one user's session on an exam or a pretest.
type ExamAttempt struct {
	ID          string        `json:"id"`
	UserID      string        `json:"user_id"`
	ExamID      *string       `json:"exam_id,omitempty"`
	PretestID   *string       `json:"pretest_id,omitempty"`
	Score       int           `json:"score"`
	Status      AttemptStatus `json:"status"`
	StartedAt   time.Time     `json:"started_at"`
	SubmittedAt *time.Time    `json:"submitted_at,omitempty"`
}

// ExamAnswer records a selected option together with the option that was
// correct when the answer was submitted.
type ExamAnswer struct {
	ID               string    `json:"id"`
	AttemptID        string    `json:"exam_attempt_id"`
	QuestionID       string    `json:"question_id"`
	SelectedOptionID string    `json:"selected_option_id"`
	CorrectOptionID  string    `json:"correct_answer_id"`
	AnswerText       string    `json:"answer_text,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// IsCorrect reports whether the answer matches its correctness snapshot.
func (a ExamAnswer) IsCorrect() bool {
	return a.SelectedOptionID != "" && a.SelectedOptionID == a.CorrectOptionID
}

// Pretest is a self-paced question set owned by one user.
type Pretest struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	PassingScore int       `json:"passing_score"`
	MaxAttempts  int       `json:"max_attempts"`
	TimeLimit    int       `json:"time_limit"`
	CreatedAt    time.Time `json:"created_at"`
}
