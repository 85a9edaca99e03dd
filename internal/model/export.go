package model

import "time"

// ExamExport is the top-level JSON structure for exported exam results.
type ExamExport struct {
	ExamID       string          `json:"exam_id"`
	Title        string          `json:"title"`
	PassingScore int             `json:"passing_score"`
	NumQuestions int             `json:"num_questions"`
	MaxScore     int             `json:"max_score"`
	ExportedAt   time.Time       `json:"exported_at"`
	Results      []AttemptResult `json:"results"`
}

// AttemptResult holds one attempt's outcome.
type AttemptResult struct {
	Username      string          `json:"username"`
	Fullname      string          `json:"fullname"`
	AttemptNumber int             `json:"attempt_number"`
	Status        AttemptStatus   `json:"status"`
	StartedAt     time.Time       `json:"started_at"`
	SubmittedAt   *time.Time      `json:"submitted_at"`
	Score         int             `json:"score"`
	Passed        bool            `json:"passed"`
	Answers       []AnswerSummary `json:"answers"`
}

// AnswerSummary holds one answered question within an attempt.
type AnswerSummary struct {
	Question       string `json:"question"`
	Points         int    `json:"points"`
	SelectedOption string `json:"selected_option"`
	CorrectOption  string `json:"correct_option"`
	Correct        bool   `json:"correct"`
}
