// Package grading records answers with a frozen correctness snapshot and
// turns those snapshots into scores.
package grading

import "github.com/pavelanni/coursecore/internal/model"

// Result is the outcome of evaluating a set of answers.
type Result struct {
	Score      int     `json:"score"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
	Passed     bool    `json:"passed"`
}

// Score sums the points of questions whose answer matches its snapshot.
// answers is keyed by question id. total covers every question, answered
// or not.
func Score(questions []model.Question, answers map[string]model.ExamAnswer) (score, total int) {
	for _, q := range questions {
		total += q.Points
		if a, ok := answers[q.ID]; ok && a.IsCorrect() {
			score += q.Points
		}
	}
	return score, total
}

// Passed reports whether score/total, as a percentage, reaches passing.
// An empty question set never passes.
func Passed(score, total, passing int) bool {
	if total <= 0 {
		return false
	}
	return score*100 >= passing*total
}

// Evaluate builds a Result for the given questions and answers.
func Evaluate(questions []model.Question, answers map[string]model.ExamAnswer, passing int) Result {
	score, total := Score(questions, answers)
	r := Result{Score: score, Total: total, Passed: Passed(score, total, passing)}
	if total > 0 {
		r.Percentage = float64(score) * 100 / float64(total)
	}
	return r
}

// Latest keeps the last answer per question from answers ordered oldest first.
func Latest(answers []model.ExamAnswer) map[string]model.ExamAnswer {
	out := make(map[string]model.ExamAnswer, len(answers))
	for _, a := range answers {
		out[a.QuestionID] = a
	}
	return out
}
