package store

import (
	"context"
	"fmt"

	"github.com/pavelanni/coursecore/internal/grading"
	"github.com/pavelanni/coursecore/internal/model"
	"github.com/pavelanni/coursecore/internal/ordering"
)

// ExportExamResults builds export-ready results for every attempt on an exam.
// Correctness comes from each answer's snapshot, not the current options.
func (s *Store) ExportExamResults(ctx context.Context, examID string) (model.ExamExport, error) {
	exam, err := s.ExamByID(ctx, examID)
	if err != nil {
		return model.ExamExport{}, err
	}
	questions, err := s.QuestionsOf(ctx, ordering.ExamQuestions(examID))
	if err != nil {
		return model.ExamExport{}, fmt.Errorf("list questions: %w", err)
	}
	byID := make(map[string]model.Question, len(questions))
	maxScore := 0
	for _, q := range questions {
		byID[q.ID] = q
		maxScore += q.Points
	}

	attempts, err := s.AttemptsForExam(ctx, examID)
	if err != nil {
		return model.ExamExport{}, fmt.Errorf("list attempts: %w", err)
	}

	optionText := make(map[string]string)
	lookupOption := func(id string) (string, error) {
		if id == "" {
			return "", nil
		}
		if t, ok := optionText[id]; ok {
			return t, nil
		}
		o, err := s.OptionByID(ctx, id)
		if err != nil {
			return "", err
		}
		optionText[id] = o.Text
		return o.Text, nil
	}

	// Track attempt count per user for attempt_number.
	attemptCount := make(map[string]int)
	users := make(map[string]model.User)

	export := model.ExamExport{
		ExamID:       exam.ID,
		Title:        exam.Title,
		PassingScore: exam.PassingScore,
		NumQuestions: len(questions),
		MaxScore:     maxScore,
		ExportedAt:   now(),
	}
	for _, a := range attempts {
		attemptCount[a.UserID]++

		u, ok := users[a.UserID]
		if !ok {
			if u, err = s.GetUserByID(ctx, a.UserID); err != nil {
				return model.ExamExport{}, fmt.Errorf("get user %s: %w", a.UserID, err)
			}
			users[a.UserID] = u
		}

		answers, err := s.AnswersForAttempts(ctx, a.ID)
		if err != nil {
			return model.ExamExport{}, fmt.Errorf("answers of attempt %s: %w", a.ID, err)
		}
		var summaries []model.AnswerSummary
		for _, ans := range answers {
			q := byID[ans.QuestionID]
			selected, err := lookupOption(ans.SelectedOptionID)
			if err != nil {
				return model.ExamExport{}, err
			}
			correct, err := lookupOption(ans.CorrectOptionID)
			if err != nil {
				return model.ExamExport{}, err
			}
			summaries = append(summaries, model.AnswerSummary{
				Question:       q.Text,
				Points:         q.Points,
				SelectedOption: selected,
				CorrectOption:  correct,
				Correct:        ans.IsCorrect(),
			})
		}

		export.Results = append(export.Results, model.AttemptResult{
			Username:      u.Username,
			Fullname:      u.Fullname,
			AttemptNumber: attemptCount[a.UserID],
			Status:        a.Status,
			StartedAt:     a.StartedAt,
			SubmittedAt:   a.SubmittedAt,
			Score:         a.Score,
			Passed:        a.Status == model.AttemptSubmitted && grading.Passed(a.Score, maxScore, exam.PassingScore),
			Answers:       summaries,
		})
	}
	return export, nil
}
