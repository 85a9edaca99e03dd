// Package catalog imports courses, modules, chapters and exams from JSON
// documents.
package catalog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/pavelanni/coursecore/internal/model"
	"github.com/pavelanni/coursecore/internal/service"
)

// Catalog is the import document.
type Catalog struct {
	Courses []Course `json:"courses"`
}

// Course is one course of a catalog. Teacher is the owner's username.
type Course struct {
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Teacher     string             `json:"teacher"`
	Status      model.CourseStatus `json:"status"`
	Modules     []Module           `json:"modules"`
}

// Module is one module of a course.
type Module struct {
	Title    string                 `json:"title"`
	Chapters []service.ChapterInput `json:"chapters"`
	Exam     *Exam                  `json:"exam,omitempty"`
}

// Exam is the exam of a module.
type Exam struct {
	service.ExamInput
	Status    model.ExamStatus        `json:"status"`
	Questions []service.QuestionInput `json:"questions"`
}

// Ledger remembers the content hash of every imported document.
type Ledger interface {
	GetImportedFileHash(ctx context.Context, path string) (string, error)
	SetImportedFileHash(ctx context.Context, path, hash string) error
}

// Result summarizes one import.
type Result struct {
	Skipped   bool
	Changed   bool
	Courses   int
	Chapters  int
	Questions int
}

// Importer creates catalog content through the service layer, so order
// indices and ownership follow the same rules as API writes.
type Importer struct {
	svc    *service.Service
	ledger Ledger
}

// NewImporter creates an Importer.
func NewImporter(svc *service.Service, ledger Ledger) *Importer {
	return &Importer{svc: svc, ledger: ledger}
}

// Import loads the document named name. A document already imported with
// the same content is skipped; a document whose content changed since its
// import is also skipped, to keep existing attempts intact.
func (im *Importer) Import(ctx context.Context, name string, data []byte) (Result, error) {
	hash := sha256sum(data)
	stored, err := im.ledger.GetImportedFileHash(ctx, name)
	if err != nil {
		return Result{}, fmt.Errorf("check import status for %s: %w", name, err)
	}
	if stored == hash {
		slog.Info("catalog unchanged, skipping", "name", name)
		return Result{Skipped: true}, nil
	}
	if stored != "" {
		slog.Warn("catalog changed since last import, skipping to avoid breaking existing attempts", "name", name)
		return Result{Skipped: true, Changed: true}, nil
	}

	var cat Catalog
	if err := json.Unmarshal(data, &cat); err != nil {
		return Result{}, fmt.Errorf("%w: parse %s: %v", model.ErrInvalidRange, name, err)
	}

	var res Result
	for _, c := range cat.Courses {
		if err := im.importCourse(ctx, c, &res); err != nil {
			return res, fmt.Errorf("import course %q from %s: %w", c.Title, name, err)
		}
	}
	if err := im.ledger.SetImportedFileHash(ctx, name, hash); err != nil {
		return res, fmt.Errorf("record import for %s: %w", name, err)
	}
	slog.Info("imported catalog", "name", name, "courses", res.Courses, "chapters", res.Chapters, "questions", res.Questions)
	return res, nil
}

func (im *Importer) importCourse(ctx context.Context, c Course, res *Result) error {
	teacher, err := im.svc.UserByUsername(ctx, c.Teacher)
	if err != nil {
		return err
	}
	owner := model.Actor{ID: teacher.ID, Role: teacher.Role}

	course, err := im.svc.CreateCourse(ctx, owner, service.CourseInput{Title: c.Title, Description: c.Description})
	if err != nil {
		return err
	}
	res.Courses++

	for _, m := range c.Modules {
		mod, err := im.svc.CreateModule(ctx, owner, course.ID, m.Title)
		if err != nil {
			return err
		}
		for _, ch := range m.Chapters {
			if _, err := im.svc.CreateChapter(ctx, owner, mod.ID, ch); err != nil {
				return fmt.Errorf("chapter %q: %w", ch.Title, err)
			}
			res.Chapters++
		}
		if m.Exam == nil {
			continue
		}
		exam, err := im.svc.CreateExam(ctx, owner, mod.ID, m.Exam.ExamInput)
		if err != nil {
			return fmt.Errorf("exam %q: %w", m.Exam.Title, err)
		}
		for _, q := range m.Exam.Questions {
			if _, err := im.svc.CreateQuestion(ctx, owner, service.QuestionParent{ExamID: exam.ID}, q); err != nil {
				return fmt.Errorf("question %q: %w", q.Text, err)
			}
			res.Questions++
		}
		if m.Exam.Status == model.ExamPublished {
			if _, err := im.svc.SetExamStatus(ctx, owner, exam.ID, model.ExamPublished); err != nil {
				return err
			}
		}
	}

	if c.Status == model.CoursePublished {
		if _, err := im.svc.SetCourseStatus(ctx, owner, course.ID, model.CoursePublished); err != nil {
			return err
		}
	}
	return nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
