package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/pavelanni/coursecore/internal/model"
)

// Templates holds the built-in summary prompts.
//
//go:embed templates/*.txt
var Templates embed.FS

// maxContentRunes bounds the lesson text sent to the model.
const maxContentRunes = 20000

var contentTagRegex = regexp.MustCompile(`(?i)</?\s*chapter-content\b[^>]*>`)

// Style represents a summary prompt variant.
type Style string

const (
	// StyleBrief asks for a few sentences.
	StyleBrief Style = "brief"
	// StyleStandard is the default summary style.
	StyleStandard Style = "standard"
	// StyleDetailed asks for study notes with key points.
	StyleDetailed Style = "detailed"
)

var validStyles = map[Style]bool{
	StyleBrief:    true,
	StyleStandard: true,
	StyleDetailed: true,
}

var (
	loadOnce         sync.Once
	loadErr          error
	summaryTemplates map[Style]*template.Template
)

// IsValidStyle checks if a summary style name is valid.
func IsValidStyle(s string) bool {
	return validStyles[Style(s)]
}

// SummaryData holds template data for summary prompts.
type SummaryData struct {
	Title       string
	Description string
	Content     string
}

// Load parses the summary templates from fsys, once.
func Load(fsys fs.FS) error {
	loadOnce.Do(func() {
		summaryTemplates = make(map[Style]*template.Template)
		for _, s := range []Style{StyleBrief, StyleStandard, StyleDetailed} {
			file := "templates/summary_" + string(s) + ".txt"
			content, err := fs.ReadFile(fsys, file)
			if err != nil {
				loadErr = errors.New("failed to read prompt file " + file + ": " + err.Error())
				return
			}
			tmpl, err := template.New("summary").Parse(string(content))
			if err != nil {
				loadErr = errors.New("failed to parse prompt template " + file + ": " + err.Error())
				return
			}
			summaryTemplates[s] = tmpl
		}
	})
	return loadErr
}

// BuildSummaryPrompt renders the system prompt for summarizing ch.
func BuildSummaryPrompt(style Style, ch model.Chapter) (string, error) {
	if summaryTemplates == nil {
		return "", errors.New("templates not initialized: call Load first")
	}
	tmpl, ok := summaryTemplates[style]
	if !ok {
		if loadErr != nil {
			return "", fmt.Errorf("templates load failed: %w", loadErr)
		}
		return "", errors.New("invalid summary style: " + string(style))
	}

	data := SummaryData{
		Title:       ch.Title,
		Description: strings.TrimSpace(ch.Description),
		Content:     sanitizeContent(ch.Content),
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func sanitizeContent(content string) string {
	content = contentTagRegex.ReplaceAllString(content, "")
	content = strings.TrimSpace(content)

	if content == "" {
		return "[No lesson text provided]"
	}
	if utf8.RuneCountInString(content) > maxContentRunes {
		runes := []rune(content)
		content = string(runes[:maxContentRunes]) + "\n\n[Lesson text truncated due to length]"
	}
	return content
}
