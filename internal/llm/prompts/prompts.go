package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/pavelanni/ytlearner/internal/model"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const (
	maxAnswerRunes     = 10000
	maxTranscriptRunes = 12000
)

var (
	studentAnswerRegex = regexp.MustCompile(`(?i)</?\s*student-answer\b[^>]*>`)
	videoMaterialRegex = regexp.MustCompile(`(?i)</?\s*video-material\b[^>]*>`)
)

var (
	loadOnce      sync.Once
	loadErr       error
	questionsTmpl *template.Template
	reportTmpl    *template.Template
)

// QuestionsData holds template data for question drafting prompts.
type QuestionsData struct {
	Title      string
	Summary    string
	Takeaways  []string
	Focus      string
	Transcript string
	NumMCQ     int
	NumShort   int
}

// ReportData holds template data for report drafting prompts.
type ReportData struct {
	SourceRef    string
	ScorePercent float64
	Tier         string
	MaxExercises int
	Items        []ReportItemData
}

// ReportItemData is one graded question in a report prompt.
type ReportItemData struct {
	QuestionID   int
	Type         string
	Topic        string
	Prompt       string
	PointsEarned float64
	MaxPoints    int
	Feedback     string
	Answer       string
}

func load() error {
	loadOnce.Do(func() {
		questionsTmpl, loadErr = template.ParseFS(templateFS, "templates/questions.tmpl")
		if loadErr != nil {
			loadErr = fmt.Errorf("parse questions template: %w", loadErr)
			return
		}
		reportTmpl, loadErr = template.ParseFS(templateFS, "templates/report.tmpl")
		if loadErr != nil {
			loadErr = fmt.Errorf("parse report template: %w", loadErr)
		}
	})
	return loadErr
}

// BuildQuestionsPrompt renders the question drafting prompt for m.
func BuildQuestionsPrompt(m model.Material, numMCQ, numShort int) (string, error) {
	if err := load(); err != nil {
		return "", err
	}
	data := QuestionsData{
		Title:      stripMaterialTags(m.Title),
		Summary:    stripMaterialTags(m.Summary),
		Focus:      stripMaterialTags(m.Focus),
		Transcript: truncate(stripMaterialTags(m.Transcript), maxTranscriptRunes),
		NumMCQ:     numMCQ,
		NumShort:   numShort,
	}
	for _, t := range m.Takeaways {
		data.Takeaways = append(data.Takeaways, stripMaterialTags(t))
	}
	return render(questionsTmpl, data)
}

// BuildReportPrompt renders the report drafting prompt for a graded attempt.
func BuildReportPrompt(req model.ReportRequest, maxExercises int) (string, error) {
	if err := load(); err != nil {
		return "", err
	}
	data := ReportData{
		SourceRef:    req.SourceRef,
		ScorePercent: req.ScorePercent,
		Tier:         string(req.Tier),
		MaxExercises: maxExercises,
	}
	for _, it := range req.Items {
		data.Items = append(data.Items, ReportItemData{
			QuestionID:   it.QuestionID,
			Type:         string(it.Type),
			Topic:        it.Topic,
			Prompt:       it.Prompt,
			PointsEarned: it.PointsEarned,
			MaxPoints:    it.MaxPoints,
			Feedback:     it.Feedback,
			Answer:       sanitizeAnswer(it.StudentAnswer),
		})
	}
	return render(reportTmpl, data)
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func stripMaterialTags(s string) string {
	return strings.TrimSpace(videoMaterialRegex.ReplaceAllString(s, ""))
}

func sanitizeAnswer(answer string) string {
	answer = studentAnswerRegex.ReplaceAllString(answer, "")
	answer = strings.TrimSpace(answer)

	if answer == "" {
		return "[No answer provided]"
	}
	if utf8.RuneCountInString(answer) > maxAnswerRunes {
		answer = truncate(answer, maxAnswerRunes) + "\n\n[Answer truncated due to length]"
	}
	return answer
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
