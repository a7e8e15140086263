package quiz

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	appI18n "github.com/pavelanni/ytlearner/internal/i18n"
	"github.com/pavelanni/ytlearner/internal/metrics"
	"github.com/pavelanni/ytlearner/internal/model"
)

// Embedder turns text into a vector comparable by cosine similarity.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// embeddingModel names the vector space of e. Embedders that do not report a
// model share the empty name.
func embeddingModel(e Embedder) string {
	if m, ok := e.(interface{ EmbeddingModel() string }); ok {
		return m.EmbeddingModel()
	}
	return ""
}

// Grader scores submissions against a stored quiz.
type Grader struct {
	embedder Embedder
	model    string
	cfg      GradingConfig
	now      func() time.Time
	newID    func() string
}

// NewGrader creates a Grader.
func NewGrader(e Embedder, cfg GradingConfig) *Grader {
	return &Grader{
		embedder: e,
		model:    embeddingModel(e),
		cfg:      cfg,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Grade scores answers against q and returns a new attempt without a report.
// It never modifies q. When any embedding fails the whole attempt fails with
// ErrEmbeddingUnavailable.
func (g *Grader) Grade(ctx context.Context, q *model.Quiz, answers []model.Answer) (*model.Attempt, error) {
	start := time.Now()
	defer func() { metrics.GradingDuration.Observe(time.Since(start).Seconds()) }()

	for _, qs := range q.Questions {
		if err := checkVariant(qs); err != nil {
			return nil, fmt.Errorf("quiz %s: %w", q.ID, err)
		}
	}
	byID, err := indexAnswers(q, answers)
	if err != nil {
		return nil, err
	}

	feedbacks := make([]model.QuestionFeedback, len(q.Questions))
	eg, egCtx := errgroup.WithContext(ctx)
	if g.cfg.EmbedConcurrency > 0 {
		eg.SetLimit(g.cfg.EmbedConcurrency)
	}
	for i, qs := range q.Questions {
		raw, ok := byID[qs.ID]
		fb := model.QuestionFeedback{
			QuestionID:    qs.ID,
			Type:          qs.Type,
			StudentAnswer: raw,
			MaxPoints:     qs.MaxPoints,
		}
		if !ok || strings.TrimSpace(raw) == "" {
			fb.Feedback = appI18n.T(ctx, "FeedbackNoAnswer")
			feedbacks[i] = fb
			continue
		}
		fb.Answered = true

		if qs.Type == model.QuestionMCQ {
			feedbacks[i] = g.gradeMCQ(ctx, qs, fb)
			continue
		}
		eg.Go(func() error {
			graded, err := g.gradeShort(egCtx, qs, fb, q.EmbeddingModel)
			if err != nil {
				return err
			}
			feedbacks[i] = graded
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var earned float64
	possible := 0
	for i, fb := range feedbacks {
		earned += fb.PointsEarned
		possible += q.Questions[i].MaxPoints
	}
	earned = roundHalfUp(earned, g.cfg.PointGranularity)

	percent := 0.0
	if possible > 0 {
		percent = clamp(roundHalfUp(earned/float64(possible)*100, 0.01), 0, 100)
	}

	return &model.Attempt{
		ID:                g.newID(),
		QuizID:            q.ID,
		SubmittedAt:       g.now().UTC(),
		PointsEarned:      earned,
		PointsPossible:    possible,
		ScorePercent:      percent,
		QuestionFeedbacks: feedbacks,
	}, nil
}

func (g *Grader) gradeMCQ(ctx context.Context, qs model.Question, fb model.QuestionFeedback) model.QuestionFeedback {
	if normalizeChoice(fb.StudentAnswer) == normalizeChoice(qs.MCQ.CorrectAnswer) {
		fb.PointsEarned = float64(qs.MaxPoints)
		fb.Feedback = appI18n.T(ctx, "FeedbackMCQCorrect")
		return fb
	}
	fb.Feedback = appI18n.T(ctx, "FeedbackMCQIncorrect")
	return fb
}

func (g *Grader) gradeShort(ctx context.Context, qs model.Question, fb model.QuestionFeedback, refModel string) (model.QuestionFeedback, error) {
	vec, err := g.embedder.Embed(ctx, strings.TrimSpace(fb.StudentAnswer))
	if err != nil {
		return fb, fmt.Errorf("%w: question %d: %w", ErrEmbeddingUnavailable, qs.ID, err)
	}
	ref, err := g.reference(ctx, qs, refModel, len(vec))
	if err != nil {
		return fb, err
	}
	sim := cosineSimilarity(vec, ref)
	adjusted := g.cfg.AdjustedSimilarity(sim, fb.StudentAnswer, qs.Short.RubricKeywords)
	credit := g.cfg.Credit(adjusted)

	fb.PointsEarned = g.cfg.Points(credit, qs.MaxPoints)
	fb.Similarity = &adjusted

	data := map[string]any{"Similarity": fmt.Sprintf("%.2f", adjusted)}
	switch {
	case credit >= 1:
		fb.Feedback = appI18n.Td(ctx, "FeedbackShortFull", data)
	case credit > 0:
		fb.Feedback = appI18n.Td(ctx, "FeedbackShortPartial", data)
	default:
		fb.Feedback = appI18n.Td(ctx, "FeedbackShortZero", data)
	}
	return fb, nil
}

// reference returns the stored reference embedding of qs, re-embedding the
// reference answer when it came from another model or has the wrong size.
func (g *Grader) reference(ctx context.Context, qs model.Question, refModel string, dims int) ([]float64, error) {
	ref := qs.Short.AnswerEmbedding
	if refModel != g.model || len(ref) != dims {
		slog.Debug("re-embedding reference answer", "question_id", qs.ID,
			"stored_model", refModel, "model", g.model, "stored_dims", len(ref), "dims", dims)
		var err error
		ref, err = g.embedder.Embed(ctx, qs.Short.CorrectAnswer)
		if err != nil {
			return nil, fmt.Errorf("%w: reference answer for question %d: %w", ErrEmbeddingUnavailable, qs.ID, err)
		}
	}
	if dims == 0 || len(ref) != dims {
		return nil, fmt.Errorf("%w: question %d: embedding sizes %d and %d do not match",
			ErrEmbeddingUnavailable, qs.ID, dims, len(ref))
	}
	return ref, nil
}

func indexAnswers(q *model.Quiz, answers []model.Answer) (map[int]string, error) {
	byID := make(map[int]string, len(answers))
	for _, a := range answers {
		if _, dup := byID[a.QuestionID]; dup {
			return nil, fmt.Errorf("%w: question %d answered more than once", ErrInvalidSubmission, a.QuestionID)
		}
		if q.Question(a.QuestionID) == nil {
			return nil, fmt.Errorf("%w: question %d is not part of quiz %s", ErrUnknownQuestion, a.QuestionID, q.ID)
		}
		byID[a.QuestionID] = a.Answer
	}
	return byID, nil
}

func checkVariant(qs model.Question) error {
	switch qs.Type {
	case model.QuestionMCQ:
		if qs.MCQ == nil {
			return fmt.Errorf("question %d: mcq variant missing", qs.ID)
		}
	case model.QuestionShort:
		if qs.Short == nil {
			return fmt.Errorf("question %d: short-answer variant missing", qs.ID)
		}
	default:
		return fmt.Errorf("question %d: unsupported type %q", qs.ID, qs.Type)
	}
	return nil
}

// normalizeChoice lowercases and collapses whitespace for MCQ comparison.
func normalizeChoice(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
