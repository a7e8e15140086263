package quiz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pavelanni/ytlearner/internal/content"
	"github.com/pavelanni/ytlearner/internal/metrics"
	"github.com/pavelanni/ytlearner/internal/model"
)

// Generative drafts questions and reports. Implementations that are not
// configured report Enabled() == false and are never called.
type Generative interface {
	Enabled() bool
	DraftQuestions(ctx context.Context, req model.QuestionRequest) ([]model.QuestionDraft, error)
	DraftReport(ctx context.Context, req model.ReportRequest) (*model.ReportDraft, error)
}

func enabled(g Generative) bool {
	return g != nil && g.Enabled()
}

// Generator builds quizzes from source material.
type Generator struct {
	source           content.Source
	gen              Generative
	embedder         Embedder
	cfg              GenerationConfig
	embedConcurrency int
	now              func() time.Time
}

// NewGenerator creates a Generator. gen may be nil, in which case only the
// deterministic path is used.
func NewGenerator(src content.Source, gen Generative, emb Embedder, cfg GenerationConfig) *Generator {
	return &Generator{
		source:           src,
		gen:              gen,
		embedder:         emb,
		cfg:              cfg,
		embedConcurrency: DefaultGradingConfig().EmbedConcurrency,
		now:              time.Now,
	}
}

// ValidateRequest checks generation parameters before any work is done.
func (g *Generator) ValidateRequest(sourceRef string, numMCQ, numShort int) error {
	if !content.ValidRef(sourceRef) {
		return fmt.Errorf("%w: source ref %q", ErrInvalidParameter, sourceRef)
	}
	counts := []struct {
		name string
		n    int
	}{{"num_mcq", numMCQ}, {"num_short", numShort}}
	for _, c := range counts {
		if c.n < g.cfg.MinCount || c.n > g.cfg.MaxCount {
			return fmt.Errorf("%w: %s=%d outside [%d, %d]", ErrInvalidParameter, c.name, c.n, g.cfg.MinCount, g.cfg.MaxCount)
		}
	}
	if numMCQ+numShort == 0 {
		return fmt.Errorf("%w: quiz must have at least one question", ErrInvalidParameter)
	}
	return nil
}

// Generate produces a new quiz for the source. It tries the generative
// capability first and falls back to deterministic extraction on any
// failure, including timeouts.
func (g *Generator) Generate(ctx context.Context, sourceRef string, numMCQ, numShort int) (*model.Quiz, error) {
	if err := g.ValidateRequest(sourceRef, numMCQ, numShort); err != nil {
		return nil, err
	}

	m, err := g.source.Fetch(ctx, sourceRef)
	if err != nil {
		if errors.Is(err, content.ErrNotFound) {
			return nil, fmt.Errorf("source %s: %w", sourceRef, ErrNotFound)
		}
		if errors.Is(err, content.ErrInvalidRef) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidParameter, err)
		}
		return nil, fmt.Errorf("fetch source %s: %w", sourceRef, err)
	}

	questions, source := g.draft(ctx, m, numMCQ, numShort), model.SourceLLM
	if questions == nil {
		source = model.SourceFallback
		questions, err = fallbackQuestions(m, numMCQ, numShort, g.cfg)
		if err != nil {
			return nil, err
		}
	}

	if err := g.embedReferences(ctx, questions); err != nil {
		return nil, err
	}

	total := 0
	for _, q := range questions {
		total += q.MaxPoints
	}
	metrics.QuizGenerations.WithLabelValues(source).Inc()
	slog.Info("generated quiz", "source_ref", sourceRef, "generator", source,
		"num_mcq", numMCQ, "num_short", numShort)

	return &model.Quiz{
		ID:             ComputeID(sourceRef, numMCQ, numShort),
		SourceRef:      sourceRef,
		NumMCQ:         numMCQ,
		NumShort:       numShort,
		Questions:      questions,
		TotalPoints:    total,
		Generator:      source,
		EmbeddingModel: embeddingModel(g.embedder),
		CreatedAt:      g.now().UTC(),
	}, nil
}

// draft returns validated model-drafted questions, or nil to request the fallback.
func (g *Generator) draft(ctx context.Context, m model.Material, numMCQ, numShort int) []model.Question {
	if !enabled(g.gen) {
		return nil
	}
	dctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	drafts, err := g.gen.DraftQuestions(dctx, model.QuestionRequest{Material: m, NumMCQ: numMCQ, NumShort: numShort})
	if err != nil {
		slog.Warn("question drafting failed, using fallback", "source_ref", m.Ref, "error", err)
		return nil
	}
	questions, err := g.fromDrafts(drafts, numMCQ, numShort)
	if err != nil {
		slog.Warn("question draft rejected, using fallback", "source_ref", m.Ref, "error", err)
		return nil
	}
	return questions
}

func (g *Generator) fromDrafts(drafts []model.QuestionDraft, numMCQ, numShort int) ([]model.Question, error) {
	var mcqs, shorts []model.QuestionDraft
	for _, d := range drafts {
		switch normalizeType(d.Type) {
		case model.QuestionMCQ:
			mcqs = append(mcqs, d)
		case model.QuestionShort:
			shorts = append(shorts, d)
		}
	}
	if len(mcqs) < numMCQ || len(shorts) < numShort {
		return nil, fmt.Errorf("%w: draft has %d mcq and %d short, want %d and %d",
			ErrGenerationUnavailable, len(mcqs), len(shorts), numMCQ, numShort)
	}

	questions := make([]model.Question, 0, numMCQ+numShort)
	for _, d := range mcqs[:numMCQ] {
		q, err := g.mcqFromDraft(len(questions), d)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	for _, d := range shorts[:numShort] {
		q, err := g.shortFromDraft(len(questions), d)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, nil
}

func (g *Generator) mcqFromDraft(id int, d model.QuestionDraft) (model.Question, error) {
	prompt := strings.TrimSpace(d.Prompt)
	if prompt == "" {
		return model.Question{}, fmt.Errorf("%w: question %d has an empty prompt", ErrGenerationUnavailable, id)
	}
	var options []string
	seen := make(map[string]bool)
	correct := ""
	for _, o := range d.Options {
		o = strings.TrimSpace(o)
		key := normalizeChoice(o)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		options = append(options, o)
		if key == normalizeChoice(d.CorrectAnswer) {
			correct = o
		}
	}
	if len(options) < 2 {
		return model.Question{}, fmt.Errorf("%w: question %d has %d distinct options", ErrGenerationUnavailable, id, len(options))
	}
	if correct == "" {
		return model.Question{}, fmt.Errorf("%w: question %d correct answer is not among its options", ErrGenerationUnavailable, id)
	}
	return model.Question{
		ID:        id,
		Type:      model.QuestionMCQ,
		Prompt:    prompt,
		MaxPoints: g.cfg.MCQPoints,
		Topic:     topicFor(d, correct),
		MCQ:       &model.MCQ{Options: options, CorrectAnswer: correct},
	}, nil
}

func (g *Generator) shortFromDraft(id int, d model.QuestionDraft) (model.Question, error) {
	prompt := strings.TrimSpace(d.Prompt)
	answer := strings.TrimSpace(d.CorrectAnswer)
	if prompt == "" || answer == "" {
		return model.Question{}, fmt.Errorf("%w: question %d needs a prompt and a reference answer", ErrGenerationUnavailable, id)
	}
	var keywords []string
	for _, kw := range d.RubricKeywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	if len(keywords) == 0 {
		keywords = extractKeywords(answer, rubricKeywordCount)
	}
	return model.Question{
		ID:        id,
		Type:      model.QuestionShort,
		Prompt:    prompt,
		MaxPoints: g.cfg.ShortPoints,
		Topic:     topicFor(d, answer),
		Short:     &model.ShortAnswer{CorrectAnswer: answer, RubricKeywords: keywords},
	}, nil
}

// embedReferences fills AnswerEmbedding for every short-answer question.
func (g *Generator) embedReferences(ctx context.Context, questions []model.Question) error {
	eg, egCtx := errgroup.WithContext(ctx)
	if g.embedConcurrency > 0 {
		eg.SetLimit(g.embedConcurrency)
	}
	for i := range questions {
		q := &questions[i]
		if q.Type != model.QuestionShort {
			continue
		}
		eg.Go(func() error {
			vec, err := g.embedder.Embed(egCtx, q.Short.CorrectAnswer)
			if err != nil {
				return fmt.Errorf("%w: reference answer for question %d: %w", ErrEmbeddingUnavailable, q.ID, err)
			}
			q.Short.AnswerEmbedding = vec
			return nil
		})
	}
	return eg.Wait()
}

func normalizeType(t model.QuestionType) model.QuestionType {
	switch strings.ToLower(strings.TrimSpace(string(t))) {
	case "mcq", "multiple_choice", "multiple-choice":
		return model.QuestionMCQ
	case "short", "short_answer", "short-answer":
		return model.QuestionShort
	}
	return t
}

func topicFor(d model.QuestionDraft, fallback string) string {
	if t := strings.TrimSpace(d.Topic); t != "" {
		return t
	}
	if kws := extractKeywords(d.Prompt+" "+fallback, 1); len(kws) > 0 {
		return kws[0]
	}
	return ""
}
