package quiz

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pavelanni/ytlearner/internal/metrics"
	"github.com/pavelanni/ytlearner/internal/model"
	"github.com/pavelanni/ytlearner/internal/store"
)

// Service runs the quiz lifecycle: create or fetch, grade, report, persist.
type Service struct {
	store     store.Store
	generator *Generator
	grader    *Grader
	reporter  *Reporter
}

// NewService wires the lifecycle components together.
func NewService(s store.Store, gen *Generator, grader *Grader, reporter *Reporter) *Service {
	return &Service{store: s, generator: gen, grader: grader, reporter: reporter}
}

// CreateOrFetchQuiz returns the public form of the quiz for the parameters,
// generating and storing it on first request.
func (s *Service) CreateOrFetchQuiz(ctx context.Context, sourceRef string, numMCQ, numShort int) (*model.PublicQuiz, error) {
	if err := s.generator.ValidateRequest(sourceRef, numMCQ, numShort); err != nil {
		return nil, err
	}
	id := ComputeID(sourceRef, numMCQ, numShort)

	created := false
	q, err := s.store.GetOrCreate(ctx, id, func(ctx context.Context) (*model.Quiz, error) {
		created = true
		return s.generator.Generate(ctx, sourceRef, numMCQ, numShort)
	})
	if err != nil {
		return nil, fmt.Errorf("quiz %s: %w", id, err)
	}
	if created {
		metrics.QuizLookups.WithLabelValues("miss").Inc()
	} else {
		metrics.QuizLookups.WithLabelValues("hit").Inc()
	}

	pub := ToPublic(q)
	return &pub, nil
}

// SubmitAttempt grades answers against the stored quiz, attaches a learning
// report and stores the attempt. Nothing is stored when grading fails.
func (s *Service) SubmitAttempt(ctx context.Context, quizID string, answers []model.Answer) (*model.Attempt, error) {
	q, err := s.store.Get(ctx, quizID)
	if err != nil {
		return nil, err
	}

	attempt, err := s.grader.Grade(ctx, q, answers)
	if err != nil {
		return nil, err
	}
	attempt.Report = s.reporter.Build(ctx, q, attempt)

	if err := s.store.SaveAttempt(ctx, attempt); err != nil {
		return nil, fmt.Errorf("save attempt: %w", err)
	}
	metrics.AttemptsGraded.Inc()
	slog.Info("attempt graded",
		"attempt_id", attempt.ID,
		"quiz_id", quizID,
		"score_percent", attempt.ScorePercent,
		"tier", attempt.Report.Tier,
		"report_source", attempt.Report.Source,
	)
	return attempt, nil
}

// GetAttempt returns a stored attempt.
func (s *Service) GetAttempt(ctx context.Context, attemptID string) (*model.Attempt, error) {
	return s.store.GetAttempt(ctx, attemptID)
}

// ListAttempts returns every stored attempt, newest first.
func (s *Service) ListAttempts(ctx context.Context) ([]model.Attempt, error) {
	return s.store.ListAttempts(ctx)
}
