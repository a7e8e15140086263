package quiz

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/ytlearner/internal/model"
	"github.com/pavelanni/ytlearner/internal/store"
)

func newTestService(t *testing.T, emb Embedder) (*Service, store.Store) {
	t.Helper()
	s := store.NewMemory(store.DefaultQuizTTL)
	cfg := DefaultConfig()
	svc := NewService(s,
		NewGenerator(testSource(), nil, emb, cfg.Generation),
		NewGrader(emb, cfg.Grading),
		NewReporter(nil, cfg.Report),
	)
	return svc, s
}

func seedQuiz(t *testing.T, s store.Store, q *model.Quiz) {
	t.Helper()
	_, err := s.GetOrCreate(context.Background(), q.ID, func(context.Context) (*model.Quiz, error) { return q, nil })
	require.NoError(t, err)
}

func TestSubmitAllCorrect(t *testing.T) {
	answer := "Photosynthesis turns light into energy"
	emb := &stubEmbedder{vectors: map[string][]float64{answer: unitAt(0.9)}}
	svc, s := newTestService(t, emb)
	seedQuiz(t, s, scenarioQuiz())

	a, err := svc.SubmitAttempt(context.Background(), "scenario", []model.Answer{
		{QuestionID: 0, Answer: "B"},
		{QuestionID: 1, Answer: answer},
	})
	require.NoError(t, err)

	assert.Equal(t, 1.0, a.QuestionFeedbacks[0].PointsEarned)
	assert.Equal(t, 2.0, a.QuestionFeedbacks[1].PointsEarned)
	assert.Equal(t, 3.0, a.PointsEarned)
	assert.Equal(t, 100.0, a.ScorePercent)
	assert.Equal(t, model.TierExcellent, a.Report.Tier)
	assert.Empty(t, a.Report.Weaknesses)

	stored, err := svc.GetAttempt(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ScorePercent, stored.ScorePercent)
	assert.Equal(t, a.Report.Tier, stored.Report.Tier)
}

func TestSubmitAllWrong(t *testing.T) {
	answer := "I don't know"
	emb := &stubEmbedder{vectors: map[string][]float64{answer: unitAt(0.1)}}
	svc, s := newTestService(t, emb)
	seedQuiz(t, s, scenarioQuiz())

	a, err := svc.SubmitAttempt(context.Background(), "scenario", []model.Answer{
		{QuestionID: 0, Answer: "A"},
		{QuestionID: 1, Answer: answer},
	})
	require.NoError(t, err)

	assert.Zero(t, a.PointsEarned)
	assert.Zero(t, a.ScorePercent)
	assert.Equal(t, model.TierStruggling, a.Report.Tier)
	assert.NotEmpty(t, a.Report.Weaknesses)
	assert.Empty(t, a.Report.Strengths)
	assert.Equal(t, "Incorrect. Review this part of the video and try again.", a.QuestionFeedbacks[0].Feedback)
}

func TestSubmitFailureStoresNothing(t *testing.T) {
	svc, s := newTestService(t, &stubEmbedder{err: errors.New("timeout")})
	seedQuiz(t, s, scenarioQuiz())

	_, err := svc.SubmitAttempt(context.Background(), "scenario", []model.Answer{{QuestionID: 1, Answer: "x"}})
	require.ErrorIs(t, err, ErrEmbeddingUnavailable)

	_, err = svc.SubmitAttempt(context.Background(), "scenario", []model.Answer{{QuestionID: 5, Answer: "x"}})
	require.ErrorIs(t, err, ErrUnknownQuestion)

	list, err := svc.ListAttempts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSubmitUnknownQuiz(t *testing.T) {
	svc, _ := newTestService(t, &stubEmbedder{})
	_, err := svc.SubmitAttempt(context.Background(), "missing", nil)
	require.ErrorIs(t, err, ErrNotFound)
	assert.True(t, IsNotFound(err))
}

func TestCreateOrFetchQuizIdempotent(t *testing.T) {
	emb := &stubEmbedder{}
	svc, s := newTestService(t, emb)
	ctx := context.Background()

	first, err := svc.CreateOrFetchQuiz(ctx, "photo101", 3, 2)
	require.NoError(t, err)
	second, err := svc.CreateOrFetchQuiz(ctx, "photo101", 3, 2)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, ComputeID("photo101", 3, 2), first.ID)
	assert.Len(t, first.Questions, 5)
	assert.Equal(t, int32(2), emb.calls.Load(), "second request must not regenerate")

	stored, err := s.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, ToPublic(stored), *first)

	other, err := svc.CreateOrFetchQuiz(ctx, "photo101", 2, 2)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestCreateOrFetchQuizErrors(t *testing.T) {
	svc, _ := newTestService(t, &stubEmbedder{})
	ctx := context.Background()

	_, err := svc.CreateOrFetchQuiz(ctx, "photo101", 11, 0)
	assert.ErrorIs(t, err, ErrInvalidParameter)

	_, err = svc.CreateOrFetchQuiz(ctx, "unknown", 1, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.CreateOrFetchQuiz(ctx, "tiny", 1, 1)
	assert.ErrorIs(t, err, ErrGenerationUnavailable)
}

func TestEndToEndWithGeneratedQuiz(t *testing.T) {
	svc, s := newTestService(t, &stubEmbedder{})
	ctx := context.Background()

	pub, err := svc.CreateOrFetchQuiz(ctx, "photo101", 2, 1)
	require.NoError(t, err)
	full, err := s.Get(ctx, pub.ID)
	require.NoError(t, err)

	answers := make([]model.Answer, 0, len(full.Questions))
	for _, q := range full.Questions {
		if q.Type == model.QuestionMCQ {
			answers = append(answers, model.Answer{QuestionID: q.ID, Answer: q.MCQ.CorrectAnswer})
		} else {
			answers = append(answers, model.Answer{QuestionID: q.ID, Answer: q.Short.CorrectAnswer})
		}
	}
	a, err := svc.SubmitAttempt(ctx, pub.ID, answers)
	require.NoError(t, err)
	assert.Equal(t, 100.0, a.ScorePercent)
	assert.Equal(t, float64(pub.TotalPoints), a.PointsEarned)
}
