package quiz

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/ytlearner/internal/model"
)

func TestCreditBoundaries(t *testing.T) {
	cfg := DefaultGradingConfig()
	tests := []struct {
		name string
		sim  float64
		want float64
	}{
		{"exactly full", 0.85, 1},
		{"above full", 0.99, 1},
		{"just below full", 0.8499999, 0.5},
		{"exactly partial", 0.70, 0.5},
		{"just below partial", 0.6999999, 0},
		{"negative", -0.3, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cfg.Credit(tt.sim))
		})
	}
}

func TestAdjustedSimilarity(t *testing.T) {
	cfg := DefaultGradingConfig()
	kws := []string{"photosynthesis", "energy"}

	assert.InDelta(t, 0.9, cfg.AdjustedSimilarity(0.8, "it makes ENERGY", kws), 1e-9)
	assert.Equal(t, 1.0, cfg.AdjustedSimilarity(0.95, "photosynthesis", kws))
	assert.Equal(t, 0.8, cfg.AdjustedSimilarity(0.8, "no match here", kws))
	assert.Equal(t, 0.8, cfg.AdjustedSimilarity(0.8, "anything", nil))
	assert.Equal(t, 0.8, cfg.AdjustedSimilarity(0.8, "anything", []string{"  "}))
}

func TestPoints(t *testing.T) {
	cfg := DefaultGradingConfig()
	assert.Equal(t, 2.0, cfg.Points(1, 2))
	assert.Equal(t, 1.0, cfg.Points(0.5, 2))
	assert.Equal(t, 0.0, cfg.Points(0, 2))

	cfg.PartialCredit = 1.0 / 3
	assert.Equal(t, 0.33, cfg.Points(cfg.PartialCredit, 1))
	assert.Equal(t, 0.67, cfg.Points(2.0/3, 1))
	assert.Equal(t, 0.13, roundHalfUp(0.125, 0.01))
	assert.Equal(t, 1.0, cfg.Points(1.2, 1))
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float64{1, 2}, []float64{2, 4}), 1e-12)
	assert.InDelta(t, 0.0, cosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-12)
	assert.Equal(t, 0.0, cosineSimilarity(nil, nil))
	assert.Equal(t, 0.0, cosineSimilarity([]float64{1}, []float64{1, 0}))
	assert.Equal(t, 0.0, cosineSimilarity([]float64{0, 0}, []float64{1, 0}))
}

func newTestGrader(e Embedder) *Grader {
	g := NewGrader(e, DefaultGradingConfig())
	g.newID = func() string { return "attempt-1" }
	return g
}

func TestGradeMCQNormalization(t *testing.T) {
	g := newTestGrader(&stubEmbedder{})
	a, err := g.Grade(context.Background(), scenarioQuiz(), []model.Answer{{QuestionID: 0, Answer: "  b "}})
	require.NoError(t, err)
	assert.Equal(t, 1.0, a.QuestionFeedbacks[0].PointsEarned)
	assert.Equal(t, "Correct.", a.QuestionFeedbacks[0].Feedback)
}

func TestGradeShortBands(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		sim    float64
		want   float64
	}{
		{"full", "a faithful restatement", 0.9, 2},
		{"partial", "a vague restatement", 0.75, 1},
		{"zero", "unrelated", 0.2, 0},
		{"keyword lifts partial to full", "it stores energy", 0.78, 2},
		{"keyword lifts zero to partial", "energy", 0.62, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emb := &stubEmbedder{vectors: map[string][]float64{tt.answer: unitAt(tt.sim)}}
			a, err := newTestGrader(emb).Grade(context.Background(), scenarioQuiz(),
				[]model.Answer{{QuestionID: 1, Answer: tt.answer}})
			require.NoError(t, err)
			fb := a.QuestionFeedbacks[1]
			assert.Equal(t, tt.want, fb.PointsEarned)
			require.NotNil(t, fb.Similarity)
			assert.True(t, fb.Answered)
		})
	}
}

func TestGradeUnanswered(t *testing.T) {
	emb := &stubEmbedder{}
	a, err := newTestGrader(emb).Grade(context.Background(), scenarioQuiz(),
		[]model.Answer{{QuestionID: 1, Answer: "   "}})
	require.NoError(t, err)

	require.Len(t, a.QuestionFeedbacks, 2)
	for _, fb := range a.QuestionFeedbacks {
		assert.False(t, fb.Answered)
		assert.Zero(t, fb.PointsEarned)
		assert.Equal(t, "No answer was given.", fb.Feedback)
	}
	assert.Zero(t, emb.calls.Load())
	assert.Equal(t, 0.0, a.ScorePercent)
	assert.Equal(t, 3, a.PointsPossible)
}

func TestGradeRejectsBadSubmissions(t *testing.T) {
	tests := []struct {
		name    string
		answers []model.Answer
		wantErr error
	}{
		{"duplicate", []model.Answer{{QuestionID: 0, Answer: "A"}, {QuestionID: 0, Answer: "B"}}, ErrInvalidSubmission},
		{"unknown", []model.Answer{{QuestionID: 7, Answer: "A"}}, ErrUnknownQuestion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emb := &stubEmbedder{}
			_, err := newTestGrader(emb).Grade(context.Background(), scenarioQuiz(), tt.answers)
			require.ErrorIs(t, err, tt.wantErr)
			assert.True(t, IsCallerError(err))
			assert.Zero(t, emb.calls.Load())
		})
	}

	_, err := newTestGrader(&stubEmbedder{}).Grade(context.Background(), scenarioQuiz(),
		[]model.Answer{{QuestionID: 7, Answer: "A"}})
	assert.ErrorContains(t, err, "7")
}

func TestGradeEmbeddingFailure(t *testing.T) {
	emb := &stubEmbedder{err: errors.New("connection refused")}
	_, err := newTestGrader(emb).Grade(context.Background(), scenarioQuiz(),
		[]model.Answer{{QuestionID: 0, Answer: "B"}, {QuestionID: 1, Answer: "something"}})
	require.ErrorIs(t, err, ErrEmbeddingUnavailable)
	assert.True(t, IsRetryable(err))
	assert.ErrorContains(t, err, "connection refused")
}

func TestGradeReembedsResizedReference(t *testing.T) {
	q := scenarioQuiz()
	answer := q.Questions[1].Short.CorrectAnswer
	emb := &stubEmbedder{vectors: map[string][]float64{answer: {0, 0, 1}}}

	a, err := newTestGrader(emb).Grade(context.Background(), q, []model.Answer{{QuestionID: 1, Answer: answer}})
	require.NoError(t, err)
	assert.Equal(t, 2.0, a.QuestionFeedbacks[1].PointsEarned)
	assert.Equal(t, int32(2), emb.calls.Load())
	assert.Equal(t, []float64{1, 0}, q.Questions[1].Short.AnswerEmbedding)
}

func TestGradeEmbeddingSizeMismatch(t *testing.T) {
	q := scenarioQuiz()
	emb := &stubEmbedder{vectors: map[string][]float64{
		"light to sugar":                   {1, 0, 0},
		q.Questions[1].Short.CorrectAnswer: {1, 0},
	}}

	_, err := newTestGrader(emb).Grade(context.Background(), q, []model.Answer{{QuestionID: 1, Answer: "light to sugar"}})
	require.ErrorIs(t, err, ErrEmbeddingUnavailable)
	assert.True(t, IsRetryable(err))
	assert.ErrorContains(t, err, "do not match")
}

func TestGradeEmptyStudentEmbedding(t *testing.T) {
	emb := &stubEmbedder{vectors: map[string][]float64{"???": {}}}
	_, err := newTestGrader(emb).Grade(context.Background(), scenarioQuiz(), []model.Answer{{QuestionID: 1, Answer: "???"}})
	require.ErrorIs(t, err, ErrEmbeddingUnavailable)
}

func TestGradeReembedsOtherModel(t *testing.T) {
	q := scenarioQuiz()
	q.EmbeddingModel = "embed-v1"
	vectors := map[string][]float64{
		"light to sugar":                   unitAt(0.9),
		q.Questions[1].Short.CorrectAnswer: {0, 1},
	}

	same := &stubEmbedder{model: "embed-v1", vectors: vectors}
	a, err := newTestGrader(same).Grade(context.Background(), q, []model.Answer{{QuestionID: 1, Answer: "light to sugar"}})
	require.NoError(t, err)
	assert.Equal(t, 2.0, a.QuestionFeedbacks[1].PointsEarned)
	assert.Equal(t, int32(1), same.calls.Load())

	other := &stubEmbedder{model: "embed-v2", vectors: vectors}
	a, err = newTestGrader(other).Grade(context.Background(), q, []model.Answer{{QuestionID: 1, Answer: "light to sugar"}})
	require.NoError(t, err)
	assert.Equal(t, 0.0, a.QuestionFeedbacks[1].PointsEarned)
	assert.Equal(t, int32(2), other.calls.Load())
}

func TestGradeDeterministic(t *testing.T) {
	answers := []model.Answer{{QuestionID: 0, Answer: "C"}, {QuestionID: 1, Answer: "light becomes sugar"}}
	emb := &stubEmbedder{vectors: map[string][]float64{"light becomes sugar": unitAt(0.72)}}
	g := newTestGrader(emb)

	first, err := g.Grade(context.Background(), scenarioQuiz(), answers)
	require.NoError(t, err)
	second, err := g.Grade(context.Background(), scenarioQuiz(), answers)
	require.NoError(t, err)

	assert.Equal(t, first.QuestionFeedbacks, second.QuestionFeedbacks)
	assert.Equal(t, first.ScorePercent, second.ScorePercent)
}

func TestGradeAggregation(t *testing.T) {
	q := scenarioQuiz()
	emb := &stubEmbedder{vectors: map[string][]float64{"roughly right": unitAt(0.75)}}
	a, err := newTestGrader(emb).Grade(context.Background(), q,
		[]model.Answer{{QuestionID: 0, Answer: "B"}, {QuestionID: 1, Answer: "roughly right"}})
	require.NoError(t, err)

	sum := 0.0
	for _, fb := range a.QuestionFeedbacks {
		sum += fb.PointsEarned
		assert.GreaterOrEqual(t, fb.PointsEarned, 0.0)
		assert.LessOrEqual(t, fb.PointsEarned, float64(fb.MaxPoints))
	}
	assert.InDelta(t, sum, a.PointsEarned, 1e-9)
	assert.Equal(t, 2.0, a.PointsEarned)
	assert.Equal(t, 66.67, a.ScorePercent)
	assert.Equal(t, "attempt-1", a.ID)
	assert.Equal(t, q.ID, a.QuizID)

	// The stored quiz is left untouched.
	assert.Equal(t, scenarioQuiz(), q)
}

func TestGradeEmptyQuiz(t *testing.T) {
	q := &model.Quiz{ID: "empty"}
	a, err := newTestGrader(&stubEmbedder{}).Grade(context.Background(), q, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, a.ScorePercent)
	assert.Equal(t, 0, a.PointsPossible)
}

func TestGradeCorruptQuiz(t *testing.T) {
	q := scenarioQuiz()
	q.Questions[1].Short = nil
	_, err := newTestGrader(&stubEmbedder{}).Grade(context.Background(), q, nil)
	assert.ErrorContains(t, err, "short-answer variant missing")
}
