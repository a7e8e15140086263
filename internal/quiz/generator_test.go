package quiz

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/ytlearner/internal/model"
)

func newTestGenerator(gen Generative, emb Embedder) *Generator {
	cfg := DefaultGenerationConfig()
	cfg.Timeout = 50 * time.Millisecond
	g := NewGenerator(testSource(), gen, emb, cfg)
	g.now = func() time.Time { return time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC) }
	return g
}

func TestValidateRequest(t *testing.T) {
	g := newTestGenerator(nil, &stubEmbedder{})
	tests := []struct {
		name     string
		ref      string
		mcq      int
		short    int
		wantErr  bool
		contains string
	}{
		{"defaults", "photo101", 3, 2, false, ""},
		{"upper bound", "photo101", 10, 10, false, ""},
		{"only short", "photo101", 0, 1, false, ""},
		{"negative mcq", "photo101", -1, 2, true, "num_mcq=-1"},
		{"too many short", "photo101", 3, 11, true, "num_short=11"},
		{"empty quiz", "photo101", 0, 0, true, "at least one"},
		{"bad ref", "../etc", 1, 1, true, "source ref"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.ValidateRequest(tt.ref, tt.mcq, tt.short)
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidParameter)
			assert.ErrorContains(t, err, tt.contains)
		})
	}
}

func TestGenerateFallback(t *testing.T) {
	emb := &stubEmbedder{model: "embed-v1"}
	g := newTestGenerator(nil, emb)

	q, err := g.Generate(context.Background(), "photo101", 3, 2)
	require.NoError(t, err)

	assert.Equal(t, ComputeID("photo101", 3, 2), q.ID)
	assert.Equal(t, model.SourceFallback, q.Generator)
	assert.Equal(t, "embed-v1", q.EmbeddingModel)
	require.Len(t, q.Questions, 5)
	assert.Equal(t, 3*1+2*2, q.TotalPoints)
	assert.Equal(t, int32(2), emb.calls.Load())

	for i, qs := range q.Questions {
		assert.Equal(t, i, qs.ID)
		assert.NotEmpty(t, qs.Prompt)
		assert.NotEmpty(t, qs.Topic)
		if i < 3 {
			require.Equal(t, model.QuestionMCQ, qs.Type)
			assert.GreaterOrEqual(t, len(qs.MCQ.Options), 2)
			assert.Contains(t, qs.MCQ.Options, qs.MCQ.CorrectAnswer)
			assert.Contains(t, qs.Prompt, blank)
			assert.True(t, slices.IsSorted(qs.MCQ.Options))
			continue
		}
		require.Equal(t, model.QuestionShort, qs.Type)
		assert.NotEmpty(t, qs.Short.CorrectAnswer)
		assert.NotEmpty(t, qs.Short.AnswerEmbedding)
		assert.NotEmpty(t, qs.Short.RubricKeywords)
	}

	again, err := g.Generate(context.Background(), "photo101", 3, 2)
	require.NoError(t, err)
	assert.Equal(t, q.Questions, again.Questions)
}

func TestGenerateFallbackFirstQuestion(t *testing.T) {
	q, err := newTestGenerator(nil, &stubEmbedder{}).Generate(context.Background(), "photo101", 1, 0)
	require.NoError(t, err)

	mcq := q.Questions[0]
	assert.Equal(t, "photosynthesis", mcq.MCQ.CorrectAnswer)
	assert.Equal(t, "Fill in the blank: _____ converts sunlight into chemical energy inside plant leaves", mcq.Prompt)
	assert.NotContains(t, mcq.MCQ.Options, "converts")
}

func TestGenerateInsufficientMaterial(t *testing.T) {
	g := newTestGenerator(nil, &stubEmbedder{})

	_, err := g.Generate(context.Background(), "tiny", 1, 0)
	require.ErrorIs(t, err, ErrGenerationUnavailable)

	_, err = g.Generate(context.Background(), "photo101", 5, 5)
	require.ErrorIs(t, err, ErrGenerationUnavailable)
}

func TestGenerateSourceNotFound(t *testing.T) {
	_, err := newTestGenerator(nil, &stubEmbedder{}).Generate(context.Background(), "nope", 1, 1)
	require.ErrorIs(t, err, ErrNotFound)
	assert.True(t, IsNotFound(err))
}

func TestGenerateInvalidParameterSkipsSource(t *testing.T) {
	src := &mockSource{}
	g := NewGenerator(src, nil, &stubEmbedder{}, DefaultGenerationConfig())

	_, err := g.Generate(context.Background(), "photo101", 11, 0)
	require.ErrorIs(t, err, ErrInvalidParameter)
	src.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
}

func TestGenerateEmbeddingFailure(t *testing.T) {
	_, err := newTestGenerator(nil, &stubEmbedder{err: errors.New("503")}).Generate(context.Background(), "photo101", 1, 1)
	require.ErrorIs(t, err, ErrEmbeddingUnavailable)
}

func validDrafts() []model.QuestionDraft {
	return []model.QuestionDraft{
		{Type: "multiple_choice", Prompt: "Which pigment absorbs light?", Options: []string{"Chlorophyll", "Keratin", "Melanin"},
			CorrectAnswer: "chlorophyll", Topic: "pigments"},
		{Type: "short_answer", Prompt: "Why do plants need light?", CorrectAnswer: "Light powers the conversion of carbon dioxide into sugar."},
	}
}

func TestGenerateFromDrafts(t *testing.T) {
	gen := &mockGenerative{enabled: true}
	gen.On("DraftQuestions", mock.Anything, mock.MatchedBy(func(r model.QuestionRequest) bool {
		return r.NumMCQ == 1 && r.NumShort == 1 && r.Material.Ref == "photo101"
	})).Return(validDrafts(), nil)

	q, err := newTestGenerator(gen, &stubEmbedder{}).Generate(context.Background(), "photo101", 1, 1)
	require.NoError(t, err)
	gen.AssertExpectations(t)

	assert.Equal(t, model.SourceLLM, q.Generator)
	require.Len(t, q.Questions, 2)

	mcq := q.Questions[0]
	assert.Equal(t, model.QuestionMCQ, mcq.Type)
	assert.Equal(t, "Chlorophyll", mcq.MCQ.CorrectAnswer)
	assert.Equal(t, 1, mcq.MaxPoints)
	assert.Equal(t, "pigments", mcq.Topic)

	short := q.Questions[1]
	assert.Equal(t, model.QuestionShort, short.Type)
	assert.Equal(t, 1, short.ID)
	assert.Equal(t, 2, short.MaxPoints)
	assert.Equal(t, []string{"conversion", "dioxide", "powers"}, short.Short.RubricKeywords)
	assert.NotEmpty(t, short.Short.AnswerEmbedding)
	assert.Equal(t, 3, q.TotalPoints)
}

func TestGenerateRejectsBadDrafts(t *testing.T) {
	tests := []struct {
		name   string
		drafts []model.QuestionDraft
		err    error
	}{
		{"call failed", nil, errors.New("model offline")},
		{"too few", validDrafts()[:1], nil},
		{"answer not an option", []model.QuestionDraft{
			{Type: "mcq", Prompt: "p", Options: []string{"x", "y"}, CorrectAnswer: "z"},
			validDrafts()[1],
		}, nil},
		{"duplicate options", []model.QuestionDraft{
			{Type: "mcq", Prompt: "p", Options: []string{"x", " X "}, CorrectAnswer: "x"},
			validDrafts()[1],
		}, nil},
		{"empty reference", []model.QuestionDraft{
			validDrafts()[0],
			{Type: "short", Prompt: "p"},
		}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &mockGenerative{enabled: true}
			gen.On("DraftQuestions", mock.Anything, mock.Anything).Return(tt.drafts, tt.err)

			q, err := newTestGenerator(gen, &stubEmbedder{}).Generate(context.Background(), "photo101", 1, 1)
			require.NoError(t, err)
			assert.Equal(t, model.SourceFallback, q.Generator)
		})
	}
}

func TestGenerateDraftTimeoutFallsBack(t *testing.T) {
	gen := &mockGenerative{enabled: true}
	gen.On("DraftQuestions", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, context.DeadlineExceeded)

	start := time.Now()
	q, err := newTestGenerator(gen, &stubEmbedder{}).Generate(context.Background(), "photo101", 2, 1)
	require.NoError(t, err)
	assert.Equal(t, model.SourceFallback, q.Generator)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestGenerateDisabledCapabilityNotCalled(t *testing.T) {
	gen := &mockGenerative{enabled: false}
	q, err := newTestGenerator(gen, &stubEmbedder{}).Generate(context.Background(), "photo101", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, model.SourceFallback, q.Generator)
	gen.AssertNotCalled(t, "DraftQuestions", mock.Anything, mock.Anything)
}

func TestBlankOut(t *testing.T) {
	tests := []struct {
		name     string
		sentence string
		term     string
		want     string
	}{
		{"simple", "Every cell has a membrane", "cell", "Every _____ has a membrane"},
		{"inside longer word", "Cellular respiration runs in every cell.", "cell", "Cellular respiration runs in every _____."},
		{"case and repeats", "Light and light-dependent LIGHT", "light", "_____ and light-dependent _____"},
		{"adjacent", "cell cell", "cell", "_____ _____"},
		{"cyrillic", "Клетка и клеточный обмен", "клетка", "_____ и клеточный обмен"},
		{"absent", "Nothing here", "cell", "Nothing here"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, blankOut(tt.sentence, tt.term))
		})
	}
}

func TestExtractKeywords(t *testing.T) {
	got := extractKeywords("The Calvin cycle fixes carbon dioxide into glucose molecules.", 3)
	assert.Equal(t, []string{"molecules", "dioxide", "glucose"}, got)

	assert.Empty(t, extractKeywords("a an the of", 3))
	assert.Equal(t, []string{"alpha"}, extractKeywords("alpha alpha ALPHA 2026", 5))
}

func TestComputeID(t *testing.T) {
	a := ComputeID("vid", 3, 2)
	assert.Equal(t, a, ComputeID("vid", 3, 2))
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, ComputeID("vid", 2, 3))
	assert.NotEqual(t, a, ComputeID("vid2", 3, 2))
	assert.NotEqual(t, ComputeID("a1", 2, 3), ComputeID("a", 12, 3))
}
