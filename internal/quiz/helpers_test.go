package quiz

import (
	"context"
	"math"
	"strings"
	"sync/atomic"

	"github.com/stretchr/testify/mock"

	"github.com/pavelanni/ytlearner/internal/content"
	"github.com/pavelanni/ytlearner/internal/model"
)

// stubEmbedder returns fixed vectors for known texts and a deterministic
// text-derived vector otherwise.
type stubEmbedder struct {
	model   string
	vectors map[string][]float64
	err     error
	calls   atomic.Int32
}

func (s *stubEmbedder) EmbeddingModel() string { return s.model }

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return []float64{float64(len(text)), float64(strings.Count(text, "e")) + 1, 1}, nil
}

// unitAt returns a 2-d unit vector whose cosine with [1, 0] is sim.
func unitAt(sim float64) []float64 {
	return []float64{sim, math.Sqrt(1 - sim*sim)}
}

type mockGenerative struct {
	mock.Mock
	enabled bool
}

func (m *mockGenerative) Enabled() bool { return m.enabled }

func (m *mockGenerative) DraftQuestions(ctx context.Context, req model.QuestionRequest) ([]model.QuestionDraft, error) {
	args := m.Called(ctx, req)
	drafts, _ := args.Get(0).([]model.QuestionDraft)
	return drafts, args.Error(1)
}

func (m *mockGenerative) DraftReport(ctx context.Context, req model.ReportRequest) (*model.ReportDraft, error) {
	args := m.Called(ctx, req)
	d, _ := args.Get(0).(*model.ReportDraft)
	return d, args.Error(1)
}

type mockSource struct {
	mock.Mock
}

func (m *mockSource) Fetch(ctx context.Context, ref string) (model.Material, error) {
	args := m.Called(ctx, ref)
	return args.Get(0).(model.Material), args.Error(1)
}

var photosynthesis = model.Material{
	Title: "How plants make food",
	Summary: "Photosynthesis converts sunlight into chemical energy inside plant leaves. " +
		"Chlorophyll molecules absorb mostly blue and red wavelengths of light. " +
		"The Calvin cycle fixes carbon dioxide into glucose molecules.",
	Takeaways: []string{
		"Stomata on the leaf surface regulate the exchange of gases",
		"Oxygen is released as a byproduct when water molecules are split",
		"Plants store excess glucose as starch for later growth",
	},
}

func testSource() content.Source {
	return content.Static{"photo101": photosynthesis, "tiny": {Summary: "Too short."}}
}

// scenarioQuiz is a one-MCQ, one-short quiz with a unit reference embedding.
func scenarioQuiz() *model.Quiz {
	return &model.Quiz{
		ID:        "scenario",
		SourceRef: "photo101",
		NumMCQ:    1,
		NumShort:  1,
		Questions: []model.Question{
			{
				ID: 0, Type: model.QuestionMCQ, Prompt: "Which pigment absorbs light?", MaxPoints: 1, Topic: "pigments",
				MCQ: &model.MCQ{Options: []string{"A", "B", "C", "D"}, CorrectAnswer: "B"},
			},
			{
				ID: 1, Type: model.QuestionShort, Prompt: "What does photosynthesis do?", MaxPoints: 2, Topic: "photosynthesis",
				Short: &model.ShortAnswer{
					CorrectAnswer:   "Photosynthesis converts light energy into chemical energy.",
					AnswerEmbedding: []float64{1, 0},
					RubricKeywords:  []string{"photosynthesis", "energy"},
				},
			},
		},
		TotalPoints: 3,
		Generator:   model.SourceFallback,
	}
}
