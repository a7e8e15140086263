package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pavelanni/ytlearner/internal/llm/prompts"
	"github.com/pavelanni/ytlearner/internal/model"

	openai "github.com/sashabaranov/go-openai"
)

// ErrNotConfigured is returned when a call needs a model that was not set.
var ErrNotConfigured = errors.New("llm: not configured")

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api          *openai.Client
	model        string
	embedModel   string
	maxExercises int
}

// New creates a new LLM client. An empty modelName disables drafting;
// an empty embeddingModel disables Embed.
func New(baseURL, apiKey, modelName, embeddingModel string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:          openai.NewClientWithConfig(config),
		model:        modelName,
		embedModel:   embeddingModel,
		maxExercises: 3,
	}
}

// WithMaxExercises sets the micro exercise limit stated in report prompts.
func (c *Client) WithMaxExercises(n int) *Client {
	if n > 0 {
		c.maxExercises = n
	}
	return c
}

// Enabled reports whether a chat model is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.api != nil && c.model != ""
}

// CanEmbed reports whether an embedding model is configured.
func (c *Client) CanEmbed() bool {
	return c != nil && c.api != nil && c.embedModel != ""
}

// EmbeddingModel returns the configured embedding model name.
func (c *Client) EmbeddingModel() string { return c.embedModel }

// Ping checks that the endpoint answers.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.api == nil {
		return ErrNotConfigured
	}
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("LLM ping: %w", err)
	}
	return nil
}

type questionsResponse struct {
	Questions []model.QuestionDraft `json:"questions"`
}

// DraftQuestions asks the model for quiz questions about the material.
func (c *Client) DraftQuestions(ctx context.Context, req model.QuestionRequest) ([]model.QuestionDraft, error) {
	if !c.Enabled() {
		return nil, ErrNotConfigured
	}
	prompt, err := prompts.BuildQuestionsPrompt(req.Material, req.NumMCQ, req.NumShort)
	if err != nil {
		return nil, err
	}

	var out questionsResponse
	if err := c.completeJSON(ctx, prompt, 0.4, &out); err != nil {
		return nil, err
	}
	if len(out.Questions) == 0 {
		return nil, fmt.Errorf("LLM returned no questions")
	}
	return out.Questions, nil
}

// DraftReport asks the model for a learning report on a graded attempt.
func (c *Client) DraftReport(ctx context.Context, req model.ReportRequest) (*model.ReportDraft, error) {
	if !c.Enabled() {
		return nil, ErrNotConfigured
	}
	prompt, err := prompts.BuildReportPrompt(req, c.maxExercises)
	if err != nil {
		return nil, err
	}

	var out model.ReportDraft
	if err := c.completeJSON(ctx, prompt, 0.3, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Embed returns the embedding of text.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	if !c.CanEmbed() {
		return nil, ErrNotConfigured
	}
	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: []string{text},
		Model: openai.EmbeddingModel(c.embedModel),
	})
	if err != nil {
		return nil, fmt.Errorf("LLM embedding call: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("LLM returned no embedding")
	}

	vec := make([]float64, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vec[i] = float64(v)
	}
	return vec, nil
}

func (c *Client) completeJSON(ctx context.Context, prompt string, temperature float32, out any) error {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: temperature,
	})
	if err != nil {
		return fmt.Errorf("LLM API call: %w", err)
	}

	if len(resp.Choices) == 0 {
		return fmt.Errorf("LLM returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "raw", raw)

	if err := json.Unmarshal([]byte(cleanJSON(raw)), out); err != nil {
		return fmt.Errorf("parse LLM response: %w (raw: %s)", err, raw)
	}
	return nil
}
