// Package extract turns rendered page content into a structured product record
// using an OpenAI-compatible chat model.
package extract

import (
	"context"
	"time"

	"github.com/hyperjump/shohin/internal/models"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const (
	DefaultModel = "gpt-4o-mini"
	// DefaultMaxContentChars bounds the page text placed in the prompt.
	DefaultMaxContentChars = 100000
)

// ChatCompleter is the part of the OpenAI client the extractor needs.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// NewClient returns an OpenAI client for apiKey. baseURL may be empty for the
// public API or point at any compatible endpoint.
func NewClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

// Extractor extracts product records with one chat completion per page.
type Extractor struct {
	client          ChatCompleter
	model           string
	temperature     float32
	maxContentChars int
	now             func() time.Time
	logger          *zap.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// WithModel sets the chat model name.
func WithModel(model string) Option {
	return func(e *Extractor) {
		if model != "" {
			e.model = model
		}
	}
}

// WithTemperature sets the sampling temperature. Zero leaves the API default.
func WithTemperature(t float32) Option {
	return func(e *Extractor) { e.temperature = t }
}

// WithMaxContentChars bounds the page text sent to the model. Zero disables the bound.
func WithMaxContentChars(n int) Option {
	return func(e *Extractor) { e.maxContentChars = n }
}

// WithClock sets the time source used for the template timestamp.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}

// New creates an Extractor. client may be nil, in which case every Extract
// call fails with ErrNotConfigured.
func New(client ChatCompleter, opts ...Option) *Extractor {
	e := &Extractor{
		client:          client,
		model:           DefaultModel,
		maxContentChars: DefaultMaxContentChars,
		now:             time.Now,
		logger:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e
}

// Extract asks the model for a record describing content. Failures are
// returned as *Error and no record is produced.
func (e *Extractor) Extract(ctx context.Context, content *models.RawContent, rawURL string) (*models.ProductRecord, error) {
	if e.client == nil {
		return nil, &Error{URL: rawURL, Cause: ErrNotConfigured}
	}
	if content == nil {
		content = &models.RawContent{URL: rawURL}
	}

	prompt, err := userPrompt(content, rawURL, e.now(), e.maxContentChars)
	if err != nil {
		return nil, &Error{URL: rawURL, Cause: err}
	}

	start := time.Now()
	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: e.temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, &Error{URL: rawURL, Cause: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &Error{URL: rawURL, Cause: ErrEmptyReply}
	}

	record, err := ParseRecord([]byte(resp.Choices[0].Message.Content))
	if err != nil {
		return nil, &Error{URL: rawURL, Cause: err}
	}
	record.Metadata.SourceURL = rawURL
	if record.Metadata.SchemaVersion == "" {
		record.Metadata.SchemaVersion = models.SchemaVersion
	}

	e.logger.Debug("extracted record",
		zap.String("url", rawURL),
		zap.String("model", e.model),
		zap.Int("tags", len(record.Tags())),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("took", time.Since(start)),
	)
	return record, nil
}
