// Package fetch turns a URL into rendered page content through the reader service.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hyperjump/shohin/internal/models"
	"github.com/hyperjump/shohin/pkg/utils"
	"go.uber.org/zap"
)

const (
	DefaultEndpoint = "https://r.jina.ai/"
	DefaultTimeout  = 30 * time.Second
)

// ErrEmptyURL is returned for a blank URL; no request is made.
var ErrEmptyURL = errors.New("url is empty")

// Options configures a Fetcher.
type Options struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// Fetcher calls the reader service. One Fetcher owns one HTTP client for its
// whole lifetime.
type Fetcher struct {
	client *resty.Client
	logger *zap.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// New creates a Fetcher. The API key is required.
func New(opts Options, options ...Option) (*Fetcher, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("reader api key is required")
	}
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	client := resty.New()
	client.SetBaseURL(opts.Endpoint)
	client.SetTimeout(opts.Timeout)
	client.SetAuthToken(opts.APIKey)
	client.SetHeaders(map[string]string{
		"Content-Type":          "application/json",
		"Accept":                "application/json",
		"X-With-Links-Summary":  "true",
		"X-With-Images-Summary": "true",
	})

	f := &Fetcher{client: client, logger: zap.NewNop()}
	for _, opt := range options {
		opt(f)
	}
	if f.logger == nil {
		f.logger = zap.NewNop()
	}
	return f, nil
}

type readerResponse struct {
	Code int             `json:"code"`
	Data json.RawMessage `json:"data"`
}

type readerData struct {
	Title   string          `json:"title"`
	URL     string          `json:"url"`
	Content string          `json:"content"`
	Links   json.RawMessage `json:"links"`
	Images  json.RawMessage `json:"images"`
}

// Fetch renders rawURL. A single attempt is made; failures are returned as *Error.
// Empty page content is not an error here.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*models.RawContent, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, &Error{URL: rawURL, Cause: ErrEmptyURL}
	}

	start := time.Now()
	resp, err := f.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"url": rawURL}).
		Post("")
	if err != nil {
		return nil, &Error{URL: rawURL, Cause: err}
	}
	if !resp.IsSuccess() {
		return nil, &Error{
			URL:    rawURL,
			Status: resp.StatusCode(),
			Body:   utils.Truncate(resp.String(), maxErrorBody),
		}
	}

	content, err := decode(resp.Body())
	if err != nil {
		return nil, &Error{URL: rawURL, Status: resp.StatusCode(), Cause: err}
	}
	content.URL = rawURL

	f.logger.Debug("fetched page",
		zap.String("url", rawURL),
		zap.Int("content_len", len(content.Content)),
		zap.Int("links", len(content.Links)),
		zap.Int("images", len(content.Images)),
		zap.Duration("took", time.Since(start)),
	)
	return content, nil
}

func decode(body []byte) (*models.RawContent, error) {
	var envelope readerResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode reader response: %w", err)
	}
	trimmed := bytes.TrimSpace(envelope.Data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errors.New("reader response has no data object")
	}
	var data readerData
	if err := json.Unmarshal(trimmed, &data); err != nil {
		return nil, fmt.Errorf("decode reader data: %w", err)
	}
	return &models.RawContent{
		Title:   data.Title,
		Content: data.Content,
		Links:   summary(data.Links),
		Images:  summary(data.Images),
	}, nil
}

// summary reads a links or images summary. The reader sends an object of
// text to URL; older responses send a list of [text, url] pairs. Anything
// else is ignored.
func summary(raw json.RawMessage) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal(raw, &m); err == nil {
		return m
	}
	var pairs [][]string
	if err := json.Unmarshal(raw, &pairs); err != nil {
		return nil
	}
	m = make(map[string]string, len(pairs))
	for _, p := range pairs {
		if len(p) == 2 {
			m[p[0]] = p[1]
		}
	}
	return m
}
