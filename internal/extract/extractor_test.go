package extract

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/shohin/internal/models"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalRecord = `{
  "product_details": {"title": "Trail Runner", "brand": "Acme", "price_information": {"current_price": 89.5, "currency": "USD"}},
  "classification_tags": {"all_tags": ["running shoe", "trail"]},
  "metadata": {"source_url": "https://wrong.test/", "schema_version": "1.0"}
}`

// fakeChat answers every request with reply, or err when set.
type fakeChat struct {
	reply string
	err   error
	reqs  []openai.ChatCompletionRequest
}

func (f *fakeChat) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: f.reply}}},
	}, nil
}

func fixedClock() time.Time {
	return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
}

func TestExtract_success(t *testing.T) {
	chat := &fakeChat{reply: minimalRecord}
	e := New(chat, WithClock(fixedClock))

	rec, err := e.Extract(context.Background(), &models.RawContent{Title: "Trail Runner", Content: "A great shoe"}, "https://a.test/p1")
	require.NoError(t, err)
	assert.Equal(t, "Trail Runner", rec.ProductDetails.Title.String())
	assert.Equal(t, "89.5", rec.ProductDetails.PriceInformation.CurrentPrice.String())
	assert.False(t, rec.ProductDetails.SKU.Valid)
	assert.NotNil(t, rec.ProductContent.KeyFeatures)
	assert.Equal(t, "https://a.test/p1", rec.Metadata.SourceURL)
	assert.Equal(t, models.SchemaVersion, rec.Metadata.SchemaVersion)

	require.Len(t, chat.reqs, 1)
	req := chat.reqs[0]
	assert.Equal(t, DefaultModel, req.Model)
	require.NotNil(t, req.ResponseFormat)
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, req.ResponseFormat.Type)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)
	assert.Contains(t, req.Messages[0].Content, "at least 20 descriptive tags")
	assert.Equal(t, openai.ChatMessageRoleUser, req.Messages[1].Role)
	assert.Contains(t, req.Messages[1].Content, "A great shoe")
	assert.Contains(t, req.Messages[1].Content, `"source_url": "https://a.test/p1"`)
	assert.Contains(t, req.Messages[1].Content, `"scrape_timestamp": "2025-03-01T12:00:00Z"`)
}

func TestExtract_allTopLevelKeysPresent(t *testing.T) {
	e := New(&fakeChat{reply: `{"product_details": null}`})
	rec, err := e.Extract(context.Background(), &models.RawContent{Content: "x"}, "https://a.test/p1")
	require.NoError(t, err)

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	for _, key := range models.TopLevelKeys {
		assert.Contains(t, m, key)
	}
}

func TestExtract_failures(t *testing.T) {
	tests := []struct {
		name  string
		chat  *fakeChat
		cause string
	}{
		{"unparseable", &fakeChat{reply: "Sorry, I cannot help with that."}, "not valid JSON"},
		{"empty reply", &fakeChat{reply: "  "}, "empty reply"},
		{"array reply", &fakeChat{reply: `[1,2]`}, "record shape"},
		{"unrelated object", &fakeChat{reply: `{"answer": 42}`}, "record shape"},
		{"section is a string", &fakeChat{reply: `{"product_details": "Trail Runner"}`}, "record shape"},
		{"list is a string", &fakeChat{reply: `{"product_content": {"key_features": "light"}}`}, "record shape"},
		{"scalar is an object", &fakeChat{reply: `{"product_details": {"title": {"text": "x"}}}`}, "record shape"},
		{"nested object in flat section", &fakeChat{reply: `{"additional_information": {"manufacturer": {"contact_info": {"email": "a@b.test"}}}}`}, "record shape"},
		{"list in flat list item", &fakeChat{reply: `{"reviews_and_ratings": {"featured_reviews": [{"rating": 5, "images": ["a.jpg"]}]}}`}, "record shape"},
		{"collaborator error", &fakeChat{err: errors.New("rate limited")}, "rate limited"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(tt.chat)
			rec, err := e.Extract(context.Background(), &models.RawContent{Content: "x"}, "https://a.test/p2")
			assert.Nil(t, rec)
			var ee *Error
			require.True(t, errors.As(err, &ee), "got %v", err)
			assert.Equal(t, "https://a.test/p2", ee.URL)
			assert.Contains(t, err.Error(), tt.cause)
		})
	}
}

func TestExtract_notConfigured(t *testing.T) {
	e := New(nil)
	_, err := e.Extract(context.Background(), &models.RawContent{Content: "x"}, "https://a.test/p1")
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestExtract_contentIsBounded(t *testing.T) {
	chat := &fakeChat{reply: minimalRecord}
	e := New(chat, WithMaxContentChars(10))
	_, err := e.Extract(context.Background(), &models.RawContent{Content: strings.Repeat("é", 50)}, "https://a.test/p1")
	require.NoError(t, err)
	prompt := chat.reqs[0].Messages[1].Content
	assert.Contains(t, prompt, strings.Repeat("é", 10))
	assert.NotContains(t, prompt, strings.Repeat("é", 11))
}

func TestRenderTemplate_isValidJSON(t *testing.T) {
	out, err := renderTemplate(`https://a.test/p?q="quoted"`, fixedClock())
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &m))
	for _, key := range models.TopLevelKeys {
		assert.Contains(t, m, key)
	}
	meta := m["metadata"].(map[string]any)
	assert.Equal(t, `https://a.test/p?q="quoted"`, meta["source_url"])
}

func TestProductSchema_compiles(t *testing.T) {
	_, err := ProductSchema()
	require.NoError(t, err)
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "hello\uFFFDworld", sanitize("hello\x80world"))
	assert.Equal(t, "café", sanitize("caf\xc3\xa9"))
}

// TestExtract_openAIClient exercises the real client against a fake
// chat-completions endpoint.
func TestExtract_openAIClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), `"json_object"`)

		resp := openai.ChatCompletionResponse{
			ID:     "chatcmpl-1",
			Object: "chat.completion",
			Model:  DefaultModel,
			Choices: []openai.ChatCompletionChoice{{
				Index:        0,
				Message:      openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: minimalRecord},
				FinishReason: openai.FinishReasonStop,
			}},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	e := New(NewClient("sk-test", srv.URL+"/v1"))
	rec, err := e.Extract(context.Background(), &models.RawContent{Content: "A great shoe"}, "https://a.test/p1")
	require.NoError(t, err)
	assert.Equal(t, "Acme", rec.ProductDetails.Brand.String())
	assert.Equal(t, []string{"running shoe", "trail"}, rec.Tags())
}
