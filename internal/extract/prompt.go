package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"
	"unicode/utf8"

	_ "embed"

	"github.com/hyperjump/shohin/internal/models"
)

//go:embed record_template.json.tmpl
var recordTemplateText string

const systemPrompt = "You are an expert e-commerce data extractor and product classifier. " +
	"Extract all available information from the provided content and format it according to the JSON structure provided. " +
	"Generate comprehensive tags covering: product type, style, color, material, occasion, season, fit, trend, demographic, price tier. " +
	"If information is not available, use null for single values or empty arrays [] for lists. " +
	"Always generate at least 20 descriptive tags. Respond with a single JSON object and nothing else."

const userPromptHeader = "Analyze this webpage content and extract all available information into the structure below.\n\n" +
	"Webpage content:\n"

const userPromptFooter = "\n\nFormat the response exactly like this JSON structure, filling in all available information:\n\n"

var recordTemplate = template.Must(template.New("record").Funcs(template.FuncMap{
	"json": func(v any) (string, error) {
		b, err := json.Marshal(v)
		return string(b), err
	},
}).Parse(recordTemplateText))

type templateData struct {
	URL           string
	Timestamp     string
	SchemaVersion string
}

// renderTemplate returns the record template for rawURL stamped at now.
func renderTemplate(rawURL string, now time.Time) (string, error) {
	var buf bytes.Buffer
	err := recordTemplate.Execute(&buf, templateData{
		URL:           rawURL,
		Timestamp:     now.UTC().Format(time.RFC3339),
		SchemaVersion: models.SchemaVersion,
	})
	if err != nil {
		return "", fmt.Errorf("render record template: %w", err)
	}
	return buf.String(), nil
}

// userPrompt builds the user message: page content followed by the record template.
// Content longer than maxChars runes is cut.
func userPrompt(content *models.RawContent, rawURL string, now time.Time, maxChars int) (string, error) {
	tmpl, err := renderTemplate(rawURL, now)
	if err != nil {
		return "", err
	}
	text := sanitize(content.Content)
	if maxChars > 0 && utf8.RuneCountInString(text) > maxChars {
		text = string([]rune(text)[:maxChars])
	}

	var b strings.Builder
	b.WriteString(userPromptHeader)
	if content.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n\n", content.Title)
	}
	b.WriteString(text)
	b.WriteString(userPromptFooter)
	b.WriteString(tmpl)
	return b.String(), nil
}

// sanitize replaces invalid UTF-8 sequences with the replacement character.
func sanitize(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "\uFFFD")
}
