package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/shohin/internal/models"
	"github.com/hyperjump/shohin/internal/server"
	"github.com/hyperjump/shohin/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

func parseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, OutputJSON:
		return OutputFormat(s), nil
	}
	return "", fmt.Errorf("unknown output format %q; use text or json", s)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// WriteSearchResults writes search results to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	fmt.Fprintf(w, "\nFound %d results in %dms", response.Total, response.QueryTime)
	if response.AutoFuzzy {
		fmt.Fprint(w, " (no exact matches; showing fuzzy matches)")
	}
	fmt.Fprint(w, "\n\n")
	for _, result := range response.Results {
		doc := result.Document
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Rank: %d | Score: %.4f\n", result.Rank, result.Score)
		fmt.Fprintf(w, "ID: %s\n", doc.ID)
		if doc.Title != "" {
			fmt.Fprintf(w, "Title: %s\n", doc.Title)
		}
		fmt.Fprintf(w, "URL: %s\n", doc.SourceURL)
		if doc.Record != nil {
			if desc := doc.Record.ProductContent.ShortDescription.String(); desc != "" {
				fmt.Fprintf(w, "\n%s\n", utils.Truncate(desc, 200))
			}
		}
		fmt.Fprintln(w)
	}
	return nil
}

type batchReport struct {
	Summary  models.Summary   `json:"summary"`
	Outcomes []outcomeSummary `json:"outcomes"`
	Output   string           `json:"output,omitempty"`
}

type outcomeSummary struct {
	URL        string       `json:"url"`
	DocumentID string       `json:"document_id,omitempty"`
	Stage      models.Stage `json:"stage"`
	OK         bool         `json:"ok"`
	Error      string       `json:"error,omitempty"`
}

// WriteOutcomes writes a batch summary. output is the exported file, if any.
func WriteOutcomes(w io.Writer, outcomes []models.Outcome, output string, format OutputFormat) error {
	summary := models.Summarize(outcomes)
	if format == OutputJSON {
		report := batchReport{Summary: summary, Outcomes: make([]outcomeSummary, 0, len(outcomes)), Output: output}
		for _, o := range outcomes {
			report.Outcomes = append(report.Outcomes, outcomeSummary{
				URL: o.URL, DocumentID: o.DocumentID, Stage: o.Stage, OK: o.OK(), Error: o.Error(),
			})
		}
		return writeJSON(w, report)
	}
	fmt.Fprintf(w, "\nProcessed %d URL(s): %d stored, %d failed\n", summary.Total, summary.Succeeded, summary.Failed)
	if output != "" {
		fmt.Fprintf(w, "Wrote %d record(s) to %s\n", summary.Extracted, output)
	}
	return nil
}

// WriteDocuments writes stored documents, one line each in text format.
func WriteDocuments(w io.Writer, docs []*models.StoredDocument, total int64, format OutputFormat) error {
	if format == OutputJSON {
		if docs == nil {
			docs = []*models.StoredDocument{}
		}
		return writeJSON(w, docs)
	}
	for _, doc := range docs {
		title := doc.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Fprintf(w, "%s  %s  %s  %s\n", doc.ID[:min(12, len(doc.ID))], doc.UpdatedAt.Format("2006-01-02 15:04"),
			TruncateWords(title, 8), doc.SourceURL)
	}
	fmt.Fprintf(w, "\n%d of %d document(s)\n", len(docs), total)
	return nil
}

// WriteStatus writes engine and storage status.
func WriteStatus(w io.Writer, st *server.Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	fmt.Fprintf(w, "documents:          %d   # stored product records\n", st.Documents)
	fmt.Fprintf(w, "index_size:         %d   # records in the keyword index\n", st.IndexSize)
	if st.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:   %d   # local storage + index on disk\n", *st.DiskUsageBytes)
	}
	if c := st.Config; c != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# configuration")
		fmt.Fprintf(w, "storage_driver:     %s\n", c.StorageDriver)
		if c.DatabasePath != "" {
			fmt.Fprintf(w, "database_path:      %s\n", c.DatabasePath)
		}
		if c.MongoDatabase != "" {
			fmt.Fprintf(w, "mongo_database:     %s\n", c.MongoDatabase)
		}
		if c.BleveIndexPath != "" {
			fmt.Fprintf(w, "bleve_index_path:   %s\n", c.BleveIndexPath)
		}
		fmt.Fprintf(w, "reader_endpoint:    %s\n", c.ReaderEndpoint)
		fmt.Fprintf(w, "model:              %s\n", c.Model)
		fmt.Fprintf(w, "normalize_urls:     %t\n", c.NormalizeURLs)
	}
	return nil
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
