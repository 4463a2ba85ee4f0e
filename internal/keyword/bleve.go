package keyword

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/hyperjump/shohin/internal/models"
)

// searchFields are the text fields a query runs against.
var searchFields = []string{"title", "brand", "description", "tags", "categories", "features"}

// productDoc is the flattened form of a record that bleve indexes.
type productDoc struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Brand       string `json:"brand"`
	Description string `json:"description"`
	Tags        string `json:"tags"`
	Categories  string `json:"categories"`
	Features    string `json:"features"`
}

func newProductDoc(record *models.ProductRecord) productDoc {
	c := record.ProductContent
	desc := strings.TrimSpace(c.ShortDescription.String() + "\n" + c.FullDescription.String())
	features := append(models.Texts(c.KeyFeatures), models.Texts(c.BulletPoints)...)
	return productDoc{
		URL:         record.Metadata.SourceURL,
		Title:       record.ProductDetails.Title.String(),
		Brand:       record.ProductDetails.Brand.String(),
		Description: desc,
		Tags:        strings.Join(record.Tags(), "\n"),
		Categories:  strings.Join(models.Texts(record.AdditionalInformation.Categories), "\n"),
		Features:    strings.Join(features, "\n"),
	}
}

// BleveIndex implements Index using Bleve.
type BleveIndex struct {
	index bleve.Index
}

// NewBleveIndex creates or opens a Bleve index at path.
// If the path already exists, the existing index is opened and reused.
// If you change the index mapping in code, remove the index directory to force a full re-index.
func NewBleveIndex(path string) (*BleveIndex, error) {
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// NewMemoryIndex creates an in-memory index. It is used when no index path is
// configured and is rebuilt from the store on startup.
func NewMemoryIndex() (*BleveIndex, error) {
	index, err := bleve.NewMemOnly(newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

func newMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// standard analyzer: lowercase + tokenize, no stemming, so brand names match as typed
	textFieldMapping.Analyzer = standard.Name
	for _, f := range searchFields {
		docMapping.AddFieldMappingsAt(f, textFieldMapping)
	}
	urlFieldMapping := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("url", urlFieldMapping)
	im.AddDocumentMapping("product", docMapping)
	im.DefaultType = "product"
	im.DefaultMapping = docMapping
	return im
}

// Index indexes a record by id, replacing any earlier version.
func (b *BleveIndex) Index(ctx context.Context, id string, record *models.ProductRecord) error {
	return b.index.Index(id, newProductDoc(record))
}

// Search runs query over every text field and returns one page of hits plus
// the total hit count.
func (b *BleveIndex) Search(ctx context.Context, query string, limit, offset int, opts *SearchOptions) ([]*Result, uint64, error) {
	titleBoost := 1.0
	fuzzy := false
	fuzziness := 2
	if opts != nil {
		if opts.TitleBoost > 0 {
			titleBoost = opts.TitleBoost
		}
		fuzzy = opts.FuzzyEnabled
		if opts.Fuzziness > 0 {
			fuzziness = opts.Fuzziness
		}
	}

	fieldQueries := make([]blevequery.Query, 0, len(searchFields))
	for _, field := range searchFields {
		boost := 1.0
		if field == "title" {
			boost = titleBoost
		}
		fieldQueries = append(fieldQueries, buildFieldQuery(query, field, boost, fuzzy, fuzziness))
	}

	req := bleve.NewSearchRequestOptions(bleve.NewDisjunctionQuery(fieldQueries...), limit, offset, false)
	req.Highlight = bleve.NewHighlight()
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, 0, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*Result, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = &Result{ID: hit.ID, Score: hit.Score, Highlights: hit.Fragments}
	}
	return out, results.Total, nil
}

// buildFieldQuery matches query against one field. Fuzzy queries OR one
// FuzzyQuery per term.
func buildFieldQuery(query, field string, boost float64, fuzzy bool, fuzziness int) blevequery.Query {
	terms := strings.Fields(strings.ToLower(query))
	if !fuzzy || len(terms) == 0 {
		mq := bleve.NewMatchQuery(query)
		mq.SetField(field)
		mq.SetBoost(boost)
		return mq
	}
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		fq.SetField(field)
		fq.SetBoost(boost)
		queries = append(queries, fq)
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// DocCount returns the total number of documents in the index.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
