package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/shohin/internal/models"
	"github.com/hyperjump/shohin/internal/persist"
	"github.com/hyperjump/shohin/internal/pipeline"
	"github.com/hyperjump/shohin/internal/storage"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 20
	maxPageSize     = 200
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := BuildStatus(r.Context(), s.store, s.engine, s.config)
	if err != nil {
		s.logger.Error("status failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, st)
}

type productList struct {
	Products []*models.StoredDocument `json:"products"`
	Total    int64                    `json:"total"`
	Offset   int                      `json:"offset"`
	Limit    int                      `json:"limit"`
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		s.respondError(w, http.StatusBadRequest, "invalid offset")
		return
	}
	limit, err := queryInt(r, "limit", defaultPageSize)
	if err != nil || limit <= 0 {
		s.respondError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	ctx := r.Context()
	docs, err := s.store.List(ctx, offset, limit)
	if err != nil {
		s.logger.Error("list products failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	total, err := s.store.Count(ctx)
	if err != nil {
		s.logger.Error("count products failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if docs == nil {
		docs = []*models.StoredDocument{}
	}
	s.respondJSON(w, http.StatusOK, productList{Products: docs, Total: total, Offset: offset, Limit: limit})
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := s.store.Get(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		s.logger.Error("get product failed", zap.String("doc_id", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(query.Query) == "" {
		s.respondError(w, http.StatusBadRequest, "query is required")
		return
	}
	if err := query.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("search request", zap.String("query", query.Query), zap.Int("limit", query.Limit))
	response, err := s.engine.Search(r.Context(), &query)
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

type scrapeRequest struct {
	URL string `json:"url"`
}

// ScrapeResult is the response body of POST /api/v1/scrape.
type ScrapeResult struct {
	URL        string                `json:"url"`
	DocumentID string                `json:"document_id,omitempty"`
	Stage      models.Stage          `json:"stage"`
	OK         bool                  `json:"ok"`
	Error      string                `json:"error,omitempty"`
	Record     *models.ProductRecord `json:"record,omitempty"`
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	if s.scraper == nil {
		s.respondError(w, http.StatusServiceUnavailable, "scraping is not configured")
		return
	}
	var req scrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	if u, err := url.Parse(req.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		s.respondError(w, http.StatusBadRequest, "url must be an absolute http(s) URL")
		return
	}

	outcome := s.scraper.RunOne(r.Context(), req.URL)
	res := ScrapeResult{
		URL:        outcome.URL,
		DocumentID: outcome.DocumentID,
		Stage:      outcome.Stage,
		OK:         outcome.OK(),
		Error:      outcome.Error(),
		Record:     outcome.Record,
	}
	s.respondJSON(w, scrapeStatus(outcome), res)
}

func scrapeStatus(o models.Outcome) int {
	var perr *persist.Error
	switch {
	case o.OK():
		return http.StatusCreated
	case errors.Is(o.Err, pipeline.ErrEmptyContent):
		return http.StatusUnprocessableEntity
	case errors.As(o.Err, &perr):
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
