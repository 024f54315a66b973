// Package httpapi exposes the ingestion and retrieval pipeline over
// HTTP: bearer-token authenticated JSON routes under /v2/intel and
// /v2/context.
package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/lueurxax/telegram-digest-bot/internal/domain"
	"github.com/lueurxax/telegram-digest-bot/internal/ingest"
	"github.com/lueurxax/telegram-digest-bot/internal/platform/observability"
	"github.com/lueurxax/telegram-digest-bot/internal/retriever"
	db "github.com/lueurxax/telegram-digest-bot/internal/storage"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
	maxSectionIDs     = 8
)

// Store is the subset of the storage layer the HTTP layer reads
// directly (status lookups outside the ingest/retriever packages).
type Store interface {
	ingest.Store
	retriever.Store
	GetLatestJobError(ctx context.Context, articleID string) (string, error)
	Ping(ctx context.Context) error
}

// Server serves the /v2/* API.
type Server struct {
	store     Store
	retriever *retriever.Retriever
	token     string
	port      int
	logger    *zerolog.Logger
}

// NewServer builds a Server. token is the bearer token every /v2/*
// request must present.
func NewServer(store Store, port int, token string, logger *zerolog.Logger) *Server {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &Server{
		store:     store,
		retriever: retriever.New(store),
		token:     token,
		port:      port,
		logger:    logger,
	}
}

// Start runs the HTTP server until ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprint(w, "OK")
	})

	mux.Handle("/metrics", promhttp.Handler())

	mux.Handle("/v2/intel/ingest_urls", s.auth(http.HandlerFunc(s.handleIngestURLs)))
	mux.Handle("/v2/intel/ingest", s.auth(http.HandlerFunc(s.handleIngestFixtureBundle)))
	mux.Handle("/v2/context/pack", s.auth(http.HandlerFunc(s.handleContextPack)))
	mux.Handle("/v2/intel/articles/", s.auth(http.HandlerFunc(s.handleArticleRoutes)))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		//nolint:errcheck,contextcheck // shutdown in signal handler is best-effort, non-inherited context intentional
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info().Int("port", s.port).Msg("intel API server starting")

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}

	return nil
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || s.token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.token)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleIngestURLs(w http.ResponseWriter, r *http.Request) {
	var req ingest.Request

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if len(req.URLs) == 0 {
		writeError(w, http.StatusBadRequest, "urls is required")
		return
	}

	if err := s.store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}

	resp := ingest.IngestURLs(r.Context(), s.store, req)

	for _, result := range resp.Results {
		observability.ArticlesIngested.WithLabelValues(result.Status).Inc()
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleIngestFixtureBundle loads a bundled fixture set directly into
// storage, bypassing fetch/extract — a test/demo convenience, not part
// of the live ingestion path.
func (s *Server) handleIngestFixtureBundle(w http.ResponseWriter, r *http.Request) {
	var bundle fixtureBundle

	if err := json.NewDecoder(r.Body).Decode(&bundle); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	loaded := 0

	for _, a := range bundle.Articles {
		seed := db.ArticleSeed{
			ArticleID: a.ArticleID,
			URL:       a.URL,
			Topics:    a.Topics,
			Tags:      a.Tags,
			Status:    domain.ArticleStatusQueued,
		}

		if err := s.store.UpsertArticleSeed(r.Context(), seed); err != nil {
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}

		loaded++
	}

	writeJSON(w, http.StatusOK, map[string]any{"loaded": loaded})
}

type fixtureBundle struct {
	Articles []struct {
		ArticleID string   `json:"article_id"`
		URL       string   `json:"url"`
		Topics    []string `json:"topics,omitempty"`
		Tags      []string `json:"tags,omitempty"`
	} `json:"articles"`
}

func (s *Server) handleContextPack(w http.ResponseWriter, r *http.Request) {
	var req retriever.Request

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	pack, err := s.retriever.Pack(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}

	observability.ContextPackRequests.WithLabelValues(pack.Confidence).Inc()
	observability.ContextPackItemCount.Observe(float64(len(pack.Items)))

	writeJSON(w, http.StatusOK, packResponse{
		TraceID: pack.Trace.TraceID,
		Pack:    pack,
	})
}

type packResponse struct {
	TraceID string               `json:"trace_id"`
	Pack    *domain.ContextPack `json:"pack"`
}

// handleArticleRoutes dispatches every /v2/intel/articles/{id}[/...]
// route: bare status lookup, outline, sections, and chunks:search.
func (s *Server) handleArticleRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v2/intel/articles/")

	parts := strings.SplitN(rest, "/", 2)
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	articleID := parts[0]
	sub := ""

	if len(parts) == 2 {
		sub = parts[1]
	}

	switch {
	case sub == "" && r.Method == http.MethodGet:
		s.handleGetArticle(w, r, articleID)
	case sub == "outline" && r.Method == http.MethodGet:
		s.handleOutline(w, r, articleID)
	case sub == "sections" && r.Method == http.MethodPost:
		s.handleSections(w, r, articleID)
	case sub == "chunks:search" && r.Method == http.MethodPost:
		s.handleChunksSearch(w, r, articleID)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) handleGetArticle(w http.ResponseWriter, r *http.Request, articleID string) {
	article, err := s.store.GetArticle(r.Context(), articleID)
	if err != nil {
		s.writeArticleLookupError(w, err)
		return
	}

	lastError, err := s.store.GetLatestJobError(r.Context(), articleID)
	if err != nil {
		s.writeArticleLookupError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		*domain.Article
		LastError string `json:"last_error"`
	}{Article: article, LastError: lastError})
}

func (s *Server) handleOutline(w http.ResponseWriter, r *http.Request, articleID string) {
	outline, err := s.retriever.Outline(r.Context(), articleID)
	if err != nil {
		s.writeArticleLookupError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"outline": outline})
}

func (s *Server) handleSections(w http.ResponseWriter, r *http.Request, articleID string) {
	var req struct {
		SectionIDs []string `json:"section_ids"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if len(req.SectionIDs) > maxSectionIDs {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("at most %d section_ids allowed", maxSectionIDs))
		return
	}

	sections, err := s.retriever.Sections(r.Context(), articleID, req.SectionIDs)
	if err != nil {
		s.writeArticleLookupError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"sections": sections})
}

func (s *Server) handleChunksSearch(w http.ResponseWriter, r *http.Request, articleID string) {
	var req struct {
		Query     string `json:"query"`
		MaxChunks int    `json:"max_chunks,omitempty"`
		MaxChars  int    `json:"max_chars,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	chunks, err := s.retriever.ChunksSearch(r.Context(), articleID, req.Query, req.MaxChunks, req.MaxChars)
	if err != nil {
		s.writeArticleLookupError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"chunks": chunks})
}

func (s *Server) writeArticleLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, db.ErrArticleNotFound) {
		writeError(w, http.StatusNotFound, "article not found")
		return
	}

	writeError(w, http.StatusServiceUnavailable, "database unavailable")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
