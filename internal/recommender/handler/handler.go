package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/recommender"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/recommender/cache"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/tracing"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	maxBodyBytes     = 1 << 20
)

var (
	errNotLoaded = apperrors.New(apperrors.ErrCatalogUnavailable, http.StatusServiceUnavailable, "catalog not loaded")
	errBadLimit  = apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "limit must be a positive integer")
	errBadID     = apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "id must be a positive integer")
	errNoCache   = apperrors.New(apperrors.ErrCatalogUnavailable, http.StatusServiceUnavailable, "caching is disabled")
)

type Reloader interface {
	Reload(ctx context.Context) (*recommender.Engine, error)
}

// RecommendRequest is the POST body of a recommendation request. A missing
// limit means the configured default.
type RecommendRequest struct {
	Titles []string `json:"titles"`
	Limit  *int     `json:"limit"`
}

// RecommendResponse is returned by both recommendation routes.
type RecommendResponse struct {
	Recommendations []recommender.Recommendation `json:"recommendations"`
	Unresolved      []string                     `json:"unresolved"`
	CatalogVersion  string                       `json:"catalog_version"`
}

type Handler struct {
	holder    *recommender.Holder
	reloader  Reloader
	cache     *cache.ResultCache
	collector *analytics.Collector
	metrics   *metrics.Metrics
	limits    config.RecommendConfig
	logger    *slog.Logger
}

// New creates the recommender API handler. resultCache, collector and m may
// be nil.
func New(
	holder *recommender.Holder,
	reloader Reloader,
	resultCache *cache.ResultCache,
	collector *analytics.Collector,
	m *metrics.Metrics,
	limits config.RecommendConfig,
) *Handler {
	return &Handler{
		holder:    holder,
		reloader:  reloader,
		cache:     resultCache,
		collector: collector,
		metrics:   m,
		limits:    limits,
		logger:    slog.Default().With("component", "recommend-handler"),
	}
}

// Register mounts the recommender routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/recommendations", h.RecommendPost)
		r.Get("/recommendations", h.RecommendGet)
		r.Get("/movies", h.ListMovies)
		r.Get("/movies/{id}", h.GetMovie)
		r.Get("/catalog", h.CatalogStats)
		r.Post("/catalog/reload", h.Reload)
		r.Get("/cache/stats", h.CacheStats)
		r.Post("/cache/invalidate", h.CacheInvalidate)
	})
}

// RecommendPost serves {"titles": [...], "limit": n}.
func (h *Handler) RecommendPost(w http.ResponseWriter, r *http.Request) {
	var req RecommendRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	limit := h.limits.DefaultLimit
	if req.Limit != nil {
		if *req.Limit < 1 {
			h.fail(w, errBadLimit)
			return
		}
		limit = *req.Limit
	}
	h.recommend(w, r, req.Titles, limit)
}

// RecommendGet serves ?title=A&title=B&limit=n.
func (h *Handler) RecommendGet(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.parseLimit(w, r, h.limits.DefaultLimit)
	if !ok {
		return
	}
	h.recommend(w, r, r.URL.Query()["title"], limit)
}

func (h *Handler) recommend(w http.ResponseWriter, r *http.Request, titles []string, limit int) {
	start := time.Now()
	ctx := r.Context()

	if err := validator.ValidateSelection(titles, h.limits.MaxSelections); err != nil {
		h.countRequest("invalid")
		h.writeValidation(w, err)
		return
	}
	limit = min(limit, h.limits.MaxResults)

	engine := h.holder.Load()
	if engine == nil {
		h.countRequest("error")
		h.fail(w, errNotLoaded)
		return
	}
	ctx = logger.With(ctx, "catalog_version", engine.Version())
	log := logger.FromContext(ctx)

	ctx, span := tracing.StartChildSpan(ctx, "recommend")
	span.SetAttr("titles", len(titles))
	span.SetAttr("limit", limit)
	defer span.End()

	compute := func() (*recommender.Result, error) {
		_, qspan := tracing.StartChildSpan(ctx, "engine.query")
		defer qspan.End()
		res := engine.Query(titles, limit)
		qspan.SetAttr("results", len(res.Recommendations))
		return &res, nil
	}

	var (
		result   *recommender.Result
		cacheHit bool
		err      error
	)
	cacheStatus := "disabled"
	if h.cache != nil {
		key := cache.Key{Version: engine.Version(), Titles: titles, Limit: limit}
		result, cacheHit, err = h.cache.GetOrCompute(ctx, key, compute)
		cacheStatus = "miss"
		if cacheHit {
			cacheStatus = "hit"
		}
	} else {
		result, err = compute()
	}
	if err != nil {
		h.countRequest("error")
		span.RecordError(err)
		log.Error("recommendation failed", "titles", titles, "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(err), "recommendation failed")
		return
	}
	span.SetAttr("cache", cacheStatus)

	resp := RecommendResponse{
		Recommendations: result.Recommendations,
		Unresolved:      result.Unresolved,
		CatalogVersion:  engine.Version(),
	}
	if resp.Recommendations == nil {
		resp.Recommendations = []recommender.Recommendation{}
	}
	if resp.Unresolved == nil {
		resp.Unresolved = []string{}
	}

	latency := time.Since(start)
	h.observe(resp, len(titles), cacheStatus, latency)
	log.Info("recommendations served",
		"titles", len(titles),
		"unresolved", len(resp.Unresolved),
		"returned", len(resp.Recommendations),
		"cache", cacheStatus,
		"latency_ms", latency.Milliseconds(),
	)
	h.track(ctx, titles, limit, resp, cacheHit, latency)
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) observe(resp RecommendResponse, titles int, cacheStatus string, latency time.Duration) {
	if h.metrics == nil {
		return
	}
	resultType := "ok"
	switch {
	case len(resp.Unresolved) == titles:
		resultType = "unresolved"
	case len(resp.Recommendations) == 0:
		resultType = "empty"
	}
	h.countRequest(resultType)
	h.metrics.RecommendLatency.WithLabelValues(cacheStatus).Observe(latency.Seconds())
	h.metrics.RecommendResultsCount.Observe(float64(len(resp.Recommendations)))
}

func (h *Handler) countRequest(resultType string) {
	if h.metrics != nil {
		h.metrics.RecommendRequestsTotal.WithLabelValues(resultType).Inc()
	}
}

func (h *Handler) track(ctx context.Context, titles []string, limit int, resp RecommendResponse, cacheHit bool, latency time.Duration) {
	if h.collector == nil {
		return
	}
	recommended := make([]string, len(resp.Recommendations))
	for i, rec := range resp.Recommendations {
		recommended[i] = rec.Movie.Title
	}
	var top float64
	if len(resp.Recommendations) > 0 {
		top = resp.Recommendations[0].Score
	}
	h.collector.Track(analytics.EventRecommend, analytics.RecommendEvent{
		Type:           analytics.EventRecommend,
		Titles:         titles,
		Limit:          limit,
		Unresolved:     resp.Unresolved,
		Recommended:    recommended,
		TopScore:       top,
		LatencyMs:      latency.Milliseconds(),
		CacheHit:       cacheHit,
		CatalogVersion: resp.CatalogVersion,
		Timestamp:      time.Now().UTC(),
		RequestID:      middleware.GetRequestID(ctx),
	})
}

// ListMovies searches titles for the movie picker.
func (h *Handler) ListMovies(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.parseLimit(w, r, defaultListLimit)
	if !ok {
		return
	}
	engine := h.holder.Load()
	if engine == nil {
		h.fail(w, errNotLoaded)
		return
	}
	movies := engine.Search(r.URL.Query().Get("q"), min(limit, maxListLimit))
	h.writeJSON(w, http.StatusOK, map[string]any{
		"movies":          movies,
		"count":           len(movies),
		"catalog_version": engine.Version(),
	})
}

func (h *Handler) GetMovie(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.fail(w, errBadID)
		return
	}
	engine := h.holder.Load()
	if engine == nil {
		h.fail(w, errNotLoaded)
		return
	}
	m, ok := engine.Movie(id)
	if !ok {
		h.fail(w, apperrors.Newf(apperrors.ErrMovieNotFound, http.StatusNotFound, "no movie with id %d", id))
		return
	}
	h.writeJSON(w, http.StatusOK, m)
}

// CatalogStats describes the loaded engine.
func (h *Handler) CatalogStats(w http.ResponseWriter, r *http.Request) {
	engine := h.holder.Load()
	if engine == nil {
		h.fail(w, errNotLoaded)
		return
	}
	h.writeJSON(w, http.StatusOK, engine.Stats())
}

// Reload rebuilds the engine from the catalog source.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	engine, err := h.reloader.Reload(r.Context())
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		logger.FromContext(r.Context()).Error("manual reload failed", "error", err, "status_code", status)
		h.writeError(w, status, "reload failed: "+apperrors.PublicMessage(err))
		return
	}
	h.writeJSON(w, http.StatusOK, engine.Stats())
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.fail(w, errNoCache)
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

// parseLimit reads ?limit, writing a 400 and returning false when it is not
// a positive integer.
func (h *Handler) parseLimit(w http.ResponseWriter, r *http.Request, def int) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		h.fail(w, errBadLimit)
		return 0, false
	}
	return n, true
}

func (h *Handler) writeValidation(w http.ResponseWriter, err error) {
	var validationErr *validator.ValidationError
	if errors.As(err, &validationErr) {
		h.writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation failed",
			"fields": validationErr.Fields,
		})
		return
	}
	h.writeError(w, http.StatusBadRequest, err.Error())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

// fail writes err as a JSON error body with its status.
func (h *Handler) fail(w http.ResponseWriter, err *apperrors.AppError) {
	h.writeJSON(w, err.StatusCode, map[string]string{"error": err.Error()})
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
