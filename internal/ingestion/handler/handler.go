package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/ingestion/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/logger"
)

// maxBodyBytes bounds request bodies; a full batch of long overviews fits.
const maxBodyBytes = 32 << 20

// Ingester writes movies and announces the change.
type Ingester interface {
	Ingest(ctx context.Context, source string, movies ...catalog.Movie) (*ingestion.IngestResponse, error)
}

// MovieReader looks up stored movies.
type MovieReader interface {
	Get(ctx context.Context, id int64) (*catalog.Movie, error)
}

type Handler struct {
	ingester Ingester
	reader   MovieReader
	logger   *slog.Logger
}

func New(ingester Ingester, reader MovieReader) *Handler {
	return &Handler{
		ingester: ingester,
		reader:   reader,
		logger:   slog.Default().With("component", "ingestion-handler"),
	}
}

// Register mounts the ingestion routes on r. writeGuards wrap only the
// routes that change the catalog.
func (h *Handler) Register(r chi.Router, writeGuards ...func(http.Handler) http.Handler) {
	r.Route("/api/v1/movies", func(r chi.Router) {
		r.Get("/{id}", h.Get)
		r.Group(func(r chi.Router) {
			r.Use(writeGuards...)
			r.Post("/", h.Ingest)
			r.Post("/batch", h.IngestBatch)
		})
	})
}

// Ingest upserts a single movie.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	var m catalog.Movie
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&m); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validator.ValidateMovie(&m); err != nil {
		h.writeValidation(w, err)
		return
	}
	h.ingest(w, r, []catalog.Movie{m})
}

// IngestBatch upserts up to a thousand movies in one transaction.
func (h *Handler) IngestBatch(w http.ResponseWriter, r *http.Request) {
	var req ingestion.BatchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validator.ValidateBatch(req.Movies); err != nil {
		h.writeValidation(w, err)
		return
	}
	h.ingest(w, r, req.Movies)
}

func (h *Handler) ingest(w http.ResponseWriter, r *http.Request, movies []catalog.Movie) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	resp, err := h.ingester.Ingest(ctx, "api", movies...)
	if err != nil {
		statusCode := apperrors.HTTPStatusCode(err)
		log.Error("ingestion failed", "error", err, "status_code", statusCode)
		h.writeError(w, statusCode, "ingestion failed: "+apperrors.PublicMessage(err))
		return
	}
	log.Info("movies ingested",
		"inserted", resp.Inserted,
		"updated", resp.Updated,
		"event_id", resp.EventID,
	)
	h.writeJSON(w, http.StatusAccepted, resp)
}

// Get returns a stored movie.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, "id must be a positive integer")
		return
	}
	m, err := h.reader.Get(r.Context(), id)
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		if status >= http.StatusInternalServerError {
			logger.FromContext(r.Context()).Error("movie lookup failed", "id", id, "error", err)
		}
		h.writeError(w, status, http.StatusText(status))
		return
	}
	h.writeJSON(w, http.StatusOK, m)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
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

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
