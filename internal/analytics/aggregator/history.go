package aggregator

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
)

// HistoryReader is the part of Store the history endpoint reads from.
type HistoryReader interface {
	History(ctx context.Context, q HistoryQuery) ([]Snapshot, error)
}

// HistoryHandler serves GET /api/v1/analytics/history. ?limit= caps the
// count (default 20, max 500) and ?since= takes an RFC 3339 lower bound.
func HistoryHandler(store HistoryReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := HistoryQuery{Limit: defaultHistoryLimit}
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
				return
			}
			q.Limit = min(n, maxHistoryLimit)
		}
		if v := r.URL.Query().Get("since"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "since must be an RFC 3339 timestamp"})
				return
			}
			q.Since = t
		}

		snaps, err := store.History(r.Context(), q)
		if err != nil {
			slog.ErrorContext(r.Context(), "loading analytics history failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not load snapshots"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"snapshots": snaps, "count": len(snaps)})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
