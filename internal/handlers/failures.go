package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/MegaGrindStone/chat-widget/internal/widget"
)

const defaultFailuresLimit = 50

// HandleFailures lists journaled generation failures as JSON, most recent first. The optional "limit"
// query parameter caps the number of entries. It reports not found when no journal is configured.
func (m Main) HandleFailures(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if m.journal == nil {
		http.NotFound(w, r)
		return
	}

	limit := defaultFailuresLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	failures, err := m.journal.Failures(r.Context(), limit)
	if err != nil {
		m.logger.Error("Failed to list failures", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if failures == nil {
		failures = []widget.Failure{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(failures); err != nil {
		m.logger.Error("Failed to encode failures", slog.String(errLoggerKey, err.Error()))
	}
}
