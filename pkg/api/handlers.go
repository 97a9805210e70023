package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/goran-ethernal/IndexGraph/internal/logger"
	"github.com/goran-ethernal/IndexGraph/pkg/indexer"
)

// StatusProvider exposes read-only snapshots of the indexer graph.
type StatusProvider interface {
	// Status returns every indexer in topological order.
	Status() []indexer.Status
	// StatusByID returns one indexer, false when the id is unknown.
	StatusByID(id string) (indexer.Status, bool)
}

// Handler handles HTTP requests for the API.
type Handler struct {
	provider StatusProvider
	log      *logger.Logger
	now      func() time.Time
}

// NewHandler creates a new API handler.
func NewHandler(provider StatusProvider, log *logger.Logger) *Handler {
	return &Handler{
		provider: provider,
		log:      log,
		now:      time.Now,
	}
}

// ListIndexers returns the status of every indexer.
// @Summary List all indexers
// @Description Get the safe height, min height and parents of every indexer in topological order
// @Tags Indexers
// @Produce json
// @Success 200 {array} indexer.Status "List of indexers"
// @Router /indexers [get]
func (h *Handler) ListIndexers(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.provider.Status())
}

// GetIndexer returns the status of one indexer.
// @Summary Get one indexer
// @Description Get the safe height, min height and parents of an indexer
// @Tags Indexers
// @Produce json
// @Param id path string true "Indexer id"
// @Success 200 {object} indexer.Status "Indexer status"
// @Failure 400 {object} ErrorResponse "Missing id"
// @Failure 404 {object} ErrorResponse "Indexer not found"
// @Router /indexers/{id} [get]
func (h *Handler) GetIndexer(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "indexer id is required")
		return
	}

	status, ok := h.provider.StatusByID(id)
	if !ok {
		respondError(w, http.StatusNotFound, fmt.Sprintf("indexer '%s' not found", id))
		return
	}

	respondJSON(w, http.StatusOK, status)
}

// Health reports whether any indexer failed its last update cycle.
// @Summary Health check
// @Description Get the API status together with the status of every indexer
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse "API and indexer health status"
// @Router /health [get]
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	statuses := h.provider.Status()

	health := healthOK
	for _, s := range statuses {
		if s.LastError != "" {
			health = healthDegraded
			h.log.Debugf("Indexer %s reports: %s", s.IndexerID, s.LastError)
		}
	}

	respondJSON(w, http.StatusOK, HealthResponse{
		Status:    health,
		Timestamp: h.now().UTC(),
		Indexers:  statuses,
	})
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")

	// encode first so a failure can still change the status
	encoded, err := json.Marshal(data)
	if err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	_, _ = w.Write(encoded)
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    status,
	})
}
