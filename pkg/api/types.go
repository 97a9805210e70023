package api

import (
	"time"

	"github.com/goran-ethernal/IndexGraph/pkg/indexer"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}

// HealthResponse represents a health check response.
type HealthResponse struct {
	// Status is "ok", or "degraded" when an indexer reports an error
	Status    string           `json:"status"`
	Timestamp time.Time        `json:"timestamp"`
	Indexers  []indexer.Status `json:"indexers"`
}

const (
	healthOK       = "ok"
	healthDegraded = "degraded"
)
