package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
)

// Pinger is a dependency able to report its availability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker reports the availability of the database and, when set, of the push channel.
type HealthChecker struct {
	db   Pinger
	push Pinger
	log  *slog.Logger
}

// NewHealthChecker creates a HealthChecker. push may be nil when the provider
// has no connection to watch.
func NewHealthChecker(log *slog.Logger, db Pinger, push Pinger) *HealthChecker {
	return &HealthChecker{
		db:   db,
		push: push,
		log:  log,
	}
}

func (h *HealthChecker) ServeHTTP(writer http.ResponseWriter, req *http.Request) {
	h.log.DebugContext(req.Context(), "Performing health checks...")

	var err error
	status := make(map[string]string)
	overallStatus := http.StatusOK

	if err = h.db.Ping(req.Context()); err != nil {
		status["database"] = "unavailable"
		overallStatus = http.StatusServiceUnavailable
		h.log.WarnContext(req.Context(), "Health check failed: DB ping", "error", err)
	} else {
		status["database"] = "ok"
	}

	if h.push != nil {
		if err = h.push.Ping(req.Context()); err != nil {
			status["push_channel"] = "unreachable"
			overallStatus = http.StatusServiceUnavailable
			h.log.WarnContext(req.Context(), "Health check failed: push channel unreachable", "error", err)
		} else {
			status["push_channel"] = "ok"
		}
	}

	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(overallStatus)
	if err = json.NewEncoder(writer).Encode(status); err != nil {
		h.log.ErrorContext(req.Context(), "Failed to write health check response", "error", err)
	}

	h.log.DebugContext(req.Context(), "Health checks completed", "status", overallStatus)
}
