package http

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/cmlabs-hris/hris-payroll-go/internal/handler/http/response"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

type HealthHandler interface {
	Ready(w http.ResponseWriter, r *http.Request)
}

type healthHandlerImpl struct {
	checks map[string]HealthCheck
}

func NewHealthHandler(checks map[string]HealthCheck) HealthHandler {
	return &healthHandlerImpl{checks: checks}
}

type ReadinessResponse struct {
	Status       string            `json:"status"`
	Dependencies map[string]string `json:"dependencies"`
}

// Ready checks every dependency and answers 503 if any of them is down.
func (h *healthHandlerImpl) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	result := ReadinessResponse{Status: "ok", Dependencies: make(map[string]string, len(names))}
	failed := make(map[string]string)
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			result.Dependencies[name] = "down"
			failed[name] = err.Error()
			continue
		}
		result.Dependencies[name] = "up"
	}

	if len(failed) > 0 {
		response.ServiceUnavailable(w, "One or more dependencies are unavailable", failed)
		return
	}
	response.Success(w, result)
}
