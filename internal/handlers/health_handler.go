package handlers

import (
	"net/http"

	"companion-backend/internal/health"
)

type HealthHandler struct {
	Checker *health.HealthChecker
}

func NewHealthHandler(checker *health.HealthChecker) *HealthHandler {
	return &HealthHandler{Checker: checker}
}

// Health reports database and cache reachability plus process and host memory
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := h.Checker.CheckBasic(r.Context())

	code := http.StatusOK
	if status.Status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}
