package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"iter-viae/internal/database"
	"iter-viae/internal/distance"
	"iter-viae/internal/geocoding"
	"iter-viae/internal/mapsurface"
	"iter-viae/internal/planner"
	"iter-viae/internal/waypoints"
)

// Handler provides common handler utilities and dependencies
type Handler struct {
	Planner   *planner.Planner
	Map       *mapsurface.MemorySurface
	Suggester geocoding.Suggester
	Cache     database.CacheStore
	log       *logrus.Entry
}

func New(p *planner.Planner, surface *mapsurface.MemorySurface, suggester geocoding.Suggester, cache database.CacheStore, logger *logrus.Logger) *Handler {
	return &Handler{
		Planner:   p,
		Map:       surface,
		Suggester: suggester,
		Cache:     cache,
		log:       logger.WithField("component", "http"),
	}
}

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.WithError(err).Warn("[HTTP] Failed to encode response")
	}
}

// writeError writes a JSON error response
func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string, details any) {
	h.writeJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

func (h *Handler) handleNotFound(w http.ResponseWriter, message string) {
	h.writeError(w, http.StatusNotFound, "NOT_FOUND", message, nil)
}

func (h *Handler) handleValidationError(w http.ResponseWriter, message string) {
	h.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", message, nil)
}

func (h *Handler) handleInternalError(w http.ResponseWriter, err error) {
	h.log.WithError(err).Error("[HTTP] Internal error")
	h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An error occurred. Please try again.", nil)
}

// handlePlannerError maps planner and store errors onto status codes
func (h *Handler) handlePlannerError(w http.ResponseWriter, err error) {
	var derr *distance.ErrDistanceCalculationFailed
	switch {
	case errors.As(err, &derr):
		h.writeError(w, http.StatusUnprocessableEntity, "ROUTING_FAILED", derr.Reason, nil)
	case errors.Is(err, planner.ErrNotFound):
		h.handleNotFound(w, err.Error())
	case errors.Is(err, planner.ErrNoSearch):
		h.writeError(w, http.StatusConflict, "NO_SEARCH", err.Error(), nil)
	case errors.Is(err, waypoints.ErrRejected):
		h.writeError(w, http.StatusConflict, "REJECTED", err.Error(), nil)
	default:
		h.handleInternalError(w, err)
	}
}

// decode reads a JSON body into v, writing a validation error on failure
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.log.WithError(err).WithField("path", r.URL.Path).Debug("[HTTP] Invalid request body")
		h.handleValidationError(w, "Invalid request body")
		return false
	}
	return true
}

// HealthResponse is the health check payload
type HealthResponse struct {
	Status string `json:"status"`
	Cache  string `json:"cache"`
}

// HandleHealthCheck handles GET /api/v1/health
func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Cache: "ok"}
	if h.Cache != nil {
		if err := h.Cache.HealthCheck(r.Context()); err != nil {
			h.log.WithError(err).Warn("[HTTP] Cache health check failed")
			resp.Status = "degraded"
			resp.Cache = err.Error()
			h.writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}
	h.writeJSON(w, http.StatusOK, resp)
}
