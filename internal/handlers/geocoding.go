package handlers

import (
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"iter-viae/internal/models"
	"iter-viae/internal/search"
)

// HandleAddressSearch handles GET /api/v1/address-search
func (h *Handler) HandleAddressSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("address"))
	entry := h.log.WithField("query", query)

	if coord, ok := search.ParseCoordinate(query); ok {
		h.writeJSON(w, http.StatusOK, []models.Suggestion{{Label: coord.String(), Coords: coord}})
		return
	}
	if len([]rune(query)) < search.DefaultMinLength || h.Suggester == nil {
		h.writeJSON(w, http.StatusOK, []models.Suggestion{})
		return
	}

	results, err := h.Suggester.Suggest(r.Context(), query, search.DefaultLimit)
	if err != nil {
		entry.WithError(err).Warn("[HTTP] Address search failed")
		h.writeJSON(w, http.StatusOK, []models.Suggestion{})
		return
	}

	entry.WithField("results_count", len(results)).Debug("[HTTP] Address search")
	h.writeJSON(w, http.StatusOK, results)
}

// HandleSearchText handles POST /api/v1/waypoints/{id}/search
func (h *Handler) HandleSearchText(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	view, err := h.Planner.Type(r.PathValue("id"), req.Text)
	if err != nil {
		h.handlePlannerError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

// HandleSuggestions handles GET /api/v1/waypoints/{id}/suggestions
func (h *Handler) HandleSuggestions(w http.ResponseWriter, r *http.Request) {
	view, err := h.Planner.Suggestions(r.PathValue("id"))
	if err != nil {
		h.handlePlannerError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

// HandleAccept handles POST /api/v1/waypoints/{id}/accept
func (h *Handler) HandleAccept(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	wp, ok, err := h.Planner.Accept(id)
	h.writeResolution(w, id, wp, ok, err)
}

// HandleSelect handles POST /api/v1/waypoints/{id}/select
func (h *Handler) HandleSelect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Index int `json:"index"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	id := r.PathValue("id")
	wp, ok, err := h.Planner.Select(id, req.Index)
	h.writeResolution(w, id, wp, ok, err)
}

func (h *Handler) writeResolution(w http.ResponseWriter, id string, wp models.Waypoint, ok bool, err error) {
	if err != nil {
		h.handlePlannerError(w, err)
		return
	}
	if !ok {
		h.writeError(w, http.StatusUnprocessableEntity, "NOTHING_TO_ACCEPT", "no coordinate or suggestion to resolve to", nil)
		return
	}
	h.log.WithFields(logrus.Fields{"waypoint_id": id, "name": wp.Name}).Info("[HTTP] Waypoint resolved")
	h.writeJSON(w, http.StatusOK, wp)
}

// HandleCancelEdit handles POST /api/v1/waypoints/{id}/cancel
func (h *Handler) HandleCancelEdit(w http.ResponseWriter, r *http.Request) {
	if err := h.Planner.CancelEdit(r.PathValue("id")); err != nil {
		h.handlePlannerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
