package handlers

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"iter-viae/internal/models"
	"iter-viae/internal/planner"
	"iter-viae/internal/reorder"
)

// WaypointListResponse represents the waypoint list with route totals
type WaypointListResponse struct {
	Waypoints []models.WaypointView `json:"waypoints"`
	Total     int                   `json:"total"`
	CanDrag   bool                  `json:"can_drag"`
	Route     planner.RouteSummary  `json:"route"`
}

func (h *Handler) listResponse() WaypointListResponse {
	views := h.Planner.Views()
	return WaypointListResponse{
		Waypoints: views,
		Total:     len(views),
		CanDrag:   h.Planner.CanDrag(),
		Route:     h.Planner.Route(),
	}
}

// HandleListWaypoints handles GET /api/v1/waypoints
func (h *Handler) HandleListWaypoints(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.listResponse())
}

// HandleCreateWaypoint handles POST /api/v1/waypoints
func (h *Handler) HandleCreateWaypoint(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string              `json:"name"`
		Coord    *models.Coordinates `json:"coord"`
		Category models.Category     `json:"type"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if req.Coord == nil {
		h.handleValidationError(w, "coord is required")
		return
	}
	if req.Category == "" {
		req.Category = models.CategoryStop
	}

	wp, err := h.Planner.Add(req.Name, *req.Coord, req.Category)
	if err != nil {
		h.handlePlannerError(w, err)
		return
	}
	h.log.WithFields(logrus.Fields{"waypoint_id": wp.ID, "type": wp.Category}).Info("[HTTP] Waypoint created")
	h.writeJSON(w, http.StatusCreated, wp)
}

// HandleUpdateWaypoint handles PATCH /api/v1/waypoints/{id}
func (h *Handler) HandleUpdateWaypoint(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req reorder.Details
	if !h.decode(w, r, &req) {
		return
	}
	wp, err := h.Planner.UpdateDetails(id, req)
	if err != nil {
		h.handlePlannerError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, wp)
}

// HandleDeleteWaypoint handles DELETE /api/v1/waypoints/{id}
func (h *Handler) HandleDeleteWaypoint(w http.ResponseWriter, r *http.Request) {
	if err := h.Planner.Delete(r.PathValue("id")); err != nil {
		h.handlePlannerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleReorderWaypoints handles POST /api/v1/waypoints/reorder
func (h *Handler) HandleReorderWaypoints(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID   string `json:"id"`
		From int    `json:"from"`
		To   int    `json:"to"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if req.ID == "" {
		h.handleValidationError(w, "id is required")
		return
	}
	if err := h.Planner.Reorder(req.ID, req.From, req.To); err != nil {
		h.handlePlannerError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.listResponse())
}

// HandleInsertWaypoint handles POST /api/v1/waypoints/insert. The new waypoint
// starts in editing mode with an open search.
func (h *Handler) HandleInsertWaypoint(w http.ResponseWriter, r *http.Request) {
	var req struct {
		After    int             `json:"after"`
		Category models.Category `json:"type"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	var (
		wp  models.Waypoint
		err error
	)
	if req.Category == "" || req.Category.IsShaping() {
		wp, err = h.Planner.InsertShapingPointAfter(req.After)
	} else {
		wp, err = h.Planner.BeginStop(req.After, req.Category)
	}
	if err != nil {
		h.handlePlannerError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, wp)
}

// HandleOptimizeWaypoints handles POST /api/v1/waypoints/optimize
func (h *Handler) HandleOptimizeWaypoints(w http.ResponseWriter, r *http.Request) {
	var req struct {
		KeepEnd bool `json:"keep_end"`
	}
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}
	if _, err := h.Planner.OptimizeOrder(r.Context(), req.KeepEnd); err != nil {
		h.handlePlannerError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.listResponse())
}
