package handlers

import (
	"net/http"

	"github.com/paulmach/orb/geojson"

	"iter-viae/internal/mapsurface"
	"iter-viae/internal/models"
)

// MapResponse is the rendered map state for a front-end to mirror
type MapResponse struct {
	Style    mapsurface.MapStyle        `json:"style"`
	Styles   []mapsurface.MapStyle      `json:"styles"`
	Camera   mapsurface.CameraState     `json:"camera"`
	Center   models.Coordinates         `json:"viewport_center"`
	Features *geojson.FeatureCollection `json:"features"`
	Ops      mapsurface.OpCounts        `json:"ops"`
}

// HandleGetMap handles GET /api/v1/map
func (h *Handler) HandleGetMap(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, MapResponse{
		Style:    h.Map.Style(),
		Styles:   mapsurface.Styles(),
		Camera:   h.Map.Camera(),
		Center:   h.Planner.ViewportCenter(),
		Features: h.Map.FeatureCollection(),
		Ops:      h.Map.Counts(),
	})
}

// HandleSetStyle handles POST /api/v1/map/style
func (h *Handler) HandleSetStyle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Style string `json:"style"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if _, err := mapsurface.LookupStyle(req.Style); err != nil {
		h.handleValidationError(w, err.Error())
		return
	}
	if err := h.Planner.SetStyle(req.Style); err != nil {
		h.handleInternalError(w, err)
		return
	}
	h.log.WithField("style", req.Style).Info("[HTTP] Map style changed")
	h.HandleGetMap(w, r)
}

// HandleDragMarker handles POST /api/v1/map/drag
func (h *Handler) HandleDragMarker(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string             `json:"id"`
		To models.Coordinates `json:"to"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if !req.To.Valid() {
		h.handleValidationError(w, "coordinate out of range")
		return
	}
	ref, ok := h.Planner.MarkerFor(req.ID)
	if !ok {
		h.handleNotFound(w, "No marker for waypoint")
		return
	}
	if err := h.Map.DragMarker(ref, req.To); err != nil {
		h.handleValidationError(w, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, h.listResponse())
}

// HandleContextMenu handles POST /api/v1/map/context-menu
func (h *Handler) HandleContextMenu(w http.ResponseWriter, r *http.Request) {
	var req struct {
		At models.Coordinates `json:"at"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if !req.At.Valid() {
		h.handleValidationError(w, "coordinate out of range")
		return
	}
	h.Map.RightClick(req.At)
	h.writeJSON(w, http.StatusCreated, h.listResponse())
}

// HandleMoveViewport handles POST /api/v1/map/move
func (h *Handler) HandleMoveViewport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Center models.Coordinates `json:"center"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if !req.Center.Valid() {
		h.handleValidationError(w, "coordinate out of range")
		return
	}
	h.Map.Move(req.Center)
	h.writeJSON(w, http.StatusOK, map[string]string{"viewport_center": h.Planner.ViewportCenter().String()})
}
