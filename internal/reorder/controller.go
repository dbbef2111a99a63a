package reorder

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"iter-viae/internal/models"
	"iter-viae/internal/waypoints"
)

// Details is a partial attribute edit; nil fields are left alone
type Details struct {
	Name     *string          `json:"name,omitempty"`
	Category *models.Category `json:"type,omitempty"`
	Duration *int             `json:"duration,omitempty"`
}

// Controller applies list edits (drag reorder, insertion, edit lifecycle) to the store
type Controller struct {
	store *waypoints.Store
	log   *logrus.Entry
}

func NewController(store *waypoints.Store, logger *logrus.Logger) *Controller {
	return &Controller{store: store, log: logger.WithField("component", "reorder")}
}

func rejected(op, reason string) error {
	return fmt.Errorf("%s: %s: %w", op, reason, waypoints.ErrRejected)
}

// CanDrag reports whether drag reordering is enabled
func (c *Controller) CanDrag() bool {
	return !waypoints.AnyEditing(c.store.Snapshot().Waypoints)
}

// Reorder moves id from fromIndex to toIndex. The move is rejected while any
// waypoint is being edited or when id is no longer at fromIndex.
func (c *Controller) Reorder(id string, fromIndex, toIndex int) (waypoints.Snapshot, error) {
	var reason string
	snap, _ := c.store.Update(func(list []models.Waypoint) ([]models.Waypoint, bool) {
		switch {
		case waypoints.AnyEditing(list):
			reason = "a waypoint is being edited"
			return list, false
		case fromIndex < 0 || fromIndex >= len(list) || list[fromIndex].ID != id:
			reason = "waypoint is not at the source index"
			return list, false
		case toIndex < 0 || toIndex >= len(list):
			reason = "destination out of range"
			return list, false
		}
		return waypoints.Move(list, fromIndex, toIndex)
	})

	if reason != "" {
		c.log.WithFields(logrus.Fields{"waypoint_id": id, "from": fromIndex, "to": toIndex}).Debug("[REORDER] Rejected: " + reason)
		return snap, rejected("reorder", reason)
	}
	return snap, nil
}

// ApplyOrder replaces the order with ids in one step, rejected while editing
func (c *Controller) ApplyOrder(ids []string) (waypoints.Snapshot, error) {
	var reason string
	snap, _ := c.store.Update(func(list []models.Waypoint) ([]models.Waypoint, bool) {
		if waypoints.AnyEditing(list) {
			reason = "a waypoint is being edited"
			return list, false
		}
		next, ok := waypoints.SetOrder(list, ids)
		if !ok && !sameOrder(list, ids) {
			reason = "order does not match the waypoint set"
		}
		return next, ok
	})
	if reason != "" {
		return snap, rejected("apply order", reason)
	}
	return snap, nil
}

func sameOrder(list []models.Waypoint, ids []string) bool {
	if len(list) != len(ids) {
		return false
	}
	for i, w := range list {
		if w.ID != ids[i] {
			return false
		}
	}
	return true
}

// InsertShapingPointAfter adds an unresolved shaping point in editing mode right
// after index (-1 for the front)
func (c *Controller) InsertShapingPointAfter(index int) (models.Waypoint, error) {
	return c.BeginStop(index, models.CategoryShaping)
}

// BeginStop adds an unresolved waypoint of category in editing mode after index
func (c *Controller) BeginStop(index int, category models.Category) (models.Waypoint, error) {
	if !category.Valid() {
		return models.Waypoint{}, rejected("insert", fmt.Sprintf("unknown category %q", category))
	}
	wp := models.Waypoint{
		ID:        waypoints.NewID(),
		Category:  category,
		IsEditing: true,
	}
	if _, ok := c.store.InsertAfter(index, wp); !ok {
		return models.Waypoint{}, rejected("insert", "index out of range")
	}
	c.log.WithFields(logrus.Fields{"waypoint_id": wp.ID, "after": index, "type": category}).Info("[REORDER] Inserted editing waypoint")
	return wp, nil
}

// AddResolved inserts a finished waypoint after index (-1 for the front, or the
// last index to append)
func (c *Controller) AddResolved(index int, name string, coord models.Coordinates, category models.Category) (models.Waypoint, error) {
	if !coord.Valid() {
		return models.Waypoint{}, rejected("add", "coordinate out of range")
	}
	if !category.Valid() {
		return models.Waypoint{}, rejected("add", fmt.Sprintf("unknown category %q", category))
	}
	wp := models.Waypoint{ID: waypoints.NewID(), Name: name, Coord: &coord, Category: category}
	if _, ok := c.store.InsertAfter(index, wp); !ok {
		return models.Waypoint{}, rejected("add", "index out of range")
	}
	return wp, nil
}

// Append adds a finished waypoint at the end of the route
func (c *Controller) Append(name string, coord models.Coordinates, category models.Category) (models.Waypoint, error) {
	if !coord.Valid() {
		return models.Waypoint{}, rejected("add", "coordinate out of range")
	}
	if !category.Valid() {
		return models.Waypoint{}, rejected("add", fmt.Sprintf("unknown category %q", category))
	}
	wp := models.Waypoint{ID: waypoints.NewID(), Name: name, Coord: &coord, Category: category}
	if _, ok := c.store.Append(wp); !ok {
		return models.Waypoint{}, rejected("add", "duplicate id")
	}
	c.log.WithFields(logrus.Fields{"waypoint_id": wp.ID, "type": category}).Info("[REORDER] Waypoint appended")
	return wp, nil
}

// Resolve finishes editing id with a name and coordinate
func (c *Controller) Resolve(id, name string, coord models.Coordinates) (waypoints.Snapshot, error) {
	if !coord.Valid() {
		return c.store.Snapshot(), rejected("resolve", "coordinate out of range")
	}
	var reason string
	snap, _ := c.store.Update(func(list []models.Waypoint) ([]models.Waypoint, bool) {
		idx := waypoints.IndexOf(list, id)
		if idx < 0 {
			reason = "unknown waypoint"
			return list, false
		}
		if !list[idx].IsEditing {
			reason = "waypoint is not being edited"
			return list, false
		}
		w := list[idx].Clone()
		w.Name = name
		w.Coord = &coord
		w.IsEditing = false
		return waypoints.Replace(list, id, w)
	})
	if reason != "" {
		return snap, rejected("resolve", reason)
	}
	c.log.WithFields(logrus.Fields{"waypoint_id": id, "lat": coord.Lat, "lng": coord.Lng}).Info("[REORDER] Waypoint resolved")
	return snap, nil
}

// Cancel abandons an edit. The editing entry is removed, never left dangling.
func (c *Controller) Cancel(id string) (waypoints.Snapshot, error) {
	var reason string
	snap, _ := c.store.Update(func(list []models.Waypoint) ([]models.Waypoint, bool) {
		idx := waypoints.IndexOf(list, id)
		if idx < 0 {
			reason = "unknown waypoint"
			return list, false
		}
		if !list[idx].IsEditing {
			reason = "waypoint is not being edited"
			return list, false
		}
		return waypoints.Remove(list, id)
	})
	if reason != "" {
		return snap, rejected("cancel", reason)
	}
	return snap, nil
}

// Delete removes id. Unknown ids are a no-op.
func (c *Controller) Delete(id string) waypoints.Snapshot {
	snap, removed := c.store.Remove(id)
	if removed {
		c.log.WithField("waypoint_id", id).Info("[REORDER] Waypoint deleted")
	}
	return snap
}

// SetDetails edits name, category or planned duration in place
func (c *Controller) SetDetails(id string, d Details) (waypoints.Snapshot, error) {
	if d.Category != nil && !d.Category.Valid() {
		return c.store.Snapshot(), rejected("edit", fmt.Sprintf("unknown category %q", *d.Category))
	}
	if d.Duration != nil && *d.Duration < 0 {
		return c.store.Snapshot(), rejected("edit", "duration must not be negative")
	}

	var reason string
	snap, _ := c.store.Update(func(list []models.Waypoint) ([]models.Waypoint, bool) {
		idx := waypoints.IndexOf(list, id)
		if idx < 0 {
			reason = "unknown waypoint"
			return list, false
		}
		w := list[idx].Clone()
		if d.Name != nil {
			w.Name = *d.Name
		}
		if d.Category != nil {
			w.Category = *d.Category
		}
		if d.Duration != nil {
			w.PlannedDurationMinutes = *d.Duration
		}
		if equalAttrs(w, list[idx]) {
			return list, false
		}
		return waypoints.Replace(list, id, w)
	})
	if reason != "" {
		return snap, rejected("edit", reason)
	}
	return snap, nil
}

func equalAttrs(a, b models.Waypoint) bool {
	return a.Name == b.Name && a.Category == b.Category && a.PlannedDurationMinutes == b.PlannedDurationMinutes
}
