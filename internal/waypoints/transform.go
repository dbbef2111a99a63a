package waypoints

import (
	"github.com/samber/lo"

	"iter-viae/internal/models"
)

// The transforms below never mutate their input. Each returns the next collection
// and whether anything changed; a rejected or no-op transform returns the input.

// IndexOf returns the position of id, or -1
func IndexOf(list []models.Waypoint, id string) int {
	_, idx, ok := lo.FindIndexOf(list, func(w models.Waypoint) bool { return w.ID == id })
	if !ok {
		return -1
	}
	return idx
}

// Append adds wp at the end. Duplicate or empty ids are rejected.
func Append(list []models.Waypoint, wp models.Waypoint) ([]models.Waypoint, bool) {
	return InsertAfter(list, len(list)-1, wp)
}

// InsertAfter places wp immediately after index. Index -1 inserts at the front.
func InsertAfter(list []models.Waypoint, index int, wp models.Waypoint) ([]models.Waypoint, bool) {
	if wp.ID == "" || IndexOf(list, wp.ID) >= 0 {
		return list, false
	}
	if index < -1 || index >= len(list) {
		return list, false
	}

	next := make([]models.Waypoint, 0, len(list)+1)
	next = append(next, list[:index+1]...)
	next = append(next, wp.Clone())
	next = append(next, list[index+1:]...)
	return next, true
}

// Remove drops the waypoint with id. Unknown ids are a no-op.
func Remove(list []models.Waypoint, id string) ([]models.Waypoint, bool) {
	idx := IndexOf(list, id)
	if idx < 0 {
		return list, false
	}
	next := make([]models.Waypoint, 0, len(list)-1)
	next = append(next, list[:idx]...)
	next = append(next, list[idx+1:]...)
	return next, true
}

// Replace swaps the waypoint with id for wp, keeping its position.
// wp may carry a new id only if that id is not used elsewhere.
func Replace(list []models.Waypoint, id string, wp models.Waypoint) ([]models.Waypoint, bool) {
	idx := IndexOf(list, id)
	if idx < 0 || wp.ID == "" {
		return list, false
	}
	if other := IndexOf(list, wp.ID); other >= 0 && other != idx {
		return list, false
	}
	next := make([]models.Waypoint, len(list))
	copy(next, list)
	next[idx] = wp.Clone()
	return next, true
}

// Move relocates the element at from to position to, preserving the relative
// order of everything else. from == to is a no-op.
func Move(list []models.Waypoint, from, to int) ([]models.Waypoint, bool) {
	n := len(list)
	if from == to || from < 0 || to < 0 || from >= n || to >= n {
		return list, false
	}
	next := make([]models.Waypoint, 0, n)
	moved := list[from]
	for i, w := range list {
		if i == from {
			continue
		}
		next = append(next, w)
	}
	next = append(next[:to], append([]models.Waypoint{moved}, next[to:]...)...)
	return next, true
}

// SetCoordinate updates only the coordinate of id, leaving every other attribute intact
func SetCoordinate(list []models.Waypoint, id string, coord models.Coordinates) ([]models.Waypoint, bool) {
	idx := IndexOf(list, id)
	if idx < 0 {
		return list, false
	}
	if cur := list[idx].Coord; cur != nil && *cur == coord {
		return list, false
	}
	wp := list[idx].Clone()
	wp.Coord = &coord
	return Replace(list, id, wp)
}

// SetOrder reorders the collection to match ids. The id set must be exactly the
// current one, otherwise the transform is rejected.
func SetOrder(list []models.Waypoint, ids []string) ([]models.Waypoint, bool) {
	if len(ids) != len(list) || len(lo.Uniq(ids)) != len(ids) {
		return list, false
	}
	byID := lo.KeyBy(list, func(w models.Waypoint) string { return w.ID })
	next := make([]models.Waypoint, 0, len(ids))
	changed := false
	for i, id := range ids {
		w, ok := byID[id]
		if !ok {
			return list, false
		}
		if list[i].ID != id {
			changed = true
		}
		next = append(next, w)
	}
	if !changed {
		return list, false
	}
	return next, true
}

// Routable returns the waypoints that take part in routing, in order
func Routable(list []models.Waypoint) []models.Waypoint {
	return lo.Filter(list, func(w models.Waypoint, _ int) bool { return w.Routable() })
}

// AnyEditing reports whether some waypoint is mid-edit
func AnyEditing(list []models.Waypoint) bool {
	return lo.SomeBy(list, func(w models.Waypoint) bool { return w.IsEditing })
}
