package reorder

import (
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iter-viae/internal/models"
	"iter-viae/internal/waypoints"
)

func resolved(id string) models.Waypoint {
	return models.Waypoint{ID: id, Name: id, Coord: &models.Coordinates{Lat: 1, Lng: 2}, Category: models.CategoryStop}
}

func setup(t *testing.T, initial ...models.Waypoint) (*Controller, *waypoints.Store) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	store := waypoints.NewStore(initial)
	return NewController(store, logger), store
}

func order(s *waypoints.Store) []string {
	var out []string
	for _, w := range s.Snapshot().Waypoints {
		out = append(out, w.ID)
	}
	return out
}

func TestReorderMovesOneWaypoint(t *testing.T) {
	c, store := setup(t, resolved("a"), resolved("b"), resolved("c"), resolved("d"))

	_, err := c.Reorder("a", 0, 2)

	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "a", "d"}, order(store))
}

func TestReorderSameIndexIsNoop(t *testing.T) {
	c, store := setup(t, resolved("a"), resolved("b"))

	snap, err := c.Reorder("b", 1, 1)

	require.NoError(t, err)
	assert.Equal(t, uint64(0), snap.Version)
	assert.Equal(t, []string{"a", "b"}, order(store))
}

func TestReorderRejectedWhileEditing(t *testing.T) {
	c, store := setup(t, resolved("a"), resolved("b"))
	_, err := c.InsertShapingPointAfter(0)
	require.NoError(t, err)
	assert.False(t, c.CanDrag())

	_, err = c.Reorder("a", 0, 2)

	assert.ErrorIs(t, err, waypoints.ErrRejected)
	assert.Equal(t, "a", order(store)[0])
}

func TestReorderRejectsStaleSourceIndex(t *testing.T) {
	c, _ := setup(t, resolved("a"), resolved("b"))

	_, err := c.Reorder("b", 0, 1)
	assert.ErrorIs(t, err, waypoints.ErrRejected)

	_, err = c.Reorder("a", 0, 7)
	assert.ErrorIs(t, err, waypoints.ErrRejected)
}

func TestInsertShapingPointAfter(t *testing.T) {
	c, store := setup(t, resolved("a"), resolved("b"))

	wp, err := c.InsertShapingPointAfter(0)
	require.NoError(t, err)

	snap := store.Snapshot()
	require.Len(t, snap.Waypoints, 3)
	inserted := snap.Waypoints[1]
	assert.Equal(t, wp.ID, inserted.ID)
	assert.True(t, inserted.IsEditing)
	assert.False(t, inserted.IsResolved())
	assert.Equal(t, models.CategoryShaping, inserted.Category)

	_, err = c.InsertShapingPointAfter(9)
	assert.ErrorIs(t, err, waypoints.ErrRejected)
}

func TestResolveFinishesEdit(t *testing.T) {
	c, store := setup(t, resolved("a"))
	wp, err := c.BeginStop(0, models.CategoryFuel)
	require.NoError(t, err)

	_, err = c.Resolve(wp.ID, "Shell", models.Coordinates{Lat: 40.7, Lng: -74})
	require.NoError(t, err)

	got, ok := store.Snapshot().Find(wp.ID)
	require.True(t, ok)
	assert.False(t, got.IsEditing)
	assert.Equal(t, "Shell", got.Name)
	assert.Equal(t, models.CategoryFuel, got.Category)
	assert.True(t, c.CanDrag())

	// resolved is terminal
	_, err = c.Resolve(wp.ID, "Again", models.Coordinates{})
	assert.ErrorIs(t, err, waypoints.ErrRejected)
}

func TestCancelRemovesEditingEntry(t *testing.T) {
	c, store := setup(t, resolved("a"))
	wp, err := c.InsertShapingPointAfter(0)
	require.NoError(t, err)

	_, err = c.Cancel(wp.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, order(store))

	_, err = c.Cancel("a")
	assert.ErrorIs(t, err, waypoints.ErrRejected)
	assert.Equal(t, []string{"a"}, order(store))
}

func TestDeleteUnknownIsNoop(t *testing.T) {
	c, store := setup(t, resolved("a"))

	snap := c.Delete("ghost")

	assert.Equal(t, uint64(0), snap.Version)
	assert.Equal(t, []string{"a"}, order(store))
}

func TestSetDetails(t *testing.T) {
	c, store := setup(t, resolved("a"))
	name := "Diner"
	cat := models.CategoryFood
	dur := 30

	snap, err := c.SetDetails("a", Details{Name: &name, Category: &cat, Duration: &dur})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), snap.Version)

	got, _ := store.Snapshot().Find("a")
	assert.Equal(t, "Diner", got.Name)
	assert.Equal(t, models.CategoryFood, got.Category)
	assert.Equal(t, 30, got.PlannedDurationMinutes)
	assert.Equal(t, models.Coordinates{Lat: 1, Lng: 2}, *got.Coord)

	snap, err = c.SetDetails("a", Details{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), snap.Version, "unchanged edit is not published")

	neg := -1
	_, err = c.SetDetails("a", Details{Duration: &neg})
	assert.ErrorIs(t, err, waypoints.ErrRejected)

	bad := models.Category("spaceport")
	_, err = c.SetDetails("a", Details{Category: &bad})
	assert.ErrorIs(t, err, waypoints.ErrRejected)
}

func TestApplyOrder(t *testing.T) {
	c, store := setup(t, resolved("a"), resolved("b"), resolved("c"))

	_, err := c.ApplyOrder([]string{"c", "b", "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, order(store))

	_, err = c.ApplyOrder([]string{"a", "b"})
	assert.ErrorIs(t, err, waypoints.ErrRejected)

	_, err = c.ApplyOrder([]string{"a", "a", "b"})
	assert.ErrorIs(t, err, waypoints.ErrRejected)

	_, err = c.ApplyOrder([]string{"c", "b", "x"})
	assert.ErrorIs(t, err, waypoints.ErrRejected)
	assert.Equal(t, []string{"c", "b", "a"}, order(store), "rejected order leaves the store alone")

	snap, err := c.ApplyOrder([]string{"c", "b", "a"})
	require.NoError(t, err, "the current order is accepted as a no-op")
	assert.Equal(t, []string{"c", "b", "a"}, order(store))
	assert.Equal(t, store.Snapshot().Version, snap.Version)
}

func TestAddResolved(t *testing.T) {
	c, store := setup(t, resolved("a"))

	wp, err := c.AddResolved(0, "40.00000000, -74.00000000", models.Coordinates{Lat: 40, Lng: -74}, models.CategoryStop)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", wp.ID}, order(store))

	_, err = c.AddResolved(0, "bad", models.Coordinates{Lat: 95, Lng: 0}, models.CategoryStop)
	assert.ErrorIs(t, err, waypoints.ErrRejected)
}

func TestAppend(t *testing.T) {
	c, store := setup(t, resolved("a"))

	wp, err := c.Append("Depot", models.Coordinates{Lat: 10, Lng: 10}, models.CategoryFuel)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", wp.ID}, order(store))

	_, err = c.Append("Nowhere", models.Coordinates{Lat: 0, Lng: 181}, models.CategoryStop)
	assert.ErrorIs(t, err, waypoints.ErrRejected)
}
