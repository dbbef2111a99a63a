package geolocation

import (
	"context"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iter-viae/internal/models"
)

func TestStaticLocator(t *testing.T) {
	want := models.Coordinates{Lat: 39.8283, Lng: -98.5795}

	got, err := StaticLocator{Coord: want}.Locate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = StaticLocator{Coord: want}.Locate(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNoLocator(t *testing.T) {
	_, err := NoLocator{}.Locate(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestCoordinatesFromProps(t *testing.T) {
	c, err := coordinatesFromProps(map[string]dbus.Variant{
		"Latitude":  dbus.MakeVariant(52.52),
		"Longitude": dbus.MakeVariant(13.405),
		"Accuracy":  dbus.MakeVariant(1500.0),
	})
	require.NoError(t, err)
	assert.Equal(t, models.Coordinates{Lat: 52.52, Lng: 13.405}, c)

	_, err = coordinatesFromProps(map[string]dbus.Variant{"Latitude": dbus.MakeVariant(52.52)})
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = coordinatesFromProps(map[string]dbus.Variant{
		"Latitude":  dbus.MakeVariant(152.0),
		"Longitude": dbus.MakeVariant(13.0),
	})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestLocationFromSignal(t *testing.T) {
	client := dbus.ObjectPath("/org/freedesktop/GeoClue2/Client/1")
	sig := &dbus.Signal{
		Path: client,
		Name: propsIface + ".PropertiesChanged",
		Body: []any{
			clientIface,
			map[string]dbus.Variant{"Location": dbus.MakeVariant(dbus.ObjectPath("/org/freedesktop/GeoClue2/Client/1/Location/0"))},
			[]string{},
		},
	}

	path, ok := locationFromSignal(sig, client)
	require.True(t, ok)
	assert.Equal(t, dbus.ObjectPath("/org/freedesktop/GeoClue2/Client/1/Location/0"), path)

	_, ok = locationFromSignal(sig, dbus.ObjectPath("/other"))
	assert.False(t, ok)

	sig.Body[1] = map[string]dbus.Variant{"Active": dbus.MakeVariant(true)}
	_, ok = locationFromSignal(sig, client)
	assert.False(t, ok)
}
