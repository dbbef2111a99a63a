package geolocation

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"

	"iter-viae/internal/models"
)

const (
	geoService    = "org.freedesktop.GeoClue2"
	managerPath   = dbus.ObjectPath("/org/freedesktop/GeoClue2/Manager")
	managerIface  = "org.freedesktop.GeoClue2.Manager"
	clientIface   = "org.freedesktop.GeoClue2.Client"
	locationIface = "org.freedesktop.GeoClue2.Location"
	propsIface    = "org.freedesktop.DBus.Properties"

	// GeoClue accuracy level "city"; recentering does not need a street fix
	accuracyCity = uint32(4)
)

// GeoClueLocator asks GeoClue on the system bus for a single fix. DesktopID
// must match a .desktop file that declares X-Geoclue-2-Client=true.
type GeoClueLocator struct {
	DesktopID string
	log       *logrus.Entry
}

func NewGeoClueLocator(desktopID string, logger *logrus.Logger) *GeoClueLocator {
	return &GeoClueLocator{DesktopID: desktopID, log: logger.WithField("component", "geoclue")}
}

func (g *GeoClueLocator) Locate(ctx context.Context) (models.Coordinates, error) {
	bus, err := dbus.ConnectSystemBus(dbus.WithContext(ctx))
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer bus.Close()

	var clientPath dbus.ObjectPath
	if err := bus.Object(geoService, managerPath).CallWithContext(ctx, managerIface+".GetClient", 0).Store(&clientPath); err != nil {
		return models.Coordinates{}, fmt.Errorf("%w: create client: %v", ErrUnavailable, err)
	}
	client := bus.Object(geoService, clientPath)

	setProp := func(name string, val any) error {
		return client.CallWithContext(ctx, propsIface+".Set", 0, clientIface, name, dbus.MakeVariant(val)).Err
	}
	if err := setProp("DesktopId", g.DesktopID); err != nil {
		return models.Coordinates{}, fmt.Errorf("%w: set DesktopId: %v", ErrUnavailable, err)
	}
	if err := setProp("RequestedAccuracyLevel", accuracyCity); err != nil {
		return models.Coordinates{}, fmt.Errorf("%w: set accuracy: %v", ErrUnavailable, err)
	}

	if err := bus.AddMatchSignal(
		dbus.WithMatchObjectPath(clientPath),
		dbus.WithMatchInterface(propsIface),
		dbus.WithMatchMember("PropertiesChanged"),
	); err != nil {
		return models.Coordinates{}, fmt.Errorf("%w: subscribe: %v", ErrUnavailable, err)
	}
	signals := make(chan *dbus.Signal, 4)
	bus.Signal(signals)

	if err := client.CallWithContext(ctx, clientIface+".Start", 0).Err; err != nil {
		return models.Coordinates{}, fmt.Errorf("%w: start: %v", ErrUnavailable, err)
	}
	defer client.Call(clientIface+".Stop", 0)

	if v, err := client.GetProperty(clientIface + ".Location"); err == nil {
		if path, ok := v.Value().(dbus.ObjectPath); ok && path != "/" && path != "" {
			return g.read(ctx, bus, path)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return models.Coordinates{}, ctx.Err()
		case sig, ok := <-signals:
			if !ok || sig == nil {
				return models.Coordinates{}, fmt.Errorf("%w: signal channel closed", ErrUnavailable)
			}
			if path, ok := locationFromSignal(sig, clientPath); ok {
				return g.read(ctx, bus, path)
			}
		}
	}
}

func (g *GeoClueLocator) read(ctx context.Context, bus *dbus.Conn, path dbus.ObjectPath) (models.Coordinates, error) {
	var props map[string]dbus.Variant
	if err := bus.Object(geoService, path).CallWithContext(ctx, propsIface+".GetAll", 0, locationIface).Store(&props); err != nil {
		return models.Coordinates{}, fmt.Errorf("%w: read location: %v", ErrUnavailable, err)
	}
	c, err := coordinatesFromProps(props)
	if err != nil {
		return models.Coordinates{}, err
	}
	g.log.WithFields(logrus.Fields{"lat": c.Lat, "lng": c.Lng}).Info("[GEOLOCATION] Fix acquired")
	return c, nil
}

func locationFromSignal(sig *dbus.Signal, clientPath dbus.ObjectPath) (dbus.ObjectPath, bool) {
	if sig.Name != propsIface+".PropertiesChanged" || sig.Path != clientPath || len(sig.Body) < 2 {
		return "", false
	}
	changed, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return "", false
	}
	v, ok := changed["Location"]
	if !ok {
		return "", false
	}
	path, ok := v.Value().(dbus.ObjectPath)
	return path, ok && path != "" && path != "/"
}

func coordinatesFromProps(props map[string]dbus.Variant) (models.Coordinates, error) {
	f64 := func(key string) (float64, bool) {
		v, ok := props[key]
		if !ok {
			return 0, false
		}
		f, ok := v.Value().(float64)
		return f, ok
	}
	lat, okLat := f64("Latitude")
	lng, okLng := f64("Longitude")
	if !okLat || !okLng {
		return models.Coordinates{}, fmt.Errorf("%w: location lacks latitude or longitude", ErrUnavailable)
	}
	c := models.Coordinates{Lat: lat, Lng: lng}
	if !c.Valid() {
		return models.Coordinates{}, fmt.Errorf("%w: location out of range", ErrUnavailable)
	}
	return c, nil
}
