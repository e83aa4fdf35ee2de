package alerts

import (
	"context"
	"fmt"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/OpsCenterRio/COR-Backend/internal/devices"
)

// SpatialStore answers the device-matching queries targeting needs. Split
// from the alert Store so targeting can be unit tested without PostGIS.
type SpatialStore interface {
	// AllRegistered returns every device with a usable push token.
	AllRegistered(ctx context.Context) ([]devices.Device, error)
	// GeoMatches returns devices whose last known location falls inside any
	// of the alert's areas.
	GeoMatches(ctx context.Context, alertID string) ([]devices.Device, error)
	// NeighborhoodMatches returns devices with no known location subscribed
	// to at least one of the given neighborhoods.
	NeighborhoodMatches(ctx context.Context, neighborhoods []string) ([]devices.Device, error)
	// AnyAreaContains reports whether the point lies inside any of the
	// alert's areas.
	AnyAreaContains(ctx context.Context, alertID string, lat, lon float64) (bool, error)
	// DeviceInAnyArea reports whether the device's stored location lies
	// inside any of the alert's areas.
	DeviceInAnyArea(ctx context.Context, alertID, deviceID string) (bool, error)
}

type gormSpatialStore struct {
	db *gorm.DB
}

func NewSpatialStore(db *gorm.DB) SpatialStore {
	return &gormSpatialStore{db: db}
}

func (s *gormSpatialStore) AllRegistered(ctx context.Context) ([]devices.Device, error) {
	var out []devices.Device
	err := s.db.WithContext(ctx).
		Where("push_token <> ''").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("all registered devices: %w", err)
	}
	return out, nil
}

func (s *gormSpatialStore) GeoMatches(ctx context.Context, alertID string) ([]devices.Device, error) {
	var out []devices.Device
	err := s.db.WithContext(ctx).Raw(`
		SELECT d.* FROM devices d
		WHERE d.push_token <> ''
		  AND d.last_location IS NOT NULL
		  AND EXISTS (
			SELECT 1 FROM alert_areas a
			WHERE a.alert_id = ?
			  AND ST_Contains(a.geom, d.last_location)
		  )`, alertID).Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("geo matches for alert %s: %w", alertID, err)
	}
	return out, nil
}

func (s *gormSpatialStore) AnyAreaContains(ctx context.Context, alertID string, lat, lon float64) (bool, error) {
	var contained bool
	err := s.db.WithContext(ctx).Raw(`
		SELECT EXISTS (
			SELECT 1 FROM alert_areas a
			WHERE a.alert_id = ?
			  AND ST_Contains(a.geom, ST_SetSRID(ST_MakePoint(?, ?), 4326))
		)`, alertID, lon, lat).Scan(&contained).Error
	if err != nil {
		return false, fmt.Errorf("point containment for alert %s: %w", alertID, err)
	}
	return contained, nil
}

func (s *gormSpatialStore) DeviceInAnyArea(ctx context.Context, alertID, deviceID string) (bool, error) {
	var contained bool
	err := s.db.WithContext(ctx).Raw(`
		SELECT EXISTS (
			SELECT 1 FROM alert_areas a
			JOIN devices d ON d.id = ?
			WHERE a.alert_id = ?
			  AND d.last_location IS NOT NULL
			  AND ST_Contains(a.geom, d.last_location)
		)`, deviceID, alertID).Scan(&contained).Error
	if err != nil {
		return false, fmt.Errorf("device containment for alert %s: %w", alertID, err)
	}
	return contained, nil
}

func (s *gormSpatialStore) NeighborhoodMatches(ctx context.Context, neighborhoods []string) ([]devices.Device, error) {
	if len(neighborhoods) == 0 {
		return nil, nil
	}
	var out []devices.Device
	err := s.db.WithContext(ctx).Raw(`
		SELECT d.* FROM devices d
		WHERE d.push_token <> ''
		  AND d.last_location IS NULL
		  AND d.neighborhoods && ?`, pq.Array(neighborhoods)).Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("neighborhood matches: %w", err)
	}
	return out, nil
}
