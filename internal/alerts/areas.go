package alerts

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/OpsCenterRio/COR-Backend/internal/apperr"
)

// AreaInput is the API shape of a target area: either an inline GeoJSON
// Polygon/MultiPolygon or a circle given as center plus radius in meters.
type AreaInput struct {
	Kind    string          `json:"kind" validate:"required,oneof=polygon circle"`
	GeoJSON json.RawMessage `json:"geojson,omitempty"`
	Center  *LatLon         `json:"center,omitempty"`
	RadiusM float64         `json:"radius_m,omitempty"`
}

type LatLon struct {
	Latitude  float64 `json:"latitude" validate:"min=-90,max=90"`
	Longitude float64 `json:"longitude" validate:"min=-180,max=180"`
}

func (a AreaInput) validate() error {
	switch a.Kind {
	case "polygon":
		if len(a.GeoJSON) == 0 {
			return fmt.Errorf("polygon area requires geojson: %w", apperr.ErrValidation)
		}
		var geom struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(a.GeoJSON, &geom); err != nil {
			return fmt.Errorf("malformed geojson: %w", apperr.ErrValidation)
		}
		if geom.Type != "Polygon" && geom.Type != "MultiPolygon" {
			return fmt.Errorf("geojson must be Polygon or MultiPolygon, got %q: %w", geom.Type, apperr.ErrValidation)
		}
	case "circle":
		if a.Center == nil {
			return fmt.Errorf("circle area requires center: %w", apperr.ErrValidation)
		}
		if a.RadiusM <= 0 || a.RadiusM > 100000 {
			return fmt.Errorf("circle radius must be in (0, 100000] meters: %w", apperr.ErrValidation)
		}
		if a.Center.Latitude < -90 || a.Center.Latitude > 90 ||
			a.Center.Longitude < -180 || a.Center.Longitude > 180 {
			return fmt.Errorf("circle center out of range: %w", apperr.ErrValidation)
		}
	default:
		return fmt.Errorf("unknown area kind %q: %w", a.Kind, apperr.ErrValidation)
	}
	return nil
}

// buildArea converts an input into a row, computing the multipolygon in the
// database so geometry validation and geodesic buffering stay in PostGIS.
func buildArea(tx *gorm.DB, alertID string, in AreaInput) (*AlertArea, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	area := &AlertArea{
		ID:      uuid.NewString(),
		AlertID: alertID,
		Kind:    in.Kind,
	}

	var geom string
	var err error
	switch in.Kind {
	case "polygon":
		err = tx.Raw(`SELECT ST_AsEWKT(ST_Multi(ST_SetSRID(ST_GeomFromGeoJSON(?), 4326)))`,
			string(in.GeoJSON)).Scan(&geom).Error
	case "circle":
		// Buffer in geography so the radius is meters regardless of latitude.
		err = tx.Raw(`SELECT ST_AsEWKT(ST_Multi(ST_Buffer(
			ST_SetSRID(ST_MakePoint(?, ?), 4326)::geography, ?)::geometry))`,
			in.Center.Longitude, in.Center.Latitude, in.RadiusM).Scan(&geom).Error
	}
	if err != nil {
		return nil, fmt.Errorf("build area geometry: %w (%w)", err, apperr.ErrValidation)
	}
	if geom == "" {
		return nil, fmt.Errorf("area produced empty geometry: %w", apperr.ErrValidation)
	}

	area.Geom = geom
	return area, nil
}
