package alerts

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/OpsCenterRio/COR-Backend/internal/apperr"
)

func TestAreaInputValidate(t *testing.T) {
	polygon := json.RawMessage(`{"type":"Polygon","coordinates":[[[ -43.2,-22.9],[-43.1,-22.9],[-43.1,-22.8],[-43.2,-22.9]]]}`)

	cases := []struct {
		name    string
		in      AreaInput
		wantErr bool
	}{
		{"valid polygon", AreaInput{Kind: "polygon", GeoJSON: polygon}, false},
		{"polygon without geojson", AreaInput{Kind: "polygon"}, true},
		{"polygon with wrong geometry type", AreaInput{Kind: "polygon", GeoJSON: json.RawMessage(`{"type":"Point"}`)}, true},
		{"polygon with malformed geojson", AreaInput{Kind: "polygon", GeoJSON: json.RawMessage(`{{`)}, true},
		{"valid circle", AreaInput{Kind: "circle", Center: &LatLon{Latitude: -22.9, Longitude: -43.2}, RadiusM: 500}, false},
		{"circle without center", AreaInput{Kind: "circle", RadiusM: 500}, true},
		{"circle with zero radius", AreaInput{Kind: "circle", Center: &LatLon{}, RadiusM: 0}, true},
		{"circle with absurd radius", AreaInput{Kind: "circle", Center: &LatLon{}, RadiusM: 1e6}, true},
		{"circle with out of range center", AreaInput{Kind: "circle", Center: &LatLon{Latitude: 95}, RadiusM: 500}, true},
		{"unknown kind", AreaInput{Kind: "square"}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.in.validate()
			if tc.wantErr {
				assert.ErrorIs(t, err, apperr.ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
