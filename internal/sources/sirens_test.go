package sources

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpsCenterRio/COR-Backend/internal/apperr"
)

const sirenFeedSample = `<?xml version="1.0" encoding="UTF-8"?>
<sirenes>
  <estacao id="1" nome="Rocinha 1">
    <localizacao latitude="-22,9881" longitude="-43,2475" bacia="Rocinha"/>
    <status online="true" status="at"/>
  </estacao>
  <estacao id="2" nome="Vidigal 2">
    <localizacao latitude="-22,9932" longitude="-43,2361" bacia="-"/>
    <status online="true" status="ac"/>
  </estacao>
  <estacao id="3" nome="Salgueiro 1">
    <localizacao latitude="-22,9221" longitude="-43,2412" bacia="Salgueiro"/>
    <status online="false" status="ds"/>
  </estacao>
  <estacao id="4" nome="Borel 3">
    <localizacao latitude="bogus" longitude="-43,2520" bacia="Borel"/>
    <status online="true" status="xx"/>
  </estacao>
</sirenes>`

type sirenPayload struct {
	Sirens  []Siren      `json:"sirens"`
	Summary SirenSummary `json:"summary"`
}

func TestParseSirensMapsStationsAndStatuses(t *testing.T) {
	raw, err := parseSirens([]byte(sirenFeedSample))
	require.NoError(t, err)

	var got sirenPayload
	require.NoError(t, json.Unmarshal(raw, &got))
	require.Len(t, got.Sirens, 4)

	active := got.Sirens[0]
	assert.Equal(t, "1", active.ID)
	assert.Equal(t, "Rocinha 1", active.Name)
	assert.InDelta(t, -22.9881, active.Latitude, 1e-6)
	assert.InDelta(t, -43.2475, active.Longitude, 1e-6)
	assert.Equal(t, "Rocinha", active.Basin)
	assert.True(t, active.Online)
	assert.Equal(t, "active", active.Status)
	assert.Equal(t, "Ativa", active.StatusLabel)

	triggered := got.Sirens[1]
	assert.Equal(t, "triggered", triggered.Status)
	assert.Equal(t, "Acionada", triggered.StatusLabel)
	assert.Empty(t, triggered.Basin, "dash basin means no basin")

	inactive := got.Sirens[2]
	assert.False(t, inactive.Online)
	assert.Equal(t, "inactive", inactive.Status)
	assert.Equal(t, "Desativada", inactive.StatusLabel)

	unknown := got.Sirens[3]
	assert.Equal(t, "unknown", unknown.Status)
	assert.Zero(t, unknown.Latitude, "unparseable coordinate falls back to zero")
	assert.InDelta(t, -43.2520, unknown.Longitude, 1e-6)
}

func TestParseSirensSummaryCounts(t *testing.T) {
	raw, err := parseSirens([]byte(sirenFeedSample))
	require.NoError(t, err)

	var got sirenPayload
	require.NoError(t, json.Unmarshal(raw, &got))

	assert.Equal(t, 4, got.Summary.Total)
	assert.Equal(t, 3, got.Summary.Online)
	assert.Equal(t, 1, got.Summary.Active)
	assert.Equal(t, 1, got.Summary.Triggered)
	assert.Equal(t, 1, got.Summary.Inactive)
}

func TestParseSirensRejectsMalformedXML(t *testing.T) {
	_, err := parseSirens([]byte(`<sirenes><estacao`))
	assert.Error(t, err)
}

func TestSirenProviderUnconfigured(t *testing.T) {
	p := newSirenProvider("", time.Second)
	_, err := p.Fetch(context.Background())
	assert.True(t, errors.Is(err, apperr.ErrSourceUnavailable))
}

func TestSirenProviderFetchesAndConverts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/xml", r.Header.Get("Accept"))
		w.Write([]byte(sirenFeedSample))
	}))
	defer srv.Close()

	p := newSirenProvider(srv.URL, time.Second)
	raw, err := p.Fetch(context.Background())
	require.NoError(t, err)

	var got sirenPayload
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, 4, got.Summary.Total)
}

func TestLayersCatalog(t *testing.T) {
	h := newTestHandler(newFakeStore(), &fakeProvider{})

	rec := httptest.NewRecorder()
	h.Layers(rec, httptest.NewRequest(http.MethodGet, "/map/layers", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.True(t, env.Success)

	var got struct {
		Layers []MapLayer `json:"layers"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &got))
	require.NotEmpty(t, got.Layers)

	byID := make(map[string]MapLayer, len(got.Layers))
	for _, l := range got.Layers {
		byID[l.ID] = l
	}
	radar, ok := byID["weather-radar"]
	require.True(t, ok)
	assert.Equal(t, "/radar", radar.Endpoint)
	assert.True(t, radar.DefaultVisible)

	sirens, ok := byID["sirens"]
	require.True(t, ok)
	assert.Equal(t, "/sirens", sirens.Endpoint)
	assert.Equal(t, 120, sirens.RefreshSeconds)
}
