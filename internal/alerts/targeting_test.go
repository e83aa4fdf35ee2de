package alerts

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/OpsCenterRio/COR-Backend/internal/devices"
)

type mockSpatialStore struct {
	mock.Mock
}

func (m *mockSpatialStore) AllRegistered(ctx context.Context) ([]devices.Device, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]devices.Device), args.Error(1)
}

func (m *mockSpatialStore) GeoMatches(ctx context.Context, alertID string) ([]devices.Device, error) {
	args := m.Called(ctx, alertID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]devices.Device), args.Error(1)
}

func (m *mockSpatialStore) NeighborhoodMatches(ctx context.Context, neighborhoods []string) ([]devices.Device, error) {
	args := m.Called(ctx, neighborhoods)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]devices.Device), args.Error(1)
}

func (m *mockSpatialStore) AnyAreaContains(ctx context.Context, alertID string, lat, lon float64) (bool, error) {
	args := m.Called(ctx, alertID, lat, lon)
	return args.Bool(0), args.Error(1)
}

func (m *mockSpatialStore) DeviceInAnyArea(ctx context.Context, alertID, deviceID string) (bool, error) {
	args := m.Called(ctx, alertID, deviceID)
	return args.Bool(0), args.Error(1)
}

func dev(id string) devices.Device {
	return devices.Device{ID: id, Platform: "android", PushToken: "token-" + id}
}

func TestTargetsBroadcastReachesEveryRegisteredDevice(t *testing.T) {
	store := new(mockSpatialStore)
	store.On("AllRegistered", mock.Anything).Return([]devices.Device{dev("a"), dev("b")}, nil)

	r := NewResolver(store)
	targets, err := r.Targets(context.Background(), &Alert{ID: "al1", Broadcast: true})

	require.NoError(t, err)
	require.Len(t, targets, 2)
	for _, tg := range targets {
		assert.Equal(t, MatchBroadcast, tg.MatchType)
	}
	store.AssertExpectations(t)
}

func TestTargetsGeoWinsOverNeighborhood(t *testing.T) {
	store := new(mockSpatialStore)
	store.On("GeoMatches", mock.Anything, "al1").Return([]devices.Device{dev("a"), dev("b")}, nil)
	store.On("NeighborhoodMatches", mock.Anything, []string{"Centro"}).Return([]devices.Device{dev("b"), dev("c")}, nil)

	alert := &Alert{
		ID:            "al1",
		Neighborhoods: []string{"Centro"},
		Areas:         []AlertArea{{ID: "ar1", AlertID: "al1"}},
	}

	targets, err := NewResolver(store).Targets(context.Background(), alert)
	require.NoError(t, err)
	require.Len(t, targets, 3)

	byID := make(map[string]string)
	for _, tg := range targets {
		byID[tg.Device.ID] = tg.MatchType
	}
	assert.Equal(t, MatchGeo, byID["a"])
	assert.Equal(t, MatchGeo, byID["b"], "device matching both ways keeps the geo label")
	assert.Equal(t, MatchNeighborhood, byID["c"])
}

func TestTargetsSkipsQueriesWithNothingToMatch(t *testing.T) {
	store := new(mockSpatialStore)
	store.On("GeoMatches", mock.Anything, "al1").Return([]devices.Device{dev("a")}, nil)

	alert := &Alert{ID: "al1", Areas: []AlertArea{{ID: "ar1"}}}

	targets, err := NewResolver(store).Targets(context.Background(), alert)
	require.NoError(t, err)
	assert.Len(t, targets, 1)
	store.AssertNotCalled(t, "NeighborhoodMatches", mock.Anything, mock.Anything)
}

func TestTargetsQueryFailureResolvesToEmptyAudience(t *testing.T) {
	store := new(mockSpatialStore)
	store.On("GeoMatches", mock.Anything, "al1").Return(nil, errors.New("db down"))

	alert := &Alert{ID: "al1", Areas: []AlertArea{{ID: "ar1"}}}

	targets, err := NewResolver(store).Targets(context.Background(), alert)
	require.Error(t, err)
	assert.Empty(t, targets)
}

func TestTargetsBroadcastFailureResolvesToEmptyAudience(t *testing.T) {
	store := new(mockSpatialStore)
	store.On("AllRegistered", mock.Anything).Return(nil, errors.New("db down"))

	targets, err := NewResolver(store).Targets(context.Background(), &Alert{ID: "al1", Broadcast: true})
	require.Error(t, err)
	assert.Empty(t, targets)
}

func TestMatchNeighborhoodOverlap(t *testing.T) {
	store := new(mockSpatialStore)
	alert := &Alert{ID: "al1", Neighborhoods: []string{"copacabana"}}

	deviceA := dev("a")
	deviceA.Neighborhoods = []string{"copacabana", "ipanema"}
	matchType, matched, err := NewResolver(store).Match(context.Background(), alert, &deviceA, nil, nil)
	require.NoError(t, err)
	assert.True(t, matched)
	assert.Equal(t, MatchNeighborhood, matchType)

	deviceB := dev("b")
	_, matched, err = NewResolver(store).Match(context.Background(), alert, &deviceB, nil, nil)
	require.NoError(t, err)
	assert.False(t, matched)
}

func TestMatchGeoWinsWhenCoordinatesSupplied(t *testing.T) {
	store := new(mockSpatialStore)
	store.On("AnyAreaContains", mock.Anything, "al1", -22.905, -43.175).Return(true, nil)

	alert := &Alert{
		ID:            "al1",
		Neighborhoods: []string{"centro"},
		Areas:         []AlertArea{{ID: "ar1"}},
	}
	device := dev("a")
	device.Neighborhoods = []string{"centro"}

	lat, lon := -22.905, -43.175
	matchType, matched, err := NewResolver(store).Match(context.Background(), alert, &device, &lat, &lon)

	require.NoError(t, err)
	assert.True(t, matched)
	assert.Equal(t, MatchGeo, matchType)
}

func TestMatchFallsBackToNeighborhoodOutsideAreas(t *testing.T) {
	store := new(mockSpatialStore)
	store.On("AnyAreaContains", mock.Anything, "al1", -22.80, -43.00).Return(false, nil)

	alert := &Alert{
		ID:            "al1",
		Neighborhoods: []string{"centro"},
		Areas:         []AlertArea{{ID: "ar1"}},
	}
	device := dev("a")
	device.Neighborhoods = []string{"centro"}

	lat, lon := -22.80, -43.00
	matchType, matched, err := NewResolver(store).Match(context.Background(), alert, &device, &lat, &lon)

	require.NoError(t, err)
	assert.True(t, matched)
	assert.Equal(t, MatchNeighborhood, matchType)
}

func TestMatchBroadcastIgnoresEverythingElse(t *testing.T) {
	device := dev("a")
	matchType, matched, err := NewResolver(new(mockSpatialStore)).Match(
		context.Background(), &Alert{ID: "al1", Broadcast: true}, &device, nil, nil)

	require.NoError(t, err)
	assert.True(t, matched)
	assert.Equal(t, MatchBroadcast, matchType)
}

func TestMatchUsesStoredLocationWithoutCoordinates(t *testing.T) {
	store := new(mockSpatialStore)
	store.On("DeviceInAnyArea", mock.Anything, "al1", "a").Return(true, nil)

	loc := "POINT(-43.175 -22.905)"
	device := dev("a")
	device.LastLocation = &loc

	alert := &Alert{ID: "al1", Areas: []AlertArea{{ID: "ar1"}}}
	matchType, matched, err := NewResolver(store).Match(context.Background(), alert, &device, nil, nil)

	require.NoError(t, err)
	assert.True(t, matched)
	assert.Equal(t, MatchGeo, matchType)
}

func TestTargetsResultIsDeterministicallyOrdered(t *testing.T) {
	store := new(mockSpatialStore)
	store.On("GeoMatches", mock.Anything, "al1").Return([]devices.Device{dev("c"), dev("a"), dev("b")}, nil)

	alert := &Alert{ID: "al1", Areas: []AlertArea{{ID: "ar1"}}}
	targets, err := NewResolver(store).Targets(context.Background(), alert)

	require.NoError(t, err)
	require.Len(t, targets, 3)
	assert.Equal(t, "a", targets[0].Device.ID)
	assert.Equal(t, "b", targets[1].Device.ID)
	assert.Equal(t, "c", targets[2].Device.ID)
}
