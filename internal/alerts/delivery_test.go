package alerts

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/OpsCenterRio/COR-Backend/internal/devices"
	"github.com/OpsCenterRio/COR-Backend/internal/push"
)

// deliveryRecorder fakes the delivery table: it enforces the
// (alert_id, device_id) uniqueness the real upsert provides.
type deliveryRecorder struct {
	mu      sync.Mutex
	rows    map[string]*AlertDelivery
	upserts int
}

func newDeliveryRecorder() *deliveryRecorder {
	return &deliveryRecorder{rows: make(map[string]*AlertDelivery)}
}

func (r *deliveryRecorder) upsert(d *AlertDelivery) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts++
	key := d.AlertID + "/" + d.DeviceID
	if existing, ok := r.rows[key]; ok {
		existing.MatchType = d.MatchType
		existing.ProviderStatus = d.ProviderStatus
		existing.ProviderError = d.ProviderError
		return
	}
	r.rows[key] = d
}

func newRunnerFixture(t *testing.T, alert *Alert, audience []devices.Device) (*DeliveryRunner, *deliveryRecorder) {
	t.Helper()

	store := new(mockStore)
	store.On("GetAlert", mock.Anything, alert.ID).Return(alert, nil)

	recorder := newDeliveryRecorder()
	store.On("UpsertDelivery", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		recorder.upsert(args.Get(1).(*AlertDelivery))
	}).Return(nil)

	spatial := new(mockSpatialStore)
	spatial.On("AllRegistered", mock.Anything).Return(audience, nil).Maybe()
	spatial.On("GeoMatches", mock.Anything, alert.ID).Return(audience, nil).Maybe()

	dispatcher := push.NewDispatcher(push.NewSimulatedGateway(), 500, 0, nil)
	return NewDeliveryRunner(store, NewResolver(spatial), dispatcher), recorder
}

func TestDeliveryRunRecordsOneRowPerDevice(t *testing.T) {
	alert := &Alert{ID: "al1", Status: StatusSent, Broadcast: true, Title: "flood", Body: "stay home"}
	runner, recorder := newRunnerFixture(t, alert, []devices.Device{dev("a"), dev("b"), dev("c")})

	require.NoError(t, runner.Run(context.Background(), "al1"))

	assert.Len(t, recorder.rows, 3)
	for _, row := range recorder.rows {
		assert.Equal(t, MatchBroadcast, row.MatchType)
		assert.NotEmpty(t, row.ProviderStatus)
	}
}

func TestDeliveryRunIsIdempotentAcrossRetries(t *testing.T) {
	alert := &Alert{ID: "al1", Status: StatusSent, Broadcast: true, Title: "flood", Body: "stay home"}
	runner, recorder := newRunnerFixture(t, alert, []devices.Device{dev("a"), dev("b")})

	require.NoError(t, runner.Run(context.Background(), "al1"))
	require.NoError(t, runner.Run(context.Background(), "al1"))

	// Two runs double the upserts but never the rows.
	assert.Equal(t, 4, recorder.upserts)
	assert.Len(t, recorder.rows, 2)
}

func TestDeliveryRunSkipsNonSentAlerts(t *testing.T) {
	for _, status := range []string{StatusDraft, StatusCanceled} {
		t.Run(status, func(t *testing.T) {
			alert := &Alert{ID: "al1", Status: status, Broadcast: true}
			runner, recorder := newRunnerFixture(t, alert, []devices.Device{dev("a")})

			require.NoError(t, runner.Run(context.Background(), "al1"))
			assert.Empty(t, recorder.rows, "no deliveries for a %s alert", status)
		})
	}
}

func TestDeliveryRunEmptyAudienceIsNotAnError(t *testing.T) {
	alert := &Alert{ID: "al1", Status: StatusSent, Broadcast: true}
	runner, recorder := newRunnerFixture(t, alert, nil)

	require.NoError(t, runner.Run(context.Background(), "al1"))
	assert.Empty(t, recorder.rows)
}
