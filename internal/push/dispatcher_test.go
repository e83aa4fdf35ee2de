package push

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpsCenterRio/COR-Backend/internal/observability"
)

type recordingGateway struct {
	mu      sync.Mutex
	batches [][]string
	current []string
}

func (g *recordingGateway) Name() string { return "recording" }

func (g *recordingGateway) Send(n Notification) Result {
	g.mu.Lock()
	g.current = append(g.current, n.DeviceToken)
	g.mu.Unlock()
	return Result{DeviceToken: n.DeviceToken, Success: true, Status: StatusSent}
}

// cut closes the batch in flight, recording its tokens as one batch.
func (g *recordingGateway) cut() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.current) == 0 {
		return
	}
	g.batches = append(g.batches, g.current)
	g.current = nil
}

func makeNotifications(n int) []Notification {
	out := make([]Notification, n)
	for i := range out {
		out[i] = Notification{DeviceToken: fmt.Sprintf("token-%04d", i), Title: "t", Body: "b"}
	}
	return out
}

func TestDispatchSplitsIntoCappedBatches(t *testing.T) {
	gw := &recordingGateway{}
	d := NewDispatcher(gw, 500, 0, observability.NewMetricsForTesting())

	results, err := d.Dispatch(context.Background(), makeNotifications(750))
	require.NoError(t, err)
	require.Len(t, results, 750)

	// Every result is in input order and nothing was dropped.
	for i, r := range results {
		assert.Equal(t, fmt.Sprintf("token-%04d", i), r.DeviceToken)
	}
}

func TestChunks(t *testing.T) {
	assert.Equal(t, [][2]int{{0, 500}, {500, 750}}, chunks(750, 500))
	assert.Equal(t, [][2]int{{0, 500}}, chunks(500, 500))
	assert.Equal(t, [][2]int{{0, 3}}, chunks(3, 500))
	assert.Nil(t, chunks(0, 500))
}

func TestDispatchEmptyAudience(t *testing.T) {
	d := NewDispatcher(&recordingGateway{}, 500, 0, nil)
	results, err := d.Dispatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDispatchPausesAtBatchBoundaries(t *testing.T) {
	gw := &recordingGateway{}
	d := NewDispatcher(gw, 500, time.Second, nil)
	clock := clockwork.NewFakeClock()
	d.clock = clock

	done := make(chan struct{})
	var results []Result
	var err error
	go func() {
		results, err = d.Dispatch(context.Background(), makeNotifications(750))
		close(done)
	}()

	// The dispatcher parks on the inter-batch pause once the first batch is
	// fully sent; everything recorded so far is exactly that batch.
	clock.BlockUntil(1)
	gw.cut()
	clock.Advance(time.Second)
	<-done
	gw.cut()

	require.NoError(t, err)
	require.Len(t, results, 750)
	require.Len(t, gw.batches, 2)
	assert.Len(t, gw.batches[0], 500)
	assert.Len(t, gw.batches[1], 250)
	assert.Equal(t, "token-0000", gw.batches[0][0])
	assert.Equal(t, "token-0500", gw.batches[1][0])
}

func TestDispatchCanceledContextStopsBetweenBatches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gw := &recordingGateway{}
	d := NewDispatcher(gw, 10, time.Second, nil)

	cancel()
	results, err := d.Dispatch(ctx, makeNotifications(25))

	// First batch completes; the pause before the second observes the cancel.
	require.Error(t, err)
	assert.Len(t, results, 10)
}

func TestSimulatedGatewayIsDeterministic(t *testing.T) {
	gw := NewSimulatedGateway()
	notifications := makeNotifications(1000)

	first := make([]Result, len(notifications))
	for i, n := range notifications {
		first[i] = gw.Send(n)
	}
	for i, n := range notifications {
		again := gw.Send(n)
		assert.Equal(t, first[i].Status, again.Status)
	}

	counts := Summarize(first)
	assert.Greater(t, counts[StatusSent], 800, "most simulated sends succeed")
	assert.Greater(t, counts[StatusInvalidToken]+counts[StatusFailed], 0, "some simulated sends fail")
}

func TestSummarize(t *testing.T) {
	results := []Result{
		{Status: StatusSent, Success: true},
		{Status: StatusSent, Success: true},
		{Status: StatusInvalidToken},
		{Status: StatusFailed},
	}
	counts := Summarize(results)
	assert.Equal(t, 2, counts[StatusSent])
	assert.Equal(t, 1, counts[StatusInvalidToken])
	assert.Equal(t, 1, counts[StatusFailed])
}
