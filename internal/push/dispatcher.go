package push

import (
	"context"
	"log"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/OpsCenterRio/COR-Backend/internal/observability"
)

// Gateway sends a single notification to a provider.
type Gateway interface {
	Name() string
	Send(n Notification) Result
}

// Dispatcher fans a notification list out to a gateway in capped batches
// with a pause between batches to stay under provider rate limits.
type Dispatcher struct {
	gateway    Gateway
	batchSize  int
	batchDelay time.Duration
	clock      clockwork.Clock
	metrics    *observability.Metrics
}

func NewDispatcher(gateway Gateway, batchSize int, batchDelay time.Duration, metrics *observability.Metrics) *Dispatcher {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Dispatcher{
		gateway:    gateway,
		batchSize:  batchSize,
		batchDelay: batchDelay,
		clock:      clockwork.NewRealClock(),
		metrics:    metrics,
	}
}

// Dispatch sends every notification and returns one result per input, in
// input order. Individual failures never abort the run; a canceled context
// stops between batches and returns the results accumulated so far.
func (d *Dispatcher) Dispatch(ctx context.Context, notifications []Notification) ([]Result, error) {
	results := make([]Result, 0, len(notifications))

	for _, b := range chunks(len(notifications), d.batchSize) {
		start, end := b[0], b[1]
		batch := notifications[start:end]

		if start > 0 && d.batchDelay > 0 {
			select {
			case <-ctx.Done():
				return results, ctx.Err()
			case <-d.clock.After(d.batchDelay):
			}
		}

		for _, n := range batch {
			r := d.gateway.Send(n)
			results = append(results, r)
			if d.metrics != nil {
				d.metrics.PushResults.WithLabelValues(r.Status).Inc()
			}
		}
		if d.metrics != nil {
			d.metrics.PushBatchSize.Observe(float64(len(batch)))
		}

		log.Printf("[push] gateway=%s batch=%d-%d sent=%d", d.gateway.Name(), start, end, countSent(results[start:end]))
	}

	return results, nil
}

// chunks yields [start, end) index pairs covering n items in runs of size.
func chunks(n, size int) [][2]int {
	var out [][2]int
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		out = append(out, [2]int{start, end})
	}
	return out
}

func countSent(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Success {
			n++
		}
	}
	return n
}

// Summarize aggregates results by final status.
func Summarize(results []Result) map[string]int {
	counts := make(map[string]int)
	for _, r := range results {
		counts[r.Status]++
	}
	return counts
}
