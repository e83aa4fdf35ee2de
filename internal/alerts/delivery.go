package alerts

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/OpsCenterRio/COR-Backend/internal/push"
)

// DeliveryRunner executes one delivery job end to end: re-check the alert,
// re-resolve the audience, dispatch, record outcomes. The job queue may hand
// the same alert to it more than once; the delivery upsert keeps repeated
// runs from double-recording a device.
type DeliveryRunner struct {
	store      Store
	resolver   *Resolver
	dispatcher *push.Dispatcher
}

func NewDeliveryRunner(store Store, resolver *Resolver, dispatcher *push.Dispatcher) *DeliveryRunner {
	return &DeliveryRunner{store: store, resolver: resolver, dispatcher: dispatcher}
}

// Run delivers an alert. The status re-check guards against jobs that
// outlive their alert: anything not in sent state is skipped, not an error.
func (r *DeliveryRunner) Run(ctx context.Context, alertID string) error {
	alert, err := r.store.GetAlert(ctx, alertID)
	if err != nil {
		return fmt.Errorf("load alert for delivery: %w", err)
	}
	if alert.Status != StatusSent {
		log.Printf("[delivery] alert %s is %s, skipping", alertID, alert.Status)
		return nil
	}

	targets, err := r.resolver.Targets(ctx, alert)
	if err != nil {
		return fmt.Errorf("resolve audience: %w", err)
	}
	if len(targets) == 0 {
		log.Printf("[delivery] alert %s resolved to an empty audience", alertID)
		return nil
	}

	notifications := make([]push.Notification, len(targets))
	for i, t := range targets {
		notifications[i] = push.Notification{
			DeviceToken: t.Device.PushToken,
			Platform:    t.Device.Platform,
			Title:       alert.Title,
			Body:        alert.Body,
			Data: map[string]string{
				"alert_id": alert.ID,
				"severity": alert.Severity,
			},
		}
	}

	results, dispatchErr := r.dispatcher.Dispatch(ctx, notifications)

	var recordErrs int
	for i, res := range results {
		t := targets[i]
		delivery := &AlertDelivery{
			ID:             uuid.NewString(),
			AlertID:        alert.ID,
			DeviceID:       t.Device.ID,
			MatchType:      t.MatchType,
			ProviderStatus: res.Status,
			ProviderError:  res.ErrorMessage,
		}
		if err := r.store.UpsertDelivery(ctx, delivery); err != nil {
			recordErrs++
			log.Printf("[delivery] record failed for alert %s device %s: %v", alert.ID, t.Device.ID, err)
		}
	}

	counts := push.Summarize(results)
	log.Printf("[delivery] alert %s: %d targets, sent=%d invalid_token=%d failed=%d",
		alert.ID, len(targets), counts[push.StatusSent], counts[push.StatusInvalidToken], counts[push.StatusFailed])

	if dispatchErr != nil {
		return fmt.Errorf("dispatch interrupted after %d of %d: %w", len(results), len(targets), dispatchErr)
	}
	if recordErrs > 0 {
		return fmt.Errorf("failed to record %d of %d deliveries", recordErrs, len(results))
	}
	return nil
}
