package alerts

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/OpsCenterRio/COR-Backend/internal/apperr"
	"github.com/OpsCenterRio/COR-Backend/internal/devices"
	"github.com/OpsCenterRio/COR-Backend/internal/observability"
	"github.com/OpsCenterRio/COR-Backend/internal/push"
)

// Enqueuer hands a delivery job to the queue and returns its job ID.
type Enqueuer interface {
	EnqueueDelivery(ctx context.Context, alertID string) (string, error)
}

// CreateInput is the payload for a new draft alert.
type CreateInput struct {
	Title         string
	Body          string
	Severity      string
	Broadcast     bool
	Neighborhoods []string
	Areas         []AreaInput
	ExpiresAt     *time.Time
	CreatedBy     string
}

// SendResult reports what a send kicked off.
type SendResult struct {
	Alert           *Alert `json:"alert"`
	DevicesTargeted int    `json:"devices_targeted"`
	TaskID          string `json:"task_id"`
}

// Stats is the per-alert delivery outcome summary. Invalid tokens count as
// failures; read rows count as sent (the device saw the alert).
type Stats struct {
	SelectedDevices int64 `json:"selected_devices"`
	Sent            int64 `json:"sent"`
	Pending         int64 `json:"pending"`
	Failed          int64 `json:"failed"`
}

// InboxQuery narrows a device's inbox.
type InboxQuery struct {
	Lat          *float64
	Lon          *float64
	Severity     string
	Neighborhood string
	UnreadOnly   bool
}

// InboxItem is one alert as seen from a device's inbox.
type InboxItem struct {
	Alert     Alert      `json:"alert"`
	MatchType string     `json:"match_type"`
	IsRead    bool       `json:"is_read"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
}

// Inbox is the device-facing alert feed.
type Inbox struct {
	Items       []InboxItem `json:"items"`
	UnreadCount int         `json:"unread_count"`
}

type Service struct {
	db       *gorm.DB
	store    Store
	resolver *Resolver
	enqueuer Enqueuer
	metrics  *observability.Metrics
}

func NewService(db *gorm.DB, store Store, resolver *Resolver, enqueuer Enqueuer, metrics *observability.Metrics) *Service {
	return &Service{db: db, store: store, resolver: resolver, enqueuer: enqueuer, metrics: metrics}
}

// Create stores a new draft alert with its target areas.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Alert, error) {
	if in.Title == "" || in.Body == "" {
		return nil, fmt.Errorf("title and body are required: %w", apperr.ErrValidation)
	}
	if in.Severity == "" {
		in.Severity = SeverityInfo
	}
	if !ValidSeverity(in.Severity) {
		return nil, fmt.Errorf("unknown severity %q: %w", in.Severity, apperr.ErrValidation)
	}
	if !in.Broadcast && len(in.Areas) == 0 && len(in.Neighborhoods) == 0 {
		return nil, fmt.Errorf("non-broadcast alert needs areas or neighborhoods: %w", apperr.ErrValidation)
	}

	if in.ExpiresAt != nil && in.ExpiresAt.Before(time.Now()) {
		return nil, fmt.Errorf("expires_at is in the past: %w", apperr.ErrValidation)
	}

	alert := &Alert{
		ID:            uuid.NewString(),
		Title:         in.Title,
		Body:          in.Body,
		Severity:      in.Severity,
		Status:        StatusDraft,
		Broadcast:     in.Broadcast,
		Neighborhoods: in.Neighborhoods,
		ExpiresAt:     in.ExpiresAt,
		CreatedBy:     in.CreatedBy,
	}

	for _, areaIn := range in.Areas {
		area, err := buildArea(s.db.WithContext(ctx), alert.ID, areaIn)
		if err != nil {
			return nil, err
		}
		alert.Areas = append(alert.Areas, *area)
	}

	if err := s.store.CreateAlert(ctx, alert); err != nil {
		return nil, err
	}
	return alert, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Alert, error) {
	return s.store.GetAlert(ctx, id)
}

func (s *Service) List(ctx context.Context, status string, limit, offset int) ([]Alert, error) {
	if status != "" && status != StatusDraft && status != StatusSent && status != StatusCanceled {
		return nil, fmt.Errorf("unknown status %q: %w", status, apperr.ErrValidation)
	}
	return s.store.ListAlerts(ctx, status, limit, offset)
}

func (s *Service) ListSent(ctx context.Context, filter ListFilter) ([]Alert, error) {
	if filter.Severity != "" && !ValidSeverity(filter.Severity) {
		return nil, fmt.Errorf("unknown severity %q: %w", filter.Severity, apperr.ErrValidation)
	}
	return s.store.SentAlerts(ctx, filter)
}

// Send transitions a draft alert to sent and enqueues its delivery job. The
// target count in the result is a preview; the job re-resolves the audience
// when it runs.
func (s *Service) Send(ctx context.Context, id string) (*SendResult, error) {
	alert, err := s.store.GetAlert(ctx, id)
	if err != nil {
		return nil, err
	}
	if alert.Status != StatusDraft {
		return nil, fmt.Errorf("alert %s is %s, only drafts can be sent: %w", id, alert.Status, apperr.ErrValidation)
	}

	targets, err := s.resolver.Targets(ctx, alert)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := s.store.UpdateStatus(ctx, id, StatusDraft, StatusSent, now); err != nil {
		return nil, err
	}
	alert.Status = StatusSent
	alert.SentAt = &now

	jobID, err := s.enqueuer.EnqueueDelivery(ctx, id)
	if err != nil {
		// The alert is already marked sent and cannot be resent, so a lost
		// job has to be surfaced loudly.
		log.Printf("[alerts] enqueue failed for alert %s: %v", id, err)
		return nil, fmt.Errorf("enqueue delivery for alert %s: %w", id, err)
	}

	if s.metrics != nil {
		s.metrics.AlertsSent.Inc()
		s.metrics.DevicesTargets.Observe(float64(len(targets)))
	}

	log.Printf("[alerts] alert %s sent, job %s, %d targets", id, jobID, len(targets))
	return &SendResult{Alert: alert, DevicesTargeted: len(targets), TaskID: jobID}, nil
}

// Cancel transitions a draft alert to canceled. Sent alerts cannot be
// canceled; the pushes are already on their way.
func (s *Service) Cancel(ctx context.Context, id string) error {
	return s.store.UpdateStatus(ctx, id, StatusDraft, StatusCanceled, time.Now().UTC())
}

// Stats summarizes delivery outcomes for an alert.
func (s *Service) Stats(ctx context.Context, id string) (*Stats, error) {
	if _, err := s.store.GetAlert(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.store.DeliveryStats(ctx, id)
	if err != nil {
		return nil, err
	}

	out := &Stats{}
	for _, row := range rows {
		out.SelectedDevices += row.Count
		switch row.ProviderStatus {
		case push.StatusSent, DeliveryRead:
			out.Sent += row.Count
		case DeliveryPending:
			out.Pending += row.Count
		default:
			out.Failed += row.Count
		}
	}
	return out, nil
}

// DeviceInbox lists the sent, unexpired alerts matching a device, newest
// first, annotated with how each matched and whether it was read. Alerts the
// device was actually pushed keep their recorded match type; the rest are
// evaluated against the device's current position.
func (s *Service) DeviceInbox(ctx context.Context, device *devices.Device, q InboxQuery) (*Inbox, error) {
	alertList, err := s.store.SentAlerts(ctx, ListFilter{
		Severity:     q.Severity,
		Neighborhood: q.Neighborhood,
	})
	if err != nil {
		return nil, err
	}

	deliveries, err := s.store.DeliveriesByDevice(ctx, device.ID)
	if err != nil {
		return nil, err
	}
	byAlert := make(map[string]*AlertDelivery, len(deliveries))
	for i := range deliveries {
		byAlert[deliveries[i].AlertID] = &deliveries[i]
	}

	inbox := &Inbox{Items: []InboxItem{}}
	for _, alert := range alertList {
		a := alert
		item := InboxItem{Alert: a}

		if d, ok := byAlert[a.ID]; ok {
			item.MatchType = d.MatchType
			item.ReadAt = d.ReadAt
			item.IsRead = d.ReadAt != nil
		} else {
			matchType, matched, err := s.resolver.Match(ctx, &a, device, q.Lat, q.Lon)
			if err != nil {
				return nil, err
			}
			if !matched {
				continue
			}
			item.MatchType = matchType
		}

		if !item.IsRead {
			inbox.UnreadCount++
		}
		if q.UnreadOnly && item.IsRead {
			continue
		}
		inbox.Items = append(inbox.Items, item)
	}

	return inbox, nil
}

// MarkRead marks one alert as read for a device and returns the read
// timestamp. A device that matched passively gets a delivery row backfilled
// in read status; the timestamp is first-write-wins either way.
func (s *Service) MarkRead(ctx context.Context, alert *Alert, device *devices.Device) (*time.Time, error) {
	now := time.Now().UTC()

	existing, err := s.store.GetDelivery(ctx, alert.ID, device.ID)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		if err := s.store.MarkRead(ctx, alert.ID, device.ID, now); err != nil {
			return nil, err
		}
		d, err := s.store.GetDelivery(ctx, alert.ID, device.ID)
		if err != nil {
			return nil, err
		}
		return d.ReadAt, nil
	}

	matchType, matched, err := s.resolver.Match(ctx, alert, device, nil, nil)
	if err != nil {
		return nil, err
	}
	if !matched {
		return nil, fmt.Errorf("alert %s does not target device %s: %w", alert.ID, device.ID, apperr.ErrNotFound)
	}

	d := &AlertDelivery{
		ID:             uuid.NewString(),
		AlertID:        alert.ID,
		DeviceID:       device.ID,
		MatchType:      matchType,
		ProviderStatus: DeliveryRead,
		ReadAt:         &now,
	}
	if err := s.store.CreateReadDelivery(ctx, d); err != nil {
		return nil, err
	}
	return &now, nil
}
