package alerts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/OpsCenterRio/COR-Backend/internal/apperr"
)

// DeliveryStat is one row of the per-alert delivery breakdown.
type DeliveryStat struct {
	ProviderStatus string `json:"provider_status"`
	Count          int64  `json:"count"`
}

// ListFilter narrows SentAlerts queries.
type ListFilter struct {
	Severity     string
	Neighborhood string
	Limit        int
}

// Store is the persistence surface for alerts and their deliveries.
type Store interface {
	CreateAlert(ctx context.Context, alert *Alert) error
	GetAlert(ctx context.Context, id string) (*Alert, error)
	ListAlerts(ctx context.Context, status string, limit, offset int) ([]Alert, error)
	SentAlerts(ctx context.Context, filter ListFilter) ([]Alert, error)
	// UpdateStatus transitions an alert from one status to another, failing
	// with ErrValidation if the alert is no longer in the expected state.
	UpdateStatus(ctx context.Context, id, from, to string, at time.Time) error

	UpsertDelivery(ctx context.Context, d *AlertDelivery) error
	GetDelivery(ctx context.Context, alertID, deviceID string) (*AlertDelivery, error)
	DeliveriesByDevice(ctx context.Context, deviceID string) ([]AlertDelivery, error)
	MarkRead(ctx context.Context, alertID, deviceID string, at time.Time) error
	// CreateReadDelivery backfills a delivery row in read status for an
	// alert the device matched without ever being pushed.
	CreateReadDelivery(ctx context.Context, d *AlertDelivery) error
	DeliveryStats(ctx context.Context, alertID string) ([]DeliveryStat, error)
}

type gormStore struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) CreateAlert(ctx context.Context, alert *Alert) error {
	if err := s.db.WithContext(ctx).Create(alert).Error; err != nil {
		return fmt.Errorf("create alert: %w", err)
	}
	return nil
}

func (s *gormStore) GetAlert(ctx context.Context, id string) (*Alert, error) {
	var alert Alert
	err := s.db.WithContext(ctx).Preload("Areas").First(&alert, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("alert %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get alert %s: %w", id, err)
	}
	return &alert, nil
}

func (s *gormStore) ListAlerts(ctx context.Context, status string, limit, offset int) ([]Alert, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	q := s.db.WithContext(ctx).Preload("Areas").Order("created_at DESC").Limit(limit).Offset(offset)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []Alert
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	return out, nil
}

func (s *gormStore) SentAlerts(ctx context.Context, filter ListFilter) ([]Alert, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	q := s.db.WithContext(ctx).
		Preload("Areas").
		Where("status = ?", StatusSent).
		Where("expires_at IS NULL OR expires_at > NOW()").
		Order("sent_at DESC").
		Limit(limit)
	if filter.Severity != "" {
		q = q.Where("severity = ?", filter.Severity)
	}
	if filter.Neighborhood != "" {
		q = q.Where("broadcast OR ? = ANY(neighborhoods)", filter.Neighborhood)
	}
	var out []Alert
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list sent alerts: %w", err)
	}
	return out, nil
}

// UpdateStatus relies on the WHERE clause to make the draft-only transitions
// race safe: two concurrent sends see one winner, the loser gets zero rows.
func (s *gormStore) UpdateStatus(ctx context.Context, id, from, to string, at time.Time) error {
	updates := map[string]interface{}{"status": to, "updated_at": at}
	switch to {
	case StatusSent:
		updates["sent_at"] = at
	case StatusCanceled:
		updates["canceled_at"] = at
	}

	res := s.db.WithContext(ctx).Model(&Alert{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update alert %s status: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		var exists int64
		s.db.WithContext(ctx).Model(&Alert{}).Where("id = ?", id).Count(&exists)
		if exists == 0 {
			return fmt.Errorf("alert %s: %w", id, apperr.ErrNotFound)
		}
		return fmt.Errorf("alert %s is not %s: %w", id, from, apperr.ErrValidation)
	}
	return nil
}

func (s *gormStore) UpsertDelivery(ctx context.Context, d *AlertDelivery) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "alert_id"}, {Name: "device_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"match_type":      d.MatchType,
			"provider_status": d.ProviderStatus,
			"provider_error":  d.ProviderError,
			"updated_at":      time.Now(),
		}),
	}).Create(d).Error
	if err != nil {
		return fmt.Errorf("upsert delivery %s/%s: %w", d.AlertID, d.DeviceID, err)
	}
	return nil
}

func (s *gormStore) GetDelivery(ctx context.Context, alertID, deviceID string) (*AlertDelivery, error) {
	var d AlertDelivery
	err := s.db.WithContext(ctx).
		Where("alert_id = ? AND device_id = ?", alertID, deviceID).
		First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("delivery: %w", apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get delivery: %w", err)
	}
	return &d, nil
}

func (s *gormStore) DeliveriesByDevice(ctx context.Context, deviceID string) ([]AlertDelivery, error) {
	var out []AlertDelivery
	err := s.db.WithContext(ctx).
		Where("device_id = ?", deviceID).
		Order("created_at DESC").
		Limit(100).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("deliveries for device %s: %w", deviceID, err)
	}
	return out, nil
}

// MarkRead is idempotent: marking an already-read delivery keeps the first
// read timestamp.
func (s *gormStore) MarkRead(ctx context.Context, alertID, deviceID string, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&AlertDelivery{}).
		Where("alert_id = ? AND device_id = ? AND read_at IS NULL", alertID, deviceID).
		Update("read_at", at)
	if res.Error != nil {
		return fmt.Errorf("mark read %s/%s: %w", alertID, deviceID, res.Error)
	}
	if res.RowsAffected == 0 {
		var exists int64
		s.db.WithContext(ctx).Model(&AlertDelivery{}).
			Where("alert_id = ? AND device_id = ?", alertID, deviceID).
			Count(&exists)
		if exists == 0 {
			return fmt.Errorf("delivery %s/%s: %w", alertID, deviceID, apperr.ErrNotFound)
		}
	}
	return nil
}

func (s *gormStore) CreateReadDelivery(ctx context.Context, d *AlertDelivery) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "alert_id"}, {Name: "device_id"}},
		DoNothing: true,
	}).Create(d).Error
	if err != nil {
		return fmt.Errorf("create read delivery %s/%s: %w", d.AlertID, d.DeviceID, err)
	}
	return nil
}

func (s *gormStore) DeliveryStats(ctx context.Context, alertID string) ([]DeliveryStat, error) {
	var out []DeliveryStat
	err := s.db.WithContext(ctx).Model(&AlertDelivery{}).
		Select("provider_status, COUNT(*) as count").
		Where("alert_id = ?", alertID).
		Group("provider_status").
		Order("provider_status").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("delivery stats for alert %s: %w", alertID, err)
	}
	return out, nil
}
