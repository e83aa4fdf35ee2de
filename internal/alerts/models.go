package alerts

import (
	"time"

	"github.com/lib/pq"
)

// Alert severities.
const (
	SeverityInfo      = "info"
	SeverityAlert     = "alert"
	SeverityEmergency = "emergency"
)

// Alert lifecycle states. Draft alerts can be edited and sent or canceled;
// sent and canceled are terminal.
const (
	StatusDraft    = "draft"
	StatusSent     = "sent"
	StatusCanceled = "canceled"
)

type Alert struct {
	ID            string          `gorm:"primaryKey;size:100" json:"id"`
	Title         string          `gorm:"size:200;not null" json:"title"`
	Body          string          `gorm:"type:text;not null" json:"body"`
	Severity      string          `gorm:"size:20;not null;default:info" json:"severity"`
	Status        string          `gorm:"size:20;not null;default:draft;index" json:"status"`
	Broadcast     bool            `gorm:"not null;default:false" json:"broadcast"`
	Neighborhoods pq.StringArray  `gorm:"type:text[]" json:"neighborhoods"`
	Areas         []AlertArea     `gorm:"constraint:OnDelete:CASCADE" json:"areas,omitempty"`
	Deliveries    []AlertDelivery `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	CreatedBy     string          `gorm:"size:100" json:"created_by,omitempty"`
	ExpiresAt     *time.Time      `json:"expires_at,omitempty"`
	SentAt        *time.Time      `gorm:"index" json:"sent_at,omitempty"`
	CanceledAt    *time.Time      `json:"canceled_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// AlertArea is one geographic region an alert targets, stored as a 4326
// multipolygon. Circles are buffered into polygons at creation time.
type AlertArea struct {
	ID        string    `gorm:"primaryKey;size:100" json:"id"`
	AlertID   string    `gorm:"size:100;not null;index" json:"alert_id"`
	Kind      string    `gorm:"size:20;not null" json:"kind"`
	Geom      string    `gorm:"type:geometry(MultiPolygon,4326);not null" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// AlertDelivery is the per-device delivery record. The (alert_id, device_id)
// unique index makes delivery recording idempotent under job retries.
type AlertDelivery struct {
	ID             string     `gorm:"primaryKey;size:100" json:"id"`
	AlertID        string     `gorm:"size:100;not null;uniqueIndex:ux_alert_deliveries_alert_device" json:"alert_id"`
	DeviceID       string     `gorm:"size:100;not null;uniqueIndex:ux_alert_deliveries_alert_device" json:"device_id"`
	MatchType      string     `gorm:"size:20;not null" json:"match_type"`
	ProviderStatus string     `gorm:"size:30;not null;index" json:"provider_status"`
	ProviderError  string     `gorm:"size:255" json:"provider_error,omitempty"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Match types recorded on deliveries, in targeting precedence order.
const (
	MatchBroadcast    = "broadcast"
	MatchGeo          = "geo"
	MatchNeighborhood = "neighborhood"
)

// Delivery provider statuses beyond the push outcomes: a row is created in
// read status when a device reads an alert it matched without ever being
// pushed.
const (
	DeliveryPending = "pending"
	DeliveryRead    = "read"
)

func ValidSeverity(s string) bool {
	return s == SeverityInfo || s == SeverityAlert || s == SeverityEmergency
}
