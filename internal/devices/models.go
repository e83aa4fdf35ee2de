package devices

import (
	"time"

	"github.com/lib/pq"
)

// Device is a registered mobile install identified by its push token.
// LastLocation is a PostGIS point written with raw SQL; gorm only carries the
// column through migrations.
type Device struct {
	ID             string         `gorm:"primaryKey;size:100" json:"id"`
	Platform       string         `gorm:"size:20;not null" json:"platform"`
	PushToken      string         `gorm:"size:255;uniqueIndex;not null" json:"-"`
	LastLocation   *string        `gorm:"type:geometry(Point,4326)" json:"-"`
	LastLocationAt *time.Time     `json:"last_location_at,omitempty"`
	Neighborhoods  pq.StringArray `gorm:"type:text[]" json:"neighborhoods"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Neighborhood is a reference row for the official city neighborhood list.
// Subscriptions and alert targeting store the name directly; this table only
// feeds the picker in the app.
type Neighborhood struct {
	Name      string    `gorm:"primaryKey;size:100" json:"name"`
	Zone      string    `gorm:"size:50" json:"zone,omitempty"`
	CreatedAt time.Time `json:"-"`
}
