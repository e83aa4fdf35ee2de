package devices

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/OpsCenterRio/COR-Backend/internal/apperr"
)

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Register upserts a device by push token. Re-registering an existing token
// refreshes the platform and keeps the original device ID, so deliveries
// recorded against the device survive app reinstalls that reuse the token.
func (s *Service) Register(ctx context.Context, pushToken, platform string, neighborhoods []string) (*Device, error) {
	device := &Device{
		ID:            uuid.NewString(),
		Platform:      platform,
		PushToken:     pushToken,
		Neighborhoods: normalizeNeighborhoods(neighborhoods),
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "push_token"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"platform":      platform,
			"neighborhoods": device.Neighborhoods,
			"updated_at":    time.Now(),
		}),
	}).Create(device).Error
	if err != nil {
		return nil, fmt.Errorf("register device: %w", err)
	}

	return s.ByToken(ctx, pushToken)
}

// ByToken looks a device up by its push token.
func (s *Service) ByToken(ctx context.Context, pushToken string) (*Device, error) {
	var device Device
	err := s.db.WithContext(ctx).Where("push_token = ?", pushToken).First(&device).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("device: %w", apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("device by token: %w", err)
	}
	return &device, nil
}

// UpdateLocation stores the device's latest position as a 4326 point.
func (s *Service) UpdateLocation(ctx context.Context, deviceID string, lat, lon float64) error {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return fmt.Errorf("coordinates out of range: %w", apperr.ErrValidation)
	}

	res := s.db.WithContext(ctx).Exec(`
		UPDATE devices
		SET last_location = ST_SetSRID(ST_MakePoint(?, ?), 4326),
		    last_location_at = NOW(),
		    updated_at = NOW()
		WHERE id = ?`, lon, lat, deviceID)
	if res.Error != nil {
		return fmt.Errorf("update location: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("device %s: %w", deviceID, apperr.ErrNotFound)
	}
	return nil
}

// UpdateSubscriptions replaces the device's neighborhood subscription list.
func (s *Service) UpdateSubscriptions(ctx context.Context, deviceID string, neighborhoods []string) (*Device, error) {
	res := s.db.WithContext(ctx).Model(&Device{}).
		Where("id = ?", deviceID).
		Update("neighborhoods", normalizeNeighborhoods(neighborhoods))
	if res.Error != nil {
		return nil, fmt.Errorf("update subscriptions: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("device %s: %w", deviceID, apperr.ErrNotFound)
	}

	var device Device
	if err := s.db.WithContext(ctx).First(&device, "id = ?", deviceID).Error; err != nil {
		return nil, fmt.Errorf("reload device: %w", err)
	}
	return &device, nil
}

// Neighborhoods returns the reference neighborhood list, alphabetically.
func (s *Service) Neighborhoods(ctx context.Context) ([]Neighborhood, error) {
	var out []Neighborhood
	if err := s.db.WithContext(ctx).Order("name").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list neighborhoods: %w", err)
	}
	return out, nil
}

func normalizeNeighborhoods(names []string) pq.StringArray {
	seen := make(map[string]struct{}, len(names))
	out := make(pq.StringArray, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// MaskToken hides all but the last 6 characters of a push token for display.
func MaskToken(token string) string {
	if len(token) <= 6 {
		return strings.Repeat("*", len(token))
	}
	return "****" + token[len(token)-6:]
}
