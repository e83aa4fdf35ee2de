package alerts

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/OpsCenterRio/COR-Backend/internal/devices"
)

// Target is a device selected to receive an alert, labeled with how it
// matched. When a device matches multiple ways the strongest label wins:
// broadcast over geo over neighborhood.
type Target struct {
	Device    devices.Device
	MatchType string
}

// Resolver computes the audience for an alert.
type Resolver struct {
	store SpatialStore
}

func NewResolver(store SpatialStore) *Resolver {
	return &Resolver{store: store}
}

// Targets resolves the alert's audience. Any query failure resolves to an
// empty audience: an alert silently reaching nobody is recoverable by
// resending, an alert spamming the whole city is not.
func (r *Resolver) Targets(ctx context.Context, alert *Alert) ([]Target, error) {
	if alert.Broadcast {
		all, err := r.store.AllRegistered(ctx)
		if err != nil {
			log.Printf("[targeting] broadcast query failed for alert %s: %v", alert.ID, err)
			return []Target{}, fmt.Errorf("resolve broadcast audience: %w", err)
		}
		return label(all, MatchBroadcast, nil), nil
	}

	byID := make(map[string]Target)

	if len(alert.Areas) > 0 {
		geo, err := r.store.GeoMatches(ctx, alert.ID)
		if err != nil {
			log.Printf("[targeting] geo query failed for alert %s: %v", alert.ID, err)
			return []Target{}, fmt.Errorf("resolve geo audience: %w", err)
		}
		for _, d := range geo {
			byID[d.ID] = Target{Device: d, MatchType: MatchGeo}
		}
	}

	if len(alert.Neighborhoods) > 0 {
		nb, err := r.store.NeighborhoodMatches(ctx, alert.Neighborhoods)
		if err != nil {
			log.Printf("[targeting] neighborhood query failed for alert %s: %v", alert.ID, err)
			return []Target{}, fmt.Errorf("resolve neighborhood audience: %w", err)
		}
		for _, d := range nb {
			if _, ok := byID[d.ID]; !ok {
				byID[d.ID] = Target{Device: d, MatchType: MatchNeighborhood}
			}
		}
	}

	return sorted(byID), nil
}

// Match evaluates one alert against one device for inbox queries. The caller
// may supply current coordinates; otherwise the device's stored location is
// used. Precedence matches Targets: broadcast, then geo, then neighborhood.
func (r *Resolver) Match(ctx context.Context, alert *Alert, device *devices.Device, lat, lon *float64) (string, bool, error) {
	if alert.Broadcast {
		return MatchBroadcast, true, nil
	}

	if len(alert.Areas) > 0 {
		switch {
		case lat != nil && lon != nil:
			contained, err := r.store.AnyAreaContains(ctx, alert.ID, *lat, *lon)
			if err != nil {
				return "", false, err
			}
			if contained {
				return MatchGeo, true, nil
			}
		case device.LastLocation != nil:
			contained, err := r.store.DeviceInAnyArea(ctx, alert.ID, device.ID)
			if err != nil {
				return "", false, err
			}
			if contained {
				return MatchGeo, true, nil
			}
		}
	}

	if len(alert.Neighborhoods) > 0 && overlaps(device.Neighborhoods, alert.Neighborhoods) {
		return MatchNeighborhood, true, nil
	}

	return "", false, nil
}

func overlaps(a []string, b []string) bool {
	set := make(map[string]struct{}, len(a))
	for _, s := range a {
		set[s] = struct{}{}
	}
	for _, s := range b {
		if _, ok := set[s]; ok {
			return true
		}
	}
	return false
}

func label(list []devices.Device, matchType string, out []Target) []Target {
	for _, d := range list {
		out = append(out, Target{Device: d, MatchType: matchType})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Device.ID < out[j].Device.ID })
	return out
}

func sorted(byID map[string]Target) []Target {
	out := make([]Target, 0, len(byID))
	for _, t := range byID {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Device.ID < out[j].Device.ID })
	return out
}
