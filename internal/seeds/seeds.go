package seeds

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/goccy/go-yaml"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/OpsCenterRio/COR-Backend/internal/alerts"
	"github.com/OpsCenterRio/COR-Backend/internal/db"
	"github.com/OpsCenterRio/COR-Backend/internal/devices"
)

type seedDevice struct {
	PushToken     string   `yaml:"push_token"`
	Platform      string   `yaml:"platform"`
	Neighborhoods []string `yaml:"neighborhoods"`
	Latitude      *float64 `yaml:"latitude"`
	Longitude     *float64 `yaml:"longitude"`
}

type seedCircle struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
	RadiusM   float64 `yaml:"radius_m"`
}

type seedAlert struct {
	Title         string      `yaml:"title"`
	Body          string      `yaml:"body"`
	Severity      string      `yaml:"severity"`
	Broadcast     bool        `yaml:"broadcast"`
	Neighborhoods []string    `yaml:"neighborhoods"`
	Circle        *seedCircle `yaml:"circle"`
}

type seedNeighborhood struct {
	Name string `yaml:"name"`
	Zone string `yaml:"zone"`
}

type seedFile struct {
	Neighborhoods []seedNeighborhood `yaml:"neighborhoods"`
	Devices       []seedDevice       `yaml:"devices"`
	Alerts        []seedAlert        `yaml:"alerts"`
}

// SeedAll loads the demo fixtures. Existing rows are skipped, so re-running
// the seeder is safe.
func SeedAll() error {
	raw, err := os.ReadFile("internal/seeds/data/demo.yaml")
	if err != nil {
		return fmt.Errorf("could not read demo.yaml: %w", err)
	}

	var data seedFile
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("failed to parse demo.yaml: %w", err)
	}

	if err := seedNeighborhoods(data.Neighborhoods); err != nil {
		return err
	}
	if err := seedDevices(data.Devices); err != nil {
		return err
	}
	return seedAlerts(data.Alerts)
}

func seedNeighborhoods(list []seedNeighborhood) error {
	for _, n := range list {
		row := devices.Neighborhood{Name: n.Name, Zone: n.Zone}
		err := db.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
		if err != nil {
			return fmt.Errorf("seed neighborhood %q: %w", n.Name, err)
		}
	}
	log.Printf("Seeded %d neighborhoods", len(list))
	return nil
}

func seedDevices(list []seedDevice) error {
	ctx := context.Background()
	svc := devices.NewService(db.DB)

	for _, d := range list {
		if _, err := svc.ByToken(ctx, d.PushToken); err == nil {
			log.Printf("Device exists, skipping: %s", d.PushToken)
			continue
		}

		device, err := svc.Register(ctx, d.PushToken, d.Platform, d.Neighborhoods)
		if err != nil {
			return fmt.Errorf("seed device %s: %w", d.PushToken, err)
		}
		if d.Latitude != nil && d.Longitude != nil {
			if err := svc.UpdateLocation(ctx, device.ID, *d.Latitude, *d.Longitude); err != nil {
				return fmt.Errorf("seed device location %s: %w", d.PushToken, err)
			}
		}
		log.Printf("Seeded device %s", d.PushToken)
	}
	return nil
}

func seedAlerts(list []seedAlert) error {
	ctx := context.Background()
	svc := alerts.NewService(db.DB, alerts.NewStore(db.DB), nil, nil, nil)

	for _, a := range list {
		var existing int64
		err := db.DB.Model(&alerts.Alert{}).Where("title = ?", a.Title).Count(&existing).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("check alert %q: %w", a.Title, err)
		}
		if existing > 0 {
			log.Printf("Alert exists, skipping: %s", a.Title)
			continue
		}

		in := alerts.CreateInput{
			Title:         a.Title,
			Body:          a.Body,
			Severity:      a.Severity,
			Broadcast:     a.Broadcast,
			Neighborhoods: a.Neighborhoods,
		}
		if a.Circle != nil {
			in.Areas = append(in.Areas, alerts.AreaInput{
				Kind:    "circle",
				Center:  &alerts.LatLon{Latitude: a.Circle.Latitude, Longitude: a.Circle.Longitude},
				RadiusM: a.Circle.RadiusM,
			})
		}

		if _, err := svc.Create(ctx, in); err != nil {
			return fmt.Errorf("seed alert %q: %w", a.Title, err)
		}
		log.Printf("Seeded draft alert %q", a.Title)
	}
	return nil
}
