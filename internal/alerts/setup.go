package alerts

import (
	"log"

	"github.com/OpsCenterRio/COR-Backend/internal/db"
)

func Init() {
	if err := db.DB.AutoMigrate(&Alert{}, &AlertArea{}, &AlertDelivery{}); err != nil {
		log.Fatal("Failed to auto-migrate alerts tables: ", err)
	}

	if err := db.DB.Exec(`CREATE INDEX IF NOT EXISTS idx_alert_areas_geom ON alert_areas USING GIST (geom)`).Error; err != nil {
		log.Fatal("Failed to create alert area index: ", err)
	}
}
