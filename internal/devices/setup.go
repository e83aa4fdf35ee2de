package devices

import (
	"log"

	"github.com/OpsCenterRio/COR-Backend/internal/db"
)

func Init() {
	if err := db.DB.AutoMigrate(&Device{}, &Neighborhood{}); err != nil {
		log.Fatal("Failed to auto-migrate devices tables: ", err)
	}

	// Spatial and array indexes used by alert targeting.
	if err := db.DB.Exec(`CREATE INDEX IF NOT EXISTS idx_devices_last_location ON devices USING GIST (last_location)`).Error; err != nil {
		log.Fatal("Failed to create device location index: ", err)
	}
	if err := db.DB.Exec(`CREATE INDEX IF NOT EXISTS idx_devices_neighborhoods ON devices USING GIN (neighborhoods)`).Error; err != nil {
		log.Fatal("Failed to create device neighborhoods index: ", err)
	}
}
