package main

import (
	"log"

	"github.com/joho/godotenv"

	"github.com/OpsCenterRio/COR-Backend/internal/alerts"
	"github.com/OpsCenterRio/COR-Backend/internal/db"
	"github.com/OpsCenterRio/COR-Backend/internal/devices"
	"github.com/OpsCenterRio/COR-Backend/internal/seeds"
)

func main() {
	_ = godotenv.Load(".env.local")
	db.Connect()

	if err := db.EnsurePostGIS(db.DB); err != nil {
		log.Fatalf("Failed to enable PostGIS: %v", err)
	}
	devices.Init()
	alerts.Init()

	if err := seeds.SeedAll(); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	log.Println("Seeding complete")
}
