package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/OpsCenterRio/COR-Backend/internal/alerts"
	"github.com/OpsCenterRio/COR-Backend/internal/cache"
	"github.com/OpsCenterRio/COR-Backend/internal/config"
	"github.com/OpsCenterRio/COR-Backend/internal/db"
	"github.com/OpsCenterRio/COR-Backend/internal/devices"
	"github.com/OpsCenterRio/COR-Backend/internal/jobs"
	"github.com/OpsCenterRio/COR-Backend/internal/middleware"
	"github.com/OpsCenterRio/COR-Backend/internal/observability"
	"github.com/OpsCenterRio/COR-Backend/internal/sources"
)

func RootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, "Server is up!")
}

func main() {
	_ = godotenv.Load(".env.local")
	cfg := config.Load()

	db.Connect()
	if err := db.EnsurePostGIS(db.DB); err != nil {
		log.Fatal("Failed to enable PostGIS: ", err)
	}
	devices.Init()
	alerts.Init()

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	cacheStore, err := cache.NewRedisStore(cfg.RedisURL)
	if err != nil {
		log.Fatal("Failed to connect to Redis: ", err)
	}
	defer cacheStore.Close()
	freshness := cache.NewFreshness(cacheStore)

	publisher, err := jobs.NewPublisher(cfg.AMQPURL)
	if err != nil {
		log.Fatal("Failed to connect to AMQP: ", err)
	}
	defer publisher.Close()

	deviceService := devices.NewService(db.DB)
	alertStore := alerts.NewStore(db.DB)
	resolver := alerts.NewResolver(alerts.NewSpatialStore(db.DB))
	alertService := alerts.NewService(db.DB, alertStore, resolver, publisher, metrics)

	sourceHandler := sources.NewHandler(freshness, sources.BuildSources(cfg), metrics)

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))
	r.Use(limiter.Middleware)

	r.Get("/", RootHandler)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		sqlDB, err := db.DB.DB()
		if err != nil || sqlDB.Ping() != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintln(w, `{"status":"ok"}`)
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	deviceHandler := devices.NewHandler(deviceService)
	r.Get("/neighborhoods", deviceHandler.NeighborhoodsHandler)
	r.Mount("/alerts", alerts.SetupRoutes(alerts.NewHandler(alertService, deviceService)))
	r.Mount("/devices", devices.SetupRoutes(deviceHandler))
	sources.RegisterRoutes(r, sourceHandler)

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server listening on port :%s...", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed: ", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Forced shutdown: ", err)
	}
}
