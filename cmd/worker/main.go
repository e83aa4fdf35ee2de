package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/OpsCenterRio/COR-Backend/internal/alerts"
	"github.com/OpsCenterRio/COR-Backend/internal/config"
	"github.com/OpsCenterRio/COR-Backend/internal/db"
	"github.com/OpsCenterRio/COR-Backend/internal/jobs"
	"github.com/OpsCenterRio/COR-Backend/internal/observability"
	"github.com/OpsCenterRio/COR-Backend/internal/push"
)

// The delivery worker consumes alert delivery jobs and pushes them out. It
// shares the database with the API but holds its own queue connections.
func main() {
	_ = godotenv.Load(".env.local")
	cfg := config.Load()

	db.Connect()

	metrics := observability.NewMetrics(prometheus.NewRegistry())

	gateway := buildGateway(cfg)
	log.Printf("[worker] push gateway: %s", gateway.Name())

	dispatcher := push.NewDispatcher(gateway, cfg.PushBatchSize, cfg.PushBatchDelay, metrics)
	store := alerts.NewStore(db.DB)
	resolver := alerts.NewResolver(alerts.NewSpatialStore(db.DB))
	runner := alerts.NewDeliveryRunner(store, resolver, dispatcher)

	publisher, err := jobs.NewPublisher(cfg.AMQPURL)
	if err != nil {
		log.Fatal("Failed to connect publisher: ", err)
	}
	defer publisher.Close()

	worker, err := jobs.NewWorker(cfg.AMQPURL, publisher, runner.Run, cfg.JobMaxAttempts, cfg.JobRetryDelay, metrics)
	if err != nil {
		log.Fatal("Failed to start worker: ", err)
	}
	defer worker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("[worker] shutting down...")
		cancel()
	}()

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		log.Fatal("Worker stopped: ", err)
	}
}

// buildGateway picks SNS when platform ARNs are configured and falls back to
// the deterministic simulator otherwise, so dev environments work without
// cloud credentials.
func buildGateway(cfg *config.Config) push.Gateway {
	if cfg.SNSPlatformARNAndroid == "" && cfg.SNSPlatformARNIOS == "" {
		return push.NewSimulatedGateway()
	}
	gw, err := push.NewSNSGateway(context.Background(), cfg.SNSRegion, cfg.SNSPlatformARNAndroid, cfg.SNSPlatformARNIOS)
	if err != nil {
		log.Printf("[worker] SNS unavailable, using simulator: %v", err)
		return push.NewSimulatedGateway()
	}
	return gw
}
