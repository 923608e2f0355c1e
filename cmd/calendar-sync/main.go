package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	syncrepo "agenda/internal/calendarsync/repository"
	syncservice "agenda/internal/calendarsync/service"
	clientrepo "agenda/internal/clients/repository"
	"agenda/internal/reservations/repository"
	"agenda/internal/reservations/service"
	"agenda/internal/reservations/validator"
	resourcerepo "agenda/internal/resources/repository"
	"agenda/pkg/config"
	"agenda/pkg/kafka"
	kafkaconfig "agenda/pkg/kafka/config"
	kafkamiddleware "agenda/pkg/kafka/middleware"
)

const ServiceName = "calendar-sync"

func main() {
	cfg := config.Load(ServiceName)
	if !cfg.GoogleEnabled() {
		cfg.Log.Fatal("Google Calendar integration is not configured")
	}
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	kafkaCfg, err := kafkaconfig.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log)

	processor := initProcessor(cfg)
	consumer, err := kafka.NewConsumer(
		kafkaCfg,
		cfg.SyncTopic,
		cfg.SyncConsumerGroup,
		cfg.SyncDLQTopic,
		syncservice.NewJobHandler(processor, cfg.SyncJobTimeout),
		cfg.Log,
	)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka consumer", "error", err)
	}
	counters := kafkamiddleware.NewCounters()
	consumer.Use(kafkamiddleware.LoggingConsumerMiddleware(cfg.Log))
	consumer.Use(counters.ConsumerMiddleware())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg.Log.Info("Consuming calendar sync jobs", "topic", cfg.SyncTopic, "group", cfg.SyncConsumerGroup)
	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		cfg.Log.Error("Consumer stopped", "error", err)
	}

	if err := consumer.Close(); err != nil {
		cfg.Log.Error("Failed to close Kafka consumer", "error", err)
	}
	cfg.Log.Info("Calendar sync worker stopped", counters.Snapshot().LogArgs()...)
}

// initProcessor builds the reservation lifecycle the processor reads and
// updates. Jobs never enqueue further jobs, so its dispatcher is a no-op.
func initProcessor(cfg *config.Config) *syncservice.Processor {
	repos := service.Repositories{
		Reservations: repository.NewMongoReservationRepository(cfg),
		Groups:       repository.NewMongoRecurringGroupRepository(cfg),
		Locks:        repository.NewReservationLockRepository(cfg),
		Tabs:         repository.NewMongoTabRepository(cfg),
		Resources:    resourcerepo.NewMongoResourceRepository(cfg),
		Clients:      clientrepo.NewMongoClientRepository(cfg),
	}
	reservations := service.NewReservationService(repos, validator.NewReservationValidator(cfg.Log), syncservice.NoopDispatcher{}, cfg)

	creds := syncservice.NewCredentialProvider(
		syncrepo.NewMongoCredentialRepository(cfg),
		syncservice.NewOAuthConfig(cfg),
		cfg,
	)
	adapter := syncservice.NewAdapter(creds, syncrepo.NewMongoChannelRepository(cfg), cfg)
	adapter.Bind(reservations)
	return syncservice.NewProcessor(adapter, cfg.Log)
}
