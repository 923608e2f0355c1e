package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	synchandler "agenda/internal/calendarsync/handler"
	syncrepo "agenda/internal/calendarsync/repository"
	syncservice "agenda/internal/calendarsync/service"
	clienthandler "agenda/internal/clients/handler"
	clientrepo "agenda/internal/clients/repository"
	clientservice "agenda/internal/clients/service"
	clientvalidator "agenda/internal/clients/validator"
	"agenda/internal/reservations/handler"
	"agenda/internal/reservations/repository"
	"agenda/internal/reservations/service"
	"agenda/internal/reservations/validator"
	resourcehandler "agenda/internal/resources/handler"
	resourcerepo "agenda/internal/resources/repository"
	resourceservice "agenda/internal/resources/service"
	resourcevalidator "agenda/internal/resources/validator"
	"agenda/pkg/app"
	"agenda/pkg/config"
	"agenda/pkg/contracts"
	"agenda/pkg/kafka"
	kafkaconfig "agenda/pkg/kafka/config"
	kafkamiddleware "agenda/pkg/kafka/middleware"
)

const ServiceName = "reservations"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting Reservations service")
	serverApp := app.New(cfg, cfg.Client.Mongo)
	serverApp.Register(initHandlers(cfg, serverApp)...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serverApp.Run(ctx); err != nil {
		cfg.Log.Error("HTTP server failed", "error", err)
	}
}

func initHandlers(cfg *config.Config, serverApp *app.Application) []contracts.Handler {
	resources := resourcerepo.NewMongoResourceRepository(cfg)
	clients := clientrepo.NewMongoClientRepository(cfg)
	repos := service.Repositories{
		Reservations: repository.NewMongoReservationRepository(cfg),
		Groups:       repository.NewMongoRecurringGroupRepository(cfg),
		Locks:        repository.NewReservationLockRepository(cfg),
		Tabs:         repository.NewMongoTabRepository(cfg),
		Resources:    resources,
		Clients:      clients,
	}

	var (
		adapter  *syncservice.Adapter
		channels syncrepo.ChannelRepository
		creds    *syncservice.CredentialProvider
		dispatch service.SyncDispatcher = syncservice.NoopDispatcher{}
	)
	if cfg.GoogleEnabled() {
		channels = syncrepo.NewMongoChannelRepository(cfg)
		creds = syncservice.NewCredentialProvider(
			syncrepo.NewMongoCredentialRepository(cfg),
			syncservice.NewOAuthConfig(cfg),
			cfg,
		)
		adapter = syncservice.NewAdapter(creds, channels, cfg)
		dispatch = initDispatcher(cfg, serverApp, adapter)
	} else {
		cfg.Log.Info("Google Calendar integration disabled")
	}

	reservations := service.NewReservationService(repos, validator.NewReservationValidator(cfg.Log), dispatch, cfg)

	handlers := []contracts.Handler{
		handler.NewReservationHandler(reservations, cfg.Log),
		resourcehandler.NewResourceHandler(resourceservice.NewResourceService(
			resources,
			repos.Reservations,
			repos.Groups,
			repos.Tabs,
			resourcevalidator.NewResourceValidator(cfg.Log),
			cfg,
		), cfg.Log),
		clienthandler.NewClientHandler(clientservice.NewClientService(
			clients,
			repos.Reservations,
			repos.Groups,
			repos.Tabs,
			clientvalidator.NewClientValidator(cfg.Log),
			cfg,
		), cfg.Log),
	}

	if adapter != nil {
		adapter.Bind(reservations)
		integration, err := syncservice.NewCalendarService(creds, adapter, channels, cfg)
		if err != nil {
			cfg.Log.Fatal("Failed to initialize calendar integration", "error", err)
		}
		calendar := synchandler.NewCalendarHandler(integration, cfg)
		serverApp.OnShutdown(calendar)
		handlers = append(handlers, calendar)
	}

	cfg.Log.Info("Services initialized",
		"database", cfg.MongoDatabaseName,
		"google_enabled", cfg.GoogleEnabled(),
		"sync_dispatch_mode", cfg.SyncDispatchMode,
	)
	return handlers
}

// initDispatcher runs sync jobs in this process, or queues them for the
// calendar-sync worker when the dispatch mode is kafka.
func initDispatcher(cfg *config.Config, serverApp *app.Application, adapter *syncservice.Adapter) service.SyncDispatcher {
	if cfg.SyncDispatchMode != config.SyncDispatchKafka {
		inline := syncservice.NewInlineDispatcher(syncservice.NewProcessor(adapter, cfg.Log), cfg)
		serverApp.OnShutdown(inline)
		return inline
	}

	kafkaCfg, err := kafkaconfig.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log)

	producer, err := kafka.NewProducer(kafkaCfg, cfg.SyncTopic, cfg.SyncDLQTopic, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	counters := kafkamiddleware.NewCounters()
	producer.Use(kafkamiddleware.LoggingProducerMiddleware(cfg.Log))
	producer.Use(counters.ProducerMiddleware())

	serverApp.OnShutdown(app.StopFunc(func() {
		cfg.Log.Info("Sync job publishing stats", counters.Snapshot().LogArgs()...)
	}), producer)
	return syncservice.NewKafkaDispatcher(producer)
}
