package config

import "time"

const (
	DefaultEnvFile = ".env"

	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "agenda"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort      = "8080"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultPaginationLimit = 100

	DefaultReservationLockTTL        = 10 * time.Second
	DefaultReservationLockAttempts   = 5
	DefaultReservationLockRetryDelay = 50 * time.Millisecond
	DefaultMaxRecurringOccurrences   = 200
	DefaultPhoneRegion               = "BR"

	DefaultCalendarID       = "primary"
	DefaultCalendarTimezone = "America/Sao_Paulo"

	DefaultSyncMaxAttempts   = 5
	DefaultSyncBaseDelay     = 500 * time.Millisecond
	DefaultSyncMaxDelay      = 10 * time.Second
	DefaultSyncMultiplier    = 2.0
	DefaultSyncJobTimeout    = 60 * time.Second
	DefaultSyncDispatchMode  = SyncDispatchInline
	DefaultSyncTopic         = "calendar-sync"
	DefaultSyncDLQTopic      = "calendar-sync-dlq"
	DefaultSyncConsumerGroup = "calendar-sync-workers"
)

const (
	SyncDispatchInline = "inline"
	SyncDispatchKafka  = "kafka"
)
