package config

const (
	EnvFile = "ENV_FILE"

	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort      = "PORT"
	EnvLogLevel  = "LOG_LEVEL"
	EnvLogFormat = "LOG_FORMAT"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvReservationLockTTL        = "RESERVATION_LOCK_TTL"
	EnvReservationLockAttempts   = "RESERVATION_LOCK_ATTEMPTS"
	EnvReservationLockRetryDelay = "RESERVATION_LOCK_RETRY_DELAY"
	EnvMaxRecurringOccurrences   = "MAX_RECURRING_OCCURRENCES"
	EnvDefaultPhoneRegion        = "DEFAULT_PHONE_REGION"

	EnvGoogleClientID     = "GOOGLE_CLIENT_ID"
	EnvGoogleClientSecret = "GOOGLE_CLIENT_SECRET"
	EnvGoogleRedirectURL  = "GOOGLE_REDIRECT_URL"

	EnvCalendarID           = "CALENDAR_ID"
	EnvCalendarTimezone     = "CALENDAR_TIMEZONE"
	EnvCalendarWebhookURL   = "CALENDAR_WEBHOOK_URL"
	EnvCalendarWebhookToken = "CALENDAR_WEBHOOK_TOKEN"
	EnvCalendarStateSecret  = "CALENDAR_STATE_SECRET"
	EnvFrontendURL          = "FRONTEND_URL"

	EnvSyncMaxAttempts   = "SYNC_MAX_ATTEMPTS"
	EnvSyncBaseDelay     = "SYNC_BASE_DELAY"
	EnvSyncMaxDelay      = "SYNC_MAX_DELAY"
	EnvSyncMultiplier    = "SYNC_MULTIPLIER"
	EnvSyncJobTimeout    = "SYNC_JOB_TIMEOUT"
	EnvSyncDispatchMode  = "SYNC_DISPATCH_MODE"
	EnvSyncTopic         = "SYNC_TOPIC"
	EnvSyncDLQTopic      = "SYNC_DLQ_TOPIC"
	EnvSyncConsumerGroup = "SYNC_CONSUMER_GROUP"
)
