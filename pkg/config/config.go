package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"time"

	"agenda/pkg/client"
	"agenda/pkg/logger"

	"github.com/joho/godotenv"
)

var (
	mongoURIRegex   = regexp.MustCompile(`^mongodb(\+srv)?://`)
	credentialRegex = regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	regionRegex     = regexp.MustCompile(`^[A-Z]{2}$`)
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	Port      string
	LogLevel  string
	LogFormat string

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	ReservationLockTTL        time.Duration
	ReservationLockAttempts   int
	ReservationLockRetryDelay time.Duration
	MaxRecurringOccurrences   int
	DefaultPhoneRegion        string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	CalendarID           string
	CalendarTimezone     string
	CalendarWebhookURL   string
	CalendarWebhookToken string
	CalendarStateSecret  string
	FrontendURL          string

	SyncMaxAttempts   int
	SyncBaseDelay     time.Duration
	SyncMaxDelay      time.Duration
	SyncMultiplier    float64
	SyncJobTimeout    time.Duration
	SyncDispatchMode  string
	SyncTopic         string
	SyncDLQTopic      string
	SyncConsumerGroup string

	Log    *logger.Logger
	Client *client.Client
}

func Load(serviceName string) *Config {
	envFileErr := loadEnvFile()

	cfg := &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		Port:      getEnvStr(EnvPort, DefaultPort),
		LogLevel:  getEnvStr(EnvLogLevel, DefaultLogLevel),
		LogFormat: getEnvStr(EnvLogFormat, DefaultLogFormat),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		ReservationLockTTL:        getEnvDuration(EnvReservationLockTTL, DefaultReservationLockTTL),
		ReservationLockAttempts:   getEnvNum(EnvReservationLockAttempts, DefaultReservationLockAttempts),
		ReservationLockRetryDelay: getEnvDuration(EnvReservationLockRetryDelay, DefaultReservationLockRetryDelay),
		MaxRecurringOccurrences:   getEnvNum(EnvMaxRecurringOccurrences, DefaultMaxRecurringOccurrences),
		DefaultPhoneRegion:        getEnvStr(EnvDefaultPhoneRegion, DefaultPhoneRegion),

		GoogleClientID:     getEnvStr(EnvGoogleClientID, ""),
		GoogleClientSecret: getEnvStr(EnvGoogleClientSecret, ""),
		GoogleRedirectURL:  getEnvStr(EnvGoogleRedirectURL, ""),

		CalendarID:           getEnvStr(EnvCalendarID, DefaultCalendarID),
		CalendarTimezone:     getEnvStr(EnvCalendarTimezone, DefaultCalendarTimezone),
		CalendarWebhookURL:   getEnvStr(EnvCalendarWebhookURL, ""),
		CalendarWebhookToken: getEnvStr(EnvCalendarWebhookToken, ""),
		CalendarStateSecret:  getEnvStr(EnvCalendarStateSecret, ""),
		FrontendURL:          getEnvStr(EnvFrontendURL, ""),

		SyncMaxAttempts:   getEnvNum(EnvSyncMaxAttempts, DefaultSyncMaxAttempts),
		SyncBaseDelay:     getEnvDuration(EnvSyncBaseDelay, DefaultSyncBaseDelay),
		SyncMaxDelay:      getEnvDuration(EnvSyncMaxDelay, DefaultSyncMaxDelay),
		SyncMultiplier:    getEnvFloat(EnvSyncMultiplier, DefaultSyncMultiplier),
		SyncJobTimeout:    getEnvDuration(EnvSyncJobTimeout, DefaultSyncJobTimeout),
		SyncDispatchMode:  getEnvStr(EnvSyncDispatchMode, DefaultSyncDispatchMode),
		SyncTopic:         getEnvStr(EnvSyncTopic, DefaultSyncTopic),
		SyncDLQTopic:      getEnvStr(EnvSyncDLQTopic, DefaultSyncDLQTopic),
		SyncConsumerGroup: getEnvStr(EnvSyncConsumerGroup, DefaultSyncConsumerGroup),

		Client: client.NewClient(),
	}

	cfg.Log = logger.New(logger.Config{
		Level:     cfg.LogLevel,
		Format:    cfg.LogFormat,
		AddSource: true,
		Service:   serviceName,
	})

	if envFileErr != nil {
		cfg.Log.Warn("Failed to load env file", "error", envFileErr)
	}

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

// loadEnvFile reads ENV_FILE, or ./.env when present. Variables already set in
// the process environment are never overridden.
func loadEnvFile() error {
	path := os.Getenv(EnvFile)
	if path == "" {
		if _, err := os.Stat(DefaultEnvFile); errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		path = DefaultEnvFile
	}
	return godotenv.Load(path)
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

// GoogleEnabled reports whether the Google Calendar integration is configured.
func (cfg *Config) GoogleEnabled() bool {
	return cfg.GoogleClientID != "" && cfg.GoogleClientSecret != ""
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	if cfg.MongoURI == "" {
		errors = append(errors, "MongoURI cannot be empty")
	} else if len(cfg.MongoURI) < 10 || !mongoURIRegex.MatchString(cfg.MongoURI) {
		errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactMongoURI(cfg.MongoURI)))
	}
	if cfg.MongoDatabaseName == "" {
		errors = append(errors, "MongoDatabaseName cannot be empty")
	}

	positiveDurations := []struct {
		name  string
		value time.Duration
	}{
		{"MongoConnTimeout", cfg.MongoConnTimeout},
		{"RequestTimeout", cfg.RequestTimeout},
		{"IdempotencyTTL", cfg.IdempotencyTTL},
		{"ReadTimeout", cfg.ReadTimeout},
		{"WriteTimeout", cfg.WriteTimeout},
		{"IdleTimeout", cfg.IdleTimeout},
		{"ShutdownTimeout", cfg.ShutdownTimeout},
		{"ReservationLockTTL", cfg.ReservationLockTTL},
		{"ReservationLockRetryDelay", cfg.ReservationLockRetryDelay},
		{"SyncBaseDelay", cfg.SyncBaseDelay},
		{"SyncMaxDelay", cfg.SyncMaxDelay},
		{"SyncJobTimeout", cfg.SyncJobTimeout},
	}
	for _, d := range positiveDurations {
		if d.value <= 0 {
			errors = append(errors, fmt.Sprintf("%s must be positive, got: %s", d.name, d.value))
		}
	}

	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}
	if cfg.ReservationLockAttempts <= 0 {
		errors = append(errors, fmt.Sprintf("ReservationLockAttempts must be positive, got: %d", cfg.ReservationLockAttempts))
	}
	if cfg.MaxRecurringOccurrences <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRecurringOccurrences must be positive, got: %d", cfg.MaxRecurringOccurrences))
	}
	if !regionRegex.MatchString(cfg.DefaultPhoneRegion) {
		errors = append(errors, fmt.Sprintf("DefaultPhoneRegion must be a two-letter region code, got: %s", cfg.DefaultPhoneRegion))
	}

	if cfg.SyncMaxAttempts <= 0 {
		errors = append(errors, fmt.Sprintf("SyncMaxAttempts must be positive, got: %d", cfg.SyncMaxAttempts))
	}
	if cfg.SyncMultiplier < 1 {
		errors = append(errors, fmt.Sprintf("SyncMultiplier must be >= 1, got: %g", cfg.SyncMultiplier))
	}
	if cfg.SyncMaxDelay < cfg.SyncBaseDelay {
		errors = append(errors, fmt.Sprintf("SyncMaxDelay (%s) must be >= SyncBaseDelay (%s)", cfg.SyncMaxDelay, cfg.SyncBaseDelay))
	}
	switch cfg.SyncDispatchMode {
	case SyncDispatchInline:
	case SyncDispatchKafka:
		if cfg.SyncTopic == "" {
			errors = append(errors, "SyncTopic cannot be empty when SyncDispatchMode is kafka")
		}
	default:
		errors = append(errors, fmt.Sprintf("SyncDispatchMode must be one of [inline, kafka], got: %s", cfg.SyncDispatchMode))
	}

	if _, err := time.LoadLocation(cfg.CalendarTimezone); err != nil {
		errors = append(errors, fmt.Sprintf("CalendarTimezone must be a valid IANA zone, got: %s", cfg.CalendarTimezone))
	}
	if cfg.CalendarID == "" {
		errors = append(errors, "CalendarID cannot be empty")
	}

	if (cfg.GoogleClientID == "") != (cfg.GoogleClientSecret == "") {
		errors = append(errors, "GoogleClientID and GoogleClientSecret must be set together")
	}
	if cfg.GoogleEnabled() {
		if cfg.GoogleRedirectURL == "" {
			errors = append(errors, "GoogleRedirectURL is required when the Google integration is enabled")
		}
		if len(cfg.CalendarStateSecret) < 16 {
			errors = append(errors, "CalendarStateSecret must be at least 16 characters when the Google integration is enabled")
		}
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"port", cfg.Port,
		"log_level", cfg.LogLevel,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"reservation_lock_ttl", cfg.ReservationLockTTL,
		"reservation_lock_attempts", cfg.ReservationLockAttempts,
		"max_recurring_occurrences", cfg.MaxRecurringOccurrences,
		"default_phone_region", cfg.DefaultPhoneRegion,
		"google_enabled", cfg.GoogleEnabled(),
		"calendar_id", cfg.CalendarID,
		"calendar_timezone", cfg.CalendarTimezone,
		"calendar_webhook_url", cfg.CalendarWebhookURL,
		"calendar_webhook_token_set", cfg.CalendarWebhookToken != "",
		"sync_max_attempts", cfg.SyncMaxAttempts,
		"sync_base_delay", cfg.SyncBaseDelay,
		"sync_max_delay", cfg.SyncMaxDelay,
		"sync_multiplier", cfg.SyncMultiplier,
		"sync_dispatch_mode", cfg.SyncDispatchMode,
		"sync_topic", cfg.SyncTopic,
	)
}

func redactMongoURI(uri string) string {
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log)
}

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		limit = 10
	} else if limit > DefaultPaginationLimit {
		limit = DefaultPaginationLimit
	}
	return limit
}

func NormalizeOffset(offset int64) int64 {
	return max(0, offset)
}
