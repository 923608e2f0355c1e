package kafka_config

import (
	"strings"
	"testing"
)

func TestLoad_ParsesBrokers(t *testing.T) {
	t.Setenv(EnvKafkaBrokers, " kafka-1:9092, ,kafka-2:9092 ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Brokers) != 2 || cfg.Brokers[0] != "kafka-1:9092" || cfg.Brokers[1] != "kafka-2:9092" {
		t.Errorf("brokers = %v", cfg.Brokers)
	}
	if cfg.Consumer.StartOffset != -2 || cfg.Consumer.CommitInterval != 0 {
		t.Errorf("consumer defaults = %d/%s, want oldest offset with synchronous commits",
			cfg.Consumer.StartOffset, cfg.Consumer.CommitInterval)
	}
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	t.Setenv(EnvKafkaBrokers, ",")
	t.Setenv(EnvProducerCompression, "brotli")
	t.Setenv(EnvProducerRequireAcks, "2")

	_, err := Load()
	if err == nil {
		t.Fatal("expected a validation error")
	}
	for _, want := range []string{"broker", "Producer.Compression", "Producer.RequireAcks"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %s: %v", want, err)
		}
	}
}

func TestValidate_HeartbeatMustBeShorterThanSession(t *testing.T) {
	t.Setenv(EnvConsumerHeartbeatInterval, "45s")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "HeartbeatInterval") {
		t.Fatalf("expected heartbeat error, got %v", err)
	}
}

func TestLoad_IgnoresUnparsableDurations(t *testing.T) {
	t.Setenv(EnvConsumerRetryBackoff, "later")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Consumer.RetryBackoff != DefaultConsumerRetryBackoff {
		t.Errorf("retry backoff = %s, want %s", cfg.Consumer.RetryBackoff, DefaultConsumerRetryBackoff)
	}
}
