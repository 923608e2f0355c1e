package kafka_middleware

import (
	"context"
	"errors"
	"testing"

	"agenda/pkg/kafka"
)

func TestCounters_TrackOutcomes(t *testing.T) {
	counters := NewCounters()
	consume := counters.ConsumerMiddleware()
	publish := counters.ProducerMiddleware()

	ok := func(context.Context, kafka.Message) error { return nil }
	fail := func(context.Context, kafka.Message) error { return errors.New("boom") }

	_ = consume(context.Background(), kafka.Message{}, ok)
	_ = consume(context.Background(), kafka.Message{}, ok)
	_ = consume(context.Background(), kafka.Message{}, fail)
	_ = publish(context.Background(), kafka.Message{}, fail)

	s := counters.Snapshot()
	if s.Consumed != 2 || s.ConsumeFailed != 1 {
		t.Errorf("consume counters = %d/%d, want 2/1", s.Consumed, s.ConsumeFailed)
	}
	if s.Published != 0 || s.PublishFailed != 1 {
		t.Errorf("publish counters = %d/%d, want 0/1", s.Published, s.PublishFailed)
	}
	if len(s.LogArgs())%2 != 0 {
		t.Error("log args must be key/value pairs")
	}
}
