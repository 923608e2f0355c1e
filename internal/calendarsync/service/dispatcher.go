package service

import (
	"context"
	"errors"
	"sync"
	"time"

	syncerrors "agenda/internal/calendarsync/errors"
	"agenda/pkg/config"
	"agenda/pkg/kafka"
	"agenda/pkg/logger"
	"agenda/pkg/model"
)

const (
	jobEventTypePrefix = "calendar.sync."
	jobSchemaVersion   = "1"
	jobSource          = "reservations"
)

type JobProcessor interface {
	Process(ctx context.Context, job *model.SyncJob) error
}

// InlineDispatcher runs jobs in the API process, on a context detached from
// the request so that a finished response does not cancel the sync.
type InlineDispatcher struct {
	processor JobProcessor
	timeout   time.Duration
	log       *logger.Logger
	wg        sync.WaitGroup
}

func NewInlineDispatcher(processor JobProcessor, cfg *config.Config) *InlineDispatcher {
	return &InlineDispatcher{
		processor: processor,
		timeout:   cfg.SyncJobTimeout,
		log:       cfg.Log,
	}
}

func (d *InlineDispatcher) Dispatch(ctx context.Context, job *model.SyncJob) error {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()

		if err := d.processor.Process(jobCtx, job); err != nil {
			d.log.Error("Calendar sync job failed",
				"job_id", job.ID,
				"operation", job.Operation,
				"reservation_id", job.ReservationID,
				"error", err,
			)
		}
	}()
	return nil
}

// Stop waits for in-flight jobs. Each is bounded by the job timeout.
func (d *InlineDispatcher) Stop() {
	d.wg.Wait()
}

type Publisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

// KafkaDispatcher queues jobs for the calendar-sync worker. Jobs are keyed
// by reservation id so one reservation's jobs stay in order.
type KafkaDispatcher struct {
	publisher Publisher
}

func NewKafkaDispatcher(publisher Publisher) *KafkaDispatcher {
	return &KafkaDispatcher{publisher: publisher}
}

func (d *KafkaDispatcher) Dispatch(ctx context.Context, job *model.SyncJob) error {
	msg, err := kafka.Encode(kafka.Envelope{
		Key:           job.ReservationID,
		EventID:       job.ID,
		EventType:     jobEventTypePrefix + string(job.Operation),
		SchemaVersion: jobSchemaVersion,
		Source:        jobSource,
		At:            job.EnqueuedAt,
	}, job)
	if err != nil {
		return err
	}
	return d.publisher.Publish(ctx, msg)
}

// NoopDispatcher is used when the Google integration is not configured.
type NoopDispatcher struct{}

func (NoopDispatcher) Dispatch(context.Context, *model.SyncJob) error { return nil }

// NewJobHandler adapts a processor to the Kafka consumer. Undecodable or
// unknown jobs are permanent; anything else may succeed on a retry.
func NewJobHandler(processor JobProcessor, timeout time.Duration) kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		var job model.SyncJob
		if err := msg.DecodeValue(&job); err != nil {
			return kafka.NewPermanentError("invalid sync job payload", err)
		}
		if job.TenantID == "" || (job.ReservationID == "" && job.ExternalEventID == "") {
			return kafka.NewPermanentError("sync job is missing its target", nil)
		}

		jobCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		err := processor.Process(jobCtx, &job)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, syncerrors.ErrUnknownOperation):
			return kafka.NewPermanentError("unsupported sync job", err)
		default:
			return kafka.NewTransientError("sync job failed", err)
		}
	}
}
