package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"condomini/internal/amqp"
	"condomini/internal/log"
	"condomini/internal/sheets"
)

// VisitConsumer delivers queued visit messages to a handler until ctx ends.
type VisitConsumer interface {
	ConsumeVisits(ctx context.Context, handler func(context.Context, *amqp.VisitMessage) error) error
}

const (
	initialRetryDelay = time.Second
	maxRetryDelay     = 30 * time.Second
)

// VisitWorker moves visit messages from the queue into the visit log.
type VisitWorker struct {
	consumer VisitConsumer
	recorder sheets.VisitRecorder
	logger   *log.Logger

	// sleep waits between consume attempts; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewVisitWorker(consumer VisitConsumer, recorder sheets.VisitRecorder, logger *log.Logger) *VisitWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &VisitWorker{
		consumer: consumer,
		recorder: recorder,
		logger:   logger.WithComponent(log.ComponentWorker),
		sleep:    sleepContext,
	}
}

// HandleVisitMessage stores a single visit. Redelivered messages are
// absorbed by the recorder, which ignores known ids.
func (w *VisitWorker) HandleVisitMessage(ctx context.Context, msg *amqp.VisitMessage) error {
	visit := msg.Visit()
	if err := visit.Validate(); err != nil {
		return err
	}
	if err := w.recorder.RecordVisit(ctx, visit); err != nil {
		return fmt.Errorf("record visit %s: %w", visit.ID, err)
	}
	w.logger.DebugContext(ctx, "Visit recorded", log.FieldVisitID, visit.ID)
	return nil
}

// Run consumes until ctx is cancelled, restarting the consumer with a
// growing delay whenever the broker connection drops.
func (w *VisitWorker) Run(ctx context.Context) error {
	delay := initialRetryDelay
	for {
		started := time.Now()
		err := w.consumer.ConsumeVisits(ctx, w.HandleVisitMessage)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			err = errors.New("consumer stopped")
		}

		// a consumer that ran for a while earned a fresh backoff
		if time.Since(started) > maxRetryDelay {
			delay = initialRetryDelay
		}
		w.logger.WarnContext(ctx, "Visit consumer stopped, retrying",
			log.FieldError, err,
			"retry_in", delay.String())

		if err := w.sleep(ctx, delay); err != nil {
			return err
		}
		delay = min(delay*2, maxRetryDelay)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
