package worker

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"condomini/internal/amqp"
	"condomini/internal/core"
	"condomini/internal/log"
	"condomini/internal/sheets/memory"
)

type scriptedConsumer struct {
	calls    int
	failures int
	messages []*amqp.VisitMessage
	errs     []error
}

func (c *scriptedConsumer) ConsumeVisits(ctx context.Context, handler func(context.Context, *amqp.VisitMessage) error) error {
	c.calls++
	if c.calls <= c.failures {
		return errors.New("dial AMQP: connection refused")
	}
	for _, m := range c.messages {
		c.errs = append(c.errs, handler(ctx, m))
	}
	<-ctx.Done()
	return ctx.Err()
}

func newTestWorker(consumer VisitConsumer, store *memory.Store) *VisitWorker {
	w := NewVisitWorker(consumer, store, log.New(log.Config{Output: io.Discard}))
	return w
}

func TestVisitWorker_HandleVisitMessage(t *testing.T) {
	store := memory.New(nil)
	w := newTestWorker(&scriptedConsumer{}, store)
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	msg := amqp.NewVisitMessage(core.Visit{ID: "v1", SessionID: "s1", Timestamp: ts})
	if err := w.HandleVisitMessage(context.Background(), msg); err != nil {
		t.Fatalf("HandleVisitMessage() error = %v", err)
	}
	// redelivery
	if err := w.HandleVisitMessage(context.Background(), msg); err != nil {
		t.Fatalf("HandleVisitMessage() redelivery error = %v", err)
	}

	visits := store.Visits()
	if len(visits) != 1 || visits[0].ID != "v1" || !visits[0].Timestamp.Equal(ts) {
		t.Fatalf("unexpected visits: %+v", visits)
	}
}

func TestVisitWorker_RejectsInvalidVisit(t *testing.T) {
	w := newTestWorker(&scriptedConsumer{}, memory.New(nil))

	err := w.HandleVisitMessage(context.Background(), amqp.NewVisitMessage(core.Visit{ID: "v1"}))
	if !errors.Is(err, core.ErrZeroTimestamp) {
		t.Fatalf("error = %v, want ErrZeroTimestamp", err)
	}
}

func TestVisitWorker_RunRetriesUntilCancelled(t *testing.T) {
	store := memory.New(nil)
	consumer := &scriptedConsumer{
		failures: 2,
		messages: []*amqp.VisitMessage{
			amqp.NewVisitMessage(core.Visit{ID: "a", Timestamp: time.Unix(100, 0).UTC()}),
			amqp.NewVisitMessage(core.Visit{ID: "b", Timestamp: time.Unix(200, 0).UTC()}),
		},
	}
	w := newTestWorker(consumer, store)

	var delays []time.Duration
	w.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for {
		n, _ := store.CountVisits(context.Background())
		if n == 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("visits not recorded")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if consumer.calls != 3 {
		t.Errorf("consume attempts = %d, want 3", consumer.calls)
	}
	if len(delays) != 2 || delays[0] != time.Second || delays[1] != 2*time.Second {
		t.Errorf("retry delays = %v, want [1s 2s]", delays)
	}
}

func TestVisitWorker_RunStopsDuringBackoff(t *testing.T) {
	consumer := &scriptedConsumer{failures: 100}
	w := newTestWorker(consumer, memory.New(nil))

	ctx, cancel := context.WithCancel(context.Background())
	w.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return sleepContext(ctx, d)
	}

	if err := w.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if consumer.calls != 1 {
		t.Errorf("consume attempts = %d, want 1", consumer.calls)
	}
}
