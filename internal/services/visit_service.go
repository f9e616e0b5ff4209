package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"condomini/internal/core"
	"condomini/internal/log"
	"condomini/internal/metrics"
	"condomini/internal/sheets"
)

// VisitPublisher hands a visit to the message queue.
type VisitPublisher interface {
	PublishVisit(ctx context.Context, v core.Visit) error
}

// VisitService records page visits, through the queue when one is
// configured and directly into the recorder otherwise.
type VisitService struct {
	publisher VisitPublisher
	recorder  sheets.VisitRecorder
	counter   sheets.VisitCounter
	metrics   *metrics.Metrics
	logger    *log.Logger
	now       func() time.Time
}

// NewVisitService wires the visit log. publisher may be nil; recorder is the
// fallback when publishing fails.
func NewVisitService(publisher VisitPublisher, recorder sheets.VisitRecorder, counter sheets.VisitCounter, m *metrics.Metrics, logger *log.Logger) *VisitService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &VisitService{
		publisher: publisher,
		recorder:  recorder,
		counter:   counter,
		metrics:   m,
		logger:    logger.WithComponent(log.ComponentWorker),
		now:       time.Now,
	}
}

// RecordVisit assigns an id and timestamp when missing and stores the visit.
func (s *VisitService) RecordVisit(ctx context.Context, v core.Visit) (core.Visit, error) {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.Timestamp.IsZero() {
		v.Timestamp = s.now().UTC()
	}
	if err := v.Validate(); err != nil {
		return v, err
	}

	if s.publisher != nil {
		err := s.publisher.PublishVisit(ctx, v)
		if err == nil {
			s.metrics.IncrementVisit("queued")
			return v, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			s.metrics.IncrementVisit("failed")
			return v, err
		}
		s.logger.WarnContext(ctx, "Visit publish failed, recording directly",
			log.FieldVisitID, v.ID,
			log.FieldError, err)
	}

	if s.recorder == nil {
		s.metrics.IncrementVisit("failed")
		return v, errors.New("no visit recorder configured")
	}
	if err := s.recorder.RecordVisit(ctx, v); err != nil {
		s.metrics.IncrementVisit("failed")
		return v, fmt.Errorf("record visit: %w", err)
	}
	s.metrics.IncrementVisit("direct")
	return v, nil
}

// CountVisits returns the number of stored visits.
func (s *VisitService) CountVisits(ctx context.Context) (int64, error) {
	if s.counter == nil {
		return 0, errors.New("no visit counter configured")
	}
	n, err := s.counter.CountVisits(ctx)
	if err != nil {
		return 0, fmt.Errorf("count visits: %w", err)
	}
	return n, nil
}

// RecentVisits returns up to limit visits, newest first. The recorder is
// used when it can list, then the counter.
func (s *VisitService) RecentVisits(ctx context.Context, limit int) ([]core.Visit, error) {
	var lister sheets.VisitLister
	if l, ok := s.recorder.(sheets.VisitLister); ok {
		lister = l
	} else if l, ok := s.counter.(sheets.VisitLister); ok {
		lister = l
	}
	if lister == nil {
		return nil, errors.New("no visit lister configured")
	}
	visits, err := lister.RecentVisits(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list visits: %w", err)
	}
	return visits, nil
}
