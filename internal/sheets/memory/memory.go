package memory

import (
	"context"
	"sort"
	"sync"

	"condomini/internal/core"
	ports "condomini/internal/sheets"
)

var (
	_ ports.UnitTableReader = (*Store)(nil)
	_ ports.UnitTableWriter = (*Store)(nil)
	_ ports.VisitRecorder   = (*Store)(nil)
	_ ports.VisitCounter    = (*Store)(nil)
	_ ports.VisitLister     = (*Store)(nil)
)

// Store keeps the unit table and the visit log in process memory. It backs
// tests and serves as the visit log when no database is configured.
type Store struct {
	mu     sync.Mutex
	units  []core.Unit
	visits []core.Visit
}

func New(units []core.Unit) *Store {
	return &Store{units: append([]core.Unit(nil), units...)}
}

// ReadUnits returns a copy of the stored table.
func (s *Store) ReadUnits(_ context.Context) ([]core.Unit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Unit(nil), s.units...), nil
}

func (s *Store) ReplaceUnits(_ context.Context, units []core.Unit) error {
	for _, u := range units {
		if err := u.Validate(); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.units = append([]core.Unit(nil), units...)
	return nil
}

// RecordVisit appends v unless a visit with the same id is already stored.
func (s *Store) RecordVisit(_ context.Context, v core.Visit) error {
	if err := v.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, known := range s.visits {
		if known.ID == v.ID {
			return nil
		}
	}
	s.visits = append(s.visits, v)
	return nil
}

func (s *Store) CountVisits(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.visits)), nil
}

// RecentVisits implements sheets.VisitLister. A limit below one returns
// every visit.
func (s *Store) RecentVisits(_ context.Context, limit int) ([]core.Visit, error) {
	visits := s.Visits()
	sort.SliceStable(visits, func(i, j int) bool {
		return visits[i].Timestamp.After(visits[j].Timestamp)
	})
	if limit > 0 && len(visits) > limit {
		visits = visits[:limit]
	}
	return visits, nil
}

// Visits returns a copy of the recorded visits in arrival order.
func (s *Store) Visits() []core.Visit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Visit(nil), s.visits...)
}
