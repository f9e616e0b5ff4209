package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"condomini/internal/allocation"
	"condomini/internal/cache"
	"condomini/internal/core"
	"condomini/internal/log"
	"condomini/internal/metrics"
	"condomini/internal/sheets"
)

// ErrNoSnapshot is returned before the first table load has finished.
var ErrNoSnapshot = errors.New("unit table not loaded")

// shareSumTolerance is how far the share total may drift from 1000 before a
// reload logs a warning.
const shareSumTolerance = 1e-6

// Snapshot is an immutable view of one table load. A failed load is also a
// snapshot, carrying the error instead of fractions.
type Snapshot struct {
	Version   string
	LoadedAt  time.Time
	Source    string
	Units     []core.Unit
	Fractions []core.FractionRecord
	ShareSum  float64
	Err       error
}

// Usable reports whether allocations can run on the snapshot.
func (s *Snapshot) Usable() bool {
	return s != nil && s.Err == nil
}

// IncludedUnits counts the units that take part in allocations.
func (s *Snapshot) IncludedUnits() int {
	return len(s.Fractions)
}

// Allocation is the result of one allocation request.
type Allocation struct {
	Version        string                  `json:"table_version"`
	RoofExpense    float64                 `json:"roof_expense"`
	GeneralExpense float64                 `json:"general_expense"`
	Households     []core.HouseholdSummary `json:"households"`
	Total          decimal.Decimal         `json:"total"`
}

// TableOptions configures a TableService.
type TableOptions struct {
	Source    string
	CacheSize int
	CacheTTL  time.Duration
	Metrics   *metrics.Metrics
	Logger    *log.Logger
}

// TableService owns the loaded unit table. Readers see whole snapshots only;
// a reload swaps the pointer and purges cached allocations.
type TableService struct {
	reader  sheets.UnitTableReader
	source  string
	cache   *cache.LRUCache[*Allocation]
	metrics *metrics.Metrics
	logger  *log.Logger

	current  atomic.Pointer[Snapshot]
	reloadMu sync.Mutex
	now      func() time.Time
}

func NewTableService(reader sheets.UnitTableReader, opts TableOptions) *TableService {
	if opts.CacheSize < 1 {
		opts.CacheSize = 256
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 10 * time.Minute
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &TableService{
		reader:  reader,
		source:  opts.Source,
		cache:   cache.NewLRUCache[*Allocation](opts.CacheSize, opts.CacheTTL),
		metrics: opts.Metrics,
		logger:  logger.WithComponent(log.ComponentTable),
		now:     time.Now,
	}
}

// Cache exposes the allocation cache so a cache.Manager can sweep it.
func (s *TableService) Cache() *cache.LRUCache[*Allocation] {
	return s.cache
}

// Reload reads the source and publishes a new snapshot. When the read or the
// fraction computation fails the published snapshot carries the error, so
// allocations stop instead of serving a stale table.
func (s *TableService) Reload(ctx context.Context) (*Snapshot, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	snap := &Snapshot{
		Version:  uuid.NewString(),
		LoadedAt: s.now(),
		Source:   s.source,
	}

	units, err := s.reader.ReadUnits(ctx)
	if err == nil {
		snap.Units = units
		snap.ShareSum = allocation.ShareSum(units)
		snap.Fractions, err = allocation.ComputeFractions(units)
	}
	if err != nil {
		if ctx.Err() != nil {
			// keep serving the previous table when the caller gave up
			return s.current.Load(), fmt.Errorf("reload unit table: %w", err)
		}
		snap.Err = err
		snap.Units = nil
		snap.Fractions = nil
	}

	s.current.Store(snap)
	s.cache.Purge()
	s.metrics.RecordReload(snap.Err, len(snap.Units), snap.ShareSum)

	fields := log.NewFields().
		WithOperation(log.OpReload).
		WithTable(snap.Version, snap.Source, len(snap.Units), snap.IncludedUnits())
	if snap.Err != nil {
		s.logger.ErrorContext(ctx, "Unit table load failed", fields.WithError(snap.Err).ToSlice()...)
		return snap, fmt.Errorf("reload unit table: %w", snap.Err)
	}

	s.logger.InfoContext(ctx, "Unit table loaded", fields.ToSlice()...)
	if math.Abs(snap.ShareSum-core.BuildingShares) > shareSumTolerance {
		s.logger.WarnContext(ctx, "Unit shares do not add up to the building total",
			"share_sum", snap.ShareSum,
			"expected", core.BuildingShares,
			log.FieldTableVersion, snap.Version)
	}
	return snap, nil
}

// Snapshot returns the current snapshot. The error is ErrNoSnapshot before
// the first load, or the load error of a failed snapshot.
func (s *TableService) Snapshot() (*Snapshot, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, ErrNoSnapshot
	}
	return snap, snap.Err
}

// Allocate splits the two expense totals over the current snapshot. Results
// are cached per snapshot version and amounts; callers receive copies.
func (s *TableService) Allocate(ctx context.Context, roofExpense, generalExpense float64) (*Allocation, error) {
	if err := allocation.ValidateExpenses(roofExpense, generalExpense); err != nil {
		s.metrics.IncrementAllocation("invalid_expense")
		return nil, err
	}

	snap, err := s.Snapshot()
	if err != nil {
		s.metrics.IncrementAllocation("unavailable")
		return nil, err
	}

	key := cacheKey(snap.Version, roofExpense, generalExpense)
	if cached, ok := s.cache.Get(key); ok {
		s.metrics.IncrementAllocation("cached")
		return cached.clone(), nil
	}

	start := time.Now()
	households, err := allocation.Allocate(snap.Fractions, roofExpense, generalExpense)
	if err != nil {
		if errors.Is(err, core.ErrDegenerateApportionment) {
			s.metrics.IncrementAllocation("degenerate")
		}
		return nil, err
	}
	s.metrics.ObserveAllocation(time.Since(start))
	s.metrics.IncrementAllocation("computed")

	result := &Allocation{
		Version:        snap.Version,
		RoofExpense:    roofExpense,
		GeneralExpense: generalExpense,
		Households:     households,
		Total:          allocation.GrandTotal(households),
	}
	s.cache.Set(key, result)

	s.logger.DebugContext(ctx, "Allocation computed",
		log.NewFields().
			WithOperation(log.OpAllocate).
			WithAllocation(snap.Version, roofExpense, generalExpense, len(households)).
			ToSlice()...)
	return result.clone(), nil
}

func cacheKey(version string, roof, general float64) string {
	return version + "|" + strconv.FormatFloat(roof, 'g', -1, 64) + "|" + strconv.FormatFloat(general, 'g', -1, 64)
}

func (a *Allocation) clone() *Allocation {
	out := *a
	out.Households = make([]core.HouseholdSummary, len(a.Households))
	for i, h := range a.Households {
		h.Interiors = append([]string(nil), h.Interiors...)
		out.Households[i] = h
	}
	return &out
}
