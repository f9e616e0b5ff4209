package sheets

import (
	"context"

	"condomini/internal/core"
)

// Ports for outbound adapters.
type (
	// UnitTableReader loads the whole millesimal table. A malformed row fails the
	// read with a *core.MalformedUnitError; partial tables are never returned.
	UnitTableReader interface {
		ReadUnits(ctx context.Context) ([]core.Unit, error)
	}

	// UnitTableWriter replaces the stored table wholesale.
	UnitTableWriter interface {
		ReplaceUnits(ctx context.Context, units []core.Unit) error
	}

	// VisitRecorder persists one page visit.
	VisitRecorder interface {
		RecordVisit(ctx context.Context, v core.Visit) error
	}

	// VisitCounter reports how many visits have been recorded.
	VisitCounter interface {
		CountVisits(ctx context.Context) (int64, error)
	}

	// VisitLister returns the most recent visits, newest first.
	VisitLister interface {
		RecentVisits(ctx context.Context, limit int) ([]core.Visit, error)
	}
)
