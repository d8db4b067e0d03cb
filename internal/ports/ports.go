package ports

import (
	"context"
	"time"

	"juridico/internal/domain"
)

// OracleGateway runs read-only SQL against the Globus source. Rows are keyed
// by upper-case column name.
type OracleGateway interface {
	Query(ctx context.Context, sql string) ([]map[string]any, error)
}

// FleetSnapshots hands out the current fleet snapshot.
type FleetSnapshots interface {
	GetSnapshot(ctx context.Context) (*domain.FleetSnapshot, error)
	Invalidate()
}

// Syncer keeps the fine cache fresh.
type Syncer interface {
	EnsureFresh(ctx context.Context, r domain.DateRange, force bool) (domain.SyncResult, error)
	FindByNumber(ctx context.Context, numero string) (*domain.Fine, error)
}

// FleetImporter refreshes the local fleet table from the source.
type FleetImporter interface {
	ImportFleet(ctx context.Context, includeInactive bool) (domain.SyncResult, error)
}

// Fines answers fine queries over the cache.
type Fines interface {
	Search(ctx context.Context, f domain.FineFilter) (domain.SearchResult, error)
	ListAll(ctx context.Context, f domain.FineFilter) ([]domain.EnrichedFine, error)
	FindByNumber(ctx context.Context, numero string) (*domain.EnrichedFine, error)
	ForceSync(ctx context.Context, r domain.DateRange) (domain.SyncResult, error)
	CacheStats(ctx context.Context) (domain.CacheStats, error)
	Purge(ctx context.Context, days int) (int64, error)
	DefenseAlerts(ctx context.Context) ([]domain.EnrichedFine, error)
	Dashboard(ctx context.Context, f domain.FineFilter) (domain.Dashboard, error)
	ComparePeriods(ctx context.Context, a, b domain.DateRange) (domain.PeriodComparison, error)
	Validate(ctx context.Context, numero string) (domain.Validation, error)
	SyncRuns(ctx context.Context, limit int) ([]domain.SyncRun, error)
}

// SectorHistory is the point-in-time view over the sector ledger.
type SectorHistory interface {
	SectorAsOf(ctx context.Context, vehicle string, at time.Time) (*domain.SectorInterval, error)
	Current(ctx context.Context, vehicle string) (*domain.SectorInterval, error)
	History(ctx context.Context, vehicle string) ([]domain.SectorInterval, error)
	VehiclesInSectorDuring(ctx context.Context, sector int, from, to time.Time) ([]string, error)
	RegisterChange(ctx context.Context, ch domain.SectorChange) (domain.SectorInterval, error)
	InitializeFromFleet(ctx context.Context) (domain.InitResult, error)
	DetectDrift(ctx context.Context) (domain.DriftResult, error)
	Purge(ctx context.Context, days int) (int64, error)
	Stats(ctx context.Context) (domain.HistoryStats, error)
}

// SectorReports attributes fines to sectors.
type SectorReports interface {
	SearchWithHistoricalSector(ctx context.Context, f domain.FineFilter) (domain.HistoricalSearchResult, error)
	SearchWithCurrentSector(ctx context.Context, f domain.FineFilter) (domain.CurrentSearchResult, error)
	ChangeImpactReport(ctx context.Context, f domain.FineFilter) (domain.ImpactReport, error)
	CompareSectors(ctx context.Context, f domain.FineFilter) (domain.SectorComparison, error)
}
