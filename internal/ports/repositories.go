package ports

import (
	"context"
	"time"

	"juridico/internal/domain"
)

// FineStore is the Postgres fine cache keyed by fine number.
type FineStore interface {
	// GetFine returns domain.ErrNotFound when the fine was never synced.
	GetFine(ctx context.Context, numero string) (domain.Fine, error)
	UpsertFine(ctx context.Context, f domain.Fine) (inserted bool, err error)
	Freshness(ctx context.Context, r domain.DateRange) (count int, lastSync *time.Time, err error)
	SearchFines(ctx context.Context, q domain.FineQuery) (page []domain.Fine, total int, err error)
	ListFines(ctx context.Context, q domain.FineQuery) ([]domain.Fine, error)
	SummarizeFines(ctx context.Context, q domain.FineQuery) (domain.Summary, error)
	GroupFines(ctx context.Context, q domain.FineQuery, by domain.GroupDimension) ([]domain.Group, error)
	FineStats(ctx context.Context) (domain.CacheStats, error)
	PurgeFinesIssuedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	FinesWithDefenseDeadline(ctx context.Context, from, to time.Time) ([]domain.Fine, error)
}

// SectorLedger stores per-vehicle sector intervals.
type SectorLedger interface {
	OpenInterval(ctx context.Context, vehicle string) (*domain.SectorInterval, error)
	IntervalAt(ctx context.Context, vehicle string, at time.Time) (*domain.SectorInterval, error)
	VehicleHistory(ctx context.Context, vehicle string) ([]domain.SectorInterval, error)
	InsertOpenIntervalIfAbsent(ctx context.Context, iv domain.SectorInterval) (created bool, err error)
	// ApplyChange validates ch against the vehicle's history and, in one
	// transaction, closes the open interval and opens the new one.
	ApplyChange(ctx context.Context, ch domain.SectorChange) (domain.SectorInterval, error)
	VehiclesInSector(ctx context.Context, sector int, from, to time.Time) ([]string, error)
	PurgeClosedIntervals(ctx context.Context, endedBefore time.Time, keepReason string) (int64, error)
	LedgerStats(ctx context.Context) (LedgerStats, error)
}

type LedgerStats struct {
	VeiculosComHistorico int            `json:"veiculosComHistorico"`
	TotalRegistros       int            `json:"totalRegistros"`
	TotalMudancas        int            `json:"totalMudancas"`
	PorMotivo            map[string]int `json:"porMotivo"`
}

// FleetStore is the local copy of the current fleet.
type FleetStore interface {
	AllVehicles(ctx context.Context) ([]domain.FleetVehicle, error)
	ActiveVehicles(ctx context.Context) ([]domain.FleetVehicle, error)
	UpsertVehicle(ctx context.Context, v domain.FleetVehicle) (inserted bool, err error)
	CountVehicles(ctx context.Context) (total, active int, err error)
}

// SyncRunLog records sync attempts.
type SyncRunLog interface {
	StartSyncRun(ctx context.Context, kind string, r domain.DateRange) (int64, error)
	FinishSyncRun(ctx context.Context, id int64, res domain.SyncResult, runErr error) error
	RecentSyncRuns(ctx context.Context, limit int) ([]domain.SyncRun, error)
}
