package finesync

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"juridico/internal/domain"
	"juridico/internal/ports"
)

type fakeOracle struct {
	queries []string
	fines   []map[string]any
	fleet   []map[string]any
	err     error
}

func (o *fakeOracle) Query(_ context.Context, sql string) ([]map[string]any, error) {
	o.queries = append(o.queries, sql)
	if o.err != nil {
		return nil, o.err
	}
	if strings.Contains(sql, "FRT_TIPODEFROTA") {
		return o.fleet, nil
	}
	if i := strings.Index(sql, "M.NUMEROAIMULTA = '"); i >= 0 {
		numero := strings.TrimSuffix(sql[i+len("M.NUMEROAIMULTA = '"):], "'")
		for _, row := range o.fines {
			if row["NUMEROAIMULTA"] == numero {
				return []map[string]any{row}, nil
			}
		}
		return nil, nil
	}
	return o.fines, nil
}

type memFines struct {
	ports.FineStore
	mu      sync.Mutex
	rows    map[string]domain.Fine
	failFor string
	// blockOn makes the upsert of that fine wait for ctx to end.
	blockOn string
	// afterWrite runs after every stored fine with the running count.
	afterWrite func(n int)
}

func newMemFines() *memFines { return &memFines{rows: map[string]domain.Fine{}} }

func (m *memFines) GetFine(_ context.Context, numero string) (domain.Fine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.rows[numero]
	if !ok {
		return f, domain.ErrNotFound
	}
	return f, nil
}

func (m *memFines) UpsertFine(ctx context.Context, f domain.Fine) (bool, error) {
	if f.NumeroAiMulta == m.blockOn {
		<-ctx.Done()
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	if f.NumeroAiMulta == m.failFor {
		m.mu.Unlock()
		return false, errors.New("constraint violated")
	}
	_, existed := m.rows[f.NumeroAiMulta]
	m.rows[f.NumeroAiMulta] = f
	n := len(m.rows)
	m.mu.Unlock()
	if m.afterWrite != nil {
		m.afterWrite(n)
	}
	return !existed, nil
}

func (m *memFines) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func (m *memFines) Freshness(_ context.Context, r domain.DateRange) (int, *time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int
	var last *time.Time
	for _, f := range m.rows {
		if !r.Contains(f.DataEmissaoMulta) {
			continue
		}
		count++
		if last == nil || f.SyncedAt.After(*last) {
			t := f.SyncedAt
			last = &t
		}
	}
	return count, last, nil
}

type memFleet struct {
	ports.FleetStore
	rows map[string]domain.FleetVehicle
}

func (m *memFleet) UpsertVehicle(_ context.Context, v domain.FleetVehicle) (bool, error) {
	_, existed := m.rows[v.Prefixo]
	m.rows[v.Prefixo] = v
	return !existed, nil
}

type memRuns struct {
	mu       sync.Mutex
	started  []string
	finished []error
	results  []domain.SyncResult
}

func (m *memRuns) StartSyncRun(_ context.Context, kind string, _ domain.DateRange) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = append(m.started, kind)
	return int64(len(m.started)), nil
}

// FinishSyncRun refuses a dead context like a real store would.
func (m *memRuns) FinishSyncRun(ctx context.Context, _ int64, res domain.SyncResult, runErr error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished = append(m.finished, runErr)
	m.results = append(m.results, res)
	return nil
}

func (m *memRuns) finishedRuns() ([]error, []domain.SyncResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]error(nil), m.finished...), append([]domain.SyncResult(nil), m.results...)
}

func (m *memRuns) RecentSyncRuns(context.Context, int) ([]domain.SyncRun, error) { return nil, nil }

type countingSnapshots struct {
	invalidated int
}

func (c *countingSnapshots) GetSnapshot(context.Context) (*domain.FleetSnapshot, error) {
	return &domain.FleetSnapshot{}, nil
}

func (c *countingSnapshots) Invalidate() { c.invalidated++ }
