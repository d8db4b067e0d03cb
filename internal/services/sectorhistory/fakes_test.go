package sectorhistory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"juridico/internal/domain"
	"juridico/internal/ports"
)

// memLedger mirrors the Postgres ledger rules in memory.
type memLedger struct {
	mu      sync.Mutex
	rows    map[string][]domain.SectorInterval
	failFor string
	cutoff  time.Time
}

func newMemLedger() *memLedger { return &memLedger{rows: map[string][]domain.SectorInterval{}} }

func (l *memLedger) OpenInterval(_ context.Context, vehicle string) (*domain.SectorInterval, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if vehicle == l.failFor {
		return nil, errors.New("ledger unavailable")
	}
	return domain.OpenInterval(l.rows[vehicle]), nil
}

func (l *memLedger) IntervalAt(_ context.Context, vehicle string, at time.Time) (*domain.SectorInterval, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return domain.IntervalAt(l.rows[vehicle], at), nil
}

func (l *memLedger) VehicleHistory(_ context.Context, vehicle string) ([]domain.SectorInterval, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	h := append([]domain.SectorInterval(nil), l.rows[vehicle]...)
	domain.SortHistory(h)
	return h, nil
}

func (l *memLedger) InsertOpenIntervalIfAbsent(_ context.Context, iv domain.SectorInterval) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if iv.VehicleID == l.failFor {
		return false, errors.New("insert failed")
	}
	if domain.OpenInterval(l.rows[iv.VehicleID]) != nil {
		return false, nil
	}
	iv.ID = uuid.New()
	l.rows[iv.VehicleID] = append(l.rows[iv.VehicleID], iv)
	return true, nil
}

func (l *memLedger) ApplyChange(_ context.Context, ch domain.SectorChange) (domain.SectorInterval, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	h := l.rows[ch.VehicleID]
	if err := domain.ValidateChange(h, ch); err != nil {
		return domain.SectorInterval{}, err
	}
	for i := range h {
		if h[i].Open() {
			end := ch.DataMudanca
			h[i].DataFim = &end
		}
	}
	iv := domain.SectorInterval{
		ID:            uuid.New(),
		VehicleID:     ch.VehicleID,
		CodigoEmpresa: ch.CodigoEmpresa,
		Sector:        ch.Para,
		DataInicio:    ch.DataMudanca,
		Motivo:        ch.Motivo,
		Observacoes:   ch.Observacoes,
		Usuario:       ch.Usuario,
	}
	l.rows[ch.VehicleID] = append(h, iv)
	return iv, nil
}

func (l *memLedger) VehiclesInSector(_ context.Context, sector int, from, to time.Time) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for v, h := range l.rows {
		for _, iv := range h {
			if iv.Sector.Codigo != sector || iv.DataInicio.After(to) {
				continue
			}
			if iv.DataFim == nil || !iv.DataFim.Before(from) {
				out = append(out, v)
				break
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

func (l *memLedger) PurgeClosedIntervals(_ context.Context, endedBefore time.Time, keepReason string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cutoff = endedBefore
	var n int64
	for v, h := range l.rows {
		kept := h[:0]
		for _, iv := range h {
			if iv.DataFim != nil && iv.DataFim.Before(endedBefore) && iv.Motivo != keepReason {
				n++
				continue
			}
			kept = append(kept, iv)
		}
		l.rows[v] = kept
	}
	return n, nil
}

func (l *memLedger) LedgerStats(context.Context) (ports.LedgerStats, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	st := ports.LedgerStats{PorMotivo: map[string]int{}}
	for _, h := range l.rows {
		if len(h) > 0 {
			st.VeiculosComHistorico++
		}
		for _, iv := range h {
			st.TotalRegistros++
			st.PorMotivo[iv.Motivo]++
			if iv.Motivo != domain.MotivoInicializacao {
				st.TotalMudancas++
			}
		}
	}
	return st, nil
}

type memFleet struct {
	ports.FleetStore
	vehicles []domain.FleetVehicle
}

func (f *memFleet) ActiveVehicles(context.Context) ([]domain.FleetVehicle, error) {
	var out []domain.FleetVehicle
	for _, v := range f.vehicles {
		if v.Active() {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *memFleet) CountVehicles(ctx context.Context) (int, int, error) {
	active, _ := f.ActiveVehicles(ctx)
	return len(f.vehicles), len(active), nil
}
