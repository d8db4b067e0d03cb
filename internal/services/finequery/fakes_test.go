package finequery

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"juridico/internal/domain"
)

// memStore filters on the date range only; classification filters are
// exercised against Postgres.
type memStore struct {
	mu          sync.Mutex
	fines       []domain.Fine
	groups      []domain.Group
	purgeCutoff time.Time
	alertFrom   time.Time
	alertUntil  time.Time
	listed      int
}

func (m *memStore) inRange(q domain.FineQuery) []domain.Fine {
	var out []domain.Fine
	for _, f := range m.fines {
		if q.Range.Contains(f.DataEmissaoMulta) {
			out = append(out, f)
		}
	}
	return out
}

func (m *memStore) GetFine(_ context.Context, numero string) (domain.Fine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.fines {
		if f.NumeroAiMulta == numero {
			return f, nil
		}
	}
	return domain.Fine{}, domain.ErrNotFound
}

func (m *memStore) UpsertFine(context.Context, domain.Fine) (bool, error) {
	return false, errors.New("read only")
}

func (m *memStore) Freshness(context.Context, domain.DateRange) (int, *time.Time, error) {
	return 0, nil, nil
}

func (m *memStore) SearchFines(_ context.Context, q domain.FineQuery) ([]domain.Fine, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.inRange(q)
	start := q.Offset()
	if start >= len(all) {
		return nil, len(all), nil
	}
	end := start + q.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], len(all), nil
}

func (m *memStore) ListFines(_ context.Context, q domain.FineQuery) ([]domain.Fine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listed++
	return m.inRange(q), nil
}

func (m *memStore) SummarizeFines(_ context.Context, q domain.FineQuery) (domain.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var s domain.Summary
	for _, f := range m.inRange(q) {
		s.TotalMultas++
		s.ValorTotal = s.ValorTotal.Add(f.ValorMulta)
		if present(f.NProcessoNotificacao) {
			s.ComProcessoNotificacao++
		}
		if present(f.ObservacaoRealMotivo) {
			s.ComObservacaoRealMotivo++
		}
	}
	return s, nil
}

func (m *memStore) GroupFines(_ context.Context, _ domain.FineQuery, _ domain.GroupDimension) ([]domain.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Group, len(m.groups))
	copy(out, m.groups)
	return out, nil
}

func (m *memStore) FineStats(context.Context) (domain.CacheStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.CacheStats{TotalRegistros: len(m.fines)}, nil
}

func (m *memStore) PurgeFinesIssuedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purgeCutoff = cutoff
	var kept []domain.Fine
	var n int64
	for _, f := range m.fines {
		if f.DataEmissaoMulta.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, f)
	}
	m.fines = kept
	return n, nil
}

func (m *memStore) FinesWithDefenseDeadline(_ context.Context, from, until time.Time) ([]domain.Fine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alertFrom, m.alertUntil = from, until
	var out []domain.Fine
	for _, f := range m.fines {
		d := f.DataLimiteCondutor
		if d != nil && !d.Before(from) && d.Before(until) {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DataLimiteCondutor.Before(*out[j].DataLimiteCondutor) })
	return out, nil
}

type stubSyncer struct {
	mu     sync.Mutex
	calls  []domain.DateRange
	forced []bool
	err    error
	store  *memStore
}

func (s *stubSyncer) EnsureFresh(_ context.Context, r domain.DateRange, force bool) (domain.SyncResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, r)
	s.forced = append(s.forced, force)
	if s.err != nil {
		return domain.SyncResult{}, s.err
	}
	return domain.SyncResult{Periodo: r, Fonte: domain.FonteCache, Erros: []domain.RowError{}}, nil
}

func (s *stubSyncer) FindByNumber(ctx context.Context, numero string) (*domain.Fine, error) {
	f, err := s.store.GetFine(ctx, numero)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

type stubRuns struct {
	runs  []domain.SyncRun
	limit int
}

func (r *stubRuns) StartSyncRun(context.Context, string, domain.DateRange) (int64, error) {
	return 0, nil
}

func (r *stubRuns) FinishSyncRun(context.Context, int64, domain.SyncResult, error) error {
	return nil
}

func (r *stubRuns) RecentSyncRuns(_ context.Context, limit int) ([]domain.SyncRun, error) {
	r.limit = limit
	return append([]domain.SyncRun(nil), r.runs...), nil
}

func str(s string) *string { return &s }

func at(y int, m time.Month, d, h int) time.Time {
	return time.Date(y, m, d, h, 0, 0, 0, time.UTC)
}

func fine(numero string, issued time.Time, valor int64) domain.Fine {
	return domain.Fine{
		NumeroAiMulta:    numero,
		DataEmissaoMulta: issued,
		ValorMulta:       decimal.NewFromInt(valor),
		PrefixoVeic:      str("0001"),
		DescricaoInfra:   str("AVANÇAR SINAL"),
	}
}
