// Package finesync keeps the Postgres fine cache in step with the Oracle
// source.
package finesync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"juridico/internal/adapters/oracle"
	"juridico/internal/domain"
	"juridico/internal/legacy"
	"juridico/internal/ports"
)

// Run kinds recorded in the sync log.
const (
	KindFines = "multas"
	KindFleet = "frota"
)

type Options struct {
	Oracle    ports.OracleGateway
	Fines     ports.FineStore
	Fleet     ports.FleetStore
	Runs      ports.SyncRunLog
	Snapshots ports.FleetSnapshots
	Clock     clockwork.Clock
	Log       logrus.FieldLogger

	Company   int
	Freshness time.Duration
	Location  *time.Location
	// SyncTimeout bounds one source sync. It is measured from the start of
	// the sync, not from the caller's deadline.
	SyncTimeout time.Duration
}

type Service struct {
	oracle    ports.OracleGateway
	fines     ports.FineStore
	fleet     ports.FleetStore
	runs      ports.SyncRunLog
	snapshots ports.FleetSnapshots
	clock     clockwork.Clock
	log       logrus.FieldLogger

	company     int
	freshness   time.Duration
	syncTimeout time.Duration
	mapper      Mapper
	group       singleflight.Group
}

// bookkeepingTimeout bounds run log writes made after the caller is gone.
const bookkeepingTimeout = 5 * time.Second

func New(o Options) *Service {
	if o.Company == 0 {
		o.Company = domain.DefaultCodigoEmpresa
	}
	if o.Freshness <= 0 {
		o.Freshness = domain.DefaultFreshness
	}
	if o.SyncTimeout <= 0 {
		o.SyncTimeout = domain.DefaultSyncTimeout
	}
	parser := legacy.Default
	if o.Location != nil {
		parser = legacy.Parser{Loc: o.Location}
	}
	return &Service{
		oracle:    o.Oracle,
		fines:     o.Fines,
		fleet:     o.Fleet,
		runs:      o.Runs,
		snapshots: o.Snapshots,
		clock:     o.Clock,
		log:       o.Log.WithField("component", "finesync"),
		company:     o.Company,
		freshness:   o.Freshness,
		syncTimeout: o.SyncTimeout,
		mapper:      Mapper{Parser: parser, Company: o.Company},
	}
}

// EnsureFresh syncs r from Oracle unless the cache already holds fines for r
// synced within the freshness window. force skips the check.
//
// The sync itself runs detached from ctx: a caller that gives up gets
// ctx.Err() while the sync carries on to completion, bounded by SyncTimeout.
// Concurrent calls for the same range share one sync.
func (s *Service) EnsureFresh(ctx context.Context, r domain.DateRange, force bool) (domain.SyncResult, error) {
	start := s.clock.Now()
	if !force {
		count, last, err := s.fines.Freshness(ctx, r)
		if err != nil {
			return domain.SyncResult{}, fmt.Errorf("freshness %s: %w", r, err)
		}
		if count > 0 && last != nil && s.clock.Since(*last) < s.freshness {
			return domain.SyncResult{
				Total:           count,
				Erros:           []domain.RowError{},
				Periodo:         r,
				Fonte:           domain.FonteCache,
				TempoExecucaoMs: s.clock.Since(start).Milliseconds(),
			}, nil
		}
	}

	ch := s.group.DoChan(r.String(), func() (any, error) {
		syncCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.syncTimeout)
		defer cancel()
		return s.syncRange(syncCtx, r, start)
	})
	select {
	case <-ctx.Done():
		s.log.WithField("range", r.String()).Info("caller left; fine sync continues in background")
		return domain.SyncResult{}, ctx.Err()
	case out := <-ch:
		if out.Err != nil {
			return domain.SyncResult{}, out.Err
		}
		return out.Val.(domain.SyncResult), nil
	}
}

func (s *Service) syncRange(ctx context.Context, r domain.DateRange, start time.Time) (res domain.SyncResult, err error) {
	log := s.log.WithField("range", r.String())
	log.Info("fine sync started")
	runID := s.startRun(ctx, KindFines, r)
	defer func() { s.finishRun(ctx, runID, res, err) }()

	res = domain.SyncResult{Erros: []domain.RowError{}, Periodo: r, Fonte: domain.FonteOracle}
	rows, err := s.oracle.Query(ctx, oracle.FinesByIssuanceRange(s.company, r))
	if err != nil {
		log.WithError(err).Error("fine sync source read failed")
		return res, fmt.Errorf("read fines %s: %w", r, err)
	}
	res.Total = len(rows)

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			log.WithError(err).WithField("written", res.Writes()).Error("fine sync interrupted")
			return res, fmt.Errorf("sync %s interrupted after %d rows: %w", r, i, err)
		}
		f, err := s.mapper.MapRow(row)
		if err != nil {
			res.Erros = append(res.Erros, rowError(row, "NUMEROAIMULTA", i, err))
			log.WithError(err).WithField("row", i).Warn("fine row rejected")
			continue
		}
		f.SyncedAt = s.clock.Now()
		inserted, err := s.fines.UpsertFine(ctx, f)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				log.WithError(ctxErr).WithField("written", res.Writes()).Error("fine sync interrupted")
				return res, fmt.Errorf("sync %s interrupted after %d rows: %w", r, i, ctxErr)
			}
			res.Erros = append(res.Erros, domain.RowError{Numero: f.NumeroAiMulta, Reason: err.Error()})
			log.WithError(err).WithField("numero", f.NumeroAiMulta).Warn("fine upsert failed")
			continue
		}
		if inserted {
			res.Novos++
		} else {
			res.Atualizados++
		}
	}

	res.TempoExecucaoMs = s.clock.Since(start).Milliseconds()
	log.WithFields(logrus.Fields{
		"total":       res.Total,
		"novos":       res.Novos,
		"atualizados": res.Atualizados,
		"erros":       len(res.Erros),
	}).Info("fine sync finished")
	return res, nil
}

func rowError(row map[string]any, key string, idx int, err error) domain.RowError {
	id := fmt.Sprintf("linha %d", idx+1)
	if v := legacy.ParseString(row[key]); v != nil {
		id = *v
	}
	return domain.RowError{Numero: id, Reason: err.Error()}
}

func (s *Service) startRun(ctx context.Context, kind string, r domain.DateRange) int64 {
	if s.runs == nil {
		return 0
	}
	id, err := s.runs.StartSyncRun(ctx, kind, r)
	if err != nil {
		s.log.WithError(err).Warn("could not record sync run start")
		return 0
	}
	return id
}

func (s *Service) finishRun(ctx context.Context, id int64, res domain.SyncResult, runErr error) {
	if s.runs == nil || id == 0 {
		return
	}
	// the run may have died with ctx; record it regardless
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), bookkeepingTimeout)
	defer cancel()
	if err := s.runs.FinishSyncRun(ctx, id, res, runErr); err != nil {
		s.log.WithError(err).WithField("run", id).Warn("could not record sync run finish")
	}
}

// ForceSync resyncs r regardless of freshness.
func (s *Service) ForceSync(ctx context.Context, r domain.DateRange) (domain.SyncResult, error) {
	return s.EnsureFresh(ctx, r, true)
}

// FindByNumber reads one fine from the cache, falling back to Oracle. It
// returns (nil, nil) when the fine exists in neither; Oracle failures are
// logged and also yield (nil, nil).
func (s *Service) FindByNumber(ctx context.Context, numero string) (*domain.Fine, error) {
	f, err := s.fines.GetFine(ctx, numero)
	if err == nil {
		return &f, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	log := s.log.WithField("numero", numero)
	rows, err := s.oracle.Query(ctx, oracle.FineByNumber(s.company, numero))
	if err != nil {
		log.WithError(err).Error("fine lookup in source failed")
		return nil, nil
	}
	if len(rows) == 0 {
		return nil, nil
	}
	f, err = s.mapper.MapRow(rows[0])
	if err != nil {
		log.WithError(err).Warn("fine row rejected")
		return nil, nil
	}
	f.SyncedAt = s.clock.Now()
	if _, err := s.fines.UpsertFine(ctx, f); err != nil {
		return nil, fmt.Errorf("store fine %s: %w", numero, err)
	}
	stored, err := s.fines.GetFine(ctx, f.NumeroAiMulta)
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// ImportFleet refreshes veiculos_frota from the source, row by row, and
// drops the in-memory fleet snapshot.
func (s *Service) ImportFleet(ctx context.Context, includeInactive bool) (res domain.SyncResult, err error) {
	start := s.clock.Now()
	log := s.log.WithField("inactive", includeInactive)
	log.Info("fleet import started")
	runID := s.startRun(ctx, KindFleet, domain.DateRange{})
	defer func() { s.finishRun(ctx, runID, res, err) }()

	res = domain.SyncResult{Erros: []domain.RowError{}, Fonte: domain.FonteOracle}
	rows, err := s.oracle.Query(ctx, oracle.FleetSnapshot(s.company, includeInactive))
	if err != nil {
		log.WithError(err).Error("fleet source read failed")
		return res, fmt.Errorf("read fleet: %w", err)
	}
	res.Total = len(rows)
	for i, row := range rows {
		v, err := s.mapper.MapVehicle(row)
		if err != nil {
			res.Erros = append(res.Erros, rowError(row, "PREFIXOVEICULO", i, err))
			log.WithError(err).WithField("row", i).Warn("vehicle row rejected")
			continue
		}
		v.SyncedAt = s.clock.Now()
		inserted, err := s.fleet.UpsertVehicle(ctx, v)
		if err != nil {
			res.Erros = append(res.Erros, domain.RowError{Numero: v.Prefixo, Reason: err.Error()})
			log.WithError(err).WithField("vehicle", v.Prefixo).Warn("vehicle upsert failed")
			continue
		}
		if inserted {
			res.Novos++
		} else {
			res.Atualizados++
		}
	}
	if s.snapshots != nil {
		s.snapshots.Invalidate()
	}
	res.TempoExecucaoMs = s.clock.Since(start).Milliseconds()
	log.WithFields(logrus.Fields{"total": res.Total, "novos": res.Novos, "atualizados": res.Atualizados}).Info("fleet import finished")
	return res, nil
}
