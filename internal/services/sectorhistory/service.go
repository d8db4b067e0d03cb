// Package sectorhistory maintains the per-vehicle sector ledger and answers
// point-in-time sector lookups.
package sectorhistory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"juridico/internal/domain"
	"juridico/internal/ports"
)

type Options struct {
	Ledger   ports.SectorLedger
	Fleet    ports.FleetStore
	Clock    clockwork.Clock
	Log      logrus.FieldLogger
	Location *time.Location
}

type Service struct {
	ledger ports.SectorLedger
	fleet  ports.FleetStore
	clock  clockwork.Clock
	loc    *time.Location
	log    logrus.FieldLogger
}

func New(o Options) *Service {
	loc := o.Location
	if loc == nil {
		loc = time.Local
	}
	clock := o.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{
		ledger: o.Ledger,
		fleet:  o.Fleet,
		clock:  clock,
		loc:    loc,
		log:    o.Log.WithField("component", "sectorhistory"),
	}
}

func (s *Service) now() time.Time { return s.clock.Now().In(s.loc) }

func vehicleID(v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", fmt.Errorf("%w: vehicle prefix is required", domain.ErrInvalidInput)
	}
	return v, nil
}

// SectorAsOf returns the interval covering at, or nil when the vehicle had no
// recorded sector then.
func (s *Service) SectorAsOf(ctx context.Context, vehicle string, at time.Time) (*domain.SectorInterval, error) {
	v, err := vehicleID(vehicle)
	if err != nil {
		return nil, err
	}
	return s.ledger.IntervalAt(ctx, v, at)
}

// Current returns the open interval, or nil.
func (s *Service) Current(ctx context.Context, vehicle string) (*domain.SectorInterval, error) {
	v, err := vehicleID(vehicle)
	if err != nil {
		return nil, err
	}
	return s.ledger.OpenInterval(ctx, v)
}

// History lists every interval of the vehicle, oldest first.
func (s *Service) History(ctx context.Context, vehicle string) ([]domain.SectorInterval, error) {
	v, err := vehicleID(vehicle)
	if err != nil {
		return nil, err
	}
	h, err := s.ledger.VehicleHistory(ctx, v)
	if err != nil {
		return nil, err
	}
	if h == nil {
		h = []domain.SectorInterval{}
	}
	return h, nil
}

// VehiclesInSectorDuring lists the vehicles that held sector at any point in
// [from, to].
func (s *Service) VehiclesInSectorDuring(ctx context.Context, sector int, from, to time.Time) ([]string, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("%w: %s after %s", domain.ErrInvalidRange, from.Format(time.DateOnly), to.Format(time.DateOnly))
	}
	return s.ledger.VehiclesInSector(ctx, sector, from, to)
}

// RegisterChange closes the vehicle's open interval at ch.DataMudanca and
// opens one for ch.Para.
func (s *Service) RegisterChange(ctx context.Context, ch domain.SectorChange) (domain.SectorInterval, error) {
	v, err := vehicleID(ch.VehicleID)
	if err != nil {
		return domain.SectorInterval{}, err
	}
	ch.VehicleID = v
	if ch.Para.Codigo == 0 {
		return domain.SectorInterval{}, fmt.Errorf("%w: target sector is required", domain.ErrInvalidInput)
	}
	if ch.Para.Nome == "" {
		if g, ok := domain.LookupGaragem(ch.Para.Codigo); ok {
			ch.Para.Nome = g.Nome
		}
	}
	if ch.CodigoEmpresa == 0 {
		ch.CodigoEmpresa = domain.DefaultCodigoEmpresa
	}
	if ch.Motivo == "" {
		ch.Motivo = domain.MotivoTransferencia
	}
	if ch.Usuario == "" {
		ch.Usuario = domain.UsuarioSistema
	}
	if ch.De.Codigo == 0 {
		open, err := s.ledger.OpenInterval(ctx, v)
		if err != nil {
			return domain.SectorInterval{}, err
		}
		if open != nil {
			ch.De = open.Sector
		}
	}
	if ch.Observacoes == "" && ch.De.Nome != "" {
		ch.Observacoes = fmt.Sprintf("Transferido de %s para %s", ch.De.Nome, ch.Para.Nome)
	}

	iv, err := s.ledger.ApplyChange(ctx, ch)
	if err != nil {
		return domain.SectorInterval{}, err
	}
	s.log.WithFields(logrus.Fields{
		"veiculo": v,
		"de":      ch.De.Codigo,
		"para":    ch.Para.Codigo,
		"motivo":  ch.Motivo,
	}).Info("sector change registered")
	return iv, nil
}

// InitializeFromFleet opens an interval for every active vehicle that has
// none. Running it again creates nothing.
func (s *Service) InitializeFromFleet(ctx context.Context) (domain.InitResult, error) {
	vehicles, err := s.fleet.ActiveVehicles(ctx)
	if err != nil {
		return domain.InitResult{}, fmt.Errorf("load fleet: %w", err)
	}
	res := domain.InitResult{Erros: []domain.RowError{}}
	now := s.now()
	for _, v := range vehicles {
		start := now
		if v.DataInicioUtilizacao != nil {
			start = *v.DataInicioUtilizacao
		}
		created, err := s.ledger.InsertOpenIntervalIfAbsent(ctx, domain.SectorInterval{
			VehicleID:     v.Prefixo,
			CodigoEmpresa: v.CodigoEmpresa,
			Sector:        v.Sector,
			DataInicio:    start,
			Motivo:        domain.MotivoInicializacao,
			Observacoes:   "Registro inicial criado automaticamente",
			Usuario:       domain.UsuarioSistema,
		})
		if err != nil {
			s.log.WithError(err).WithField("veiculo", v.Prefixo).Warn("initialize vehicle history")
			res.Erros = append(res.Erros, domain.RowError{Numero: v.Prefixo, Reason: err.Error()})
			continue
		}
		res.Processados++
		if created {
			res.NovosRegistros++
		}
	}
	s.log.WithFields(logrus.Fields{
		"processados": res.Processados,
		"novos":       res.NovosRegistros,
		"erros":       len(res.Erros),
	}).Info("sector history initialized")
	return res, nil
}

// DetectDrift records a change for every active vehicle whose fleet sector
// differs from its open interval. Vehicles without history are skipped.
// The fleet is read from the store, never from the cached snapshot, since
// every change it records is dated now.
func (s *Service) DetectDrift(ctx context.Context) (domain.DriftResult, error) {
	vehicles, err := s.fleet.ActiveVehicles(ctx)
	if err != nil {
		return domain.DriftResult{}, fmt.Errorf("load fleet: %w", err)
	}
	res := domain.DriftResult{Erros: []domain.RowError{}}
	now := s.now()
	for _, v := range vehicles {
		log := s.log.WithField("veiculo", v.Prefixo)
		open, err := s.ledger.OpenInterval(ctx, v.Prefixo)
		if err != nil {
			log.WithError(err).Warn("load open interval")
			res.Erros = append(res.Erros, domain.RowError{Numero: v.Prefixo, Reason: err.Error()})
			continue
		}
		res.Verificados++
		if open == nil || open.Sector.Codigo == v.Sector.Codigo {
			continue
		}
		res.MudancasDetectadas++
		_, err = s.RegisterChange(ctx, domain.SectorChange{
			VehicleID:     v.Prefixo,
			CodigoEmpresa: v.CodigoEmpresa,
			De:            open.Sector,
			Para:          v.Sector,
			DataMudanca:   now,
			Motivo:        domain.MotivoSyncAutomatica,
			Observacoes:   "Mudança detectada durante sincronização",
			Usuario:       domain.UsuarioSistema,
		})
		if err != nil {
			log.WithError(err).Warn("register detected change")
			res.Erros = append(res.Erros, domain.RowError{Numero: v.Prefixo, Reason: err.Error()})
			continue
		}
		res.MudancasRegistradas++
	}
	s.log.WithFields(logrus.Fields{
		"verificados": res.Verificados,
		"detectadas":  res.MudancasDetectadas,
		"registradas": res.MudancasRegistradas,
	}).Info("sector drift checked")
	return res, nil
}

// Purge deletes intervals that ended more than days ago, keeping the
// initialization rows. Zero means the default retention.
func (s *Service) Purge(ctx context.Context, days int) (int64, error) {
	if days < 0 {
		return 0, fmt.Errorf("%w: dias must be positive", domain.ErrInvalidInput)
	}
	if days == 0 {
		days = domain.DefaultHistoryRetention
	}
	n, err := s.ledger.PurgeClosedIntervals(ctx, s.now().AddDate(0, 0, -days), domain.MotivoInicializacao)
	if err != nil {
		return 0, err
	}
	s.log.WithFields(logrus.Fields{"dias": days, "removidos": n}).Info("sector history purged")
	return n, nil
}

func (s *Service) Stats(ctx context.Context) (domain.HistoryStats, error) {
	total, active, err := s.fleet.CountVehicles(ctx)
	if err != nil {
		return domain.HistoryStats{}, err
	}
	ls, err := s.ledger.LedgerStats(ctx)
	if err != nil {
		return domain.HistoryStats{}, err
	}
	return domain.HistoryStats{
		TotalVeiculos:        total,
		VeiculosAtivos:       active,
		VeiculosComHistorico: ls.VeiculosComHistorico,
		TotalRegistros:       ls.TotalRegistros,
		TotalMudancas:        ls.TotalMudancas,
		PorMotivo:            ls.PorMotivo,
	}, nil
}
