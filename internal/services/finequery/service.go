// Package finequery answers fine searches over the cache: classification,
// summaries, analytics, grouping and the reports built on them.
package finequery

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"juridico/internal/domain"
	"juridico/internal/ports"
)

const dashboardAlertLimit = 10

type Service struct {
	fines  ports.FineStore
	syncer ports.Syncer
	runs   ports.SyncRunLog
	clock  clockwork.Clock
	loc    *time.Location
	log    logrus.FieldLogger
}

type Options struct {
	Fines    ports.FineStore
	Syncer   ports.Syncer
	Runs     ports.SyncRunLog
	Clock    clockwork.Clock
	Log      logrus.FieldLogger
	Location *time.Location
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
		fines:  o.Fines,
		syncer: o.Syncer,
		runs:   o.Runs,
		clock:  clock,
		loc:    loc,
		log:    o.Log.WithField("component", "finequery"),
	}
}

// Now is the service clock in the business location.
func (s *Service) Now() time.Time { return s.clock.Now().In(s.loc) }

// Normalize binds f to the service clock.
func (s *Service) Normalize(f domain.FineFilter) (domain.FineQuery, error) {
	return f.Normalize(s.Now())
}

// ensureFresh syncs the range when stale. Failures are logged and the cache
// is read as it is.
func (s *Service) ensureFresh(ctx context.Context, r domain.DateRange) *domain.SyncResult {
	res, err := s.syncer.EnsureFresh(ctx, r, false)
	if err != nil {
		s.log.WithError(err).WithField("range", r.String()).Warn("sync failed, serving cached data")
		return nil
	}
	return &res
}

// Search returns one page of enriched fines, or groups when GroupBy is set,
// together with a summary of the whole filtered set.
func (s *Service) Search(ctx context.Context, f domain.FineFilter) (domain.SearchResult, error) {
	q, err := s.Normalize(f)
	if err != nil {
		return domain.SearchResult{}, err
	}
	res := domain.SearchResult{Data: []domain.EnrichedFine{}}
	res.Sync = s.ensureFresh(ctx, q.Range)

	res.Summary, err = s.fines.SummarizeFines(ctx, q)
	if err != nil {
		return res, err
	}

	if q.GroupBy != "" {
		res.Groups, err = s.groups(ctx, q)
		if err != nil {
			return res, err
		}
		res.Pagination = domain.NewPagination(1, len(res.Groups), len(res.Groups))
	} else {
		page, total, err := s.fines.SearchFines(ctx, q)
		if err != nil {
			return res, err
		}
		res.Data = EnrichAll(page, q.Now)
		res.Pagination = domain.NewPagination(q.Page, q.Limit, total)
	}

	if q.IncludeAnalytics {
		res.Analytics, err = s.analytics(ctx, q)
		if err != nil {
			return res, err
		}
	}
	return res, nil
}

// ListAll returns the whole filtered set, enriched, from a single read.
// Paging, grouping and analytics fields of f are ignored.
func (s *Service) ListAll(ctx context.Context, f domain.FineFilter) ([]domain.EnrichedFine, error) {
	f.GroupBy = ""
	q, err := s.Normalize(f)
	if err != nil {
		return nil, err
	}
	s.ensureFresh(ctx, q.Range)
	all, err := s.fines.ListFines(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list fines: %w", err)
	}
	return EnrichAll(all, q.Now), nil
}

func (s *Service) analytics(ctx context.Context, q domain.FineQuery) (*domain.Analytics, error) {
	all, err := s.fines.ListFines(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("analytics: %w", err)
	}
	return BuildAnalytics(EnrichAll(all, q.Now), q.Now), nil
}

func (s *Service) groups(ctx context.Context, q domain.FineQuery) ([]domain.Group, error) {
	groups, err := s.fines.GroupFines(ctx, q, q.GroupBy)
	if err != nil {
		return nil, err
	}
	for i := range groups {
		groups[i].Rotulo = groupLabel(q.GroupBy, groups[i])
	}
	return groups, nil
}

func groupLabel(by domain.GroupDimension, g domain.Group) string {
	if g.Chave == "" {
		return naoInformado
	}
	switch by {
	case domain.GroupByArea:
		return AreaLabel(g.Chave)
	case domain.GroupByResponsavel:
		return ResponsavelLabel(g.Chave)
	case domain.GroupByGravidade:
		return domain.Gravidade(g.Chave).Label()
	case domain.GroupByTipo:
		return TipoLabel(domain.TipoMulta(g.Chave))
	case domain.GroupByHorario:
		h, err := strconv.Atoi(g.Chave)
		if err != nil {
			return g.Chave
		}
		return fmt.Sprintf("%02dh - %s", h, PeriodOfDay(h))
	case domain.GroupByMes, domain.GroupByVeiculo:
		return g.Chave
	case domain.GroupByAgente, domain.GroupByInfracao:
		if g.Rotulo != "" {
			return g.Rotulo
		}
		return g.Chave
	}
	return g.Chave
}

// FindByNumber returns the enriched fine, or nil when it exists nowhere.
func (s *Service) FindByNumber(ctx context.Context, numero string) (*domain.EnrichedFine, error) {
	f, err := s.syncer.FindByNumber(ctx, numero)
	if err != nil || f == nil {
		return nil, err
	}
	e := Enrich(*f, s.Now())
	return &e, nil
}

// ForceSync resyncs r from the source regardless of freshness.
func (s *Service) ForceSync(ctx context.Context, r domain.DateRange) (domain.SyncResult, error) {
	return s.syncer.EnsureFresh(ctx, r, true)
}

func (s *Service) CacheStats(ctx context.Context) (domain.CacheStats, error) {
	return s.fines.FineStats(ctx)
}

// Purge deletes fines issued more than days ago. Zero means the default
// retention.
func (s *Service) Purge(ctx context.Context, days int) (int64, error) {
	if days < 0 {
		return 0, fmt.Errorf("%w: dias must be positive", domain.ErrInvalidInput)
	}
	if days == 0 {
		days = domain.DefaultCacheRetention
	}
	cutoff := s.Now().AddDate(0, 0, -days)
	n, err := s.fines.PurgeFinesIssuedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	s.log.WithFields(logrus.Fields{"dias": days, "removidos": n}).Info("fine cache purged")
	return n, nil
}

// DefenseAlerts lists fines whose defense deadline is within the next seven
// days, most urgent first.
func (s *Service) DefenseAlerts(ctx context.Context) ([]domain.EnrichedFine, error) {
	now := s.Now()
	from, until := alertWindow(now)
	fines, err := s.fines.FinesWithDefenseDeadline(ctx, from, until)
	if err != nil {
		return nil, err
	}
	return EnrichAll(fines, now), nil
}

// Dashboard combines the filtered KPIs and analytics with the global
// defense alerts.
func (s *Service) Dashboard(ctx context.Context, f domain.FineFilter) (domain.Dashboard, error) {
	f.IncludeAnalytics = true
	f.GroupBy = ""
	f.Limit = 1
	res, err := s.Search(ctx, f)
	if err != nil {
		return domain.Dashboard{}, err
	}
	alerts, err := s.DefenseAlerts(ctx)
	if err != nil {
		return domain.Dashboard{}, err
	}
	d := domain.Dashboard{
		KPIs:      res.Summary,
		Analytics: res.Analytics,
		Alertas: domain.DashboardAlert{
			DefesaVencendo:         len(alerts),
			SemProcessoNotificacao: res.Summary.TotalMultas - res.Summary.ComProcessoNotificacao,
			SemObservacaoMotivo:    res.Summary.TotalMultas - res.Summary.ComObservacaoRealMotivo,
		},
		AlertasDetalhados: alerts,
	}
	if len(d.AlertasDetalhados) > dashboardAlertLimit {
		d.AlertasDetalhados = d.AlertasDetalhados[:dashboardAlertLimit]
	}
	return d, nil
}

// ComparePeriods reports both periods and the variation from a to b.
func (s *Service) ComparePeriods(ctx context.Context, a, b domain.DateRange) (domain.PeriodComparison, error) {
	var out domain.PeriodComparison
	var err error
	if out.Periodo1, err = s.periodReport(ctx, a); err != nil {
		return out, err
	}
	if out.Periodo2, err = s.periodReport(ctx, b); err != nil {
		return out, err
	}
	t1, t2 := out.Periodo1.Resumo.TotalMultas, out.Periodo2.Resumo.TotalMultas
	out.VariacaoTotal = t2 - t1
	out.VariacaoValor = out.Periodo2.Resumo.ValorTotal.Sub(out.Periodo1.Resumo.ValorTotal)
	if t1 > 0 {
		out.VariacaoPercentual = float64(t2-t1) / float64(t1) * 100
	}
	return out, nil
}

func (s *Service) periodReport(ctx context.Context, r domain.DateRange) (domain.PeriodReport, error) {
	start, end := r.Inicio, r.Fim
	res, err := s.Search(ctx, domain.FineFilter{DataInicio: &start, DataFim: &end, IncludeAnalytics: true, Limit: 1})
	if err != nil {
		return domain.PeriodReport{}, err
	}
	return domain.PeriodReport{Periodo: r, Resumo: res.Summary, Analytics: res.Analytics}, nil
}

// Validate lists data-quality findings for one fine.
func (s *Service) Validate(ctx context.Context, numero string) (domain.Validation, error) {
	f, err := s.FindByNumber(ctx, numero)
	if err != nil {
		return domain.Validation{}, err
	}
	if f == nil {
		return domain.Validation{
			Erros:     []string{"Multa não encontrada"},
			Warnings:  []string{},
			Sugestoes: []string{"Verifique o número da multa e tente novamente"},
		}, nil
	}
	v := domain.Validation{Erros: []string{}, Warnings: []string{}, Sugestoes: []string{}}
	if !present(f.PrefixoVeic) {
		v.Erros = append(v.Erros, "Prefixo do veículo não informado")
	}
	if f.DataEmissaoMulta.IsZero() {
		v.Erros = append(v.Erros, "Data de emissão não informada")
	}
	if !f.ValorMulta.IsPositive() {
		v.Erros = append(v.Erros, "Valor da multa inválido")
	}
	if !present(f.DescricaoInfra) {
		v.Erros = append(v.Erros, "Descrição da infração não informada")
	}
	if !f.TemProcessoNotificacao {
		v.Warnings = append(v.Warnings, "Número do processo de notificação não informado")
	}
	if !f.TemObservacaoRealMotivo {
		v.Warnings = append(v.Warnings, "Observação do real motivo não informada")
	}
	if !f.TemCodigoLinha {
		v.Warnings = append(v.Warnings, "Código da linha não informado")
	}
	if f.DataLimiteCondutor == nil {
		v.Warnings = append(v.Warnings, "Data limite para defesa não informada")
	}
	if f.TipoMulta == domain.TipoSemob && !present(f.AgenteCodigo) {
		v.Sugestoes = append(v.Sugestoes, "Para multas SEMOB, é recomendado informar o código do agente")
	}
	if f.AlertaDefesa {
		v.Sugestoes = append(v.Sugestoes, "Esta multa está próxima do prazo de defesa. Verificar urgência.")
	}
	v.Valido = len(v.Erros) == 0
	return v, nil
}

// SyncRuns lists recent sync attempts.
func (s *Service) SyncRuns(ctx context.Context, limit int) ([]domain.SyncRun, error) {
	runs, err := s.runs.RecentSyncRuns(ctx, limit)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].IniciadoEm.After(runs[j].IniciadoEm) })
	return runs, nil
}
