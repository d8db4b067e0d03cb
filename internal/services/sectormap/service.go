// Package sectormap attributes fines to depots, either by the sector the
// vehicle held on the issuance date or by the current fleet snapshot.
package sectormap

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"juridico/internal/domain"
	"juridico/internal/ports"
)

const (
	setorNaoIdentificado = "SETOR NÃO IDENTIFICADO"
	naoInformado         = "Não informado"
	topPorSetor          = 5
)

var semSetor = domain.Sector{Codigo: 0, Nome: "N/A"}

type Service struct {
	fines     ports.Fines
	history   ports.SectorHistory
	snapshots ports.FleetSnapshots
	log       logrus.FieldLogger
}

func New(fines ports.Fines, history ports.SectorHistory, snapshots ports.FleetSnapshots, log logrus.FieldLogger) *Service {
	return &Service{
		fines:     fines,
		history:   history,
		snapshots: snapshots,
		log:       log.WithField("component", "sectormap"),
	}
}

func prefixOf(f domain.EnrichedFine) string {
	if f.PrefixoVeic == nil {
		return ""
	}
	return strings.TrimSpace(*f.PrefixoVeic)
}

// WithHistoricalSector resolves, for each fine, the sector its vehicle held
// on the issuance date and the sector of its open interval. A failed lookup
// leaves that fine unmapped.
func (s *Service) WithHistoricalSector(ctx context.Context, fines []domain.EnrichedFine) []domain.HistoricalFine {
	histories := map[string][]domain.SectorInterval{}
	out := make([]domain.HistoricalFine, 0, len(fines))
	for _, f := range fines {
		hf := domain.HistoricalFine{EnrichedFine: f}
		prefix := prefixOf(f)
		if prefix == "" {
			out = append(out, hf)
			continue
		}
		h, ok := histories[prefix]
		if !ok {
			var err error
			h, err = s.history.History(ctx, prefix)
			if err != nil {
				s.log.WithError(err).WithFields(logrus.Fields{
					"multa":   f.NumeroAiMulta,
					"veiculo": prefix,
				}).Warn("sector lookup failed")
				out = append(out, hf)
				continue
			}
			histories[prefix] = h
		}
		if open := domain.OpenInterval(h); open != nil {
			cur := open.Sector
			hf.SetorAtual = &cur
		}
		if iv := domain.IntervalAt(h, f.DataEmissaoMulta); iv != nil {
			hf.SetorNaDataInfracao = &domain.SectorAtDate{
				Sector:       iv.Sector,
				DataInicio:   iv.DataInicio,
				DataFim:      iv.DataFim,
				PeriodoAtivo: iv.Open(),
			}
			hf.SetorEncontrado = true
			hf.SetorMudou = hf.SetorAtual != nil && hf.SetorAtual.Codigo != iv.Sector.Codigo
		}
		out = append(out, hf)
	}
	return out
}

// SearchWithHistoricalSector runs the fine search and attributes the page to
// historical sectors.
func (s *Service) SearchWithHistoricalSector(ctx context.Context, f domain.FineFilter) (domain.HistoricalSearchResult, error) {
	f.GroupBy = ""
	f.IncludeAnalytics = false
	res, err := s.fines.Search(ctx, f)
	if err != nil {
		return domain.HistoricalSearchResult{}, err
	}
	mapped := s.WithHistoricalSector(ctx, res.Data)
	return domain.HistoricalSearchResult{
		Data:                 mapped,
		Pagination:           res.Pagination,
		Resumo:               mappingSummary(mapped),
		EstatisticasPorSetor: sectorStats(mapped),
	}, nil
}

// ChangeImpactReport isolates fines whose vehicle has since changed sector
// and measures what they cost each sector.
func (s *Service) ChangeImpactReport(ctx context.Context, f domain.FineFilter) (domain.ImpactReport, error) {
	fines, err := s.fines.ListAll(ctx, f)
	if err != nil {
		return domain.ImpactReport{}, err
	}
	mapped := s.WithHistoricalSector(ctx, fines)

	changed := []domain.HistoricalFine{}
	for _, hf := range mapped {
		if hf.SetorMudou {
			changed = append(changed, hf)
		}
	}
	return domain.ImpactReport{
		MultasComMudanca:     changed,
		ResumoPorVeiculo:     vehicleSummaries(mapped),
		ImpactoFinanceiro:    financialImpact(changed),
		EstatisticasPorSetor: sectorStats(mapped),
	}, nil
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

func mean(total decimal.Decimal, n int) decimal.Decimal {
	if n == 0 {
		return decimal.Zero
	}
	return total.Div(decimal.NewFromInt(int64(n))).Round(2)
}

func mappingSummary(fines []domain.HistoricalFine) domain.MappingSummary {
	sum := domain.MappingSummary{TotalMultas: len(fines)}
	for _, hf := range fines {
		if hf.SetorEncontrado {
			sum.MultasComSetor++
		} else {
			sum.MultasSemSetor++
		}
		if hf.SetorMudou {
			sum.MultasComMudancaSetor++
		}
	}
	sum.PercentualMapeamento = percent(sum.MultasComSetor, sum.TotalMultas)
	sum.PercentualMudancas = percent(sum.MultasComMudancaSetor, sum.TotalMultas)
	return sum
}

// sectorStats groups mapped fines by their issuance-date sector, busiest
// first.
func sectorStats(fines []domain.HistoricalFine) []domain.SectorFineStats {
	index := map[int]int{}
	out := []domain.SectorFineStats{}
	for _, hf := range fines {
		if !hf.SetorEncontrado {
			continue
		}
		sec := hf.SetorNaDataInfracao.Sector
		i, ok := index[sec.Codigo]
		if !ok {
			i = len(out)
			index[sec.Codigo] = i
			out = append(out, domain.SectorFineStats{Setor: sec})
		}
		out[i].TotalMultas++
		out[i].ValorTotal = out[i].ValorTotal.Add(hf.ValorMulta)
		if hf.SetorMudou {
			out[i].MultasComMudanca++
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].TotalMultas > out[b].TotalMultas })
	return out
}

// vehicleSummaries covers the vehicles with at least one fine issued under a
// sector they no longer hold, in first-seen order.
func vehicleSummaries(fines []domain.HistoricalFine) []domain.VehicleChangeSummary {
	type acc struct {
		summary domain.VehicleChangeSummary
		sectors map[int]int
	}
	byVehicle := map[string]*acc{}
	var order []string
	for _, hf := range fines {
		prefix := prefixOf(hf.EnrichedFine)
		if prefix == "" {
			continue
		}
		a, ok := byVehicle[prefix]
		if !ok {
			a = &acc{
				summary: domain.VehicleChangeSummary{PrefixoVeiculo: prefix, SetoresEnvolvidos: []domain.SectorCount{}},
				sectors: map[int]int{},
			}
			byVehicle[prefix] = a
			order = append(order, prefix)
		}
		a.summary.TotalMultas++
		if !hf.SetorMudou {
			continue
		}
		a.summary.MultasComMudanca++
		sec := hf.SetorNaDataInfracao.Sector
		i, ok := a.sectors[sec.Codigo]
		if !ok {
			i = len(a.summary.SetoresEnvolvidos)
			a.sectors[sec.Codigo] = i
			a.summary.SetoresEnvolvidos = append(a.summary.SetoresEnvolvidos, domain.SectorCount{Sector: sec})
		}
		a.summary.SetoresEnvolvidos[i].Quantidade++
	}
	out := []domain.VehicleChangeSummary{}
	for _, p := range order {
		if a := byVehicle[p]; a.summary.MultasComMudanca > 0 {
			out = append(out, a.summary)
		}
	}
	return out
}

func financialImpact(changed []domain.HistoricalFine) domain.FinancialImpact {
	var fi domain.FinancialImpact
	bySector := map[int]*domain.SectorAmount{}
	var order []int
	for _, hf := range changed {
		fi.ValorTotalMultasComMudanca = fi.ValorTotalMultasComMudanca.Add(hf.ValorMulta)
		sec := hf.SetorNaDataInfracao.Sector
		a, ok := bySector[sec.Codigo]
		if !ok {
			a = &domain.SectorAmount{Sector: sec}
			bySector[sec.Codigo] = a
			order = append(order, sec.Codigo)
		}
		a.Valor = a.Valor.Add(hf.ValorMulta)
	}
	fi.ValorMedioPorMudanca = mean(fi.ValorTotalMultasComMudanca, len(changed))
	fi.SetorMaisAfetado = domain.SectorAmount{Sector: semSetor}
	for i, code := range order {
		if a := bySector[code]; i == 0 || a.Valor.GreaterThan(fi.SetorMaisAfetado.Valor) {
			fi.SetorMaisAfetado = *a
		}
	}
	return fi
}

// WithCurrentSector attributes fines to the depot their vehicle holds in the
// current fleet snapshot.
func (s *Service) WithCurrentSector(ctx context.Context, fines []domain.EnrichedFine) ([]domain.CurrentSectorFine, error) {
	snap, err := s.snapshots.GetSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("fleet snapshot: %w", err)
	}
	out := make([]domain.CurrentSectorFine, 0, len(fines))
	for _, f := range fines {
		cf := domain.CurrentSectorFine{EnrichedFine: f, Setor: domain.Sector{Nome: setorNaoIdentificado}}
		if v, ok := snap.Lookup(prefixOf(f)); ok {
			cf.Setor = v.Sector
			cf.SituacaoVeiculo = v.Situacao
			cf.TipoFrota = v.TipoFrota
			cf.SetorEncontrado = true
		}
		out = append(out, cf)
	}
	return out, nil
}

// SearchWithCurrentSector runs the fine search and attributes the page to
// the depots vehicles hold today.
func (s *Service) SearchWithCurrentSector(ctx context.Context, f domain.FineFilter) (domain.CurrentSearchResult, error) {
	f.GroupBy = ""
	f.IncludeAnalytics = false
	res, err := s.fines.Search(ctx, f)
	if err != nil {
		return domain.CurrentSearchResult{}, err
	}
	mapped, err := s.WithCurrentSector(ctx, res.Data)
	if err != nil {
		return domain.CurrentSearchResult{}, err
	}
	return domain.CurrentSearchResult{Data: mapped, Pagination: res.Pagination}, nil
}

// CompareSectors profiles and ranks depots by the fines attributed to them
// through the current fleet snapshot.
func (s *Service) CompareSectors(ctx context.Context, f domain.FineFilter) (domain.SectorComparison, error) {
	fines, err := s.fines.ListAll(ctx, f)
	if err != nil {
		return domain.SectorComparison{}, err
	}
	attributed, err := s.WithCurrentSector(ctx, fines)
	if err != nil {
		return domain.SectorComparison{}, err
	}

	type acc struct {
		profile   domain.SectorProfile
		veiculos  *counter
		infracoes *counter
	}
	index := map[int]*acc{}
	var order []int
	cmp := domain.SectorComparison{Comparacao: []domain.SectorProfile{}}
	for _, cf := range attributed {
		if !cf.SetorEncontrado {
			cmp.MultasSemSetor++
			continue
		}
		cmp.MultasMapeadas++
		a, ok := index[cf.Setor.Codigo]
		if !ok {
			a = &acc{
				profile: domain.SectorProfile{
					Setor: cf.Setor,
					PorGravidade: map[string]int{
						string(domain.GravidadeA):          0,
						string(domain.GravidadeB):          0,
						string(domain.GravidadeC):          0,
						string(domain.GravidadeIndefinida): 0,
					},
				},
				veiculos:  newCounter(),
				infracoes: newCounter(),
			}
			index[cf.Setor.Codigo] = a
			order = append(order, cf.Setor.Codigo)
		}
		p := &a.profile
		p.TotalMultas++
		p.ValorTotal = p.ValorTotal.Add(cf.ValorMulta)
		p.PorGravidade[string(cf.Gravidade)]++
		a.veiculos.add(prefixOf(cf.EnrichedFine), cf.ValorMulta)
		infracao := naoInformado
		if cf.DescricaoInfra != nil && *cf.DescricaoInfra != "" {
			infracao = *cf.DescricaoInfra
		}
		a.infracoes.add(infracao, cf.ValorMulta)
	}

	for _, code := range order {
		a := index[code]
		a.profile.ValorMedio = mean(a.profile.ValorTotal, a.profile.TotalMultas)
		a.profile.TopVeiculos = a.veiculos.top(topPorSetor)
		a.profile.TopInfracoes = a.infracoes.top(topPorSetor)
		cmp.Comparacao = append(cmp.Comparacao, a.profile)
	}
	sort.SliceStable(cmp.Comparacao, func(i, j int) bool {
		return cmp.Comparacao[i].TotalMultas > cmp.Comparacao[j].TotalMultas
	})
	for i := range cmp.Comparacao {
		cmp.Comparacao[i].Ranking = i + 1
	}

	cmp.SetorComMaisMultas = leader(cmp.Comparacao, func(a, b domain.SectorProfile) bool { return a.TotalMultas > b.TotalMultas })
	cmp.SetorComMaiorValor = leader(cmp.Comparacao, func(a, b domain.SectorProfile) bool { return a.ValorTotal.GreaterThan(b.ValorTotal) })
	cmp.SetorComMaiorMedia = leader(cmp.Comparacao, func(a, b domain.SectorProfile) bool { return a.ValorMedio.GreaterThan(b.ValorMedio) })
	return cmp, nil
}

// leader returns the first profile no other profile beats.
func leader(profiles []domain.SectorProfile, beats func(a, b domain.SectorProfile) bool) domain.SectorLeader {
	if len(profiles) == 0 {
		return domain.SectorLeader{Sector: semSetor}
	}
	best := profiles[0]
	for _, p := range profiles[1:] {
		if beats(p, best) {
			best = p
		}
	}
	return domain.SectorLeader{Sector: best.Setor, Total: best.TotalMultas, Valor: best.ValorTotal, Media: best.ValorMedio}
}

// counter ranks keys by fine count, first-seen order on ties.
type counter struct {
	order []string
	items map[string]*domain.RankedItem
}

func newCounter() *counter { return &counter{items: map[string]*domain.RankedItem{}} }

func (c *counter) add(key string, valor decimal.Decimal) {
	it, ok := c.items[key]
	if !ok {
		it = &domain.RankedItem{Chave: key}
		c.items[key] = it
		c.order = append(c.order, key)
	}
	it.TotalMultas++
	it.ValorTotal = it.ValorTotal.Add(valor)
}

func (c *counter) top(n int) []domain.RankedItem {
	out := make([]domain.RankedItem, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, *c.items[k])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TotalMultas > out[j].TotalMultas })
	if len(out) > n {
		out = out[:n]
	}
	return out
}
