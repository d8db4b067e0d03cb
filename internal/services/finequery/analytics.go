package finequery

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"juridico/internal/domain"
)

const (
	topAgentes     = 15
	topLocais      = 15
	topCausasReais = 10
	mesesEvolucao  = 12
)

// tally accumulates buckets by key, remembering first-seen order for ties.
type tally struct {
	order   []string
	buckets map[string]*domain.Bucket
}

func newTally() *tally { return &tally{buckets: map[string]*domain.Bucket{}} }

func (t *tally) add(key, label string, valor decimal.Decimal) {
	b, ok := t.buckets[key]
	if !ok {
		b = &domain.Bucket{Chave: key, Rotulo: label}
		t.buckets[key] = b
		t.order = append(t.order, key)
	}
	b.Quantidade++
	b.Valor = b.Valor.Add(valor)
}

// ranked returns buckets by count descending, keeping first-seen order on
// ties, truncated to limit when limit > 0.
func (t *tally) ranked(limit int) []domain.Bucket {
	out := make([]domain.Bucket, 0, len(t.order))
	for _, k := range t.order {
		out = append(out, *t.buckets[k])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Quantidade > out[j].Quantidade })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// fixed returns the buckets for keys in the given order, zero-filled.
func (t *tally) fixed(keys []string, label func(string) string) []domain.Bucket {
	out := make([]domain.Bucket, 0, len(keys))
	for _, k := range keys {
		if b, ok := t.buckets[k]; ok {
			out = append(out, *b)
			continue
		}
		out = append(out, domain.Bucket{Chave: k, Rotulo: label(k)})
	}
	return out
}

// BuildAnalytics computes the opt-in distributions over the whole filtered
// set. Hours and months are taken in now's location.
func BuildAnalytics(fines []domain.EnrichedFine, now time.Time) *domain.Analytics {
	loc := now.Location()
	tipos, gravidades, areas, responsaveis := newTally(), newTally(), newTally(), newTally()
	horas, agentes, locais, causas := newTally(), newTally(), newTally(), newTally()
	meses := map[string]*domain.MonthlyPoint{}
	var hourCounts [24]int
	var stats domain.HourStats
	a := &domain.Analytics{}

	for _, f := range fines {
		v := f.ValorMulta
		tipos.add(string(f.TipoMulta), TipoLabel(f.TipoMulta), v)
		gravidades.add(string(f.Gravidade), f.GravidadeValor, v)

		area := "NAO_INFORMADO"
		if present(f.CodAreaCompetencia) {
			area = *f.CodAreaCompetencia
		}
		areas.add(area, AreaLabel(area), v)

		resp := "NAO_INFORMADO"
		if present(f.CodResponsavelNotificacao) {
			resp = *f.CodResponsavelNotificacao
		}
		responsaveis.add(resp, ResponsavelLabel(resp), v)

		if f.HorarioInfracao != nil {
			h := *f.HorarioInfracao
			horas.add(strconv.Itoa(h), PeriodOfDay(h), v)
			hourCounts[h]++
			switch PeriodOfDay(h) {
			case "Manhã":
				stats.Manha++
			case "Tarde":
				stats.Tarde++
			case "Noite":
				stats.Noite++
			default:
				stats.Madrugada++
			}
		}

		if present(f.AgenteCodigo) {
			nome := naoInformado
			if present(f.AgenteDescricao) {
				nome = *f.AgenteDescricao
			}
			agentes.add(*f.AgenteCodigo, nome, v)
		}

		local := "Local não informado"
		if present(f.LocalMulta) {
			local = *f.LocalMulta
		}
		locais.add(local, local, v)

		if present(f.ObservacaoRealMotivo) {
			motivo := strings.TrimSpace(*f.ObservacaoRealMotivo)
			causas.add(motivo, motivo, v)
		}

		if f.AlertaDefesa {
			a.AlertasDefesa++
		}

		mes := f.DataEmissaoMulta.In(loc).Format("2006-01")
		p, ok := meses[mes]
		if !ok {
			p = &domain.MonthlyPoint{Mes: mes}
			meses[mes] = p
		}
		p.Total++
		p.Valor = p.Valor.Add(v)
		if f.TipoMulta == domain.TipoSemob {
			p.Semob++
		} else {
			p.Transito++
		}
	}

	a.PorTipo = tipos.fixed([]string{string(domain.TipoTransito), string(domain.TipoSemob)}, func(k string) string {
		return TipoLabel(domain.TipoMulta(k))
	})
	a.PorGravidade = gravidades.fixed([]string{
		string(domain.GravidadeA), string(domain.GravidadeB), string(domain.GravidadeC), string(domain.GravidadeIndefinida),
	}, func(k string) string { return domain.Gravidade(k).Label() })
	a.PorArea = areas.ranked(0)
	a.PorResponsavel = responsaveis.ranked(0)
	a.PorHorario = horas.ranked(0)
	sort.SliceStable(a.PorHorario, func(i, j int) bool {
		if a.PorHorario[i].Quantidade != a.PorHorario[j].Quantidade {
			return a.PorHorario[i].Quantidade > a.PorHorario[j].Quantidade
		}
		hi, _ := strconv.Atoi(a.PorHorario[i].Chave)
		hj, _ := strconv.Atoi(a.PorHorario[j].Chave)
		return hi < hj
	})
	a.TopAgentes = agentes.ranked(topAgentes)
	a.TopLocais = locais.ranked(topLocais)
	a.TopCausasReais = causas.ranked(topCausasReais)
	a.EvolucaoMensal = monthlyTrend(meses)
	a.EstatisticasHorario = hourStats(hourCounts, stats)
	return a
}

func monthlyTrend(meses map[string]*domain.MonthlyPoint) []domain.MonthlyPoint {
	out := make([]domain.MonthlyPoint, 0, len(meses))
	for _, p := range meses {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Mes < out[j].Mes })
	if len(out) > mesesEvolucao {
		out = out[len(out)-mesesEvolucao:]
	}
	return out
}

// hourStats picks the busiest hour (earliest on ties) and the quietest hour
// that saw any fine (latest on ties).
func hourStats(counts [24]int, stats domain.HourStats) domain.HourStats {
	total := 0
	peak, trough := -1, -1
	for h, n := range counts {
		if n == 0 {
			continue
		}
		total += n
		if peak < 0 || n > counts[peak] {
			peak = h
		}
		if trough < 0 || n <= counts[trough] {
			trough = h
		}
	}
	if total == 0 {
		return stats
	}
	stats.HorarioPico = &peak
	stats.HorarioMenor = &trough
	stats.MediaPorHora = float64(total) / 24
	return stats
}
