package finequery

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"juridico/internal/domain"
)

var (
	valorA = decimal.NewFromInt(domain.ValorGravidadeA)
	valorB = decimal.NewFromInt(domain.ValorGravidadeB)
	valorC = decimal.NewFromInt(domain.ValorGravidadeC)
)

var areaLabels = map[string]string{
	"1": "ADMINISTRAÇÃO",
	"2": "MANUTENÇÃO",
	"3": "OPERAÇÃO",
	"4": "CANCELAMENTO",
	"5": "PORTARIA",
	"6": "ELETRICISTA",
	"7": "PCQC/PORTARIA",
}

var responsavelLabels = map[string]string{
	"1": "OPERAÇÃO",
	"2": "MANUTENÇÃO",
	"3": "ADMINISTRAÇÃO",
	"4": "PORTARIA",
	"5": "ELETRICISTA",
	"6": "PCQC/PORTARIA",
}

const naoInformado = "NÃO INFORMADO"

// AreaLabel names an area-of-competence code.
func AreaLabel(code string) string {
	if l, ok := areaLabels[code]; ok {
		return l
	}
	return naoInformado
}

// ResponsavelLabel names a notification-responsible code.
func ResponsavelLabel(code string) string {
	if l, ok := responsavelLabels[code]; ok {
		return l
	}
	return naoInformado
}

// TipoLabel is the display name of a fine type.
func TipoLabel(t domain.TipoMulta) string {
	switch t {
	case domain.TipoTransito:
		return "TRÂNSITO"
	case domain.TipoSemob:
		return "SEMOB"
	}
	return string(t)
}

// PeriodOfDay names the part of day an hour falls in.
func PeriodOfDay(hour int) string {
	switch {
	case hour >= 6 && hour < 12:
		return "Manhã"
	case hour >= 12 && hour < 18:
		return "Tarde"
	case hour >= 18 && hour < 24:
		return "Noite"
	}
	return "Madrugada"
}

func ClassifyTipo(codigoOrg *string) domain.TipoMulta {
	if codigoOrg != nil && *codigoOrg == domain.SemobOrgCode {
		return domain.TipoSemob
	}
	return domain.TipoTransito
}

// ClassifyGravidade matches the exact amount against the tier schedule.
func ClassifyGravidade(valor decimal.Decimal) domain.Gravidade {
	switch {
	case valor.Equal(valorA):
		return domain.GravidadeA
	case valor.Equal(valorB):
		return domain.GravidadeB
	case valor.Equal(valorC):
		return domain.GravidadeC
	}
	return domain.GravidadeIndefinida
}

func ClassifyResponsavel(r *string) domain.TipoResponsavel {
	if r == nil {
		return domain.ResponsavelIndefinido
	}
	switch *r {
	case "F":
		return domain.ResponsavelFuncionario
	case "E":
		return domain.ResponsavelEmpresa
	}
	return domain.ResponsavelIndefinido
}

// ClassifyStatus applies the first matching rule: paid, under appeal,
// overdue, pending.
func ClassifyStatus(f domain.Fine, now time.Time) domain.StatusMulta {
	if f.DataPagtoMulta != nil || f.ValorPago.IsPositive() {
		return domain.StatusPaga
	}
	for _, a := range f.Recursos {
		if a.Numero != nil {
			return domain.StatusRecurso
		}
	}
	if f.DataVectoMulta != nil && f.DataVectoMulta.Before(now) {
		return domain.StatusVencida
	}
	return domain.StatusPendente
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// alertWindow is [today, today+8d): deadlines from today through the
// seventh day ahead.
func alertWindow(now time.Time) (time.Time, time.Time) {
	today := startOfDay(now)
	return today, today.AddDate(0, 0, domain.DefenseAlertWindowDays+1)
}

// DefenseAlert reports whether deadline falls between today and seven days
// from today, both days included.
func DefenseAlert(deadline *time.Time, now time.Time) bool {
	if deadline == nil {
		return false
	}
	from, until := alertWindow(now)
	return !deadline.Before(from) && deadline.Before(until)
}

// DaysToDefense rounds the time left until deadline up to whole days.
func DaysToDefense(deadline *time.Time, now time.Time) *int {
	if deadline == nil {
		return nil
	}
	d := int(math.Ceil(deadline.Sub(now).Hours() / 24))
	return &d
}

func present(s *string) bool { return s != nil && *s != "" }

// Enrich derives the read-time classification of f. now must carry the
// business location.
func Enrich(f domain.Fine, now time.Time) domain.EnrichedFine {
	g := ClassifyGravidade(f.ValorMulta)
	e := domain.EnrichedFine{
		Fine:                    f,
		TipoMulta:               ClassifyTipo(f.CodigoOrg),
		TipoResponsavel:         ClassifyResponsavel(f.ResponsavelMulta),
		Gravidade:               g,
		GravidadeValor:          g.Label(),
		AlertaDefesa:            DefenseAlert(f.DataLimiteCondutor, now),
		TemProcessoNotificacao:  present(f.NProcessoNotificacao),
		TemObservacaoRealMotivo: present(f.ObservacaoRealMotivo),
		TemCodigoLinha:          present(f.CodIntLinha),
		StatusMulta:             ClassifyStatus(f, now),
		DiasParaDefesa:          DaysToDefense(f.DataLimiteCondutor, now),
	}
	e.AreaCompetenciaDesc = naoInformado
	if f.CodAreaCompetencia != nil {
		e.AreaCompetenciaDesc = AreaLabel(*f.CodAreaCompetencia)
	}
	e.ResponsavelNotificacaoDesc = naoInformado
	if f.CodResponsavelNotificacao != nil {
		e.ResponsavelNotificacaoDesc = ResponsavelLabel(*f.CodResponsavelNotificacao)
	}
	if f.DataHoraMulta != nil {
		h := f.DataHoraMulta.In(now.Location()).Hour()
		e.HorarioInfracao = &h
	}
	return e
}

// EnrichAll enriches fines in order; a nil input yields an empty slice.
func EnrichAll(fines []domain.Fine, now time.Time) []domain.EnrichedFine {
	out := make([]domain.EnrichedFine, 0, len(fines))
	for _, f := range fines {
		out = append(out, Enrich(f, now))
	}
	return out
}
