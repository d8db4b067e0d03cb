package finequery

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"juridico/internal/domain"
)

func TestClassifyTipo(t *testing.T) {
	assert.Equal(t, domain.TipoTransito, ClassifyTipo(nil))
	assert.Equal(t, domain.TipoTransito, ClassifyTipo(str("15")))
	assert.Equal(t, domain.TipoSemob, ClassifyTipo(str("16")))
}

func TestClassifyGravidade(t *testing.T) {
	tests := []struct {
		valor string
		want  domain.Gravidade
	}{
		{"495", domain.GravidadeA},
		{"495.00", domain.GravidadeA},
		{"990", domain.GravidadeB},
		{"1980", domain.GravidadeC},
		{"495.01", domain.GravidadeIndefinida},
		{"0", domain.GravidadeIndefinida},
		{"130.16", domain.GravidadeIndefinida},
	}
	for _, tt := range tests {
		t.Run(tt.valor, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyGravidade(decimal.RequireFromString(tt.valor)))
		})
	}
}

func TestClassifyResponsavel(t *testing.T) {
	assert.Equal(t, domain.ResponsavelFuncionario, ClassifyResponsavel(str("F")))
	assert.Equal(t, domain.ResponsavelEmpresa, ClassifyResponsavel(str("E")))
	assert.Equal(t, domain.ResponsavelIndefinido, ClassifyResponsavel(str("X")))
	assert.Equal(t, domain.ResponsavelIndefinido, ClassifyResponsavel(nil))
}

func TestClassifyStatus(t *testing.T) {
	now := at(2024, 3, 10, 12)
	past := now.AddDate(0, 0, -1)
	future := now.AddDate(0, 0, 1)

	tests := []struct {
		name string
		fine domain.Fine
		want domain.StatusMulta
	}{
		{"pending", domain.Fine{DataVectoMulta: &future}, domain.StatusPendente},
		{"no due date", domain.Fine{}, domain.StatusPendente},
		{"overdue", domain.Fine{DataVectoMulta: &past}, domain.StatusVencida},
		{"appeal beats overdue", domain.Fine{
			DataVectoMulta: &past,
			Recursos:       [3]domain.Appeal{{}, {Numero: str("R-2")}},
		}, domain.StatusRecurso},
		{"paid by date beats appeal", domain.Fine{
			DataPagtoMulta: &past,
			Recursos:       [3]domain.Appeal{{Numero: str("R-1")}},
		}, domain.StatusPaga},
		{"paid by amount", domain.Fine{ValorPago: decimal.NewFromInt(10), DataVectoMulta: &past}, domain.StatusPaga},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyStatus(tt.fine, now))
		})
	}
}

func TestDefenseAlert(t *testing.T) {
	now := at(2024, 3, 10, 15)
	day := func(offset, hour int) *time.Time {
		d := time.Date(2024, 3, 10+offset, hour, 0, 0, 0, time.UTC)
		return &d
	}

	tests := []struct {
		name     string
		deadline *time.Time
		want     bool
	}{
		{"none", nil, false},
		{"earlier today", day(0, 0), true},
		{"yesterday", day(-1, 23), false},
		{"seventh day late", day(7, 23), true},
		{"eighth day", day(8, 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DefenseAlert(tt.deadline, now))
		})
	}
}

func TestDaysToDefense(t *testing.T) {
	now := at(2024, 3, 10, 12)
	assert.Nil(t, DaysToDefense(nil, now))

	in25h := now.Add(25 * time.Hour)
	require.NotNil(t, DaysToDefense(&in25h, now))
	assert.Equal(t, 2, *DaysToDefense(&in25h, now))

	in48h := now.Add(48 * time.Hour)
	assert.Equal(t, 2, *DaysToDefense(&in48h, now))

	ago3d := now.Add(-72 * time.Hour)
	assert.Equal(t, -3, *DaysToDefense(&ago3d, now))
}

func TestPeriodOfDay(t *testing.T) {
	for h, want := range map[int]string{
		0: "Madrugada", 5: "Madrugada", 6: "Manhã", 11: "Manhã",
		12: "Tarde", 17: "Tarde", 18: "Noite", 23: "Noite",
	} {
		assert.Equal(t, want, PeriodOfDay(h), "hour %d", h)
	}
}

func TestLabels(t *testing.T) {
	assert.Equal(t, "CANCELAMENTO", AreaLabel("4"))
	assert.Equal(t, "NÃO INFORMADO", AreaLabel("9"))
	assert.Equal(t, "OPERAÇÃO", ResponsavelLabel("1"))
	assert.Equal(t, "NÃO INFORMADO", ResponsavelLabel("7"))
	assert.Equal(t, "TRÂNSITO", TipoLabel(domain.TipoTransito))
}

func TestEnrich(t *testing.T) {
	now := at(2024, 3, 10, 12)

	t.Run("light traffic fine", func(t *testing.T) {
		f := fine("AI-1", at(2024, 3, 1, 0), 495)
		e := Enrich(f, now)
		assert.Equal(t, domain.TipoTransito, e.TipoMulta)
		assert.Equal(t, domain.GravidadeA, e.Gravidade)
		assert.Equal(t, "A - LEVE", e.GravidadeValor)
		assert.Equal(t, "NÃO INFORMADO", e.AreaCompetenciaDesc)
		assert.Equal(t, "NÃO INFORMADO", e.ResponsavelNotificacaoDesc)
		assert.Nil(t, e.HorarioInfracao)
		assert.Nil(t, e.DiasParaDefesa)
		assert.False(t, e.AlertaDefesa)
		assert.False(t, e.TemProcessoNotificacao)
		assert.Equal(t, domain.StatusPendente, e.StatusMulta)
	})

	t.Run("semob fine with flags", func(t *testing.T) {
		f := fine("AI-2", at(2024, 3, 1, 0), 990)
		f.CodigoOrg = str("16")
		f.CodAreaCompetencia = str("3")
		f.CodResponsavelNotificacao = str("2")
		f.NProcessoNotificacao = str("P-1")
		f.ObservacaoRealMotivo = str("motorista")
		f.CodIntLinha = str("0.110")
		deadline := now.AddDate(0, 0, 3)
		f.DataLimiteCondutor = &deadline

		e := Enrich(f, now)
		assert.Equal(t, domain.TipoSemob, e.TipoMulta)
		assert.Equal(t, "B - MÉDIA", e.GravidadeValor)
		assert.Equal(t, "OPERAÇÃO", e.AreaCompetenciaDesc)
		assert.Equal(t, "MANUTENÇÃO", e.ResponsavelNotificacaoDesc)
		assert.True(t, e.TemProcessoNotificacao)
		assert.True(t, e.TemObservacaoRealMotivo)
		assert.True(t, e.TemCodigoLinha)
		assert.True(t, e.AlertaDefesa)
		require.NotNil(t, e.DiasParaDefesa)
		assert.Equal(t, 3, *e.DiasParaDefesa)
	})

	t.Run("hour in business location", func(t *testing.T) {
		brt := time.FixedZone("BRT", -3*3600)
		f := fine("AI-3", at(2024, 3, 1, 0), 100)
		h := at(2024, 3, 1, 13)
		f.DataHoraMulta = &h
		e := Enrich(f, now.In(brt))
		require.NotNil(t, e.HorarioInfracao)
		assert.Equal(t, 10, *e.HorarioInfracao)
	})
}

func TestEnrichAllNil(t *testing.T) {
	out := EnrichAll(nil, at(2024, 1, 1, 0))
	assert.NotNil(t, out)
	assert.Empty(t, out)
}
