package finesync

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"juridico/internal/domain"
	"juridico/internal/legacy"
)

func TestMapRow(t *testing.T) {
	m := Mapper{Parser: legacy.Parser{Loc: time.UTC}, Company: 4}
	row := map[string]any{
		"NUMEROAIMULTA":          " AI-100 ",
		"DATAEMISSAOMULTA":       time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		"DATAHORAMULTA":          "15/01/2024 07:45:00",
		"DATAVECTOMULTA":         "30/12/1899",
		"DATALIMITECONDUTOR":     "2024-02-10",
		"VALORMULTA":             "990,00",
		"VALORPAGO":              nil,
		"TOTALPARCELASMULTA":     "3",
		"CODIGOORG":              int64(16),
		"RESPONSAVELMULTA":       "f",
		"COD_AGENTE_AUTUADOR":    "AG7",
		"NUMERORECURSOMULTA2":    "R-2",
		"DATARECURSOMULTA2":      "01/02/2024",
		"NOTIFICACAO3":           "N3",
		"NOTIFICACAO3VALORDODOC": "12,5",
		"OBSERVACAOREALMOTIVO":   "   ",
	}

	f, err := m.MapRow(row)
	require.NoError(t, err)
	assert.Equal(t, "AI-100", f.NumeroAiMulta)
	assert.Equal(t, 4, f.CodigoEmpresa)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), f.DataEmissaoMulta)
	require.NotNil(t, f.DataHoraMulta)
	assert.Equal(t, 7, f.DataHoraMulta.Hour())
	assert.Nil(t, f.DataVectoMulta)
	require.NotNil(t, f.DataLimiteCondutor)
	assert.True(t, decimal.NewFromInt(990).Equal(f.ValorMulta))
	assert.True(t, f.ValorPago.IsZero())
	assert.Equal(t, 3, f.TotalParcelasMulta)
	require.NotNil(t, f.CodigoOrg)
	assert.Equal(t, domain.SemobOrgCode, *f.CodigoOrg)
	assert.Equal(t, "F", *f.ResponsavelMulta)
	assert.Equal(t, "AG7", *f.AgenteCodigo)
	assert.Nil(t, f.Recursos[0].Numero)
	assert.Equal(t, "R-2", *f.Recursos[1].Numero)
	require.NotNil(t, f.Recursos[1].Data)
	assert.Equal(t, "N3", *f.Notificacoes[2].Numero)
	assert.True(t, decimal.RequireFromString("12.5").Equal(f.Notificacoes[2].ValorDoDoc))
	assert.Nil(t, f.ObservacaoRealMotivo)
}

func TestMapRowRejectsUnkeyableRows(t *testing.T) {
	m := Mapper{Parser: legacy.Parser{Loc: time.UTC}, Company: 4}
	tests := []struct {
		name string
		row  map[string]any
	}{
		{"no number", map[string]any{"DATAEMISSAOMULTA": "15/01/2024"}},
		{"blank number", map[string]any{"NUMEROAIMULTA": "  ", "DATAEMISSAOMULTA": "15/01/2024"}},
		{"sentinel date", map[string]any{"NUMEROAIMULTA": "AI-1", "DATAEMISSAOMULTA": "30/12/1899"}},
		{"rolled over date", map[string]any{"NUMEROAIMULTA": "AI-1", "DATAEMISSAOMULTA": "31/04/2024"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.MapRow(tt.row)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestMapVehicle(t *testing.T) {
	m := Mapper{Parser: legacy.Parser{Loc: time.UTC}, Company: 4}

	v, err := m.MapVehicle(map[string]any{
		"PREFIXOVEICULO":       "0312345",
		"CODIGOGARAGEM":        "124",
		"NOMEGARAGEM":          "SANTA MARIA",
		"DATAINICIOUTILIZACAO": "05/03/2019",
		"SITUACAO":             "ativo",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.Sector{Codigo: 124, Nome: "SANTA MARIA"}, v.Sector)
	assert.True(t, v.Active())
	require.NotNil(t, v.DataInicioUtilizacao)
	assert.Equal(t, 2019, v.DataInicioUtilizacao.Year())

	_, err = m.MapVehicle(map[string]any{"PREFIXOVEICULO": "0312345"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
