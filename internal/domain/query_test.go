package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDefaults(t *testing.T) {
	now := time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC)
	q, err := FineFilter{}.Normalize(now)
	require.NoError(t, err)

	assert.Equal(t, day(2025, 1, 1), q.Range.Inicio)
	assert.Equal(t, day(2025, 12, 31), q.Range.Fim)
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, DefaultPageSize, q.Limit)
	assert.Equal(t, "dataEmissaoMulta", q.OrderBy)
	assert.Equal(t, "DESC", q.OrderDirection)
	assert.Equal(t, 0, q.Offset())
}

func TestNormalizeClampsAndValidates(t *testing.T) {
	now := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)

	q, err := FineFilter{Page: 3, Limit: 5000, OrderDirection: "asc", ResponsavelMulta: "f"}.Normalize(now)
	require.NoError(t, err)
	assert.Equal(t, MaxPageSize, q.Limit)
	assert.Equal(t, 2*MaxPageSize, q.Offset())
	assert.Equal(t, "ASC", q.OrderDirection)
	assert.Equal(t, "F", q.ResponsavelMulta)

	_, err = FineFilter{DataInicio: ptr(day(2024, 2, 1)), DataFim: ptr(day(2024, 1, 1))}.Normalize(now)
	assert.ErrorIs(t, err, ErrInvalidRange)

	lo, hi := decimal.NewFromInt(900), decimal.NewFromInt(100)
	_, err = FineFilter{ValorMinimo: &lo, ValorMaximo: &hi}.Normalize(now)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestNormalizeAdvancedSearch(t *testing.T) {
	now := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	in := &AdvancedSearch{Texto: "ponte", Campos: []string{"localMulta"}, Operador: "and"}
	q, err := FineFilter{BuscaAvancada: in}.Normalize(now)
	require.NoError(t, err)
	require.NotNil(t, q.BuscaAvancada)
	assert.Equal(t, "AND", q.BuscaAvancada.Operador)
	assert.Equal(t, "and", in.Operador, "caller's filter is not mutated")

	q, err = FineFilter{BuscaAvancada: &AdvancedSearch{Texto: "  "}}.Normalize(now)
	require.NoError(t, err)
	assert.Nil(t, q.BuscaAvancada)

	q, err = FineFilter{BuscaAvancada: &AdvancedSearch{Texto: "ponte"}}.Normalize(now)
	require.NoError(t, err)
	require.NotNil(t, q.BuscaAvancada)
	assert.Equal(t, DefaultSearchFields, q.BuscaAvancada.Campos)
	assert.Equal(t, "OR", q.BuscaAvancada.Operador)
}

func TestDateRangeHalfOpen(t *testing.T) {
	r, err := NewDateRange(time.Date(2024, 1, 1, 15, 0, 0, 0, time.UTC), day(2024, 1, 31))
	require.NoError(t, err)
	assert.Equal(t, day(2024, 1, 1), r.Inicio)
	assert.True(t, r.Contains(time.Date(2024, 1, 31, 23, 59, 0, 0, time.UTC)))
	assert.False(t, r.Contains(day(2024, 2, 1)))
	assert.Equal(t, "2024-01-01..2024-01-31", r.String())
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(2, 50, 101)
	assert.Equal(t, 3, p.TotalPages)
	assert.True(t, p.HasNext)
	assert.True(t, p.HasPrev)

	p = NewPagination(1, 50, 0)
	assert.Equal(t, 0, p.TotalPages)
	assert.False(t, p.HasNext)
}

func TestParseEnums(t *testing.T) {
	_, err := ParseGravidade("Z")
	assert.ErrorIs(t, err, ErrInvalidInput)
	g, err := ParseGravidade("B")
	require.NoError(t, err)
	assert.Equal(t, "B - MÉDIA", g.Label())

	d, err := ParseGroupDimension("infracao")
	require.NoError(t, err)
	assert.Equal(t, GroupByInfracao, d)

	_, err = ParseStatusMulta("ATIVO")
	assert.Error(t, err)
}
