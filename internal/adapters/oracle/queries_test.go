package oracle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"juridico/internal/domain"
)

func TestFinesByIssuanceRangeIsHalfOpen(t *testing.T) {
	r, err := domain.NewDateRange(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	q := FinesByIssuanceRange(4, r)
	assert.Contains(t, q, "V.CODIGOEMPRESA = 4")
	assert.Contains(t, q, "M.DATAEMISSAOMULTA >= TO_DATE('01/01/2025', 'DD/MM/YYYY')")
	assert.Contains(t, q, "M.DATAEMISSAOMULTA < TO_DATE('01/02/2025', 'DD/MM/YYYY')")
	assert.Contains(t, q, "ORDER BY M.DATAEMISSAOMULTA DESC")
}

func TestFineByNumberEscapesQuotes(t *testing.T) {
	q := FineByNumber(4, "AI'1")
	assert.Contains(t, q, "M.NUMEROAIMULTA = 'AI''1'")
}

func TestFleetSnapshot(t *testing.T) {
	active := FleetSnapshot(4, false)
	assert.Contains(t, active, "C.CONDICAOVEIC = 'A'")
	assert.Contains(t, active, "C.CODIGOGA IN (31, 124, 239, 240)")
	assert.Contains(t, active, "WHEN C.CODIGOGA = 240 THEN 'GAMA'")
	assert.Contains(t, active, "C.CODIGOEMPRESA = 4")

	all := FleetSnapshot(4, true)
	assert.Contains(t, all, "C.CONDICAOVEIC IN ('A', 'I')")
}
