package finesync

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"juridico/internal/domain"
	"juridico/internal/logging"
)

type fixture struct {
	svc       *Service
	clock     *clockwork.FakeClock
	oracle    *fakeOracle
	fines     *memFines
	fleet     *memFleet
	runs      *memRuns
	snapshots *countingSnapshots
}

func newFixture(rows ...map[string]any) *fixture {
	fx := &fixture{
		clock:     clockwork.NewFakeClockAt(time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)),
		oracle:    &fakeOracle{fines: rows},
		fines:     newMemFines(),
		fleet:     &memFleet{rows: map[string]domain.FleetVehicle{}},
		runs:      &memRuns{},
		snapshots: &countingSnapshots{},
	}
	fx.svc = New(Options{
		Oracle:    fx.oracle,
		Fines:     fx.fines,
		Fleet:     fx.fleet,
		Runs:      fx.runs,
		Snapshots: fx.snapshots,
		Clock:     fx.clock,
		Log:       logging.Discard(),
		Location:  time.UTC,
	})
	return fx
}

func january() domain.DateRange {
	r, _ := domain.NewDateRange(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
	return r
}

func oracleRow(numero, emissao, valor string) map[string]any {
	return map[string]any{
		"NUMEROAIMULTA":    numero,
		"DATAEMISSAOMULTA": emissao,
		"VALORMULTA":       valor,
		"PREFIXOVEIC":      "0001",
	}
}

func TestEnsureFreshSyncsThenServesFromCache(t *testing.T) {
	fx := newFixture(
		oracleRow("AI-1", "15/01/2024", "495,00"),
		oracleRow("AI-2", "20/01/2024 08:30:00", "990"),
	)
	ctx := context.Background()

	res, err := fx.svc.EnsureFresh(ctx, january(), false)
	require.NoError(t, err)
	assert.Equal(t, domain.FonteOracle, res.Fonte)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 2, res.Novos)
	assert.Zero(t, res.Atualizados)
	assert.Empty(t, res.Erros)
	require.Len(t, fx.oracle.queries, 1)

	res, err = fx.svc.EnsureFresh(ctx, january(), false)
	require.NoError(t, err)
	assert.Equal(t, domain.FonteCache, res.Fonte)
	assert.Equal(t, 2, res.Total)
	assert.Zero(t, res.Writes())
	assert.Len(t, fx.oracle.queries, 1)
}

func TestEnsureFreshResyncsWhenStale(t *testing.T) {
	fx := newFixture(oracleRow("AI-1", "15/01/2024", "495"))
	ctx := context.Background()

	_, err := fx.svc.EnsureFresh(ctx, january(), false)
	require.NoError(t, err)

	fx.clock.Advance(25 * time.Hour)
	res, err := fx.svc.EnsureFresh(ctx, january(), false)
	require.NoError(t, err)
	assert.Equal(t, domain.FonteOracle, res.Fonte)
	assert.Equal(t, 1, res.Atualizados)
	assert.Equal(t, fx.clock.Now(), fx.fines.rows["AI-1"].SyncedAt)
}

func TestForceSyncBypassesFreshness(t *testing.T) {
	fx := newFixture(oracleRow("AI-1", "15/01/2024", "495"))
	ctx := context.Background()

	_, err := fx.svc.EnsureFresh(ctx, january(), false)
	require.NoError(t, err)
	res, err := fx.svc.ForceSync(ctx, january())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Atualizados)
	assert.Len(t, fx.oracle.queries, 2)
}

func TestSyncCollectsRowErrorsAndContinues(t *testing.T) {
	fx := newFixture(
		oracleRow("AI-1", "15/01/2024", "495"),
		oracleRow("", "15/01/2024", "495"),
		oracleRow("AI-3", "30/12/1899", "495"),
		oracleRow("AI-4", "16/01/2024", "990"),
		oracleRow("AI-5", "17/01/2024", "1980"),
	)
	fx.fines.failFor = "AI-4"

	res, err := fx.svc.EnsureFresh(context.Background(), january(), false)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Total)
	assert.Equal(t, 2, res.Novos)
	require.Len(t, res.Erros, 3)
	assert.Equal(t, "linha 2", res.Erros[0].Numero)
	assert.Equal(t, "AI-3", res.Erros[1].Numero)
	assert.Equal(t, "AI-4", res.Erros[2].Numero)
	assert.Contains(t, res.Erros[2].Reason, "constraint violated")
	assert.Len(t, fx.fines.rows, 2)
}

func TestSourceFailureAbortsAndIsLogged(t *testing.T) {
	fx := newFixture()
	fx.oracle.err = errors.New("ORA-03113")

	_, err := fx.svc.EnsureFresh(context.Background(), january(), false)
	require.Error(t, err)
	assert.ErrorIs(t, err, fx.oracle.err)
	assert.Empty(t, fx.fines.rows)
	require.Len(t, fx.runs.finished, 1)
	assert.Error(t, fx.runs.finished[0])
}

func tenRows() []map[string]any {
	rows := make([]map[string]any, 0, 10)
	for i := 1; i <= 10; i++ {
		rows = append(rows, oracleRow(fmt.Sprintf("AI-%d", i), "15/01/2024", "495"))
	}
	return rows
}

func TestSyncOutlivesCallerCancellation(t *testing.T) {
	fx := newFixture(tenRows()...)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fx.fines.afterWrite = func(n int) {
		if n == 2 {
			cancel()
		}
	}

	_, err := fx.svc.EnsureFresh(ctx, january(), true)
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}

	require.Eventually(t, func() bool {
		finished, _ := fx.runs.finishedRuns()
		return len(finished) == 1
	}, time.Second, 5*time.Millisecond)
	finished, results := fx.runs.finishedRuns()
	assert.NoError(t, finished[0])
	assert.Equal(t, 10, results[0].Novos)
	assert.Empty(t, results[0].Erros)
	assert.Equal(t, 10, fx.fines.count())
}

func TestSyncTimeoutIsRecordedAsFailure(t *testing.T) {
	fx := newFixture(tenRows()...)
	fx.svc.syncTimeout = 30 * time.Millisecond
	fx.fines.blockOn = "AI-3"

	_, err := fx.svc.EnsureFresh(context.Background(), january(), true)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	finished, results := fx.runs.finishedRuns()
	require.Len(t, finished, 1)
	assert.ErrorIs(t, finished[0], context.DeadlineExceeded)
	assert.Equal(t, 2, results[0].Novos)
	assert.Empty(t, results[0].Erros, "interrupted rows are not row errors")
	assert.Equal(t, 2, fx.fines.count())
}

func TestSyncRunIsRecorded(t *testing.T) {
	fx := newFixture(oracleRow("AI-1", "15/01/2024", "495"))

	_, err := fx.svc.EnsureFresh(context.Background(), january(), false)
	require.NoError(t, err)
	assert.Equal(t, []string{KindFines}, fx.runs.started)
	require.Len(t, fx.runs.finished, 1)
	assert.NoError(t, fx.runs.finished[0])
	assert.Equal(t, 1, fx.runs.results[0].Novos)
}

func TestFindByNumber(t *testing.T) {
	fx := newFixture(oracleRow("AI-9", "10/01/2024", "495"))
	ctx := context.Background()

	first, err := fx.svc.FindByNumber(ctx, "AI-9")
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Len(t, fx.oracle.queries, 1)

	second, err := fx.svc.FindByNumber(ctx, "AI-9")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, fx.oracle.queries, 1)

	missing, err := fx.svc.FindByNumber(ctx, "NOPE")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestFindByNumberSwallowsSourceErrors(t *testing.T) {
	fx := newFixture()
	fx.oracle.err = errors.New("ORA-12541")

	f, err := fx.svc.FindByNumber(context.Background(), "AI-1")
	assert.NoError(t, err)
	assert.Nil(t, f)
}

func TestImportFleet(t *testing.T) {
	fx := newFixture()
	fx.oracle.fleet = []map[string]any{
		{"PREFIXOVEICULO": "0001", "CODIGOGARAGEM": int64(31), "NOMEGARAGEM": "PARANOÁ", "SITUACAO": "ATIVO"},
		{"PREFIXOVEICULO": "0002", "CODIGOGARAGEM": 240.0, "NOMEGARAGEM": "GAMA", "SITUACAO": "INATIVO", "PLACAVEICULO": "JKL1234"},
		{"PREFIXOVEICULO": nil, "CODIGOGARAGEM": int64(31)},
	}

	res, err := fx.svc.ImportFleet(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 2, res.Novos)
	require.Len(t, res.Erros, 1)
	assert.Equal(t, 1, fx.snapshots.invalidated)

	v := fx.fleet.rows["0002"]
	assert.Equal(t, 240, v.Sector.Codigo)
	assert.Equal(t, "JKL1234", v.Placa)
	assert.False(t, v.Active())
	assert.Equal(t, domain.DefaultCodigoEmpresa, v.CodigoEmpresa)
	assert.True(t, fx.fleet.rows["0001"].Active())
}
