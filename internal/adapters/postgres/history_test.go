package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"juridico/internal/domain"
)

func newMockDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return &DB{q: mock}, mock
}

var intervalColumnNames = []string{
	"id", "prefixo_veiculo", "codigo_empresa", "codigo_garagem", "nome_garagem",
	"data_inicio", "data_fim", "motivo_mudanca", "observacoes", "usuario_alteracao", "created_at",
}

func TestApplyChangeMapsUniqueViolationToOverlap(t *testing.T) {
	db, mock := newMockDB(t)
	at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	ch := domain.SectorChange{
		VehicleID:   "V001",
		Para:        domain.Sector{Codigo: 31, Nome: "PARANOÁ"},
		DataMudanca: at,
		Motivo:      "TRANSFERENCIA",
		Usuario:     "ops",
	}

	mock.ExpectBeginTx(pgx.TxOptions{})
	mock.ExpectExec(`SELECT pg_advisory_xact_lock\(hashtext\(\$1\)\)`).
		WithArgs("V001").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery(`FROM veiculo_historico_setor WHERE prefixo_veiculo = \$1`).
		WithArgs("V001").
		WillReturnRows(pgxmock.NewRows(intervalColumnNames))
	mock.ExpectExec(`UPDATE veiculo_historico_setor SET data_fim = \$2`).
		WithArgs("V001", at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`INSERT INTO veiculo_historico_setor`).
		WillReturnError(&pgconn.PgError{Code: uniqueViolation, ConstraintName: "uq_historico_setor_aberto"})
	mock.ExpectRollback()

	_, err := db.ApplyChange(context.Background(), ch)
	require.ErrorIs(t, err, domain.ErrIntervalOverlap)
	assert.Contains(t, err.Error(), "V001")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyChangeRejectsInvalidChangeBeforeWriting(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBeginTx(pgx.TxOptions{})
	mock.ExpectExec(`pg_advisory_xact_lock`).
		WithArgs("V001").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery(`FROM veiculo_historico_setor WHERE prefixo_veiculo = \$1`).
		WithArgs("V001").
		WillReturnRows(pgxmock.NewRows(intervalColumnNames))
	mock.ExpectRollback()

	_, err := db.ApplyChange(context.Background(), domain.SectorChange{VehicleID: "V001"})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPurgeClosedIntervalsKeepsInitializationRows(t *testing.T) {
	db, mock := newMockDB(t)
	cutoff := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(`DELETE FROM veiculo_historico_setor\s+WHERE data_fim IS NOT NULL AND data_fim < \$1 AND motivo_mudanca <> \$2`).
		WithArgs(cutoff, domain.MotivoInicializacao).
		WillReturnResult(pgxmock.NewResult("DELETE", 4))

	n, err := db.PurgeClosedIntervals(context.Background(), cutoff, domain.MotivoInicializacao)
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkFailedOutlivesCallerContext(t *testing.T) {
	db, mock := newMockDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mock.ExpectExec(`UPDATE sync_jobs SET status = \$2, error = \$3`).
		WithArgs("job-1", jobFailed, "context canceled").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, db.MarkFailed(ctx, "job-1", "context canceled"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
