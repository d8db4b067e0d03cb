package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"juridico/internal/domain"
	"juridico/internal/ports"
)

const intervalColumns = `id, prefixo_veiculo, codigo_empresa, codigo_garagem, nome_garagem,
	data_inicio, data_fim, motivo_mudanca, observacoes, usuario_alteracao, created_at`

// uniqueViolation is the Postgres SQLSTATE for unique_violation.
const uniqueViolation = "23505"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInterval(row rowScanner) (domain.SectorInterval, error) {
	var iv domain.SectorInterval
	err := row.Scan(&iv.ID, &iv.VehicleID, &iv.CodigoEmpresa, &iv.Sector.Codigo, &iv.Sector.Nome,
		&iv.DataInicio, &iv.DataFim, &iv.Motivo, &iv.Observacoes, &iv.Usuario, &iv.CreatedAt)
	return iv, err
}

func optionalInterval(row pgx.Row) (*domain.SectorInterval, error) {
	iv, err := scanInterval(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &iv, nil
}

func collectIntervals(rows pgx.Rows) ([]domain.SectorInterval, error) {
	defer rows.Close()
	var out []domain.SectorInterval
	for rows.Next() {
		iv, err := scanInterval(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, iv)
	}
	return out, rows.Err()
}

// OpenInterval returns the vehicle's current interval, or nil.
func (db *DB) OpenInterval(ctx context.Context, vehicle string) (*domain.SectorInterval, error) {
	return optionalInterval(db.q.QueryRow(ctx, `
		SELECT `+intervalColumns+` FROM veiculo_historico_setor
		WHERE prefixo_veiculo = $1 AND data_fim IS NULL
	`, vehicle))
}

// IntervalAt returns the interval covering at. On a change boundary the
// interval that starts there wins.
func (db *DB) IntervalAt(ctx context.Context, vehicle string, at time.Time) (*domain.SectorInterval, error) {
	return optionalInterval(db.q.QueryRow(ctx, `
		SELECT `+intervalColumns+` FROM veiculo_historico_setor
		WHERE prefixo_veiculo = $1
		  AND data_inicio <= $2
		  AND (data_fim IS NULL OR data_fim >= $2)
		ORDER BY data_inicio DESC
		LIMIT 1
	`, vehicle, at))
}

// VehicleHistory lists every interval of the vehicle, oldest first.
func (db *DB) VehicleHistory(ctx context.Context, vehicle string) ([]domain.SectorInterval, error) {
	rows, err := db.q.Query(ctx, `
		SELECT `+intervalColumns+` FROM veiculo_historico_setor
		WHERE prefixo_veiculo = $1
		ORDER BY data_inicio, created_at
	`, vehicle)
	if err != nil {
		return nil, err
	}
	return collectIntervals(rows)
}

// InsertOpenIntervalIfAbsent opens iv unless the vehicle already has an open
// interval. The partial unique index settles concurrent initializations.
func (db *DB) InsertOpenIntervalIfAbsent(ctx context.Context, iv domain.SectorInterval) (bool, error) {
	if iv.ID == uuid.Nil {
		iv.ID = uuid.New()
	}
	tag, err := db.q.Exec(ctx, `
		INSERT INTO veiculo_historico_setor
			(id, prefixo_veiculo, codigo_empresa, codigo_garagem, nome_garagem, data_inicio, data_fim,
			 motivo_mudanca, observacoes, usuario_alteracao)
		VALUES ($1, $2, $3, $4, $5, $6, NULL, $7, $8, $9)
		ON CONFLICT (prefixo_veiculo) WHERE data_fim IS NULL DO NOTHING
	`, iv.ID, iv.VehicleID, iv.CodigoEmpresa, iv.Sector.Codigo, iv.Sector.Nome, iv.DataInicio,
		iv.Motivo, iv.Observacoes, iv.Usuario)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ApplyChange closes the open interval at ch.DataMudanca and opens one for
// ch.Para. Writers on the same vehicle are serialized by an advisory lock.
func (db *DB) ApplyChange(ctx context.Context, ch domain.SectorChange) (iv domain.SectorInterval, err error) {
	tx, err := db.q.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return iv, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, ch.VehicleID); err != nil {
		return iv, err
	}
	rows, err := tx.Query(ctx, `
		SELECT `+intervalColumns+` FROM veiculo_historico_setor WHERE prefixo_veiculo = $1
	`, ch.VehicleID)
	if err != nil {
		return iv, err
	}
	history, err := collectIntervals(rows)
	if err != nil {
		return iv, err
	}
	if err = domain.ValidateChange(history, ch); err != nil {
		return iv, err
	}

	if _, err = tx.Exec(ctx, `
		UPDATE veiculo_historico_setor SET data_fim = $2
		WHERE prefixo_veiculo = $1 AND data_fim IS NULL
	`, ch.VehicleID, ch.DataMudanca); err != nil {
		return iv, err
	}

	iv = domain.SectorInterval{
		ID:            uuid.New(),
		VehicleID:     ch.VehicleID,
		CodigoEmpresa: ch.CodigoEmpresa,
		Sector:        ch.Para,
		DataInicio:    ch.DataMudanca,
		Motivo:        ch.Motivo,
		Observacoes:   ch.Observacoes,
		Usuario:       ch.Usuario,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO veiculo_historico_setor
			(id, prefixo_veiculo, codigo_empresa, codigo_garagem, nome_garagem, data_inicio, data_fim,
			 motivo_mudanca, observacoes, usuario_alteracao)
		VALUES ($1, $2, $3, $4, $5, $6, NULL, $7, $8, $9)
		RETURNING created_at
	`, iv.ID, iv.VehicleID, iv.CodigoEmpresa, iv.Sector.Codigo, iv.Sector.Nome, iv.DataInicio,
		iv.Motivo, iv.Observacoes, iv.Usuario).Scan(&iv.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		err = fmt.Errorf("%w: vehicle %s already has an open interval", domain.ErrIntervalOverlap, ch.VehicleID)
	}
	return iv, err
}

// VehiclesInSector lists vehicles with an interval in sector overlapping
// [from, to].
func (db *DB) VehiclesInSector(ctx context.Context, sector int, from, to time.Time) ([]string, error) {
	rows, err := db.q.Query(ctx, `
		SELECT DISTINCT prefixo_veiculo FROM veiculo_historico_setor
		WHERE codigo_garagem = $1
		  AND data_inicio <= $3
		  AND (data_fim IS NULL OR data_fim >= $2)
		ORDER BY prefixo_veiculo
	`, sector, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// PurgeClosedIntervals deletes closed intervals that ended before
// endedBefore, except those recorded with keepReason.
func (db *DB) PurgeClosedIntervals(ctx context.Context, endedBefore time.Time, keepReason string) (int64, error) {
	tag, err := db.q.Exec(ctx, `
		DELETE FROM veiculo_historico_setor
		WHERE data_fim IS NOT NULL AND data_fim < $1 AND motivo_mudanca <> $2
	`, endedBefore, keepReason)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// LedgerStats counts ledger rows by reason.
func (db *DB) LedgerStats(ctx context.Context) (ports.LedgerStats, error) {
	st := ports.LedgerStats{PorMotivo: map[string]int{}}
	err := db.q.QueryRow(ctx, `
		SELECT COUNT(DISTINCT prefixo_veiculo), COUNT(*), COUNT(*) FILTER (WHERE motivo_mudanca <> $1)
		FROM veiculo_historico_setor
	`, domain.MotivoInicializacao).Scan(&st.VeiculosComHistorico, &st.TotalRegistros, &st.TotalMudancas)
	if err != nil {
		return st, err
	}
	rows, err := db.q.Query(ctx, `
		SELECT motivo_mudanca, COUNT(*) FROM veiculo_historico_setor GROUP BY motivo_mudanca
	`)
	if err != nil {
		return st, err
	}
	defer rows.Close()
	for rows.Next() {
		var motivo string
		var n int
		if err := rows.Scan(&motivo, &n); err != nil {
			return st, err
		}
		st.PorMotivo[motivo] = n
	}
	return st, rows.Err()
}
