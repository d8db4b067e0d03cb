package postgres

import (
	"context"

	"juridico/internal/domain"
)

// StartSyncRun logs the start of a sync attempt and returns its id.
func (db *DB) StartSyncRun(ctx context.Context, kind string, r domain.DateRange) (int64, error) {
	var id int64
	err := db.q.QueryRow(ctx, `
		INSERT INTO sync_runs (tipo, periodo_inicio, periodo_fim, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, kind, r.Inicio, r.Fim, domain.SyncRunRunning).Scan(&id)
	return id, err
}

// FinishSyncRun stores the counts of a finished attempt. A non-nil runErr
// marks the run as failed.
func (db *DB) FinishSyncRun(ctx context.Context, id int64, res domain.SyncResult, runErr error) error {
	status := domain.SyncRunSuccess
	var msg *string
	if runErr != nil {
		status = domain.SyncRunError
		s := runErr.Error()
		msg = &s
	}
	_, err := db.q.Exec(ctx, `
		UPDATE sync_runs
		SET status = $2, total = $3, novos = $4, atualizados = $5, erros = $6, mensagem = $7, finalizado_em = now()
		WHERE id = $1
	`, id, status, res.Total, res.Novos, res.Atualizados, len(res.Erros), msg)
	return err
}

// RecentSyncRuns lists the latest attempts, newest first.
func (db *DB) RecentSyncRuns(ctx context.Context, limit int) ([]domain.SyncRun, error) {
	if limit < 1 {
		limit = 20
	}
	rows, err := db.q.Query(ctx, `
		SELECT id, tipo, periodo_inicio, periodo_fim, status, total, novos, atualizados, erros,
			COALESCE(mensagem, ''), iniciado_em, finalizado_em
		FROM sync_runs
		ORDER BY iniciado_em DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.SyncRun
	for rows.Next() {
		var run domain.SyncRun
		if err := rows.Scan(&run.ID, &run.Tipo, &run.Periodo.Inicio, &run.Periodo.Fim, &run.Status,
			&run.Total, &run.Novos, &run.Atualizados, &run.Erros, &run.Mensagem,
			&run.IniciadoEm, &run.FinalizadoEm); err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}
