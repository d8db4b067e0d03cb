package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"juridico/internal/domain"
	"juridico/internal/ports"
)

const (
	jobQueued    = "queued"
	jobRunning   = "running"
	jobCompleted = "completed"
	jobFailed    = "failed"
)

// EnqueueSync queues a forced sync of r.
func (db *DB) EnqueueSync(ctx context.Context, r domain.DateRange) (string, error) {
	id := uuid.NewString()
	_, err := db.q.Exec(ctx, `
		INSERT INTO sync_jobs (id, status, periodo_inicio, periodo_fim)
		VALUES ($1, $2, $3, $4)
	`, id, jobQueued, r.Inicio, r.Fim)
	return id, err
}

// ClaimNext selects the next queued job using SKIP LOCKED and marks it running.
func (db *DB) ClaimNext(ctx context.Context) (job ports.SyncJob, found bool, err error) {
	tx, err := db.q.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return job, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	err = tx.QueryRow(ctx, `
		SELECT id, periodo_inicio, periodo_fim FROM sync_jobs
		WHERE status = $1
		ORDER BY queued_at
		FOR UPDATE SKIP LOCKED
		LIMIT 1
	`, jobQueued).Scan(&job.ID, &job.Range.Inicio, &job.Range.Fim)
	if errors.Is(err, pgx.ErrNoRows) {
		return job, false, nil
	}
	if err != nil {
		return job, false, err
	}

	if _, err = tx.Exec(ctx, `
		UPDATE sync_jobs SET status = $2, started_at = now(), attempts = attempts + 1 WHERE id = $1
	`, job.ID, jobRunning); err != nil {
		return job, false, err
	}
	return job, true, nil
}

// StartJob claims a specific queued job for inline execution.
func (db *DB) StartJob(ctx context.Context, jobID string) (job ports.SyncJob, err error) {
	if _, err = uuid.Parse(jobID); err != nil {
		return job, domain.ErrNotFound
	}
	tx, err := db.q.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return job, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	err = tx.QueryRow(ctx, `
		SELECT id, periodo_inicio, periodo_fim FROM sync_jobs
		WHERE id = $1 AND status = $2
		FOR UPDATE SKIP LOCKED
	`, jobID, jobQueued).Scan(&job.ID, &job.Range.Inicio, &job.Range.Fim)
	if errors.Is(err, pgx.ErrNoRows) {
		return job, domain.ErrNotFound
	}
	if err != nil {
		return job, err
	}
	_, err = tx.Exec(ctx, `
		UPDATE sync_jobs SET status = $2, started_at = now(), attempts = attempts + 1 WHERE id = $1
	`, jobID, jobRunning)
	return job, err
}

// MarkCompleted stores the sync result on the job.
func (db *DB) MarkCompleted(ctx context.Context, jobID string, res domain.SyncResult) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	payload, err := json.Marshal(res)
	if err != nil {
		return err
	}
	_, err = db.q.Exec(ctx, `
		UPDATE sync_jobs SET status = $2, result = $3, finished_at = now() WHERE id = $1
	`, jobID, jobCompleted, payload)
	return err
}

// MarkFailed records reason on the job. Both terminal writes outlive the
// caller's context so a job never stays running after its sync ended.
func (db *DB) MarkFailed(ctx context.Context, jobID string, reason string) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	_, err := db.q.Exec(ctx, `
		UPDATE sync_jobs SET status = $2, error = $3, finished_at = now() WHERE id = $1
	`, jobID, jobFailed, reason)
	return err
}

// JobStatus reports a job's state; unknown ids yield domain.ErrNotFound.
func (db *DB) JobStatus(ctx context.Context, jobID string) (ports.JobStatus, error) {
	var st ports.JobStatus
	if _, err := uuid.Parse(jobID); err != nil {
		return st, domain.ErrNotFound
	}
	var result []byte
	var reason *string
	err := db.q.QueryRow(ctx, `
		SELECT id, status, periodo_inicio, periodo_fim, attempts, result, error, queued_at, started_at, finished_at
		FROM sync_jobs WHERE id = $1
	`, jobID).Scan(&st.ID, &st.Status, &st.Periodo.Inicio, &st.Periodo.Fim, &st.Attempts,
		&result, &reason, &st.QueuedAt, &st.StartedAt, &st.FinishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return st, domain.ErrNotFound
	}
	if err != nil {
		return st, err
	}
	if reason != nil {
		st.Error = *reason
	}
	if len(result) > 0 {
		var res domain.SyncResult
		if err := json.Unmarshal(result, &res); err != nil {
			return st, err
		}
		st.Result = &res
	}
	return st, nil
}
