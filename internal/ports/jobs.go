package ports

import (
	"context"
	"time"

	"juridico/internal/domain"
)

// SyncJob is a queued forced sync for a date range.
type SyncJob struct {
	ID    string
	Range domain.DateRange
}

type JobStatus struct {
	ID         string             `json:"id"`
	Status     string             `json:"status"`
	Periodo    domain.DateRange   `json:"periodo"`
	Attempts   int                `json:"attempts"`
	Result     *domain.SyncResult `json:"result,omitempty"`
	Error      string             `json:"error,omitempty"`
	QueuedAt   time.Time          `json:"queuedAt"`
	StartedAt  *time.Time         `json:"startedAt,omitempty"`
	FinishedAt *time.Time         `json:"finishedAt,omitempty"`
}

// JobRepository supports claiming and updating sync jobs.
type JobRepository interface {
	EnqueueSync(ctx context.Context, r domain.DateRange) (jobID string, err error)
	ClaimNext(ctx context.Context) (job SyncJob, found bool, err error)
	StartJob(ctx context.Context, jobID string) (SyncJob, error)
	MarkCompleted(ctx context.Context, jobID string, res domain.SyncResult) error
	MarkFailed(ctx context.Context, jobID string, reason string) error
	JobStatus(ctx context.Context, jobID string) (JobStatus, error)
}
