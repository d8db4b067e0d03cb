// Package syncrunner drains the sync job queue and runs periodic
// maintenance.
package syncrunner

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"juridico/internal/domain"
	"juridico/internal/ports"
)

// Run claims queued sync jobs every pollInterval and hands them to
// concurrency workers. It blocks until ctx is done and the workers drain.
func Run(ctx context.Context, repo ports.JobRepository, syncer ports.Syncer, concurrency int, pollInterval time.Duration, log logrus.FieldLogger) {
	if concurrency < 1 {
		return
	}
	log = log.WithField("component", "syncrunner")
	jobsCh := make(chan ports.SyncJob, concurrency)

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			for job := range jobsCh {
				wlog := log.WithFields(logrus.Fields{"worker": idx, "job": job.ID})
				res, err := syncer.EnsureFresh(ctx, job.Range, true)
				if finish(ctx, repo, job.ID, res, err, wlog) == nil && err == nil {
					wlog.WithField("total", res.Total).Info("sync job completed")
				}
			}
		}(i)
	}

	dispatch(ctx, repo, jobsCh, pollInterval, log)
	close(jobsCh)
	wg.Wait()
}

func dispatch(ctx context.Context, repo ports.JobRepository, jobsCh chan<- ports.SyncJob, pollInterval time.Duration, log logrus.FieldLogger) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		for {
			job, found, err := repo.ClaimNext(ctx)
			if err != nil {
				if ctx.Err() == nil {
					log.WithError(err).Error("job claim")
				}
				break
			}
			if !found {
				break
			}
			select {
			case jobsCh <- job:
			case <-ctx.Done():
				// claimed but never handed over
				_ = finish(ctx, repo, job.ID, domain.SyncResult{}, ctx.Err(), log.WithField("job", job.ID))
				return
			}
		}
	}
}

// markTimeout bounds the status write that closes a job.
const markTimeout = 5 * time.Second

// finish moves a job to completed or failed. The write runs on a context
// detached from ctx so an expired caller still closes the job.
func finish(ctx context.Context, repo ports.JobRepository, jobID string, res domain.SyncResult, runErr error, log logrus.FieldLogger) error {
	mctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), markTimeout)
	defer cancel()
	if runErr != nil {
		log.WithError(runErr).Warn("sync job failed")
		if err := repo.MarkFailed(mctx, jobID, runErr.Error()); err != nil {
			log.WithError(err).Error("mark job failed")
			return err
		}
		return nil
	}
	if err := repo.MarkCompleted(mctx, jobID, res); err != nil {
		log.WithError(err).Error("mark job completed")
		return err
	}
	return nil
}

// ProcessInline queues a job for r and runs it with the same bookkeeping as
// the background workers. The sync runs detached from ctx: when ctx ends
// first, ProcessInline returns the job id with ctx.Err() and the job is
// closed once the sync finishes.
func ProcessInline(ctx context.Context, repo ports.JobRepository, syncer ports.Syncer, r domain.DateRange, log logrus.FieldLogger) (string, domain.SyncResult, error) {
	jobID, err := repo.EnqueueSync(ctx, r)
	if err != nil {
		return "", domain.SyncResult{}, err
	}
	if _, err := repo.StartJob(ctx, jobID); err != nil {
		return jobID, domain.SyncResult{}, err
	}
	log = log.WithFields(logrus.Fields{"component": "syncrunner", "job": jobID})

	type outcome struct {
		res domain.SyncResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		bg := context.WithoutCancel(ctx)
		res, err := syncer.EnsureFresh(bg, r, true)
		if mErr := finish(bg, repo, jobID, res, err, log); err == nil {
			err = mErr
		}
		done <- outcome{res: res, err: err}
	}()

	select {
	case <-ctx.Done():
		log.Info("caller stopped waiting; job continues in background")
		return jobID, domain.SyncResult{}, ctx.Err()
	case o := <-done:
		if o.err != nil {
			return jobID, domain.SyncResult{}, o.err
		}
		return jobID, o.res, nil
	}
}

// Task is one periodic maintenance step.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Maintain runs tasks in order every interval until ctx is done. A failing
// task is logged and does not stop the others. A non-positive interval
// disables maintenance.
func Maintain(ctx context.Context, interval time.Duration, log logrus.FieldLogger, tasks ...Task) {
	if interval <= 0 || len(tasks) == 0 {
		return
	}
	log = log.WithField("component", "maintenance")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		for _, t := range tasks {
			if ctx.Err() != nil {
				return
			}
			start := time.Now()
			if err := t.Run(ctx); err != nil {
				log.WithError(err).WithField("task", t.Name).Error("maintenance task failed")
				continue
			}
			log.WithFields(logrus.Fields{"task": t.Name, "elapsed": time.Since(start).String()}).Debug("maintenance task done")
		}
	}
}
