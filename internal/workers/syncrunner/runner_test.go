package syncrunner

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"juridico/internal/domain"
	"juridico/internal/logging"
	"juridico/internal/ports"
)

type memJobs struct {
	mu     sync.Mutex
	seq    int
	queue  []ports.SyncJob
	status map[string]string
	result map[string]domain.SyncResult
	reason map[string]string
}

func newMemJobs() *memJobs {
	return &memJobs{status: map[string]string{}, result: map[string]domain.SyncResult{}, reason: map[string]string{}}
}

func (m *memJobs) EnqueueSync(_ context.Context, r domain.DateRange) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	id := "job-" + strconv.Itoa(m.seq)
	m.queue = append(m.queue, ports.SyncJob{ID: id, Range: r})
	m.status[id] = "queued"
	return id, nil
}

func (m *memJobs) ClaimNext(context.Context) (ports.SyncJob, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, j := range m.queue {
		if m.status[j.ID] == "queued" {
			m.status[j.ID] = "running"
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			return j, true, nil
		}
	}
	return ports.SyncJob{}, false, nil
}

func (m *memJobs) StartJob(_ context.Context, id string) (ports.SyncJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status[id] != "queued" {
		return ports.SyncJob{}, domain.ErrNotFound
	}
	m.status[id] = "running"
	for i, j := range m.queue {
		if j.ID == id {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			return j, nil
		}
	}
	return ports.SyncJob{ID: id}, nil
}

func (m *memJobs) MarkCompleted(ctx context.Context, id string, res domain.SyncResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status[id] = "completed"
	m.result[id] = res
	return nil
}

func (m *memJobs) MarkFailed(ctx context.Context, id, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status[id] = "failed"
	m.reason[id] = reason
	return nil
}

func (m *memJobs) JobStatus(_ context.Context, id string) (ports.JobStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.status[id]
	if !ok {
		return ports.JobStatus{}, domain.ErrNotFound
	}
	return ports.JobStatus{ID: id, Status: s}, nil
}

func (m *memJobs) statusOf(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status[id]
}

type stubSyncer struct {
	failOn time.Month
	calls  atomic.Int32
}

func (s *stubSyncer) EnsureFresh(_ context.Context, r domain.DateRange, force bool) (domain.SyncResult, error) {
	s.calls.Add(1)
	if !force {
		return domain.SyncResult{}, errors.New("expected forced sync")
	}
	if r.Inicio.Month() == s.failOn {
		return domain.SyncResult{}, errors.New("oracle unavailable")
	}
	return domain.SyncResult{Total: 7, Periodo: r, Fonte: domain.FonteOracle}, nil
}

func (s *stubSyncer) FindByNumber(context.Context, string) (*domain.Fine, error) { return nil, nil }

func month(m time.Month) domain.DateRange {
	start := time.Date(2024, m, 1, 0, 0, 0, 0, time.UTC)
	r, _ := domain.NewDateRange(start, start.AddDate(0, 1, -1))
	return r
}

func TestRunProcessesQueuedJobs(t *testing.T) {
	repo := newMemJobs()
	syncer := &stubSyncer{failOn: time.March}
	ctx := context.Background()

	ok, err := repo.EnqueueSync(ctx, month(time.January))
	require.NoError(t, err)
	bad, err := repo.EnqueueSync(ctx, month(time.March))
	require.NoError(t, err)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		Run(runCtx, repo, syncer, 2, 5*time.Millisecond, logging.Discard())
		close(done)
	}()

	require.Eventually(t, func() bool {
		return repo.statusOf(ok) == "completed" && repo.statusOf(bad) == "failed"
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done

	repo.mu.Lock()
	defer repo.mu.Unlock()
	assert.Equal(t, 7, repo.result[ok].Total)
	assert.Equal(t, "oracle unavailable", repo.reason[bad])
}

func TestRunWithoutWorkersReturns(t *testing.T) {
	Run(context.Background(), newMemJobs(), &stubSyncer{}, 0, time.Millisecond, logging.Discard())
}

func TestProcessInline(t *testing.T) {
	repo := newMemJobs()
	syncer := &stubSyncer{failOn: time.March}

	id, res, err := ProcessInline(context.Background(), repo, syncer, month(time.February), logging.Discard())
	require.NoError(t, err)
	assert.Equal(t, 7, res.Total)
	assert.Equal(t, "completed", repo.statusOf(id))

	id, _, err = ProcessInline(context.Background(), repo, syncer, month(time.March), logging.Discard())
	assert.EqualError(t, err, "oracle unavailable")
	assert.Equal(t, "failed", repo.statusOf(id))

	_, found, err := repo.ClaimNext(context.Background())
	require.NoError(t, err)
	assert.False(t, found, "inline jobs never reach the workers")
}

// slowSyncer holds every sync until release is closed or ctx ends, then
// answers with err.
type slowSyncer struct {
	release chan struct{}
	err     error
}

func newSlowSyncer(err error) *slowSyncer {
	return &slowSyncer{release: make(chan struct{}), err: err}
}

func (s *slowSyncer) EnsureFresh(ctx context.Context, r domain.DateRange, _ bool) (domain.SyncResult, error) {
	select {
	case <-ctx.Done():
		return domain.SyncResult{}, ctx.Err()
	case <-s.release:
	}
	if s.err != nil {
		return domain.SyncResult{}, s.err
	}
	return domain.SyncResult{Total: 3, Periodo: r, Fonte: domain.FonteOracle}, nil
}

func (s *slowSyncer) FindByNumber(context.Context, string) (*domain.Fine, error) { return nil, nil }

func TestProcessInlineKeepsSyncingAfterDeadline(t *testing.T) {
	repo := newMemJobs()
	syncer := newSlowSyncer(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	id, _, err := ProcessInline(ctx, repo, syncer, month(time.April), logging.Discard())
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.NotEmpty(t, id)
	assert.Equal(t, "running", repo.statusOf(id))

	close(syncer.release)
	require.Eventually(t, func() bool { return repo.statusOf(id) == "completed" }, 2*time.Second, 5*time.Millisecond)
	repo.mu.Lock()
	defer repo.mu.Unlock()
	assert.Equal(t, 3, repo.result[id].Total)
}

func TestProcessInlineRecordsLateFailure(t *testing.T) {
	repo := newMemJobs()
	syncer := newSlowSyncer(errors.New("ORA-01013"))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	id, _, err := ProcessInline(ctx, repo, syncer, month(time.April), logging.Discard())
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(syncer.release)
	require.Eventually(t, func() bool { return repo.statusOf(id) == "failed" }, 2*time.Second, 5*time.Millisecond)
	repo.mu.Lock()
	defer repo.mu.Unlock()
	assert.Equal(t, "ORA-01013", repo.reason[id])
}

func TestRunClosesJobsOnShutdown(t *testing.T) {
	repo := newMemJobs()
	id, err := repo.EnqueueSync(context.Background(), month(time.May))
	require.NoError(t, err)

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Run(runCtx, repo, newSlowSyncer(nil), 1, 5*time.Millisecond, logging.Discard())
		close(done)
	}()
	require.Eventually(t, func() bool { return repo.statusOf(id) == "running" }, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done
	assert.Equal(t, "failed", repo.statusOf(id))
}

func TestMaintainRunsEveryTask(t *testing.T) {
	var drift, purge atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Maintain(ctx, 5*time.Millisecond, logging.Discard(),
			Task{Name: "drift", Run: func(context.Context) error {
				drift.Add(1)
				return errors.New("ledger locked")
			}},
			Task{Name: "purge", Run: func(context.Context) error {
				purge.Add(1)
				return nil
			}},
		)
		close(done)
	}()

	require.Eventually(t, func() bool { return drift.Load() >= 2 && purge.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Maintain did not stop")
	}
}

func TestMaintainDisabled(t *testing.T) {
	called := false
	Maintain(context.Background(), 0, logging.Discard(), Task{Name: "x", Run: func(context.Context) error {
		called = true
		return nil
	}})
	assert.False(t, called)
}
