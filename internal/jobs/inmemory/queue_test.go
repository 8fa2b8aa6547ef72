package inmemory

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/txn-aggregator/internal/jobs"
)

func waitForStatus(t *testing.T, store *Store, jobID string, status jobs.JobStatus) *jobs.ReportJob {
	t.Helper()
	var last *jobs.ReportJob
	require.Eventually(t, func() bool {
		job, err := store.GetJob(context.Background(), jobID)
		if err != nil {
			return false
		}
		last = job
		return job.Status == status
	}, 2*time.Second, 5*time.Millisecond)
	return last
}

func TestQueue_ProcessesJob(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	queue := NewQueue(10, store, WithWorkers(2))
	defer queue.Close()

	require.NoError(t, queue.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		job.(*jobs.ReportJob).RunID = "run-1"
		return nil
	}))

	job := &jobs.ReportJob{InputURI: "in.csv"}
	require.NoError(t, queue.PublishReport(ctx, job))
	require.NotEmpty(t, job.JobID)
	assert.Equal(t, 3, job.MaxRetries)

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	assert.Equal(t, "run-1", done.RunID)
	assert.NotNil(t, done.StartedAt)
	assert.NotNil(t, done.CompletedAt)
	assert.Empty(t, done.Error)
}

func TestQueue_RetriesTransientFailures(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	queue := NewQueue(10, store, WithWorkers(1), WithRetryBackoff(time.Millisecond))
	defer queue.Close()

	var calls atomic.Int32
	require.NoError(t, queue.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		if calls.Add(1) < 3 {
			return errors.New("storage unavailable")
		}
		return nil
	}))

	job := &jobs.ReportJob{InputURI: "in.csv"}
	require.NoError(t, queue.PublishReport(ctx, job))

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	assert.Equal(t, 2, done.RetryCount)
	assert.Equal(t, int32(3), calls.Load())
}

func TestQueue_GivesUpAfterMaxRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	queue := NewQueue(10, store, WithWorkers(1), WithRetryBackoff(time.Millisecond))
	defer queue.Close()

	require.NoError(t, queue.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		return errors.New("storage unavailable")
	}))

	job := &jobs.ReportJob{InputURI: "in.csv", MaxRetries: 1}
	require.NoError(t, queue.PublishReport(ctx, job))

	failed := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	assert.Equal(t, 1, failed.RetryCount)
	assert.Equal(t, "storage unavailable", failed.Error)
}

func TestQueue_PermanentFailureIsNotRetried(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	queue := NewQueue(10, store, WithWorkers(1), WithRetryBackoff(time.Millisecond))
	defer queue.Close()

	var calls atomic.Int32
	require.NoError(t, queue.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		calls.Add(1)
		return fmt.Errorf("%w: input missing", jobs.ErrPermanent)
	}))

	job := &jobs.ReportJob{InputURI: "missing.csv"}
	require.NoError(t, queue.PublishReport(ctx, job))

	failed := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	assert.Equal(t, 0, failed.RetryCount)
	assert.Equal(t, int32(1), calls.Load())
}

func TestQueue_ClosedQueueRejectsWork(t *testing.T) {
	queue := NewQueue(1, NewStore())
	require.NoError(t, queue.Stop(context.Background()))
	require.NoError(t, queue.Stop(context.Background()))

	assert.Error(t, queue.PublishReport(context.Background(), &jobs.ReportJob{}))
	assert.Error(t, queue.Start(context.Background(), func(ctx context.Context, job jobs.Job) error { return nil }))
}
