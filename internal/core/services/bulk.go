package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ragbase/ragbase/internal/core/domain"
	"github.com/ragbase/ragbase/internal/core/ports/driven"
	"github.com/ragbase/ragbase/internal/core/ports/driving"
	"github.com/ragbase/ragbase/internal/logger"
)

// Ensure BulkCoordinator implements the interface.
var _ driving.JobService = (*BulkCoordinator)(nil)

// ItemFunc processes one bulk job item.
type ItemFunc func(ctx context.Context, itemID string) error

// jobHandle tracks a running job's cancellation flag and completion.
type jobHandle struct {
	cancelled atomic.Bool
	done      chan struct{}
}

// BulkCoordinator runs bulk jobs through a bounded worker pool and
// owns every mutation of the persisted job records. Jobs run detached
// from the submitting call; cancellation is cooperative - in-flight
// items complete, queued items are skipped.
type BulkCoordinator struct {
	jobStore driven.JobStore
	now      func() time.Time

	mu      sync.Mutex
	handles map[string]*jobHandle
}

// NewBulkCoordinator creates a new bulk coordinator.
func NewBulkCoordinator(jobStore driven.JobStore) *BulkCoordinator {
	return &BulkCoordinator{
		jobStore: jobStore,
		now:      time.Now,
		handles:  make(map[string]*jobHandle),
	}
}

// Submit persists a queued job and starts it in the background. The
// run function is invoked once per item with at most parallelism items
// in flight. onProgress, when non-nil, is called after every completed
// item.
func (c *BulkCoordinator) Submit(
	ctx context.Context, job *domain.BulkJob, parallelism int, run ItemFunc, onProgress driving.ProgressFunc,
) error {
	if len(job.ItemIDs) == 0 {
		return fmt.Errorf("%w: bulk job has no items", domain.ErrInvalidConfig)
	}
	if parallelism < 1 {
		parallelism = 1
	}

	job.Status = domain.JobQueued
	job.Total = len(job.ItemIDs)
	job.Processed = 0
	job.CreatedAt = c.now()
	job.UpdatedAt = job.CreatedAt
	if err := c.jobStore.SaveJob(ctx, job); err != nil {
		return fmt.Errorf("save job: %w", err)
	}

	handle := &jobHandle{done: make(chan struct{})}
	c.mu.Lock()
	c.handles[job.ID] = handle
	c.mu.Unlock()

	// The job outlives the submitting call.
	go c.runJob(context.WithoutCancel(ctx), *job, handle, parallelism, run, onProgress)
	return nil
}

// runJob executes the job's items and drives its state machine to a
// terminal status.
func (c *BulkCoordinator) runJob(
	ctx context.Context, job domain.BulkJob, handle *jobHandle, parallelism int, run ItemFunc, onProgress driving.ProgressFunc,
) {
	defer close(handle.done)
	defer func() {
		c.mu.Lock()
		delete(c.handles, job.ID)
		c.mu.Unlock()
	}()

	logger.Info("Bulk job %s: %s, %d items, parallelism %d", job.ID, job.Kind, job.Total, parallelism)

	job.Status = domain.JobRunning
	c.saveJob(ctx, &job)

	// Cancelled while still queued.
	if handle.cancelled.Load() {
		job.Status = domain.JobCancelled
		c.saveJob(ctx, &job)
		return
	}

	var (
		mu      sync.Mutex
		stopped atomic.Bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)

	for _, itemID := range job.ItemIDs {
		if handle.cancelled.Load() || stopped.Load() {
			break
		}

		itemID := itemID
		g.Go(func() error {
			if handle.cancelled.Load() || stopped.Load() {
				return nil
			}

			err := run(gctx, itemID)

			mu.Lock()
			defer mu.Unlock()
			job.Processed++
			if err != nil {
				logger.Error("Bulk job %s: item %s failed: %v", job.ID, itemID, err)
				job.FailedItems = append(job.FailedItems, domain.FailedItem{
					ItemID: itemID,
					Error:  err.Error(),
				})
				if !job.ContinueOnError {
					stopped.Store(true)
				}
			}
			c.saveJob(ctx, &job)
			if onProgress != nil {
				onProgress(job.Processed, job.Total)
			}
			return nil
		})
	}

	// Item errors are recorded, never propagated.
	_ = g.Wait()

	if handle.cancelled.Load() {
		job.Status = domain.JobCancelled
	} else {
		job.Finalise()
	}
	c.saveJob(ctx, &job)
	logger.Info("Bulk job %s finished: %s (%d/%d, %d failed)",
		job.ID, job.Status, job.Processed, job.Total, len(job.FailedItems))
}

// saveJob persists the job record, logging persistence failures rather
// than aborting the job.
func (c *BulkCoordinator) saveJob(ctx context.Context, job *domain.BulkJob) {
	job.UpdatedAt = c.now()
	if err := c.jobStore.SaveJob(ctx, job); err != nil {
		logger.Error("Bulk job %s: persist failed: %v", job.ID, err)
	}
}

// Get returns a job's current state.
func (c *BulkCoordinator) Get(ctx context.Context, jobID string) (*domain.BulkJob, error) {
	return c.jobStore.GetJob(ctx, jobID)
}

// List returns all job records, newest first.
func (c *BulkCoordinator) List(ctx context.Context) ([]domain.BulkJob, error) {
	return c.jobStore.ListJobs(ctx)
}

// Cancel requests cooperative cancellation. In-flight items complete
// and are counted; queued items are skipped. Terminal jobs cannot be
// cancelled.
func (c *BulkCoordinator) Cancel(ctx context.Context, jobID string) error {
	job, err := c.jobStore.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return fmt.Errorf("%w: job %s is %s", domain.ErrJobNotCancellable, jobID, job.Status)
	}

	c.mu.Lock()
	handle, running := c.handles[jobID]
	c.mu.Unlock()

	if running {
		handle.cancelled.Store(true)
		return nil
	}

	// Not in-process (e.g. orphaned by a crash): mark the record directly.
	job.Status = domain.JobCancelled
	c.saveJob(ctx, job)
	return nil
}

// Wait blocks until a job reaches a terminal state. Returns
// immediately for jobs this coordinator is not running.
func (c *BulkCoordinator) Wait(jobID string) {
	c.mu.Lock()
	handle, ok := c.handles[jobID]
	c.mu.Unlock()
	if ok {
		<-handle.done
	}
}
