package service

import (
	"context"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Dispatcher runs background jobs with bounded concurrency. Submission is
// fire-and-forget: Go returns immediately and jobs past the limit queue until
// a slot frees. Panics in jobs are recovered and logged so one bad task
// cannot take down the process.
type Dispatcher struct {
	group   *errgroup.Group
	ctx     context.Context
	cancel  context.CancelFunc
	pending sync.WaitGroup
}

// NewDispatcher creates a dispatcher that runs at most limit jobs at once.
func NewDispatcher(ctx context.Context, limit int) *Dispatcher {
	if limit <= 0 {
		limit = 1
	}
	ctx, cancel := context.WithCancel(ctx)
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(limit)
	return &Dispatcher{
		group:  group,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Go schedules a job and returns without waiting for a free slot.
func (d *Dispatcher) Go(name string, fn func(ctx context.Context) error) {
	d.pending.Add(1)
	go func() {
		defer d.pending.Done()
		d.group.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("Job %s panicked: %v", name, r)
				}
			}()
			if jobErr := fn(d.ctx); jobErr != nil {
				log.Printf("Job %s failed: %v", name, jobErr)
			}
			// Job errors are recorded on their records; don't cancel siblings
			return nil
		})
	}()
}

// Shutdown waits for queued and in-flight jobs to finish, then releases the
// context.
func (d *Dispatcher) Shutdown() {
	d.Wait()
	d.cancel()
}

// Wait blocks until all scheduled jobs have finished.
func (d *Dispatcher) Wait() {
	d.pending.Wait()
	d.group.Wait()
}
