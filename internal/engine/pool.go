package engine

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// WorkerPool runs tasks on a bounded set of goroutines that do not inherit
// the submitter's context. Go hands the submitter's scope binding to each
// task through a context derived from the pool's own base, so work fanned
// out from a captured or replayed request keeps recording into (or replaying
// from) the same scope. The binding never outlives the task.
type WorkerPool struct {
	ec   *ExecutionContext
	g    *errgroup.Group
	base context.Context
}

// NewWorkerPool creates a pool running at most size tasks at once. Tasks
// receive a context derived from base; the first task error cancels it.
func NewWorkerPool(base context.Context, ec *ExecutionContext, size int) *WorkerPool {
	g, gctx := errgroup.WithContext(base)
	if size > 0 {
		g.SetLimit(size)
	}
	return &WorkerPool{ec: ec, g: g, base: gctx}
}

// Go submits task. It blocks while size tasks are already running.
func (p *WorkerPool) Go(submitter context.Context, task func(context.Context) error) {
	p.g.Go(func() error {
		return task(p.ec.PropagateTo(submitter, p.base))
	})
}

// Wait blocks until every submitted task returns and reports the first error.
func (p *WorkerPool) Wait() error {
	return p.g.Wait()
}
