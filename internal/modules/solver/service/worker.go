package service

import (
	"context"

	"cuckoohost/internal/modules/solver/domain"
	solverout "cuckoohost/internal/modules/solver/port/out"
	"cuckoohost/internal/platform/contract"
)

type worker struct {
	engine    *Engine
	device    *domain.Device
	workspace solverout.Workspace
}

func (w *worker) run(ctx context.Context) error {
	e := w.engine
	for {
		select {
		case <-ctx.Done():
			return nil
		case job := <-e.input:
			if ctx.Err() != nil {
				w.requeue(job)
				return nil
			}
			if !w.process(ctx, job) {
				return nil
			}
		}
	}
}

// process searches one job. It returns false once the run is cancelled.
func (w *worker) process(ctx context.Context, job contract.Job) bool {
	e := w.engine
	w.device.Begin(e.clock.Now())
	var sol contract.Solution
	found, err := w.workspace.Search(ctx, job.Header, &sol.Cycle)
	w.device.End(e.clock.Now())

	switch {
	case err != nil && ctx.Err() != nil, err == nil && !found && ctx.Err() != nil:
		w.device.Abandoned()
		e.logger.Debug("job abandoned", "nonce", job.Nonce.String())
		return false
	case err != nil:
		w.device.Errored()
		e.logger.Warn("search failed", "nonce", job.Nonce.String(), "error", err)
		return true
	case !found:
		w.device.Iteration()
		return true
	}

	// A cycle found as stop lands is still delivered when the output queue
	// has room.
	sol.Nonce = job.Nonce
	select {
	case e.output <- sol:
		w.solved(job)
		return ctx.Err() == nil
	default:
	}
	select {
	case e.output <- sol:
		w.solved(job)
		return true
	case <-ctx.Done():
		w.device.Abandoned()
		e.logger.Debug("solution dropped on stop", "nonce", job.Nonce.String())
		return false
	}
}

func (w *worker) solved(job contract.Job) {
	w.device.Iteration()
	w.device.Found(w.engine.clock.Now())
	w.engine.logger.Debug("solution queued", "nonce", job.Nonce.String())
}

// requeue returns a job taken after cancellation, counting it abandoned when
// the queue has filled up in the meantime.
func (w *worker) requeue(job contract.Job) {
	select {
	case w.engine.input <- job:
	default:
		w.device.Abandoned()
	}
}
