package batchops

import (
	"context"
	"errors"
	"log/slog"

	"callout-engine/internal/apperrors"
	"callout-engine/internal/metrics"
)

// Worker consumes queued batch-operation IDs and runs them to completion.
// Delivery is at-least-once: a redelivered ID hits the start-transition
// conflict and is dropped, so each operation runs at most once per queue
// cycle.
type Worker struct {
	repo  Repository
	queue Queue
	deps  Deps
	log   *slog.Logger
}

func NewWorker(repo Repository, queue Queue, deps Deps, log *slog.Logger) *Worker {
	return &Worker{repo: repo, queue: queue, deps: deps, log: log}
}

// Run blocks consuming the queue until ctx is canceled.
func (w *Worker) Run(ctx context.Context) {
	for {
		id, err := w.queue.Consume(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.log.Error("consume failed", "error", err)
			continue
		}
		w.Process(ctx, id)
	}
}

// Process runs one operation end to end. Execution errors leave the
// operation in running so an operator can inspect and requeue it.
func (w *Worker) Process(ctx context.Context, id string) {
	log := w.log.With("batch_operation_id", id)

	op, err := w.repo.Find(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			log.Warn("queued batch operation no longer exists")
			return
		}
		log.Error("find failed", "error", err)
		return
	}

	if err := op.AttemptEvent(EventStart); err != nil {
		// Stale or duplicate delivery; the operation already moved on.
		log.Info("dropping delivery", "status", op.Status, "reason", err)
		metrics.BatchOperationProcessed(op.Type, "dropped")
		return
	}
	if op, err = w.repo.Update(ctx, op); err != nil {
		log.Error("mark running failed", "error", err)
		return
	}

	variant, err := newVariant(op.Type, w.deps)
	if err != nil {
		log.Error("unknown batch operation type", "type", op.Type, "error", err)
		return
	}

	log.Info("batch operation started", "type", op.Type)
	if err := variant.Execute(ctx, &op); err != nil {
		log.Error("batch operation failed", "type", op.Type, "error", err)
		metrics.BatchOperationProcessed(op.Type, "failed")
		if _, uerr := w.repo.Update(ctx, op); uerr != nil {
			log.Error("persist after failure failed", "error", uerr)
		}
		return
	}

	if err := op.AttemptEvent(EventFinish); err != nil {
		log.Error("finish transition refused", "status", op.Status, "error", err)
		return
	}
	if _, err := w.repo.Update(ctx, op); err != nil {
		log.Error("mark finished failed", "error", err)
		return
	}
	metrics.BatchOperationProcessed(op.Type, "finished")
	log.Info("batch operation finished", "type", op.Type)
}
