package batchops

import (
	"context"
	"log/slog"
	"time"
)

// Relay moves pending outbox entries to the execution queue. Publishing and
// marking are separate steps, so a crash in between re-publishes the entry:
// at-least-once, never lost.
type Relay struct {
	repo  Repository
	queue Queue
	log   *slog.Logger

	interval time.Duration
	batch    int
}

func NewRelay(repo Repository, queue Queue, log *slog.Logger) *Relay {
	return &Relay{
		repo:     repo,
		queue:    queue,
		log:      log,
		interval: time.Second,
		batch:    100,
	}
}

// Run polls until ctx is canceled.
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if err := r.Drain(ctx); err != nil && ctx.Err() == nil {
			r.log.Error("outbox drain failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Drain publishes all currently pending entries. Exposed separately so tests
// and synchronous callers can flush the outbox without the polling loop.
func (r *Relay) Drain(ctx context.Context) error {
	for {
		pending, err := r.repo.PendingOutbox(ctx, r.batch)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			return nil
		}
		for _, entry := range pending {
			if err := r.queue.Publish(ctx, entry.BatchOperationID); err != nil {
				return err
			}
			if err := r.repo.MarkDispatched(ctx, entry.ID); err != nil {
				return err
			}
		}
	}
}
