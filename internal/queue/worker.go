package queue

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"image-pipeline/internal/metrics"
)

// ProcessFunc handles one record id. It must not be re-entered: the worker
// calls it for one id at a time, in enqueue order.
type ProcessFunc func(ctx context.Context, id uuid.UUID) error

// Worker is the single background consumer of a Queue. Processing is
// serialized: exactly one in-flight ProcessFunc call at any time.
type Worker struct {
	q       *Queue
	process ProcessFunc
	log     *slog.Logger
}

func NewWorker(q *Queue, process ProcessFunc, log *slog.Logger) *Worker {
	return &Worker{q: q, process: process, log: log}
}

// Run drains the queue until it is closed. An error or panic while
// processing one id never stops consumption of subsequent ids.
func (w *Worker) Run(ctx context.Context) {
	w.log.Info("background worker started")
	for {
		id, ok := w.q.Dequeue()
		if !ok {
			w.log.Info("background worker stopped")
			return
		}
		metrics.QueueDepth.Set(float64(w.q.Len()))
		w.runOne(ctx, id)
	}
}

func (w *Worker) runOne(ctx context.Context, id uuid.UUID) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("panic while processing image", "id", id, "panic", r)
		}
	}()
	if err := w.process(ctx, id); err != nil {
		w.log.Error("error processing image", "id", id, "err", err)
	}
}
