package notification

import (
	"context"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Worker drains the outbox at a fixed interval. Send failures are marked
// for retry and logged; the worker itself only stops on context
// cancellation.
type Worker struct {
	outbox Outbox
	sender Sender

	interval  time.Duration
	batchSize int
}

// NewWorker creates an outbox Worker. Zero interval and batch size fall
// back to 15s and 20.
func NewWorker(outbox Outbox, sender Sender, interval time.Duration, batchSize int) *Worker {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 20
	}
	return &Worker{outbox: outbox, sender: sender, interval: interval, batchSize: batchSize}
}

// Run drains the outbox until ctx is cancelled. It drains once immediately
// so pending entries do not wait a full interval after startup.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.drain(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

func (w *Worker) drain(ctx context.Context) {
	lg := zctx.From(ctx)

	entries, err := w.outbox.DequeuePending(ctx, w.batchSize)
	if err != nil {
		lg.Error("Dequeue pending notifications", zap.Error(err))
		return
	}

	for _, entry := range entries {
		if err := w.sender.Send(ctx, entry.Render()); err != nil {
			lg.Warn("Send confirmation",
				zap.String("outbox_id", entry.ID),
				zap.Int("attempts", entry.Attempts+1),
				zap.Error(err),
			)
			if err := w.outbox.MarkFailed(ctx, entry.ID, err.Error()); err != nil {
				lg.Error("Mark notification failed", zap.String("outbox_id", entry.ID), zap.Error(err))
			}
			continue
		}
		if err := w.outbox.MarkSent(ctx, entry.ID); err != nil {
			// The email went out but the row stays pending; the next
			// drain re-sends it. At-least-once, not exactly-once.
			lg.Error("Mark notification sent", zap.String("outbox_id", entry.ID), zap.Error(err))
		}
	}
}
