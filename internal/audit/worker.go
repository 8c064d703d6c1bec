package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Producer delivers one audit payload to the downstream sink.
type Producer interface {
	Produce(ctx context.Context, key string, payload []byte) error
}

// Worker drains the outbox to the producer on an interval. Rows that fail to
// publish stay pending and are retried on the next tick.
type Worker struct {
	outbox    Outbox
	producer  Producer
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

func NewWorker(outbox Outbox, producer Producer, logger *slog.Logger, interval time.Duration) *Worker {
	return &Worker{
		outbox:    outbox,
		producer:  producer,
		logger:    logger,
		interval:  interval,
		batchSize: 100,
	}
}

func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Drain(ctx); err != nil {
				w.logger.ErrorContext(ctx, "audit outbox drain failed", "error", err)
			}
		}
	}
}

// Drain publishes every currently pending event. Exported so tests and
// shutdown paths can flush without the ticker.
func (w *Worker) Drain(ctx context.Context) error {
	events, err := w.outbox.Pending(ctx, w.batchSize)
	if err != nil {
		return err
	}
	published := make([]uuid.UUID, 0, len(events))
	for _, event := range events {
		if err := w.producer.Produce(ctx, event.ID.String(), event.Payload); err != nil {
			w.logger.WarnContext(ctx, "audit event publish failed",
				"event_id", event.ID,
				"error", err,
			)
			continue
		}
		published = append(published, event.ID)
	}
	return w.outbox.MarkPublished(ctx, published)
}
