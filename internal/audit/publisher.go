// Package audit captures structured decision events through a transactional
// outbox: the engine appends events next to its mutations, a background worker
// drains the outbox to Kafka. Publishing is best-effort relative to the
// primary decision path.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Outbox is the persistence surface for audit events.
type Outbox interface {
	Append(ctx context.Context, event Event) error
	Pending(ctx context.Context, limit int) ([]StoredEvent, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID) error
}

// Publisher writes audit events to the outbox. It is append-only; draining is
// the worker's job.
type Publisher struct {
	outbox Outbox
}

func NewPublisher(outbox Outbox) *Publisher {
	return &Publisher{outbox: outbox}
}

func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	return p.outbox.Append(ctx, event)
}
