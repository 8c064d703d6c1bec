package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryOutbox keeps audit events in memory. Used by unit tests and by
// deployments that run without a database-backed outbox.
type MemoryOutbox struct {
	mu        sync.Mutex
	events    []StoredEvent
	published map[uuid.UUID]time.Time
}

func NewMemoryOutbox() *MemoryOutbox {
	return &MemoryOutbox{published: make(map[uuid.UUID]time.Time)}
}

func (o *MemoryOutbox) Append(_ context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, StoredEvent{ID: event.ID, Payload: payload})
	return nil
}

func (o *MemoryOutbox) Pending(_ context.Context, limit int) ([]StoredEvent, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []StoredEvent
	for _, e := range o.events {
		if _, done := o.published[e.ID]; done {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (o *MemoryOutbox) MarkPublished(_ context.Context, ids []uuid.UUID) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := time.Now()
	for _, id := range ids {
		o.published[id] = now
	}
	return nil
}

// All returns every appended event, published or not. Test helper.
func (o *MemoryOutbox) All() []StoredEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]StoredEvent{}, o.events...)
}
