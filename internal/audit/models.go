package audit

import (
	"time"

	"github.com/google/uuid"
)

// Event is emitted from the resolution engine for every decision. It is
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID             uuid.UUID `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	Action         string    `json:"action"`
	MatchStrategy  string    `json:"match_strategy"`
	GSID           string    `json:"gsid,omitempty"`
	CenterID       int       `json:"center_id"`
	LocalSubjectID string    `json:"local_subject_id"`
	RequiresReview bool      `json:"requires_review"`
	ReviewReason   string    `json:"review_reason,omitempty"`
	Actor          string    `json:"actor,omitempty"`
}

// StoredEvent is one outbox row awaiting publication.
type StoredEvent struct {
	ID      uuid.UUID
	Payload []byte
}
