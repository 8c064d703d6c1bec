// Package store defines the persistence contract for the identity registry.
// Two implementations exist: an in-memory store for unit tests and a
// PostgreSQL store for production.
package store

import (
	"context"
	"time"

	"gsid-registry/internal/identity/models"
	"gsid-registry/pkg/domain"
)

// Store is the record-level persistence surface. Implementations return
// sentinel.ErrNotFound for missing records and sentinel.ErrConflict when a
// uniqueness constraint rejects a write; the constraint is the authoritative
// race guard, and the engine treats a conflict as a signal to re-resolve.
type Store interface {
	// GetMapping looks up one mapping by its natural key.
	GetMapping(ctx context.Context, centerID domain.CenterID, localSubjectID string, identifierType domain.IdentifierType) (*models.LocalIdentifier, error)
	// FindMappings returns every mapping for (localSubjectID, identifierType)
	// regardless of center, ordered by center id. The multi-candidate path
	// matches center-free and records each hit's own center.
	FindMappings(ctx context.Context, localSubjectID string, identifierType domain.IdentifierType) ([]models.LocalIdentifier, error)
	ListMappingsByGSID(ctx context.Context, gsid domain.GSID) ([]models.LocalIdentifier, error)
	InsertMapping(ctx context.Context, mapping *models.LocalIdentifier) error
	// PromoteMappingCenter rewrites a mapping's center from CenterUnknown to
	// newCenter. The one-directional rule is enforced here: a mapping not
	// currently under CenterUnknown is never touched and the call reports
	// sentinel.ErrInvalidState.
	PromoteMappingCenter(ctx context.Context, localSubjectID string, identifierType domain.IdentifierType, newCenter domain.CenterID) error

	GetIdentity(ctx context.Context, gsid domain.GSID) (*models.Identity, error)
	InsertIdentity(ctx context.Context, identity *models.Identity) error
	UpdateIdentityCenter(ctx context.Context, gsid domain.GSID, centerID domain.CenterID) error
	// SetWithdrawn marks or unmarks an identity as withdrawn. Withdrawal is
	// driven by the consent system; the engine only reads the flag.
	SetWithdrawn(ctx context.Context, gsid domain.GSID, withdrawn bool) error
	SetReviewFlag(ctx context.Context, gsid domain.GSID, notes string) error
	ClearReviewFlag(ctx context.Context, gsid domain.GSID, notes string) error
	ListReviewCases(ctx context.Context) ([]models.ReviewCase, error)

	FindAlias(ctx context.Context, alias string) (*models.Alias, error)
	// UpsertAlias seeds reference aliases at startup; ordinary registration
	// never creates aliases.
	UpsertAlias(ctx context.Context, alias models.Alias) error

	AppendLogEntry(ctx context.Context, entry *models.ResolutionLogEntry) error
	ListLogEntries(ctx context.Context, matchedGSID domain.GSID) ([]models.ResolutionLogEntry, error)
	// AnnotateLogEntries stamps reviewer attribution onto the un-reviewed
	// review-required entries for a GSID.
	AnnotateLogEntries(ctx context.Context, matchedGSID domain.GSID, reviewedBy, notes string, at time.Time) error

	Ping(ctx context.Context) error
}

// Tx provides the transactional discipline the batch orchestrator relies on.
type Tx interface {
	// RunInTx executes fn inside one transaction; any error rolls the whole
	// transaction back.
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
	// Savepoint executes fn inside a nested rollback point of the enclosing
	// transaction. On error only fn's writes are discarded; the enclosing
	// transaction stays usable. This is the apply-or-isolate primitive.
	Savepoint(ctx context.Context, fn func(ctx context.Context) error) error
}

// TxStore is what the resolution engine is wired with.
type TxStore interface {
	Store
	Tx
}
