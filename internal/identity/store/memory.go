package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"gsid-registry/internal/identity/models"
	"gsid-registry/pkg/domain"
	"gsid-registry/pkg/platform/sentinel"
)

type mappingKey struct {
	centerID       domain.CenterID
	localSubjectID string
	identifierType domain.IdentifierType
}

type memoryState struct {
	identities map[domain.GSID]models.Identity
	mappings   map[mappingKey]models.LocalIdentifier
	aliases    map[string]domain.GSID
	log        []models.ResolutionLogEntry
}

func newMemoryState() memoryState {
	return memoryState{
		identities: make(map[domain.GSID]models.Identity),
		mappings:   make(map[mappingKey]models.LocalIdentifier),
		aliases:    make(map[string]domain.GSID),
	}
}

func (s memoryState) clone() memoryState {
	c := memoryState{
		identities: make(map[domain.GSID]models.Identity, len(s.identities)),
		mappings:   make(map[mappingKey]models.LocalIdentifier, len(s.mappings)),
		aliases:    make(map[string]domain.GSID, len(s.aliases)),
		log:        make([]models.ResolutionLogEntry, len(s.log)),
	}
	for k, v := range s.identities {
		c.identities[k] = v
	}
	for k, v := range s.mappings {
		c.mappings[k] = v
	}
	for k, v := range s.aliases {
		c.aliases[k] = v
	}
	copy(c.log, s.log)
	return c
}

// Memory is the in-memory TxStore used by unit tests. Transactions and
// savepoints are implemented by snapshot and restore; txMu serializes
// transactions so savepoint ordering matches the Postgres store's
// single-connection batches.
type Memory struct {
	mu    sync.RWMutex
	txMu  sync.Mutex
	state memoryState
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{state: newMemoryState()}
}

func (m *Memory) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snap := m.state.clone()
	m.mu.Unlock()

	if err := fn(ctx); err != nil {
		m.mu.Lock()
		m.state = snap
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *Memory) Savepoint(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	snap := m.state.clone()
	m.mu.Unlock()

	if err := fn(ctx); err != nil {
		m.mu.Lock()
		m.state = snap
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *Memory) GetMapping(_ context.Context, centerID domain.CenterID, localSubjectID string, identifierType domain.IdentifierType) (*models.LocalIdentifier, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mapping, ok := m.state.mappings[mappingKey{centerID, localSubjectID, identifierType}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &mapping, nil
}

func (m *Memory) FindMappings(_ context.Context, localSubjectID string, identifierType domain.IdentifierType) ([]models.LocalIdentifier, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.LocalIdentifier
	for k, v := range m.state.mappings {
		if k.localSubjectID == localSubjectID && k.identifierType == identifierType {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CenterID < out[j].CenterID })
	return out, nil
}

func (m *Memory) ListMappingsByGSID(_ context.Context, gsid domain.GSID) ([]models.LocalIdentifier, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.LocalIdentifier
	for _, v := range m.state.mappings {
		if v.GSID == gsid {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CenterID != out[j].CenterID {
			return out[i].CenterID < out[j].CenterID
		}
		return out[i].LocalSubjectID < out[j].LocalSubjectID
	})
	return out, nil
}

func (m *Memory) InsertMapping(_ context.Context, mapping *models.LocalIdentifier) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := mappingKey{mapping.CenterID, mapping.LocalSubjectID, mapping.IdentifierType}
	if _, exists := m.state.mappings[key]; exists {
		return fmt.Errorf("mapping %v: %w", key, sentinel.ErrConflict)
	}
	if _, exists := m.state.identities[mapping.GSID]; !exists {
		return fmt.Errorf("identity %s: %w", mapping.GSID, sentinel.ErrNotFound)
	}
	stored := *mapping
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	m.state.mappings[key] = stored
	return nil
}

func (m *Memory) PromoteMappingCenter(_ context.Context, localSubjectID string, identifierType domain.IdentifierType, newCenter domain.CenterID) error {
	if !newCenter.IsKnown() {
		return fmt.Errorf("promotion target must be a known center: %w", sentinel.ErrInvalidState)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	oldKey := mappingKey{domain.CenterUnknown, localSubjectID, identifierType}
	mapping, ok := m.state.mappings[oldKey]
	if !ok {
		return fmt.Errorf("mapping under unknown center: %w", sentinel.ErrNotFound)
	}
	newKey := mappingKey{newCenter, localSubjectID, identifierType}
	if _, exists := m.state.mappings[newKey]; exists {
		return fmt.Errorf("mapping %v: %w", newKey, sentinel.ErrConflict)
	}
	delete(m.state.mappings, oldKey)
	mapping.CenterID = newCenter
	m.state.mappings[newKey] = mapping
	return nil
}

func (m *Memory) GetIdentity(_ context.Context, gsid domain.GSID) (*models.Identity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	identity, ok := m.state.identities[gsid]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &identity, nil
}

func (m *Memory) InsertIdentity(_ context.Context, identity *models.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.state.identities[identity.GSID]; exists {
		return fmt.Errorf("identity %s: %w", identity.GSID, sentinel.ErrConflict)
	}
	stored := *identity
	now := time.Now()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = now
	}
	m.state.identities[identity.GSID] = stored
	return nil
}

func (m *Memory) UpdateIdentityCenter(_ context.Context, gsid domain.GSID, centerID domain.CenterID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	identity, ok := m.state.identities[gsid]
	if !ok {
		return sentinel.ErrNotFound
	}
	identity.CenterID = centerID
	identity.UpdatedAt = time.Now()
	m.state.identities[gsid] = identity
	return nil
}

func (m *Memory) SetWithdrawn(_ context.Context, gsid domain.GSID, withdrawn bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	identity, ok := m.state.identities[gsid]
	if !ok {
		return sentinel.ErrNotFound
	}
	identity.Withdrawn = withdrawn
	identity.UpdatedAt = time.Now()
	m.state.identities[gsid] = identity
	return nil
}

func (m *Memory) SetReviewFlag(_ context.Context, gsid domain.GSID, notes string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	identity, ok := m.state.identities[gsid]
	if !ok {
		return sentinel.ErrNotFound
	}
	identity.FlaggedForReview = true
	identity.ReviewNotes = notes
	identity.UpdatedAt = time.Now()
	m.state.identities[gsid] = identity
	return nil
}

func (m *Memory) ClearReviewFlag(_ context.Context, gsid domain.GSID, notes string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	identity, ok := m.state.identities[gsid]
	if !ok {
		return sentinel.ErrNotFound
	}
	identity.FlaggedForReview = false
	identity.ReviewNotes = notes
	identity.UpdatedAt = time.Now()
	m.state.identities[gsid] = identity
	return nil
}

func (m *Memory) ListReviewCases(_ context.Context) ([]models.ReviewCase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var cases []models.ReviewCase
	for _, identity := range m.state.identities {
		if !identity.FlaggedForReview {
			continue
		}
		rc := models.ReviewCase{
			GSID:        identity.GSID,
			ReviewNotes: identity.ReviewNotes,
			CenterID:    identity.CenterID,
			Withdrawn:   identity.Withdrawn,
			CreatedAt:   identity.CreatedAt,
		}
		for _, mapping := range m.state.mappings {
			if mapping.GSID == identity.GSID {
				rc.LocalIdentifiers = append(rc.LocalIdentifiers, models.ReviewLocalIdentifier{
					CenterID:       mapping.CenterID,
					LocalSubjectID: mapping.LocalSubjectID,
					IdentifierType: mapping.IdentifierType,
				})
			}
		}
		sort.Slice(rc.LocalIdentifiers, func(i, j int) bool {
			return rc.LocalIdentifiers[i].LocalSubjectID < rc.LocalIdentifiers[j].LocalSubjectID
		})
		cases = append(cases, rc)
	}
	sort.Slice(cases, func(i, j int) bool {
		if !cases[i].CreatedAt.Equal(cases[j].CreatedAt) {
			return cases[i].CreatedAt.Before(cases[j].CreatedAt)
		}
		return cases[i].GSID < cases[j].GSID
	})
	return cases, nil
}

func (m *Memory) FindAlias(_ context.Context, alias string) (*models.Alias, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	gsid, ok := m.state.aliases[alias]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &models.Alias{Alias: alias, GSID: gsid}, nil
}

func (m *Memory) UpsertAlias(_ context.Context, alias models.Alias) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.aliases[alias.Alias] = alias.GSID
	return nil
}

func (m *Memory) AppendLogEntry(_ context.Context, entry *models.ResolutionLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *entry
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	m.state.log = append(m.state.log, stored)
	return nil
}

func (m *Memory) ListLogEntries(_ context.Context, matchedGSID domain.GSID) ([]models.ResolutionLogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.ResolutionLogEntry
	for _, entry := range m.state.log {
		if entry.MatchedGSID == matchedGSID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (m *Memory) AnnotateLogEntries(_ context.Context, matchedGSID domain.GSID, reviewedBy, notes string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.state.log {
		entry := &m.state.log[i]
		if entry.MatchedGSID == matchedGSID && entry.RequiresReview && entry.ReviewedBy == "" {
			entry.ReviewedBy = reviewedBy
			reviewedAt := at
			entry.ReviewedAt = &reviewedAt
			entry.ResolutionNotes = notes
		}
	}
	return nil
}

func (m *Memory) Ping(context.Context) error { return nil }
