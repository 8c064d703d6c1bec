// Package postgres implements the identity store on PostgreSQL. Store methods
// run against the pool by default and join the transaction carried in context
// when one is present, so the same methods serve both single requests and
// savepoint-isolated batches.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"gsid-registry/internal/identity/models"
	"gsid-registry/pkg/domain"
	"gsid-registry/pkg/platform/sentinel"
	txcontext "gsid-registry/pkg/platform/tx"

	_ "embed"
)

//go:embed schema.sql
var schema string

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// Store is the PostgreSQL-backed TxStore.
type Store struct {
	db *sql.DB
}

// New wraps an open connection pool.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate applies the registry schema. Statements are idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// translateError maps driver constraint failures onto the store sentinels the
// engine keys its retry-on-conflict rule off.
func translateError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			return fmt.Errorf("%s: %w", pqErr.Constraint, sentinel.ErrConflict)
		case pqForeignKeyViolation:
			return fmt.Errorf("%s: %w", pqErr.Constraint, sentinel.ErrNotFound)
		}
	}
	return err
}

func (s *Store) GetMapping(ctx context.Context, centerID domain.CenterID, localSubjectID string, identifierType domain.IdentifierType) (*models.LocalIdentifier, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT center_id, local_subject_id, identifier_type, gsid, created_at
		FROM local_identifiers
		WHERE center_id = $1 AND local_subject_id = $2 AND identifier_type = $3`,
		int(centerID), localSubjectID, string(identifierType))
	return scanMapping(row)
}

func (s *Store) FindMappings(ctx context.Context, localSubjectID string, identifierType domain.IdentifierType) ([]models.LocalIdentifier, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT center_id, local_subject_id, identifier_type, gsid, created_at
		FROM local_identifiers
		WHERE local_subject_id = $1 AND identifier_type = $2
		ORDER BY center_id`,
		localSubjectID, string(identifierType))
	if err != nil {
		return nil, fmt.Errorf("find mappings: %w", err)
	}
	return collectMappings(rows)
}

func (s *Store) ListMappingsByGSID(ctx context.Context, gsid domain.GSID) ([]models.LocalIdentifier, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT center_id, local_subject_id, identifier_type, gsid, created_at
		FROM local_identifiers
		WHERE gsid = $1
		ORDER BY center_id, local_subject_id`,
		gsid.String())
	if err != nil {
		return nil, fmt.Errorf("list mappings: %w", err)
	}
	return collectMappings(rows)
}

func (s *Store) InsertMapping(ctx context.Context, mapping *models.LocalIdentifier) error {
	createdAt := mapping.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO local_identifiers (center_id, local_subject_id, identifier_type, gsid, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		int(mapping.CenterID), mapping.LocalSubjectID, string(mapping.IdentifierType), mapping.GSID.String(), createdAt)
	if err != nil {
		return fmt.Errorf("insert mapping: %w", translateError(err))
	}
	return nil
}

func (s *Store) PromoteMappingCenter(ctx context.Context, localSubjectID string, identifierType domain.IdentifierType, newCenter domain.CenterID) error {
	if !newCenter.IsKnown() {
		return fmt.Errorf("promotion target must be a known center: %w", sentinel.ErrInvalidState)
	}
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE local_identifiers
		SET center_id = $3
		WHERE center_id = $4 AND local_subject_id = $1 AND identifier_type = $2`,
		localSubjectID, string(identifierType), int(newCenter), int(domain.CenterUnknown))
	if err != nil {
		return fmt.Errorf("promote mapping: %w", translateError(err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("promote mapping: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("mapping under unknown center: %w", sentinel.ErrNotFound)
	}
	return nil
}

func (s *Store) GetIdentity(ctx context.Context, gsid domain.GSID) (*models.Identity, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT gsid, center_id, registration_year, control, withdrawn, flagged_for_review, review_notes, created_at, updated_at
		FROM identities
		WHERE gsid = $1`,
		gsid.String())
	return scanIdentity(row)
}

func (s *Store) InsertIdentity(ctx context.Context, identity *models.Identity) error {
	now := time.Now()
	createdAt := identity.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	updatedAt := identity.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = now
	}
	var year sql.NullInt64
	if identity.RegistrationYear != nil {
		year = sql.NullInt64{Int64: int64(*identity.RegistrationYear), Valid: true}
	}
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO identities (gsid, center_id, registration_year, control, withdrawn, flagged_for_review, review_notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		identity.GSID.String(), int(identity.CenterID), year, identity.Control,
		identity.Withdrawn, identity.FlaggedForReview, identity.ReviewNotes, createdAt, updatedAt)
	if err != nil {
		return fmt.Errorf("insert identity: %w", translateError(err))
	}
	return nil
}

func (s *Store) UpdateIdentityCenter(ctx context.Context, gsid domain.GSID, centerID domain.CenterID) error {
	return s.updateIdentity(ctx, gsid, `center_id = $2`, int(centerID))
}

func (s *Store) SetWithdrawn(ctx context.Context, gsid domain.GSID, withdrawn bool) error {
	return s.updateIdentity(ctx, gsid, `withdrawn = $2`, withdrawn)
}

func (s *Store) SetReviewFlag(ctx context.Context, gsid domain.GSID, notes string) error {
	return s.updateIdentity(ctx, gsid, `flagged_for_review = TRUE, review_notes = $2`, notes)
}

func (s *Store) ClearReviewFlag(ctx context.Context, gsid domain.GSID, notes string) error {
	return s.updateIdentity(ctx, gsid, `flagged_for_review = FALSE, review_notes = $2`, notes)
}

func (s *Store) updateIdentity(ctx context.Context, gsid domain.GSID, set string, arg any) error {
	res, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE identities SET `+set+`, updated_at = now() WHERE gsid = $1`,
		gsid.String(), arg)
	if err != nil {
		return fmt.Errorf("update identity: %w", translateError(err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update identity: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("identity %s: %w", gsid, sentinel.ErrNotFound)
	}
	return nil
}

func (s *Store) ListReviewCases(ctx context.Context) ([]models.ReviewCase, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT gsid, review_notes, center_id, withdrawn, created_at
		FROM identities
		WHERE flagged_for_review
		ORDER BY created_at, gsid`)
	if err != nil {
		return nil, fmt.Errorf("list review cases: %w", err)
	}
	defer rows.Close()

	var cases []models.ReviewCase
	for rows.Next() {
		var rc models.ReviewCase
		var gsid string
		var center int
		if err := rows.Scan(&gsid, &rc.ReviewNotes, &center, &rc.Withdrawn, &rc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan review case: %w", err)
		}
		rc.GSID = domain.GSID(gsid)
		rc.CenterID = domain.CenterID(center)
		cases = append(cases, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list review cases: %w", err)
	}

	for i := range cases {
		mappings, err := s.ListMappingsByGSID(ctx, cases[i].GSID)
		if err != nil {
			return nil, err
		}
		for _, m := range mappings {
			cases[i].LocalIdentifiers = append(cases[i].LocalIdentifiers, models.ReviewLocalIdentifier{
				CenterID:       m.CenterID,
				LocalSubjectID: m.LocalSubjectID,
				IdentifierType: m.IdentifierType,
			})
		}
	}
	return cases, nil
}

func (s *Store) FindAlias(ctx context.Context, alias string) (*models.Alias, error) {
	var a models.Alias
	var gsid string
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT alias, gsid FROM aliases WHERE alias = $1`, alias).Scan(&a.Alias, &gsid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find alias: %w", err)
	}
	a.GSID = domain.GSID(gsid)
	return &a, nil
}

func (s *Store) UpsertAlias(ctx context.Context, alias models.Alias) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO aliases (alias, gsid) VALUES ($1, $2)
		ON CONFLICT (alias) DO UPDATE SET gsid = EXCLUDED.gsid`,
		alias.Alias, alias.GSID.String())
	if err != nil {
		return fmt.Errorf("upsert alias: %w", translateError(err))
	}
	return nil
}

func (s *Store) AppendLogEntry(ctx context.Context, entry *models.ResolutionLogEntry) error {
	id := entry.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	var matched sql.NullString
	if entry.MatchedGSID != "" {
		matched = sql.NullString{String: entry.MatchedGSID.String(), Valid: true}
	}
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO resolution_log
			(id, input_center_id, input_local_id, matched_gsid, action, match_strategy,
			 confidence, requires_review, review_reason, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		id, int(entry.InputCenterID), entry.InputLocalID, matched, string(entry.Action),
		string(entry.MatchStrategy), entry.Confidence, entry.RequiresReview,
		entry.ReviewReason, entry.CreatedBy, createdAt)
	if err != nil {
		return fmt.Errorf("append log entry: %w", translateError(err))
	}
	return nil
}

func (s *Store) ListLogEntries(ctx context.Context, matchedGSID domain.GSID) ([]models.ResolutionLogEntry, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, input_center_id, input_local_id, matched_gsid, action, match_strategy,
		       confidence, requires_review, review_reason, created_by, created_at,
		       reviewed_by, reviewed_at, resolution_notes
		FROM resolution_log
		WHERE matched_gsid = $1
		ORDER BY created_at`,
		matchedGSID.String())
	if err != nil {
		return nil, fmt.Errorf("list log entries: %w", err)
	}
	defer rows.Close()

	var entries []models.ResolutionLogEntry
	for rows.Next() {
		var e models.ResolutionLogEntry
		var matched, reviewedBy sql.NullString
		var reviewedAt sql.NullTime
		var center int
		var action, strategy string
		if err := rows.Scan(&e.ID, &center, &e.InputLocalID, &matched, &action, &strategy,
			&e.Confidence, &e.RequiresReview, &e.ReviewReason, &e.CreatedBy, &e.CreatedAt,
			&reviewedBy, &reviewedAt, &e.ResolutionNotes); err != nil {
			return nil, fmt.Errorf("scan log entry: %w", err)
		}
		e.InputCenterID = domain.CenterID(center)
		e.Action = models.Action(action)
		e.MatchStrategy = models.MatchStrategy(strategy)
		if matched.Valid {
			e.MatchedGSID = domain.GSID(matched.String)
		}
		if reviewedBy.Valid {
			e.ReviewedBy = reviewedBy.String
		}
		if reviewedAt.Valid {
			t := reviewedAt.Time
			e.ReviewedAt = &t
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list log entries: %w", err)
	}
	return entries, nil
}

func (s *Store) AnnotateLogEntries(ctx context.Context, matchedGSID domain.GSID, reviewedBy, notes string, at time.Time) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE resolution_log
		SET reviewed_by = $2, reviewed_at = $3, resolution_notes = $4
		WHERE matched_gsid = $1 AND requires_review AND reviewed_by IS NULL`,
		matchedGSID.String(), reviewedBy, at, notes)
	if err != nil {
		return fmt.Errorf("annotate log entries: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%v: %w", err, sentinel.ErrUnavailable)
	}
	return nil
}

func scanMapping(row *sql.Row) (*models.LocalIdentifier, error) {
	var m models.LocalIdentifier
	var center int
	var idType, gsid string
	err := row.Scan(&center, &m.LocalSubjectID, &idType, &gsid, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan mapping: %w", err)
	}
	m.CenterID = domain.CenterID(center)
	m.IdentifierType = domain.IdentifierType(idType)
	m.GSID = domain.GSID(gsid)
	return &m, nil
}

func collectMappings(rows *sql.Rows) ([]models.LocalIdentifier, error) {
	defer rows.Close()
	var out []models.LocalIdentifier
	for rows.Next() {
		var m models.LocalIdentifier
		var center int
		var idType, gsid string
		if err := rows.Scan(&center, &m.LocalSubjectID, &idType, &gsid, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan mapping: %w", err)
		}
		m.CenterID = domain.CenterID(center)
		m.IdentifierType = domain.IdentifierType(idType)
		m.GSID = domain.GSID(gsid)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("collect mappings: %w", err)
	}
	return out, nil
}

func scanIdentity(row *sql.Row) (*models.Identity, error) {
	var identity models.Identity
	var gsid string
	var center int
	var year sql.NullInt64
	err := row.Scan(&gsid, &center, &year, &identity.Control, &identity.Withdrawn,
		&identity.FlaggedForReview, &identity.ReviewNotes, &identity.CreatedAt, &identity.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan identity: %w", err)
	}
	identity.GSID = domain.GSID(gsid)
	identity.CenterID = domain.CenterID(center)
	if year.Valid {
		y := int(year.Int64)
		identity.RegistrationYear = &y
	}
	return &identity, nil
}
