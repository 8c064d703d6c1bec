//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"gsid-registry/internal/identity/models"
	"gsid-registry/internal/identity/store/postgres"
	"gsid-registry/pkg/domain"
	"gsid-registry/pkg/platform/sentinel"
	"gsid-registry/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.Store
	seq      int
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = postgres.New(s.postgres.DB)
	s.Require().NoError(s.store.Migrate(context.Background()))
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(),
		"resolution_log", "aliases", "local_identifiers", "identities", "audit_outbox")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) newGSID() domain.GSID {
	s.seq++
	return domain.GSID(fmt.Sprintf("0TESTSEED%07d", s.seq))
}

func (s *PostgresStoreSuite) seedIdentity(centerID domain.CenterID) domain.GSID {
	g := s.newGSID()
	err := s.store.InsertIdentity(context.Background(), &models.Identity{GSID: g, CenterID: centerID})
	s.Require().NoError(err)
	return g
}

func (s *PostgresStoreSuite) TestMappingRoundTrip() {
	ctx := context.Background()
	g := s.seedIdentity(5)

	err := s.store.InsertMapping(ctx, &models.LocalIdentifier{
		CenterID: 5, LocalSubjectID: "SUBJ-1", IdentifierType: domain.IdentifierTypePrimary, GSID: g,
	})
	s.Require().NoError(err)

	mapping, err := s.store.GetMapping(ctx, 5, "SUBJ-1", domain.IdentifierTypePrimary)
	s.Require().NoError(err)
	s.Equal(g, mapping.GSID)

	_, err = s.store.GetMapping(ctx, 5, "SUBJ-X", domain.IdentifierTypePrimary)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestNaturalKeyConflict() {
	ctx := context.Background()
	g := s.seedIdentity(5)

	mapping := &models.LocalIdentifier{
		CenterID: 5, LocalSubjectID: "SUBJ-2", IdentifierType: domain.IdentifierTypePrimary, GSID: g,
	}
	s.Require().NoError(s.store.InsertMapping(ctx, mapping))
	err := s.store.InsertMapping(ctx, mapping)
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestMappingRequiresIdentity() {
	err := s.store.InsertMapping(context.Background(), &models.LocalIdentifier{
		CenterID: 5, LocalSubjectID: "SUBJ-3", IdentifierType: domain.IdentifierTypePrimary, GSID: s.newGSID(),
	})
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestPromotionIsOneDirectional() {
	ctx := context.Background()
	g := s.seedIdentity(domain.CenterUnknown)
	s.Require().NoError(s.store.InsertMapping(ctx, &models.LocalIdentifier{
		CenterID: domain.CenterUnknown, LocalSubjectID: "SUBJ-4", IdentifierType: domain.IdentifierTypePrimary, GSID: g,
	}))

	s.Require().NoError(s.store.PromoteMappingCenter(ctx, "SUBJ-4", domain.IdentifierTypePrimary, 6))

	mapping, err := s.store.GetMapping(ctx, 6, "SUBJ-4", domain.IdentifierTypePrimary)
	s.Require().NoError(err)
	s.Equal(g, mapping.GSID)

	// No row remains under the unknown center, so a second promotion fails.
	err = s.store.PromoteMappingCenter(ctx, "SUBJ-4", domain.IdentifierTypePrimary, 9)
	s.ErrorIs(err, sentinel.ErrNotFound)

	// Zero is never a promotion target.
	err = s.store.PromoteMappingCenter(ctx, "SUBJ-4", domain.IdentifierTypePrimary, domain.CenterUnknown)
	s.ErrorIs(err, sentinel.ErrInvalidState)
}

func (s *PostgresStoreSuite) TestFindMappingsIgnoresCenter() {
	ctx := context.Background()
	g1 := s.seedIdentity(3)
	g2 := s.seedIdentity(7)
	s.Require().NoError(s.store.InsertMapping(ctx, &models.LocalIdentifier{
		CenterID: 3, LocalSubjectID: "SHARED", IdentifierType: domain.IdentifierTypePrimary, GSID: g1,
	}))
	s.Require().NoError(s.store.InsertMapping(ctx, &models.LocalIdentifier{
		CenterID: 7, LocalSubjectID: "SHARED", IdentifierType: domain.IdentifierTypePrimary, GSID: g2,
	}))

	rows, err := s.store.FindMappings(ctx, "SHARED", domain.IdentifierTypePrimary)
	s.Require().NoError(err)
	s.Require().Len(rows, 2)
	s.Equal(domain.CenterID(3), rows[0].CenterID, "ordered by center id")
	s.Equal(domain.CenterID(7), rows[1].CenterID)
}

func (s *PostgresStoreSuite) TestSavepointIsolatesFailedItem() {
	ctx := context.Background()
	g := s.seedIdentity(5)

	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.InsertMapping(ctx, &models.LocalIdentifier{
			CenterID: 5, LocalSubjectID: "OK-1", IdentifierType: domain.IdentifierTypePrimary, GSID: g,
		}); err != nil {
			return err
		}

		spErr := s.store.Savepoint(ctx, func(ctx context.Context) error {
			if err := s.store.InsertMapping(ctx, &models.LocalIdentifier{
				CenterID: 5, LocalSubjectID: "DOOMED", IdentifierType: domain.IdentifierTypePrimary, GSID: g,
			}); err != nil {
				return err
			}
			return errors.New("forced failure")
		})
		s.Error(spErr)

		// The enclosing transaction is still usable after the rollback.
		return s.store.InsertMapping(ctx, &models.LocalIdentifier{
			CenterID: 5, LocalSubjectID: "OK-2", IdentifierType: domain.IdentifierTypePrimary, GSID: g,
		})
	})
	s.Require().NoError(err)

	_, err = s.store.GetMapping(ctx, 5, "OK-1", domain.IdentifierTypePrimary)
	s.NoError(err)
	_, err = s.store.GetMapping(ctx, 5, "OK-2", domain.IdentifierTypePrimary)
	s.NoError(err)
	_, err = s.store.GetMapping(ctx, 5, "DOOMED", domain.IdentifierTypePrimary)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestRunInTxRollsBackEverything() {
	ctx := context.Background()
	g := s.seedIdentity(5)

	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.InsertMapping(ctx, &models.LocalIdentifier{
			CenterID: 5, LocalSubjectID: "GONE", IdentifierType: domain.IdentifierTypePrimary, GSID: g,
		}); err != nil {
			return err
		}
		return errors.New("abort")
	})
	s.Error(err)

	_, err = s.store.GetMapping(ctx, 5, "GONE", domain.IdentifierTypePrimary)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestReviewFlagLifecycle() {
	ctx := context.Background()
	g := s.seedIdentity(5)
	s.Require().NoError(s.store.InsertMapping(ctx, &models.LocalIdentifier{
		CenterID: 5, LocalSubjectID: "RV-1", IdentifierType: domain.IdentifierTypePrimary, GSID: g,
	}))

	s.Require().NoError(s.store.SetReviewFlag(ctx, g, "needs a look"))

	cases, err := s.store.ListReviewCases(ctx)
	s.Require().NoError(err)
	s.Require().Len(cases, 1)
	s.Equal(g, cases[0].GSID)
	s.Require().Len(cases[0].LocalIdentifiers, 1)
	s.Equal("RV-1", cases[0].LocalIdentifiers[0].LocalSubjectID)

	s.Require().NoError(s.store.ClearReviewFlag(ctx, g, "resolved"))
	cases, err = s.store.ListReviewCases(ctx)
	s.Require().NoError(err)
	s.Empty(cases)

	s.ErrorIs(s.store.SetReviewFlag(ctx, s.newGSID(), "x"), sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestLogEntryAnnotation() {
	ctx := context.Background()
	g := s.seedIdentity(5)

	entry := &models.ResolutionLogEntry{
		InputCenterID:  5,
		InputLocalID:   "LOG-1",
		MatchedGSID:    g,
		Action:         models.ActionReviewRequired,
		MatchStrategy:  models.StrategyExactWithdrawn,
		Confidence:     1.0,
		RequiresReview: true,
		ReviewReason:   "matched identity is withdrawn",
		CreatedBy:      "tester",
	}
	s.Require().NoError(s.store.AppendLogEntry(ctx, entry))

	at := time.Now().UTC().Truncate(time.Second)
	s.Require().NoError(s.store.AnnotateLogEntries(ctx, g, "dr.jones", "verified", at))

	entries, err := s.store.ListLogEntries(ctx, g)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal("dr.jones", entries[0].ReviewedBy)
	s.Require().NotNil(entries[0].ReviewedAt)
	s.Equal("verified", entries[0].ResolutionNotes)

	// Already-annotated entries stay untouched.
	s.Require().NoError(s.store.AnnotateLogEntries(ctx, g, "someone.else", "again", time.Now()))
	entries, err = s.store.ListLogEntries(ctx, g)
	s.Require().NoError(err)
	s.Equal("dr.jones", entries[0].ReviewedBy)
}

func (s *PostgresStoreSuite) TestAliasUpsert() {
	ctx := context.Background()
	g1 := s.seedIdentity(5)
	g2 := s.seedIdentity(5)

	s.Require().NoError(s.store.UpsertAlias(ctx, models.Alias{Alias: "OLD", GSID: g1}))
	s.Require().NoError(s.store.UpsertAlias(ctx, models.Alias{Alias: "OLD", GSID: g2}))

	alias, err := s.store.FindAlias(ctx, "OLD")
	s.Require().NoError(err)
	s.Equal(g2, alias.GSID)

	_, err = s.store.FindAlias(ctx, "NOPE")
	s.ErrorIs(err, sentinel.ErrNotFound)
}
