package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"

	"gsid-registry/internal/identity/gsid"
	"gsid-registry/internal/identity/models"
	"gsid-registry/internal/identity/store"
	"gsid-registry/internal/identity/validate"
	dErrors "gsid-registry/pkg/domain-errors"
)

// =============================================================================
// Review Workflow Test Suite
// =============================================================================

type ReviewSuite struct {
	suite.Suite
	store   *store.Memory
	service *Service
}

func TestReviewSuite(t *testing.T) {
	suite.Run(t, new(ReviewSuite))
}

func (s *ReviewSuite) SetupTest() {
	s.store = store.NewMemory()
	s.service = New(
		s.store,
		gsid.New(),
		validate.New(validate.Config{}),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
}

// flagViaWithdrawnMatch registers an identifier, withdraws the identity, and
// re-registers so the engine flags the identity for review.
func (s *ReviewSuite) flagViaWithdrawnMatch(localID string) models.Decision {
	ctx := context.Background()
	first, err := s.service.Register(ctx, models.RegisterRequest{CenterID: 5, LocalSubjectID: localID})
	s.Require().NoError(err)
	s.Require().NoError(s.store.SetWithdrawn(ctx, first.GSID, true))

	second, err := s.service.Register(ctx, models.RegisterRequest{CenterID: 5, LocalSubjectID: localID})
	s.Require().NoError(err)
	s.Require().Equal(models.ActionReviewRequired, second.Action)
	return second
}

func (s *ReviewSuite) TestQueueListsFlaggedIdentities() {
	flagged := s.flagViaWithdrawnMatch("RV-001")

	cases, err := s.service.ListReviewQueue(context.Background())
	s.Require().NoError(err)
	s.Require().Len(cases, 1)
	s.Equal(flagged.GSID, cases[0].GSID)
	s.True(cases[0].Withdrawn)
	s.Require().Len(cases[0].LocalIdentifiers, 1)
	s.Equal("RV-001", cases[0].LocalIdentifiers[0].LocalSubjectID)
}

func (s *ReviewSuite) TestResolveClearsFlagButNotWithdrawal() {
	flagged := s.flagViaWithdrawnMatch("RV-002")
	ctx := context.Background()

	err := s.service.ResolveReview(ctx, flagged.GSID.String(), "dr.jones", "confirmed duplicate enrollment")
	s.Require().NoError(err)

	identity, err := s.store.GetIdentity(ctx, flagged.GSID)
	s.Require().NoError(err)
	s.False(identity.FlaggedForReview)
	s.True(identity.Withdrawn, "resolution must never un-withdraw a subject")
	s.Equal("confirmed duplicate enrollment", identity.ReviewNotes)

	cases, err := s.service.ListReviewQueue(ctx)
	s.Require().NoError(err)
	s.Empty(cases)
}

func (s *ReviewSuite) TestResolveAnnotatesPendingLogEntries() {
	flagged := s.flagViaWithdrawnMatch("RV-003")
	ctx := context.Background()

	s.Require().NoError(s.service.ResolveReview(ctx, flagged.GSID.String(), "dr.jones", "linked manually"))

	entries, err := s.store.ListLogEntries(ctx, flagged.GSID)
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	for _, e := range entries {
		if !e.RequiresReview {
			s.Empty(e.ReviewedBy, "non-review entries stay untouched")
			continue
		}
		s.Equal("dr.jones", e.ReviewedBy)
		s.NotNil(e.ReviewedAt)
		s.Equal("linked manually", e.ResolutionNotes)
	}
}

func (s *ReviewSuite) TestResolveRequiresReviewer() {
	err := s.service.ResolveReview(context.Background(), "GSID-AAA", "", "notes")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func (s *ReviewSuite) TestResolveUnknownGSID() {
	err := s.service.ResolveReview(context.Background(), "GSID-AAA", "dr.jones", "notes")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
