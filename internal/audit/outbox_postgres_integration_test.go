//go:build integration

package audit_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gsid-registry/internal/audit"
	"gsid-registry/internal/identity/store/postgres"
	"gsid-registry/pkg/testutil/containers"
)

func setupOutbox(t *testing.T) (*audit.PostgresOutbox, *postgres.Store) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	pc := containers.NewPostgresContainer(t)
	store := postgres.New(pc.DB)
	require.NoError(t, store.Migrate(context.Background()))
	return audit.NewPostgresOutbox(pc.DB), store
}

func TestPostgresOutbox_AppendAndDrainCycle(t *testing.T) {
	ctx := context.Background()
	outbox, _ := setupOutbox(t)
	publisher := audit.NewPublisher(outbox)

	require.NoError(t, publisher.Emit(ctx, audit.Event{Action: "create_new", LocalSubjectID: "SUBJ-1"}))
	require.NoError(t, publisher.Emit(ctx, audit.Event{Action: "link_existing", LocalSubjectID: "SUBJ-1"}))

	pending, err := outbox.Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	require.NoError(t, outbox.MarkPublished(ctx, []uuid.UUID{pending[0].ID}))

	pending, err = outbox.Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1, "published events leave the pending set")
}

func TestPostgresOutbox_AppendJoinsEnclosingTx(t *testing.T) {
	ctx := context.Background()
	outbox, store := setupOutbox(t)
	publisher := audit.NewPublisher(outbox)

	err := store.RunInTx(ctx, func(ctx context.Context) error {
		if err := publisher.Emit(ctx, audit.Event{Action: "create_new", LocalSubjectID: "DOOMED"}); err != nil {
			return err
		}
		return errors.New("decision failed after emit")
	})
	require.Error(t, err)

	pending, err := outbox.Pending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending, "an event never outlives the decision transaction")
}
