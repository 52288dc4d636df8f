package quarantine

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crimewatch/internal/report/models"
	id "crimewatch/pkg/domain"
	"crimewatch/pkg/platform/sentinel"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	submitter := id.SubmitterID(uuid.New())
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	first := &models.QuarantineRecord{ID: id.NewReportID(), SubmitterID: submitter, Reasoning: "joke", QuarantinedAt: base}
	second := &models.QuarantineRecord{ID: id.NewReportID(), SubmitterID: submitter, Reasoning: "gibberish", QuarantinedAt: base.Add(time.Hour)}
	other := &models.QuarantineRecord{ID: id.NewReportID(), SubmitterID: id.SubmitterID(uuid.New()), QuarantinedAt: base}

	require.NoError(t, store.Put(ctx, first))
	require.NoError(t, store.Put(ctx, second))
	require.NoError(t, store.Put(ctx, other))

	t.Run("records are write-once", func(t *testing.T) {
		dup := *first
		dup.Reasoning = "changed"
		assert.ErrorIs(t, store.Put(ctx, &dup), sentinel.ErrConflict)

		got, err := store.Get(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, "joke", got.Reasoning)
	})

	t.Run("lists newest first per submitter", func(t *testing.T) {
		recs, err := store.ListBySubmitter(ctx, submitter)
		require.NoError(t, err)
		require.Len(t, recs, 2)
		assert.Equal(t, second.ID, recs[0].ID)
		assert.Equal(t, first.ID, recs[1].ID)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := store.Get(ctx, id.NewReportID())
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}
