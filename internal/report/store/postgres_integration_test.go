//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"crimewatch/internal/report/models"
	"crimewatch/internal/report/store"
	id "crimewatch/pkg/domain"
	"crimewatch/pkg/platform/sentinel"
	"crimewatch/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB, s.postgres.DSN, nil)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "reports"))
}

var submittedAt = time.Date(2026, 7, 4, 21, 0, 0, 0, time.UTC)

func newReport() *models.Report {
	return &models.Report{
		ID:          id.NewReportID(),
		SubmitterID: id.SubmitterID(uuid.New()),
		Text:        "two men forcing the door of a parked van",
		LocationRef: "harbour-rd",
		SubmittedAt: submittedAt,
		Status:      models.StatusCommitted,
		Authenticity: models.Authenticity{
			Confidence: 0.92,
			Reasoning:  "specific and plausible",
			Method:     models.MethodClassifier,
			VerifiedAt: submittedAt,
		},
	}
}

func (s *PostgresStoreSuite) TestCreateAndGet() {
	ctx := context.Background()
	r := newReport()
	s.Require().NoError(s.store.Create(ctx, r))

	got, err := s.store.Get(ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(r.Text, got.Text)
	s.Equal(r.SubmitterID, got.SubmitterID)
	s.True(got.SubmittedAt.Equal(submittedAt))
	s.True(got.OccurredAt.IsZero())
	s.InDelta(0.92, got.Authenticity.Confidence, 1e-9)
	s.Nil(got.CrimeClassification)
	s.Nil(got.Escalation)

	s.ErrorIs(s.store.Create(ctx, r), sentinel.ErrConflict)

	_, err = s.store.Get(ctx, id.NewReportID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// TestPatchesAreFieldScoped verifies the two enrichment groups never
// overwrite each other and an older result never replaces a newer one.
func (s *PostgresStoreSuite) TestPatchesAreFieldScoped() {
	ctx := context.Background()
	r := newReport()
	s.Require().NoError(s.store.Create(ctx, r))

	crimeAt := submittedAt.Add(time.Minute)
	s.Require().NoError(s.store.PatchCrimeClassification(ctx, r.ID, models.CrimeClassification{
		Type: "Burglary", Confidence: 0.8, ClassifiedAt: crimeAt,
	}))
	s.Require().NoError(s.store.PatchEscalation(ctx, r.ID, models.Escalation{
		RiskLevel:     models.RiskHigh,
		Confidence:    0.7,
		Probabilities: models.Probabilities{Low: 0.1, Medium: 0.2, High: 0.7},
		PredictedAt:   submittedAt.Add(2 * time.Minute),
	}))

	err := s.store.PatchCrimeClassification(ctx, r.ID, models.CrimeClassification{
		Type: "Vandalism", Confidence: 0.6, ClassifiedAt: crimeAt.Add(-time.Second),
	})
	s.ErrorIs(err, sentinel.ErrStale)

	got, err := s.store.Get(ctx, r.ID)
	s.Require().NoError(err)
	s.Require().NotNil(got.CrimeClassification)
	s.Equal("Burglary", got.CrimeClassification.Type)
	s.Require().NotNil(got.Escalation)
	s.Equal(models.RiskHigh, got.Escalation.RiskLevel)

	s.ErrorIs(s.store.PatchEscalation(ctx, id.NewReportID(), models.Escalation{PredictedAt: submittedAt}), sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestSubscribeReplaysAndStreams() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	existing := newReport()
	s.Require().NoError(s.store.Create(ctx, existing))

	feed, err := s.store.Subscribe(ctx, models.Filter{})
	s.Require().NoError(err)

	first := s.next(feed)
	s.Equal(existing.ID, first.ID)
	s.False(first.ObservedAt.IsZero())

	s.Require().NoError(s.store.PatchCrimeClassification(ctx, existing.ID, models.CrimeClassification{
		Type: "Burglary", Confidence: 0.8, ClassifiedAt: submittedAt.Add(time.Minute),
	}))
	patched := s.next(feed)
	s.Equal(existing.ID, patched.ID)
	s.Require().NotNil(patched.CrimeClassification)
	s.Equal("Burglary", patched.CrimeClassification.Type)

	cancel()
	s.Eventually(func() bool {
		_, open := <-feed
		return !open
	}, 5*time.Second, 10*time.Millisecond)
}

func (s *PostgresStoreSuite) next(feed <-chan models.Report) models.Report {
	select {
	case r, ok := <-feed:
		s.Require().True(ok, "feed closed")
		return r
	case <-time.After(10 * time.Second):
		s.FailNow("no snapshot delivered")
	}
	return models.Report{}
}
