//go:build integration

package quarantine_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"crimewatch/internal/quarantine"
	"crimewatch/internal/report/models"
	id "crimewatch/pkg/domain"
	"crimewatch/pkg/platform/sentinel"
	"crimewatch/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *quarantine.PostgresStore
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
	s.store = quarantine.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "quarantine_records"))
}

func (s *PostgresStoreSuite) TestPutGetList() {
	ctx := context.Background()
	submitter := id.SubmitterID(uuid.New())
	base := time.Date(2026, 7, 4, 21, 0, 0, 0, time.UTC)

	older := &models.QuarantineRecord{
		ID: id.NewReportID(), SubmitterID: submitter,
		Text: "lol test", LocationRef: "nowhere",
		Reasoning: "not a report", Confidence: 0.97, CredibilityDelta: -12, QuarantinedAt: base,
	}
	newer := &models.QuarantineRecord{
		ID: id.NewReportID(), SubmitterID: submitter,
		Text: "dragons on main st", LocationRef: "main-st",
		Reasoning: "implausible", Confidence: 0.9, QuarantinedAt: base.Add(time.Hour),
	}
	s.Require().NoError(s.store.Put(ctx, older))
	s.Require().NoError(s.store.Put(ctx, newer))

	got, err := s.store.Get(ctx, older.ID)
	s.Require().NoError(err)
	s.Equal("not a report", got.Reasoning)
	s.Equal(-12, got.CredibilityDelta)
	s.True(got.QuarantinedAt.Equal(base))

	list, err := s.store.ListBySubmitter(ctx, submitter)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(newer.ID, list[0].ID)

	s.ErrorIs(s.store.Put(ctx, older), sentinel.ErrConflict)

	_, err = s.store.Get(ctx, id.NewReportID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}
