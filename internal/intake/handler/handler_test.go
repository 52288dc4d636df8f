package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	credservice "crimewatch/internal/credibility/service"
	credstore "crimewatch/internal/credibility/store"
	"crimewatch/internal/enrichment"
	"crimewatch/internal/intake"
	"crimewatch/internal/intake/handler/mocks"
	"crimewatch/internal/notify"
	"crimewatch/internal/report/models"
	"crimewatch/internal/report/store"
	id "crimewatch/pkg/domain"
	dErrors "crimewatch/pkg/domain-errors"
	authmw "crimewatch/pkg/platform/middleware/auth"
	"crimewatch/pkg/testutil"
)

type passthroughViews struct{}

func (passthroughViews) Resolve(r models.Report) models.Report { return r }

type caller struct {
	submitter id.SubmitterID
	session   id.SessionID
	roles     []string
}

type HandlerSuite struct {
	suite.Suite
	ctrl       *gomock.Controller
	intake     *mocks.MockIntake
	classifier *mocks.MockClassifier
	reports    *store.MemoryStore
	ledger     *credservice.Service
	fanout     *notify.Fanout
	caller     caller
	router     chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.intake = mocks.NewMockIntake(s.ctrl)
	s.classifier = mocks.NewMockClassifier(s.ctrl)
	s.reports = store.NewMemory()
	var err error
	s.ledger, err = credservice.New(credstore.NewMemory())
	s.Require().NoError(err)
	s.fanout = notify.New()
	s.caller = caller{
		submitter: id.SubmitterID(id.NewReportID()),
		session:   id.NewSessionID(),
		roles:     []string{authmw.RoleSubmitter},
	}

	h := New(s.intake, s.reports, passthroughViews{}, s.classifier, s.ledger, s.fanout, slog.New(slog.DiscardHandler))
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, testutil.WithCaller(req, s.caller.submitter, s.caller.session, s.caller.roles...))
		})
	})
	h.Register(r)
	s.router = r
}

func (s *HandlerSuite) asReviewer() {
	s.caller.roles = []string{authmw.RoleSubmitter, authmw.RoleReviewer}
}

func (s *HandlerSuite) decode(body []byte, v any) {
	s.Require().NoError(json.Unmarshal(body, v))
}

func (s *HandlerSuite) seedReport() *models.Report {
	r := &models.Report{
		ID:          id.NewReportID(),
		SubmitterID: s.caller.submitter,
		Text:        "car window smashed on Elm St",
		LocationRef: "elm-st",
		SubmittedAt: time.Date(2026, 7, 4, 21, 0, 0, 0, time.UTC),
		Status:      models.StatusCommitted,
		Authenticity: models.Authenticity{
			Confidence: 0.9,
			Method:     models.MethodClassifier,
			VerifiedAt: time.Date(2026, 7, 4, 21, 0, 0, 0, time.UTC),
		},
	}
	s.Require().NoError(s.reports.Create(context.Background(), r))
	return r
}

func (s *HandlerSuite) TestSubmit() {
	s.Run("committed report returns 201 with the caller as submitter", func() {
		reportID := id.NewReportID()
		s.intake.EXPECT().Submit(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, d models.Draft) (*intake.Outcome, error) {
				s.Equal(s.caller.submitter, d.SubmitterID)
				s.Equal(s.caller.session, d.SessionID)
				s.Equal("someone broke into a car", d.Text)
				return &intake.Outcome{Status: intake.StatusCommitted, ReportID: reportID, Confidence: 0.88, Delta: 3, Score: 53}, nil
			})

		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/reports", map[string]any{
			"text":         "someone broke into a car",
			"location_ref": "elm-st",
		}))

		s.Equal(http.StatusCreated, rr.Code)
		var resp SubmitResponse
		s.decode(rr.Body.Bytes(), &resp)
		s.Equal(reportID.String(), resp.ReportID)
		s.Equal(3, resp.CredibilityDelta)
		s.Equal(53, resp.CredibilityScore)
	})

	s.Run("idempotency key becomes the report id and a replay returns 200", func() {
		key := id.NewReportID()
		s.intake.EXPECT().Submit(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, d models.Draft) (*intake.Outcome, error) {
				s.Equal(key, d.ReportID)
				return &intake.Outcome{Status: intake.StatusCommitted, ReportID: key, Replayed: true}, nil
			})

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/reports", map[string]any{
			"text":         "someone broke into a car",
			"location_ref": "elm-st",
		})
		req.Header.Set(IdempotencyKeyHeader, key.String())
		rr := testutil.DoRequest(s.router, req)

		s.Equal(http.StatusOK, rr.Code)
	})

	s.Run("malformed idempotency key is rejected before submission", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/reports", map[string]any{
			"text":         "someone broke into a car",
			"location_ref": "elm-st",
		})
		req.Header.Set(IdempotencyKeyHeader, "not-a-uuid")
		rr := testutil.DoRequest(s.router, req)

		s.Equal(http.StatusBadRequest, rr.Code)
	})

	s.Run("rejected report returns 422 without a report id", func() {
		s.intake.EXPECT().Submit(gomock.Any(), gomock.Any()).Return(&intake.Outcome{
			Status:    intake.StatusRejected,
			Reasoning: "text reads as a test message",
			Delta:     -10,
			Score:     40,
		}, nil)

		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/reports", map[string]any{
			"text":         "asdf",
			"location_ref": "elm-st",
		}))

		s.Equal(http.StatusUnprocessableEntity, rr.Code)
		var resp SubmitResponse
		s.decode(rr.Body.Bytes(), &resp)
		s.Empty(resp.ReportID)
		s.Equal(-10, resp.CredibilityDelta)
	})

	s.Run("suspended submitter returns 403", func() {
		s.intake.EXPECT().Submit(gomock.Any(), gomock.Any()).Return(&intake.Outcome{
			Status:    intake.StatusSuspended,
			Reasoning: intake.SuspendedReasoning,
		}, nil)

		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/reports", map[string]any{
			"text":         "another report",
			"location_ref": "elm-st",
		}))

		s.Equal(http.StatusForbidden, rr.Code)
		resp := testutil.DecodeJSON[SubmitResponse](s.T(), rr)
		s.Equal(intake.SuspendedReasoning, resp.Reasoning)
	})

	s.Run("missing text fails validation without reaching intake", func() {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/reports", map[string]any{
			"location_ref": "elm-st",
		}))

		testutil.AssertError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})

	s.Run("unavailable dependency maps to 503", func() {
		s.intake.EXPECT().Submit(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeUnavailable, "credibility ledger unavailable"))

		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/reports", map[string]any{
			"text":         "someone broke into a car",
			"location_ref": "elm-st",
		}))

		s.Equal(http.StatusServiceUnavailable, rr.Code)
	})
}

func (s *HandlerSuite) TestGetReport() {
	s.Run("unanalyzed enrichment renders as not_yet_analyzed", func() {
		r := s.seedReport()

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/v1/reports/"+r.ID.String()))

		s.Equal(http.StatusOK, rr.Code)
		var resp ReportResponse
		s.decode(rr.Body.Bytes(), &resp)
		s.Equal(r.ID.String(), resp.ID)
		s.Equal(models.EnrichmentNotYetAnalyzed, resp.CrimeClassification.Status)
		s.Nil(resp.CrimeClassification.Confidence)
		s.Equal(models.EnrichmentNotYetAnalyzed, resp.Escalation.Status)
	})

	s.Run("classified report carries its classification", func() {
		r := s.seedReport()
		s.Require().NoError(s.reports.PatchCrimeClassification(context.Background(), r.ID, models.CrimeClassification{
			Type:         "Vandalism",
			Confidence:   0.81,
			ClassifiedAt: time.Date(2026, 7, 4, 21, 1, 0, 0, time.UTC),
		}))

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/v1/reports/"+r.ID.String()))

		s.Equal(http.StatusOK, rr.Code)
		var resp ReportResponse
		s.decode(rr.Body.Bytes(), &resp)
		s.Equal(models.EnrichmentAnalyzed, resp.CrimeClassification.Status)
		s.Equal("Vandalism", resp.CrimeClassification.Type)
		s.Require().NotNil(resp.CrimeClassification.Confidence)
		s.InDelta(0.81, *resp.CrimeClassification.Confidence, 1e-9)
	})

	s.Run("unknown report returns 404", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/v1/reports/"+id.NewReportID().String()))
		testutil.AssertError(s.T(), rr, http.StatusNotFound, "not_found")
	})

	s.Run("malformed id returns 400", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/v1/reports/nope"))
		s.Equal(http.StatusBadRequest, rr.Code)
	})
}

func (s *HandlerSuite) TestClassify() {
	s.Run("submitters cannot trigger classification", func() {
		r := s.seedReport()
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, "/v1/reports/"+r.ID.String()+"/classifications/crime_type"))
		s.Equal(http.StatusForbidden, rr.Code)
	})

	s.Run("reviewer queues a job", func() {
		s.asReviewer()
		r := s.seedReport()
		s.classifier.EXPECT().Enqueue(r.ID, enrichment.KindEscalation).Return(nil)

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, "/v1/reports/"+r.ID.String()+"/classifications/escalation"))

		s.Equal(http.StatusAccepted, rr.Code)
		var resp ClassificationAccepted
		s.decode(rr.Body.Bytes(), &resp)
		s.Equal("escalation", resp.Kind)
	})

	s.Run("unknown kind returns 400", func() {
		s.asReviewer()
		r := s.seedReport()
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, "/v1/reports/"+r.ID.String()+"/classifications/weather"))
		s.Equal(http.StatusBadRequest, rr.Code)
	})

	s.Run("missing report returns 404", func() {
		s.asReviewer()
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, "/v1/reports/"+id.NewReportID().String()+"/classifications/crime_type"))
		s.Equal(http.StatusNotFound, rr.Code)
	})

	s.Run("full queue returns 503", func() {
		s.asReviewer()
		r := s.seedReport()
		s.classifier.EXPECT().Enqueue(r.ID, enrichment.KindCrimeType).Return(enrichment.ErrQueueFull)

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, "/v1/reports/"+r.ID.String()+"/classifications/crime_type"))

		s.Equal(http.StatusServiceUnavailable, rr.Code)
	})
}

func (s *HandlerSuite) TestGetCredibility() {
	s.Run("own score is visible", func() {
		_, err := s.ledger.ApplyDelta(context.Background(), s.caller.submitter, -10, id.NewReportID(), "fake report")
		s.Require().NoError(err)

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/v1/submitters/"+s.caller.submitter.String()+"/credibility"))

		s.Equal(http.StatusOK, rr.Code)
		var resp CredibilityResponse
		s.decode(rr.Body.Bytes(), &resp)
		s.Equal(90, resp.Score)
		s.False(resp.Blocked)
		s.Require().Len(resp.History, 1)
		s.Equal(-10, resp.History[0].Delta)
	})

	s.Run("another submitter's score is forbidden", func() {
		other := id.SubmitterID(id.NewReportID())
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/v1/submitters/"+other.String()+"/credibility"))
		s.Equal(http.StatusForbidden, rr.Code)
	})

	s.Run("reviewers can read anyone", func() {
		s.asReviewer()
		other := id.SubmitterID(id.NewReportID())
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/v1/submitters/"+other.String()+"/credibility"))

		s.Equal(http.StatusOK, rr.Code)
		var resp CredibilityResponse
		s.decode(rr.Body.Bytes(), &resp)
		s.Equal(100, resp.Score)
		s.Empty(resp.History)
	})
}

func (s *HandlerSuite) TestSessions() {
	s.Run("open, poll and close a session", func() {
		s.asReviewer()
		req := testutil.NewRequest(s.T(), http.MethodPost, "/v1/sessions")
		req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15")
		rr := testutil.DoRequest(s.router, req)

		s.Require().Equal(http.StatusCreated, rr.Code)
		var opened SessionResponse
		s.decode(rr.Body.Bytes(), &opened)
		s.Equal(s.caller.session.String(), opened.SessionID)
		s.Contains(opened.Device, "Safari")
		s.False(opened.Mobile)

		s.fanout.Publish(context.Background(), notify.CommitEvent{
			ReportID:    id.NewReportID(),
			SubmitterID: id.SubmitterID(id.NewReportID()),
			SessionID:   id.NewSessionID(),
			LocationRef: "elm-st",
			Preview:     "car window smashed",
			CommittedAt: time.Date(2026, 7, 4, 21, 0, 0, 0, time.UTC),
		})

		rr = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/v1/sessions/"+opened.SessionID+"/events"))
		s.Equal(http.StatusOK, rr.Code)
		var events EventsResponse
		s.decode(rr.Body.Bytes(), &events)
		s.Require().Len(events.Events, 1)
		s.Equal("elm-st", events.Events[0].LocationRef)

		rr = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/v1/sessions/"+opened.SessionID+"/events"))
		s.decode(rr.Body.Bytes(), &events)
		s.Empty(events.Events)

		rr = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodDelete, "/v1/sessions/"+opened.SessionID))
		s.Equal(http.StatusNoContent, rr.Code)

		rr = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/v1/sessions/"+opened.SessionID+"/events"))
		s.Equal(http.StatusNotFound, rr.Code)
	})

	s.Run("another reviewer's session is not visible", func() {
		s.asReviewer()
		foreign := s.fanout.Register(id.NewSessionID(), id.SubmitterID(id.NewReportID()), "")

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodDelete, "/v1/sessions/"+foreign.ID.String()))

		s.Equal(http.StatusNotFound, rr.Code)
		_, err := s.fanout.Session(foreign.ID)
		s.NoError(err)
	})

	s.Run("bad wait duration returns 400", func() {
		s.asReviewer()
		s.fanout.Register(s.caller.session, s.caller.submitter, "")
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/v1/sessions/"+s.caller.session.String()+"/events?wait=soon"))
		s.Equal(http.StatusBadRequest, rr.Code)
	})
}
