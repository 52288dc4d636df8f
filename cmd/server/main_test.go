package main

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	credstore "crimewatch/internal/credibility/store"
	jwttoken "crimewatch/internal/jwt_token"
	"crimewatch/internal/platform/config"
	"crimewatch/internal/platform/logger"
	"crimewatch/internal/quarantine"
	"crimewatch/internal/ratelimit"
	"crimewatch/internal/report/store"
	id "crimewatch/pkg/domain"
	authmw "crimewatch/pkg/platform/middleware/auth"
	"crimewatch/pkg/testutil"
)

// The app registers its Prometheus collectors on the default registry, so
// it is assembled once for the whole test.
func TestAssembledApp(t *testing.T) {
	cfg := config.Config{
		Server: config.Server{
			Addr:          ":0",
			JWTSigningKey: "test-signing-key",
			JWTIssuer:     "crimewatch",
			JWTAudience:   "crimewatch-api",
		},
		Dispatcher: config.DispatcherConfig{Workers: 1, QueueSize: 8},
		Ledger:     config.LedgerConfig{WriteAttempts: 1},
		RateLimit:  config.RateLimitConfig{Submissions: 1, Window: time.Hour},
	}
	b := &backends{
		name:        "memory",
		reports:     store.NewMemory(),
		quarantine:  quarantine.NewMemory(),
		credibility: credstore.NewMemory(),
		rateLimits:  ratelimit.NewMemory(),
	}
	a, err := assemble(cfg, logger.Discard(), b)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = a.dispatcher.Run(ctx) }()
	go func() { _ = a.reconciler.Run(ctx) }()

	submitter := id.SubmitterID(uuid.New())
	token, err := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer, cfg.Server.JWTAudience).
		GenerateAccessToken(submitter, id.NewSessionID(), []string{authmw.RoleSubmitter}, time.Hour)
	require.NoError(t, err)

	t.Run("health with no durable backends", func(t *testing.T) {
		rr := testutil.DoRequest(a.router, testutil.NewRequest(t, http.MethodGet, "/healthz"))
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("metrics are exposed", func(t *testing.T) {
		rr := testutil.DoRequest(a.router, testutil.NewRequest(t, http.MethodGet, "/metrics"))
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("api requires a bearer token", func(t *testing.T) {
		rr := testutil.DoRequest(a.router, testutil.NewJSONRequest(t, http.MethodPost, "/v1/reports", map[string]any{
			"text":         "bike stolen from the rack",
			"location_ref": "station-north",
		}))
		testutil.AssertError(t, rr, http.StatusUnauthorized, "unauthorized")
	})

	t.Run("without an authenticity service reports go to manual review", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/v1/reports", map[string]any{
			"text":         "bike stolen from the rack",
			"location_ref": "station-north",
		})
		rr := testutil.DoRequest(a.router, testutil.WithBearer(req, token))
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

		submitted := testutil.DecodeJSON[struct {
			ReportID         string `json:"report_id"`
			ManualReview     bool   `json:"manual_review"`
			CredibilityScore int    `json:"credibility_score"`
		}](t, rr)
		assert.True(t, submitted.ManualReview)
		assert.Equal(t, 100, submitted.CredibilityScore)

		rr = testutil.DoRequest(a.router, testutil.WithBearer(testutil.NewRequest(t, http.MethodGet, "/v1/reports/"+submitted.ReportID), token))
		require.Equal(t, http.StatusOK, rr.Code)

		view := testutil.DecodeJSON[struct {
			CrimeClassification struct {
				Status string `json:"status"`
			} `json:"crime_classification"`
		}](t, rr)
		assert.Equal(t, "not_yet_analyzed", view.CrimeClassification.Status)
	})
	t.Run("a second submission inside the window is throttled", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/v1/reports", map[string]any{
			"text":         "another bike stolen",
			"location_ref": "station-north",
		})
		rr := testutil.DoRequest(a.router, testutil.WithBearer(req, token))
		testutil.AssertError(t, rr, http.StatusTooManyRequests, "rate_limit_exceeded")
		assert.NotEmpty(t, rr.Header().Get("Retry-After"))
	})
}
