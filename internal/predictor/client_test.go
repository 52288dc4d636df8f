package predictor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crimewatch/internal/report/models"
	"crimewatch/pkg/platform/circuit"
)

func jsonServer(t *testing.T, status int, body any) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestAuthenticityClient_Verify(t *testing.T) {
	t.Run("decodes verdict", func(t *testing.T) {
		var got VerifyRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/verify", r.URL.Path)
			assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			_ = json.NewEncoder(w).Encode(Verdict{IsFake: true, Confidence: 0.91, Reasoning: "joke", SuggestedDelta: -18})
		}))
		defer srv.Close()

		c := NewAuthenticityClient(srv.URL, WithAPIKey("k"))
		v, err := c.Verify(context.Background(), VerifyRequest{Text: "aliens stole my car", SubmitterScore: 80, LocationRef: "x"})
		require.NoError(t, err)
		assert.True(t, v.IsFake)
		assert.Equal(t, -18, v.SuggestedDelta)
		assert.Equal(t, 80, got.SubmitterScore)
	})

	t.Run("confidence out of range is bad data", func(t *testing.T) {
		srv, _ := jsonServer(t, http.StatusOK, Verdict{Confidence: 1.7})
		_, err := NewAuthenticityClient(srv.URL).Verify(context.Background(), VerifyRequest{})
		assert.Equal(t, ErrorBadData, GetCategory(err))
		assert.False(t, IsRetryable(err))
	})
}

func TestClient_ErrorCategories(t *testing.T) {
	tests := []struct {
		status    int
		category  ErrorCategory
		retryable bool
	}{
		{http.StatusServiceUnavailable, ErrorOutage, true},
		{http.StatusTooManyRequests, ErrorRateLimited, true},
		{http.StatusUnauthorized, ErrorAuthentication, false},
		{http.StatusBadRequest, ErrorRejected, false},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv, _ := jsonServer(t, tt.status, map[string]string{"error": "x"})
			_, err := NewCrimeClient(srv.URL).Classify(context.Background(), ClassifyRequest{})
			require.Error(t, err)
			assert.Equal(t, tt.category, GetCategory(err))
			assert.Equal(t, tt.retryable, IsRetryable(err))
		})
	}
}

func TestClient_TimeoutIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := NewCrimeClient(srv.URL).Classify(ctx, ClassifyRequest{})
	assert.Equal(t, ErrorTimeout, GetCategory(err))
	assert.True(t, IsRetryable(err))
}

func TestClient_OpenBreakerFailsFast(t *testing.T) {
	srv, calls := jsonServer(t, http.StatusBadGateway, nil)
	breaker := circuit.New("crime", circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Hour))
	c := NewCrimeClient(srv.URL, WithBreaker(breaker))

	for range 2 {
		_, _ = c.Classify(context.Background(), ClassifyRequest{})
	}
	require.True(t, breaker.IsOpen())

	_, err := c.Classify(context.Background(), ClassifyRequest{})
	assert.Equal(t, ErrorOutage, GetCategory(err))
	assert.Equal(t, int32(2), calls.Load(), "open breaker must not reach the server")
}

func TestEscalationClient(t *testing.T) {
	t.Run("parses prediction", func(t *testing.T) {
		srv, _ := jsonServer(t, http.StatusOK, map[string]any{
			"risk_level":    "high",
			"confidence":    0.8,
			"probabilities": map[string]float64{"low": 0.05, "medium": 0.15, "high": 0.8},
			"reasoning":     "weapon mentioned",
		})
		p, err := NewEscalationClient(srv.URL).PredictEscalation(context.Background(), EscalationRequest{CrimeType: "Assault"})
		require.NoError(t, err)
		assert.Equal(t, models.RiskHigh, p.RiskLevel)
		assert.InDelta(t, 0.8, p.Probabilities.High, 1e-9)
	})

	t.Run("unknown level is an error, not a default", func(t *testing.T) {
		srv, _ := jsonServer(t, http.StatusOK, map[string]any{
			"risk_level":    "severe",
			"confidence":    0.5,
			"probabilities": map[string]float64{"low": 0.3, "medium": 0.3, "high": 0.4},
		})
		p, err := NewEscalationClient(srv.URL).PredictEscalation(context.Background(), EscalationRequest{})
		assert.Nil(t, p)
		assert.Equal(t, ErrorBadData, GetCategory(err))
	})

	t.Run("missing probabilities", func(t *testing.T) {
		srv, _ := jsonServer(t, http.StatusOK, map[string]any{"risk_level": "low", "confidence": 0.5})
		_, err := NewEscalationClient(srv.URL).PredictEscalation(context.Background(), EscalationRequest{})
		assert.Equal(t, ErrorBadData, GetCategory(err))
	})
}

func TestDisabled(t *testing.T) {
	_, err := Disabled{Name: "authenticity"}.Verify(context.Background(), VerifyRequest{})
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.False(t, IsRetryable(err))
}
