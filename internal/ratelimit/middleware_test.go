package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "crimewatch/pkg/domain"
	"crimewatch/pkg/requestcontext"
	"crimewatch/pkg/testutil"
)

type failingStore struct{}

func (failingStore) Allow(context.Context, string, int, time.Duration) (*Result, error) {
	return nil, errors.New("redis down")
}

func (failingStore) Reset(context.Context, string) error { return nil }

func serve(h http.Handler, submitterID id.SubmitterID) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/reports", nil)
	if !submitterID.IsNil() {
		req = req.WithContext(requestcontext.WithSubmitterID(req.Context(), submitterID))
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestPerSubmitter(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	t.Run("throttles a submitter past the limit", func(t *testing.T) {
		h := New(NewMemory(), 2, time.Minute).PerSubmitter(ok)
		submitter := id.SubmitterID(uuid.New())

		for want := 1; want >= 0; want-- {
			rr := serve(h, submitter)
			require.Equal(t, http.StatusCreated, rr.Code)
			assert.Equal(t, "2", rr.Header().Get("X-RateLimit-Limit"))
			assert.NotEmpty(t, rr.Header().Get("X-RateLimit-Reset"))
		}

		rr := serve(h, submitter)
		testutil.AssertError(t, rr, http.StatusTooManyRequests, "rate_limit_exceeded")
		assert.Equal(t, "60", rr.Header().Get("Retry-After"))
		assert.Equal(t, "0", rr.Header().Get("X-RateLimit-Remaining"))

		other := serve(h, id.SubmitterID(uuid.New()))
		assert.Equal(t, http.StatusCreated, other.Code)
	})

	t.Run("zero limit disables the check", func(t *testing.T) {
		h := New(NewMemory(), 0, time.Minute).PerSubmitter(ok)
		submitter := id.SubmitterID(uuid.New())
		for range 5 {
			assert.Equal(t, http.StatusCreated, serve(h, submitter).Code)
		}
	})

	t.Run("anonymous requests pass through", func(t *testing.T) {
		h := New(NewMemory(), 1, time.Minute).PerSubmitter(ok)
		for range 3 {
			assert.Equal(t, http.StatusCreated, serve(h, id.SubmitterID{}).Code)
		}
	})

	t.Run("store failure lets the request through", func(t *testing.T) {
		h := New(failingStore{}, 1, time.Minute).PerSubmitter(ok)
		rr := serve(h, id.SubmitterID(uuid.New()))
		assert.Equal(t, http.StatusCreated, rr.Code)
		assert.Empty(t, rr.Header().Get("X-RateLimit-Limit"))
	})
}
