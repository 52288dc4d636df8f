package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"crimewatch/internal/platform/tracing"
	"crimewatch/pkg/platform/circuit"
)

const maxResponseBytes = 1 << 20

// client is the JSON-over-HTTP transport shared by the predictor clients.
// Every call waits on the rate limiter and is refused while the breaker is
// open.
type client struct {
	name    string
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	breaker *circuit.Breaker
	tracer  trace.Tracer
}

type Option func(*client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *client) {
		c.http = h
	}
}

// WithRateLimit caps outbound requests per second.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
		}
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(c *client) {
		c.breaker = b
	}
}

func WithAPIKey(key string) Option {
	return func(c *client) {
		c.apiKey = key
	}
}

func newClient(name, baseURL string, opts ...Option) *client {
	c := &client{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(5), 5),
		breaker: circuit.New(name, circuit.WithFailureThreshold(5), circuit.WithCooldown(30*time.Second)),
		tracer:  tracing.Tracer("predictor"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// post sends in as JSON to path and decodes the response into out.
func (c *client) post(ctx context.Context, path string, in, out any) (err error) {
	ctx, span := c.tracer.Start(ctx, c.name+".call", trace.WithAttributes(
		attribute.String("predictor", c.name),
	))
	defer func() {
		if err != nil {
			span.SetAttributes(attribute.String("error.category", string(GetCategory(err))))
		}
		tracing.RecordError(span, err)
		span.End()
	}()

	if !c.breaker.Allow() {
		return NewError(ErrorOutage, c.name, "circuit open", nil)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return NewError(ErrorTimeout, c.name, "rate limiter wait", err)
	}

	err = c.roundTrip(ctx, path, in, out)
	if err == nil {
		c.breaker.RecordSuccess()
		return nil
	}
	if cat := GetCategory(err); cat == ErrorTimeout || cat == ErrorOutage {
		c.breaker.RecordFailure()
	}
	return err
}

func (c *client) roundTrip(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return NewError(ErrorInternal, c.name, "encode request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return NewError(ErrorInternal, c.name, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return NewError(ErrorTimeout, c.name, "request timed out", err)
		}
		if errors.Is(err, context.Canceled) {
			return NewError(ErrorInternal, c.name, "request cancelled", err)
		}
		return NewError(ErrorOutage, c.name, "request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return NewError(ErrorOutage, c.name, "read response", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return NewError(ErrorRateLimited, c.name, "rate limited", nil)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return NewError(ErrorAuthentication, c.name, fmt.Sprintf("status %d", resp.StatusCode), nil)
	case resp.StatusCode >= 500:
		return NewError(ErrorOutage, c.name, fmt.Sprintf("status %d", resp.StatusCode), nil)
	case resp.StatusCode >= 400:
		return NewError(ErrorRejected, c.name, fmt.Sprintf("status %d: %s", resp.StatusCode, truncate(raw, 200)), nil)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return NewError(ErrorBadData, c.name, "decode response", err)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

func validConfidence(v float64) bool {
	return v >= 0 && v <= 1
}
