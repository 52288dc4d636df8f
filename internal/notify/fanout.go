package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	id "crimewatch/pkg/domain"
	"crimewatch/pkg/platform/sentinel"
)

// Sink receives every commit event for consumers outside this process.
type Sink interface {
	Publish(ctx context.Context, event CommitEvent) error
}

type Fanout struct {
	mu       sync.RWMutex
	sessions map[id.SessionID]*Session

	capacity int
	sink     Sink
	logger   *slog.Logger
	metrics  *Metrics
	now      func() time.Time
}

type Option func(*Fanout)

func WithCapacity(n int) Option {
	return func(f *Fanout) {
		if n > 0 {
			f.capacity = n
		}
	}
}

func WithSink(s Sink) Option {
	return func(f *Fanout) {
		f.sink = s
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(f *Fanout) {
		f.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(f *Fanout) {
		f.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(f *Fanout) {
		f.now = now
	}
}

func New(opts ...Option) *Fanout {
	f := &Fanout{
		sessions: make(map[id.SessionID]*Session),
		capacity: DefaultBufferCapacity,
		logger:   slog.New(slog.DiscardHandler),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Register opens a reviewer session. A nil sessionID gets a fresh id;
// registering an existing id returns the live session unchanged.
func (f *Fanout) Register(sessionID id.SessionID, submitterID id.SubmitterID, userAgent string) *Session {
	if sessionID.IsNil() {
		sessionID = id.NewSessionID()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[sessionID]; ok {
		return s
	}
	s := newSession(sessionID, submitterID, userAgent, f.capacity, f.now())
	f.sessions[sessionID] = s
	f.metrics.SetActiveSessions(len(f.sessions))
	f.logger.Info("reviewer session registered",
		"session_id", sessionID.String(),
		"submitter_id", submitterID.String(),
		"device", s.Label,
	)
	return s
}

func (f *Fanout) Unregister(sessionID id.SessionID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[sessionID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(f.sessions, sessionID)
	f.metrics.SetActiveSessions(len(f.sessions))
	return nil
}

func (f *Fanout) Session(sessionID id.SessionID) (*Session, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	s, ok := f.sessions[sessionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s, nil
}

// Publish buffers the event for every session except the one that
// submitted the report, then hands it to the sink. Sink failures are
// logged and never reach the caller.
func (f *Fanout) Publish(ctx context.Context, event CommitEvent) {
	f.mu.RLock()
	for sid, s := range f.sessions {
		if sid == event.SessionID {
			continue
		}
		f.metrics.IncrementDelivered(s.push(event))
	}
	f.mu.RUnlock()

	if f.sink == nil {
		return
	}
	if err := f.sink.Publish(ctx, event); err != nil {
		f.metrics.IncrementSinkFailure()
		f.logger.WarnContext(ctx, "commit event sink failed",
			"report_id", event.ReportID.String(),
			"error", err,
		)
	}
}

// Drain returns and clears the session's buffered events, oldest first.
func (f *Fanout) Drain(sessionID id.SessionID) ([]CommitEvent, error) {
	s, err := f.Session(sessionID)
	if err != nil {
		return nil, err
	}
	return s.drain(), nil
}

// Wait blocks until the session has events or ctx ends, then drains.
func (f *Fanout) Wait(ctx context.Context, sessionID id.SessionID) ([]CommitEvent, error) {
	s, err := f.Session(sessionID)
	if err != nil {
		return nil, err
	}
	for s.Pending() == 0 {
		select {
		case <-ctx.Done():
			return s.drain(), nil
		case <-s.Ready():
		}
	}
	return s.drain(), nil
}
