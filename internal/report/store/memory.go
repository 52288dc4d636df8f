package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"crimewatch/internal/report/models"
	id "crimewatch/pkg/domain"
	"crimewatch/pkg/platform/sentinel"
)

const subscriberBuffer = 64

// MemoryStore is an in-process Report Store. Its feed delivers snapshots
// after an optional delay to reproduce subscription lag.
type MemoryStore struct {
	mu      sync.RWMutex
	reports map[id.ReportID]*models.Report
	subs    map[*subscriber]struct{}

	now       func() time.Time
	feedDelay time.Duration
}

type MemoryOption func(*MemoryStore)

// WithFeedDelay delays every snapshot delivered to subscribers.
func WithFeedDelay(d time.Duration) MemoryOption {
	return func(s *MemoryStore) {
		s.feedDelay = d
	}
}

func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

func NewMemory(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		reports: make(map[id.ReportID]*models.Report),
		subs:    make(map[*subscriber]struct{}),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Create(_ context.Context, r *models.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reports[r.ID]; ok {
		return sentinel.ErrConflict
	}
	stored := r.Clone()
	stored.ObservedAt = time.Time{}
	s.reports[r.ID] = stored
	s.publishLocked(stored)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, reportID id.ReportID) (*models.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[reportID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return r.Clone(), nil
}

func (s *MemoryStore) List(_ context.Context, filter models.Filter) ([]*models.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked(filter), nil
}

func (s *MemoryStore) listLocked(filter models.Filter) []*models.Report {
	out := make([]*models.Report, 0, len(s.reports))
	for _, r := range s.reports {
		if filter.Matches(r) {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SubmittedAt.Before(out[j].SubmittedAt)
	})
	return out
}

// PatchCrimeClassification writes only the crime classification group.
// Returns sentinel.ErrStale if the stored value has a newer work timestamp.
func (s *MemoryStore) PatchCrimeClassification(_ context.Context, reportID id.ReportID, c models.CrimeClassification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[reportID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if r.CrimeClassification != nil && !c.ClassifiedAt.After(r.CrimeClassification.ClassifiedAt) {
		return sentinel.ErrStale
	}
	r.CrimeClassification = &c
	s.publishLocked(r)
	return nil
}

// PatchEscalation writes only the escalation group.
func (s *MemoryStore) PatchEscalation(_ context.Context, reportID id.ReportID, e models.Escalation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[reportID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if r.Escalation != nil && !e.PredictedAt.After(r.Escalation.PredictedAt) {
		return sentinel.ErrStale
	}
	r.Escalation = &e
	s.publishLocked(r)
	return nil
}

// Subscribe replays every matching report and then streams a snapshot per
// write. The channel closes when ctx ends or when the subscriber falls too
// far behind; callers re-subscribe to resynchronize.
func (s *MemoryStore) Subscribe(ctx context.Context, filter models.Filter) (<-chan models.Report, error) {
	s.mu.Lock()
	replay := s.listLocked(filter)
	sub := &subscriber{
		filter: filter,
		ch:     make(chan models.Report, subscriberBuffer+len(replay)),
	}
	observedAt := s.now()
	for _, r := range replay {
		r.ObservedAt = observedAt
		sub.ch <- *r
	}
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, sub)
		s.mu.Unlock()
		sub.close()
	}()
	return sub.ch, nil
}

func (s *MemoryStore) publishLocked(r *models.Report) {
	snapshot := *r.Clone()
	snapshot.ObservedAt = s.now()
	for sub := range s.subs {
		if !sub.filter.Matches(&snapshot) {
			continue
		}
		if s.feedDelay > 0 {
			time.AfterFunc(s.feedDelay, func() { s.deliver(sub, snapshot) })
			continue
		}
		s.deliverLocked(sub, snapshot)
	}
}

func (s *MemoryStore) deliver(sub *subscriber, snapshot models.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[sub]; !ok {
		return
	}
	s.deliverLocked(sub, snapshot)
}

func (s *MemoryStore) deliverLocked(sub *subscriber, snapshot models.Report) {
	if !sub.send(snapshot) {
		delete(s.subs, sub)
		sub.close()
	}
}

type subscriber struct {
	filter models.Filter
	ch     chan models.Report

	mu     sync.Mutex
	closed bool
}

func (sub *subscriber) send(r models.Report) bool {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return false
	}
	select {
	case sub.ch <- r:
		return true
	default:
		return false
	}
}

func (sub *subscriber) close() {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if !sub.closed {
		sub.closed = true
		close(sub.ch)
	}
}
