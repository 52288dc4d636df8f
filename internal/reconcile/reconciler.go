// Package reconcile sits between the report store's snapshot feed and its
// readers. The feed can lag behind writes this process has just made; the
// reconciler keeps those writes in an overlay so a late snapshot never rolls
// a reader back.
package reconcile

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"crimewatch/internal/reconcile/metrics"
	"crimewatch/internal/report/models"
	id "crimewatch/pkg/domain"
)

const readerBuffer = 64

// Feed is the report store's snapshot subscription. The channel closes
// when the feed ends; Run subscribes again.
type Feed interface {
	Subscribe(ctx context.Context, filter models.Filter) (<-chan models.Report, error)
}

type Reconciler struct {
	feed    Feed
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	minBackoff time.Duration
	maxBackoff time.Duration

	mu        sync.RWMutex
	overlay   map[id.ReportID]models.Report
	snapshots map[id.ReportID]models.Report
	views     map[id.ReportID]models.Report
	readers   map[*reader]struct{}
}

type Option func(*Reconciler)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reconciler) {
		r.metrics = m
	}
}

// WithBackoff bounds the wait between resubscription attempts.
func WithBackoff(minWait, maxWait time.Duration) Option {
	return func(r *Reconciler) {
		r.minBackoff = minWait
		r.maxBackoff = maxWait
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		r.now = now
	}
}

func New(feed Feed, opts ...Option) *Reconciler {
	r := &Reconciler{
		feed:       feed,
		logger:     slog.New(slog.DiscardHandler),
		now:        time.Now,
		minBackoff: 100 * time.Millisecond,
		maxBackoff: 10 * time.Second,
		overlay:    make(map[id.ReportID]models.Report),
		snapshots:  make(map[id.ReportID]models.Report),
		views:      make(map[id.ReportID]models.Report),
		readers:    make(map[*reader]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RecordLocal folds a result this process just wrote into the overlay. If
// the report is already known the merged view is republished at once.
func (r *Reconciler) RecordLocal(ctx context.Context, patch models.Patch) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ov := r.overlay[patch.ReportID]
	ov.ID = patch.ReportID
	if c := patch.CrimeClassification; c != nil {
		if ov.CrimeClassification == nil || c.ClassifiedAt.After(ov.CrimeClassification.ClassifiedAt) {
			ov.CrimeClassification = clonePtr(c)
		}
	}
	if e := patch.Escalation; e != nil {
		if ov.Escalation == nil || e.PredictedAt.After(ov.Escalation.PredictedAt) {
			ov.Escalation = clonePtr(e)
		}
	}
	r.overlay[patch.ReportID] = ov
	r.metrics.SetOverlaySize(len(r.overlay))

	snapshot, ok := r.snapshots[patch.ReportID]
	if !ok {
		return
	}
	view := Merge(ov, snapshot)
	r.views[patch.ReportID] = view
	r.publishLocked(view)
	r.logger.DebugContext(ctx, "local enrichment folded into view",
		"report_id", patch.ReportID.String(),
		"field", string(patch.Field()),
	)
}

// Apply merges a feed snapshot with the overlay, publishes the result to
// readers and returns it. The overlay entry is dropped once the feed has
// caught up with it. A snapshot observed before the last one applied for
// the same report is ignored and the current view is returned.
func (r *Reconciler) Apply(snapshot models.Report) models.Report {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot = *snapshot.Clone()
	if snapshot.ObservedAt.IsZero() {
		snapshot.ObservedAt = r.now()
	}
	if prev, ok := r.snapshots[snapshot.ID]; ok && snapshot.ObservedAt.Before(prev.ObservedAt) {
		r.metrics.IncrementOutOfOrder()
		r.logger.Debug("out of order snapshot ignored",
			"report_id", snapshot.ID.String(),
			"observed_at", snapshot.ObservedAt,
			"last_observed_at", prev.ObservedAt,
		)
		view := r.views[snapshot.ID]
		return *view.Clone()
	}
	r.snapshots[snapshot.ID] = snapshot

	view := snapshot
	if ov, ok := r.overlay[snapshot.ID]; ok {
		view = Merge(ov, snapshot)
		kept := retained(view, snapshot)
		r.metrics.IncrementSnapshot(kept)
		if kept {
			r.logger.Debug("stale snapshot reconciled with local result",
				"report_id", snapshot.ID.String(),
				"observed_at", snapshot.ObservedAt,
			)
		}
		if caughtUp(ov, snapshot) {
			delete(r.overlay, snapshot.ID)
			r.metrics.SetOverlaySize(len(r.overlay))
		}
	} else {
		r.metrics.IncrementSnapshot(false)
	}
	r.views[snapshot.ID] = view
	r.publishLocked(view)
	return *view.Clone()
}

// Resolve merges a report read directly from the store with the overlay,
// without publishing it.
func (r *Reconciler) Resolve(report models.Report) models.Report {
	if report.ObservedAt.IsZero() {
		report.ObservedAt = r.now()
	}
	r.mu.RLock()
	ov, ok := r.overlay[report.ID]
	r.mu.RUnlock()
	if !ok {
		return *report.Clone()
	}
	return Merge(ov, report)
}

// Get returns the latest reconciled view of a report seen on the feed.
func (r *Reconciler) Get(reportID id.ReportID) (models.Report, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	view, ok := r.views[reportID]
	if !ok {
		return models.Report{}, false
	}
	return *view.Clone(), true
}

// Subscribe streams every reconciled view published after the call. A
// reader that falls behind misses views rather than blocking the feed;
// the next view of the same report supersedes what it missed.
func (r *Reconciler) Subscribe(ctx context.Context) <-chan models.Report {
	rd := &reader{ch: make(chan models.Report, readerBuffer)}
	r.mu.Lock()
	r.readers[rd] = struct{}{}
	r.mu.Unlock()

	go func() {
		<-ctx.Done()
		r.mu.Lock()
		delete(r.readers, rd)
		close(rd.ch)
		r.mu.Unlock()
	}()
	return rd.ch
}

func (r *Reconciler) publishLocked(view models.Report) {
	for rd := range r.readers {
		select {
		case rd.ch <- *view.Clone():
		default:
			r.metrics.IncrementReaderDrop()
		}
	}
}

// Run consumes the feed until ctx ends, subscribing again with backoff
// whenever the feed closes or fails.
func (r *Reconciler) Run(ctx context.Context) error {
	wait := r.minBackoff
	for {
		ch, err := r.feed.Subscribe(ctx, models.Filter{})
		if err != nil {
			r.logger.WarnContext(ctx, "snapshot feed subscribe failed", "error", err)
		} else {
			if r.consume(ctx, ch) {
				wait = r.minBackoff
			}
		}
		if ctx.Err() != nil {
			return nil
		}

		r.metrics.IncrementResubscribe()
		r.logger.InfoContext(ctx, "snapshot feed ended, resubscribing", "backoff", wait)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
		wait = min(wait*2, r.maxBackoff)
	}
}

// consume applies snapshots until the channel closes. It reports whether
// any snapshot arrived.
func (r *Reconciler) consume(ctx context.Context, ch <-chan models.Report) bool {
	received := false
	for {
		select {
		case <-ctx.Done():
			return received
		case snapshot, ok := <-ch:
			if !ok {
				return received
			}
			received = true
			r.Apply(snapshot)
		}
	}
}

type reader struct {
	ch chan models.Report
}
