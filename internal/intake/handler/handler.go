// Package handler exposes the intake pipeline and its read side over HTTP.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	credmodels "crimewatch/internal/credibility/models"
	"crimewatch/internal/enrichment"
	"crimewatch/internal/intake"
	"crimewatch/internal/notify"
	"crimewatch/internal/report/models"
	id "crimewatch/pkg/domain"
	dErrors "crimewatch/pkg/domain-errors"
	"crimewatch/pkg/platform/httputil"
	authmw "crimewatch/pkg/platform/middleware/auth"
	"crimewatch/pkg/platform/sentinel"
	"crimewatch/pkg/requestcontext"
)

// IdempotencyKeyHeader carries a client-chosen report id. Resubmitting with
// the same key returns the first outcome.
const IdempotencyKeyHeader = "Idempotency-Key"

const maxEventWait = 30 * time.Second

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Intake,Classifier
type Intake interface {
	Submit(ctx context.Context, draft models.Draft) (*intake.Outcome, error)
}

type Reports interface {
	Get(ctx context.Context, reportID id.ReportID) (*models.Report, error)
}

// Views merges store reads with enrichment results the feed has not
// delivered yet.
type Views interface {
	Resolve(report models.Report) models.Report
}

type Classifier interface {
	Enqueue(reportID id.ReportID, kind enrichment.Kind) error
}

type Ledger interface {
	GetScore(ctx context.Context, submitterID id.SubmitterID) (*credmodels.Score, error)
}

type Sessions interface {
	Register(sessionID id.SessionID, submitterID id.SubmitterID, userAgent string) *notify.Session
	Unregister(sessionID id.SessionID) error
	Session(sessionID id.SessionID) (*notify.Session, error)
	Wait(ctx context.Context, sessionID id.SessionID) ([]notify.CommitEvent, error)
}

type Handler struct {
	intake     Intake
	reports    Reports
	views      Views
	classifier Classifier
	ledger     Ledger
	sessions   Sessions
	logger     *slog.Logger

	submitMiddleware []func(http.Handler) http.Handler
}

type Option func(*Handler)

// WithSubmitMiddleware wraps only the submission route, e.g. with a
// per-submitter rate limit.
func WithSubmitMiddleware(mw ...func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.submitMiddleware = append(h.submitMiddleware, mw...)
	}
}

func New(
	intake Intake,
	reports Reports,
	views Views,
	classifier Classifier,
	ledger Ledger,
	sessions Sessions,
	logger *slog.Logger,
	opts ...Option,
) *Handler {
	h := &Handler{
		intake:     intake,
		reports:    reports,
		views:      views,
		classifier: classifier,
		ledger:     ledger,
		sessions:   sessions,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the API routes. Authentication must already be applied
// to r; reviewer-only routes add their role check here.
func (h *Handler) Register(r chi.Router) {
	r.With(h.submitMiddleware...).Post("/v1/reports", h.HandleSubmit)
	r.Get("/v1/reports/{id}", h.HandleGetReport)
	r.Get("/v1/submitters/{id}/credibility", h.HandleGetCredibility)

	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireRole(authmw.RoleReviewer, h.logger))
		r.Post("/v1/reports/{id}/classifications/{kind}", h.HandleClassify)
		r.Post("/v1/sessions", h.HandleOpenSession)
		r.Delete("/v1/sessions/{id}", h.HandleCloseSession)
		r.Get("/v1/sessions/{id}/events", h.HandleSessionEvents)
	})
}

func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndValidate[SubmitReportRequest](ctx, w, r, h.logger, requestID)
	if !ok {
		return
	}

	draft := models.Draft{
		SubmitterID: requestcontext.SubmitterID(ctx),
		SessionID:   requestcontext.SessionID(ctx),
		Text:        req.Text,
		LocationRef: req.LocationRef,
		MediaRef:    req.MediaRef,
	}
	if req.OccurredAt != nil {
		draft.OccurredAt = req.OccurredAt.UTC()
	}
	if key := r.Header.Get(IdempotencyKeyHeader); key != "" {
		reportID, err := id.ParseReportID(key)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "Idempotency-Key must be a UUID"))
			return
		}
		draft.ReportID = reportID
	}

	outcome, err := h.intake.Submit(ctx, draft)
	if err != nil {
		h.logError(ctx, "submission failed", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, submitStatus(outcome), toSubmitResponse(outcome))
}

func submitStatus(o *intake.Outcome) int {
	switch o.Status {
	case intake.StatusRejected:
		return http.StatusUnprocessableEntity
	case intake.StatusSuspended:
		return http.StatusForbidden
	}
	if o.Replayed {
		return http.StatusOK
	}
	return http.StatusCreated
}

func (h *Handler) HandleGetReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reportID, err := id.ParseReportID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	report, err := h.reports.Get(ctx, reportID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "report not found"))
			return
		}
		h.logError(ctx, "report read failed", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "report store unavailable"))
		return
	}

	view := h.views.Resolve(*report)
	httputil.WriteJSON(w, http.StatusOK, toReportResponse(&view))
}

func (h *Handler) HandleClassify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reportID, err := id.ParseReportID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	kind, err := enrichment.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "kind must be crime_type or escalation"))
		return
	}

	if _, err := h.reports.Get(ctx, reportID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "report not found"))
			return
		}
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "report store unavailable"))
		return
	}

	if err := h.classifier.Enqueue(reportID, kind); err != nil {
		h.logger.WarnContext(ctx, "classification not queued",
			"report_id", reportID.String(),
			"kind", kind.String(),
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "classification queue unavailable"))
		return
	}

	httputil.WriteJSON(w, http.StatusAccepted, ClassificationAccepted{
		ReportID: reportID.String(),
		Kind:     kind.String(),
		Status:   "queued",
	})
}

// HandleGetCredibility shows a submitter their own standing. Reviewers may
// look up anyone.
func (h *Handler) HandleGetCredibility(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	submitterID, err := id.ParseSubmitterID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if submitterID != requestcontext.SubmitterID(ctx) && !authmw.HasRole(ctx, authmw.RoleReviewer) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "cannot view another submitter's credibility"))
		return
	}

	score, err := h.ledger.GetScore(ctx, submitterID)
	if err != nil {
		h.logError(ctx, "credibility read failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCredibilityResponse(score))
}

// HandleOpenSession registers the caller's token session for commit
// notifications.
func (h *Handler) HandleOpenSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := requestcontext.SessionID(ctx)
	if sessionID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "token carries no session"))
		return
	}
	session := h.sessions.Register(sessionID, requestcontext.SubmitterID(ctx), requestcontext.UserAgent(ctx))
	httputil.WriteJSON(w, http.StatusCreated, toSessionResponse(session))
}

func (h *Handler) HandleCloseSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.ownSession(w, r)
	if !ok {
		return
	}
	if err := h.sessions.Unregister(session.ID); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "session not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSessionEvents drains the session's buffered commits. With
// ?wait=<duration> it long-polls until an event arrives or the wait ends.
func (h *Handler) HandleSessionEvents(w http.ResponseWriter, r *http.Request) {
	session, ok := h.ownSession(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	var wait time.Duration
	if raw := r.URL.Query().Get("wait"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "wait must be a non-negative duration"))
			return
		}
		wait = min(d, maxEventWait)
	}

	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	events, err := h.sessions.Wait(waitCtx, session.ID)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "session not found"))
		return
	}
	if events == nil {
		events = []notify.CommitEvent{}
	}
	httputil.WriteJSON(w, http.StatusOK, EventsResponse{Events: events})
}

// ownSession resolves the {id} session and checks it belongs to the caller.
// Someone else's session is reported as missing.
func (h *Handler) ownSession(w http.ResponseWriter, r *http.Request) (*notify.Session, bool) {
	sessionID, err := id.ParseSessionID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return nil, false
	}
	session, err := h.sessions.Session(sessionID)
	if err != nil || session.SubmitterID != requestcontext.SubmitterID(r.Context()) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "session not found"))
		return nil, false
	}
	return session, true
}

func (h *Handler) logError(ctx context.Context, msg string, err error) {
	level := slog.LevelWarn
	if code := dErrors.CodeOf(err); code == dErrors.CodeInternal || code == dErrors.CodeUnavailable {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
}
