package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"crimewatch/internal/intake/handler"
	jwttoken "crimewatch/internal/jwt_token"
	"crimewatch/internal/platform/config"
	"crimewatch/internal/platform/metrics"
	"crimewatch/internal/platform/middleware"
	"crimewatch/internal/ratelimit"
	"crimewatch/pkg/platform/httputil"
	authmw "crimewatch/pkg/platform/middleware/auth"
	"crimewatch/pkg/platform/middleware/metadata"
	"crimewatch/pkg/platform/middleware/requesttime"
)

type routerDeps struct {
	intake      handler.Intake
	reports     handler.Reports
	views       handler.Views
	classifier  handler.Classifier
	ledger      handler.Ledger
	sessions    handler.Sessions
	submitLimit *ratelimit.Middleware
	health      []healthCheck
}

func newRouter(cfg config.Config, log *slog.Logger, deps routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logger(log))
	r.Use(middleware.Latency(metrics.New()))

	r.Get("/healthz", healthHandler(deps.health))
	r.Handle("/metrics", metrics.Handler())

	jwtService := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer, cfg.Server.JWTAudience)
	api := handler.New(deps.intake, deps.reports, deps.views, deps.classifier, deps.ledger, deps.sessions, log,
		handler.WithSubmitMiddleware(deps.submitLimit.PerSubmitter),
	)
	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(jwttoken.NewJWTServiceAdapter(jwtService), log))
		api.Register(r)
	})
	return r
}

type healthResponse struct {
	Status   string            `json:"status"`
	Backends map[string]string `json:"backends,omitempty"`
}

func healthHandler(checks []healthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok", Backends: make(map[string]string, len(checks))}
		status := http.StatusOK
		for _, c := range checks {
			if err := c.check(ctx); err != nil {
				resp.Backends[c.name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Backends[c.name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
