package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	credmetrics "crimewatch/internal/credibility/metrics"
	"crimewatch/internal/credibility/policy"
	credservice "crimewatch/internal/credibility/service"
	credstore "crimewatch/internal/credibility/store"
	"crimewatch/internal/enrichment"
	enrichmetrics "crimewatch/internal/enrichment/metrics"
	"crimewatch/internal/intake"
	intakemetrics "crimewatch/internal/intake/metrics"
	"crimewatch/internal/notify"
	"crimewatch/internal/platform/config"
	"crimewatch/internal/platform/httpserver"
	"crimewatch/internal/platform/kafka"
	"crimewatch/internal/platform/logger"
	"crimewatch/internal/platform/postgres"
	"crimewatch/internal/platform/redis"
	"crimewatch/internal/predictor"
	"crimewatch/internal/quarantine"
	"crimewatch/internal/ratelimit"
	ratelimitmetrics "crimewatch/internal/ratelimit/metrics"
	"crimewatch/internal/reconcile"
	reconcilemetrics "crimewatch/internal/reconcile/metrics"
	"crimewatch/internal/report/store"
	"crimewatch/pkg/platform/circuit"
)

const shutdownTimeout = 15 * time.Second

// main wires the intake pipeline, the background dispatcher and reconciler,
// and the HTTP API, then runs them until SIGINT or SIGTERM.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("crimewatch exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("crimewatch stopped")
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.backends.close()

	srv := httpserver.New(cfg.Server.Addr, a.router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.dispatcher.Run(gctx) })
	g.Go(func() error { return a.reconciler.Run(gctx) })
	g.Go(func() error {
		log.Info("starting crimewatch", "addr", cfg.Server.Addr, "backend", a.backends.name)
		return httpserver.Run(gctx, srv, shutdownTimeout)
	})
	return g.Wait()
}

// app is the assembled process: the HTTP router plus the background loops
// that run beside it.
type app struct {
	backends   *backends
	router     http.Handler
	dispatcher *enrichment.Dispatcher
	reconciler *reconcile.Reconciler
}

func newApp(ctx context.Context, cfg config.Config, log *slog.Logger) (*app, error) {
	b, err := openBackends(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	a, err := assemble(cfg, log, b)
	if err != nil {
		b.close()
		return nil, err
	}
	return a, nil
}

func assemble(cfg config.Config, log *slog.Logger, b *backends) (*app, error) {
	rewardPolicy, err := policy.Load(cfg.Ledger.RewardPolicyFile)
	if err != nil {
		return nil, err
	}

	ledger, err := credservice.New(b.credibility,
		credservice.WithLogger(log),
		credservice.WithMetrics(credmetrics.New()),
		credservice.WithRetry(cfg.Ledger.WriteAttempts, cfg.Ledger.WriteBackoff),
	)
	if err != nil {
		return nil, fmt.Errorf("build credibility ledger: %w", err)
	}

	authenticity, crime, escalation := buildPredictors(cfg.Predictors, log)

	reconciler := reconcile.New(b.reports,
		reconcile.WithLogger(log),
		reconcile.WithMetrics(reconcilemetrics.New()),
	)

	dispatcher, err := enrichment.New(b.reports, crime, escalation,
		enrichment.WithLogger(log),
		enrichment.WithMetrics(enrichmetrics.New()),
		enrichment.WithLocalWriter(reconciler),
		enrichment.WithAutoEscalation(cfg.Dispatcher.AutoEscalate),
		enrichment.WithConfig(enrichment.Config{
			Workers:        cfg.Dispatcher.Workers,
			QueueSize:      cfg.Dispatcher.QueueSize,
			MaxRetries:     cfg.Dispatcher.MaxRetries,
			JobTimeout:     cfg.Dispatcher.JobTimeout,
			AttemptTimeout: cfg.Dispatcher.AttemptTimeout,
			BaseBackoff:    cfg.Dispatcher.BaseBackoff,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("build dispatcher: %w", err)
	}

	fanoutOpts := []notify.Option{
		notify.WithCapacity(cfg.Notify.BufferCapacity),
		notify.WithLogger(log),
		notify.WithMetrics(notify.NewMetrics()),
	}
	if b.kafka != nil {
		fanoutOpts = append(fanoutOpts, notify.WithSink(notify.NewKafkaSink(b.kafka, cfg.Kafka.CommitEventsTopic)))
	}
	fanout := notify.New(fanoutOpts...)

	intakeService, err := intake.New(ledger, authenticity, b.reports, b.quarantine,
		intake.WithDispatcher(dispatcher),
		intake.WithNotifier(fanout),
		intake.WithPolicy(rewardPolicy),
		intake.WithVerifyTimeout(cfg.Predictors.VerifyTimeout),
		intake.WithLogger(log),
		intake.WithMetrics(intakemetrics.New()),
	)
	if err != nil {
		return nil, fmt.Errorf("build intake service: %w", err)
	}

	submitLimit := ratelimit.New(b.rateLimits, cfg.RateLimit.Submissions, cfg.RateLimit.Window,
		ratelimit.WithLogger(log),
		ratelimit.WithMetrics(ratelimitmetrics.New()),
	)
	router := newRouter(cfg, log, routerDeps{
		intake:      intakeService,
		reports:     b.reports,
		views:       reconciler,
		classifier:  dispatcher,
		ledger:      ledger,
		sessions:    fanout,
		submitLimit: submitLimit,
		health:      b.health,
	})
	return &app{
		backends:   b,
		router:     router,
		dispatcher: dispatcher,
		reconciler: reconciler,
	}, nil
}

// backends holds either the durable stores or their in-memory stand-ins.
type backends struct {
	name        string
	reports     reportStore
	quarantine  intake.QuarantineStore
	credibility credservice.Store
	rateLimits  ratelimit.Store
	kafka       *kgo.Client
	health      []healthCheck
	closers     []func()
}

type reportStore interface {
	intake.ReportStore
	enrichment.ReportStore
	reconcile.Feed
}

type healthCheck struct {
	name  string
	check func(context.Context) error
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func openBackends(ctx context.Context, cfg config.Config, log *slog.Logger) (*backends, error) {
	b := &backends{name: "memory"}

	db, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		return nil, err
	}
	if db != nil {
		if err := postgres.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		b.name = "postgres"
		b.reports = store.NewPostgres(db, cfg.Postgres.URL, log)
		b.quarantine = quarantine.NewPostgres(db)
		b.health = append(b.health, healthCheck{"postgres", pinger(db)})
		b.closers = append(b.closers, func() { _ = db.Close() })
	} else {
		log.Warn("DATABASE_URL not set, reports and quarantine are kept in memory")
		b.reports = store.NewMemory()
		b.quarantine = quarantine.NewMemory()
	}

	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		b.close()
		return nil, err
	}
	if rc != nil {
		b.credibility = credstore.NewRedis(rc.Client)
		b.rateLimits = ratelimit.NewRedis(rc.Client)
		b.health = append(b.health, healthCheck{"redis", rc.Health})
		b.closers = append(b.closers, func() { _ = rc.Close() })
	} else {
		log.Warn("REDIS_URL not set, the credibility ledger is kept in memory")
		b.credibility = credstore.NewMemory()
		b.rateLimits = ratelimit.NewMemory()
	}

	kc, err := kafka.NewProducer(ctx, cfg.Kafka)
	if err != nil {
		b.close()
		return nil, err
	}
	if kc != nil {
		if err := kafka.EnsureTopics(ctx, kc, cfg.Kafka, cfg.Kafka.CommitEventsTopic); err != nil {
			kc.Close()
			b.close()
			return nil, err
		}
		b.kafka = kc
		b.health = append(b.health, healthCheck{"kafka", kc.Ping})
		b.closers = append(b.closers, kc.Close)
	}
	return b, nil
}

func pinger(db *sql.DB) func(context.Context) error {
	return db.PingContext
}

func buildPredictors(cfg config.PredictorsConfig, log *slog.Logger) (predictor.Authenticity, predictor.CrimeClassifier, predictor.EscalationPredictor) {
	opts := func(name string) []predictor.Option {
		return []predictor.Option{
			predictor.WithAPIKey(cfg.APIKey),
			predictor.WithRateLimit(cfg.RequestsPerSec, cfg.Burst),
			predictor.WithBreaker(circuit.New(name,
				circuit.WithFailureThreshold(5),
				circuit.WithCooldown(30*time.Second),
			)),
		}
	}

	var (
		authenticity predictor.Authenticity        = predictor.Disabled{Name: "authenticity"}
		crime        predictor.CrimeClassifier     = predictor.Disabled{Name: "crime"}
		escalation   predictor.EscalationPredictor = predictor.Disabled{Name: "escalation"}
	)
	if cfg.AuthenticityURL != "" {
		authenticity = predictor.NewAuthenticityClient(cfg.AuthenticityURL, opts("authenticity")...)
	} else {
		log.Warn("AUTHENTICITY_URL not set, every report is committed for manual review")
	}
	if cfg.CrimeURL != "" {
		crime = predictor.NewCrimeClient(cfg.CrimeURL, opts("crime")...)
	} else {
		log.Warn("CRIME_URL not set, crime classification is disabled")
	}
	if cfg.EscalationURL != "" {
		escalation = predictor.NewEscalationClient(cfg.EscalationURL, opts("escalation")...)
	} else {
		log.Warn("ESCALATION_URL not set, escalation prediction is disabled")
	}
	return authenticity, crime, escalation
}
