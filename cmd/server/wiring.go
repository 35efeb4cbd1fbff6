package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"civitas/internal/platform/config"
	platformmetrics "civitas/internal/platform/metrics"
	platformpostgres "civitas/internal/platform/postgres"
	platformredis "civitas/internal/platform/redis"
	"civitas/internal/verification/binder"
	"civitas/internal/verification/commitment"
	"civitas/internal/verification/identityhash"
	"civitas/internal/verification/locality"
	vmetrics "civitas/internal/verification/metrics"
	"civitas/internal/verification/models"
	"civitas/internal/verification/privacy"
	"civitas/internal/verification/providers"
	"civitas/internal/verification/service"
	"civitas/internal/verification/session"
	sessionmemory "civitas/internal/verification/session/store/memory"
	sessionredis "civitas/internal/verification/session/store/redis"
	"civitas/internal/verification/store"
	storememory "civitas/internal/verification/store/memory"
	storepostgres "civitas/internal/verification/store/postgres"
	"civitas/pkg/platform/audit"
	"civitas/pkg/platform/audit/outbox"
	auditmemory "civitas/pkg/platform/audit/store/memory"
	auditpostgres "civitas/pkg/platform/audit/store/postgres"
	"civitas/pkg/platform/circuit"
)

// worker is a background loop that runs until ctx is cancelled.
type worker func(ctx context.Context) error

type application struct {
	router  http.Handler
	workers []worker
	closers []func()
}

func (a *application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func build(ctx context.Context, cfg config.Config, log *slog.Logger) (*application, error) {
	app := &application{}
	fail := func(err error) (*application, error) {
		app.close()
		return nil, err
	}
	vc := cfg.Verification
	pepper := []byte(vc.Pepper)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	verificationMetrics := vmetrics.New(reg)
	httpMetrics := platformmetrics.New(reg)

	db, err := platformpostgres.Open(ctx, cfg.Postgres)
	if err != nil {
		return fail(err)
	}
	var (
		dataStore  store.Store
		auditStore audit.Store
	)
	if db != nil {
		app.closers = append(app.closers, func() { _ = db.Close() })
		if err := storepostgres.ApplySchema(ctx, db); err != nil {
			return fail(err)
		}
		if err := auditpostgres.ApplySchema(ctx, db); err != nil {
			return fail(err)
		}
		dataStore = storepostgres.New(db)
		auditStore = auditpostgres.New(db)
		log.Info("using postgres datastore")
	} else {
		dataStore = storememory.New()
		auditStore = auditmemory.NewInMemoryStore()
		log.Warn("CIVITAS_DATABASE_URL not set, using in-memory datastore")
	}

	keyStore, rc, err := buildKeyStore(ctx, cfg, app, log)
	if err != nil {
		return fail(err)
	}

	if db != nil && len(cfg.Kafka.Brokers) > 0 {
		relay, err := buildRelay(ctx, cfg.Kafka, db, app, log)
		if err != nil {
			return fail(err)
		}
		app.workers = append(app.workers, relay.Run)
	}

	engine, err := identityhash.New(pepper, identityhash.WithMinimumAge(vc.MinimumAge))
	if err != nil {
		return fail(err)
	}
	committer, err := commitment.New(pepper)
	if err != nil {
		return fail(err)
	}
	sessions, err := session.NewManager(keyStore, []byte(vc.SessionSecret),
		session.WithTTL(vc.SessionTTL),
		session.WithLogger(log),
		session.WithObserver(verificationMetrics),
	)
	if err != nil {
		return fail(err)
	}
	boundary, err := privacy.NewBoundary(buildResolver(vc, log), pepper, privacy.WithLogger(log))
	if err != nil {
		return fail(err)
	}
	hasher, err := audit.NewClientHasher(pepper)
	if err != nil {
		return fail(err)
	}
	registry, mobile, err := buildVerifiers(vc, log)
	if err != nil {
		return fail(err)
	}

	svc, err := service.New(service.Deps{
		Store:     dataStore,
		Engine:    engine,
		Committer: committer,
		Binder:    binder.New(binder.WithLogger(log)),
		Sessions:  sessions,
		Boundary:  boundary,
		Verifiers: registry,
		Mobile:    mobile,
		Audit:     auditStore,
		Hasher:    hasher,
	}, service.WithLogger(log), service.WithMetrics(verificationMetrics))
	if err != nil {
		return fail(err)
	}

	app.router = newRouter(routerDeps{
		cfg:         cfg,
		logger:      log,
		service:     svc,
		registry:    reg,
		httpMetrics: httpMetrics,
		health:      healthChecks(db, rc),
	})
	return app, nil
}

func buildKeyStore(ctx context.Context, cfg config.Config, app *application, log *slog.Logger) (session.KeyStore, *platformredis.Client, error) {
	vc := cfg.Verification
	rc, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	if rc != nil {
		app.closers = append(app.closers, func() { _ = rc.Close() })
		log.Info("using redis session store")
		return sessionredis.New(rc.Client, sessionredis.WithGrace(vc.SessionGrace)), rc, nil
	}

	log.Warn("CIVITAS_REDIS_URL not set, using in-memory session store")
	mem := sessionmemory.New(sessionmemory.WithGrace(vc.SessionGrace))
	app.workers = append(app.workers, func(ctx context.Context) error {
		mem.StartSweeper(ctx, vc.SweepInterval, time.Now)
		return nil
	})
	return mem, nil, nil
}

func buildRelay(ctx context.Context, kc config.KafkaConfig, db *sql.DB, app *application, log *slog.Logger) (*outbox.Relay, error) {
	client, err := outbox.NewKafkaClient(kc.Brokers, kc.AuditTopic)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	app.closers = append(app.closers, client.Close)
	if err := outbox.EnsureTopic(ctx, client, kc.AuditTopic, kc.Partitions, kc.Replication); err != nil {
		return nil, err
	}
	log.Info("audit outbox relay enabled", "topic", kc.AuditTopic)
	return outbox.NewRelay(db, client, kc.AuditTopic,
		outbox.WithBatchSize(kc.BatchSize),
		outbox.WithInterval(kc.PollInterval),
		outbox.WithLogger(log),
	), nil
}

func newBreaker(name string, vc config.Verification) *circuit.Breaker {
	return circuit.New(name,
		circuit.WithFailureThreshold(vc.UpstreamFailures),
		circuit.WithCooldown(vc.UpstreamCooldown),
	)
}

func buildResolver(vc config.Verification, log *slog.Logger) privacy.LocalityResolver {
	if vc.LocalityResolver != "" {
		return locality.GuardedResolver{
			Resolver: locality.NewHTTPResolver(vc.LocalityResolver, vc.UpstreamTimeout),
			Breaker:  newBreaker("locality", vc),
			Logger:   log,
		}
	}
	log.Warn("CIVITAS_LOCALITY_RESOLVER_URL not set, using static locality resolver")
	return locality.StaticResolver{}
}

func buildVerifiers(vc config.Verification, log *slog.Logger) (*providers.Registry, providers.MobileCredentialVerifier, error) {
	var passport providers.Verifier
	if vc.PassportVerifier != "" {
		passport = providers.WithBreaker(
			providers.NewHTTPVerifier("passport-verifier", models.ProviderPassport, vc.PassportVerifier, vc.UpstreamTimeout),
			newBreaker("passport-verifier", vc), log)
	} else {
		log.Warn("CIVITAS_PASSPORT_VERIFIER_URL not set, passport proofs are decoded without verification")
		passport = providers.StaticVerifier{ProviderID: "passport-static", ProviderType: models.ProviderPassport}
	}
	registry := providers.NewRegistry()
	if err := registry.Register(passport); err != nil {
		return nil, nil, err
	}

	var mobile providers.MobileCredentialVerifier
	if vc.MobileVerifier != "" {
		mobile = providers.WithMobileBreaker(
			providers.NewHTTPMobileVerifier("mobile-verifier", vc.MobileVerifier, vc.UpstreamTimeout),
			newBreaker("mobile-verifier", vc), log)
	} else {
		log.Warn("CIVITAS_MOBILE_VERIFIER_URL not set, wallet responses are decoded without verification")
		mobile = providers.StaticMobileVerifier{ProviderID: "mobile-static"}
	}
	return registry, mobile, nil
}

func healthChecks(db *sql.DB, rc *platformredis.Client) map[string]func(context.Context) error {
	checks := map[string]func(context.Context) error{}
	if db != nil {
		checks["postgres"] = db.PingContext
	}
	if rc != nil {
		checks["redis"] = rc.Health
	}
	return checks
}
