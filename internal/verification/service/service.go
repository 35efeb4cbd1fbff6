// Package service orchestrates verification: provider checks, identity
// hashing, commitment binding, locality reduction and tier derivation, with
// every accepted result committed together with its audit record.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"civitas/internal/verification/binder"
	"civitas/internal/verification/commitment"
	"civitas/internal/verification/identityhash"
	"civitas/internal/verification/metrics"
	"civitas/internal/verification/models"
	"civitas/internal/verification/privacy"
	"civitas/internal/verification/providers"
	"civitas/internal/verification/session"
	"civitas/internal/verification/store"
	"civitas/internal/verification/trust"
	id "civitas/pkg/domain"
	dErrors "civitas/pkg/domain-errors"
	"civitas/pkg/platform/audit"
	"civitas/pkg/platform/sentinel"
	"civitas/pkg/requestcontext"
)

const tracerName = "civitas/verification"

// Deps are the collaborators a Service needs. All are required.
type Deps struct {
	Store     store.Store
	Engine    *identityhash.Engine
	Committer *commitment.Committer
	Binder    *binder.Binder
	Sessions  *session.Manager
	Boundary  *privacy.Boundary
	Verifiers *providers.Registry
	Mobile    providers.MobileCredentialVerifier
	Audit     audit.Store
	Hasher    *audit.ClientHasher
}

// Service implements the verification operations.
type Service struct {
	store     store.Store
	engine    *identityhash.Engine
	committer *commitment.Committer
	binder    *binder.Binder
	sessions  *session.Manager
	boundary  *privacy.Boundary
	verifiers *providers.Registry
	mobile    providers.MobileCredentialVerifier
	auditor   audit.Store
	hasher    *audit.ClientHasher

	metrics *metrics.Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithTracer overrides the global tracer.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// New creates a Service.
func New(deps Deps, opts ...Option) (*Service, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("verification store is required")
	case deps.Engine == nil || deps.Committer == nil:
		return nil, errors.New("identity hash engine and committer are required")
	case deps.Binder == nil:
		return nil, errors.New("commitment binder is required")
	case deps.Sessions == nil:
		return nil, errors.New("session manager is required")
	case deps.Boundary == nil:
		return nil, errors.New("privacy boundary is required")
	case deps.Verifiers == nil || deps.Mobile == nil:
		return nil, errors.New("verifiers are required")
	case deps.Audit == nil || deps.Hasher == nil:
		return nil, errors.New("audit store and client hasher are required")
	}
	s := &Service{
		store:     deps.Store,
		engine:    deps.Engine,
		committer: deps.Committer,
		binder:    deps.Binder,
		sessions:  deps.Sessions,
		boundary:  deps.Boundary,
		verifiers: deps.Verifiers,
		mobile:    deps.Mobile,
		auditor:   deps.Audit,
		hasher:    deps.Hasher,
		logger:    slog.Default(),
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Result is returned by every operation that may change an account's tier.
type Result struct {
	AccountID         id.AccountID
	TrustTier         trust.Tier
	MergedInto        *id.AccountID
	DerivedLocalityID string
}

// MergedInto reports whether accountID was merged and into which account.
func (s *Service) MergedInto(ctx context.Context, accountID id.AccountID) (id.AccountID, bool, error) {
	p, err := s.store.FindProfile(ctx, accountID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return id.AccountID{}, false, nil
		}
		return id.AccountID{}, false, fmt.Errorf("find trust profile: %w", err)
	}
	if !p.IsMerged() {
		return id.AccountID{}, false, nil
	}
	return *p.MergedInto, true, nil
}

// Profile returns the account's trust profile, or an unverified one.
func (s *Service) Profile(ctx context.Context, accountID id.AccountID) (*models.TrustProfile, error) {
	p, err := s.store.FindProfile(ctx, accountID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.NewTrustProfile(accountID, requestcontext.Now(ctx)), nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load trust profile")
	}
	return p, nil
}

func (s *Service) ensureNotMerged(ctx context.Context, accountID id.AccountID) error {
	if accountID.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "account is required")
	}
	_, merged, err := s.MergedInto(ctx, accountID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load trust profile")
	}
	if merged {
		return dErrors.New(dErrors.CodeAccountMerged, "account was merged into another account")
	}
	return nil
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	}
	span.End()
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return string(dErrors.CodeOf(err))
}

// identityOutcome labels a successful attempt that merged the account as
// "merged".
func identityOutcome(res *Result, err error) string {
	if err == nil && res != nil && res.MergedInto != nil {
		return "merged"
	}
	return outcome(err)
}

// translateStore maps store failures to domain errors. Coded errors raised
// inside a transaction pass through unchanged.
func translateStore(err error) error {
	var de *dErrors.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeDuplicateIdentity, "identity is already verified for another account")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist verification")
	}
}

func (s *Service) observeProvider(provider string, start time.Time) {
	s.metrics.ObserveProviderLatency(provider, time.Since(start))
}
