package providers

import (
	"context"
	"crypto/ecdh"
	"encoding/json"
	"errors"
	"log/slog"

	id "civitas/pkg/domain"
	"civitas/pkg/platform/circuit"
)

// ErrCircuitOpen is wrapped by the outage error returned while a breaker
// rejects calls.
var ErrCircuitOpen = errors.New("circuit open")

// Guard runs fn behind breaker. Only retryable failures count against the
// upstream; a rejected proof is a healthy response.
func Guard[T any](ctx context.Context, breaker *circuit.Breaker, providerID string, logger *slog.Logger, fn func() (T, error)) (T, error) {
	var zero T
	if !breaker.Allow() {
		return zero, NewProviderError(ErrorProviderOutage, providerID, "circuit open", ErrCircuitOpen)
	}
	v, err := fn()
	if err != nil && IsRetryable(err) {
		if _, change := breaker.RecordFailure(); change.Opened && logger != nil {
			logger.WarnContext(ctx, "upstream circuit opened", "provider", providerID)
		}
		return v, err
	}
	if _, change := breaker.RecordSuccess(); change.Closed && logger != nil {
		logger.InfoContext(ctx, "upstream circuit closed", "provider", providerID)
	}
	return v, err
}

type guardedVerifier struct {
	Verifier
	breaker *circuit.Breaker
	logger  *slog.Logger
}

// WithBreaker wraps v so calls fail fast while its upstream is unhealthy.
func WithBreaker(v Verifier, breaker *circuit.Breaker, logger *slog.Logger) Verifier {
	return &guardedVerifier{Verifier: v, breaker: breaker, logger: logger}
}

func (g *guardedVerifier) Verify(ctx context.Context, proof json.RawMessage) (*Disclosure, error) {
	return Guard(ctx, g.breaker, g.ID(), g.logger, func() (*Disclosure, error) {
		return g.Verifier.Verify(ctx, proof)
	})
}

type guardedMobileVerifier struct {
	MobileCredentialVerifier
	breaker *circuit.Breaker
	logger  *slog.Logger
}

// WithMobileBreaker is WithBreaker for mobile credential verifiers.
func WithMobileBreaker(v MobileCredentialVerifier, breaker *circuit.Breaker, logger *slog.Logger) MobileCredentialVerifier {
	return &guardedMobileVerifier{MobileCredentialVerifier: v, breaker: breaker, logger: logger}
}

func (g *guardedMobileVerifier) Open(ctx context.Context, key *ecdh.PrivateKey, sessionID id.SessionID, response []byte) (*Disclosure, error) {
	return Guard(ctx, g.breaker, g.ID(), g.logger, func() (*Disclosure, error) {
		return g.MobileCredentialVerifier.Open(ctx, key, sessionID, response)
	})
}
