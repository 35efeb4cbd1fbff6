package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"civitas/internal/verification/models"
	"civitas/internal/verification/privacy"
	"civitas/internal/verification/providers"
	"civitas/internal/verification/session"
	id "civitas/pkg/domain"
	dErrors "civitas/pkg/domain-errors"
	"civitas/pkg/platform/audit"
)

// MobileSession is handed to the wallet to start a mobile credential
// presentation.
type MobileSession struct {
	session.Session
	Request privacy.DisclosureRequest
}

// BeginMobileCredentialSession issues a reader keypair and the minimal
// disclosure request for identity and locality.
func (s *Service) BeginMobileCredentialSession(ctx context.Context, accountID id.AccountID) (ms *MobileSession, err error) {
	ctx, span := s.startSpan(ctx, "verification.BeginMobileCredentialSession")
	defer func() { endSpan(span, err) }()

	if err := s.ensureNotMerged(ctx, accountID); err != nil {
		return nil, err
	}
	sess, err := s.sessions.Begin(ctx)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "generate nonce")
	}
	req := privacy.NewDisclosureRequest(
		base64.RawURLEncoding.EncodeToString(nonce),
		base64.RawURLEncoding.EncodeToString(sess.PublicKey),
		privacy.PurposeIdentity, privacy.PurposeLocality,
	)

	rec := s.newRecord(ctx, accountID, audit.EventSessionStarted, string(models.ProviderMobileCredential.Method()), audit.StatusSuccess)
	rec.Metadata["session_id"] = sess.ID.String()
	if err := s.auditor.Append(ctx, rec); err != nil {
		s.logger.WarnContext(ctx, "failed to audit session start", "error", err)
	}
	return &MobileSession{Session: sess, Request: req}, nil
}

// CompleteMobileCredentialSession consumes the session, opens the wallet
// response with its key and accepts the disclosed identity. Address
// attributes, when disclosed, are reduced to a locality first.
func (s *Service) CompleteMobileCredentialSession(ctx context.Context, accountID id.AccountID, sessionID id.SessionID, response []byte) (res *Result, err error) {
	ctx, span := s.startSpan(ctx, "verification.CompleteMobileCredentialSession",
		attribute.String("session_id", sessionID.String()))
	defer func() { endSpan(span, err) }()
	provider := string(models.ProviderMobileCredential)
	defer func() { s.metrics.IncrementAttempt(provider, identityOutcome(res, err)) }()

	method := string(models.ProviderMobileCredential.Method())
	if err := s.ensureNotMerged(ctx, accountID); err != nil {
		return nil, err
	}
	if len(response) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "credential response is required")
	}

	key, err := s.sessions.Complete(ctx, sessionID)
	if err != nil {
		s.recordFailure(ctx, accountID, audit.EventSessionRejected, method, err,
			map[string]string{"session_id": sessionID.String()})
		return nil, err
	}

	start := time.Now()
	disclosure, err := s.mobile.Open(ctx, key, sessionID, response)
	s.observeProvider(s.mobile.ID(), start)
	if err != nil {
		derr := providers.ToDomainError(err)
		s.logProviderFailure(ctx, s.mobile.ID(), err)
		s.recordFailure(ctx, accountID, audit.EventVerificationFailed, method, derr, nil)
		return nil, derr
	}
	defer disclosure.Wipe()
	if !disclosure.Valid {
		derr := dErrors.New(dErrors.CodeInvalidProof, "credential was rejected by the verifier")
		s.recordFailure(ctx, accountID, audit.EventVerificationFailed, method, derr, nil)
		return nil, derr
	}

	var locality *privacy.Derived
	if !disclosure.Address.Empty() {
		derived, err := s.reduce(ctx, &disclosure.Address, disclosure.Payload)
		if err != nil {
			s.recordFailure(ctx, accountID, audit.EventVerificationFailed, method, err, nil)
			return nil, err
		}
		locality = &derived
	}
	return s.acceptIdentity(ctx, accountID, models.ProviderMobileCredential, &disclosure.Attributes, locality)
}

// reduce runs the privacy boundary and maps resolver failures.
func (s *Service) reduce(ctx context.Context, raw *privacy.AddressFields, payload []byte) (privacy.Derived, error) {
	start := time.Now()
	derived, err := s.boundary.Reduce(ctx, raw, payload)
	s.observeProvider("locality", start)
	if err != nil {
		return privacy.Derived{}, providers.ToDomainError(err)
	}
	return derived, nil
}
