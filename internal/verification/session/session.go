// Package session issues and consumes the short-lived reader keypairs used by
// the mobile credential handshake. A session's private key can be taken out
// exactly once, and never after the session expires.
package session

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	id "civitas/pkg/domain"
	dErrors "civitas/pkg/domain-errors"
	"civitas/pkg/platform/sentinel"
)

// MaxTTL bounds the lifetime of any session.
const MaxTTL = 5 * time.Minute

const sealInfo = "civitas/session-seal/v1"

// Record is what a KeyStore persists. SealedPrivateKey is nonce||ciphertext
// and is bound to the session id as associated data.
type Record struct {
	ID               id.SessionID
	PublicKey        []byte
	SealedPrivateKey []byte
	CreatedAt        time.Time
	ExpiresAt        time.Time
}

// KeyStore persists session records with consume-once semantics.
//
// GetAndInvalidate must atomically return the record and make it unusable.
// It returns sentinel.ErrNotFound for unknown ids, sentinel.ErrExpired when
// now is at or after ExpiresAt, and sentinel.ErrAlreadyUsed for sessions that
// were consumed. Key material is discarded on consume and on expiry detection.
type KeyStore interface {
	Set(ctx context.Context, rec Record) error
	GetAndInvalidate(ctx context.Context, sessionID id.SessionID, now time.Time) (Record, error)
}

// Session is the public half handed to the client.
type Session struct {
	ID        id.SessionID
	PublicKey []byte
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Observer receives store outcome and latency notifications.
type Observer interface {
	ObserveSessionOp(op, outcome string, d time.Duration)
}

// Manager creates and consumes sessions over a KeyStore.
type Manager struct {
	store    KeyStore
	aead     cipherAEAD
	ttl      time.Duration
	now      func() time.Time
	rand     io.Reader
	logger   *slog.Logger
	observer Observer
}

type cipherAEAD interface {
	NonceSize() int
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
}

// Option configures a Manager.
type Option func(*Manager)

// WithTTL sets the session lifetime. Values above MaxTTL are clamped.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) { m.ttl = min(ttl, MaxTTL) }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithObserver sets a metrics observer.
func WithObserver(o Observer) Option {
	return func(m *Manager) { m.observer = o }
}

// NewManager creates a Manager sealing private keys under a key derived from
// secret.
func NewManager(store KeyStore, secret []byte, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, errors.New("session key store is required")
	}
	if len(secret) < 16 {
		return nil, errors.New("session secret must be at least 16 bytes")
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(sealInfo)), key); err != nil {
		return nil, fmt.Errorf("derive session seal key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("init session cipher: %w", err)
	}
	m := &Manager{
		store:  store,
		aead:   aead,
		ttl:    MaxTTL,
		now:    time.Now,
		rand:   rand.Reader,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.ttl <= 0 {
		m.ttl = MaxTTL
	}
	return m, nil
}

// Begin generates a fresh P-256 keypair and stores the sealed private half.
func (m *Manager) Begin(ctx context.Context) (Session, error) {
	start := time.Now()
	priv, err := ecdh.P256().GenerateKey(m.rand)
	if err != nil {
		return Session{}, dErrors.Wrap(err, dErrors.CodeInternal, "generate session key")
	}

	now := m.now()
	sessionID := id.NewSessionID()
	privBytes := priv.Bytes()
	sealed, err := m.seal(sessionID, privBytes)
	clear(privBytes)
	if err != nil {
		return Session{}, dErrors.Wrap(err, dErrors.CodeInternal, "seal session key")
	}

	rec := Record{
		ID:               sessionID,
		PublicKey:        priv.PublicKey().Bytes(),
		SealedPrivateKey: sealed,
		CreatedAt:        now,
		ExpiresAt:        now.Add(m.ttl),
	}
	if err := m.store.Set(ctx, rec); err != nil {
		m.observe("begin", "error", start)
		return Session{}, dErrors.Wrap(err, dErrors.CodeInternal, "store session")
	}
	m.observe("begin", "ok", start)

	return Session{
		ID:        rec.ID,
		PublicKey: rec.PublicKey,
		CreatedAt: rec.CreatedAt,
		ExpiresAt: rec.ExpiresAt,
	}, nil
}

// Complete consumes the session and returns its private key. Every outcome,
// success or failure, leaves the session unusable.
func (m *Manager) Complete(ctx context.Context, sessionID id.SessionID) (*ecdh.PrivateKey, error) {
	start := time.Now()
	rec, err := m.store.GetAndInvalidate(ctx, sessionID, m.now())
	if err != nil {
		outcome, derr := translate(err)
		m.observe("complete", outcome, start)
		if outcome == "error" {
			m.logger.ErrorContext(ctx, "session store failure", "error", err)
		}
		return nil, derr
	}

	privBytes, err := m.open(rec)
	clear(rec.SealedPrivateKey)
	if err != nil {
		m.observe("complete", "corrupt", start)
		m.logger.ErrorContext(ctx, "session key failed to open", "session_id", sessionID.String())
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "session key unavailable")
	}
	priv, err := ecdh.P256().NewPrivateKey(privBytes)
	clear(privBytes)
	if err != nil {
		m.observe("complete", "corrupt", start)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "session key unavailable")
	}
	m.observe("complete", "ok", start)
	return priv, nil
}

func translate(err error) (string, error) {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return "not_found", dErrors.New(dErrors.CodeSessionNotFound, "session not found")
	case errors.Is(err, sentinel.ErrExpired):
		return "expired", dErrors.New(dErrors.CodeSessionExpired, "session has expired")
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return "consumed", dErrors.New(dErrors.CodeSessionAlreadyConsumed, "session was already completed")
	default:
		return "error", dErrors.Wrap(err, dErrors.CodeInternal, "session store unavailable")
	}
}

func (m *Manager) seal(sessionID id.SessionID, plaintext []byte) ([]byte, error) {
	nonce := make([]byte, m.aead.NonceSize())
	if _, err := io.ReadFull(m.rand, nonce); err != nil {
		return nil, err
	}
	return m.aead.Seal(nonce, nonce, plaintext, []byte(sessionID.String())), nil
}

func (m *Manager) open(rec Record) ([]byte, error) {
	ns := m.aead.NonceSize()
	if len(rec.SealedPrivateKey) < ns {
		return nil, errors.New("sealed key too short")
	}
	nonce, ct := rec.SealedPrivateKey[:ns], rec.SealedPrivateKey[ns:]
	return m.aead.Open(nil, nonce, ct, []byte(rec.ID.String()))
}

func (m *Manager) observe(op, outcome string, start time.Time) {
	if m.observer != nil {
		m.observer.ObserveSessionOp(op, outcome, time.Since(start))
	}
}
