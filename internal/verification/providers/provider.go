package providers

import (
	"context"
	"crypto/ecdh"
	"encoding/json"
	"fmt"
	"sync"

	"civitas/internal/verification/models"
	"civitas/internal/verification/privacy"
	id "civitas/pkg/domain"
)

// Disclosure is what a verifier reveals after checking a proof. Attributes
// and Address are raw and must be reduced before anything is persisted.
type Disclosure struct {
	Valid      bool
	Attributes models.Attributes
	Address    privacy.AddressFields
	// Payload is the decoded credential payload, used only for content hashing.
	Payload []byte
}

// Wipe clears all raw values.
func (d *Disclosure) Wipe() {
	if d == nil {
		return
	}
	d.Attributes.Wipe()
	d.Address.Wipe()
	clear(d.Payload)
	d.Payload = nil
}

// Verifier checks a proof-of-personhood proof for one provider class.
type Verifier interface {
	ID() string
	Type() models.ProviderType
	Verify(ctx context.Context, proof json.RawMessage) (*Disclosure, error)
}

// MobileCredentialVerifier decrypts and checks a wallet response with the
// session's reader key.
type MobileCredentialVerifier interface {
	ID() string
	Open(ctx context.Context, key *ecdh.PrivateKey, sessionID id.SessionID, response []byte) (*Disclosure, error)
}

// Registry maps provider classes to verifiers.
type Registry struct {
	mu        sync.RWMutex
	verifiers map[models.ProviderType]Verifier
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{verifiers: make(map[models.ProviderType]Verifier)}
}

// Register adds a verifier. One verifier per provider class.
func (r *Registry) Register(v Verifier) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.verifiers[v.Type()]; exists {
		return fmt.Errorf("verifier for %s already registered", v.Type())
	}
	r.verifiers[v.Type()] = v
	return nil
}

// Get returns the verifier for t.
func (r *Registry) Get(t models.ProviderType) (Verifier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.verifiers[t]
	if !ok {
		return nil, ErrProviderNotFound
	}
	return v, nil
}
