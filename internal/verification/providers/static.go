package providers

import (
	"context"
	"crypto/ecdh"
	"encoding/json"
	"errors"

	"civitas/internal/verification/models"
	id "civitas/pkg/domain"
)

// StaticVerifier trusts the proof body as the disclosed attributes. It exists
// for local development and tests; it must never be registered in production.
type StaticVerifier struct {
	ProviderID   string
	ProviderType models.ProviderType
}

func (v StaticVerifier) ID() string                { return v.ProviderID }
func (v StaticVerifier) Type() models.ProviderType { return v.ProviderType }

func (v StaticVerifier) Verify(_ context.Context, proof json.RawMessage) (*Disclosure, error) {
	return decodeStatic(v.ProviderID, proof)
}

// StaticMobileVerifier is the mobile counterpart of StaticVerifier. The
// response is the wire JSON in clear text; only the key's presence is checked.
type StaticMobileVerifier struct {
	ProviderID string
}

func (v StaticMobileVerifier) ID() string { return v.ProviderID }

func (v StaticMobileVerifier) Open(_ context.Context, key *ecdh.PrivateKey, _ id.SessionID, response []byte) (*Disclosure, error) {
	if key == nil {
		return nil, NewProviderError(ErrorInternal, v.ProviderID, "missing reader key", nil)
	}
	return decodeStatic(v.ProviderID, response)
}

func decodeStatic(providerID string, raw []byte) (*Disclosure, error) {
	if len(raw) == 0 {
		return nil, NewProviderError(ErrorBadData, providerID, "empty proof", errors.New("no content"))
	}
	var wire wireResponse
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, NewProviderError(ErrorBadData, providerID, "malformed proof", err)
	}
	d := wire.toDisclosure()
	d.Payload = append([]byte(nil), raw...)
	return d, nil
}
