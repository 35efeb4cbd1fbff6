package providers

import (
	"bytes"
	"context"
	"crypto/ecdh"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"civitas/internal/verification/models"
	"civitas/internal/verification/privacy"
	id "civitas/pkg/domain"
)

const maxResponseBytes = 1 << 20

// wireAttributes is the verifier service's JSON shape.
type wireAttributes struct {
	DocumentNumber          string `json:"document_number"`
	DocumentType            string `json:"document_type"`
	Nationality             string `json:"nationality"`
	BirthYear               int    `json:"birth_year"`
	ReferenceDocumentNumber string `json:"reference_document_number,omitempty"`
	ReferenceDocumentType   string `json:"reference_document_type,omitempty"`
}

type wireAddress struct {
	PostalCode string `json:"postal_code"`
	City       string `json:"city"`
	Region     string `json:"region"`
}

type wireResponse struct {
	Valid      bool            `json:"valid"`
	Attributes wireAttributes  `json:"attributes"`
	Address    *wireAddress    `json:"address,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

func (w wireResponse) toDisclosure() *Disclosure {
	d := &Disclosure{
		Valid: w.Valid,
		Attributes: models.Attributes{
			DocumentNumber:          w.Attributes.DocumentNumber,
			DocumentType:            w.Attributes.DocumentType,
			Nationality:             w.Attributes.Nationality,
			BirthYear:               w.Attributes.BirthYear,
			ReferenceDocumentNumber: w.Attributes.ReferenceDocumentNumber,
			ReferenceDocumentType:   w.Attributes.ReferenceDocumentType,
		},
		Payload: []byte(w.Payload),
	}
	if w.Address != nil {
		d.Address = privacy.AddressFields{
			PostalCode: w.Address.PostalCode,
			City:       w.Address.City,
			Region:     w.Address.Region,
		}
	}
	return d
}

// client is the shared HTTP plumbing for remote verifiers.
type client struct {
	id      string
	baseURL string
	http    *http.Client
}

func newClient(providerID, baseURL string, timeout time.Duration) client {
	return client{
		id:      providerID,
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c client) post(ctx context.Context, path string, body any) (*Disclosure, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, NewProviderError(ErrorInternal, c.id, "encode request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return nil, NewProviderError(ErrorInternal, c.id, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, NewProviderError(ClassifyTransport(err), c.id, "request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, NewProviderError(ErrorRateLimited, c.id, "rate limited", nil)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, NewProviderError(ErrorAuthentication, c.id, "rejected credentials", nil)
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return nil, NewProviderError(ErrorBadData, c.id, "proof rejected", nil)
	case resp.StatusCode >= 500:
		return nil, NewProviderError(ErrorProviderOutage, c.id, fmt.Sprintf("status %d", resp.StatusCode), nil)
	case resp.StatusCode != http.StatusOK:
		return nil, NewProviderError(ErrorContractMismatch, c.id, fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	var wire wireResponse
	dec := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes))
	if err := dec.Decode(&wire); err != nil {
		return nil, NewProviderError(ErrorContractMismatch, c.id, "decode response", err)
	}
	return wire.toDisclosure(), nil
}

// HTTPVerifier calls a remote proof verifier for one provider class.
type HTTPVerifier struct {
	client
	providerType models.ProviderType
}

// NewHTTPVerifier creates a verifier posting proofs to baseURL + "/verify".
func NewHTTPVerifier(providerID string, providerType models.ProviderType, baseURL string, timeout time.Duration) *HTTPVerifier {
	return &HTTPVerifier{client: newClient(providerID, baseURL, timeout), providerType: providerType}
}

func (v *HTTPVerifier) ID() string                { return v.id }
func (v *HTTPVerifier) Type() models.ProviderType { return v.providerType }

func (v *HTTPVerifier) Verify(ctx context.Context, proof json.RawMessage) (*Disclosure, error) {
	return v.post(ctx, "/verify", map[string]json.RawMessage{"proof": proof})
}

// HTTPMobileVerifier calls the credential decryption sidecar. The reader key
// is sent PKCS#8 encoded; the sidecar must be reachable only over a private,
// authenticated channel.
type HTTPMobileVerifier struct {
	client
}

// NewHTTPMobileVerifier creates a verifier posting to baseURL + "/open".
func NewHTTPMobileVerifier(providerID, baseURL string, timeout time.Duration) *HTTPMobileVerifier {
	return &HTTPMobileVerifier{client: newClient(providerID, baseURL, timeout)}
}

func (v *HTTPMobileVerifier) ID() string { return v.id }

func (v *HTTPMobileVerifier) Open(ctx context.Context, key *ecdh.PrivateKey, sessionID id.SessionID, response []byte) (*Disclosure, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, NewProviderError(ErrorInternal, v.id, "encode reader key", err)
	}
	defer clear(der)
	return v.post(ctx, "/open", map[string]string{
		"session_id": sessionID.String(),
		"reader_key": base64.StdEncoding.EncodeToString(der),
		"response":   base64.StdEncoding.EncodeToString(response),
	})
}
