// Package locality resolves raw addresses to locality identifiers.
package locality

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"civitas/internal/verification/privacy"
	"civitas/internal/verification/providers"
	"civitas/internal/verification/trust"
	"civitas/pkg/platform/circuit"
)

const providerID = "locality"

type resolveRequest struct {
	PostalCode string `json:"postal_code"`
	City       string `json:"city"`
	Region     string `json:"region"`
}

type resolveResponse struct {
	LocalityID string `json:"locality_id"`
	Precision  string `json:"precision"`
}

// HTTPResolver calls a remote locality lookup service.
type HTTPResolver struct {
	baseURL string
	client  *http.Client
}

// NewHTTPResolver creates a resolver posting to baseURL + "/resolve".
func NewHTTPResolver(baseURL string, timeout time.Duration) *HTTPResolver {
	return &HTTPResolver{baseURL: baseURL, client: &http.Client{Timeout: timeout}}
}

// Resolve implements privacy.LocalityResolver. The request body is the only
// place raw address values leave the process.
func (r *HTTPResolver) Resolve(ctx context.Context, address privacy.AddressFields) (privacy.Locality, error) {
	body, err := json.Marshal(resolveRequest{
		PostalCode: address.PostalCode,
		City:       address.City,
		Region:     address.Region,
	})
	if err != nil {
		return privacy.Locality{}, providers.NewProviderError(providers.ErrorInternal, providerID, "encode request", err)
	}
	defer clear(body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/resolve", bytes.NewReader(body))
	if err != nil {
		return privacy.Locality{}, providers.NewProviderError(providers.ErrorInternal, providerID, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return privacy.Locality{}, providers.NewProviderError(providers.ClassifyTransport(err), providerID, "request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusUnprocessableEntity:
		return privacy.Locality{}, providers.NewProviderError(providers.ErrorBadData, providerID, "address not resolvable", nil)
	case resp.StatusCode == http.StatusTooManyRequests:
		return privacy.Locality{}, providers.NewProviderError(providers.ErrorRateLimited, providerID, "rate limited", nil)
	case resp.StatusCode >= 500:
		return privacy.Locality{}, providers.NewProviderError(providers.ErrorProviderOutage, providerID, fmt.Sprintf("status %d", resp.StatusCode), nil)
	case resp.StatusCode != http.StatusOK:
		return privacy.Locality{}, providers.NewProviderError(providers.ErrorContractMismatch, providerID, fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	var out resolveResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&out); err != nil {
		return privacy.Locality{}, providers.NewProviderError(providers.ErrorContractMismatch, providerID, "decode response", err)
	}
	precision, ok := trust.ParsePrecision(out.Precision)
	if !ok {
		return privacy.Locality{}, providers.NewProviderError(providers.ErrorContractMismatch, providerID, "unknown precision "+out.Precision, nil)
	}
	return privacy.Locality{ID: out.LocalityID, Precision: precision}, nil
}

// GuardedResolver fails fast while the resolver upstream is unhealthy.
type GuardedResolver struct {
	Resolver privacy.LocalityResolver
	Breaker  *circuit.Breaker
	Logger   *slog.Logger
}

func (g GuardedResolver) Resolve(ctx context.Context, address privacy.AddressFields) (privacy.Locality, error) {
	return providers.Guard(ctx, g.Breaker, providerID, g.Logger, func() (privacy.Locality, error) {
		return g.Resolver.Resolve(ctx, address)
	})
}
