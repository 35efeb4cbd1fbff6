package handler

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"civitas/internal/verification/models"
	"civitas/internal/verification/privacy"
	dErrors "civitas/pkg/domain-errors"
)

const (
	maxProofBytes    = 64 << 10
	maxResponseBytes = 256 << 10
	maxAddressField  = 128
)

// VerifyRequest is the body of POST /verification/verify.
type VerifyRequest struct {
	ProviderType string          `json:"provider_type"`
	Proof        json.RawMessage `json:"proof"`

	parsedProviderType models.ProviderType
}

// Validate implements httputil.Validatable.
func (r *VerifyRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.Proof) > maxProofBytes {
		return dErrors.New(dErrors.CodeValidation, "proof is too large")
	}
	r.ProviderType = strings.TrimSpace(r.ProviderType)
	if r.ProviderType == "" {
		return dErrors.New(dErrors.CodeValidation, "provider_type is required")
	}
	pt := models.ProviderType(r.ProviderType)
	if !pt.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "unsupported provider_type")
	}
	if len(r.Proof) == 0 || string(r.Proof) == "null" {
		return dErrors.New(dErrors.CodeValidation, "proof is required")
	}
	r.parsedProviderType = pt
	return nil
}

// ParsedProviderType returns the validated provider type.
func (r *VerifyRequest) ParsedProviderType() models.ProviderType {
	return r.parsedProviderType
}

// CompleteSessionRequest is the body of the session completion endpoint.
// CredentialResponse is the wallet's encrypted response, base64 encoded.
type CompleteSessionRequest struct {
	CredentialResponse string `json:"credential_response"`

	decoded []byte
}

// Validate implements httputil.Validatable.
func (r *CompleteSessionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.CredentialResponse) > base64.StdEncoding.EncodedLen(maxResponseBytes) {
		return dErrors.New(dErrors.CodeValidation, "credential_response is too large")
	}
	if r.CredentialResponse == "" {
		return dErrors.New(dErrors.CodeValidation, "credential_response is required")
	}
	decoded, err := decodeBase64(r.CredentialResponse)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "credential_response must be base64")
	}
	r.decoded = decoded
	return nil
}

// Response returns the decoded credential response.
func (r *CompleteSessionRequest) Response() []byte {
	return r.decoded
}

// Wipe clears the decoded response.
func (r *CompleteSessionRequest) Wipe() {
	clear(r.decoded)
	r.decoded = nil
	r.CredentialResponse = ""
}

func decodeBase64(s string) ([]byte, error) {
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if b, err := enc.DecodeString(s); err == nil {
			return b, nil
		}
	}
	return nil, base64.CorruptInputError(0)
}

// AddressRequest is the body of POST /verification/address.
type AddressRequest struct {
	PostalCode string `json:"postal_code"`
	City       string `json:"city"`
	Region     string `json:"region"`
}

// Validate implements httputil.Validatable. Messages never echo the input.
func (r *AddressRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.PostalCode) > maxAddressField || len(r.City) > maxAddressField || len(r.Region) > maxAddressField {
		return dErrors.New(dErrors.CodeValidation, "address fields must be at most 128 characters")
	}
	r.PostalCode = strings.TrimSpace(r.PostalCode)
	r.City = strings.TrimSpace(r.City)
	r.Region = strings.TrimSpace(r.Region)
	if r.PostalCode == "" && r.City == "" {
		return dErrors.New(dErrors.CodeValidation, "postal_code or city is required")
	}
	return nil
}

// Fields converts the request to boundary input.
func (r *AddressRequest) Fields() privacy.AddressFields {
	return privacy.AddressFields{PostalCode: r.PostalCode, City: r.City, Region: r.Region}
}

// Wipe clears the raw address.
func (r *AddressRequest) Wipe() {
	*r = AddressRequest{}
}
