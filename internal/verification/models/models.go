// Package models holds the persisted verification entities.
package models

import (
	"time"

	"civitas/internal/verification/trust"
	id "civitas/pkg/domain"
)

// ProviderType identifies the provider class a proof came through.
type ProviderType string

const (
	ProviderPassport         ProviderType = "passport"
	ProviderMobileCredential ProviderType = "mobile_credential"
)

// IsValid reports whether p is a supported provider class.
func (p ProviderType) IsValid() bool {
	return p == ProviderPassport || p == ProviderMobileCredential
}

// Method maps the provider class to the proof method used by tier derivation.
func (p ProviderType) Method() trust.Method {
	switch p {
	case ProviderPassport:
		return trust.MethodPassport
	case ProviderMobileCredential:
		return trust.MethodMobileCredential
	default:
		return trust.MethodNone
	}
}

// Attributes are the immutable identity attributes a provider discloses.
// They live only for the duration of a verification call.
type Attributes struct {
	DocumentNumber          string
	DocumentType            string
	Nationality             string
	BirthYear               int
	ReferenceDocumentNumber string
	ReferenceDocumentType   string
}

// Reference returns the document the identity was established with. Flows
// that do not disclose one use the presented document itself.
func (a Attributes) Reference() (number, docType string) {
	if a.ReferenceDocumentNumber != "" && a.ReferenceDocumentType != "" {
		return a.ReferenceDocumentNumber, a.ReferenceDocumentType
	}
	return a.DocumentNumber, a.DocumentType
}

// Wipe clears every field.
func (a *Attributes) Wipe() {
	if a != nil {
		*a = Attributes{}
	}
}

// VerifiedIdentity is one physical identity as seen through one provider
// class. IdentityHash is unique.
type VerifiedIdentity struct {
	IdentityHash        string
	IdentityFingerprint string
	IdentityCommitment  string
	Nationality         string
	BirthYear           int
	DocumentType        string
	AccountID           id.AccountID
	ProviderType        ProviderType
	CreatedAt           time.Time
}

// CommitmentBinding ties a provider-independent commitment to the account
// that first presented it.
type CommitmentBinding struct {
	IdentityCommitment string
	AccountID          id.AccountID
	CreatedAt          time.Time
}

// TrustProfile is the per-account trust state. TrustTier only increases.
type TrustProfile struct {
	AccountID          id.AccountID
	TrustTier          trust.Tier
	VerificationMethod trust.Method
	DocumentType       string
	VerifiedAt         *time.Time
	IdentityCommitment string
	DistrictHash       string
	LocalityPrecision  trust.Precision
	AddressVerifiedAt  *time.Time
	MergedInto         *id.AccountID
	UpdatedAt          time.Time
}

// NewTrustProfile returns an unverified profile.
func NewTrustProfile(accountID id.AccountID, now time.Time) *TrustProfile {
	return &TrustProfile{AccountID: accountID, TrustTier: trust.TierUnverified, UpdatedAt: now}
}

// IsMerged reports whether the account was folded into another.
func (p *TrustProfile) IsMerged() bool {
	return p.MergedInto != nil && !p.MergedInto.IsNil()
}

// Signals extracts tier inputs from the profile.
func (p *TrustProfile) Signals() trust.Signals {
	return trust.Signals{
		Method:                p.VerificationMethod,
		DocumentType:          p.DocumentType,
		HasIdentityCommitment: p.IdentityCommitment != "",
		AddressVerifiedAt:     p.AddressVerifiedAt,
		LocalityPrecision:     p.LocalityPrecision,
	}
}

// ApplySignals copies folded signals back onto the profile. Identity and
// district hashes are not part of Signals and are handled by callers.
func (p *TrustProfile) ApplySignals(s trust.Signals) {
	p.VerificationMethod = s.Method
	p.DocumentType = s.DocumentType
	p.AddressVerifiedAt = s.AddressVerifiedAt
	p.LocalityPrecision = s.LocalityPrecision
}

// TouchVerified moves VerifiedAt forward to at, never backward.
func (p *TrustProfile) TouchVerified(at time.Time) {
	if p.VerifiedAt == nil || at.After(*p.VerifiedAt) {
		t := at
		p.VerifiedAt = &t
	}
}
