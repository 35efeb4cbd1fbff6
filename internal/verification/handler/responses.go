package handler

import (
	"encoding/base64"
	"time"

	"civitas/internal/verification/freshness"
	"civitas/internal/verification/models"
	"civitas/internal/verification/privacy"
	"civitas/internal/verification/service"
)

// VerifyResponse is returned by every endpoint that can change the tier.
type VerifyResponse struct {
	Verified          bool    `json:"verified"`
	AccountID         string  `json:"account_id"`
	TrustTier         int     `json:"trust_tier"`
	TrustTierName     string  `json:"trust_tier_name"`
	MergedInto        *string `json:"merged_into,omitempty"`
	DerivedLocalityID string  `json:"derived_locality_id,omitempty"`
}

// FromResult converts a service result to its HTTP form.
func FromResult(res *service.Result) *VerifyResponse {
	out := &VerifyResponse{
		Verified:          true,
		AccountID:         res.AccountID.String(),
		TrustTier:         int(res.TrustTier),
		TrustTierName:     res.TrustTier.String(),
		DerivedLocalityID: res.DerivedLocalityID,
	}
	if res.MergedInto != nil {
		s := res.MergedInto.String()
		out.MergedInto = &s
	}
	return out
}

// SessionResponse describes a started mobile credential session.
type SessionResponse struct {
	SessionID string                    `json:"session_id"`
	PublicKey string                    `json:"public_key"`
	ExpiresAt time.Time                 `json:"expires_at"`
	Request   privacy.DisclosureRequest `json:"request"`
}

// FromSession converts a mobile session to its HTTP form.
func FromSession(s *service.MobileSession) *SessionResponse {
	return &SessionResponse{
		SessionID: s.ID.String(),
		PublicKey: base64.RawURLEncoding.EncodeToString(s.PublicKey),
		ExpiresAt: s.ExpiresAt,
		Request:   s.Request,
	}
}

// FreshnessResponse is the outcome of a freshness check. MaxAgeMs is -1 for
// actions without a window.
type FreshnessResponse struct {
	Valid    bool   `json:"valid"`
	AgeMs    int64  `json:"age_ms"`
	MaxAgeMs int64  `json:"max_age_ms"`
	Reason   string `json:"reason"`
}

// FromDecision converts a freshness decision to its HTTP form.
func FromDecision(d freshness.Decision) *FreshnessResponse {
	maxAge := d.MaxAge.Milliseconds()
	if d.MaxAge == freshness.Unbounded {
		maxAge = -1
	}
	return &FreshnessResponse{
		Valid:    d.Valid,
		AgeMs:    d.Age.Milliseconds(),
		MaxAgeMs: maxAge,
		Reason:   string(d.Reason),
	}
}

// ProfileResponse is the public view of a trust profile. Hashes and
// commitments are never exposed.
type ProfileResponse struct {
	AccountID          string     `json:"account_id"`
	TrustTier          int        `json:"trust_tier"`
	TrustTierName      string     `json:"trust_tier_name"`
	VerificationMethod string     `json:"verification_method,omitempty"`
	DocumentType       string     `json:"document_type,omitempty"`
	VerifiedAt         *time.Time `json:"verified_at,omitempty"`
	LocalityPrecision  string     `json:"locality_precision"`
	AddressVerifiedAt  *time.Time `json:"address_verified_at,omitempty"`
	MergedInto         *string    `json:"merged_into,omitempty"`
}

// FromProfile converts a trust profile to its HTTP form.
func FromProfile(p *models.TrustProfile) *ProfileResponse {
	out := &ProfileResponse{
		AccountID:          p.AccountID.String(),
		TrustTier:          int(p.TrustTier),
		TrustTierName:      p.TrustTier.String(),
		VerificationMethod: string(p.VerificationMethod),
		DocumentType:       p.DocumentType,
		VerifiedAt:         p.VerifiedAt,
		LocalityPrecision:  p.LocalityPrecision.String(),
		AddressVerifiedAt:  p.AddressVerifiedAt,
	}
	if p.IsMerged() {
		s := p.MergedInto.String()
		out.MergedInto = &s
	}
	return out
}
