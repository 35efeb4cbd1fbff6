// Package trust derives an account's ordinal trust tier from its verification
// signals. Tiers only move upward: DeriveTier never returns less than prior.
package trust

import "time"

// Tier is the ordinal trust level of an account.
type Tier int

const (
	TierUnverified Tier = iota
	TierPersonhood
	TierCoarseLocality
	TierFineLocality
	TierGovernmentCredential
)

// MaxTier is the highest tier an account can reach.
const MaxTier = TierGovernmentCredential

func (t Tier) String() string {
	switch t {
	case TierUnverified:
		return "unverified"
	case TierPersonhood:
		return "personhood"
	case TierCoarseLocality:
		return "coarse_locality"
	case TierFineLocality:
		return "fine_locality"
	case TierGovernmentCredential:
		return "government_credential"
	default:
		return "unknown"
	}
}

// Valid reports whether t is within the defined range.
func (t Tier) Valid() bool {
	return t >= TierUnverified && t <= MaxTier
}

// Method identifies how personhood was proven.
type Method string

const (
	MethodNone             Method = ""
	MethodPassport         Method = "passport"
	MethodMobileCredential Method = "mobile_credential"
)

func (m Method) rank() int {
	switch m {
	case MethodPassport:
		return 1
	case MethodMobileCredential:
		return 2
	default:
		return 0
	}
}

// Precision describes how finely an address was resolved.
type Precision int

const (
	PrecisionNone Precision = iota
	PrecisionCoarse
	PrecisionFine
)

func (p Precision) String() string {
	switch p {
	case PrecisionCoarse:
		return "coarse"
	case PrecisionFine:
		return "fine"
	default:
		return "none"
	}
}

// ParsePrecision maps the wire form back to a Precision.
func ParsePrecision(s string) (Precision, bool) {
	switch s {
	case "coarse":
		return PrecisionCoarse, true
	case "fine":
		return PrecisionFine, true
	case "none", "":
		return PrecisionNone, true
	default:
		return PrecisionNone, false
	}
}

// governmentDocuments are the reference document classes that a mobile
// credential must be issued against to reach the top tier.
var governmentDocuments = map[string]bool{
	"passport":         true,
	"id_card":          true,
	"driving_licence":  true,
	"residence_permit": true,
}

// Signals are the facts about an account that tiers are computed from.
type Signals struct {
	Method                Method
	DocumentType          string
	HasIdentityCommitment bool
	AddressVerifiedAt     *time.Time
	LocalityPrecision     Precision
}

// Compute returns the tier the signals alone justify.
func Compute(s Signals) Tier {
	if s.Method.rank() == 0 {
		return TierUnverified
	}
	tier := TierPersonhood
	if s.AddressVerifiedAt != nil {
		switch s.LocalityPrecision {
		case PrecisionCoarse:
			tier = TierCoarseLocality
		case PrecisionFine:
			tier = TierFineLocality
		}
	}
	if s.Method == MethodMobileCredential && s.HasIdentityCommitment && governmentDocuments[s.DocumentType] {
		tier = TierGovernmentCredential
	}
	return tier
}

// DeriveTier returns max(prior, Compute(s)).
func DeriveTier(prior Tier, s Signals) Tier {
	return max(prior, Compute(s))
}

// Fold combines the signals of two accounts that belong to the same person.
// The stronger proof method wins and the most precise locality is kept.
func Fold(a, b Signals) Signals {
	out := a
	if b.Method.rank() > a.Method.rank() ||
		(b.Method.rank() == a.Method.rank() && !governmentDocuments[a.DocumentType] && governmentDocuments[b.DocumentType]) {
		out.Method = b.Method
		out.DocumentType = b.DocumentType
	}
	out.HasIdentityCommitment = a.HasIdentityCommitment || b.HasIdentityCommitment

	if b.AddressVerifiedAt != nil {
		takeB := a.AddressVerifiedAt == nil ||
			b.LocalityPrecision > a.LocalityPrecision ||
			(b.LocalityPrecision == a.LocalityPrecision && b.AddressVerifiedAt.After(*a.AddressVerifiedAt))
		if takeB {
			out.AddressVerifiedAt = b.AddressVerifiedAt
			out.LocalityPrecision = b.LocalityPrecision
		}
	}
	return out
}
