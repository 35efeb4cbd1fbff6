package locality

import (
	"context"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"

	"civitas/internal/verification/privacy"
	"civitas/internal/verification/trust"
)

// StaticResolver derives locality ids locally for development. Postal codes
// resolve to their outward part; city-only addresses resolve coarsely.
type StaticResolver struct{}

func (StaticResolver) Resolve(_ context.Context, address privacy.AddressFields) (privacy.Locality, error) {
	region := strings.ToUpper(strings.TrimSpace(address.Region))
	if postal := outward(address.PostalCode); postal != "" {
		return privacy.Locality{ID: localityID("fine", region, postal), Precision: trust.PrecisionFine}, nil
	}
	if city := strings.ToUpper(strings.TrimSpace(address.City)); city != "" {
		return privacy.Locality{ID: localityID("coarse", region, city), Precision: trust.PrecisionCoarse}, nil
	}
	return privacy.Locality{}, nil
}

func outward(postal string) string {
	fields := strings.Fields(strings.ToUpper(postal))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func localityID(kind string, parts ...string) string {
	sum := blake2b.Sum256([]byte(kind + "\x1f" + strings.Join(parts, "\x1f")))
	return "loc-" + kind + "-" + hex.EncodeToString(sum[:6])
}
