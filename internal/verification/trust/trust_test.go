package trust

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func at(t time.Time) *time.Time { return &t }

func TestCompute(t *testing.T) {
	verified := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		signals Signals
		want    Tier
	}{
		{"no signals", Signals{}, TierUnverified},
		{"address without personhood", Signals{AddressVerifiedAt: at(verified), LocalityPrecision: PrecisionFine}, TierUnverified},
		{"passport", Signals{Method: MethodPassport, DocumentType: "passport"}, TierPersonhood},
		{"passport coarse", Signals{Method: MethodPassport, AddressVerifiedAt: at(verified), LocalityPrecision: PrecisionCoarse}, TierCoarseLocality},
		{"passport fine", Signals{Method: MethodPassport, AddressVerifiedAt: at(verified), LocalityPrecision: PrecisionFine}, TierFineLocality},
		{"precision without timestamp ignored", Signals{Method: MethodPassport, LocalityPrecision: PrecisionFine}, TierPersonhood},
		{"mobile credential with commitment", Signals{Method: MethodMobileCredential, DocumentType: "passport", HasIdentityCommitment: true}, TierGovernmentCredential},
		{"mobile credential without commitment", Signals{Method: MethodMobileCredential, DocumentType: "passport"}, TierPersonhood},
		{"mobile credential non-government doc", Signals{Method: MethodMobileCredential, DocumentType: "loyalty", HasIdentityCommitment: true}, TierPersonhood},
		{"passport with commitment stays personhood", Signals{Method: MethodPassport, DocumentType: "passport", HasIdentityCommitment: true}, TierPersonhood},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compute(tt.signals))
		})
	}
}

func TestDeriveTierNeverRegresses(t *testing.T) {
	assert.Equal(t, TierFineLocality, DeriveTier(TierFineLocality, Signals{Method: MethodPassport}))
	assert.Equal(t, TierGovernmentCredential, DeriveTier(TierPersonhood,
		Signals{Method: MethodMobileCredential, DocumentType: "id_card", HasIdentityCommitment: true}))
}

// TestDeriveTierMonotoneUnderInterleaving applies random signal sequences and
// checks the running tier never decreases.
func TestDeriveTierMonotoneUnderInterleaving(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	methods := []Method{MethodNone, MethodPassport, MethodMobileCredential}
	precisions := []Precision{PrecisionNone, PrecisionCoarse, PrecisionFine}
	now := time.Now()

	for run := 0; run < 200; run++ {
		tier := TierUnverified
		for step := 0; step < 20; step++ {
			s := Signals{
				Method:                methods[rng.Intn(len(methods))],
				DocumentType:          "passport",
				HasIdentityCommitment: rng.Intn(2) == 0,
				LocalityPrecision:     precisions[rng.Intn(len(precisions))],
			}
			if rng.Intn(2) == 0 {
				s.AddressVerifiedAt = at(now)
			}
			next := DeriveTier(tier, s)
			if next < tier {
				t.Fatalf("tier regressed from %s to %s", tier, next)
			}
			tier = next
		}
	}
}

func TestFold(t *testing.T) {
	early := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	late := early.Add(24 * time.Hour)

	passportWithAddress := Signals{
		Method:            MethodPassport,
		DocumentType:      "passport",
		AddressVerifiedAt: at(early),
		LocalityPrecision: PrecisionCoarse,
	}
	mobile := Signals{
		Method:                MethodMobileCredential,
		DocumentType:          "passport",
		HasIdentityCommitment: true,
	}

	t.Run("merging mobile credential lifts to top tier", func(t *testing.T) {
		folded := Fold(passportWithAddress, mobile)
		assert.Equal(t, MethodMobileCredential, folded.Method)
		assert.True(t, folded.HasIdentityCommitment)
		assert.Equal(t, PrecisionCoarse, folded.LocalityPrecision)
		assert.Equal(t, TierGovernmentCredential, Compute(folded))
	})

	t.Run("weaker method does not replace stronger", func(t *testing.T) {
		folded := Fold(mobile, passportWithAddress)
		assert.Equal(t, MethodMobileCredential, folded.Method)
		assert.Equal(t, PrecisionCoarse, folded.LocalityPrecision)
	})

	t.Run("finer locality wins", func(t *testing.T) {
		fine := Signals{Method: MethodPassport, AddressVerifiedAt: at(early), LocalityPrecision: PrecisionFine}
		coarseLater := Signals{Method: MethodPassport, AddressVerifiedAt: at(late), LocalityPrecision: PrecisionCoarse}
		assert.Equal(t, PrecisionFine, Fold(fine, coarseLater).LocalityPrecision)
		assert.Equal(t, PrecisionFine, Fold(coarseLater, fine).LocalityPrecision)
	})

	t.Run("fold is never weaker than either side", func(t *testing.T) {
		for _, pair := range [][2]Signals{{passportWithAddress, mobile}, {mobile, passportWithAddress}, {{}, mobile}, {passportWithAddress, {}}} {
			folded := Compute(Fold(pair[0], pair[1]))
			assert.GreaterOrEqual(t, folded, Compute(pair[0]))
			assert.GreaterOrEqual(t, folded, Compute(pair[1]))
		}
	})
}
