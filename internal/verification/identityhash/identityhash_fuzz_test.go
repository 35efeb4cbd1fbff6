package identityhash

import (
	"strings"
	"testing"
	"time"

	dErrors "civitas/pkg/domain-errors"
)

// FuzzCompute checks that arbitrary provider input never panics and that any
// accepted input hashes identically after whitespace and case perturbation.
func FuzzCompute(f *testing.F) {
	f.Add("X1234567", "passport", "USA", 1990)
	f.Add("", "", "", 0)
	f.Add("ab-12.34/56", "id_card", "de", 1950)
	f.Add("​ ", "P", "D", 2100)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	engine, err := New(testPepper, WithClock(func() time.Time { return now }))
	if err != nil {
		f.Fatal(err)
	}

	f.Fuzz(func(t *testing.T, doc, docType, nat string, year int) {
		in := Input{DocumentNumber: doc, DocumentType: docType, Nationality: nat, BirthYear: year}
		res, err := engine.Compute("passport", in)
		if err != nil {
			code := dErrors.CodeOf(err)
			if code != dErrors.CodeInvalidProof && code != dErrors.CodeAgeIneligible {
				t.Fatalf("unexpected error code %s", code)
			}
			return
		}
		perturbed := in
		perturbed.DocumentNumber = " " + strings.ToLower(doc) + " "
		perturbed.Nationality = strings.ToLower(nat)
		again, err := engine.Compute("passport", perturbed)
		if err != nil {
			t.Fatalf("perturbed input rejected: %v", err)
		}
		if again.Hash != res.Hash {
			t.Fatalf("hash changed under case/whitespace perturbation")
		}
	})
}
