package commitment

import (
	"math/rand"
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "civitas/pkg/domain-errors"
)

var pepper = []byte("commitment-test-pepper-0123")

func base() Input {
	return Input{
		Nationality:             "GBR",
		BirthYear:               1985,
		DocumentClass:           "passport",
		ReferenceDocumentNumber: "123456789",
	}
}

func TestCommitmentEquivalentEncodings(t *testing.T) {
	c, err := New(pepper)
	require.NoError(t, err)
	want, err := c.Compute(base())
	require.NoError(t, err)

	variants := []Input{
		{Nationality: "gb", BirthYear: 1985, DocumentClass: "P", ReferenceDocumentNumber: "123 456 789"},
		{Nationality: " GBR ", BirthYear: 1985, DocumentClass: "PASSPORT", ReferenceDocumentNumber: "123-456-789"},
		{Nationality: "ｇｂｒ", BirthYear: 1985, DocumentClass: "pp", ReferenceDocumentNumber: "１２３４５６７８９"},
		{Nationality: "Gb", BirthYear: 1985, DocumentClass: "passport", ReferenceDocumentNumber: "123.456/789<<"},
	}
	for _, v := range variants {
		got, err := c.Compute(v)
		require.NoError(t, err)
		assert.Equal(t, want, got, "%+v", v)
	}
}

func TestCommitmentDistinguishesIdentities(t *testing.T) {
	c, err := New(pepper)
	require.NoError(t, err)
	want, err := c.Compute(base())
	require.NoError(t, err)

	changes := []func(*Input){
		func(in *Input) { in.Nationality = "IRL" },
		func(in *Input) { in.BirthYear = 1986 },
		func(in *Input) { in.DocumentClass = "id_card" },
		func(in *Input) { in.ReferenceDocumentNumber = "123456780" },
	}
	for i, change := range changes {
		in := base()
		change(&in)
		got, err := c.Compute(in)
		require.NoError(t, err)
		assert.NotEqual(t, want, got, "change %d", i)
	}
}

func TestCommitmentRejectsMissingFields(t *testing.T) {
	c, err := New(pepper)
	require.NoError(t, err)
	for name, change := range map[string]func(*Input){
		"nationality": func(in *Input) { in.Nationality = "" },
		"birth year":  func(in *Input) { in.BirthYear = 0 },
		"class":       func(in *Input) { in.DocumentClass = "" },
		"number":      func(in *Input) { in.ReferenceDocumentNumber = " - " },
	} {
		in := base()
		change(&in)
		_, err := c.Compute(in)
		require.Error(t, err, name)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidProof), name)
	}
}

// TestCommitmentPermutations inserts separators and whitespace at random
// positions and flips case; the commitment must not move.
func TestCommitmentPermutations(t *testing.T) {
	c, err := New(pepper)
	require.NoError(t, err)
	want, err := c.Compute(base())
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	noise := []string{" ", "-", ".", "/", "\t", " ", "　"}
	for i := 0; i < 500; i++ {
		var b strings.Builder
		for _, r := range "123456789" {
			if rng.Intn(3) == 0 {
				b.WriteString(noise[rng.Intn(len(noise))])
			}
			b.WriteRune(r)
		}
		nat := []rune("gbr")
		for j := range nat {
			if rng.Intn(2) == 0 {
				nat[j] = unicode.ToUpper(nat[j])
			}
		}
		got, err := c.Compute(Input{
			Nationality:             string(nat),
			BirthYear:               1985,
			DocumentClass:           "passport",
			ReferenceDocumentNumber: b.String(),
		})
		require.NoError(t, err)
		require.Equal(t, want, got, "iteration %d input %q", i, b.String())
	}
}
