// Package commitment computes the provider-independent identity commitment
// used to recognize the same physical person across verification providers.
package commitment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"strconv"

	"golang.org/x/crypto/hkdf"

	"civitas/internal/verification/canonical"
	dErrors "civitas/pkg/domain-errors"
)

const (
	info      = "civitas/identity-commitment/v1"
	separator = "\x1f"
)

// Input is the subset of attributes every provider can disclose about the
// reference document an identity was established with.
type Input struct {
	Nationality             string
	BirthYear               int
	DocumentClass           string
	ReferenceDocumentNumber string
}

// Committer computes commitments under a single server key.
type Committer struct {
	key []byte
}

// New derives the commitment key from pepper.
func New(pepper []byte) (*Committer, error) {
	if len(pepper) < 16 {
		return nil, errors.New("commitment pepper must be at least 16 bytes")
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, pepper, nil, []byte(info)), key); err != nil {
		return nil, err
	}
	return &Committer{key: key}, nil
}

// Canonical returns the canonical encoding that is committed to.
func Canonical(in Input) (string, error) {
	nationality, err := canonical.Nationality(in.Nationality)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInvalidProof, "nationality is missing or malformed")
	}
	class, err := canonical.DocumentClass(in.DocumentClass)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInvalidProof, "reference document class is missing or unsupported")
	}
	number, err := canonical.DocumentNumber(in.ReferenceDocumentNumber)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInvalidProof, "reference document number is missing or malformed")
	}
	if in.BirthYear <= 0 {
		return "", dErrors.New(dErrors.CodeInvalidProof, "birth year is required")
	}
	return nationality + separator + strconv.Itoa(in.BirthYear) + separator + class + separator + number, nil
}

// Compute returns the hex HMAC-SHA256 commitment for in.
func (c *Committer) Compute(in Input) (string, error) {
	canon, err := Canonical(in)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, c.key)
	mac.Write([]byte(canon))
	return hex.EncodeToString(mac.Sum(nil)), nil
}
