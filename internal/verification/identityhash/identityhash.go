// Package identityhash derives deterministic, provider-scoped identifiers for
// physical identity documents. The same document verified through the same
// provider class always yields the same hash; hashes from different provider
// classes are unrelated.
package identityhash

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/hkdf"

	"civitas/internal/verification/canonical"
	dErrors "civitas/pkg/domain-errors"
)

const (
	// MinBirthYear is the earliest birth year accepted from any provider.
	MinBirthYear = 1900
	// DefaultMinimumAge is the age threshold for verification.
	DefaultMinimumAge = 18

	fingerprintSize = 16
	hashInfoPrefix  = "civitas/identity-hash/v1/"
	fpInfo          = "civitas/identity-fingerprint/v1"
	fieldSeparator  = "\x1f"
)

// Input holds the immutable attributes disclosed by a provider.
type Input struct {
	DocumentNumber string
	DocumentType   string
	Nationality    string
	BirthYear      int
}

// Result is the provider-scoped identity hash and its log-safe fingerprint.
type Result struct {
	Hash        string
	Fingerprint string
}

// Engine computes identity hashes. Safe for concurrent use.
type Engine struct {
	pepper     []byte
	fpKey      []byte
	minimumAge int
	now        func() time.Time

	mu   sync.RWMutex
	keys map[string][]byte
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source used for age checks.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithMinimumAge overrides the age threshold.
func WithMinimumAge(age int) Option {
	return func(e *Engine) { e.minimumAge = age }
}

// New creates an Engine keyed by pepper.
func New(pepper []byte, opts ...Option) (*Engine, error) {
	if len(pepper) < 16 {
		return nil, errors.New("identity pepper must be at least 16 bytes")
	}
	fpKey, err := deriveKey(pepper, fpInfo)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		pepper:     append([]byte(nil), pepper...),
		fpKey:      fpKey,
		minimumAge: DefaultMinimumAge,
		now:        time.Now,
		keys:       make(map[string][]byte),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Compute validates and canonicalizes in, then returns its hash for the given
// provider class.
func (e *Engine) Compute(providerClass string, in Input) (Result, error) {
	if providerClass == "" {
		return Result{}, dErrors.New(dErrors.CodeInternal, "provider class is required")
	}
	fields, err := e.canonicalFields(in)
	if err != nil {
		return Result{}, err
	}
	key, err := e.providerKey(providerClass)
	if err != nil {
		return Result{}, dErrors.Wrap(err, dErrors.CodeInternal, "derive identity key")
	}

	mac := hmac.New(sha256.New, key)
	for i, f := range fields {
		if i > 0 {
			mac.Write([]byte(fieldSeparator))
		}
		mac.Write([]byte(f))
	}
	hash := hex.EncodeToString(mac.Sum(nil))
	return Result{Hash: hash, Fingerprint: e.Fingerprint(hash)}, nil
}

// Fingerprint returns a truncated keyed digest of hash, safe for logs and
// secondary indexes.
func (e *Engine) Fingerprint(hash string) string {
	h, _ := blake2b.New(fingerprintSize, e.fpKey)
	h.Write([]byte(hash))
	return hex.EncodeToString(h.Sum(nil))
}

func (e *Engine) canonicalFields(in Input) ([]string, error) {
	docNumber, err := canonical.DocumentNumber(in.DocumentNumber)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidProof, "document number is missing or malformed")
	}
	nationality, err := canonical.Nationality(in.Nationality)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidProof, "nationality is missing or malformed")
	}
	docClass, err := canonical.DocumentClass(in.DocumentType)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidProof, "document type is missing or unsupported")
	}
	if err := CheckBirthYear(in.BirthYear, e.now().UTC().Year(), e.minimumAge); err != nil {
		return nil, err
	}
	return []string{docClass, docNumber, nationality, strconv.Itoa(in.BirthYear)}, nil
}

// CheckBirthYear enforces the plausible range and the minimum age using year
// granularity only.
func CheckBirthYear(birthYear, currentYear, minimumAge int) error {
	if birthYear < MinBirthYear || birthYear > currentYear {
		return dErrors.New(dErrors.CodeInvalidProof, "birth year is out of range")
	}
	if currentYear-birthYear < minimumAge {
		return dErrors.New(dErrors.CodeAgeIneligible, "account holder does not meet the minimum age")
	}
	return nil
}

func (e *Engine) providerKey(providerClass string) ([]byte, error) {
	e.mu.RLock()
	key, ok := e.keys[providerClass]
	e.mu.RUnlock()
	if ok {
		return key, nil
	}

	key, err := deriveKey(e.pepper, hashInfoPrefix+providerClass)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.keys[providerClass] = key
	e.mu.Unlock()
	return key, nil
}

func deriveKey(secret []byte, info string) ([]byte, error) {
	out := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(info)), out); err != nil {
		return nil, err
	}
	return out, nil
}
