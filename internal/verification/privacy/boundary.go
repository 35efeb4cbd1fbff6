// Package privacy reduces raw disclosed attributes to the minimal derived
// values the rest of the system may keep. Raw values never leave Reduce.
package privacy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/text/unicode/norm"

	"civitas/internal/verification/trust"
	dErrors "civitas/pkg/domain-errors"
)

// AddressFields are raw address attributes. Callers must not retain them
// after Reduce returns; Reduce wipes them.
type AddressFields struct {
	PostalCode string
	City       string
	Region     string
}

// Empty reports whether no address attribute was disclosed.
func (a *AddressFields) Empty() bool {
	return a == nil || (a.PostalCode == "" && a.City == "" && a.Region == "")
}

// Wipe clears every field.
func (a *AddressFields) Wipe() {
	if a == nil {
		return
	}
	*a = AddressFields{}
}

func (a AddressFields) values() []string {
	return []string{a.PostalCode, a.City, a.Region}
}

// LogValue keeps raw address data out of structured logs.
func (a AddressFields) LogValue() slog.Value {
	return slog.StringValue("[REDACTED]")
}

// Locality is what the resolver derives from an address.
type Locality struct {
	ID        string
	Precision trust.Precision
}

// LocalityResolver maps a raw address to a locality identifier.
type LocalityResolver interface {
	Resolve(ctx context.Context, address AddressFields) (Locality, error)
}

// Derived is the only output of the boundary.
type Derived struct {
	LocalityID  string
	ContentHash string
	Precision   trust.Precision
}

// ErrLeak is returned when a resolver echoes raw input in its output.
var ErrLeak = errors.New("derived locality contains raw address input")

// minLeakLen is the shortest normalized raw value checked for echoes.
// Two-letter region codes legitimately appear inside district identifiers.
const minLeakLen = 3

// Boundary performs the reduction. Safe for concurrent use.
type Boundary struct {
	resolver    LocalityResolver
	contentKey  []byte
	districtKey []byte
	logger      *slog.Logger
}

// Option configures a Boundary.
type Option func(*Boundary)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Boundary) { b.logger = logger }
}

// NewBoundary creates a Boundary with keys derived from pepper.
func NewBoundary(resolver LocalityResolver, pepper []byte, opts ...Option) (*Boundary, error) {
	if resolver == nil {
		return nil, errors.New("locality resolver is required")
	}
	contentKey, err := derive(pepper, "civitas/privacy/content-hash/v1")
	if err != nil {
		return nil, err
	}
	districtKey, err := derive(pepper, "civitas/privacy/district-hash/v1")
	if err != nil {
		return nil, err
	}
	b := &Boundary{
		resolver:    resolver,
		contentKey:  contentKey,
		districtKey: districtKey,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Reduce resolves raw to a locality and returns only derived values. raw is
// wiped before Reduce returns, on every path.
func (b *Boundary) Reduce(ctx context.Context, raw *AddressFields, payload []byte) (Derived, error) {
	defer raw.Wipe()
	if raw.Empty() {
		return Derived{}, dErrors.New(dErrors.CodeInvalidProof, "no address attributes disclosed")
	}

	loc, err := b.resolver.Resolve(ctx, *raw)
	if err != nil {
		b.logger.WarnContext(ctx, "locality resolution failed", "error", err)
		return Derived{}, err
	}
	if loc.ID == "" {
		return Derived{}, dErrors.New(dErrors.CodeInvalidProof, "address did not resolve to a locality")
	}
	if echoes(loc.ID, raw.values()) {
		b.logger.ErrorContext(ctx, "locality resolver echoed raw input")
		return Derived{}, dErrors.Wrap(ErrLeak, dErrors.CodeInternal, "locality resolution failed")
	}

	return Derived{
		LocalityID:  loc.ID,
		ContentHash: b.ContentHash(payload),
		Precision:   loc.Precision,
	}, nil
}

// ContentHash is a keyed BLAKE2b-256 digest of a decoded payload.
func (b *Boundary) ContentHash(payload []byte) string {
	h, _ := blake2b.New256(b.contentKey)
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// DistrictHash is the persisted form of a locality id.
func (b *Boundary) DistrictHash(localityID string) string {
	h, _ := blake2b.New256(b.districtKey)
	h.Write([]byte(localityID))
	return hex.EncodeToString(h.Sum(nil))
}

func echoes(derived string, raw []string) bool {
	d := normalize(derived)
	for _, r := range raw {
		n := normalize(r)
		if len(n) >= minLeakLen && strings.Contains(d, n) {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	s = strings.ToLower(norm.NFKC.String(s))
	var b strings.Builder
	for _, r := range s {
		if r != ' ' && r != '-' && r != '_' && r != '.' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func derive(secret []byte, info string) ([]byte, error) {
	if len(secret) < 16 {
		return nil, errors.New("privacy pepper must be at least 16 bytes")
	}
	out := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(info)), out); err != nil {
		return nil, err
	}
	return out, nil
}
