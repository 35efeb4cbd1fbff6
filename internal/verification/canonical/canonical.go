// Package canonical normalizes identity document attributes so that the same
// physical document produces the same bytes regardless of how a provider
// encodes it.
package canonical

import (
	"errors"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	ErrEmpty             = errors.New("value is empty")
	ErrInvalidCharacters = errors.New("value contains invalid characters")
	ErrUnknownCountry    = errors.New("unknown nationality code")
)

// fold applies NFKC, upper-cases and strips whitespace and the separators
// commonly found in printed document numbers.
func fold(s string) string {
	s = norm.NFKC.String(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
		case r == '-', r == '.', r == '/', r == '<':
		default:
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

// DocumentNumber returns the canonical form of a document number.
// Only ASCII letters and digits survive canonicalization.
func DocumentNumber(s string) (string, error) {
	out := fold(s)
	if out == "" {
		return "", ErrEmpty
	}
	for _, r := range out {
		if !(r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return "", ErrInvalidCharacters
		}
	}
	return out, nil
}

// Nationality returns the ISO 3166-1 alpha-3 code for an alpha-2 or alpha-3
// input. The ICAO "D" code for Germany is accepted.
func Nationality(s string) (string, error) {
	code := fold(s)
	switch len(code) {
	case 0:
		return "", ErrEmpty
	case 1:
		if code == "D" {
			return "DEU", nil
		}
	case 2:
		if a3, ok := alpha2To3[code]; ok {
			return a3, nil
		}
	case 3:
		if _, ok := alpha3[code]; ok {
			return code, nil
		}
	}
	return "", ErrUnknownCountry
}

// Document classes shared by every provider.
const (
	ClassPassport        = "passport"
	ClassIDCard          = "id_card"
	ClassDrivingLicence  = "driving_licence"
	ClassResidencePermit = "residence_permit"
)

var classAliases = map[string]string{
	"P":               ClassPassport,
	"PP":              ClassPassport,
	"PASSPORT":        ClassPassport,
	"I":               ClassIDCard,
	"ID":              ClassIDCard,
	"IDCARD":          ClassIDCard,
	"IDENTITYCARD":    ClassIDCard,
	"NATIONALID":      ClassIDCard,
	"NATIONALIDCARD":  ClassIDCard,
	"DL":              ClassDrivingLicence,
	"MDL":             ClassDrivingLicence,
	"DRIVINGLICENCE":  ClassDrivingLicence,
	"DRIVINGLICENSE":  ClassDrivingLicence,
	"DRIVERLICENSE":   ClassDrivingLicence,
	"DRIVERSLICENSE":  ClassDrivingLicence,
	"RESIDENCEPERMIT": ClassResidencePermit,
	"RP":              ClassResidencePermit,
}

// DocumentClass maps provider-specific document type labels onto a shared class.
func DocumentClass(s string) (string, error) {
	key := strings.ReplaceAll(fold(s), "_", "")
	if key == "" {
		return "", ErrEmpty
	}
	if class, ok := classAliases[key]; ok {
		return class, nil
	}
	return "", ErrInvalidCharacters
}
