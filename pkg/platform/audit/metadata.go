package audit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"

	"github.com/mssola/useragent"
	"golang.org/x/crypto/hkdf"
)

const clientIPInfo = "civitas/audit/client-ip/v1"

// ClientHasher produces the audit-safe view of client metadata.
type ClientHasher struct {
	key []byte
}

// NewClientHasher derives the IP hashing key from pepper.
func NewClientHasher(pepper []byte) (*ClientHasher, error) {
	if len(pepper) < 16 {
		return nil, errors.New("audit pepper must be at least 16 bytes")
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, pepper, nil, []byte(clientIPInfo)), key); err != nil {
		return nil, err
	}
	return &ClientHasher{key: key}, nil
}

// HashIP returns a keyed hash of ip, or "" for an empty ip.
func (h *ClientHasher) HashIP(ip string) string {
	if ip == "" {
		return ""
	}
	mac := hmac.New(sha256.New, h.key)
	mac.Write([]byte(ip))
	return hex.EncodeToString(mac.Sum(nil))
}

// ClientPlatform reduces a User-Agent to browser and OS family names. Versions
// and device models are dropped.
func ClientPlatform(userAgent string) map[string]string {
	out := map[string]string{}
	if userAgent == "" {
		return out
	}
	ua := useragent.New(userAgent)
	if ua.Bot() {
		out["client_kind"] = "bot"
		return out
	}
	if name, _ := ua.Browser(); name != "" {
		out["browser_family"] = name
	}
	if os := ua.OSInfo().Name; os != "" {
		out["os_family"] = os
	}
	if ua.Mobile() {
		out["client_kind"] = "mobile"
	} else {
		out["client_kind"] = "desktop"
	}
	return out
}
