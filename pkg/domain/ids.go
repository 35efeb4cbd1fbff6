// Package domain defines typed identifiers shared across verification
// components. Distinct types keep an account id from being passed where a
// session id is expected.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "civitas/pkg/domain-errors"
)

type (
	// AccountID identifies a platform account (the holder of a trust profile).
	AccountID uuid.UUID
	// SessionID identifies an ephemeral mobile-credential key session.
	SessionID uuid.UUID
	// AuditRecordID identifies one verification audit record.
	AuditRecordID uuid.UUID
)

const maxIDLength = 64

func parseUUID(kind, s string) (uuid.UUID, error) {
	if len(s) > maxIDLength {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is too long")
	}
	if strings.TrimSpace(s) == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" must not be nil")
	}
	return parsed, nil
}

// ParseAccountID parses and validates an account id.
func ParseAccountID(s string) (AccountID, error) {
	u, err := parseUUID("account id", s)
	return AccountID(u), err
}

// ParseSessionID parses and validates a key session id.
func ParseSessionID(s string) (SessionID, error) {
	u, err := parseUUID("session id", s)
	return SessionID(u), err
}

// NewAccountID returns a random account id.
func NewAccountID() AccountID { return AccountID(uuid.New()) }

// NewSessionID returns a random session id.
func NewSessionID() SessionID { return SessionID(uuid.New()) }

// NewAuditRecordID returns a random audit record id.
func NewAuditRecordID() AuditRecordID { return AuditRecordID(uuid.New()) }

func (id AccountID) String() string     { return uuid.UUID(id).String() }
func (id AccountID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id SessionID) String() string     { return uuid.UUID(id).String() }
func (id SessionID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id AuditRecordID) String() string { return uuid.UUID(id).String() }
func (id AuditRecordID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
