package audit

import (
	"context"
	"time"

	id "civitas/pkg/domain"
)

// EventCategory classifies audit records by their primary purpose so stores
// and downstream consumers can apply different retention.
type EventCategory string

const (
	// CategoryCompliance covers events with legal or regulatory significance:
	// successful verifications, merges and tier changes.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers integrity violations and rejected proofs.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity such as session issuance.
	CategoryOperations EventCategory = "operations"
)

// AuditEvent names the action a record describes.
type AuditEvent string

const (
	EventIdentityVerified   AuditEvent = "identity_verified"
	EventVerificationFailed AuditEvent = "verification_failed"
	EventAccountMerged      AuditEvent = "account_merged"
	EventAddressVerified    AuditEvent = "address_verified"
	EventSessionStarted     AuditEvent = "mobile_session_started"
	EventSessionRejected    AuditEvent = "mobile_session_rejected"
	EventTierUpgraded       AuditEvent = "trust_tier_upgraded"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventIdentityVerified: CategoryCompliance,
	EventAccountMerged:    CategoryCompliance,
	EventAddressVerified:  CategoryCompliance,
	EventTierUpgraded:     CategoryCompliance,

	EventVerificationFailed: CategorySecurity,
	EventSessionRejected:    CategorySecurity,

	EventSessionStarted: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Status is the outcome recorded for a verification attempt.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusMerged  Status = "merged"
)

// Record is an append-only verification audit entry. It never carries raw
// disclosed attributes; client IPs are stored hashed.
type Record struct {
	ID             id.AuditRecordID
	AccountID      id.AccountID
	Action         AuditEvent
	Method         string
	Status         Status
	FailureReason  string
	HashedClientIP string
	Metadata       map[string]string
	RequestID      string
	Timestamp      time.Time
}

// Category derives the record category from its action.
func (r Record) Category() EventCategory {
	return r.Action.Category()
}

// Store appends and lists audit records. Append joins the caller's
// transaction when one is carried in ctx.
type Store interface {
	Append(ctx context.Context, rec Record) error
	ListByAccount(ctx context.Context, accountID id.AccountID) ([]Record, error)
}
