package service

import (
	"context"
	"strconv"

	"go.opentelemetry.io/otel/trace"

	id "civitas/pkg/domain"
	dErrors "civitas/pkg/domain-errors"
	"civitas/pkg/platform/audit"
	"civitas/pkg/requestcontext"
)

// newRecord fills the request-derived fields of an audit record. Client IPs
// are hashed and the User-Agent is reduced to family names.
func (s *Service) newRecord(ctx context.Context, accountID id.AccountID, action audit.AuditEvent, method string, status audit.Status) audit.Record {
	meta := audit.ClientPlatform(requestcontext.UserAgent(ctx))
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		meta["trace_id"] = sc.TraceID().String()
	}
	return audit.Record{
		ID:             id.NewAuditRecordID(),
		AccountID:      accountID,
		Action:         action,
		Method:         method,
		Status:         status,
		HashedClientIP: s.hasher.HashIP(requestcontext.ClientIP(ctx)),
		Metadata:       meta,
		RequestID:      requestcontext.RequestID(ctx),
		Timestamp:      requestcontext.Now(ctx),
	}
}

// recordFailure writes a failure record outside any verification
// transaction so it survives the rollback of the attempt.
func (s *Service) recordFailure(ctx context.Context, accountID id.AccountID, action audit.AuditEvent, method string, cause error, extra map[string]string) {
	rec := s.newRecord(ctx, accountID, action, method, audit.StatusFailure)
	rec.FailureReason = string(dErrors.CodeOf(cause))
	for k, v := range extra {
		rec.Metadata[k] = v
	}
	if err := s.auditor.Append(ctx, rec); err != nil {
		s.logger.ErrorContext(ctx, "failed to write failure audit record",
			"account_id", accountID.String(),
			"action", string(action),
			"error", err,
		)
	}
}

// tierRecord is appended alongside a successful change that raised the tier.
func (s *Service) tierRecord(ctx context.Context, accountID id.AccountID, method string, tier int) audit.Record {
	rec := s.newRecord(ctx, accountID, audit.EventTierUpgraded, method, audit.StatusSuccess)
	rec.Metadata["trust_tier"] = strconv.Itoa(tier)
	return rec
}
