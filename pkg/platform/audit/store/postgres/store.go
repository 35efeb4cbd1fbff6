package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "civitas/pkg/domain"
	audit "civitas/pkg/platform/audit"
	txcontext "civitas/pkg/platform/tx"
)

//go:embed schema.sql
var Schema string

// ApplySchema creates the audit and outbox tables if missing.
func ApplySchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply audit schema: %w", err)
	}
	return nil
}

// Store implements audit.Store. Each Append writes the audit row and an
// outbox entry in the caller's transaction; the outbox relay publishes to
// Kafka afterwards.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the outbox timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a new PostgreSQL audit store.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Payload is the JSON structure published to Kafka.
type Payload struct {
	ID             string            `json:"id"`
	Category       string            `json:"category"`
	Action         string            `json:"action"`
	AccountID      string            `json:"account_id,omitempty"`
	Method         string            `json:"method,omitempty"`
	Status         string            `json:"status"`
	FailureReason  string            `json:"failure_reason,omitempty"`
	HashedClientIP string            `json:"hashed_client_ip,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	RequestID      string            `json:"request_id,omitempty"`
	Timestamp      string            `json:"timestamp"`
}

// Append writes the record and its outbox entry. Without a transaction in
// ctx both inserts run in a local transaction.
func (s *Store) Append(ctx context.Context, rec audit.Record) error {
	if rec.ID.IsNil() {
		rec.ID = id.NewAuditRecordID()
	}
	if _, ok := txcontext.From(ctx); ok {
		return s.append(ctx, txcontext.ExecutorFrom(ctx, s.db), rec)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin audit tx: %w", err)
	}
	if err := s.append(ctx, tx, rec); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit audit tx: %w", err)
	}
	return nil
}

func (s *Store) append(ctx context.Context, exec txcontext.Executor, rec audit.Record) error {
	metadata := rec.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	metaBytes, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal audit metadata: %w", err)
	}

	var accountID *uuid.UUID
	if !rec.AccountID.IsNil() {
		u := uuid.UUID(rec.AccountID)
		accountID = &u
	}

	_, err = exec.ExecContext(ctx, `
		INSERT INTO verification_audit (
			id, account_id, category, action, method, status,
			failure_reason, hashed_client_ip, metadata, request_id, recorded_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		uuid.UUID(rec.ID),
		accountID,
		string(rec.Category()),
		string(rec.Action),
		rec.Method,
		string(rec.Status),
		rec.FailureReason,
		rec.HashedClientIP,
		metaBytes,
		rec.RequestID,
		rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}

	payload := Payload{
		ID:             rec.ID.String(),
		Category:       string(rec.Category()),
		Action:         string(rec.Action),
		Method:         rec.Method,
		Status:         string(rec.Status),
		FailureReason:  rec.FailureReason,
		HashedClientIP: rec.HashedClientIP,
		Metadata:       rec.Metadata,
		RequestID:      rec.RequestID,
		Timestamp:      rec.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	aggregateType := "audit"
	aggregateID := rec.ID.String()
	if !rec.AccountID.IsNil() {
		payload.AccountID = rec.AccountID.String()
		aggregateType = "account"
		aggregateID = rec.AccountID.String()
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	_, err = exec.ExecContext(ctx, `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		uuid.New(),
		aggregateType,
		aggregateID,
		string(rec.Action),
		payloadBytes,
		s.now(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// ListByAccount returns records for an account, newest first.
func (s *Store) ListByAccount(ctx context.Context, accountID id.AccountID) ([]audit.Record, error) {
	rows, err := txcontext.ExecutorFrom(ctx, s.db).QueryContext(ctx, `
		SELECT id, account_id, action, method, status, failure_reason,
		       hashed_client_ip, metadata, request_id, recorded_at
		FROM verification_audit
		WHERE account_id = $1
		ORDER BY recorded_at DESC, id
	`, uuid.UUID(accountID))
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	defer rows.Close()

	var out []audit.Record
	for rows.Next() {
		var (
			rec       audit.Record
			recID     uuid.UUID
			accID     *uuid.UUID
			action    string
			status    string
			metaBytes []byte
		)
		if err := rows.Scan(&recID, &accID, &action, &rec.Method, &status, &rec.FailureReason,
			&rec.HashedClientIP, &metaBytes, &rec.RequestID, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		rec.ID = id.AuditRecordID(recID)
		if accID != nil {
			rec.AccountID = id.AccountID(*accID)
		}
		rec.Action = audit.AuditEvent(action)
		rec.Status = audit.Status(status)
		if len(metaBytes) > 0 {
			if err := json.Unmarshal(metaBytes, &rec.Metadata); err != nil {
				return nil, fmt.Errorf("decode audit metadata: %w", err)
			}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit records: %w", err)
	}
	return out, nil
}
