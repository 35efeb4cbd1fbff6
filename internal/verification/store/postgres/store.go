// Package postgres is the PostgreSQL verification datastore.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"civitas/internal/verification/models"
	"civitas/internal/verification/store"
	"civitas/internal/verification/trust"
	id "civitas/pkg/domain"
	dErrors "civitas/pkg/domain-errors"
	"civitas/pkg/platform/sentinel"
	txcontext "civitas/pkg/platform/tx"
)

//go:embed schema.sql
var Schema string

// ApplySchema creates the verification tables if missing.
func ApplySchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply verification schema: %w", err)
	}
	return nil
}

const (
	uniqueViolation      = "23505"
	serializationFailure = "40001"
	deadlockDetected     = "40P01"
)

// maxTxAttempts bounds how often a transaction aborted by the server to
// break a lock cycle is run again.
const maxTxAttempts = 3

// Store implements store.Store over *sql.DB.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// New creates a PostgreSQL-backed store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// RunInTx opens a transaction, stores it in ctx and commits when fn succeeds.
// Deadlock and serialization aborts rerun fn from the start, so fn must not
// keep state across calls.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, repo store.Repository) error) error {
	var err error
	for range maxTxAttempts {
		err = s.runTx(ctx, fn)
		if !isTxAbort(err) {
			return err
		}
	}
	return dErrors.Wrap(err, dErrors.CodeTimeout, "verification transaction kept conflicting")
}

func (s *Store) runTx(ctx context.Context, fn func(ctx context.Context, repo store.Repository) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin verification tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	txCtx := txcontext.WithTx(ctx, tx)
	if err := fn(txCtx, &repo{exec: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit verification tx: %w", err)
	}
	return nil
}

// FindProfile reads a profile outside any transaction.
func (s *Store) FindProfile(ctx context.Context, accountID id.AccountID) (*models.TrustProfile, error) {
	p, err := scanProfile(txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, selectProfile+` WHERE account_id = $1`, uuid.UUID(accountID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find trust profile: %w", err)
	}
	return p, nil
}

type repo struct {
	exec txcontext.Executor
}

func (r *repo) FindIdentity(ctx context.Context, identityHash string) (*models.VerifiedIdentity, error) {
	var (
		v       models.VerifiedIdentity
		account uuid.UUID
		prov    string
	)
	err := r.exec.QueryRowContext(ctx, `
		SELECT identity_hash, identity_fingerprint, identity_commitment, nationality, birth_year,
		       document_type, account_id, provider_type, created_at
		FROM verified_identities
		WHERE identity_hash = $1
	`, identityHash).Scan(
		&v.IdentityHash, &v.IdentityFingerprint, &v.IdentityCommitment, &v.Nationality, &v.BirthYear,
		&v.DocumentType, &account, &prov, &v.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find identity: %w", err)
	}
	v.AccountID = id.AccountID(account)
	v.ProviderType = models.ProviderType(prov)
	return &v, nil
}

// CreateIdentity skips the insert on a taken hash so the surrounding
// transaction stays usable for the follow-up lookup.
func (r *repo) CreateIdentity(ctx context.Context, v *models.VerifiedIdentity) error {
	res, err := r.exec.ExecContext(ctx, `
		INSERT INTO verified_identities (
			identity_hash, identity_fingerprint, identity_commitment, nationality, birth_year,
			document_type, account_id, provider_type, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (identity_hash) DO NOTHING
	`,
		v.IdentityHash, v.IdentityFingerprint, v.IdentityCommitment, v.Nationality, v.BirthYear,
		v.DocumentType, uuid.UUID(v.AccountID), string(v.ProviderType), v.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create identity: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create identity rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (r *repo) ReassignIdentities(ctx context.Context, from, into id.AccountID) (int, error) {
	res, err := r.exec.ExecContext(ctx, `
		UPDATE verified_identities SET account_id = $2 WHERE account_id = $1
	`, uuid.UUID(from), uuid.UUID(into))
	if err != nil {
		return 0, fmt.Errorf("reassign identities: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reassign identities rows affected: %w", err)
	}
	return int(n), nil
}

// ClaimBinding inserts the binding if absent and then locks whichever row
// won, so concurrent claims for one commitment serialize on it.
func (r *repo) ClaimBinding(ctx context.Context, commitment string, accountID id.AccountID, now time.Time) (*models.CommitmentBinding, error) {
	if _, err := r.exec.ExecContext(ctx, `
		INSERT INTO commitment_bindings (identity_commitment, account_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (identity_commitment) DO NOTHING
	`, commitment, uuid.UUID(accountID), now); err != nil {
		return nil, fmt.Errorf("claim binding: %w", err)
	}

	var (
		b       models.CommitmentBinding
		account uuid.UUID
	)
	err := r.exec.QueryRowContext(ctx, `
		SELECT identity_commitment, account_id, created_at
		FROM commitment_bindings
		WHERE identity_commitment = $1
		FOR UPDATE
	`, commitment).Scan(&b.IdentityCommitment, &account, &b.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("lock binding: %w", err)
	}
	b.AccountID = id.AccountID(account)
	return &b, nil
}

const selectProfile = `
	SELECT account_id, trust_tier, verification_method, document_type, verified_at,
	       identity_commitment, district_hash, locality_precision, address_verified_at,
	       merged_into, updated_at
	FROM trust_profiles`

func (r *repo) LockProfile(ctx context.Context, accountID id.AccountID, now time.Time) (*models.TrustProfile, error) {
	if _, err := r.exec.ExecContext(ctx, `
		INSERT INTO trust_profiles (account_id, updated_at) VALUES ($1, $2)
		ON CONFLICT (account_id) DO NOTHING
	`, uuid.UUID(accountID), now); err != nil {
		return nil, fmt.Errorf("ensure trust profile: %w", err)
	}
	p, err := scanProfile(r.exec.QueryRowContext(ctx, selectProfile+` WHERE account_id = $1 FOR UPDATE`, uuid.UUID(accountID)))
	if err != nil {
		return nil, fmt.Errorf("lock trust profile: %w", err)
	}
	return p, nil
}

func (r *repo) SaveProfile(ctx context.Context, p *models.TrustProfile) error {
	var merged uuid.NullUUID
	if p.MergedInto != nil {
		merged = uuid.NullUUID{UUID: uuid.UUID(*p.MergedInto), Valid: true}
	}
	res, err := r.exec.ExecContext(ctx, `
		UPDATE trust_profiles SET
			verification_method = $2,
			document_type = $3,
			verified_at = $4,
			identity_commitment = $5,
			district_hash = $6,
			locality_precision = $7,
			address_verified_at = $8,
			merged_into = $9,
			updated_at = $10
		WHERE account_id = $1
	`,
		uuid.UUID(p.AccountID),
		string(p.VerificationMethod),
		p.DocumentType,
		p.VerifiedAt,
		p.IdentityCommitment,
		p.DistrictHash,
		p.LocalityPrecision.String(),
		p.AddressVerifiedAt,
		merged,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save trust profile: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save trust profile rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// RaiseTier is a conditional update; a lower or equal tier is a no-op.
func (r *repo) RaiseTier(ctx context.Context, accountID id.AccountID, tier trust.Tier, now time.Time) (bool, error) {
	res, err := r.exec.ExecContext(ctx, `
		UPDATE trust_profiles SET trust_tier = $2, updated_at = $3
		WHERE account_id = $1 AND trust_tier < $2
	`, uuid.UUID(accountID), int(tier), now)
	if err != nil {
		return false, fmt.Errorf("raise trust tier: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("raise trust tier rows affected: %w", err)
	}
	return n > 0, nil
}

func scanProfile(row *sql.Row) (*models.TrustProfile, error) {
	var (
		p          models.TrustProfile
		account    uuid.UUID
		tier       int
		method     string
		verifiedAt sql.NullTime
		precision  string
		addressAt  sql.NullTime
		merged     uuid.NullUUID
	)
	if err := row.Scan(
		&account, &tier, &method, &p.DocumentType, &verifiedAt,
		&p.IdentityCommitment, &p.DistrictHash, &precision, &addressAt,
		&merged, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.AccountID = id.AccountID(account)
	p.TrustTier = trust.Tier(tier)
	p.VerificationMethod = trust.Method(method)
	if verifiedAt.Valid {
		t := verifiedAt.Time
		p.VerifiedAt = &t
	}
	if addressAt.Valid {
		t := addressAt.Time
		p.AddressVerifiedAt = &t
	}
	p.LocalityPrecision, _ = trust.ParsePrecision(precision)
	if merged.Valid {
		m := id.AccountID(merged.UUID)
		p.MergedInto = &m
	}
	return &p, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// isTxAbort reports whether the server rolled the transaction back to
// resolve a deadlock or a serialization conflict.
func isTxAbort(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == deadlockDetected || pqErr.Code == serializationFailure
}
