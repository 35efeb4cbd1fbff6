// Package store declares the persistence contract for verified identities,
// commitment bindings and trust profiles. Backends live in subpackages.
package store

import (
	"context"
	"time"

	"civitas/internal/verification/models"
	"civitas/internal/verification/trust"
	id "civitas/pkg/domain"
)

// Repository is the set of operations available inside a transaction.
// Lookups return sentinel.ErrNotFound when nothing matches; uniqueness
// violations return sentinel.ErrConflict.
type Repository interface {
	// FindIdentity returns the identity owning hash.
	FindIdentity(ctx context.Context, identityHash string) (*models.VerifiedIdentity, error)
	// CreateIdentity inserts a new identity. A taken hash is a conflict.
	CreateIdentity(ctx context.Context, identity *models.VerifiedIdentity) error
	// ReassignIdentities re-points every identity owned by from to into.
	ReassignIdentities(ctx context.Context, from, into id.AccountID) (int, error)

	// ClaimBinding creates the binding for commitment owned by accountID, or
	// returns the existing one. The row stays locked until the transaction ends.
	ClaimBinding(ctx context.Context, commitment string, accountID id.AccountID, now time.Time) (*models.CommitmentBinding, error)

	// LockProfile returns the account's profile, creating an unverified one
	// if none exists. The row stays locked until the transaction ends.
	LockProfile(ctx context.Context, accountID id.AccountID, now time.Time) (*models.TrustProfile, error)
	// SaveProfile writes every profile field except the tier.
	SaveProfile(ctx context.Context, profile *models.TrustProfile) error
	// RaiseTier sets the tier only if it is higher than the stored one and
	// reports whether a change was made.
	RaiseTier(ctx context.Context, accountID id.AccountID, tier trust.Tier, now time.Time) (bool, error)
}

// Reader serves lookups outside a transaction.
type Reader interface {
	FindProfile(ctx context.Context, accountID id.AccountID) (*models.TrustProfile, error)
}

// TxRunner runs fn in one transaction. ctx passed to fn carries the
// transaction so stores sharing the database can join it.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error
}

// Store is a complete backend.
type Store interface {
	TxRunner
	Reader
}
