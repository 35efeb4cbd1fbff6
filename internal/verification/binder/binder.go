// Package binder links accounts that present the same identity commitment.
// The account that bound a commitment first stays canonical; later accounts
// are folded into it and marked merged.
package binder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"civitas/internal/verification/models"
	"civitas/internal/verification/store"
	"civitas/internal/verification/trust"
	id "civitas/pkg/domain"
	dErrors "civitas/pkg/domain-errors"
)

// maxChain bounds how many merged hops are followed to the canonical root.
const maxChain = 16

// Result is the outcome of Bind.
type Result struct {
	LinkedToExisting   bool
	CanonicalAccountID id.AccountID
}

// MergeResult describes the canonical account after a merge.
type MergeResult struct {
	Tier     trust.Tier
	Upgraded bool
}

// Binder runs inside the caller's transaction; it holds no state of its own.
type Binder struct {
	logger *slog.Logger
}

// Option configures a Binder.
type Option func(*Binder)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Binder) { b.logger = logger }
}

// New creates a Binder.
func New(opts ...Option) *Binder {
	b := &Binder{logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Bind claims commitment for accountID. When another account already holds
// it, the canonical root of that account is returned with LinkedToExisting.
func (b *Binder) Bind(ctx context.Context, repo store.Repository, accountID id.AccountID, commitment string, now time.Time) (Result, error) {
	if commitment == "" {
		return Result{}, dErrors.New(dErrors.CodeInvalidProof, "identity commitment is required")
	}
	binding, err := repo.ClaimBinding(ctx, commitment, accountID, now)
	if err != nil {
		return Result{}, fmt.Errorf("claim commitment binding: %w", err)
	}
	if binding.AccountID == accountID {
		return Result{CanonicalAccountID: accountID}, nil
	}

	root, err := b.root(ctx, repo, binding.AccountID, now)
	if err != nil {
		return Result{}, err
	}
	if root == accountID {
		return Result{CanonicalAccountID: accountID}, nil
	}
	return Result{LinkedToExisting: true, CanonicalAccountID: root}, nil
}

func (b *Binder) root(ctx context.Context, repo store.Repository, start id.AccountID, now time.Time) (id.AccountID, error) {
	current := start
	for range maxChain {
		p, err := repo.LockProfile(ctx, current, now)
		if err != nil {
			return id.AccountID{}, fmt.Errorf("follow merge chain: %w", err)
		}
		if !p.IsMerged() {
			return current, nil
		}
		current = *p.MergedInto
	}
	b.logger.ErrorContext(ctx, "merge chain too long", "start_account_id", start.String())
	return id.AccountID{}, dErrors.New(dErrors.CodeInvariantViolation, "merge chain does not terminate")
}

// Merge folds from into the canonical account into, re-points from's
// identities and marks from as merged. Neither tier ever decreases.
func (b *Binder) Merge(ctx context.Context, repo store.Repository, from, into id.AccountID, now time.Time) (MergeResult, error) {
	if from == into {
		return MergeResult{}, dErrors.New(dErrors.CodeInvariantViolation, "cannot merge an account into itself")
	}

	// Lock in a stable order so concurrent merges of the same pair cannot deadlock.
	first, second := from, into
	if into.String() < from.String() {
		first, second = into, from
	}
	locked := make(map[id.AccountID]*models.TrustProfile, 2)
	for _, acct := range []id.AccountID{first, second} {
		p, err := repo.LockProfile(ctx, acct, now)
		if err != nil {
			return MergeResult{}, fmt.Errorf("lock profile for merge: %w", err)
		}
		locked[acct] = p
	}
	fromP, intoP := locked[from], locked[into]
	if intoP.IsMerged() {
		return MergeResult{}, dErrors.New(dErrors.CodeInvariantViolation, "merge target is itself merged")
	}

	fromSignals := fromP.Signals()
	folded := trust.Fold(intoP.Signals(), fromSignals)
	intoP.ApplySignals(folded)
	if fromSignals.AddressVerifiedAt != nil && folded.AddressVerifiedAt == fromSignals.AddressVerifiedAt {
		intoP.DistrictHash = fromP.DistrictHash
	}
	if intoP.IdentityCommitment == "" {
		intoP.IdentityCommitment = fromP.IdentityCommitment
	}
	if fromP.VerifiedAt != nil {
		intoP.TouchVerified(*fromP.VerifiedAt)
	}
	intoP.UpdatedAt = now
	if err := repo.SaveProfile(ctx, intoP); err != nil {
		return MergeResult{}, fmt.Errorf("save canonical profile: %w", err)
	}

	tier := trust.DeriveTier(max(intoP.TrustTier, fromP.TrustTier), folded)
	upgraded, err := repo.RaiseTier(ctx, into, tier, now)
	if err != nil {
		return MergeResult{}, fmt.Errorf("raise canonical tier: %w", err)
	}

	target := into
	fromP.MergedInto = &target
	fromP.UpdatedAt = now
	if err := repo.SaveProfile(ctx, fromP); err != nil {
		return MergeResult{}, fmt.Errorf("mark profile merged: %w", err)
	}
	moved, err := repo.ReassignIdentities(ctx, from, into)
	if err != nil {
		return MergeResult{}, fmt.Errorf("reassign identities: %w", err)
	}

	b.logger.InfoContext(ctx, "accounts merged",
		"merged_account_id", from.String(),
		"canonical_account_id", into.String(),
		"identities_moved", moved,
		"trust_tier", int(tier),
	)
	return MergeResult{Tier: tier, Upgraded: upgraded}, nil
}
