// Package memory is the in-process verification datastore. A transaction
// writes to an overlay of the rows it touched, which is applied to the
// shared state on success, so failed transactions leave nothing behind.
package memory

import (
	"context"
	"sync"
	"time"

	"civitas/internal/verification/models"
	"civitas/internal/verification/store"
	"civitas/internal/verification/trust"
	id "civitas/pkg/domain"
	dErrors "civitas/pkg/domain-errors"
	"civitas/pkg/platform/sentinel"
)

type state struct {
	identities map[string]models.VerifiedIdentity
	bindings   map[string]models.CommitmentBinding
	profiles   map[id.AccountID]models.TrustProfile
}

func newState() *state {
	return &state{
		identities: make(map[string]models.VerifiedIdentity),
		bindings:   make(map[string]models.CommitmentBinding),
		profiles:   make(map[id.AccountID]models.TrustProfile),
	}
}

// Store is a mutex-guarded datastore for single-process deployments.
// Transactions are serialized and hold the lock until they finish, so
// reads wait behind a running transaction.
type Store struct {
	mu    sync.Mutex
	state *state
}

var _ store.Store = (*Store)(nil)

// New creates an empty Store.
func New() *Store {
	return &Store{state: newState()}
}

// RunInTx runs fn against an overlay of the state and applies it if fn succeeds.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, repo store.Repository) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	work := &repo{base: s.state, dirty: newState()}
	if err := fn(ctx, work); err != nil {
		return err
	}
	work.commit()
	return nil
}

// FindProfile returns a copy of the account's profile.
func (s *Store) FindProfile(_ context.Context, accountID id.AccountID) (*models.TrustProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.state.profiles[accountID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := copyProfile(p)
	return &out, nil
}

// IdentityCount reports how many identities are stored.
func (s *Store) IdentityCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.identities)
}

// repo reads through dirty to base and writes only to dirty.
type repo struct {
	base  *state
	dirty *state
}

func (r *repo) commit() {
	for k, v := range r.dirty.identities {
		r.base.identities[k] = v
	}
	for k, v := range r.dirty.bindings {
		r.base.bindings[k] = v
	}
	for k, v := range r.dirty.profiles {
		r.base.profiles[k] = v
	}
}

func (r *repo) identity(hash string) (models.VerifiedIdentity, bool) {
	if v, ok := r.dirty.identities[hash]; ok {
		return v, true
	}
	v, ok := r.base.identities[hash]
	return v, ok
}

func (r *repo) binding(commitment string) (models.CommitmentBinding, bool) {
	if b, ok := r.dirty.bindings[commitment]; ok {
		return b, true
	}
	b, ok := r.base.bindings[commitment]
	return b, ok
}

func (r *repo) profile(accountID id.AccountID) (models.TrustProfile, bool) {
	if p, ok := r.dirty.profiles[accountID]; ok {
		return p, true
	}
	p, ok := r.base.profiles[accountID]
	return p, ok
}

func (r *repo) FindIdentity(_ context.Context, identityHash string) (*models.VerifiedIdentity, error) {
	v, ok := r.identity(identityHash)
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &v, nil
}

func (r *repo) CreateIdentity(_ context.Context, identity *models.VerifiedIdentity) error {
	if _, exists := r.identity(identity.IdentityHash); exists {
		return sentinel.ErrConflict
	}
	r.dirty.identities[identity.IdentityHash] = *identity
	return nil
}

func (r *repo) ReassignIdentities(_ context.Context, from, into id.AccountID) (int, error) {
	n := 0
	for k, v := range r.base.identities {
		if _, shadowed := r.dirty.identities[k]; shadowed || v.AccountID != from {
			continue
		}
		v.AccountID = into
		r.dirty.identities[k] = v
		n++
	}
	for k, v := range r.dirty.identities {
		if v.AccountID == from {
			v.AccountID = into
			r.dirty.identities[k] = v
			n++
		}
	}
	return n, nil
}

func (r *repo) ClaimBinding(_ context.Context, commitment string, accountID id.AccountID, now time.Time) (*models.CommitmentBinding, error) {
	if b, ok := r.binding(commitment); ok {
		return &b, nil
	}
	b := models.CommitmentBinding{IdentityCommitment: commitment, AccountID: accountID, CreatedAt: now}
	r.dirty.bindings[commitment] = b
	return &b, nil
}

func (r *repo) LockProfile(_ context.Context, accountID id.AccountID, now time.Time) (*models.TrustProfile, error) {
	p, ok := r.profile(accountID)
	if !ok {
		p = *models.NewTrustProfile(accountID, now)
		r.dirty.profiles[accountID] = p
	}
	out := copyProfile(p)
	return &out, nil
}

func (r *repo) SaveProfile(_ context.Context, profile *models.TrustProfile) error {
	stored, ok := r.profile(profile.AccountID)
	if !ok {
		return sentinel.ErrNotFound
	}
	next := copyProfile(*profile)
	next.TrustTier = stored.TrustTier
	r.dirty.profiles[profile.AccountID] = next
	return nil
}

func (r *repo) RaiseTier(_ context.Context, accountID id.AccountID, tier trust.Tier, now time.Time) (bool, error) {
	p, ok := r.profile(accountID)
	if !ok {
		return false, sentinel.ErrNotFound
	}
	if p.TrustTier >= tier {
		return false, nil
	}
	p.TrustTier = tier
	p.UpdatedAt = now
	r.dirty.profiles[accountID] = copyProfile(p)
	return true, nil
}

func copyProfile(p models.TrustProfile) models.TrustProfile {
	if p.VerifiedAt != nil {
		t := *p.VerifiedAt
		p.VerifiedAt = &t
	}
	if p.AddressVerifiedAt != nil {
		t := *p.AddressVerifiedAt
		p.AddressVerifiedAt = &t
	}
	if p.MergedInto != nil {
		m := *p.MergedInto
		p.MergedInto = &m
	}
	return p
}
