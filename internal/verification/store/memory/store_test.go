package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"civitas/internal/verification/models"
	"civitas/internal/verification/store"
	"civitas/internal/verification/trust"
	id "civitas/pkg/domain"
	"civitas/pkg/platform/sentinel"
)

type StoreSuite struct {
	suite.Suite
	store *Store
	now   time.Time
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupTest() {
	s.store = New()
	s.now = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
}

func (s *StoreSuite) TestIdentities() {
	ctx := context.Background()
	a, b := id.NewAccountID(), id.NewAccountID()

	err := s.store.RunInTx(ctx, func(ctx context.Context, repo store.Repository) error {
		_, err := repo.FindIdentity(ctx, "h1")
		s.ErrorIs(err, sentinel.ErrNotFound)

		s.Require().NoError(repo.CreateIdentity(ctx, &models.VerifiedIdentity{IdentityHash: "h1", AccountID: a}))
		s.ErrorIs(repo.CreateIdentity(ctx, &models.VerifiedIdentity{IdentityHash: "h1", AccountID: b}), sentinel.ErrConflict)

		got, err := repo.FindIdentity(ctx, "h1")
		s.Require().NoError(err)
		s.Equal(a, got.AccountID)

		n, err := repo.ReassignIdentities(ctx, a, b)
		s.Require().NoError(err)
		s.Equal(1, n)
		got, err = repo.FindIdentity(ctx, "h1")
		s.Require().NoError(err)
		s.Equal(b, got.AccountID)
		return nil
	})
	s.Require().NoError(err)
	s.Equal(1, s.store.IdentityCount())
}

func (s *StoreSuite) TestClaimBindingKeepsFirstOwner() {
	ctx := context.Background()
	a, b := id.NewAccountID(), id.NewAccountID()

	s.Require().NoError(s.store.RunInTx(ctx, func(ctx context.Context, repo store.Repository) error {
		first, err := repo.ClaimBinding(ctx, "c1", a, s.now)
		s.Require().NoError(err)
		s.Equal(a, first.AccountID)

		second, err := repo.ClaimBinding(ctx, "c1", b, s.now.Add(time.Minute))
		s.Require().NoError(err)
		s.Equal(a, second.AccountID)
		s.True(second.CreatedAt.Equal(s.now))
		return nil
	}))
}

func (s *StoreSuite) TestTierOnlyRises() {
	ctx := context.Background()
	a := id.NewAccountID()

	s.Require().NoError(s.store.RunInTx(ctx, func(ctx context.Context, repo store.Repository) error {
		p, err := repo.LockProfile(ctx, a, s.now)
		s.Require().NoError(err)
		s.Equal(trust.TierUnverified, p.TrustTier)

		raised, err := repo.RaiseTier(ctx, a, trust.TierFineLocality, s.now)
		s.Require().NoError(err)
		s.True(raised)

		raised, err = repo.RaiseTier(ctx, a, trust.TierPersonhood, s.now)
		s.Require().NoError(err)
		s.False(raised)

		p.TrustTier = trust.TierUnverified
		p.DocumentType = "passport"
		s.Require().NoError(repo.SaveProfile(ctx, p))
		return nil
	}))

	p, err := s.store.FindProfile(ctx, a)
	s.Require().NoError(err)
	s.Equal(trust.TierFineLocality, p.TrustTier, "SaveProfile never writes the tier")
	s.Equal("passport", p.DocumentType)
}

func (s *StoreSuite) TestFailedTransactionRollsBack() {
	ctx := context.Background()
	a := id.NewAccountID()
	boom := errors.New("boom")

	err := s.store.RunInTx(ctx, func(ctx context.Context, repo store.Repository) error {
		s.Require().NoError(repo.CreateIdentity(ctx, &models.VerifiedIdentity{IdentityHash: "h", AccountID: a}))
		_, err := repo.LockProfile(ctx, a, s.now)
		s.Require().NoError(err)
		return boom
	})
	s.ErrorIs(err, boom)
	s.Equal(0, s.store.IdentityCount())

	_, err = s.store.FindProfile(ctx, a)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *StoreSuite) TestFailedTransactionLeavesCommittedRowsUntouched() {
	ctx := context.Background()
	a, b := id.NewAccountID(), id.NewAccountID()
	s.Require().NoError(s.store.RunInTx(ctx, func(ctx context.Context, repo store.Repository) error {
		s.Require().NoError(repo.CreateIdentity(ctx, &models.VerifiedIdentity{IdentityHash: "h", AccountID: a}))
		_, err := repo.LockProfile(ctx, a, s.now)
		s.Require().NoError(err)
		_, err = repo.RaiseTier(ctx, a, trust.TierPersonhood, s.now)
		return err
	}))

	err := s.store.RunInTx(ctx, func(ctx context.Context, repo store.Repository) error {
		n, err := repo.ReassignIdentities(ctx, a, b)
		s.Require().NoError(err)
		s.Equal(1, n)
		moved, err := repo.FindIdentity(ctx, "h")
		s.Require().NoError(err)
		s.Equal(b, moved.AccountID)

		raised, err := repo.RaiseTier(ctx, a, trust.TierGovernmentCredential, s.now)
		s.Require().NoError(err)
		s.True(raised)
		p, err := repo.LockProfile(ctx, a, s.now)
		s.Require().NoError(err)
		s.Equal(trust.TierGovernmentCredential, p.TrustTier)
		return errors.New("abort")
	})
	s.Require().Error(err)

	s.Require().NoError(s.store.RunInTx(ctx, func(ctx context.Context, repo store.Repository) error {
		v, err := repo.FindIdentity(ctx, "h")
		s.Require().NoError(err)
		s.Equal(a, v.AccountID)
		return nil
	}))
	p, err := s.store.FindProfile(ctx, a)
	s.Require().NoError(err)
	s.Equal(trust.TierPersonhood, p.TrustTier)
}

func (s *StoreSuite) TestReturnedProfilesAreCopies() {
	ctx := context.Background()
	a := id.NewAccountID()
	s.Require().NoError(s.store.RunInTx(ctx, func(ctx context.Context, repo store.Repository) error {
		p, err := repo.LockProfile(ctx, a, s.now)
		s.Require().NoError(err)
		p.TouchVerified(s.now)
		return repo.SaveProfile(ctx, p)
	}))

	p, err := s.store.FindProfile(ctx, a)
	s.Require().NoError(err)
	*p.VerifiedAt = s.now.Add(time.Hour)

	again, err := s.store.FindProfile(ctx, a)
	s.Require().NoError(err)
	s.True(again.VerifiedAt.Equal(s.now))
}

func (s *StoreSuite) TestCancelledContext() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := s.store.RunInTx(ctx, func(context.Context, store.Repository) error {
		called = true
		return nil
	})
	s.Error(err)
	s.False(called)
}

func (s *StoreSuite) TestConcurrentClaimsSingleOwner() {
	ctx := context.Background()
	owners := make(chan id.AccountID, 20)
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			acct := id.NewAccountID()
			_ = s.store.RunInTx(ctx, func(ctx context.Context, repo store.Repository) error {
				b, err := repo.ClaimBinding(ctx, "shared", acct, s.now)
				if err != nil {
					return err
				}
				owners <- b.AccountID
				return nil
			})
		}()
	}
	wg.Wait()
	close(owners)

	seen := map[id.AccountID]bool{}
	for o := range owners {
		seen[o] = true
	}
	s.Len(seen, 1)
}
