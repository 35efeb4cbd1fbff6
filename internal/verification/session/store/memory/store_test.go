package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"civitas/internal/verification/session"
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
	s.store = New(WithGrace(time.Minute))
	s.now = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
}

func (s *StoreSuite) newRecord() session.Record {
	return session.Record{
		ID:               id.NewSessionID(),
		PublicKey:        []byte("pub"),
		SealedPrivateKey: []byte("sealed"),
		CreatedAt:        s.now,
		ExpiresAt:        s.now.Add(5 * time.Minute),
	}
}

func (s *StoreSuite) TestGetAndInvalidate() {
	ctx := context.Background()

	s.Run("unknown id", func() {
		_, err := s.store.GetAndInvalidate(ctx, id.NewSessionID(), s.now)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("consume once then already used", func() {
		rec := s.newRecord()
		s.Require().NoError(s.store.Set(ctx, rec))

		got, err := s.store.GetAndInvalidate(ctx, rec.ID, s.now.Add(time.Minute))
		s.Require().NoError(err)
		s.Equal([]byte("sealed"), got.SealedPrivateKey)

		_, err = s.store.GetAndInvalidate(ctx, rec.ID, s.now.Add(time.Minute))
		s.ErrorIs(err, sentinel.ErrAlreadyUsed)
	})

	s.Run("expired at exactly expiresAt", func() {
		rec := s.newRecord()
		s.Require().NoError(s.store.Set(ctx, rec))
		_, err := s.store.GetAndInvalidate(ctx, rec.ID, rec.ExpiresAt)
		s.ErrorIs(err, sentinel.ErrExpired)

		// Expired stays expired, even if the clock were to move backwards.
		_, err = s.store.GetAndInvalidate(ctx, rec.ID, s.now)
		s.ErrorIs(err, sentinel.ErrExpired)
	})

	s.Run("caller mutation does not affect stored record", func() {
		rec := s.newRecord()
		s.Require().NoError(s.store.Set(ctx, rec))
		rec.SealedPrivateKey[0] = 'X'
		got, err := s.store.GetAndInvalidate(ctx, rec.ID, s.now)
		s.Require().NoError(err)
		s.Equal(byte('s'), got.SealedPrivateKey[0])
	})

	s.Run("duplicate id is a conflict", func() {
		rec := s.newRecord()
		s.Require().NoError(s.store.Set(ctx, rec))
		s.ErrorIs(s.store.Set(ctx, rec), sentinel.ErrConflict)
	})
}

func (s *StoreSuite) TestConcurrentConsumeHasSingleWinner() {
	ctx := context.Background()
	rec := s.newRecord()
	s.Require().NoError(s.store.Set(ctx, rec))

	var wins, used atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.GetAndInvalidate(ctx, rec.ID, s.now)
			if err == nil {
				wins.Add(1)
			} else if err == sentinel.ErrAlreadyUsed {
				used.Add(1)
			}
		}()
	}
	wg.Wait()
	s.Equal(int32(1), wins.Load())
	s.Equal(int32(63), used.Load())
}

func (s *StoreSuite) TestSweep() {
	ctx := context.Background()
	rec := s.newRecord()
	s.Require().NoError(s.store.Set(ctx, rec))

	s.Equal(0, s.store.Sweep(rec.ExpiresAt))
	s.Equal(1, s.store.Len())
	s.Equal(1, s.store.Sweep(rec.ExpiresAt.Add(2*time.Minute)))
	s.Equal(0, s.store.Len())

	_, err := s.store.GetAndInvalidate(ctx, rec.ID, rec.ExpiresAt.Add(2*time.Minute))
	s.ErrorIs(err, sentinel.ErrNotFound)
}
