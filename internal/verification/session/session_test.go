package session_test

import (
	"context"
	"crypto/ecdh"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"civitas/internal/verification/session"
	"civitas/internal/verification/session/store/memory"
	id "civitas/pkg/domain"
	dErrors "civitas/pkg/domain-errors"
)

var secret = []byte("session-secret-0123456789abcdef")

type ManagerSuite struct {
	suite.Suite
	store    *memory.Store
	now      time.Time
	manager  *session.Manager
	observed *recordingObserver
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (o *recordingObserver) ObserveSessionOp(op, outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, op+":"+outcome)
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}

func (s *ManagerSuite) SetupTest() {
	s.store = memory.New()
	s.now = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	s.observed = &recordingObserver{}
	m, err := session.NewManager(s.store, secret,
		session.WithTTL(2*time.Minute),
		session.WithClock(func() time.Time { return s.now }),
		session.WithObserver(s.observed),
	)
	s.Require().NoError(err)
	s.manager = m
}

func (s *ManagerSuite) TestNewManagerValidation() {
	_, err := session.NewManager(nil, secret)
	s.Error(err)

	_, err = session.NewManager(s.store, []byte("short"))
	s.Error(err)
}

func (s *ManagerSuite) TestTTLIsClamped() {
	m, err := session.NewManager(s.store, secret,
		session.WithTTL(time.Hour),
		session.WithClock(func() time.Time { return s.now }),
	)
	s.Require().NoError(err)

	sess, err := m.Begin(context.Background())
	s.Require().NoError(err)
	s.Equal(session.MaxTTL, sess.ExpiresAt.Sub(sess.CreatedAt))
}

func (s *ManagerSuite) TestBeginComplete() {
	ctx := context.Background()

	s.Run("round trip returns the matching private key", func() {
		sess, err := s.manager.Begin(ctx)
		s.Require().NoError(err)
		s.Equal(s.now.Add(2*time.Minute), sess.ExpiresAt)

		pub, err := ecdh.P256().NewPublicKey(sess.PublicKey)
		s.Require().NoError(err)

		priv, err := s.manager.Complete(ctx, sess.ID)
		s.Require().NoError(err)
		s.True(priv.PublicKey().Equal(pub))
	})

	s.Run("second completion is rejected", func() {
		sess, err := s.manager.Begin(ctx)
		s.Require().NoError(err)

		_, err = s.manager.Complete(ctx, sess.ID)
		s.Require().NoError(err)

		_, err = s.manager.Complete(ctx, sess.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeSessionAlreadyConsumed))
	})

	s.Run("unknown session", func() {
		_, err := s.manager.Complete(ctx, id.NewSessionID())
		s.True(dErrors.HasCode(err, dErrors.CodeSessionNotFound))
	})

	s.Run("each session gets a distinct key", func() {
		a, err := s.manager.Begin(ctx)
		s.Require().NoError(err)
		b, err := s.manager.Begin(ctx)
		s.Require().NoError(err)
		s.NotEqual(a.ID, b.ID)
		s.NotEqual(a.PublicKey, b.PublicKey)
	})
}

func (s *ManagerSuite) TestExpiry() {
	ctx := context.Background()
	start := s.now

	s.Run("usable just before expiry", func() {
		s.now = start
		sess, err := s.manager.Begin(ctx)
		s.Require().NoError(err)

		s.now = sess.ExpiresAt.Add(-time.Millisecond)
		_, err = s.manager.Complete(ctx, sess.ID)
		s.NoError(err)
	})

	s.Run("expired exactly at expiry and stays expired", func() {
		s.now = start
		sess, err := s.manager.Begin(ctx)
		s.Require().NoError(err)

		s.now = sess.ExpiresAt
		_, err = s.manager.Complete(ctx, sess.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeSessionExpired))

		_, err = s.manager.Complete(ctx, sess.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeSessionExpired))
	})
}

func (s *ManagerSuite) TestConcurrentCompletionHasOneWinner() {
	ctx := context.Background()
	sess, err := s.manager.Begin(ctx)
	s.Require().NoError(err)

	var wins, consumed atomic.Int32
	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.manager.Complete(ctx, sess.ID)
			switch {
			case err == nil:
				wins.Add(1)
			case dErrors.HasCode(err, dErrors.CodeSessionAlreadyConsumed):
				consumed.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), wins.Load())
	s.Equal(int32(31), consumed.Load())
}

func (s *ManagerSuite) TestObserverSeesOutcomes() {
	ctx := context.Background()
	sess, err := s.manager.Begin(ctx)
	s.Require().NoError(err)
	_, _ = s.manager.Complete(ctx, sess.ID)
	_, _ = s.manager.Complete(ctx, sess.ID)

	s.Equal([]string{"begin:ok", "complete:ok", "complete:consumed"}, s.observed.outcomes)
}

// swappingStore returns the sealed key of one session for another.
type swappingStore struct {
	*memory.Store
	donor session.Record
}

func (w *swappingStore) GetAndInvalidate(ctx context.Context, sessionID id.SessionID, now time.Time) (session.Record, error) {
	rec, err := w.Store.GetAndInvalidate(ctx, sessionID, now)
	if err != nil {
		return rec, err
	}
	rec.SealedPrivateKey = w.donor.SealedPrivateKey
	return rec, nil
}

type capturingStore struct {
	*memory.Store
	last session.Record
}

func (c *capturingStore) Set(ctx context.Context, rec session.Record) error {
	c.last = rec
	return c.Store.Set(ctx, rec)
}

func (s *ManagerSuite) TestSealedKeyIsBoundToSession() {
	ctx := context.Background()
	capture := &capturingStore{Store: memory.New()}
	m, err := session.NewManager(capture, secret, session.WithClock(func() time.Time { return s.now }))
	s.Require().NoError(err)

	donor, err := m.Begin(ctx)
	s.Require().NoError(err)
	donorRec := capture.last
	s.Equal(donor.ID, donorRec.ID)

	swap := &swappingStore{Store: capture.Store, donor: donorRec}
	m2, err := session.NewManager(swap, secret, session.WithClock(func() time.Time { return s.now }))
	s.Require().NoError(err)

	victim, err := m.Begin(ctx)
	s.Require().NoError(err)

	_, err = m2.Complete(ctx, victim.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *ManagerSuite) TestDifferentSecretCannotOpen() {
	ctx := context.Background()
	store := memory.New()
	m1, err := session.NewManager(store, secret, session.WithClock(func() time.Time { return s.now }))
	s.Require().NoError(err)
	m2, err := session.NewManager(store, []byte("another-secret-0123456789abcdef"), session.WithClock(func() time.Time { return s.now }))
	s.Require().NoError(err)

	sess, err := m1.Begin(ctx)
	s.Require().NoError(err)

	_, err = m2.Complete(ctx, sess.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

type failingStore struct{}

func (failingStore) Set(context.Context, session.Record) error { return errors.New("down") }
func (failingStore) GetAndInvalidate(context.Context, id.SessionID, time.Time) (session.Record, error) {
	return session.Record{}, errors.New("down")
}

func (s *ManagerSuite) TestStoreFailureIsInternal() {
	m, err := session.NewManager(failingStore{}, secret)
	s.Require().NoError(err)

	_, err = m.Begin(context.Background())
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	_, err = m.Complete(context.Background(), id.NewSessionID())
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}
