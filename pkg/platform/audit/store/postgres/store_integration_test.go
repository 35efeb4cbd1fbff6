//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "civitas/pkg/domain"
	audit "civitas/pkg/platform/audit"
	"civitas/pkg/platform/audit/store/postgres"
	txcontext "civitas/pkg/platform/tx"
	"civitas/pkg/testutil/containers"
)

type PostgresAuditSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.Store
}

func TestPostgresAuditSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresAuditSuite))
}

func (s *PostgresAuditSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.Require().NoError(postgres.ApplySchema(context.Background(), s.postgres.DB))
	s.store = postgres.New(s.postgres.DB)
}

func (s *PostgresAuditSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "verification_audit", "outbox"))
}

func (s *PostgresAuditSuite) countOutbox() int {
	var n int
	s.Require().NoError(s.postgres.DB.QueryRow(`SELECT COUNT(*) FROM outbox`).Scan(&n))
	return n
}

func (s *PostgresAuditSuite) TestAppendWritesRecordAndOutbox() {
	ctx := context.Background()
	accountID := id.NewAccountID()
	now := time.Now().UTC().Truncate(time.Microsecond)

	err := s.store.Append(ctx, audit.Record{
		AccountID:      accountID,
		Action:         audit.EventIdentityVerified,
		Method:         "passport",
		Status:         audit.StatusSuccess,
		HashedClientIP: "abc",
		Metadata:       map[string]string{"browser_family": "Firefox"},
		RequestID:      "req-1",
		Timestamp:      now,
	})
	s.Require().NoError(err)

	recs, err := s.store.ListByAccount(ctx, accountID)
	s.Require().NoError(err)
	s.Require().Len(recs, 1)
	s.Equal(audit.EventIdentityVerified, recs[0].Action)
	s.Equal("Firefox", recs[0].Metadata["browser_family"])
	s.True(recs[0].Timestamp.Equal(now))
	s.Equal(1, s.countOutbox())
}

func (s *PostgresAuditSuite) TestAppendJoinsCallerTransaction() {
	ctx := context.Background()
	accountID := id.NewAccountID()

	tx, err := s.postgres.DB.BeginTx(ctx, nil)
	s.Require().NoError(err)
	err = s.store.Append(txcontext.WithTx(ctx, tx), audit.Record{
		AccountID: accountID,
		Action:    audit.EventAccountMerged,
		Status:    audit.StatusMerged,
		Timestamp: time.Now(),
	})
	s.Require().NoError(err)
	s.Require().NoError(tx.Rollback())

	recs, err := s.store.ListByAccount(ctx, accountID)
	s.Require().NoError(err)
	s.Empty(recs)
	s.Equal(0, s.countOutbox())
}
