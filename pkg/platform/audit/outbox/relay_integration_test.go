//go:build integration

package outbox_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	id "civitas/pkg/domain"
	audit "civitas/pkg/platform/audit"
	"civitas/pkg/platform/audit/outbox"
	"civitas/pkg/platform/audit/store/postgres"
	"civitas/pkg/testutil/containers"
)

type RelaySuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	redpanda *containers.RedpandaContainer
	store    *postgres.Store
	client   *kgo.Client
	topic    string
}

func TestRelaySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RelaySuite))
}

func (s *RelaySuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.redpanda = mgr.GetRedpanda(s.T())
	s.Require().NoError(postgres.ApplySchema(context.Background(), s.postgres.DB))
	s.store = postgres.New(s.postgres.DB)
	s.topic = "verification.audit.test"

	client, err := outbox.NewKafkaClient(s.redpanda.Brokers, s.topic)
	s.Require().NoError(err)
	s.client = client
	s.Require().NoError(outbox.EnsureTopic(context.Background(), client, s.topic, 1, 1))
	// Creating twice is not an error.
	s.Require().NoError(outbox.EnsureTopic(context.Background(), client, s.topic, 1, 1))
}

func (s *RelaySuite) TearDownSuite() {
	if s.client != nil {
		s.client.Close()
	}
}

func (s *RelaySuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "verification_audit", "outbox"))
}

func (s *RelaySuite) TestRelayPublishesAndMarksRows() {
	ctx := context.Background()
	accountID := id.NewAccountID()
	for i := 0; i < 3; i++ {
		s.Require().NoError(s.store.Append(ctx, audit.Record{
			AccountID: accountID,
			Action:    audit.EventIdentityVerified,
			Status:    audit.StatusSuccess,
			Timestamp: time.Now(),
		}))
	}

	relay := outbox.NewRelay(s.postgres.DB, s.client, s.topic, outbox.WithBatchSize(2))
	n, err := relay.RunOnce(ctx)
	s.Require().NoError(err)
	s.Equal(2, n)
	n, err = relay.RunOnce(ctx)
	s.Require().NoError(err)
	s.Equal(1, n)
	n, err = relay.RunOnce(ctx)
	s.Require().NoError(err)
	s.Equal(0, n)

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.redpanda.Brokers...),
		kgo.ConsumeTopics(s.topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	pollCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()
	var got []postgres.Payload
	for len(got) < 3 && pollCtx.Err() == nil {
		fetches := consumer.PollFetches(pollCtx)
		fetches.EachRecord(func(r *kgo.Record) {
			var p postgres.Payload
			s.Require().NoError(json.Unmarshal(r.Value, &p))
			s.Equal(accountID.String(), string(r.Key))
			got = append(got, p)
		})
	}
	s.Require().Len(got, 3)
	s.Equal(string(audit.CategoryCompliance), got[0].Category)
}
