// Package outbox relays committed audit outbox rows to Kafka.
package outbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Producer is the subset of *kgo.Client the relay needs.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Relay polls unpublished outbox rows and produces them to a topic. Rows are
// locked with SKIP LOCKED so several relays can run side by side.
type Relay struct {
	db        *sql.DB
	producer  Producer
	topic     string
	batchSize int
	interval  time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures a Relay.
type Option func(*Relay)

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) { r.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(r *Relay) { r.now = now }
}

// NewRelay creates a relay publishing to topic.
func NewRelay(db *sql.DB, producer Producer, topic string, opts ...Option) *Relay {
	r := &Relay{
		db:        db,
		producer:  producer,
		topic:     topic,
		batchSize: 100,
		interval:  2 * time.Second,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewKafkaClient builds a franz-go client for the audit topic.
func NewKafkaClient(brokers []string, topic string) (*kgo.Client, error) {
	if len(brokers) == 0 {
		return nil, errors.New("no kafka brokers configured")
	}
	return kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerLinger(10*time.Millisecond),
	)
}

// EnsureTopic creates topic if it does not already exist.
func EnsureTopic(ctx context.Context, client *kgo.Client, topic string, partitions int32, replication int16) error {
	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopics(ctx, partitions, replication, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	if r, ok := resp[topic]; ok && r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", topic, r.Err)
	}
	return nil
}

// Run publishes batches every interval until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		for {
			n, err := r.RunOnce(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				r.logger.ErrorContext(ctx, "outbox relay batch failed", "error", err)
				break
			}
			if n < r.batchSize {
				break
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce publishes one batch and returns how many rows were marked
// published. Rows stay unpublished if any produce in the batch fails.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin outbox tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, aggregate_id, event_type, payload
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("select outbox: %w", err)
	}

	var (
		ids     []string
		records []*kgo.Record
	)
	for rows.Next() {
		var (
			rowID, key, eventType string
			payload               []byte
		)
		if err := rows.Scan(&rowID, &key, &eventType, &payload); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan outbox: %w", err)
		}
		ids = append(ids, rowID)
		records = append(records, &kgo.Record{
			Topic:   r.topic,
			Key:     []byte(key),
			Value:   payload,
			Headers: []kgo.RecordHeader{{Key: "event_type", Value: []byte(eventType)}},
		})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate outbox: %w", err)
	}
	if len(records) == 0 {
		return 0, nil
	}

	if err := r.producer.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return 0, fmt.Errorf("produce audit batch: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE outbox SET published_at = $1 WHERE id = ANY($2::uuid[])`,
		r.now(), pq.Array(ids),
	); err != nil {
		return 0, fmt.Errorf("mark outbox published: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit outbox tx: %w", err)
	}
	return len(records), nil
}
