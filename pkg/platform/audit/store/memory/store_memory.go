package memory

import (
	"context"
	"maps"
	"sync"

	id "civitas/pkg/domain"
	audit "civitas/pkg/platform/audit"
)

// InMemoryStore keeps audit records per account in append order.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[id.AccountID][]audit.Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[id.AccountID][]audit.Record)}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[id.AccountID][]audit.Record)
}

func (s *InMemoryStore) Append(_ context.Context, rec audit.Record) error {
	if rec.ID.IsNil() {
		rec.ID = id.NewAuditRecordID()
	}
	rec.Metadata = maps.Clone(rec.Metadata)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.AccountID] = append(s.records[rec.AccountID], rec)
	return nil
}

func (s *InMemoryStore) ListByAccount(_ context.Context, accountID id.AccountID) ([]audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Record{}, s.records[accountID]...), nil
}

// ListAll returns every record across accounts.
func (s *InMemoryStore) ListAll(_ context.Context) ([]audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var all []audit.Record
	for _, recs := range s.records {
		all = append(all, recs...)
	}
	return all, nil
}
