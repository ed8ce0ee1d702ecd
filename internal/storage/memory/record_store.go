// Package memory provides in-memory persistence for development and tests.
package memory

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/JakeFAU/realtime-proxy-crawler/internal/crawler"
)

// RecordStore keeps crawled records keyed by case-folded title.
type RecordStore struct {
	mu      sync.RWMutex
	records map[string]crawler.Record
	order   []string
}

// NewRecordStore constructs a RecordStore.
func NewRecordStore() *RecordStore {
	return &RecordStore{records: make(map[string]crawler.Record)}
}

// FindByTitle returns the record with title, or nil when none is stored.
func (s *RecordStore) FindByTitle(_ context.Context, title string) (*crawler.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[titleKey(title)]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// Save stores rec, replacing any record with the same title.
func (s *RecordStore) Save(_ context.Context, rec crawler.Record) (crawler.Record, error) {
	key := titleKey(rec.Title)
	if key == "" {
		return crawler.Record{}, errors.New("record title is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[key]; !exists {
		s.order = append(s.order, key)
	}
	s.records[key] = rec
	return rec, nil
}

// Records returns all stored records in insertion order.
func (s *RecordStore) Records() []crawler.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]crawler.Record, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.records[key])
	}
	return out
}

func titleKey(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}
