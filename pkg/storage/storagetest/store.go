// Package storagetest provides an in-memory Store for tests.
package storagetest

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/vicc-go/disease-normalizer/pkg/models"
	"github.com/vicc-go/disease-normalizer/pkg/storage"
)

// Store is a thread-safe in-memory implementation of storage.Store.
type Store struct {
	mu      sync.RWMutex
	source  map[string]models.SourceRecord
	merged  map[string]models.MergedRecord
	refs    map[string]string
	meta    map[models.SourceName]models.SourceMeta
	healthy bool

	// FailReplace makes ReplaceMergedRecords return the given error,
	// simulating a storage outage mid-rebuild.
	FailReplace error

	// FailAdd makes AddSourceRecord return the given error, simulating
	// a write failure mid-load.
	FailAdd error
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		source:  make(map[string]models.SourceRecord),
		merged:  make(map[string]models.MergedRecord),
		refs:    make(map[string]string),
		meta:    make(map[models.SourceName]models.SourceMeta),
		healthy: true,
	}
}

// Seed loads records without going through AddSourceRecord validation.
func (s *Store) Seed(records ...models.SourceRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		s.source[strings.ToLower(rec.ConceptID)] = rec
	}
}

func (s *Store) GetSourceRecord(ctx context.Context, conceptID string) (*models.SourceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.source[strings.ToLower(conceptID)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if ref, ok := s.refs[strings.ToLower(rec.ConceptID)]; ok {
		rec.MergeRef = ref
	}
	return &rec, nil
}

func (s *Store) GetMergedRecord(ctx context.Context, conceptID string) (*models.MergedRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.merged[strings.ToLower(conceptID)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &rec, nil
}

func (s *Store) GetRefsByType(ctx context.Context, value string, refType models.RefType) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lowered := strings.ToLower(value)
	var ids []string
	for _, rec := range s.source {
		if rec.HasRefValue(refType, lowered) {
			ids = append(ids, rec.ConceptID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) AllSourceRecords(ctx context.Context) ([]models.SourceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.SourceRecord, 0, len(s.source))
	for _, rec := range s.source {
		if ref, ok := s.refs[strings.ToLower(rec.ConceptID)]; ok {
			rec.MergeRef = ref
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].ConceptID) < strings.ToLower(out[j].ConceptID)
	})
	return out, nil
}

func (s *Store) ListConceptIDs(ctx context.Context, source models.SourceName) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for _, rec := range s.source {
		if rec.SourceName == source {
			ids = append(ids, rec.ConceptID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) AddSourceRecord(ctx context.Context, record models.SourceRecord) error {
	if s.FailAdd != nil {
		return s.FailAdd
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source[strings.ToLower(record.ConceptID)] = record
	return nil
}

func (s *Store) DeleteSource(ctx context.Context, source models.SourceName) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, rec := range s.source {
		if rec.SourceName == source {
			delete(s.source, key)
			delete(s.refs, key)
		}
	}
	delete(s.meta, source)
	return nil
}

func (s *Store) ReplaceMergedRecords(ctx context.Context, records []models.MergedRecord, mergeRefs map[string]string) error {
	if s.FailReplace != nil {
		return s.FailReplace
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	merged := make(map[string]models.MergedRecord, len(records))
	for _, rec := range records {
		merged[strings.ToLower(rec.ConceptID)] = rec
	}
	refs := make(map[string]string, len(mergeRefs))
	for id, ref := range mergeRefs {
		refs[strings.ToLower(id)] = ref
	}
	s.merged = merged
	s.refs = refs
	return nil
}

func (s *Store) GetSourceMeta(ctx context.Context, source models.SourceName) (*models.SourceMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	meta, ok := s.meta[source]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &meta, nil
}

func (s *Store) PutSourceMeta(ctx context.Context, meta models.SourceMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta[meta.SourceName] = meta
	return nil
}

func (s *Store) Health(ctx context.Context) error {
	return nil
}
