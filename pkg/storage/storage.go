package storage

import (
	"context"
	"errors"

	"github.com/vicc-go/disease-normalizer/pkg/models"
)

// ErrNotFound is returned by lookups that match no record.
var ErrNotFound = errors.New("record not found")

// Store is the persistence boundary for source records, merged records,
// and the secondary ref index the match engine queries. Concept ID and
// ref-value lookups are case-insensitive.
type Store interface {
	// GetSourceRecord returns one source record by concept ID.
	GetSourceRecord(ctx context.Context, conceptID string) (*models.SourceRecord, error)

	// GetMergedRecord returns one merged record by its merge ref.
	GetMergedRecord(ctx context.Context, conceptID string) (*models.MergedRecord, error)

	// GetRefsByType returns the concept IDs of source records whose
	// refType field contains the value.
	GetRefsByType(ctx context.Context, value string, refType models.RefType) ([]string, error)

	// AllSourceRecords returns the full snapshot a rebuild runs over.
	AllSourceRecords(ctx context.Context) ([]models.SourceRecord, error)

	// ListConceptIDs enumerates the concept IDs of one source.
	ListConceptIDs(ctx context.Context, source models.SourceName) ([]string, error)

	// AddSourceRecord inserts or replaces a source record and its ref
	// index entries.
	AddSourceRecord(ctx context.Context, record models.SourceRecord) error

	// DeleteSource removes every record and ref entry of one source.
	DeleteSource(ctx context.Context, source models.SourceName) error

	// ReplaceMergedRecords atomically swaps the merged record set and
	// the per-record merge ref pointers. Readers see either the old
	// set or the new set, never a mix.
	ReplaceMergedRecords(ctx context.Context, records []models.MergedRecord, mergeRefs map[string]string) error

	// GetSourceMeta returns provenance for one loaded source.
	GetSourceMeta(ctx context.Context, source models.SourceName) (*models.SourceMeta, error)

	// PutSourceMeta records provenance for one loaded source.
	PutSourceMeta(ctx context.Context, meta models.SourceMeta) error

	// Health reports whether the backend is reachable.
	Health(ctx context.Context) error
}
