// Package etl ingests ontology exports into the store, one strategy per
// source.
package etl

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Gobusters/ectologger"

	"github.com/vicc-go/disease-normalizer/pkg/models"
	"github.com/vicc-go/disease-normalizer/pkg/storage"
	"github.com/vicc-go/disease-normalizer/pkg/tracing"
)

// maxAliases caps the alias list per record. Terms with more aliases
// than this are so generic that their aliases cause spurious matches,
// so the whole list is dropped.
const maxAliases = 20

// Source transforms one ontology's export format into source records.
type Source interface {
	Name() models.SourceName
	Meta() models.SourceMeta
	Transform(ctx context.Context, r io.Reader) ([]models.SourceRecord, error)
}

// SourceFor returns the transform strategy for a source name.
func SourceFor(name models.SourceName) (Source, error) {
	switch name {
	case models.SourceNCIt:
		return NewNCIt(), nil
	case models.SourceMondo:
		return NewMondo(), nil
	case models.SourceDO:
		return NewDO(), nil
	case models.SourceOMIM:
		return NewOMIM(), nil
	case models.SourceOncoTree:
		return NewOncoTree(), nil
	default:
		return nil, fmt.Errorf("no loader for source %q", name)
	}
}

// LoadResult summarizes one source load.
type LoadResult struct {
	Source  models.SourceName `json:"source"`
	Loaded  int               `json:"loaded"`
	Skipped int               `json:"skipped"`
}

// Loader runs a Source transform and writes the cleaned records through
// the store.
type Loader struct {
	store  storage.Store
	logger ectologger.Logger
}

func NewLoader(store storage.Store, logger ectologger.Logger) *Loader {
	return &Loader{
		store:  store,
		logger: logger,
	}
}

// Load replaces the source's stored records with the transformed export.
func (l *Loader) Load(ctx context.Context, src Source, r io.Reader) (*LoadResult, error) {
	ctx, span := tracing.StartSpan(ctx, "etl.Loader.Load")
	defer span.End()

	log := l.logger.WithContext(ctx).WithField("source", src.Name())

	records, err := src.Transform(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("failed to transform %s export: %w", src.Name(), err)
	}

	if err := l.store.DeleteSource(ctx, src.Name()); err != nil {
		return nil, fmt.Errorf("failed to clear prior %s records: %w", src.Name(), err)
	}

	result := &LoadResult{Source: src.Name()}
	for _, rec := range records {
		if err := models.ValidateConceptID(rec.ConceptID, src.Name()); err != nil {
			log.WithError(err).Warn("Skipping record with foreign concept ID")
			result.Skipped++
			continue
		}
		rec.SourceName = src.Name()
		rec.Aliases = cleanAliases(rec.Aliases, rec.Label)

		if err := l.store.AddSourceRecord(ctx, rec); err != nil {
			// The prior records are already cleared, so the source stays
			// partial until the next successful load.
			return nil, fmt.Errorf("failed to store %s, source %s left partially loaded: %w", rec.ConceptID, src.Name(), err)
		}
		result.Loaded++
	}

	meta := src.Meta()
	meta.SourceName = src.Name()
	meta.RecordCount = result.Loaded
	if err := l.store.PutSourceMeta(ctx, meta); err != nil {
		return nil, fmt.Errorf("failed to store %s meta: %w", src.Name(), err)
	}

	log.WithFields(map[string]any{
		"loaded":  result.Loaded,
		"skipped": result.Skipped,
	}).Info("Loaded source")
	return result, nil
}

// cleanAliases dedupes aliases case-insensitively and removes the label.
// Oversized alias lists are dropped entirely.
func cleanAliases(aliases []string, label string) []string {
	seen := make(map[string]struct{}, len(aliases))
	out := make([]string, 0, len(aliases))
	for _, alias := range aliases {
		if alias == "" || strings.EqualFold(alias, label) {
			continue
		}
		key := strings.ToLower(alias)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, alias)
	}
	if len(out) > maxAliases {
		return nil
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
