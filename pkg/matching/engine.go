package matching

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Gobusters/ectologger"

	"github.com/vicc-go/disease-normalizer/pkg/models"
	"github.com/vicc-go/disease-normalizer/pkg/storage"
	"github.com/vicc-go/disease-normalizer/pkg/tracing"
)

// Engine answers search and normalize queries with exact
// case-insensitive matching over the ref index. There is no fuzzy or
// partial matching; a query either hits a stored value or it does not.
type Engine struct {
	store  storage.Store
	logger ectologger.Logger
}

func NewEngine(store storage.Store, logger ectologger.Logger) *Engine {
	return &Engine{
		store:  store,
		logger: logger,
	}
}

// Search returns each requested source's strongest-tier matches for the
// query. Sources without a hit report NO_MATCH.
func (e *Engine) Search(ctx context.Context, query string, sources []models.SourceName) (*models.SearchResult, error) {
	ctx, span := tracing.StartSpan(ctx, "matching.Engine.Search")
	defer span.End()

	if len(sources) == 0 {
		sources = models.AllSources()
	}

	result := &models.SearchResult{
		Query:         query,
		Warnings:      queryWarnings(query),
		SourceMatches: make(map[models.SourceName]models.SourceSearchMatches, len(sources)),
	}

	lowered := strings.ToLower(strings.TrimSpace(query))
	if lowered == "" {
		for _, src := range sources {
			result.SourceMatches[src] = models.SourceSearchMatches{MatchType: models.MatchTypeNoMatch}
		}
		return result, nil
	}

	wanted := make(map[models.SourceName]bool, len(sources))
	for _, src := range sources {
		wanted[src] = true
	}
	matched := make(map[models.SourceName]bool, len(sources))

	// Concept ID is the strongest tier and can only hit the owning source.
	if src, ok := models.SourceForConceptID(lowered); ok && wanted[src] {
		rec, err := e.store.GetSourceRecord(ctx, lowered)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("concept ID lookup failed: %w", err)
		}
		if err == nil {
			result.SourceMatches[src] = models.SourceSearchMatches{
				MatchType: models.MatchTypeConceptID,
				Records:   []models.SourceRecord{*rec},
			}
			matched[src] = true
		}
	}

	for _, refType := range models.RefTypes() {
		if len(matched) == len(sources) {
			break
		}
		records, err := e.lookupRefs(ctx, lowered, refType)
		if err != nil {
			return nil, err
		}
		bySource := make(map[models.SourceName][]models.SourceRecord)
		for _, rec := range records {
			if wanted[rec.SourceName] && !matched[rec.SourceName] {
				bySource[rec.SourceName] = append(bySource[rec.SourceName], rec)
			}
		}
		for src, recs := range bySource {
			result.SourceMatches[src] = models.SourceSearchMatches{
				MatchType: models.MatchTypeForRef(refType),
				Records:   recs,
			}
			matched[src] = true
		}
	}

	for _, src := range sources {
		if !matched[src] {
			result.SourceMatches[src] = models.SourceSearchMatches{MatchType: models.MatchTypeNoMatch}
		}
	}

	return result, nil
}

// Normalize resolves the query to a single merged concept. Ties between
// distinct concepts at the winning tier resolve to the highest-priority
// source and are reported as a warning, never an error.
func (e *Engine) Normalize(ctx context.Context, query string) (*models.NormalizationResult, error) {
	ctx, span := tracing.StartSpan(ctx, "matching.Engine.Normalize")
	defer span.End()

	result := &models.NormalizationResult{
		Query:     query,
		MatchType: models.MatchTypeNoMatch,
		Warnings:  queryWarnings(query),
	}

	lowered := strings.ToLower(strings.TrimSpace(query))
	if lowered == "" {
		return result, nil
	}

	// A query naming a merge ref directly is the strongest possible hit.
	merged, err := e.store.GetMergedRecord(ctx, lowered)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("merged record lookup failed: %w", err)
	}
	if err == nil {
		result.MatchType = models.MatchTypeConceptID
		result.Disease = merged
		return result, nil
	}

	// A member concept ID resolves through its merge ref.
	rec, err := e.store.GetSourceRecord(ctx, lowered)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("source record lookup failed: %w", err)
	}
	if err == nil {
		merged, err := e.resolveMerged(ctx, rec)
		if err != nil {
			return nil, err
		}
		result.MatchType = models.MatchTypeConceptID
		result.Disease = merged
		return result, nil
	}

	for _, refType := range models.RefTypes() {
		records, err := e.lookupRefs(ctx, lowered, refType)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			continue
		}

		// Candidates in priority order; the first resolvable one wins.
		sort.Slice(records, func(i, j int) bool {
			ri, rj := records[i].SourceName.Rank(), records[j].SourceName.Rank()
			if ri != rj {
				return ri < rj
			}
			return strings.ToLower(records[i].ConceptID) < strings.ToLower(records[j].ConceptID)
		})

		concepts := make(map[string]struct{})
		for i := range records {
			merged, err := e.resolveMerged(ctx, &records[i])
			if err != nil {
				return nil, err
			}
			if result.Disease == nil {
				result.MatchType = models.MatchTypeForRef(refType)
				result.Disease = merged
			}
			concepts[strings.ToLower(merged.ConceptID)] = struct{}{}
		}

		if result.Disease == nil {
			continue
		}
		if len(concepts) > 1 {
			result.Warnings = append(result.Warnings, fmt.Sprintf(
				"query matched %d distinct concepts at tier %s; returning %s",
				len(concepts), result.MatchType, result.Disease.ConceptID))
		}
		return result, nil
	}

	e.logger.WithContext(ctx).WithField("query", query).Debug("No match for query")
	return result, nil
}

// resolveMerged maps a source record to its merged concept. Records
// outside every merge group stand for themselves as one-member concepts,
// as does a record whose merge ref matches no stored merged record.
// Storage failures propagate; only storage.ErrNotFound degrades.
func (e *Engine) resolveMerged(ctx context.Context, rec *models.SourceRecord) (*models.MergedRecord, error) {
	if rec.MergeRef != "" {
		merged, err := e.store.GetMergedRecord(ctx, rec.MergeRef)
		if err == nil {
			return merged, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("merge ref %s of %s: %w", rec.MergeRef, rec.ConceptID, err)
		}
		e.logger.WithContext(ctx).WithFields(map[string]any{
			"concept_id": rec.ConceptID,
			"merge_ref":  rec.MergeRef,
		}).Warn("Merge ref matches no merged record")
	}
	return &models.MergedRecord{
		ConceptID:        rec.ConceptID,
		Label:            rec.Label,
		Aliases:          rec.Aliases,
		Xrefs:            rec.Xrefs,
		AssociatedWith:   rec.AssociatedWith,
		PediatricDisease: rec.PediatricDisease,
		OncologicDisease: rec.OncologicDisease,
	}, nil
}

func (e *Engine) lookupRefs(ctx context.Context, lowered string, refType models.RefType) ([]models.SourceRecord, error) {
	ids, err := e.store.GetRefsByType(ctx, lowered, refType)
	if err != nil {
		return nil, fmt.Errorf("ref lookup for %s failed: %w", refType, err)
	}
	records := make([]models.SourceRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := e.store.GetSourceRecord(ctx, id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("record fetch for %s failed: %w", id, err)
		}
		records = append(records, *rec)
	}
	return records, nil
}

// queryWarnings flags query text quirks that commonly cause silent
// misses, like non-breaking spaces pasted from documents.
func queryWarnings(query string) []string {
	var warnings []string
	if strings.ContainsRune(query, '\u00a0') {
		warnings = append(warnings, "query contains non-breaking space characters")
	}
	return warnings
}
