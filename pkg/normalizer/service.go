package normalizer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/vicc-go/disease-normalizer/pkg/etl"
	"github.com/vicc-go/disease-normalizer/pkg/grouping"
	"github.com/vicc-go/disease-normalizer/pkg/matching"
	"github.com/vicc-go/disease-normalizer/pkg/merging"
	"github.com/vicc-go/disease-normalizer/pkg/models"
	"github.com/vicc-go/disease-normalizer/pkg/storage"
	"github.com/vicc-go/disease-normalizer/pkg/tracing"
)

// EventEmitter publishes normalizer lifecycle events. Nil disables
// eventing.
type EventEmitter interface {
	EmitRebuildCompleted(ctx context.Context, result models.RebuildResult) error
	EmitSourceLoaded(ctx context.Context, source models.SourceName, loaded int, skipped int) error
}

// GraphProjector mirrors merge groups into the graph database after a
// successful rebuild. Nil disables projection.
type GraphProjector interface {
	ProjectMergeGroups(ctx context.Context, groups []models.MergeGroup, merged []models.MergedRecord) error
}

// Service owns the merge lifecycle: it rebuilds the merged record set
// from the source snapshot and answers queries through the match engine.
type Service struct {
	store     storage.Store
	builder   *grouping.Builder
	merger    *merging.Merger
	engine    *matching.Engine
	loader    *etl.Loader
	emitter   EventEmitter
	projector GraphProjector
	logger    ectologger.Logger
}

func NewService(store storage.Store, emitter EventEmitter, projector GraphProjector, logger ectologger.Logger) *Service {
	return &Service{
		store:     store,
		builder:   grouping.NewBuilder(logger),
		merger:    merging.NewMerger(logger),
		engine:    matching.NewEngine(store, logger),
		loader:    etl.NewLoader(store, logger),
		emitter:   emitter,
		projector: projector,
		logger:    logger,
	}
}

// RebuildMerges recomputes every merge group and merged record from an
// immutable snapshot of the source records, then swaps the stored merged
// set atomically. A storage failure aborts the swap and leaves the prior
// set serving queries.
func (s *Service) RebuildMerges(ctx context.Context) (*models.RebuildResult, error) {
	ctx, span := tracing.StartSpan(ctx, "normalizer.Service.RebuildMerges")
	defer span.End()

	log := s.logger.WithContext(ctx)
	start := time.Now()

	snapshot, err := s.store.AllSourceRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load source snapshot: %w", err)
	}

	build, err := s.builder.BuildGroups(ctx, snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to build merge groups: %w", err)
	}

	byID := make(map[string]models.SourceRecord, len(build.Records))
	for _, rec := range build.Records {
		byID[strings.ToLower(rec.ConceptID)] = rec
	}

	mergedRecords := make([]models.MergedRecord, 0, len(build.Groups))
	mergeRefs := make(map[string]string)
	for _, group := range build.Groups {
		merged, err := s.merger.Merge(ctx, group, byID)
		if err != nil {
			return nil, fmt.Errorf("failed to merge group %s: %w", group.MergeRef, err)
		}
		mergedRecords = append(mergedRecords, merged)
		for _, member := range group.Members {
			mergeRefs[member] = group.MergeRef
		}
	}

	if err := s.store.ReplaceMergedRecords(ctx, mergedRecords, mergeRefs); err != nil {
		return nil, fmt.Errorf("failed to commit merged records: %w", err)
	}

	result := &models.RebuildResult{
		SourceRecords: len(snapshot),
		MergeGroups:   len(build.Groups),
		MergedRecords: len(mergedRecords),
		Integrity:     build.Report,
		DurationMS:    time.Since(start).Milliseconds(),
	}

	if !result.Integrity.Empty() {
		log.WithFields(map[string]any{
			"dangling_xrefs":         result.Integrity.DanglingXrefs,
			"self_xrefs":             result.Integrity.SelfXrefs,
			"unknown_source_members": result.Integrity.UnknownSourceMembers,
			"duplicate_concept_ids":  result.Integrity.DuplicateConceptIDs,
			"same_source_components": result.Integrity.SameSourceComponents,
		}).Warn("Rebuild completed with integrity issues")
	}

	if s.emitter != nil {
		if err := s.emitter.EmitRebuildCompleted(ctx, *result); err != nil {
			log.WithError(err).Error("Failed to emit rebuild event")
		}
	}

	if s.projector != nil {
		if err := s.projector.ProjectMergeGroups(ctx, build.Groups, mergedRecords); err != nil {
			log.WithError(err).Error("Failed to project merge groups to graph")
		}
	}

	log.WithFields(map[string]any{
		"source_records": result.SourceRecords,
		"merge_groups":   result.MergeGroups,
		"duration_ms":    result.DurationMS,
	}).Info("Rebuild completed")

	return result, nil
}

// Search answers a per-source query through the match engine.
func (s *Service) Search(ctx context.Context, query string, sources []models.SourceName) (*models.SearchResult, error) {
	return s.engine.Search(ctx, query, sources)
}

// Normalize answers a corpus-wide query through the match engine.
func (s *Service) Normalize(ctx context.Context, query string) (*models.NormalizationResult, error) {
	return s.engine.Normalize(ctx, query)
}
