package normalizer

import (
	"context"
	"fmt"
	"io"

	"github.com/vicc-go/disease-normalizer/pkg/etl"
	"github.com/vicc-go/disease-normalizer/pkg/kafka"
	"github.com/vicc-go/disease-normalizer/pkg/models"
	"github.com/vicc-go/disease-normalizer/pkg/tracing"
)

// IngestRecord validates and stores a single source record. The record
// joins the merge graph on the next rebuild.
func (s *Service) IngestRecord(ctx context.Context, rec models.SourceRecord) error {
	ctx, span := tracing.StartSpan(ctx, "normalizer.Service.IngestRecord")
	defer span.End()

	source, ok := models.SourceForConceptID(rec.ConceptID)
	if !ok {
		return fmt.Errorf("concept ID %q does not belong to a known source", rec.ConceptID)
	}
	if rec.SourceName != "" && rec.SourceName != source {
		return fmt.Errorf("concept ID %q does not belong to source %s", rec.ConceptID, rec.SourceName)
	}
	rec.SourceName = source

	if err := s.store.AddSourceRecord(ctx, rec); err != nil {
		return fmt.Errorf("failed to store %s: %w", rec.ConceptID, err)
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"concept_id": rec.ConceptID,
		"source":     source,
	}).Debug("Ingested source record")
	return nil
}

// LoadSource replaces one ontology's stored records from an export
// stream. The new records join the merge graph on the next rebuild.
func (s *Service) LoadSource(ctx context.Context, name models.SourceName, r io.Reader) (*etl.LoadResult, error) {
	ctx, span := tracing.StartSpan(ctx, "normalizer.Service.LoadSource")
	defer span.End()

	src, err := etl.SourceFor(name)
	if err != nil {
		return nil, err
	}

	result, err := s.loader.Load(ctx, src, r)
	if err != nil {
		return nil, err
	}

	if s.emitter != nil {
		if err := s.emitter.EmitSourceLoaded(ctx, result.Source, result.Loaded, result.Skipped); err != nil {
			s.logger.WithContext(ctx).WithError(err).Error("Failed to emit source load event")
		}
	}
	return result, nil
}

// KafkaHandler adapts the service to the consumer. Record upserts are
// stored immediately; rebuild requests recompute the merged set.
func (s *Service) KafkaHandler() kafka.MessageHandler {
	return func(ctx context.Context, msg *kafka.IncomingMessage) error {
		if msg.RecordUpsert != nil {
			return s.IngestRecord(ctx, msg.RecordUpsert.Record)
		}

		if msg.IsRebuildRequested() {
			_, err := s.RebuildMerges(ctx)
			return err
		}

		s.logger.WithContext(ctx).WithFields(map[string]any{
			"key":   msg.Key,
			"topic": msg.Topic,
		}).Warn("Ignoring message with no recognized payload")
		return nil
	}
}
