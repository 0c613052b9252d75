// Package events handles event emission for normalizer lifecycle changes
package events

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"

	"github.com/vicc-go/disease-normalizer/pkg/kafka"
	"github.com/vicc-go/disease-normalizer/pkg/models"
	"github.com/vicc-go/disease-normalizer/pkg/tracing"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// Emitter handles event emission for the disease normalizer
type Emitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// EmitRebuildCompleted emits a rebuild.completed event summarizing the
// new merged set
func (e *Emitter) EmitRebuildCompleted(ctx context.Context, result models.RebuildResult) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitRebuildCompleted")
	defer span.End()

	data := map[string]any{
		"schema_version": SchemaVersion,
		"source_records": result.SourceRecords,
		"merge_groups":   result.MergeGroups,
		"merged_records": result.MergedRecords,
		"duration_ms":    result.DurationMS,
	}
	if !result.Integrity.Empty() {
		data["integrity"] = result.Integrity
	}
	dataJSON, _ := json.Marshal(data)

	event := &kafka.NormalizerEvent{
		EventType: "rebuild.completed",
		Key:       "rebuild",
		Data:      dataJSON,
	}

	if err := e.producer.PublishEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit rebuild.completed event")
		return err
	}

	return nil
}

// EmitSourceLoaded emits a source.loaded event after an ontology export
// is ingested
func (e *Emitter) EmitSourceLoaded(ctx context.Context, source models.SourceName, loaded int, skipped int) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitSourceLoaded")
	defer span.End()

	data := map[string]any{
		"schema_version": SchemaVersion,
		"loaded":         loaded,
		"skipped":        skipped,
	}
	dataJSON, _ := json.Marshal(data)

	event := &kafka.NormalizerEvent{
		EventType: "source.loaded",
		Key:       string(source),
		Source:    string(source),
		Data:      dataJSON,
	}

	if err := e.producer.PublishEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit source.loaded event")
		return err
	}

	return nil
}
