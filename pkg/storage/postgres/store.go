// Package postgres implements storage.Store on PostgreSQL. Ref values
// are indexed lowered in record_refs so every match-target lookup is a
// single indexed query.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Gobusters/ectologger"

	"github.com/vicc-go/disease-normalizer/pkg/database"
	"github.com/vicc-go/disease-normalizer/pkg/models"
	"github.com/vicc-go/disease-normalizer/pkg/storage"
	"github.com/vicc-go/disease-normalizer/pkg/tracing"
)

type Store struct {
	db     database.DB
	logger ectologger.Logger
}

var _ storage.Store = (*Store)(nil)

func New(db database.DB, logger ectologger.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger,
	}
}

func (s *Store) GetSourceRecord(ctx context.Context, conceptID string) (*models.SourceRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "postgres.Store.GetSourceRecord")
	defer span.End()

	sb := sourceRecordStruct.SelectFrom(sourceRecordsTable)
	sb.Where(sb.Equal("lower(concept_id)", strings.ToLower(conceptID)))

	query, args := sb.Build()

	var row sourceRecordRow
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		s.logger.WithContext(ctx).WithError(err).WithField("concept_id", conceptID).Error("Failed to get source record")
		return nil, fmt.Errorf("failed to get source record: %w", err)
	}

	rec := row.toModel()
	return &rec, nil
}

func (s *Store) GetMergedRecord(ctx context.Context, conceptID string) (*models.MergedRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "postgres.Store.GetMergedRecord")
	defer span.End()

	sb := mergedRecordStruct.SelectFrom(mergedRecordsTable)
	sb.Where(sb.Equal("lower(concept_id)", strings.ToLower(conceptID)))

	query, args := sb.Build()

	var row mergedRecordRow
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		s.logger.WithContext(ctx).WithError(err).WithField("concept_id", conceptID).Error("Failed to get merged record")
		return nil, fmt.Errorf("failed to get merged record: %w", err)
	}

	rec := row.toModel()
	return &rec, nil
}

func (s *Store) GetRefsByType(ctx context.Context, value string, refType models.RefType) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "postgres.Store.GetRefsByType")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("concept_id").From(recordRefsTable)
	sb.Where(
		sb.Equal("ref_type", string(refType)),
		sb.Equal("value_lower", strings.ToLower(value)),
	)
	sb.OrderBy("concept_id")

	query, args := sb.Build()

	var ids []string
	if err := s.db.SelectContext(ctx, &ids, query, args...); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("ref_type", refType).Error("Failed to query ref index")
		return nil, fmt.Errorf("failed to query ref index: %w", err)
	}
	return ids, nil
}

func (s *Store) AllSourceRecords(ctx context.Context) ([]models.SourceRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "postgres.Store.AllSourceRecords")
	defer span.End()

	sb := sourceRecordStruct.SelectFrom(sourceRecordsTable)
	sb.OrderBy("lower(concept_id)")

	query, args := sb.Build()

	var rows []sourceRecordRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to load source snapshot")
		return nil, fmt.Errorf("failed to load source snapshot: %w", err)
	}

	records := make([]models.SourceRecord, len(rows))
	for i, row := range rows {
		records[i] = row.toModel()
	}
	return records, nil
}

func (s *Store) ListConceptIDs(ctx context.Context, source models.SourceName) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "postgres.Store.ListConceptIDs")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("concept_id").From(sourceRecordsTable)
	sb.Where(sb.Equal("source_name", string(source)))
	sb.OrderBy("lower(concept_id)")

	query, args := sb.Build()

	var ids []string
	if err := s.db.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list concept IDs: %w", err)
	}
	return ids, nil
}

func (s *Store) AddSourceRecord(ctx context.Context, record models.SourceRecord) error {
	ctx, span := tracing.StartSpan(ctx, "postgres.Store.AddSourceRecord")
	defer span.End()

	ctx, tx, err := s.db.GetTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	row := fromSourceRecord(record)
	ib := sourceRecordStruct.InsertInto(sourceRecordsTable, row)
	ub := ib.OnConflict("concept_id")
	ub.Set(
		ub.Assign("source_name", database.Excluded("source_name")),
		ub.Assign("label", database.Excluded("label")),
		ub.Assign("aliases", database.Excluded("aliases")),
		ub.Assign("xrefs", database.Excluded("xrefs")),
		ub.Assign("associated_with", database.Excluded("associated_with")),
		ub.Assign("pediatric_disease", database.Excluded("pediatric_disease")),
		ub.Assign("oncologic_disease", database.Excluded("oncologic_disease")),
	)

	query, args := ib.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("concept_id", record.ConceptID).Error("Failed to upsert source record")
		return fmt.Errorf("failed to upsert source record: %w", err)
	}

	if err := s.replaceRefs(ctx, tx, record); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// replaceRefs rewrites the ref index rows of one record inside the
// caller's transaction.
func (s *Store) replaceRefs(ctx context.Context, tx database.Tx, record models.SourceRecord) error {
	db := database.NewDeleteBuilder()
	db.DeleteFrom(recordRefsTable)
	db.Where(db.Equal("concept_id", record.ConceptID))

	query, args := db.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to clear ref index: %w", err)
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(recordRefsTable)
	ib.Cols("concept_id", "ref_type", "value_lower")
	count := 0
	for _, refType := range models.RefTypes() {
		for _, value := range record.RefValues(refType) {
			ib.Values(record.ConceptID, string(refType), strings.ToLower(value))
			count++
		}
	}
	if count == 0 {
		return nil
	}
	ib.OnConflictDoNothing()

	query, args = ib.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to write ref index: %w", err)
	}
	return nil
}

func (s *Store) DeleteSource(ctx context.Context, source models.SourceName) error {
	ctx, span := tracing.StartSpan(ctx, "postgres.Store.DeleteSource")
	defer span.End()

	ctx, tx, err := s.db.GetTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// record_refs rows cascade with their source record.
	db := database.NewDeleteBuilder()
	db.DeleteFrom(sourceRecordsTable)
	db.Where(db.Equal("source_name", string(source)))

	query, args := db.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("source", source).Error("Failed to delete source records")
		return fmt.Errorf("failed to delete source records: %w", err)
	}

	db = database.NewDeleteBuilder()
	db.DeleteFrom(sourceMetaTable)
	db.Where(db.Equal("source_name", string(source)))

	query, args = db.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete source meta: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *Store) ReplaceMergedRecords(ctx context.Context, records []models.MergedRecord, mergeRefs map[string]string) error {
	ctx, span := tracing.StartSpan(ctx, "postgres.Store.ReplaceMergedRecords")
	defer span.End()

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"merged_count": len(records),
		"ref_count":    len(mergeRefs),
	})

	ctx, tx, err := s.db.GetTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+mergedRecordsTable); err != nil {
		log.WithError(err).Error("Failed to clear merged records")
		return fmt.Errorf("failed to clear merged records: %w", err)
	}

	if len(records) > 0 {
		rows := make([]any, len(records))
		for i, rec := range records {
			rows[i] = fromMergedRecord(rec)
		}
		ib := mergedRecordStruct.InsertInto(mergedRecordsTable, rows...)
		query, args := ib.Build()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			log.WithError(err).Error("Failed to insert merged records")
			return fmt.Errorf("failed to insert merged records: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, "UPDATE "+sourceRecordsTable+" SET merge_ref = NULL"); err != nil {
		log.WithError(err).Error("Failed to clear merge refs")
		return fmt.Errorf("failed to clear merge refs: %w", err)
	}

	for conceptID, ref := range mergeRefs {
		ub := database.NewUpdateBuilder()
		ub.Update(sourceRecordsTable)
		ub.Set(ub.Assign("merge_ref", ref))
		ub.Where(ub.Equal("lower(concept_id)", strings.ToLower(conceptID)))

		query, args := ub.Build()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			log.WithError(err).WithField("concept_id", conceptID).Error("Failed to set merge ref")
			return fmt.Errorf("failed to set merge ref for %s: %w", conceptID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Info("Replaced merged record set")
	return nil
}

func (s *Store) GetSourceMeta(ctx context.Context, source models.SourceName) (*models.SourceMeta, error) {
	ctx, span := tracing.StartSpan(ctx, "postgres.Store.GetSourceMeta")
	defer span.End()

	sb := sourceMetaStruct.SelectFrom(sourceMetaTable)
	sb.Where(sb.Equal("source_name", string(source)))

	query, args := sb.Build()

	var row sourceMetaRow
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get source meta: %w", err)
	}

	meta := row.toModel()
	return &meta, nil
}

func (s *Store) PutSourceMeta(ctx context.Context, meta models.SourceMeta) error {
	ctx, span := tracing.StartSpan(ctx, "postgres.Store.PutSourceMeta")
	defer span.End()

	row := fromSourceMeta(meta)
	ib := sourceMetaStruct.InsertInto(sourceMetaTable, row)
	ub := ib.OnConflict("source_name")
	ub.Set(
		ub.Assign("data_license", database.Excluded("data_license")),
		ub.Assign("data_license_url", database.Excluded("data_license_url")),
		ub.Assign("version", database.Excluded("version")),
		ub.Assign("data_url", database.Excluded("data_url")),
		ub.Assign("record_count", database.Excluded("record_count")),
	)

	query, args := ib.Build()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("source", meta.SourceName).Error("Failed to upsert source meta")
		return fmt.Errorf("failed to upsert source meta: %w", err)
	}
	return nil
}

func (s *Store) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
