// Package redis implements storage.Store on a Redis-compatible key/value
// store. Records live as JSON values keyed on lowered concept ID, the
// ref index as sets keyed on (ref type, lowered value). The merged set
// is written under a fresh version prefix and made live by one pointer
// SET, so readers flip between complete sets.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/vicc-go/disease-normalizer/config"
	"github.com/vicc-go/disease-normalizer/pkg/models"
	"github.com/vicc-go/disease-normalizer/pkg/storage"
	"github.com/vicc-go/disease-normalizer/pkg/tracing"
)

const (
	sourceKeyPrefix = "disease:source:"
	refKeyPrefix    = "disease:ref:"
	metaKeyPrefix   = "disease:meta:"
	sourceIDsPrefix = "disease:sourceids:"
	mergedKeyPrefix = "disease:merged:"
	currentVersion  = "disease:merged:current"
	mergeRefInfix   = ":mergeref:"
	mergedRecInfix  = ":record:"
	scanBatchSize   = 500
	connectTimeout  = 5 * time.Second
)

type Store struct {
	client *goredis.Client
	logger ectologger.Logger
}

var _ storage.Store = (*Store)(nil)

// New connects to Redis and verifies the connection before returning.
func New(cfg config.Config, logger ectologger.Logger) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:        cfg.RedisAddr,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		DialTimeout: connectTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &Store{client: client, logger: logger}, nil
}

// NewWithClient wraps an existing client, used by tests with miniature
// or mock servers.
func NewWithClient(client *goredis.Client, logger ectologger.Logger) *Store {
	return &Store{client: client, logger: logger}
}

func sourceKey(conceptID string) string {
	return sourceKeyPrefix + strings.ToLower(conceptID)
}

func refKey(refType models.RefType, value string) string {
	return refKeyPrefix + string(refType) + ":" + strings.ToLower(value)
}

func mergedRecordKey(version, conceptID string) string {
	return mergedKeyPrefix + version + mergedRecInfix + strings.ToLower(conceptID)
}

func mergeRefKey(version, conceptID string) string {
	return mergedKeyPrefix + version + mergeRefInfix + strings.ToLower(conceptID)
}

func (s *Store) liveVersion(ctx context.Context) (string, error) {
	version, err := s.client.Get(ctx, currentVersion).Result()
	if errors.Is(err, goredis.Nil) {
		return "", nil
	}
	return version, err
}

func (s *Store) GetSourceRecord(ctx context.Context, conceptID string) (*models.SourceRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "redis.Store.GetSourceRecord")
	defer span.End()

	raw, err := s.client.Get(ctx, sourceKey(conceptID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source record: %w", err)
	}

	var rec models.SourceRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode source record: %w", err)
	}

	version, err := s.liveVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read live version: %w", err)
	}
	if version != "" {
		ref, err := s.client.Get(ctx, mergeRefKey(version, conceptID)).Result()
		if err != nil && !errors.Is(err, goredis.Nil) {
			return nil, fmt.Errorf("failed to read merge ref: %w", err)
		}
		rec.MergeRef = ref
	}

	return &rec, nil
}

func (s *Store) GetMergedRecord(ctx context.Context, conceptID string) (*models.MergedRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "redis.Store.GetMergedRecord")
	defer span.End()

	version, err := s.liveVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read live version: %w", err)
	}
	if version == "" {
		return nil, storage.ErrNotFound
	}

	raw, err := s.client.Get(ctx, mergedRecordKey(version, conceptID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get merged record: %w", err)
	}

	var rec models.MergedRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode merged record: %w", err)
	}
	return &rec, nil
}

func (s *Store) GetRefsByType(ctx context.Context, value string, refType models.RefType) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "redis.Store.GetRefsByType")
	defer span.End()

	ids, err := s.client.SMembers(ctx, refKey(refType, value)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read ref index: %w", err)
	}
	return ids, nil
}

func (s *Store) AllSourceRecords(ctx context.Context) ([]models.SourceRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "redis.Store.AllSourceRecords")
	defer span.End()

	var records []models.SourceRecord
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, sourceKeyPrefix+"*", scanBatchSize).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan source records: %w", err)
		}
		for _, key := range keys {
			raw, err := s.client.Get(ctx, key).Bytes()
			if errors.Is(err, goredis.Nil) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("failed to read source record %s: %w", key, err)
			}
			var rec models.SourceRecord
			if err := json.Unmarshal(raw, &rec); err != nil {
				return nil, fmt.Errorf("failed to decode source record %s: %w", key, err)
			}
			records = append(records, rec)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	version, err := s.liveVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read live version: %w", err)
	}
	if version != "" {
		for i := range records {
			ref, err := s.client.Get(ctx, mergeRefKey(version, records[i].ConceptID)).Result()
			if err != nil && !errors.Is(err, goredis.Nil) {
				return nil, fmt.Errorf("failed to read merge ref: %w", err)
			}
			records[i].MergeRef = ref
		}
	}

	return records, nil
}

func (s *Store) ListConceptIDs(ctx context.Context, source models.SourceName) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "redis.Store.ListConceptIDs")
	defer span.End()

	ids, err := s.client.SMembers(ctx, sourceIDsPrefix+string(source)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list concept IDs: %w", err)
	}
	return ids, nil
}

func (s *Store) AddSourceRecord(ctx context.Context, record models.SourceRecord) error {
	ctx, span := tracing.StartSpan(ctx, "redis.Store.AddSourceRecord")
	defer span.End()

	record.MergeRef = ""
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode source record: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, sourceKey(record.ConceptID), raw, 0)
	pipe.SAdd(ctx, sourceIDsPrefix+string(record.SourceName), record.ConceptID)
	for _, refType := range models.RefTypes() {
		for _, value := range record.RefValues(refType) {
			pipe.SAdd(ctx, refKey(refType, value), record.ConceptID)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("concept_id", record.ConceptID).Error("Failed to write source record")
		return fmt.Errorf("failed to write source record: %w", err)
	}
	return nil
}

func (s *Store) DeleteSource(ctx context.Context, source models.SourceName) error {
	ctx, span := tracing.StartSpan(ctx, "redis.Store.DeleteSource")
	defer span.End()

	ids, err := s.client.SMembers(ctx, sourceIDsPrefix+string(source)).Result()
	if err != nil {
		return fmt.Errorf("failed to list source members: %w", err)
	}

	for _, id := range ids {
		raw, err := s.client.Get(ctx, sourceKey(id)).Bytes()
		if errors.Is(err, goredis.Nil) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to read source record %s: %w", id, err)
		}
		var rec models.SourceRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("failed to decode source record %s: %w", id, err)
		}

		pipe := s.client.TxPipeline()
		for _, refType := range models.RefTypes() {
			for _, value := range rec.RefValues(refType) {
				pipe.SRem(ctx, refKey(refType, value), rec.ConceptID)
			}
		}
		pipe.Del(ctx, sourceKey(id))
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("failed to delete source record %s: %w", id, err)
		}
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, sourceIDsPrefix+string(source))
	pipe.Del(ctx, metaKeyPrefix+string(source))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete source index: %w", err)
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"source":       source,
		"record_count": len(ids),
	}).Info("Deleted source")
	return nil
}

func (s *Store) ReplaceMergedRecords(ctx context.Context, records []models.MergedRecord, mergeRefs map[string]string) error {
	ctx, span := tracing.StartSpan(ctx, "redis.Store.ReplaceMergedRecords")
	defer span.End()

	previous, err := s.liveVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to read live version: %w", err)
	}

	version := uuid.New().String()
	pipe := s.client.TxPipeline()
	for _, rec := range records {
		raw, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to encode merged record %s: %w", rec.ConceptID, err)
		}
		pipe.Set(ctx, mergedRecordKey(version, rec.ConceptID), raw, 0)
	}
	for conceptID, ref := range mergeRefs {
		pipe.Set(ctx, mergeRefKey(version, conceptID), ref, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to stage merged records: %w", err)
	}

	// The pointer flip is the commit point. Everything before it is
	// invisible to readers.
	if err := s.client.Set(ctx, currentVersion, version, 0).Err(); err != nil {
		return fmt.Errorf("failed to flip merged set pointer: %w", err)
	}

	if previous != "" && previous != version {
		s.dropVersion(ctx, previous)
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"merged_count": len(records),
		"version":      version,
	}).Info("Replaced merged record set")
	return nil
}

// dropVersion removes the keys of a superseded merged set. Failure only
// leaks stale keys, so it is logged and ignored.
func (s *Store) dropVersion(ctx context.Context, version string) {
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, mergedKeyPrefix+version+":*", scanBatchSize).Result()
		if err != nil {
			s.logger.WithContext(ctx).WithError(err).Warn("Failed to scan stale merged keys")
			return
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				s.logger.WithContext(ctx).WithError(err).Warn("Failed to drop stale merged keys")
				return
			}
		}
		cursor = next
		if cursor == 0 {
			return
		}
	}
}

func (s *Store) GetSourceMeta(ctx context.Context, source models.SourceName) (*models.SourceMeta, error) {
	ctx, span := tracing.StartSpan(ctx, "redis.Store.GetSourceMeta")
	defer span.End()

	raw, err := s.client.Get(ctx, metaKeyPrefix+string(source)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source meta: %w", err)
	}

	var meta models.SourceMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("failed to decode source meta: %w", err)
	}
	return &meta, nil
}

func (s *Store) PutSourceMeta(ctx context.Context, meta models.SourceMeta) error {
	ctx, span := tracing.StartSpan(ctx, "redis.Store.PutSourceMeta")
	defer span.End()

	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode source meta: %w", err)
	}
	if err := s.client.Set(ctx, metaKeyPrefix+string(meta.SourceName), raw, 0).Err(); err != nil {
		return fmt.Errorf("failed to write source meta: %w", err)
	}
	return nil
}

func (s *Store) Health(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}
