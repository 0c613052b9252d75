package normalizer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vicc-go/disease-normalizer/pkg/models"
	"github.com/vicc-go/disease-normalizer/pkg/storage"
	"github.com/vicc-go/disease-normalizer/pkg/storage/storagetest"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

type sourceLoad struct {
	source  models.SourceName
	loaded  int
	skipped int
}

type fakeEmitter struct {
	results []models.RebuildResult
	loads   []sourceLoad
	err     error
}

func (f *fakeEmitter) EmitRebuildCompleted(ctx context.Context, result models.RebuildResult) error {
	f.results = append(f.results, result)
	return f.err
}

func (f *fakeEmitter) EmitSourceLoaded(ctx context.Context, source models.SourceName, loaded int, skipped int) error {
	f.loads = append(f.loads, sourceLoad{source: source, loaded: loaded, skipped: skipped})
	return f.err
}

type fakeProjector struct {
	groups []models.MergeGroup
	merged []models.MergedRecord
}

func (f *fakeProjector) ProjectMergeGroups(ctx context.Context, groups []models.MergeGroup, merged []models.MergedRecord) error {
	f.groups = groups
	f.merged = merged
	return nil
}

func seedNSCLC(store *storagetest.Store) {
	store.Seed(
		models.SourceRecord{
			ConceptID:  "ncit:C2926",
			SourceName: models.SourceNCIt,
			Label:      "Lung Non-Small Cell Carcinoma",
			Aliases:    []string{"NSCLC"},
		},
		models.SourceRecord{
			ConceptID:  "mondo:0005233",
			SourceName: models.SourceMondo,
			Label:      "non-small cell lung carcinoma",
			Xrefs:      []string{"ncit:C2926", "DOID:3908"},
		},
		models.SourceRecord{
			ConceptID:  "DOID:3908",
			SourceName: models.SourceDO,
			Label:      "lung non-small cell carcinoma",
		},
		models.SourceRecord{
			ConceptID:  "mondo:0001071",
			SourceName: models.SourceMondo,
			Label:      "intellectual disability",
		},
	)
}

func TestRebuildMerges_FullCycle(t *testing.T) {
	store := storagetest.New()
	seedNSCLC(store)
	svc := NewService(store, nil, nil, testLogger())

	result, err := svc.RebuildMerges(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, result.SourceRecords)
	assert.Equal(t, 1, result.MergeGroups)
	assert.Equal(t, 1, result.MergedRecords)
	assert.True(t, result.Integrity.Empty())

	// Members resolve through their merge ref.
	rec, err := store.GetSourceRecord(context.Background(), "DOID:3908")
	require.NoError(t, err)
	assert.Equal(t, "ncit:C2926", rec.MergeRef)

	normalized, err := svc.Normalize(context.Background(), "nsclc")
	require.NoError(t, err)
	assert.Equal(t, models.MatchTypeAlias, normalized.MatchType)
	require.NotNil(t, normalized.Disease)
	assert.Equal(t, "ncit:C2926", normalized.Disease.ConceptID)

	// Singletons stand for themselves.
	singleton, err := svc.Normalize(context.Background(), "intellectual disability")
	require.NoError(t, err)
	require.NotNil(t, singleton.Disease)
	assert.Equal(t, "mondo:0001071", singleton.Disease.ConceptID)
}

func TestRebuildMerges_ReplaceFailureAborts(t *testing.T) {
	store := storagetest.New()
	seedNSCLC(store)
	store.FailReplace = errors.New("storage outage")
	svc := NewService(store, nil, nil, testLogger())

	_, err := svc.RebuildMerges(context.Background())
	require.Error(t, err)

	// The failed rebuild leaves no partial merged set behind.
	_, err = store.GetMergedRecord(context.Background(), "ncit:C2926")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRebuildMerges_EmitterAndProjector(t *testing.T) {
	store := storagetest.New()
	seedNSCLC(store)
	emitter := &fakeEmitter{}
	projector := &fakeProjector{}
	svc := NewService(store, emitter, projector, testLogger())

	_, err := svc.RebuildMerges(context.Background())
	require.NoError(t, err)

	require.Len(t, emitter.results, 1)
	assert.Equal(t, 1, emitter.results[0].MergeGroups)
	require.Len(t, projector.groups, 1)
	assert.Equal(t, "ncit:C2926", projector.groups[0].MergeRef)
	require.Len(t, projector.merged, 1)
}

func TestRebuildMerges_EmitterFailureIsNonFatal(t *testing.T) {
	store := storagetest.New()
	seedNSCLC(store)
	emitter := &fakeEmitter{err: errors.New("broker down")}
	svc := NewService(store, emitter, nil, testLogger())

	result, err := svc.RebuildMerges(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.MergeGroups)
}

func TestRebuildMerges_IntegrityReported(t *testing.T) {
	store := storagetest.New()
	store.Seed(
		models.SourceRecord{
			ConceptID:  "ncit:C1",
			SourceName: models.SourceNCIt,
			Label:      "a",
			Xrefs:      []string{"mondo:0009999"},
		},
		models.SourceRecord{
			ConceptID:  "mesh:D1",
			SourceName: models.SourceName("MeSH"),
			Label:      "b",
		},
	)
	svc := NewService(store, nil, nil, testLogger())

	result, err := svc.RebuildMerges(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Integrity.DanglingXrefs)
	assert.Equal(t, 1, result.Integrity.UnknownSourceMembers)
	assert.Equal(t, 0, result.MergeGroups)
}

func TestRebuildMerges_Deterministic(t *testing.T) {
	store := storagetest.New()
	seedNSCLC(store)
	svc := NewService(store, nil, nil, testLogger())

	_, err := svc.RebuildMerges(context.Background())
	require.NoError(t, err)
	first, err := store.GetMergedRecord(context.Background(), "ncit:C2926")
	require.NoError(t, err)

	_, err = svc.RebuildMerges(context.Background())
	require.NoError(t, err)
	second, err := store.GetMergedRecord(context.Background(), "ncit:C2926")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestLoadSource(t *testing.T) {
	store := storagetest.New()
	emitter := &fakeEmitter{}
	svc := NewService(store, emitter, nil, testLogger())
	ctx := context.Background()

	export := strings.Join([]string{
		`{"concept_id": "ncit:C2926", "label": "Lung Non-Small Cell Carcinoma"}`,
		`{"concept_id": "mondo:0001071", "label": "foreign record"}`,
	}, "\n")

	result, err := svc.LoadSource(ctx, models.SourceNCIt, strings.NewReader(export))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Loaded)
	assert.Equal(t, 1, result.Skipped)

	rec, err := store.GetSourceRecord(ctx, "ncit:C2926")
	require.NoError(t, err)
	assert.Equal(t, models.SourceNCIt, rec.SourceName)

	require.Len(t, emitter.loads, 1)
	assert.Equal(t, sourceLoad{source: models.SourceNCIt, loaded: 1, skipped: 1}, emitter.loads[0])
}

func TestLoadSource_UnknownSource(t *testing.T) {
	svc := NewService(storagetest.New(), nil, nil, testLogger())

	_, err := svc.LoadSource(context.Background(), models.SourceName("mesh"), strings.NewReader(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no loader for source")
}

func TestIngestRecord(t *testing.T) {
	store := storagetest.New()
	svc := NewService(store, nil, nil, testLogger())

	err := svc.IngestRecord(context.Background(), models.SourceRecord{
		ConceptID: "ncit:C2926",
		Label:     "Lung Non-Small Cell Carcinoma",
	})
	require.NoError(t, err)

	rec, err := store.GetSourceRecord(context.Background(), "ncit:C2926")
	require.NoError(t, err)
	assert.Equal(t, models.SourceNCIt, rec.SourceName)
}

func TestIngestRecord_UnknownPrefix(t *testing.T) {
	store := storagetest.New()
	svc := NewService(store, nil, nil, testLogger())

	err := svc.IngestRecord(context.Background(), models.SourceRecord{ConceptID: "mesh:D000001"})
	require.Error(t, err)
}

func TestIngestRecord_SourceMismatch(t *testing.T) {
	store := storagetest.New()
	svc := NewService(store, nil, nil, testLogger())

	err := svc.IngestRecord(context.Background(), models.SourceRecord{
		ConceptID:  "ncit:C2926",
		SourceName: models.SourceMondo,
	})
	require.Error(t, err)
}
