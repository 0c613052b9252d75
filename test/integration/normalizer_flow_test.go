package integration

import (
	"context"
	"strings"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vicc-go/disease-normalizer/pkg/etl"
	"github.com/vicc-go/disease-normalizer/pkg/models"
	"github.com/vicc-go/disease-normalizer/pkg/normalizer"
	"github.com/vicc-go/disease-normalizer/pkg/storage/storagetest"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

const ncitExport = `{"concept_id": "ncit:C2926", "label": "Lung Non-Small Cell Carcinoma", "aliases": ["NSCLC", "Non-Small Cell Lung Cancer"]}
{"concept_id": "ncit:C9999", "label": "Orphan Concept", "xrefs": ["mondo:0099999"]}`

const mondoExport = `{"concept_id": "MONDO:0005233", "label": "non-small cell lung carcinoma", "xrefs": ["NCIT:C2926", "DOID:3908", "umls:C0007131"]}
{"concept_id": "MONDO:0001071", "label": "intellectual disability", "pediatric_disease": true}`

const doExport = `{"concept_id": "doid:3908", "label": "lung non-small cell carcinoma"}`

// loadCorpus ingests the three ontology exports and rebuilds the
// merged set, mirroring a full refresh cycle.
func loadCorpus(t *testing.T) (*normalizer.Service, *storagetest.Store, *models.RebuildResult) {
	t.Helper()

	store := storagetest.New()
	loader := etl.NewLoader(store, testLogger())
	ctx := context.Background()

	_, err := loader.Load(ctx, etl.NewNCIt(), strings.NewReader(ncitExport))
	require.NoError(t, err)
	_, err = loader.Load(ctx, etl.NewMondo(), strings.NewReader(mondoExport))
	require.NoError(t, err)
	_, err = loader.Load(ctx, etl.NewDO(), strings.NewReader(doExport))
	require.NoError(t, err)

	svc := normalizer.NewService(store, nil, nil, testLogger())
	result, err := svc.RebuildMerges(ctx)
	require.NoError(t, err)

	return svc, store, result
}

func TestFullRefreshCycle(t *testing.T) {
	_, store, result := loadCorpus(t)

	assert.Equal(t, 5, result.SourceRecords)
	assert.Equal(t, 1, result.MergeGroups)

	// ncit:C9999 points at a concept that was never loaded.
	assert.Equal(t, 1, result.Integrity.DanglingXrefs)

	merged, err := store.GetMergedRecord(context.Background(), "ncit:C2926")
	require.NoError(t, err)
	assert.Equal(t, "Lung Non-Small Cell Carcinoma", merged.Label)
	assert.Contains(t, merged.Xrefs, "mondo:0005233")
	assert.Contains(t, merged.Xrefs, "DOID:3908")
	assert.Contains(t, merged.AssociatedWith, "umls:C0007131")
}

func TestNormalizeAfterRefresh(t *testing.T) {
	svc, _, _ := loadCorpus(t)
	ctx := context.Background()

	t.Run("alias resolves to the merged concept", func(t *testing.T) {
		result, err := svc.Normalize(ctx, "nsclc")
		require.NoError(t, err)
		assert.Equal(t, models.MatchTypeAlias, result.MatchType)
		require.NotNil(t, result.Disease)
		assert.Equal(t, "ncit:C2926", result.Disease.ConceptID)
	})

	t.Run("member concept ID beats weaker tiers", func(t *testing.T) {
		result, err := svc.Normalize(ctx, "DOID:3908")
		require.NoError(t, err)
		assert.Equal(t, models.MatchTypeConceptID, result.MatchType)
		require.NotNil(t, result.Disease)
		assert.Equal(t, "ncit:C2926", result.Disease.ConceptID)
	})

	t.Run("dangling xref leaves a singleton", func(t *testing.T) {
		result, err := svc.Normalize(ctx, "orphan concept")
		require.NoError(t, err)
		assert.Equal(t, models.MatchTypeLabel, result.MatchType)
		require.NotNil(t, result.Disease)
		assert.Equal(t, "ncit:C9999", result.Disease.ConceptID)
	})

	t.Run("queries are case-insensitive", func(t *testing.T) {
		upper, err := svc.Normalize(ctx, "INTELLECTUAL DISABILITY")
		require.NoError(t, err)
		lower, err := svc.Normalize(ctx, "intellectual disability")
		require.NoError(t, err)

		require.NotNil(t, upper.Disease)
		require.NotNil(t, lower.Disease)
		assert.Equal(t, lower.Disease.ConceptID, upper.Disease.ConceptID)
		require.NotNil(t, upper.Disease.PediatricDisease)
		assert.True(t, *upper.Disease.PediatricDisease)
	})

	t.Run("no fuzzy matching", func(t *testing.T) {
		result, err := svc.Normalize(ctx, "lung carcinoma")
		require.NoError(t, err)
		assert.Equal(t, models.MatchTypeNoMatch, result.MatchType)
		assert.Nil(t, result.Disease)
	})
}

func TestSearchAfterRefresh(t *testing.T) {
	svc, _, _ := loadCorpus(t)

	ctx := context.Background()

	result, err := svc.Search(ctx, "non-small cell lung carcinoma", nil)
	require.NoError(t, err)

	assert.Equal(t, models.MatchTypeLabel, result.SourceMatches[models.SourceMondo].MatchType)
	assert.Equal(t, models.MatchTypeNoMatch, result.SourceMatches[models.SourceNCIt].MatchType)
	assert.Equal(t, models.MatchTypeNoMatch, result.SourceMatches[models.SourceOMIM].MatchType)

	result, err = svc.Search(ctx, "nsclc", nil)
	require.NoError(t, err)
	assert.Equal(t, models.MatchTypeAlias, result.SourceMatches[models.SourceNCIt].MatchType)
}

func TestIncrementalIngestThenRebuild(t *testing.T) {
	svc, store, _ := loadCorpus(t)
	ctx := context.Background()

	// A newly ingested record joins the merge graph on the next rebuild.
	err := svc.IngestRecord(ctx, models.SourceRecord{
		ConceptID: "oncotree:NSCLC",
		Label:     "Non-Small Cell Lung Cancer",
		Xrefs:     []string{"ncit:C2926"},
	})
	require.NoError(t, err)

	result, err := svc.RebuildMerges(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, result.SourceRecords)

	rec, err := store.GetSourceRecord(ctx, "oncotree:NSCLC")
	require.NoError(t, err)
	assert.Equal(t, "ncit:C2926", rec.MergeRef)
}
