package matching

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vicc-go/disease-normalizer/pkg/models"
	"github.com/vicc-go/disease-normalizer/pkg/storage/storagetest"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

// newTestEngine seeds the NSCLC merge group, one singleton and two
// records tied on a shared alias.
func newTestEngine(t *testing.T) (*Engine, *storagetest.Store) {
	t.Helper()

	store := storagetest.New()
	store.Seed(
		models.SourceRecord{
			ConceptID:  "ncit:C2926",
			SourceName: models.SourceNCIt,
			Label:      "Lung Non-Small Cell Carcinoma",
			Aliases:    []string{"NSCLC", "Non-Small Cell Lung Cancer"},
		},
		models.SourceRecord{
			ConceptID:  "mondo:0005233",
			SourceName: models.SourceMondo,
			Label:      "non-small cell lung carcinoma",
			Xrefs:      []string{"ncit:C2926"},
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
		models.SourceRecord{
			ConceptID:  "mondo:0000111",
			SourceName: models.SourceMondo,
			Label:      "first shared-alias disease",
			Aliases:    []string{"shared alias"},
		},
		models.SourceRecord{
			ConceptID:  "DOID:222",
			SourceName: models.SourceDO,
			Label:      "second shared-alias disease",
			Aliases:    []string{"shared alias"},
		},
	)

	merged := []models.MergedRecord{
		{
			ConceptID: "ncit:C2926",
			Label:     "Lung Non-Small Cell Carcinoma",
			Aliases:   []string{"Non-Small Cell Lung Cancer", "non-small cell lung carcinoma", "NSCLC"},
			Xrefs:     []string{"DOID:3908", "mondo:0005233"},
		},
	}
	mergeRefs := map[string]string{
		"ncit:C2926":    "ncit:C2926",
		"mondo:0005233": "ncit:C2926",
		"DOID:3908":     "ncit:C2926",
	}
	require.NoError(t, store.ReplaceMergedRecords(context.Background(), merged, mergeRefs))

	return NewEngine(store, testLogger()), store
}

func TestSearch_ConceptIDTier(t *testing.T) {
	engine, _ := newTestEngine(t)

	result, err := engine.Search(context.Background(), "NCIT:c2926", nil)
	require.NoError(t, err)

	ncit := result.SourceMatches[models.SourceNCIt]
	assert.Equal(t, models.MatchTypeConceptID, ncit.MatchType)
	require.Len(t, ncit.Records, 1)
	assert.Equal(t, "ncit:C2926", ncit.Records[0].ConceptID)

	// The mondo record references the queried ID, so mondo reports an
	// xref-tier hit while DO stays unmatched.
	assert.Equal(t, models.MatchTypeXref, result.SourceMatches[models.SourceMondo].MatchType)
	assert.Equal(t, models.MatchTypeNoMatch, result.SourceMatches[models.SourceDO].MatchType)
}

func TestSearch_LabelTier(t *testing.T) {
	engine, _ := newTestEngine(t)

	result, err := engine.Search(context.Background(), "LUNG NON-SMALL CELL CARCINOMA", nil)
	require.NoError(t, err)

	assert.Equal(t, models.MatchTypeLabel, result.SourceMatches[models.SourceNCIt].MatchType)
	assert.Equal(t, models.MatchTypeLabel, result.SourceMatches[models.SourceDO].MatchType)
	assert.Equal(t, models.MatchTypeNoMatch, result.SourceMatches[models.SourceMondo].MatchType)
}

func TestSearch_NoPartialMatching(t *testing.T) {
	engine, _ := newTestEngine(t)

	result, err := engine.Search(context.Background(), "lung non-small", nil)
	require.NoError(t, err)

	for src, matches := range result.SourceMatches {
		assert.Equal(t, models.MatchTypeNoMatch, matches.MatchType, "source %s", src)
	}
}

func TestSearch_SourceFilter(t *testing.T) {
	engine, _ := newTestEngine(t)

	result, err := engine.Search(context.Background(), "nsclc", []models.SourceName{models.SourceMondo})
	require.NoError(t, err)

	require.Len(t, result.SourceMatches, 1)
	assert.Equal(t, models.MatchTypeNoMatch, result.SourceMatches[models.SourceMondo].MatchType)
}

func TestSearch_EmptyQuery(t *testing.T) {
	engine, _ := newTestEngine(t)

	result, err := engine.Search(context.Background(), "   ", nil)
	require.NoError(t, err)

	assert.Len(t, result.SourceMatches, len(models.AllSources()))
	for _, matches := range result.SourceMatches {
		assert.Equal(t, models.MatchTypeNoMatch, matches.MatchType)
	}
}

func TestSearch_NonBreakingSpaceWarning(t *testing.T) {
	engine, _ := newTestEngine(t)

	result, err := engine.Search(context.Background(), "nsclc\u00a0", nil)
	require.NoError(t, err)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "non-breaking space")
}

func TestNormalize_MergeRefDirect(t *testing.T) {
	engine, _ := newTestEngine(t)

	result, err := engine.Normalize(context.Background(), "ncit:C2926")
	require.NoError(t, err)

	assert.Equal(t, models.MatchTypeConceptID, result.MatchType)
	require.NotNil(t, result.Disease)
	assert.Equal(t, "ncit:C2926", result.Disease.ConceptID)
}

func TestNormalize_MemberResolvesToMergeRef(t *testing.T) {
	engine, _ := newTestEngine(t)

	result, err := engine.Normalize(context.Background(), "doid:3908")
	require.NoError(t, err)

	assert.Equal(t, models.MatchTypeConceptID, result.MatchType)
	require.NotNil(t, result.Disease)
	assert.Equal(t, "ncit:C2926", result.Disease.ConceptID)
}

func TestNormalize_AliasTier(t *testing.T) {
	engine, _ := newTestEngine(t)

	result, err := engine.Normalize(context.Background(), "nsclc")
	require.NoError(t, err)

	assert.Equal(t, models.MatchTypeAlias, result.MatchType)
	require.NotNil(t, result.Disease)
	assert.Equal(t, "ncit:C2926", result.Disease.ConceptID)
}

func TestNormalize_SingletonSynthesized(t *testing.T) {
	engine, _ := newTestEngine(t)

	result, err := engine.Normalize(context.Background(), "Intellectual Disability")
	require.NoError(t, err)

	assert.Equal(t, models.MatchTypeLabel, result.MatchType)
	require.NotNil(t, result.Disease)
	assert.Equal(t, "mondo:0001071", result.Disease.ConceptID)
	assert.Equal(t, "intellectual disability", result.Disease.Label)
}

func TestNormalize_TieWarnsAndPicksHighestPriority(t *testing.T) {
	engine, _ := newTestEngine(t)

	result, err := engine.Normalize(context.Background(), "shared alias")
	require.NoError(t, err)

	assert.Equal(t, models.MatchTypeAlias, result.MatchType)
	require.NotNil(t, result.Disease)
	assert.Equal(t, "mondo:0000111", result.Disease.ConceptID)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "2 distinct concepts")
}

// failingStore fails merged record lookups for one concept ID,
// simulating a storage outage.
type failingStore struct {
	*storagetest.Store
	failID string
	err    error
}

func (s *failingStore) GetMergedRecord(ctx context.Context, conceptID string) (*models.MergedRecord, error) {
	if strings.EqualFold(conceptID, s.failID) {
		return nil, s.err
	}
	return s.Store.GetMergedRecord(ctx, conceptID)
}

func TestNormalize_MergedLookupFailurePropagates(t *testing.T) {
	_, store := newTestEngine(t)
	failing := &failingStore{Store: store, failID: "ncit:C2926", err: errors.New("connection refused")}
	engine := NewEngine(failing, testLogger())

	t.Run("concept ID tier", func(t *testing.T) {
		_, err := engine.Normalize(context.Background(), "doid:3908")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("alias tier", func(t *testing.T) {
		_, err := engine.Normalize(context.Background(), "nsclc")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")
	})
}

func TestNormalize_DanglingMergeRefSynthesizes(t *testing.T) {
	engine, store := newTestEngine(t)
	store.Seed(models.SourceRecord{
		ConceptID:  "oncotree:ORPH",
		SourceName: models.SourceOncoTree,
		Label:      "orphaned member",
		MergeRef:   "ncit:C0000",
	})

	result, err := engine.Normalize(context.Background(), "oncotree:orph")
	require.NoError(t, err)

	assert.Equal(t, models.MatchTypeConceptID, result.MatchType)
	require.NotNil(t, result.Disease)
	assert.Equal(t, "oncotree:ORPH", result.Disease.ConceptID)
	assert.Equal(t, "orphaned member", result.Disease.Label)
}

func TestNormalize_NoMatch(t *testing.T) {
	engine, _ := newTestEngine(t)

	result, err := engine.Normalize(context.Background(), "definitely not a disease")
	require.NoError(t, err)

	assert.Equal(t, models.MatchTypeNoMatch, result.MatchType)
	assert.Nil(t, result.Disease)
}
