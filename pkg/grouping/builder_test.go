package grouping

import (
	"context"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vicc-go/disease-normalizer/pkg/models"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func rec(id string, source models.SourceName, xrefs ...string) models.SourceRecord {
	return models.SourceRecord{
		ConceptID:  id,
		SourceName: source,
		Xrefs:      xrefs,
	}
}

func TestBuildGroups_ConnectedComponent(t *testing.T) {
	builder := NewBuilder(testLogger())

	records := []models.SourceRecord{
		rec("mondo:0005233", models.SourceMondo, "ncit:C2926", "DOID:3908"),
		rec("ncit:C2926", models.SourceNCIt),
		rec("DOID:3908", models.SourceDO, "ncit:C2926"),
	}

	result, err := builder.BuildGroups(context.Background(), records)
	require.NoError(t, err)

	require.Len(t, result.Groups, 1)
	group := result.Groups[0]
	assert.Equal(t, "ncit:C2926", group.MergeRef)
	assert.Equal(t, []string{"ncit:C2926", "mondo:0005233", "DOID:3908"}, group.Members)
	assert.True(t, result.Report.Empty())
}

func TestBuildGroups_SingletonHasNoGroup(t *testing.T) {
	builder := NewBuilder(testLogger())

	result, err := builder.BuildGroups(context.Background(), []models.SourceRecord{
		rec("ncit:C9999", models.SourceNCIt),
	})
	require.NoError(t, err)

	assert.Empty(t, result.Groups)
	assert.Len(t, result.Records, 1)
}

func TestBuildGroups_DanglingXref(t *testing.T) {
	builder := NewBuilder(testLogger())

	result, err := builder.BuildGroups(context.Background(), []models.SourceRecord{
		rec("ncit:C1111", models.SourceNCIt, "mondo:0099999"),
	})
	require.NoError(t, err)

	assert.Empty(t, result.Groups)
	assert.Equal(t, 1, result.Report.DanglingXrefs)
}

func TestBuildGroups_SelfXref(t *testing.T) {
	builder := NewBuilder(testLogger())

	result, err := builder.BuildGroups(context.Background(), []models.SourceRecord{
		rec("ncit:C1111", models.SourceNCIt, "NCIT:C1111"),
	})
	require.NoError(t, err)

	assert.Empty(t, result.Groups)
	assert.Equal(t, 1, result.Report.SelfXrefs)
}

func TestBuildGroups_UnknownSourceDropped(t *testing.T) {
	builder := NewBuilder(testLogger())

	result, err := builder.BuildGroups(context.Background(), []models.SourceRecord{
		rec("ncit:C1111", models.SourceNCIt),
		rec("mesh:D000001", models.SourceName("MeSH")),
	})
	require.NoError(t, err)

	assert.Len(t, result.Records, 1)
	assert.Equal(t, 1, result.Report.UnknownSourceMembers)
}

func TestBuildGroups_DuplicateConceptIDs(t *testing.T) {
	builder := NewBuilder(testLogger())

	result, err := builder.BuildGroups(context.Background(), []models.SourceRecord{
		{ConceptID: "ncit:C1111", SourceName: models.SourceNCIt, Label: "first"},
		{ConceptID: "NCIT:c1111", SourceName: models.SourceNCIt, Label: "second"},
	})
	require.NoError(t, err)

	require.Len(t, result.Records, 1)
	assert.Equal(t, 1, result.Report.DuplicateConceptIDs)
}

func TestBuildGroups_CaseInsensitiveEdges(t *testing.T) {
	builder := NewBuilder(testLogger())

	result, err := builder.BuildGroups(context.Background(), []models.SourceRecord{
		rec("ncit:C2926", models.SourceNCIt),
		rec("mondo:0005233", models.SourceMondo, "NCIT:C2926"),
	})
	require.NoError(t, err)

	require.Len(t, result.Groups, 1)
	assert.Equal(t, "ncit:C2926", result.Groups[0].MergeRef)
}

func TestBuildGroups_SameSourceComponent(t *testing.T) {
	builder := NewBuilder(testLogger())

	result, err := builder.BuildGroups(context.Background(), []models.SourceRecord{
		rec("ncit:C1", models.SourceNCIt, "ncit:C2"),
		rec("ncit:C2", models.SourceNCIt),
	})
	require.NoError(t, err)

	require.Len(t, result.Groups, 1)
	assert.Equal(t, 1, result.Report.SameSourceComponents)
}

func TestBuildGroups_TransitiveClosure(t *testing.T) {
	builder := NewBuilder(testLogger())

	// a-b and b-c connect a, b, c even though a and c never reference
	// each other.
	result, err := builder.BuildGroups(context.Background(), []models.SourceRecord{
		rec("DOID:1", models.SourceDO, "mondo:0000002"),
		rec("mondo:0000002", models.SourceMondo, "ncit:C3"),
		rec("ncit:C3", models.SourceNCIt),
	})
	require.NoError(t, err)

	require.Len(t, result.Groups, 1)
	assert.Equal(t, "ncit:C3", result.Groups[0].MergeRef)
	assert.Len(t, result.Groups[0].Members, 3)
}

func TestBuildGroups_Deterministic(t *testing.T) {
	builder := NewBuilder(testLogger())

	records := []models.SourceRecord{
		rec("DOID:3908", models.SourceDO, "ncit:C2926"),
		rec("oncotree:NSCLC", models.SourceOncoTree, "ncit:C2926"),
		rec("ncit:C2926", models.SourceNCIt),
		rec("mondo:0005233", models.SourceMondo, "DOID:3908"),
		rec("MIM:211980", models.SourceOMIM, "mondo:0005233"),
	}

	first, err := builder.BuildGroups(context.Background(), records)
	require.NoError(t, err)

	// Same snapshot in a different order produces identical groups.
	reversed := make([]models.SourceRecord, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		reversed = append(reversed, records[i])
	}
	second, err := builder.BuildGroups(context.Background(), reversed)
	require.NoError(t, err)

	assert.Equal(t, first.Groups, second.Groups)
	require.Len(t, first.Groups, 1)
	assert.Equal(t, []string{
		"ncit:C2926", "mondo:0005233", "MIM:211980", "oncotree:NSCLC", "DOID:3908",
	}, first.Groups[0].Members)
}
