package etl

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vicc-go/disease-normalizer/pkg/models"
)

func TestTermSource_Transform(t *testing.T) {
	export := strings.Join([]string{
		`{"concept_id": "MONDO:0005233", "label": "non-small cell lung carcinoma", "aliases": ["NSCLC"], "xrefs": ["NCIT:C2926", "DOID:3908", "umls:C0007131", "mesh:D002289"]}`,
		``,
		`{"concept_id": "mondo:0001071", "label": "intellectual disability", "pediatric_disease": true}`,
	}, "\n")

	src := NewMondo()
	records, err := src.Transform(context.Background(), strings.NewReader(export))
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "mondo:0005233", first.ConceptID)
	assert.Equal(t, "non-small cell lung carcinoma", first.Label)
	assert.Equal(t, []string{"NSCLC"}, first.Aliases)

	// Ingested-namespace references stay xrefs with canonical prefixes;
	// external vocabularies route to associated_with.
	assert.Equal(t, []string{"ncit:C2926", "DOID:3908"}, first.Xrefs)
	assert.Equal(t, []string{"umls:C0007131", "mesh:D002289"}, first.AssociatedWith)

	second := records[1]
	require.NotNil(t, second.PediatricDisease)
	assert.True(t, *second.PediatricDisease)
}

func TestTermSource_TransformBadLine(t *testing.T) {
	src := NewNCIt()
	_, err := src.Transform(context.Background(), strings.NewReader(`{"concept_id": `))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")
}

func TestNormalizeRef(t *testing.T) {
	tests := []struct {
		raw      string
		want     string
		ingested bool
	}{
		{"NCIT:C2926", "ncit:C2926", true},
		{"MONDO:0005233", "mondo:0005233", true},
		{"doid:3908", "DOID:3908", true},
		{"OMIM:211980", "MIM:211980", true},
		{"mim:211980", "MIM:211980", true},
		{"ONCOTREE:NSCLC", "oncotree:NSCLC", true},
		{"UMLS:C0007131", "umls:C0007131", false},
		{"mesh:D002289", "mesh:D002289", false},
		{"no-prefix", "no-prefix", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ingested := normalizeRef(tt.raw)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ingested, ingested)
		})
	}
}

func TestSourceConstructors(t *testing.T) {
	tests := []struct {
		src  Source
		name models.SourceName
	}{
		{NewNCIt(), models.SourceNCIt},
		{NewMondo(), models.SourceMondo},
		{NewDO(), models.SourceDO},
		{NewOMIM(), models.SourceOMIM},
		{NewOncoTree(), models.SourceOncoTree},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.name, tt.src.Name())
		assert.NotEmpty(t, tt.src.Meta().DataLicense)
	}
}
