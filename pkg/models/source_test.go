package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllSources_PriorityOrder(t *testing.T) {
	sources := AllSources()
	require.Len(t, sources, 5)
	for i := 1; i < len(sources); i++ {
		assert.Less(t, sources[i-1].Rank(), sources[i].Rank())
	}
	assert.Equal(t, SourceNCIt, sources[0])
	assert.Equal(t, SourceDO, sources[len(sources)-1])
}

func TestParseSourceName(t *testing.T) {
	src, ok := ParseSourceName("oncotree")
	require.True(t, ok)
	assert.Equal(t, SourceOncoTree, src)

	src, ok = ParseSourceName("NCIT")
	require.True(t, ok)
	assert.Equal(t, SourceNCIt, src)

	_, ok = ParseSourceName("mesh")
	assert.False(t, ok)
}

func TestSourceForConceptID(t *testing.T) {
	tests := []struct {
		conceptID string
		source    SourceName
		ok        bool
	}{
		{"ncit:C2926", SourceNCIt, true},
		{"NCIT:C2926", SourceNCIt, true},
		{"mondo:0005233", SourceMondo, true},
		{"DOID:3908", SourceDO, true},
		{"doid:3908", SourceDO, true},
		{"oncotree:NSCLC", SourceOncoTree, true},
		{"MIM:211980", SourceOMIM, true},
		{"umls:C0007131", "", false},
		{"no-colon", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.conceptID, func(t *testing.T) {
			src, ok := SourceForConceptID(tt.conceptID)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.source, src)
			}
		})
	}
}

func TestValidateConceptID(t *testing.T) {
	assert.NoError(t, ValidateConceptID("ncit:C2926", SourceNCIt))
	assert.Error(t, ValidateConceptID("mondo:0005233", SourceNCIt))
	assert.Error(t, ValidateConceptID("nonsense", SourceNCIt))
}

func TestMatchTypeForRef(t *testing.T) {
	// Tier order must strictly decrease across the ref types.
	prev := MatchTypeConceptID
	for _, ref := range RefTypes() {
		mt := MatchTypeForRef(ref)
		assert.Less(t, int(mt), int(prev))
		prev = mt
	}
	assert.Greater(t, int(prev), int(MatchTypeNoMatch))
}

func TestMatchTypeString(t *testing.T) {
	assert.Equal(t, "CONCEPT_ID", MatchTypeConceptID.String())
	assert.Equal(t, "LABEL", MatchTypeLabel.String())
	assert.Equal(t, "ALIAS", MatchTypeAlias.String())
	assert.Equal(t, "XREF", MatchTypeXref.String())
	assert.Equal(t, "ASSOCIATED_WITH", MatchTypeAssociatedWith.String())
	assert.Equal(t, "NO_MATCH", MatchTypeNoMatch.String())
}

func TestSourceRecord_HasRefValue(t *testing.T) {
	rec := SourceRecord{
		Label:   "Lung Non-Small Cell Carcinoma",
		Aliases: []string{"NSCLC"},
		Xrefs:   []string{"mondo:0005233"},
	}

	assert.True(t, rec.HasRefValue(RefTypeLabel, "lung non-small cell carcinoma"))
	assert.True(t, rec.HasRefValue(RefTypeAlias, "nsclc"))
	assert.True(t, rec.HasRefValue(RefTypeXref, "mondo:0005233"))
	assert.False(t, rec.HasRefValue(RefTypeAssociatedWith, "nsclc"))
	assert.False(t, rec.HasRefValue(RefTypeLabel, "lung"))
}
