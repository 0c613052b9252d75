package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vicc-go/disease-normalizer/pkg/models"
)

func TestResolveSources(t *testing.T) {
	t.Run("no filter means all sources", func(t *testing.T) {
		sources, err := resolveSources("", "")
		require.NoError(t, err)
		assert.Nil(t, sources)
	})

	t.Run("incl selects named sources", func(t *testing.T) {
		sources, err := resolveSources("ncit, mondo", "")
		require.NoError(t, err)
		assert.Equal(t, []models.SourceName{models.SourceNCIt, models.SourceMondo}, sources)
	})

	t.Run("excl removes named sources", func(t *testing.T) {
		sources, err := resolveSources("", "oncotree,do")
		require.NoError(t, err)
		assert.Equal(t, []models.SourceName{models.SourceNCIt, models.SourceMondo, models.SourceOMIM}, sources)
	})

	t.Run("incl and excl conflict", func(t *testing.T) {
		_, err := resolveSources("ncit", "mondo")
		require.Error(t, err)
	})

	t.Run("unknown source rejected", func(t *testing.T) {
		_, err := resolveSources("mesh", "")
		require.Error(t, err)

		_, err = resolveSources("", "mesh")
		require.Error(t, err)
	})
}
