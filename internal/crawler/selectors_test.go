package crawler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSelectors(t *testing.T) {
	sel, err := LoadSelectors("")
	require.NoError(t, err)
	assert.Equal(t, DefaultSelectors(), sel)

	path := filepath.Join(t.TempDir(), "selectors.yaml")
	content := "price: \".listing-price\"\noverview_row: \"tr.overview\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	sel, err = LoadSelectors(path)
	require.NoError(t, err)
	assert.Equal(t, ".listing-price", sel.Price)
	assert.Equal(t, "tr.overview", sel.OverviewRow)
	assert.Equal(t, DefaultSelectors().Title, sel.Title)
}

func TestLoadSelectorsErrors(t *testing.T) {
	_, err := LoadSelectors(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("price: [unclosed"), 0644))
	_, err = LoadSelectors(path)
	assert.Error(t, err)
}
