package optimizer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptimize_EmptyQueryUnchanged(t *testing.T) {
	o := New()
	assert.Equal(t, "", o.Optimize(""))
	assert.Equal(t, "   ", o.Optimize("   "))
}

func TestOptimize_BooleanQueriesUntouched(t *testing.T) {
	o := New()
	assert.Equal(t, "backend engineer OR product manager", o.Optimize("backend engineer OR product manager"))
	assert.Equal(t, "java AND remote", o.Optimize("java AND remote"))
}

func TestOptimize_AbbreviationExpansion(t *testing.T) {
	o := New()
	assert.Equal(t, "senior software engineer", o.Optimize("swe"))
}

func TestOptimize_WordPrefixMatch(t *testing.T) {
	o := New()
	assert.Equal(t, "senior frontend developer", o.Optimize("front dev"))
	assert.Equal(t, "senior frontend developer", o.Optimize("frontend dev"))
}

func TestOptimize_ExactPhraseUnchanged(t *testing.T) {
	o := New()
	// Already a taxonomy phrase with no longer sibling containing it.
	assert.Equal(t, "data scientist", o.Optimize("data scientist"))
}

func TestOptimize_NoMatchUnchanged(t *testing.T) {
	o := New()
	assert.Equal(t, "underwater basket weaver", o.Optimize("underwater basket weaver"))
}

func TestOptimize_Deterministic(t *testing.T) {
	o := New()
	first := o.Optimize("swe")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, o.Optimize("swe"))
	}
}

func TestSuggest_ReturnsDistinctCandidates(t *testing.T) {
	o := New()

	suggestions := o.Suggest("swe")
	require.NotEmpty(t, suggestions)
	assert.LessOrEqual(t, len(suggestions), 5)

	seen := make(map[string]bool)
	for _, s := range suggestions {
		assert.NotEqual(t, "swe", s)
		assert.False(t, seen[s], "duplicate suggestion %q", s)
		seen[s] = true
	}
	assert.Contains(t, suggestions, "software engineer")
}

func TestSuggest_EmptyForBooleanQuery(t *testing.T) {
	o := New()
	assert.Nil(t, o.Suggest("backend OR frontend"))
}

func TestLoadTaxonomy_MergesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taxonomy.yaml")
	content := `
categories:
  - key: embedded
    phrases:
      - embedded engineer
      - firmware engineer
abbreviations:
  swe: staff engineer
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	tax, err := LoadTaxonomy(path)
	require.NoError(t, err)

	o := NewWithTaxonomy(tax)
	assert.Equal(t, "embedded engineer", o.Optimize("embedded"))
	// Built-in categories survive the merge.
	assert.Equal(t, "senior frontend developer", o.Optimize("frontend dev"))
	// Overridden abbreviation applies.
	assert.Equal(t, "staff engineer", tax.Abbreviations["swe"])
}

func TestLoadTaxonomy_MissingFile(t *testing.T) {
	_, err := LoadTaxonomy(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
