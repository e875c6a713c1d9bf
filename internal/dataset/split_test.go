package dataset

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reindexedTree(t *testing.T, counts []int) string {
	t.Helper()
	categories := make(map[string]int, len(counts))
	for i, count := range counts {
		categories[fmt.Sprintf("cat%02d", i)] = count
	}
	root := makeCategoryTree(t, categories)
	_, err := Reindex(root)
	require.NoError(t, err)
	return root
}

func TestSplit_PoolSizes(t *testing.T) {
	root := reindexedTree(t, []int{10, 3, 7})
	trainDir := t.TempDir()

	splitter := NewSplitter(5, rand.New(rand.NewSource(1)))
	summary, err := splitter.Split(root, trainDir)
	require.NoError(t, err)

	require.Len(t, summary.Categories, 3)
	assert.Len(t, summary.Categories[0].Train, 5)
	assert.Len(t, summary.Categories[0].Validation, 5)
	assert.Len(t, summary.Categories[1].Train, 3)
	assert.Empty(t, summary.Categories[1].Validation)
	assert.Len(t, summary.Categories[2].Train, 5)
	assert.Len(t, summary.Categories[2].Validation, 2)

	assert.Equal(t, 13, summary.TrainCount)
	assert.Equal(t, 7, summary.ValidationCount)
}

func TestSplit_PoolsAreDisjointAndExhaustive(t *testing.T) {
	root := reindexedTree(t, []int{9})
	trainDir := t.TempDir()

	splitter := NewSplitter(4, rand.New(rand.NewSource(7)))
	summary, err := splitter.Split(root, trainDir)
	require.NoError(t, err)

	cat := summary.Categories[0]
	union := append(append([]string(nil), cat.Train...), cat.Validation...)
	sort.Strings(union)

	var all []string
	for i := 0; i < 9; i++ {
		all = append(all, fmt.Sprintf("000_%04d.jpg", i))
	}
	assert.Equal(t, all, union)

	for _, img := range cat.Train {
		assert.NotContains(t, cat.Validation, img)
	}
}

func TestSplit_CopiesTrainingPool(t *testing.T) {
	root := reindexedTree(t, []int{4})
	trainDir := t.TempDir()

	splitter := NewSplitter(2, rand.New(rand.NewSource(3)))
	summary, err := splitter.Split(root, trainDir)
	require.NoError(t, err)

	cat := summary.Categories[0]
	for _, img := range cat.Train {
		want, err := os.ReadFile(filepath.Join(root, cat.Category, img))
		require.NoError(t, err)
		got, err := os.ReadFile(filepath.Join(trainDir, cat.Category, img))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	// The full category tree keeps every image; the validation channel is
	// published from it.
	entries, err := os.ReadDir(filepath.Join(root, cat.Category))
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}

func TestSplit_SeededSelectionIsReproducible(t *testing.T) {
	counts := []int{8, 8}

	rootA := reindexedTree(t, counts)
	rootB := reindexedTree(t, counts)

	summaryA, err := NewSplitter(3, rand.New(rand.NewSource(42))).Split(rootA, t.TempDir())
	require.NoError(t, err)
	summaryB, err := NewSplitter(3, rand.New(rand.NewSource(42))).Split(rootB, t.TempDir())
	require.NoError(t, err)

	for i := range summaryA.Categories {
		assert.Equal(t, summaryA.Categories[i].Train, summaryB.Categories[i].Train)
	}
}

// Scenario: five categories with exactly trainPerCategory images each. Every
// image lands in the training pool and both list files enumerate all of them.
func TestSplit_ExactFitCategories(t *testing.T) {
	root := reindexedTree(t, []int{60, 60, 60, 60, 60})
	trainDir := t.TempDir()

	splitter := NewSplitter(60, rand.New(rand.NewSource(11)))
	summary, err := splitter.Split(root, trainDir)
	require.NoError(t, err)

	assert.Equal(t, 300, summary.TrainCount)
	assert.Equal(t, 0, summary.ValidationCount)
	for _, cat := range summary.Categories {
		assert.Empty(t, cat.Validation)
	}

	trainEntries, err := WriteListFileTo(filepath.Join(t.TempDir(), "train.lst"), trainDir)
	require.NoError(t, err)
	assert.Equal(t, 300, trainEntries)

	validationEntries, err := WriteListFileTo(filepath.Join(t.TempDir(), "validation.lst"), root)
	require.NoError(t, err)
	assert.Equal(t, 300, validationEntries)
}

// Scenario: a category smaller than trainPerCategory contributes everything
// to the training pool.
func TestSplit_UndersizedCategory(t *testing.T) {
	root := reindexedTree(t, []int{45})
	trainDir := t.TempDir()

	splitter := NewSplitter(60, rand.New(rand.NewSource(13)))
	summary, err := splitter.Split(root, trainDir)
	require.NoError(t, err)

	require.Len(t, summary.Categories, 1)
	assert.Len(t, summary.Categories[0].Train, 45)
	assert.Empty(t, summary.Categories[0].Validation)

	listPath := filepath.Join(t.TempDir(), "train.lst")
	n, err := WriteListFileTo(listPath, trainDir)
	require.NoError(t, err)
	assert.Equal(t, 45, n)

	f, err := os.Open(listPath)
	require.NoError(t, err)
	defer f.Close()

	entries, err := ParseListFile(f)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.Equal(t, 0, entry.ClassIndex)
	}
}
