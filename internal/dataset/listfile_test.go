package dataset

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteListFile_Format(t *testing.T) {
	root := reindexedTree(t, []int{2, 1})

	var buf bytes.Buffer
	n, err := WriteListFile(&buf, root)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "0\t0\t000.cat00/000_0000.jpg", lines[0])
	assert.Equal(t, "1\t0\t000.cat00/000_0001.jpg", lines[1])
	assert.Equal(t, "2\t1\t001.cat01/001_0000.jpg", lines[2])
}

func TestListFile_RoundTrip(t *testing.T) {
	root := reindexedTree(t, []int{3, 2, 4})

	path := filepath.Join(t.TempDir(), "all.lst")
	n, err := WriteListFileTo(path, root)
	require.NoError(t, err)
	assert.Equal(t, 9, n)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	entries, err := ParseListFile(f)
	require.NoError(t, err)
	require.Len(t, entries, 9)

	require.NoError(t, ValidateListFile(root, entries))

	seen := make(map[int]bool)
	for _, entry := range entries {
		assert.False(t, seen[entry.Ordinal], "ordinal %d repeated", entry.Ordinal)
		seen[entry.Ordinal] = true
	}
}

func TestValidateListFile_MissingImage(t *testing.T) {
	root := reindexedTree(t, []int{2})

	var buf bytes.Buffer
	_, err := WriteListFile(&buf, root)
	require.NoError(t, err)

	entries, err := ParseListFile(&buf)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "000.cat00", "000_0001.jpg")))

	err = ValidateListFile(root, entries)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "000_0001.jpg")
}

func TestValidateListFile_DuplicateOrdinal(t *testing.T) {
	root := reindexedTree(t, []int{1})

	entries := []ListEntry{
		{Ordinal: 0, ClassIndex: 0, RelPath: "000.cat00/000_0000.jpg"},
		{Ordinal: 0, ClassIndex: 0, RelPath: "000.cat00/000_0000.jpg"},
	}

	err := ValidateListFile(root, entries)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate ordinal")
}

func TestParseListFile_Malformed(t *testing.T) {
	_, err := ParseListFile(strings.NewReader("0\t1\n"))
	require.Error(t, err)

	_, err = ParseListFile(strings.NewReader("x\t1\tfoo.jpg\n"))
	require.Error(t, err)

	entries, err := ParseListFile(strings.NewReader("0\t1\ta/b.jpg\n\n1\t2\tc/d.jpg\n"))
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestWriteListFile_UnindexedTree(t *testing.T) {
	root := makeCategoryTree(t, map[string]int{"raw": 1})

	var buf bytes.Buffer
	_, err := WriteListFile(&buf, root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "<index>.<name>")
}
