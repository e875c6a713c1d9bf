package dataset

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ListEntry is one row of a list file: a globally unique ordinal within the
// file, the class index of the image's category, and the image path relative
// to the list file's declared root.
type ListEntry struct {
	Ordinal    int
	ClassIndex int
	RelPath    string
}

// WriteListFile walks the reindexed category tree under root in sorted order
// and writes one tab-separated line per image:
//
//	<ordinal>\t<classIndex>\t<relative_path>
//
// Ordinals are dense and 0-based within the file. The class index is parsed
// from the category folder's numeric prefix, so root must already be
// reindexed. Returns the number of entries written.
func WriteListFile(w io.Writer, root string) (int, error) {
	dirs, err := listCategoryDirs(root)
	if err != nil {
		return 0, err
	}

	bw := bufio.NewWriter(w)
	ordinal := 0
	for _, dir := range dirs {
		classIndex, err := ClassIndex(dir)
		if err != nil {
			return ordinal, err
		}

		entries, err := os.ReadDir(filepath.Join(root, dir))
		if err != nil {
			return ordinal, fmt.Errorf("failed to read category dir %s: %w", dir, err)
		}

		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			relPath := filepath.ToSlash(filepath.Join(dir, entry.Name()))
			if _, err := fmt.Fprintf(bw, "%d\t%d\t%s\n", ordinal, classIndex, relPath); err != nil {
				return ordinal, fmt.Errorf("failed to write list entry for %s: %w", relPath, err)
			}
			ordinal++
		}
	}

	if err := bw.Flush(); err != nil {
		return ordinal, fmt.Errorf("failed to flush list file: %w", err)
	}

	return ordinal, nil
}

// WriteListFileTo is WriteListFile with a file destination.
func WriteListFileTo(path, root string) (int, error) {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return 0, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create list file %s: %w", path, err)
	}
	defer f.Close()

	return WriteListFile(f, root)
}

// ParseListFile reads list entries back from r. Malformed lines are an
// error: the list file is the authoritative sample enumeration, so a bad row
// means the dataset is unusable.
func ParseListFile(r io.Reader) ([]ListEntry, error) {
	var entries []ListEntry

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if text == "" {
			continue
		}

		fields := strings.Split(text, "\t")
		if len(fields) != 3 {
			return nil, fmt.Errorf("malformed list file line %d: expected 3 tab-separated fields, got %d", line, len(fields))
		}

		ordinal, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("malformed ordinal on list file line %d: %w", line, err)
		}
		classIndex, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("malformed class index on list file line %d: %w", line, err)
		}

		entries = append(entries, ListEntry{Ordinal: ordinal, ClassIndex: classIndex, RelPath: fields[2]})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read list file: %w", err)
	}

	return entries, nil
}

// ValidateListFile checks the invariants the training service assumes:
// ordinals are pairwise distinct and every relative path resolves to an
// existing file under root.
func ValidateListFile(root string, entries []ListEntry) error {
	seen := make(map[int]struct{}, len(entries))
	for _, entry := range entries {
		if _, dup := seen[entry.Ordinal]; dup {
			return fmt.Errorf("duplicate ordinal %d in list file", entry.Ordinal)
		}
		seen[entry.Ordinal] = struct{}{}

		path := filepath.Join(root, filepath.FromSlash(entry.RelPath))
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("list entry %d references missing image %s: %w", entry.Ordinal, entry.RelPath, err)
		}
		if info.IsDir() {
			return fmt.Errorf("list entry %d references a directory, not an image: %s", entry.Ordinal, entry.RelPath)
		}
	}
	return nil
}
