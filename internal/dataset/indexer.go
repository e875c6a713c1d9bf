package dataset

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

// Category is a labeled group of same-class images after reindexing. Index is
// dense and 0-based; Dir is the renamed folder under the dataset root.
type Category struct {
	Name   string
	Index  int
	Dir    string
	Images []string
}

type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("dataset path %s does not exist", e.Path)
}

// indexedDirPattern matches folders that were already reindexed on a previous
// run, e.g. "007.beer-mug". The numeric prefix is stripped before assigning a
// fresh index so that repeated runs don't stack prefixes.
var indexedDirPattern = regexp.MustCompile(`^(\d{3})\.(.+)$`)

// Reindex assigns every category folder under root a dense 0-based index in
// lexicographic order, renames it to "<index>.<name>" (index zero padded to 3
// digits), then renames each image inside to "<index>_<imageIndex>.<ext>"
// (image index zero padded to 4 digits, lexicographic order).
//
// This is a one-way transform: original names are not recoverable afterwards.
// Index assignment is a function of enumeration position only, so adding or
// removing categories between runs reassigns indices. A failed rename aborts;
// callers should rebuild the tree from the source archive rather than resume.
func Reindex(root string) ([]Category, error) {
	dirs, err := listCategoryDirs(root)
	if err != nil {
		return nil, err
	}

	categories := make([]Category, 0, len(dirs))
	for i, dir := range dirs {
		name := categoryName(dir)

		newDir := filepath.Join(root, fmt.Sprintf("%03d.%s", i, name))
		oldDir := filepath.Join(root, dir)
		if oldDir != newDir {
			if err := os.Rename(oldDir, newDir); err != nil {
				return nil, fmt.Errorf("failed to rename category %s to %s: %w", oldDir, newDir, err)
			}
		}

		images, err := reindexImages(newDir, i)
		if err != nil {
			return nil, err
		}

		categories = append(categories, Category{
			Name:   name,
			Index:  i,
			Dir:    newDir,
			Images: images,
		})
	}

	slog.Info("reindexed dataset", "root", root, "categories", len(categories))

	return categories, nil
}

func reindexImages(dir string, categoryIndex int) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read category dir %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	renamed := make([]string, 0, len(files))
	for j, file := range files {
		newName := fmt.Sprintf("%03d_%04d%s", categoryIndex, j, filepath.Ext(file))
		if file != newName {
			if err := os.Rename(filepath.Join(dir, file), filepath.Join(dir, newName)); err != nil {
				return nil, fmt.Errorf("failed to rename image %s in %s: %w", file, dir, err)
			}
		}
		renamed = append(renamed, newName)
	}

	return renamed, nil
}

// MergeFieldData moves manually labeled field images from incomingDir into
// the matching category folders under root. Each subfolder of incomingDir
// must name an existing category (pre- or post-reindex name); an unknown
// category is an error so that mislabeled drops are caught before reindexing.
func MergeFieldData(root, incomingDir string) (int, error) {
	incoming, err := listCategoryDirs(incomingDir)
	if err != nil {
		return 0, err
	}

	existing, err := listCategoryDirs(root)
	if err != nil {
		return 0, err
	}
	byName := make(map[string]string, len(existing))
	for _, dir := range existing {
		byName[categoryName(dir)] = dir
	}

	moved := 0
	for _, dir := range incoming {
		target, ok := byName[categoryName(dir)]
		if !ok {
			return moved, fmt.Errorf("field data category %q does not match any existing category", dir)
		}

		entries, err := os.ReadDir(filepath.Join(incomingDir, dir))
		if err != nil {
			return moved, fmt.Errorf("failed to read field data dir %s: %w", dir, err)
		}

		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			src := filepath.Join(incomingDir, dir, entry.Name())
			// Prefix avoids clobbering an image with the same name already in
			// the category; reindexing renames everything anyway.
			dst := filepath.Join(root, target, "field_"+entry.Name())
			if err := os.Rename(src, dst); err != nil {
				return moved, fmt.Errorf("failed to move field image %s into %s: %w", src, target, err)
			}
			moved++
		}
	}

	slog.Info("merged field data", "root", root, "images", moved)

	return moved, nil
}

func listCategoryDirs(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{Path: root}
		}
		return nil, fmt.Errorf("failed to read dataset root %s: %w", root, err)
	}

	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, entry.Name())
		}
	}
	// os.ReadDir sorts by name, but the ordering is a correctness requirement
	// here, not a convenience, so it is enforced explicitly.
	sort.Strings(dirs)

	return dirs, nil
}

func categoryName(dir string) string {
	if m := indexedDirPattern.FindStringSubmatch(dir); m != nil {
		if _, err := strconv.Atoi(m[1]); err == nil {
			return m[2]
		}
	}
	return dir
}

// ClassIndex parses the numeric index out of a reindexed category folder name.
func ClassIndex(dir string) (int, error) {
	m := indexedDirPattern.FindStringSubmatch(filepath.Base(dir))
	if m == nil {
		return 0, fmt.Errorf("category dir %q is not in <index>.<name> form", dir)
	}
	return strconv.Atoi(m[1])
}
