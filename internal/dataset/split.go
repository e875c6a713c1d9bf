package dataset

import (
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Splitter partitions each category's images into a training subset of fixed
// size and a validation remainder. The training subset is copied into a
// separate pool directory; the remainder stays in place. The full category
// tree therefore still holds every image after a split, which is what the
// validation channel publishes.
type Splitter struct {
	TrainPerCategory int
	Rand             *rand.Rand
}

func NewSplitter(trainPerCategory int, rnd *rand.Rand) *Splitter {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Splitter{TrainPerCategory: trainPerCategory, Rand: rnd}
}

// CategorySplit records which images of one category landed in each pool.
type CategorySplit struct {
	Category   string
	Train      []string
	Validation []string
}

type SplitSummary struct {
	Categories      []CategorySplit
	TrainCount      int
	ValidationCount int
}

// Split selects min(k, TrainPerCategory) images per category at random
// without replacement and copies them into trainDir under the same category
// folder. A category with fewer than TrainPerCategory images contributes all
// of its images to the training pool and has an empty validation remainder;
// that is expected, not an error.
func (s *Splitter) Split(root, trainDir string) (SplitSummary, error) {
	var summary SplitSummary

	dirs, err := listCategoryDirs(root)
	if err != nil {
		return summary, err
	}

	for _, dir := range dirs {
		entries, err := os.ReadDir(filepath.Join(root, dir))
		if err != nil {
			return summary, fmt.Errorf("failed to read category dir %s: %w", dir, err)
		}

		var files []string
		for _, entry := range entries {
			if !entry.IsDir() {
				files = append(files, entry.Name())
			}
		}
		sort.Strings(files)

		shuffled := make([]string, len(files))
		copy(shuffled, files)
		s.Rand.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		n := s.TrainPerCategory
		if len(shuffled) < n {
			n = len(shuffled)
		}

		selected := append([]string(nil), shuffled[:n]...)
		remainder := append([]string(nil), shuffled[n:]...)
		sort.Strings(selected)
		sort.Strings(remainder)

		for _, file := range selected {
			src := filepath.Join(root, dir, file)
			dst := filepath.Join(trainDir, dir, file)
			if err := copyFile(src, dst); err != nil {
				return summary, fmt.Errorf("failed to copy %s into training pool: %w", src, err)
			}
		}

		summary.Categories = append(summary.Categories, CategorySplit{
			Category:   dir,
			Train:      selected,
			Validation: remainder,
		})
		summary.TrainCount += len(selected)
		summary.ValidationCount += len(remainder)
	}

	slog.Info("split dataset", "categories", len(summary.Categories),
		"train_images", summary.TrainCount, "validation_remainder", summary.ValidationCount)

	return summary, nil
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", dst, err)
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	return nil
}
