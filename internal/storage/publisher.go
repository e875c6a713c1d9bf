package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
)

// The four channel names the training service consumes, plus the drop point
// where field-collected images arrive after manual labeling.
const (
	ChannelTrain          = "train"
	ChannelValidation     = "validation"
	ChannelTrainList      = "train_lst"
	ChannelValidationList = "validation_lst"

	FieldDataPrefix = "labeled_field_data"

	datasetRoot       = "datasets"
	currentPointerKey = "datasets/current"
)

// ChannelError reports which of the four dataset channels failed, so partial
// publication state is diagnosable.
type ChannelError struct {
	Channel string
	Err     error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("failed to publish channel %s: %v", e.Channel, e.Err)
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}

// DatasetLocations are the published key prefixes of one dataset cycle, one
// per channel.
type DatasetLocations struct {
	Train          string
	Validation     string
	TrainList      string
	ValidationList string
}

// Publisher pushes a prepared dataset to the blob store. Each cycle uploads
// under a fresh datasets/<runID>/ prefix and only flips the current-dataset
// pointer after all four channels are uploaded and verified, so a partial
// failure never clobbers the dataset a running job may be reading. Callers
// must serialize publish cycles against the same bucket (single writer).
type Publisher struct {
	store        ObjectStore
	bucket       string
	ShowProgress bool
}

func NewPublisher(store ObjectStore, bucket string) *Publisher {
	return &Publisher{store: store, bucket: bucket}
}

// Publish uploads the training pool directory, the full category tree, and
// the two list files, verifies object counts per channel, then updates the
// current-dataset pointer to runID.
func (p *Publisher) Publish(ctx context.Context, runID, trainDir, validationDir, trainListPath, validationListPath string) (DatasetLocations, error) {
	locations := DatasetLocations{
		Train:          path.Join(datasetRoot, runID, ChannelTrain) + "/",
		Validation:     path.Join(datasetRoot, runID, ChannelValidation) + "/",
		TrainList:      path.Join(datasetRoot, runID, ChannelTrainList) + "/",
		ValidationList: path.Join(datasetRoot, runID, ChannelValidationList) + "/",
	}

	if err := p.uploadDir(ctx, ChannelTrain, locations.Train, trainDir); err != nil {
		return locations, err
	}
	if err := p.uploadDir(ctx, ChannelValidation, locations.Validation, validationDir); err != nil {
		return locations, err
	}
	if err := p.uploadFile(ctx, ChannelTrainList, locations.TrainList+"train.lst", trainListPath); err != nil {
		return locations, err
	}
	if err := p.uploadFile(ctx, ChannelValidationList, locations.ValidationList+"validation.lst", validationListPath); err != nil {
		return locations, err
	}

	if err := p.store.PutObject(ctx, p.bucket, currentPointerKey, strings.NewReader(runID)); err != nil {
		return locations, fmt.Errorf("failed to update current dataset pointer: %w", err)
	}

	slog.Info("dataset published", "bucket", p.bucket, "run_id", runID)

	return locations, nil
}

// CurrentDataset returns the runID the pointer object references, or "" if no
// dataset has been published yet.
func (p *Publisher) CurrentDataset(ctx context.Context) (string, error) {
	r, err := p.store.GetObject(ctx, p.bucket, currentPointerKey)
	if err != nil {
		return "", nil
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read current dataset pointer: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// PruneSuperseded deletes every dataset cycle except keepRunID. Run after a
// successful publish to reclaim the previous cycle's storage.
func (p *Publisher) PruneSuperseded(ctx context.Context, keepRunID string) error {
	objects, err := p.store.ListObjects(ctx, p.bucket, datasetRoot+"/")
	if err != nil {
		return fmt.Errorf("failed to list dataset cycles: %w", err)
	}

	keep := path.Join(datasetRoot, keepRunID) + "/"
	stale := make(map[string]struct{})
	for _, obj := range objects {
		if obj.Name == currentPointerKey || strings.HasPrefix(obj.Name, keep) {
			continue
		}

		rest := strings.TrimPrefix(obj.Name, datasetRoot+"/")
		if id, _, ok := strings.Cut(rest, "/"); ok {
			stale[id] = struct{}{}
		}
	}

	for id := range stale {
		prefix := path.Join(datasetRoot, id) + "/"
		if err := p.store.DeleteObjects(ctx, p.bucket, prefix); err != nil {
			return fmt.Errorf("failed to prune superseded dataset %s: %w", id, err)
		}
		slog.Info("pruned superseded dataset", "bucket", p.bucket, "run_id", id)
	}

	return nil
}

// DownloadFieldData syncs the labeled field-data drop point into dest.
func (p *Publisher) DownloadFieldData(ctx context.Context, dest string) error {
	if err := p.store.DownloadDir(ctx, p.bucket, FieldDataPrefix, dest, true); err != nil {
		return fmt.Errorf("failed to download field data: %w", err)
	}
	return nil
}

// ClearFieldData removes consumed field images from the drop point after a
// successful retraining cycle.
func (p *Publisher) ClearFieldData(ctx context.Context) error {
	if err := p.store.DeleteObjects(ctx, p.bucket, FieldDataPrefix+"/"); err != nil {
		return fmt.Errorf("failed to clear field data: %w", err)
	}
	return nil
}

func (p *Publisher) uploadDir(ctx context.Context, channel, prefix, src string) error {
	var files []string
	err := filepath.Walk(src, func(fp string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			files = append(files, fp)
		}
		return nil
	})
	if err != nil {
		return &ChannelError{Channel: channel, Err: fmt.Errorf("failed to walk %s: %w", src, err)}
	}

	var bar *progressbar.ProgressBar
	if p.ShowProgress {
		bar = progressbar.NewOptions(len(files),
			progressbar.OptionSetDescription(fmt.Sprintf("uploading %s", channel)),
			progressbar.OptionSetWidth(30),
			progressbar.OptionClearOnFinish(),
		)
	}

	for _, fp := range files {
		rel, err := filepath.Rel(src, fp)
		if err != nil {
			return &ChannelError{Channel: channel, Err: err}
		}
		key := prefix + filepath.ToSlash(rel)

		file, err := os.Open(fp)
		if err != nil {
			return &ChannelError{Channel: channel, Err: err}
		}

		err = p.store.PutObject(ctx, p.bucket, key, file)
		file.Close()
		if err != nil {
			return &ChannelError{Channel: channel, Err: err}
		}

		if bar != nil {
			bar.Add(1) // nolint:errcheck
		}
	}

	// Verify before the pointer swap: the uploaded object count must match
	// the local file count.
	objects, err := p.store.ListObjects(ctx, p.bucket, prefix)
	if err != nil {
		return &ChannelError{Channel: channel, Err: fmt.Errorf("failed to verify upload: %w", err)}
	}
	if len(objects) != len(files) {
		return &ChannelError{Channel: channel, Err: fmt.Errorf("upload verification failed: %d objects uploaded, %d local files", len(objects), len(files))}
	}

	return nil
}

func (p *Publisher) uploadFile(ctx context.Context, channel, key, src string) error {
	file, err := os.Open(src)
	if err != nil {
		return &ChannelError{Channel: channel, Err: err}
	}
	defer file.Close()

	if err := p.store.PutObject(ctx, p.bucket, key, file); err != nil {
		return &ChannelError{Channel: channel, Err: err}
	}

	return nil
}
