package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"vision-backend/internal/config"
	"vision-backend/internal/database"
	"vision-backend/internal/dataset"
	"vision-backend/internal/storage"
	"vision-backend/internal/training"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Pipeline runs one full cycle: dataset preparation, publication, job
// submission, and the blocking wait on the remote job. Cycles against the
// same bucket must be serialized by the caller (single writer); the stages
// themselves are sequential and blocking by design.
type Pipeline struct {
	db           *gorm.DB
	publisher    *storage.Publisher
	orchestrator *training.Orchestrator
	splitter     *dataset.Splitter
	cfg          *config.Config
}

func New(db *gorm.DB, publisher *storage.Publisher, orchestrator *training.Orchestrator, cfg *config.Config) *Pipeline {
	var rnd *rand.Rand
	if cfg.SplitSeed != 0 {
		rnd = rand.New(rand.NewSource(cfg.SplitSeed))
	}

	return &Pipeline{
		db:           db,
		publisher:    publisher,
		orchestrator: orchestrator,
		splitter:     dataset.NewSplitter(cfg.TrainPerCategory, rnd),
		cfg:          cfg,
	}
}

// InitialRun prepares the dataset from the local category tree and trains the
// first model.
func (p *Pipeline) InitialRun(ctx context.Context) (*database.TrainingRun, error) {
	run, err := database.CreateTrainingRun(ctx, p.db, false)
	if err != nil {
		return nil, err
	}
	return run, p.execute(ctx, run)
}

// Retrain merges field-collected images into the category tree, rebuilds the
// dataset, and trains a replacement model.
func (p *Pipeline) Retrain(ctx context.Context) (*database.TrainingRun, error) {
	run, err := database.CreateTrainingRun(ctx, p.db, true)
	if err != nil {
		return nil, err
	}
	return run, p.execute(ctx, run)
}

// ExecuteQueued runs an already-recorded retraining cycle; the worker calls
// this for runs queued through the API.
func (p *Pipeline) ExecuteQueued(ctx context.Context, runId uuid.UUID) error {
	run, err := database.GetTrainingRun(ctx, p.db, runId)
	if err != nil {
		return fmt.Errorf("failed to load training run %s: %w", runId, err)
	}
	return p.execute(ctx, run)
}

func (p *Pipeline) execute(ctx context.Context, run *database.TrainingRun) error {
	if err := p.prepareAndSubmit(ctx, run); err != nil {
		p.recordFailure(ctx, run.Id, err)
		return err
	}
	return nil
}

func (p *Pipeline) prepareAndSubmit(ctx context.Context, run *database.TrainingRun) error {
	if err := database.UpdateTrainingRunStatus(ctx, p.db, run.Id, database.RunPreparing); err != nil {
		return err
	}

	if run.Retrain {
		incoming, err := os.MkdirTemp("", "field-data-*")
		if err != nil {
			return fmt.Errorf("failed to create field data staging dir: %w", err)
		}
		defer os.RemoveAll(incoming)

		if err := p.publisher.DownloadFieldData(ctx, incoming); err != nil {
			return err
		}

		moved, err := dataset.MergeFieldData(p.cfg.DataDir, incoming)
		if err != nil {
			return err
		}
		slog.Info("field data merged for retraining", "run_id", run.Id, "images", moved)
	}

	categories, err := dataset.Reindex(p.cfg.DataDir)
	if err != nil {
		return err
	}
	if len(categories) == 0 {
		return fmt.Errorf("dataset root %s contains no category folders", p.cfg.DataDir)
	}

	workDir, err := os.MkdirTemp("", "dataset-*")
	if err != nil {
		return fmt.Errorf("failed to create dataset staging dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	trainDir := filepath.Join(workDir, "train")
	summary, err := p.splitter.Split(p.cfg.DataDir, trainDir)
	if err != nil {
		return err
	}

	trainList := filepath.Join(workDir, "train.lst")
	if _, err := dataset.WriteListFileTo(trainList, trainDir); err != nil {
		return err
	}
	validationList := filepath.Join(workDir, "validation.lst")
	validationEntries, err := dataset.WriteListFileTo(validationList, p.cfg.DataDir)
	if err != nil {
		return err
	}

	if err := p.verifyListFile(trainList, trainDir); err != nil {
		return err
	}
	if err := p.verifyListFile(validationList, p.cfg.DataDir); err != nil {
		return err
	}

	if err := database.RecordDatasetStats(ctx, p.db, run.Id, len(categories), summary.TrainCount, summary.ValidationCount); err != nil {
		return err
	}

	locations, err := p.publisher.Publish(ctx, run.Id.String(), trainDir, p.cfg.DataDir, trainList, validationList)
	if err != nil {
		return err
	}
	if err := database.UpdateTrainingRunStatus(ctx, p.db, run.Id, database.RunPublished); err != nil {
		return err
	}

	hyper := p.hyperParameters(summary.TrainCount, len(categories))
	if err := hyper.Validate(); err != nil {
		return err
	}

	jobName := training.JobName(p.cfg.JobNamePrefix, time.Now())
	if err := database.RecordJobName(ctx, p.db, run.Id, jobName, locations.Train); err != nil {
		return err
	}

	spec := training.JobSpec{
		Name:          jobName,
		RoleARN:       p.cfg.SageMakerRoleARN,
		TrainingImage: p.cfg.TrainingImage,
		Channels: training.ImageChannels(
			p.channelURI(locations.Train),
			p.channelURI(locations.Validation),
			p.channelURI(locations.TrainList),
			p.channelURI(locations.ValidationList),
		),
		HyperParameters: hyper.Strings(),
		Resources: training.ResourceRequest{
			InstanceCount: p.cfg.TrainingInstanceCount,
			InstanceType:  p.cfg.TrainingInstanceType,
			VolumeSizeGB:  p.cfg.TrainingVolumeGB,
		},
		MaxRuntime:     p.cfg.TrainingMaxRuntime,
		OutputLocation: p.cfg.OutputLocation,
	}

	if err := database.UpdateTrainingRunStatus(ctx, p.db, run.Id, database.RunTraining); err != nil {
		return err
	}

	waitCtx := ctx
	if p.cfg.JobWaitTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, p.cfg.JobWaitTimeout)
		defer cancel()
	}

	state, err := p.orchestrator.Run(waitCtx, spec)
	if err != nil {
		return err
	}

	if err := database.RecordRunSuccess(ctx, p.db, run.Id, state.ArtifactLocation); err != nil {
		return err
	}

	// The new dataset is live and the job consumed it; reclaim the previous
	// cycle and the consumed field images.
	if err := p.publisher.PruneSuperseded(ctx, run.Id.String()); err != nil {
		slog.Warn("failed to prune superseded dataset cycles", "run_id", run.Id, "error", err)
	}
	if run.Retrain {
		if err := p.publisher.ClearFieldData(ctx); err != nil {
			slog.Warn("failed to clear consumed field data", "run_id", run.Id, "error", err)
		}
	}

	slog.Info("training run completed", "run_id", run.Id, "job_name", jobName,
		"artifact", state.ArtifactLocation, "validation_entries", validationEntries)

	return nil
}

// verifyListFile re-reads a list file and checks it against the directory
// tree it claims to describe. The training service trusts the list file as
// the sample enumeration, so a mismatch must stop the cycle here.
func (p *Pipeline) verifyListFile(path, root string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to reopen list file %s: %w", path, err)
	}
	defer f.Close()

	entries, err := dataset.ParseListFile(f)
	if err != nil {
		return err
	}
	return dataset.ValidateListFile(root, entries)
}

func (p *Pipeline) hyperParameters(trainCount, numClasses int) training.HyperParameters {
	return training.HyperParameters{
		NumLayers:           p.cfg.HPNumLayers,
		ImageShape:          p.cfg.HPImageShape,
		NumTrainingSamples:  trainCount,
		NumClasses:          numClasses,
		MiniBatchSize:       p.cfg.HPMiniBatchSize,
		Epochs:              p.cfg.HPEpochs,
		LearningRate:        p.cfg.HPLearningRate,
		TopK:                p.cfg.HPTopK,
		Resize:              p.cfg.HPResize,
		CheckpointFrequency: p.cfg.HPCheckpointFrequency,
		UsePretrainedModel:  p.cfg.HPUsePretrainedModel,
	}
}

func (p *Pipeline) channelURI(prefix string) string {
	return fmt.Sprintf("s3://%s/%s", p.cfg.DataBucket, prefix)
}

func (p *Pipeline) recordFailure(ctx context.Context, runId uuid.UUID, cause error) {
	status := database.RunFailed
	reason := cause.Error()

	var timeoutErr *training.TimeoutError
	var execErr *training.ExecutionError
	if errors.As(cause, &timeoutErr) {
		status = database.RunTimeout
	} else if errors.As(cause, &execErr) {
		// Keep the service's reason string verbatim.
		reason = execErr.Reason
		if reason == "" {
			reason = cause.Error()
		}
	}

	if err := database.RecordRunFailure(ctx, p.db, runId, status, reason); err != nil {
		slog.Error("failed to record training run failure", "run_id", runId, "error", err)
	}
}
