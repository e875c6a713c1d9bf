package api

import (
	"errors"
	"log/slog"
	"net/http"

	"vision-backend/internal/database"
	"vision-backend/internal/messaging"
	"vision-backend/pkg/api"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

// TrainerService exposes the run history and queues retraining cycles. The
// actual pipeline work happens in the worker; the API only records intent.
type TrainerService struct {
	db        *gorm.DB
	publisher messaging.Publisher
}

func NewTrainerService(db *gorm.DB, publisher messaging.Publisher) *TrainerService {
	return &TrainerService{db: db, publisher: publisher}
}

func (s *TrainerService) AddRoutes(r chi.Router) {
	r.Get("/health", RestHandler(func(r *http.Request) (any, error) { return nil, nil }))
	r.Route("/runs", func(r chi.Router) {
		r.Get("/", RestHandler(s.ListRuns))
		r.Post("/", RestHandler(s.SubmitRun))
		r.Get("/{run_id}", RestHandler(s.GetRun))
	})
}

func (s *TrainerService) SubmitRun(r *http.Request) (any, error) {
	req, err := ParseRequest[api.RetrainRequest](r)
	if err != nil {
		return nil, err
	}

	ctx := r.Context()

	// Cycles are serialized: refuse a new run while one is still queued or
	// working through the pipeline.
	var active int64
	err = s.db.WithContext(ctx).Model(&database.TrainingRun{}).
		Where("status IN ?", []string{database.RunQueued, database.RunPreparing, database.RunPublished, database.RunTraining}).
		Count(&active).Error
	if err != nil {
		slog.Error("error counting active training runs", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to check for active training runs")
	}
	if active > 0 {
		return nil, CodedErrorf(http.StatusConflict, "a training run is already in progress")
	}

	run, err := database.CreateTrainingRun(ctx, s.db, req.Retrain)
	if err != nil {
		slog.Error("error creating training run", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to create training run entry")
	}

	if err := s.publisher.PublishRetrainTask(ctx, messaging.RetrainTaskPayload{RunId: run.Id}); err != nil {
		slog.Error("error publishing retrain task", "run_id", run.Id, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to queue training run")
	}

	slog.Info("training run queued", "run_id", run.Id, "retrain", req.Retrain)
	return api.RetrainResponse{Message: "Training run queued", RunId: run.Id}, nil
}

func (s *TrainerService) GetRun(r *http.Request) (any, error) {
	runId, err := URLParamUUID(r, "run_id")
	if err != nil {
		return nil, err
	}

	run, err := database.GetTrainingRun(r.Context(), s.db, runId)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, CodedErrorf(http.StatusNotFound, "training run not found")
		}
		slog.Error("error getting training run", "run_id", runId, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to get training run")
	}

	return convertTrainingRun(run), nil
}

func (s *TrainerService) ListRuns(r *http.Request) (any, error) {
	query, err := ParseRequestQueryParams[api.ListRunsQuery](r)
	if err != nil {
		return nil, err
	}

	limit := query.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	tx := s.db.WithContext(r.Context()).Model(&database.TrainingRun{}).
		Order("creation_time DESC").
		Limit(limit)
	if query.Status != "" {
		tx = tx.Where("status = ?", query.Status)
	}

	var runs []database.TrainingRun
	if err := tx.Find(&runs).Error; err != nil {
		slog.Error("error listing training runs", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to list training runs")
	}

	res := api.ListRunsResponse{Runs: make([]api.TrainingRun, 0, len(runs))}
	for i := range runs {
		res.Runs = append(res.Runs, convertTrainingRun(&runs[i]))
	}
	return res, nil
}

func convertTrainingRun(run *database.TrainingRun) api.TrainingRun {
	out := api.TrainingRun{
		Id:                   run.Id,
		JobName:              run.JobName,
		Status:               run.Status,
		Retrain:              run.Retrain,
		DatasetPrefix:        run.DatasetPrefix,
		CategoryCount:        run.CategoryCount,
		TrainImageCount:      run.TrainImageCount,
		ValidationImageCount: run.ValidationImageCount,
		CreationTime:         run.CreationTime,
	}
	if run.FailureReason.Valid {
		out.FailureReason = run.FailureReason.String
	}
	if run.ArtifactPath.Valid {
		out.ArtifactPath = run.ArtifactPath.String
	}
	if run.CompletionTime.Valid {
		t := run.CompletionTime.Time
		out.CompletionTime = &t
	}
	return out
}
