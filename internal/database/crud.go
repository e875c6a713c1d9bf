package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func CreateTrainingRun(ctx context.Context, db *gorm.DB, retrain bool) (*TrainingRun, error) {
	run := &TrainingRun{
		Id:           uuid.New(),
		Status:       RunQueued,
		Retrain:      retrain,
		CreationTime: time.Now().UTC(),
	}

	if err := db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, fmt.Errorf("failed to create training run record: %w", err)
	}

	return run, nil
}

func GetTrainingRun(ctx context.Context, db *gorm.DB, runId uuid.UUID) (*TrainingRun, error) {
	var run TrainingRun
	if err := db.WithContext(ctx).First(&run, "id = ?", runId).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

func UpdateTrainingRunStatus(ctx context.Context, db *gorm.DB, runId uuid.UUID, status string) error {
	updates := map[string]any{"status": status}
	if status == RunCompleted || status == RunFailed || status == RunTimeout {
		updates["completion_time"] = sql.NullTime{Time: time.Now().UTC(), Valid: true}
	}

	if err := db.WithContext(ctx).Model(&TrainingRun{}).Where("id = ?", runId).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update training run %s status: %w", runId, err)
	}
	return nil
}

func RecordDatasetStats(ctx context.Context, db *gorm.DB, runId uuid.UUID, categories, trainImages, validationImages int) error {
	updates := map[string]any{
		"category_count":         categories,
		"train_image_count":      trainImages,
		"validation_image_count": validationImages,
	}

	if err := db.WithContext(ctx).Model(&TrainingRun{}).Where("id = ?", runId).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to record dataset stats for run %s: %w", runId, err)
	}
	return nil
}

func RecordJobName(ctx context.Context, db *gorm.DB, runId uuid.UUID, jobName, datasetPrefix string) error {
	updates := map[string]any{
		"job_name":       jobName,
		"dataset_prefix": datasetPrefix,
	}

	if err := db.WithContext(ctx).Model(&TrainingRun{}).Where("id = ?", runId).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to record job name for run %s: %w", runId, err)
	}
	return nil
}

func RecordRunSuccess(ctx context.Context, db *gorm.DB, runId uuid.UUID, artifactPath string) error {
	updates := map[string]any{
		"status":          RunCompleted,
		"artifact_path":   sql.NullString{String: artifactPath, Valid: artifactPath != ""},
		"completion_time": sql.NullTime{Time: time.Now().UTC(), Valid: true},
	}

	if err := db.WithContext(ctx).Model(&TrainingRun{}).Where("id = ?", runId).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to record training run %s success: %w", runId, err)
	}
	return nil
}

func RecordRunFailure(ctx context.Context, db *gorm.DB, runId uuid.UUID, status, reason string) error {
	updates := map[string]any{
		"status":          status,
		"failure_reason":  sql.NullString{String: reason, Valid: reason != ""},
		"completion_time": sql.NullTime{Time: time.Now().UTC(), Valid: true},
	}

	if err := db.WithContext(ctx).Model(&TrainingRun{}).Where("id = ?", runId).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to record training run %s failure: %w", runId, err)
	}
	return nil
}
