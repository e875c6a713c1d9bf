package api

import (
	"time"

	"github.com/google/uuid"
)

type RetrainRequest struct {
	// Retrain pulls labeled field data into the dataset before training;
	// false repeats an initial-style run over the current category tree.
	Retrain bool `json:"retrain"`
}

type RetrainResponse struct {
	Message string    `json:"message"`
	RunId   uuid.UUID `json:"run_id"`
}

type TrainingRun struct {
	Id      uuid.UUID `json:"id"`
	JobName string    `json:"job_name,omitempty"`
	Status  string    `json:"status"`
	Retrain bool      `json:"retrain"`

	DatasetPrefix string `json:"dataset_prefix,omitempty"`

	CategoryCount        int `json:"category_count"`
	TrainImageCount      int `json:"train_image_count"`
	ValidationImageCount int `json:"validation_image_count"`

	FailureReason string `json:"failure_reason,omitempty"`
	ArtifactPath  string `json:"artifact_path,omitempty"`

	CreationTime   time.Time  `json:"creation_time"`
	CompletionTime *time.Time `json:"completion_time,omitempty"`
}

type ListRunsQuery struct {
	Status string `schema:"status"`
	Limit  int    `schema:"limit"`
}

type ListRunsResponse struct {
	Runs []TrainingRun `json:"runs"`
}
