package database

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const (
	RunQueued    string = "QUEUED"
	RunPreparing string = "PREPARING"
	RunPublished string = "PUBLISHED"
	RunTraining  string = "TRAINING"
	RunCompleted string = "COMPLETED"
	RunFailed    string = "FAILED"
	RunTimeout   string = "TIMEOUT"
)

// TrainingRun tracks one pipeline cycle from dataset preparation through the
// remote job's terminal state.
type TrainingRun struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	JobName string `gorm:"size:128"`
	Status  string `gorm:"size:20;not null"`

	Retrain       bool `gorm:"default:false"`
	DatasetPrefix string

	CategoryCount        int `gorm:"default:0"`
	TrainImageCount      int `gorm:"default:0"`
	ValidationImageCount int `gorm:"default:0"`

	FailureReason sql.NullString
	ArtifactPath  sql.NullString

	CreationTime   time.Time
	CompletionTime sql.NullTime
}
