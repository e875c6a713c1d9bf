package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type ConfigurationError struct {
	Field string
	Msg   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Msg)
}

type Config struct {
	DatabaseURL string `env:"DATABASE_URL" envDefault:"training_runs.db"`
	RabbitMQURL string `env:"RABBITMQ_URL"`

	S3EndpointURL     string `env:"S3_ENDPOINT_URL"`
	S3AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	S3Region          string `env:"AWS_REGION" envDefault:"us-east-1"`

	// When set, a filesystem-backed object store replaces S3. Used for local
	// dry runs and tests.
	LocalStorageDir string `env:"LOCAL_STORAGE_DIR"`

	DataBucket string `env:"DATA_BUCKET"`
	DataDir    string `env:"DATA_DIR" envDefault:"./data/categories"`

	TrainPerCategory int   `env:"TRAIN_PER_CATEGORY" envDefault:"60"`
	SplitSeed        int64 `env:"SPLIT_SEED"` // 0 draws a fresh seed

	JobNamePrefix         string        `env:"JOB_NAME_PREFIX" envDefault:"image-classification"`
	SageMakerRoleARN      string        `env:"SAGEMAKER_ROLE_ARN"`
	TrainingImage         string        `env:"TRAINING_IMAGE"`
	TrainingInstanceType  string        `env:"TRAINING_INSTANCE_TYPE" envDefault:"ml.p3.2xlarge"`
	TrainingInstanceCount int32         `env:"TRAINING_INSTANCE_COUNT" envDefault:"1"`
	TrainingVolumeGB      int32         `env:"TRAINING_VOLUME_GB" envDefault:"50"`
	TrainingMaxRuntime    time.Duration `env:"TRAINING_MAX_RUNTIME" envDefault:"100h"`
	JobPollInterval       time.Duration `env:"JOB_POLL_INTERVAL" envDefault:"30s"`
	// Local deadline on waiting for the job, independent of the service-side
	// max-runtime stopping condition.
	JobWaitTimeout time.Duration `env:"JOB_WAIT_TIMEOUT" envDefault:"102h"`
	OutputLocation string        `env:"OUTPUT_LOCATION"`

	HPNumLayers           int     `env:"HP_NUM_LAYERS" envDefault:"18"`
	HPImageShape          string  `env:"HP_IMAGE_SHAPE" envDefault:"3,224,224"`
	HPMiniBatchSize       int     `env:"HP_MINI_BATCH_SIZE" envDefault:"128"`
	HPEpochs              int     `env:"HP_EPOCHS" envDefault:"2"`
	HPLearningRate        float64 `env:"HP_LEARNING_RATE" envDefault:"0.01"`
	HPTopK                int     `env:"HP_TOP_K" envDefault:"2"`
	HPResize              int     `env:"HP_RESIZE" envDefault:"256"`
	HPCheckpointFrequency int     `env:"HP_CHECKPOINT_FREQUENCY" envDefault:"2"`
	HPUsePretrainedModel  bool    `env:"HP_USE_PRETRAINED_MODEL" envDefault:"true"`

	APIPort string `env:"API_PORT" envDefault:"8001"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config from environment: %w", err)
	}

	if cfg.DataBucket != "" && cfg.OutputLocation == "" {
		cfg.OutputLocation = fmt.Sprintf("s3://%s/output/", cfg.DataBucket)
	}

	return &cfg, nil
}

// Validate checks everything job submission needs. Dataset-only operations
// (local split dry runs) skip it.
func (c *Config) Validate() error {
	if c.DataBucket == "" && c.LocalStorageDir == "" {
		return &ConfigurationError{Field: "DATA_BUCKET", Msg: "a data bucket (or LOCAL_STORAGE_DIR) is required"}
	}
	if c.SageMakerRoleARN == "" {
		return &ConfigurationError{Field: "SAGEMAKER_ROLE_ARN", Msg: "the training service execution role is required"}
	}
	if c.TrainingImage == "" {
		return &ConfigurationError{Field: "TRAINING_IMAGE", Msg: "the algorithm container image is required"}
	}
	if c.TrainPerCategory <= 0 {
		return &ConfigurationError{Field: "TRAIN_PER_CATEGORY", Msg: "must be positive"}
	}
	return nil
}
