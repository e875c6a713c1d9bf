package cmd

import (
	"context"
	"flag"
	"fmt"
	"log"

	"vision-backend/internal/config"
	"vision-backend/internal/pipeline"
	"vision-backend/internal/storage"
	"vision-backend/internal/training"

	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

func LoadEnvFile() {
	var configPath string

	flag.StringVar(&configPath, "env", "", "path to load env from")
	flag.Parse()

	if configPath == "" {
		log.Printf("no env file specified, using os.Environ only")
		return
	}

	log.Printf("loading env from file %s", configPath)
	if err := godotenv.Load(configPath); err != nil {
		log.Fatalf("error loading .env file '%s': %v", configPath, err)
	}
}

// NewObjectStore picks the filesystem store for local runs and S3 otherwise.
func NewObjectStore(cfg *config.Config) (storage.ObjectStore, error) {
	if cfg.LocalStorageDir != "" {
		return storage.NewLocalObjectStore(cfg.LocalStorageDir)
	}

	return storage.NewS3ObjectStore(storage.S3ClientConfig{
		Endpoint:        cfg.S3EndpointURL,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
	})
}

func dataBucket(cfg *config.Config) string {
	if cfg.DataBucket != "" {
		return cfg.DataBucket
	}
	return "vision-data"
}

// BuildPipeline wires the full training pipeline: object store, dataset
// publisher, SageMaker-backed orchestrator.
func BuildPipeline(ctx context.Context, cfg *config.Config, db *gorm.DB, showProgress bool) (*pipeline.Pipeline, error) {
	store, err := NewObjectStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create object store: %w", err)
	}

	publisher := storage.NewPublisher(store, dataBucket(cfg))
	publisher.ShowProgress = showProgress

	client, err := training.NewSageMakerClient(ctx, cfg.S3Region)
	if err != nil {
		return nil, fmt.Errorf("failed to create training service client: %w", err)
	}

	orchestrator := training.NewOrchestrator(client, cfg.JobPollInterval)

	return pipeline.New(db, publisher, orchestrator, cfg), nil
}
