package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"vision-backend/cmd"
	"vision-backend/internal/config"
	"vision-backend/internal/database"
	"vision-backend/internal/training"
)

// Exit codes: 0 success, 1 configuration or dataset/publish error, 2 the job
// ran and failed, 3 the local wait deadline expired.
const (
	exitOK         = 0
	exitBuildError = 1
	exitJobFailed  = 2
	exitJobTimeout = 3
)

func run() int {
	retrain := flag.Bool("retrain", false, "merge labeled field data into the dataset before training")
	cmd.LoadEnvFile()

	cfg, err := config.Load()
	if err != nil {
		log.Printf("error loading configuration: %v", err)
		return exitBuildError
	}
	if err := cfg.Validate(); err != nil {
		log.Printf("invalid configuration: %v", err)
		return exitBuildError
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Printf("failed to open run database: %v", err)
		return exitBuildError
	}

	p, err := cmd.BuildPipeline(ctx, cfg, db, true)
	if err != nil {
		log.Printf("failed to build pipeline: %v", err)
		return exitBuildError
	}

	runFn := p.InitialRun
	if *retrain {
		runFn = p.Retrain
	}

	result, runErr := runFn(ctx)
	if runErr != nil {
		var execErr *training.ExecutionError
		var timeoutErr *training.TimeoutError
		switch {
		case errors.As(runErr, &execErr):
			fmt.Fprintf(os.Stderr, "training job %s ended with status %s\n", execErr.JobName, execErr.Status)
			fmt.Fprintf(os.Stderr, "failure reason: %s\n", execErr.Reason)
			return exitJobFailed
		case errors.As(runErr, &timeoutErr):
			fmt.Fprintf(os.Stderr, "%v\n", timeoutErr)
			return exitJobTimeout
		default:
			fmt.Fprintf(os.Stderr, "training run failed: %v\n", runErr)
			return exitBuildError
		}
	}

	final, err := database.GetTrainingRun(ctx, db, result.Id)
	if err != nil {
		log.Printf("failed to load final run state: %v", err)
		return exitBuildError
	}

	fmt.Printf("training run %s completed\n", final.Id)
	fmt.Printf("job name: %s\n", final.JobName)
	fmt.Printf("model artifact: %s\n", final.ArtifactPath.String)
	return exitOK
}

func main() {
	os.Exit(run())
}
