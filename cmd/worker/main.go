package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"log/slog"
	"os/signal"
	"syscall"

	"vision-backend/cmd"
	"vision-backend/internal/config"
	"vision-backend/internal/database"
	"vision-backend/internal/messaging"
	"vision-backend/internal/training"
)

func main() {
	log.Println("Starting Worker Process...")

	cmd.LoadEnvFile()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if cfg.RabbitMQURL == "" {
		log.Fatalf("RABBITMQ_URL is required for the worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	pipeline, err := cmd.BuildPipeline(ctx, cfg, db, false)
	if err != nil {
		log.Fatalf("Failed to build training pipeline: %v", err)
	}

	receiver, err := messaging.NewRabbitMQReceiver(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer receiver.Close()

	go func() {
		<-ctx.Done()
		log.Println("Shutdown signal received, closing task receiver...")
		receiver.Close()
	}()

	log.Println("Worker started. Waiting for tasks. Press Ctrl+C to exit.")

	for task := range receiver.Tasks() {
		var payload messaging.RetrainTaskPayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			slog.Error("discarding malformed retrain task", "error", err)
			if err := task.Reject(); err != nil {
				slog.Error("failed to reject task", "error", err)
			}
			continue
		}

		slog.Info("processing retrain task", "run_id", payload.RunId)

		if err := pipeline.ExecuteQueued(ctx, payload.RunId); err != nil {
			// The run row already carries the failure; requeue only when the
			// cycle never started because the worker itself is going down.
			var execErr *training.ExecutionError
			var timeoutErr *training.TimeoutError
			if !errors.As(err, &execErr) && !errors.As(err, &timeoutErr) && ctx.Err() != nil {
				slog.Warn("requeueing interrupted retrain task", "run_id", payload.RunId)
				if err := task.Nack(); err != nil {
					slog.Error("failed to requeue task", "run_id", payload.RunId, "error", err)
				}
				continue
			}

			slog.Error("retrain task failed", "run_id", payload.RunId, "error", err)
			if err := task.Reject(); err != nil {
				slog.Error("failed to reject task", "run_id", payload.RunId, "error", err)
			}
			continue
		}

		slog.Info("retrain task completed", "run_id", payload.RunId)
		if err := task.Ack(); err != nil {
			slog.Error("failed to ack task", "run_id", payload.RunId, "error", err)
		}
	}

	log.Println("Worker process stopped.")
}
