package training

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const DefaultPollInterval = 30 * time.Second

// Orchestrator submits training jobs and waits for them to reach a terminal
// state. One job is in flight at a time; the wait is cancellable through the
// caller's context, independently of the service-side max-runtime stopping
// condition.
type Orchestrator struct {
	client       Client
	pollInterval time.Duration
}

func NewOrchestrator(client Client, pollInterval time.Duration) *Orchestrator {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Orchestrator{client: client, pollInterval: pollInterval}
}

// Submit sends the spec to the service. A rejection is a SubmissionError.
func (o *Orchestrator) Submit(ctx context.Context, spec JobSpec) error {
	if spec.Name == "" {
		return &SubmissionError{JobName: spec.Name, Err: fmt.Errorf("job name is empty")}
	}
	if len(spec.Channels) == 0 {
		return &SubmissionError{JobName: spec.Name, Err: fmt.Errorf("job spec has no input channels")}
	}

	if err := o.client.CreateTrainingJob(ctx, spec); err != nil {
		return &SubmissionError{JobName: spec.Name, Err: err}
	}

	slog.Info("training job submitted", "job_name", spec.Name, "output", spec.OutputLocation)

	return nil
}

// Wait polls until the job reaches a terminal state or ctx expires.
// Completed returns the final state with the artifact location. Failed or
// Stopped returns an ExecutionError carrying the service's reason verbatim.
// A describe failure is a SubmissionError (the job could not be observed);
// ctx expiry is a TimeoutError.
func (o *Orchestrator) Wait(ctx context.Context, jobName string) (JobState, error) {
	lastStatus := JobSubmitted

	for {
		state, err := o.client.DescribeTrainingJob(ctx, jobName)
		if err != nil {
			if ctx.Err() != nil {
				return JobState{}, &TimeoutError{JobName: jobName, LastStatus: lastStatus}
			}
			return JobState{}, &SubmissionError{JobName: jobName, Err: err}
		}
		lastStatus = state.Status

		if state.Status.Terminal() {
			if state.Status != JobCompleted {
				return state, &ExecutionError{JobName: jobName, Status: state.Status, Reason: state.FailureReason}
			}
			slog.Info("training job completed", "job_name", jobName, "artifact", state.ArtifactLocation)
			return state, nil
		}

		slog.Info("training job in progress", "job_name", jobName, "status", state.Status)

		select {
		case <-ctx.Done():
			return JobState{}, &TimeoutError{JobName: jobName, LastStatus: lastStatus}
		case <-time.After(o.pollInterval):
		}
	}
}

// Run is Submit followed by Wait.
func (o *Orchestrator) Run(ctx context.Context, spec JobSpec) (JobState, error) {
	if err := o.Submit(ctx, spec); err != nil {
		return JobState{}, err
	}
	return o.Wait(ctx, spec.Name)
}
