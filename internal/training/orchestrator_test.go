package training

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient scripts the sequence of states a job moves through.
type fakeClient struct {
	createErr   error
	describeErr error
	states      []JobState
	describes   int
	submitted   []JobSpec
}

var _ Client = (*fakeClient)(nil)

func (c *fakeClient) CreateTrainingJob(ctx context.Context, spec JobSpec) error {
	if c.createErr != nil {
		return c.createErr
	}
	c.submitted = append(c.submitted, spec)
	return nil
}

func (c *fakeClient) DescribeTrainingJob(ctx context.Context, jobName string) (JobState, error) {
	if c.describeErr != nil {
		return JobState{}, c.describeErr
	}
	state := c.states[c.describes]
	if c.describes < len(c.states)-1 {
		c.describes++
	}
	return state, nil
}

func testSpec() JobSpec {
	return JobSpec{
		Name:          "ic-2024-03-07-15-04-05-abc123",
		RoleARN:       "arn:aws:iam::123456789012:role/training",
		TrainingImage: "811284229777.dkr.ecr.us-east-1.amazonaws.com/image-classification:latest",
		Channels: ImageChannels(
			"s3://bucket/datasets/run/train/",
			"s3://bucket/datasets/run/validation/",
			"s3://bucket/datasets/run/train_lst/",
			"s3://bucket/datasets/run/validation_lst/",
		),
		HyperParameters: validHyperParameters().Strings(),
		Resources:       ResourceRequest{InstanceCount: 1, InstanceType: "ml.p3.2xlarge", VolumeSizeGB: 50},
		MaxRuntime:      100 * time.Hour,
		OutputLocation:  "s3://bucket/output/",
	}
}

func TestOrchestrator_RunCompletes(t *testing.T) {
	client := &fakeClient{states: []JobState{
		{Status: JobInProgress},
		{Status: JobInProgress},
		{Status: JobCompleted, ArtifactLocation: "s3://bucket/output/model.tar.gz"},
	}}

	orchestrator := NewOrchestrator(client, time.Millisecond)
	state, err := orchestrator.Run(context.Background(), testSpec())
	require.NoError(t, err)

	assert.Equal(t, JobCompleted, state.Status)
	assert.Equal(t, "s3://bucket/output/model.tar.gz", state.ArtifactLocation)
	require.Len(t, client.submitted, 1)
	assert.Len(t, client.submitted[0].Channels, 4)
}

func TestOrchestrator_FailureReasonPassedThroughVerbatim(t *testing.T) {
	reason := "ClientError: S3 object does not exist"
	client := &fakeClient{states: []JobState{
		{Status: JobInProgress},
		{Status: JobFailed, FailureReason: reason},
	}}

	orchestrator := NewOrchestrator(client, time.Millisecond)
	_, err := orchestrator.Run(context.Background(), testSpec())
	require.Error(t, err)

	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, JobFailed, execErr.Status)
	assert.Equal(t, reason, execErr.Reason)
}

func TestOrchestrator_StoppedIsExecutionError(t *testing.T) {
	client := &fakeClient{states: []JobState{{Status: JobStopped}}}

	orchestrator := NewOrchestrator(client, time.Millisecond)
	_, err := orchestrator.Run(context.Background(), testSpec())

	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, JobStopped, execErr.Status)
}

func TestOrchestrator_SubmitRejection(t *testing.T) {
	client := &fakeClient{createErr: errors.New("ValidationException: role not authorized")}

	orchestrator := NewOrchestrator(client, time.Millisecond)
	_, err := orchestrator.Run(context.Background(), testSpec())

	var subErr *SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.Contains(t, subErr.Error(), "ValidationException")
}

func TestOrchestrator_DescribeFailureIsSubmissionError(t *testing.T) {
	client := &fakeClient{describeErr: errors.New("connection reset")}

	orchestrator := NewOrchestrator(client, time.Millisecond)
	err := orchestrator.Submit(context.Background(), testSpec())
	require.NoError(t, err)

	_, err = orchestrator.Wait(context.Background(), testSpec().Name)

	var subErr *SubmissionError
	require.ErrorAs(t, err, &subErr)
}

func TestOrchestrator_WaitDeadlineIsTimeoutError(t *testing.T) {
	// The job never leaves InProgress; the caller's deadline has to cut the
	// wait short.
	client := &fakeClient{states: []JobState{{Status: JobInProgress}}}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	orchestrator := NewOrchestrator(client, 5*time.Millisecond)
	_, err := orchestrator.Run(ctx, testSpec())

	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, JobInProgress, timeoutErr.LastStatus)
}

func TestOrchestrator_RejectsEmptySpec(t *testing.T) {
	orchestrator := NewOrchestrator(&fakeClient{}, time.Millisecond)

	spec := testSpec()
	spec.Name = ""
	err := orchestrator.Submit(context.Background(), spec)
	var subErr *SubmissionError
	require.ErrorAs(t, err, &subErr)

	spec = testSpec()
	spec.Channels = nil
	err = orchestrator.Submit(context.Background(), spec)
	require.ErrorAs(t, err, &subErr)
}
