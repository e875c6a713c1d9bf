package training

import (
	"context"
	"time"
)

// JobStatus mirrors the remote service's training-job state machine:
// Submitted/InProgress, then exactly one terminal state. This package
// observes the state machine, it never owns it.
type JobStatus string

const (
	JobSubmitted  JobStatus = "Submitted"
	JobInProgress JobStatus = "InProgress"
	JobCompleted  JobStatus = "Completed"
	JobFailed     JobStatus = "Failed"
	JobStopped    JobStatus = "Stopped"
)

func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobStopped
}

// JobState is a point-in-time observation of a remote job. FailureReason is
// the service's reason string, passed through verbatim. ArtifactLocation is
// set once the model artifact exists.
type JobState struct {
	Status           JobStatus
	FailureReason    string
	ArtifactLocation string
}

// Client is the narrow contract this system needs from the managed training
// service.
type Client interface {
	CreateTrainingJob(ctx context.Context, spec JobSpec) error

	DescribeTrainingJob(ctx context.Context, jobName string) (JobState, error)
}

// Channel describes one input of a training job: a storage location, the
// content type the algorithm expects, and the replication mode.
type Channel struct {
	Name         string
	Location     string
	ContentType  string
	Distribution string
}

type ResourceRequest struct {
	InstanceCount int32
	InstanceType  string
	VolumeSizeGB  int32
}

// JobSpec is the complete, immutable description of one training run. It is
// constructed fresh per submission and never mutated afterwards; the remote
// service owns all state from there on.
type JobSpec struct {
	Name            string
	RoleARN         string
	TrainingImage   string
	Channels        []Channel
	HyperParameters map[string]string
	Resources       ResourceRequest
	MaxRuntime      time.Duration
	OutputLocation  string
}

const (
	ImageContentType = "application/x-image"

	DistributionFullyReplicated = "FullyReplicated"
)

// ImageChannels builds the four standard channels of an image-classification
// job from the published dataset locations (s3:// URIs).
func ImageChannels(train, validation, trainList, validationList string) []Channel {
	channels := make([]Channel, 0, 4)
	for _, c := range []struct{ name, location string }{
		{"train", train},
		{"validation", validation},
		{"train_lst", trainList},
		{"validation_lst", validationList},
	} {
		channels = append(channels, Channel{
			Name:         c.name,
			Location:     c.location,
			ContentType:  ImageContentType,
			Distribution: DistributionFullyReplicated,
		})
	}
	return channels
}
