package training

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	aws_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker/types"
)

type SageMakerClient struct {
	client *sagemaker.Client
}

var _ Client = (*SageMakerClient)(nil)

func NewSageMakerClient(ctx context.Context, region string) (*SageMakerClient, error) {
	opts := []func(*aws_config.LoadOptions) error{}
	if region != "" {
		opts = append(opts, aws_config.WithRegion(region))
	}

	awsCfg, err := aws_config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create aws config: %w", err)
	}

	return &SageMakerClient{client: sagemaker.NewFromConfig(awsCfg)}, nil
}

func (c *SageMakerClient) CreateTrainingJob(ctx context.Context, spec JobSpec) error {
	input := &sagemaker.CreateTrainingJobInput{
		TrainingJobName: aws.String(spec.Name),
		RoleArn:         aws.String(spec.RoleARN),
		AlgorithmSpecification: &types.AlgorithmSpecification{
			TrainingImage:     aws.String(spec.TrainingImage),
			TrainingInputMode: types.TrainingInputModeFile,
		},
		HyperParameters: spec.HyperParameters,
		ResourceConfig: &types.ResourceConfig{
			InstanceCount:  aws.Int32(spec.Resources.InstanceCount),
			InstanceType:   types.TrainingInstanceType(spec.Resources.InstanceType),
			VolumeSizeInGB: aws.Int32(spec.Resources.VolumeSizeGB),
		},
		StoppingCondition: &types.StoppingCondition{
			MaxRuntimeInSeconds: aws.Int32(int32(spec.MaxRuntime.Seconds())),
		},
		OutputDataConfig: &types.OutputDataConfig{
			S3OutputPath: aws.String(spec.OutputLocation),
		},
	}

	for _, ch := range spec.Channels {
		input.InputDataConfig = append(input.InputDataConfig, types.Channel{
			ChannelName: aws.String(ch.Name),
			ContentType: aws.String(ch.ContentType),
			DataSource: &types.DataSource{
				S3DataSource: &types.S3DataSource{
					S3DataType:             types.S3DataTypeS3Prefix,
					S3Uri:                  aws.String(ch.Location),
					S3DataDistributionType: types.S3DataDistribution(ch.Distribution),
				},
			},
		})
	}

	if _, err := c.client.CreateTrainingJob(ctx, input); err != nil {
		return fmt.Errorf("failed to create training job %s: %w", spec.Name, err)
	}

	return nil
}

func (c *SageMakerClient) DescribeTrainingJob(ctx context.Context, jobName string) (JobState, error) {
	out, err := c.client.DescribeTrainingJob(ctx, &sagemaker.DescribeTrainingJobInput{
		TrainingJobName: aws.String(jobName),
	})
	if err != nil {
		return JobState{}, fmt.Errorf("failed to describe training job %s: %w", jobName, err)
	}

	state := JobState{Status: mapStatus(out.TrainingJobStatus)}
	if out.FailureReason != nil {
		state.FailureReason = *out.FailureReason
	}
	if out.ModelArtifacts != nil && out.ModelArtifacts.S3ModelArtifacts != nil {
		state.ArtifactLocation = *out.ModelArtifacts.S3ModelArtifacts
	}

	return state, nil
}

func mapStatus(status types.TrainingJobStatus) JobStatus {
	switch status {
	case types.TrainingJobStatusCompleted:
		return JobCompleted
	case types.TrainingJobStatusFailed:
		return JobFailed
	case types.TrainingJobStatusStopped:
		return JobStopped
	case types.TrainingJobStatusStopping:
		// Stopping is not terminal; keep polling until the service settles.
		return JobInProgress
	default:
		return JobInProgress
	}
}
