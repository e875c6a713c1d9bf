package training

import "fmt"

// SubmissionError: the spec was rejected by the service, or the job could not
// be observed at all. Distinct from a job that ran and failed.
type SubmissionError struct {
	JobName string
	Err     error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("training job %s could not be submitted or observed: %v", e.JobName, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// ExecutionError: the job reached Failed or Stopped. Reason is the service's
// failure reason string, unmodified.
type ExecutionError struct {
	JobName string
	Status  JobStatus
	Reason  string
}

func (e *ExecutionError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("training job %s ended with status %s", e.JobName, e.Status)
	}
	return fmt.Sprintf("training job %s ended with status %s: %s", e.JobName, e.Status, e.Reason)
}

// TimeoutError: the caller's deadline expired before the job reached a
// terminal state. The job may still be running remotely.
type TimeoutError struct {
	JobName    string
	LastStatus JobStatus
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out waiting for training job %s (last observed status %s)", e.JobName, e.LastStatus)
}
