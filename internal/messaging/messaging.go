package messaging

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	RetrainQueue    = "retrain_queue"
	RetryDelay      = 5 * time.Second
	MaxConnectRetry = 5
)

type Task interface {
	Type() string

	Payload() []byte

	Ack() error

	Nack() error

	Reject() error
}

// RetrainTaskPayload points the worker at a queued training run; the run row
// carries everything else.
type RetrainTaskPayload struct {
	RunId uuid.UUID
}

type Publisher interface {
	PublishRetrainTask(ctx context.Context, payload RetrainTaskPayload) error

	Close()
}

type Receiver interface {
	Tasks() <-chan Task

	Close()
}
