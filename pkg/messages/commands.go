package messages

import (
	"go-teethagent/pkg/models"
)

// RunCommand asks a worker to run Work and complete Result with its outcome.
type RunCommand struct {
	Result *models.AsyncCommandResult
	Work   func() (any, error)
}
