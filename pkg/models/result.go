package models

import (
	"github.com/google/uuid"
	"sync"
)

// CommandResult records one command invocation. Results that report IsDone() == false are
// still running; the agent refuses new commands until the latest one is done.
type CommandResult interface {
	ID() uuid.UUID
	CommandName() string
	CommandParams() map[string]any
	IsDone() bool
	IsSuccess() bool
	Value() any
	Err() error
}

type baseResult struct {
	id     uuid.UUID
	name   string
	params map[string]any
}

func newBaseResult(name string, params map[string]any) baseResult {
	if params == nil {
		params = map[string]any{}
	}
	return baseResult{id: uuid.New(), name: name, params: params}
}

func (r baseResult) ID() uuid.UUID                 { return r.id }
func (r baseResult) CommandName() string           { return r.name }
func (r baseResult) CommandParams() map[string]any { return r.params }

// SyncCommandResult is complete as soon as it is built.
type SyncCommandResult struct {
	baseResult
	success bool
	value   any
	err     error
}

func NewSyncCommandResult(name string, params map[string]any, value any) *SyncCommandResult {
	return &SyncCommandResult{baseResult: newBaseResult(name, params), success: true, value: value}
}

func NewFailedCommandResult(name string, params map[string]any, err error) *SyncCommandResult {
	return &SyncCommandResult{baseResult: newBaseResult(name, params), success: false, err: err}
}

func (r *SyncCommandResult) IsDone() bool    { return true }
func (r *SyncCommandResult) IsSuccess() bool { return r.success }
func (r *SyncCommandResult) Value() any      { return r.value }
func (r *SyncCommandResult) Err() error      { return r.err }

// AsyncCommandResult is returned by modes that keep working after Execute returns. Whoever
// runs the work calls Complete exactly once; later calls are ignored.
type AsyncCommandResult struct {
	baseResult

	mu      sync.RWMutex
	done    chan struct{}
	once    sync.Once
	success bool
	value   any
	err     error
}

func NewAsyncCommandResult(name string, params map[string]any) *AsyncCommandResult {
	return &AsyncCommandResult{baseResult: newBaseResult(name, params), done: make(chan struct{})}
}

func (r *AsyncCommandResult) Complete(value any, err error) {
	r.once.Do(func() {
		r.mu.Lock()
		r.value = value
		r.err = err
		r.success = err == nil
		r.mu.Unlock()
		close(r.done)
	})
}

// Done is closed once the result has been completed.
func (r *AsyncCommandResult) Done() <-chan struct{} {
	return r.done
}

func (r *AsyncCommandResult) IsDone() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

func (r *AsyncCommandResult) IsSuccess() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.success
}

func (r *AsyncCommandResult) Value() any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.value
}

func (r *AsyncCommandResult) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.err
}
