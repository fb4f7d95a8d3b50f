package agenterrors

import (
	"fmt"
	"net/http"
)

// RESTError is an error that knows how it should be presented to an API client.
type RESTError interface {
	error
	Type() string
	StatusCode() int
	Message() string
	Details() string
}

// InvalidContentError signals that the caller sent malformed input. Modes return it to
// reject bad command params; it is passed back to the caller untouched.
type InvalidContentError struct {
	details string
}

func NewInvalidContent(details string) *InvalidContentError {
	return &InvalidContentError{details: details}
}

func (e *InvalidContentError) Error() string   { return e.details }
func (e *InvalidContentError) Type() string    { return "InvalidContentError" }
func (e *InvalidContentError) StatusCode() int { return http.StatusBadRequest }
func (e *InvalidContentError) Message() string { return "Invalid request body" }
func (e *InvalidContentError) Details() string { return e.details }

// InvalidCommandError is returned for a malformed command name, an unknown mode or a
// command for a mode other than the one the agent is bound to.
type InvalidCommandError struct {
	details string
}

func NewInvalidCommand(format string, args ...any) *InvalidCommandError {
	return &InvalidCommandError{details: fmt.Sprintf(format, args...)}
}

func (e *InvalidCommandError) Error() string   { return e.details }
func (e *InvalidCommandError) Type() string    { return "InvalidCommandError" }
func (e *InvalidCommandError) StatusCode() int { return http.StatusBadRequest }
func (e *InvalidCommandError) Message() string { return "Invalid command" }
func (e *InvalidCommandError) Details() string { return e.details }

// CommandExecutionError is returned when a command cannot be admitted, e.g. because a
// previous command is still running. Callers may retry.
type CommandExecutionError struct {
	details string
}

func NewCommandExecution(details string) *CommandExecutionError {
	return &CommandExecutionError{details: details}
}

func (e *CommandExecutionError) Error() string   { return e.details }
func (e *CommandExecutionError) Type() string    { return "CommandExecutionError" }
func (e *CommandExecutionError) StatusCode() int { return http.StatusConflict }
func (e *CommandExecutionError) Message() string { return "Command execution failed" }
func (e *CommandExecutionError) Details() string { return e.details }

type NotFoundError struct {
	kind string
	id   string
}

func NewNotFound(kind, id string) *NotFoundError {
	return &NotFoundError{kind: kind, id: id}
}

func (e *NotFoundError) Error() string   { return e.Details() }
func (e *NotFoundError) Type() string    { return "RequestedObjectNotFoundError" }
func (e *NotFoundError) StatusCode() int { return http.StatusNotFound }
func (e *NotFoundError) Message() string { return "Requested object not found" }
func (e *NotFoundError) Details() string { return fmt.Sprintf("%s with id %s not found", e.kind, e.id) }
