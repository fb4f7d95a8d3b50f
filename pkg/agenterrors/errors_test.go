package agenterrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCodes(t *testing.T) {
	cases := []struct {
		err    RESTError
		status int
		typ    string
	}{
		{NewInvalidContent("bad"), http.StatusBadRequest, "InvalidContentError"},
		{NewInvalidCommand("unknown mode: %s", "x"), http.StatusBadRequest, "InvalidCommandError"},
		{NewCommandExecution("agent is busy"), http.StatusConflict, "CommandExecutionError"},
		{NewNotFound("Command Result", "abc"), http.StatusNotFound, "RequestedObjectNotFoundError"},
	}

	for _, c := range cases {
		t.Run(c.typ, func(t *testing.T) {
			assert.Equal(t, c.status, c.err.StatusCode())
			assert.Equal(t, c.typ, c.err.Type())
			assert.NotEmpty(t, c.err.Message())
		})
	}
}

func TestInvalidCommandFormatsDetails(t *testing.T) {
	err := NewInvalidCommand("agent is already in %s mode", "deploy")
	assert.Equal(t, "agent is already in deploy mode", err.Error())
	assert.Equal(t, err.Error(), err.Details())
}

func TestNotFoundDetails(t *testing.T) {
	err := NewNotFound("Command Result", "abc")
	assert.Equal(t, "Command Result with id abc not found", err.Error())
}

func TestWrappedErrorsStillMatch(t *testing.T) {
	wrapped := fmt.Errorf("validate: %w", NewInvalidContent("missing name"))

	var content *InvalidContentError
	require.True(t, errors.As(wrapped, &content))
	assert.Equal(t, "missing name", content.Details())

	var rest RESTError
	require.True(t, errors.As(wrapped, &rest))
	assert.Equal(t, http.StatusBadRequest, rest.StatusCode())
}
