package models

import (
	"errors"
	"go-teethagent/pkg/agenterrors"
)

type Error struct {
	Type    string `json:"type"`
	Code    int    `json:"code,omitempty"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// NewError converts any error into its wire representation.
func NewError(err error) *Error {
	if err == nil {
		return nil
	}
	var rest agenterrors.RESTError
	if errors.As(err, &rest) {
		return &Error{
			Type:    rest.Type(),
			Code:    rest.StatusCode(),
			Message: rest.Message(),
			Details: rest.Details(),
		}
	}
	return &Error{Type: "CommandError", Message: err.Error()}
}

type CommandResultView struct {
	ID            string         `json:"id"`
	CommandName   string         `json:"command_name"`
	CommandParams map[string]any `json:"command_params"`
	CommandStatus CommandStatus  `json:"command_status"`
	CommandResult any            `json:"command_result"`
	CommandError  *Error         `json:"command_error"`
}

func NewCommandResultView(r CommandResult) CommandResultView {
	view := CommandResultView{
		ID:            r.ID().String(),
		CommandName:   r.CommandName(),
		CommandParams: r.CommandParams(),
		CommandStatus: Running,
	}
	if !r.IsDone() {
		return view
	}
	if r.IsSuccess() {
		view.CommandStatus = Succeeded
		view.CommandResult = r.Value()
	} else {
		view.CommandStatus = Failed
		view.CommandError = NewError(r.Err())
	}
	return view
}
