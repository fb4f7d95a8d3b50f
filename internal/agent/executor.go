package agent

import (
	"errors"
	"fmt"
	"go-teethagent/internal/modes"
	"go-teethagent/pkg/agenterrors"
	"go-teethagent/pkg/logger"
	"go-teethagent/pkg/models"
	"strings"
)

func splitCommand(commandName string) (string, string, error) {
	parts := strings.Split(commandName, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", agenterrors.NewInvalidCommand("command name must be of the form mode.name")
	}
	return parts[0], parts[1], nil
}

// ExecuteCommand runs "<mode>.<command>" on the agent's mode, binding the mode on first use.
// Only errors describing a bad request are returned; failures while the command runs are
// recorded in the returned result instead.
func (a *Agent) ExecuteCommand(commandName string, params map[string]any) (models.CommandResult, error) {
	modeName, command, err := splitCommand(commandName)
	if err != nil {
		return nil, err
	}

	a.commandLock.Lock()
	defer a.commandLock.Unlock()

	if err := a.verifyMode(modeName); err != nil {
		return nil, err
	}

	if last, ok := a.results.last(); ok && !last.IsDone() {
		a.log.Warn().Str(logger.CommandField, commandName).Str(logger.ResultIDField, last.ID().String()).Msg("rejecting command, agent is busy")
		return nil, agenterrors.NewCommandExecution("agent is busy")
	}

	result, err := dispatch(a.mode, command, params)
	if err != nil {
		var content *agenterrors.InvalidContentError
		if errors.As(err, &content) {
			return nil, err
		}
		a.log.Error().Err(err).Str(logger.CommandField, commandName).Msg("command failed")
		result = models.NewFailedCommandResult(commandName, params, err)
	}

	a.results.add(result)
	a.log.Info().Str(logger.CommandField, commandName).Str(logger.ResultIDField, result.ID().String()).Bool("done", result.IsDone()).Msg("command recorded")
	return result, nil
}

// verifyMode binds the agent to modeName if no mode is bound yet, or checks that modeName
// is the bound mode. Must be called with commandLock held.
func (a *Agent) verifyMode(modeName string) error {
	if a.mode == nil {
		mode, err := a.resolver.Resolve(modeName)
		if err != nil {
			a.log.Warn().Err(err).Str(logger.ModeField, modeName).Msg("unable to load mode")
			return agenterrors.NewInvalidCommand("unknown mode: %s", modeName)
		}
		a.mode = mode
		a.modeName.Store(mode.Name())
		a.log.Info().Str(logger.ModeField, mode.Name()).Msg("agent mode bound")
		return nil
	}

	if !strings.EqualFold(a.mode.Name(), modeName) {
		return agenterrors.NewInvalidCommand("agent is already in %s mode", a.mode.Name())
	}
	return nil
}

// dispatch turns a panicking mode into an ordinary command failure.
func dispatch(mode modes.Mode, command string, params map[string]any) (result models.CommandResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("command panicked: %v", r)
		}
	}()

	result, err = mode.Execute(command, params)
	if err == nil && result == nil {
		err = fmt.Errorf("mode %s returned no result for %s", mode.Name(), command)
	}
	return result, err
}
