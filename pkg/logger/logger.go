package logger

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"os"
)

const (
	ComponentField = "component"
	ModeField      = "mode"
	CommandField   = "command"
	ResultIDField  = "result_id"
	APIURLField    = "api_url"
	ActorIDField   = "actor"
	IntervalField  = "interval"
)

func NewGlobal(level string, pretty bool) error {
	l, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}

	zerolog.SetGlobalLevel(l)

	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return nil
}

// Component returns the global logger tagged with the component name.
func Component(name string) zerolog.Logger {
	return log.With().Str(ComponentField, name).Logger()
}
