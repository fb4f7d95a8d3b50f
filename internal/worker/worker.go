package worker

import (
	"fmt"
	"github.com/asynkron/protoactor-go/actor"
	"github.com/rs/zerolog/log"
	"go-teethagent/pkg/logger"
	"go-teethagent/pkg/messages"
	"go-teethagent/pkg/models"
)

// Worker runs background command work one message at a time.
type Worker struct {
	name string
}

func newWorker(name string) actor.Producer {
	return func() actor.Actor {
		return &Worker{name: name}
	}
}

func (w *Worker) Receive(ac actor.Context) {
	l := log.With().Fields(map[string]interface{}{logger.ActorIDField: ac.Self().GetId(), logger.ComponentField: w.name}).Logger()
	switch msg := ac.Message().(type) {
	case *actor.Started:
		l.Debug().Msg("starting actor")
	case *actor.Stopping:
		l.Debug().Msg("stopping actor")
	case *actor.Stopped:
		l.Debug().Msg("stopped actor")
	case *actor.Restarting:
		l.Debug().Msg("restarting actor")
	case messages.RunCommand:
		l.Info().Str(logger.ResultIDField, msg.Result.ID().String()).Str(logger.CommandField, msg.Result.CommandName()).Msg("running command")
		value, err := run(msg.Work)
		if err != nil {
			l.Error().Err(err).Str(logger.ResultIDField, msg.Result.ID().String()).Msg("command failed")
		} else {
			l.Info().Str(logger.ResultIDField, msg.Result.ID().String()).Msg("command finished")
		}
		msg.Result.Complete(value, err)
	default:
		l.Warn().Msgf("unknown message: %v", msg)
	}
}

// run keeps a panicking command from leaving its result incomplete forever.
func run(work func() (any, error)) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			value = nil
			err = fmt.Errorf("command panicked: %v", r)
		}
	}()
	return work()
}

// Runner hands async command work to a single worker actor, so commands submitted through
// the same Runner execute in submission order.
type Runner struct {
	root *actor.RootContext
	pid  *actor.PID
}

func NewRunner(root *actor.RootContext, name string) *Runner {
	return &Runner{
		root: root,
		pid:  root.Spawn(actor.PropsFromProducer(newWorker(name))),
	}
}

func (r *Runner) Go(result *models.AsyncCommandResult, work func() (any, error)) {
	r.root.Send(r.pid, messages.RunCommand{Result: result, Work: work})
}

// Stop waits for queued work to drain and stops the worker.
func (r *Runner) Stop() error {
	return r.root.PoisonFuture(r.pid).Wait()
}
