package main

import (
	"fmt"
	"github.com/asynkron/protoactor-go/actor"
	zLog "github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"go-teethagent/internal/agent"
	"go-teethagent/internal/api"
	"go-teethagent/internal/config"
	"go-teethagent/internal/hardware"
	"go-teethagent/internal/modes"
	"go-teethagent/internal/modes/standby"
	"go-teethagent/internal/worker"
	"go-teethagent/pkg/logger"
	"log"
	"os"
	"os/signal"
	"syscall"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:    "teeth-agent",
		Usage:   "run the node agent",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "path to a YAML config file", EnvVars: []string{"TEETH_AGENT_CONFIG"}},
			&cli.StringFlag{Name: "api-url", Usage: "URL of the control API", EnvVars: []string{"TEETH_AGENT_API_URL"}},
			&cli.StringFlag{Name: "listen-host", Usage: "host to listen on, defaults to the advertise host", EnvVars: []string{"TEETH_AGENT_LISTEN_HOST"}},
			&cli.IntFlag{Name: "listen-port", Usage: "port to listen on", Value: config.DefaultPort, EnvVars: []string{"TEETH_AGENT_LISTEN_PORT"}},
			&cli.StringFlag{Name: "advertise-host", Usage: "host reported to the control API, discovered when empty", EnvVars: []string{"TEETH_AGENT_ADVERTISE_HOST"}},
			&cli.IntFlag{Name: "advertise-port", Usage: "port reported to the control API", Value: config.DefaultPort, EnvVars: []string{"TEETH_AGENT_ADVERTISE_PORT"}},
			&cli.StringFlag{Name: "image-cache-dir", Usage: "directory for cached images", EnvVars: []string{"TEETH_AGENT_IMAGE_CACHE_DIR"}},
			&cli.StringFlag{Name: "log-level", Usage: "log level", Value: "info", EnvVars: []string{"TEETH_AGENT_LOG_LEVEL"}},
			&cli.BoolFlag{Name: "pretty-logs", Usage: "human readable console logs", EnvVars: []string{"TEETH_AGENT_PRETTY_LOGS"}},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("agent failed: %v", err)
	}
}

// loadConfig reads the config file, if any, and applies flags that were set explicitly.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	cfg.Apply(overrides(c))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func overrides(c *cli.Context) config.Overrides {
	o := config.Overrides{}
	str := func(name string) *string {
		if !c.IsSet(name) {
			return nil
		}
		v := c.String(name)
		return &v
	}
	num := func(name string) *int {
		if !c.IsSet(name) {
			return nil
		}
		v := c.Int(name)
		return &v
	}

	o.APIURL = str("api-url")
	o.ListenHost = str("listen-host")
	o.ListenPort = num("listen-port")
	o.AdvertiseHost = str("advertise-host")
	o.AdvertisePort = num("advertise-port")
	o.ImageCacheDir = str("image-cache-dir")
	o.LogLevel = str("log-level")
	if c.IsSet("pretty-logs") {
		pretty := c.Bool("pretty-logs")
		o.PrettyLogs = &pretty
	}
	return o
}

func run(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	if err := logger.NewGlobal(cfg.Logging.Level, cfg.Logging.Pretty); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	system := actor.NewActorSystem()

	runner := worker.NewRunner(system.Root, standby.Name)
	defer func() {
		if err := runner.Stop(); err != nil {
			zLog.Warn().Err(err).Msg("worker did not stop cleanly")
		}
	}()

	registry := modes.NewRegistry()
	registry.Register(modes.Namespace, standby.Name, standby.Factory(runner, cfg.Modes.ImageCacheDir))

	a, err := agent.Build(agent.Options{
		APIURL:           cfg.API.URL,
		ListenAddress:    agent.Address{Host: cfg.Listen.Host, Port: cfg.Listen.Port},
		AdvertiseAddress: agent.Address{Host: cfg.Advertise.Host, Port: cfg.Advertise.Port},
		Version:          version,
		Modes:            modes.NewResolver(registry, modes.Namespace),
		Hardware:         hardware.NewGenericManager(),
		Heartbeat:        cfg.HeartbeatConfig(),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zLog.Info().
		Str("listen", a.ListenAddress().String()).
		Str("url", a.URL()).
		Str(logger.APIURLField, cfg.API.URL).
		Strs("modes", registry.Names(modes.Namespace)).
		Msg("agent configured")

	app := api.New(a, a.ListenAddress().String())
	if err := a.Run(ctx, app); err != nil {
		return err
	}

	zLog.Info().Msg("agent exiting")
	return nil
}
