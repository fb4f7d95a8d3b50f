package agent

import (
	"context"
	"fmt"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go-teethagent/internal/hardware"
	"go-teethagent/internal/heartbeat"
	"go-teethagent/internal/modes"
	"go-teethagent/internal/overlord"
	"go-teethagent/pkg/agenterrors"
	"go-teethagent/pkg/logger"
	"go-teethagent/pkg/models"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

type ModeResolver interface {
	Resolve(name string) (modes.Mode, error)
}

// Server is the operations surface the agent serves while it runs. Serve blocks until ctx
// is done or serving fails.
type Server interface {
	Serve(ctx context.Context) error
}

type Address struct {
	Host string
	Port int
}

func (a Address) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

type Options struct {
	APIURL           string
	ListenAddress    Address
	AdvertiseAddress Address
	Version          string
	Modes            ModeResolver
	Hardware         hardware.Manager
	Heartbeat        heartbeat.Config
	// Overlord overrides the heartbeat client built from APIURL.
	Overlord heartbeat.Client
}

type Agent struct {
	apiURL           string
	listenAddress    Address
	advertiseAddress Address
	version          string
	startedAt        atomic.Pointer[time.Time]

	resolver    ModeResolver
	hardware    hardware.Manager
	heartbeater *heartbeat.Heartbeater
	log         zerolog.Logger

	// commandLock serializes ExecuteCommand; it guards mode and appends to results.
	commandLock sync.Mutex
	mode        modes.Mode
	modeName    atomic.Value
	results     *resultHistory
}

func New(opts Options) *Agent {
	version := opts.Version
	if version == "" {
		version = "unknown"
	}

	a := &Agent{
		apiURL:           opts.APIURL,
		listenAddress:    opts.ListenAddress,
		advertiseAddress: opts.AdvertiseAddress,
		version:          version,
		resolver:         opts.Modes,
		hardware:         opts.Hardware,
		results:          newResultHistory(),
		log:              logger.Component("agent"),
	}
	a.modeName.Store(models.NoMode)

	client := opts.Overlord
	if client == nil {
		client = overlord.NewClient(opts.APIURL, opts.Heartbeat.RequestTimeout)
	}
	a.heartbeater = heartbeat.New(opts.Heartbeat, client, a, opts.APIURL)
	return a
}

// ModeName returns the bound mode's name, or models.NoMode. It never waits on a running
// command.
func (a *Agent) ModeName() string {
	return a.modeName.Load().(string)
}

func (a *Agent) Version() string {
	return a.version
}

func (a *Agent) ListenAddress() Address {
	return a.listenAddress
}

// URL is where the overlord can reach this agent.
func (a *Agent) URL() string {
	return fmt.Sprintf("http://%s/", a.advertiseAddress)
}

func (a *Agent) MACAddress() (string, error) {
	return a.hardware.PrimaryMACAddress()
}

func (a *Agent) GetStatus() models.AgentStatus {
	return models.AgentStatus{
		Mode:      a.ModeName(),
		StartedAt: a.startedAt.Load(),
		Version:   a.version,
	}
}

func (a *Agent) ListCommandResults() []models.CommandResult {
	return a.results.list()
}

func (a *Agent) GetCommandResult(id string) (models.CommandResult, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, agenterrors.NewNotFound("Command Result", id)
	}
	r, ok := a.results.get(parsed)
	if !ok {
		return nil, agenterrors.NewNotFound("Command Result", id)
	}
	return r, nil
}

// Run serves srv until ctx is done or serving fails. The heartbeater runs alongside and is
// always stopped before Run returns.
func (a *Agent) Run(ctx context.Context, srv Server) error {
	now := time.Now()
	a.startedAt.Store(&now)

	a.log.Info().Str("listen", a.listenAddress.String()).Str("url", a.URL()).Str("version", a.version).Msg("starting agent")
	a.heartbeater.Start()
	defer a.heartbeater.Stop()

	if err := srv.Serve(ctx); err != nil {
		a.log.Error().Err(err).Msg("shutting down")
		return err
	}
	a.log.Info().Msg("shutting down")
	return nil
}
