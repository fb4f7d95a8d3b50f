package heartbeat

import (
	"context"
	"github.com/rs/zerolog"
	"go-teethagent/internal/overlord"
	"go-teethagent/pkg/logger"
	"math/rand"
	"sync"
	"time"
)

// Config tunes the heartbeat cadence. If the overlord asks for a heartbeat within N, the
// agent waits r*N where r is drawn uniformly from [MinJitter, MaxJitter]. Failed heartbeats
// are retried after an exponentially growing delay, capped at MaxDelay, which is jittered
// the same way.
type Config struct {
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	BackoffFactor  float64
	MinJitter      float64
	MaxJitter      float64
	RequestTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		InitialDelay:   time.Second,
		MaxDelay:       300 * time.Second,
		BackoffFactor:  2.7,
		MinJitter:      0.3,
		MaxJitter:      0.6,
		RequestTimeout: 30 * time.Second,
	}
}

type Client interface {
	Heartbeat(ctx context.Context, hb overlord.Heartbeat) (time.Time, error)
}

// Source provides the values reported in each heartbeat.
type Source interface {
	MACAddress() (string, error)
	URL() string
	Version() string
	ModeName() string
}

type Heartbeater struct {
	cfg    Config
	client Client
	source Source
	log    zerolog.Logger

	now    func() time.Time
	jitter func() float64

	errorDelay time.Duration

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

func New(cfg Config, client Client, source Source, apiURL string) *Heartbeater {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Heartbeater{
		cfg:        cfg,
		client:     client,
		source:     source,
		log:        logger.Component("heartbeater").With().Str(logger.APIURLField, apiURL).Logger(),
		now:        time.Now,
		jitter:     func() float64 { return cfg.MinJitter + rng.Float64()*(cfg.MaxJitter-cfg.MinJitter) },
		errorDelay: cfg.InitialDelay,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start launches the heartbeat loop. The first heartbeat is sent immediately.
func (h *Heartbeater) Start() {
	h.startOnce.Do(func() {
		h.log.Info().Msg("starting heartbeater")
		go h.run()
	})
}

// Stop signals the loop and blocks until it has exited. A heartbeat already in flight is
// allowed to finish; no new one starts after Stop returns.
func (h *Heartbeater) Stop() {
	h.stopOnce.Do(func() {
		h.log.Info().Msg("stopping heartbeater")
		close(h.stop)
	})
	h.startOnce.Do(func() { close(h.done) })
	<-h.done
}

// Done is closed once the loop has exited.
func (h *Heartbeater) Done() <-chan struct{} {
	return h.done
}

func (h *Heartbeater) run() {
	defer close(h.done)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-h.stop:
			return
		case <-timer.C:
		}

		// Stop may have raced with the timer firing.
		select {
		case <-h.stop:
			return
		default:
		}

		interval := h.interval(h.heartbeat())
		h.log.Info().Dur(logger.IntervalField, interval).Msg("sleeping before next heartbeat")
		timer.Reset(interval)
	}
}

// heartbeat sends one heartbeat and returns the deadline for the next one. Failures are
// logged and turned into a backed-off deadline.
func (h *Heartbeater) heartbeat() time.Time {
	deadline, err := h.send()
	if err != nil {
		h.log.Error().Err(err).Msg("error sending heartbeat")
		deadline = h.now().Add(h.errorDelay)
		h.errorDelay = h.nextErrorDelay()
		return deadline
	}

	h.errorDelay = h.cfg.InitialDelay
	h.log.Info().Msg("heartbeat successful")
	return deadline
}

func (h *Heartbeater) send() (time.Time, error) {
	mac, err := h.source.MACAddress()
	if err != nil {
		return time.Time{}, err
	}

	ctx := context.Background()
	if h.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.cfg.RequestTimeout)
		defer cancel()
	}

	return h.client.Heartbeat(ctx, overlord.Heartbeat{
		MACAddress: mac,
		URL:        h.source.URL(),
		Version:    h.source.Version(),
		Mode:       h.source.ModeName(),
	})
}

func (h *Heartbeater) nextErrorDelay() time.Duration {
	next := time.Duration(float64(h.errorDelay) * h.cfg.BackoffFactor)
	if next > h.cfg.MaxDelay || next < 0 {
		return h.cfg.MaxDelay
	}
	return next
}

func (h *Heartbeater) interval(deadline time.Time) time.Duration {
	interval := time.Duration(float64(deadline.Sub(h.now())) * h.jitter())
	if interval < 0 {
		return 0
	}
	return interval
}
