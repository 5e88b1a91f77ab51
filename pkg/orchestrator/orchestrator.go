// Package orchestrator wires a frame source, the ring buffer, the capture
// session, the optional frame recorder and the HTTP server together.
package orchestrator

import (
	"context"
	"fmt"
	"net"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/user/framecast/pkg/adapters/chromesource"
	"github.com/user/framecast/pkg/adapters/cmdsource"
	"github.com/user/framecast/pkg/adapters/framesaver"
	"github.com/user/framecast/pkg/adapters/nullsink"
	"github.com/user/framecast/pkg/adapters/relaysource"
	"github.com/user/framecast/pkg/adapters/replaysource"
	"github.com/user/framecast/pkg/adapters/testsource"
	"github.com/user/framecast/pkg/capture"
	"github.com/user/framecast/pkg/metrics"
	"github.com/user/framecast/pkg/ports"
	"github.com/user/framecast/pkg/recorder"
	"github.com/user/framecast/pkg/ring"
	"github.com/user/framecast/pkg/stream"
)

// Source kinds accepted in SourceConfig.Kind.
const (
	SourceCmd    = "cmd"
	SourceRelay  = "relay"
	SourceChrome = "chrome"
	SourceTest   = "testsrc"
	SourceReplay = "replay"
)

// Config contains all configuration for the orchestrator.
type Config struct {
	Addr      string
	Capacity  int
	Metrics   bool
	RecordDir string // empty disables recording

	Server  stream.Options
	Capture capture.Options
	Source  SourceConfig
}

// SourceConfig selects a source kind and carries the options of each kind.
type SourceConfig struct {
	Kind   string
	Cmd    cmdsource.Options
	Relay  relaysource.Options
	Chrome chromesource.Options
	Test   testsource.Options
	Replay replaysource.Options
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Addr:     ":8000",
		Capacity: ring.DefaultCapacity,
		Metrics:  true,
		Source:   SourceConfig{Kind: SourceCmd},
	}
}

// Orchestrator builds and runs the streaming server.
type Orchestrator struct {
	renderer   ports.Renderer
	fs         ports.FileSystem
	newBrowser func() ports.Browser
	logger     ports.Logger
}

// New creates a new Orchestrator. newBrowser is only called for the chrome
// source.
func New(renderer ports.Renderer, fs ports.FileSystem, newBrowser func() ports.Browser, logger ports.Logger) *Orchestrator {
	return &Orchestrator{
		renderer:   renderer,
		fs:         fs,
		newBrowser: newBrowser,
		logger:     logger,
	}
}

// NewSource builds the FrameSource selected by cfg.Kind.
func (o *Orchestrator) NewSource(cfg SourceConfig) (ports.FrameSource, error) {
	switch cfg.Kind {
	case SourceCmd, "":
		return cmdsource.New(cfg.Cmd, o.logger), nil
	case SourceRelay:
		return relaysource.New(cfg.Relay, o.logger), nil
	case SourceChrome:
		return chromesource.New(o.newBrowser, cfg.Chrome, o.logger), nil
	case SourceTest:
		return testsource.New(o.renderer, cfg.Test), nil
	case SourceReplay:
		return replaysource.New(o.fs, cfg.Replay, o.logger), nil
	}
	return nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
}

// Run listens on cfg.Addr and serves until ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context, cfg Config) error {
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Addr, err)
	}
	return o.Serve(ctx, cfg, ln)
}

// Serve runs every component on ln until ctx is cancelled or one of them
// fails. The source is stopped before Serve returns.
func (o *Orchestrator) Serve(ctx context.Context, cfg Config, ln net.Listener) error {
	buf, err := ring.New(cfg.Capacity)
	if err != nil {
		ln.Close()
		return fmt.Errorf("create ring buffer: %w", err)
	}
	source, err := o.NewSource(cfg.Source)
	if err != nil {
		ln.Close()
		return err
	}
	o.logger.Info("Starting %s", source.Name())

	var m *metrics.Metrics
	if cfg.Metrics {
		m = metrics.New(buf)
	}

	copts := cfg.Capture
	onState, onRestart := copts.OnStateChange, copts.OnRestart
	copts.OnStateChange = func(st capture.State) {
		m.SetSourceRunning(st == capture.StateRunning)
		if onState != nil {
			onState(st)
		}
	}
	copts.OnRestart = func(err error) {
		m.RecordSourceRestart()
		if onRestart != nil {
			onRestart(err)
		}
	}
	session := capture.New(source, buf, o.logger, copts)

	srv := stream.New(buf, session, o.renderer, m, o.logger, cfg.Server)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return session.Run(gctx)
	})
	g.Go(func() error {
		return srv.Serve(gctx, ln)
	})
	if sink := o.newSink(cfg.RecordDir); sink.Enabled() {
		g.Go(func() error {
			o.logger.Info("Recording frames to %s", cfg.RecordDir)
			return o.record(gctx, buf, session, sink, cfg.Server.PollInterval)
		})
	}

	return g.Wait()
}

// newSink returns a frame saver for dir, or a discarding sink when dir is
// empty.
func (o *Orchestrator) newSink(dir string) ports.FrameSink {
	if dir == "" {
		return nullsink.New()
	}
	return framesaver.New(dir, o.fs)
}

// record holds the session so the source keeps running, and saves every
// frame until ctx ends.
func (o *Orchestrator) record(ctx context.Context, buf *ring.Buffer, session *capture.Session, sink ports.FrameSink, poll time.Duration) error {
	release, err := session.Acquire(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("start recording: %w", err)
	}
	defer release()

	recorder.Tap(ctx, buf, sink, o.logger, poll)
	return nil
}
