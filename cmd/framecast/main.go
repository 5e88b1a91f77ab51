// Package main provides the CLI entry point for framecast.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/ideamans/go-l10n"

	"github.com/user/framecast/pkg/adapters/chromebrowser"
	"github.com/user/framecast/pkg/adapters/framesaver"
	"github.com/user/framecast/pkg/adapters/ggrenderer"
	"github.com/user/framecast/pkg/adapters/logger"
	"github.com/user/framecast/pkg/adapters/osfilesystem"
	"github.com/user/framecast/pkg/config"
	"github.com/user/framecast/pkg/mjpeg"
	"github.com/user/framecast/pkg/orchestrator"
	"github.com/user/framecast/pkg/ports"
	"github.com/user/framecast/pkg/recorder"
	"github.com/user/framecast/pkg/summarizer"
)

// CLI defines the command-line interface with subcommands.
type CLI struct {
	Serve   ServeCmd   `cmd:"" help:"${help_serve}"`
	Save    SaveCmd    `cmd:"" help:"${help_save}"`
	Version VersionCmd `cmd:"" help:"${help_version}"`
}

// LogFlags are shared by commands that log.
type LogFlags struct {
	LogLevel string `short:"l" help:"${help_log_level}"`
	Quiet    bool   `short:"Q" help:"${help_quiet}"`
}

func (f LogFlags) logger() ports.Logger {
	if f.Quiet {
		return logger.NewNoop()
	}
	return logger.NewConsole(ports.ParseLogLevel(f.LogLevel))
}

// ServeCmd defines the serve subcommand. Flags override the config file.
type ServeCmd struct {
	Config string `short:"c" type:"existingfile" help:"${help_config}"`

	Addr       *string `short:"a" help:"${help_addr}"`
	StreamPath *string `help:"${help_stream_path}"`
	Capacity   *int    `help:"${help_capacity}"`

	Source     string         `short:"s" help:"${help_source}"`
	URL        *string        `short:"u" help:"${help_url}"`
	Command    []string       `help:"${help_command}"`
	Dir        *string        `help:"${help_dir}"`
	FPS        *float64       `help:"${help_fps}"`
	ChromePath *string        `help:"${help_chrome_path}"`
	Headful    bool           `help:"${help_headful}"`
	AlwaysOn   bool           `help:"${help_always_on}"`
	Linger     *time.Duration `help:"${help_linger}"`
	RecordDir  *string        `short:"r" help:"${help_record_dir}"`
	NoMetrics  bool           `help:"${help_no_metrics}"`

	LogFlags
}

// SaveCmd defines the save subcommand.
type SaveCmd struct {
	URL     string `arg:"" help:"${help_save_url}"`
	Dir     string `short:"o" default:"frames" help:"${help_save_dir}"`
	Count   int    `short:"n" default:"0" help:"${help_count}"`
	Summary string `help:"${help_summary}"`

	LogFlags
}

// VersionCmd shows version information.
type VersionCmd struct{}

var version = "dev"

func main() {
	cli := CLI{}

	ctx := kong.Parse(&cli,
		kong.Name("framecast"),
		kong.Description(l10n.T("Serve a live JPEG frame stream over HTTP")),
		kong.UsageOnError(),
		helpVars(),
	)

	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(log ports.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			log.Warn("Interrupted, shutting down...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

// Run executes the serve command.
func (cmd *ServeCmd) Run() error {
	cfg, err := cmd.buildConfig()
	if err != nil {
		return err
	}

	if cmd.LogLevel == "" {
		cmd.LogLevel = cfg.Log.Level
	}
	log := cmd.logger()

	ctx, cancel := signalContext(log)
	defer cancel()

	fs := osfilesystem.New()
	renderer := ggrenderer.New()
	newBrowser := func() ports.Browser { return chromebrowser.New() }

	orch := orchestrator.New(renderer, fs, newBrowser, log)
	return orch.Run(ctx, cfg.ToOrchestratorConfig())
}

// buildConfig loads the config file, if any, and applies flag overrides.
func (cmd *ServeCmd) buildConfig() (config.Config, error) {
	cfg := config.Defaults()
	if cmd.Config != "" {
		var err error
		if cfg, err = config.LoadFromFile(cmd.Config); err != nil {
			return cfg, err
		}
	}

	if cmd.Addr != nil {
		cfg.Server.Addr = *cmd.Addr
	}
	if cmd.StreamPath != nil {
		cfg.Server.StreamPath = *cmd.StreamPath
	}
	if cmd.Capacity != nil {
		cfg.Buffer.Capacity = *cmd.Capacity
	}
	if cmd.NoMetrics {
		cfg.Server.Metrics = false
	}

	if cmd.Source != "" {
		cfg.Source.Kind = cmd.Source
	}
	src := &cfg.Source
	if cmd.URL != nil {
		src.Relay.URL = *cmd.URL
		src.Chrome.URL = *cmd.URL
	}
	if len(cmd.Command) > 0 {
		src.Cmd.Command = cmd.Command
	}
	if cmd.Dir != nil {
		src.Replay.Dir = *cmd.Dir
	}
	if cmd.FPS != nil {
		src.Test.FPS = *cmd.FPS
		src.Replay.FPS = *cmd.FPS
	}
	if cmd.ChromePath != nil {
		src.Chrome.ChromePath = *cmd.ChromePath
	}
	if cmd.Headful {
		src.Chrome.Headful = true
	}

	if cmd.AlwaysOn {
		cfg.Capture.AlwaysOn = true
	}
	if cmd.Linger != nil {
		cfg.Capture.Linger = *cmd.Linger
	}
	if cmd.RecordDir != nil {
		cfg.Record.Dir = *cmd.RecordDir
	}
	if cmd.LogLevel != "" {
		cfg.Log.Level = cmd.LogLevel
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Run executes the save command.
func (cmd *SaveCmd) Run() error {
	log := cmd.logger()

	ctx, cancel := signalContext(log)
	defer cancel()

	s, err := mjpeg.Dial(ctx, nil, cmd.URL)
	if err != nil {
		return err
	}
	defer s.Close()
	log.Info("Connected to upstream %s", cmd.URL)

	fs := osfilesystem.New()
	sink := framesaver.New(cmd.Dir, fs)
	started := time.Now()
	res, err := recorder.Copy(ctx, s, sink, cmd.Count)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("Saved %d frames to %s", res.Saved, sink.Dir())

	if cmd.Summary != "" {
		summary := summarizer.NewBuilder().
			WithSource(cmd.URL).
			WithOutputDir(sink.Dir()).
			WithTiming(started, time.Since(started)).
			WithFrames(summarizer.FrameInfo{
				Saved:   res.Saved,
				Dropped: res.Dropped,
				Failed:  res.Failed,
				Bytes:   res.Bytes,
			}).
			Build()
		w := summarizer.NewWriter(summarizer.NewMarkdownFormatter(), fs)
		if err := w.Write(cmd.Summary, summary); err != nil {
			log.Warn("Failed to write summary: %v", err)
		} else {
			log.Info("Summary saved to %s", cmd.Summary)
		}
	}
	return nil
}

// Run executes the version command.
func (cmd *VersionCmd) Run() error {
	fmt.Println(l10n.F("framecast version %s", version))
	return nil
}
