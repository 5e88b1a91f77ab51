// Package config provides configuration loading and management.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/user/framecast/pkg/adapters/chromesource"
	"github.com/user/framecast/pkg/adapters/cmdsource"
	"github.com/user/framecast/pkg/adapters/relaysource"
	"github.com/user/framecast/pkg/adapters/replaysource"
	"github.com/user/framecast/pkg/adapters/testsource"
	"github.com/user/framecast/pkg/capture"
	"github.com/user/framecast/pkg/orchestrator"
	"github.com/user/framecast/pkg/ports"
	"github.com/user/framecast/pkg/stream"
)

// Source kinds.
const (
	SourceCmd    = orchestrator.SourceCmd
	SourceRelay  = orchestrator.SourceRelay
	SourceChrome = orchestrator.SourceChrome
	SourceTest   = orchestrator.SourceTest
	SourceReplay = orchestrator.SourceReplay
)

// SourceKinds lists the accepted source.kind values.
var SourceKinds = []string{SourceCmd, SourceRelay, SourceChrome, SourceTest, SourceReplay}

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid configuration")

// Config represents the full configuration for framecast.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Buffer  BufferConfig  `yaml:"buffer"`
	Source  SourceConfig  `yaml:"source"`
	Capture CaptureConfig `yaml:"capture"`
	Record  RecordConfig  `yaml:"record"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	StreamPath      string        `yaml:"stream_path"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	SnapshotTimeout time.Duration `yaml:"snapshot_timeout"`
	SnapshotQuality int           `yaml:"snapshot_quality"`
	Metrics         bool          `yaml:"metrics"`
}

// BufferConfig configures the frame ring buffer.
type BufferConfig struct {
	Capacity int `yaml:"capacity"`
}

// SourceConfig selects the frame source and holds per-kind options.
type SourceConfig struct {
	Kind   string             `yaml:"kind"`
	Cmd    CmdSourceConfig    `yaml:"cmd"`
	Relay  RelaySourceConfig  `yaml:"relay"`
	Chrome ChromeSourceConfig `yaml:"chrome"`
	Test   TestSourceConfig   `yaml:"testsrc"`
	Replay ReplaySourceConfig `yaml:"replay"`
}

// CmdSourceConfig runs an encoder process.
type CmdSourceConfig struct {
	Command      []string `yaml:"command"`
	MaxFrameSize int      `yaml:"max_frame_size"`
}

// RelaySourceConfig re-serves an upstream MJPEG stream.
type RelaySourceConfig struct {
	URL          string        `yaml:"url"`
	StallTimeout time.Duration `yaml:"stall_timeout"`
}

// ChromeSourceConfig screencasts a web page.
type ChromeSourceConfig struct {
	URL            string        `yaml:"url"`
	ChromePath     string        `yaml:"chrome_path"`
	Width          int           `yaml:"width"`
	Height         int           `yaml:"height"`
	Quality        int           `yaml:"quality"`
	Headful        bool          `yaml:"headful"`
	RepeatInterval time.Duration `yaml:"repeat_interval"`
}

// TestSourceConfig renders a synthetic test pattern.
type TestSourceConfig struct {
	Width   int     `yaml:"width"`
	Height  int     `yaml:"height"`
	FPS     float64 `yaml:"fps"`
	Quality int     `yaml:"quality"`
	Label   string  `yaml:"label"`
}

// ReplaySourceConfig replays saved frame files.
type ReplaySourceConfig struct {
	Dir     string  `yaml:"dir"`
	Pattern string  `yaml:"pattern"`
	FPS     float64 `yaml:"fps"`
	Loop    bool    `yaml:"loop"`
}

// CaptureConfig controls when the source runs.
type CaptureConfig struct {
	AlwaysOn     bool          `yaml:"always_on"`
	Linger       time.Duration `yaml:"linger"`
	RestartDelay time.Duration `yaml:"restart_delay"`
}

// RecordConfig enables saving every frame to a directory.
type RecordConfig struct {
	Dir string `yaml:"dir"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Defaults returns a Config with default values.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8000",
			StreamPath:      "/stream.mjpg",
			PollInterval:    100 * time.Millisecond,
			SnapshotTimeout: 5 * time.Second,
			SnapshotQuality: 85,
			Metrics:         true,
		},
		Buffer: BufferConfig{
			Capacity: 120,
		},
		Source: SourceConfig{
			Kind: SourceCmd,
			Relay: RelaySourceConfig{
				StallTimeout: 10 * time.Second,
			},
			Chrome: ChromeSourceConfig{
				Width:          1280,
				Height:         720,
				Quality:        80,
				RepeatInterval: time.Second,
			},
			Test: TestSourceConfig{
				Width:   640,
				Height:  360,
				FPS:     10,
				Quality: 80,
				Label:   "framecast",
			},
			Replay: ReplaySourceConfig{
				Pattern: "*.jpg",
				FPS:     10,
				Loop:    true,
			},
		},
		Capture: CaptureConfig{
			Linger:       2 * time.Second,
			RestartDelay: time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadFromFile loads configuration from a YAML file over Defaults.
func LoadFromFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Defaults(), fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := Load(f)
	if err != nil {
		return cfg, fmt.Errorf("load %s: %w", path, err)
	}
	return cfg, nil
}

// Load decodes YAML from r over Defaults. Unknown keys are rejected.
func Load(r io.Reader) (Config, error) {
	cfg := Defaults()

	data, err := io.ReadAll(r)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Validate reports every invalid setting, each wrapping ErrInvalid.
func (c Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...)))
	}

	if c.Server.Addr == "" {
		invalid("server.addr is empty")
	}
	if !strings.HasPrefix(c.Server.StreamPath, "/") {
		invalid("server.stream_path %q must start with /", c.Server.StreamPath)
	}
	if c.Server.PollInterval <= 0 {
		invalid("server.poll_interval must be positive")
	}
	if c.Server.SnapshotQuality < 0 || c.Server.SnapshotQuality > 100 {
		invalid("server.snapshot_quality %d is out of range 0-100", c.Server.SnapshotQuality)
	}
	if c.Buffer.Capacity <= 0 {
		invalid("buffer.capacity must be a positive integer, got %d", c.Buffer.Capacity)
	}
	if c.Capture.Linger < 0 || c.Capture.RestartDelay < 0 {
		invalid("capture durations must not be negative")
	}
	if lvl := strings.ToLower(strings.TrimSpace(c.Log.Level)); lvl != "warning" && ports.ParseLogLevel(lvl).String() != lvl {
		invalid("log.level %q is not one of debug, info, warn, error, quiet", c.Log.Level)
	}

	switch c.Source.Kind {
	case SourceCmd, SourceTest:
	case SourceRelay:
		if c.Source.Relay.URL == "" {
			invalid("source.relay.url is required")
		}
	case SourceChrome:
		if c.Source.Chrome.URL == "" {
			invalid("source.chrome.url is required")
		}
	case SourceReplay:
		if c.Source.Replay.Dir == "" {
			invalid("source.replay.dir is required")
		}
	default:
		invalid("source.kind %q is not one of %s", c.Source.Kind, strings.Join(SourceKinds, ", "))
	}

	return errors.Join(errs...)
}

// ToOrchestratorConfig converts Config to orchestrator.Config.
func (c Config) ToOrchestratorConfig() orchestrator.Config {
	src := c.Source
	return orchestrator.Config{
		Addr:      c.Server.Addr,
		Capacity:  c.Buffer.Capacity,
		Metrics:   c.Server.Metrics,
		RecordDir: c.Record.Dir,

		Server: stream.Options{
			StreamPath:      c.Server.StreamPath,
			PollInterval:    c.Server.PollInterval,
			WriteTimeout:    c.Server.WriteTimeout,
			SnapshotTimeout: c.Server.SnapshotTimeout,
			SnapshotQuality: c.Server.SnapshotQuality,
		},
		Capture: capture.Options{
			AlwaysOn:     c.Capture.AlwaysOn,
			Linger:       c.Capture.Linger,
			RestartDelay: c.Capture.RestartDelay,
		},
		Source: orchestrator.SourceConfig{
			Kind: src.Kind,
			Cmd: cmdsource.Options{
				Command:      src.Cmd.Command,
				MaxFrameSize: src.Cmd.MaxFrameSize,
			},
			Relay: relaysource.Options{
				URL:          src.Relay.URL,
				StallTimeout: src.Relay.StallTimeout,
			},
			Chrome: chromesource.Options{
				URL:            src.Chrome.URL,
				ChromePath:     src.Chrome.ChromePath,
				Width:          src.Chrome.Width,
				Height:         src.Chrome.Height,
				Quality:        src.Chrome.Quality,
				Headful:        src.Chrome.Headful,
				RepeatInterval: src.Chrome.RepeatInterval,
			},
			Test: testsource.Options{
				Width:   src.Test.Width,
				Height:  src.Test.Height,
				FPS:     src.Test.FPS,
				Quality: src.Test.Quality,
				Label:   src.Test.Label,
			},
			Replay: replaysource.Options{
				Dir:     src.Replay.Dir,
				Pattern: src.Replay.Pattern,
				FPS:     src.Replay.FPS,
				Loop:    src.Replay.Loop,
			},
		},
	}
}
