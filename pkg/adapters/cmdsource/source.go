// Package cmdsource runs an external encoder command and reads concatenated
// JPEG frames from its standard output.
package cmdsource

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/user/framecast/pkg/mjpeg"
	"github.com/user/framecast/pkg/ports"
)

// DefaultCommand captures from a Raspberry Pi camera module.
var DefaultCommand = []string{"libcamera-vid", "-t", "0", "-n", "--codec", "mjpeg", "-o", "-"}

// DefaultMaxFrameSize bounds a single frame read from the command.
const DefaultMaxFrameSize = 8 << 20

// ErrNoCommand is returned by Start when no command is configured.
var ErrNoCommand = errors.New("no encoder command configured")

// Options configures the command source.
type Options struct {
	Command      []string // argv; empty means DefaultCommand
	MaxFrameSize int      // 0 means DefaultMaxFrameSize
	StopTimeout  time.Duration
}

// Source implements ports.FrameSource over an encoder process.
type Source struct {
	opts   Options
	logger ports.Logger
}

// New creates a command source.
func New(opts Options, logger ports.Logger) *Source {
	if opts.Command == nil {
		opts.Command = DefaultCommand
	}
	if opts.MaxFrameSize <= 0 {
		opts.MaxFrameSize = DefaultMaxFrameSize
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = 2 * time.Second
	}
	return &Source{opts: opts, logger: logger.WithComponent("cmdsource")}
}

// Name returns "cmd:" plus the executable name.
func (s *Source) Name() string {
	if len(s.opts.Command) == 0 {
		return "cmd"
	}
	return "cmd:" + filepath.Base(s.opts.Command[0])
}

// Start runs the command until ctx is cancelled or the command exits.
// Cancellation sends an interrupt and kills the process after StopTimeout.
func (s *Source) Start(ctx context.Context, onData func([]byte)) error {
	if len(s.opts.Command) == 0 {
		return ErrNoCommand
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	argv := s.opts.Command
	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = s.opts.StopTimeout

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}

	s.logger.Debug("Starting %s", cmd.String())
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", argv[0], err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sc := bufio.NewScanner(stderr)
		for sc.Scan() {
			s.logger.Debug("%s", sc.Text())
		}
	}()

	sc := bufio.NewScanner(stdout)
	sc.Buffer(make([]byte, 0, 64*1024), s.opts.MaxFrameSize)
	sc.Split(mjpeg.ScanFrames)
	for sc.Scan() {
		onData(sc.Bytes())
	}
	scanErr := sc.Err()
	if scanErr != nil {
		// the process would block on a full pipe otherwise
		cancel()
	}

	wg.Wait()
	waitErr := cmd.Wait()

	switch {
	case ctx.Err() != nil:
		return nil
	case scanErr != nil:
		return fmt.Errorf("read %s output: %w", argv[0], scanErr)
	case waitErr != nil:
		return fmt.Errorf("%s: %w", argv[0], waitErr)
	}
	return ports.ErrSourceEnded
}

var _ ports.FrameSource = (*Source)(nil)
