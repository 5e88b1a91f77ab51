// Package replaysource plays back a directory of saved JPEG frames.
package replaysource

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/user/framecast/pkg/ports"
	"github.com/user/framecast/pkg/ring"
)

// ErrNoFrames is returned when the directory holds no matching files.
var ErrNoFrames = errors.New("no frames to replay")

// Options configures playback.
type Options struct {
	Dir     string
	Pattern string // file name glob; default "*.jpg"
	FPS     float64
	Loop    bool
}

// Source implements ports.FrameSource over saved frame files.
type Source struct {
	fs     ports.FileSystem
	opts   Options
	logger ports.Logger
}

// New creates a replay source.
func New(fs ports.FileSystem, opts Options, logger ports.Logger) *Source {
	if opts.Pattern == "" {
		opts.Pattern = "*.jpg"
	}
	if opts.FPS <= 0 {
		opts.FPS = 10
	}
	return &Source{fs: fs, opts: opts, logger: logger.WithComponent("replay")}
}

// Name returns "replay:" plus the directory.
func (s *Source) Name() string {
	return "replay:" + s.opts.Dir
}

// Start emits the files in name order at FPS. Without Loop it returns
// ports.ErrSourceEnded after the last file.
func (s *Source) Start(ctx context.Context, onData func([]byte)) error {
	names, err := s.frameNames()
	if err != nil {
		return err
	}
	s.logger.Debug("Replaying %d frames from %s", len(names), s.opts.Dir)

	ticker := time.NewTicker(time.Duration(float64(time.Second) / s.opts.FPS))
	defer ticker.Stop()

	for {
		for _, name := range names {
			if ctx.Err() != nil {
				return nil
			}
			path := filepath.Join(s.opts.Dir, name)
			data, err := s.fs.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read frame %s: %w", path, err)
			}
			if !bytes.HasPrefix(data, ring.Marker) {
				s.logger.Warn("Skipping %s: not a JPEG file", name)
				continue
			}
			onData(data)

			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
		if !s.opts.Loop {
			return ports.ErrSourceEnded
		}
	}
}

func (s *Source) frameNames() ([]string, error) {
	all, err := s.fs.List(s.opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.opts.Dir, err)
	}
	var names []string
	for _, name := range all {
		ok, err := filepath.Match(s.opts.Pattern, name)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", s.opts.Pattern, err)
		}
		if ok {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoFrames, s.opts.Dir)
	}
	return names, nil
}

var _ ports.FrameSource = (*Source)(nil)
