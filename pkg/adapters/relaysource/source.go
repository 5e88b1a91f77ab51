// Package relaysource re-streams frames from an upstream MJPEG endpoint.
package relaysource

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/user/framecast/pkg/mjpeg"
	"github.com/user/framecast/pkg/ports"
	"github.com/user/framecast/pkg/ring"
)

// ErrStalled is returned when the upstream sends no frame for StallTimeout.
var ErrStalled = errors.New("upstream stalled")

// Options configures the relay.
type Options struct {
	URL string

	// StallTimeout aborts the connection when no frame arrives in time.
	// Zero disables the check.
	StallTimeout time.Duration

	// Client is used for the upstream request; nil means http.DefaultClient.
	Client *http.Client
}

// Source implements ports.FrameSource over an upstream multipart stream.
type Source struct {
	opts   Options
	logger ports.Logger
}

// New creates a relay source.
func New(opts Options, logger ports.Logger) *Source {
	return &Source{opts: opts, logger: logger.WithComponent("relay")}
}

// Name returns "relay:" plus the upstream URL.
func (s *Source) Name() string {
	return "relay:" + s.opts.URL
}

// Start connects to the upstream and emits each received frame as one chunk.
func (s *Source) Start(ctx context.Context, onData func([]byte)) error {
	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	stream, err := mjpeg.Dial(runCtx, s.opts.Client, s.opts.URL)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	defer stream.Close()
	s.logger.Info("Connected to upstream %s", s.opts.URL)

	var watchdog *time.Timer
	if s.opts.StallTimeout > 0 {
		watchdog = time.AfterFunc(s.opts.StallTimeout, func() { cancel(ErrStalled) })
		defer watchdog.Stop()
	}

	for {
		frame, err := stream.ReadFrame()
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return nil
			case errors.Is(context.Cause(runCtx), ErrStalled):
				return fmt.Errorf("%s: %w", s.opts.URL, ErrStalled)
			case errors.Is(err, io.EOF):
				return ports.ErrSourceEnded
			}
			return fmt.Errorf("read upstream frame: %w", err)
		}
		if watchdog != nil {
			watchdog.Reset(s.opts.StallTimeout)
		}

		if !bytes.HasPrefix(frame, ring.Marker) {
			s.logger.Debug("Skipping %d byte part without JPEG header", len(frame))
			continue
		}
		onData(frame)
	}
}

var _ ports.FrameSource = (*Source)(nil)
