// Package chromesource streams a web page by screencasting it in headless
// Chrome.
package chromesource

import (
	"context"
	"fmt"
	"time"

	"github.com/user/framecast/pkg/ports"
)

// Options configures the page capture.
type Options struct {
	URL        string
	ChromePath string
	Width      int
	Height     int
	Quality    int
	Headful    bool

	// RepeatInterval re-emits the last frame when the page has not repainted
	// for this long, so viewers of a static page still receive frames.
	// Zero disables repeating.
	RepeatInterval time.Duration
}

// Source implements ports.FrameSource over a browser screencast.
type Source struct {
	newBrowser func() ports.Browser
	opts       Options
	logger     ports.Logger
}

// New creates a page source. newBrowser is called once per Start.
func New(newBrowser func() ports.Browser, opts Options, logger ports.Logger) *Source {
	if opts.Width <= 0 {
		opts.Width = 1280
	}
	if opts.Height <= 0 {
		opts.Height = 720
	}
	if opts.Quality <= 0 {
		opts.Quality = 80
	}
	return &Source{newBrowser: newBrowser, opts: opts, logger: logger.WithComponent("chrome")}
}

// Name returns "chrome:" plus the page URL.
func (s *Source) Name() string {
	return "chrome:" + s.opts.URL
}

// Start launches a browser, opens the page and emits screencast frames until
// ctx is cancelled. The browser is closed on return.
func (s *Source) Start(ctx context.Context, onData func([]byte)) error {
	b := s.newBrowser()
	defer b.Close()

	o := s.opts
	s.logger.Debug("Launching browser")
	err := b.Launch(ctx, ports.BrowserOptions{
		Headless:     !o.Headful,
		ChromePath:   o.ChromePath,
		WindowWidth:  o.Width,
		WindowHeight: o.Height,
	})
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}
	if err := b.SetViewport(o.Width, o.Height); err != nil {
		return err
	}
	s.logger.Debug("Navigating to %s", o.URL)
	if err := b.Navigate(o.URL); err != nil {
		return err
	}

	frames, err := b.StartScreencast(o.Quality, o.Width, o.Height)
	if err != nil {
		return err
	}
	defer b.StopScreencast()

	var (
		last    []byte
		repeat  <-chan time.Time
		lastAt  time.Time
		emitted int
	)
	if o.RepeatInterval > 0 {
		t := time.NewTicker(o.RepeatInterval)
		defer t.Stop()
		repeat = t.C
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Captured %d frames", emitted)
			return nil
		case f, ok := <-frames:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ports.ErrSourceEnded
			}
			onData(f.Data)
			last, lastAt = f.Data, time.Now()
			emitted++
		case now := <-repeat:
			if last != nil && now.Sub(lastAt) >= o.RepeatInterval {
				onData(last)
				lastAt = now
			}
		}
	}
}

var _ ports.FrameSource = (*Source)(nil)
