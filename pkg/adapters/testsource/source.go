// Package testsource renders a synthetic test pattern so the server can run
// without a camera.
package testsource

import (
	"context"
	"fmt"
	"image/color"
	"time"

	"github.com/user/framecast/pkg/ports"
)

// Options configures the pattern.
type Options struct {
	Width   int
	Height  int
	FPS     float64
	Quality int
	Label   string

	// Frames stops the source after this many frames. Zero runs forever.
	Frames int
}

var (
	background = color.RGBA{R: 0x20, G: 0x24, B: 0x2b, A: 0xff}
	bar        = color.RGBA{R: 0x3d, G: 0x9b, B: 0xe9, A: 0xff}
	foreground = color.White
)

// Source implements ports.FrameSource by drawing frames with a Renderer.
type Source struct {
	renderer ports.Renderer
	opts     Options
	now      func() time.Time
}

// New creates a test pattern source.
func New(renderer ports.Renderer, opts Options) *Source {
	if opts.Width <= 0 {
		opts.Width = 640
	}
	if opts.Height <= 0 {
		opts.Height = 360
	}
	if opts.FPS <= 0 {
		opts.FPS = 10
	}
	if opts.Label == "" {
		opts.Label = "framecast"
	}
	return &Source{renderer: renderer, opts: opts, now: time.Now}
}

// Name returns "testsrc".
func (s *Source) Name() string {
	return "testsrc"
}

// Start emits one frame immediately and then one per 1/FPS.
func (s *Source) Start(ctx context.Context, onData func([]byte)) error {
	ticker := time.NewTicker(time.Duration(float64(time.Second) / s.opts.FPS))
	defer ticker.Stop()

	for n := 1; ctx.Err() == nil; n++ {
		data, err := s.render(n)
		if err != nil {
			return err
		}
		onData(data)

		if s.opts.Frames > 0 && n >= s.opts.Frames {
			return ports.ErrSourceEnded
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
	return nil
}

// render draws frame n: a sweeping bar, the label, the frame number and
// the wall clock.
func (s *Source) render(n int) ([]byte, error) {
	w, h := s.opts.Width, s.opts.Height
	c := s.renderer.CreateCanvas(w, h, background)

	barW := w / 16
	x := (n * barW / 2) % (w + barW)
	c.DrawRect(x-barW, 0, barW, h, bar)
	c.DrawLine(0, h/2, w, h/2, foreground, 1)

	style := ports.TextStyle{FontSize: 24, Color: foreground, Align: ports.AlignCenter}
	c.DrawText(s.opts.Label, w/2, h/4, style)
	c.DrawText(fmt.Sprintf("%06d", n), w/2, h/2+h/8, style)
	c.DrawText(s.now().Format("15:04:05.000"), w/2, h*3/4, style)

	data, err := s.renderer.EncodeImage(c.ToImage(), ports.FormatJPEG, s.opts.Quality)
	if err != nil {
		return nil, fmt.Errorf("encode test frame %d: %w", n, err)
	}
	return data, nil
}

var _ ports.FrameSource = (*Source)(nil)
