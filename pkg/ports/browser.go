// Package ports defines interfaces for external dependencies.
package ports

import (
	"context"
)

// Browser abstracts a headless browser that can screencast a page.
type Browser interface {
	// Launch starts the browser with the given options.
	Launch(ctx context.Context, opts BrowserOptions) error

	// Navigate loads the specified URL.
	Navigate(url string) error

	// SetViewport sets the page viewport in CSS pixels.
	SetViewport(width, height int) error

	// StartScreencast begins capturing JPEG frames whenever the page repaints.
	// maxWidth/maxHeight constrain the output image dimensions.
	// The returned channel is closed when the screencast stops.
	StartScreencast(quality, maxWidth, maxHeight int) (<-chan ScreenFrame, error)

	// StopScreencast stops the screencast capture.
	StopScreencast() error

	// Close shuts down the browser.
	Close() error
}

// BrowserOptions configures browser launch settings.
type BrowserOptions struct {
	Headless          bool
	ChromePath        string
	UserAgent         string
	WindowWidth       int
	WindowHeight      int
	IgnoreHTTPSErrors bool
	ProxyServer       string // e.g. "http://proxy:8080"
}

// ScreenFrame is one screencast image.
type ScreenFrame struct {
	TimestampMs int64  // wall clock, milliseconds since the Unix epoch
	Data        []byte // JPEG image data
}
