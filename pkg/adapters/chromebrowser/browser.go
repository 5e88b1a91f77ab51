// Package chromebrowser provides a browser implementation using chromedp.
package chromebrowser

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/user/framecast/pkg/ports"
)

// ErrChromeNotFound is returned by Launch when no Chrome executable is found.
var ErrChromeNotFound = errors.New("chrome not found: install Chrome/Chromium, set CHROME_PATH or configure source.chrome.path")

// ErrNotLaunched is returned by page operations before Launch.
var ErrNotLaunched = errors.New("browser not launched")

// frameBuffer is the screencast channel depth. Frames beyond it are dropped
// rather than stalling Chrome's event loop.
const frameBuffer = 8

// Browser implements ports.Browser using chromedp.
type Browser struct {
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc

	mu     sync.Mutex
	frames chan ports.ScreenFrame // nil while no screencast is active
}

// New creates a new Browser.
func New() *Browser {
	return &Browser{}
}

// Launch starts the browser with the given options.
func (b *Browser) Launch(ctx context.Context, opts ports.BrowserOptions) error {
	chromePath := ResolveChromePath(opts.ChromePath)
	if chromePath == "" {
		return ErrChromeNotFound
	}

	allocOpts := []chromedp.ExecAllocatorOption{
		chromedp.ExecPath(chromePath),
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("no-zygote", true),
		// keep rendering when nobody looks at the window
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
	}
	if opts.Headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", "new"))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.WindowWidth > 0 && opts.WindowHeight > 0 {
		allocOpts = append(allocOpts, chromedp.WindowSize(opts.WindowWidth, opts.WindowHeight))
	}
	if opts.IgnoreHTTPSErrors {
		allocOpts = append(allocOpts,
			chromedp.Flag("ignore-certificate-errors", true),
			chromedp.Flag("allow-insecure-localhost", true))
	}
	if opts.ProxyServer != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(opts.ProxyServer))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, cancel := chromedp.NewContext(allocCtx)

	// starts the browser process
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		allocCancel()
		return fmt.Errorf("launch chrome %s: %w", chromePath, err)
	}

	b.allocCancel, b.ctx, b.cancel = allocCancel, tabCtx, cancel
	chromedp.ListenTarget(tabCtx, func(ev interface{}) { b.onEvent(tabCtx, ev) })
	return nil
}

func (b *Browser) onEvent(ctx context.Context, ev interface{}) {
	e, ok := ev.(*page.EventScreencastFrame)
	if !ok {
		return
	}

	// Chrome stops sending frames until each one is acknowledged.
	sessionID := e.SessionID
	go chromedp.Run(ctx, page.ScreencastFrameAck(sessionID))

	data, err := base64.StdEncoding.DecodeString(e.Data)
	if err != nil {
		return
	}
	frame := ports.ScreenFrame{TimestampMs: time.Now().UnixMilli(), Data: data}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frames == nil {
		return
	}
	select {
	case b.frames <- frame:
	default:
	}
}

// Navigate loads the specified URL.
func (b *Browser) Navigate(url string) error {
	if b.ctx == nil {
		return ErrNotLaunched
	}
	if err := chromedp.Run(b.ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// SetViewport sets the page viewport in CSS pixels at a device scale of 1.
func (b *Browser) SetViewport(width, height int) error {
	if b.ctx == nil {
		return ErrNotLaunched
	}
	err := chromedp.Run(b.ctx,
		emulation.SetDeviceMetricsOverride(int64(width), int64(height), 1, false),
	)
	if err != nil {
		return fmt.Errorf("set device metrics: %w", err)
	}
	return nil
}

// StartScreencast starts a continuous screencast. Frames arrive whenever the
// page repaints; a static page produces few frames.
func (b *Browser) StartScreencast(quality, maxWidth, maxHeight int) (<-chan ports.ScreenFrame, error) {
	if b.ctx == nil {
		return nil, ErrNotLaunched
	}

	b.mu.Lock()
	if b.frames != nil {
		b.mu.Unlock()
		return nil, fmt.Errorf("screencast already active")
	}
	frames := make(chan ports.ScreenFrame, frameBuffer)
	b.frames = frames
	b.mu.Unlock()

	start := page.StartScreencast().
		WithFormat(page.ScreencastFormatJpeg).
		WithQuality(int64(quality)).
		WithEveryNthFrame(1)
	if maxWidth > 0 {
		start = start.WithMaxWidth(int64(maxWidth))
	}
	if maxHeight > 0 {
		start = start.WithMaxHeight(int64(maxHeight))
	}

	if err := chromedp.Run(b.ctx, start); err != nil {
		b.closeFrames()
		return nil, fmt.Errorf("start screencast: %w", err)
	}
	return frames, nil
}

// StopScreencast stops the screencast and closes its channel.
func (b *Browser) StopScreencast() error {
	if !b.closeFrames() {
		return nil
	}

	stopCtx, cancel := context.WithTimeout(b.ctx, 5*time.Second)
	defer cancel()
	if err := chromedp.Run(stopCtx, page.StopScreencast()); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("stop screencast: %w", err)
	}
	return nil
}

// closeFrames detaches and closes the active frame channel. It reports
// whether a screencast was active.
func (b *Browser) closeFrames() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frames == nil {
		return false
	}
	close(b.frames)
	b.frames = nil
	return true
}

// Close shuts down the browser.
func (b *Browser) Close() error {
	if b.ctx == nil {
		return nil
	}
	b.StopScreencast()

	b.cancel()
	// give Chrome a moment to exit before the allocator kills it
	time.Sleep(100 * time.Millisecond)
	b.allocCancel()

	b.ctx = nil
	return nil
}

var _ ports.Browser = (*Browser)(nil)
