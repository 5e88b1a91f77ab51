// Package mocks provides mock implementations for testing.
package mocks

import (
	"context"
	"sync"

	"github.com/user/framecast/pkg/ports"
)

// Browser is a mock implementation of ports.Browser.
type Browser struct {
	LaunchFunc          func(ctx context.Context, opts ports.BrowserOptions) error
	NavigateFunc        func(url string) error
	SetViewportFunc     func(width, height int) error
	StartScreencastFunc func(quality, maxWidth, maxHeight int) (<-chan ports.ScreenFrame, error)
	StopScreencastFunc  func() error
	CloseFunc           func() error

	mu     sync.Mutex
	calls  []string
	closed bool
}

func (m *Browser) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

// Calls returns the names of the methods called so far, in order.
func (m *Browser) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *Browser) Launch(ctx context.Context, opts ports.BrowserOptions) error {
	m.record("Launch")
	if m.LaunchFunc != nil {
		return m.LaunchFunc(ctx, opts)
	}
	return nil
}

func (m *Browser) Navigate(url string) error {
	m.record("Navigate")
	if m.NavigateFunc != nil {
		return m.NavigateFunc(url)
	}
	return nil
}

func (m *Browser) SetViewport(width, height int) error {
	m.record("SetViewport")
	if m.SetViewportFunc != nil {
		return m.SetViewportFunc(width, height)
	}
	return nil
}

func (m *Browser) StartScreencast(quality, maxWidth, maxHeight int) (<-chan ports.ScreenFrame, error) {
	m.record("StartScreencast")
	if m.StartScreencastFunc != nil {
		return m.StartScreencastFunc(quality, maxWidth, maxHeight)
	}
	ch := make(chan ports.ScreenFrame)
	close(ch)
	return ch, nil
}

func (m *Browser) StopScreencast() error {
	m.record("StopScreencast")
	if m.StopScreencastFunc != nil {
		return m.StopScreencastFunc()
	}
	return nil
}

func (m *Browser) Close() error {
	m.record("Close")
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// Closed reports whether Close was called.
func (m *Browser) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

var _ ports.Browser = (*Browser)(nil)
