package mocks

import (
	"context"
	"sync/atomic"

	"github.com/user/framecast/pkg/ports"
)

// Source is a mock implementation of ports.FrameSource.
//
// Without StartFunc, Start emits Chunks once and then blocks until ctx is
// cancelled.
type Source struct {
	StartFunc func(ctx context.Context, onData func([]byte)) error
	Chunks    [][]byte

	starts  atomic.Int32
	running atomic.Int32
}

func (m *Source) Start(ctx context.Context, onData func([]byte)) error {
	m.starts.Add(1)
	m.running.Add(1)
	defer m.running.Add(-1)

	if m.StartFunc != nil {
		return m.StartFunc(ctx, onData)
	}
	for _, c := range m.Chunks {
		onData(c)
	}
	<-ctx.Done()
	return nil
}

func (m *Source) Name() string {
	return "mock"
}

// Starts returns how many times Start was called.
func (m *Source) Starts() int {
	return int(m.starts.Load())
}

// Running returns how many Start calls have not returned yet.
func (m *Source) Running() int {
	return int(m.running.Load())
}

var _ ports.FrameSource = (*Source)(nil)
