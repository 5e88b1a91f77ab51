package mocks

import (
	"sync"

	"github.com/user/framecast/pkg/ports"
)

// SavedFrame is a frame captured by Sink.
type SavedFrame struct {
	Seq  uint64
	Data []byte
}

// Sink is a mock implementation of ports.FrameSink that keeps every frame.
type Sink struct {
	Disabled      bool
	SaveFrameFunc func(seq uint64, data []byte) error

	mu     sync.Mutex
	frames []SavedFrame
}

func (m *Sink) Enabled() bool {
	return !m.Disabled
}

func (m *Sink) SaveFrame(seq uint64, data []byte) error {
	if m.SaveFrameFunc != nil {
		if err := m.SaveFrameFunc(seq, data); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = append(m.frames, SavedFrame{Seq: seq, Data: data})
	return nil
}

// Frames returns the frames saved so far.
func (m *Sink) Frames() []SavedFrame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SavedFrame(nil), m.frames...)
}

var _ ports.FrameSink = (*Sink)(nil)
