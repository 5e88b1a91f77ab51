// Package capture manages the lifetime of the frame source feeding a ring
// buffer. The source runs while at least one holder (a streaming client)
// needs it, and is restarted when it fails.
package capture

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/user/framecast/pkg/ports"
	"github.com/user/framecast/pkg/ring"
)

// ErrClosed is returned by Acquire after the session was closed.
var ErrClosed = errors.New("capture session closed")

const (
	defaultRestartDelay = time.Second
	maxRestartDelay     = 30 * time.Second
)

// State is the lifecycle state of the source.
type State int32

const (
	StateIdle     State = iota // not running
	StateStarting              // launched or restarting, no data yet
	StateRunning               // producing data
	StateStopping              // cancelled, waiting for Start to return
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	}
	return "unknown"
}

// Options configures a Session.
type Options struct {
	// AlwaysOn keeps the source running from Run until shutdown, even with
	// no holders.
	AlwaysOn bool

	// Linger delays stopping the source after the last holder leaves, so a
	// reconnecting viewer does not pay the startup cost again.
	Linger time.Duration

	// RestartDelay is the initial wait before restarting a failed source.
	// It doubles on consecutive failures that produced no data.
	RestartDelay time.Duration

	// OnStateChange and OnRestart are called with the session lock held;
	// they must not call back into the Session.
	OnStateChange func(State)
	OnRestart     func(err error)
}

// Session runs one FrameSource into one ring.Buffer on behalf of holders.
type Session struct {
	source ports.FrameSource
	buf    *ring.Buffer
	logger ports.Logger
	opts   Options

	base     context.Context
	shutdown context.CancelFunc

	mu       sync.Mutex
	holders  int
	pinned   int // holds taken by AlwaysOn
	state    State
	restarts int
	cancel   context.CancelFunc // cancels the current run; nil when stopped
	done     chan struct{}      // closed when the latest run has exited
	linger   *time.Timer
	closed   bool
}

// New creates a Session. The source is not started until Acquire or, with
// AlwaysOn, Run.
func New(source ports.FrameSource, buf *ring.Buffer, logger ports.Logger, opts Options) *Session {
	if opts.RestartDelay <= 0 {
		opts.RestartDelay = defaultRestartDelay
	}
	base, shutdown := context.WithCancel(context.Background())
	return &Session{
		source:   source,
		buf:      buf,
		logger:   logger.WithComponent("capture"),
		opts:     opts,
		base:     base,
		shutdown: shutdown,
	}
}

// Acquire registers a holder, starting the source if it is not running.
// The returned release func is safe to call more than once.
func (s *Session) Acquire(ctx context.Context) (release func(), err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	s.holders++
	if s.linger != nil {
		s.linger.Stop()
		s.linger = nil
	}
	if s.cancel == nil {
		s.startLocked()
	}

	var once sync.Once
	return func() { once.Do(s.release) }, nil
}

func (s *Session) release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.holders--
	if s.holders > 0 || s.cancel == nil {
		return
	}
	if s.opts.Linger > 0 && !s.closed {
		s.linger = time.AfterFunc(s.opts.Linger, s.stopIfIdle)
		return
	}
	s.stopLocked()
}

func (s *Session) stopIfIdle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.linger = nil
	if s.holders == 0 && s.cancel != nil {
		s.stopLocked()
	}
}

// startLocked launches a run. A new run waits for the previous one to exit
// so two producers never write into the buffer at once.
func (s *Session) startLocked() {
	ctx, cancel := context.WithCancel(s.base)
	prev := s.done
	done := make(chan struct{})
	s.cancel, s.done = cancel, done

	s.logger.Info("Starting source %s", s.source.Name())
	s.setStateLocked(StateStarting)
	go s.run(ctx, prev, done)
}

func (s *Session) stopLocked() {
	s.logger.Info("Stopping source %s", s.source.Name())
	s.cancel()
	s.cancel = nil
	s.setStateLocked(StateStopping)

	done := s.done
	go func() {
		<-done
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.cancel == nil {
			s.setStateLocked(StateIdle)
		}
	}()
}

func (s *Session) run(ctx context.Context, prev <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	if prev != nil {
		<-prev
	}

	delay := s.opts.RestartDelay
	for ctx.Err() == nil {
		s.buf.Reset()

		gotData := false
		err := s.source.Start(ctx, func(chunk []byte) {
			if !gotData {
				gotData = true
				s.setStateIf(ctx, StateRunning)
			}
			s.buf.Write(chunk)
		})
		if ctx.Err() != nil {
			return
		}

		if gotData {
			delay = s.opts.RestartDelay
		}
		s.logger.Warn("Source %s stopped: %v; restarting in %s", s.source.Name(), err, delay)

		s.mu.Lock()
		if ctx.Err() == nil {
			s.restarts++
			if s.opts.OnRestart != nil {
				s.opts.OnRestart(err)
			}
			s.setStateLocked(StateStarting)
		}
		s.mu.Unlock()

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
		if !gotData {
			delay = min(delay*2, maxRestartDelay)
		}
	}
}

// setStateIf changes the state only while ctx's run is still current.
func (s *Session) setStateIf(ctx context.Context, st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx.Err() == nil {
		s.setStateLocked(st)
	}
}

func (s *Session) setStateLocked(st State) {
	if s.state == st {
		return
	}
	s.state = st
	if s.opts.OnStateChange != nil {
		s.opts.OnStateChange(st)
	}
}

// Run pins the source when AlwaysOn is set, then blocks until ctx is
// cancelled and closes the session.
func (s *Session) Run(ctx context.Context) error {
	if s.opts.AlwaysOn {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return ErrClosed
		}
		s.holders++
		s.pinned++
		if s.cancel == nil {
			s.startLocked()
		}
		s.mu.Unlock()
	}

	<-ctx.Done()
	s.Close()
	return nil
}

// Close stops the source and waits for it to exit. Later Acquire calls
// fail with ErrClosed.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.linger != nil {
		s.linger.Stop()
		s.linger = nil
	}
	if s.cancel != nil {
		s.stopLocked()
	}
	done := s.done
	s.mu.Unlock()

	s.shutdown()
	if done != nil {
		<-done
	}
}

// State returns the current source state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Holders returns the number of holders, not counting the AlwaysOn pin.
func (s *Session) Holders() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.holders - s.pinned
}

// Restarts returns how many times the source was restarted after failing.
func (s *Session) Restarts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restarts
}

// SourceName returns the name of the managed source.
func (s *Session) SourceName() string {
	return s.source.Name()
}
