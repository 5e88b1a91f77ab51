package ports

import (
	"context"
	"errors"
)

// ErrSourceEnded is returned by FrameSource.Start when the producer stopped
// on its own (process exit, upstream EOF, last file played).
var ErrSourceEnded = errors.New("frame source ended")

// FrameSource produces an encoded frame byte stream.
//
// Start runs the producer and calls onData from a single goroutine for every
// chunk it reads. A chunk that starts a frame begins with the JPEG SOI
// marker. chunk is only valid for the duration of the call.
//
// Start blocks until ctx is cancelled (returning nil) or the producer stops
// (returning ErrSourceEnded or a failure).
type FrameSource interface {
	Start(ctx context.Context, onData func(chunk []byte)) error
	Name() string
}
