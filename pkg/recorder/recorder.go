// Package recorder copies frames into a FrameSink, either from the local
// ring buffer or from a remote MJPEG stream.
package recorder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/user/framecast/pkg/ports"
	"github.com/user/framecast/pkg/ring"
)

// FrameReader yields encoded frames one at a time. *mjpeg.Reader and
// *mjpeg.Stream satisfy it.
type FrameReader interface {
	ReadFrame() ([]byte, error)
}

// Result summarises a recording run.
type Result struct {
	Saved   int
	Failed  int
	Dropped uint64
	Bytes   int64 // bytes of saved frames
}

// Tap saves every frame completed in buf from now until ctx is cancelled.
// It reads through its own cursor, so it never takes frames from viewers.
// A failed save is logged and counted; recording carries on.
func Tap(ctx context.Context, buf *ring.Buffer, sink ports.FrameSink, logger ports.Logger, poll time.Duration) Result {
	var res Result
	if !sink.Enabled() {
		return res
	}
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}
	logger = logger.WithComponent("recorder")

	cur := buf.NewCursor()
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		notify := buf.Notify()
		for {
			f, ok := cur.Next()
			if !ok {
				break
			}
			if err := sink.SaveFrame(f.Seq, f.Data); err != nil {
				res.Failed++
				logger.Warn("Failed to save frame %d: %v", f.Seq, err)
				continue
			}
			res.Saved++
			res.Bytes += int64(f.Len())
		}
		res.Dropped = cur.Dropped()

		select {
		case <-ctx.Done():
			logger.Info("Saved %d frames, %d dropped", res.Saved, res.Dropped)
			return res
		case <-notify:
		case <-ticker.C:
		}
	}
}

// Copy reads frames from r and saves them with sequence numbers starting at
// 1 until the stream ends, ctx is cancelled or limit frames were saved.
// A limit of zero means no limit. Parts that do not start with the JPEG
// marker are skipped and counted as dropped.
func Copy(ctx context.Context, r FrameReader, sink ports.FrameSink, limit int) (Result, error) {
	var res Result
	var seq uint64
	for limit <= 0 || res.Saved < limit {
		if ctx.Err() != nil {
			return res, nil
		}
		data, err := r.ReadFrame()
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return res, nil
			}
			return res, fmt.Errorf("read frame: %w", err)
		}
		if !bytes.HasPrefix(data, ring.Marker) {
			res.Dropped++
			continue
		}
		seq++
		if err := sink.SaveFrame(seq, data); err != nil {
			res.Failed++
			return res, fmt.Errorf("save frame %d: %w", seq, err)
		}
		res.Saved++
		res.Bytes += int64(len(data))
	}
	return res, nil
}
