package recorder

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/framecast/pkg/adapters/logger"
	"github.com/user/framecast/pkg/mjpeg"
	"github.com/user/framecast/pkg/mocks"
	"github.com/user/framecast/pkg/ring"
)

func chunk(payload string) []byte {
	return append(bytes.Clone(ring.Marker), payload...)
}

func TestTap_SavesNewFrames(t *testing.T) {
	buf := ring.MustNew(8)
	buf.Write(chunk("before"))
	buf.Write(ring.Marker)

	sink := &mocks.Sink{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Result, 1)
	go func() { done <- Tap(ctx, buf, sink, logger.NewNoop(), 5*time.Millisecond) }()

	// let the cursor be created before writing
	time.Sleep(20 * time.Millisecond)
	buf.Write(chunk("a"))
	buf.Write(chunk("b"))
	buf.Write(ring.Marker)

	require.Eventually(t, func() bool { return len(sink.Frames()) == 3 }, time.Second, 5*time.Millisecond)
	cancel()
	res := <-done

	frames := sink.Frames()
	assert.Equal(t, []byte{0xFF, 0xD8}, frames[0].Data)
	assert.Equal(t, chunk("a"), frames[1].Data)
	assert.Equal(t, chunk("b"), frames[2].Data)
	assert.Equal(t, uint64(3), frames[1].Seq)
	assert.Equal(t, 3, res.Saved)
	assert.Equal(t, int64(2+3+3), res.Bytes)
}

func TestTap_DisabledSink(t *testing.T) {
	res := Tap(context.Background(), ring.MustNew(2), &mocks.Sink{Disabled: true}, logger.NewNoop(), 0)
	assert.Equal(t, Result{}, res)
}

func TestTap_CountsFailures(t *testing.T) {
	buf := ring.MustNew(8)
	sink := &mocks.Sink{SaveFrameFunc: func(seq uint64, data []byte) error {
		if seq%2 == 0 {
			return errors.New("disk full")
		}
		return nil
	}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Result, 1)
	go func() { done <- Tap(ctx, buf, sink, logger.NewNoop(), 5*time.Millisecond) }()
	time.Sleep(20 * time.Millisecond)

	for _, p := range []string{"1", "2", "3", "4"} {
		buf.Write(chunk(p))
	}
	buf.Write(ring.Marker)

	require.Eventually(t, func() bool { return len(sink.Frames()) == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	cancel()
	res := <-done
	assert.Equal(t, 2, res.Saved)
	assert.Equal(t, 2, res.Failed)
}

func stream(parts ...string) *mjpeg.Reader {
	var buf bytes.Buffer
	for _, p := range parts {
		mjpeg.WritePart(&buf, "tok", []byte(p))
	}
	buf.WriteString("--tok--\r\n")
	return mjpeg.NewReader(&buf, "tok")
}

func TestCopy(t *testing.T) {
	tests := []struct {
		name        string
		parts       []string
		limit       int
		want        int
		wantDropped uint64
	}{
		{"all", []string{"\xff\xd8a", "\xff\xd8b", "\xff\xd8c"}, 0, 3, 0},
		{"limit", []string{"\xff\xd8a", "\xff\xd8b", "\xff\xd8c"}, 2, 2, 0},
		{"skips non-jpeg", []string{"text", "\xff\xd8a", "", "\xff\xd8b"}, 0, 2, 2},
		{"empty", nil, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &mocks.Sink{}
			res, err := Copy(context.Background(), stream(tt.parts...), sink, tt.limit)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Saved)
			assert.Equal(t, tt.wantDropped, res.Dropped)
			assert.Equal(t, int64(3*tt.want), res.Bytes)

			frames := sink.Frames()
			require.Len(t, frames, tt.want)
			for i, f := range frames {
				assert.Equal(t, uint64(i+1), f.Seq)
			}
		})
	}
}

func TestCopy_SaveError(t *testing.T) {
	sink := &mocks.Sink{SaveFrameFunc: func(uint64, []byte) error { return errors.New("boom") }}
	res, err := Copy(context.Background(), stream("\xff\xd8a"), sink, 0)
	assert.Error(t, err)
	assert.Equal(t, 0, res.Saved)
	assert.Equal(t, 1, res.Failed)
}

type failingReader struct{ err error }

func (r failingReader) ReadFrame() ([]byte, error) { return nil, r.err }

func TestCopy_ReadError(t *testing.T) {
	_, err := Copy(context.Background(), failingReader{mjpeg.ErrMissingTrailer}, &mocks.Sink{}, 0)
	assert.ErrorIs(t, err, mjpeg.ErrMissingTrailer)

	res, err := Copy(context.Background(), failingReader{io.EOF}, &mocks.Sink{}, 0)
	assert.NoError(t, err)
	assert.Zero(t, res.Saved)
}

func TestCopy_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := Copy(ctx, failingReader{errors.New("unused")}, &mocks.Sink{}, 0)
	assert.NoError(t, err)
	assert.Zero(t, res.Saved)
}
