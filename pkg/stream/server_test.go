package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/framecast/pkg/adapters/ggrenderer"
	"github.com/user/framecast/pkg/adapters/logger"
	"github.com/user/framecast/pkg/capture"
	"github.com/user/framecast/pkg/metrics"
	"github.com/user/framecast/pkg/mjpeg"
	"github.com/user/framecast/pkg/ring"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

// fakeSession counts holders without running a source.
type fakeSession struct {
	mu       sync.Mutex
	holders  int
	acquires int
	state    capture.State
	err      error
}

func (f *fakeSession) Acquire(ctx context.Context) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.holders++
	f.acquires++
	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			f.holders--
			f.mu.Unlock()
		})
	}, nil
}

func (f *fakeSession) State() capture.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeSession) SourceName() string { return "fake" }

func (f *fakeSession) Holders() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.holders
}

type fixture struct {
	buf     *ring.Buffer
	session *fakeSession
	metrics *metrics.Metrics
	server  *Server
	http    *httptest.Server
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	buf := ring.MustNew(16)
	session := &fakeSession{state: capture.StateRunning}
	m := metrics.New(buf)
	s := New(buf, session, ggrenderer.New(), m, logger.NewNoop(), opts)
	hs := httptest.NewServer(s.Handler())
	t.Cleanup(hs.Close)
	return &fixture{buf: buf, session: session, metrics: m, server: s, http: hs}
}

// publish writes each frame and then a bare marker so the last one completes.
func (f *fixture) publish(frames ...[]byte) {
	for _, fr := range frames {
		f.buf.Write(fr)
	}
	f.buf.Write(ring.Marker)
}

func chunk(payload string) []byte {
	return append(bytes.Clone(ring.Marker), payload...)
}

func jpegFrame(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestStream_EmitsParts(t *testing.T) {
	f := newFixture(t, Options{})

	// completed before the viewer connects, so never sent
	f.buf.Write(chunk("old"))
	f.buf.Write(chunk("pending"))

	stream, err := mjpeg.Dial(context.Background(), f.http.Client(), f.http.URL+"/stream.mjpg")
	require.NoError(t, err)
	defer stream.Close()

	assert.True(t, strings.HasPrefix(stream.Boundary, "frame-boundary-"))

	f.publish(chunk(""), chunk("three"))

	want := []string{"\xff\xd8pending", "\xff\xd8", "\xff\xd8three"}
	for i, w := range want {
		got, err := stream.ReadFrame()
		require.NoError(t, err, "frame %d", i)
		assert.Equal(t, w, string(got), "frame %d", i)
	}

	assert.Equal(t, 1, f.server.Viewers())
	assert.Equal(t, 1, f.session.Holders())
}

func TestStream_Headers(t *testing.T) {
	f := newFixture(t, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, f.http.URL+"/stream.mjpg", nil)
	resp, err := f.http.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no-cache, no-store, must-revalidate", resp.Header.Get("Cache-Control"))
	boundary, err := mjpeg.ParseBoundary(resp.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.NotEmpty(t, boundary)

	// a second client gets its own boundary
	resp2, err := f.http.Client().Do(req.Clone(ctx))
	require.NoError(t, err)
	defer resp2.Body.Close()
	boundary2, _ := mjpeg.ParseBoundary(resp2.Header.Get("Content-Type"))
	assert.NotEqual(t, boundary, boundary2)
}

func TestStream_DisconnectReleasesSession(t *testing.T) {
	f := newFixture(t, Options{PollInterval: 10 * time.Millisecond})

	stream, err := mjpeg.Dial(context.Background(), f.http.Client(), f.http.URL+"/stream.mjpg")
	require.NoError(t, err)

	f.publish(chunk("x"))
	_, err = stream.ReadFrame()
	require.NoError(t, err)

	require.NoError(t, stream.Close())

	// keep producing so the handler notices the broken connection
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			select {
			case <-stop:
				return
			case <-time.After(5 * time.Millisecond):
				f.publish(chunk("y"))
			}
		}
	}()

	require.Eventually(t, func() bool { return f.session.Holders() == 0 }, waitFor, tick)
	require.Eventually(t, func() bool { return f.server.Viewers() == 0 }, waitFor, tick)
}

func TestStream_ConcurrentViewersSeeSameFrames(t *testing.T) {
	f := newFixture(t, Options{})

	var streams []*mjpeg.Stream
	for i := 0; i < 3; i++ {
		s, err := mjpeg.Dial(context.Background(), f.http.Client(), f.http.URL+"/stream.mjpg")
		require.NoError(t, err)
		defer s.Close()
		streams = append(streams, s)
	}

	for i := 0; i < 5; i++ {
		f.buf.Write(chunk(string(rune('a' + i))))
	}
	f.buf.Write(ring.Marker)

	for n, s := range streams {
		for i := 0; i < 5; i++ {
			got, err := s.ReadFrame()
			require.NoError(t, err)
			assert.Equal(t, []byte{0xFF, 0xD8, byte('a' + i)}, got, "viewer %d frame %d", n, i)
		}
	}
}

func TestStream_AcquireFailure(t *testing.T) {
	f := newFixture(t, Options{})
	f.session.err = capture.ErrClosed

	resp, err := http.Get(f.http.URL + "/stream.mjpg")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestStream_Methods(t *testing.T) {
	f := newFixture(t, Options{StreamPath: "/cam.mjpg"})

	resp, err := http.Post(f.http.URL+"/cam.mjpg", "text/plain", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, err = http.Head(f.http.URL + "/cam.mjpg")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "multipart/x-mixed-replace; boundary="))
	assert.Equal(t, 0, f.session.acquires, "HEAD must not start the source")

	resp, err = http.Get(f.http.URL + "/stream.mjpg")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSnapshot(t *testing.T) {
	f := newFixture(t, Options{})
	frame := jpegFrame(t, 64, 48)
	f.publish(frame)

	resp, err := http.Get(f.http.URL + "/snapshot.jpg")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))
	assert.Equal(t, "1", resp.Header.Get("X-Frame-Seq"))
	assert.Equal(t, frame, body)
	assert.Equal(t, 0, f.session.Holders())
}

func TestSnapshot_Resize(t *testing.T) {
	f := newFixture(t, Options{SnapshotQuality: 70})
	f.publish(jpegFrame(t, 64, 48))

	resp, err := http.Get(f.http.URL + "/snapshot.jpg?width=32")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	img, err := jpeg.Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, 32, img.Bounds().Dx())
	assert.Equal(t, 24, img.Bounds().Dy())
}

func TestSnapshot_BadWidth(t *testing.T) {
	f := newFixture(t, Options{})
	for _, q := range []string{"abc", "0", "-3", "99999"} {
		resp, err := http.Get(f.http.URL + "/snapshot.jpg?width=" + q)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "width=%s", q)
	}
}

func TestSnapshot_NoFrame(t *testing.T) {
	f := newFixture(t, Options{SnapshotTimeout: 50 * time.Millisecond, PollInterval: 10 * time.Millisecond})

	resp, err := http.Get(f.http.URL + "/snapshot.jpg")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestSnapshot_WaitsForSourceStart(t *testing.T) {
	f := newFixture(t, Options{PollInterval: 10 * time.Millisecond})
	f.session.state = capture.StateStarting
	frame := jpegFrame(t, 8, 8)

	go func() {
		time.Sleep(30 * time.Millisecond)
		f.publish(frame)
		f.session.mu.Lock()
		f.session.state = capture.StateRunning
		f.session.mu.Unlock()
	}()

	resp, err := http.Get(f.http.URL + "/snapshot.jpg")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	f := newFixture(t, Options{})
	f.publish(chunk("abc"))

	resp, err := http.Get(f.http.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	var h Health
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&h))
	assert.Equal(t, Health{
		Status:   "ok",
		Source:   "fake",
		State:    "running",
		Frames:   1,
		Bytes:    7,
		Capacity: 16,
	}, h)
}

func TestMetricsRoute(t *testing.T) {
	f := newFixture(t, Options{})

	stream, err := mjpeg.Dial(context.Background(), f.http.Client(), f.http.URL+"/stream.mjpg")
	require.NoError(t, err)
	defer stream.Close()
	f.publish(chunk("z"))
	_, err = stream.ReadFrame()
	require.NoError(t, err)

	scrape := func() string {
		resp, err := http.Get(f.http.URL + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return string(body)
	}

	// the counter moves once the write has returned, just after the read
	require.Eventually(t, func() bool {
		return strings.Contains(scrape(), `framecast_frames_sent_total{route="mjpeg"} 1`)
	}, waitFor, tick)
	body := scrape()
	assert.Contains(t, body, `framecast_viewers{route="mjpeg"} 1`)
	assert.Contains(t, body, "framecast_ring_frames_written_total 1")
}

func TestWebSocket(t *testing.T) {
	f := newFixture(t, Options{})

	url := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	f.publish(chunk("ws1"), chunk("ws2"))

	for _, want := range []string{"ws1", "ws2"} {
		conn.SetReadDeadline(time.Now().Add(waitFor))
		typ, data, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, websocket.BinaryMessage, typ)
		assert.Equal(t, "\xff\xd8"+want, string(data))
	}

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return f.session.Holders() == 0 }, waitFor, tick)
}

func TestServe_ShutdownEndsStreams(t *testing.T) {
	buf := ring.MustNew(4)
	session := &fakeSession{state: capture.StateRunning}
	s := New(buf, session, ggrenderer.New(), nil, logger.NewNoop(), Options{ShutdownTimeout: time.Second})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	stream, err := mjpeg.Dial(context.Background(), nil, "http://"+ln.Addr().String()+"/stream.mjpg")
	require.NoError(t, err)
	defer stream.Close()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	_, err = stream.ReadFrame()
	assert.Error(t, err)
	require.Eventually(t, func() bool { return session.Holders() == 0 }, waitFor, tick)
}
