package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/user/framecast/pkg/capture"
	"github.com/user/framecast/pkg/mjpeg"
	"github.com/user/framecast/pkg/ports"
	"github.com/user/framecast/pkg/ring"
)

const maxSnapshotWidth = 4096

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	boundary := mjpeg.NewBoundary()
	h := w.Header()
	h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	h.Set("Pragma", "no-cache")

	if r.Method == http.MethodHead {
		h.Set("Content-Type", mjpeg.ContentType(boundary))
		w.WriteHeader(http.StatusOK)
		return
	}

	release, err := s.session.Acquire(r.Context())
	if err != nil {
		http.Error(w, "stream unavailable", http.StatusServiceUnavailable)
		return
	}
	defer release()

	// The cursor exists before the client sees the headers, so every frame
	// completed after that point reaches it.
	cur := s.buf.NewCursor()

	h.Set("Content-Type", mjpeg.ContentType(boundary))
	h.Set("Connection", "close")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		return
	}

	var part []byte
	s.serveCursor(r.Context(), routeMJPEG, r.RemoteAddr, cur, func(f *ring.Frame) error {
		if s.opts.WriteTimeout > 0 {
			rc.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
		}
		part = mjpeg.AppendPart(part[:0], boundary, f.Data)
		if _, err := w.Write(part); err != nil {
			return err
		}
		return rc.Flush()
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	release, err := s.session.Acquire(r.Context())
	if err != nil {
		http.Error(w, "stream unavailable", http.StatusServiceUnavailable)
		return
	}
	defer release()

	cur := s.buf.NewCursor()
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied
		s.logger.Debug("WebSocket upgrade from %s failed: %v", r.RemoteAddr, err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The read loop handles control frames and notices the client leaving.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	s.serveCursor(ctx, routeWS, r.RemoteAddr, cur, func(f *ring.Frame) error {
		if s.opts.WriteTimeout > 0 {
			conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
		}
		return conn.WriteMessage(websocket.BinaryMessage, f.Data)
	})

	deadline := time.Now().Add(time.Second)
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
}

// serveCursor sends the frames of cur in order until ctx ends or send
// fails. Between frames it waits on the buffer's notify channel, the poll
// ticker or ctx, never spinning.
func (s *Server) serveCursor(ctx context.Context, route, client string, cur *ring.Cursor, send func(*ring.Frame) error) {
	var sent int
	s.viewers.Add(1)
	s.metrics.ViewerConnected(route)
	s.logger.Info("Viewer %s connected (%s)", client, route)
	defer func() {
		s.viewers.Add(-1)
		s.metrics.ViewerDisconnected(route)
		s.logger.Info("Viewer %s disconnected after %d frames, %d dropped", client, sent, cur.Dropped())
	}()

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	var dropped uint64
	for {
		// take the channel before polling so a frame completed in between
		// still wakes us
		notify := s.buf.Notify()

		if f, ok := cur.Next(); ok {
			if d := cur.Dropped(); d > dropped {
				s.metrics.RecordFramesDropped(route, d-dropped)
				dropped = d
			}
			if err := send(f); err != nil {
				s.logger.Debug("Write to %s failed: %v", client, err)
				return
			}
			s.metrics.RecordFrameSent(route)
			sent++
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-notify:
		case <-ticker.C:
		}
	}
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	width := 0
	if v := r.URL.Query().Get("width"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxSnapshotWidth {
			http.Error(w, "width must be between 1 and "+strconv.Itoa(maxSnapshotWidth), http.StatusBadRequest)
			return
		}
		width = n
	}

	f, err := s.awaitFrame(r.Context())
	if err != nil {
		http.Error(w, "no frame available", http.StatusServiceUnavailable)
		return
	}

	data := f.Data
	if width > 0 {
		data, err = s.resize(data, width)
		if err != nil {
			s.logger.Warn("Snapshot resize failed: %v", err)
			http.Error(w, "cannot resize frame", http.StatusInternalServerError)
			return
		}
	}

	h := w.Header()
	h.Set("Content-Type", mjpeg.PartContentType)
	h.Set("Content-Length", strconv.Itoa(len(data)))
	h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	h.Set("X-Frame-Seq", strconv.FormatUint(f.Seq, 10))
	h.Set("Last-Modified", f.Time.UTC().Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		w.Write(data)
	}
}

// awaitFrame holds the session and returns the newest frame of the running
// source, waiting up to SnapshotTimeout for one to arrive.
func (s *Server) awaitFrame(ctx context.Context) (*ring.Frame, error) {
	release, err := s.session.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	ctx, cancel := context.WithTimeout(ctx, s.opts.SnapshotTimeout)
	defer cancel()

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		notify := s.buf.Notify()
		if s.session.State() == capture.StateRunning {
			if f, ok := s.buf.Latest(); ok {
				return f, nil
			}
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-notify:
		case <-ticker.C:
		}
	}
}

func (s *Server) resize(data []byte, width int) ([]byte, error) {
	img, err := s.renderer.DecodeImage(data, ports.FormatJPEG)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	if b.Dx() == 0 {
		return data, nil
	}
	height := max(1, b.Dy()*width/b.Dx())
	return s.renderer.EncodeImage(s.renderer.ResizeImage(img, width, height), ports.FormatJPEG, s.opts.SnapshotQuality)
}

// Health is the /healthz response body.
type Health struct {
	Status   string `json:"status"`
	Source   string `json:"source"`
	State    string `json:"state"`
	Viewers  int    `json:"viewers"`
	Frames   uint64 `json:"frames"`
	Bytes    uint64 `json:"bytes"`
	Capacity int    `json:"capacity"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.buf.Stats()
	body := Health{
		Status:   "ok",
		Source:   s.session.SourceName(),
		State:    s.session.State().String(),
		Viewers:  s.Viewers(),
		Frames:   st.Frames,
		Bytes:    st.Bytes,
		Capacity: st.Capacity,
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	json.NewEncoder(w).Encode(body)
}
