package mjpeg

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
)

// Errors returned while reading a multipart stream.
var (
	ErrNoBoundary         = errors.New("no multipart boundary in content type")
	ErrUnexpectedBoundary = errors.New("stream out of sync: expected frame boundary")
	ErrNoContentLength    = errors.New("part has no valid Content-Length")
	ErrMissingTrailer     = errors.New("part not terminated by CRLF")
)

// maxFrameSize bounds the Content-Length a Reader accepts.
const maxFrameSize = 64 << 20

// ParseBoundary extracts the boundary token from a multipart Content-Type.
func ParseBoundary(contentType string) (string, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("parse content type %q: %w", contentType, err)
	}
	if !strings.HasPrefix(mediaType, "multipart/") {
		return "", fmt.Errorf("%w: %s", ErrNoBoundary, mediaType)
	}
	boundary := strings.TrimPrefix(params["boundary"], "--")
	if boundary == "" {
		return "", ErrNoBoundary
	}
	return boundary, nil
}

// Reader reads frames from a multipart stream written with AppendPart.
type Reader struct {
	r          *bufio.Reader
	tp         *textproto.Reader
	delimiter  string
	terminator string
}

// NewReader returns a Reader for a stream delimited by boundary.
func NewReader(r io.Reader, boundary string) *Reader {
	br := bufio.NewReaderSize(r, 64*1024)
	return &Reader{
		r:          br,
		tp:         textproto.NewReader(br),
		delimiter:  "--" + boundary,
		terminator: "--" + boundary + "--",
	}
}

// ReadFrame returns the body of the next part. It returns io.EOF at the
// closing delimiter or at a clean end of stream between parts.
func (r *Reader) ReadFrame() ([]byte, error) {
	line, err := r.nextLine()
	if err != nil {
		return nil, err
	}
	switch line {
	case r.delimiter:
	case r.terminator:
		return nil, io.EOF
	default:
		return nil, fmt.Errorf("%w: got %q", ErrUnexpectedBoundary, truncate(line, 64))
	}

	header, err := r.tp.ReadMIMEHeader()
	if err != nil {
		return nil, fmt.Errorf("read part header: %w", err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(header.Get("Content-Length")))
	if err != nil || n < 0 || n > maxFrameSize {
		return nil, ErrNoContentLength
	}

	frame := make([]byte, n)
	if _, err := io.ReadFull(r.r, frame); err != nil {
		return nil, fmt.Errorf("read frame body: %w", err)
	}

	var crlf [2]byte
	if _, err := io.ReadFull(r.r, crlf[:]); err != nil || !bytes.Equal(crlf[:], []byte("\r\n")) {
		return nil, ErrMissingTrailer
	}
	return frame, nil
}

// nextLine skips blank lines and returns the next delimiter candidate.
func (r *Reader) nextLine() (string, error) {
	for {
		line, err := r.tp.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) && line == "" {
				return "", io.EOF
			}
			return "", fmt.Errorf("read boundary: %w", err)
		}
		if line != "" {
			return line, nil
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Stream is an open MJPEG response.
type Stream struct {
	*Reader
	Boundary string
	body     io.Closer
}

// Close closes the underlying response body.
func (s *Stream) Close() error {
	return s.body.Close()
}

// Dial requests an MJPEG endpoint and returns a Stream positioned at the
// first part. A nil client means http.DefaultClient.
func Dial(ctx context.Context, client *http.Client, url string) (*Stream, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("connect %s: unexpected status %s", url, resp.Status)
	}

	boundary, err := ParseBoundary(resp.Header.Get("Content-Type"))
	if err != nil {
		resp.Body.Close()
		return nil, err
	}

	return &Stream{
		Reader:   NewReader(resp.Body, boundary),
		Boundary: boundary,
		body:     resp.Body,
	}, nil
}
