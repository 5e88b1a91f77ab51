package mjpeg

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAppendPart_Layout(t *testing.T) {
	got := AppendPart(nil, "abc", []byte("12345"))
	want := "--abc\r\nContent-Type: image/jpeg\r\nContent-Length: 5\r\n\r\n12345\r\n"
	if string(got) != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestAppendPart_ZeroLength(t *testing.T) {
	got := AppendPart(nil, "abc", nil)
	want := "--abc\r\nContent-Type: image/jpeg\r\nContent-Length: 0\r\n\r\n\r\n"
	if string(got) != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestAppendPart_ReusesBuffer(t *testing.T) {
	buf := make([]byte, 0, 256)
	buf = AppendPart(buf, "b", []byte("one"))
	first := len(buf)
	buf = AppendPart(buf[:0], "b", []byte("two"))
	if len(buf) != first {
		t.Errorf("expected same length %d, got %d", first, len(buf))
	}
	if !strings.Contains(string(buf), "two") || strings.Contains(string(buf), "one") {
		t.Errorf("unexpected buffer content %q", buf)
	}
}

func TestPartSize(t *testing.T) {
	for _, n := range []int{0, 1, 9, 10, 99, 100, 12345} {
		frame := bytes.Repeat([]byte{'x'}, n)
		if got, want := PartSize("tok", n), len(AppendPart(nil, "tok", frame)); got != want {
			t.Errorf("PartSize(%d): expected %d, got %d", n, want, got)
		}
	}
}

func TestWritePart(t *testing.T) {
	var buf bytes.Buffer
	n, err := WritePart(&buf, "abc", []byte("hello"))
	if err != nil {
		t.Fatalf("WritePart failed: %v", err)
	}
	if n != buf.Len() {
		t.Errorf("expected n=%d, got %d", buf.Len(), n)
	}
}

func TestNewBoundary(t *testing.T) {
	a, b := NewBoundary(), NewBoundary()
	if a == b {
		t.Error("expected distinct boundaries")
	}
	if !strings.HasPrefix(a, "frame-boundary-") {
		t.Errorf("unexpected boundary %q", a)
	}
	if got := ContentType(a); got != "multipart/x-mixed-replace; boundary="+a {
		t.Errorf("unexpected content type %q", got)
	}
}

func TestParseBoundary(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"plain", "multipart/x-mixed-replace; boundary=abc", "abc", false},
		{"dashed", "multipart/x-mixed-replace;boundary=--abc", "abc", false},
		{"quoted", `multipart/x-mixed-replace; boundary="a b"`, "a b", false},
		{"not multipart", "image/jpeg", "", true},
		{"missing", "multipart/x-mixed-replace", "", true},
		{"garbage", ";;", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBoundary(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestReader_RoundTrip(t *testing.T) {
	frames := [][]byte{
		[]byte("\xff\xd8first\xff\xd9"),
		{},
		bytes.Repeat([]byte{0xAB}, 100000),
		[]byte("--tok\r\nnot a boundary inside the body"),
	}

	var buf bytes.Buffer
	for _, f := range frames {
		WritePart(&buf, "tok", f)
	}
	buf.WriteString("--tok--\r\n")

	r := NewReader(&buf, "tok")
	for i, want := range frames {
		got, err := r.ReadFrame()
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("frame %d: content mismatch (%d vs %d bytes)", i, len(got), len(want))
		}
	}
	if _, err := r.ReadFrame(); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestReader_CleanEOFBetweenParts(t *testing.T) {
	r := NewReader(bytes.NewReader(AppendPart(nil, "tok", []byte("x"))), "tok")
	if _, err := r.ReadFrame(); err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if _, err := r.ReadFrame(); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestReader_Errors(t *testing.T) {
	tests := []struct {
		name    string
		stream  string
		wantErr error
	}{
		{
			name:    "wrong boundary",
			stream:  "--other\r\nContent-Length: 1\r\n\r\nx\r\n",
			wantErr: ErrUnexpectedBoundary,
		},
		{
			name:    "no content length",
			stream:  "--tok\r\nContent-Type: image/jpeg\r\n\r\nx\r\n",
			wantErr: ErrNoContentLength,
		},
		{
			name:    "bad content length",
			stream:  "--tok\r\nContent-Length: -4\r\n\r\nx\r\n",
			wantErr: ErrNoContentLength,
		},
		{
			name:    "missing trailer",
			stream:  "--tok\r\nContent-Length: 1\r\n\r\nxyz",
			wantErr: ErrMissingTrailer,
		},
		{
			name:    "truncated body",
			stream:  "--tok\r\nContent-Length: 10\r\n\r\nxy",
			wantErr: io.ErrUnexpectedEOF,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(strings.NewReader(tt.stream), "tok")
			_, err := r.ReadFrame()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestScanFrames(t *testing.T) {
	jpeg := func(body string) string { return "\xff\xd8" + body + "\xff\xd9" }
	// The second frame carries an embedded thumbnail.
	thumb := jpeg("APP1" + jpeg("thumb") + "scan")

	stream := "junk" + jpeg("one") + thumb + jpeg("three")

	sc := bufio.NewScanner(strings.NewReader(stream))
	sc.Buffer(make([]byte, 16), 1024)
	sc.Split(ScanFrames)

	var got []string
	for sc.Scan() {
		got = append(got, sc.Text())
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	want := []string{"junk", jpeg("one"), thumb, jpeg("three")}
	if len(got) != len(want) {
		t.Fatalf("expected %d tokens, got %d: %q", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestScanFrames_TrailingFF(t *testing.T) {
	adv, tok, err := ScanFrames([]byte("ab\xff"), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if adv != 2 || string(tok) != "ab" {
		t.Errorf("expected to hold back trailing 0xFF, got adv=%d tok=%q", adv, tok)
	}
}

func TestDial(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/stream.mjpg" {
			http.NotFound(w, r)
			return
		}
		boundary := NewBoundary()
		w.Header().Set("Content-Type", ContentType(boundary))
		WritePart(w, boundary, []byte("\xff\xd8a"))
		WritePart(w, boundary, []byte("\xff\xd8bb"))
	}))
	defer srv.Close()

	s, err := Dial(context.Background(), nil, srv.URL+"/stream.mjpg")
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer s.Close()

	for _, want := range []string{"\xff\xd8a", "\xff\xd8bb"} {
		got, err := s.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame failed: %v", err)
		}
		if string(got) != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	}
	if _, err := s.ReadFrame(); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF at end of stream, got %v", err)
	}
}

func TestDial_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			http.NotFound(w, r)
		case "/jpeg":
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write([]byte("\xff\xd8"))
		}
	}))
	defer srv.Close()

	if _, err := Dial(context.Background(), srv.Client(), srv.URL+"/missing"); err == nil {
		t.Error("expected error for 404")
	}
	if _, err := Dial(context.Background(), srv.Client(), srv.URL+"/jpeg"); !errors.Is(err, ErrNoBoundary) {
		t.Errorf("expected ErrNoBoundary, got %v", err)
	}
}
