package chromebrowser

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/user/framecast/pkg/ports"
)

func TestBrowser_NotLaunched(t *testing.T) {
	b := New()

	if err := b.Navigate("about:blank"); !errors.Is(err, ErrNotLaunched) {
		t.Errorf("expected ErrNotLaunched, got %v", err)
	}
	if _, err := b.StartScreencast(80, 0, 0); !errors.Is(err, ErrNotLaunched) {
		t.Errorf("expected ErrNotLaunched, got %v", err)
	}
	if err := b.StopScreencast(); err != nil {
		t.Errorf("expected no error stopping an inactive screencast, got %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("expected no error closing an unlaunched browser, got %v", err)
	}
}

func TestBrowser_LaunchWithoutChrome(t *testing.T) {
	t.Setenv("CHROME_PATH", "")
	t.Setenv("PATH", t.TempDir())
	if ResolveChromePath("") != "" {
		t.Skip("chrome found at an absolute system location")
	}

	err := New().Launch(context.Background(), ports.BrowserOptions{Headless: true})
	if !errors.Is(err, ErrChromeNotFound) {
		t.Errorf("expected ErrChromeNotFound, got %v", err)
	}
}

func TestBrowser_Screencast(t *testing.T) {
	chromePath := ResolveChromePath("")
	if chromePath == "" {
		t.Skip("Chrome not installed")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><h1 id="t">0</h1><script>
			let n = 0; setInterval(() => { document.getElementById("t").textContent = ++n }, 50);
		</script></body></html>`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	b := New()
	if err := b.Launch(ctx, ports.BrowserOptions{ChromePath: chromePath, Headless: true, WindowWidth: 320, WindowHeight: 240}); err != nil {
		t.Fatalf("Launch failed: %v", err)
	}
	defer b.Close()

	if err := b.SetViewport(320, 240); err != nil {
		t.Fatalf("SetViewport failed: %v", err)
	}
	if err := b.Navigate(srv.URL); err != nil {
		t.Fatalf("Navigate failed: %v", err)
	}

	frames, err := b.StartScreencast(60, 320, 240)
	if err != nil {
		t.Fatalf("StartScreencast failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		select {
		case f, ok := <-frames:
			if !ok {
				t.Fatal("screencast channel closed early")
			}
			if len(f.Data) < 2 || f.Data[0] != 0xFF || f.Data[1] != 0xD8 {
				t.Fatalf("frame %d is not a JPEG", i)
			}
		case <-ctx.Done():
			t.Fatal("timed out waiting for frames")
		}
	}

	if err := b.StopScreencast(); err != nil {
		t.Errorf("StopScreencast failed: %v", err)
	}
	if _, ok := <-frames; ok {
		// drain one buffered frame at most; channel must end up closed
		for range frames {
		}
	}
}
