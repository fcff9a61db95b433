package browser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// PageStableTimeout bounds the wait for a navigated page to settle.
var PageStableTimeout = 30 * time.Second

var ErrClosed = errors.New("browser closed")

// Interface runs callbacks against pages of a shared browser.
type Interface interface {
	WithPage(ctx context.Context, url string, fn func(*rod.Page) error) error
	// PageHTML navigates to url and returns the rendered document.
	PageHTML(ctx context.Context, url string) (string, error)

	io.Closer
}

// headlessBrowser manages a single rod browser instance, launched on first use.
// A channel of capacity 1 serializes access: callers receive the browser, use
// it, then send it back so only one WithPage runs at a time.
type headlessBrowser struct {
	userAgent string

	initOnce sync.Once
	initErr  error
	ch       chan *rod.Browser
	closed   bool
	closeMu  sync.Mutex
}

type Option func(*headlessBrowser)

// WithUserAgent overrides the user agent of every page.
func WithUserAgent(ua string) Option {
	return func(h *headlessBrowser) {
		h.userAgent = ua
	}
}

// Headless returns a browser that lazily launches one headless chrome and reuses it.
func Headless(opts ...Option) Interface {
	h := &headlessBrowser{
		ch: make(chan *rod.Browser, 1),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *headlessBrowser) launch() {
	h.initOnce.Do(func() {
		u, err := launcher.New().Logger(newRodLauncherLogger()).Leakless(false).Launch()
		if err != nil {
			h.initErr = fmt.Errorf("launch browser: %w", err)
			close(h.ch)
			return
		}
		b := rod.New().ControlURL(u)
		if err := b.Connect(); err != nil {
			h.initErr = fmt.Errorf("connect to browser: %w", err)
			close(h.ch)
			return
		}
		slog.Debug("browser: launched headless chrome", "control_url", u)
		h.ch <- b
	})
}

// Close waits for any in-flight page to finish, then shuts the browser down.
func (h *headlessBrowser) Close() error {
	h.closeMu.Lock()
	defer h.closeMu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	h.initOnce.Do(func() {
		h.initErr = ErrClosed
		close(h.ch)
	})
	b, ok := <-h.ch
	if !ok {
		if errors.Is(h.initErr, ErrClosed) {
			return nil
		}
		return h.initErr
	}
	close(h.ch)
	return b.Close()
}

// WithPage receives the shared browser, opens a page at url, waits for it to
// settle, runs fn, then hands the browser back. The page is closed when fn returns.
func (h *headlessBrowser) WithPage(ctx context.Context, url string, fn func(page *rod.Page) error) error {
	h.launch()
	if h.initErr != nil && !errors.Is(h.initErr, ErrClosed) {
		return h.initErr
	}
	var b *rod.Browser
	select {
	case got, ok := <-h.ch:
		if !ok {
			return ErrClosed
		}
		b = got
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { h.ch <- b }()

	page, err := b.Page(proto.TargetCreateTarget{})
	if err != nil {
		return fmt.Errorf("create page: %w", err)
	}
	defer func() { _ = page.Close() }()

	page = page.Context(ctx)
	if h.userAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: h.userAgent}); err != nil {
			return fmt.Errorf("set user agent: %w", err)
		}
	}
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	if err := page.Timeout(PageStableTimeout).WaitStable(time.Second); err != nil {
		return fmt.Errorf("wait for page stable: %w", err)
	}
	return fn(page)
}

func (h *headlessBrowser) PageHTML(ctx context.Context, url string) (string, error) {
	var html string
	err := h.WithPage(ctx, url, func(page *rod.Page) error {
		var err error
		html, err = page.HTML()
		return err
	})
	if err != nil {
		return "", err
	}
	return html, nil
}

// rodLauncherLogger forwards launcher output (e.g. download progress) to slog at debug level.
type rodLauncherLogger struct {
	buf []byte
}

func (w *rodLauncherLogger) Write(p []byte) (n int, err error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		line := strings.TrimSpace(string(w.buf[:i]))
		w.buf = w.buf[i+1:]
		if line != "" {
			slog.Debug("rod launcher", "message", line)
		}
	}
	return len(p), nil
}

func newRodLauncherLogger() io.Writer {
	return &rodLauncherLogger{}
}
