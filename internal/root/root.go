package root

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/drewfead/vo-watcher/internal/api"
	"github.com/drewfead/vo-watcher/internal/fetch"
	"github.com/urfave/cli/v3"
)

// syncWriter wraps an *os.File and calls Sync after each Write so reports
// appear immediately even when stdout is redirected.
type syncWriter struct {
	f *os.File
}

func (w *syncWriter) Write(p []byte) (n int, err error) {
	n, err = w.f.Write(p)
	if err != nil {
		return n, err
	}
	_ = w.f.Sync()
	return n, nil
}

// RootOption configures the root command (e.g. for tests).
type RootOption func(*rootConfig)

type rootConfig struct {
	store      api.Store
	strategies fetch.Registry
	out        io.Writer
	logOut     io.Writer
}

// WithStore replaces the MySQL store. Use in tests to inject memstore.
func WithStore(store api.Store) RootOption {
	return func(c *rootConfig) {
		c.store = store
	}
}

// WithStrategies sets the fetch strategy registry. Use in tests to inject
// strategies pointed at golden HTTP servers instead of the live site.
func WithStrategies(registry fetch.Registry) RootOption {
	return func(c *rootConfig) {
		c.strategies = registry
	}
}

// WithOutput redirects command output (reports, tokens).
func WithOutput(w io.Writer) RootOption {
	return func(c *rootConfig) {
		c.out = w
	}
}

// WithLogOutput redirects logs, which go to stderr by default.
func WithLogOutput(w io.Writer) RootOption {
	return func(c *rootConfig) {
		c.logOut = w
	}
}

func configureLogging(w io.Writer, level, format string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	switch strings.ToLower(format) {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		return fmt.Errorf("invalid --log-format %q (valid: text, json)", format)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

func Root(ctx context.Context, opts ...RootOption) (*cli.Command, error) {
	cfg := &rootConfig{
		out:    &syncWriter{f: os.Stdout},
		logOut: os.Stderr,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	rootCmd := &cli.Command{
		Name:  "vo-watcher",
		Usage: "collect original-language showtimes and serve them",
		Flags: globalFlags(),
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			return ctx, configureLogging(cfg.logOut, cmd.String("log-level"), cmd.String("log-format"))
		},
		Commands: []*cli.Command{
			scrapeCommand(cfg),
			serveCommand(cfg),
			buildDBCommand(cfg),
			refreshRatingsCommand(cfg),
			tokenCommand(cfg),
		},
	}
	return rootCmd, nil
}
