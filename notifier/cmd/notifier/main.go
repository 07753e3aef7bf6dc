package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"reflect"
	"syscall"
	"time"

	"github.com/zonewatch/zonewatch/notifier/internal/alerts"
	"github.com/zonewatch/zonewatch/notifier/internal/api"
	"github.com/zonewatch/zonewatch/notifier/internal/auth"
	"github.com/zonewatch/zonewatch/notifier/internal/config"
	"github.com/zonewatch/zonewatch/notifier/internal/metrics"
	"github.com/zonewatch/zonewatch/notifier/internal/source"
	"github.com/zonewatch/zonewatch/notifier/internal/store"
)

// eventBuffer decouples the transport from slow presenters.
const eventBuffer = 64

func main() {
	configPath := flag.String("config", "", "path to config file; built-in defaults when empty")
	endpoint := flag.String("endpoint", "", "override notifier.source.endpoint")
	flag.Parse()

	level := new(slog.LevelVar)
	slog.SetDefault(newLogger(os.Stdout, "json", level))

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			slog.Error("failed to load config", "err", err)
			os.Exit(1)
		}
	}
	if *endpoint != "" {
		cfg.Notifier.Source.Endpoint = *endpoint
	}

	n := cfg.Notifier
	level.Set(n.Log.SlogLevel())
	slog.SetDefault(newLogger(os.Stdout, n.Log.Format, level))

	slog.Info("notifier starting",
		"config", *configPath,
		"source", n.Source.Type,
		"endpoint", n.Source.Endpoint,
		"presenters", len(n.Presenters),
		"cooldown", n.Cooldown,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// History of presented notifications with background TTL eviction.
	history := store.New(n.History.Size, n.History.TTL)
	go history.Run(ctx)

	m := metrics.New()

	// One prompt owns stdin for every modal console, across reloads.
	prompt := alerts.NewPrompt(os.Stdin)
	presenters, err := alerts.Build(n.Presenters, os.Stdout, prompt)
	if err != nil {
		slog.Error("failed to build presenters", "err", err)
		os.Exit(1)
	}
	engine := alerts.New(presenters, n.Cooldown, history, m)

	src, err := source.New(n.Source)
	if err != nil {
		slog.Error("failed to create source", "err", err)
		os.Exit(1)
	}

	if *configPath != "" {
		go func() {
			err := config.Watch(ctx, *configPath, func(next *config.Config) {
				reload(engine, history, level, prompt, n.Source, *endpoint, next)
			})
			if err != nil {
				slog.Error("config watcher stopped", "err", err)
			}
		}()
	}

	var httpSrv *http.Server
	if n.HTTP.Addr != "" {
		handler := api.New(engine, history, api.SourceInfo{
			Type:     n.Source.Type,
			Endpoint: src.Endpoint(),
		}, m)
		httpSrv = &http.Server{
			Addr:              n.HTTP.Addr,
			Handler:           auth.APIKey(n.HTTP.Auth.Mode, n.HTTP.Auth.EffectiveHeader(), n.HTTP.Auth.Key())(handler),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			slog.Info("status API listening", "addr", n.HTTP.Addr)
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("status API stopped", "err", err)
			}
		}()
	}

	// Handlers run one at a time in delivery order; Consume returns when the
	// source stops or ctx is cancelled.
	engine.Consume(ctx, source.Stream(ctx, src, eventBuffer))

	slog.Info("notifier shutting down")
	if httpSrv != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
	}
}

// reload applies the parts of a new config that can change without
// reconnecting. Source changes need a restart.
func reload(engine *alerts.Engine, history *store.Store, level *slog.LevelVar, prompt *alerts.Prompt, current config.Source, endpoint string, next *config.Config) {
	n := next.Notifier
	if endpoint != "" {
		n.Source.Endpoint = endpoint
	}

	presenters, err := alerts.Build(n.Presenters, os.Stdout, prompt)
	if err != nil {
		slog.Error("config: presenters not reloaded", "err", err)
	} else {
		engine.SetPresenters(presenters)
	}
	engine.SetCooldown(n.Cooldown)
	history.Resize(n.History.Size)
	level.Set(n.Log.SlogLevel())

	if !reflect.DeepEqual(current, n.Source) {
		slog.Warn("config: source settings changed, restart to apply",
			"type", n.Source.Type,
			"endpoint", n.Source.Endpoint,
		)
	}
}

func newLogger(w io.Writer, format string, level slog.Leveler) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
