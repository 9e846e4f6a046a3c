package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	goruntime "runtime"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/roach88/beacon/internal/config"
	"github.com/roach88/beacon/internal/engine"
	"github.com/roach88/beacon/internal/event"
	"github.com/roach88/beacon/internal/ident"
	"github.com/roach88/beacon/internal/metrics"
	"github.com/roach88/beacon/internal/queue"
	"github.com/roach88/beacon/internal/store"
	"github.com/roach88/beacon/internal/transport"
)

// app bundles the collaborators of one engine, built from configuration.
type app struct {
	cfg       config.Config
	logger    *slog.Logger
	store     *store.Store
	backing   queue.Backing
	transport *transport.Transport
	registry  *prometheus.Registry
	metrics   *metrics.Metrics
}

func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	return cfg, nil
}

// newLogger follows the output format: JSON logs for --format json, text
// otherwise. log_enabled=false silences everything.
func newLogger(opts *RootOptions, cfg config.Config, w io.Writer) *slog.Logger {
	if !cfg.LogEnabled {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	if opts.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

// openStorage opens the settings database and the queue backing only.
func openStorage(opts *RootOptions, cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	logger := newLogger(opts, cfg, cmd.ErrOrStderr())

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to create data dir", err)
	}
	logger.Debug("opening database", "path", cfg.DatabasePath())
	st, err := store.Open(cfg.DatabasePath())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	a := &app{cfg: cfg, logger: logger, store: st, backing: st}
	if cfg.QueueBackend == config.BackendFile {
		dir, err := store.OpenDir(cfg.DataDir)
		if err != nil {
			a.Close()
			return nil, WrapExitError(ExitCommandError, "failed to open queue directory", err)
		}
		a.backing = dir
	}
	return a, nil
}

// openApp additionally builds the transport and metrics.
func openApp(opts *RootOptions, cmd *cobra.Command) (*app, error) {
	a, err := openStorage(opts, cmd)
	if err != nil {
		return nil, err
	}
	if err := a.cfg.RequireCredentials(); err != nil {
		a.Close()
		return nil, WrapExitError(ExitCommandError, "cannot send", err)
	}
	mode, err := transport.ParseMode(a.cfg.TestMode)
	if err != nil {
		a.Close()
		return nil, WrapExitError(ExitCommandError, "invalid config", err)
	}

	a.transport = transport.New(a.cfg.APIKey, a.cfg.Secret,
		transport.WithEndpoint(a.cfg.Endpoint),
		transport.WithMode(mode),
		transport.WithSimulationDelay(a.cfg.SimulationDelay),
		transport.WithLogger(a.logger),
	)
	a.registry = prometheus.NewRegistry()
	a.metrics = metrics.New(a.registry)
	return a, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Error("error closing database", "error", err)
	}
}

// resolver reports the configured device. Without a configured device id
// the machine id is looked up in the background.
func (a *app) resolver() ident.Resolver {
	d := a.cfg.Device
	info := ident.DeviceInfo{
		Platform:          ident.ParsePlatform(a.cfg.Platform),
		DeviceID:          d.ID,
		AdvertisingID:     d.AdvertisingID,
		AdTrackingEnabled: d.AdTrackingEnabled,
	}
	if info.DeviceID != "" {
		return ident.NewSimulated(info)
	}
	return ident.NewAsync(info, func(context.Context) (ident.DeviceInfo, error) {
		id, err := machineID()
		if err != nil {
			return ident.DeviceInfo{}, err
		}
		resolved := info
		resolved.DeviceID = id
		return resolved, nil
	}, a.logger)
}

var machineIDPaths = []string{"/etc/machine-id", "/var/lib/dbus/machine-id"}

func machineID() (string, error) {
	for _, path := range machineIDPaths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if id := strings.TrimSpace(string(data)); id != "" {
			return id, nil
		}
	}
	host, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("no machine id: %w", err)
	}
	if host == "" {
		return "", errors.New("no machine id")
	}
	return host, nil
}

func (a *app) platformInfo() event.PlatformInfo {
	d := a.cfg.Device
	osName := d.OSName
	if osName == "" {
		osName = goruntime.GOOS
	}
	return event.PlatformInfo{
		DeviceModel:  d.Model,
		OSName:       osName,
		ScreenWidth:  d.ScreenWidth,
		ScreenHeight: d.ScreenHeight,
		ScreenDPI:    d.ScreenDPI,
	}
}

func (a *app) newEngine() *engine.Engine {
	c := a.cfg
	return engine.New(a.transport, a.store, a.backing, a.resolver(),
		engine.WithLogger(a.logger),
		engine.WithMetrics(a.metrics),
		engine.WithCheckServerInterval(c.CheckServerInterval),
		engine.WithHeartbeatInterval(c.HeartbeatInterval),
		engine.WithPayable(c.Payable),
		engine.WithCustomID(c.CustomID),
		engine.WithPlatformInfo(a.platformInfo()),
	)
}

func (a *app) metricsHandler() http.Handler {
	return promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})
}
