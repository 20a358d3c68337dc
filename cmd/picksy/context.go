package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/picksy/desktop/internal/bridge"
	"github.com/picksy/desktop/internal/config"
	"github.com/picksy/desktop/internal/contract"
	"github.com/picksy/desktop/internal/library"
	"github.com/picksy/desktop/internal/observability"
)

type globalOptions struct {
	configPath string
	hostURL    string
	apiKey     string
	timeout    time.Duration
	json       bool
	verbose    bool
}

const version = "0.4.0"

// connectFunc opens the raw host connection and returns its closer
type connectFunc func(ctx context.Context, cfg *config.Config, logger *observability.Logger) (bridge.Host, func(), error)

type commandContext struct {
	opts    *globalOptions
	connect connectFunc

	configOnce sync.Once
	config     *config.Config
	configErr  error

	telemetry *observability.Telemetry
	metrics   *observability.BridgeMetrics
}

func newCommandContext(opts *globalOptions) *commandContext {
	return &commandContext{opts: opts, connect: dialWebSocket}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var cfg *config.Config
		var err error
		if path := strings.TrimSpace(c.opts.configPath); path != "" {
			cfg, err = config.LoadFile(path)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			c.configErr = err
			return
		}
		if c.opts.hostURL != "" {
			cfg.Bridge.HostURL = c.opts.hostURL
		}
		if c.opts.apiKey != "" {
			cfg.Bridge.APIKey = c.opts.apiKey
		}
		if c.opts.timeout > 0 {
			cfg.Bridge.CommandTimeout = config.Duration(c.opts.timeout)
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) logger() *observability.Logger {
	if c.opts.verbose {
		return observability.NewLoggerTo(os.Stderr, "picksy", observability.LevelDebug)
	}
	return observability.Discard()
}

// startTelemetry installs the OTLP providers when OTEL_ENABLED is set and
// creates the bridge instruments on them.
func (c *commandContext) startTelemetry(ctx context.Context) {
	if c.metrics != nil {
		return
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return
	}
	logger := c.logger()
	telemetry, err := observability.Initialize(ctx, observability.NewConfig("picksy", version).WithDevice(cfg.Bridge.DeviceName))
	if err != nil {
		logger.WithError(err).Warn("telemetry unavailable")
	}
	c.telemetry = telemetry

	var metrics *observability.BridgeMetrics
	if telemetry != nil && telemetry.MeterProvider != nil {
		metrics, err = observability.NewBridgeMetricsFor(telemetry.MeterProvider)
	} else {
		metrics, err = observability.NewBridgeMetrics()
	}
	if err != nil {
		logger.WithError(err).Warn("bridge metrics unavailable")
		return
	}
	c.metrics = metrics
}

func (c *commandContext) stopTelemetry() {
	if c.telemetry == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.telemetry.Shutdown(ctx); err != nil {
		c.logger().WithError(err).Warn("telemetry shutdown failed")
	}
	c.telemetry = nil
}

// session is one connection to the host with the library store on top
type session struct {
	conn  *bridge.Conn
	store *library.Store
	scope *bridge.Scope
}

func dialWebSocket(ctx context.Context, cfg *config.Config, logger *observability.Logger) (bridge.Host, func(), error) {
	dialCtx, cancel := context.WithTimeout(ctx, cfg.Bridge.DialTimeout.Std())
	defer cancel()

	ws, err := bridge.Dial(dialCtx, bridge.DialOptions{
		URL:          cfg.Bridge.HostURL,
		APIKey:       cfg.Bridge.APIKey,
		APIKeyHeader: cfg.Bridge.APIKeyHeader,
		Hello: contract.Hello{
			PeerKey:    "cli:" + cfg.Bridge.DeviceName,
			DeviceName: cfg.Bridge.DeviceName,
			Metadata:   map[string]any{"client": "picksy-cli", "version": version},
		},
		Logger: logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect to host: %w", err)
	}
	return ws, func() { _ = ws.Close() }, nil
}

func (c *commandContext) dial(ctx context.Context) (*bridge.Conn, func(), error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	logger := c.logger()
	host, closeHost, err := c.connect(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	opts := []bridge.Option{bridge.WithLogger(logger), bridge.WithTimeout(cfg.Bridge.CommandTimeout.Std())}
	if c.metrics != nil {
		opts = append(opts, bridge.WithMetrics(c.metrics))
	}
	return bridge.New(host, opts...), closeHost, nil
}

// withStore connects, loads the library and runs fn. The store is released
// when fn returns.
func (c *commandContext) withStore(ctx context.Context, fn func(*session) error) error {
	conn, closeConn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer closeConn()

	scope := bridge.NewScope(ctx)
	defer scope.Close()

	store := library.New(conn, library.WithLogger(c.logger()))
	if err := store.Start(scope); err != nil {
		return err
	}
	return fn(&session{conn: conn, store: store, scope: scope})
}

// withConn runs fn against a bare connection, for commands that do not need
// the library loaded.
func (c *commandContext) withConn(ctx context.Context, fn func(*bridge.Conn) error) error {
	conn, closeConn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer closeConn()
	return fn(conn)
}
