// Command cheese-pants starts the Cheese Pants game server.
//
// It supports three commands:
//  1. "serve" (default) – runs the HTTP server exposing WebSocket play, the REST API, /metrics and an /mcp endpoint
//  2. "mcp" – runs an MCP stdio server, reusing a running API or starting an internal one
//  3. "version" – prints the version
//
// Settings come from defaults, an optional YAML file (--config), CHEESEPANTS_*
// environment variables and flags, in increasing order of precedence. A .env
// file in the working directory is loaded first.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/cheese-pants/api"
	"github.com/wricardo/cheese-pants/game/config"
	"github.com/wricardo/cheese-pants/game/service"
	"github.com/wricardo/cheese-pants/game/session"
	"github.com/wricardo/cheese-pants/transport/mcp"
	"github.com/wricardo/cheese-pants/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Cheese Pants Server"
)

const envPrefix = "CHEESEPANTS_"

func env(name string) cli.ValueSourceChain {
	return cli.EnvVars(envPrefix + name)
}

// serverFlags are shared by every command. Each maps onto one config field
// in applyFlags.
func serverFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "config", Usage: "YAML config file", Sources: env("CONFIG")},
		&cli.StringFlag{Name: "host", Usage: "HTTP server host", Sources: env("HOST")},
		&cli.IntFlag{Name: "port", Usage: "HTTP server port", Sources: env("PORT")},
		&cli.StringFlag{Name: "storage-driver", Usage: "memory, file, sqlite or postgres", Sources: env("STORAGE_DRIVER")},
		&cli.StringFlag{Name: "storage-dir", Usage: "directory for the file driver", Sources: env("STORAGE_DIR")},
		&cli.StringFlag{Name: "dsn", Usage: "database DSN for sqlite or postgres", Sources: env("DSN")},
		&cli.DurationFlag{Name: "room-idle-timeout", Usage: "evict rooms with no connections after this long (0 keeps them)", Sources: env("ROOM_IDLE_TIMEOUT")},
		&cli.BoolFlag{Name: "proactive-timeouts", Usage: "skip expired turns without waiting for the next message", Sources: env("PROACTIVE_TIMEOUTS")},
		&cli.FloatFlag{Name: "ws-rate-limit", Usage: "inbound messages per second per connection (0 disables)", Sources: env("WS_RATE_LIMIT")},
		&cli.IntFlag{Name: "ws-burst", Usage: "inbound message burst per connection", Sources: env("WS_BURST")},
		&cli.StringFlag{Name: "log-level", Usage: "trace, debug, info, warn or error", Sources: env("LOG_LEVEL")},
		&cli.BoolFlag{Name: "log-pretty", Usage: "human-readable console logs", Sources: env("LOG_PRETTY")},
		&cli.BoolFlag{Name: "ngrok", Usage: "expose the server through an ngrok tunnel", Sources: cli.EnvVars(envPrefix+"NGROK", "NGROK_ENABLED")},
		&cli.StringFlag{Name: "ngrok-domain", Usage: "custom ngrok domain", Sources: cli.EnvVars(envPrefix+"NGROK_DOMAIN", "NGROK_DOMAIN")},
	}
}

func newRootCommand() *cli.Command {
	serve := &cli.Command{
		Name:   "serve",
		Usage:  "Run the HTTP server with WebSocket play, REST API and MCP endpoint",
		Action: runServe,
	}
	return &cli.Command{
		Name:    "cheese-pants",
		Usage:   AppName,
		Version: Version,
		Flags:   serverFlags(),
		Action:  runServe,
		Commands: []*cli.Command{
			serve,
			{
				Name:  "mcp",
				Usage: "Run an MCP stdio server",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "api-url", Usage: "API server to proxy", Value: "http://localhost:8080", Sources: env("API_URL")},
				},
				Action: runMCP,
			},
			{
				Name:  "version",
				Usage: "Show version information",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					fmt.Fprintf(cmd.Root().Writer, "%s v%s\n", AppName, Version)
					return nil
				},
			},
		},
	}
}

// main loads .env, then runs the selected command
func main() {
	// Load .env file if it exists
	envErr := godotenv.Load()

	if err := newRootCommand().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: failed to load .env file: %v\n", envErr)
	}
}

// loadConfig layers the YAML file and flags over the defaults
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg := config.Default()
	if path := cmd.String("config"); path != "" {
		var err error
		if cfg, err = config.LoadFile(path); err != nil {
			return nil, err
		}
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFlags(cmd *cli.Command, cfg *config.Config) {
	if cmd.IsSet("host") {
		cfg.Server.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Server.Port = cmd.Int("port")
	}
	if cmd.IsSet("storage-driver") {
		cfg.Storage.Driver = cmd.String("storage-driver")
	}
	if cmd.IsSet("storage-dir") {
		cfg.Storage.Dir = cmd.String("storage-dir")
	}
	if cmd.IsSet("dsn") {
		cfg.Storage.DSN = cmd.String("dsn")
	}
	if cmd.IsSet("room-idle-timeout") {
		cfg.Rooms.IdleTimeout = cmd.Duration("room-idle-timeout")
	}
	if cmd.IsSet("proactive-timeouts") {
		cfg.Rooms.ProactiveTimeouts = cmd.Bool("proactive-timeouts")
	}
	if cmd.IsSet("ws-rate-limit") {
		cfg.WebSocket.RateLimit = cmd.Float("ws-rate-limit")
	}
	if cmd.IsSet("ws-burst") {
		cfg.WebSocket.Burst = cmd.Int("ws-burst")
	}
	if cmd.IsSet("log-level") {
		cfg.Log.Level = cmd.String("log-level")
	}
	if cmd.IsSet("log-pretty") {
		cfg.Log.Pretty = cmd.Bool("log-pretty")
	}
	if cmd.IsSet("ngrok") {
		cfg.Ngrok.Enabled = cmd.Bool("ngrok")
	}
	if cmd.IsSet("ngrok-domain") {
		cfg.Ngrok.Domain = cmd.String("ngrok-domain")
	}
}

// newLogger builds the process logger. Logs go to stderr so the MCP stdio
// transport keeps stdout to itself.
func newLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := cfg.ZerologLevel()
	if err != nil {
		level = zerolog.InfoLevel
	}
	var logger zerolog.Logger
	if cfg.Pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Logger()
}

// openStore returns the configured persistence. The memory driver returns
// a nil store and rooms live only as long as the process.
func openStore(cfg config.StorageConfig) (session.Persistence, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Driver {
	case config.DriverMemory:
		return nil, noop, nil
	case config.DriverFile:
		store, err := session.NewFilePersistence(cfg.Dir)
		if err != nil {
			return nil, nil, err
		}
		return store, noop, nil
	case config.DriverSQLite, config.DriverPostgres:
		store, err := session.OpenSQL(cfg.Driver, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}

// app is the wired server
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	rooms   *session.Manager
	hub     *websocket.Hub
	handler http.Handler
	close   func()
}

// newApp wires storage, rooms, transports and the API. baseURL is where the
// MCP tools reach the REST API.
func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger, baseURL string) (*app, error) {
	store, closeStore, err := openStore(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := session.NewMetrics(reg)

	hub := websocket.NewHub(logger.With().Str("component", "hub").Logger())
	rooms := session.NewManager(ctx, store, hub, session.RoomOptions{
		Logger:            logger.With().Str("component", "room").Logger(),
		Metrics:           metrics,
		ProactiveTimeouts: cfg.Rooms.ProactiveTimeouts,
	})

	var lister service.GameLister
	if store != nil {
		lister = store
	}
	games := service.NewGameService(rooms, lister, hub)

	wsHandler := websocket.NewHandler(hub, rooms, websocket.HandlerOptions{
		RateLimit:      cfg.WebSocket.RateLimit,
		Burst:          cfg.WebSocket.Burst,
		MaxMessageSize: cfg.WebSocket.MaxMessageSize,
		Logger:         logger.With().Str("component", "ws").Logger(),
		Metrics:        metrics,
	})

	apiServer := api.NewServer(api.Options{
		Service:   games,
		WebSocket: wsHandler,
		MCP:       mcp.NewClient(baseURL, Version),
		Metrics:   promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Version:   Version,
		Logger:    logger.With().Str("component", "api").Logger(),
	})

	return &app{
		cfg:     cfg,
		log:     logger,
		rooms:   rooms,
		hub:     hub,
		handler: apiServer,
		close: func() {
			rooms.Close()
			if err := closeStore(); err != nil {
				logger.Warn().Err(err).Msg("failed to close storage")
			}
		},
	}, nil
}

// localURL is the loopback URL of a listener on host:port
func localURL(host string, port int) string {
	switch host {
	case "", "0.0.0.0", "::", "[::]":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(port))
}

// runServe starts the HTTP server and, if enabled, the ngrok tunnel, then
// waits for a shutdown signal.
func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log)
	logger.Info().Str("version", Version).Str("storage", cfg.Storage.Driver).Msg("starting " + AppName)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger, localURL(cfg.Server.Host, cfg.Server.Port))
	if err != nil {
		return err
	}
	defer a.close()

	addr := cfg.Addr()
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      a.handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	var wg sync.WaitGroup
	serveErr := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info().
			Str("addr", addr).
			Str("websocket", fmt.Sprintf("ws://%s/ws?gameId=<id>&playerId=<id>&playerName=<name>", addr)).
			Str("mcp", fmt.Sprintf("http://%s/mcp", addr)).
			Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.rooms.RunEviction(ctx, cfg.Rooms.EvictionInterval, cfg.Rooms.IdleTimeout)
	}()

	if cfg.Ngrok.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrok(ctx, cfg.Ngrok, a.handler, logger)
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	case err = <-serveErr:
		logger.Error().Err(err).Msg("HTTP server failed")
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Warn().Err(shutdownErr).Msg("HTTP server shutdown error")
	}

	wg.Wait()
	logger.Info().Msg("server stopped")
	return err
}

// runNgrok serves handler through an ngrok tunnel until ctx is done
func runNgrok(ctx context.Context, cfg config.NgrokConfig, handler http.Handler, logger zerolog.Logger) {
	authToken := os.Getenv("NGROK_AUTHTOKEN")
	if authToken == "" {
		authToken = os.Getenv("NGROK_AUTH_TOKEN")
	}
	if authToken == "" {
		logger.Warn().Msg("ngrok enabled but NGROK_AUTHTOKEN is not set")
		return
	}

	var tunnel ngrokConfig.Tunnel
	if cfg.Domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(cfg.Domain))
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(authToken))
	if err != nil {
		logger.Error().Err(err).Msg("failed to start ngrok tunnel")
		return
	}

	logger.Info().Str("url", tun.URL()).Msg("ngrok tunnel established")

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close ngrok tunnel")
		}
	}()

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		logger.Error().Err(err).Msg("ngrok server error")
	}
	logger.Info().Msg("ngrok tunnel closed")
}

// apiReachable reports whether an API server answers at baseURL
func apiReachable(ctx context.Context, baseURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", baseURL+"/healthz", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// runMCP runs an MCP stdio server. It proxies --api-url when a server
// answers there, and otherwise starts an internal API on a loopback port.
func runMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log)

	baseURL := cmd.String("api-url")
	if apiReachable(ctx, baseURL) {
		logger.Info().Str("api", baseURL).Msg("using external API server for MCP")
	} else {
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}
		baseURL = "http://" + listener.Addr().String()

		a, err := newApp(ctx, cfg, logger, baseURL)
		if err != nil {
			listener.Close()
			return err
		}
		defer a.close()

		internal := &http.Server{Handler: a.handler}
		go func() {
			if err := internal.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("internal HTTP server error")
			}
		}()
		defer internal.Close()

		logger.Info().Str("api", baseURL).Msg("started internal API server for MCP")
	}

	if err := server.ServeStdio(mcp.NewClient(baseURL, Version).GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}
