package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/chinmina/catvid-bridge/internal/audit"
	"github.com/chinmina/catvid-bridge/internal/config"
	"github.com/chinmina/catvid-bridge/internal/gfycat"
	"github.com/chinmina/catvid-bridge/internal/observe"
	"github.com/chinmina/catvid-bridge/internal/server"
	"github.com/joho/godotenv"
	"github.com/justinas/alice"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

func configureServerRoutes(cfg config.ServerConfig, source ItemSource) http.Handler {
	// wrap a mux such that HTTP telemetry is configured by default
	mux := observe.NewMux(http.NewServeMux())

	// Requests to this API carry no body, so the limit is small and fixed.
	requestLimitBytes := int64(20 << 10) // 20 KB
	requestLimiter := maxRequestSize(requestLimitBytes)

	// shared across all clients
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)

	auditor := audit.Middleware()

	itemRouteMiddleware := alice.New(requestLimiter, auditor, rateLimit(limiter))
	standardRouteMiddleware := alice.New(requestLimiter)

	mux.Handle("GET /random", itemRouteMiddleware.Then(handleGetRandom(source)))
	mux.Handle("GET /random/item", itemRouteMiddleware.Then(handleGetRandomItem(source)))

	// healthchecks are not included in telemetry or rate limiting
	mux.HandleUntraced("GET /healthcheck", standardRouteMiddleware.Then(handleHealthCheck()))

	return mux
}

func main() {
	configureLogging()

	logBuildInfo()

	err := launchServer()
	if err != nil {
		log.Fatal().Err(err).Msg("server failed to start")
	}
}

func launchServer() error {
	ctx := context.Background()

	loadDotEnv(".env")

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("configuration load failed: %w", err)
	}

	// configure telemetry, including wrapping default HTTP client
	shutdownTelemetry, err := observe.Configure(ctx, cfg.Observe)
	if err != nil {
		return fmt.Errorf("telemetry bootstrap failed: %w", err)
	}

	http.DefaultTransport = observe.HTTPTransport(
		configureHTTPTransport(cfg.Server),
		cfg.Observe,
	)
	http.DefaultClient = &http.Client{
		Transport: http.DefaultTransport,
		Timeout:   time.Duration(cfg.Server.OutgoingHTTPTimeoutSeconds) * time.Second,
	}

	client, err := gfycat.NewFromConfig(cfg.Gfycat, gfycat.WithHTTPClient(http.DefaultClient))
	if err != nil {
		return fmt.Errorf("gfycat client configuration failed: %w", err)
	}

	log.Info().
		Str("album", cfg.Gfycat.AlbumID).
		Str("grant", cfg.Gfycat.Grant()).
		Str("api", cfg.Gfycat.APIURL).
		Msg("gfycat client configured")

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           configureServerRoutes(cfg.Server, client),
		MaxHeaderBytes:    20 << 10,         // 20 KB
		ReadHeaderTimeout: 20 * time.Second, // Prevent Slowloris attacks
	}

	hooks := &server.ShutdownHooks{}
	hooks.AddClose("gfycat client", client)
	hooks.AddContext("telemetry", shutdownTelemetry)

	err = server.Serve(ctx, cfg.Server, srv, hooks)
	if err != nil {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// loadDotEnv populates the environment from an optional file. Values already
// set in the environment win.
func loadDotEnv(path string) {
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn().Str("path", path).Msg("no .env file found, using environment only")
		return
	}
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg(".env file could not be loaded")
	}
}

func configureLogging() {
	// Set global level to the minimum: allows the Open Telemetry logging to be
	// configured separately. However, it means that any logger that sets its
	// level will log as this effectively disables the global level.
	zerolog.SetGlobalLevel(zerolog.Level(-128))

	// default level is Info
	log.Logger = log.Level(zerolog.InfoLevel)

	if os.Getenv("ENV") == "development" {
		log.Logger = log.
			Output(zerolog.ConsoleWriter{Out: os.Stdout}).
			Level(zerolog.DebugLevel)
	}

	zerolog.DefaultContextLogger = &log.Logger
}

func logBuildInfo() {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	ev := log.Info().Str("module", buildInfo.Main.Path)
	for _, v := range buildInfo.Settings {
		if strings.HasPrefix(v.Key, "vcs.") ||
			strings.HasPrefix(v.Key, "GO") ||
			v.Key == "CGO_ENABLED" {
			ev = ev.Str(v.Key, v.Value)
		}
	}

	ev.Msg("build information")
}

func configureHTTPTransport(cfg config.ServerConfig) *http.Transport {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	transport.MaxIdleConns = cfg.OutgoingHTTPMaxIdleConns
	transport.MaxConnsPerHost = cfg.OutgoingHTTPMaxConnsPerHost

	return transport
}
