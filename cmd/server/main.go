package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/tendant/simple-account/pkg/simpleaccount/api"
	"github.com/tendant/simple-account/pkg/simpleaccount/config"
)

// ProcessConfig holds settings of the binary itself. Service settings are
// read by config.WithEnv.
type ProcessConfig struct {
	LogLevel          string        `env:"LOG_LEVEL" env-default:"info"`
	LogFormat         string        `env:"LOG_FORMAT" env-default:"json"`
	RegisterPerMinute int           `env:"REGISTER_RATE_LIMIT" env-default:"10"`
	SignInPerMinute   int           `env:"SIGNIN_RATE_LIMIT" env-default:"20"`
	MaxUploadBytes    int64         `env:"MAX_UPLOAD_BYTES" env-default:"10485760"`
	RequestTimeout    time.Duration `env:"REQUEST_TIMEOUT" env-default:"60s"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"10s"`
}

func main() {
	_ = godotenv.Load()

	var procConfig ProcessConfig
	if err := cleanenv.ReadEnv(&procConfig); err != nil {
		slog.Error("Failed to read process configuration", "err", err)
		os.Exit(1)
	}

	logger := newLogger(procConfig)
	slog.SetDefault(logger)

	serverConfig, err := config.Load(config.WithEnv(""), config.WithLogger(logger))
	if err != nil {
		logger.Error("Failed to load server configuration", "err", err)
		os.Exit(1)
	}

	ctx := context.Background()
	components, err := serverConfig.BuildService(ctx)
	if err != nil {
		logger.Error("Failed to build service", "err", err)
		os.Exit(1)
	}
	defer components.Close()

	httpServer := &http.Server{
		Addr:              ":" + serverConfig.Port,
		Handler:           NewRouter(components, serverConfig, procConfig, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Simple Account Server starting",
			"port", serverConfig.Port,
			"env", serverConfig.Environment,
			"database", serverConfig.DatabaseType,
			"storage", serverConfig.Storage.Type,
			"buckets", serverConfig.Buckets,
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), procConfig.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "err", err)
	}
	logger.Info("Server exiting")
}

// NewRouter mounts the account and auth routes behind the middleware chain
func NewRouter(components *config.Components, serverConfig *config.ServerConfig, procConfig ProcessConfig, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(api.RequestIDMiddleware)
	r.Use(api.LoggingMiddleware(logger))
	r.Use(api.RecoveryMiddleware)
	if procConfig.RequestTimeout > 0 {
		r.Use(func(next http.Handler) http.Handler {
			return http.TimeoutHandler(next, procConfig.RequestTimeout, `{"success":false,"error":"request timed out","errorCode":"timeout"}`)
		})
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{
			"status":      "healthy",
			"environment": serverConfig.Environment,
			"database":    serverConfig.DatabaseType,
			"storage":     serverConfig.Storage.Type,
		})
	})

	accounts := api.NewAccountHandler(components.Service,
		api.WithUploads(components.Blobs, components.Buckets...),
		api.WithMaxUploadBytes(procConfig.MaxUploadBytes),
		api.WithRegisterRateLimit(procConfig.RegisterPerMinute),
		api.WithHandlerLogger(logger),
	)
	r.Mount("/accounts", accounts.Routes())
	r.Mount("/auth", api.NewAuthHandler(components.Authenticator, procConfig.SignInPerMinute).Routes())

	return r
}

func newLogger(c ProcessConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.LogFormat, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
