package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatline/auth"
	"chatline/domain/event"
	"chatline/infrastructure/web"
	"chatline/internal"
	"chatline/moderation"
	"chatline/observability"
	"chatline/repositories"
	"chatline/runtime"
	"chatline/runtime/workers"
	"chatline/services"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
)

// Exit codes to provide meaningful status to the service manager.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// main is a thin wrapper: call run() and translate its outcome into
	// an OS exit code, so every defer runs before the process exits.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	// 1. Configuration & logger
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, ".env file not found, reading environment directly")
	}
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	censoredChar, err := config.CharacterRune()
	if err != nil {
		return exitConfig, err
	}

	logger := internal.NewLogger(config.LogLevel)
	ctx := context.Background()

	// 2. Database (BadgerDB)
	options := buildBadgerOpts(config, logger, ctx)
	db, err := badger.Open(options)
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Repositories & core components
	chatRepository := repositories.NewChatRepository(db, logger)
	messageRepository := repositories.NewMessageRepository(db, chatRepository, logger,
		config.HistoryPageSize, config.SequenceBandwidth)
	defer func() {
		// Release leased sequence bandwidth so clean restarts stay gap-free.
		_ = messageRepository.Close()
	}()
	userRepository := repositories.NewUserRepository(db)

	registry := runtime.NewRegistry(config.MaxConnectionsPerUser)
	monitor := observability.NewMonitor(logger, config.MetricInterval)
	moderator, err := moderation.NewModerator(config.CensoredWordList(), censoredChar)
	if err != nil {
		return exitConfig, fmt.Errorf("moderation setup failed: %w", err)
	}

	events := make(chan event.DomainEvent, config.DispatchBufferSize)
	dispatcher := workers.NewDispatcher(logger, events, chatRepository, registry,
		config.DeliveryTimeout, monitor)

	gate := auth.NewGate(config.AuthSecret, config.AuthTokenDuration)
	chatService := services.NewChatService(logger, messageRepository, chatRepository,
		registry, events, moderator, monitor)
	authService := services.NewAuthService(userRepository, gate)

	// 4. Context & signals
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 2)

	// 5. Supervised workers (dispatch fan-out, telemetry)
	sup := workers.NewSupervisor(logger)
	go func() {
		logger.Info("Starting workers...")
		sup.Add(dispatcher, monitor).Run(ctx)
	}()

	// 6. HTTP server
	server := web.NewServer(logger, chatService, authService, gate, monitor,
		config.ConnectionBufferSize, config.Origins())
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	httpServer := &http.Server{Addr: address, Handler: server.Routes()}

	go func() {
		logger.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 7. Wait for stop or error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 8. Graceful shutdown: stop accepting, then drain workers.
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	sup.Stop()
	logger.Info("Program stopped cleanly")

	return exitOK, nil
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)
	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG)
	} else {
		options = options.WithLoggingLevel(badger.WARNING)
	}
	return options
}
