package main

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/infrastructure/grpc/server"
	"chat-relay/infrastructure/storage"
	"chat-relay/internal"
	"chat-relay/moderation"
	"chat-relay/observability"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/sink"
	"chat-relay/transport/websocket"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/database"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Relay terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// Every defer runs before the process exits.
func run() (int, error) {
	// 1. Configuration & Logger
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, err
	}
	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Session journal (BadgerDB), optional
	var sinks []contract.EventSink[event.StatusEvent]
	if config.JournalFilepath != "" {
		db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
		if err != nil {
			return exitRuntime, fmt.Errorf("journal opening failed: %w", err)
		}
		defer func() {
			logger.Info("Closing BadgerDB...")
			_ = db.Close()
		}()

		if logger.Enabled(ctx, slog.LevelDebug) {
			endpoint := "/inspect"
			url := fmt.Sprintf("http://localhost:%d%s?prefix=journal:", config.DebugPort, endpoint)
			logger.Info("Debug Badger inspector available", "url", url)
			database.StartDebugServer(db, config.DebugPort, endpoint, JournalMapper)
		}
		sinks = append(sinks, sink.NewJournalSink(storage.NewJournalRepository(db, logger), logger))
	}

	// 3. Moderation, optional
	var filter contract.ContentFilter
	if words := moderation.ParseWords(config.CensoredWords); len(words) > 0 {
		moderator, err := moderation.NewModerator(words, charReplacement, logger)
		if err != nil {
			return exitConfig, fmt.Errorf("moderation setup failed: %w", err)
		}
		filter = moderator
		logger.Info("Moderation enabled", "words", len(words))
	}

	// 4. Relay core
	registry := runtime.NewRegistry().WithLimit(config.MaxSessions)
	messages := runtime.NewFeed[domain.ChatMessage]()
	statuses := runtime.NewFeed[event.StatusEvent]()
	bus := runtime.NewMessageBus(logger, registry, runtime.NewClock(time.Now), messages, config.WriteTimeout)
	relay := runtime.NewRelay(logger, registry, bus, messages, statuses, filter, runtime.Options{
		MaxContentBytes: config.MaxContentBytes,
		WriteTimeout:    config.WriteTimeout,
	})

	// 5. Background workers
	statusSub := relay.SubscribeStatus(config.SubscriberBufferSize)
	defer statusSub.Cancel()
	sup := workers.NewSupervisor(logger, config.RestartInterval)
	sup.Add(workers.NewProcessMonitor(logger, relay, config.MonitorInterval))
	sup.Add(workers.NewChannelCapacityWorker(logger, config.MonitorInterval,
		workers.NamedChannel{Name: "status_events", Channel: statusSub.C()}))
	if len(sinks) > 0 {
		sup.Add(workers.NewEventFanout(logger, statusSub.C(), 0, sinks...))
	}
	supDone := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(supDone)
	}()

	// 6. Websocket and metrics server
	errChan := make(chan error, 2)
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	inner, err := net.Listen("tcp", address)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	listener := websocket.NewListener(logger, inner)

	mux := http.NewServeMux()
	mux.Handle("/ws", websocket.NewHandler(logger, relay, websocket.HandlerConfig{
		HandshakeTimeout: config.HandshakeTimeout,
		KeepAlive: websocket.KeepAlive{
			PingInterval: config.PingInterval,
			PongTimeout:  config.PongTimeout,
		},
		ReadLimit: config.ReadLimit(),
	}))
	mux.Handle("/metrics", observability.Handler())
	httpServer := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: config.HandshakeTimeout,
	}
	go func() {
		logger.Info("Starting relay server", "address", address, "at", time.Now().UTC())
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("relay server error: %w", err)
		}
	}()

	// 7. gRPC health
	healthAddress := fmt.Sprintf("%s:%d", config.Host, config.HealthPort)
	healthListener, err := net.Listen("tcp", healthAddress)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to listen on %s: %w", healthAddress, err)
	}
	health := server.NewHealthServer(logger)
	go func() {
		if err := health.Serve(healthListener); err != nil {
			errChan <- err
		}
	}()
	health.SetServing(true)

	// 8. Wait for Stop or Error
	code := exitOK
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case runErr = <-errChan:
		logger.Error("Relay failing", "error", runErr)
		code = exitRuntime
	}

	// 9. Graceful shutdown
	logger.Info("Shutting down gracefully...")
	health.SetServing(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	if err := relay.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Relay shutdown incomplete", "error", err)
	}
	sup.Stop()
	select {
	case <-supDone:
	case <-shutdownCtx.Done():
		logger.Warn("Workers did not stop in time")
	}
	health.Stop(shutdownCtx)
	logger.Info("Program stopped cleanly")

	return code, runErr
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.JournalFilepath)

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG).
			WithBypassLockGuard(true)
	} else {
		options = options.WithLoggingLevel(badger.WARNING)
	}

	return options
}

// JournalMapper renders journal entries in the debug inspector.
func JournalMapper(key string, val []byte) database.InspectRow {
	row := database.DefaultMapper(key, val)

	entry, err := storage.UnmarshalJournalEntry(val)
	if err != nil {
		row.Detail = "Error: unmarshal failed"
		return row
	}
	row.Type = entry.State.String()
	row.EntityID = entry.SessionID
	row.Detail = fmt.Sprintf("%d %s from %s", entry.Code, entry.Code, entry.RemoteAddr)
	return row
}
