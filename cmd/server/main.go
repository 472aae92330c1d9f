package main

import (
	"chat-presence/contract"
	"chat-presence/infrastructure/storage"
	"chat-presence/infrastructure/zmq"
	"chat-presence/internal"
	"chat-presence/observability"
	"chat-presence/runtime"
	"chat-presence/runtime/workers"
	"chat-presence/services"
	"chat-presence/sink"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
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
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run keeps every defer (store, sinks) on the exit path so the store lock is
// released and pending broadcasts are flushed before the process ends.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, err
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	// 2. Store
	backend, err := storage.Open(config.StoreDriver, config.StorePath, logger, false)
	if err != nil {
		return exitRuntime, fmt.Errorf("store opening failed: %w", err)
	}
	repository := storage.NewStateRepository(backend, logger)
	defer func() {
		if err := repository.Close(); err != nil {
			logger.Warn("Failed to close store", "error", err)
		}
	}()

	// 3. Broadcast sinks
	factories := map[string]sink.Factory{
		sink.DriverZmq:  zmq.PublisherFactory(config.PubAddress, logger),
		sink.DriverNats: sink.NatsFactory(config.NatsURL, config.NatsSubjectPrefix, logger),
		sink.DriverLog:  sink.LogFactory(logger),
	}
	sinks, closers, err := sink.Open(config.BroadcastDriver, factories, logger)
	if err != nil {
		return exitConfig, err
	}
	defer sink.CloseAll(closers, logger)
	timeline := sink.NewTimeline(config.TimelineSize)
	sinks = append(sinks, timeline)

	// 4. Engine
	fanout := workers.NewBroadcastFanout(logger, config.BroadcastBufferSize,
		config.BroadcastTimeout, config.SinkTimeout, sinks...)
	router := runtime.NewRouter(logger, repository, fanout, runtime.RouterConfig{
		DefaultChannels:      config.ChannelList(),
		RejectDuplicateLogin: config.RejectDuplicateLogin,
		PersistRetries:       config.PersistRetries,
		PersistBackoff:       config.PersistBackoff,
	})

	// 5. Reporting
	requestMetrics := observability.NewRequestMetrics()
	monitoring := observability.NewMonitoringManager(logger, config.MetricInterval)
	registry := observability.NewRegistry(router, requestMetrics, fanout)
	statusServer := internal.NewStatusServer(logger, config.StatusPort, router, monitoring, timeline, registry)
	reporter := workers.NewReporterWorker(logger, router, monitoring, fanout, config.ReportInterval)

	// 6. Control plane
	chatService := services.NewChatService(logger, router, requestMetrics)
	openSocket := func() (contract.ReplySocket, error) { return zmq.ListenReply(config.RepAddress) }
	requestLoop := workers.NewRequestLoop(logger, openSocket, chatService, config.PollInterval)

	supervisor := workers.NewSupervisor(logger, config.RestartInterval)
	orchestrator := runtime.NewOrchestrator(logger, supervisor, router)
	orchestrator.Add(fanout, requestLoop, monitoring, statusServer, reporter)

	// 7. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Starting chat server",
			"rep", config.RepAddress,
			"broadcast", config.BroadcastDriver,
			"store", config.StoreDriver)
		errChan <- orchestrator.Start(ctx)
	}()

	// 8. Wait for Stop or Error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		if err != nil {
			return exitRuntime, err
		}
		return exitOK, nil
	}

	// 9. Final Cleanup (Graceful Shutdown)
	// Start returns once every worker exited, the fanout having flushed.
	logger.Info("Shutting down gracefully...")
	orchestrator.Stop()
	if err := <-errChan; err != nil {
		return exitRuntime, err
	}
	logger.Info("Program stopped cleanly")

	return exitOK, nil
}
