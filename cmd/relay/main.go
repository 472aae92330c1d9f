package main

import (
	"chat-presence/infrastructure/zmq"
	"chat-presence/internal"
	"chat-presence/runtime/workers"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

const (
	exitOK     = 0
	exitConfig = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Relay terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run serves the XSUB/XPUB proxy between the server publisher and the
// subscribed clients until a signal is received.
func run() (int, error) {
	_ = godotenv.Load()
	var config internal.RelayConfig
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	supervisor := workers.NewSupervisor(logger, config.RestartInterval)
	supervisor.Add(zmq.NewRelay(logger, config.XSubAddress, config.XPubAddress))
	supervisor.Run(ctx)

	logger.Info("Relay stopped cleanly")
	return exitOK, nil
}
