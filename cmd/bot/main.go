package main

import (
	"chat-presence/infrastructure/zmq"
	"chat-presence/internal"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
)

const (
	exitOK       = 0
	exitRuntime  = 1
	exitConfig   = 2
	exitMismatch = 3
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Bot error: %v\n", err)
	}
	os.Exit(code)
}

// run plays the bot scenario against a running server and reports every
// step. A status other than the expected one ends with exitMismatch.
func run() (int, error) {
	_ = godotenv.Load()
	var config internal.BotConfig
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	socket, err := zmq.DialRequest(config.ServerAddress, config.ReplyTimeout)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to server at %s: %w", config.ServerAddress, err)
	}
	defer func() { _ = socket.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	steps := scenario(config.Channel)
	outcomes := play(ctx, log, socket, steps, config.StepDelay)
	for _, o := range outcomes {
		fmt.Println(formatOutcome(o))
	}

	if last, found := lo.Last(outcomes); found && last.err != nil {
		return exitRuntime, last.err
	}
	if len(outcomes) < len(steps) {
		return exitOK, nil
	}
	if failed := lo.CountBy(outcomes, func(o outcome) bool { return !o.ok() }); failed > 0 {
		return exitMismatch, fmt.Errorf("%d of %d steps got an unexpected status", failed, len(steps))
	}
	return exitOK, nil
}

func formatOutcome(o outcome) string {
	line := fmt.Sprintf("%-28s %s", o.step.description, o.status)
	if o.message != "" {
		line += " (" + o.message + ")"
	}
	switch {
	case o.err != nil:
		return color.Red.Sprintf("%-28s %v", o.step.description, o.err)
	case !o.ok():
		return color.Red.Sprintf("%s, expected %s", line, o.step.expect)
	default:
		return color.Green.Sprint(line)
	}
}
