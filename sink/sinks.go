package sink

import (
	"chat-presence/contract"
	"chat-presence/errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

const (
	DriverZmq  = "zmq"
	DriverNats = "nats"
	DriverLog  = "log"
)

// Factory opens one sink. The closer is nil for sinks holding no resource.
type Factory func() (contract.BroadcastSink, io.Closer, error)

func NatsFactory(url, prefix string, log *slog.Logger) Factory {
	return func() (contract.BroadcastSink, io.Closer, error) {
		natsSink, err := NewNatsSink(url, prefix, log)
		if err != nil {
			return nil, nil, err
		}
		return natsSink, natsSink, nil
	}
}

func LogFactory(log *slog.Logger) Factory {
	return func() (contract.BroadcastSink, io.Closer, error) {
		return NewLogSink(log), nil, nil
	}
}

// Open builds one sink per driver of a comma separated list.
// The returned closers must be closed once the fanout stopped.
func Open(drivers string, factories map[string]Factory, log *slog.Logger) ([]contract.BroadcastSink, []io.Closer, error) {
	var sinks []contract.BroadcastSink
	var closers []io.Closer

	for _, driver := range strings.Split(drivers, ",") {
		driver = strings.TrimSpace(driver)
		if driver == "" {
			continue
		}
		factory, ok := factories[driver]
		if !ok {
			CloseAll(closers, log)
			return nil, nil, fmt.Errorf("%w: broadcast %q", errors.ErrUnknownDriver, driver)
		}
		s, closer, err := factory()
		if err != nil {
			CloseAll(closers, log)
			return nil, nil, fmt.Errorf("opening %s sink: %w", driver, err)
		}
		sinks = append(sinks, s)
		if closer != nil {
			closers = append(closers, closer)
		}
	}
	return sinks, closers, nil
}

func CloseAll(closers []io.Closer, log *slog.Logger) {
	for _, c := range closers {
		if err := c.Close(); err != nil {
			log.Warn("Failed to close sink", "error", err)
		}
	}
}
