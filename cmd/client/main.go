package main

import (
	"bufio"
	"chat-presence/domain"
	"chat-presence/infrastructure/zmq"
	"chat-presence/internal"
	"chat-presence/protocol"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	// 1. Configuration
	_ = godotenv.Load()
	var config internal.ClientConfig
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	stdin := bufio.NewScanner(os.Stdin)
	fmt.Print("Your name: ")
	if !stdin.Scan() {
		return exitOK, nil
	}
	self := strings.TrimSpace(stdin.Text())
	if self == "" {
		return exitConfig, errors.New("a name is required")
	}

	// 2. Control plane
	req, err := zmq.DialRequest(config.ServerAddress, config.ReplyTimeout)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to server at %s: %w", config.ServerAddress, err)
	}
	defer func() { _ = req.Close() }()

	s := &session{
		log:       log,
		self:      self,
		req:       req,
		subscribe: make(chan string, 16),
		output:    make(chan string, 64),
	}

	// 3. Subscribe to our own topic and every channel before logging in,
	// so offline messages redelivered at login are not missed.
	channels, err := s.request(domain.ServiceChannels.String(), protocol.RequestData{})
	if err != nil {
		return exitRuntime, err
	}
	topics := append([]string{self}, channels.Data.Channels...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	listenErr := make(chan error, 1)
	go func() { listenErr <- s.listen(ctx, config.SubAddress, topics) }()

	login, err := s.request(domain.ServiceLogin.String(), protocol.RequestData{User: self})
	if err != nil {
		return exitRuntime, err
	}
	fmt.Println(formatReply(login))
	if login.Data.Status == string(domain.StatusError) {
		return exitRuntime, errors.New(login.Data.Message)
	}
	fmt.Println(color.Green.Sprintf("%s joined, listening on %s", self, strings.Join(topics, ", ")))
	fmt.Println(color.Gray.Sprint(errUsage.Error()))

	// 4. Input loop
	lines := make(chan string)
	go func() {
		defer close(lines)
		for stdin.Scan() {
			lines <- stdin.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			s.logout()
			return exitOK, nil
		case err := <-listenErr:
			if err != nil {
				return exitRuntime, err
			}
		case out := <-s.output:
			fmt.Println(out)
		case line, ok := <-lines:
			if !ok {
				s.logout()
				return exitOK, nil
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			cmd, err := parseLine(line, self)
			if err != nil {
				fmt.Println(color.Red.Sprint(err.Error()))
				continue
			}
			if cmd.quit {
				s.logout()
				return exitOK, nil
			}
			reply, err := s.request(cmd.service, cmd.data)
			if err != nil {
				fmt.Println(color.Red.Sprint(err.Error()))
				continue
			}
			fmt.Println(formatReply(reply))
			if cmd.service == domain.ServiceChannel.String() && reply.Data.Status == string(domain.StatusOK) {
				s.subscribe <- cmd.data.Channel
			}
		}
	}
}

func (s *session) logout() {
	if _, err := s.request(domain.ServiceLogout.String(), protocol.RequestData{User: s.self}); err != nil {
		s.log.Warn("Logout failed", "error", err)
	}
}
