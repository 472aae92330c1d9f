package internal

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
)

// Config is the server configuration, read from the environment.
type Config struct {
	RepAddress           string        `env:"REP_ADDRESS,default=tcp://*:5555"`
	PubAddress           string        `env:"PUB_ADDRESS,default=tcp://localhost:5557"`
	BroadcastDriver      string        `env:"BROADCAST_DRIVER,default=zmq"`
	NatsURL              string        `env:"NATS_URL,default=nats://localhost:4222"`
	NatsSubjectPrefix    string        `env:"NATS_SUBJECT_PREFIX,default=chat"`
	StoreDriver          string        `env:"STORE_DRIVER,default=badger"`
	StorePath            string        `env:"STORE_PATH,default=data"`
	DefaultChannels      string        `env:"DEFAULT_CHANNELS,default=general"`
	RejectDuplicateLogin bool          `env:"REJECT_DUPLICATE_LOGIN,default=false"`
	BroadcastBufferSize  int           `env:"BROADCAST_BUFFER_SIZE,default=1024"`
	BroadcastTimeout     time.Duration `env:"BROADCAST_TIMEOUT,default=50ms"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,default=1s"`
	PersistRetries       int           `env:"PERSIST_RETRIES,default=3"`
	PersistBackoff       time.Duration `env:"PERSIST_BACKOFF,default=50ms"`
	PollInterval         time.Duration `env:"POLL_INTERVAL,default=250ms"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,default=5s"`
	ReportInterval       time.Duration `env:"REPORT_INTERVAL,default=1m"`
	TimelineSize         int           `env:"TIMELINE_SIZE,default=50"`
	StatusPort           int           `env:"STATUS_PORT,default=8080"`
	LogLevel             string        `env:"LOG_LEVEL,default=INFO"`
}

// ChannelList splits DEFAULT_CHANNELS, the first entry being the channel
// where joins and leaves are announced.
func (c Config) ChannelList() []string {
	names := lo.Map(strings.Split(c.DefaultChannels, ","), func(name string, _ int) string {
		return strings.TrimSpace(name)
	})
	return lo.Uniq(lo.Compact(names))
}

func (c Config) Validate() error {
	if c.BroadcastBufferSize < 1 {
		return fmt.Errorf("BROADCAST_BUFFER_SIZE must be positive, got %d", c.BroadcastBufferSize)
	}
	if c.PersistRetries < 1 {
		return fmt.Errorf("PERSIST_RETRIES must be at least 1, got %d", c.PersistRetries)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive, got %s", c.PollInterval)
	}
	if c.MetricInterval <= 0 || c.ReportInterval <= 0 {
		return fmt.Errorf("METRIC_INTERVAL and REPORT_INTERVAL must be positive")
	}
	if len(c.ChannelList()) == 0 {
		return fmt.Errorf("DEFAULT_CHANNELS must name at least one channel")
	}
	return nil
}

// RelayConfig configures the standalone fan-out relay.
type RelayConfig struct {
	XSubAddress     string        `env:"XSUB_ADDRESS,default=tcp://*:5557"`
	XPubAddress     string        `env:"XPUB_ADDRESS,default=tcp://*:5558"`
	RestartInterval time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	LogLevel        string        `env:"LOG_LEVEL,default=INFO"`
}

// ClientConfig configures the terminal client.
type ClientConfig struct {
	ServerAddress string        `env:"SERVER_ADDRESS,default=tcp://localhost:5555"`
	SubAddress    string        `env:"SUB_ADDRESS,default=tcp://localhost:5558"`
	ReplyTimeout  time.Duration `env:"REPLY_TIMEOUT,default=5s"`
	LogLevel      string        `env:"LOG_LEVEL,default=WARN"`
}

// BotConfig configures the scripted demo bots.
type BotConfig struct {
	ServerAddress string        `env:"SERVER_ADDRESS,default=tcp://localhost:5555"`
	ReplyTimeout  time.Duration `env:"REPLY_TIMEOUT,default=5s"`
	StepDelay     time.Duration `env:"STEP_DELAY,default=500ms"`
	Channel       string        `env:"BOT_CHANNEL,default=general"`
	LogLevel      string        `env:"LOG_LEVEL,default=INFO"`
}
