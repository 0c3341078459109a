package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tether-protocol/tether-go/pkg/discovery"
	"github.com/tether-protocol/tether-go/pkg/link"
	"github.com/tether-protocol/tether-go/pkg/log"
	"github.com/tether-protocol/tether-go/pkg/netlink"
	"github.com/tether-protocol/tether-go/pkg/supervisor"
)

// LoadError describes a configuration loading failure.
type LoadError struct {
	File    string
	Message string
	Cause   error
}

func (e *LoadError) Error() string {
	msg := e.Message
	if e.File != "" {
		msg = fmt.Sprintf("%s: %s", e.File, msg)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *LoadError) Unwrap() error { return e.Cause }

// Duration is a time.Duration that unmarshals from YAML strings like
// "5s" or "250ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the duration as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// TransportConfig describes how to reach the peer.
type TransportConfig struct {
	// Address is the peer's host:port. When empty, the peer identity
	// is resolved instead (via mDNS when Discover is set, otherwise
	// the identity itself must be a host:port).
	Address string `yaml:"address"`

	// Discover resolves the peer identity via mDNS on every attempt.
	Discover bool `yaml:"discover"`

	// Interface restricts discovery to one network interface.
	Interface string `yaml:"interface"`

	// PSK authenticates the connection during the handshake.
	PSK string `yaml:"psk"`

	// RequestTimeout bounds each request/response exchange.
	RequestTimeout Duration `yaml:"request_timeout"`

	// HandshakeTimeout bounds the hello/ack exchange.
	HandshakeTimeout Duration `yaml:"handshake_timeout"`
}

// BackoffConfig describes retry pacing.
type BackoffConfig struct {
	// Enabled turns retry pacing on. Disabled retries immediately.
	Enabled bool `yaml:"enabled"`

	Initial    Duration `yaml:"initial"`
	Max        Duration `yaml:"max"`
	Multiplier float64  `yaml:"multiplier"`
	Jitter     float64  `yaml:"jitter"`
}

// LogConfig describes event logging.
type LogConfig struct {
	// File is the event log path. Empty disables file logging.
	File string `yaml:"file"`
}

// Config is one supervised peer.
type Config struct {
	// Peer is the identity of the peer to supervise. Required.
	Peer string `yaml:"peer"`

	// Transport describes how to reach the peer.
	Transport TransportConfig `yaml:"transport"`

	// DisconnectTimeout caps link teardown.
	DisconnectTimeout Duration `yaml:"disconnect_timeout"`

	// Backoff paces reconnection attempts.
	Backoff BackoffConfig `yaml:"backoff"`

	// RelayBuffer is the per-subscriber notification buffer capacity.
	RelayBuffer int `yaml:"relay_buffer"`

	// Log configures event logging.
	Log LogConfig `yaml:"log"`
}

// Parse parses a configuration from YAML bytes and validates it.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &LoadError{Message: "failed to parse YAML", Cause: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load loads a configuration from a file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{File: path, Message: "failed to read file", Cause: err}
	}

	cfg, err := Parse(data)
	if err != nil {
		if le, ok := err.(*LoadError); ok {
			le.File = path
			return nil, le
		}
		return nil, &LoadError{File: path, Message: err.Error()}
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Peer == "" {
		return &LoadError{Message: "peer is required"}
	}
	if c.Transport.Address != "" && c.Transport.Discover {
		return &LoadError{Message: "transport.address and transport.discover are mutually exclusive"}
	}
	if c.RelayBuffer < 0 {
		return &LoadError{Message: "relay_buffer must not be negative"}
	}
	if c.DisconnectTimeout < 0 {
		return &LoadError{Message: "disconnect_timeout must not be negative"}
	}
	if b := c.Backoff; b.Enabled {
		if b.Initial < 0 || b.Max < 0 {
			return &LoadError{Message: "backoff durations must not be negative"}
		}
		if b.Multiplier != 0 && b.Multiplier <= 1 {
			return &LoadError{Message: "backoff.multiplier must be greater than 1"}
		}
		if b.Jitter < 0 || b.Jitter > 1 {
			return &LoadError{Message: "backoff.jitter must be between 0 and 1"}
		}
	}
	return nil
}

// Connector builds the netlink connector described by the
// configuration.
func (c *Config) Connector() *netlink.Connector {
	conn := &netlink.Connector{
		RequestTimeout:   c.Transport.RequestTimeout.Std(),
		HandshakeTimeout: c.Transport.HandshakeTimeout.Std(),
	}
	if c.Transport.PSK != "" {
		conn.PSK = []byte(c.Transport.PSK)
	}

	switch {
	case c.Transport.Address != "":
		addr := c.Transport.Address
		conn.Resolver = netlink.ResolverFunc(
			func(_ context.Context, _ link.PeerID) (string, error) {
				return addr, nil
			})
	case c.Transport.Discover:
		conn.Resolver = &discovery.Resolver{
			Browser: discovery.NewMDNSBrowser(discovery.BrowserConfig{
				Interface: c.Transport.Interface,
			}),
		}
	}
	return conn
}

// Build creates a supervisor from the configuration. The returned
// closer releases the event log; call it after the supervisor is
// closed. Extra loggers (for example log.SlogAdapter) receive a copy
// of every event.
func (c *Config) Build(extra ...log.Logger) (*supervisor.Supervisor, func() error, error) {
	loggers := make([]log.Logger, 0, len(extra)+1)
	closer := func() error { return nil }

	if c.Log.File != "" {
		fl, err := log.NewFileLogger(c.Log.File)
		if err != nil {
			return nil, nil, &LoadError{Message: "failed to open event log", Cause: err}
		}
		loggers = append(loggers, fl)
		closer = fl.Close
	}
	loggers = append(loggers, extra...)

	var eventLogger log.Logger
	switch len(loggers) {
	case 0:
		eventLogger = log.NoopLogger{}
	case 1:
		eventLogger = loggers[0]
	default:
		eventLogger = log.NewMultiLogger(loggers...)
	}

	cfg := supervisor.Config{
		Peer:              link.PeerID(c.Peer),
		DisconnectTimeout: c.DisconnectTimeout.Std(),
		RelayBufferSize:   c.RelayBuffer,
		EventLogger:       eventLogger,
	}
	if c.Backoff.Enabled {
		cfg.Backoff = supervisor.NewBackoffWithConfig(supervisor.BackoffConfig{
			Initial:    c.Backoff.Initial.Std(),
			Max:        c.Backoff.Max.Std(),
			Multiplier: c.Backoff.Multiplier,
			Jitter:     c.Backoff.Jitter,
		})
	}

	return supervisor.New(c.Connector(), cfg), closer, nil
}
