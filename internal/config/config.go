// Package config loads kiosksync settings from a YAML file and the
// environment.
//
// Precedence: defaults, then the file, then environment variables. The mode
// switch is derived, not configured: the kiosk runs connected when both a
// backend URL and an API key are present, and simulated otherwise.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables that override the file.
const (
	EnvBackendURL   = "KIOSK_BACKEND_URL"
	EnvBackendKey   = "KIOSK_BACKEND_KEY"
	EnvDB           = "KIOSK_DB"
	EnvKafkaBrokers = "KIOSK_KAFKA_BROKERS"
)

// Config is the full settings tree.
type Config struct {
	Backend   Backend   `yaml:"backend"`
	Storage   Storage   `yaml:"storage"`
	Kafka     Kafka     `yaml:"kafka"`
	Policy    Policy    `yaml:"policy"`
	Simulated Simulated `yaml:"simulated"`
	Server    Server    `yaml:"server"`
}

// Backend is the authoritative order backend.
type Backend struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
	// Timeout bounds one remote attempt on the write path.
	Timeout time.Duration `yaml:"timeout"`
}

// Storage is the local durable store holding the overlay.
type Storage struct {
	Path string `yaml:"path"`
}

// Kafka carries the cross-process broadcast and the change feed. Empty
// brokers disable both.
type Kafka struct {
	Brokers        []string `yaml:"brokers"`
	BroadcastTopic string   `yaml:"broadcast_topic"`
	FeedTopic      string   `yaml:"feed_topic"`
}

// Policy holds business rules that are deliberately configurable.
type Policy struct {
	// Terminal is "reject" or "allow"; see engine.TerminalPolicy.
	Terminal string `yaml:"terminal"`
}

// Simulated configures the in-process backend used without credentials.
type Simulated struct {
	SampleData bool `yaml:"sample_data"`
}

// Server configures the reference backend started by `kiosksync backend`.
type Server struct {
	Addr              string `yaml:"addr"`
	APIKey            string `yaml:"api_key"`
	DenyStatusUpdates bool   `yaml:"deny_status_updates"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Backend: Backend{Timeout: 5 * time.Second},
		Storage: Storage{Path: "kiosksync.db"},
		Kafka: Kafka{
			BroadcastTopic: "kiosk.overlay",
			FeedTopic:      "kiosk.changes",
		},
		Policy:    Policy{Terminal: "reject"},
		Simulated: Simulated{SampleData: true},
		Server:    Server{Addr: "127.0.0.1:8088"},
	}
}

// Load reads path (optional) over the defaults, applies the environment and
// validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := decode(data, &cfg); err != nil {
			return Config{}, err
		}
	}
	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults without touching the environment.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := decode(data, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(cfg); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from environment variables found by lookup.
// Variables that are unset or blank leave the file's value in place.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	get := func(name string) (string, bool) {
		v, ok := lookup(name)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
	if v, ok := get(EnvBackendURL); ok {
		c.Backend.URL = v
	}
	if v, ok := get(EnvBackendKey); ok {
		c.Backend.APIKey = v
	}
	if v, ok := get(EnvDB); ok {
		c.Storage.Path = v
	}
	if v, ok := get(EnvKafkaBrokers); ok {
		c.Kafka.Brokers = splitList(v)
	}
}

// Validate checks field values. It does not require a backend: missing
// credentials select simulated mode.
func (c Config) Validate() error {
	var errs []error
	if c.Backend.URL != "" {
		u, err := url.Parse(c.Backend.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("backend.url must be an http(s) URL, got %q", c.Backend.URL))
		}
	}
	if c.Backend.Timeout < 0 {
		errs = append(errs, fmt.Errorf("backend.timeout must not be negative"))
	}
	if c.Storage.Path == "" {
		errs = append(errs, fmt.Errorf("storage.path is required"))
	}
	switch c.Policy.Terminal {
	case "", "reject", "allow":
	default:
		errs = append(errs, fmt.Errorf("policy.terminal must be reject or allow, got %q", c.Policy.Terminal))
	}
	if len(c.Kafka.Brokers) > 0 && (c.Kafka.BroadcastTopic == "" || c.Kafka.FeedTopic == "") {
		errs = append(errs, fmt.Errorf("kafka topics are required when brokers are set"))
	}
	return errors.Join(errs...)
}

// Connected reports whether backend credentials are configured.
func (c Config) Connected() bool {
	return c.Backend.URL != "" && c.Backend.APIKey != ""
}

// KafkaEnabled reports whether brokers are configured.
func (c Config) KafkaEnabled() bool {
	return len(c.Kafka.Brokers) > 0
}

// Mode names the operating mode for logs and status output.
func (c Config) Mode() string {
	if c.Connected() {
		return "connected"
	}
	return "simulated"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
