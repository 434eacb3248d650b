package shared

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Environment variables that override the config file.
const (
	EnvAPIKey  = "DLX_API_KEY"
	EnvBaseURL = "DLX_BASE_URL"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Stream   StreamConfig   `toml:"stream"`
	Journal  JournalConfig  `toml:"journal"`
	UI       UIConfig       `toml:"ui"`
	Database DatabaseConfig `toml:"database"`
	Demo     DemoConfig     `toml:"demo"`
}

// ServerConfig points the client at the media server.
type ServerConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
}

// StreamConfig controls the live event channel.
type StreamConfig struct {
	Transport      string   `toml:"transport"` // "sse" or "websocket"
	Reconnect      bool     `toml:"reconnect"`
	BackoffInitial Duration `toml:"backoff_initial"`
	BackoffMax     Duration `toml:"backoff_max"`
}

// JournalConfig controls the local event journal.
type JournalConfig struct {
	Enabled bool `toml:"enabled"`
	Retain  int  `toml:"retain"`
}

// UIConfig holds the initial table state.
type UIConfig struct {
	SortKey    string `toml:"sort_key"`
	SortDir    string `toml:"sort_dir"`
	FeedbackMS int    `toml:"feedback_ms"`
	LogFile    string `toml:"log_file"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// DemoConfig contains settings for the bundled demo server.
type DemoConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
	Seed int    `toml:"seed"`
}

// Duration is a [time.Duration] written as a string such as "1s" or "250ms" in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// FeedbackDuration is how long copy and action feedback stays visible.
func (c UIConfig) FeedbackDuration() time.Duration {
	if c.FeedbackMS <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.FeedbackMS) * time.Millisecond
}

// Addr is the listen address of the demo server.
func (c DemoConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// WriteConfigFile encodes c as TOML, replacing any file at path.
func WriteConfigFile(path string, c *Config) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ApplyEnv overrides server settings from the environment. getenv is usually [os.Getenv].
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvAPIKey); v != "" {
		c.Server.APIKey = v
	}
	if v := getenv(EnvBaseURL); v != "" {
		c.Server.BaseURL = v
	}
}

// Validate checks the settings every command relies on.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Server.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: server.base_url %q is not an absolute URL", ErrInvalidConfig, c.Server.BaseURL)
	}

	switch strings.ToLower(c.Stream.Transport) {
	case "sse", "websocket":
	default:
		return fmt.Errorf("%w: stream.transport must be sse or websocket, got %q", ErrInvalidConfig, c.Stream.Transport)
	}

	if c.Stream.BackoffInitial.Duration <= 0 || c.Stream.BackoffMax.Duration < c.Stream.BackoffInitial.Duration {
		return fmt.Errorf("%w: stream backoff must satisfy 0 < backoff_initial <= backoff_max", ErrInvalidConfig)
	}

	return nil
}
