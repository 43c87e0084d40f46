package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vango-dev/livesync/internal/errors"
	"github.com/vango-dev/livesync/pkg/client"
	"github.com/vango-dev/livesync/pkg/conn"
)

const (
	// ConfigFileName is the name of the JSON configuration file.
	ConfigFileName = "livesync.json"

	// YAMLConfigFileName is the name of the YAML configuration file. It is
	// only consulted when no JSON file exists.
	YAMLConfigFileName = "livesync.yaml"

	// DefaultLogLevel is the default slog level.
	DefaultLogLevel = "info"
)

// Config represents a livesync.json or livesync.yaml file.
// Durations are strings in time.ParseDuration syntax ("250ms", "30s").
type Config struct {
	// Authority describes the endpoint and the page being mirrored.
	Authority AuthorityConfig `json:"authority" yaml:"authority"`

	// Connection contains transport timeouts and queue sizes.
	Connection ConnectionConfig `json:"connection,omitempty" yaml:"connection,omitempty"`

	// Reconnect contains the backoff policy.
	Reconnect ReconnectConfig `json:"reconnect,omitempty" yaml:"reconnect,omitempty"`

	// Render contains patch scheduling settings.
	Render RenderConfig `json:"render,omitempty" yaml:"render,omitempty"`

	// Drift contains drift warning settings.
	Drift DriftConfig `json:"drift,omitempty" yaml:"drift,omitempty"`

	// Metrics contains the Prometheus endpoint settings.
	Metrics MetricsConfig `json:"metrics,omitempty" yaml:"metrics,omitempty"`

	// Globals are values visible to remotely executed code.
	Globals map[string]any `json:"globals,omitempty" yaml:"globals,omitempty"`

	// LogLevel is one of debug, info, warn or error.
	LogLevel string `json:"logLevel,omitempty" yaml:"logLevel,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// AuthorityConfig describes the authority endpoint.
type AuthorityConfig struct {
	// URL is the ws:// or wss:// endpoint.
	URL string `json:"url" yaml:"url"`

	// Location is the URL of the displayed page.
	Location string `json:"location,omitempty" yaml:"location,omitempty"`

	// Cookie is sent on the upgrade request and with navigation requests.
	Cookie string `json:"cookie,omitempty" yaml:"cookie,omitempty"`

	// UserAgent overrides the default user agent.
	UserAgent string `json:"userAgent,omitempty" yaml:"userAgent,omitempty"`
}

// ConnectionConfig contains transport settings.
type ConnectionConfig struct {
	DialTimeout  string `json:"dialTimeout,omitempty" yaml:"dialTimeout,omitempty"`
	ReadTimeout  string `json:"readTimeout,omitempty" yaml:"readTimeout,omitempty"`
	WriteTimeout string `json:"writeTimeout,omitempty" yaml:"writeTimeout,omitempty"`
	PingInterval string `json:"pingInterval,omitempty" yaml:"pingInterval,omitempty"`
	SendQueue    int    `json:"sendQueue,omitempty" yaml:"sendQueue,omitempty"`
}

// ReconnectConfig contains the reconnect backoff policy.
type ReconnectConfig struct {
	// Initial is the delay before the first attempt.
	Initial string `json:"initial,omitempty" yaml:"initial,omitempty"`

	// Factor multiplies the delay after each attempt.
	Factor float64 `json:"factor,omitempty" yaml:"factor,omitempty"`

	// Attempts is the maximum number of attempts.
	Attempts int `json:"attempts,omitempty" yaml:"attempts,omitempty"`
}

// RenderConfig contains patch scheduling settings.
type RenderConfig struct {
	FrameInterval string `json:"frameInterval,omitempty" yaml:"frameInterval,omitempty"`
	EventQueue    int    `json:"eventQueue,omitempty" yaml:"eventQueue,omitempty"`
}

// DriftConfig contains drift settings.
type DriftConfig struct {
	// WarnEvery is the minimum interval between user-visible warnings.
	WarnEvery string `json:"warnEvery,omitempty" yaml:"warnEvery,omitempty"`
}

// MetricsConfig contains the metrics endpoint settings.
type MetricsConfig struct {
	// Addr is the listen address for /metrics; empty disables it.
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`

	// Namespace prefixes every metric name.
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	d := client.DefaultConfig()
	return &Config{
		Authority: AuthorityConfig{
			UserAgent: d.UserAgent,
		},
		Connection: ConnectionConfig{
			DialTimeout:  d.DialTimeout.String(),
			ReadTimeout:  d.ReadTimeout.String(),
			WriteTimeout: d.WriteTimeout.String(),
			PingInterval: d.PingInterval.String(),
			SendQueue:    d.SendQueue,
		},
		Reconnect: ReconnectConfig{
			Initial:  d.Backoff.Initial.String(),
			Factor:   d.Backoff.Factor,
			Attempts: d.Backoff.Attempts,
		},
		Render: RenderConfig{
			FrameInterval: d.FrameInterval.String(),
			EventQueue:    d.EventQueue,
		},
		Drift: DriftConfig{
			WarnEvery: d.DriftWarnEvery.String(),
		},
		Metrics: MetricsConfig{
			Namespace: "livesync",
		},
		LogLevel: DefaultLogLevel,
	}
}

// Load reads configuration from dir. It looks for livesync.json first and
// falls back to livesync.yaml.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, ConfigFileName)
	if _, err := os.Stat(path); err != nil {
		yamlPath := filepath.Join(dir, YAMLConfigFileName)
		if _, yerr := os.Stat(yamlPath); yerr == nil {
			path = yamlPath
		}
	}
	return LoadFile(path)
}

// LoadFile reads configuration from path. Files ending in .yaml or .yml
// are parsed as YAML, everything else as JSON.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.CodeConfig).
				WithDetail("No " + filepath.Base(path) + " found in " + filepath.Dir(path)).
				WithSuggestion("Create " + ConfigFileName + " or pass the authority URL with --url")
		}
		return nil, errors.New(errors.CodeConfig).Wrap(err)
	}

	cfg := New()
	if isYAML(path) {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.New(errors.CodeConfig).
				WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error()).
				WithSuggestion("Check that the file is valid YAML")
		}
	} else if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New(errors.CodeConfig).
			WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error()).
			WithSuggestion("Check that the file is valid JSON")
	}

	cfg.configPath = path
	cfg.applyDefaults()
	return cfg, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.New(errors.CodeConfig).WithDetail("no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to path, in YAML or JSON by extension.
func (c *Config) SaveTo(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return errors.New(errors.CodeConfig).Wrap(err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New(errors.CodeConfig).Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	d := New()
	if c.Authority.UserAgent == "" {
		c.Authority.UserAgent = d.Authority.UserAgent
	}

	// Connection
	if c.Connection.DialTimeout == "" {
		c.Connection.DialTimeout = d.Connection.DialTimeout
	}
	if c.Connection.ReadTimeout == "" {
		c.Connection.ReadTimeout = d.Connection.ReadTimeout
	}
	if c.Connection.WriteTimeout == "" {
		c.Connection.WriteTimeout = d.Connection.WriteTimeout
	}
	if c.Connection.PingInterval == "" {
		c.Connection.PingInterval = d.Connection.PingInterval
	}
	if c.Connection.SendQueue == 0 {
		c.Connection.SendQueue = d.Connection.SendQueue
	}

	// Reconnect
	if c.Reconnect.Initial == "" {
		c.Reconnect.Initial = d.Reconnect.Initial
	}
	if c.Reconnect.Factor == 0 {
		c.Reconnect.Factor = d.Reconnect.Factor
	}
	if c.Reconnect.Attempts == 0 {
		c.Reconnect.Attempts = d.Reconnect.Attempts
	}

	// Render
	if c.Render.FrameInterval == "" {
		c.Render.FrameInterval = d.Render.FrameInterval
	}
	if c.Render.EventQueue == 0 {
		c.Render.EventQueue = d.Render.EventQueue
	}

	if c.Drift.WarnEvery == "" {
		c.Drift.WarnEvery = d.Drift.WarnEvery
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = d.Metrics.Namespace
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
}

// Validate checks that the configuration can build a session.
func (c *Config) Validate() error {
	if c.Authority.URL == "" {
		return errors.New(errors.CodeConfig).
			WithDetail("authority.url is required").
			WithSuggestion("Set authority.url to the ws:// endpoint of the authority")
	}
	if !strings.HasPrefix(c.Authority.URL, "ws://") && !strings.HasPrefix(c.Authority.URL, "wss://") {
		return errors.New(errors.CodeConfig).
			WithDetailf("authority.url %q must use ws:// or wss://", c.Authority.URL)
	}
	if c.Reconnect.Factor < 1 {
		return errors.New(errors.CodeConfig).
			WithDetailf("reconnect.factor must be at least 1, got %v", c.Reconnect.Factor)
	}
	if c.Reconnect.Attempts < 0 {
		return errors.New(errors.CodeConfig).
			WithDetailf("reconnect.attempts must not be negative, got %d", c.Reconnect.Attempts)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	_, err := c.durations()
	return err
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, errors.New(errors.CodeConfig).
			WithDetailf("invalid logLevel %q", c.LogLevel).
			With("field", "logLevel")
	}
	return lvl, nil
}

type durations struct {
	dial, read, write, ping, initial, frame, warn time.Duration
}

func (c *Config) durations() (durations, error) {
	var d durations
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"connection.dialTimeout", c.Connection.DialTimeout, &d.dial},
		{"connection.readTimeout", c.Connection.ReadTimeout, &d.read},
		{"connection.writeTimeout", c.Connection.WriteTimeout, &d.write},
		{"connection.pingInterval", c.Connection.PingInterval, &d.ping},
		{"reconnect.initial", c.Reconnect.Initial, &d.initial},
		{"render.frameInterval", c.Render.FrameInterval, &d.frame},
		{"drift.warnEvery", c.Drift.WarnEvery, &d.warn},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		v, err := time.ParseDuration(f.raw)
		if err != nil || v < 0 {
			return d, errors.New(errors.CodeConfig).
				WithDetailf("%s: invalid duration %q", f.name, f.raw).
				With("field", f.name)
		}
		*f.dst = v
	}
	return d, nil
}

// Client validates the file and converts it to a session configuration.
// logger may be nil.
func (c *Config) Client(logger *slog.Logger) (*client.Config, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	d, err := c.durations()
	if err != nil {
		return nil, err
	}

	cfg := client.DefaultConfig().
		WithURL(c.Authority.URL).
		WithLocation(c.Authority.Location).
		WithCookie(c.Authority.Cookie).
		WithBackoff(conn.Backoff{
			Initial:  d.initial,
			Factor:   c.Reconnect.Factor,
			Attempts: c.Reconnect.Attempts,
		})
	if c.Authority.UserAgent != "" {
		cfg.UserAgent = c.Authority.UserAgent
	}
	cfg.DialTimeout = d.dial
	cfg.ReadTimeout = d.read
	cfg.WriteTimeout = d.write
	cfg.PingInterval = d.ping
	cfg.SendQueue = c.Connection.SendQueue
	cfg.FrameInterval = d.frame
	cfg.EventQueue = c.Render.EventQueue
	cfg.DriftWarnEvery = d.warn
	for k, v := range c.Globals {
		cfg = cfg.WithGlobal(k, v)
	}
	if logger != nil {
		cfg = cfg.WithLogger(logger)
	}
	return cfg, nil
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	for _, name := range []string{ConfigFileName, YAMLConfigFileName} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// FindProjectRoot walks up directories to find the directory holding a
// livesync config file.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New(errors.CodeConfig).
				WithDetail("No " + ConfigFileName + " found in " + startDir + " or any parent directory")
		}
		dir = parent
	}
}
