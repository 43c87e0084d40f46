package client

import (
	"log/slog"
	"time"

	"github.com/vango-dev/livesync/internal/tracing"
	"github.com/vango-dev/livesync/pkg/conn"
	"github.com/vango-dev/livesync/pkg/metrics"
)

// Config holds configuration for a Session.
type Config struct {
	// URL is the authority's WebSocket endpoint (ws:// or wss://).
	URL string

	// Location is the document URL. Its scheme and host are the trusted
	// origin used for navigation; without them every navigation falls back
	// to a full reload.
	Location string

	// Cookie and UserAgent are sent on the upgrade request and in synthetic
	// navigation headers.
	Cookie    string
	UserAgent string

	// Connection

	// Backoff is the reconnect schedule.
	// Default: 5 attempts from 250ms, doubling.
	Backoff conn.Backoff

	// DialTimeout bounds a single dial.
	// Default: 10 seconds.
	DialTimeout time.Duration

	// ReadTimeout is the maximum time without a frame or pong.
	// Default: 60 seconds.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum time for one write.
	// Default: 10 seconds.
	WriteTimeout time.Duration

	// PingInterval is the time between keepalive pings.
	// Default: 30 seconds.
	PingInterval time.Duration

	// SendQueue is the outbound frame buffer.
	// Default: 64.
	SendQueue int

	// Session loop

	// FrameInterval is the patch batching tick.
	// Default: 16ms.
	FrameInterval time.Duration

	// EventQueue is the size of the session loop's work buffer.
	// Default: 256.
	EventQueue int

	// DriftWarnEvery is the minimum interval between drift warnings.
	// Default: 30 seconds.
	DriftWarnEvery time.Duration

	// Globals are exposed to remotely executed scripts.
	Globals map[string]any

	// Observability

	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Tracer  *tracing.Tracer
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		UserAgent:      "livesync/" + Version,
		Backoff:        conn.DefaultBackoff(),
		DialTimeout:    10 * time.Second,
		ReadTimeout:    60 * time.Second,
		WriteTimeout:   10 * time.Second,
		PingInterval:   30 * time.Second,
		SendQueue:      64,
		FrameInterval:  16 * time.Millisecond,
		EventQueue:     256,
		DriftWarnEvery: 30 * time.Second,
	}
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	if c.Globals != nil {
		clone.Globals = make(map[string]any, len(c.Globals))
		for k, v := range c.Globals {
			clone.Globals[k] = v
		}
	}
	return &clone
}

// WithURL sets the authority endpoint and returns the config for chaining.
func (c *Config) WithURL(u string) *Config {
	c.URL = u
	return c
}

// WithLocation sets the document URL and returns the config for chaining.
func (c *Config) WithLocation(loc string) *Config {
	c.Location = loc
	return c
}

// WithCookie sets the cookie header and returns the config for chaining.
func (c *Config) WithCookie(cookie string) *Config {
	c.Cookie = cookie
	return c
}

// WithBackoff sets the reconnect schedule and returns the config for chaining.
func (c *Config) WithBackoff(b conn.Backoff) *Config {
	c.Backoff = b
	return c
}

// WithLogger sets the logger and returns the config for chaining.
func (c *Config) WithLogger(l *slog.Logger) *Config {
	c.Logger = l
	return c
}

// WithMetrics sets the metrics collectors and returns the config for chaining.
func (c *Config) WithMetrics(m *metrics.Metrics) *Config {
	c.Metrics = m
	return c
}

// WithTracer sets the tracer and returns the config for chaining.
func (c *Config) WithTracer(t *tracing.Tracer) *Config {
	c.Tracer = t
	return c
}

// WithGlobal exposes a value to remote scripts and returns the config for chaining.
func (c *Config) WithGlobal(name string, v any) *Config {
	if c.Globals == nil {
		c.Globals = make(map[string]any)
	}
	c.Globals[name] = v
	return c
}

// fill replaces zero values with defaults.
func (c *Config) fill() {
	d := DefaultConfig()
	if c.UserAgent == "" {
		c.UserAgent = d.UserAgent
	}
	if c.Backoff.Attempts <= 0 {
		c.Backoff = d.Backoff
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = d.DialTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = d.ReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.PingInterval <= 0 {
		c.PingInterval = d.PingInterval
	}
	if c.SendQueue <= 0 {
		c.SendQueue = d.SendQueue
	}
	if c.FrameInterval <= 0 {
		c.FrameInterval = d.FrameInterval
	}
	if c.EventQueue <= 0 {
		c.EventQueue = d.EventQueue
	}
	if c.DriftWarnEvery <= 0 {
		c.DriftWarnEvery = d.DriftWarnEvery
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
