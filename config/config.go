// Package config provides YAML-based configuration for CaptureKit.
//
// A single file describes the backend endpoints, capture timing knobs,
// transport readiness timeouts, and logging. Zero values defer to the
// package defaults, so a minimal config only names the endpoints:
//
//	endpoints:
//	  apiBaseUrl: https://api.example.com
//	  lowLatencyBaseUrl: https://wt.example.com
//	  fallbackBaseUrl: wss://ws.example.com
package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AltairaLabs/CaptureKit/backend"
	"github.com/AltairaLabs/CaptureKit/events"
	"github.com/AltairaLabs/CaptureKit/logger"
	"github.com/AltairaLabs/CaptureKit/media"
	prommetrics "github.com/AltairaLabs/CaptureKit/metrics/prometheus"
	"github.com/AltairaLabs/CaptureKit/session"
	"github.com/AltairaLabs/CaptureKit/transport"
)

// defaultMetricsAddr is the conventional client_golang listen address.
const defaultMetricsAddr = ":2112"

// Config is the root configuration document.
type Config struct {
	Endpoints EndpointsConfig `yaml:"endpoints"`
	Capture   CaptureConfig   `yaml:"capture,omitempty"`
	Transport TransportConfig `yaml:"transport,omitempty"`
	Logging   *LoggingConfig  `yaml:"logging,omitempty"`
	Metrics   *MetricsConfig  `yaml:"metrics,omitempty"`
	Events    *EventsConfig   `yaml:"events,omitempty"`
}

// EndpointsConfig names the backend surfaces a capture session talks to.
type EndpointsConfig struct {
	// APIBaseURL is the REST collaborator base URL.
	APIBaseURL string `yaml:"apiBaseUrl"`

	// LowLatencyBaseURL is the WebTransport endpoint base URL.
	LowLatencyBaseURL string `yaml:"lowLatencyBaseUrl"`

	// FallbackBaseURL is the WebSocket endpoint base URL.
	FallbackBaseURL string `yaml:"fallbackBaseUrl"`

	// AuthToken is the bearer token attached to REST requests.
	AuthToken string `yaml:"authToken,omitempty"`
}

// CaptureConfig holds session timing and behavior knobs.
type CaptureConfig struct {
	// ChunkInterval is the encoder flush interval.
	ChunkInterval time.Duration `yaml:"chunkInterval,omitempty"`

	// SmartStop trims the stop-control dead time from recordings.
	// Unset means enabled.
	SmartStop *bool `yaml:"smartStop,omitempty"`

	// MarkerDebounce is the shared auto-marker suppression window.
	MarkerDebounce time.Duration `yaml:"markerDebounce,omitempty"`

	// GracePeriod is the post-flush wait before completion.
	GracePeriod time.Duration `yaml:"gracePeriod,omitempty"`

	// AckTimeout bounds the completion acknowledgment wait.
	AckTimeout time.Duration `yaml:"ackTimeout,omitempty"`

	// PingInterval paces channel keepalives. Negative disables them.
	PingInterval time.Duration `yaml:"pingInterval,omitempty"`

	// Overlay enables the secondary overlay stream at session start.
	Overlay bool `yaml:"overlay,omitempty"`
}

// TransportConfig holds channel establishment knobs.
type TransportConfig struct {
	// LowLatencyReadyTimeout bounds the low-latency handshake race.
	LowLatencyReadyTimeout time.Duration `yaml:"lowLatencyReadyTimeout,omitempty"`

	// FallbackReadyTimeout bounds the fallback handshake.
	FallbackReadyTimeout time.Duration `yaml:"fallbackReadyTimeout,omitempty"`

	// WriteWait is the per-frame write deadline.
	WriteWait time.Duration `yaml:"writeWait,omitempty"`

	// MaxMessageSize is the inbound read limit in bytes.
	MaxMessageSize int64 `yaml:"maxMessageSize,omitempty"`
}

// LoggingConfig mirrors logger.LoggingConfigSpec in YAML form.
type LoggingConfig struct {
	DefaultLevel string                `yaml:"defaultLevel,omitempty"`
	Format       string                `yaml:"format,omitempty"`
	CommonFields map[string]string     `yaml:"commonFields,omitempty"`
	Modules      []ModuleLoggingConfig `yaml:"modules,omitempty"`
}

// ModuleLoggingConfig sets the level for one module subtree.
type ModuleLoggingConfig struct {
	Name  string `yaml:"name"`
	Level string `yaml:"level"`
}

// MetricsConfig enables the Prometheus exporter.
type MetricsConfig struct {
	// Enabled turns the exporter on.
	Enabled bool `yaml:"enabled,omitempty"`

	// Addr is the listen address for the /metrics endpoint.
	Addr string `yaml:"addr,omitempty"`
}

// EventsConfig enables persistent event logging.
type EventsConfig struct {
	// Dir is the directory per-session event logs are written to.
	Dir string `yaml:"dir"`
}

// Load reads, parses, defaults, and validates a config file.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses a config document from bytes, applies defaults, and
// validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Capture.ChunkInterval == 0 {
		c.Capture.ChunkInterval = media.DefaultChunkInterval
	}
	if c.Capture.MarkerDebounce == 0 {
		c.Capture.MarkerDebounce = session.DefaultMarkerDebounce
	}
	if c.Capture.GracePeriod == 0 {
		c.Capture.GracePeriod = session.DefaultGracePeriod
	}
	if c.Capture.AckTimeout == 0 {
		c.Capture.AckTimeout = session.DefaultAckTimeout
	}
	if c.Capture.PingInterval == 0 {
		c.Capture.PingInterval = session.DefaultPingInterval
	}
	if c.Transport.LowLatencyReadyTimeout == 0 {
		c.Transport.LowLatencyReadyTimeout = transport.DefaultLowLatencyReadyTimeout
	}
	if c.Transport.FallbackReadyTimeout == 0 {
		c.Transport.FallbackReadyTimeout = transport.DefaultFallbackReadyTimeout
	}
	if c.Transport.WriteWait == 0 {
		c.Transport.WriteWait = transport.DefaultWriteWait
	}
	if c.Transport.MaxMessageSize == 0 {
		c.Transport.MaxMessageSize = transport.DefaultMaxMessageSize
	}
	if c.Metrics != nil && c.Metrics.Addr == "" {
		c.Metrics.Addr = defaultMetricsAddr
	}
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.Endpoints.APIBaseURL == "" {
		return fmt.Errorf("endpoints.apiBaseUrl is required")
	}
	if c.Endpoints.LowLatencyBaseURL == "" && c.Endpoints.FallbackBaseURL == "" {
		return fmt.Errorf("at least one of endpoints.lowLatencyBaseUrl or endpoints.fallbackBaseUrl is required")
	}
	for name, raw := range map[string]string{
		"endpoints.apiBaseUrl":        c.Endpoints.APIBaseURL,
		"endpoints.lowLatencyBaseUrl": c.Endpoints.LowLatencyBaseURL,
		"endpoints.fallbackBaseUrl":   c.Endpoints.FallbackBaseURL,
	} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s is not a valid URL: %q", name, raw)
		}
	}

	for name, d := range map[string]time.Duration{
		"capture.chunkInterval":            c.Capture.ChunkInterval,
		"capture.markerDebounce":           c.Capture.MarkerDebounce,
		"capture.gracePeriod":              c.Capture.GracePeriod,
		"capture.ackTimeout":               c.Capture.AckTimeout,
		"transport.lowLatencyReadyTimeout": c.Transport.LowLatencyReadyTimeout,
		"transport.fallbackReadyTimeout":   c.Transport.FallbackReadyTimeout,
		"transport.writeWait":              c.Transport.WriteWait,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}

	if c.Events != nil && c.Events.Dir == "" {
		return fmt.Errorf("events.dir is required when the events section is present")
	}

	if c.Logging != nil && c.Logging.Format != "" &&
		c.Logging.Format != logger.FormatJSON && c.Logging.Format != logger.FormatText {
		return fmt.Errorf("logging.format must be %q or %q, got %q",
			logger.FormatJSON, logger.FormatText, c.Logging.Format)
	}
	return nil
}

// SmartStopEnabled reports whether Smart-Stop trimming is on.
func (c *Config) SmartStopEnabled() bool {
	return c.Capture.SmartStop == nil || *c.Capture.SmartStop
}

// TransportConfigFor builds the channel selector configuration.
func (c *Config) TransportConfigFor() transport.Config {
	return transport.Config{
		LowLatencyBaseURL:      c.Endpoints.LowLatencyBaseURL,
		FallbackBaseURL:        c.Endpoints.FallbackBaseURL,
		LowLatencyReadyTimeout: c.Transport.LowLatencyReadyTimeout,
		FallbackReadyTimeout:   c.Transport.FallbackReadyTimeout,
		WriteWait:              c.Transport.WriteWait,
		MaxMessageSize:         c.Transport.MaxMessageSize,
	}
}

// BackendConfig builds the REST client configuration.
func (c *Config) BackendConfig() backend.Config {
	return backend.Config{
		BaseURL:   c.Endpoints.APIBaseURL,
		AuthToken: c.Endpoints.AuthToken,
	}
}

// ApplySession copies the capture timing knobs onto a session config.
// Collaborators (source, backend, selector) stay untouched.
func (c *Config) ApplySession(sc *session.Config) {
	sc.ChunkInterval = c.Capture.ChunkInterval
	sc.MarkerDebounce = c.Capture.MarkerDebounce
	sc.GracePeriod = c.Capture.GracePeriod
	sc.AckTimeout = c.Capture.AckTimeout
	sc.PingInterval = c.Capture.PingInterval
	sc.DisableSmartStop = !c.SmartStopEnabled()
}

// ConfigureLogging applies the logging section to the global logger.
// A nil logging section leaves the logger untouched.
func (c *Config) ConfigureLogging() error {
	if c.Logging == nil {
		return nil
	}
	spec := &logger.LoggingConfigSpec{
		DefaultLevel: c.Logging.DefaultLevel,
		Format:       c.Logging.Format,
		CommonFields: c.Logging.CommonFields,
	}
	for _, m := range c.Logging.Modules {
		spec.Modules = append(spec.Modules, logger.ModuleLoggingSpec{
			Name:  m.Name,
			Level: m.Level,
		})
	}
	return logger.Configure(spec)
}

// StartMetrics starts a Prometheus exporter and subscribes a metrics
// listener to the bus. It returns nil when the metrics section is
// absent or disabled. The caller owns shutdown of the returned exporter.
func (c *Config) StartMetrics(bus *events.EventBus) (*prommetrics.Exporter, error) {
	if c.Metrics == nil || !c.Metrics.Enabled {
		return nil, nil
	}
	exporter := prommetrics.NewExporter(c.Metrics.Addr)
	if err := exporter.Start(); err != nil {
		return nil, fmt.Errorf("failed to start metrics exporter: %w", err)
	}
	if bus != nil {
		bus.SubscribeAll(prommetrics.NewMetricsListener().Listener())
	}
	return exporter, nil
}

// StartEventLog opens the JSONL event store and subscribes it to the
// bus. It returns nil when the events section is absent. The caller
// owns Close on the returned store.
func (c *Config) StartEventLog(bus *events.EventBus) (*events.FileEventStore, error) {
	if c.Events == nil {
		return nil, nil
	}
	store, err := events.NewFileEventStore(c.Events.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open event store: %w", err)
	}
	if bus != nil {
		bus.SubscribeAll(store.Subscriber())
	}
	return store, nil
}
