package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/MimeLyc/yt-summary/internal/failure"
	"github.com/MimeLyc/yt-summary/internal/orchestrator"
	"github.com/MimeLyc/yt-summary/internal/progress"
	"github.com/MimeLyc/yt-summary/internal/transport"
	"github.com/MimeLyc/yt-summary/pkg/icron"
	"github.com/MimeLyc/yt-summary/pkg/log"
)

// Config holds all client configuration.
// Values come from environment variables (optionally loaded from .env files),
// then an optional YAML file, then Options.
//
// Environment Variables:
// Backend:
// - SUMMARY_API_URL: remote backend address (required)
// - SUMMARY_LOCAL_URL: fixed endpoint used on local-development hosts (default: http://localhost:8000)
// - SUMMARY_LOCAL_HOSTS: comma separated local-development hostnames (default: localhost,127.0.0.1,::1)
// - SUMMARY_TRANSPORT: auto, stream or blocking (default: auto)
// - SUMMARY_BLOCKING_ROUTE: summarize or job (default: summarize)
// - REQUEST_TIMEOUT: blocking request timeout (default: 300s)
// - STREAM_IDLE_TIMEOUT: fail a silent stream after this long, 0 disables (default: 0)
//
// Client environment:
// - CLIENT_CONTEXT: browser or native (default: native)
// - PAGE_SCHEME: origin scheme of the embedding page (optional)
// - PAGE_HOSTNAME: hostname of the embedding page (optional)
// - CLIENT_NO_STREAMING: runtime cannot open WebSockets (default: false)
//
// Progress simulation:
// - PROGRESS_TICK_INTERVAL (default: 1s)
// - PROGRESS_START_PERCENT (default: 10)
// - PROGRESS_LOW_WATERMARK (default: 0)
// - PROGRESS_HIGH_WATERMARK (default: 90)
// - PROGRESS_INCREMENT (default: 3)
//
// Local server:
// - HTTP_ADDR (default: :8080)
// - UI_STATIC_DIR (default: ./web)
// - UI_ENABLED (default: false)
// - HEALTH_CHECK_CRON (default: @every 1m)
//
// Misc:
// - LOG_LEVEL (default: info)
// - SUMMARY_CONFIG_FILE: YAML overlay (optional)
type Config struct {
	Backend  BackendConfig   `json:"backend"`
	Client   ClientConfig    `json:"client"`
	Progress progress.Config `json:"progress"`
	HTTP     HTTPConfig      `json:"http"`
	Probe    ProbeConfig     `json:"probe"`
	Log      LogConfig       `json:"log"`

	// ExtraRules extend the failure classifier table.
	ExtraRules []failure.Rule `json:"extra_rules,omitempty"`
}

type BackendConfig struct {
	APIURL            string        `json:"api_url"`
	LocalURL          string        `json:"local_url"`
	LocalHosts        []string      `json:"local_hosts"`
	Transport         string        `json:"transport"`
	BlockingRoute     string        `json:"blocking_route"`
	RequestTimeout    time.Duration `json:"request_timeout"`
	StreamIdleTimeout time.Duration `json:"stream_idle_timeout"`
}

type ClientConfig struct {
	Context     string `json:"context"`
	PageScheme  string `json:"page_scheme"`
	Hostname    string `json:"hostname"`
	NoStreaming bool   `json:"no_streaming"`
}

type HTTPConfig struct {
	Addr        string `json:"addr"`
	UIStaticDir string `json:"ui_static_dir"`
	UIEnabled   bool   `json:"ui_enabled"`
}

type ProbeConfig struct {
	CronExpr string `json:"cron_expr"`
}

type LogConfig struct {
	Level string `json:"level"`
}

// Option is a function type for configuring Config
type Option func(*Config)

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	loadEnvFile()

	config := &Config{
		Backend: BackendConfig{
			APIURL:            getEnvString("SUMMARY_API_URL", ""),
			LocalURL:          getEnvString("SUMMARY_LOCAL_URL", "http://localhost:8000"),
			LocalHosts:        getEnvList("SUMMARY_LOCAL_HOSTS", []string{"localhost", "127.0.0.1", "::1"}),
			Transport:         getEnvString("SUMMARY_TRANSPORT", string(transport.ModeAuto)),
			BlockingRoute:     getEnvString("SUMMARY_BLOCKING_ROUTE", string(orchestrator.RouteSummarize)),
			RequestTimeout:    getEnvDuration("REQUEST_TIMEOUT", 300*time.Second),
			StreamIdleTimeout: getEnvDuration("STREAM_IDLE_TIMEOUT", 0),
		},
		Client: ClientConfig{
			Context:     getEnvString("CLIENT_CONTEXT", string(transport.ContextNative)),
			PageScheme:  getEnvString("PAGE_SCHEME", ""),
			Hostname:    getEnvString("PAGE_HOSTNAME", ""),
			NoStreaming: getEnvBool("CLIENT_NO_STREAMING", false),
		},
		Progress: progress.Config{
			TickInterval:  getEnvDuration("PROGRESS_TICK_INTERVAL", time.Second),
			StartPercent:  getEnvInt("PROGRESS_START_PERCENT", 10),
			LowWatermark:  getEnvInt("PROGRESS_LOW_WATERMARK", 0),
			HighWatermark: getEnvInt("PROGRESS_HIGH_WATERMARK", 90),
			Increment:     getEnvInt("PROGRESS_INCREMENT", 3),
			Phases:        progress.DefaultPhases,
		},
		HTTP: HTTPConfig{
			Addr:        getEnvString("HTTP_ADDR", ":8080"),
			UIStaticDir: getEnvString("UI_STATIC_DIR", "./web"),
			UIEnabled:   getEnvBool("UI_ENABLED", false),
		},
		Probe: ProbeConfig{
			CronExpr: getEnvString("HEALTH_CHECK_CRON", "@every 1m"),
		},
		Log: LogConfig{
			Level: getEnvString("LOG_LEVEL", "info"),
		},
	}

	if path := getEnvString("SUMMARY_CONFIG_FILE", ""); path != "" {
		settings, err := LoadFileSettings(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		WithFileSettings(settings)(config)
	}

	// Apply custom options
	for _, opt := range opts {
		opt(config)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	log.Debug("Config: %+v", *config)
	return config, nil
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	if strings.TrimSpace(c.Backend.APIURL) == "" {
		return fmt.Errorf("SUMMARY_API_URL is required")
	}
	switch transport.Mode(c.Backend.Transport) {
	case transport.ModeAuto, transport.ModeStream, transport.ModeBlocking:
	default:
		return fmt.Errorf("SUMMARY_TRANSPORT must be auto, stream or blocking, got %q", c.Backend.Transport)
	}
	switch orchestrator.BlockingRoute(c.Backend.BlockingRoute) {
	case orchestrator.RouteSummarize, orchestrator.RouteJob:
	default:
		return fmt.Errorf("SUMMARY_BLOCKING_ROUTE must be summarize or job, got %q", c.Backend.BlockingRoute)
	}
	switch transport.ExecContext(c.Client.Context) {
	case transport.ContextBrowser, transport.ContextNative:
	default:
		return fmt.Errorf("CLIENT_CONTEXT must be browser or native, got %q", c.Client.Context)
	}
	if c.Backend.RequestTimeout < 0 || c.Backend.StreamIdleTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if err := c.Progress.Validate(); err != nil {
		return fmt.Errorf("invalid progress settings: %w", err)
	}
	if err := icron.Validate(c.Probe.CronExpr); err != nil {
		return fmt.Errorf("invalid HEALTH_CHECK_CRON: %w", err)
	}
	return nil
}

// SelectorConfig is the transport selector input derived from c.
func (c *Config) SelectorConfig() transport.SelectorConfig {
	return transport.SelectorConfig{
		DefaultURL: c.Backend.APIURL,
		LocalURL:   c.Backend.LocalURL,
		LocalHosts: c.Backend.LocalHosts,
		Mode:       transport.Mode(c.Backend.Transport),
	}
}

// Environment is the execution context the selector resolves for.
func (c *Config) Environment() transport.Environment {
	return transport.Environment{
		Context:     transport.ExecContext(c.Client.Context),
		Scheme:      c.Client.PageScheme,
		Hostname:    c.Client.Hostname,
		NoStreaming: c.Client.NoStreaming,
	}
}

// loadEnvFile loads .env.local then .env from the working directory, falling
// back to the parent directory. Variables already set are never overridden.
func loadEnvFile() {
	candidates := []string{".env.local", ".env"}
	if cwd, err := os.Getwd(); err == nil {
		if parent := filepath.Dir(cwd); parent != "" && parent != cwd {
			candidates = append(candidates, filepath.Join(parent, ".env.local"), filepath.Join(parent, ".env"))
		}
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			log.Warn("Failed to load %s: %v", path, err)
		}
	}
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90s") or whole seconds ("90").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

// getEnvList splits a comma separated value, dropping empty entries.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var ret []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			ret = append(ret, part)
		}
	}
	if len(ret) == 0 {
		return defaultValue
	}
	return ret
}
