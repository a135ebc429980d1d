package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MimeLyc/yt-summary/internal/failure"
	"github.com/MimeLyc/yt-summary/internal/progress"
	"github.com/MimeLyc/yt-summary/pkg/icron"
)

// FileSettings is the YAML overlay named by SUMMARY_CONFIG_FILE. Empty fields
// leave the environment value in place.
type FileSettings struct {
	Backend struct {
		APIURL            string   `yaml:"api_url,omitempty"`
		LocalURL          string   `yaml:"local_url,omitempty"`
		LocalHosts        []string `yaml:"local_hosts,omitempty"`
		Transport         string   `yaml:"transport,omitempty"`
		BlockingRoute     string   `yaml:"blocking_route,omitempty"`
		RequestTimeout    string   `yaml:"request_timeout,omitempty"`
		StreamIdleTimeout string   `yaml:"stream_idle_timeout,omitempty"`
	} `yaml:"backend,omitempty"`

	Progress struct {
		TickInterval  string           `yaml:"tick_interval,omitempty"`
		StartPercent  int              `yaml:"start_percent,omitempty"`
		LowWatermark  *int             `yaml:"low_watermark,omitempty"`
		HighWatermark int              `yaml:"high_watermark,omitempty"`
		Increment     int              `yaml:"increment,omitempty"`
		Phases        []progress.Phase `yaml:"phases,omitempty"`
	} `yaml:"progress,omitempty"`

	Probe struct {
		CronExpr string `yaml:"cron_expr,omitempty"`
	} `yaml:"probe,omitempty"`

	Classifier struct {
		Rules []failure.Rule `yaml:"rules,omitempty"`
	} `yaml:"classifier,omitempty"`
}

func (s FileSettings) Validate() error {
	for _, d := range []string{s.Backend.RequestTimeout, s.Backend.StreamIdleTimeout, s.Progress.TickInterval} {
		if strings.TrimSpace(d) == "" {
			continue
		}
		if _, err := time.ParseDuration(d); err != nil {
			return fmt.Errorf("invalid duration %q: %w", d, err)
		}
	}
	for _, p := range s.Progress.Phases {
		if strings.TrimSpace(p.Text) == "" {
			return fmt.Errorf("progress phases need text")
		}
	}
	for _, r := range s.Classifier.Rules {
		if strings.TrimSpace(r.Fragment) == "" {
			return fmt.Errorf("classifier rules need a fragment")
		}
	}
	if strings.TrimSpace(s.Probe.CronExpr) != "" {
		if err := icron.Validate(s.Probe.CronExpr); err != nil {
			return err
		}
	}
	return nil
}

func LoadFileSettings(path string) (FileSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileSettings{}, err
	}
	var settings FileSettings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return FileSettings{}, fmt.Errorf("invalid settings file: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return FileSettings{}, err
	}
	return settings, nil
}

func WriteFileSettings(path string, settings FileSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	content, err := yaml.Marshal(settings)
	if err != nil {
		return err
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, content, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// FileSettingsFrom captures the file-backed part of c, so it can be written
// out and later loaded through SUMMARY_CONFIG_FILE.
func FileSettingsFrom(c *Config) FileSettings {
	var s FileSettings
	s.Backend.APIURL = c.Backend.APIURL
	s.Backend.LocalURL = c.Backend.LocalURL
	s.Backend.LocalHosts = append([]string(nil), c.Backend.LocalHosts...)
	s.Backend.Transport = c.Backend.Transport
	s.Backend.BlockingRoute = c.Backend.BlockingRoute
	s.Backend.RequestTimeout = c.Backend.RequestTimeout.String()
	s.Backend.StreamIdleTimeout = c.Backend.StreamIdleTimeout.String()

	low := c.Progress.LowWatermark
	s.Progress.TickInterval = c.Progress.TickInterval.String()
	s.Progress.StartPercent = c.Progress.StartPercent
	s.Progress.LowWatermark = &low
	s.Progress.HighWatermark = c.Progress.HighWatermark
	s.Progress.Increment = c.Progress.Increment
	s.Progress.Phases = append([]progress.Phase(nil), c.Progress.Phases...)

	s.Probe.CronExpr = c.Probe.CronExpr
	s.Classifier.Rules = append([]failure.Rule(nil), c.ExtraRules...)
	return s
}

// WithFileSettings overlays non-empty file values onto the config.
func WithFileSettings(s FileSettings) Option {
	return func(c *Config) {
		b := s.Backend
		setString(&c.Backend.APIURL, b.APIURL)
		setString(&c.Backend.LocalURL, b.LocalURL)
		setString(&c.Backend.Transport, b.Transport)
		setString(&c.Backend.BlockingRoute, b.BlockingRoute)
		if len(b.LocalHosts) > 0 {
			c.Backend.LocalHosts = b.LocalHosts
		}
		setDuration(&c.Backend.RequestTimeout, b.RequestTimeout)
		setDuration(&c.Backend.StreamIdleTimeout, b.StreamIdleTimeout)

		p := s.Progress
		setDuration(&c.Progress.TickInterval, p.TickInterval)
		setInt(&c.Progress.StartPercent, p.StartPercent)
		if p.LowWatermark != nil {
			c.Progress.LowWatermark = *p.LowWatermark
		}
		setInt(&c.Progress.HighWatermark, p.HighWatermark)
		setInt(&c.Progress.Increment, p.Increment)
		if len(p.Phases) > 0 {
			c.Progress.Phases = p.Phases
		}

		setString(&c.Probe.CronExpr, s.Probe.CronExpr)
		c.ExtraRules = append(c.ExtraRules, s.Classifier.Rules...)
	}
}

func setString(dst *string, v string) {
	if strings.TrimSpace(v) != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v string) {
	if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
		*dst = d
	}
}
