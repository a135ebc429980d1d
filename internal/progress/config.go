package progress

import (
	"fmt"
	"time"
)

// Phase is one step of the simulated timeline.
type Phase struct {
	Text   string `yaml:"text" json:"text"`
	Method string `yaml:"method" json:"method"`
}

// DefaultPhases is the ordered sequence the simulator rotates through.
var DefaultPhases = []Phase{
	{Text: "Fetching video information...", Method: "caption"},
	{Text: "Extracting captions...", Method: "caption"},
	{Text: "Trying alternative caption sources...", Method: "alternative"},
	{Text: "Transcribing audio with speech-to-text...", Method: "whisper"},
	{Text: "Summarizing with AI...", Method: "summary"},
}

// Config bounds the simulator. Ticks only fire while
// LowWatermark < percent < HighWatermark.
type Config struct {
	TickInterval  time.Duration
	StartPercent  int
	LowWatermark  int
	HighWatermark int
	Increment     int
	Phases        []Phase
}

func DefaultConfig() Config {
	return Config{
		TickInterval:  time.Second,
		StartPercent:  10,
		LowWatermark:  0,
		HighWatermark: 90,
		Increment:     3,
		Phases:        DefaultPhases,
	}
}

// Validate rejects watermarks under which the simulator could never run or
// could reach completion on its own.
func (c Config) Validate() error {
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive")
	}
	if c.LowWatermark < 0 || c.HighWatermark > 100 || c.LowWatermark >= c.HighWatermark {
		return fmt.Errorf("watermarks must satisfy 0 <= low < high <= 100, got %d and %d", c.LowWatermark, c.HighWatermark)
	}
	if c.StartPercent <= c.LowWatermark || c.StartPercent >= c.HighWatermark {
		return fmt.Errorf("start percent %d must lie strictly between the watermarks", c.StartPercent)
	}
	if c.Increment <= 0 {
		return fmt.Errorf("increment must be positive")
	}
	return nil
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.TickInterval <= 0 {
		c.TickInterval = d.TickInterval
	}
	if c.HighWatermark <= 0 {
		c.HighWatermark = d.HighWatermark
	}
	if c.StartPercent <= 0 {
		c.StartPercent = d.StartPercent
	}
	if c.Increment <= 0 {
		c.Increment = d.Increment
	}
	if len(c.Phases) == 0 {
		c.Phases = d.Phases
	}
	return c
}
