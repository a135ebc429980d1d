package transport

import (
	"fmt"
	"math"
)

// SummarizeRequest is the body of both blocking routes.
type SummarizeRequest struct {
	URL string `json:"url"`
}

// SummaryResponse covers POST /summarize and POST /summarize/{jobId}.
type SummaryResponse struct {
	Summary       string   `json:"summary"`
	Method        string   `json:"method,omitempty"`
	Language      string   `json:"language,omitempty"`
	Duration      *float64 `json:"duration,omitempty"`
	EstimatedTime *float64 `json:"estimated_time,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// Message is one inbound frame on the /ws/{jobId} channel.
type Message struct {
	Progress      *float64 `json:"progress,omitempty"`
	Text          string   `json:"text,omitempty"`
	Method        string   `json:"method,omitempty"`
	EstimatedTime *float64 `json:"estimated_time,omitempty"`
	Summary       string   `json:"summary,omitempty"`
	Language      string   `json:"language,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// Terminal reports whether the message ends the submission.
func (m Message) Terminal() bool {
	return m.Summary != "" || m.Error != ""
}

// Percent returns the reported progress clamped to [0,100].
func (m Message) Percent() (int, bool) {
	if m.Progress == nil {
		return 0, false
	}
	return clampPercent(*m.Progress), true
}

// EstimatedSeconds returns the backend estimate rounded to whole seconds.
func (m Message) EstimatedSeconds() *int {
	return roundSeconds(m.EstimatedTime)
}

// StatusError is a non-2xx answer on a blocking route.
type StatusError struct {
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Detail)
}

// ChatRequest and ChatResponse are the diagnostic /chat contract.
type ChatRequest struct {
	Message string `json:"message"`
}

type ChatResponse struct {
	Response string `json:"response"`
}

// Health is GET /health.
type Health struct {
	Status string `json:"status"`
}

// Version is GET /version.
type Version struct {
	Commit               *string `json:"commit"`
	Branch               *string `json:"branch"`
	TranscriptAPIVersion *string `json:"youtube_transcript_api"`
	OpenAIConfigured     bool    `json:"openai"`
}

func clampPercent(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	p := int(math.Round(v))
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

func roundSeconds(v *float64) *int {
	if v == nil || math.IsNaN(*v) || *v < 0 {
		return nil
	}
	s := int(math.Round(*v))
	return &s
}
