// Package presenter renders orchestrator snapshots for display. It never
// derives lifecycle decisions of its own.
package presenter

import (
	"fmt"
	"strings"

	"github.com/MimeLyc/yt-summary/internal/orchestrator"
)

// Tone selects the visual treatment of the method label.
type Tone string

const (
	ToneNormal  Tone = "normal"
	ToneCaution Tone = "caution"
)

// MessageKind tells which single message the view carries.
type MessageKind string

const (
	MessageNone  MessageKind = ""
	MessageError MessageKind = "error"
	MessageInfo  MessageKind = "info"
)

type methodTreatment struct {
	label   string
	tone    Tone
	caution string
}

var methodTreatments = map[string]methodTreatment{
	"caption":                {label: "Captions", tone: ToneNormal},
	"youtube_transcript_api": {label: "Captions", tone: ToneNormal},
	"summary":                {label: "AI summary", tone: ToneNormal},
	"alternative": {
		label:   "Alternative captions",
		tone:    ToneCaution,
		caution: "Captions came from an alternative source and may be incomplete.",
	},
	"whisper": {
		label:   "Speech-to-text",
		tone:    ToneCaution,
		caution: "No captions were available, so the audio was transcribed. Names and terms may be inaccurate.",
	},
	"fallback": {
		label:   "Fallback",
		tone:    ToneCaution,
		caution: "A degraded fallback method was used. The summary may be less accurate.",
	},
}

// View is everything a screen needs to draw one snapshot.
type View struct {
	Seq     int64              `json:"seq"`
	Epoch   uint64             `json:"epoch"`
	State   orchestrator.State `json:"state"`
	Busy    bool               `json:"busy"`
	Percent int                `json:"percent"`

	PhaseText   string `json:"phaseText,omitempty"`
	MethodLabel string `json:"methodLabel,omitempty"`
	Tone        Tone   `json:"tone,omitempty"`
	Caution     string `json:"caution,omitempty"`
	Remaining   string `json:"remaining,omitempty"`

	Message     string      `json:"message,omitempty"`
	MessageKind MessageKind `json:"messageKind,omitempty"`
	ErrorCode   string      `json:"errorCode,omitempty"`
	Retryable   bool        `json:"retryable,omitempty"`

	Summary  string `json:"summary,omitempty"`
	Language string `json:"language,omitempty"`
	JobID    string `json:"jobId,omitempty"`
}

// Render maps a snapshot to a view. At most one message is set.
func Render(s orchestrator.Snapshot) View {
	v := View{
		Seq:       s.Seq,
		Epoch:     uint64(s.Epoch),
		State:     s.State,
		Busy:      s.State.InFlight(),
		Percent:   s.Progress.Percent,
		PhaseText: s.Progress.PhaseText,
		JobID:     s.JobID,
	}

	method := s.Progress.MethodLabel
	if s.Result != nil && s.Result.Method != "" {
		method = s.Result.Method
	}
	if method != "" {
		t := treatmentFor(method)
		v.MethodLabel = t.label
		v.Tone = t.tone
		v.Caution = t.caution
	}
	if s.Progress.EstimatedSeconds != nil && v.Busy {
		v.Remaining = formatRemaining(*s.Progress.EstimatedSeconds)
	}

	switch s.State {
	case orchestrator.StateFailed:
		if s.Failure != nil {
			v.Message = s.Failure.Message
			v.ErrorCode = s.Failure.Category.String()
			v.Retryable = s.Failure.Category.Retryable()
		}
		v.MessageKind = MessageError
		v.Caution = ""
	case orchestrator.StateCompleted:
		if s.Result != nil {
			v.Summary = s.Result.Summary
			v.Language = s.Result.Language
		}
		if v.Caution != "" {
			v.Message = v.Caution
			v.MessageKind = MessageInfo
		}
	}
	return v
}

func treatmentFor(method string) methodTreatment {
	if t, ok := methodTreatments[strings.ToLower(method)]; ok {
		return t
	}
	return methodTreatment{label: method, tone: ToneNormal}
}

func formatRemaining(seconds int) string {
	if seconds < 60 {
		return fmt.Sprintf("about %ds left", seconds)
	}
	return fmt.Sprintf("about %dm %ds left", seconds/60, seconds%60)
}

// Line renders v as a single terminal status line.
func Line(v View, width int) string {
	if width <= 0 {
		width = 30
	}
	filled := v.Percent * width / 100
	bar := strings.Repeat("#", filled) + strings.Repeat("-", width-filled)

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %3d%%", bar, v.Percent)
	if v.PhaseText != "" {
		b.WriteString(" " + v.PhaseText)
	}
	if v.MethodLabel != "" {
		fmt.Fprintf(&b, " (%s)", v.MethodLabel)
	}
	if v.Remaining != "" {
		b.WriteString(", " + v.Remaining)
	}
	return b.String()
}
