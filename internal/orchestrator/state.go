package orchestrator

import (
	"time"

	"github.com/MimeLyc/yt-summary/internal/failure"
	"github.com/MimeLyc/yt-summary/internal/progress"
	"github.com/MimeLyc/yt-summary/internal/transport"
)

// State is the lifecycle stage of the current submission.
type State string

const (
	StateIdle        State = "idle"
	StateValidating  State = "validating"
	StateDispatching State = "dispatching"
	StateStreaming   State = "streaming"
	StateWaiting     State = "waiting"
	StateCompleted   State = "completed"
	StateFailed      State = "failed"
)

// Terminal reports whether no further progress mutation can follow.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// InFlight reports whether a submission owns live side effects.
func (s State) InFlight() bool {
	switch s {
	case StateValidating, StateDispatching, StateStreaming, StateWaiting:
		return true
	default:
		return false
	}
}

// isValidTransition enforces the lifecycle edges. In-flight states may drop
// back to idle when a newer submission or teardown abandons them.
func isValidTransition(from, to State) bool {
	switch from {
	case StateIdle:
		return to == StateValidating
	case StateValidating:
		return to == StateDispatching || to == StateFailed || to == StateIdle
	case StateDispatching:
		return to == StateStreaming || to == StateWaiting || to == StateFailed || to == StateIdle
	case StateStreaming, StateWaiting:
		return to == StateCompleted || to == StateFailed || to == StateIdle
	case StateCompleted, StateFailed:
		return to == StateIdle
	default:
		return false
	}
}

// Result is a successful terminal outcome.
type Result struct {
	Summary  string   `json:"summary"`
	Method   string   `json:"method,omitempty"`
	Language string   `json:"language,omitempty"`
	Duration *float64 `json:"duration,omitempty"`
}

// Failure is a categorized terminal outcome.
type Failure struct {
	Category failure.Category `json:"category"`
	Message  string           `json:"message"`
	Detail   string           `json:"detail,omitempty"`
}

// Snapshot is an immutable copy of orchestrator state for readers.
type Snapshot struct {
	Seq        int64          `json:"seq"`
	Epoch      progress.Epoch `json:"epoch"`
	State      State          `json:"state"`
	Input      string         `json:"input,omitempty"`
	JobID      string         `json:"jobId,omitempty"`
	RequestID  string         `json:"requestId,omitempty"`
	Transport  transport.Kind `json:"transport,omitempty"`
	BackendURL string         `json:"backendUrl,omitempty"`
	Progress   progress.State `json:"progress"`
	Result     *Result        `json:"result,omitempty"`
	Failure    *Failure       `json:"failure,omitempty"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

func (s Snapshot) clone() Snapshot {
	out := s
	if s.Progress.EstimatedSeconds != nil {
		v := *s.Progress.EstimatedSeconds
		out.Progress.EstimatedSeconds = &v
	}
	if s.Result != nil {
		r := *s.Result
		out.Result = &r
	}
	if s.Failure != nil {
		f := *s.Failure
		out.Failure = &f
	}
	return out
}
