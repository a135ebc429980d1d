package presenter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MimeLyc/yt-summary/internal/failure"
	"github.com/MimeLyc/yt-summary/internal/orchestrator"
	"github.com/MimeLyc/yt-summary/internal/progress"
)

func intPtr(v int) *int { return &v }

func TestRender_InFlightWhisperShowsCaution(t *testing.T) {
	v := Render(orchestrator.Snapshot{
		State: orchestrator.StateStreaming,
		Progress: progress.State{
			Percent:          45,
			PhaseText:        "Transcribing audio",
			MethodLabel:      "whisper",
			EstimatedSeconds: intPtr(75),
		},
	})

	assert.True(t, v.Busy)
	assert.Equal(t, 45, v.Percent)
	assert.Equal(t, "Speech-to-text", v.MethodLabel)
	assert.Equal(t, ToneCaution, v.Tone)
	assert.NotEmpty(t, v.Caution)
	assert.Equal(t, "about 1m 15s left", v.Remaining)
	assert.Empty(t, v.Message)
}

func TestRender_FailedCarriesOnlyTheError(t *testing.T) {
	v := Render(orchestrator.Snapshot{
		State:    orchestrator.StateFailed,
		Progress: progress.State{PhaseText: failure.NoCaptionsAvailable.Message(), MethodLabel: "fallback"},
		Failure: &orchestrator.Failure{
			Category: failure.NoCaptionsAvailable,
			Message:  failure.NoCaptionsAvailable.Message(),
		},
	})

	assert.False(t, v.Busy)
	assert.Equal(t, MessageError, v.MessageKind)
	assert.Equal(t, failure.NoCaptionsAvailable.Message(), v.Message)
	assert.Equal(t, "NO_CAPTIONS_AVAILABLE", v.ErrorCode)
	assert.False(t, v.Retryable)
	assert.Empty(t, v.Caution)
	assert.Empty(t, v.Summary)
}

func TestRender_TransportFailureIsRetryable(t *testing.T) {
	v := Render(orchestrator.Snapshot{
		State: orchestrator.StateFailed,
		Failure: &orchestrator.Failure{
			Category: failure.TransportFailure,
			Message:  failure.TransportFailure.Message(),
		},
	})

	assert.True(t, v.Retryable)
	assert.Equal(t, "TRANSPORT_FAILURE", v.ErrorCode)
}

func TestRender_CompletedUsesResultMethod(t *testing.T) {
	v := Render(orchestrator.Snapshot{
		State:    orchestrator.StateCompleted,
		Progress: progress.State{Percent: 100, PhaseText: orchestrator.SuccessText, MethodLabel: "caption"},
		Result:   &orchestrator.Result{Summary: "요약", Method: "fallback", Language: "ko"},
	})

	assert.Equal(t, "요약", v.Summary)
	assert.Equal(t, "ko", v.Language)
	assert.Equal(t, "Fallback", v.MethodLabel)
	assert.Equal(t, MessageInfo, v.MessageKind)
	assert.Equal(t, v.Caution, v.Message)
	assert.Empty(t, v.Remaining)
}

func TestRender_UnknownMethodIsShownAsIs(t *testing.T) {
	v := Render(orchestrator.Snapshot{
		State:    orchestrator.StateCompleted,
		Progress: progress.State{Percent: 100},
		Result:   &orchestrator.Result{Summary: "ok", Method: "custom_backend"},
	})

	assert.Equal(t, "custom_backend", v.MethodLabel)
	assert.Equal(t, ToneNormal, v.Tone)
	assert.Equal(t, MessageNone, v.MessageKind)
	assert.Empty(t, v.Message)
}

func TestRender_IdleIsEmpty(t *testing.T) {
	v := Render(orchestrator.Snapshot{State: orchestrator.StateIdle})
	assert.Equal(t, View{State: orchestrator.StateIdle}, v)
}

func TestLine(t *testing.T) {
	line := Line(View{Percent: 50, PhaseText: "Extracting captions...", MethodLabel: "Captions", Remaining: "about 20s left"}, 10)
	assert.Equal(t, "[#####-----]  50% Extracting captions... (Captions), about 20s left", line)

	assert.Equal(t, "[----------]   0%", Line(View{}, 10))
}
