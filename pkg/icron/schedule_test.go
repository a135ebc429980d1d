package icron

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetTriggerInfo(t *testing.T) {
	ref := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		expr string
		next time.Time
	}{
		{expr: "@every 30s", next: ref.Add(30 * time.Second)},
		{expr: "*/5 * * * *", next: ref.Add(5 * time.Minute)},
		{expr: "15 * * * * *", next: ref.Add(15 * time.Second)},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			info, err := GetTriggerInfo(tt.expr, ref)
			require.NoError(t, err)
			assert.Equal(t, tt.next, info.Next)
			assert.Equal(t, tt.next.Sub(ref), info.TimeUntilNext)
		})
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("@hourly"))
	assert.Error(t, Validate("not a schedule"))
	assert.Error(t, Validate(""))
}
