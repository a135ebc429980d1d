package videoid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/yt-summary/internal/failure"
)

func TestExtract_AcceptedShapes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "watch page", input: "https://youtube.com/watch?v=abc123", want: "abc123"},
		{name: "short link with timestamp", input: "https://youtu.be/abc123?t=5", want: "abc123"},
		{name: "www watch page", input: "https://www.youtube.com/watch?v=dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{name: "mobile watch page", input: "https://m.youtube.com/watch?v=dQw4w9WgXcQ&t=42s", want: "dQw4w9WgXcQ"},
		{name: "v not first param", input: "https://www.youtube.com/watch?feature=share&v=a-b_c", want: "a-b_c"},
		{name: "no scheme", input: "youtu.be/xyz987", want: "xyz987"},
		{name: "plain http", input: "http://youtube.com/watch?v=abc123", want: "abc123"},
		{name: "surrounding whitespace", input: "  https://youtu.be/abc123 \n", want: "abc123"},
		{name: "upper-case host", input: "HTTPS://YOUTU.BE/AbC123", want: "AbC123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Extract(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtract_RejectsInvalidInput(t *testing.T) {
	inputs := []string{
		"",
		"not a link",
		"youtu.be/",
		"https://vimeo.com/123456",
		"https://youtube.com/channel/UC123",
		"https://youtube.com/watch?list=PL1",
		"https://notyoutube.com/watch?v=abc123",
		"https://youtu.be.evil.com/abc123",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			got, err := Extract(input)
			require.Error(t, err)
			assert.Empty(t, got)
			assert.True(t, failure.Is(err, failure.InvalidInput))
		})
	}
}

func TestExtract_ShortInputRejectedBeforeMatching(t *testing.T) {
	_, err := Extract("youtu.be")
	require.Error(t, err)

	var fErr *failure.Error
	require.ErrorAs(t, err, &fErr)
	assert.Equal(t, failure.InvalidInput, fErr.Category)
	assert.Contains(t, fErr.Detail, "too short")
}

func TestExtract_Deterministic(t *testing.T) {
	a, errA := Extract("https://youtu.be/abc123?t=5")
	b, errB := Extract("https://youtu.be/abc123?t=5")
	require.NoError(t, errA)
	require.NoError(t, errB)
	assert.Equal(t, a, b)
}
