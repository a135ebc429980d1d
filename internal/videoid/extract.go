// Package videoid turns user-typed links into YouTube video identifiers.
package videoid

import (
	"regexp"
	"strings"

	"github.com/MimeLyc/yt-summary/internal/failure"
)

// MinInputLength is the length of the shortest accepted link, "youtu.be/x".
const MinInputLength = len("youtu.be/x")

// linkPattern accepts the canonical watch page and the short link form.
var linkPattern = regexp.MustCompile(
	`^(?i:https?://)?(?:` +
		`(?i:(?:www\.|m\.)?youtube\.com)/watch\?(?:[^#\s]*?&)?v=` +
		`|` +
		`(?i:youtu\.be)/` +
		`)([A-Za-z0-9_-]+)`,
)

// Extract returns the video identifier embedded in input, or an
// INVALID_INPUT failure when input is not a recognized link.
func Extract(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if len(trimmed) < MinInputLength {
		return "", failure.New(failure.InvalidInput, "input too short to be a video link")
	}

	m := linkPattern.FindStringSubmatch(trimmed)
	if m == nil || m[1] == "" {
		return "", failure.New(failure.InvalidInput, "unrecognized video link")
	}
	return m[1], nil
}
