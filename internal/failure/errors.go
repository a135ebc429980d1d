package failure

import (
	"errors"
	"fmt"
	"strings"
)

// Category is the closed set of failure kinds a submission can end with.
type Category int

const (
	InvalidInput Category = iota
	AccessRestricted
	NoCaptionsAvailable
	ServerTransient
	FallbackExhausted
	TransportFailure
	Unknown
)

// Categories lists every category in declaration order.
var Categories = []Category{
	InvalidInput,
	AccessRestricted,
	NoCaptionsAvailable,
	ServerTransient,
	FallbackExhausted,
	TransportFailure,
	Unknown,
}

func (c Category) String() string {
	switch c {
	case InvalidInput:
		return "INVALID_INPUT"
	case AccessRestricted:
		return "ACCESS_RESTRICTED"
	case NoCaptionsAvailable:
		return "NO_CAPTIONS_AVAILABLE"
	case ServerTransient:
		return "SERVER_TRANSIENT"
	case FallbackExhausted:
		return "FALLBACK_EXHAUSTED"
	case TransportFailure:
		return "TRANSPORT_FAILURE"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the category as its upper-case code.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText accepts the upper-case code, case-insensitively.
func (c *Category) UnmarshalText(text []byte) error {
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseCategory maps a code such as "NO_CAPTIONS_AVAILABLE" to its category.
func ParseCategory(code string) (Category, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, c := range Categories {
		if c.String() == code {
			return c, nil
		}
	}
	return Unknown, fmt.Errorf("unknown failure category %q", code)
}

// Message returns the fixed user-facing message for the category.
func (c Category) Message() string {
	switch c {
	case InvalidInput:
		return "Please enter a valid YouTube link (youtube.com/watch?v=... or youtu.be/...)."
	case AccessRestricted:
		return "YouTube is temporarily limiting requests from the server. Please try again in a few minutes."
	case NoCaptionsAvailable:
		return "No captions could be found for this video."
	case ServerTransient:
		return "The server ran into a problem while processing the video. Please try again."
	case FallbackExhausted:
		return "Every extraction method failed for this video, including the speech-to-text fallback."
	case TransportFailure:
		return "Could not reach the summary server. Check your connection and try again."
	default:
		return "Something went wrong while summarizing. Please try again."
	}
}

// Retryable reports whether resubmitting the same input can succeed.
func (c Category) Retryable() bool {
	return c != InvalidInput && c != NoCaptionsAvailable
}

// Error is a categorized failure carrying the backend detail, if any.
type Error struct {
	Category Category
	Detail   string
	Cause    error
}

func New(category Category, detail string) *Error {
	return &Error{Category: category, Detail: detail}
}

func Wrap(err error, category Category, detail string) *Error {
	return &Error{Category: category, Detail: detail, Cause: err}
}

func (e *Error) Error() string {
	parts := []string{fmt.Sprintf("[%s] %s", e.Category, e.Category.Message())}
	if e.Detail != "" {
		parts = append(parts, "detail: "+e.Detail)
	}
	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}
	return strings.Join(parts, " | ")
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// CategoryOf returns the category of err, or Unknown for uncategorized errors.
func CategoryOf(err error) Category {
	var fErr *Error
	if errors.As(err, &fErr) {
		return fErr.Category
	}
	return Unknown
}

func Is(err error, category Category) bool {
	var fErr *Error
	if errors.As(err, &fErr) {
		return fErr.Category == category
	}
	return false
}
