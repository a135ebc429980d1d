package failure

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Rule maps a phrase fragment found in backend error text to a category.
type Rule struct {
	Fragment string   `yaml:"fragment" json:"fragment"`
	Category Category `yaml:"category" json:"category"`
}

// DefaultRules is checked in order; the first matching fragment wins.
// Access restrictions are listed first because the backend wraps them in its
// generic processing-error prefix.
var DefaultRules = []Rule{
	{Fragment: "too many requests", Category: AccessRestricted},
	{Fragment: "429", Category: AccessRestricted},
	{Fragment: "sorry/index", Category: AccessRestricted},
	{Fragment: "sign in to confirm", Category: AccessRestricted},
	{Fragment: "not a bot", Category: AccessRestricted},
	{Fragment: "ip blocked", Category: AccessRestricted},
	{Fragment: "requestblocked", Category: AccessRestricted},
	{Fragment: "ipblocked", Category: AccessRestricted},
	{Fragment: "봇", Category: AccessRestricted},
	{Fragment: "요청이 너무 많", Category: AccessRestricted},

	{Fragment: "all methods failed", Category: FallbackExhausted},
	{Fragment: "fallback failed", Category: FallbackExhausted},
	{Fragment: "fallback exhausted", Category: FallbackExhausted},
	{Fragment: "모든 방법", Category: FallbackExhausted},
	{Fragment: "대체 방법", Category: FallbackExhausted},

	{Fragment: "자막을 찾을 수 없습니다", Category: NoCaptionsAvailable},
	{Fragment: "자막이 없습니다", Category: NoCaptionsAvailable},
	{Fragment: "no transcript", Category: NoCaptionsAvailable},
	{Fragment: "notranscriptfound", Category: NoCaptionsAvailable},
	{Fragment: "transcripts disabled", Category: NoCaptionsAvailable},
	{Fragment: "transcriptsdisabled", Category: NoCaptionsAvailable},
	{Fragment: "subtitles are disabled", Category: NoCaptionsAvailable},

	{Fragment: "유효한 유튜브 링크가 아닙니다", Category: InvalidInput},
	{Fragment: "invalid youtube", Category: InvalidInput},

	{Fragment: "자막 처리 중 오류", Category: ServerTransient},
	{Fragment: "요약 중 오류", Category: ServerTransient},
	{Fragment: "서버 오류", Category: ServerTransient},
	{Fragment: "internal server error", Category: ServerTransient},
	{Fragment: "service unavailable", Category: ServerTransient},
	{Fragment: "openai_api_key not set", Category: ServerTransient},
	{Fragment: "timed out", Category: ServerTransient},
}

// Classifier turns free-form backend error text into a Category.
type Classifier struct {
	rules []Rule
}

// NewClassifier builds a classifier over extra followed by DefaultRules, so
// configured rules can re-map text a default fragment would also catch.
func NewClassifier(extra ...Rule) *Classifier {
	rules := make([]Rule, 0, len(DefaultRules)+len(extra))
	for _, r := range append(append([]Rule{}, extra...), DefaultRules...) {
		frag := normalize(r.Fragment)
		if frag == "" {
			continue
		}
		rules = append(rules, Rule{Fragment: frag, Category: r.Category})
	}
	return &Classifier{rules: rules}
}

// Classify returns the category of the first rule whose fragment occurs in
// text, or Unknown.
func (c *Classifier) Classify(text string) Category {
	haystack := normalize(text)
	if haystack == "" {
		return Unknown
	}
	for _, r := range c.rules {
		if strings.Contains(haystack, r.Fragment) {
			return r.Category
		}
	}
	return Unknown
}

// FromDetail classifies detail and wraps it as an *Error.
func (c *Classifier) FromDetail(detail string) *Error {
	return New(c.Classify(detail), detail)
}

// Hangul may arrive decomposed depending on the producer, so compare in NFC.
func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFC.String(s)))
}
