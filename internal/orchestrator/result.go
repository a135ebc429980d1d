package orchestrator

import (
	"strings"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"
)

// methodLanguages are values some backend builds put in the language field
// to report the extraction strategy instead of a language.
var methodLanguages = map[string]bool{
	"whisper":     true,
	"alternative": true,
	"fallback":    true,
}

func buildResult(summary, method, reported string, duration *float64) Result {
	reported = strings.TrimSpace(reported)
	if methodLanguages[strings.ToLower(reported)] {
		if method == "" {
			method = strings.ToLower(reported)
		}
		reported = ""
	}

	res := Result{
		Summary: summary,
		Method:  method,
	}
	if duration != nil {
		d := *duration
		res.Duration = &d
	}
	if reported != "" {
		if tag, err := language.Parse(reported); err == nil {
			res.Language = tag.String()
			return res
		}
	}
	res.Language = detectLanguage(summary)
	return res
}

func detectLanguage(text string) string {
	code := whatlanggo.DetectLang(text).Iso6391()
	if code == "" {
		return ""
	}
	tag, err := language.Parse(code)
	if err != nil {
		return ""
	}
	return tag.String()
}
