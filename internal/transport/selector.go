package transport

import (
	"net/url"
	"strings"
)

// ExecContext is where the client runs.
type ExecContext string

const (
	ContextBrowser ExecContext = "browser"
	ContextNative  ExecContext = "native"
)

// Environment describes the execution context the selector resolves for.
// It is passed in explicitly instead of being sniffed from globals.
type Environment struct {
	Context  ExecContext
	Scheme   string // page origin scheme, "http" or "https"
	Hostname string
	// NoStreaming is set when the runtime cannot open WebSockets.
	NoStreaming bool
}

// Kind is the transport used for one submission.
type Kind string

const (
	KindStream   Kind = "stream"
	KindBlocking Kind = "blocking"
)

// Mode is the configured transport preference.
type Mode string

const (
	ModeAuto     Mode = "auto"
	ModeStream   Mode = "stream"
	ModeBlocking Mode = "blocking"
)

// Endpoint is the resolved backend address and transport kind.
type Endpoint struct {
	BaseURL string
	Kind    Kind
}

// StreamURL returns the progress channel address for jobID.
func (e Endpoint) StreamURL(jobID string) string {
	base := strings.TrimRight(e.BaseURL, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/ws/" + url.PathEscape(jobID)
}

// SelectorConfig holds the static inputs of the selector.
type SelectorConfig struct {
	DefaultURL string
	LocalURL   string
	LocalHosts []string
	Mode       Mode
}

// Selector resolves the backend address and transport kind per submission.
type Selector struct {
	cfg        SelectorConfig
	localHosts map[string]struct{}
}

func NewSelector(cfg SelectorConfig) *Selector {
	hosts := make(map[string]struct{}, len(cfg.LocalHosts))
	for _, h := range cfg.LocalHosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			hosts[h] = struct{}{}
		}
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeAuto
	}
	return &Selector{cfg: cfg, localHosts: hosts}
}

// Resolve never fails: unknown inputs fall back to the configured default.
func (s *Selector) Resolve(env Environment) Endpoint {
	base := s.cfg.DefaultURL
	if s.isLocal(env.Hostname) && s.cfg.LocalURL != "" {
		base = s.cfg.LocalURL
	}
	if strings.EqualFold(env.Scheme, "https") {
		base = upgradeScheme(base)
	}
	return Endpoint{
		BaseURL: strings.TrimRight(base, "/"),
		Kind:    s.kind(env),
	}
}

func (s *Selector) kind(env Environment) Kind {
	switch s.cfg.Mode {
	case ModeStream:
		return KindStream
	case ModeBlocking:
		return KindBlocking
	default:
		if env.NoStreaming {
			return KindBlocking
		}
		return KindStream
	}
}

func (s *Selector) isLocal(hostname string) bool {
	h := strings.ToLower(strings.TrimSpace(hostname))
	h = strings.TrimSuffix(strings.TrimPrefix(h, "["), "]")
	_, ok := s.localHosts[h]
	return ok
}

// upgradeScheme rewrites http:// to https:// so a secure page is not blocked
// from calling the backend.
func upgradeScheme(raw string) string {
	if len(raw) >= len("http://") && strings.EqualFold(raw[:len("http://")], "http://") {
		return "https://" + raw[len("http://"):]
	}
	return raw
}
