// Package probe checks backend reachability on a cron schedule and keeps the
// latest result for the CLI and the local server.
package probe

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"github.com/MimeLyc/yt-summary/internal/transport"
	"github.com/MimeLyc/yt-summary/pkg/icron"
	"github.com/MimeLyc/yt-summary/pkg/log"
)

// Checker is the subset of transport.Client the probe needs.
type Checker interface {
	Health(ctx context.Context, baseURL string) (*transport.Health, error)
	Version(ctx context.Context, baseURL string) (*transport.Version, error)
}

// Status is the outcome of one probe.
type Status struct {
	BaseURL   string             `json:"baseUrl"`
	Healthy   bool               `json:"healthy"`
	Status    string             `json:"status,omitempty"`
	Version   *transport.Version `json:"version,omitempty"`
	Error     string             `json:"error,omitempty"`
	CheckedAt time.Time          `json:"checkedAt"`
	NextCheck *time.Time         `json:"nextCheck,omitempty"`
}

// healthyStatuses are the /health status values that mean the backend is up.
var healthyStatuses = map[string]bool{
	"ok":      true,
	"healthy": true,
}

type Prober struct {
	checker  Checker
	baseURL  string
	timeout  time.Duration
	cronExpr string

	group singleflight.Group

	mu      sync.RWMutex
	last    Status
	checked bool
}

type Option func(*Prober)

func WithTimeout(timeout time.Duration) Option {
	return func(p *Prober) {
		if timeout > 0 {
			p.timeout = timeout
		}
	}
}

func New(checker Checker, baseURL string, opts ...Option) *Prober {
	p := &Prober{
		checker: checker,
		baseURL: baseURL,
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Check probes the backend now. Concurrent callers share one round trip.
func (p *Prober) Check(ctx context.Context) Status {
	v, _, _ := p.group.Do("check", func() (any, error) {
		return p.check(ctx), nil
	})
	return v.(Status)
}

func (p *Prober) check(ctx context.Context) Status {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	st := Status{
		BaseURL:   p.baseURL,
		CheckedAt: time.Now().UTC(),
	}
	health, err := p.checker.Health(ctx, p.baseURL)
	if err != nil {
		st.Error = err.Error()
		log.Warn("Backend health check against %s failed: %v", p.baseURL, err)
	} else {
		st.Status = health.Status
		st.Healthy = healthyStatuses[strings.ToLower(strings.TrimSpace(health.Status))]
		if version, err := p.checker.Version(ctx, p.baseURL); err == nil {
			st.Version = version
		} else {
			log.Debug("Backend version lookup failed: %v", err)
		}
	}

	p.mu.Lock()
	if p.cronExpr != "" {
		if info, err := icron.GetTriggerInfo(p.cronExpr, st.CheckedAt); err == nil {
			st.NextCheck = &info.Next
		}
	}
	p.last = st
	p.checked = true
	p.mu.Unlock()
	return st
}

// Last returns the most recent result and whether any probe has run.
func (p *Prober) Last() (Status, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last, p.checked
}

// Run probes once, then on every cronExpr trigger until ctx is done.
func (p *Prober) Run(ctx context.Context, cronExpr string) error {
	if err := icron.Validate(cronExpr); err != nil {
		return err
	}
	p.mu.Lock()
	p.cronExpr = cronExpr
	p.mu.Unlock()

	c := icron.New()
	if _, err := c.AddFunc(cronExpr, func() { p.Check(ctx) }); err != nil {
		return err
	}
	log.Info("Backend health probe scheduled with %q against %s", cronExpr, p.baseURL)

	p.Check(ctx)
	c.Start()
	<-ctx.Done()
	stopCron(c)
	return nil
}

func stopCron(c *cron.Cron) {
	<-c.Stop().Done()
}
