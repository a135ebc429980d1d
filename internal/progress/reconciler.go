// Package progress owns the single progress record shown while a summary is
// being produced. Two producers feed it: a local tick simulator and
// authoritative backend updates. Every call carries the submission epoch it
// belongs to; calls with a stale epoch are ignored.
package progress

import (
	"context"
	"sync"
	"time"
)

// Epoch identifies one submission. It only ever increases.
type Epoch uint64

// State is the progress record read by presentation.
type State struct {
	Percent          int    `json:"percent"`
	PhaseText        string `json:"phaseText"`
	MethodLabel      string `json:"methodLabel"`
	EstimatedSeconds *int   `json:"estimatedSeconds,omitempty"`
}

func (s State) clone() State {
	if s.EstimatedSeconds != nil {
		v := *s.EstimatedSeconds
		s.EstimatedSeconds = &v
	}
	return s
}

// Update is one authoritative, non-terminal backend report.
type Update struct {
	Percent          *int
	PhaseText        string
	MethodLabel      string
	EstimatedSeconds *int
}

// Sink receives simulated tick results. It is called without any reconciler
// lock held.
type Sink func(epoch Epoch, state State)

// Reconciler merges simulated and authoritative progress for the active epoch.
type Reconciler struct {
	cfg  Config
	sink Sink

	mu            sync.Mutex
	epoch         Epoch
	state         State
	inFlight      bool
	sealed        bool
	authoritative bool
	phaseIdx      int
	stopSim       context.CancelFunc
}

func NewReconciler(cfg Config, sink Sink) *Reconciler {
	return &Reconciler{
		cfg:  cfg.withDefaults(),
		sink: sink,
	}
}

// Reset invalidates the current epoch, stops its simulator and returns a new
// epoch with zeroed state.
func (r *Reconciler) Reset() Epoch {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stopLocked()
	r.epoch++
	r.state = State{}
	r.inFlight = false
	r.sealed = false
	r.authoritative = false
	r.phaseIdx = 0
	return r.epoch
}

// Start marks epoch in flight and starts the simulator.
func (r *Reconciler) Start(epoch Epoch) (State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if epoch != r.epoch || r.sealed || r.inFlight {
		return State{}, false
	}
	r.inFlight = true
	first := r.cfg.Phases[0]
	r.state.Percent = max(r.state.Percent, r.cfg.StartPercent)
	r.state.PhaseText = first.Text
	r.state.MethodLabel = first.Method

	ctx, cancel := context.WithCancel(context.Background())
	r.stopSim = cancel
	go r.simulate(ctx, epoch)

	return r.state.clone(), true
}

// Tick applies one simulated step. It never reaches HighWatermark, which is
// reserved for authoritative completion.
func (r *Reconciler) Tick(epoch Epoch) (State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if epoch != r.epoch || r.sealed || !r.inFlight || r.authoritative {
		return State{}, false
	}
	p := r.state.Percent
	if p <= r.cfg.LowWatermark || p >= r.cfg.HighWatermark {
		return State{}, false
	}

	next := min(p+r.cfg.Increment, r.cfg.HighWatermark-1)
	if next <= p {
		return State{}, false
	}
	r.phaseIdx = (r.phaseIdx + 1) % len(r.cfg.Phases)
	phase := r.cfg.Phases[r.phaseIdx]
	r.state.Percent = next
	r.state.PhaseText = phase.Text
	r.state.MethodLabel = phase.Method
	return r.state.clone(), true
}

// Apply merges an authoritative update. Text fields are overwritten; percent
// never regresses. The first update ends simulation for this epoch.
func (r *Reconciler) Apply(epoch Epoch, u Update) (State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if epoch != r.epoch || r.sealed {
		return State{}, false
	}
	if !r.authoritative {
		r.authoritative = true
		r.stopLocked()
	}

	if u.Percent != nil {
		r.state.Percent = max(r.state.Percent, clamp(*u.Percent))
	}
	r.state.PhaseText = u.PhaseText
	r.state.MethodLabel = u.MethodLabel
	r.state.EstimatedSeconds = nil
	if u.EstimatedSeconds != nil {
		v := *u.EstimatedSeconds
		r.state.EstimatedSeconds = &v
	}
	return r.state.clone(), true
}

// Complete seals epoch at 100%.
func (r *Reconciler) Complete(epoch Epoch, text, method string) (State, bool) {
	return r.finish(epoch, 100, text, method)
}

// Fail seals epoch at 0%.
func (r *Reconciler) Fail(epoch Epoch, text string) (State, bool) {
	return r.finish(epoch, 0, text, "")
}

func (r *Reconciler) finish(epoch Epoch, percent int, text, method string) (State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if epoch != r.epoch || r.sealed {
		return State{}, false
	}
	r.stopLocked()
	r.sealed = true
	r.inFlight = false
	r.state.Percent = percent
	r.state.PhaseText = text
	if method != "" || percent == 0 {
		r.state.MethodLabel = method
	}
	r.state.EstimatedSeconds = nil
	return r.state.clone(), true
}

// Snapshot returns the active epoch and a copy of its state.
func (r *Reconciler) Snapshot() (Epoch, State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.epoch, r.state.clone()
}

// Stop halts simulation without changing the epoch.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
	r.inFlight = false
}

func (r *Reconciler) stopLocked() {
	if r.stopSim != nil {
		r.stopSim()
		r.stopSim = nil
	}
}

func (r *Reconciler) simulate(ctx context.Context, epoch Epoch) {
	ticker := time.NewTicker(r.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			state, ok := r.Tick(epoch)
			if !ok {
				if r.expired(epoch) {
					return
				}
				continue
			}
			if r.sink != nil {
				r.sink(epoch, state)
			}
		}
	}
}

// expired reports whether epoch can never tick again.
func (r *Reconciler) expired(epoch Epoch) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return epoch != r.epoch || r.sealed || r.authoritative || !r.inFlight
}

func clamp(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
