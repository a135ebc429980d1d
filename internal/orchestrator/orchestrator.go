// Package orchestrator drives one summary submission at a time through
// validation, transport dispatch and progress reconciliation to exactly one
// terminal state.
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MimeLyc/yt-summary/internal/failure"
	"github.com/MimeLyc/yt-summary/internal/progress"
	"github.com/MimeLyc/yt-summary/internal/transport"
	"github.com/MimeLyc/yt-summary/internal/videoid"
	"github.com/MimeLyc/yt-summary/pkg/log"
)

var (
	ErrClosed     = errors.New("orchestrator closed")
	ErrBusy       = errors.New("submission in flight")
	ErrSuperseded = errors.New("submission superseded")
)

// SuccessText is the phase text shown once a summary arrives.
const SuccessText = "Summary ready"

// Resolver picks the backend endpoint for the current environment.
type Resolver interface {
	Resolve(env transport.Environment) transport.Endpoint
}

// Poster issues the blocking summarize calls.
type Poster interface {
	Summarize(ctx context.Context, baseURL, requestID, rawURL string) (*transport.SummaryResponse, error)
	SummarizeJob(ctx context.Context, baseURL, requestID, jobID, rawURL string) (*transport.SummaryResponse, error)
}

// Dialer opens the streaming progress channel.
type Dialer interface {
	Open(ctx context.Context, streamURL, requestID string) (transport.Stream, error)
}

// BlockingRoute selects which blocking endpoint is called.
type BlockingRoute string

const (
	RouteSummarize BlockingRoute = "summarize"
	RouteJob       BlockingRoute = "job"
)

type Option func(*Orchestrator)

func WithEnvironment(env transport.Environment) Option {
	return func(o *Orchestrator) {
		o.env = env
	}
}

func WithProgressConfig(cfg progress.Config) Option {
	return func(o *Orchestrator) {
		o.progressCfg = cfg
	}
}

func WithBlockingRoute(route BlockingRoute) Option {
	return func(o *Orchestrator) {
		if route != "" {
			o.route = route
		}
	}
}

func WithClassifier(c *failure.Classifier) Option {
	return func(o *Orchestrator) {
		if c != nil {
			o.classifier = c
		}
	}
}

func WithEventBus(bus *EventBus) Option {
	return func(o *Orchestrator) {
		if bus != nil {
			o.events = bus
		}
	}
}

// WithRequestIDFunc replaces the UUID generator, mostly for tests.
func WithRequestIDFunc(fn func() string) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.newID = fn
		}
	}
}

type submission struct {
	epoch     progress.Epoch
	input     string
	jobID     string
	requestID string
	endpoint  transport.Endpoint

	cancel   context.CancelFunc
	stream   transport.Stream
	done     chan struct{}
	final    Snapshot
	finished bool
}

// Orchestrator owns lifecycle state. Lock order is o.mu before the
// reconciler's lock.
type Orchestrator struct {
	resolver    Resolver
	poster      Poster
	dialer      Dialer
	env         transport.Environment
	route       BlockingRoute
	classifier  *failure.Classifier
	events      *EventBus
	newID       func() string
	progressCfg progress.Config
	reconciler  *progress.Reconciler

	mu      sync.Mutex
	current Snapshot
	sub     *submission
	closed  bool
	wg      sync.WaitGroup
}

func New(resolver Resolver, poster Poster, dialer Dialer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		resolver:    resolver,
		poster:      poster,
		dialer:      dialer,
		route:       RouteSummarize,
		classifier:  failure.NewClassifier(),
		newID:       uuid.NewString,
		progressCfg: progress.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.events == nil {
		o.events = NewEventBus(0)
	}
	o.reconciler = progress.NewReconciler(o.progressCfg, o.onTick)
	o.current = Snapshot{State: StateIdle}
	return o
}

// Events exposes the snapshot history and subscriptions.
func (o *Orchestrator) Events() *EventBus {
	return o.events
}

// Snapshot returns a copy of the current state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current.clone()
}

// Submit abandons any live submission and starts a new one for input. The
// returned snapshot is either dispatching or, for unrecognized input, failed.
func (o *Orchestrator) Submit(input string) (Snapshot, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return Snapshot{}, ErrClosed
	}
	o.abandonLocked()

	epoch := o.reconciler.Reset()
	sub := &submission{
		epoch:     epoch,
		input:     input,
		requestID: o.newID(),
		done:      make(chan struct{}),
	}
	o.sub = sub
	o.current = Snapshot{
		Epoch:     epoch,
		State:     o.current.State,
		Input:     input,
		RequestID: sub.requestID,
	}
	o.transitionLocked(StateValidating)

	jobID, err := videoid.Extract(input)
	if err != nil {
		o.failLocked(sub, err)
		return o.current.clone(), nil
	}
	sub.jobID = jobID
	sub.endpoint = o.resolver.Resolve(o.env)

	o.current.JobID = jobID
	o.current.Transport = sub.endpoint.Kind
	o.current.BackendURL = sub.endpoint.BaseURL
	if st, ok := o.reconciler.Start(epoch); ok {
		o.current.Progress = st
	}
	o.transitionLocked(StateDispatching)

	ctx, cancel := context.WithCancel(context.Background())
	sub.cancel = cancel
	o.wg.Add(1)
	go o.run(ctx, sub)

	return o.current.clone(), nil
}

// Wait blocks until the submission with epoch reaches a terminal state. It
// returns ErrSuperseded when a newer submission or Close abandons it first.
func (o *Orchestrator) Wait(ctx context.Context, epoch progress.Epoch) (Snapshot, error) {
	o.mu.Lock()
	sub := o.sub
	o.mu.Unlock()

	if sub == nil || sub.epoch != epoch {
		return Snapshot{}, ErrSuperseded
	}

	select {
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case <-sub.done:
	}

	o.mu.Lock()
	final := sub.final.clone()
	o.mu.Unlock()
	if !final.State.Terminal() {
		return final, ErrSuperseded
	}
	return final, nil
}

// Reset returns a terminal orchestrator to idle.
func (o *Orchestrator) Reset() (Snapshot, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return Snapshot{}, ErrClosed
	}
	if o.current.State.InFlight() {
		return o.current.clone(), ErrBusy
	}
	o.abandonLocked()
	return o.current.clone(), nil
}

// Close tears down the live submission and waits for its goroutine.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	if o.sub != nil {
		o.finishLocked(o.sub)
	}
	if o.current.State.InFlight() {
		o.transitionLocked(StateIdle)
	}
	o.mu.Unlock()

	o.reconciler.Stop()
	o.wg.Wait()
	return nil
}

func (o *Orchestrator) run(ctx context.Context, sub *submission) {
	defer o.wg.Done()

	if sub.endpoint.Kind == transport.KindStream {
		o.runStream(ctx, sub)
		return
	}
	o.runBlocking(ctx, sub)
}

func (o *Orchestrator) runStream(ctx context.Context, sub *submission) {
	streamURL := sub.endpoint.StreamURL(sub.jobID)
	log.Debug("Opening progress stream %s (request %s)", streamURL, sub.requestID)

	stream, err := o.dialer.Open(ctx, streamURL, sub.requestID)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		o.failEpoch(sub, failure.Wrap(err, failure.TransportFailure, ""))
		return
	}

	o.mu.Lock()
	if !o.activeLocked(sub) {
		o.mu.Unlock()
		_ = stream.Close()
		return
	}
	sub.stream = stream
	o.transitionLocked(StateStreaming)
	o.mu.Unlock()

	for {
		msg, err := stream.Next()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			o.failEpoch(sub, failure.Wrap(err, failure.TransportFailure, ""))
			return
		}
		if o.handleMessage(sub, msg) {
			return
		}
	}
}

func (o *Orchestrator) runBlocking(ctx context.Context, sub *submission) {
	o.mu.Lock()
	if !o.activeLocked(sub) {
		o.mu.Unlock()
		return
	}
	o.transitionLocked(StateWaiting)
	o.mu.Unlock()

	var (
		resp *transport.SummaryResponse
		err  error
	)
	switch o.route {
	case RouteJob:
		resp, err = o.poster.SummarizeJob(ctx, sub.endpoint.BaseURL, sub.requestID, sub.jobID, sub.input)
	default:
		resp, err = o.poster.Summarize(ctx, sub.endpoint.BaseURL, sub.requestID, sub.input)
	}
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		o.failEpoch(sub, o.classifyTransportError(err))
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.activeLocked(sub) {
		return
	}
	switch {
	case resp.Summary != "":
		o.completeLocked(sub, buildResult(resp.Summary, resp.Method, resp.Language, resp.Duration))
	case resp.Error != "":
		o.failLocked(sub, o.classifier.FromDetail(resp.Error))
	default:
		o.failLocked(sub, failure.New(failure.Unknown, "response carried neither summary nor error"))
	}
}

// classifyTransportError maps a blocking call failure. A server detail is
// classified; one the table does not recognize stays a transport failure.
func (o *Orchestrator) classifyTransportError(err error) *failure.Error {
	var statusErr *transport.StatusError
	if errors.As(err, &statusErr) && statusErr.Detail != "" {
		category := o.classifier.Classify(statusErr.Detail)
		if category == failure.Unknown {
			category = failure.TransportFailure
		}
		return failure.Wrap(err, category, statusErr.Detail)
	}
	return failure.Wrap(err, failure.TransportFailure, "")
}

// handleMessage applies one stream frame and reports whether reading stops.
func (o *Orchestrator) handleMessage(sub *submission, msg transport.Message) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.activeLocked(sub) {
		return true
	}

	if msg.Terminal() {
		if msg.Summary != "" {
			o.completeLocked(sub, buildResult(msg.Summary, msg.Method, msg.Language, nil))
		} else {
			o.failLocked(sub, o.classifier.FromDetail(msg.Error))
		}
		return true
	}

	if msg.Progress == nil && msg.Text == "" && msg.Method == "" {
		return false
	}
	update := progress.Update{
		PhaseText:        msg.Text,
		MethodLabel:      msg.Method,
		EstimatedSeconds: msg.EstimatedSeconds(),
	}
	if p, ok := msg.Percent(); ok {
		update.Percent = &p
	}
	o.applyLocked(sub, update)
	return false
}

func (o *Orchestrator) applyLocked(sub *submission, u progress.Update) {
	st, ok := o.reconciler.Apply(sub.epoch, u)
	if !ok {
		return
	}
	o.current.Progress = st
	o.publishLocked()
}

// onTick receives simulated progress. It runs on the simulator goroutine
// without the reconciler lock, so it re-reads the reconciler to avoid
// publishing a value an authoritative update already overtook.
func (o *Orchestrator) onTick(epoch progress.Epoch, _ progress.State) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.sub == nil || o.sub.epoch != epoch || !o.current.State.InFlight() {
		return
	}
	current, st := o.reconciler.Snapshot()
	if current != epoch {
		return
	}
	o.current.Progress = st
	o.publishLocked()
}

func (o *Orchestrator) failEpoch(sub *submission, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.activeLocked(sub) {
		return
	}
	o.failLocked(sub, err)
}

func (o *Orchestrator) completeLocked(sub *submission, res Result) {
	if st, ok := o.reconciler.Complete(sub.epoch, SuccessText, res.Method); ok {
		o.current.Progress = st
	}
	o.current.Result = &res
	o.current.Failure = nil
	log.Info("Summary ready for %s (method=%s, language=%s)", sub.jobID, res.Method, res.Language)
	o.transitionLocked(StateCompleted)
	o.finishLocked(sub)
}

func (o *Orchestrator) failLocked(sub *submission, err error) {
	category := failure.CategoryOf(err)
	detail := ""
	var fErr *failure.Error
	if errors.As(err, &fErr) {
		detail = fErr.Detail
		if detail == "" && fErr.Cause != nil {
			detail = fErr.Cause.Error()
		}
	}

	if st, ok := o.reconciler.Fail(sub.epoch, category.Message()); ok {
		o.current.Progress = st
	}
	o.current.Result = nil
	o.current.Failure = &Failure{
		Category: category,
		Message:  category.Message(),
		Detail:   detail,
	}
	log.Warn("Submission %d failed: %v", sub.epoch, err)
	o.transitionLocked(StateFailed)
	o.finishLocked(sub)
}

// finishLocked releases the side effects of sub and wakes its waiters.
func (o *Orchestrator) finishLocked(sub *submission) {
	if sub.finished {
		return
	}
	sub.finished = true
	if sub.cancel != nil {
		sub.cancel()
	}
	if sub.stream != nil {
		_ = sub.stream.Close()
	}
	sub.final = o.current.clone()
	close(sub.done)
}

// abandonLocked tears down the live submission, if any, and returns to idle
// with the previous result cleared.
func (o *Orchestrator) abandonLocked() {
	if o.sub != nil {
		o.finishLocked(o.sub)
	}
	if o.current.State == StateIdle {
		return
	}
	o.current = Snapshot{Epoch: o.current.Epoch, State: o.current.State}
	o.transitionLocked(StateIdle)
}

func (o *Orchestrator) activeLocked(sub *submission) bool {
	return !o.closed && o.sub == sub && !sub.finished
}

func (o *Orchestrator) transitionLocked(to State) {
	from := o.current.State
	if !isValidTransition(from, to) {
		log.Error("Rejected transition %s -> %s (epoch %d)", from, to, o.current.Epoch)
		return
	}
	o.current.State = to
	log.Debug("Submission %d: %s -> %s", o.current.Epoch, from, to)
	o.publishLocked()
}

func (o *Orchestrator) publishLocked() {
	o.current.UpdatedAt = time.Now().UTC()
	published := o.events.Publish(o.current.clone())
	o.current.Seq = published.Seq
}
