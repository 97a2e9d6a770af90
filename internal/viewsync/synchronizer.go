package viewsync

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultRenderStallTimeout = 4 * time.Second
	defaultLoadTimeout        = 2500 * time.Millisecond
	defaultMaxLoadRetries     = 3
	eventBuffer               = 256
)

// ErrStopped is returned when a command is sent to a stopped synchronizer.
var ErrStopped = errors.New("view synchronizer stopped")

// Sink receives renderer callbacks. It never blocks the caller for long and is safe to call
// from any goroutine, including after the synchronizer stopped.
type Sink func(Event)

// Renderer loads documents and renders pages. Open and Render must return promptly and
// report results through sink, tagged with the generation (and render sequence) they were
// called with.
type Renderer interface {
	Open(gen uint64, source string, sink Sink)
	Render(gen, seq uint64, page int, zoom float64, sink Sink)
	Close()
}

// RendererFactory creates a fresh renderer for every instantiation.
type RendererFactory func() Renderer

// Timer is a stoppable pending callback.
type Timer interface {
	Stop() bool
}

// Clock schedules watchdog callbacks.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Config holds the watchdog settings of a Synchronizer.
type Config struct {
	RenderStallTimeout time.Duration
	LoadTimeout        time.Duration
	MaxLoadRetries     int
	DefaultZoom        float64
}

// Observer is notified on the event loop after every transition with a copy of the state
// and the effects it produced. Observers must not call Do.
type Observer func(State, []Effect)

// Synchronizer runs a Machine on a single goroutine and performs its effects.
type Synchronizer struct {
	cfg      Config
	factory  RendererFactory
	renderer Renderer
	clock    Clock
	logger   *zap.Logger
	machine  *Machine
	timers   map[TimerKind]Timer
	events   chan envelope
	done     chan struct{}

	mu        sync.RWMutex
	snapshot  State
	observers []Observer
	started   bool
	stopOnce  sync.Once
}

// barrier is a no-op event.
type barrier struct{}

func (barrier) isEvent() {}

type envelope struct {
	ev    Event
	reply chan State
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithLogger sets a logger for render and watchdog diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(s *Synchronizer) { s.logger = l }
}

// WithClock replaces the wall clock used by the watchdogs.
func WithClock(c Clock) Option {
	return func(s *Synchronizer) { s.clock = c }
}

// WithObserver registers a transition observer.
func WithObserver(o Observer) Option {
	return func(s *Synchronizer) { s.observers = append(s.observers, o) }
}

// New creates a synchronizer. Zero fields in cfg take their defaults.
func New(cfg Config, factory RendererFactory, opts ...Option) *Synchronizer {
	if cfg.RenderStallTimeout <= 0 {
		cfg.RenderStallTimeout = defaultRenderStallTimeout
	}
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = defaultLoadTimeout
	}
	if cfg.MaxLoadRetries <= 0 {
		cfg.MaxLoadRetries = defaultMaxLoadRetries
	}
	s := &Synchronizer{
		cfg:     cfg,
		factory: factory,
		clock:   realClock{},
		logger:  zap.NewNop(),
		machine: NewMachine(cfg.DefaultZoom, Limits{MaxLoadRetries: cfg.MaxLoadRetries}),
		timers:  make(map[TimerKind]Timer),
		events:  make(chan envelope, eventBuffer),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.snapshot = s.machine.State().Clone()
	return s
}

// Start runs the event loop until ctx is cancelled or Stop is called.
func (s *Synchronizer) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()
	go s.run(ctx)
}

// Stop ends the event loop and releases the renderer.
func (s *Synchronizer) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
}

func (s *Synchronizer) run(ctx context.Context) {
	defer s.shutdown()
	for {
		select {
		case <-ctx.Done():
			s.Stop()
			return
		case <-s.done:
			return
		case env := <-s.events:
			select {
			case <-s.done:
				return
			default:
			}
			st := s.handle(env.ev)
			if env.reply != nil {
				env.reply <- st
			}
		}
	}
}

func (s *Synchronizer) shutdown() {
	for kind, t := range s.timers {
		t.Stop()
		delete(s.timers, kind)
	}
	if s.renderer != nil {
		s.renderer.Close()
		s.renderer = nil
	}
}

func (s *Synchronizer) handle(ev Event) State {
	effects := s.machine.Apply(ev)
	for _, fx := range effects {
		s.perform(fx)
	}
	st := s.machine.State().Clone()
	s.mu.Lock()
	s.snapshot = st
	observers := append([]Observer(nil), s.observers...)
	s.mu.Unlock()
	for _, o := range observers {
		o(st.Clone(), effects)
	}
	return st
}

func (s *Synchronizer) perform(fx Effect) {
	switch e := fx.(type) {
	case Reinstantiate:
		if s.renderer != nil {
			s.renderer.Close()
		}
		s.renderer = s.factory()
		s.logger.Debug("renderer instantiated", zap.Uint64("gen", e.Gen), zap.String("doc", e.DocID))
		s.renderer.Open(e.Gen, e.Source, s.Post)
	case StartRender:
		if s.renderer == nil {
			return
		}
		s.logger.Debug("render start", zap.Uint64("gen", e.Gen), zap.Int("page", e.Page), zap.Float64("zoom", e.Zoom))
		s.renderer.Render(e.Gen, e.Seq, e.Page, e.Zoom, s.Post)
	case ScheduleTimer:
		s.cancel(e.Timer)
		var d time.Duration
		var fire Event
		switch e.Timer {
		case TimerRenderStall:
			d, fire = s.cfg.RenderStallTimeout, StallTimeout{Gen: e.Gen, Seq: e.Seq}
		case TimerDocumentLoad:
			d, fire = s.cfg.LoadTimeout, LoadTimeout{Gen: e.Gen}
		default:
			return
		}
		s.timers[e.Timer] = s.clock.AfterFunc(d, func() { s.Post(fire) })
	case CancelTimer:
		s.cancel(e.Timer)
	case ReadinessChanged:
		s.logger.Debug("page ready", zap.Int("page", e.Page), zap.Float64("width", e.Size.W), zap.Float64("height", e.Size.H))
	case RenderStalled:
		s.logger.Warn("render stalled, lock released", zap.Uint64("gen", e.Gen), zap.Int("page", e.Page))
	case LoadAbandoned:
		s.logger.Warn("document load failed", zap.Uint64("gen", e.Gen), zap.Int("retries", e.Attempts))
	case Teardown:
		if s.renderer != nil {
			s.renderer.Close()
			s.renderer = nil
		}
	}
}

func (s *Synchronizer) cancel(kind TimerKind) {
	if t, ok := s.timers[kind]; ok {
		t.Stop()
		delete(s.timers, kind)
	}
}

// Post enqueues an event without waiting for it to be applied. Events posted after Stop are
// dropped.
func (s *Synchronizer) Post(ev Event) {
	select {
	case s.events <- envelope{ev: ev}:
	case <-s.done:
	}
}

// Do applies ev and returns the resulting state. Everything posted before ev has been
// applied when Do returns.
func (s *Synchronizer) Do(ctx context.Context, ev Event) (State, error) {
	select {
	case <-s.done:
		return State{}, ErrStopped
	default:
	}
	reply := make(chan State, 1)
	select {
	case s.events <- envelope{ev: ev, reply: reply}:
	case <-s.done:
		return State{}, ErrStopped
	case <-ctx.Done():
		return State{}, ctx.Err()
	}
	select {
	case st := <-reply:
		return st, nil
	case <-s.done:
		return State{}, ErrStopped
	case <-ctx.Done():
		return State{}, ctx.Err()
	}
}

// Sync waits until every previously posted event has been applied and returns the state.
func (s *Synchronizer) Sync(ctx context.Context) (State, error) {
	return s.Do(ctx, barrier{})
}

// Open loads a new document tagged with epoch, resetting the view.
func (s *Synchronizer) Open(ctx context.Context, epoch uint64, docID, source string) (State, error) {
	return s.Do(ctx, Open{DocID: docID, Source: source, Epoch: epoch})
}

// Navigate requests a page. The request is clamped and serialized behind any render.
func (s *Synchronizer) Navigate(ctx context.Context, page int) (State, error) {
	return s.Do(ctx, Navigate{Page: page})
}

// Jump requests a page computed for the document opened under epoch. It is dropped when
// another document has been opened since.
func (s *Synchronizer) Jump(ctx context.Context, epoch uint64, page int) (State, error) {
	return s.Do(ctx, Navigate{Page: page, Epoch: epoch})
}

// SetZoom changes the render scale and re-renders the current page.
func (s *Synchronizer) SetZoom(ctx context.Context, zoom float64) (State, error) {
	return s.Do(ctx, ZoomChanged{Zoom: zoom})
}

// Reload forces a fresh renderer instantiation.
func (s *Synchronizer) Reload(ctx context.Context) (State, error) {
	return s.Do(ctx, Reload{})
}

// Close ends the document session and releases the renderer.
func (s *Synchronizer) Close(ctx context.Context) (State, error) {
	return s.Do(ctx, Close{})
}

// Snapshot returns a copy of the state after the last applied event.
func (s *Synchronizer) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.Clone()
}
