package viewsync

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hyperjump/pdfscope/internal/models"
)

type fakeRenderer struct {
	id  int
	rec *recorder
}

type renderCall struct {
	renderer int
	gen      uint64
	seq      uint64
	page     int
	zoom     float64
	sink     Sink
}

type recorder struct {
	mu      sync.Mutex
	created int
	closed  []int
	opens   []renderCall
	renders []renderCall
}

func (r *recorder) factory() Renderer {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created++
	return &fakeRenderer{id: r.created, rec: r}
}

func (f *fakeRenderer) Open(gen uint64, source string, sink Sink) {
	f.rec.mu.Lock()
	f.rec.opens = append(f.rec.opens, renderCall{renderer: f.id, gen: gen, sink: sink})
	f.rec.mu.Unlock()
}

func (f *fakeRenderer) Render(gen, seq uint64, page int, zoom float64, sink Sink) {
	f.rec.mu.Lock()
	f.rec.renders = append(f.rec.renders, renderCall{renderer: f.id, gen: gen, seq: seq, page: page, zoom: zoom, sink: sink})
	f.rec.mu.Unlock()
}

func (f *fakeRenderer) Close() {
	f.rec.mu.Lock()
	f.rec.closed = append(f.rec.closed, f.id)
	f.rec.mu.Unlock()
}

func (r *recorder) lastOpen(t *testing.T) renderCall {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.opens) == 0 {
		t.Fatal("renderer never opened")
	}
	return r.opens[len(r.opens)-1]
}

func (r *recorder) renderCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.renders)
}

type fakeTimer struct {
	clock   *fakeClock
	d       time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

// fire runs every armed timer with duration d.
func (c *fakeClock) fire(d time.Duration) int {
	c.mu.Lock()
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && t.d == d {
			t.stopped = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	for _, t := range due {
		t.f()
	}
	return len(due)
}

func newTestSynchronizer(t *testing.T, opts ...Option) (*Synchronizer, *recorder, *fakeClock) {
	t.Helper()
	rec := &recorder{}
	clock := &fakeClock{}
	cfg := Config{RenderStallTimeout: 4 * time.Second, LoadTimeout: 2500 * time.Millisecond, MaxLoadRetries: 2, DefaultZoom: 1}
	s := New(cfg, rec.factory, append([]Option{WithClock(clock)}, opts...)...)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		s.Stop()
	})
	s.Start(ctx)
	return s, rec, clock
}

// settle waits until every event posted so far has been applied.
func settle(t *testing.T, s *Synchronizer) State {
	t.Helper()
	st, err := s.Sync(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return st
}

func TestSynchronizer_LoadAndRender(t *testing.T) {
	s, rec, _ := newTestSynchronizer(t)
	ctx := context.Background()

	if _, err := s.Open(ctx, 1, "0", "/docs/a.pdf"); err != nil {
		t.Fatal(err)
	}
	open := rec.lastOpen(t)
	open.sink(DocumentLoaded{Gen: open.gen, NumPages: 5})
	st, err := s.Navigate(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if st.Phase != PhaseReady || st.NumPages != 5 || st.PageNumber != 1 || st.QueuedJump != 3 {
		t.Fatalf("state = %+v", st)
	}
	if rec.renderCount() != 1 {
		t.Fatalf("renders = %d, want 1", rec.renderCount())
	}

	rec.mu.Lock()
	first := rec.renders[0]
	rec.mu.Unlock()
	first.sink(RenderCompleted{Gen: first.gen, Seq: first.seq, Page: 1, Size: models.Size{W: 600, H: 800}})
	st = settle(t, s)
	if st.PageNumber != 3 || !st.Rendering || rec.renderCount() != 2 {
		t.Errorf("after completion: state = %+v, renders = %d", st, rec.renderCount())
	}
	if snap := s.Snapshot(); snap.PageNumber != 3 {
		t.Errorf("Snapshot().PageNumber = %d", snap.PageNumber)
	}
}

func TestSynchronizer_StallWatchdog(t *testing.T) {
	s, rec, clock := newTestSynchronizer(t)
	ctx := context.Background()
	s.Open(ctx, 1, "0", "/a.pdf")
	open := rec.lastOpen(t)
	open.sink(DocumentLoaded{Gen: open.gen, NumPages: 5})
	s.Navigate(ctx, 4)

	if n := clock.fire(4 * time.Second); n != 1 {
		t.Fatalf("fired %d stall timers, want 1", n)
	}
	st := settle(t, s)
	if st.PageNumber != 4 || st.RenderingPage != 4 {
		t.Errorf("queued jump not rendered after stall: %+v", st)
	}
}

func TestSynchronizer_LoadWatchdogRecreatesRenderer(t *testing.T) {
	s, rec, clock := newTestSynchronizer(t)
	ctx := context.Background()
	s.Open(ctx, 1, "0", "/a.pdf")

	for i := 0; i < 2; i++ {
		if n := clock.fire(2500 * time.Millisecond); n != 1 {
			t.Fatalf("round %d: fired %d load timers", i, n)
		}
		settle(t, s)
	}
	rec.mu.Lock()
	created, closed := rec.created, len(rec.closed)
	rec.mu.Unlock()
	if created != 3 || closed != 2 {
		t.Errorf("created %d closed %d, want 3 and 2", created, closed)
	}

	clock.fire(2500 * time.Millisecond)
	st := settle(t, s)
	if st.Phase != PhaseLoadFailed {
		t.Errorf("Phase = %s, want load_failed", st.Phase)
	}
}

func TestSynchronizer_ObserverAndStop(t *testing.T) {
	var mu sync.Mutex
	var phases []Phase
	s, _, _ := newTestSynchronizer(t, WithObserver(func(st State, _ []Effect) {
		mu.Lock()
		phases = append(phases, st.Phase)
		mu.Unlock()
	}))
	ctx := context.Background()
	s.Open(ctx, 1, "0", "/a.pdf")
	s.Close(ctx)

	mu.Lock()
	got := append([]Phase(nil), phases...)
	mu.Unlock()
	if len(got) != 2 || got[0] != PhaseLoading || got[1] != PhaseClosed {
		t.Errorf("observed phases = %v", got)
	}

	s.Stop()
	if _, err := s.Navigate(ctx, 2); err != ErrStopped {
		t.Errorf("Navigate after Stop err = %v, want ErrStopped", err)
	}
	s.Post(Navigate{Page: 1})
}

func TestSynchronizer_JumpFromPreviousDocumentDropped(t *testing.T) {
	s, rec, _ := newTestSynchronizer(t)
	ctx := context.Background()
	s.Open(ctx, 1, "0", "/a.pdf")
	s.Open(ctx, 2, "1", "/b.pdf")

	if st, _ := s.Jump(ctx, 1, 3); st.QueuedJump != 0 {
		t.Fatalf("jump for the previous document queued: %+v", st)
	}
	if st, _ := s.Jump(ctx, 2, 4); st.QueuedJump != 4 {
		t.Fatalf("jump for the open document lost: %+v", st)
	}
	open := rec.lastOpen(t)
	open.sink(DocumentLoaded{Gen: open.gen, NumPages: 5})
	if st := settle(t, s); st.PageNumber != 4 || st.Epoch != 2 {
		t.Errorf("state = %+v", st)
	}
}
