package viewsync

import (
	"math"

	"github.com/hyperjump/pdfscope/internal/models"
)

// Limits bounds the watchdog behaviour of a Machine.
type Limits struct {
	// MaxLoadRetries is the number of forced re-instantiations before giving up. Zero
	// retries forever.
	MaxLoadRetries int
}

// Machine is the view state machine. It is not safe for concurrent use; Synchronizer
// serializes access to it.
type Machine struct {
	state  State
	limits Limits
	fx     []Effect
}

// NewMachine returns a machine with no document and the given initial zoom.
func NewMachine(zoom float64, limits Limits) *Machine {
	if zoom <= 0 || math.IsNaN(zoom) || math.IsInf(zoom, 0) {
		zoom = 1
	}
	return &Machine{state: newState(zoom), limits: limits}
}

// State returns the live state. Callers outside the event loop must Clone it.
func (m *Machine) State() *State {
	return &m.state
}

// Apply consumes one event and returns the effects to perform, in order.
// Events tagged with a stale generation are ignored and yield no effects.
func (m *Machine) Apply(ev Event) []Effect {
	m.fx = nil
	s := &m.state

	switch e := ev.(type) {
	case Open:
		s.DocID, s.Source, s.Epoch = e.DocID, e.Source, e.Epoch
		m.instantiate(true)

	case Reload:
		if s.Phase == PhaseUninitialized || s.Phase == PhaseClosed {
			break
		}
		m.instantiate(false)

	case Close:
		if s.Phase == PhaseClosed {
			break
		}
		gen := s.Gen + 1
		*s = newState(s.Zoom)
		s.Gen = gen
		s.Phase = PhaseClosed
		m.emit(CancelTimer{Timer: TimerRenderStall}, CancelTimer{Timer: TimerDocumentLoad}, Teardown{})

	case DocumentLoaded:
		if e.Gen != s.Gen || s.Phase != PhaseLoading {
			break
		}
		s.NumPages = max(e.NumPages, 0)
		s.Phase = PhaseReady
		s.LoadAttempts = 0
		s.PageNumber = s.Clamp(s.PageNumber)
		m.emit(CancelTimer{Timer: TimerDocumentLoad})
		if s.PendingPage == 0 && s.QueuedJump == 0 {
			s.PendingPage = s.PageNumber
		}
		m.drain()

	case DocumentLoadFailed:
		// The load watchdog decides whether to retry.

	case LoadTimeout:
		if e.Gen != s.Gen || s.Phase != PhaseLoading {
			break
		}
		s.LoadAttempts++
		if m.limits.MaxLoadRetries > 0 && s.LoadAttempts > m.limits.MaxLoadRetries {
			s.Phase = PhaseLoadFailed
			m.emit(CancelTimer{Timer: TimerDocumentLoad}, LoadAbandoned{Gen: s.Gen, Attempts: s.LoadAttempts - 1})
			break
		}
		attempts := s.LoadAttempts
		m.instantiate(false)
		s.LoadAttempts = attempts

	case Navigate:
		if s.Phase == PhaseUninitialized || s.Phase == PhaseClosed {
			break
		}
		if e.Epoch != 0 && e.Epoch != s.Epoch {
			break
		}
		m.request(e.Page)

	case ZoomChanged:
		z := e.Zoom
		if z <= 0 || math.IsNaN(z) || math.IsInf(z, 0) || z == s.Zoom {
			break
		}
		s.Zoom = z
		s.Sizes = make(map[int]models.Size)
		s.Ready = make(map[int]bool)
		if s.DocReady() {
			m.request(s.PageNumber)
		}

	case RenderCompleted:
		// A completion from an earlier render (stalled, or at another zoom) is dropped.
		if e.Gen != s.Gen || e.Seq != s.RenderSeq || s.Phase != PhaseReady {
			break
		}
		prev, had := s.Sizes[e.Page]
		changed := !had || prev != e.Size
		if e.Size.Known() && changed {
			s.Sizes[e.Page] = e.Size
		}
		if !s.Ready[e.Page] || changed {
			s.Ready[e.Page] = true
			m.emit(ReadinessChanged{Gen: s.Gen, Page: e.Page, Size: e.Size})
		}
		m.unlock(e.Page)
		m.drain()

	case RenderFailed:
		if e.Gen != s.Gen || e.Seq != s.RenderSeq || s.Phase != PhaseReady {
			break
		}
		m.unlock(e.Page)
		m.drain()

	case StallTimeout:
		if e.Gen != s.Gen || e.Seq != s.RenderSeq || !s.Rendering {
			break
		}
		page := s.RenderingPage
		s.Rendering = false
		s.RenderingPage = 0
		m.emit(RenderStalled{Gen: s.Gen, Page: page})
		m.drain()
	}

	return m.fx
}

func (m *Machine) emit(fx ...Effect) {
	m.fx = append(m.fx, fx...)
}

// instantiate bumps the generation and asks for a fresh renderer. A new document resets
// the page position; a forced reload queues the intended target (or the current page) so
// the page number stays within the unknown page count until the load reports.
func (m *Machine) instantiate(fresh bool) {
	s := &m.state
	s.Gen++
	switch {
	case fresh:
		s.QueuedJump = 0
	case s.PendingPage != 0:
		s.QueuedJump = s.PendingPage
	case s.QueuedJump == 0 && s.PageNumber > 1:
		s.QueuedJump = s.PageNumber
	}
	s.PageNumber = 1
	s.Phase = PhaseLoading
	s.NumPages = 0
	s.Rendering = false
	s.RenderingPage = 0
	s.PendingPage = 0
	s.LoadAttempts = 0
	s.Ready = make(map[int]bool)
	s.Sizes = make(map[int]models.Size)
	m.emit(
		CancelTimer{Timer: TimerRenderStall},
		CancelTimer{Timer: TimerDocumentLoad},
		Reinstantiate{Gen: s.Gen, DocID: s.DocID, Source: s.Source},
		ScheduleTimer{Timer: TimerDocumentLoad, Gen: s.Gen},
	)
}

// request routes a navigation target through the render lock.
func (m *Machine) request(page int) {
	s := &m.state
	if s.Idle() {
		s.PendingPage = s.Clamp(page)
	} else {
		s.QueuedJump = s.clampTarget(page)
	}
	m.drain()
}

// unlock releases the render lock if page is the one in flight.
func (m *Machine) unlock(page int) {
	s := &m.state
	if !s.Rendering || page != s.RenderingPage {
		return
	}
	s.Rendering = false
	s.RenderingPage = 0
	m.emit(CancelTimer{Timer: TimerRenderStall})
}

// drain promotes pending and queued targets while the document is idle. Pending wins; a
// queued jump moves into pending only when pending is empty.
func (m *Machine) drain() {
	s := &m.state
	for s.Idle() {
		switch {
		case s.PendingPage != 0:
			page := s.Clamp(s.PendingPage)
			s.PendingPage = 0
			s.PageNumber = page
			s.Rendering = true
			s.RenderingPage = page
			s.RenderSeq++
			s.Ready = make(map[int]bool)
			m.emit(
				StartRender{Gen: s.Gen, Seq: s.RenderSeq, Page: page, Zoom: s.Zoom},
				ScheduleTimer{Timer: TimerRenderStall, Gen: s.Gen, Seq: s.RenderSeq},
			)
			return
		case s.QueuedJump != 0:
			s.PendingPage = s.Clamp(s.QueuedJump)
			s.QueuedJump = 0
		default:
			return
		}
	}
}
