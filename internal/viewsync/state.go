// Package viewsync owns the current-page view of a document and keeps it consistent under
// asynchronous navigation, zoom and renderer events.
//
// All transitions go through Machine.Apply, which consumes one typed Event and returns the
// Effects the runtime must perform. Synchronizer runs a Machine on a single event loop.
package viewsync

import "github.com/hyperjump/pdfscope/internal/models"

// Phase is the lifecycle phase of one document instantiation.
type Phase int

const (
	// PhaseUninitialized means no document has been opened.
	PhaseUninitialized Phase = iota
	// PhaseLoading means the renderer is loading the document.
	PhaseLoading
	// PhaseReady means the document reported its page count; pages can render.
	PhaseReady
	// PhaseLoadFailed means the load watchdog gave up re-instantiating the renderer.
	PhaseLoadFailed
	// PhaseClosed means the session ended.
	PhaseClosed
)

// String returns a string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	case PhaseLoadFailed:
		return "load_failed"
	case PhaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// State is the view state of the active document. Zero-valued page slots mean "empty".
type State struct {
	// Gen is the instantiation counter; renderer callbacks carry it and stale ones are dropped.
	Gen    uint64 `json:"gen"`
	DocID  string `json:"doc_id"`
	Source string `json:"source"`
	Phase  Phase  `json:"phase"`
	// Epoch is the caller's tag of the open document, kept across re-instantiations.
	Epoch uint64 `json:"epoch,omitempty"`

	PageNumber int     `json:"page_number"`
	Zoom       float64 `json:"zoom"`
	NumPages   int     `json:"num_pages"`

	Rendering     bool   `json:"rendering"`
	RenderingPage int    `json:"rendering_page,omitempty"`
	RenderSeq     uint64 `json:"render_seq"`

	PendingPage int `json:"pending_page,omitempty"`
	QueuedJump  int `json:"queued_jump,omitempty"`

	// LoadAttempts counts forced re-instantiations since the last successful load.
	LoadAttempts int `json:"load_attempts,omitempty"`

	// Ready holds pages whose last render completed. Cleared on every render start.
	Ready map[int]bool `json:"-"`
	// Sizes caches the measured rendered size per page at the current zoom.
	Sizes map[int]models.Size `json:"-"`
}

func newState(zoom float64) State {
	return State{
		Phase:      PhaseUninitialized,
		PageNumber: 1,
		Zoom:       zoom,
		Ready:      make(map[int]bool),
		Sizes:      make(map[int]models.Size),
	}
}

// Clamp limits p to [1, max(NumPages, 1)].
func (s *State) Clamp(p int) int {
	upper := s.NumPages
	if upper < 1 {
		upper = 1
	}
	if p < 1 {
		return 1
	}
	if p > upper {
		return upper
	}
	return p
}

// clampTarget clamps a navigation target. Before the page count is known only the lower
// bound applies, so early jumps keep their intent until the drain clamps them.
func (s *State) clampTarget(p int) int {
	if s.NumPages == 0 {
		if p < 1 {
			return 1
		}
		return p
	}
	return s.Clamp(p)
}

// DocReady reports whether the document has loaded.
func (s *State) DocReady() bool {
	return s.Phase == PhaseReady
}

// Idle reports whether the document is loaded and no render is in flight.
func (s *State) Idle() bool {
	return s.DocReady() && !s.Rendering
}

// PageReady reports whether overlays may be drawn on page p.
func (s *State) PageReady(p int) bool {
	return s.Ready[p] && s.Sizes[p].Known()
}

// CurrentSize returns the cached rendered size of the displayed page.
func (s *State) CurrentSize() models.Size {
	return s.Sizes[s.PageNumber]
}

// Clone returns a deep copy safe to hand to other goroutines.
func (s *State) Clone() State {
	out := *s
	out.Ready = make(map[int]bool, len(s.Ready))
	for k, v := range s.Ready {
		out.Ready[k] = v
	}
	out.Sizes = make(map[int]models.Size, len(s.Sizes))
	for k, v := range s.Sizes {
		out.Sizes[k] = v
	}
	return out
}
