package viewsync

import "github.com/hyperjump/pdfscope/internal/models"

// Event is an input to the state machine.
type Event interface{ isEvent() }

// Open starts a new document instantiation. Epoch is the caller's tag for the document;
// navigations carrying another non-zero epoch are dropped.
type Open struct {
	DocID  string
	Source string
	Epoch  uint64
}

// Close ends the session.
type Close struct{}

// Reload forces a fresh renderer instantiation for the current document.
type Reload struct{}

// Navigate requests a page. A non-zero Epoch must match the epoch of the open document.
type Navigate struct {
	Page  int
	Epoch uint64
}

// ZoomChanged sets the render scale.
type ZoomChanged struct {
	Zoom float64
}

// DocumentLoaded reports a successful document load.
type DocumentLoaded struct {
	Gen      uint64
	NumPages int
}

// DocumentLoadFailed reports a load or source error.
type DocumentLoadFailed struct {
	Gen uint64
	Err error
}

// RenderCompleted reports a finished page render and its measured CSS size. Seq is the
// sequence number of the StartRender it answers.
type RenderCompleted struct {
	Gen  uint64
	Seq  uint64
	Page int
	Size models.Size
}

// RenderFailed reports a page render error.
type RenderFailed struct {
	Gen  uint64
	Seq  uint64
	Page int
	Err  error
}

// StallTimeout fires when a render did not report back in time.
type StallTimeout struct {
	Gen uint64
	Seq uint64
}

// LoadTimeout fires when a document did not finish loading in time.
type LoadTimeout struct {
	Gen uint64
}

func (Open) isEvent()               {}
func (Close) isEvent()              {}
func (Reload) isEvent()             {}
func (Navigate) isEvent()           {}
func (ZoomChanged) isEvent()        {}
func (DocumentLoaded) isEvent()     {}
func (DocumentLoadFailed) isEvent() {}
func (RenderCompleted) isEvent()    {}
func (RenderFailed) isEvent()       {}
func (StallTimeout) isEvent()       {}
func (LoadTimeout) isEvent()        {}

// TimerKind names a watchdog.
type TimerKind int

const (
	// TimerRenderStall guards an in-flight render.
	TimerRenderStall TimerKind = iota
	// TimerDocumentLoad guards a document load.
	TimerDocumentLoad
)

// String returns a string representation of the timer kind.
func (k TimerKind) String() string {
	switch k {
	case TimerRenderStall:
		return "render_stall"
	case TimerDocumentLoad:
		return "document_load"
	default:
		return "unknown"
	}
}

// Effect is an action the runtime performs after a transition.
type Effect interface{ isEffect() }

// Reinstantiate tears down the renderer and loads Source into a fresh one tagged with Gen.
type Reinstantiate struct {
	Gen    uint64
	DocID  string
	Source string
}

// StartRender asks the renderer to render Page at Zoom.
type StartRender struct {
	Gen  uint64
	Seq  uint64
	Page int
	Zoom float64
}

// ScheduleTimer arms a watchdog, replacing any armed timer of the same kind.
type ScheduleTimer struct {
	Timer TimerKind
	Gen   uint64
	Seq   uint64
}

// CancelTimer disarms a watchdog.
type CancelTimer struct {
	Timer TimerKind
}

// ReadinessChanged reports that a page became ready or its size changed.
type ReadinessChanged struct {
	Gen  uint64
	Page int
	Size models.Size
}

// RenderStalled reports that the stall watchdog force-unlocked a render.
type RenderStalled struct {
	Gen  uint64
	Page int
}

// LoadAbandoned reports that the load watchdog exhausted its retries.
type LoadAbandoned struct {
	Gen      uint64
	Attempts int
}

// Teardown releases the renderer.
type Teardown struct{}

func (Reinstantiate) isEffect()    {}
func (StartRender) isEffect()      {}
func (ScheduleTimer) isEffect()    {}
func (CancelTimer) isEffect()      {}
func (ReadinessChanged) isEffect() {}
func (RenderStalled) isEffect()    {}
func (LoadAbandoned) isEffect()    {}
func (Teardown) isEffect()         {}
