package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/pdfscope/internal/backend"
	"github.com/hyperjump/pdfscope/internal/models"
	"github.com/hyperjump/pdfscope/internal/render"
	"github.com/hyperjump/pdfscope/internal/viewer"
	"github.com/hyperjump/pdfscope/internal/viewsync"
)

type documentRequest struct {
	Document string `json:"document"`
}

type createSessionRequest struct {
	Document string `json:"document"`
	// Renderer is "server" (default) or "client".
	Renderer string `json:"renderer"`
}

type navigateRequest struct {
	Page int `json:"page"`
}

type zoomRequest struct {
	Zoom float64 `json:"zoom"`
}

type ocrRequest struct {
	Force bool  `json:"force"`
	Pages []int `json:"pages,omitempty"`
}

// eventRequest is a renderer outcome reported by a client-side renderer.
type eventRequest struct {
	Type     string  `json:"type"`
	Gen      uint64  `json:"gen"`
	Seq      uint64  `json:"seq,omitempty"`
	NumPages int     `json:"num_pages,omitempty"`
	Page     int     `json:"page,omitempty"`
	Width    float64 `json:"width,omitempty"`
	Height   float64 `json:"height,omitempty"`
	Error    string  `json:"error,omitempty"`
}

var errUnknownEvent = errors.New("unknown event type")

func (e *eventRequest) event() (viewsync.Event, error) {
	switch e.Type {
	case "loaded":
		return viewsync.DocumentLoaded{Gen: e.Gen, NumPages: e.NumPages}, nil
	case "load_failed":
		return viewsync.DocumentLoadFailed{Gen: e.Gen, Err: errors.New(e.Error)}, nil
	case "rendered":
		return viewsync.RenderCompleted{Gen: e.Gen, Seq: e.Seq, Page: e.Page, Size: models.Size{W: e.Width, H: e.Height}}, nil
	case "render_failed":
		return viewsync.RenderFailed{Gen: e.Gen, Seq: e.Seq, Page: e.Page, Err: errors.New(e.Error)}, nil
	}
	return nil, errUnknownEvent
}

type sessionResponse struct {
	ID       string      `json:"id"`
	Renderer render.Mode `json:"renderer"`
	*viewer.Snapshot
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListPDFs(w http.ResponseWriter, r *http.Request) {
	items := s.library.List()
	if items == nil {
		items = []models.Document{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"documents": len(s.library.List()),
		"sessions":  s.sessions.Len(),
	}
	if s.storage != nil {
		ctx := r.Context()
		if n, err := s.storage.CountDocuments(ctx); err == nil {
			resp["ocr_documents"] = n
		}
		if n, err := s.storage.CountPages(ctx); err == nil {
			resp["ocr_pages"] = n
		}
		if n, err := s.storage.SizeBytes(); err == nil {
			resp["disk_usage_bytes"] = n
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	mode, err := render.ParseMode(req.Renderer)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, sess := s.sessions.Create(mode)
	s.logger.Debug("session created", zap.String("session", id), zap.String("document", req.Document), zap.String("renderer", string(mode)))
	if req.Document == "" {
		s.respondJSON(w, http.StatusCreated, sessionResponse{ID: id, Renderer: mode, Snapshot: sess.Snapshot()})
		return
	}
	snap, err := sess.Open(r.Context(), req.Document)
	if err != nil {
		s.sessions.Delete(id)
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, sessionResponse{ID: id, Renderer: mode, Snapshot: snap})
}

// session resolves the {id} route parameter, answering 404 when it is unknown.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*viewer.Session, bool) {
	sess, ok := s.sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		s.respondError(w, http.StatusNotFound, "session not found")
	}
	return sess, ok
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.sessions.Delete(id) {
		s.respondError(w, http.StatusNotFound, "session not found")
		return
	}
	s.logger.Debug("session deleted", zap.String("session", id))
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req documentRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.reply(w)(sess.Open(r.Context(), req.Document))
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req navigateRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.reply(w)(sess.Navigate(r.Context(), req.Page))
}

func (s *Server) handleZoom(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req zoomRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Zoom <= 0 {
		s.respondError(w, http.StatusBadRequest, "zoom must be positive")
		return
	}
	s.reply(w)(sess.SetZoom(r.Context(), req.Zoom))
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	s.reply(w)(sess.Reload(r.Context()))
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if mode, _ := s.sessions.Mode(chi.URLParam(r, "id")); mode != render.ModeClient {
		s.respondError(w, http.StatusConflict, "session is rendered by the server")
		return
	}
	var req eventRequest
	if !s.decode(w, r, &req) {
		return
	}
	ev, err := req.event()
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.reply(w)(sess.Report(r.Context(), ev))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var query models.SearchQuery
	if !s.decode(w, r, &query) {
		return
	}
	s.logger.Debug("search request", zap.String("query", query.Query), zap.Bool("enhance", query.Enhance))
	s.reply(w)(sess.Search(r.Context(), query))
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	s.reply(w)(sess.Next(r.Context()))
}

func (s *Server) handlePrev(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	s.reply(w)(sess.Prev(r.Context()))
}

func (s *Server) handleOCR(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req ocrRequest
	if r.ContentLength != 0 && !s.decode(w, r, &req) {
		return
	}
	s.reply(w)(sess.RunOCR(r.Context(), req.Force, req.Pages))
}

func (s *Server) handleQA(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req models.QARequest
	if !s.decode(w, r, &req) {
		return
	}
	s.reply(w)(sess.Ask(r.Context(), req))
}

func (s *Server) handleLocateEvidence(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid evidence index")
		return
	}
	s.reply(w)(sess.LocateEvidence(r.Context(), i))
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// reply writes a snapshot or maps the error to a status.
func (s *Server) reply(w http.ResponseWriter) func(*viewer.Snapshot, error) {
	return func(snap *viewer.Snapshot, err error) {
		if err != nil {
			s.respondErr(w, err)
			return
		}
		s.respondJSON(w, http.StatusOK, snap)
	}
}

// statusOf maps domain errors to HTTP statuses: validation to 400, missing to 404 and an
// unreachable backend to 502.
func statusOf(err error) int {
	switch {
	case errors.Is(err, models.ErrEmptyQuery),
		errors.Is(err, models.ErrEmptyQuestion),
		errors.Is(err, models.ErrOCRRequired),
		errors.Is(err, models.ErrNoDocument):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound), errors.Is(err, backend.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, backend.ErrUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, viewer.ErrStale):
		return http.StatusConflict
	case errors.Is(err, viewsync.ErrStopped):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) respondErr(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	} else {
		s.logger.Debug("request rejected", zap.Int("status", status), zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
