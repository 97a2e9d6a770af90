// Package server provides the HTTP API for pdfscope.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/pdfscope/internal/config"
	"github.com/hyperjump/pdfscope/internal/fileserver"
	"github.com/hyperjump/pdfscope/internal/models"
	"github.com/hyperjump/pdfscope/internal/storage"
)

// Library lists the documents of the PDF library and resolves route segments.
type Library interface {
	List() []models.Document
	Resolve(segment string) (models.Document, error)
}

// Server is the HTTP server for the pdfscope API.
type Server struct {
	library  Library
	files    http.Handler
	sessions *Sessions
	storage  storage.Storage
	config   *config.ServerConfig
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies. store may be nil.
func NewServer(
	library Library,
	files http.Handler,
	sessions *Sessions,
	store storage.Storage,
	cfg *config.ServerConfig,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		library:  library,
		files:    files,
		sessions: sessions,
		storage:  store,
		config:   cfg,
		logger:   logger,
	}
}

// Router returns the HTTP handler with every route mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/api/pdfs", s.handleListPDFs)
	r.Method(http.MethodGet, fileserver.Route, s.files)
	r.Method(http.MethodHead, fileserver.Route, s.files)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(10 * time.Minute))
		r.Get("/stats", s.handleStats)
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.handleCreateSession)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetSession)
				r.Delete("/", s.handleDeleteSession)
				r.Post("/open", s.handleOpen)
				r.Post("/navigate", s.handleNavigate)
				r.Post("/zoom", s.handleZoom)
				r.Post("/reload", s.handleReload)
				r.Post("/events", s.handleEvent)
				r.Post("/search", s.handleSearch)
				r.Post("/next", s.handleNext)
				r.Post("/prev", s.handlePrev)
				r.Post("/ocr", s.handleOCR)
				r.Post("/qa", s.handleQA)
				r.Post("/evidence/{index}", s.handleLocateEvidence)
			})
		})
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := s.config.Addr()
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server and closes every session.
func (s *Server) Stop(ctx context.Context) error {
	s.sessions.CloseAll()
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
