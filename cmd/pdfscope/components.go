package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/pdfscope/internal/backend"
	"github.com/hyperjump/pdfscope/internal/config"
	"github.com/hyperjump/pdfscope/internal/fileserver"
	"github.com/hyperjump/pdfscope/internal/inventory"
	"github.com/hyperjump/pdfscope/internal/llm"
	"github.com/hyperjump/pdfscope/internal/qa"
	"github.com/hyperjump/pdfscope/internal/render"
	"github.com/hyperjump/pdfscope/internal/storage"
	"github.com/hyperjump/pdfscope/internal/suggest"
	"github.com/hyperjump/pdfscope/internal/synonyms"
	"github.com/hyperjump/pdfscope/internal/viewer"
	"github.com/hyperjump/pdfscope/internal/viewsync"
)

// Components holds the wired application services.
type Components struct {
	Config    *config.Config
	Logger    *zap.Logger
	Storage   *storage.SQLiteStorage
	Inventory *inventory.Inventory
	Files     *fileserver.Handler
	Backend   *backend.Client
	LLM       *llm.Client
	Expander  *synonyms.Expander
	Answerer  viewer.Answerer
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, debugMode bool) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	invOpts := []inventory.Option{inventory.WithCollation(cfg.Library.Collation)}
	if debugMode {
		invOpts = append(invOpts, inventory.WithLogger(logger))
	}
	inv := inventory.New(cfg.Library.Root, invOpts...)
	if err := inv.Refresh(context.Background()); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to scan library: %w", err)
	}

	client := backend.New(cfg.Backend.BaseURL,
		backend.WithTimeout(cfg.Backend.Timeout),
		backend.WithRetries(cfg.Backend.Retries),
		backend.WithLogger(logger),
	)
	chat := llm.New(llm.Config{
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		APIKey:  cfg.LLM.APIKey(),
		Timeout: cfg.LLM.Timeout,
	}, logger)

	expander, err := newExpander(cfg, store, client, chat, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	var answerer viewer.Answerer = viewer.RemoteAnswerer{Client: client}
	if cfg.QA.Mode == config.QAModeLocal {
		answerer = viewer.LocalAnswerer{Engine: qa.NewEngine(chat, logger)}
	}

	return &Components{
		Config:    cfg,
		Logger:    logger,
		Storage:   store,
		Inventory: inv,
		Files:     fileserver.New(cfg.Library.Root, logger, fileserver.WithNames(inv)),
		Backend:   client,
		LLM:       chat,
		Expander:  expander,
		Answerer:  answerer,
	}, nil
}

// newExpander builds the query expander: the built-in dictionary plus the configured file, and
// the configured suggester behind the persistent suggestion cache.
func newExpander(cfg *config.Config, store *storage.SQLiteStorage, client *backend.Client, chat *llm.Client, logger *zap.Logger) (*synonyms.Expander, error) {
	dict := synonyms.DefaultDictionary()
	if cfg.Synonyms.DictionaryPath != "" {
		loaded, err := synonyms.LoadDictionary(cfg.Synonyms.DictionaryPath, dict)
		if err != nil {
			return nil, err
		}
		dict = loaded
	}

	var next synonyms.Suggester
	switch cfg.Synonyms.Suggester {
	case config.SuggesterRemote:
		next = client
	case config.SuggesterLLM:
		params := cfg.OCR.Params()
		vocab := func(ctx context.Context, docName string) []string {
			idx, err := store.LoadPages(ctx, docName, params)
			if err != nil {
				return nil
			}
			return suggest.Vocabulary(idx)
		}
		next = suggest.NewLLMSuggester(chat, vocab, logger)
	}

	opts := []synonyms.ExpanderOption{synonyms.WithLogger(logger)}
	if next != nil {
		cached := suggest.NewCached(next, store, cfg.Synonyms.CacheTTL, suggest.WithLogger(logger))
		opts = append(opts, synonyms.WithSuggester(cached))
	}
	return synonyms.NewExpander(dict, opts...), nil
}

// NewSession creates a viewer session backed by its own view synchronizer. Client-rendered
// sessions get no local renderer. The returned function stops the synchronizer.
func (c *Components) NewSession(mode render.Mode) (*viewer.Session, func()) {
	vc := c.Config.Viewer
	factory := render.NewFactory(c.Files.Load, c.Logger)
	if mode == render.ModeClient {
		factory = render.NewExternalFactory()
	}
	view := viewsync.New(viewsync.Config{
		RenderStallTimeout: vc.RenderStallTimeout,
		LoadTimeout:        vc.LoadTimeout,
		MaxLoadRetries:     vc.MaxLoadRetries,
		DefaultZoom:        vc.DefaultZoom,
	}, factory, viewsync.WithLogger(c.Logger), viewsync.WithObserver(phaseLogger(c.Logger)))
	ctx, cancel := context.WithCancel(context.Background())
	view.Start(ctx)

	sess := viewer.New(viewer.Config{
		OCR:        c.Config.OCR.Params(),
		TopK:       c.Config.QA.TopK,
		Window:     c.Config.QA.Window,
		FocusDelay: vc.EvidenceFocusDelay,
		PublicURL:  c.Config.Server.PublicURL,
	}, viewer.Deps{
		View:     view,
		Docs:     c.Inventory,
		Expander: c.Expander,
		OCR:      c.Backend,
		Store:    c.Storage,
		Answerer: c.Answerer,
	}, viewer.WithLogger(c.Logger))
	return sess, func() {
		cancel()
		view.Stop()
	}
}

// phaseLogger logs view phase changes. It runs on the synchronizer's event loop only.
func phaseLogger(logger *zap.Logger) viewsync.Observer {
	last := viewsync.PhaseUninitialized
	return func(st viewsync.State, _ []viewsync.Effect) {
		if st.Phase == last {
			return
		}
		logger.Debug("view phase", zap.Stringer("from", last), zap.Stringer("to", st.Phase),
			zap.String("doc", st.DocID), zap.Uint64("gen", st.Gen))
		last = st.Phase
	}
}

// Close releases the storage handle.
func (c *Components) Close() {
	if c.Storage != nil {
		if err := c.Storage.Close(); err != nil {
			c.Logger.Warn("storage close failed", zap.Error(err))
		}
	}
}
