// Package main is the pdfscope CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/pdfscope/internal/backend"
	"github.com/hyperjump/pdfscope/internal/cli"
	"github.com/hyperjump/pdfscope/internal/config"
	"github.com/hyperjump/pdfscope/internal/models"
	"github.com/hyperjump/pdfscope/internal/render"
	"github.com/hyperjump/pdfscope/internal/server"
	"github.com/hyperjump/pdfscope/internal/storage"
	"github.com/hyperjump/pdfscope/internal/viewer"
	"github.com/hyperjump/pdfscope/internal/watcher"
	"github.com/hyperjump/pdfscope/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/pdfscope/config.yaml"

// loadConfig loads config from path. When path is the default, config.yaml in the current
// directory takes precedence so "pdfscope server" from a project dir uses the project's config.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "list":
		runList()
	case "search":
		runSearch()
	case "ocr":
		runOCR()
	case "ask":
		runAsk()
	case "stats":
		runStats()
	case "version", "--version", "-v":
		fmt.Printf("pdfscope version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (library changes, render and watchdog events)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
		zap.String("library", cfg.Library.Root),
	)

	components, err := initializeComponents(cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if cfg.Library.WatchOrDefault() {
		inv := components.Inventory
		watchOpts := []watcher.Option{}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		watchSvc := watcher.New(cfg.Library.Root, []string{".pdf"}, func(paths []string) {
			if err := inv.Refresh(context.Background()); err != nil {
				logger.Warn("library refresh failed", zap.Error(err))
				return
			}
			logger.Info("library refreshed", zap.Int("changed", len(paths)), zap.Int("documents", len(inv.List())))
		}, watchOpts...)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Warn("library watch disabled", zap.String("root", cfg.Library.Root), zap.Error(err))
		} else {
			defer watchSvc.Stop()
		}
	}

	sessions := server.NewSessions(components.NewSession)
	srv := server.NewServer(
		components.Inventory,
		components.Files,
		sessions,
		components.Storage,
		&cfg.Server,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// setup loads config and components for the one-shot commands. Fatal errors exit.
func setup(configPath string) *Components {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := utils.Must(utils.NewLogger(cfg.Debug))
	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	return components
}

// openSession opens doc in a fresh session. The returned function closes it.
func openSession(ctx context.Context, c *Components, doc string) (*viewer.Session, func()) {
	sess, release := c.NewSession(render.ModeServer)
	if _, err := sess.Open(ctx, doc); err != nil {
		release()
		fmt.Fprintf(os.Stderr, "Open failed: %v\n", err)
		os.Exit(1)
	}
	return sess, func() {
		_ = sess.Close(context.Background())
		release()
	}
}

func parseOutput(s string) cli.OutputFormat {
	format, err := cli.ParseFormat(s)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return format
}

func runList() {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := parseOutput(*outputFormat)

	components := setup(*configPath)
	defer components.Close()
	if err := cli.WriteDocuments(os.Stdout, components.Inventory.List(), format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// printSearchUsage prints search subcommand usage.
func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: pdfscope search [flags] <document> <query>\n\n")
	fmt.Fprintf(fs.Output(), "Document is an id, file name or name without extension. The query is all remaining\narguments joined by spaces.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Search runs over the document's OCR index; run "pdfscope ocr <document>" first.
  • Use --enhance to ask the synonym suggester for more terms.
  • Use --limit to cap the number of printed hits.

Examples:
  pdfscope search 0 主继电器
  pdfscope search wiring "APS 电路" -limit 5
  pdfscope search --enhance wiring 油门踏板
`)
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchConfigPathFromArgs returns the value of -config/--config from args if present, else defaultPath.
func searchConfigPathFromArgs(args []string, defaultPath string) string {
	for i, a := range args {
		if (a == "-config" || a == "--config") && i+1 < len(args) {
			return args[i+1]
		}
	}
	return defaultPath
}

// searchEnhanceDefaultFromConfig reports whether --enhance defaults to on: true when a
// suggester is configured. On load failure it returns false.
func searchEnhanceDefaultFromConfig(path string) bool {
	cfg, _, err := loadConfig(path)
	if err != nil || cfg == nil {
		return false
	}
	return cfg.Synonyms.Suggester != config.SuggesterNone
}

// searchArgsReorder moves any flags (and their values) that appear after the positionals
// to the front of the slice so that flag.Parse() sees them. Go's flag package stops at the
// first non-flag argument.
func searchArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func runSearch() {
	searchArgs := searchArgsReorder(os.Args[2:])
	configPath := searchConfigPathFromArgs(searchArgs, defaultConfigPath)

	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPathFlag := fs.String("config", defaultConfigPath, "config file path")
	enhance := fs.Bool("enhance", searchEnhanceDefaultFromConfig(configPath), "expand the query with suggested synonyms")
	limit := fs.Int("limit", 20, "number of hits to print (0 = all)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgs)

	if fs.NArg() < 2 {
		printSearchUsage(fs)
		os.Exit(1)
	}
	doc := fs.Arg(0)
	queryStr := buildSearchQuery(fs.Args()[1:])
	if queryStr == "" {
		printSearchUsage(fs)
		os.Exit(1)
	}
	format := parseOutput(*outputFormat)

	components := setup(*configPathFlag)
	defer components.Close()
	ctx := context.Background()
	sess, closeSession := openSession(ctx, components, doc)
	defer closeSession()

	snap, err := sess.Search(ctx, models.SearchQuery{Query: queryStr, Enhance: *enhance})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	hits := snap.Hits
	if *limit > 0 && len(hits) > *limit {
		hits = hits[:*limit]
	}
	res := &cli.SearchResult{Document: snap.Document.Locator(), Query: queryStr, Terms: snap.Terms, Hits: hits}
	if err := cli.WriteSearchResult(os.Stdout, res, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// parsePages parses a comma-separated list of 1-based page numbers. Empty input means all pages.
func parsePages(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var pages []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid page %q", part)
		}
		pages = append(pages, n)
	}
	return pages, nil
}

func runOCR() {
	fs := flag.NewFlagSet("ocr", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	force := fs.Bool("force", false, "ignore the OCR service cache")
	pagesFlag := fs.String("pages", "", "comma-separated pages to OCR (empty = all)")
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))
	if fs.NArg() < 1 {
		fmt.Println("Usage: pdfscope ocr [flags] <document>")
		os.Exit(1)
	}
	pages, err := parsePages(*pagesFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	components := setup(*configPath)
	defer components.Close()
	ctx := context.Background()
	sess, closeSession := openSession(ctx, components, fs.Arg(0))
	defer closeSession()

	snap, err := sess.RunOCR(ctx, *force, pages)
	if err != nil {
		fmt.Fprintf(os.Stderr, "OCR failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("OCR indexed %d page(s) of %s\n", snap.OCRPages, snap.Document.Locator())
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	topK := fs.Int("top-k", 0, "maximum pages retrieved as context (0 = config default)")
	window := fs.Int("window", -1, "neighbour lines kept around each match (-1 = config default)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))
	if fs.NArg() < 2 {
		fmt.Println("Usage: pdfscope ask [flags] <document> <question>")
		os.Exit(1)
	}
	question := buildSearchQuery(fs.Args()[1:])
	format := parseOutput(*outputFormat)

	components := setup(*configPath)
	defer components.Close()
	req := models.QARequest{Question: question, TopK: *topK, Window: components.Config.QA.Window}
	if *window >= 0 {
		req.Window = *window
	}
	ctx := context.Background()
	sess, closeSession := openSession(ctx, components, fs.Arg(0))
	defer closeSession()

	snap, err := sess.Ask(ctx, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteAnswer(os.Stdout, snap.Answer, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runStats() {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))
	if fs.NArg() < 1 {
		fmt.Println("Usage: pdfscope stats [flags] <document>")
		os.Exit(1)
	}
	format := parseOutput(*outputFormat)

	components := setup(*configPath)
	defer components.Close()
	doc, err := components.Inventory.Resolve(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Stats failed: %v\n", err)
		os.Exit(1)
	}
	ctx := context.Background()
	locator := doc.Locator()
	params := components.Config.OCR.Params()
	stats := &cli.Stats{Document: locator}

	remote, err := components.Backend.CacheStats(ctx, locator, params)
	switch {
	case err == nil:
		stats.Remote = remote
	case !errors.Is(err, backend.ErrNotFound):
		components.Logger.Warn("remote cache stats unavailable", zap.Error(err))
	}
	local, err := components.Storage.PageStats(ctx, locator, params)
	switch {
	case err == nil:
		stats.Local = local
	case !errors.Is(err, storage.ErrNotFound):
		components.Logger.Warn("local cache stats unavailable", zap.Error(err))
	}

	if err := cli.WriteStats(os.Stdout, stats, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`pdfscope - PDF viewer with OCR search and document QA

Usage:
  pdfscope <command> [flags]

Commands:
  server    Start the HTTP server
  list      List PDFs in the library
  search    Search a document's OCR text
  ocr       Run OCR on a document
  ask       Ask a question about a document
  stats     Show OCR cache statistics for a document
  version   Show version
  help      Show this help

Use "pdfscope <command> -h" for command flags.`)
}
