package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
library:
  root: "./pdfs"
  watch: false
viewer:
  render_stall_timeout: 6s
  load_timeout: 1500ms
qa:
  mode: local
storage:
  database_path: "test.db"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Server.PublicURL != "http://127.0.0.1:9000" {
		t.Errorf("public_url = %s", cfg.Server.PublicURL)
	}
	if cfg.Library.Root != filepath.Join(dir, "pdfs") {
		t.Errorf("library root = %s", cfg.Library.Root)
	}
	if cfg.Library.WatchOrDefault() {
		t.Error("watch should be false when set in config")
	}
	if cfg.Viewer.RenderStallTimeout != 6*time.Second || cfg.Viewer.LoadTimeout != 1500*time.Millisecond {
		t.Errorf("viewer timeouts = %+v", cfg.Viewer)
	}
	if cfg.QA.Mode != QAModeLocal {
		t.Errorf("qa mode = %s", cfg.QA.Mode)
	}
	if cfg.Storage.DatabasePath == "" {
		t.Error("database_path should be set")
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_debugTrue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("debug: true\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
storage:
  database_path: "./data/pdfscope.db"
synonyms:
  dictionary_path: "./synonyms.yaml"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	wantDB := filepath.Join(dir, "data", "pdfscope.db")
	if cfg.Storage.DatabasePath != wantDB {
		t.Errorf("database_path = %s, want %s", cfg.Storage.DatabasePath, wantDB)
	}
	wantDict := filepath.Join(dir, "synonyms.yaml")
	if cfg.Synonyms.DictionaryPath != wantDict {
		t.Errorf("dictionary_path = %s, want %s", cfg.Synonyms.DictionaryPath, wantDict)
	}
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	tests := []struct {
		name string
		got  any
		want any
	}{
		{"host", cfg.Server.Host, "localhost"},
		{"port", cfg.Server.Port, 8000},
		{"collation", cfg.Library.Collation, "zh-Hans"},
		{"dpi", cfg.OCR.DPI, 500},
		{"tile", cfg.OCR.Tile, 1400},
		{"overlap", cfg.OCR.Overlap, 0.12},
		{"qa mode", cfg.QA.Mode, QAModeRemote},
		{"top_k", cfg.QA.TopK, 80},
		{"window", cfg.QA.Window, 2},
		{"suggester", cfg.Synonyms.Suggester, SuggesterRemote},
		{"cache_ttl", cfg.Synonyms.CacheTTL, 168 * time.Hour},
		{"stall", cfg.Viewer.RenderStallTimeout, 4 * time.Second},
		{"load", cfg.Viewer.LoadTimeout, 2500 * time.Millisecond},
		{"retries", cfg.Viewer.MaxLoadRetries, 3},
		{"focus", cfg.Viewer.EvidenceFocusDelay, 250 * time.Millisecond},
		{"zoom", cfg.Viewer.DefaultZoom, 1.0},
		{"model", cfg.LLM.Model, "deepseek-chat"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("default %s: got %v, want %v", tt.name, tt.got, tt.want)
		}
	}
	if !cfg.Library.WatchOrDefault() {
		t.Error("watch should default to true")
	}
	if p := cfg.OCR.Params(); p.DPI != 500 || p.Tile != 1400 {
		t.Errorf("Params() = %+v", p)
	}
}

func TestLibraryConfig_WatchOrDefault(t *testing.T) {
	t.Run("nil_returns_true", func(t *testing.T) {
		l := &LibraryConfig{}
		if got := l.WatchOrDefault(); !got {
			t.Errorf("WatchOrDefault() = %v, want true", got)
		}
	})
	t.Run("false_returns_false", func(t *testing.T) {
		f := false
		l := &LibraryConfig{Watch: &f}
		if got := l.WatchOrDefault(); got {
			t.Errorf("WatchOrDefault() = %v, want false", got)
		}
	})
}

func TestLLMConfig_APIKey(t *testing.T) {
	t.Setenv("PDFSCOPE_TEST_KEY", "sk-test")
	l := &LLMConfig{APIKeyEnv: "PDFSCOPE_TEST_KEY"}
	if got := l.APIKey(); got != "sk-test" {
		t.Errorf("APIKey() = %q", got)
	}
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.yaml")
	cfg := &Config{
		Server:  ServerConfig{Host: "localhost", Port: 9090},
		Viewer:  ViewerConfig{LoadTimeout: 3 * time.Second},
		Storage: StorageConfig{DatabasePath: "/tmp/db"},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
	if loaded.Viewer.LoadTimeout != 3*time.Second {
		t.Errorf("loaded load_timeout: got %v", loaded.Viewer.LoadTimeout)
	}
}
