// Package config provides configuration loading and structs for pdfscope.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hyperjump/pdfscope/internal/models"
)

// Config holds all configuration for the application.
type Config struct {
	Debug    bool           `yaml:"debug"`
	Server   ServerConfig   `yaml:"server"`
	Library  LibraryConfig  `yaml:"library"`
	Backend  BackendConfig  `yaml:"backend"`
	OCR      OCRConfig      `yaml:"ocr"`
	QA       QAConfig       `yaml:"qa"`
	Synonyms SynonymsConfig `yaml:"synonyms"`
	LLM      LLMConfig      `yaml:"llm"`
	Viewer   ViewerConfig   `yaml:"viewer"`
	Storage  StorageConfig  `yaml:"storage"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// PublicURL is how the OCR service reaches this server's proxy. Defaults to http://host:port.
	PublicURL string `yaml:"public_url"`
}

// Addr returns host:port.
func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LibraryConfig describes the PDF library directory.
type LibraryConfig struct {
	Root      string `yaml:"root"`
	Collation string `yaml:"collation"`
	Watch     *bool  `yaml:"watch"`
}

// WatchOrDefault returns whether to watch the library root; defaults to true when unset.
func (l *LibraryConfig) WatchOrDefault() bool {
	if l.Watch != nil {
		return *l.Watch
	}
	return true
}

// BackendConfig points at the OCR/QA service.
type BackendConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
	Retries int           `yaml:"retries"`
}

// OCRConfig holds the OCR parameters that key the page cache.
type OCRConfig struct {
	DPI     int     `yaml:"dpi"`
	Tile    int     `yaml:"tile"`
	Overlap float64 `yaml:"overlap"`
}

// Params returns the OCR parameters as a model value.
func (o OCRConfig) Params() models.OCRParams {
	return models.OCRParams{DPI: o.DPI, Tile: o.Tile, Overlap: o.Overlap}
}

// QA modes.
const (
	QAModeRemote = "remote"
	QAModeLocal  = "local"
)

// QAConfig selects the question answerer and its retrieval defaults.
type QAConfig struct {
	Mode   string `yaml:"mode"`
	TopK   int    `yaml:"top_k"`
	Window int    `yaml:"window"`
}

// Suggester kinds.
const (
	SuggesterRemote = "remote"
	SuggesterLLM    = "llm"
	SuggesterNone   = "none"
)

// SynonymsConfig controls query expansion.
type SynonymsConfig struct {
	DictionaryPath string        `yaml:"dictionary_path"`
	Suggester      string        `yaml:"suggester"`
	CacheTTL       time.Duration `yaml:"cache_ttl"`
}

// LLMConfig describes an OpenAI-compatible chat endpoint.
type LLMConfig struct {
	BaseURL   string        `yaml:"base_url"`
	Model     string        `yaml:"model"`
	APIKeyEnv string        `yaml:"api_key_env"`
	Timeout   time.Duration `yaml:"timeout"`
}

// APIKey reads the key from the configured environment variable.
func (l *LLMConfig) APIKey() string {
	return os.Getenv(l.APIKeyEnv)
}

// ViewerConfig holds view synchronizer and session timings.
type ViewerConfig struct {
	RenderStallTimeout time.Duration `yaml:"render_stall_timeout"`
	LoadTimeout        time.Duration `yaml:"load_timeout"`
	MaxLoadRetries     int           `yaml:"max_load_retries"`
	EvidenceFocusDelay time.Duration `yaml:"evidence_focus_delay"`
	DefaultZoom        float64       `yaml:"default_zoom"`
}

// StorageConfig holds the database path.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// Load reads and parses the config file at path, applies defaults and expands paths.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Library.Root = expandPath(cfg.Library.Root, configDir)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	if cfg.Synonyms.DictionaryPath != "" {
		cfg.Synonyms.DictionaryPath = expandPath(cfg.Synonyms.DictionaryPath, configDir)
	}

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
