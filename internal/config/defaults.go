package config

import (
	"fmt"
	"time"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.PublicURL == "" {
		cfg.Server.PublicURL = fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)
	}
	if cfg.Library.Root == "" {
		cfg.Library.Root = "/usr/local/var/pdfscope/pdfs"
	}
	if cfg.Library.Collation == "" {
		cfg.Library.Collation = "zh-Hans"
	}
	if cfg.Library.Watch == nil {
		t := true
		cfg.Library.Watch = &t
	}
	if cfg.Backend.BaseURL == "" {
		cfg.Backend.BaseURL = "http://127.0.0.1:8001"
	}
	if cfg.Backend.Timeout == 0 {
		cfg.Backend.Timeout = 10 * time.Minute
	}
	if cfg.Backend.Retries == 0 {
		cfg.Backend.Retries = 3
	}
	if cfg.OCR.DPI == 0 {
		cfg.OCR.DPI = 500
	}
	if cfg.OCR.Tile == 0 {
		cfg.OCR.Tile = 1400
	}
	if cfg.OCR.Overlap == 0 {
		cfg.OCR.Overlap = 0.12
	}
	if cfg.QA.Mode == "" {
		cfg.QA.Mode = QAModeRemote
	}
	if cfg.QA.TopK == 0 {
		cfg.QA.TopK = 80
	}
	if cfg.QA.Window == 0 {
		cfg.QA.Window = 2
	}
	if cfg.Synonyms.Suggester == "" {
		cfg.Synonyms.Suggester = SuggesterRemote
	}
	if cfg.Synonyms.CacheTTL == 0 {
		cfg.Synonyms.CacheTTL = 7 * 24 * time.Hour
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://api.deepseek.com"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "deepseek-chat"
	}
	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = "DEEPSEEK_API_KEY"
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 60 * time.Second
	}
	if cfg.Viewer.RenderStallTimeout == 0 {
		cfg.Viewer.RenderStallTimeout = 4 * time.Second
	}
	if cfg.Viewer.LoadTimeout == 0 {
		cfg.Viewer.LoadTimeout = 2500 * time.Millisecond
	}
	if cfg.Viewer.MaxLoadRetries == 0 {
		cfg.Viewer.MaxLoadRetries = 3
	}
	if cfg.Viewer.EvidenceFocusDelay == 0 {
		cfg.Viewer.EvidenceFocusDelay = 250 * time.Millisecond
	}
	if cfg.Viewer.DefaultZoom <= 0 {
		cfg.Viewer.DefaultZoom = 1.0
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/pdfscope/data/pdfscope.db"
	}
}
