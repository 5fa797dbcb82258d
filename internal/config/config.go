package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all omnichat configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Gemini API configuration
	Gemini GeminiConfig `yaml:"gemini"`

	// Web search configuration
	Search SearchConfig `yaml:"search"`

	// Live voice/video mode
	Live LiveConfig `yaml:"live"`

	// Media attachments
	Media MediaConfig `yaml:"media"`

	// Context window management
	Memory MemoryConfig `yaml:"memory"`

	// Storage paths
	Storage StorageConfig `yaml:"storage"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// GeminiConfig configures the Gemini client.
type GeminiConfig struct {
	APIKey          string  `yaml:"api_key"`
	Model           string  `yaml:"model"`
	BaseURL         string  `yaml:"base_url"`
	Timeout         string  `yaml:"timeout"`
	MaxOutputTokens int     `yaml:"max_output_tokens"`
	Temperature     float64 `yaml:"temperature"`
}

// SearchConfig configures the SearXNG client and page reader.
type SearchConfig struct {
	BaseURL        string `yaml:"base_url"`
	MaxResults     int    `yaml:"max_results"`
	FetchTimeout   string `yaml:"fetch_timeout"`
	UserAgent      string `yaml:"user_agent"`
	RenderFallback bool   `yaml:"render_fallback"` // headless browser for JS-only pages
}

// LiveConfig configures the live audio/video loop.
type LiveConfig struct {
	SampleRate       int    `yaml:"sample_rate"`       // capture rate, Hz
	PlaybackRate     int    `yaml:"playback_rate"`     // reply audio rate, Hz
	Channels         int    `yaml:"channels"`
	Chunk            int    `yaml:"chunk"`             // samples per capture read
	SilenceThreshold int    `yaml:"silence_threshold"` // mean abs amplitude
	SilenceDuration  string `yaml:"silence_duration"`  // quiet time that ends an utterance
	FrameInterval    string `yaml:"frame_interval"`
	FrameWidth       int    `yaml:"frame_width"`
	FrameHeight      int    `yaml:"frame_height"`
	JPEGQuality      int    `yaml:"jpeg_quality"`
	Voice            string `yaml:"voice"`
	SpeakReplies     bool   `yaml:"speak_replies"`
}

// MediaConfig configures attachment handling.
type MediaConfig struct {
	MaxFileBytes    int64 `yaml:"max_file_bytes"`
	MaxPayloadBytes int64 `yaml:"max_payload_bytes"`
	InboxEnabled    bool  `yaml:"inbox_enabled"`
}

// MemoryConfig configures context window management.
type MemoryConfig struct {
	MaxContextTokens   int     `yaml:"max_context_tokens"`
	SummarizeThreshold int     `yaml:"summarize_threshold"`
	HardLimit          int     `yaml:"hard_limit"`
	SummarizeFraction  float64 `yaml:"summarize_fraction"`
	PreviewChars       int     `yaml:"preview_chars"`
}

// StorageConfig configures on-disk layout.
type StorageConfig struct {
	DataDir      string `yaml:"data_dir"`
	DatabaseFile string `yaml:"database_file"`
	MediaDir     string `yaml:"media_dir"`
}

// LoggingConfig mirrors what internal/logging reads from config.yaml.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"`
	JSONFormat bool            `yaml:"json_format"`
}

// ============================================================================
// Model catalog
// ============================================================================

// Model identifiers accepted by the Gemini API.
const (
	ModelFlashExp     = "gemini-2.0-flash-exp"
	ModelThinkingExp  = "gemini-2.0-flash-thinking-exp-1219"
	ModelFlash15      = "gemini-1.5-flash"
	ModelFlash15Small = "gemini-1.5-flash-8b"
)

// ValidModels lists all supported Gemini models.
var ValidModels = []string{ModelFlashExp, ModelThinkingExp, ModelFlash15, ModelFlash15Small}

// DescribeModel returns a short human-readable description for the picker.
func DescribeModel(model string) string {
	switch model {
	case ModelFlashExp:
		return "Fast experimental model, multimodal, default"
	case ModelThinkingExp:
		return "Experimental reasoning model, slower but more thorough"
	case ModelFlash15:
		return "Stable general-purpose model"
	case ModelFlash15Small:
		return "Lightweight model for quick answers"
	default:
		return "Unknown model"
	}
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "omnichat",
		Version: "0.3.0",

		Gemini: GeminiConfig{
			Model:           ModelFlashExp,
			BaseURL:         "https://generativelanguage.googleapis.com/v1beta",
			Timeout:         "120s",
			MaxOutputTokens: 8192,
			Temperature:     0.7,
		},

		Search: SearchConfig{
			BaseURL:        "http://localhost:4000",
			MaxResults:     5,
			FetchTimeout:   "30s",
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			RenderFallback: false,
		},

		Live: LiveConfig{
			SampleRate:       16000,
			PlaybackRate:     24000,
			Channels:         1,
			Chunk:            1024,
			SilenceThreshold: 300,
			SilenceDuration:  "1s",
			FrameInterval:    "1s",
			FrameWidth:       640,
			FrameHeight:      480,
			JPEGQuality:      50,
			SpeakReplies:     true,
		},

		Media: MediaConfig{
			MaxFileBytes:    15 * 1024 * 1024,
			MaxPayloadBytes: 20 * 1024 * 1024,
			InboxEnabled:    true,
		},

		Memory: MemoryConfig{
			MaxContextTokens:   1048576,
			SummarizeThreshold: 800000,
			HardLimit:          900000,
			SummarizeFraction:  0.10,
			PreviewChars:       500,
		},

		Storage: StorageConfig{
			DataDir:      "~/.omni",
			DatabaseFile: "omni.db",
			MediaDir:     "media",
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Gemini.APIKey = key
	}
	if key := os.Getenv("GOOGLE_API_KEY"); key != "" && c.Gemini.APIKey == "" {
		c.Gemini.APIKey = key
	}
	if dir := os.Getenv("OMNI_DATA_DIR"); dir != "" {
		c.Storage.DataDir = dir
	}
	if url := os.Getenv("SEARXNG_URL"); url != "" {
		c.Search.BaseURL = url
	}
	if model := os.Getenv("OMNI_MODEL"); model != "" {
		c.Gemini.Model = model
	}
}

// ============================================================================
// Path helpers
// ============================================================================

// ExpandPath resolves a leading ~ to the user home directory.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}

// DataDir returns the resolved data directory.
func (c *Config) DataDir() string {
	return ExpandPath(c.Storage.DataDir)
}

// DatabasePath returns the resolved SQLite database path.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir(), c.Storage.DatabaseFile)
}

// MediaRoot returns the resolved media directory.
func (c *Config) MediaRoot() string {
	return filepath.Join(c.DataDir(), c.Storage.MediaDir)
}

// InboxDir returns the attachment inbox watched by the chat TUI.
func (c *Config) InboxDir() string {
	return filepath.Join(c.DataDir(), "inbox")
}

// ConfigPath returns the path of the config file inside the data dir.
func (c *Config) ConfigPath() string {
	return filepath.Join(c.DataDir(), "config.yaml")
}

// DefaultConfigPath returns the config path before any config is loaded.
func DefaultConfigPath() string {
	if dir := os.Getenv("OMNI_DATA_DIR"); dir != "" {
		return filepath.Join(ExpandPath(dir), "config.yaml")
	}
	return filepath.Join(ExpandPath("~/.omni"), "config.yaml")
}

// ============================================================================
// Typed getters for duration strings
// ============================================================================

// GetGeminiTimeout returns the Gemini request timeout as a duration.
func (c *Config) GetGeminiTimeout() time.Duration {
	d, err := time.ParseDuration(c.Gemini.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// GetFetchTimeout returns the page fetch timeout as a duration.
func (c *Config) GetFetchTimeout() time.Duration {
	d, err := time.ParseDuration(c.Search.FetchTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetSilenceDuration returns the quiet time that ends an utterance.
func (c *Config) GetSilenceDuration() time.Duration {
	d, err := time.ParseDuration(c.Live.SilenceDuration)
	if err != nil {
		return time.Second
	}
	return d
}

// GetFrameInterval returns the interval between captured frames.
func (c *Config) GetFrameInterval() time.Duration {
	d, err := time.ParseDuration(c.Live.FrameInterval)
	if err != nil {
		return time.Second
	}
	return d
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Gemini.APIKey == "" {
		return fmt.Errorf("Gemini API key not configured (set GEMINI_API_KEY or gemini.api_key in config.yaml)")
	}

	validModel := false
	for _, m := range ValidModels {
		if c.Gemini.Model == m {
			validModel = true
			break
		}
	}
	if !validModel {
		return fmt.Errorf("invalid model: %s (valid: %v)", c.Gemini.Model, ValidModels)
	}

	if c.Live.SampleRate <= 0 || c.Live.PlaybackRate <= 0 {
		return fmt.Errorf("audio rates must be positive (sample_rate=%d, playback_rate=%d)",
			c.Live.SampleRate, c.Live.PlaybackRate)
	}
	if c.Live.Chunk <= 0 {
		return fmt.Errorf("live chunk size must be positive")
	}

	if c.Memory.SummarizeThreshold >= c.Memory.HardLimit {
		return fmt.Errorf("summarize_threshold (%d) must be below hard_limit (%d)",
			c.Memory.SummarizeThreshold, c.Memory.HardLimit)
	}

	return nil
}

// Redacted returns a copy with the API key masked, for display.
func (c *Config) Redacted() *Config {
	out := *c
	if out.Gemini.APIKey != "" {
		key := out.Gemini.APIKey
		if len(key) > 8 {
			out.Gemini.APIKey = key[:4] + "..." + key[len(key)-4:]
		} else {
			out.Gemini.APIKey = "****"
		}
	}
	return &out
}
