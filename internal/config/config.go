// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.ttsc/config.yaml or ./config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - AI: provider selection, generation model, embedder model
//   - Data: Tabletop Simulator data root, server data directory
//   - Retrieval: chunk size/overlap, top-k
//   - Server: listen address
//
// Security: API keys are read by the provider plugins directly from the
// environment and never stored on the struct. Validation is fail-fast in
// validation.go with sentinel errors for errors.Is checks.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini   = "gemini"
	ProviderOllama   = "ollama"
	ProviderOpenAI   = "openai"
	ProviderGoogleAI = "googleai"
)

const (
	// DefaultGeminiEmbedderModel is the default Gemini embedder model.
	DefaultGeminiEmbedderModel = "gemini-embedding-001"

	// DefaultChunkSize is the default rulebook chunk size in runes.
	DefaultChunkSize = 1000

	// DefaultChunkOverlap is the default overlap between adjacent chunks.
	DefaultChunkOverlap = 200

	// DefaultTopK is the default number of chunks retrieved per question.
	DefaultTopK = 5
)

// Config stores application configuration.
type Config struct {
	// AI provider and model configuration
	Provider      string `mapstructure:"provider"`       // "gemini" (default), "ollama", "openai"
	ModelName     string `mapstructure:"model_name"`     // e.g. "gemini-2.5-flash", "llama3.3", "gpt-4o"
	EmbedderModel string `mapstructure:"embedder_model"` // embedding model for the retrieval index

	// Ollama configuration (only used when provider is "ollama")
	OllamaHost string `mapstructure:"ollama_host"`

	// TTSDataDir is the Tabletop Simulator data root holding
	// Mods/Workshop. Empty disables workshop scanning.
	TTSDataDir string `mapstructure:"tts_data_dir"`

	// DataDir is the server's own state directory. The registry file,
	// the editable rulebook texts and the vector stores all live under
	// it; see RegistryPath, RulebookCacheDir and IndexDir.
	DataDir string `mapstructure:"data_dir"`

	// Retrieval configuration
	ChunkSize    int `mapstructure:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap"`
	TopK         int `mapstructure:"top_k"`

	// Addr is the HTTP listen address.
	Addr string `mapstructure:"addr"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".ttsc")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// Missing config file is not an error, defaults apply.
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// AI defaults
	viper.SetDefault("provider", ProviderGemini)
	viper.SetDefault("model_name", "gemini-2.5-flash")
	viper.SetDefault("embedder_model", DefaultGeminiEmbedderModel)

	// Ollama defaults
	viper.SetDefault("ollama_host", "http://localhost:11434")

	// Data defaults
	viper.SetDefault("tts_data_dir", "")
	viper.SetDefault("data_dir", "data")

	// Retrieval defaults
	viper.SetDefault("chunk_size", DefaultChunkSize)
	viper.SetDefault("chunk_overlap", DefaultChunkOverlap)
	viper.SetDefault("top_k", DefaultTopK)

	// Server defaults
	viper.SetDefault("addr", "127.0.0.1:5678")
}

// bindEnvVariables binds environment variable overrides explicitly.
func bindEnvVariables() {
	// Hardcoded keys cannot fail to bind; a panic here is a bug.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "TTSC_PROVIDER")
	mustBind("model_name", "TTSC_MODEL_NAME")
	mustBind("embedder_model", "TTSC_EMBEDDER_MODEL")
	mustBind("ollama_host", "TTSC_OLLAMA_HOST")
	mustBind("tts_data_dir", "TTSC_TTS_DATA_DIR")
	mustBind("data_dir", "TTSC_DATA_DIR")
	mustBind("chunk_size", "TTSC_CHUNK_SIZE")
	mustBind("chunk_overlap", "TTSC_CHUNK_OVERLAP")
	mustBind("top_k", "TTSC_TOP_K")
	mustBind("addr", "TTSC_ADDR")

	// NOTE: GEMINI_API_KEY is read directly by the Google GenAI plugin.
	// NOTE: OPENAI_API_KEY is read directly by the OpenAI plugin.
	// Validation checks their presence based on the selected provider.
}

// RegistryPath returns the location of the rulebook registry file.
func (c *Config) RegistryPath() string {
	return filepath.Join(c.DataDir, "registry.json")
}

// RulebookCacheDir returns the root for per-game editable rulebook texts.
func (c *Config) RulebookCacheDir() string {
	return filepath.Join(c.DataDir, "cache", "editable_rulebook_texts")
}

// IndexDir returns the root for per-game persisted vector stores.
func (c *Config) IndexDir() string {
	return filepath.Join(c.DataDir, "cache", "vector_stores")
}

// FullModelName returns the provider-qualified model name for Genkit.
// Examples: "googleai/gemini-2.5-flash", "ollama/llama3.3", "openai/gpt-4o".
// If ModelName already contains a "/", it is returned as-is.
func (c *Config) FullModelName() string {
	if strings.Contains(c.ModelName, "/") {
		return c.ModelName
	}
	switch c.Provider {
	case ProviderOllama:
		return ProviderOllama + "/" + c.ModelName
	case ProviderOpenAI:
		return ProviderOpenAI + "/" + c.ModelName
	default:
		return ProviderGoogleAI + "/" + c.ModelName
	}
}
