package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/TobiSchelling/articleforge/internal/article"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	LLM         LLM         `yaml:"llm"`
	Translation Translation `yaml:"translation"`
	Generation  Generation  `yaml:"generation"`
	Evaluation  Evaluation  `yaml:"evaluation"`
	Pipeline    Pipeline    `yaml:"pipeline"`
	Batch       Batch       `yaml:"batch"`
	Feeds       []Feed      `yaml:"feeds"`
	NewsAPI     NewsAPI     `yaml:"newsapi"`
	Output      Output      `yaml:"output"`
	Server      Server      `yaml:"server"`
	Logging     Logging     `yaml:"logging"`
}

type LLM struct {
	Provider     string `yaml:"provider"`
	Model        string `yaml:"model"`
	OllamaURL    string `yaml:"ollama_url"`
	OpenAIModel  string `yaml:"openai_model"`
	APIKeyEnv    string `yaml:"api_key_env"`
	GeminiModel  string `yaml:"gemini_model"`
	GeminiKeyEnv string `yaml:"gemini_key_env"`
	MaxTokens    int    `yaml:"max_tokens"`
}

type Translation struct {
	TargetLanguage string  `yaml:"target_language"`
	Threshold      float64 `yaml:"threshold"`
	ChunkSize      int     `yaml:"chunk_size"`
	CacheSize      int     `yaml:"cache_size"`
}

type Generation struct {
	CacheTTL        time.Duration `yaml:"cache_ttl"`
	CacheSize       int           `yaml:"cache_size"`
	MaxRetries      int           `yaml:"max_retries"`
	BaseDelay       time.Duration `yaml:"base_delay"`
	DefaultLength   int           `yaml:"default_length"`
	DefaultKeywords []string      `yaml:"default_keywords"`
}

// Evaluation points at optional rule files replacing the built-in tables.
type Evaluation struct {
	ExtractRules  string `yaml:"extract_rules"`
	EthicsRules   string `yaml:"ethics_rules"`
	CitationRules string `yaml:"citation_rules"`
}

type Pipeline struct {
	EventBuffer  int           `yaml:"event_buffer"`
	RunTTL       time.Duration `yaml:"run_ttl"`
	ReapInterval time.Duration `yaml:"reap_interval"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

type Batch struct {
	DaysBack int    `yaml:"days_back"`
	Limit    int    `yaml:"limit"`
	Mode     string `yaml:"mode"`
	Keywords string `yaml:"keywords"`
}

type Feed struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

type NewsAPI struct {
	Enabled   bool   `yaml:"enabled"`
	APIKeyEnv string `yaml:"api_key_env"`
	Query     string `yaml:"query"`
	Language  string `yaml:"language"`
}

type Output struct {
	DataDir   string `yaml:"data_dir"`
	ExportDir string `yaml:"export_dir"`
}

type Server struct {
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ConfigDir returns the XDG config directory for articleforge.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "articleforge")
}

// DataDir returns the XDG data directory for articleforge.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "articleforge")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/articleforge/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'articleforge init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		LLM: LLM{
			Provider:     "ollama",
			Model:        "qwen2.5:7b",
			OllamaURL:    "http://localhost:11434",
			OpenAIModel:  "gpt-4o-mini",
			APIKeyEnv:    "OPENAI_API_KEY",
			GeminiModel:  "gemini-2.0-flash",
			GeminiKeyEnv: "GEMINI_API_KEY",
			MaxTokens:    4096,
		},
		Translation: Translation{
			TargetLanguage: "ko",
			Threshold:      0.7,
			ChunkSize:      2000,
			CacheSize:      256,
		},
		Generation: Generation{
			CacheTTL:        30 * time.Minute,
			CacheSize:       128,
			MaxRetries:      3,
			BaseDelay:       time.Second,
			DefaultLength:   3000,
			DefaultKeywords: []string{"AI", "블로그", "콘텐츠"},
		},
		Pipeline: Pipeline{
			EventBuffer:  32,
			RunTTL:       time.Hour,
			ReapInterval: 5 * time.Minute,
			FetchTimeout: 30 * time.Second,
		},
		Batch: Batch{
			DaysBack: 1,
			Limit:    10,
			Mode:     "basic",
		},
		NewsAPI: NewsAPI{
			APIKeyEnv: "NEWSAPI_KEY",
			Language:  "en",
		},
		Server:  Server{Host: "127.0.0.1", Port: 8000},
		Logging: Logging{Level: "info", Format: "text"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values no component can work with.
func (c *Config) Validate() error {
	switch strings.ToLower(c.LLM.Provider) {
	case "ollama", "openai", "gemini":
	default:
		return fmt.Errorf("llm.provider: unknown provider %q", c.LLM.Provider)
	}
	if c.Translation.Threshold < 0 || c.Translation.Threshold > 1 {
		return fmt.Errorf("translation.threshold: %v is outside [0, 1]", c.Translation.Threshold)
	}
	if c.Generation.MaxRetries < 0 {
		return fmt.Errorf("generation.max_retries: must not be negative")
	}
	if c.Generation.DefaultLength < 0 {
		return fmt.Errorf("generation.default_length: must not be negative")
	}
	if _, err := c.BatchMode(); err != nil {
		return err
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port: %d is not a valid port", c.Server.Port)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format: unknown format %q", c.Logging.Format)
	}
	for i, f := range c.Feeds {
		if f.URL == "" {
			return fmt.Errorf("feeds[%d]: url is required", i)
		}
	}
	return nil
}

// BatchMode returns the generation mode batch runs use.
func (c *Config) BatchMode() (article.Mode, error) {
	if c.Batch.Mode == "" {
		return article.ModeBasic, nil
	}
	mode, err := article.ParseMode(c.Batch.Mode)
	if err != nil {
		return 0, fmt.Errorf("batch.mode: %w", err)
	}
	return mode, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// GetExportDir returns where exported documents are written.
func (c *Config) GetExportDir() string {
	if c.Output.ExportDir != "" {
		return c.Output.ExportDir
	}
	return filepath.Join(c.GetDataDir(), "exports")
}

// DatabasePath returns the SQLite file inside the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.GetDataDir(), "articleforge.db")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
