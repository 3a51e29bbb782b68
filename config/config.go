package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	Database struct {
		ConnectionString string `yaml:"connection_string"`
		MaxConns         int    `yaml:"max_conns"`
	} `yaml:"database"`
	Ollama struct {
		BaseURL      string `yaml:"base_url"`
		DefaultModel string `yaml:"default_model"`
	} `yaml:"ollama"`
	Embeddings struct {
		TextModel string `yaml:"text_model"`
		Dimension int    `yaml:"dimension"`
	} `yaml:"embeddings"`
	Vector struct {
		Metric    string  `yaml:"metric"` // cosine, ip or l2
		IndexList int     `yaml:"index_list"`
		Probes    int     `yaml:"probes"`
		Overfetch int     `yaml:"overfetch"`
		Lambda    float64 `yaml:"lambda"`
		TopK      int     `yaml:"top_k"`
	} `yaml:"vector"`
	Context struct {
		MaxTokens      int `yaml:"max_tokens"`
		ReservedTokens int `yaml:"reserved_tokens"`
	} `yaml:"context"`
	Processing struct {
		ChunkSize    int `yaml:"chunk_size"`
		ChunkOverlap int `yaml:"chunk_overlap"`
	} `yaml:"processing"`
	Search struct {
		TavilyAPIKey string `yaml:"tavily_api_key"`
		MaxResults   int    `yaml:"max_results"`
	} `yaml:"search"`
	Paths struct {
		ImageDir string `yaml:"image_dir"`
	} `yaml:"paths"`
}

// Load loads configuration from file or returns defaults. A .env file in
// the working directory and environment variables override secrets so they
// never need to live in config.yaml.
func Load() (*Config, error) {
	// Missing .env is fine; plain environment variables still apply.
	_ = godotenv.Load()

	cfg := Default()

	configPath := filepath.Join(os.Getenv("HOME"), ".docqa", "config.yaml")
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg.applyEnv()
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnv()
	return cfg, nil
}

// Save saves configuration to file
func (c *Config) Save() error {
	configDir := filepath.Join(os.Getenv("HOME"), ".docqa")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configPath := filepath.Join(configDir, "config.yaml")
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(configPath, data, 0644)
}

// Default returns default configuration
func Default() *Config {
	cfg := &Config{}

	cfg.Database.ConnectionString = "postgres://postgres@localhost/postgres?sslmode=disable"
	cfg.Database.MaxConns = 10
	cfg.Ollama.BaseURL = "http://localhost:11434"
	cfg.Ollama.DefaultModel = ""
	cfg.Embeddings.TextModel = "nomic-embed-text"
	cfg.Embeddings.Dimension = 768
	cfg.Vector.Metric = "cosine"
	cfg.Vector.IndexList = 100
	cfg.Vector.Probes = 10
	cfg.Vector.Overfetch = 3
	cfg.Vector.Lambda = 0.5
	cfg.Vector.TopK = 5
	cfg.Context.MaxTokens = 8000
	cfg.Context.ReservedTokens = 500
	cfg.Processing.ChunkSize = 1000
	cfg.Processing.ChunkOverlap = 20
	cfg.Search.MaxResults = 5
	cfg.Paths.ImageDir = filepath.Join(os.TempDir(), "docqa-images")

	return cfg
}

// applyEnv overrides secrets and connection settings from the environment
func (c *Config) applyEnv() {
	c.Database.ConnectionString = getEnv("DOCQA_DATABASE_URL", c.Database.ConnectionString)
	c.Ollama.BaseURL = getEnv("DOCQA_OLLAMA_URL", c.Ollama.BaseURL)
	c.Search.TavilyAPIKey = getEnv("TAVILY_API_KEY", c.Search.TavilyAPIKey)
}

// getEnv returns the environment variable value or a default when unset
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
