package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config global configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	MySQL     MySQLConfig     `yaml:"mysql"`
	Redis     RedisConfig     `yaml:"redis"`
	Queue     QueueConfig     `yaml:"queue"`
	Logger    LoggerConfig    `yaml:"logger"`
	Providers ProvidersConfig `yaml:"providers"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Scoring   ScoringConfig   `yaml:"scoring"`
}

// ServerConfig server configuration
type ServerConfig struct {
	Port   int    `yaml:"port"`
	Mode   string `yaml:"mode"`    // debug, release
	APIKey string `yaml:"api_key"` // API key for approval/cancel routes (optional, if empty, auth is disabled)
}

// MySQLConfig MySQL configuration
type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// RedisConfig Redis configuration
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// QueueConfig pipeline queue configuration
type QueueConfig struct {
	Concurrency int `yaml:"concurrency"`  // pipeline worker concurrency
	MaxRetry    int `yaml:"max_retry"`    // asynq retry count for infrastructure failures
	TaskTimeout int `yaml:"task_timeout"` // whole-pipeline timeout per task (seconds)
}

// LoggerConfig logger configuration
type LoggerConfig struct {
	Level  string           `yaml:"level"`  // debug, info, warn, error
	Output string           `yaml:"output"` // console, file, both
	File   LoggerFileConfig `yaml:"file"`
}

// LoggerFileConfig logger file configuration
type LoggerFileConfig struct {
	Path string `yaml:"path"`
}

// ProvidersConfig model provider configuration.
// API keys are resolved from the environment variable named by api_key_env;
// a paid provider without a key reports unavailable instead of failing startup.
type ProvidersConfig struct {
	Order               []string            `yaml:"order"`                 // attempt order, cheapest first
	AvailabilityTTL     int                 `yaml:"availability_ttl"`      // seconds, default 300
	AvailabilityTimeout int                 `yaml:"availability_timeout"`  // seconds, liveness probe budget, default 5
	GenerationTimeout   int                 `yaml:"generation_timeout"`    // seconds, default 60
	Local               LocalProviderConfig `yaml:"local"`
	FreeHosted          HTTPProviderConfig  `yaml:"free_hosted"`
	Gemini              HTTPProviderConfig  `yaml:"gemini"`
	OpenAI              HTTPProviderConfig  `yaml:"openai"`
	Anthropic           HTTPProviderConfig  `yaml:"anthropic"`
}

// LocalProviderConfig local inference engine configuration
type LocalProviderConfig struct {
	BaseURL      string `yaml:"base_url"` // e.g. http://localhost:11434
	DefaultModel string `yaml:"default_model"`
}

// HTTPProviderConfig remote provider configuration
type HTTPProviderConfig struct {
	BaseURL      string `yaml:"base_url,omitempty"`
	APIKeyEnv    string `yaml:"api_key_env"` // environment variable holding the API key
	DefaultModel string `yaml:"default_model"`
}

// PipelineConfig content pipeline configuration
type PipelineConfig struct {
	MaxQAIterations int     `yaml:"max_qa_iterations"` // QA rejection loop bound, default 2
	QAThreshold     float64 `yaml:"qa_threshold"`      // minimum quality score to pass QA, default 0.7
	ImageServiceURL string  `yaml:"image_service_url"` // cover image service (optional)
	PlaceholderImg  string  `yaml:"placeholder_image"` // fallback image reference
	MetricsFlushSec int     `yaml:"metrics_flush_sec"` // performance metric persistence interval, default 30
}

// ScoringConfig model scoring configuration
type ScoringConfig struct {
	Strategy        string  `yaml:"strategy"`         // default, speed_first, cost_first, quality_first
	MaxCostUSD      float64 `yaml:"max_cost_usd"`     // cost normalization ceiling per request
	MaxLatencyMs    int64   `yaml:"max_latency_ms"`   // latency normalization ceiling
	MinObservations int     `yaml:"min_observations"` // observations required before history overrides claims
}

// Load reads configuration from CONFIG_PATH (default config/config.yaml)
// and applies defaults for unset fields.
func Load() (*Config, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Queue.Concurrency <= 0 {
		c.Queue.Concurrency = 4
	}
	if c.Queue.TaskTimeout <= 0 {
		c.Queue.TaskTimeout = 600
	}
	if c.Providers.AvailabilityTTL <= 0 {
		c.Providers.AvailabilityTTL = 300
	}
	if c.Providers.AvailabilityTimeout <= 0 {
		c.Providers.AvailabilityTimeout = 5
	}
	if c.Providers.GenerationTimeout <= 0 {
		c.Providers.GenerationTimeout = 60
	}
	if len(c.Providers.Order) == 0 {
		c.Providers.Order = []string{"local", "free_hosted", "gemini", "openai", "anthropic"}
	}
	if c.Pipeline.MaxQAIterations <= 0 {
		c.Pipeline.MaxQAIterations = 2
	}
	if c.Pipeline.QAThreshold <= 0 {
		c.Pipeline.QAThreshold = 0.7
	}
	if c.Pipeline.PlaceholderImg == "" {
		c.Pipeline.PlaceholderImg = "/static/placeholder-cover.png"
	}
	if c.Pipeline.MetricsFlushSec <= 0 {
		c.Pipeline.MetricsFlushSec = 30
	}
	if c.Scoring.Strategy == "" {
		c.Scoring.Strategy = "default"
	}
	if c.Scoring.MaxCostUSD <= 0 {
		c.Scoring.MaxCostUSD = 0.50
	}
	if c.Scoring.MaxLatencyMs <= 0 {
		c.Scoring.MaxLatencyMs = 30000
	}
	if c.Scoring.MinObservations <= 0 {
		c.Scoring.MinObservations = 3
	}
}
