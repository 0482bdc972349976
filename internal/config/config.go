package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	LLM     LLMConfig     `mapstructure:"llm" yaml:"llm"`
	Agent   AgentConfig   `mapstructure:"agent" yaml:"agent"`
	Engine  EngineConfig  `mapstructure:"engine" yaml:"engine"`
	Cost    CostConfig    `mapstructure:"cost" yaml:"cost"`
}

// LoggerConfig controls the zap logger and its optional rotating file sink.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	File        string `mapstructure:"file" yaml:"file"`
	MaxSizeMB   int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays  int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
}

// BrowserConfig controls the headless browser process and per-operation
// timeouts.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors   bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	DisableCache      bool          `mapstructure:"disable_cache" yaml:"disable_cache"`
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
	WindowWidth       int           `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight      int           `mapstructure:"window_height" yaml:"window_height"`
	Args              []string      `mapstructure:"args" yaml:"args"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	OperationTimeout  time.Duration `mapstructure:"operation_timeout" yaml:"operation_timeout"`
	PostLoadWait      time.Duration `mapstructure:"post_load_wait" yaml:"post_load_wait"`
}

// Supported LLM providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// LLMConfig selects and tunes the language-model provider. An empty provider
// disables the agent tier entirely.
type LLMConfig struct {
	Provider          string        `mapstructure:"provider" yaml:"provider"`
	Model             string        `mapstructure:"model" yaml:"model"`
	BaseURL           string        `mapstructure:"base_url" yaml:"base_url"`
	APIKey            string        `mapstructure:"api_key" yaml:"-"`
	Temperature       float64       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens         int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	RequestsPerMinute float64       `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	MaxRetryElapsed   time.Duration `mapstructure:"max_retry_elapsed" yaml:"max_retry_elapsed"`
}

// AgentConfig bounds the agentic conversation loop. The similarity and
// repetition thresholds are deliberately configuration, not constants:
// aggressive values can fail valid long-running tasks.
type AgentConfig struct {
	RecursionLimit      int           `mapstructure:"recursion_limit" yaml:"recursion_limit"`
	TaskTimeout         time.Duration `mapstructure:"task_timeout" yaml:"task_timeout"`
	StopPhrases         []string      `mapstructure:"stop_phrases" yaml:"stop_phrases"`
	SimilarityThreshold float64       `mapstructure:"similarity_threshold" yaml:"similarity_threshold"`
	SimilarityWindow    int           `mapstructure:"similarity_window" yaml:"similarity_window"`
	SimilarityCount     int           `mapstructure:"similarity_count" yaml:"similarity_count"`
	RepetitionWindow    int           `mapstructure:"repetition_window" yaml:"repetition_window"`
	RepetitionCount     int           `mapstructure:"repetition_count" yaml:"repetition_count"`
}

// EngineConfig controls step execution, recovery, and artifact locations.
type EngineConfig struct {
	UseAgent         bool          `mapstructure:"use_agent" yaml:"use_agent"`
	MaxRetries       int           `mapstructure:"max_retries" yaml:"max_retries"`
	RetryPause       time.Duration `mapstructure:"retry_pause" yaml:"retry_pause"`
	SettlePause      time.Duration `mapstructure:"settle_pause" yaml:"settle_pause"`
	WaitTimeout      time.Duration `mapstructure:"wait_timeout" yaml:"wait_timeout"`
	CriticalKeywords []string      `mapstructure:"critical_keywords" yaml:"critical_keywords"`
	ScreenshotDir    string        `mapstructure:"screenshot_dir" yaml:"screenshot_dir"`
	ResultsDir       string        `mapstructure:"results_dir" yaml:"results_dir"`
	Concurrency      int           `mapstructure:"concurrency" yaml:"concurrency"`
}

// CostConfig controls the cost ledger backend, budgets, and report tuning.
type CostConfig struct {
	Enabled       bool    `mapstructure:"enabled" yaml:"enabled"`
	Backend       string  `mapstructure:"backend" yaml:"backend"`
	Dir           string  `mapstructure:"dir" yaml:"dir"`
	PostgresDSN   string  `mapstructure:"postgres_dsn" yaml:"-"`
	DailyBudget   float64 `mapstructure:"daily_budget" yaml:"daily_budget"`
	MonthlyBudget float64 `mapstructure:"monthly_budget" yaml:"monthly_budget"`
	TopExpensive  int     `mapstructure:"top_expensive" yaml:"top_expensive"`
	MinSavings    float64 `mapstructure:"min_savings" yaml:"min_savings"`
}

// SetDefaults registers the default value for every configuration key.
func SetDefaults(v *viper.Viper) {
	// Logger
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "testgenius")
	v.SetDefault("logger.file", "")
	v.SetDefault("logger.max_size_mb", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age_days", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.add_source", false)

	// Browser
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.disable_cache", true)
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.window_width", 1920)
	v.SetDefault("browser.window_height", 1080)
	v.SetDefault("browser.navigation_timeout", "90s")
	v.SetDefault("browser.operation_timeout", "15s")
	v.SetDefault("browser.post_load_wait", "500ms")

	// LLM
	v.SetDefault("llm.provider", "")
	v.SetDefault("llm.model", "gpt-4o")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("llm.request_timeout", "60s")
	v.SetDefault("llm.requests_per_minute", 30.0)
	v.SetDefault("llm.max_retry_elapsed", "2m")

	// Agent
	v.SetDefault("agent.recursion_limit", 25)
	v.SetDefault("agent.task_timeout", "5m")
	v.SetDefault("agent.stop_phrases", []string{
		"test completed successfully",
		"task completed successfully",
		"verification failed",
		"unable to proceed",
		"stop",
	})
	v.SetDefault("agent.similarity_threshold", 0.9)
	v.SetDefault("agent.similarity_window", 6)
	v.SetDefault("agent.similarity_count", 3)
	v.SetDefault("agent.repetition_window", 8)
	v.SetDefault("agent.repetition_count", 4)

	// Engine
	v.SetDefault("engine.use_agent", true)
	v.SetDefault("engine.max_retries", 2)
	v.SetDefault("engine.retry_pause", "1s")
	v.SetDefault("engine.settle_pause", "500ms")
	v.SetDefault("engine.wait_timeout", "10s")
	v.SetDefault("engine.critical_keywords", []string{"login", "submit", "save", "confirm", "delete"})
	v.SetDefault("engine.screenshot_dir", "screenshots")
	v.SetDefault("engine.results_dir", "results")
	v.SetDefault("engine.concurrency", 2)

	// Cost
	v.SetDefault("cost.enabled", true)
	v.SetDefault("cost.backend", "file")
	v.SetDefault("cost.dir", "costs")
	v.SetDefault("cost.daily_budget", 5.0)
	v.SetDefault("cost.monthly_budget", 50.0)
	v.SetDefault("cost.top_expensive", 5)
	v.SetDefault("cost.min_savings", 0.01)
}

// NewConfigFromViper unmarshals and validates a configuration from viper.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Secrets come from the environment, never the config file.
	v.BindEnv("llm.api_key", "TESTGENIUS_LLM_API_KEY")
	v.BindEnv("cost.postgres_dsn", "TESTGENIUS_COST_POSTGRES_DSN")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Provider-conventional fallbacks for the API key.
	if cfg.LLM.APIKey == "" {
		switch cfg.LLM.Provider {
		case ProviderOpenAI:
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		case ProviderGemini:
			cfg.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "", ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("llm.provider must be %q, %q, or empty, got %q", ProviderOpenAI, ProviderGemini, c.LLM.Provider)
	}
	if c.LLM.Provider != "" && c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required when llm.provider is set")
	}
	if err := c.Agent.Validate(); err != nil {
		return fmt.Errorf("agent configuration invalid: %w", err)
	}
	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("engine configuration invalid: %w", err)
	}
	if err := c.Cost.Validate(); err != nil {
		return fmt.Errorf("cost configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the agent loop bounds.
func (a *AgentConfig) Validate() error {
	if a.RecursionLimit <= 0 {
		return fmt.Errorf("recursion_limit must be greater than 0")
	}
	if a.TaskTimeout <= 0 {
		return fmt.Errorf("task_timeout must be a positive duration")
	}
	if a.SimilarityThreshold < 0.0 || a.SimilarityThreshold > 1.0 {
		return fmt.Errorf("similarity_threshold must be between 0.0 and 1.0")
	}
	if a.SimilarityCount <= 0 || a.SimilarityWindow < a.SimilarityCount {
		return fmt.Errorf("similarity_window must be at least similarity_count, both positive")
	}
	if a.RepetitionCount <= 0 || a.RepetitionWindow < a.RepetitionCount {
		return fmt.Errorf("repetition_window must be at least repetition_count, both positive")
	}
	return nil
}

// Validate checks the engine execution settings.
func (e *EngineConfig) Validate() error {
	if e.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}
	if e.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be a positive integer")
	}
	if e.WaitTimeout <= 0 {
		return fmt.Errorf("wait_timeout must be a positive duration")
	}
	return nil
}

// Validate checks the cost accounting settings.
func (c *CostConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch c.Backend {
	case "file":
		if c.Dir == "" {
			return fmt.Errorf("dir is required for the file backend")
		}
	case "postgres":
		if c.PostgresDSN == "" {
			return fmt.Errorf("postgres backend requires TESTGENIUS_COST_POSTGRES_DSN to be set")
		}
	default:
		return fmt.Errorf("backend must be \"file\" or \"postgres\", got %q", c.Backend)
	}
	return nil
}
