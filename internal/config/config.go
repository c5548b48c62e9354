// Package config loads run settings from defaults, an optional YAML file,
// an optional .env file and environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	LLM struct {
		Provider          string        `yaml:"provider"` // anthropic, openai or offline
		Model             string        `yaml:"model"`
		BaseURL           string        `yaml:"base_url"`
		APIKey            string        `yaml:"api_key"`
		Temperature       float64       `yaml:"temperature"`
		MaxRetries        int           `yaml:"max_retries"`
		RequestsPerSecond float64       `yaml:"requests_per_second"`
		MaxConcurrent     int           `yaml:"max_concurrent"`
		Timeout           time.Duration `yaml:"timeout"`
	} `yaml:"llm"`

	Tokens struct {
		Encoding      string `yaml:"encoding"` // tiktoken encoding, or "estimate"
		ContextWindow int    `yaml:"context_window"`
	} `yaml:"tokens"`

	Classifier struct {
		Mode           string  `yaml:"mode"` // llm or headings
		BudgetFraction float64 `yaml:"budget_fraction"`
	} `yaml:"classifier"`

	Resolver struct {
		BudgetFraction float64 `yaml:"budget_fraction"`
		Structurer     string  `yaml:"structurer"` // llm or local
	} `yaml:"resolver"`

	Aggregate struct {
		HookWords    int `yaml:"hook_words"`
		BoundedWords int `yaml:"bounded_words"`
		Concurrency  int `yaml:"concurrency"`
	} `yaml:"aggregate"`

	Segment struct {
		ListIndent int `yaml:"list_indent"`
	} `yaml:"segment"`

	Summarize struct {
		Concurrency int  `yaml:"concurrency"`
		Compress    bool `yaml:"compress"`
	} `yaml:"summarize"`

	Pipeline struct {
		WorkerCount  int           `yaml:"worker_count"`
		MaxQueueSize int           `yaml:"max_queue_size"`
		JobTTL       time.Duration `yaml:"job_ttl"`
	} `yaml:"pipeline"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // json or text
	} `yaml:"log"`
}

// Default returns the built-in settings.
func Default() Config {
	var c Config
	c.LLM.Provider = "anthropic"
	c.LLM.Model = "claude-sonnet-4-5-20250929"
	c.LLM.MaxRetries = 3
	c.LLM.RequestsPerSecond = 5
	c.LLM.MaxConcurrent = 5
	c.LLM.Timeout = 120 * time.Second
	c.Tokens.Encoding = "cl100k_base"
	c.Tokens.ContextWindow = 128000
	c.Classifier.Mode = "llm"
	c.Classifier.BudgetFraction = 0.01
	c.Resolver.BudgetFraction = 0.1
	c.Resolver.Structurer = "llm"
	c.Aggregate.HookWords = 15
	c.Aggregate.BoundedWords = 100
	c.Aggregate.Concurrency = 5
	c.Segment.ListIndent = 2
	c.Summarize.Concurrency = 5
	c.Pipeline.WorkerCount = 2
	c.Pipeline.MaxQueueSize = 100
	c.Pipeline.JobTTL = time.Hour
	c.Log.Level = "info"
	c.Log.Format = "json"
	return c
}

// Load builds the configuration. An empty path skips the YAML file; a
// missing .env file is ignored.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}
	cfg.applyEnv()
	cfg.clamp()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.LLM.Provider = envOr("DOCOUTLINE_LLM_PROVIDER", c.LLM.Provider)
	c.LLM.Model = envOr("DOCOUTLINE_LLM_MODEL", c.LLM.Model)
	c.LLM.BaseURL = envOr("DOCOUTLINE_LLM_BASE_URL", c.LLM.BaseURL)
	c.LLM.Temperature = envFloat("DOCOUTLINE_LLM_TEMPERATURE", c.LLM.Temperature)
	c.LLM.MaxRetries = envInt("DOCOUTLINE_LLM_MAX_RETRIES", c.LLM.MaxRetries)
	c.LLM.RequestsPerSecond = envFloat("DOCOUTLINE_LLM_REQUESTS_PER_SECOND", c.LLM.RequestsPerSecond)
	c.LLM.MaxConcurrent = envInt("DOCOUTLINE_LLM_MAX_CONCURRENT", c.LLM.MaxConcurrent)
	c.LLM.Timeout = envDuration("DOCOUTLINE_LLM_TIMEOUT", c.LLM.Timeout)

	key := envOr("DOCOUTLINE_LLM_API_KEY", c.LLM.APIKey)
	if key == "" {
		switch c.LLM.Provider {
		case "anthropic":
			key = os.Getenv("ANTHROPIC_API_KEY")
		case "openai":
			key = envOr("OPENROUTER_API_KEY", os.Getenv("OPENAI_API_KEY"))
		}
	}
	c.LLM.APIKey = key

	c.Tokens.Encoding = envOr("DOCOUTLINE_TOKENS_ENCODING", c.Tokens.Encoding)
	c.Tokens.ContextWindow = envInt("DOCOUTLINE_TOKENS_CONTEXT_WINDOW", c.Tokens.ContextWindow)
	c.Classifier.Mode = envOr("DOCOUTLINE_CLASSIFIER_MODE", c.Classifier.Mode)
	c.Classifier.BudgetFraction = envFloat("DOCOUTLINE_CLASSIFIER_BUDGET_FRACTION", c.Classifier.BudgetFraction)
	c.Resolver.BudgetFraction = envFloat("DOCOUTLINE_RESOLVER_BUDGET_FRACTION", c.Resolver.BudgetFraction)
	c.Resolver.Structurer = envOr("DOCOUTLINE_RESOLVER_STRUCTURER", c.Resolver.Structurer)
	c.Aggregate.HookWords = envInt("DOCOUTLINE_AGGREGATE_HOOK_WORDS", c.Aggregate.HookWords)
	c.Aggregate.BoundedWords = envInt("DOCOUTLINE_AGGREGATE_BOUNDED_WORDS", c.Aggregate.BoundedWords)
	c.Aggregate.Concurrency = envInt("DOCOUTLINE_AGGREGATE_CONCURRENCY", c.Aggregate.Concurrency)
	c.Segment.ListIndent = envInt("DOCOUTLINE_SEGMENT_LIST_INDENT", c.Segment.ListIndent)
	c.Summarize.Concurrency = envInt("DOCOUTLINE_SUMMARIZE_CONCURRENCY", c.Summarize.Concurrency)
	c.Summarize.Compress = envBool("DOCOUTLINE_SUMMARIZE_COMPRESS", c.Summarize.Compress)
	c.Pipeline.WorkerCount = envInt("DOCOUTLINE_WORKER_COUNT", c.Pipeline.WorkerCount)
	c.Pipeline.MaxQueueSize = envInt("DOCOUTLINE_MAX_QUEUE_SIZE", c.Pipeline.MaxQueueSize)
	c.Pipeline.JobTTL = envDuration("DOCOUTLINE_JOB_TTL", c.Pipeline.JobTTL)
	c.Log.Level = envOr("DOCOUTLINE_LOG_LEVEL", c.Log.Level)
	c.Log.Format = envOr("DOCOUTLINE_LOG_FORMAT", c.Log.Format)
}

// clamp resets non-positive numeric settings to their defaults.
func (c *Config) clamp() {
	def := Default()
	clampInt(&c.LLM.MaxRetries, def.LLM.MaxRetries)
	clampFloat(&c.LLM.RequestsPerSecond, def.LLM.RequestsPerSecond)
	clampInt(&c.LLM.MaxConcurrent, def.LLM.MaxConcurrent)
	if c.LLM.Timeout <= 0 {
		c.LLM.Timeout = def.LLM.Timeout
	}
	clampInt(&c.Tokens.ContextWindow, def.Tokens.ContextWindow)
	clampFloat(&c.Classifier.BudgetFraction, def.Classifier.BudgetFraction)
	clampFloat(&c.Resolver.BudgetFraction, def.Resolver.BudgetFraction)
	clampInt(&c.Aggregate.HookWords, def.Aggregate.HookWords)
	clampInt(&c.Aggregate.BoundedWords, def.Aggregate.BoundedWords)
	clampInt(&c.Aggregate.Concurrency, def.Aggregate.Concurrency)
	clampInt(&c.Segment.ListIndent, def.Segment.ListIndent)
	clampInt(&c.Summarize.Concurrency, def.Summarize.Concurrency)
	clampInt(&c.Pipeline.WorkerCount, def.Pipeline.WorkerCount)
	clampInt(&c.Pipeline.MaxQueueSize, def.Pipeline.MaxQueueSize)
	if c.Pipeline.JobTTL <= 0 {
		c.Pipeline.JobTTL = def.Pipeline.JobTTL
	}
}

// Offline switches every collaborator to its local implementation.
func (c *Config) Offline() {
	c.LLM.Provider = "offline"
	c.Classifier.Mode = "headings"
	c.Resolver.Structurer = "local"
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	if !slices.Contains([]string{"anthropic", "openai", "offline"}, c.LLM.Provider) {
		errs = append(errs, fmt.Errorf("llm.provider %q must be anthropic, openai or offline", c.LLM.Provider))
	}
	if c.LLM.Provider != "offline" && c.LLM.APIKey == "" {
		errs = append(errs, fmt.Errorf("an API key is required for provider %q", c.LLM.Provider))
	}
	if !slices.Contains([]string{"llm", "headings"}, c.Classifier.Mode) {
		errs = append(errs, fmt.Errorf("classifier.mode %q must be llm or headings", c.Classifier.Mode))
	}
	if !slices.Contains([]string{"llm", "local"}, c.Resolver.Structurer) {
		errs = append(errs, fmt.Errorf("resolver.structurer %q must be llm or local", c.Resolver.Structurer))
	}
	if c.Classifier.BudgetFraction > 1 || c.Resolver.BudgetFraction > 1 {
		errs = append(errs, errors.New("budget fractions must not exceed 1"))
	}
	if c.Aggregate.HookWords > c.Aggregate.BoundedWords {
		errs = append(errs, fmt.Errorf("aggregate.hook_words (%d) exceeds aggregate.bounded_words (%d)", c.Aggregate.HookWords, c.Aggregate.BoundedWords))
	}
	if !slices.Contains([]string{"json", "text"}, c.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format %q must be json or text", c.Log.Format))
	}
	return errors.Join(errs...)
}

func clampInt(v *int, def int) {
	if *v <= 0 {
		*v = def
	}
}

func clampFloat(v *float64, def float64) {
	if *v <= 0 {
		*v = def
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
