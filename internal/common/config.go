package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string           `toml:"environment"` // "development" or "production"
	Server      ServerConfig     `toml:"server"`
	Queue       QueueConfig      `toml:"queue"`
	Storage     StorageConfig    `toml:"storage"`
	Logging     LoggingConfig    `toml:"logging"`
	Pipeline    PipelineConfig   `toml:"pipeline"`
	Scoring     ScoringConfig    `toml:"scoring"`
	Chat        ChatConfig       `toml:"chat"`
	Vocabulary  VocabularyConfig `toml:"vocabulary"`
	Market      MarketConfig     `toml:"market"`
	Gemini      GeminiConfig     `toml:"gemini"`
	Claude      ClaudeConfig     `toml:"claude"`
	LLM         LLMConfig        `toml:"llm"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type QueueConfig struct {
	PollInterval      string `toml:"poll_interval"`      // e.g., "1s" - how often workers poll for messages
	Concurrency       int    `toml:"concurrency"`        // Number of concurrent stage workers
	VisibilityTimeout string `toml:"visibility_timeout"` // e.g., "5m" - message visibility timeout for redelivery
	MaxReceive        int    `toml:"max_receive"`        // Max times a message can be received before dead-letter
	QueueName         string `toml:"queue_name"`         // Queue name prefix in Badger
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Format     string   `toml:"format"`      // "json" or "text"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05.000")
}

// PipelineConfig contains configuration for analysis pipeline behavior
type PipelineConfig struct {
	MaxAttempts       int    `toml:"max_attempts"`       // Max attempts per stage before the job is failed (default: 3)
	RetryBackoffBase  string `toml:"retry_backoff_base"` // Base delay for exponential retry backoff (default: "500ms")
	StageTimeout      string `toml:"stage_timeout"`      // Per-attempt timeout for a single stage execution (default: "2m")
	ChunkSize         int    `toml:"chunk_size"`         // Max characters per extraction chunk (default: 12000)
	CanonicalLanguage string `toml:"canonical_language"` // Language all documents are normalized to (default: "en")
}

// ScoringConfig contains the weighted scoring model parameters.
// Weights must be finite and must not all be zero; they need not sum to 1
// because the final score is clamped to [-1, 1].
type ScoringConfig struct {
	SentimentWeight float64 `toml:"sentiment_weight"` // Weight of per-ticker sentiment (default: 0.4)
	ImpactWeight    float64 `toml:"impact_weight"`    // Weight of regulatory impact (default: 0.4)
	RiskWeight      float64 `toml:"risk_weight"`      // Weight of sector-relative risk deviation (default: 0.2)
}

// ChatConfig contains configuration for analysis chat sessions
type ChatConfig struct {
	TokenBudget     int    `toml:"token_budget"`     // Approximate token ceiling per session context (default: 6000)
	RetainedTurns   int    `toml:"retained_turns"`   // Recent turns kept verbatim when older turns are summarized (default: 4)
	RetentionWindow string `toml:"retention_window"` // How long inactive sessions live before the sweeper removes them (default: "24h")
	SweepSchedule   string `toml:"sweep_schedule"`   // Cron schedule for the expiry sweeper (default: "0 */10 * * * *")
}

// VocabularyConfig contains configuration for the sector vocabulary file
type VocabularyConfig struct {
	Path string `toml:"path"` // Path to the sector vocabulary YAML file (default: "./vocabulary.yaml")
}

// MarketConfig contains market data provider configuration
type MarketConfig struct {
	BaseURL        string        `toml:"base_url"`        // Market data API base URL (empty: static dataset only)
	APIKey         string        `toml:"api_key"`         // Market data API key
	RateLimit      float64       `toml:"rate_limit"`      // Requests per second against the provider (default: 2)
	RequestTimeout string  `toml:"request_timeout"` // HTTP request timeout as duration string (default: "30s")
}

// GeminiConfig contains Google Gemini API configuration for AI services
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`     // Google Gemini API key
	Model       string  `toml:"model"`       // Model for AI operations (default: "gemini-3-flash-preview")
	Timeout     string  `toml:"timeout"`     // Operation timeout as duration string (default: "5m")
	RateLimit   string  `toml:"rate_limit"`  // Rate limit duration string (default: "4s" for 15 RPM)
	Temperature float32 `toml:"temperature"` // Completion temperature (default: 0.2)
}

// ClaudeConfig contains Anthropic Claude API configuration for AI services
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`     // Anthropic API key for Claude operations
	Model       string  `toml:"model"`       // Model for AI operations (default: "claude-haiku-3-5-20241022")
	MaxTokens   int     `toml:"max_tokens"`  // Maximum tokens in response (default: 4096)
	Timeout     string  `toml:"timeout"`     // Operation timeout as duration string (default: "5m")
	RateLimit   string  `toml:"rate_limit"`  // Rate limit duration string (default: "1s")
	Temperature float32 `toml:"temperature"` // Completion temperature (default: 0.2)
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	// LLMProviderGemini uses Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
	// LLMProviderClaude uses Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
)

// LLMConfig contains unified configuration for all AI providers
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider"` // Default provider: "gemini" or "claude" (default: "claude")
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability.
// Only user-facing settings should be exposed in censeo.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Queue: QueueConfig{
			PollInterval:      "1s",
			Concurrency:       8, // Stage workers across all pipeline stages
			VisibilityTimeout: "5m",
			MaxReceive:        3,
			QueueName:         "censeo_stages",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: []string{"stdout", "file"},
		},
		Pipeline: PipelineConfig{
			MaxAttempts:       3,
			RetryBackoffBase:  "500ms",
			StageTimeout:      "2m",
			ChunkSize:         12000,
			CanonicalLanguage: "en",
		},
		Scoring: ScoringConfig{
			SentimentWeight: 0.4,
			ImpactWeight:    0.4,
			RiskWeight:      0.2,
		},
		Chat: ChatConfig{
			TokenBudget:     6000,
			RetainedTurns:   4,
			RetentionWindow: "24h",
			SweepSchedule:   "0 */10 * * * *", // Every 10 minutes (cron format with seconds)
		},
		Vocabulary: VocabularyConfig{
			Path: "./vocabulary.yaml",
		},
		Market: MarketConfig{
			BaseURL:        "", // Empty: resolve tickers from the bundled static dataset
			APIKey:         "",
			RateLimit:      2,
			RequestTimeout: "30s",
		},
		Gemini: GeminiConfig{
			APIKey:      "", // User must provide API key (no fallback)
			Model:       "gemini-3-flash-preview",
			Timeout:     "5m",
			RateLimit:   "4s", // Default to 4s (15 RPM) for free tier
			Temperature: 0.2,
		},
		Claude: ClaudeConfig{
			APIKey:      "", // User must provide API key (ANTHROPIC_API_KEY or config)
			Model:       "claude-haiku-3-5-20241022",
			MaxTokens:   4096,
			Timeout:     "5m",
			RateLimit:   "1s",
			Temperature: 0.2,
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderClaude,
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env -> CLI
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files with priority:
// default -> file1 -> file2 -> ... -> env -> CLI. Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	// Start with defaults
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier files)
	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		err = toml.Unmarshal(data, config)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	// Apply environment variables (overrides all file configs)
	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	// Environment configuration (highest priority: CENSEO_ENV, fallback: GO_ENV)
	if env := os.Getenv("CENSEO_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("CENSEO_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("CENSEO_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Queue configuration
	if pollInterval := os.Getenv("CENSEO_QUEUE_POLL_INTERVAL"); pollInterval != "" {
		config.Queue.PollInterval = pollInterval
	}
	if concurrency := os.Getenv("CENSEO_QUEUE_CONCURRENCY"); concurrency != "" {
		if c, err := strconv.Atoi(concurrency); err == nil {
			config.Queue.Concurrency = c
		}
	}
	if visibilityTimeout := os.Getenv("CENSEO_QUEUE_VISIBILITY_TIMEOUT"); visibilityTimeout != "" {
		config.Queue.VisibilityTimeout = visibilityTimeout
	}
	if maxReceive := os.Getenv("CENSEO_QUEUE_MAX_RECEIVE"); maxReceive != "" {
		if mr, err := strconv.Atoi(maxReceive); err == nil {
			config.Queue.MaxReceive = mr
		}
	}
	if queueName := os.Getenv("CENSEO_QUEUE_NAME"); queueName != "" {
		config.Queue.QueueName = queueName
	}

	// Storage configuration
	if badgerPath := os.Getenv("CENSEO_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Logging configuration
	if level := os.Getenv("CENSEO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("CENSEO_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if output := os.Getenv("CENSEO_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			trimmed := strings.TrimSpace(o)
			if trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Pipeline configuration
	if maxAttempts := os.Getenv("CENSEO_PIPELINE_MAX_ATTEMPTS"); maxAttempts != "" {
		if ma, err := strconv.Atoi(maxAttempts); err == nil {
			config.Pipeline.MaxAttempts = ma
		}
	}
	if backoff := os.Getenv("CENSEO_PIPELINE_RETRY_BACKOFF_BASE"); backoff != "" {
		if _, err := time.ParseDuration(backoff); err == nil {
			config.Pipeline.RetryBackoffBase = backoff
		}
	}
	if stageTimeout := os.Getenv("CENSEO_PIPELINE_STAGE_TIMEOUT"); stageTimeout != "" {
		if _, err := time.ParseDuration(stageTimeout); err == nil {
			config.Pipeline.StageTimeout = stageTimeout
		}
	}
	if chunkSize := os.Getenv("CENSEO_PIPELINE_CHUNK_SIZE"); chunkSize != "" {
		if cs, err := strconv.Atoi(chunkSize); err == nil {
			config.Pipeline.ChunkSize = cs
		}
	}
	if lang := os.Getenv("CENSEO_PIPELINE_CANONICAL_LANGUAGE"); lang != "" {
		config.Pipeline.CanonicalLanguage = lang
	}

	// Scoring configuration
	if w := os.Getenv("CENSEO_SCORING_SENTIMENT_WEIGHT"); w != "" {
		if f, err := strconv.ParseFloat(w, 64); err == nil {
			config.Scoring.SentimentWeight = f
		}
	}
	if w := os.Getenv("CENSEO_SCORING_IMPACT_WEIGHT"); w != "" {
		if f, err := strconv.ParseFloat(w, 64); err == nil {
			config.Scoring.ImpactWeight = f
		}
	}
	if w := os.Getenv("CENSEO_SCORING_RISK_WEIGHT"); w != "" {
		if f, err := strconv.ParseFloat(w, 64); err == nil {
			config.Scoring.RiskWeight = f
		}
	}

	// Chat configuration
	if budget := os.Getenv("CENSEO_CHAT_TOKEN_BUDGET"); budget != "" {
		if b, err := strconv.Atoi(budget); err == nil {
			config.Chat.TokenBudget = b
		}
	}
	if retained := os.Getenv("CENSEO_CHAT_RETAINED_TURNS"); retained != "" {
		if r, err := strconv.Atoi(retained); err == nil {
			config.Chat.RetainedTurns = r
		}
	}
	if window := os.Getenv("CENSEO_CHAT_RETENTION_WINDOW"); window != "" {
		if _, err := time.ParseDuration(window); err == nil {
			config.Chat.RetentionWindow = window
		}
	}

	// Vocabulary configuration
	if vocabPath := os.Getenv("CENSEO_VOCABULARY_PATH"); vocabPath != "" {
		config.Vocabulary.Path = vocabPath
	}

	// Market configuration
	if baseURL := os.Getenv("CENSEO_MARKET_BASE_URL"); baseURL != "" {
		config.Market.BaseURL = baseURL
	}
	if apiKey := os.Getenv("CENSEO_MARKET_API_KEY"); apiKey != "" {
		config.Market.APIKey = apiKey
	}
	if rateLimit := os.Getenv("CENSEO_MARKET_RATE_LIMIT"); rateLimit != "" {
		if rl, err := strconv.ParseFloat(rateLimit, 64); err == nil {
			config.Market.RateLimit = rl
		}
	}

	// Gemini configuration
	if apiKey := os.Getenv("CENSEO_GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	} else if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if model := os.Getenv("CENSEO_GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}
	if timeout := os.Getenv("CENSEO_GEMINI_TIMEOUT"); timeout != "" {
		config.Gemini.Timeout = timeout
	}
	if rateLimit := os.Getenv("CENSEO_GEMINI_RATE_LIMIT"); rateLimit != "" {
		config.Gemini.RateLimit = rateLimit
	}
	if temperature := os.Getenv("CENSEO_GEMINI_TEMPERATURE"); temperature != "" {
		if t, err := strconv.ParseFloat(temperature, 32); err == nil {
			config.Gemini.Temperature = float32(t)
		}
	}

	// Claude configuration
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if apiKey := os.Getenv("CENSEO_CLAUDE_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey // CENSEO_ prefix takes priority
	}
	if model := os.Getenv("CENSEO_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}
	if maxTokens := os.Getenv("CENSEO_CLAUDE_MAX_TOKENS"); maxTokens != "" {
		if mt, err := strconv.Atoi(maxTokens); err == nil {
			config.Claude.MaxTokens = mt
		}
	}
	if timeout := os.Getenv("CENSEO_CLAUDE_TIMEOUT"); timeout != "" {
		config.Claude.Timeout = timeout
	}
	if rateLimit := os.Getenv("CENSEO_CLAUDE_RATE_LIMIT"); rateLimit != "" {
		config.Claude.RateLimit = rateLimit
	}
	if temperature := os.Getenv("CENSEO_CLAUDE_TEMPERATURE"); temperature != "" {
		if t, err := strconv.ParseFloat(temperature, 32); err == nil {
			config.Claude.Temperature = float32(t)
		}
	}

	// LLM provider configuration
	if provider := os.Getenv("CENSEO_LLM_DEFAULT_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(provider)
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	// Command-line flags have highest priority
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// PollIntervalDuration parses the queue poll interval with a safe fallback
func (c *Config) PollIntervalDuration() time.Duration {
	return parseDurationOr(c.Queue.PollInterval, time.Second)
}

// VisibilityTimeoutDuration parses the queue visibility timeout with a safe fallback
func (c *Config) VisibilityTimeoutDuration() time.Duration {
	return parseDurationOr(c.Queue.VisibilityTimeout, 5*time.Minute)
}

// StageTimeoutDuration parses the per-attempt stage timeout with a safe fallback
func (c *Config) StageTimeoutDuration() time.Duration {
	return parseDurationOr(c.Pipeline.StageTimeout, 2*time.Minute)
}

// RetryBackoffBaseDuration parses the retry backoff base with a safe fallback
func (c *Config) RetryBackoffBaseDuration() time.Duration {
	return parseDurationOr(c.Pipeline.RetryBackoffBase, 500*time.Millisecond)
}

// RetentionWindowDuration parses the chat retention window with a safe fallback
func (c *Config) RetentionWindowDuration() time.Duration {
	return parseDurationOr(c.Chat.RetentionWindow, 24*time.Hour)
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
