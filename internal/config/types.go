package config

// Config is the root BizChat configuration, persisted as TOML.
type Config struct {
	Server     ServerConfig     `toml:"server"`
	LLM        LLMConfig        `toml:"llm"`
	Store      StoreConfig      `toml:"store"`
	Context    ContextConfig    `toml:"context"`
	Resolver   ResolverConfig   `toml:"resolver"`
	Actions    ActionsConfig    `toml:"actions"`
	Moderation ModerationConfig `toml:"moderation"`
	Logging    LoggingConfig    `toml:"logging"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	// Addr is the listen address, host:port.
	Addr string `toml:"addr"`

	// MaxBodyBytes caps a single request body.
	MaxBodyBytes int64 `toml:"max_body_bytes"`

	// ShutdownTimeoutSec bounds graceful shutdown.
	ShutdownTimeoutSec int `toml:"shutdown_timeout_sec"`
}

// LLMConfig configures the language model endpoint. The endpoint speaks the
// OpenAI chat-completions protocol (LM Studio, llama.cpp server, vLLM).
type LLMConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
	Model   string `toml:"model"`

	Temperature float32 `toml:"temperature"`
	MaxTokens   int     `toml:"max_tokens"`

	// TimeoutSec bounds one completion call.
	TimeoutSec int `toml:"timeout_sec"`

	// RequestsPerMinute throttles outbound calls. 0 disables the limiter.
	RequestsPerMinute int `toml:"requests_per_minute"`
}

// StoreConfig configures the sqlite store.
type StoreConfig struct {
	Path string `toml:"path"`
}

// ContextConfig bounds the business-context block in the prompt.
type ContextConfig struct {
	MaxChars int `toml:"max_chars"`
}

// ResolverConfig tunes event matching.
type ResolverConfig struct {
	// KeywordRatio is the fraction of significant words that must
	// overlap for the keyword tier to match.
	KeywordRatio float64 `toml:"keyword_ratio"`
}

// ActionsConfig tunes action reconciliation.
type ActionsConfig struct {
	// LastEventFallback targets the most recent calendar event when an
	// event command names nothing resolvable.
	LastEventFallback bool `toml:"last_event_fallback"`
}

// ModerationConfig configures content filtering.
type ModerationConfig struct {
	// ForbiddenWords are blocked in addition to the built-in patterns.
	ForbiddenWords []string `toml:"forbidden_words"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level"`

	// Development switches to the human-readable console encoder.
	Development bool `toml:"development"`
}
