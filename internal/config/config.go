package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. DOCQA_SERVER_ADDRESS
const EnvPrefix = "DOCQA"

// Config is the full runtime configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Generator GeneratorConfig `mapstructure:"generator"`
	RAG       RAGConfig       `mapstructure:"rag"`
	Session   SessionConfig   `mapstructure:"session"`
	Chat      ChatConfig      `mapstructure:"chat"`
	Timeouts  TimeoutsConfig  `mapstructure:"timeouts"`
	Log       LogConfig       `mapstructure:"log"`

	// Warnings lists values Normalize replaced with defaults
	Warnings []string `mapstructure:"-"`
}

type ServerConfig struct {
	Address        string        `mapstructure:"address"`
	AdminToken     string        `mapstructure:"admin_token"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type StorageConfig struct {
	Path string `mapstructure:"path"`
}

type EmbeddingConfig struct {
	Provider      string  `mapstructure:"provider"` // local, openai or jina
	BaseURL       string  `mapstructure:"base_url"`
	Model         string  `mapstructure:"model"`
	APIKey        string  `mapstructure:"api_key"`
	Dimension     int     `mapstructure:"dimension"`
	CacheSize     int     `mapstructure:"cache_size"`
	Fallback      string  `mapstructure:"fallback"` // none, zero or random
	RatePerSecond float64 `mapstructure:"rate_per_second"`
	Burst         int     `mapstructure:"burst"`

	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type GeneratorConfig struct {
	Provider string `mapstructure:"provider"` // openai or none
	BaseURL  string `mapstructure:"base_url"`
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"`

	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type RAGConfig struct {
	Mode            string        `mapstructure:"mode"` // semantic, hyde, hybrid or hybrid+hyde
	Collection      string        `mapstructure:"collection"`
	MultiCollection bool          `mapstructure:"multi_collection"`
	TopK            int           `mapstructure:"top_k"`
	Candidates      int           `mapstructure:"candidates"`
	Rerank          bool          `mapstructure:"rerank"`
	RerankTopN      int           `mapstructure:"rerank_top_n"`
	LexicalWeight   float64       `mapstructure:"lexical_weight"`
	BatchSize       int           `mapstructure:"batch_size"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
}

type SessionConfig struct {
	Store       string        `mapstructure:"store"` // memory or redis
	MaxSessions int           `mapstructure:"max_sessions"`
	TTL         time.Duration `mapstructure:"ttl"`
	Redis       RedisConfig   `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ChatConfig struct {
	MaxHistory   int    `mapstructure:"max_history"`
	Organization string `mapstructure:"organization"`
}

type TimeoutsConfig struct {
	Chat   time.Duration `mapstructure:"chat"`
	Ingest time.Duration `mapstructure:"ingest"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn or error
	Format string `mapstructure:"format"` // text or json
}

// Load reads defaults, then the config file, then DOCQA_* environment
// variables. An empty path searches for docqa.{yaml,json,toml} in ., ./config
// and $HOME/.docqa; a missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("docqa")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.docqa")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.admin_token", "")
	v.SetDefault("server.request_timeout", "60s")

	v.SetDefault("storage.path", "docqa.db")

	v.SetDefault("embedding.provider", "local")
	v.SetDefault("embedding.base_url", "")
	v.SetDefault("embedding.model", "")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.dimension", 0)
	v.SetDefault("embedding.cache_size", 10000)
	v.SetDefault("embedding.fallback", "none")
	v.SetDefault("embedding.rate_per_second", 0)
	v.SetDefault("embedding.burst", 1)
	v.SetDefault("embedding.request_timeout", "30s")

	v.SetDefault("generator.provider", "none")
	v.SetDefault("generator.base_url", "")
	v.SetDefault("generator.model", "gpt-4o-mini")
	v.SetDefault("generator.api_key", "")
	v.SetDefault("generator.request_timeout", "60s")

	v.SetDefault("rag.mode", "hybrid+hyde")
	v.SetDefault("rag.collection", "")
	v.SetDefault("rag.multi_collection", false)
	v.SetDefault("rag.top_k", 6)
	v.SetDefault("rag.candidates", 0)
	v.SetDefault("rag.rerank", false)
	v.SetDefault("rag.rerank_top_n", 5)
	v.SetDefault("rag.lexical_weight", 0.3)
	v.SetDefault("rag.batch_size", 50)
	v.SetDefault("rag.cache_ttl", "10m")

	v.SetDefault("session.store", "memory")
	v.SetDefault("session.max_sessions", 1000)
	v.SetDefault("session.ttl", "24h")
	v.SetDefault("session.redis.addr", "localhost:6379")
	v.SetDefault("session.redis.password", "")
	v.SetDefault("session.redis.db", 0)

	v.SetDefault("chat.max_history", 50)
	v.SetDefault("chat.organization", "UVAQ")

	v.SetDefault("timeouts.chat", "30s")
	v.SetDefault("timeouts.ingest", "5m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

var (
	validModes     = []string{"semantic", "hyde", "hybrid", "hybrid+hyde"}
	validFallbacks = []string{"none", "zero", "random"}
	validLevels    = []string{"debug", "info", "warn", "error"}
	validFormats   = []string{"text", "json"}
)

// Normalize lowercases enumerations and replaces malformed soft settings
// with their defaults, recording a warning for each
func (c *Config) Normalize() {
	def := Default()

	c.Embedding.Provider = strings.ToLower(strings.TrimSpace(c.Embedding.Provider))
	c.Generator.Provider = strings.ToLower(strings.TrimSpace(c.Generator.Provider))
	c.Session.Store = strings.ToLower(strings.TrimSpace(c.Session.Store))

	c.RAG.Mode = c.oneOf("rag.mode", c.RAG.Mode, def.RAG.Mode, validModes)
	c.Embedding.Fallback = c.oneOf("embedding.fallback", c.Embedding.Fallback, def.Embedding.Fallback, validFallbacks)
	c.Log.Level = c.oneOf("log.level", c.Log.Level, def.Log.Level, validLevels)
	c.Log.Format = c.oneOf("log.format", c.Log.Format, def.Log.Format, validFormats)

	c.RAG.TopK = c.positive("rag.top_k", c.RAG.TopK, def.RAG.TopK)
	c.RAG.RerankTopN = c.positive("rag.rerank_top_n", c.RAG.RerankTopN, def.RAG.RerankTopN)
	c.RAG.BatchSize = c.positive("rag.batch_size", c.RAG.BatchSize, def.RAG.BatchSize)
	c.Chat.MaxHistory = c.positive("chat.max_history", c.Chat.MaxHistory, def.Chat.MaxHistory)
	c.Session.MaxSessions = c.positive("session.max_sessions", c.Session.MaxSessions, def.Session.MaxSessions)

	if c.RAG.LexicalWeight < 0 {
		c.warn("rag.lexical_weight", c.RAG.LexicalWeight, def.RAG.LexicalWeight)
		c.RAG.LexicalWeight = def.RAG.LexicalWeight
	}
	if c.Embedding.RequestTimeout <= 0 {
		c.warn("embedding.request_timeout", c.Embedding.RequestTimeout, def.Embedding.RequestTimeout)
		c.Embedding.RequestTimeout = def.Embedding.RequestTimeout
	}
	if c.Generator.RequestTimeout <= 0 {
		c.warn("generator.request_timeout", c.Generator.RequestTimeout, def.Generator.RequestTimeout)
		c.Generator.RequestTimeout = def.Generator.RequestTimeout
	}
	if c.Timeouts.Chat <= 0 {
		c.warn("timeouts.chat", c.Timeouts.Chat, def.Timeouts.Chat)
		c.Timeouts.Chat = def.Timeouts.Chat
	}
	if c.Timeouts.Ingest <= 0 {
		c.warn("timeouts.ingest", c.Timeouts.Ingest, def.Timeouts.Ingest)
		c.Timeouts.Ingest = def.Timeouts.Ingest
	}
	if c.Chat.Organization == "" {
		c.Chat.Organization = def.Chat.Organization
	}
}

func (c *Config) oneOf(key, value, fallback string, valid []string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	for _, v := range valid {
		if value == v {
			return value
		}
	}
	c.warn(key, value, fallback)
	return fallback
}

func (c *Config) positive(key string, value, fallback int) int {
	if value > 0 {
		return value
	}
	c.warn(key, value, fallback)
	return fallback
}

func (c *Config) warn(key string, got, used any) {
	c.Warnings = append(c.Warnings, fmt.Sprintf("invalid %s %v, using %v", key, got, used))
}

// Validate rejects settings that have no safe default
func (c *Config) Validate() error {
	if c.Storage.Path == "" {
		return errors.New("storage.path is required")
	}

	switch c.Embedding.Provider {
	case "local", "openai", "jina":
	default:
		return fmt.Errorf("unknown embedding.provider %q", c.Embedding.Provider)
	}
	if c.Embedding.Dimension < 0 {
		return fmt.Errorf("embedding.dimension must be >= 0, got %d", c.Embedding.Dimension)
	}

	switch c.Generator.Provider {
	case "", "none", "openai":
	default:
		return fmt.Errorf("unknown generator.provider %q", c.Generator.Provider)
	}

	switch c.Session.Store {
	case "memory":
	case "redis":
		if c.Session.Redis.Addr == "" {
			return errors.New("session.redis.addr is required for the redis store")
		}
	default:
		return fmt.Errorf("unknown session.store %q", c.Session.Store)
	}

	return nil
}
