package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

const (
	maxArchiveWorkers = 10
	maxFilenameLength = 100
)

// Config stores all configuration for the application.
type Config struct {
	ServerPort     string        `mapstructure:"SERVER_PORT"`
	LogLevel       string        `mapstructure:"LOG_LEVEL"`
	AllowedOrigins []string      `mapstructure:"CORS_ALLOWED_ORIGINS"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`

	FetchTimeout    time.Duration `mapstructure:"FETCH_TIMEOUT"`
	MaxBodyBytes    int64         `mapstructure:"MAX_BODY_BYTES"`
	UserAgents      []string      `mapstructure:"USER_AGENTS"`
	OutboundProxies []string      `mapstructure:"OUTBOUND_PROXIES"`
	LazyAttributes  []string      `mapstructure:"LAZY_ATTRIBUTES"`
	CDNHosts        []string      `mapstructure:"CDN_HOSTS"`

	ScrollRounds  int           `mapstructure:"SCROLL_ROUNDS"`
	ScrollPause   time.Duration `mapstructure:"SCROLL_PAUSE"`
	FinalPause    time.Duration `mapstructure:"FINAL_PAUSE"`
	RenderTimeout time.Duration `mapstructure:"RENDER_TIMEOUT"`
	ChromePath    string        `mapstructure:"CHROME_PATH"`

	ArchiveWorkers    int `mapstructure:"ARCHIVE_WORKERS"`
	FilenameMaxLength int `mapstructure:"FILENAME_MAX_LENGTH"`

	RedisAddr          string        `mapstructure:"REDIS_ADDR"`
	RedisPassword      string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB            int           `mapstructure:"REDIS_DB"`
	RelayCacheTTL      time.Duration `mapstructure:"RELAY_CACHE_TTL"`
	RelayCacheMaxBytes int           `mapstructure:"RELAY_CACHE_MAX_BYTES"`

	PostgresURL string `mapstructure:"POSTGRES_URL"`
}

// Load reads configuration from the given env file or environment variables.
func Load(envFile string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(envFile)
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Attempt to read the .env file, but don't fail if it's not present
	// This allows configuration purely through environment variables in production
	_ = v.ReadInConfig()

	if err := v.BindEnv("SERVER_PORT", "SERVER_PORT", "PORT"); err != nil {
		return nil, err
	}

	// Set default values
	v.SetDefault("SERVER_PORT", "5001")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", []string{"*"})
	v.SetDefault("REQUEST_TIMEOUT", 120*time.Second)
	v.SetDefault("FETCH_TIMEOUT", 20*time.Second)
	v.SetDefault("MAX_BODY_BYTES", 50<<20)
	v.SetDefault("USER_AGENTS", []string{})
	v.SetDefault("OUTBOUND_PROXIES", []string{})
	v.SetDefault("LAZY_ATTRIBUTES", []string{"data-src", "data-lazy-src", "data-original"})
	v.SetDefault("CDN_HOSTS", []string{"static.wikia.nocookie.net", "vignette*.wikia.nocookie.net"})
	v.SetDefault("SCROLL_ROUNDS", 5)
	v.SetDefault("SCROLL_PAUSE", 2*time.Second)
	v.SetDefault("FINAL_PAUSE", 2*time.Second)
	v.SetDefault("RENDER_TIMEOUT", 60*time.Second)
	v.SetDefault("CHROME_PATH", "")
	v.SetDefault("ARCHIVE_WORKERS", maxArchiveWorkers)
	v.SetDefault("FILENAME_MAX_LENGTH", maxFilenameLength)
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("RELAY_CACHE_TTL", 10*time.Minute)
	v.SetDefault("RELAY_CACHE_MAX_BYTES", 5<<20)
	v.SetDefault("POSTGRES_URL", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT must not be empty")
	}
	if c.ScrollRounds < 0 {
		return fmt.Errorf("SCROLL_ROUNDS must not be negative, got %d", c.ScrollRounds)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("FETCH_TIMEOUT must be positive, got %s", c.FetchTimeout)
	}
	c.ArchiveWorkers = clamp(c.ArchiveWorkers, 1, maxArchiveWorkers)
	c.FilenameMaxLength = clamp(c.FilenameMaxLength, 1, maxFilenameLength)
	return nil
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
