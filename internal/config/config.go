package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Chatbot  ChatbotConfig
	Log      LogConfig
	CORS     CORSConfig
	Security SecurityConfig
}

type ServerConfig struct {
	Port            int
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	ForceHTTPS      bool          `mapstructure:"force_https"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
}

type DatabaseConfig struct {
	Driver   string // postgres or memory
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

type RedisConfig struct {
	Addr     string // empty disables the profile cache
	Password string
	DB       int
	TTL      time.Duration
}

type ChatbotConfig struct {
	Provider     string // openai or gemini
	Model        string
	APIKey       string `mapstructure:"api_key"`
	BaseURL      string `mapstructure:"base_url"`
	HistoryLimit int    `mapstructure:"history_limit"`
}

type LogConfig struct {
	Level  string
	Format string // json or console
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type SecurityConfig struct {
	BcryptCost int `mapstructure:"bcrypt_cost"`
}

// DSN builds the pgx connection string
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     "/" + d.Name,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.force_https", false)
	v.SetDefault("server.max_body_bytes", 1<<20)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.name", "companion")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 10*time.Minute)

	v.SetDefault("chatbot.provider", "openai")
	v.SetDefault("chatbot.model", "gpt-4o-mini")
	v.SetDefault("chatbot.api_key", "")
	v.SetDefault("chatbot.base_url", "https://api.openai.com/v1")
	v.SetDefault("chatbot.history_limit", 20)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("cors.allowed_origins", []string{"*"})

	v.SetDefault("security.bcrypt_cost", bcrypt.DefaultCost)
}

// Load reads .env, an optional config.yaml and COMPANION_* environment
// variables, in increasing order of precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("COMPANION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("database.driver must be postgres or memory, got %q", c.Database.Driver)
	}
	switch c.Chatbot.Provider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("chatbot.provider must be openai or gemini, got %q", c.Chatbot.Provider)
	}
	if c.Chatbot.HistoryLimit <= 0 {
		c.Chatbot.HistoryLimit = 20
	}
	if c.Security.BcryptCost < bcrypt.MinCost || c.Security.BcryptCost > bcrypt.MaxCost {
		c.Security.BcryptCost = bcrypt.DefaultCost
	}
	return nil
}
