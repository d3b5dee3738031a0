package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/neurobridge-player/internal/clients/backend"
	"github.com/yungbote/neurobridge-player/internal/clients/redis"
	"github.com/yungbote/neurobridge-player/internal/db"
	"github.com/yungbote/neurobridge-player/internal/pipeline"
	"github.com/yungbote/neurobridge-player/internal/platform/envutil"
	"github.com/yungbote/neurobridge-player/internal/platform/logger"
)

type BackendConfig struct {
	BaseURL         string        `yaml:"base_url"`
	Timeout         time.Duration `yaml:"timeout"`
	GenerateTimeout time.Duration `yaml:"generate_timeout"`
	MaxRetries      int           `yaml:"max_retries"`
}

type GenerationConfig struct {
	Provider    string           `yaml:"provider"`
	Model       string           `yaml:"model"`
	Temperature float64          `yaml:"temperature"`
	Prompts     pipeline.Prompts `yaml:"prompts"`
}

type CacheConfig struct {
	// Backend is "memory", "redis" or "gorm".
	Backend string        `yaml:"backend"`
	Prefix  string        `yaml:"prefix"`
	TTL     time.Duration `yaml:"ttl"`
}

type PlayerConfig struct {
	MaxConcurrentGenerations int `yaml:"max_concurrent_generations"`
	MaxSessions              int `yaml:"max_sessions"`
}

type SessionConfig struct {
	JWTSecret  string `yaml:"jwt_secret"`
	CookieName string `yaml:"cookie_name"`
}

type Config struct {
	Port        string   `yaml:"port"`
	Environment string   `yaml:"environment"`
	CORSOrigins []string `yaml:"cors_origins"`

	Backend    BackendConfig    `yaml:"backend"`
	Generation GenerationConfig `yaml:"generation"`
	Cache      CacheConfig      `yaml:"cache"`
	Database   db.Config        `yaml:"database"`
	Redis      redis.Config     `yaml:"redis"`
	// SSEChannel is the redis pub/sub channel relaying player events
	// between instances. Empty disables the relay.
	SSEChannel string        `yaml:"sse_channel"`
	Player     PlayerConfig  `yaml:"player"`
	Session    SessionConfig `yaml:"session"`
}

func defaultConfig() Config {
	return Config{
		Port:        "8080",
		Environment: "development",
		Backend: BackendConfig{
			BaseURL:         "http://localhost:5000/api",
			Timeout:         30 * time.Second,
			GenerateTimeout: 5 * time.Minute,
			MaxRetries:      3,
		},
		Generation: GenerationConfig{
			Provider:    "gemini",
			Temperature: 0.7,
			Prompts:     pipeline.DefaultPrompts(),
		},
		Cache:    CacheConfig{Backend: "memory", Prefix: "nbp:legacy:", TTL: 30 * 24 * time.Hour},
		Database: db.Config{Driver: "postgres", Host: "localhost", Port: "5432", User: "postgres", Name: "neurobridge"},
		Player:   PlayerConfig{MaxConcurrentGenerations: 8},
		Session:  SessionConfig{CookieName: "token"},
	}
}

// LoadConfig reads defaults, then the YAML file named by PLAYER_CONFIG_FILE,
// then environment overrides.
func LoadConfig(log *logger.Logger) (Config, error) {
	cfg := defaultConfig()
	if path := envutil.String("PLAYER_CONFIG_FILE", ""); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		log.Info("Loaded config file", "path", path)
	}
	applyEnv(&cfg)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Port = envutil.String("PORT", cfg.Port)
	cfg.Environment = envutil.String("ENVIRONMENT", cfg.Environment)
	if v := envutil.String("CORS_ORIGINS", ""); v != "" {
		cfg.CORSOrigins = splitList(v)
	}

	cfg.Backend.BaseURL = envutil.String("BACKEND_URL", cfg.Backend.BaseURL)
	cfg.Backend.Timeout = envutil.Duration("BACKEND_TIMEOUT", cfg.Backend.Timeout)
	cfg.Backend.GenerateTimeout = envutil.Duration("BACKEND_GENERATE_TIMEOUT", cfg.Backend.GenerateTimeout)
	cfg.Backend.MaxRetries = envutil.Int("BACKEND_MAX_RETRIES", cfg.Backend.MaxRetries)

	cfg.Generation.Provider = envutil.String("GENERATION_PROVIDER", cfg.Generation.Provider)
	cfg.Generation.Model = envutil.String("GENERATION_MODEL", cfg.Generation.Model)
	cfg.Generation.Temperature = envutil.Float("GENERATION_TEMPERATURE", cfg.Generation.Temperature)

	cfg.Cache.Backend = strings.ToLower(envutil.String("CACHE_BACKEND", cfg.Cache.Backend))
	cfg.Cache.Prefix = envutil.String("CACHE_PREFIX", cfg.Cache.Prefix)
	cfg.Cache.TTL = envutil.Duration("CACHE_TTL", cfg.Cache.TTL)

	cfg.Database.Driver = envutil.String("DB_DRIVER", cfg.Database.Driver)
	cfg.Database.DSN = envutil.String("DB_DSN", cfg.Database.DSN)
	cfg.Database.Host = envutil.String("POSTGRES_HOST", cfg.Database.Host)
	cfg.Database.Port = envutil.String("POSTGRES_PORT", cfg.Database.Port)
	cfg.Database.User = envutil.String("POSTGRES_USER", cfg.Database.User)
	cfg.Database.Password = envutil.String("POSTGRES_PASSWORD", cfg.Database.Password)
	cfg.Database.Name = envutil.String("POSTGRES_NAME", cfg.Database.Name)

	cfg.Redis.Addr = envutil.String("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = envutil.String("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = envutil.Int("REDIS_DB", cfg.Redis.DB)
	cfg.SSEChannel = envutil.String("REDIS_CHANNEL", cfg.SSEChannel)

	cfg.Player.MaxConcurrentGenerations = envutil.Int("PLAYER_MAX_CONCURRENT_GENERATIONS", cfg.Player.MaxConcurrentGenerations)
	cfg.Player.MaxSessions = envutil.Int("PLAYER_MAX_SESSIONS", cfg.Player.MaxSessions)

	cfg.Session.JWTSecret = envutil.String("SESSION_JWT_SECRET", cfg.Session.JWTSecret)
	cfg.Session.CookieName = envutil.String("SESSION_COOKIE", cfg.Session.CookieName)
}

func (c Config) validate() error {
	switch c.Cache.Backend {
	case "memory", "gorm":
	case "redis":
		if strings.TrimSpace(c.Redis.Addr) == "" {
			return fmt.Errorf("cache backend redis needs REDIS_ADDR")
		}
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	if strings.TrimSpace(c.Backend.BaseURL) == "" {
		return fmt.Errorf("backend base url required")
	}
	return nil
}

func (c Config) backendConfig() backend.Config {
	return backend.Config{
		BaseURL:         c.Backend.BaseURL,
		Timeout:         c.Backend.Timeout,
		GenerateTimeout: c.Backend.GenerateTimeout,
		MaxRetries:      c.Backend.MaxRetries,
		SessionCookie:   c.Session.CookieName,
		Provider:        c.Generation.Provider,
		Model:           c.Generation.Model,
		Temperature:     c.Generation.Temperature,
	}
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
