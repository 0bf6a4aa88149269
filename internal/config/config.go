package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"ratefeed/internal/provider/cache"
)

// Env keys are PREFIX_FIELD (split_words). A field tagged with envconfig
// also answers to that bare name; only operator-facing keys carry a tag.

type Server struct {
	Port              string   `json:"port" yaml:"port" envconfig:"PORT"`
	RequestTimeoutSec int      `json:"request_timeout_sec" yaml:"request_timeout_sec" split_words:"true"`
	AllowedOrigins    []string `json:"allowed_origins" yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	MaxBodyBytes      int64    `json:"max_body_bytes" yaml:"max_body_bytes" split_words:"true"`
}

// Upstream points an exchange adapter at its API.
type Upstream struct {
	BaseURL string `json:"base_url" yaml:"base_url" split_words:"true"`
}

type Google struct {
	BaseURL            string `json:"base_url" yaml:"base_url" split_words:"true"`
	CacheExpireMinutes int    `json:"cache_expire_minutes" yaml:"cache_expire_minutes" split_words:"true"`
	// CachePolicy is "ttl" or "always".
	CachePolicy string `json:"cache_policy" yaml:"cache_policy" split_words:"true"`
	// CacheBackend is "memory", "file" or "redis".
	CacheBackend          string `json:"cache_backend" yaml:"cache_backend" split_words:"true"`
	CacheFile             string `json:"cache_file" yaml:"cache_file" split_words:"true"`
	MaxRequestsPerMinute  int    `json:"max_requests_per_minute" yaml:"max_requests_per_minute" split_words:"true"`
	Burst                 int    `json:"burst" yaml:"burst" split_words:"true"`
	MinRequestIntervalSec int    `json:"min_request_interval_sec" yaml:"min_request_interval_sec" split_words:"true"`
}

type Power struct {
	// Backend is "file" or "db".
	Backend     string `json:"backend" yaml:"backend" split_words:"true"`
	File        string `json:"file" yaml:"file" envconfig:"POWER_CONFIG_FILE"`
	DatabaseURL string `json:"database_url" yaml:"database_url" envconfig:"DATABASE_URL"`
}

type Telegram struct {
	BotToken string `json:"bot_token" yaml:"bot_token" split_words:"true"`
	ChatID   string `json:"chat_id" yaml:"chat_id" envconfig:"TG_GID"`
}

type Kafka struct {
	Brokers []string `json:"brokers" yaml:"brokers" split_words:"true"`
	Topic   string   `json:"topic" yaml:"topic" split_words:"true"`
}

type Broadcast struct {
	Enabled         bool   `json:"enabled" yaml:"enabled" split_words:"true"`
	IntervalMinutes int    `json:"interval_minutes" yaml:"interval_minutes" envconfig:"PRICE_BROADCAST_INTERVAL"`
	TemplateFile    string `json:"template_file" yaml:"template_file" split_words:"true"`
	Timezone        string `json:"timezone" yaml:"timezone" split_words:"true"`
}

type Redis struct {
	URL    string `json:"url" yaml:"url" split_words:"true"`
	Prefix string `json:"prefix" yaml:"prefix" split_words:"true"`
}

type Log struct {
	Level  string `json:"level" yaml:"level" split_words:"true"`
	Format string `json:"format" yaml:"format" split_words:"true"`
}

type Config struct {
	Server     Server    `json:"server" yaml:"server"`
	DataDir    string    `json:"data_dir" yaml:"data_dir" envconfig:"DATA_DIR"`
	HTTPSProxy string    `json:"https_proxy" yaml:"https_proxy" envconfig:"HTTPS_PROXY"`
	Binance    Upstream  `json:"binance" yaml:"binance" envconfig:"BINANCE"`
	OKX        Upstream  `json:"okx" yaml:"okx" envconfig:"OKX"`
	OKJ        Upstream  `json:"okj" yaml:"okj" envconfig:"OKJ"`
	Google     Google    `json:"google" yaml:"google" envconfig:"GOOGLE"`
	Power      Power     `json:"power" yaml:"power" envconfig:"POWER"`
	Broadcast  Broadcast `json:"broadcast" yaml:"broadcast" envconfig:"BROADCAST"`
	Telegram   Telegram  `json:"telegram" yaml:"telegram" envconfig:"TG"`
	Kafka      Kafka     `json:"kafka" yaml:"kafka" envconfig:"KAFKA"`
	Redis      Redis     `json:"redis" yaml:"redis" envconfig:"REDIS"`
	Log        Log       `json:"log" yaml:"log" envconfig:"LOG"`
}

func Default() Config {
	return Config{
		Server: Server{
			Port:              "7700",
			RequestTimeoutSec: 10,
			AllowedOrigins:    []string{"http://localhost:3000"},
			MaxBodyBytes:      1 << 20,
		},
		DataDir: "data",
		Google: Google{
			CacheExpireMinutes:   30,
			CachePolicy:          string(cache.PolicyTTL),
			CacheBackend:         "file",
			CacheFile:            "google-cache.json",
			MaxRequestsPerMinute: 20,
			Burst:                2,
		},
		Power: Power{Backend: "file", File: "g-power.json"},
		Broadcast: Broadcast{
			IntervalMinutes: 60,
			TemplateFile:    "message_template.json",
			Timezone:        "Asia/Tokyo",
		},
		Kafka: Kafka{Topic: "ratefeed.rates"},
		Redis: Redis{Prefix: "ratefeed:quote:"},
		Log:   Log{Level: "info", Format: "text"},
	}
}

// Load builds the config from defaults, then the file at path (JSON, or
// YAML for .yaml/.yml), then the environment. An empty path falls back to
// config.json in the working directory when present. A .env file, if any,
// is loaded into the environment first without overriding set variables.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		if _, err := os.Stat("config.json"); err == nil {
			path = "config.json"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := decode(path, b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}
	// Only variables that are set overwrite fields; none carry defaults here.
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, fmt.Errorf("env: %w", err)
	}
	return cfg, cfg.Validate()
}

func decode(path string, b []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(b, cfg)
	default:
		return json.Unmarshal(b, cfg)
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	if c.Server.RequestTimeoutSec <= 0 {
		errs = append(errs, errors.New("server.request_timeout_sec must be positive"))
	}
	if c.Google.CacheExpireMinutes <= 0 {
		errs = append(errs, errors.New("google.cache_expire_minutes must be positive"))
	}
	if _, err := cache.ParsePolicy(c.Google.CachePolicy); err != nil {
		errs = append(errs, fmt.Errorf("google.cache_policy: %w", err))
	}
	switch c.Google.CacheBackend {
	case "memory", "file":
	case "redis":
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("google.cache_backend=redis needs redis.url"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown google.cache_backend %q", c.Google.CacheBackend))
	}
	switch c.Power.Backend {
	case "file":
	case "db":
		if c.Power.DatabaseURL == "" {
			errs = append(errs, errors.New("power.backend=db needs power.database_url"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown power.backend %q", c.Power.Backend))
	}
	if c.Broadcast.IntervalMinutes <= 0 {
		errs = append(errs, errors.New("broadcast.interval_minutes must be positive"))
	}
	if _, err := time.LoadLocation(c.Broadcast.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("broadcast.timezone: %w", err))
	}
	return errors.Join(errs...)
}

// Path resolves name against DataDir unless it is absolute.
func (c Config) Path(name string) string {
	if filepath.IsAbs(name) || c.DataDir == "" {
		return name
	}
	return filepath.Join(c.DataDir, name)
}

func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSec) * time.Second
}

func (c Config) GoogleCacheTTL() time.Duration {
	return time.Duration(c.Google.CacheExpireMinutes) * time.Minute
}

func (c Config) BroadcastInterval() time.Duration {
	return time.Duration(c.Broadcast.IntervalMinutes) * time.Minute
}
