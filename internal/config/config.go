package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the SproutWatch server.
type Config struct {
	Port       int      `env:"SPROUTWATCH_PORT" envDefault:"8080"`
	Version    string   `env:"SPROUTWATCH_VERSION" envDefault:"0.1.0"`
	LogLevel   string   `env:"LOG_LEVEL" envDefault:"info"`
	ConfigFile string   `env:"SPROUTWATCH_CONFIG"`
	APIKeys    []string `env:"SPROUTWATCH_API_KEYS" envSeparator:","`

	Store     StoreConfig
	Device    DeviceConfig
	MQTT      MQTTConfig
	LLM       LLMConfig
	Telemetry TelemetryConfig
}

type StoreConfig struct {
	Driver     string `env:"STORE_DRIVER" envDefault:"sqlite"`
	SQLitePath string `env:"STORE_SQLITE_PATH" envDefault:"sproutwatch.db"`
	RedisURL   string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	Prefix     string `env:"STORE_PREFIX" envDefault:"sproutwatch:"`
}

type DeviceConfig struct {
	URL            string        `env:"DEVICE_URL" envDefault:"http://192.168.1.100/ai_garden/latest.json"`
	SampleInterval time.Duration `env:"SAMPLE_INTERVAL" envDefault:"2s"`
	ProbeTimeout   time.Duration `env:"PROBE_TIMEOUT" envDefault:"5s"`
}

type MQTTConfig struct {
	// Broker is empty when readings are pulled over HTTP instead.
	Broker      string `env:"MQTT_BROKER"`
	ClientID    string `env:"MQTT_CLIENT_ID"`
	Username    string `env:"MQTT_USERNAME"`
	Password    string `env:"MQTT_PASSWORD"`
	TopicPrefix string `env:"MQTT_TOPIC_PREFIX" envDefault:"garden"`
	// StaleAfter is how long a pushed reading counts as current.
	StaleAfter time.Duration `env:"MQTT_STALE_AFTER" envDefault:"10s"`
}

type LLMConfig struct {
	BaseURL string        `env:"LLM_BASE_URL" envDefault:"https://openrouter.ai/api/v1"`
	APIKey  string        `env:"LLM_API_KEY"`
	Model   string        `env:"LLM_MODEL" envDefault:"google/gemini-2.5-flash"`
	Timeout time.Duration `env:"LLM_TIMEOUT" envDefault:"120s"`
}

type TelemetryConfig struct {
	Enabled      bool   `env:"OTEL_ENABLED" envDefault:"false"`
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	ServiceName  string `env:"OTEL_SERVICE_NAME" envDefault:"sproutwatch"`
}

// DotenvFiles are loaded, when present, before the environment is parsed.
// Variables already set in the process environment are never overridden.
var DotenvFiles = []string{".env", ".env.local"}

// Load reads .env files, the process environment and, if SPROUTWATCH_CONFIG
// points at one, a TOML settings file. Environment variables win over the file.
func Load() (*Config, error) {
	if err := loadDotenv(DotenvFiles); err != nil {
		return nil, fmt.Errorf("load dotenv: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if cfg.ConfigFile != "" {
		fs, err := ReadFile(cfg.ConfigFile)
		if err != nil {
			return nil, err
		}
		fs.Apply(cfg, EnvIsSet)
	}
	return cfg, nil
}

func loadDotenv(files []string) error {
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// EnvIsSet reports whether key is present in the process environment.
func EnvIsSet(key string) bool {
	_, ok := os.LookupEnv(key)
	return ok
}
