// Package config loads Autonoma settings from an optional YAML file and
// AUTONOMA_* environment variables.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Engine     EngineConfig     `mapstructure:"engine"`
	Policy     PolicyConfig     `mapstructure:"policy"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Scheduling SchedulingConfig `mapstructure:"scheduling"`
	Store      StoreConfig      `mapstructure:"store"`
	Audit      AuditConfig      `mapstructure:"audit"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug | info | warn | error
	Format string `mapstructure:"format"` // text | json
}

type EngineConfig struct {
	// Design is the design used by one-shot diagnostics (deterministic | conversational).
	// Chat always runs the conversational design.
	Design      string        `mapstructure:"design"`
	NodeTimeout time.Duration `mapstructure:"node_timeout"`
}

type PolicyConfig struct {
	File string `mapstructure:"file"` // empty: compiled-in allow-list
}

type LLMConfig struct {
	Provider string        `mapstructure:"provider"` // openai | anthropic | none
	Model    string        `mapstructure:"model"`
	APIKey   string        `mapstructure:"api_key"`
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	RPS      float64       `mapstructure:"rps"`
	Burst    int           `mapstructure:"burst"`
}

type SchedulingConfig struct {
	Mode    string        `mapstructure:"mode"` // local | http
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type StoreConfig struct {
	Type  string          `mapstructure:"type"` // memory | redis | file
	Redis RedisConfig     `mapstructure:"redis"`
	File  FileStoreConfig `mapstructure:"file"`
	// RedactPatterns are masked out of stored transcripts; empty disables redaction.
	RedactPatterns []string `mapstructure:"redact_patterns"`
}

type FileStoreConfig struct {
	Dir string `mapstructure:"dir"`
	// Key is a base64 AES-256 key; when set, records are sealed at rest.
	Key string `mapstructure:"key"`
	// FallbackKeys still open records sealed before a key rotation.
	FallbackKeys []string `mapstructure:"fallback_keys"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type AuditConfig struct {
	// SQLitePath enables the durable audit log and insight store.
	SQLitePath string `mapstructure:"sqlite_path"`
	// RedisStream mirrors audit records to a Redis stream (requires store.redis.addr).
	RedisStream string `mapstructure:"redis_stream"`
}

type TelemetryConfig struct {
	File      string        `mapstructure:"file"` // empty: synthetic source
	Interval  time.Duration `mapstructure:"interval"`
	VehicleID string        `mapstructure:"vehicle_id"`
}

type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Endpoint    string `mapstructure:"endpoint"`
	Insecure    bool   `mapstructure:"insecure"`
	ServiceName string `mapstructure:"service_name"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("engine.design", "deterministic")
	v.SetDefault("engine.node_timeout", 30*time.Second)
	v.SetDefault("policy.file", "")
	v.SetDefault("llm.provider", "none")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.timeout", 20*time.Second)
	v.SetDefault("llm.rps", 2.0)
	v.SetDefault("llm.burst", 4)
	v.SetDefault("scheduling.mode", "local")
	v.SetDefault("scheduling.base_url", "")
	v.SetDefault("scheduling.timeout", 5*time.Second)
	v.SetDefault("store.type", "memory")
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.redis.prefix", "autonoma:")
	v.SetDefault("store.redis.ttl", 24*time.Hour)
	v.SetDefault("store.file.dir", ".autonoma/runs")
	v.SetDefault("store.file.key", "")
	v.SetDefault("store.redact_patterns", []string{})
	v.SetDefault("audit.sqlite_path", "")
	v.SetDefault("audit.redis_stream", "")
	v.SetDefault("telemetry.file", "")
	v.SetDefault("telemetry.interval", 2*time.Second)
	v.SetDefault("telemetry.vehicle_id", "EV-DEMO-001")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4318")
	v.SetDefault("tracing.insecure", true)
	v.SetDefault("tracing.service_name", "autonoma")
	v.SetDefault("metrics.enabled", true)
}

// Load reads configuration from path (optional) and the environment.
// Environment keys use the AUTONOMA_ prefix with "." replaced by "_",
// e.g. AUTONOMA_LLM_API_KEY.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("AUTONOMA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerations and cross-field requirements.
func (c *Config) Validate() error {
	var errs []error
	oneOf := func(field, val string, allowed ...string) {
		for _, a := range allowed {
			if strings.EqualFold(val, a) {
				return
			}
		}
		errs = append(errs, fmt.Errorf("%s: %q is not one of %s", field, val, strings.Join(allowed, ", ")))
	}

	oneOf("engine.design", c.Engine.Design, "deterministic", "conversational")
	oneOf("llm.provider", c.LLM.Provider, "none", "openai", "anthropic")
	oneOf("scheduling.mode", c.Scheduling.Mode, "local", "http")
	oneOf("store.type", c.Store.Type, "memory", "redis", "file")
	oneOf("log.format", c.Log.Format, "text", "json")

	if !strings.EqualFold(c.LLM.Provider, "none") && c.LLM.APIKey == "" {
		errs = append(errs, errors.New("llm.api_key is required unless llm.provider is none"))
	}
	if _, _, err := c.Store.File.Keys(); err != nil {
		errs = append(errs, err)
	}
	if strings.EqualFold(c.Scheduling.Mode, "http") && c.Scheduling.BaseURL == "" {
		errs = append(errs, errors.New("scheduling.base_url is required in http mode"))
	}
	return errors.Join(errs...)
}

// Keys decodes the sealing keys. active is nil when encryption is off.
func (f FileStoreConfig) Keys() (active []byte, fallback [][]byte, err error) {
	if f.Key == "" {
		return nil, nil, nil
	}
	decode := func(field, v string) ([]byte, error) {
		k, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid base64: %w", field, err)
		}
		if len(k) != 32 {
			return nil, fmt.Errorf("%s: want a 32 byte key, got %d bytes", field, len(k))
		}
		return k, nil
	}
	if active, err = decode("store.file.key", f.Key); err != nil {
		return nil, nil, err
	}
	for i, v := range f.FallbackKeys {
		k, err := decode(fmt.Sprintf("store.file.fallback_keys[%d]", i), v)
		if err != nil {
			return nil, nil, err
		}
		fallback = append(fallback, k)
	}
	return active, fallback, nil
}
