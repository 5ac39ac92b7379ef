// Package config loads engine configuration from an optional YAML file and
// the environment, and initializes the global logger.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all engine configuration.
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Storage StorageConfig `mapstructure:"storage"`
	Oracle  OracleConfig  `mapstructure:"oracle"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Comms   CommsConfig   `mapstructure:"comms"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// AppConfig contains application-level settings.
type AppConfig struct {
	Name      string `mapstructure:"name"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"` // "json" or "console"
	LogFile   string `mapstructure:"log_file"`   // optional rotating file sink
	Mode      string `mapstructure:"mode"`       // "simulation" or "realtime"
}

// StorageConfig contains persistence settings.
type StorageConfig struct {
	Dir string `mapstructure:"dir"`
}

// OracleConfig contains reasoning oracle settings.
type OracleConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BaseURL        string        `mapstructure:"base_url"`
	Model          string        `mapstructure:"model"`
	APIKey         string        `mapstructure:"api_key"`
	ResponseFormat string        `mapstructure:"response_format"` // text, json_object, off
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RequestsPerMin int           `mapstructure:"requests_per_minute"`
}

// EngineConfig contains the orchestration knobs.
type EngineConfig struct {
	TickInterval       time.Duration `mapstructure:"tick_interval"`
	LifecycleInterval  time.Duration `mapstructure:"lifecycle_interval"`
	WatchdogInterval   time.Duration `mapstructure:"watchdog_interval"`
	PriceTickInterval  time.Duration `mapstructure:"price_tick_interval"`
	MaxTotalAgents     int           `mapstructure:"max_total_agents"`
	MaxAgentsPerSector int           `mapstructure:"max_agents_per_sector"`
	ReadinessThreshold float64       `mapstructure:"readiness_threshold"`
	ConflictThreshold  float64       `mapstructure:"conflict_threshold"`
	MaxRounds          int           `mapstructure:"max_rounds"`
	ArchiveDelay       time.Duration `mapstructure:"archive_delay"`
	StallThreshold     time.Duration `mapstructure:"stall_threshold"`
	DebounceWindow     time.Duration `mapstructure:"debounce_window"`
	AutoManager        bool          `mapstructure:"auto_manager"`
}

// CommsConfig contains the optional NATS fan-out bridge settings.
type CommsConfig struct {
	NATSEnabled bool   `mapstructure:"nats_enabled"`
	NATSURL     string `mapstructure:"nats_url"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// envBindings maps config keys to the environment knobs the deployment
// surface documents. Millisecond knobs are parsed as integers.
var envBindings = map[string]string{
	"oracle.enabled":                "ORACLE_ENABLED",
	"oracle.base_url":               "ORACLE_BASE_URL",
	"oracle.model":                  "ORACLE_MODEL_NAME",
	"oracle.api_key":                "ORACLE_API_KEY",
	"oracle.response_format":        "ORACLE_RESPONSE_FORMAT",
	"engine.max_total_agents":       "MAX_TOTAL_AGENTS",
	"engine.max_agents_per_sector":  "MAX_AGENTS_PER_SECTOR",
	"engine.readiness_threshold":    "READINESS_THRESHOLD",
	"engine.conflict_threshold":     "CONFLICT_THRESHOLD",
	"engine.max_rounds":             "MAX_ROUNDS",
	"storage.dir":                   "STORAGE_DIR",
}

// msEnvBindings are environment knobs expressed in milliseconds.
var msEnvBindings = map[string]string{
	"engine.tick_interval":       "TICK_INTERVAL_MS",
	"engine.lifecycle_interval":  "LIFECYCLE_INTERVAL_MS",
	"engine.watchdog_interval":   "WATCHDOG_INTERVAL_MS",
	"engine.price_tick_interval": "PRICE_TICK_MS",
	"engine.archive_delay":       "ARCHIVE_DELAY_MS",
	"engine.stall_threshold":     "STALL_THRESHOLD_MS",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "sectorflow")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "console")
	v.SetDefault("app.log_file", "")
	v.SetDefault("app.mode", "simulation")

	v.SetDefault("storage.dir", "./storage")

	v.SetDefault("oracle.enabled", false)
	v.SetDefault("oracle.base_url", "http://localhost:8080/v1/chat/completions")
	v.SetDefault("oracle.model", "")
	v.SetDefault("oracle.api_key", "")
	v.SetDefault("oracle.response_format", "json_object")
	v.SetDefault("oracle.timeout", "10s")
	v.SetDefault("oracle.max_retries", 2)
	v.SetDefault("oracle.requests_per_minute", 60)

	v.SetDefault("engine.tick_interval", "2s")
	v.SetDefault("engine.lifecycle_interval", "5s")
	v.SetDefault("engine.watchdog_interval", "15s")
	v.SetDefault("engine.price_tick_interval", "10s")
	v.SetDefault("engine.max_total_agents", 48)
	v.SetDefault("engine.max_agents_per_sector", 8)
	v.SetDefault("engine.readiness_threshold", 65.0)
	v.SetDefault("engine.conflict_threshold", 0.5)
	v.SetDefault("engine.max_rounds", 3)
	v.SetDefault("engine.archive_delay", "60s")
	v.SetDefault("engine.stall_threshold", "120s")
	v.SetDefault("engine.debounce_window", "60s")
	v.SetDefault("engine.auto_manager", true)

	v.SetDefault("comms.nats_enabled", false)
	v.SetDefault("comms.nats_url", "nats://localhost:4222")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9190)
}

// Load reads configuration from an optional file path plus the environment.
// When configPath is empty it searches for sectorflow.yaml in ./configs and
// the working directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("sectorflow")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("SECTORFLOW")
	v.AutomaticEnv()

	// The documented knobs are unprefixed; bind them explicitly.
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}
	for key, env := range msEnvBindings {
		if err := v.BindEnv(key+"_ms", env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Millisecond env knobs override the duration fields directly.
	applyMillis := func(key string, dst *time.Duration) {
		if ms := v.GetInt64(key + "_ms"); ms > 0 {
			*dst = time.Duration(ms) * time.Millisecond
		}
	}
	applyMillis("engine.tick_interval", &cfg.Engine.TickInterval)
	applyMillis("engine.lifecycle_interval", &cfg.Engine.LifecycleInterval)
	applyMillis("engine.watchdog_interval", &cfg.Engine.WatchdogInterval)
	applyMillis("engine.price_tick_interval", &cfg.Engine.PriceTickInterval)
	applyMillis("engine.archive_delay", &cfg.Engine.ArchiveDelay)
	applyMillis("engine.stall_threshold", &cfg.Engine.StallThreshold)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Engine.TickInterval <= 0 {
		return fmt.Errorf("engine.tick_interval must be positive")
	}
	if c.Engine.MaxTotalAgents <= 0 || c.Engine.MaxAgentsPerSector <= 0 {
		return fmt.Errorf("agent capacity limits must be positive")
	}
	if c.Engine.MaxAgentsPerSector > c.Engine.MaxTotalAgents {
		return fmt.Errorf("max_agents_per_sector cannot exceed max_total_agents")
	}
	if c.Engine.ConflictThreshold < 0 || c.Engine.ConflictThreshold > 1 {
		return fmt.Errorf("engine.conflict_threshold must be in [0,1]")
	}
	if c.Engine.MaxRounds < 1 {
		return fmt.Errorf("engine.max_rounds must be at least 1")
	}
	switch c.App.Mode {
	case "simulation", "realtime":
	default:
		return fmt.Errorf("app.mode must be simulation or realtime, got %q", c.App.Mode)
	}
	switch c.Oracle.ResponseFormat {
	case "text", "json_object", "off":
	default:
		return fmt.Errorf("oracle.response_format must be text, json_object or off")
	}
	return nil
}
