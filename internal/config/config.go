// Package config loads the core's tunables from a YAML file via viper,
// with defaults that work without any file at all.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the core's tunable surface.
type Config struct {
	Model      string           `mapstructure:"model"`
	Thinking   string           `mapstructure:"thinking"`
	Log        LogConfig        `mapstructure:"log"`
	Sessions   SessionsConfig   `mapstructure:"sessions"`
	Compaction CompactionConfig `mapstructure:"compaction"`
	SubAgents  SubAgentsConfig  `mapstructure:"subagents"`
	Loop       LoopConfig       `mapstructure:"loop"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, console
}

// SessionsConfig configures where journals and their index live.
type SessionsConfig struct {
	Dir      string `mapstructure:"dir"`
	IndexDSN string `mapstructure:"index_dsn"` // empty disables the index
	IndexDB  string `mapstructure:"index_db"`  // sqlite, postgres
}

// CompactionConfig mirrors the compactor's tunables.
type CompactionConfig struct {
	Enabled          bool `mapstructure:"enabled"`
	PruningEnabled   bool `mapstructure:"pruning_enabled"`
	ContextWindow    int  `mapstructure:"context_window"`
	ReserveTokens    int  `mapstructure:"reserve_tokens"`
	KeepRecentTokens int  `mapstructure:"keep_recent_tokens"`
}

// SubAgentsConfig configures sub-agent discovery and execution budgets.
type SubAgentsConfig struct {
	ProjectDir  string        `mapstructure:"project_dir"`
	UserDir     string        `mapstructure:"user_dir"`
	MaxDepth    int           `mapstructure:"max_depth"`
	MaxTurns    int           `mapstructure:"max_turns"`
	TaskTimeout time.Duration `mapstructure:"task_timeout"`
	HotReload   bool          `mapstructure:"hot_reload"`
}

// LoopConfig configures the turn loop itself.
type LoopConfig struct {
	MaxOverflowRetries int `mapstructure:"max_overflow_retries"`
}

// setDefaults registers every default on v.
func setDefaults(v *viper.Viper) {
	v.SetDefault("model", "")
	v.SetDefault("thinking", "medium")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("sessions.dir", "sessions")
	v.SetDefault("sessions.index_dsn", "")
	v.SetDefault("sessions.index_db", "sqlite")
	v.SetDefault("compaction.enabled", true)
	v.SetDefault("compaction.pruning_enabled", true)
	v.SetDefault("compaction.context_window", 200_000)
	v.SetDefault("compaction.reserve_tokens", 20_000)
	v.SetDefault("compaction.keep_recent_tokens", 40_000)
	v.SetDefault("subagents.project_dir", ".agents")
	v.SetDefault("subagents.user_dir", "")
	v.SetDefault("subagents.max_depth", 2)
	v.SetDefault("subagents.max_turns", 25)
	v.SetDefault("subagents.task_timeout", 5*time.Minute)
	v.SetDefault("subagents.hot_reload", false)
	v.SetDefault("loop.max_overflow_retries", 3)
}

// Default returns the built-in configuration.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults always decode; there is no user input involved.
	_ = v.Unmarshal(&cfg)
	return cfg
}

// Load reads path (YAML) over the defaults. An empty path returns the
// defaults; a missing file at an explicit path is an error.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("TURNCORE")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}
