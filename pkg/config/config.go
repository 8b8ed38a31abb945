// Package config resolves the coordinator's tunables by layering flag
// values over environment variables over a config file over built-in
// defaults, the order spec §6 requires. It is a thin `spf13/viper` wrapper:
// nothing here does business logic, only precedence and type coercion.
package config

import (
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/cuemby/workclaim/pkg/filelock"
	"github.com/cuemby/workclaim/pkg/maintenance"
)

// Config holds every tunable spec §6 names as an environment variable or
// CLI flag.
type Config struct {
	CoordinationDir  string
	AgentID          string
	AgentRole        string
	AgentTeam        string
	TraceID          string
	ParentSpanID     string
	OutputFormat     string // "text" or "json"
	CoordinationMode string // "fast" or "safe" or "" (auto-detect)

	HeartbeatTimeout       time.Duration
	LockWait               time.Duration
	SpanLogMaxBytes        int64
	CompletedRetentionDays int
}

// defaults mirrors spec §4/§9's defaults (90s heartbeat timeout, low-second
// lock wait, 64MiB span log, 30-day completed retention).
func defaults() map[string]any {
	return map[string]any{
		"coordination_dir":         "./workclaim-data",
		"agent_id":                 "",
		"agent_role":               "",
		"agent_team":               "",
		"trace_id":                 "",
		"parent_span_id":           "",
		"output_format":            "text",
		"coordination_mode":        "",
		"heartbeat_timeout_sec":    90,
		"lock_wait_sec":            5,
		"span_log_max_bytes":       64 * 1024 * 1024,
		"completed_retention_days": 30,
	}
}

// Load builds a Config from, in increasing precedence: built-in defaults,
// an optional config file (searched for as "workclaim.yaml" in the current
// directory and $HOME), environment variables (upper-cased, e.g.
// COORDINATION_DIR), and flags already parsed onto fs. The boolean --json
// flag is deliberately not bound here (it is a switch, not a string value
// matching output_format's "text"/"json"); cmd/workclaim applies it as the
// final override on top of Config.OutputFormat.
func Load(fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	for k, val := range defaults() {
		v.SetDefault(k, val)
	}

	v.SetConfigName("workclaim")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, err
		}
	}

	v.AutomaticEnv()
	for _, key := range []string{
		"coordination_dir", "agent_id", "agent_role", "agent_team",
		"trace_id", "parent_span_id", "output_format", "coordination_mode",
		"heartbeat_timeout_sec", "lock_wait_sec", "span_log_max_bytes",
		"completed_retention_days",
	} {
		_ = v.BindEnv(key)
	}

	if fs != nil {
		_ = v.BindPFlag("coordination_dir", fs.Lookup("coordination-dir"))
		_ = v.BindPFlag("agent_id", fs.Lookup("agent"))
	}

	cfg := Config{
		CoordinationDir:        v.GetString("coordination_dir"),
		AgentID:                v.GetString("agent_id"),
		AgentRole:              v.GetString("agent_role"),
		AgentTeam:              v.GetString("agent_team"),
		TraceID:                v.GetString("trace_id"),
		ParentSpanID:           v.GetString("parent_span_id"),
		OutputFormat:           v.GetString("output_format"),
		CoordinationMode:       v.GetString("coordination_mode"),
		HeartbeatTimeout:       time.Duration(v.GetInt("heartbeat_timeout_sec")) * time.Second,
		LockWait:               time.Duration(v.GetInt("lock_wait_sec")) * time.Second,
		SpanLogMaxBytes:        v.GetInt64("span_log_max_bytes"),
		CompletedRetentionDays: v.GetInt("completed_retention_days"),
	}
	return cfg, nil
}

// LockMode resolves CoordinationMode to a filelock.Mode, returning false if
// unset (caller should auto-detect via filelock.DetectCapability).
func (c Config) LockMode() (filelock.Mode, bool) {
	switch c.CoordinationMode {
	case "fast":
		return filelock.ModeFast, true
	case "safe":
		return filelock.ModeSafe, true
	default:
		return "", false
	}
}

// MaintenanceConfig builds a maintenance.Config from the tunables this
// layer owns, keeping maintenance.DefaultConfig()'s cadences and
// thresholds (those aren't exposed as flags/env in spec §6).
func (c Config) MaintenanceConfig() maintenance.Config {
	cfg := maintenance.DefaultConfig()
	cfg.HeartbeatTimeout = c.HeartbeatTimeout
	cfg.CompletedRetentionDays = c.CompletedRetentionDays
	cfg.SpanLogMaxBytes = c.SpanLogMaxBytes
	return cfg
}
