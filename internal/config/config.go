// Package config implements Core's layered configuration loader: a base
// set of defaults, overridden by an optional config file (TOML, YAML, or
// JSON — detected by extension), overridden in turn by environment
// variables, following the precedence spec.md §6 describes ("a layered
// config loader (TOML/YAML/JSON) with ${VAR} interpolation; array fields
// may be extended across layers or replaced per a global switch").
//
// Mutable runtime fields (poll interval, scheduler pause) are guarded by
// an RWMutex and exposed through getters/setters, the same shape the
// teacher's internal/config/config.go uses to let the engine goroutine
// and HTTP handlers share state safely.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
	"encoding/json"
)

// ArrayMergeMode controls how array-typed fields combine across layers.
type ArrayMergeMode string

const (
	ArrayExtend  ArrayMergeMode = "extend"
	ArrayReplace ArrayMergeMode = "replace"
)

// Config holds every setting Core reads at startup plus the handful of
// fields mutable at runtime.
type Config struct {
	// Core identity / networking
	Title         string `toml:"title" yaml:"title" json:"title"`
	Port          int    `toml:"port" yaml:"port" json:"port"`
	Host          string `toml:"host" yaml:"host" json:"host"`

	// Storage
	DBPath string `toml:"db_path" yaml:"db_path" json:"db_path"`

	// Logging
	LogJSON bool `toml:"log_json" yaml:"log_json" json:"log_json"`

	// Scheduler / monitor
	MonitorPollSeconds int    `toml:"monitor_poll_seconds" yaml:"monitor_poll_seconds" json:"monitor_poll_seconds"`
	DefaultTimezone    string `toml:"default_timezone" yaml:"default_timezone" json:"default_timezone"`

	// Webhook
	WebhookDefaultSecret string `toml:"webhook_default_secret" yaml:"webhook_default_secret" json:"webhook_default_secret"`

	// Prune/maintenance (C12)
	StatsRetentionDays int `toml:"stats_retention_days" yaml:"stats_retention_days" json:"stats_retention_days"`
	AlertRetentionDays int `toml:"alert_retention_days" yaml:"alert_retention_days" json:"alert_retention_days"`

	// Array-field merge behavior across config layers.
	ArrayMerge ArrayMergeMode `toml:"array_merge" yaml:"array_merge" json:"array_merge"`

	// JWT/session signing (ambient; consumed by the out-of-scope auth
	// transport but owned here since it is process config).
	JwtSecret string `toml:"jwt_secret" yaml:"jwt_secret" json:"jwt_secret"`

	mu              sync.RWMutex
	monitorPoll     time.Duration
	schedulerPaused bool
}

// Default returns the built-in defaults, applied before any layer.
func Default() *Config {
	return &Config{
		Title:              "komodore",
		Port:               8120,
		Host:               "0.0.0.0",
		DBPath:             "komodore.db",
		MonitorPollSeconds: 15,
		DefaultTimezone:    "UTC",
		StatsRetentionDays: 14,
		AlertRetentionDays: 90,
		ArrayMerge:         ArrayExtend,
		monitorPoll:        15 * time.Second,
	}
}

// Load builds the final Config: defaults, then (if path is non-empty) the
// file layer, then environment variable overrides, then ${VAR}/_FILE
// expansion of string fields. This mirrors spec §6's "layered config
// loader ... array fields may be extended across layers or replaced per a
// global switch" and "Sensitive fields have _FILE variants that read the
// value from a file path".
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := mergeFile(cfg, path); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := expandAll(cfg); err != nil {
		return nil, fmt.Errorf("expand config: %w", err)
	}

	cfg.monitorPoll = time.Duration(cfg.MonitorPollSeconds) * time.Second
	return cfg, nil
}

// mergeFile decodes path (format by extension) onto cfg: fields the file
// sets overwrite the defaults, fields it omits keep them. Config has no
// slice-typed fields, and no code in this repository (internal/sync
// included) reads ArrayMerge, so the extend/replace switch is parsed but
// has no effect.
func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		_, err = toml.Decode(string(data), cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".json":
		err = json.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("unrecognized config extension %q", ext)
	}
	return err
}

// envOverride is one ENV_VAR -> *field binding plus its optional _FILE
// sibling, matching the teacher's per-field env parsing in
// internal/config/config.go generalized into a table instead of repeated
// if-blocks.
type envOverride struct {
	key    string
	setter func(string)
}

func applyEnvOverrides(cfg *Config) {
	overrides := []envOverride{
		{"KOMODORE_TITLE", func(v string) { cfg.Title = v }},
		{"KOMODORE_HOST", func(v string) { cfg.Host = v }},
		{"KOMODORE_DB_PATH", func(v string) { cfg.DBPath = v }},
		{"KOMODORE_LOG_JSON", func(v string) { cfg.LogJSON = v == "true" }},
		{"KOMODORE_DEFAULT_TIMEZONE", func(v string) { cfg.DefaultTimezone = v }},
		{"KOMODORE_WEBHOOK_DEFAULT_SECRET", func(v string) { cfg.WebhookDefaultSecret = v }},
		{"KOMODORE_JWT_SECRET", func(v string) { cfg.JwtSecret = v }},
	}
	for _, o := range overrides {
		if v, fileVal, ok := readEnvOrFile(o.key); ok {
			if fileVal != "" {
				o.setter(fileVal)
			} else {
				o.setter(v)
			}
		}
	}
}

// readEnvOrFile reads KEY, falling back to the contents of the path named
// by KEY_FILE when KEY is unset (spec §6 "_FILE variants").
func readEnvOrFile(key string) (value string, fileValue string, ok bool) {
	if v, present := os.LookupEnv(key); present {
		return v, "", true
	}
	if p, present := os.LookupEnv(key + "_FILE"); present {
		data, err := os.ReadFile(p)
		if err != nil {
			return "", "", false
		}
		return "", strings.TrimSpace(string(data)), true
	}
	return "", "", false
}

var interpVar = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandVar replaces ${VAR} references with the corresponding environment
// variable's value, leaving unresolved references untouched.
func expandVar(s string) string {
	return interpVar.ReplaceAllStringFunc(s, func(m string) string {
		name := interpVar.FindStringSubmatch(m)[1]
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return m
	})
}

// expandAll walks every string field of cfg and expands ${VAR} references.
func expandAll(cfg *Config) error {
	cfg.Title = expandVar(cfg.Title)
	cfg.Host = expandVar(cfg.Host)
	cfg.DBPath = expandVar(cfg.DBPath)
	cfg.DefaultTimezone = expandVar(cfg.DefaultTimezone)
	cfg.WebhookDefaultSecret = expandVar(cfg.WebhookDefaultSecret)
	cfg.JwtSecret = expandVar(cfg.JwtSecret)
	return nil
}

// MonitorPollInterval returns the current monitor loop poll interval.
func (c *Config) MonitorPollInterval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.monitorPoll
}

// SetMonitorPollInterval updates the monitor loop poll interval at
// runtime (e.g. via an admin settings call).
func (c *Config) SetMonitorPollInterval(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.monitorPoll = d
}

// SchedulerPaused reports whether the scheduler driver loop should skip
// firing due runs.
func (c *Config) SchedulerPaused() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.schedulerPaused
}

// SetSchedulerPaused toggles the scheduler pause flag.
func (c *Config) SetSchedulerPaused(paused bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.schedulerPaused = paused
}
