package config

import (
	"os"
	"strings"
)

// envBindings maps TASKLEDGER_* variables to config keys.
var envBindings = []struct {
	name  string
	field string
}{
	{"TASKLEDGER_LEDGER", "ledger_file"},
	{"TASKLEDGER_BACKUP_DIR", "backup_dir"},
	{"TASKLEDGER_LOG_DIR", "log_dir"},
	{"TASKLEDGER_HOOK", "hook_command"},
	{"TASKLEDGER_JOURNAL", "journal"},
	{"TASKLEDGER_LOG_LEVEL", "log_level"},
	{"TASKLEDGER_LOG_FORMAT", "log_format"},
	{"TASKLEDGER_LOG_TIMESTAMPS", "log_timestamps"},
	{"TASKLEDGER_LOG_CALLER", "log_caller"},
}

// loadFromEnv overrides config from environment variables. Empty variables
// are ignored.
func loadFromEnv(cfg *Config, sources map[string]ConfigSource) {
	for _, b := range envBindings {
		v := os.Getenv(b.name)
		if v == "" {
			continue
		}
		setField(cfg, b.field, v)
		if sources != nil {
			sources[b.field] = SourceEnv
		}
	}
}

// setField assigns a string value to the field named by its TOML key.
func setField(cfg *Config, field, v string) {
	switch field {
	case "ledger_file":
		cfg.LedgerFile = v
	case "backup_dir":
		cfg.BackupDir = v
	case "log_dir":
		cfg.LogDir = v
	case "hook_command":
		cfg.HookCommand = v
	case "journal":
		cfg.Journal = boolFromString(v)
	case "log_level":
		cfg.LogLevel = v
	case "log_format":
		cfg.LogFormat = v
	case "log_timestamps":
		cfg.LogTimestamps = boolFromString(v)
	case "log_caller":
		cfg.LogCaller = boolFromString(v)
	}
}

func boolFromString(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "1" || s == "true" || s == "yes" || s == "on"
}
