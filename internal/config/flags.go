package config

import (
	"flag"
)

// flagBindings maps global flag names to config keys.
var flagBindings = []struct {
	name   string
	field  string
	usage  string
	isBool bool
}{
	{"ledger", "ledger_file", "Path to the ledger file", false},
	{"backup-dir", "backup_dir", "Backup directory (relative to the ledger directory)", false},
	{"log-dir", "log_dir", "Journal base directory", false},
	{"hook", "hook_command", "Command to run after each committed transaction", false},
	{"journal", "journal", "Record transactions in the journal", true},
	{"log-level", "log_level", "Log level (debug, info, warn, error)", false},
	{"log-format", "log_format", "Log format (text, json, logfmt)", false},
	{"log-timestamps", "log_timestamps", "Show timestamps in logs", true},
	{"log-caller", "log_caller", "Show caller location in logs", true},
}

// parseFlags defines the global flags on fs, parses args, and applies only
// the flags that were set explicitly.
func parseFlags(cfg *Config, fs *flag.FlagSet, args []string, sources map[string]ConfigSource) error {
	if fs == nil {
		fs = flag.NewFlagSet(appName, flag.ContinueOnError)
	}

	strs := make(map[string]*string)
	bools := make(map[string]*bool)
	for _, b := range flagBindings {
		if b.isBool {
			bools[b.name] = fs.Bool(b.name, fieldBool(cfg, b.field), b.usage)
		} else {
			strs[b.name] = fs.String(b.name, fieldString(cfg, b.field), b.usage)
		}
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	fields := make(map[string]string, len(flagBindings))
	for _, b := range flagBindings {
		fields[b.name] = b.field
	}
	fs.Visit(func(f *flag.Flag) {
		field, ok := fields[f.Name]
		if !ok {
			return
		}
		if p, ok := strs[f.Name]; ok {
			setField(cfg, field, *p)
		} else if p, ok := bools[f.Name]; ok {
			setBool(cfg, field, *p)
		}
		if sources != nil {
			sources[field] = SourceFlag
		}
	})
	return nil
}

func fieldString(cfg *Config, field string) string {
	switch field {
	case "ledger_file":
		return cfg.LedgerFile
	case "backup_dir":
		return cfg.BackupDir
	case "log_dir":
		return cfg.LogDir
	case "hook_command":
		return cfg.HookCommand
	case "log_level":
		return cfg.LogLevel
	case "log_format":
		return cfg.LogFormat
	}
	return ""
}

func fieldBool(cfg *Config, field string) bool {
	switch field {
	case "journal":
		return cfg.Journal
	case "log_timestamps":
		return cfg.LogTimestamps
	case "log_caller":
		return cfg.LogCaller
	}
	return false
}

func setBool(cfg *Config, field string, v bool) {
	switch field {
	case "journal":
		cfg.Journal = v
	case "log_timestamps":
		cfg.LogTimestamps = v
	case "log_caller":
		cfg.LogCaller = v
	}
}
