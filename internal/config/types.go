package config

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/BurntSushi/toml"
)

// ConfigSource represents where a configuration value came from.
type ConfigSource string

const (
	SourceDefault  ConfigSource = "default"
	SourceUserFile ConfigSource = "user file"
	SourceProjFile ConfigSource = "project file"
	SourceEnv      ConfigSource = "environment"
	SourceFlag     ConfigSource = "flag"
)

// Default values.
const (
	DefaultLedgerFile = "docs/TASKS.md"
	DefaultBackupDir  = ".task_backups"
	DefaultLogDir     = "~/.taskledger"
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "text"
)

// Config holds the effective settings for a taskledger invocation.
type Config struct {
	// Ledger file, relative to the project root unless absolute.
	LedgerFile string `toml:"ledger_file" validate:"required,nonblank"`
	// Backup directory, relative to the ledger's directory unless absolute.
	BackupDir   string `toml:"backup_dir" validate:"required,nonblank"`
	LogDir      string `toml:"log_dir" validate:"required"`
	HookCommand string `toml:"hook_command" validate:"omitempty,nonblank"`
	Journal     bool   `toml:"journal"`

	LogLevel      string `toml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat     string `toml:"log_format" validate:"oneof=text json logfmt"`
	LogTimestamps bool   `toml:"log_timestamps"`
	LogCaller     bool   `toml:"log_caller"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `toml:"-"`
}

// ConfigWithSources holds configuration along with source information for each field.
type ConfigWithSources struct {
	Config  *Config
	Sources map[string]ConfigSource
	// Files lists the config files that were read, lowest priority first.
	Files []string
}

// configFields returns the list of configurable field names for source tracking.
func configFields() []string {
	return []string{
		"ledger_file",
		"backup_dir",
		"log_dir",
		"hook_command",
		"journal",
		"log_level",
		"log_format",
		"log_timestamps",
		"log_caller",
	}
}

// Encode writes cfg as TOML.
func Encode(w io.Writer, cfg *Config) error {
	enc := toml.NewEncoder(w)
	enc.Indent = ""
	return enc.Encode(cfg)
}

// Describe renders the effective configuration as TOML with a trailing
// comment naming where each value came from.
func (cws *ConfigWithSources) Describe(w io.Writer) error {
	var buf bytes.Buffer
	if err := Encode(&buf, cws.Config); err != nil {
		return err
	}
	for _, line := range strings.Split(strings.TrimRight(buf.String(), "\n"), "\n") {
		key, _, ok := strings.Cut(line, " = ")
		if src, tracked := cws.Sources[key]; ok && tracked {
			line = fmt.Sprintf("%s  # %s", line, src)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	if len(cws.Files) == 0 {
		return nil
	}
	_, err := fmt.Fprintf(w, "# files: %s\n", strings.Join(cws.Files, ", "))
	return err
}
