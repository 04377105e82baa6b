package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

var configValidate *validator.Validate

func init() {
	configValidate = validator.New()
	_ = configValidate.RegisterValidation("nonblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
}

// Load loads configuration from multiple sources in priority order:
// 1. Defaults
// 2. User config file (~/.taskledger/taskledger.toml or OS-specific config dir)
// 3. Project config file (taskledger.toml or .taskledger.toml in current directory)
// 4. Environment variables
// 5. CLI flags
func Load(fs *flag.FlagSet, args []string) (*Config, error) {
	cws, err := LoadWithSources(fs, args)
	if err != nil {
		return nil, err
	}
	return cws.Config, nil
}

// LoadWithSources loads configuration and tracks the source of each value.
func LoadWithSources(fs *flag.FlagSet, args []string) (*ConfigWithSources, error) {
	cws := &ConfigWithSources{
		Config:  &Config{},
		Sources: make(map[string]ConfigSource),
	}
	cfg := cws.Config

	// 1. Set defaults
	setDefaults(cfg)
	for _, field := range configFields() {
		cws.Sources[field] = SourceDefault
	}

	// 2. Try to load from user config file
	if path := findUserConfigFile(); path != "" {
		if err := loadConfigFile(cws, path, SourceUserFile); err != nil {
			return nil, fmt.Errorf("loading user config file %s: %w", path, err)
		}
	}

	// 3. Try to load from project config file (overrides user config)
	if path := findProjectConfigFile(); path != "" {
		if err := loadConfigFile(cws, path, SourceProjFile); err != nil {
			return nil, fmt.Errorf("loading project config file %s: %w", path, err)
		}
	}

	// 4. Override from environment
	loadFromEnv(cfg, cws.Sources)

	// 5. Parse CLI flags (they override everything)
	if err := parseFlags(cfg, fs, args, cws.Sources); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	// 6. Compute derived values
	if err := finalizeConfig(cfg); err != nil {
		return nil, fmt.Errorf("finalizing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cws, nil
}

// setDefaults applies default values to the config.
func setDefaults(cfg *Config) {
	cfg.LedgerFile = DefaultLedgerFile
	cfg.BackupDir = DefaultBackupDir
	cfg.LogDir = DefaultLogDir
	cfg.Journal = true
	cfg.LogLevel = DefaultLogLevel
	cfg.LogFormat = DefaultLogFormat
}

// loadConfigFile decodes a TOML file over cfg and marks every key the file
// defines with source.
func loadConfigFile(cws *ConfigWithSources, path string, source ConfigSource) error {
	md, err := toml.DecodeFile(path, cws.Config)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	for _, field := range configFields() {
		if md.IsDefined(field) {
			cws.Sources[field] = source
		}
	}
	cws.Files = append(cws.Files, path)
	return nil
}

// finalizeConfig computes derived values and validates paths.
func finalizeConfig(cfg *Config) error {
	cfg.LogDir = expandPath(cfg.LogDir)
	cfg.LedgerFile = expandPath(cfg.LedgerFile)
	cfg.BackupDir = expandPath(cfg.BackupDir)
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))

	if cfg.ProjectRoot == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting working directory: %w", err)
		}
		cfg.ProjectRoot = wd
	}

	if cfg.LedgerFile != "" && !filepath.IsAbs(cfg.LedgerFile) {
		cfg.LedgerFile = filepath.Join(cfg.ProjectRoot, cfg.LedgerFile)
	}
	return nil
}

// Validate checks field constraints. The error names every failing field.
func (c *Config) Validate() error {
	err := configValidate.Struct(c)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("invalid config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %q)", tomlName(fe.StructField()), fe.Tag(), fmt.Sprint(fe.Value())))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// tomlName maps a Config field name to its TOML key.
func tomlName(field string) string {
	var b strings.Builder
	for i, r := range field {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// BackupPath resolves the backup directory for the configured ledger.
func (c *Config) BackupPath() string {
	if filepath.IsAbs(c.BackupDir) {
		return c.BackupDir
	}
	return filepath.Join(filepath.Dir(c.LedgerFile), c.BackupDir)
}
