// Package config handles configuration loading and defaults.
//
// Configuration is loaded from multiple sources in priority order:
// 1. Built-in defaults
// 2. User config file (~/.taskledger/taskledger.toml or OS-specific config directory)
// 3. Project config file (taskledger.toml or .taskledger.toml in the project root)
// 4. Environment variables (TASKLEDGER_*)
// 5. CLI flags
//
// Each level overrides the previous one, so CLI flags take precedence.
//
// User-level config locations:
// - ~/.taskledger/taskledger.toml (preferred)
// - Windows: %APPDATA%\taskledger\taskledger.toml
// - macOS: ~/Library/Application Support/taskledger/taskledger.toml
// - Linux/BSD: $XDG_CONFIG_HOME/taskledger/taskledger.toml or ~/.config/taskledger/taskledger.toml
//
// Project-level config locations (overrides user config):
// - ./taskledger.toml (preferred)
// - ./.taskledger.toml
package config
