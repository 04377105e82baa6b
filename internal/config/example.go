package config

// ExampleConfig returns an example configuration showing all available options.
func ExampleConfig() string {
	return `# taskledger configuration file
# Values can be overridden by TASKLEDGER_* environment variables or CLI flags

# Ledger file (relative to the project root)
ledger_file = "docs/TASKS.md"

# Backup directory (relative to the ledger file's directory unless absolute)
backup_dir = ".task_backups"

# Journal base directory (supports ~ expansion and %VAR% on Windows)
log_dir = "~/.taskledger"

# Append one line per transaction to <log_dir>/<project>/journal.jsonl
journal = true

# Command run after each committed transaction.
# Arguments: tx_id intent record_id ledger_path
# hook_command = "/path/to/hook.sh"

# Console logging
log_level = "info"      # debug, info, warn, error
log_format = "text"     # text, json, logfmt
log_timestamps = false
log_caller = false
`
}
