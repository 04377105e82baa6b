// Package txn applies one ledger mutation to a file as an all-or-nothing
// transaction.
//
// Apply reads the file, parses and validates it, applies a single intent,
// validates the result, writes a timestamped backup of the original bytes
// and then replaces the file through a temporary file and rename. Any
// failure before the rename leaves the ledger untouched. Every call is
// recorded in the journal when one is configured.
//
// Concurrent writers are not coordinated. Two processes applying intents
// to the same file at once can lose one of the updates.
package txn
