// Package ledger parses, validates, mutates, and serializes task ledgers.
//
// A ledger is a markdown document holding task records grouped into priority
// sections and an archive:
//
//	# Project Tasks
//
//	## High Priority Tasks
//
//	- [ ] **Fix login bug**:
//	  - **ID**: 1
//	  - **Create Date**: 2025-01-01T12:00:00Z
//	  - **Priority**: High
//	  - **Assignee**: alice
//
//	## Archive
//
// # Round Trip
//
// Everything that is not a record or a recognized section heading is kept as
// raw text. Records remember the exact text they were parsed from and are
// re-rendered only after a mutation touches them, so Serialize(Parse(text))
// reproduces text byte for byte.
//
// # Snapshots
//
// Mutations never modify their input. Each one clones the ledger, applies the
// change to the clone, and returns it. Callers decide when to persist; see
// package txn for the file-level transaction.
//
// # Sections
//
// Section headings use a fixed vocabulary:
//
//   - "## Critical Priority Tasks"
//   - "## High Priority Tasks"
//   - "## Medium Priority Tasks"
//   - "## Low Priority Tasks"
//   - "## Archive"
//
// Any other heading is raw text.
package ledger
