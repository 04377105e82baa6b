package txn

import "fmt"

// Stage names the transaction step that failed.
type Stage string

const (
	StageRead     Stage = "read"
	StageParse    Stage = "parse"
	StageValidate Stage = "validate"
	StageMutate   Stage = "mutate"
	StageVerify   Stage = "verify"
	StageBackup   Stage = "backup"
	StageWrite    Stage = "write"
)

// Error wraps the failure of one stage. The ledger file is unchanged for
// every stage.
type Error struct {
	Stage Stage
	Path  string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Internal reports whether the failure came from the environment (file
// system) rather than from the ledger content or the request.
func (e *Error) Internal() bool {
	switch e.Stage {
	case StageRead, StageBackup, StageWrite:
		return true
	}
	return false
}
