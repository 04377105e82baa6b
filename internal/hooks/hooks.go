// Package hooks invokes the external post-commit hook.
package hooks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
)

// Options configures a hook invocation.
type Options struct {
	Command    string
	TxID       string
	Intent     string
	RecordID   int
	LedgerPath string
	WorkDir    string
	// Payload, when set, is written to the hook's stdin.
	Payload []byte
	Stdout  io.Writer
	Stderr  io.Writer
}

// Result captures the outcome of a hook invocation.
type Result struct {
	Ran      bool
	Command  []string
	ExitCode int
}

// Invoke runs the hook command with the arguments tx_id intent record_id
// ledger_path. The same values are exported as TASKLEDGER_* variables.
func Invoke(ctx context.Context, opts Options) (Result, error) {
	if opts.Command == "" || opts.LedgerPath == "" {
		return Result{}, nil
	}

	info, err := os.Stat(opts.LedgerPath)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{}, nil
		}
		return Result{}, fmt.Errorf("stat ledger: %w", err)
	}
	if info.IsDir() {
		return Result{}, fmt.Errorf("ledger path is a directory: %s", opts.LedgerPath)
	}

	if ctx == nil {
		ctx = context.Background()
	}

	recordID := ""
	if opts.RecordID > 0 {
		recordID = strconv.Itoa(opts.RecordID)
	}
	cmd := exec.CommandContext(ctx, opts.Command, opts.TxID, opts.Intent, recordID, opts.LedgerPath)
	if opts.WorkDir != "" {
		cmd.Dir = opts.WorkDir
	}
	cmd.Env = append(os.Environ(),
		"TASKLEDGER_TX_ID="+opts.TxID,
		"TASKLEDGER_INTENT="+opts.Intent,
		"TASKLEDGER_RECORD_ID="+recordID,
		"TASKLEDGER_LEDGER_PATH="+opts.LedgerPath,
	)
	if opts.Payload != nil {
		cmd.Stdin = bytes.NewReader(opts.Payload)
	}
	cmd.Stdout = writerOr(opts.Stdout, os.Stdout)
	cmd.Stderr = writerOr(opts.Stderr, os.Stderr)

	err = cmd.Run()
	result := Result{
		Ran:      true,
		Command:  cmd.Args,
		ExitCode: exitCodeFromError(err),
	}
	if err != nil {
		return result, fmt.Errorf("hook command failed: %w", err)
	}
	return result, nil
}

func writerOr(w, fallback io.Writer) io.Writer {
	if w != nil {
		return w
	}
	return fallback
}

func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
