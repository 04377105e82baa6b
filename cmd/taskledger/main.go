// Command taskledger manages a markdown task ledger.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nibzard/taskledger/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	err := cmd.Run(ctx, os.Args[1:])
	if err == nil {
		return
	}
	code := cmd.ExitCode(err)
	switch {
	case ctx.Err() != nil:
		fmt.Fprintf(os.Stderr, "\nInterrupted\n")
		code = cmd.ExitInterrupted
	case errors.Is(err, cmd.ErrNoWork):
		// Already reported by the command.
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(code)
}
