// Package cmd implements the taskledger command line.
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nibzard/taskledger/internal/config"
	"github.com/nibzard/taskledger/internal/ledger"
	"github.com/nibzard/taskledger/internal/logging"
	"github.com/nibzard/taskledger/internal/txn"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Process exit codes.
const (
	ExitOK          = 0
	ExitNoWork      = 1
	ExitInvalid     = 2
	ExitSystem      = 3
	ExitInterrupted = 130
)

// ErrNoWork reports a command that succeeded without changing anything,
// such as completing a record that is already complete.
var ErrNoWork = errors.New("nothing to do")

// usageError marks bad command-line input.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// ExitCode maps an error returned by Run to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if errors.Is(err, context.Canceled) {
		return ExitInterrupted
	}
	if errors.Is(err, ErrNoWork) {
		return ExitNoWork
	}
	var te *txn.Error
	if errors.As(err, &te) {
		if te.Internal() {
			return ExitSystem
		}
		return ExitInvalid
	}
	var ue *usageError
	if errors.As(err, &ue) || errors.Is(err, flag.ErrHelp) {
		return ExitInvalid
	}
	var pe *ledger.ParseError
	var ve *ledger.ValidationError
	var me *ledger.MutationError
	if errors.As(err, &pe) || errors.As(err, &ve) || errors.As(err, &me) {
		return ExitInvalid
	}
	return ExitSystem
}

// runner carries the loaded configuration and output streams of one
// invocation.
type runner struct {
	cfg     *config.Config
	sources *config.ConfigWithSources
	stdout  io.Writer
	stderr  io.Writer
	logger  *log.Logger
	now     func() time.Time
	newID   func() string
}

// Run executes the taskledger CLI.
func Run(ctx context.Context, args []string) error {
	return run(ctx, args, os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("taskledger", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		printUsage(fs, stderr)
	}
	help := fs.Bool("help", false, "Show help")
	fs.BoolVar(help, "h", false, "Show help")
	showVersion := fs.Bool("version", false, "Show version")
	fs.BoolVar(showVersion, "v", false, "Show version")

	cws, err := config.LoadWithSources(fs, args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return usagef("loading config: %v", err)
	}
	r := &runner{
		cfg:     cws.Config,
		sources: cws,
		stdout:  stdout,
		stderr:  stderr,
		now:     time.Now,
	}
	r.logger = logging.NewConsoleFromConfig(stderr, r.cfg.LogLevel, r.cfg.LogFormat, r.cfg.LogTimestamps, r.cfg.LogCaller)

	if *help {
		printUsage(fs, stdout)
		return nil
	}
	if *showVersion {
		return r.versionCommand()
	}

	remaining := fs.Args()
	if len(remaining) == 0 {
		printUsage(fs, stderr)
		return usagef("no command given")
	}
	subcommand, rest := remaining[0], remaining[1:]

	switch subcommand {
	case "add":
		return r.addCommand(ctx, rest)
	case "start":
		return r.startCommand(ctx, rest)
	case "done":
		return r.doneCommand(ctx, rest)
	case "archive":
		return r.archiveCommand(ctx, rest)
	case "edit":
		return r.editCommand(ctx, rest)
	case "ls":
		return r.lsCommand(rest)
	case "show":
		return r.showCommand(rest)
	case "next":
		return r.nextCommand(rest)
	case "stats":
		return r.statsCommand(rest)
	case "validate":
		return r.validateCommand(rest)
	case "export":
		return r.exportCommand(rest)
	case "restore":
		return r.restoreCommand(ctx, rest)
	case "backups":
		return r.backupsCommand(rest)
	case "tail":
		return r.tailCommand(ctx, rest)
	case "tui":
		return r.tuiCommand(ctx, rest)
	case "config":
		return r.configCommand(rest)
	case "version":
		return r.versionCommand()
	case "help":
		printUsage(fs, stdout)
		return nil
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", subcommand)
		printUsage(fs, stderr)
		return usagef("unknown command: %s", subcommand)
	}
}

// newFlagSet returns a subcommand flag set that reports errors on stderr.
func (r *runner) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet("taskledger "+name, flag.ContinueOnError)
	fs.SetOutput(r.stderr)
	return fs
}

// parse parses subcommand flags and converts flag errors to usage errors.
func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return &usageError{msg: err.Error()}
	}
	return nil
}

// versionCommand prints version information.
func (r *runner) versionCommand() error {
	fmt.Fprintf(r.stdout, "taskledger version %s\n", Version)
	return nil
}

// printUsage prints the usage message.
func printUsage(fs *flag.FlagSet, w io.Writer) {
	fmt.Fprintln(w, "taskledger - a markdown task ledger with safe, journaled edits")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  taskledger [global options] <command> [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, line := range []string{
		"add <title>          Create a record (-priority, -field key=value, -prereq ids)",
		"start <id>           Set the start date of a record",
		"done <id>            Mark a record complete",
		"archive <id>         Move a complete record to the Archive section",
		"edit <id> k=v...     Change title, priority, prerequisites, or extra fields",
		"ls                   List records (-priority, -done, -open, -archived, -assignee)",
		"show <id>            Show one record",
		"next                 Show the first record that is ready to work on",
		"stats                Summarize the ledger",
		"validate [file]      Check every ledger invariant",
		"export               Write the ledger as JSON or YAML (-format)",
		"restore <backup>     Replace the ledger with a backup",
		"backups              List backups of the ledger",
		"tail                 Print the transaction journal (-n, -f)",
		"tui                  Launch the terminal viewer",
		"config               Print the effective configuration (-example)",
		"version              Show version information",
		"help                 Show this help message",
	} {
		fmt.Fprintln(w, "  "+line)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Mutating commands accept -json to print the affected record as JSON.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Global Options:")
	fs.SetOutput(w)
	fs.PrintDefaults()
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Exit codes: 0 ok, 1 nothing to do, 2 invalid input or ledger, 3 system error")
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
