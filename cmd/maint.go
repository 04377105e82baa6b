package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nibzard/taskledger/internal/config"
	"github.com/nibzard/taskledger/internal/logging"
	"github.com/nibzard/taskledger/internal/txn"
	"github.com/nibzard/taskledger/internal/ui"
)

// restoreCommand replaces the ledger with a backup.
func (r *runner) restoreCommand(ctx context.Context, args []string) error {
	fs := r.newFlagSet("restore")
	asJSON := fs.Bool("json", false, "Print the result as JSON")
	latest := fs.Bool("latest", false, "Restore the most recent backup")
	if err := parse(fs, args); err != nil {
		return err
	}

	var backup string
	switch {
	case *latest && fs.NArg() == 0:
		backups, err := txn.Backups(r.cfg.LedgerFile, r.cfg.BackupDir)
		if err != nil {
			return err
		}
		if len(backups) == 0 {
			fmt.Fprintln(r.stderr, "No backups found.")
			return ErrNoWork
		}
		backup = backups[len(backups)-1]
	case !*latest && fs.NArg() == 1:
		backup = fs.Arg(0)
		if !filepath.IsAbs(backup) {
			if _, err := os.Stat(backup); err != nil {
				backup = filepath.Join(r.cfg.BackupPath(), backup)
			}
		}
	default:
		return usagef("restore: expected a backup path or -latest")
	}

	opts, closeJournal := r.txnOptions(false)
	defer closeJournal()
	sum, err := txn.Restore(r.cfg.LedgerFile, backup, r.now(), opts)
	if err != nil {
		return err
	}
	r.runHook(ctx, sum)
	if *asJSON {
		return r.printSummaryJSON(sum)
	}
	fmt.Fprintf(r.stdout, "Restored %s from %s\n", sum.Path, backup)
	if sum.BackupPath != "" {
		fmt.Fprintf(r.stdout, "  backup: %s\n", sum.BackupPath)
	}
	return nil
}

// backupsCommand lists backups of the ledger, oldest first.
func (r *runner) backupsCommand(args []string) error {
	fs := r.newFlagSet("backups")
	if err := parse(fs, args); err != nil {
		return err
	}
	backups, err := txn.Backups(r.cfg.LedgerFile, r.cfg.BackupDir)
	if err != nil {
		return err
	}
	if len(backups) == 0 {
		fmt.Fprintln(r.stdout, "No backups found.")
		return nil
	}
	for _, b := range backups {
		fmt.Fprintln(r.stdout, b)
	}
	return nil
}

// tailCommand prints the transaction journal.
func (r *runner) tailCommand(ctx context.Context, args []string) error {
	fs := r.newFlagSet("tail")
	follow := fs.Bool("f", false, "Follow the journal (like tail -f)")
	fs.BoolVar(follow, "follow", false, "Follow the journal (like tail -f)")
	n := fs.Int("n", 0, "Number of lines to show (0 = all)")
	raw := fs.Bool("raw", false, "Print raw JSON lines")
	if err := parse(fs, args); err != nil {
		return err
	}

	path, err := logging.FindJournal(r.cfg.LogDir, filepath.Dir(r.cfg.LedgerFile))
	if err != nil {
		return fmt.Errorf("finding journal: %w", err)
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(r.stdout, "No journal found.")
		return nil
	}

	if *raw || *follow {
		if *follow {
			fmt.Fprintf(r.stderr, "Tailing: %s (Ctrl+C to stop)\n", path)
		}
		err := logging.TailLog(ctx, r.stdout, path, *n, *follow)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	events, err := logging.ReadEvents(path)
	if err != nil {
		return err
	}
	if *n > 0 && len(events) > *n {
		events = events[len(events)-*n:]
	}
	for _, ev := range events {
		fmt.Fprintln(r.stdout, logging.FormatEvent(ev))
	}
	return nil
}

// tuiCommand launches the terminal viewer.
func (r *runner) tuiCommand(ctx context.Context, args []string) error {
	fs := r.newFlagSet("tui")
	watch := fs.Bool("watch", true, "Reload when the ledger changes on disk")
	if err := parse(fs, args); err != nil {
		return err
	}
	path := r.cfg.LedgerFile
	if fs.NArg() == 1 {
		path = fs.Arg(0)
		if !filepath.IsAbs(path) {
			path = filepath.Join(r.cfg.ProjectRoot, path)
		}
	} else if fs.NArg() > 1 {
		return usagef("tui: unexpected arguments: %v", fs.Args()[1:])
	}
	err := ui.RunTUI(ctx, path, ui.WithWatch(*watch))
	if errors.Is(err, ui.ErrNotTTY) {
		return usagef("tui: %v", err)
	}
	return err
}

// configCommand prints the effective configuration.
func (r *runner) configCommand(args []string) error {
	fs := r.newFlagSet("config")
	example := fs.Bool("example", false, "Print an annotated example configuration")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *example {
		fmt.Fprint(r.stdout, config.ExampleConfig())
		return nil
	}
	if path := config.UserConfigPath(); path != "" {
		fmt.Fprintf(r.stdout, "# user config: %s\n", path)
	}
	return r.sources.Describe(r.stdout)
}
