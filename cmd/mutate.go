package cmd

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/nibzard/taskledger/internal/export"
	"github.com/nibzard/taskledger/internal/hooks"
	"github.com/nibzard/taskledger/internal/ledger"
	"github.com/nibzard/taskledger/internal/logging"
	"github.com/nibzard/taskledger/internal/txn"
	"github.com/nibzard/taskledger/internal/utils"
)

// fieldList collects repeated -field key=value flags.
type fieldList []ledger.FieldChange

func (f *fieldList) String() string {
	parts := make([]string, len(*f))
	for i, c := range *f {
		parts[i] = c.Key + "=" + c.Value
	}
	return strings.Join(parts, ",")
}

func (f *fieldList) Set(s string) error {
	key, value, err := utils.ParseKeyValue(s)
	if err != nil {
		return err
	}
	*f = append(*f, ledger.FieldChange{Key: key, Value: value})
	return nil
}

// addCommand creates a record.
func (r *runner) addCommand(ctx context.Context, args []string) error {
	fs := r.newFlagSet("add")
	priority := fs.String("priority", string(ledger.PriorityMedium), "Priority (Critical, High, Medium, Low)")
	fs.StringVar(priority, "p", string(ledger.PriorityMedium), "Priority (shorthand)")
	var fields fieldList
	fs.Var(&fields, "field", "Extra field as key=value (repeatable)")
	prereq := fs.String("prereq", "", "Comma-separated prerequisite ids")
	asJSON := fs.Bool("json", false, "Print the created record as JSON")
	if err := parse(fs, args); err != nil {
		return err
	}

	title := joinArgs(fs.Args())
	if title == "" {
		return usagef("add: title is required")
	}
	p, err := ledger.ParsePriority(*priority)
	if err != nil {
		return usagef("add: %v", err)
	}
	if *prereq != "" {
		ids := utils.SplitAndTrim(*prereq, ",")
		for _, s := range ids {
			if _, err := utils.ParseID(s); err != nil {
				return usagef("add: -prereq: %v", err)
			}
		}
		fields = append(fields, ledger.FieldChange{Key: "prerequisites", Value: strings.Join(ids, ", ")})
	}

	intent := ledger.CreateIntent{Title: title, Priority: p, Fields: fields}
	return r.commit(ctx, intent, *asJSON, true)
}

func (r *runner) startCommand(ctx context.Context, args []string) error {
	return r.idCommand(ctx, "start", args, func(id int) ledger.Intent { return ledger.StartIntent{ID: id} })
}

func (r *runner) doneCommand(ctx context.Context, args []string) error {
	return r.idCommand(ctx, "done", args, func(id int) ledger.Intent { return ledger.CompleteIntent{ID: id} })
}

func (r *runner) archiveCommand(ctx context.Context, args []string) error {
	return r.idCommand(ctx, "archive", args, func(id int) ledger.Intent { return ledger.ArchiveIntent{ID: id} })
}

// idCommand runs a lifecycle intent that takes exactly one record id.
func (r *runner) idCommand(ctx context.Context, name string, args []string, build func(int) ledger.Intent) error {
	fs := r.newFlagSet(name)
	asJSON := fs.Bool("json", false, "Print the affected record as JSON")
	if err := parse(fs, args); err != nil {
		return err
	}
	id, err := singleID(name, fs)
	if err != nil {
		return err
	}
	return r.commit(ctx, build(id), *asJSON, false)
}

// editCommand applies key=value changes to one record.
func (r *runner) editCommand(ctx context.Context, args []string) error {
	fs := r.newFlagSet("edit")
	asJSON := fs.Bool("json", false, "Print the edited record as JSON")
	if err := parse(fs, args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) < 2 {
		return usagef("edit: usage: edit <id> key=value [key=value...]")
	}
	id, err := utils.ParseID(rest[0])
	if err != nil {
		return usagef("edit: %v", err)
	}
	var changes []ledger.FieldChange
	for _, arg := range rest[1:] {
		key, value, err := utils.ParseKeyValue(arg)
		if err != nil {
			return usagef("edit: %v", err)
		}
		changes = append(changes, ledger.FieldChange{Key: key, Value: value})
	}
	return r.commit(ctx, ledger.EditIntent{ID: id, Changes: changes}, *asJSON, false)
}

func singleID(name string, fs *flag.FlagSet) (int, error) {
	if fs.NArg() != 1 {
		return 0, usagef("%s: expected exactly one record id", name)
	}
	id, err := utils.ParseID(fs.Arg(0))
	if err != nil {
		return 0, usagef("%s: %v", name, err)
	}
	return id, nil
}

// txnOptions builds transaction options from the configuration. The
// returned close function releases the journal.
func (r *runner) txnOptions(createMissing bool) (txn.Options, func()) {
	opts := txn.Options{
		BackupDir:     r.cfg.BackupDir,
		Logger:        r.logger,
		NewID:         r.newID,
		CreateMissing: createMissing,
	}
	closeFn := func() {}
	if !r.cfg.Journal {
		return opts, closeFn
	}
	journal, err := logging.NewJournal(r.cfg.LogDir, filepath.Dir(r.cfg.LedgerFile))
	if err != nil {
		r.logger.Warn("journal unavailable", "err", err)
		return opts, closeFn
	}
	opts.Journal = journal
	return opts, func() { _ = journal.Close() }
}

// commit runs one transaction and reports its result.
func (r *runner) commit(ctx context.Context, intent ledger.Intent, asJSON, createMissing bool) error {
	opts, closeJournal := r.txnOptions(createMissing)
	defer closeJournal()

	sum, err := txn.Apply(r.cfg.LedgerFile, intent, r.now(), opts)
	if err != nil {
		return err
	}
	r.logger.Debug("transaction committed", "tx", sum.TxID, "intent", sum.Intent, "written", sum.Written, "backup", sum.BackupPath)

	if sum.Written {
		r.runHook(ctx, sum)
	}

	if asJSON {
		if err := r.printSummaryJSON(sum); err != nil {
			return err
		}
	} else {
		r.printSummary(sum)
	}
	if sum.AlreadyComplete || sum.Unchanged {
		return ErrNoWork
	}
	return nil
}

// runHook invokes the configured hook. Hook failures are logged; the
// transaction has already been committed.
func (r *runner) runHook(ctx context.Context, sum *txn.Summary) {
	if r.cfg.HookCommand == "" {
		return
	}
	opts := hooks.Options{
		Command:    r.cfg.HookCommand,
		TxID:       sum.TxID,
		Intent:     sum.Intent,
		LedgerPath: sum.Path,
		WorkDir:    r.cfg.ProjectRoot,
		Stdout:     r.stderr,
		Stderr:     r.stderr,
	}
	if sum.Record != nil {
		opts.RecordID = sum.Record.ID
		if payload, err := json.Marshal(export.FromRecord(sum.Ledger, sum.Record)); err == nil {
			opts.Payload = payload
		}
	}
	if _, err := hooks.Invoke(ctx, opts); err != nil {
		r.logger.Warn("hook failed", "cmd", r.cfg.HookCommand, "err", err)
	}
}

// mutationResult is the -json output of a mutating command.
type mutationResult struct {
	TxID            string         `json:"tx_id"`
	Intent          string         `json:"intent"`
	Outcome         string         `json:"outcome"`
	Ledger          string         `json:"ledger"`
	BackupPath      string         `json:"backup_path,omitempty"`
	AlreadyComplete bool           `json:"already_complete,omitempty"`
	Unchanged       bool           `json:"unchanged,omitempty"`
	Record          *export.Record `json:"record,omitempty"`
	Warnings        []string       `json:"warnings,omitempty"`
}

func (r *runner) printSummaryJSON(sum *txn.Summary) error {
	out := mutationResult{
		TxID:            sum.TxID,
		Intent:          sum.Intent,
		Outcome:         sum.Outcome(),
		Ledger:          sum.Path,
		BackupPath:      sum.BackupPath,
		AlreadyComplete: sum.AlreadyComplete,
		Unchanged:       sum.Unchanged,
	}
	if sum.Record != nil {
		rec := export.FromRecord(sum.Ledger, sum.Record)
		out.Record = &rec
	}
	for _, w := range sum.Warnings {
		out.Warnings = append(out.Warnings, w.String())
	}
	return export.Encode(r.stdout, out, export.FormatJSON)
}

func (r *runner) printSummary(sum *txn.Summary) {
	rec := sum.Record
	switch {
	case sum.AlreadyComplete:
		fmt.Fprintf(r.stdout, "Record %d is already complete.\n", rec.ID)
		return
	case sum.Unchanged:
		fmt.Fprintf(r.stdout, "Record %d is unchanged.\n", rec.ID)
		return
	case rec == nil:
		fmt.Fprintf(r.stdout, "%s: %s\n", sum.Intent, sum.Path)
	default:
		fmt.Fprintf(r.stdout, "%s #%d %s\n", pastTense(sum.Intent), rec.ID, rec.Title)
	}
	if sum.BackupPath != "" {
		fmt.Fprintf(r.stdout, "  backup: %s\n", sum.BackupPath)
	}
	for _, w := range sum.Warnings {
		fmt.Fprintf(r.stdout, "  warning: %s\n", w)
	}
}

func pastTense(intent string) string {
	switch intent {
	case "create":
		return "Created"
	case "start":
		return "Started"
	case "complete":
		return "Completed"
	case "archive":
		return "Archived"
	case "edit":
		return "Edited"
	case "restore":
		return "Restored"
	}
	return intent
}
