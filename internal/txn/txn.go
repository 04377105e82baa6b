package txn

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/nibzard/taskledger/internal/ledger"
	"github.com/nibzard/taskledger/internal/logging"
)

// Journal receives one event per transaction.
type Journal interface {
	Record(ev logging.Event) error
}

// Options configures a transaction. The zero value is usable.
type Options struct {
	// BackupDir holds backups. Relative paths resolve against the ledger
	// directory; empty means DefaultBackupDir.
	BackupDir string
	Journal   Journal
	Logger    *log.Logger
	// NewID returns transaction ids. Defaults to random UUIDs.
	NewID func() string
	// CreateMissing lets a transaction start from an empty ledger when the
	// file does not exist. No backup is written in that case.
	CreateMissing bool
}

func (o Options) logger() *log.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return logging.Discard()
}

func (o Options) newID() string {
	if o.NewID != nil {
		return o.NewID()
	}
	return uuid.NewString()
}

// Summary describes a finished transaction.
type Summary struct {
	TxID   string
	Intent string
	Path   string
	// Record is the affected record in the new snapshot.
	Record *ledger.Record
	Ledger *ledger.Ledger
	// Warnings are advisory findings on the new snapshot.
	Warnings []ledger.Violation
	// AlreadyComplete marks a completion of a complete record. Nothing is
	// written or backed up.
	AlreadyComplete bool
	// Unchanged marks an edit that left every value as it was. Nothing is
	// written or backed up.
	Unchanged       bool
	Written         bool
	BackupPath      string
}

// Outcome returns the journal outcome label.
func (s *Summary) Outcome() string {
	if s.Written {
		return "committed"
	}
	return "noop"
}

// Apply runs intent against the ledger at path. On any error the file is
// unchanged and the returned *Error names the failing stage.
func Apply(path string, intent ledger.Intent, now time.Time, opts Options) (sum *Summary, err error) {
	if intent == nil {
		return nil, &Error{Stage: StageMutate, Path: path, Err: errors.New("no intent")}
	}
	sum = &Summary{TxID: opts.newID(), Intent: intent.Name(), Path: path}
	logger := opts.logger().With("tx", shortTx(sum.TxID), "intent", sum.Intent)
	defer func() {
		record(opts, now, sum, err)
		if err != nil {
			logger.Debug("transaction failed", "err", err)
		}
	}()

	data, mode, exists, err := readLedger(path, opts.CreateMissing)
	if err != nil {
		return sum, err
	}

	current, err := parseAndValidate(path, data, logger)
	if err != nil {
		return sum, err
	}

	next, out, err := ledger.Apply(current, intent, now)
	if err != nil {
		return sum, &Error{Stage: StageMutate, Path: path, Err: err}
	}
	sum.Ledger = next
	sum.Record = next.Find(out.RecordID)
	if out.AlreadyComplete {
		sum.AlreadyComplete = true
		logger.Info("record already complete", "id", out.RecordID)
		return sum, nil
	}
	if !out.Changed {
		sum.Unchanged = true
		logger.Info("record unchanged", "id", out.RecordID)
		return sum, nil
	}

	report := ledger.Validate(next)
	if verr := report.Err(); verr != nil {
		return sum, &Error{Stage: StageVerify, Path: path, Err: verr}
	}
	sum.Warnings = report.Warnings

	if exists {
		name := backupName(path, now, sum.Intent, sum.TxID)
		backup, err := writeBackup(backupDir(path, opts.BackupDir), name, data, mode)
		if err != nil {
			return sum, &Error{Stage: StageBackup, Path: path, Err: err}
		}
		sum.BackupPath = backup
		logger.Debug("backup written", "path", backup)
	}

	if !exists {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return sum, &Error{Stage: StageWrite, Path: path, Err: err}
		}
	}
	if err := writeAtomic(path, next.Bytes(), mode); err != nil {
		return sum, &Error{Stage: StageWrite, Path: path, Err: err}
	}
	sum.Written = true
	logger.Info("ledger updated", "id", out.RecordID, "path", path)
	return sum, nil
}

// Load reads, parses and validates a ledger without modifying it. For a
// ledger that parses but fails validation, the snapshot and report are
// returned together with a validate-stage *Error.
func Load(path string) (*ledger.Ledger, *ledger.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, &Error{Stage: StageRead, Path: path, Err: err}
	}
	l, err := ledger.ParseBytes(data)
	if err != nil {
		return nil, nil, &Error{Stage: StageParse, Path: path, Err: err}
	}
	report := ledger.Validate(l)
	if verr := report.Err(); verr != nil {
		return l, report, &Error{Stage: StageValidate, Path: path, Err: verr}
	}
	return l, report, nil
}

// Restore replaces the ledger with the contents of a backup. The backup
// must parse and validate. The current file, when present, is backed up
// first with the label "pre_restore".
func Restore(path, backupPath string, now time.Time, opts Options) (sum *Summary, err error) {
	sum = &Summary{TxID: opts.newID(), Intent: "restore", Path: path}
	logger := opts.logger().With("tx", shortTx(sum.TxID), "intent", sum.Intent)
	defer func() {
		record(opts, now, sum, err)
		if err != nil {
			logger.Debug("restore failed", "err", err)
		}
	}()

	data, err := os.ReadFile(backupPath)
	if err != nil {
		return sum, &Error{Stage: StageRead, Path: backupPath, Err: err}
	}
	restored, err := parseAndValidate(backupPath, data, logger)
	if err != nil {
		return sum, err
	}
	sum.Ledger = restored

	current, mode, exists, err := readLedger(path, true)
	if err != nil {
		return sum, err
	}
	if exists {
		name := backupName(path, now, "pre_restore", sum.TxID)
		backup, err := writeBackup(backupDir(path, opts.BackupDir), name, current, mode)
		if err != nil {
			return sum, &Error{Stage: StageBackup, Path: path, Err: err}
		}
		sum.BackupPath = backup
	}

	if err := writeAtomic(path, data, mode); err != nil {
		return sum, &Error{Stage: StageWrite, Path: path, Err: err}
	}
	sum.Written = true
	logger.Info("ledger restored", "from", backupPath)
	return sum, nil
}

// readLedger returns the file bytes and mode. A missing file yields empty
// data with exists false when allowMissing is set.
func readLedger(path string, allowMissing bool) (data []byte, mode os.FileMode, exists bool, err error) {
	info, err := os.Stat(path)
	if err != nil {
		if allowMissing && errors.Is(err, fs.ErrNotExist) {
			return nil, 0644, false, nil
		}
		return nil, 0, false, &Error{Stage: StageRead, Path: path, Err: err}
	}
	if info.IsDir() {
		return nil, 0, false, &Error{Stage: StageRead, Path: path, Err: fmt.Errorf("is a directory")}
	}
	data, err = os.ReadFile(path)
	if err != nil {
		return nil, 0, false, &Error{Stage: StageRead, Path: path, Err: err}
	}
	return data, info.Mode().Perm(), true, nil
}

func parseAndValidate(path string, data []byte, logger *log.Logger) (*ledger.Ledger, error) {
	l, err := ledger.ParseBytes(data)
	if err != nil {
		return nil, &Error{Stage: StageParse, Path: path, Err: err}
	}
	report := ledger.Validate(l)
	if verr := report.Err(); verr != nil {
		return nil, &Error{Stage: StageValidate, Path: path, Err: verr}
	}
	for _, w := range report.Warnings {
		logger.Warn(w.Message, "code", w.Code, "id", w.RecordID)
	}
	return l, nil
}

func record(opts Options, now time.Time, sum *Summary, err error) {
	if opts.Journal == nil || sum == nil {
		return
	}
	ev := logging.Event{
		Time:            now.UTC(),
		TxID:            sum.TxID,
		Intent:          sum.Intent,
		Ledger:          sum.Path,
		Outcome:         sum.Outcome(),
		BackupPath:      sum.BackupPath,
		Written:         sum.Written,
		AlreadyComplete: sum.AlreadyComplete,
	}
	if sum.Record != nil {
		ev.RecordID = sum.Record.ID
	}
	if err != nil {
		ev.Outcome = "failed"
		ev.Error = err.Error()
		var te *Error
		if errors.As(err, &te) {
			ev.Stage = string(te.Stage)
		}
		var me *ledger.MutationError
		if errors.As(err, &me) && ev.RecordID == 0 {
			ev.RecordID = me.ID
		}
	}
	if jerr := opts.Journal.Record(ev); jerr != nil {
		opts.logger().Warn("journal write failed", "err", jerr)
	}
}

func shortTx(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
