package txn

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/nibzard/taskledger/internal/ledger"
	"github.com/nibzard/taskledger/internal/logging"
)

const seed = `# Project Tasks

## High Priority Tasks

- [ ] **Fix login bug**:
  - **ID**: 1
  - **Create Date**: 2024-04-01T09:00:00Z
  - **Priority**: High
  - **Assignee**: sam

## Archive
`

var txNow = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

type memJournal struct {
	events []logging.Event
}

func (m *memJournal) Record(ev logging.Event) error {
	m.events = append(m.events, ev)
	return nil
}

func fixedID(id string) func() string {
	return func() string { return id }
}

func writeLedger(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "TASKS.md")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func backupCount(t *testing.T, path string) int {
	t.Helper()
	backups, err := Backups(path, "")
	if err != nil {
		t.Fatalf("Backups failed: %v", err)
	}
	return len(backups)
}

func TestApplyCreate(t *testing.T) {
	path := writeLedger(t, seed)
	journal := &memJournal{}

	sum, err := Apply(path, ledger.CreateIntent{Title: "Add audit log", Priority: ledger.PriorityHigh}, txNow, Options{
		Journal: journal,
		NewID:   fixedID("0123abcd-4567-89ef-0000-000000000000"),
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if !sum.Written || sum.Record == nil || sum.Record.ID != 2 {
		t.Fatalf("summary: written=%v record=%+v", sum.Written, sum.Record)
	}

	wantBackup := filepath.Join(filepath.Dir(path), DefaultBackupDir, "TASKS_20240501T100000Z_create_0123abcd.md")
	if sum.BackupPath != wantBackup {
		t.Errorf("BackupPath: got %s, want %s", sum.BackupPath, wantBackup)
	}
	if got := readFile(t, wantBackup); got != seed {
		t.Errorf("backup content differs from the original")
	}

	l, report, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !report.Valid() {
		t.Errorf("written ledger invalid: %v", report.Err())
	}
	if r := l.Find(2); r == nil || r.Title != "Add audit log" {
		t.Errorf("record 2 after reload: %+v", r)
	}
	if !strings.Contains(readFile(t, path), "  - **Assignee**: sam\n") {
		t.Error("untouched record changed")
	}

	if len(journal.events) != 1 {
		t.Fatalf("journal events: got %d, want 1", len(journal.events))
	}
	ev := journal.events[0]
	if ev.Outcome != "committed" || ev.RecordID != 2 || ev.Intent != "create" || ev.BackupPath != wantBackup {
		t.Errorf("journal event: %+v", ev)
	}
}

func TestApplyFailuresLeaveFileUntouched(t *testing.T) {
	invalid := strings.Replace(seed, "  - **Priority**: High\n", "  - **Priority**: High\n  - **Finish Date**: 2024-04-02T00:00:00Z\n", 1)

	tests := []struct {
		name    string
		content string
		intent  ledger.Intent
		stage   Stage
		target  any
		is      error
	}{
		{
			name:    "parse error",
			content: "## High Priority Tasks\n\n- [] **Broken**:\n",
			intent:  ledger.StartIntent{ID: 1},
			stage:   StageParse,
			target:  new(*ledger.ParseError),
		},
		{
			name:    "invalid source",
			content: invalid,
			intent:  ledger.StartIntent{ID: 1},
			stage:   StageValidate,
			target:  new(*ledger.ValidationError),
		},
		{
			name:    "unknown record",
			content: seed,
			intent:  ledger.StartIntent{ID: 9},
			stage:   StageMutate,
			is:      ledger.ErrNotFound,
		},
		{
			name:    "immutable field",
			content: seed,
			intent:  ledger.EditIntent{ID: 1, Changes: []ledger.FieldChange{{Key: "id", Value: "2"}}},
			stage:   StageMutate,
			is:      ledger.ErrImmutableField,
		},
		{
			name:    "result fails validation",
			content: seed,
			intent:  ledger.CreateIntent{Title: "bold **title**", Priority: ledger.PriorityLow},
			stage:   StageVerify,
			target:  new(*ledger.ValidationError),
		},
		{
			name:    "archive not eligible",
			content: seed,
			intent:  ledger.ArchiveIntent{ID: 1},
			stage:   StageMutate,
			is:      ledger.ErrNotEligible,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeLedger(t, tt.content)
			journal := &memJournal{}

			_, err := Apply(path, tt.intent, txNow, Options{Journal: journal})
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			var te *Error
			if !errors.As(err, &te) {
				t.Fatalf("expected *Error, got %T: %v", err, err)
			}
			if te.Stage != tt.stage {
				t.Errorf("Stage: got %s, want %s (%v)", te.Stage, tt.stage, err)
			}
			if te.Internal() {
				t.Errorf("stage %s should not be internal", te.Stage)
			}
			if tt.target != nil && !errors.As(err, tt.target) {
				t.Errorf("errors.As(%T) failed for %v", tt.target, err)
			}
			if tt.is != nil && !errors.Is(err, tt.is) {
				t.Errorf("errors.Is(%v) failed for %v", tt.is, err)
			}

			if got := readFile(t, path); got != tt.content {
				t.Error("ledger file changed after a failed transaction")
			}
			if n := backupCount(t, path); n != 0 {
				t.Errorf("backups: got %d, want 0", n)
			}
			if len(journal.events) != 1 || journal.events[0].Outcome != "failed" || journal.events[0].Stage != string(tt.stage) {
				t.Errorf("journal: %+v", journal.events)
			}
		})
	}
}

func TestApplyCompleteTwice(t *testing.T) {
	path := writeLedger(t, seed)

	first, err := Apply(path, ledger.CompleteIntent{ID: 1}, txNow, Options{})
	if err != nil {
		t.Fatalf("first completion failed: %v", err)
	}
	if !first.Written || first.AlreadyComplete {
		t.Fatalf("first completion: %+v", first)
	}
	after := readFile(t, path)

	journal := &memJournal{}
	second, err := Apply(path, ledger.CompleteIntent{ID: 1}, txNow.Add(time.Minute), Options{Journal: journal})
	if err != nil {
		t.Fatalf("second completion failed: %v", err)
	}
	if second.Written || !second.AlreadyComplete || second.BackupPath != "" {
		t.Errorf("second completion: %+v", second)
	}
	if readFile(t, path) != after {
		t.Error("second completion rewrote the ledger")
	}
	if n := backupCount(t, path); n != 1 {
		t.Errorf("backups: got %d, want 1", n)
	}
	if journal.events[0].Outcome != "noop" || !journal.events[0].AlreadyComplete {
		t.Errorf("journal event: %+v", journal.events[0])
	}
}

func TestApplyEditWithoutChanges(t *testing.T) {
	path := writeLedger(t, seed)
	journal := &memJournal{}

	sum, err := Apply(path, ledger.EditIntent{ID: 1, Changes: []ledger.FieldChange{{Key: "assignee", Value: "sam"}}}, txNow, Options{Journal: journal})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if sum.Written || !sum.Unchanged || sum.BackupPath != "" {
		t.Errorf("summary: %+v", sum)
	}
	if got := sum.Outcome(); got != "noop" {
		t.Errorf("Outcome: got %q, want %q", got, "noop")
	}
	if got := readFile(t, path); got != seed {
		t.Errorf("ledger rewritten:\n%s", got)
	}
	if n := backupCount(t, path); n != 0 {
		t.Errorf("backups: got %d, want 0", n)
	}
	if len(journal.events) != 1 || journal.events[0].Written {
		t.Errorf("journal: %+v", journal.events)
	}
}

func TestApplyLifecycle(t *testing.T) {
	path := writeLedger(t, seed)
	steps := []ledger.Intent{
		ledger.StartIntent{ID: 1},
		ledger.CompleteIntent{ID: 1},
		ledger.ArchiveIntent{ID: 1},
	}
	for i, intent := range steps {
		if _, err := Apply(path, intent, txNow.Add(time.Duration(i)*time.Hour), Options{}); err != nil {
			t.Fatalf("%s failed: %v", intent.Name(), err)
		}
	}

	l, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := len(l.Section(ledger.SectionHigh).Records()); got != 0 {
		t.Errorf("High records: got %d, want 0", got)
	}
	archived := l.Section(ledger.SectionArchive).Records()
	if len(archived) != 1 || archived[0].ID != 1 || !archived[0].Done {
		t.Errorf("Archive: got %+v", archived)
	}
	if n := backupCount(t, path); n != 3 {
		t.Errorf("backups: got %d, want 3", n)
	}
}

func TestApplyMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs", "TASKS.md")

	_, err := Apply(path, ledger.CreateIntent{Title: "First", Priority: ledger.PriorityMedium}, txNow, Options{})
	var te *Error
	if !errors.As(err, &te) || te.Stage != StageRead || !te.Internal() {
		t.Fatalf("expected read-stage error, got %v", err)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected fs.ErrNotExist, got %v", err)
	}

	sum, err := Apply(path, ledger.CreateIntent{Title: "First", Priority: ledger.PriorityMedium}, txNow, Options{CreateMissing: true})
	if err != nil {
		t.Fatalf("Apply with CreateMissing failed: %v", err)
	}
	if sum.BackupPath != "" {
		t.Errorf("no backup expected for a new file, got %s", sum.BackupPath)
	}
	if !strings.HasPrefix(readFile(t, path), "## Medium Priority Tasks\n\n- [ ] **First**:\n") {
		t.Errorf("new ledger content:\n%s", readFile(t, path))
	}
}

func TestApplyKeepsFileMode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file modes are not meaningful on Windows")
	}
	path := writeLedger(t, seed)
	if err := os.Chmod(path, 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Apply(path, ledger.StartIntent{ID: 1}, txNow, Options{}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := info.Mode().Perm(); got != 0600 {
		t.Errorf("mode: got %o, want 600", got)
	}
}

func TestApplyCustomBackupDir(t *testing.T) {
	path := writeLedger(t, seed)
	dir := filepath.Join(t.TempDir(), "elsewhere")

	sum, err := Apply(path, ledger.StartIntent{ID: 1}, txNow, Options{BackupDir: dir})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if filepath.Dir(sum.BackupPath) != dir {
		t.Errorf("backup dir: got %s, want %s", filepath.Dir(sum.BackupPath), dir)
	}
	backups, err := Backups(path, dir)
	if err != nil || len(backups) != 1 {
		t.Errorf("Backups: got %v, %v", backups, err)
	}
}

func TestLoadInvalid(t *testing.T) {
	invalid := strings.Replace(seed, "- [ ] **Fix login bug**:", "- [ ] **Fix**login bug**:", 1)
	path := writeLedger(t, invalid)

	l, report, err := Load(path)
	var te *Error
	if !errors.As(err, &te) || te.Stage != StageValidate {
		t.Fatalf("expected validate-stage error, got %v", err)
	}
	if l == nil || report == nil || report.Valid() {
		t.Errorf("Load should return the snapshot and report, got %v %v", l, report)
	}
}

func TestRestore(t *testing.T) {
	path := writeLedger(t, seed)
	sum, err := Apply(path, ledger.StartIntent{ID: 1}, txNow, Options{})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	started := readFile(t, path)

	journal := &memJournal{}
	restored, err := Restore(path, sum.BackupPath, txNow.Add(time.Second), Options{Journal: journal})
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if readFile(t, path) != seed {
		t.Error("restored ledger differs from the backup")
	}
	if !strings.Contains(filepath.Base(restored.BackupPath), "_pre_restore_") {
		t.Errorf("pre-restore backup name: %s", restored.BackupPath)
	}
	if readFile(t, restored.BackupPath) != started {
		t.Error("pre-restore backup does not hold the replaced content")
	}
	if len(journal.events) != 1 || journal.events[0].Intent != "restore" {
		t.Errorf("journal: %+v", journal.events)
	}
}

func TestRestoreRejectsBrokenBackup(t *testing.T) {
	path := writeLedger(t, seed)
	broken := filepath.Join(t.TempDir(), "TASKS_bad.md")
	if err := os.WriteFile(broken, []byte("## Low Priority Tasks\n## High Priority Tasks\n"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := Restore(path, broken, txNow, Options{})
	var te *Error
	if !errors.As(err, &te) || te.Stage != StageParse {
		t.Fatalf("expected parse-stage error, got %v", err)
	}
	if readFile(t, path) != seed {
		t.Error("ledger changed after a rejected restore")
	}
}

func TestBackupName(t *testing.T) {
	tests := []struct {
		path  string
		label string
		want  string
	}{
		{"docs/TASKS.md", "create", "TASKS_20240501T100000Z_create_abcdef01.md"},
		{"ledger", "archive", "ledger_20240501T100000Z_archive_abcdef01"},
		{"a.b.md", "pre_restore", "a.b_20240501T100000Z_pre_restore_abcdef01.md"},
	}
	for _, tt := range tests {
		if got := backupName(tt.path, txNow, tt.label, "abcdef01-2345"); got != tt.want {
			t.Errorf("backupName(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestBackupsOrder(t *testing.T) {
	path := writeLedger(t, seed)
	for i, intent := range []ledger.Intent{ledger.StartIntent{ID: 1}, ledger.CompleteIntent{ID: 1}} {
		if _, err := Apply(path, intent, txNow.Add(time.Duration(i)*time.Minute), Options{}); err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
	}
	backups, err := Backups(path, "")
	if err != nil {
		t.Fatalf("Backups failed: %v", err)
	}
	if len(backups) != 2 {
		t.Fatalf("backups: got %d, want 2", len(backups))
	}
	if !strings.Contains(backups[0], "_start_") || !strings.Contains(backups[1], "_complete_") {
		t.Errorf("backup order: %v", backups)
	}
}
