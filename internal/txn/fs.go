package txn

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// BackupTimeLayout is the timestamp embedded in backup file names.
const BackupTimeLayout = "20060102T150405Z"

// DefaultBackupDir is used when Options.BackupDir is empty. Relative backup
// directories resolve against the ledger's directory.
const DefaultBackupDir = ".task_backups"

func backupDir(ledgerPath, dir string) string {
	if dir == "" {
		dir = DefaultBackupDir
	}
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir)
	}
	return filepath.Join(filepath.Dir(ledgerPath), dir)
}

// backupName returns <stem>_<time>_<label>_<txid8><ext>.
func backupName(ledgerPath string, at time.Time, label, txID string) string {
	base := filepath.Base(ledgerPath)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	short := strings.ReplaceAll(txID, "-", "")
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("%s_%s_%s_%s%s", stem, at.UTC().Format(BackupTimeLayout), label, short, ext)
}

// writeBackup stores data as a new file in dir and syncs it.
func writeBackup(dir, name string, data []byte, mode os.FileMode) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, mode)
	if err != nil {
		return "", fmt.Errorf("create backup: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write backup: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("sync backup: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close backup: %w", err)
	}
	return path, nil
}

// writeAtomic replaces path with data: temp file in the same directory,
// fsync, chmod, rename.
func writeAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	success = true

	// Persist the rename. Not every platform can sync a directory.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		d.Close()
	}
	return nil
}

// Backups lists the backups of ledgerPath in dir, oldest first.
func Backups(ledgerPath, dir string) ([]string, error) {
	dir = backupDir(ledgerPath, dir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read backup dir: %w", err)
	}

	base := filepath.Base(ledgerPath)
	ext := filepath.Ext(base)
	prefix := strings.TrimSuffix(base, ext) + "_"

	var out []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ext) {
			continue
		}
		out = append(out, filepath.Join(dir, name))
	}
	// Names embed a sortable UTC timestamp right after the stem.
	sort.Strings(out)
	return out, nil
}
