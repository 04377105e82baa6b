// Package logging writes the transaction journal and console logs.
package logging

import (
	"bufio"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// JournalFile is the journal file name inside the project log directory.
const JournalFile = "journal.jsonl"

// Event is one journal line. Each ledger transaction writes exactly one.
type Event struct {
	Time            time.Time `json:"time"`
	TxID            string    `json:"tx_id"`
	Intent          string    `json:"intent"`
	Ledger          string    `json:"ledger"`
	RecordID        int       `json:"record_id,omitempty"`
	Outcome         string    `json:"outcome"`
	Stage           string    `json:"stage,omitempty"`
	Error           string    `json:"error,omitempty"`
	BackupPath      string    `json:"backup_path,omitempty"`
	Written         bool      `json:"written"`
	AlreadyComplete bool      `json:"already_complete,omitempty"`
}

// Journal appends events to a per-project JSONL file.
type Journal struct {
	Dir  string
	Path string

	mu   sync.Mutex
	file *os.File
}

// NewJournal opens (creating if needed) the journal for the project that
// contains workDir.
func NewJournal(baseDir, workDir string) (*Journal, error) {
	logDir, err := FindLogDir(baseDir, workDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	path := filepath.Join(logDir, JournalFile)
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return &Journal{Dir: logDir, Path: path, file: file}, nil
}

// Record appends one event.
func (j *Journal) Record(ev Event) error {
	if j == nil || j.file == nil {
		return nil
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode journal event: %w", err)
	}
	data = append(data, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()
	if _, err := j.file.Write(data); err != nil {
		return fmt.Errorf("write journal: %w", err)
	}
	return nil
}

// Close closes the journal file.
func (j *Journal) Close() error {
	if j == nil || j.file == nil {
		return nil
	}
	return j.file.Close()
}

// ReadEvents decodes every event in a journal file. Lines that are not
// valid events are skipped.
func ReadEvents(path string) ([]Event, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	var events []Event
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var ev Event
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	return events, nil
}

// FormatEvent renders an event as a single human-readable line.
func FormatEvent(ev Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %-8s %-8s", ev.Time.UTC().Format(time.RFC3339), ev.Outcome, ev.Intent)
	if ev.RecordID > 0 {
		fmt.Fprintf(&b, " #%d", ev.RecordID)
	}
	if short := shortID(ev.TxID); short != "" {
		fmt.Fprintf(&b, " tx=%s", short)
	}
	if ev.Stage != "" {
		fmt.Fprintf(&b, " stage=%s", ev.Stage)
	}
	if ev.Error != "" {
		fmt.Fprintf(&b, " error=%q", ev.Error)
	}
	if ev.BackupPath != "" {
		fmt.Fprintf(&b, " backup=%s", filepath.Base(ev.BackupPath))
	}
	return b.String()
}

func shortID(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// FindLogDir returns the log directory for the project containing workDir.
func FindLogDir(baseDir, workDir string) (string, error) {
	if baseDir == "" {
		return "", fmt.Errorf("log base dir is empty")
	}

	resolvedWorkDir := workDir
	if resolvedWorkDir == "" {
		resolvedWorkDir = "."
	}
	if abs, err := filepath.Abs(resolvedWorkDir); err == nil {
		resolvedWorkDir = abs
	}

	baseDir = resolveBaseDir(baseDir, resolvedWorkDir)
	projectRoot := resolveProjectRoot(resolvedWorkDir)
	return filepath.Join(baseDir, projectSlug(projectRoot)), nil
}

// FindJournal returns the journal path for the project containing workDir.
// The file may not exist yet.
func FindJournal(baseDir, workDir string) (string, error) {
	dir, err := FindLogDir(baseDir, workDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, JournalFile), nil
}

func resolveBaseDir(baseDir, workDir string) string {
	if filepath.IsAbs(baseDir) {
		return filepath.Clean(baseDir)
	}
	return filepath.Clean(filepath.Join(workDir, baseDir))
}

func resolveProjectRoot(workDir string) string {
	if workDir == "" {
		return "."
	}
	if _, err := exec.LookPath("git"); err == nil {
		cmd := exec.Command("git", "-C", workDir, "rev-parse", "--show-toplevel")
		if output, err := cmd.Output(); err == nil {
			root := strings.TrimSpace(string(output))
			if root != "" {
				return root
			}
		}
	}
	return workDir
}

func projectSlug(projectRoot string) string {
	return fmt.Sprintf("%s-%s", slugify(filepath.Base(projectRoot)), hashPath(projectRoot))
}

func slugify(input string) string {
	if strings.TrimSpace(input) == "" {
		return "project"
	}

	var b strings.Builder
	lastUnderscore := false
	for i := 0; i < len(input); i++ {
		c := input[i]
		valid := (c >= 'A' && c <= 'Z') ||
			(c >= 'a' && c <= 'z') ||
			(c >= '0' && c <= '9') ||
			c == '.' || c == '_' || c == '-'
		if !valid {
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
			continue
		}
		b.WriteByte(c)
		lastUnderscore = false
	}

	slug := strings.Trim(b.String(), "_")
	if slug == "" {
		return "project"
	}
	return slug
}

func hashPath(input string) string {
	sum := sha1.Sum([]byte(input))
	return hex.EncodeToString(sum[:])[:8]
}
