// Package ui provides the read-only terminal ledger viewer.
package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"
	"github.com/mattn/go-isatty"

	"github.com/nibzard/taskledger/internal/ledger"
	"github.com/nibzard/taskledger/internal/txn"
)

// ErrNotTTY is returned when the viewer is started without a terminal.
var ErrNotTTY = errors.New("tui requires a TTY")

// TUIOption configures the TUI behavior.
type TUIOption func(*tuiConfig)

type tuiConfig struct {
	watch        bool
	pollInterval time.Duration
}

// WithWatch enables reloading when the ledger file changes on disk.
func WithWatch(enabled bool) TUIOption {
	return func(c *tuiConfig) {
		c.watch = enabled
	}
}

// WithPollInterval sets the refresh interval used when file watching is
// unavailable or disabled. Zero disables polling.
func WithPollInterval(d time.Duration) TUIOption {
	return func(c *tuiConfig) {
		c.pollInterval = d
	}
}

// RunTUI starts the viewer for the ledger at path.
func RunTUI(ctx context.Context, path string, opts ...TUIOption) error {
	c := &tuiConfig{watch: true, pollInterval: 2 * time.Second}
	for _, opt := range opts {
		opt(c)
	}

	if !IsTTY(os.Stdout) {
		return ErrNotTTY
	}

	model := newTUIModel(path)
	if c.watch {
		w, err := watchLedger(ctx, path)
		if err == nil {
			defer w.Close()
			model.changes = w.Changes
		}
	}
	if model.changes == nil {
		model.tickInterval = c.pollInterval
	}

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

type tuiModel struct {
	path         string
	changes      <-chan struct{}
	tickInterval time.Duration

	loadErr error
	doc     *ledger.Ledger
	report  *ledger.Report
	loaded  time.Time

	filter   statusFilter
	rows     []*ledger.Record
	cursor   int
	showHelp bool
	detail   bool
	height   int
}

type statusFilter string

const (
	filterNone     statusFilter = ""
	filterOpen     statusFilter = "open"
	filterStarted  statusFilter = "started"
	filterDone     statusFilter = "done"
	filterArchived statusFilter = "archived"
)

type tickMsg time.Time

type reloadMsg struct{}

func newTUIModel(path string) *tuiModel {
	return &tuiModel{path: path}
}

func (m *tuiModel) Init() tea.Cmd {
	m.refresh()
	var cmds []tea.Cmd
	if m.changes != nil {
		cmds = append(cmds, waitForChange(m.changes))
	}
	if m.tickInterval > 0 {
		cmds = append(cmds, tickCmd(m.tickInterval))
	}
	return tea.Batch(cmds...)
}

func (m *tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "r", "f5":
			m.refresh()
		case "h", "?":
			m.showHelp = !m.showHelp
		case "enter", "d":
			m.detail = !m.detail
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.rows)-1 {
				m.cursor++
			}
		case "1":
			m.setFilter(filterOpen)
		case "2":
			m.setFilter(filterStarted)
		case "3":
			m.setFilter(filterDone)
		case "4":
			m.setFilter(filterArchived)
		case "0":
			m.setFilter(filterNone)
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.height = msg.Height
	case tickMsg:
		m.refresh()
		return m, tickCmd(m.tickInterval)
	case reloadMsg:
		m.refresh()
		if m.changes != nil {
			return m, waitForChange(m.changes)
		}
	}
	return m, nil
}

func (m *tuiModel) View() string {
	var b strings.Builder
	writeTitle(&b, m.path)

	if m.showHelp {
		writeHelp(&b)
		writeFooter(&b, m)
		return b.String()
	}
	if m.filter != filterNone {
		b.WriteString(dimStyle.Render(fmt.Sprintf("Filter: %s (0 to clear)", m.filter)) + "\n\n")
	}
	if m.loadErr != nil && m.doc == nil {
		b.WriteString(errorStyle.Render("Error loading ledger:") + "\n")
		b.WriteString("  " + m.loadErr.Error() + "\n\n")
		writeFooter(&b, m)
		return b.String()
	}
	if m.doc == nil {
		b.WriteString("Loading...\n\n")
		writeFooter(&b, m)
		return b.String()
	}

	writeOverview(&b, m.doc)
	writeNext(&b, m.doc)
	writeRecords(&b, m)
	if m.detail {
		if r := m.selected(); r != nil {
			writeDetail(&b, m.doc, r)
		}
	}
	writeProblems(&b, m.loadErr, m.report)
	writeFooter(&b, m)
	return b.String()
}

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return reloadMsg{}
	}
}

// refresh reloads the ledger. A ledger that parses but fails validation is
// still shown together with its violations.
func (m *tuiModel) refresh() {
	doc, report, err := txn.Load(m.path)
	m.loadErr = err
	m.report = report
	m.doc = doc
	m.loaded = time.Now()
	m.applyFilter()
}

func (m *tuiModel) setFilter(f statusFilter) {
	m.filter = f
	m.cursor = 0
	m.applyFilter()
}

func (m *tuiModel) applyFilter() {
	m.rows = nil
	if m.doc == nil {
		m.cursor = 0
		return
	}
	for _, r := range m.doc.Records() {
		if m.filter == filterNone || statusFilter(r.Status()) == m.filter {
			m.rows = append(m.rows, r)
		}
	}
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *tuiModel) selected() *ledger.Record {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return nil
	}
	return m.rows[m.cursor]
}

// IsTTY returns true if w is a terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// ledgerWatcher reports changes to one file. The parent directory is watched
// because atomic replacement swaps the file's inode.
type ledgerWatcher struct {
	Changes <-chan struct{}
	watcher *fsnotify.Watcher
}

func watchLedger(ctx context.Context, path string) (*ledgerWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, err
	}

	changes := make(chan struct{}, 1)
	go func() {
		defer close(changes)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
					!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
					continue
				}
				// Coalesce bursts into one pending reload.
				select {
				case changes <- struct{}{}:
				default:
				}
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return &ledgerWatcher{Changes: changes, watcher: w}, nil
}

func (w *ledgerWatcher) Close() error {
	return w.watcher.Close()
}
