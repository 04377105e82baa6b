package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nibzard/taskledger/internal/ledger"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	headerStyle  = lipgloss.NewStyle().Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	cursorStyle  = lipgloss.NewStyle().Reverse(true)
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	startedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
)

const maxProblems = 5

func writeTitle(b *strings.Builder, path string) {
	b.WriteString(titleStyle.Render("taskledger") + " " + dimStyle.Render(path) + "\n\n")
}

func writeOverview(b *strings.Builder, l *ledger.Ledger) {
	st := l.Summarize()
	b.WriteString(headerStyle.Render("Overview") + "\n")
	fmt.Fprintf(b, "  Open: %d  Started: %d  Done: %d  Archived: %d  Complete: %.0f%%\n\n",
		st.Open, st.Started, st.Done, st.Archived, st.CompletionRate*100)
}

func writeNext(b *strings.Builder, l *ledger.Ledger) {
	b.WriteString(headerStyle.Render("Next") + "\n")
	if next := l.Next(); next != nil {
		b.WriteString(formatRecord(next) + "\n\n")
		return
	}
	b.WriteString("  Nothing ready.\n\n")
}

func writeRecords(b *strings.Builder, m *tuiModel) {
	b.WriteString(headerStyle.Render("Records") + "\n")
	if len(m.rows) == 0 {
		b.WriteString("  No records.\n\n")
		return
	}
	start, end := visibleRange(len(m.rows), m.cursor, m.listHeight())
	section := ledger.SectionNone
	for i := start; i < end; i++ {
		r := m.rows[i]
		if kind := sectionOf(r); kind != section {
			section = kind
			b.WriteString(dimStyle.Render("  "+section.String()) + "\n")
		}
		line := formatRecord(r)
		if i == m.cursor {
			line = cursorStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}
	if end-start < len(m.rows) {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  %d-%d of %d", start+1, end, len(m.rows))) + "\n")
	}
	b.WriteString("\n")
}

// listHeight is the number of record rows that fit on screen, or 0 for no
// limit.
func (m *tuiModel) listHeight() int {
	if m.height <= 0 {
		return 0
	}
	if h := m.height - 16; h > 3 {
		return h
	}
	return 3
}

func visibleRange(n, cursor, height int) (int, int) {
	if height <= 0 || n <= height {
		return 0, n
	}
	start := cursor - height/2
	if start < 0 {
		start = 0
	}
	if start+height > n {
		start = n - height
	}
	return start, start + height
}

func sectionOf(r *ledger.Record) ledger.SectionKind {
	if r.Archived {
		return ledger.SectionArchive
	}
	return r.Priority.Section()
}

func writeDetail(b *strings.Builder, l *ledger.Ledger, r *ledger.Record) {
	b.WriteString(headerStyle.Render(fmt.Sprintf("#%d %s", r.ID, r.Title)) + "\n")
	fmt.Fprintf(b, "  Status:   %s\n", r.Status())
	fmt.Fprintf(b, "  Priority: %s\n", r.Priority)
	fmt.Fprintf(b, "  Created:  %s\n", ledger.FormatTime(r.CreatedAt))
	if r.StartedAt != nil {
		fmt.Fprintf(b, "  Started:  %s\n", ledger.FormatTime(*r.StartedAt))
	}
	if r.FinishedAt != nil {
		fmt.Fprintf(b, "  Finished: %s\n", ledger.FormatTime(*r.FinishedAt))
	}
	for _, f := range r.Fields {
		fmt.Fprintf(b, "  %s: %s\n", f.Key, f.Value)
		for _, item := range f.Items {
			b.WriteString("    " + strings.TrimSpace(item) + "\n")
		}
	}
	if len(r.Prerequisites) > 0 {
		ids := make([]string, len(r.Prerequisites))
		for i, id := range r.Prerequisites {
			ids[i] = fmt.Sprintf("#%d", id)
		}
		fmt.Fprintf(b, "  Prerequisites: %s\n", strings.Join(ids, ", "))
	}
	if blockers := l.Blockers(r); len(blockers) > 0 && !r.Done {
		ids := make([]string, len(blockers))
		for i, x := range blockers {
			ids[i] = fmt.Sprintf("#%d", x.ID)
		}
		b.WriteString(warnStyle.Render("  Blocked by: "+strings.Join(ids, ", ")) + "\n")
	}
	b.WriteString("\n")
}

func writeProblems(b *strings.Builder, loadErr error, report *ledger.Report) {
	if loadErr == nil && (report == nil || len(report.Warnings) == 0) {
		return
	}
	b.WriteString(headerStyle.Render("Problems") + "\n")
	if loadErr != nil {
		b.WriteString(errorStyle.Render("  "+loadErr.Error()) + "\n")
	}
	if report != nil {
		for i, w := range report.Warnings {
			if i == maxProblems {
				fmt.Fprintf(b, "  ... %d more\n", len(report.Warnings)-maxProblems)
				break
			}
			b.WriteString(warnStyle.Render("  "+w.String()) + "\n")
		}
	}
	b.WriteString("\n")
}

func writeHelp(b *strings.Builder) {
	b.WriteString(headerStyle.Render("Keyboard Shortcuts") + "\n\n")
	b.WriteString("  q, ctrl+c    Quit\n")
	b.WriteString("  r, F5        Reload the ledger\n")
	b.WriteString("  up/k down/j  Move the cursor\n")
	b.WriteString("  enter, d     Toggle record details\n")
	b.WriteString("  h, ?         Toggle this help screen\n")
	b.WriteString("  1            Filter by open\n")
	b.WriteString("  2            Filter by started\n")
	b.WriteString("  3            Filter by done\n")
	b.WriteString("  4            Filter by archived\n")
	b.WriteString("  0            Clear filter\n\n")
}

func writeFooter(b *strings.Builder, m *tuiModel) {
	mode := "manual reload"
	switch {
	case m.changes != nil:
		mode = "watching for changes"
	case m.tickInterval > 0:
		mode = fmt.Sprintf("refreshing every %s", m.tickInterval)
	}
	b.WriteString(dimStyle.Render(fmt.Sprintf("Press h for help | q to quit | %s", mode)) + "\n")
}

func formatRecord(r *ledger.Record) string {
	icon := " "
	style := lipgloss.NewStyle()
	switch r.Status() {
	case "started":
		icon = ">"
		style = startedStyle
	case "done":
		icon = "x"
		style = doneStyle
	case "archived":
		icon = "a"
		style = dimStyle
	}
	line := fmt.Sprintf("  %s #%-3d %s", icon, r.ID, r.Title)
	if who := r.FieldValue("assignee"); who != "" {
		line += " @" + who
	}
	return style.Render(line)
}
