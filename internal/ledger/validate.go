package ledger

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Violation codes.
const (
	CodeInvalidID            = "invalid-id"
	CodeDuplicateID          = "duplicate-id"
	CodeInvalidTitle         = "invalid-title"
	CodeMissingCreated       = "missing-created"
	CodeInvalidPriority      = "invalid-priority"
	CodeMisplacedRecord      = "misplaced-record"
	CodeFinishedNotDone      = "finished-not-done"
	CodeArchivedNotFinished  = "archived-not-finished"
	CodeStartAfterFinish     = "start-after-finish"
	CodeRecordOutsideSection = "record-outside-section"

	// Warning codes.
	CodeDanglingPrerequisite   = "dangling-prerequisite"
	CodeSelfPrerequisite       = "self-prerequisite"
	CodePrerequisiteCycle      = "prerequisite-cycle"
	CodeDoneWithoutFinish      = "done-without-finish"
	CodeArchiveOrder           = "archive-order"
	CodeBadEstimate            = "bad-estimate"
	CodeIncompletePrerequisite = "incomplete-prerequisite"
)

// estimateRe accepts estimates such as "2h", "30m", "45 minutes", "3 days"
// and "2:30". Only the leading part is checked.
var estimateRe = regexp.MustCompile(`^(\d+\s*(minutes?|hours?|days?|weeks?)|\d+[hm]|\d+:\d+)`)

// Report is the outcome of Validate. Violations are hard failures; warnings
// are advisory.
type Report struct {
	Violations []Violation
	Warnings   []Violation
}

// Valid reports whether no invariant is violated.
func (r *Report) Valid() bool {
	return len(r.Violations) == 0
}

// Err returns a *ValidationError listing every violation, or nil.
func (r *Report) Err() error {
	if r.Valid() {
		return nil
	}
	return &ValidationError{Violations: append([]Violation(nil), r.Violations...)}
}

func (r *Report) fail(code string, id int, format string, args ...any) {
	r.Violations = append(r.Violations, Violation{Code: code, RecordID: id, Message: fmt.Sprintf(format, args...)})
}

func (r *Report) warn(code string, id int, format string, args ...any) {
	r.Warnings = append(r.Warnings, Violation{Code: code, RecordID: id, Message: fmt.Sprintf(format, args...)})
}

// Validate checks every ledger invariant and collects all violations rather
// than stopping at the first.
func Validate(l *Ledger) *Report {
	report := &Report{}

	for _, n := range l.Preamble {
		if n.Record != nil {
			report.fail(CodeRecordOutsideSection, n.Record.ID, "record appears before the first section")
		}
	}

	seen := make(map[int]bool)
	for _, s := range l.Sections {
		for _, r := range s.Records() {
			if r.ID <= 0 {
				report.fail(CodeInvalidID, r.ID, "ID must be positive")
			} else if seen[r.ID] {
				report.fail(CodeDuplicateID, r.ID, "ID is used by more than one record")
			}
			seen[r.ID] = true
			checkRecord(report, s, r)
		}
	}

	checkArchiveOrder(report, l)
	checkPrerequisites(report, l, seen)
	return report
}

func checkRecord(report *Report, s *Section, r *Record) {
	title := strings.TrimSpace(r.Title)
	switch {
	case title == "":
		report.fail(CodeInvalidTitle, r.ID, "title is empty")
	case strings.ContainsAny(r.Title, "\r\n"):
		report.fail(CodeInvalidTitle, r.ID, "title spans more than one line")
	case strings.Contains(r.Title, "**"):
		report.fail(CodeInvalidTitle, r.ID, "title contains \"**\"")
	}

	if r.CreatedAt.IsZero() {
		report.fail(CodeMissingCreated, r.ID, "created_at is not set")
	}
	if r.Priority.Section() == SectionNone {
		report.fail(CodeInvalidPriority, r.ID, "priority %q is not one of Critical, High, Medium, Low", r.Priority)
	}

	if r.Archived && s.Kind != SectionArchive {
		report.fail(CodeMisplacedRecord, r.ID, "archived record is in section %s", s.Kind)
	}
	if !r.Archived && s.Kind == SectionArchive {
		report.fail(CodeMisplacedRecord, r.ID, "active record is in the Archive section")
	}
	if !r.Archived && s.Kind != SectionArchive && r.Priority.Section() != s.Kind {
		report.fail(CodeMisplacedRecord, r.ID, "priority %s record is in section %s", r.Priority, s.Kind)
	}

	if r.FinishedAt != nil && !r.Done {
		report.fail(CodeFinishedNotDone, r.ID, "finished_at is set but the record is not done")
	}
	if r.Archived && (!r.Done || r.FinishedAt == nil) {
		report.fail(CodeArchivedNotFinished, r.ID, "archived record must be done with finished_at set")
	}
	if r.StartedAt != nil && r.FinishedAt != nil && r.StartedAt.After(*r.FinishedAt) {
		report.fail(CodeStartAfterFinish, r.ID, "started_at %s is after finished_at %s",
			FormatTime(*r.StartedAt), FormatTime(*r.FinishedAt))
	}
	if r.Done && r.FinishedAt == nil && !r.Archived {
		report.warn(CodeDoneWithoutFinish, r.ID, "record is checked but has no finished_at")
	}
	if est := strings.TrimSpace(r.FieldValue("estimated_time")); est != "" && !isNone(est) &&
		!estimateRe.MatchString(strings.ToLower(est)) {
		report.warn(CodeBadEstimate, r.ID, "estimated time %q should look like \"30 minutes\", \"2h\" or \"2:30\"", est)
	}
}

func checkArchiveOrder(report *Report, l *Ledger) {
	archive := l.Section(SectionArchive)
	if archive == nil {
		return
	}
	records := archive.Records()
	for i := 1; i < len(records); i++ {
		prev, cur := records[i-1], records[i]
		if prev.FinishedAt == nil || cur.FinishedAt == nil {
			continue
		}
		if archiveLess(cur, prev) {
			report.warn(CodeArchiveOrder, cur.ID, "archived before record %d but finished earlier", prev.ID)
		}
	}
}

// archiveLess orders archived records by finished_at, then id.
func archiveLess(a, b *Record) bool {
	if !a.FinishedAt.Equal(*b.FinishedAt) {
		return a.FinishedAt.Before(*b.FinishedAt)
	}
	return a.ID < b.ID
}

// checkPrerequisites reports dangling, self, and cyclic references, and done
// records whose prerequisites are still open. They are advisory and never
// fail validation.
func checkPrerequisites(report *Report, l *Ledger, ids map[int]bool) {
	byID := make(map[int]*Record)
	for _, r := range l.Records() {
		if _, ok := byID[r.ID]; !ok {
			byID[r.ID] = r
		}
	}
	graph := make(map[int][]int)
	for _, r := range l.Records() {
		for _, dep := range r.Prerequisites {
			switch {
			case dep == r.ID:
				report.warn(CodeSelfPrerequisite, r.ID, "record lists itself as a prerequisite")
			case !ids[dep]:
				report.warn(CodeDanglingPrerequisite, r.ID, "prerequisite %d does not exist", dep)
			default:
				graph[r.ID] = append(graph[r.ID], dep)
				if d := byID[dep]; r.Done && d != nil && !d.Done {
					report.warn(CodeIncompletePrerequisite, r.ID, "record is done but prerequisite %d is not", dep)
				}
			}
		}
	}
	for _, cycle := range findCycles(graph) {
		parts := make([]string, len(cycle))
		for i, id := range cycle {
			parts[i] = fmt.Sprint(id)
		}
		report.warn(CodePrerequisiteCycle, cycle[0], "prerequisite cycle %s", strings.Join(parts, " -> "))
	}
}

// findCycles returns one cycle per strongly connected loop found by a
// depth-first walk, each starting and ending at the same id.
func findCycles(graph map[int][]int) [][]int {
	nodes := make([]int, 0, len(graph))
	for id := range graph {
		nodes = append(nodes, id)
	}
	sort.Ints(nodes)

	const (
		unvisited = iota
		visiting
		visited
	)
	state := make(map[int]int)
	var stack []int
	var cycles [][]int

	var visit func(id int)
	visit = func(id int) {
		state[id] = visiting
		stack = append(stack, id)
		for _, dep := range graph[id] {
			switch state[dep] {
			case unvisited:
				visit(dep)
			case visiting:
				for i := len(stack) - 1; i >= 0; i-- {
					if stack[i] == dep {
						cycle := append([]int(nil), stack[i:]...)
						cycles = append(cycles, append(cycle, dep))
						break
					}
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = visited
	}
	for _, id := range nodes {
		if state[id] == unvisited {
			visit(id)
		}
	}
	return cycles
}
