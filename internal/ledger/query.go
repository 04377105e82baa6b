package ledger

import "strings"

// Filter selects records for listing. Zero values match everything.
type Filter struct {
	Priority Priority
	// Done restricts to done (true) or not-done (false) records when set.
	Done *bool
	// Archived includes archived records. ArchivedOnly excludes active ones.
	Archived     bool
	ArchivedOnly bool
	Assignee     string
}

// Match reports whether r passes the filter.
func (f Filter) Match(r *Record) bool {
	if r.Archived && !f.Archived && !f.ArchivedOnly {
		return false
	}
	if !r.Archived && f.ArchivedOnly {
		return false
	}
	if f.Priority != "" && r.Priority != f.Priority {
		return false
	}
	if f.Done != nil && r.Done != *f.Done {
		return false
	}
	if f.Assignee != "" && !strings.EqualFold(strings.TrimSpace(r.FieldValue("assignee")), strings.TrimSpace(f.Assignee)) {
		return false
	}
	return true
}

// Select returns the records matching f in document order.
func (l *Ledger) Select(f Filter) []*Record {
	var out []*Record
	for _, r := range l.Records() {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

// Next returns the first open record, in section order, whose prerequisites
// are all done or archived. Unknown prerequisite ids do not block. It returns
// nil when nothing is ready.
func (l *Ledger) Next() *Record {
	for _, r := range l.Active() {
		if r.Done {
			continue
		}
		if len(l.Blockers(r)) == 0 {
			return r
		}
	}
	return nil
}

// Blockers returns the prerequisites of r that are known and not yet done.
func (l *Ledger) Blockers(r *Record) []*Record {
	var out []*Record
	for _, id := range r.Prerequisites {
		if id == r.ID {
			continue
		}
		if dep := l.Find(id); dep != nil && !dep.Done {
			out = append(out, dep)
		}
	}
	return out
}

// Stats summarizes a ledger.
type Stats struct {
	Total     int            `json:"total" yaml:"total"`
	Open      int            `json:"open" yaml:"open"`
	Started   int            `json:"started" yaml:"started"`
	Done      int            `json:"done" yaml:"done"`
	Archived  int            `json:"archived" yaml:"archived"`
	BySection map[string]int `json:"by_section" yaml:"by_section"`
	// CompletionRate is the share of records that are done, archived ones
	// included, in [0, 1].
	CompletionRate float64 `json:"completion_rate" yaml:"completion_rate"`

	SubtasksDone  int `json:"subtasks_done" yaml:"subtasks_done"`
	SubtasksTotal int `json:"subtasks_total" yaml:"subtasks_total"`
}

// Summarize counts records by status and section.
func (l *Ledger) Summarize() Stats {
	st := Stats{BySection: make(map[string]int)}
	for _, s := range l.Sections {
		for _, r := range s.Records() {
			st.Total++
			st.BySection[s.Kind.String()]++
			done, total := r.SubtaskProgress()
			st.SubtasksDone += done
			st.SubtasksTotal += total
			switch r.Status() {
			case "archived":
				st.Archived++
			case "done":
				st.Done++
			case "started":
				st.Started++
			default:
				st.Open++
			}
		}
	}
	if st.Total > 0 {
		st.CompletionRate = float64(st.Done+st.Archived) / float64(st.Total)
	}
	return st
}
