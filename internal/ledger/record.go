package ledger

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// TimeLayout is the timestamp format used for every ledger date.
const TimeLayout = "2006-01-02T15:04:05Z"

// Priority is a record priority. It also names the section an active record
// lives in.
type Priority string

const (
	PriorityCritical Priority = "Critical"
	PriorityHigh     Priority = "High"
	PriorityMedium   Priority = "Medium"
	PriorityLow      Priority = "Low"
)

// Priorities lists priorities in section order.
var Priorities = []Priority{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow}

// ParsePriority parses a priority name case-insensitively.
func ParsePriority(s string) (Priority, error) {
	s = strings.TrimSpace(s)
	for _, p := range Priorities {
		if strings.EqualFold(s, string(p)) {
			return p, nil
		}
	}
	return "", fmt.Errorf("invalid priority %q, must be one of: Critical, High, Medium, Low", s)
}

// Section returns the section kind holding active records of this priority.
func (p Priority) Section() SectionKind {
	switch p {
	case PriorityCritical:
		return SectionCritical
	case PriorityHigh:
		return SectionHigh
	case PriorityMedium:
		return SectionMedium
	case PriorityLow:
		return SectionLow
	}
	return SectionNone
}

// Field is a metadata entry the engine does not interpret, such as Assignee,
// Estimated Time, Description, or Subtasks. Items holds the raw sub-item
// lines that followed it, newline included.
type Field struct {
	Key   string
	Value string
	Items []string
}

// subtaskRe matches a checklist sub-item such as "    - [x] write test".
var subtaskRe = regexp.MustCompile(`^\s+- \[([ xX])\]\s+(.+?)\s*$`)

// Subtask is one checklist item under a record's Subtasks field.
type Subtask struct {
	Name string
	Done bool
}

// Record is one task.
type Record struct {
	ID            int
	Title         string
	Done          bool
	Priority      Priority
	CreatedAt     time.Time
	StartedAt     *time.Time
	FinishedAt    *time.Time
	Archived      bool
	Fields        []Field
	Prerequisites []int

	// raw is the source text of the record; it is emitted verbatim while
	// dirty is false.
	raw   string
	dirty bool
	// stamps keeps the source spelling of timestamps so an untouched value
	// survives a re-render.
	stamps map[string]string
	// lines is the 1-based line range the record was parsed from.
	startLine int
	endLine   int
}

// Lines returns the source line range of the record, or zeros for records
// created in memory.
func (r *Record) Lines() (int, int) {
	return r.startLine, r.endLine
}

// Started reports whether started_at is set.
func (r *Record) Started() bool {
	return r.StartedAt != nil
}

// Finished reports whether finished_at is set.
func (r *Record) Finished() bool {
	return r.FinishedAt != nil
}

// Field returns the extra field with the given key, or nil.
func (r *Record) Field(key string) *Field {
	want := canonicalKey(key)
	for i := range r.Fields {
		if canonicalKey(r.Fields[i].Key) == want {
			return &r.Fields[i]
		}
	}
	return nil
}

// FieldValue returns the value of an extra field, or "".
func (r *Record) FieldValue(key string) string {
	if f := r.Field(key); f != nil {
		return f.Value
	}
	return ""
}

// Subtasks returns the checklist items under the Subtasks field in order.
// Items that are not checkboxes are skipped. The raw lines are not changed.
func (r *Record) Subtasks() []Subtask {
	f := r.Field("subtasks")
	if f == nil {
		return nil
	}
	var out []Subtask
	for _, item := range f.Items {
		m := subtaskRe.FindStringSubmatch(strings.TrimRight(item, "\r\n"))
		if m == nil {
			continue
		}
		out = append(out, Subtask{Name: m[2], Done: m[1] != " "})
	}
	return out
}

// SubtaskProgress returns the number of checked subtasks and the total.
func (r *Record) SubtaskProgress() (done, total int) {
	for _, st := range r.Subtasks() {
		total++
		if st.Done {
			done++
		}
	}
	return done, total
}

// Status returns a short lifecycle label.
func (r *Record) Status() string {
	switch {
	case r.Archived:
		return "archived"
	case r.Done:
		return "done"
	case r.StartedAt != nil:
		return "started"
	default:
		return "open"
	}
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	c := *r
	if r.StartedAt != nil {
		t := *r.StartedAt
		c.StartedAt = &t
	}
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		c.FinishedAt = &t
	}
	if r.Fields != nil {
		c.Fields = make([]Field, len(r.Fields))
		for i, f := range r.Fields {
			c.Fields[i] = Field{Key: f.Key, Value: f.Value, Items: append([]string(nil), f.Items...)}
		}
	}
	c.Prerequisites = append([]int(nil), r.Prerequisites...)
	if r.stamps != nil {
		c.stamps = make(map[string]string, len(r.stamps))
		for k, v := range r.stamps {
			c.stamps[k] = v
		}
	}
	return &c
}

// touch marks the record for canonical re-rendering.
func (r *Record) touch() {
	r.dirty = true
}

// forgetStamp drops the source spelling of a timestamp after it changes.
func (r *Record) forgetStamp(key string) {
	delete(r.stamps, key)
}

// FormatTime renders t in the ledger timestamp format.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a ledger timestamp. Only the UTC "Z" form is accepted.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if !strings.HasSuffix(s, "Z") {
		return time.Time{}, fmt.Errorf("timestamp %q must end with Z", s)
	}
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q: expected %s", s, TimeLayout)
	}
	return t.UTC(), nil
}
