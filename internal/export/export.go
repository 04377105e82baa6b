// Package export renders ledger snapshots as JSON or YAML documents and
// checks them against the bundled JSON Schema.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nibzard/taskledger/internal/ledger"
)

// SchemaVersion is the version of the export document layout.
const SchemaVersion = 1

// Format is an output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat parses a format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown format %q (want json or yaml)", s)
}

// Document is the export of a whole ledger.
type Document struct {
	SchemaVersion int           `json:"schema_version" yaml:"schema_version"`
	Ledger        string        `json:"ledger,omitempty" yaml:"ledger,omitempty"`
	Records       []Record      `json:"records" yaml:"records"`
	Stats         *ledger.Stats `json:"stats,omitempty" yaml:"stats,omitempty"`
}

// Record is the export of one record.
type Record struct {
	ID            int       `json:"id" yaml:"id"`
	Title         string    `json:"title" yaml:"title"`
	Status        string    `json:"status" yaml:"status"`
	Done bool   `json:"done" yaml:"done"`
	Archived      bool      `json:"archived" yaml:"archived"`
	Priority      string    `json:"priority" yaml:"priority"`
	Section       string    `json:"section" yaml:"section"`
	CreatedAt     string    `json:"created_at" yaml:"created_at"`
	StartedAt     string    `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	FinishedAt    string    `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	Prerequisites []int     `json:"prerequisites,omitempty" yaml:"prerequisites,omitempty"`
	Fields        []Field   `json:"fields,omitempty" yaml:"fields,omitempty"`
	Subtasks      []Subtask `json:"subtasks,omitempty" yaml:"subtasks,omitempty"`
	SubtasksDone  int       `json:"subtasks_done,omitempty" yaml:"subtasks_done,omitempty"`
	SubtasksTotal int       `json:"subtasks_total,omitempty" yaml:"subtasks_total,omitempty"`
}

// Subtask is one checklist item of the Subtasks field.
type Subtask struct {
	Name string `json:"name" yaml:"name"`
	Done bool   `json:"done" yaml:"done"`
}

// Field is an extra record field. Items are the sub-item texts without
// their list markers.
type Field struct {
	Key   string   `json:"key" yaml:"key"`
	Value string   `json:"value,omitempty" yaml:"value,omitempty"`
	Items []string `json:"items,omitempty" yaml:"items,omitempty"`
}

// Options selects what FromLedger includes.
type Options struct {
	Path   string
	Filter ledger.Filter
	Stats  bool
}

// FromLedger builds a document from the records matching opts.Filter.
func FromLedger(l *ledger.Ledger, opts Options) *Document {
	doc := &Document{SchemaVersion: SchemaVersion, Ledger: opts.Path, Records: []Record{}}
	for _, r := range l.Select(opts.Filter) {
		doc.Records = append(doc.Records, FromRecord(l, r))
	}
	if opts.Stats {
		st := l.Summarize()
		doc.Stats = &st
	}
	return doc
}

// FromRecord converts one record of l.
func FromRecord(l *ledger.Ledger, r *ledger.Record) Record {
	out := Record{
		ID:            r.ID,
		Title:         r.Title,
		Status:        r.Status(),
		Done:          r.Done,
		Archived:      r.Archived,
		Priority:      string(r.Priority),
		CreatedAt:     ledger.FormatTime(r.CreatedAt),
		Prerequisites: r.Prerequisites,
	}
	if s := l.SectionOf(r.ID); s != nil {
		out.Section = s.Kind.String()
	}
	if r.StartedAt != nil {
		out.StartedAt = ledger.FormatTime(*r.StartedAt)
	}
	if r.FinishedAt != nil {
		out.FinishedAt = ledger.FormatTime(*r.FinishedAt)
	}
	for _, f := range r.Fields {
		field := Field{Key: f.Key, Value: f.Value}
		for _, item := range f.Items {
			text := strings.TrimSpace(item)
			text = strings.TrimPrefix(text, "- ")
			field.Items = append(field.Items, text)
		}
		out.Fields = append(out.Fields, field)
	}
	for _, st := range r.Subtasks() {
		out.Subtasks = append(out.Subtasks, Subtask{Name: st.Name, Done: st.Done})
	}
	out.SubtasksDone, out.SubtasksTotal = r.SubtaskProgress()
	return out
}

// Encode writes v (a *Document, Record or any exportable value) to w.
func Encode(w io.Writer, v any, format Format) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
