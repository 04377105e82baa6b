package ledger

import (
	"strconv"
	"strings"
	"time"
)

// Display names used when a record is rendered canonically.
const (
	labelID            = "ID"
	labelCreatedAt     = "Create Date"
	labelStartedAt     = "Start Date"
	labelFinishedAt    = "Finish Date"
	labelPriority      = "Priority"
	labelPrerequisites = "Pre-requisites"
)

// Serialize renders the ledger back to text. Raw text and records no
// mutation touched are emitted exactly as parsed.
func Serialize(l *Ledger) string {
	var b strings.Builder
	writeNodes(&b, l, l.Preamble)
	for _, s := range l.Sections {
		heading := s.Heading
		if heading == "" {
			heading = s.Kind.Heading() + l.Newline()
		}
		b.WriteString(heading)
		writeNodes(&b, l, s.Nodes)
	}
	return b.String()
}

// Bytes is Serialize for writing to disk.
func (l *Ledger) Bytes() []byte {
	return []byte(Serialize(l))
}

func writeNodes(b *strings.Builder, l *Ledger, nodes []Node) {
	for _, n := range nodes {
		if n.Record == nil {
			b.WriteString(n.Raw)
			continue
		}
		b.WriteString(renderRecord(n.Record, l.Newline()))
	}
}

// renderRecord returns the record text: the parsed source if untouched,
// otherwise the canonical layout.
func renderRecord(r *Record, nl string) string {
	if !r.dirty && r.raw != "" {
		return r.raw
	}

	var b strings.Builder
	box := " "
	if r.Done {
		box = "x"
	}
	b.WriteString("- [" + box + "] **" + strings.TrimSpace(r.Title) + "**:" + nl)

	writeMeta(&b, labelID, strconv.Itoa(r.ID), nl)
	writeMeta(&b, labelCreatedAt, r.stamp(KeyCreatedAt, r.CreatedAt), nl)
	if r.StartedAt != nil {
		writeMeta(&b, labelStartedAt, r.stamp(KeyStartedAt, *r.StartedAt), nl)
	}
	if r.FinishedAt != nil {
		writeMeta(&b, labelFinishedAt, r.stamp(KeyFinishedAt, *r.FinishedAt), nl)
	}
	if r.Priority != "" {
		writeMeta(&b, labelPriority, string(r.Priority), nl)
	}
	for _, f := range r.Fields {
		writeMeta(&b, f.Key, f.Value, nl)
		for _, item := range f.Items {
			b.WriteString(item)
			if !strings.HasSuffix(item, "\n") {
				b.WriteString(nl)
			}
		}
	}
	if len(r.Prerequisites) > 0 {
		writeMeta(&b, labelPrerequisites, "", nl)
		for _, id := range r.Prerequisites {
			b.WriteString("    - " + strconv.Itoa(id) + nl)
		}
	}
	return b.String()
}

func writeMeta(b *strings.Builder, key, value, nl string) {
	b.WriteString("  - **" + key + "**:")
	if value != "" {
		b.WriteString(" " + value)
	}
	b.WriteString(nl)
}

// stamp returns the source spelling of a timestamp when the record still
// holds the parsed value, and the canonical format otherwise.
func (r *Record) stamp(key string, t time.Time) string {
	if s, ok := r.stamps[key]; ok {
		return s
	}
	return FormatTime(t)
}
