package ledger

import "strings"

// SectionKind identifies one of the fixed ledger sections.
type SectionKind int

const (
	SectionNone SectionKind = iota
	SectionCritical
	SectionHigh
	SectionMedium
	SectionLow
	SectionArchive
)

var sectionNames = map[SectionKind]string{
	SectionCritical: "Critical",
	SectionHigh:     "High",
	SectionMedium:   "Medium",
	SectionLow:      "Low",
	SectionArchive:  "Archive",
}

// String returns the section name.
func (k SectionKind) String() string {
	if name, ok := sectionNames[k]; ok {
		return name
	}
	return "none"
}

// Priority returns the priority of a priority section, or "" for Archive.
func (k SectionKind) Priority() Priority {
	switch k {
	case SectionCritical:
		return PriorityCritical
	case SectionHigh:
		return PriorityHigh
	case SectionMedium:
		return PriorityMedium
	case SectionLow:
		return PriorityLow
	}
	return ""
}

// Heading returns the canonical heading line for the section, without a
// line terminator.
func (k SectionKind) Heading() string {
	if k == SectionArchive {
		return "## Archive"
	}
	return "## " + k.String() + " Priority Tasks"
}

// Node is either raw text or a record. Exactly one of Raw and Record is set.
type Node struct {
	Raw    string
	Record *Record
}

// IsRecord reports whether the node holds a record.
func (n Node) IsRecord() bool {
	return n.Record != nil
}

// Section is a heading plus the nodes that follow it up to the next section.
type Section struct {
	Kind    SectionKind
	Heading string // verbatim heading line, terminator included
	Nodes   []Node
}

// Records returns the records in the section in document order.
func (s *Section) Records() []*Record {
	var out []*Record
	for _, n := range s.Nodes {
		if n.Record != nil {
			out = append(out, n.Record)
		}
	}
	return out
}

func (s *Section) indexOf(r *Record) int {
	for i, n := range s.Nodes {
		if n.Record == r {
			return i
		}
	}
	return -1
}

// Ledger is a parsed snapshot of a ledger document.
type Ledger struct {
	// Preamble is the text before the first section. It never holds records.
	Preamble []Node
	Sections []*Section
	// newline is the document line terminator ("\n" or "\r\n").
	newline string
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{newline: "\n"}
}

// Newline returns the line terminator used for rendered text.
func (l *Ledger) Newline() string {
	if l.newline == "" {
		return "\n"
	}
	return l.newline
}

// Section returns the section of the given kind, or nil.
func (l *Ledger) Section(kind SectionKind) *Section {
	for _, s := range l.Sections {
		if s.Kind == kind {
			return s
		}
	}
	return nil
}

// Records returns every record in document order, archived ones included.
func (l *Ledger) Records() []*Record {
	var out []*Record
	for _, s := range l.Sections {
		out = append(out, s.Records()...)
	}
	return out
}

// Active returns every record not in the Archive section.
func (l *Ledger) Active() []*Record {
	var out []*Record
	for _, s := range l.Sections {
		if s.Kind == SectionArchive {
			continue
		}
		out = append(out, s.Records()...)
	}
	return out
}

// Find returns the record with the given id, or nil.
func (l *Ledger) Find(id int) *Record {
	if _, r := l.locate(id); r != nil {
		return r
	}
	return nil
}

// SectionOf returns the section holding the record with the given id.
func (l *Ledger) SectionOf(id int) *Section {
	s, _ := l.locate(id)
	return s
}

func (l *Ledger) locate(id int) (*Section, *Record) {
	for _, s := range l.Sections {
		for _, n := range s.Nodes {
			if n.Record != nil && n.Record.ID == id {
				return s, n.Record
			}
		}
	}
	return nil, nil
}

// NextID returns the id the next created record receives: the largest
// existing id plus one. Archived records count, so ids are never reused.
func (l *Ledger) NextID() int {
	max := 0
	for _, r := range l.Records() {
		if r.ID > max {
			max = r.ID
		}
	}
	return max + 1
}

// FindTitle returns the first active record whose title matches
// case-insensitively, or nil.
func (l *Ledger) FindTitle(title string) *Record {
	title = strings.TrimSpace(title)
	for _, r := range l.Active() {
		if strings.EqualFold(strings.TrimSpace(r.Title), title) {
			return r
		}
	}
	return nil
}

// Clone returns a deep copy of the ledger.
func (l *Ledger) Clone() *Ledger {
	c := &Ledger{newline: l.newline}
	c.Preamble = cloneNodes(l.Preamble)
	c.Sections = make([]*Section, len(l.Sections))
	for i, s := range l.Sections {
		c.Sections[i] = &Section{Kind: s.Kind, Heading: s.Heading, Nodes: cloneNodes(s.Nodes)}
	}
	return c
}

func cloneNodes(nodes []Node) []Node {
	if nodes == nil {
		return nil
	}
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		if n.Record != nil {
			out[i] = Node{Record: n.Record.Clone()}
		} else {
			out[i] = Node{Raw: n.Raw}
		}
	}
	return out
}
