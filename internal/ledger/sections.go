package ledger

import "strings"

// ensureSection returns the section of the given kind, inserting an empty
// one with the canonical heading at its ordered position when missing.
func (l *Ledger) ensureSection(kind SectionKind) *Section {
	if s := l.Section(kind); s != nil {
		return s
	}
	nl := l.Newline()
	pos := len(l.Sections)
	for i, s := range l.Sections {
		if s.Kind > kind {
			pos = i
			break
		}
	}

	if pos == 0 {
		if len(l.Preamble) > 0 {
			l.Preamble = padBlank(l.Preamble, nl)
		}
	} else {
		prev := l.Sections[pos-1]
		terminateHeading(prev, nl)
		prev.Nodes = padBlank(prev.Nodes, nl)
	}

	s := &Section{Kind: kind, Heading: kind.Heading() + nl}
	if pos < len(l.Sections) {
		s.Nodes = []Node{{Raw: nl}}
	}
	l.Sections = append(l.Sections, nil)
	copy(l.Sections[pos+1:], l.Sections[pos:])
	l.Sections[pos] = s
	return s
}

// appendRecord places r after the last record of s, or after the section's
// leading text when it has no records.
func appendRecord(s *Section, r *Record, nl string) {
	last := -1
	for i, n := range s.Nodes {
		if n.Record != nil {
			last = i
		}
	}
	if last >= 0 {
		sep := nl
		if !strings.HasSuffix(renderRecord(s.Nodes[last].Record, nl), "\n") {
			sep = nl + nl
		}
		s.Nodes = insertNodes(s.Nodes, last+1, Node{Raw: sep}, Node{Record: r})
		return
	}

	terminateHeading(s, nl)
	if len(s.Nodes) == 0 {
		s.Nodes = append(s.Nodes, Node{Raw: nl})
	} else {
		s.Nodes = padBlank(s.Nodes, nl)
	}
	s.Nodes = append(s.Nodes, Node{Record: r}, Node{Raw: nl})
}

// insertArchived places r in the Archive section ordered by finished_at,
// then id.
func insertArchived(s *Section, r *Record, nl string) {
	for i, n := range s.Nodes {
		x := n.Record
		if x == nil || x.FinishedAt == nil {
			continue
		}
		if archiveLess(r, x) {
			s.Nodes = insertNodes(s.Nodes, i, Node{Record: r}, Node{Raw: nl})
			return
		}
	}
	appendRecord(s, r, nl)
}

// removeRecord drops r from s together with one blank separator line.
func removeRecord(s *Section, r *Record) {
	i := s.indexOf(r)
	if i < 0 {
		return
	}
	s.Nodes = append(s.Nodes[:i], s.Nodes[i+1:]...)
	if i >= len(s.Nodes) || s.Nodes[i].Record != nil {
		return
	}
	raw := s.Nodes[i].Raw
	cut := strings.IndexByte(raw, '\n')
	if cut < 0 || strings.TrimSpace(raw[:cut]) != "" {
		return
	}
	if rest := raw[cut+1:]; rest != "" {
		s.Nodes[i].Raw = rest
	} else {
		s.Nodes = append(s.Nodes[:i], s.Nodes[i+1:]...)
	}
}

func insertNodes(nodes []Node, at int, add ...Node) []Node {
	out := make([]Node, 0, len(nodes)+len(add))
	out = append(out, nodes[:at]...)
	out = append(out, add...)
	return append(out, nodes[at:]...)
}

// padBlank makes nodes end with a blank line.
func padBlank(nodes []Node, nl string) []Node {
	if len(nodes) == 0 {
		return append(nodes, Node{Raw: nl})
	}
	last := &nodes[len(nodes)-1]
	if last.Record != nil {
		if strings.HasSuffix(renderRecord(last.Record, nl), "\n") {
			return append(nodes, Node{Raw: nl})
		}
		return append(nodes, Node{Raw: nl + nl})
	}
	switch {
	case endsWithBlankLine(last.Raw):
	case strings.HasSuffix(last.Raw, "\n"):
		last.Raw += nl
	default:
		last.Raw += nl + nl
	}
	return nodes
}

func terminateHeading(s *Section, nl string) {
	if s.Heading != "" && !strings.HasSuffix(s.Heading, "\n") {
		s.Heading += nl
	}
}

// endsWithBlankLine reports whether the last line of raw is blank and
// terminated. A lone terminator counts, since it follows a heading or record.
func endsWithBlankLine(raw string) bool {
	if !strings.HasSuffix(raw, "\n") {
		return false
	}
	body := strings.TrimSuffix(strings.TrimSuffix(raw, "\n"), "\r")
	return strings.TrimSpace(body[strings.LastIndexByte(body, '\n')+1:]) == ""
}
