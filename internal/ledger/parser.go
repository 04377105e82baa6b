package ledger

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	headingRe      = regexp.MustCompile(`^##\s+(.+?)\s*$`)
	prioritySecRe  = regexp.MustCompile(`(?i)^(critical|high|medium|low)\s+priority\s+tasks?$`)
	archiveSecRe   = regexp.MustCompile(`(?i)^archive$`)
	recordHeaderRe = regexp.MustCompile(`^- \[([ xX])\] \*\*(.+?)\*\*:\s*$`)
	checkboxRe     = regexp.MustCompile(`^- \[.?\]`)
	metadataRe     = regexp.MustCompile(`^  - \*\*(.+?)\*\*:(.*)$`)
)

// Canonical keys of the fields the engine interprets.
const (
	KeyID            = "id"
	KeyTitle         = "title"
	KeyDone          = "done"
	KeyCreatedAt     = "created_at"
	KeyStartedAt     = "started_at"
	KeyFinishedAt    = "finished_at"
	KeyPriority      = "priority"
	KeyArchived      = "archived"
	KeyPrerequisites = "prerequisites"
)

var keyAliases = map[string]string{
	"id":             KeyID,
	"create_date":    KeyCreatedAt,
	"created":        KeyCreatedAt,
	"created_at":     KeyCreatedAt,
	"created_date":   KeyCreatedAt,
	"start_date":     KeyStartedAt,
	"started":        KeyStartedAt,
	"started_at":     KeyStartedAt,
	"finish_date":    KeyFinishedAt,
	"finished_date":  KeyFinishedAt,
	"finished":       KeyFinishedAt,
	"finished_at":    KeyFinishedAt,
	"priority":       KeyPriority,
	"pre_requisites": KeyPrerequisites,
	"prerequisites":  KeyPrerequisites,
	"title":          KeyTitle,
	"done":           KeyDone,
	"archived":       KeyArchived,
}

// canonicalKey folds a field name such as "Estimated Time" or "Pre-requisites"
// to snake case ("estimated_time", "pre_requisites").
func canonicalKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	var b strings.Builder
	lastUnderscore := false
	for _, c := range key {
		if c == ' ' || c == '-' || c == '_' {
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
			continue
		}
		b.WriteRune(c)
		lastUnderscore = false
	}
	return strings.TrimSuffix(b.String(), "_")
}

// knownKey maps a field name to the engine key it represents, or "".
func knownKey(key string) string {
	return keyAliases[canonicalKey(key)]
}

// Parse builds a ledger snapshot from document text.
func Parse(text string) (*Ledger, error) {
	p := &parser{
		lines: splitLines(text),
		l:     New(),
		ids:   make(map[int]int),
	}
	if len(p.lines) > 0 && strings.HasSuffix(p.lines[0], "\r\n") {
		p.l.newline = "\r\n"
	}
	if err := p.run(); err != nil {
		return nil, err
	}
	return p.l, nil
}

// ParseBytes is Parse for raw file contents.
func ParseBytes(data []byte) (*Ledger, error) {
	return Parse(string(data))
}

// splitLines splits text into lines that keep their terminators. The last
// line may lack one.
func splitLines(text string) []string {
	var lines []string
	for len(text) > 0 {
		i := strings.IndexByte(text, '\n')
		if i < 0 {
			lines = append(lines, text)
			break
		}
		lines = append(lines, text[:i+1])
		text = text[i+1:]
	}
	return lines
}

func trimEOL(line string) string {
	return strings.TrimRight(line, "\r\n")
}

type parser struct {
	lines   []string
	l       *Ledger
	current *Section
	raw     strings.Builder
	ids     map[int]int // id -> first line
}

func (p *parser) run() error {
	for i := 0; i < len(p.lines); {
		line := trimEOL(p.lines[i])
		lineNo := i + 1

		if !utf8.ValidString(line) {
			return &ParseError{StartLine: lineNo, EndLine: lineNo, Reason: ReasonMalformedLine, Detail: "invalid UTF-8"}
		}

		if kind, ok := sectionHeading(line); ok {
			if err := p.openSection(kind, i); err != nil {
				return err
			}
			i++
			continue
		}

		if m := recordHeaderRe.FindStringSubmatch(line); m != nil {
			end := p.blockEnd(i)
			rec, err := p.parseRecord(m, i, end)
			if err != nil {
				return err
			}
			p.flushRaw()
			p.appendNode(Node{Record: rec})
			i = end
			continue
		}

		if looksLikeCheckbox(line) {
			return &ParseError{
				StartLine: lineNo,
				EndLine:   lineNo,
				Reason:    ReasonMalformedCheckbox,
				Detail:    fmt.Sprintf("expected \"- [ ] **Title**:\" or \"- [x] **Title**:\", got %q", line),
			}
		}

		if m := metadataRe.FindStringSubmatch(line); m != nil {
			return &ParseError{
				StartLine: lineNo,
				EndLine:   lineNo,
				Reason:    ReasonFieldOutsideRecord,
				Detail:    fmt.Sprintf("field %q is not attached to a record", m[1]),
			}
		}

		p.raw.WriteString(p.lines[i])
		i++
	}
	p.flushRaw()
	return nil
}

// looksLikeCheckbox reports whether line starts like a record header. A
// bracket followed by "(" is a markdown link, not a checkbox.
func looksLikeCheckbox(line string) bool {
	loc := checkboxRe.FindStringIndex(line)
	if loc == nil {
		return false
	}
	return !strings.HasPrefix(line[loc[1]:], "(")
}

// sectionHeading reports whether line is one of the fixed section headings.
func sectionHeading(line string) (SectionKind, bool) {
	m := headingRe.FindStringSubmatch(line)
	if m == nil {
		return SectionNone, false
	}
	name := m[1]
	if archiveSecRe.MatchString(name) {
		return SectionArchive, true
	}
	if pm := prioritySecRe.FindStringSubmatch(name); pm != nil {
		p, err := ParsePriority(pm[1])
		if err != nil {
			return SectionNone, false
		}
		return p.Section(), true
	}
	return SectionNone, false
}

func (p *parser) openSection(kind SectionKind, i int) error {
	lineNo := i + 1
	for _, s := range p.l.Sections {
		if s.Kind == kind {
			return &ParseError{
				StartLine: lineNo,
				EndLine:   lineNo,
				Reason:    ReasonDuplicateSection,
				Detail:    fmt.Sprintf("section %s appears more than once", kind),
			}
		}
	}
	if p.current != nil && kind < p.current.Kind {
		return &ParseError{
			StartLine: lineNo,
			EndLine:   lineNo,
			Reason:    ReasonSectionOrder,
			Detail:    fmt.Sprintf("section %s must come before %s", kind, p.current.Kind),
		}
	}
	p.flushRaw()
	p.current = &Section{Kind: kind, Heading: p.lines[i]}
	p.l.Sections = append(p.l.Sections, p.current)
	return nil
}

func (p *parser) flushRaw() {
	if p.raw.Len() == 0 {
		return
	}
	p.appendNode(Node{Raw: p.raw.String()})
	p.raw.Reset()
}

func (p *parser) appendNode(n Node) {
	if p.current == nil {
		p.l.Preamble = append(p.l.Preamble, n)
		return
	}
	p.current.Nodes = append(p.current.Nodes, n)
}

// blockEnd returns the index one past the last line of the record block
// starting at header index i.
func (p *parser) blockEnd(i int) int {
	j := i + 1
	for j < len(p.lines) {
		line := trimEOL(p.lines[j])
		if strings.TrimSpace(line) == "" {
			break
		}
		if !strings.HasPrefix(line, "  ") && !strings.HasPrefix(line, "\t") {
			break
		}
		j++
	}
	return j
}

// entry is one metadata line plus its sub-items.
type entry struct {
	key   string
	value string
	items []string
	line  int
}

func (p *parser) parseRecord(header []string, start, end int) (*Record, error) {
	startLine, endLine := start+1, end
	if p.current == nil {
		return nil, &ParseError{
			StartLine: startLine,
			EndLine:   endLine,
			Reason:    ReasonRecordOutsideSection,
			Detail:    fmt.Sprintf("record %q appears before the first section heading", header[2]),
		}
	}

	var entries []*entry
	for j := start + 1; j < end; j++ {
		line := trimEOL(p.lines[j])
		if m := metadataRe.FindStringSubmatch(line); m != nil {
			entries = append(entries, &entry{key: m[1], value: strings.TrimSpace(m[2]), line: j + 1})
			continue
		}
		if len(entries) == 0 {
			return nil, &ParseError{
				StartLine: j + 1,
				EndLine:   j + 1,
				Reason:    ReasonMalformedLine,
				Detail:    fmt.Sprintf("expected \"  - **Field**: value\", got %q", line),
			}
		}
		last := entries[len(entries)-1]
		last.items = append(last.items, p.lines[j])
	}

	rec := &Record{
		Title:     strings.TrimSpace(header[2]),
		Done:      header[1] != " ",
		Archived:  p.current.Kind == SectionArchive,
		startLine: startLine,
		endLine:   endLine,
		stamps:    make(map[string]string),
	}
	var raw strings.Builder
	for j := start; j < end; j++ {
		raw.WriteString(p.lines[j])
	}
	rec.raw = raw.String()

	seen := make(map[string]bool)
	for _, e := range entries {
		key := knownKey(e.key)
		if key == "" || key == KeyTitle || key == KeyDone || key == KeyArchived {
			rec.Fields = append(rec.Fields, Field{Key: e.key, Value: e.value, Items: e.items})
			continue
		}
		if seen[key] {
			return nil, &ParseError{StartLine: e.line, EndLine: e.line, Reason: ReasonBadValue, Detail: fmt.Sprintf("field %q given more than once", e.key)}
		}
		seen[key] = true
		if key != KeyPrerequisites && len(e.items) > 0 {
			return nil, &ParseError{StartLine: e.line, EndLine: e.line + len(e.items), Reason: ReasonMalformedLine, Detail: fmt.Sprintf("field %q does not take sub-items", e.key)}
		}
		if err := applyEntry(rec, key, e); err != nil {
			return nil, err
		}
	}

	if !seen[KeyID] {
		return nil, &ParseError{StartLine: startLine, EndLine: endLine, Reason: ReasonMissingField, Detail: fmt.Sprintf("record %q has no ID", rec.Title)}
	}
	if rec.CreatedAt.IsZero() {
		return nil, &ParseError{StartLine: startLine, EndLine: endLine, Reason: ReasonMissingField, Detail: fmt.Sprintf("record %d has no Create Date", rec.ID)}
	}
	if rec.Priority == "" {
		if rec.Archived {
			return nil, &ParseError{StartLine: startLine, EndLine: endLine, Reason: ReasonMissingField, Detail: fmt.Sprintf("archived record %d has no Priority", rec.ID)}
		}
		rec.Priority = p.current.Kind.Priority()
	}
	if first, dup := p.ids[rec.ID]; dup {
		return nil, &ParseError{
			StartLine: startLine,
			EndLine:   endLine,
			Reason:    ReasonDuplicateID,
			Detail:    fmt.Sprintf("ID %d already used by the record at line %d", rec.ID, first),
		}
	}
	p.ids[rec.ID] = startLine
	return rec, nil
}

func applyEntry(rec *Record, key string, e *entry) error {
	switch key {
	case KeyID:
		id, err := strconv.Atoi(e.value)
		if err != nil || id <= 0 {
			return &ParseError{StartLine: e.line, EndLine: e.line, Reason: ReasonBadValue, Detail: fmt.Sprintf("ID must be a positive integer, got %q", e.value)}
		}
		rec.ID = id
	case KeyCreatedAt, KeyStartedAt, KeyFinishedAt:
		if isNone(e.value) {
			return nil
		}
		t, err := ParseTime(e.value)
		if err != nil {
			return &ParseError{StartLine: e.line, EndLine: e.line, Reason: ReasonBadTimestamp, Detail: err.Error()}
		}
		rec.stamps[key] = e.value
		switch key {
		case KeyCreatedAt:
			rec.CreatedAt = t
		case KeyStartedAt:
			rec.StartedAt = &t
		case KeyFinishedAt:
			rec.FinishedAt = &t
		}
	case KeyPriority:
		pr, err := ParsePriority(e.value)
		if err != nil {
			return &ParseError{StartLine: e.line, EndLine: e.line, Reason: ReasonBadValue, Detail: err.Error()}
		}
		rec.Priority = pr
	case KeyPrerequisites:
		values := []string{e.value}
		for _, item := range e.items {
			values = append(values, strings.TrimPrefix(strings.TrimSpace(item), "- "))
		}
		ids, err := ParsePrerequisites(strings.Join(values, ","))
		if err != nil {
			return &ParseError{StartLine: e.line, EndLine: e.line + len(e.items), Reason: ReasonBadValue, Detail: err.Error()}
		}
		rec.Prerequisites = ids
	}
	return nil
}

// ParsePrerequisites parses a comma separated list of record ids. Entries may
// carry a leading '#'; "None" and empty entries are skipped.
func ParsePrerequisites(s string) ([]int, error) {
	var ids []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if isNone(part) {
			continue
		}
		id, err := strconv.Atoi(strings.TrimPrefix(part, "#"))
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("prerequisite %q is not a record ID", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func isNone(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || strings.EqualFold(s, "none")
}
