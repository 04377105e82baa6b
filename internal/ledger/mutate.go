package ledger

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// FieldChange sets one field. An empty Value removes an extra field.
type FieldChange struct {
	Key   string
	Value string
}

// Intent is a mutation request.
type Intent interface {
	// Name returns the intent name used in logs and backup file names.
	Name() string
}

// CreateIntent adds a record at the end of its priority section.
type CreateIntent struct {
	Title    string
	Priority Priority
	Fields   []FieldChange
}

// StartIntent sets started_at.
type StartIntent struct{ ID int }

// CompleteIntent marks a record done and sets finished_at.
type CompleteIntent struct{ ID int }

// ArchiveIntent moves a finished record to the Archive section.
type ArchiveIntent struct{ ID int }

// EditIntent merges field changes into a record.
type EditIntent struct {
	ID      int
	Changes []FieldChange
}

func (CreateIntent) Name() string   { return "create" }
func (StartIntent) Name() string    { return "start" }
func (CompleteIntent) Name() string { return "complete" }
func (ArchiveIntent) Name() string  { return "archive" }
func (EditIntent) Name() string     { return "edit" }

// Outcome describes what a mutation did.
type Outcome struct {
	RecordID int
	// AlreadyComplete is set when a completion found the record already
	// complete and changed nothing.
	AlreadyComplete bool
	Changed         bool
}

// engineManaged lists keys only the engine may set.
var engineManaged = map[string]bool{
	KeyID:         true,
	KeyCreatedAt:  true,
	KeyArchived:   true,
	KeyDone:       true,
	KeyStartedAt:  true,
	KeyFinishedAt: true,
}

// editableAfterArchive lists keys that may change on an archived record.
var editableAfterArchive = map[string]bool{
	KeyTitle: true,
}

// Apply dispatches an intent to its mutation. now is the caller's clock
// reading and is truncated to whole seconds.
func Apply(l *Ledger, intent Intent, now time.Time) (*Ledger, Outcome, error) {
	switch in := intent.(type) {
	case CreateIntent:
		next, rec, err := Create(l, in.Title, in.Priority, in.Fields, now)
		if err != nil {
			return nil, Outcome{}, err
		}
		return next, Outcome{RecordID: rec.ID, Changed: true}, nil
	case StartIntent:
		next, _, err := SetStarted(l, in.ID, now)
		if err != nil {
			return nil, Outcome{}, err
		}
		return next, Outcome{RecordID: in.ID, Changed: true}, nil
	case CompleteIntent:
		next, _, already, err := SetCompleted(l, in.ID, now)
		if err != nil {
			return nil, Outcome{}, err
		}
		return next, Outcome{RecordID: in.ID, AlreadyComplete: already, Changed: !already}, nil
	case ArchiveIntent:
		next, _, err := Archive(l, in.ID)
		if err != nil {
			return nil, Outcome{}, err
		}
		return next, Outcome{RecordID: in.ID, Changed: true}, nil
	case EditIntent:
		next, _, changed, err := editFields(l, in.ID, in.Changes)
		if err != nil {
			return nil, Outcome{}, err
		}
		return next, Outcome{RecordID: in.ID, Changed: changed}, nil
	case nil:
		return nil, Outcome{}, fmt.Errorf("nil intent")
	default:
		return nil, Outcome{}, fmt.Errorf("unsupported intent %T", intent)
	}
}

func clockStamp(now time.Time) time.Time {
	return now.UTC().Truncate(time.Second)
}

// Create returns a new ledger with a record appended to the priority
// section. The id is the largest existing id plus one.
func Create(l *Ledger, title string, priority Priority, fields []FieldChange, now time.Time) (*Ledger, *Record, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, nil, &MutationError{Kind: KindInvalidValue, Field: KeyTitle, Detail: "title is empty"}
	}
	if priority.Section() == SectionNone {
		return nil, nil, &MutationError{Kind: KindInvalidValue, Field: KeyPriority, Detail: fmt.Sprintf("unknown priority %q", priority)}
	}
	if existing := l.FindTitle(title); existing != nil {
		return nil, nil, &MutationError{
			Kind:   KindDuplicateTitle,
			ID:     existing.ID,
			Field:  title,
			Detail: "an active record already has this title",
		}
	}

	c := l.Clone()
	rec := &Record{
		ID:        c.NextID(),
		Title:     title,
		Priority:  priority,
		CreatedAt: clockStamp(now),
	}
	for _, change := range fields {
		key := knownKey(change.Key)
		switch {
		case engineManaged[key]:
			return nil, nil, &MutationError{Kind: KindImmutableField, Field: change.Key, Detail: "set by the engine"}
		case key == KeyTitle || key == KeyPriority:
			return nil, nil, &MutationError{Kind: KindInvalidValue, Field: change.Key, Detail: "pass it as a create argument"}
		case key == KeyPrerequisites:
			ids, err := ParsePrerequisites(change.Value)
			if err != nil {
				return nil, nil, &MutationError{Kind: KindInvalidValue, Field: change.Key, Detail: err.Error()}
			}
			rec.Prerequisites = ids
		default:
			if err := setExtra(rec, change); err != nil {
				return nil, nil, err
			}
		}
	}
	rec.touch()

	appendRecord(c.ensureSection(priority.Section()), rec, c.Newline())
	return c, rec, nil
}

// SetStarted returns a new ledger with started_at set on the record.
func SetStarted(l *Ledger, id int, now time.Time) (*Ledger, *Record, error) {
	c := l.Clone()
	r := c.Find(id)
	switch {
	case r == nil:
		return nil, nil, mutationErr(KindNotFound, id, "")
	case r.Archived:
		return nil, nil, mutationErr(KindRecordArchived, id, "archived records cannot be started")
	case r.StartedAt != nil:
		return nil, nil, mutationErr(KindAlreadyStarted, id, "started at "+FormatTime(*r.StartedAt))
	case r.FinishedAt != nil:
		return nil, nil, mutationErr(KindNotEligible, id, "record already finished")
	}
	t := clockStamp(now)
	r.StartedAt = &t
	r.forgetStamp(KeyStartedAt)
	r.touch()
	return c, r, nil
}

// SetCompleted returns a new ledger with the record done and finished_at
// set. Completing a complete record changes nothing and reports already as
// true, so callers can retry safely.
func SetCompleted(l *Ledger, id int, now time.Time) (next *Ledger, rec *Record, already bool, err error) {
	c := l.Clone()
	r := c.Find(id)
	switch {
	case r == nil:
		return nil, nil, false, mutationErr(KindNotFound, id, "")
	case r.Archived:
		return nil, nil, false, mutationErr(KindRecordArchived, id, "archived records are already complete")
	case r.Done && r.FinishedAt != nil:
		return c, r, true, nil
	}
	r.Done = true
	if r.FinishedAt == nil {
		t := clockStamp(now)
		r.FinishedAt = &t
		r.forgetStamp(KeyFinishedAt)
	}
	r.touch()
	return c, r, false, nil
}

// Archive returns a new ledger with the record moved to the Archive section,
// which is kept ordered by finished_at and then id.
func Archive(l *Ledger, id int) (*Ledger, *Record, error) {
	c := l.Clone()
	s, r := c.locate(id)
	switch {
	case r == nil:
		return nil, nil, mutationErr(KindNotFound, id, "")
	case r.Archived:
		return nil, nil, mutationErr(KindRecordArchived, id, "record is already archived")
	case !r.Done:
		return nil, nil, mutationErr(KindNotEligible, id, "record is not done")
	case r.FinishedAt == nil:
		return nil, nil, mutationErr(KindNotEligible, id, "record has no finished_at")
	}

	removeRecord(s, r)
	r.Archived = true
	if r.Priority == "" {
		r.Priority = s.Kind.Priority()
	}
	r.touch()
	insertArchived(c.ensureSection(SectionArchive), r, c.Newline())
	return c, r, nil
}

// EditFields returns a new ledger with changes merged into the record. The
// engine-managed keys (id, created_at, archived, done, started_at,
// finished_at) are refused, and archived records accept title corrections
// only. Either every change applies or none does. Changes that leave every
// value as it was do not touch the record, so its source text is kept.
func EditFields(l *Ledger, id int, changes []FieldChange) (*Ledger, *Record, error) {
	next, rec, _, err := editFields(l, id, changes)
	return next, rec, err
}

func editFields(l *Ledger, id int, changes []FieldChange) (*Ledger, *Record, bool, error) {
	c := l.Clone()
	s, r := c.locate(id)
	if r == nil {
		return nil, nil, false, mutationErr(KindNotFound, id, "")
	}
	before := r.Clone()

	for _, change := range changes {
		key := knownKey(change.Key)
		if engineManaged[key] {
			return nil, nil, false, &MutationError{Kind: KindImmutableField, ID: id, Field: change.Key, Detail: "set by the engine"}
		}
		if r.Archived && !editableAfterArchive[key] {
			return nil, nil, false, &MutationError{Kind: KindRecordArchived, ID: id, Field: change.Key, Detail: "only the title of an archived record can change"}
		}

		switch key {
		case KeyTitle:
			title := strings.TrimSpace(change.Value)
			if title == "" {
				return nil, nil, false, &MutationError{Kind: KindInvalidValue, ID: id, Field: change.Key, Detail: "title is empty"}
			}
			if !r.Archived {
				for _, other := range c.Active() {
					if other != r && strings.EqualFold(strings.TrimSpace(other.Title), title) {
						return nil, nil, false, &MutationError{Kind: KindDuplicateTitle, ID: other.ID, Field: title, Detail: "an active record already has this title"}
					}
				}
			}
			r.Title = title
		case KeyPriority:
			p, err := ParsePriority(change.Value)
			if err != nil {
				return nil, nil, false, &MutationError{Kind: KindInvalidValue, ID: id, Field: change.Key, Detail: err.Error()}
			}
			if p != r.Priority {
				r.Priority = p
				removeRecord(s, r)
				s = c.ensureSection(p.Section())
				appendRecord(s, r, c.Newline())
			}
		case KeyPrerequisites:
			ids, err := ParsePrerequisites(change.Value)
			if err != nil {
				return nil, nil, false, &MutationError{Kind: KindInvalidValue, ID: id, Field: change.Key, Detail: err.Error()}
			}
			r.Prerequisites = ids
		default:
			if err := setExtra(r, change); err != nil {
				err.ID = id
				return nil, nil, false, err
			}
		}
	}
	if sameContent(before, r) {
		// A priority set and restored may have moved the record.
		c = l.Clone()
		_, r = c.locate(id)
		return c, r, false, nil
	}
	r.touch()
	return c, r, true, nil
}

// sameContent reports whether two versions of a record carry the same
// editable values.
func sameContent(a, b *Record) bool {
	if a.Title != b.Title || a.Priority != b.Priority || len(a.Fields) != len(b.Fields) ||
		len(a.Prerequisites) != len(b.Prerequisites) {
		return false
	}
	for i := range a.Prerequisites {
		if a.Prerequisites[i] != b.Prerequisites[i] {
			return false
		}
	}
	for i := range a.Fields {
		fa, fb := a.Fields[i], b.Fields[i]
		if fa.Key != fb.Key || fa.Value != fb.Value || len(fa.Items) != len(fb.Items) {
			return false
		}
		for j := range fa.Items {
			if fa.Items[j] != fb.Items[j] {
				return false
			}
		}
	}
	return true
}

// setExtra updates, appends, or (for an empty value) removes an extra field.
func setExtra(r *Record, change FieldChange) *MutationError {
	key := strings.TrimSpace(change.Key)
	if key == "" {
		return &MutationError{Kind: KindInvalidValue, Field: change.Key, Detail: "field name is empty"}
	}
	if strings.ContainsAny(key, "*\r\n") {
		return &MutationError{Kind: KindInvalidValue, Field: change.Key, Detail: "field name must be a single line without '*'"}
	}
	value := strings.TrimSpace(change.Value)
	if strings.ContainsAny(value, "\r\n") {
		return &MutationError{Kind: KindInvalidValue, Field: change.Key, Detail: "value must be a single line"}
	}

	want := canonicalKey(key)
	for i := range r.Fields {
		if canonicalKey(r.Fields[i].Key) != want {
			continue
		}
		if value == "" {
			r.Fields = append(r.Fields[:i], r.Fields[i+1:]...)
			return nil
		}
		r.Fields[i].Value = value
		return nil
	}
	if value != "" {
		r.Fields = append(r.Fields, Field{Key: displayKey(key), Value: value})
	}
	return nil
}

// displayKey turns "estimated_time" into "Estimated Time". Names that
// already carry capitals are kept as given.
func displayKey(key string) string {
	for _, c := range key {
		if unicode.IsUpper(c) {
			return key
		}
	}
	words := strings.FieldsFunc(key, func(c rune) bool { return c == '_' || c == '-' || c == ' ' })
	for i, w := range words {
		rs := []rune(w)
		rs[0] = unicode.ToUpper(rs[0])
		words[i] = string(rs)
	}
	return strings.Join(words, " ")
}
