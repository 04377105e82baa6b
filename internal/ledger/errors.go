package ledger

import (
	"errors"
	"fmt"
	"strings"
)

// ParseReason classifies a parse failure.
type ParseReason string

const (
	ReasonMalformedCheckbox    ParseReason = "malformed-checkbox"
	ReasonDuplicateID          ParseReason = "duplicate-id"
	ReasonBadTimestamp         ParseReason = "bad-timestamp"
	ReasonFieldOutsideRecord   ParseReason = "field-outside-record"
	ReasonSectionOrder         ParseReason = "section-order"
	ReasonDuplicateSection     ParseReason = "duplicate-section"
	ReasonMissingField         ParseReason = "missing-field"
	ReasonBadValue             ParseReason = "bad-value"
	ReasonRecordOutsideSection ParseReason = "record-outside-section"
	ReasonMalformedLine        ParseReason = "malformed-line"
)

// ParseError reports malformed ledger text. Lines are 1-based and inclusive.
type ParseError struct {
	StartLine int
	EndLine   int
	Reason    ParseReason
	Detail    string
}

func (e *ParseError) Error() string {
	loc := fmt.Sprintf("line %d", e.StartLine)
	if e.EndLine > e.StartLine {
		loc = fmt.Sprintf("lines %d-%d", e.StartLine, e.EndLine)
	}
	if e.Detail == "" {
		return fmt.Sprintf("%s: %s", loc, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", loc, e.Reason, e.Detail)
}

// Violation is one broken invariant. RecordID is zero for ledger-wide checks.
type Violation struct {
	Code     string
	RecordID int
	Message  string
}

func (v Violation) String() string {
	if v.RecordID > 0 {
		return fmt.Sprintf("record %d: %s (%s)", v.RecordID, v.Message, v.Code)
	}
	return fmt.Sprintf("%s (%s)", v.Message, v.Code)
}

// ValidationError lists every invariant a ledger violates.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 1 {
		return "invalid ledger: " + e.Violations[0].String()
	}
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return fmt.Sprintf("invalid ledger: %d violations: %s", len(e.Violations), strings.Join(parts, "; "))
}

// MutationKind classifies a rejected mutation.
type MutationKind string

const (
	KindNotFound       MutationKind = "not-found"
	KindAlreadyStarted MutationKind = "already-started"
	KindRecordArchived MutationKind = "record-archived"
	KindNotEligible    MutationKind = "not-eligible"
	KindDuplicateTitle MutationKind = "duplicate-title"
	KindImmutableField MutationKind = "immutable-field"
	KindInvalidValue   MutationKind = "invalid-value"
)

// Sentinels matched by errors.Is against a *MutationError of the same kind.
var (
	ErrNotFound       = errors.New("record not found")
	ErrAlreadyStarted = errors.New("record already started")
	ErrRecordArchived = errors.New("record is archived")
	ErrNotEligible    = errors.New("record not eligible")
	ErrDuplicateTitle = errors.New("duplicate title")
	ErrImmutableField = errors.New("immutable field")
	ErrInvalidValue   = errors.New("invalid value")
)

var kindSentinels = map[MutationKind]error{
	KindNotFound:       ErrNotFound,
	KindAlreadyStarted: ErrAlreadyStarted,
	KindRecordArchived: ErrRecordArchived,
	KindNotEligible:    ErrNotEligible,
	KindDuplicateTitle: ErrDuplicateTitle,
	KindImmutableField: ErrImmutableField,
	KindInvalidValue:   ErrInvalidValue,
}

// MutationError reports why a mutation was refused.
type MutationError struct {
	Kind   MutationKind
	ID     int
	Field  string
	Detail string
}

func (e *MutationError) Error() string {
	var b strings.Builder
	if e.ID > 0 {
		fmt.Fprintf(&b, "record %d: ", e.ID)
	}
	b.WriteString(kindSentinels[e.Kind].Error())
	if e.Field != "" {
		fmt.Fprintf(&b, " %q", e.Field)
	}
	if e.Detail != "" {
		b.WriteString(": " + e.Detail)
	}
	return b.String()
}

// Unwrap returns the sentinel for the error kind.
func (e *MutationError) Unwrap() error {
	return kindSentinels[e.Kind]
}

func mutationErr(kind MutationKind, id int, detail string) *MutationError {
	return &MutationError{Kind: kind, ID: id, Detail: detail}
}
