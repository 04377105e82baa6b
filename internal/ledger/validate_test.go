package ledger

import (
	"errors"
	"strings"
	"testing"
)

func codes(vs []Violation) map[string]int {
	out := make(map[string]int)
	for _, v := range vs {
		out[v.Code]++
	}
	return out
}

func TestValidateSample(t *testing.T) {
	report := Validate(mustParse(t, sampleLedger))
	if !report.Valid() {
		t.Fatalf("sample ledger invalid: %v", report.Err())
	}
	if report.Err() != nil {
		t.Error("Err should be nil for a valid ledger")
	}
	// Record 3 is done while its prerequisite 1 is still open.
	if len(report.Warnings) != 1 || report.Warnings[0].Code != CodeIncompletePrerequisite || report.Warnings[0].RecordID != 3 {
		t.Errorf("Warnings: got %v, want one %s for record 3", report.Warnings, CodeIncompletePrerequisite)
	}
}

func TestValidateCollectsEveryViolation(t *testing.T) {
	text := "## High Priority Tasks\n\n" +
		"- [ ] **Finished but open**:\n  - **ID**: 1\n  - **Create Date**: 2024-01-01T00:00:00Z\n  - **Finish Date**: 2024-01-02T00:00:00Z\n\n" +
		"- [x] **Backwards**:\n  - **ID**: 2\n  - **Create Date**: 2024-01-01T00:00:00Z\n  - **Start Date**: 2024-01-05T00:00:00Z\n  - **Finish Date**: 2024-01-02T00:00:00Z\n\n" +
		"- [ ] **Wrong shelf**:\n  - **ID**: 3\n  - **Create Date**: 2024-01-01T00:00:00Z\n  - **Priority**: Low\n\n" +
		"- [ ] **a**b**:\n  - **ID**: 4\n  - **Create Date**: 2024-01-01T00:00:00Z\n\n" +
		"## Archive\n\n" +
		"- [x] **Never finished**:\n  - **ID**: 5\n  - **Create Date**: 2024-01-01T00:00:00Z\n  - **Priority**: Low\n"

	report := Validate(mustParse(t, text))
	if report.Valid() {
		t.Fatal("expected violations")
	}
	got := codes(report.Violations)
	want := map[string]int{
		CodeFinishedNotDone:     1,
		CodeStartAfterFinish:    1,
		CodeMisplacedRecord:     1,
		CodeInvalidTitle:        1,
		CodeArchivedNotFinished: 1,
	}
	for code, n := range want {
		if got[code] != n {
			t.Errorf("%s: got %d, want %d (all: %v)", code, got[code], n, report.Violations)
		}
	}
	if len(report.Violations) != len(want) {
		t.Errorf("Violations: got %d, want %d: %v", len(report.Violations), len(want), report.Violations)
	}

	var ve *ValidationError
	if !errors.As(report.Err(), &ve) || len(ve.Violations) != len(want) {
		t.Errorf("Err: got %v", report.Err())
	}
}

func TestValidateWarnings(t *testing.T) {
	text := "## Medium Priority Tasks\n\n" +
		"- [ ] **Self**:\n  - **ID**: 1\n  - **Create Date**: 2024-01-01T00:00:00Z\n  - **Pre-requisites**: 1, 99\n\n" +
		"- [ ] **Loop a**:\n  - **ID**: 2\n  - **Create Date**: 2024-01-01T00:00:00Z\n  - **Pre-requisites**: 3\n\n" +
		"- [ ] **Loop b**:\n  - **ID**: 3\n  - **Create Date**: 2024-01-01T00:00:00Z\n  - **Pre-requisites**: 2\n\n" +
		"## Archive\n\n" +
		"- [x] **Late**:\n  - **ID**: 4\n  - **Create Date**: 2024-01-01T00:00:00Z\n  - **Finish Date**: 2024-03-01T00:00:00Z\n  - **Priority**: Low\n\n" +
		"- [x] **Early**:\n  - **ID**: 5\n  - **Create Date**: 2024-01-01T00:00:00Z\n  - **Finish Date**: 2024-02-01T00:00:00Z\n  - **Priority**: Low\n"

	report := Validate(mustParse(t, text))
	if !report.Valid() {
		t.Fatalf("warnings must not fail validation: %v", report.Err())
	}
	got := codes(report.Warnings)
	want := map[string]int{
		CodeSelfPrerequisite:     1,
		CodeDanglingPrerequisite: 1,
		CodePrerequisiteCycle:    1,
		CodeArchiveOrder:         1,
	}
	for code, n := range want {
		if got[code] != n {
			t.Errorf("%s: got %d, want %d (all: %v)", code, got[code], n, report.Warnings)
		}
	}
}

func TestValidateEstimates(t *testing.T) {
	tests := []struct {
		estimate string
		warn     bool
	}{
		{"2h", false},
		{"30m", false},
		{"30 minutes", false},
		{"1 Hour", false},
		{"3 days", false},
		{"2 weeks", false},
		{"2:30", false},
		{"None", false},
		{"soon", true},
		{"h2", true},
		{"about 2 hours", true},
	}
	for _, tt := range tests {
		t.Run(tt.estimate, func(t *testing.T) {
			text := "## Low Priority Tasks\n\n- [ ] **Estimate**:\n  - **ID**: 1\n" +
				"  - **Create Date**: 2024-01-01T00:00:00Z\n  - **Estimated Time**: " + tt.estimate + "\n"
			report := Validate(mustParse(t, text))
			if !report.Valid() {
				t.Fatalf("estimates must not fail validation: %v", report.Err())
			}
			if got := codes(report.Warnings)[CodeBadEstimate] == 1; got != tt.warn {
				t.Errorf("%s warning: got %v, want %v (%v)", CodeBadEstimate, got, tt.warn, report.Warnings)
			}
		})
	}
}

func TestValidateIncompletePrerequisites(t *testing.T) {
	text := "## High Priority Tasks\n\n" +
		"- [ ] **Open base**:\n  - **ID**: 1\n  - **Create Date**: 2024-01-01T00:00:00Z\n\n" +
		"- [x] **Done base**:\n  - **ID**: 2\n  - **Create Date**: 2024-01-01T00:00:00Z\n  - **Finish Date**: 2024-01-02T00:00:00Z\n\n" +
		"- [x] **Done early**:\n  - **ID**: 3\n  - **Create Date**: 2024-01-01T00:00:00Z\n  - **Finish Date**: 2024-01-02T00:00:00Z\n  - **Pre-requisites**: 1, 2, 4\n\n" +
		"- [ ] **Still open**:\n  - **ID**: 5\n  - **Create Date**: 2024-01-01T00:00:00Z\n  - **Pre-requisites**: 1\n\n" +
		"## Archive\n\n" +
		"- [x] **Archived base**:\n  - **ID**: 4\n  - **Create Date**: 2024-01-01T00:00:00Z\n  - **Finish Date**: 2024-01-02T00:00:00Z\n  - **Priority**: Low\n"

	report := Validate(mustParse(t, text))
	if !report.Valid() {
		t.Fatalf("warnings must not fail validation: %v", report.Err())
	}
	var got []Violation
	for _, w := range report.Warnings {
		if w.Code == CodeIncompletePrerequisite {
			got = append(got, w)
		}
	}
	if len(got) != 1 || got[0].RecordID != 3 || !strings.Contains(got[0].Message, "prerequisite 1") {
		t.Errorf("%s: got %v, want one for record 3 naming prerequisite 1", CodeIncompletePrerequisite, got)
	}
}

func TestValidateInMemoryRecords(t *testing.T) {
	l, _, err := Create(New(), "Fine", PriorityHigh, nil, testNow)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	l.Find(1).Title = "line one\nline two"
	l.Find(1).Priority = "Urgent"

	got := codes(Validate(l).Violations)
	if got[CodeInvalidTitle] != 1 || got[CodeInvalidPriority] != 1 {
		t.Errorf("Violations: got %v", got)
	}
}

func TestFindCycles(t *testing.T) {
	graph := map[int][]int{1: {2}, 2: {3}, 3: {1}, 4: {1}}
	cycles := findCycles(graph)
	if len(cycles) != 1 {
		t.Fatalf("cycles: got %v, want one", cycles)
	}
	c := cycles[0]
	if len(c) != 4 || c[0] != c[len(c)-1] {
		t.Errorf("cycle shape: got %v", c)
	}
}
