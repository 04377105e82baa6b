package ledger

import (
	"strings"
	"testing"
)

func TestSelect(t *testing.T) {
	l := mustParse(t, sampleLedger)
	yes, no := true, false

	tests := []struct {
		name   string
		filter Filter
		want   []int
	}{
		{name: "default hides archive", filter: Filter{}, want: []int{1, 3}},
		{name: "with archive", filter: Filter{Archived: true}, want: []int{1, 3, 2}},
		{name: "archive only", filter: Filter{ArchivedOnly: true}, want: []int{2}},
		{name: "done", filter: Filter{Done: &yes}, want: []int{3}},
		{name: "open", filter: Filter{Done: &no}, want: []int{1}},
		{name: "priority", filter: Filter{Priority: PriorityHigh}, want: []int{1, 3}},
		{name: "assignee", filter: Filter{Assignee: "SAM"}, want: []int{1}},
		{name: "no match", filter: Filter{Priority: PriorityCritical}, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := l.Select(tt.filter)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d records, want %v", len(got), tt.want)
			}
			for i, r := range got {
				if r.ID != tt.want[i] {
					t.Errorf("record %d: got id %d, want %d", i, r.ID, tt.want[i])
				}
			}
		})
	}
}

func TestNext(t *testing.T) {
	text := "## Critical Priority Tasks\n\n" +
		"- [ ] **Blocked**:\n  - **ID**: 1\n  - **Create Date**: 2024-01-01T00:00:00Z\n  - **Pre-requisites**: 2\n\n" +
		"## Low Priority Tasks\n\n" +
		"- [ ] **Blocker**:\n  - **ID**: 2\n  - **Create Date**: 2024-01-01T00:00:00Z\n  - **Pre-requisites**: 42\n"
	l := mustParse(t, text)

	next := l.Next()
	if next == nil || next.ID != 2 {
		t.Fatalf("Next: got %+v, want record 2", next)
	}
	if blockers := l.Blockers(l.Find(1)); len(blockers) != 1 || blockers[0].ID != 2 {
		t.Errorf("Blockers(1): got %v", blockers)
	}

	l, _, _, err := SetCompleted(l, 2, testNow)
	if err != nil {
		t.Fatalf("SetCompleted failed: %v", err)
	}
	if next := l.Next(); next == nil || next.ID != 1 {
		t.Errorf("Next after completion: got %+v, want record 1", next)
	}

	l, _, _, err = SetCompleted(l, 1, testNow)
	if err != nil {
		t.Fatalf("SetCompleted failed: %v", err)
	}
	if next := l.Next(); next != nil {
		t.Errorf("Next with everything done: got record %d", next.ID)
	}
}

func TestSummarize(t *testing.T) {
	st := mustParse(t, sampleLedger).Summarize()
	if st.Total != 3 || st.Open != 1 || st.Done != 1 || st.Archived != 1 || st.Started != 0 {
		t.Errorf("Stats: got %+v", st)
	}
	if st.BySection["High"] != 2 || st.BySection["Archive"] != 1 {
		t.Errorf("BySection: got %v", st.BySection)
	}
	if st.CompletionRate < 0.66 || st.CompletionRate > 0.67 {
		t.Errorf("CompletionRate: got %f, want 2/3", st.CompletionRate)
	}

	empty := New().Summarize()
	if empty.Total != 0 || empty.CompletionRate != 0 {
		t.Errorf("empty Stats: got %+v", empty)
	}
}

func TestSubtasks(t *testing.T) {
	text := "## Medium Priority Tasks\n\n" +
		"- [ ] **Release**:\n  - **ID**: 1\n  - **Create Date**: 2024-01-01T00:00:00Z\n" +
		"  - **Subtasks**:\n    - [x] tag version\n    - [ ] publish notes\n    - plain note\n    - [X] build binaries\n\n" +
		"- [ ] **Plain**:\n  - **ID**: 2\n  - **Create Date**: 2024-01-01T00:00:00Z\n  - **Assignee**: sam\n"

	for name, input := range map[string]string{"lf": text, "crlf": strings.ReplaceAll(text, "\n", "\r\n")} {
		t.Run(name, func(t *testing.T) {
			l := mustParse(t, input)
			got := l.Find(1).Subtasks()
			want := []Subtask{{"tag version", true}, {"publish notes", false}, {"build binaries", true}}
			if len(got) != len(want) {
				t.Fatalf("Subtasks: got %v, want %v", got, want)
			}
			for i := range want {
				if got[i] != want[i] {
					t.Errorf("subtask %d: got %+v, want %+v", i, got[i], want[i])
				}
			}
			if done, total := l.Find(1).SubtaskProgress(); done != 2 || total != 3 {
				t.Errorf("SubtaskProgress: got %d/%d, want 2/3", done, total)
			}
			if done, total := l.Find(2).SubtaskProgress(); done != 0 || total != 0 {
				t.Errorf("SubtaskProgress without subtasks: got %d/%d", done, total)
			}

			st := l.Summarize()
			if st.SubtasksDone != 2 || st.SubtasksTotal != 3 {
				t.Errorf("Stats subtasks: got %d/%d, want 2/3", st.SubtasksDone, st.SubtasksTotal)
			}
			if out := Serialize(l); out != input {
				t.Errorf("round trip changed the subtask lines:\n%q", out)
			}
		})
	}
}
