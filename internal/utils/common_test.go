package utils

import "testing"

func TestSplitAndTrim(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"a, b ,c", []string{"a", "b", "c"}},
		{" , ,", []string{}},
		{"", []string{}},
		{"one", []string{"one"}},
	}
	for _, tt := range tests {
		got := SplitAndTrim(tt.in, ",")
		if len(got) != len(tt.want) {
			t.Errorf("SplitAndTrim(%q): got %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("SplitAndTrim(%q): got %v, want %v", tt.in, got, tt.want)
			}
		}
	}
}

func TestParseKeyValue(t *testing.T) {
	tests := []struct {
		in        string
		key, val  string
		wantError bool
	}{
		{"assignee=alice", "assignee", "alice", false},
		{" Estimated Time = 2h ", "Estimated Time", "2h", false},
		{"description=", "description", "", false},
		{"url=a=b", "url", "a=b", false},
		{"noequals", "", "", true},
		{"=value", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			key, val, err := ParseKeyValue(tt.in)
			if (err != nil) != tt.wantError {
				t.Fatalf("ParseKeyValue(%q): got error %v, want error %v", tt.in, err, tt.wantError)
			}
			if key != tt.key || val != tt.val {
				t.Errorf("ParseKeyValue(%q): got %q=%q, want %q=%q", tt.in, key, val, tt.key, tt.val)
			}
		})
	}
}

func TestParseID(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"3", 3, false},
		{"#12", 12, false},
		{" 7 ", 7, false},
		{"0", 0, true},
		{"-1", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseID(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseID(%q): got %d, %v, want %d (error %v)", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestJSONPointerToPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"#", ""},
		{"#/records/0/title", "records[0].title"},
		{"/records/2/fields/1/items/0", "records[2].fields[1].items[0]"},
		{"#/a~1b/c~0d", "a/b.c~d"},
		{"#/stats", "stats"},
	}
	for _, tt := range tests {
		if got := JSONPointerToPath(tt.in); got != tt.want {
			t.Errorf("JSONPointerToPath(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}
