package store

import "testing"

func TestValidTransition(t *testing.T) {
	cases := []struct {
		action string
		from   string
		valid  bool
	}{
		{"process", "draft", true},
		{"process", "processed", true},
		{"process", "approved", false},
		{"approve", "processed", true},
		{"approve", "draft", false},
		{"pay", "approved", true},
		{"pay", "processed", false},
		{"pay", "paid", false},
		{"cancel", "draft", true},
		{"cancel", "processed", true},
		{"cancel", "approved", false},
		{"cancel", "paid", false},
		{"cancel", "cancelled", false},
		{"unknown", "draft", false},
	}

	for _, tt := range cases {
		if got := ValidTransition(tt.action, tt.from); got != tt.valid {
			t.Fatalf("ValidTransition(%q, %q)=%v, want %v", tt.action, tt.from, got, tt.valid)
		}
	}
}

func TestTargetStatus(t *testing.T) {
	for action, want := range map[string]string{"process": "processed", "approve": "approved", "pay": "paid", "cancel": "cancelled"} {
		got, ok := TargetStatus(action)
		if !ok || got != want {
			t.Fatalf("TargetStatus(%q)=%q,%v want %q", action, got, ok, want)
		}
	}
	if _, ok := TargetStatus("reopen"); ok {
		t.Fatalf("expected unknown action to have no target")
	}
}
