package policy

import (
	"strings"
	"testing"
)

func TestScreenInput(t *testing.T) {
	cases := []struct {
		in       string
		want     string
		accepted bool
		reason   string
	}{
		{in: "  hi there ", want: "hi there", accepted: true},
		{in: "line\none", want: "line one", accepted: true},
		{in: "   \t\n ", accepted: false, reason: "empty"},
		{in: "bell\x07", want: "bell", accepted: true},
		{in: strings.Repeat("a", 11), accepted: false, reason: "too_long"},
	}
	for _, tc := range cases {
		got, decision := ScreenInput(tc.in, 10)
		if decision.Accepted != tc.accepted {
			t.Fatalf("ScreenInput(%q) accepted = %v, want %v", tc.in, decision.Accepted, tc.accepted)
		}
		if got != tc.want {
			t.Fatalf("ScreenInput(%q) = %q, want %q", tc.in, got, tc.want)
		}
		if decision.Reason != tc.reason {
			t.Fatalf("ScreenInput(%q) reason = %q, want %q", tc.in, decision.Reason, tc.reason)
		}
	}
}
