package commits

import (
	"strings"
	"testing"
)

func TestMessageCleaner(t *testing.T) {
	cleaner := NewMessageCleaner()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Update README", "Update README"},
		{"conventional prefix", "fix: handle nil profile", "handle nil profile"},
		{"conventional with scope", "feat(api): add login", "add login"},
		{"breaking change marker", "chore!: drop legacy endpoint", "drop legacy endpoint"},
		{"trailing pr ref", "feat(api): add login (#123)", "add login"},
		{"trailing issue ref", "Update parser #42", "Update parser"},
		{"revert", `Revert "add login"`, "add login"},
		{"first line only", "feat: one\n\nlong body with details", "one"},
		{"uppercase type", "FIX: casing", "casing"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := cleaner.Clean(tc.in); got != tc.want {
				t.Errorf("Clean(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestMessageCleaner_Truncates(t *testing.T) {
	cleaner := NewMessageCleaner()

	in := strings.Repeat("a", 60)
	got := cleaner.Clean(in)

	want := strings.Repeat("a", 49) + "…"
	if got != want {
		t.Errorf("Expected truncation to %d runes, got %q (%d runes)", 50, got, len([]rune(got)))
	}
}
