package format

import "testing"

func TestEscape(t *testing.T) {
	cases := map[string]string{
		"plain":              "plain",
		"<b>x</b>":           "&lt;b&gt;x&lt;/b&gt;",
		"a & b":              "a &amp; b",
		"&lt; already":       "&amp;lt; already",
		`quotes "stay" 'as'`: `quotes "stay" 'as'`,
	}
	for in, want := range cases {
		if got := Escape(in); got != want {
			t.Errorf("Escape(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWrappers(t *testing.T) {
	if got := Bold("x"); got != "<b>x</b>" {
		t.Fatalf("Bold = %q", got)
	}
	if got := Italic("x"); got != "<i>x</i>" {
		t.Fatalf("Italic = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly", 7, "exactly"},
		{"longer text", 6, "longer..."},
		{"привет мир", 6, "привет..."},
		{"any", 0, "any"},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}
