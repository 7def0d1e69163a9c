package util

import "testing"

func TestTrimQuotes(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`"hello"`, "hello"},
		{`hello`, "hello"},
		{`""`, ""},
		{``, ""},
		{`"1"`, "1"},
	}
	for _, tc := range cases {
		if got := TrimQuotes(tc.in); got != tc.want {
			t.Errorf("TrimQuotes(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFixEscapeQuotes(t *testing.T) {
	if got := FixEscapeQuotes(`say ""hi""`); got != `say "hi"` {
		t.Errorf("FixEscapeQuotes = %q", got)
	}
}

func TestCleanArg(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`"0.05"`, "0.05"},
		{`0.05`, "0.05"},
		{`"with ""inner"" quotes"`, `with "inner" quotes`},
	}
	for _, tc := range cases {
		if got := CleanArg(tc.in); got != tc.want {
			t.Errorf("CleanArg(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
