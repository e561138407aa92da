package identity

import (
	"strings"
	"testing"
)

func TestParseValidEmail(t *testing.T) {
	t.Parallel()

	id, err := Parse("  u@x.com ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.String() != "u@x.com" {
		t.Fatalf("expected trimmed identity, got %q", id)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	t.Parallel()

	cases := []string{
		"",
		"   ",
		"not-an-email",
		"a@" + strings.Repeat("b", 120) + ".com",
	}
	for _, raw := range cases {
		if _, err := Parse(raw); err == nil {
			t.Fatalf("expected %q to be rejected", raw)
		}
	}
}
