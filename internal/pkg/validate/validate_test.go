package validate

import (
	"strings"
	"testing"
)

func TestIdentifier(t *testing.T) {
	for _, ok := range []string{"seo-basic-01", " 42 ", "cs_test_a1B2"} {
		if !Identifier(ok) {
			t.Fatalf("expected %q to be accepted", ok)
		}
	}
	for _, bad := range []string{"", "   ", "seo basic", "id\x00", strings.Repeat("a", 201)} {
		if Identifier(bad) {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}
