package security

import (
	"strings"
	"testing"
)

func TestGenerateInviteCode(t *testing.T) {
	seen := map[string]struct{}{}
	for i := 0; i < 50; i++ {
		code, err := GenerateInviteCode(6)
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("expected 6 characters, got %q", code)
		}
		for _, r := range code {
			if !strings.ContainsRune(InviteCodeCharset, r) {
				t.Fatalf("unexpected character %q in %q", r, code)
			}
		}
		seen[code] = struct{}{}
	}
	if len(seen) < 45 {
		t.Fatalf("expected mostly distinct codes, got %d of 50", len(seen))
	}
}

func TestGenerateCodeValidatesInput(t *testing.T) {
	if _, err := GenerateCode(0, "AB"); err == nil {
		t.Fatal("expected error for zero length")
	}
	if _, err := GenerateCode(4, ""); err == nil {
		t.Fatal("expected error for empty charset")
	}
}

func TestNormalizeCode(t *testing.T) {
	if got := NormalizeCode("  ab3k9z \n"); got != "AB3K9Z" {
		t.Fatalf("unexpected normalized code %q", got)
	}
}

func TestCharsetAvoidsAmbiguousRunes(t *testing.T) {
	for _, r := range "01IOL" {
		if strings.ContainsRune(InviteCodeCharset, r) {
			t.Fatalf("charset should not contain %q", r)
		}
	}
}
