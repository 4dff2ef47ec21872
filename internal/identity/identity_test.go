package identity

import (
	"testing"

	"github.com/google/uuid"
)

func TestIssueReturnsValidUUID(t *testing.T) {
	issuer := NewIssuer()

	id := issuer.Issue()
	if id == "" {
		t.Fatal("Issue() returned empty string")
	}
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("Issue() = %q, not a valid UUID: %v", id, err)
	}
}

func TestIssueReturnsDistinctValues(t *testing.T) {
	issuer := NewIssuer()

	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		id := issuer.Issue()
		if _, dup := seen[id]; dup {
			t.Fatalf("Issue() returned duplicate %q after %d calls", id, i)
		}
		seen[id] = struct{}{}
	}
}

func TestIssuerFunc(t *testing.T) {
	var issuer Issuer = IssuerFunc(func() string { return "fixed-id" })

	if got := issuer.Issue(); got != "fixed-id" {
		t.Errorf("Issue() = %q, want %q", got, "fixed-id")
	}
}
