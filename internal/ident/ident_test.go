package ident_test

import (
	"sort"
	"testing"

	"github.com/rkathuria/sliceq/internal/ident"
)

func TestNewID_ValidAndUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id, err := ident.NewID()
		if err != nil {
			t.Fatalf("NewID() error: %v", err)
		}
		if err := ident.Validate(id); err != nil {
			t.Fatalf("generated ID %q is not a valid ULID: %v", id, err)
		}
		if seen[id] {
			t.Fatalf("duplicate ID generated: %s", id)
		}
		seen[id] = true
	}
}

func TestNewID_MonotonicWithinProcess(t *testing.T) {
	ids := make([]string, 100)
	for i := range ids {
		ids[i] = ident.MustNewID()
	}
	if !sort.StringsAreSorted(ids) {
		t.Error("IDs generated in sequence must be lexicographically ordered")
	}
}

func TestValidate_RejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "not-a-ulid", "01ARZ3NDEKTSV4RRFFQ69G5FA"} {
		if err := ident.Validate(s); err == nil {
			t.Errorf("Validate(%q) = nil, want error", s)
		}
	}
}
