package idgen

import "testing"

func TestUUIDv7Unique(t *testing.T) {
	gen := UUIDv7()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := gen()
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
		if _, err := Parse(id); err != nil {
			t.Fatalf("generated id does not parse: %v", err)
		}
	}
}

func TestPrefixed(t *testing.T) {
	gen := Prefixed("run_", func() string { return "abc" })
	if got := gen(); got != "run_abc" {
		t.Errorf("got %q", got)
	}
}

func TestParseInvalid(t *testing.T) {
	if _, err := Parse("not-a-uuid"); err == nil {
		t.Error("want error")
	}
}
