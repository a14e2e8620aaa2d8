package record

import "testing"

func TestIsToolRole(t *testing.T) {
	cases := map[string]bool{
		ToolRoleUse:    true,
		ToolRoleResult: true,
		"user":         false,
		"assistant":    false,
		"":             false,
	}
	for role, want := range cases {
		if got := IsToolRole(role); got != want {
			t.Errorf("IsToolRole(%q) = %v, want %v", role, got, want)
		}
	}
}

func TestFingerprintStableAndDistinguishing(t *testing.T) {
	a := Fingerprint("/p/a.jsonl", "sess-1", 3, 1000, "hello")
	b := Fingerprint("/p/a.jsonl", "sess-1", 3, 1000, "hello")
	if a != b {
		t.Fatalf("fingerprint not deterministic: %d != %d", a, b)
	}

	c := Fingerprint("/p/a.jsonl", "sess-1", 3, 1000, "different text")
	if a == c {
		t.Fatalf("fingerprint collided across different text")
	}

	d := Fingerprint("/p/a.jsonl", "sess-1", 4, 1000, "hello")
	if a == d {
		t.Fatalf("fingerprint collided across different turn_id")
	}
}

func TestLessTotalOrder(t *testing.T) {
	r1 := Record{SessionID: "s1", TurnID: 1, TS: 100, DocID: 1}
	r2 := Record{SessionID: "s1", TurnID: 2, TS: 90, DocID: 2}
	r3 := Record{SessionID: "s2", TurnID: 0, TS: 1, DocID: 0}

	if !Less(r1, r2) {
		t.Fatalf("expected r1 < r2 by turn_id")
	}
	if !Less(r1, r3) {
		t.Fatalf("expected r1 < r3 by session_id")
	}
	if Less(r2, r1) {
		t.Fatalf("ordering not antisymmetric")
	}
}

func TestSourceValid(t *testing.T) {
	for _, s := range []Source{SourceClaude, SourceCodexSession, SourceCodexHistory} {
		if !s.Valid() {
			t.Errorf("expected %q to be valid", s)
		}
	}
	if Source("bogus").Valid() {
		t.Errorf("expected bogus source to be invalid")
	}
}
