package hasher

import "testing"

func TestFastInsecureHasher_Deterministic(t *testing.T) {
	write := func() uint64 {
		h := New()
		h.WriteStr("dprint-plugin-shfmt")
		h.WriteStr("0.1.0")
		h.WriteUint64(42)
		h.WriteBool(true)
		return h.Finish()
	}

	if a, b := write(), write(); a != b {
		t.Fatalf("hash not stable: %d != %d", a, b)
	}
}

func TestFastInsecureHasher_WriteStrSeparatesValues(t *testing.T) {
	a := New()
	a.WriteStr("ab")
	a.WriteStr("c")

	b := New()
	b.WriteStr("a")
	b.WriteStr("bc")

	if a.Finish() == b.Finish() {
		t.Fatalf("expected adjacent strings to hash differently")
	}
}

func TestFastInsecureHasher_OrderMatters(t *testing.T) {
	a := New()
	a.WriteStr("one")
	a.WriteStr("two")

	b := New()
	b.WriteStr("two")
	b.WriteStr("one")

	if a.Finish() == b.Finish() {
		t.Fatalf("expected write order to affect the hash")
	}
}

func TestHashString(t *testing.T) {
	if HashString("text") != HashString("text") {
		t.Fatalf("HashString not stable")
	}
	if HashString("text") == HashString("text\n") {
		t.Fatalf("HashString collided on different input")
	}
}
