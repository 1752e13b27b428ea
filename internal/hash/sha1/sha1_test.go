// Package sha1 includes tests for the SHA-1 hasher adapter.
package sha1

import "testing"

// TestHasherHashKnownDigest checks the digest against a known vector.
func TestHasherHashKnownDigest(t *testing.T) {
	t.Parallel()

	h := New()
	got, err := h.Hash([]byte("hello world"))
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	want := "2aae6c35c94fcfb415dbe95f408b9ce91ee846ed"
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

// TestHasherHashDeterministic ensures repeated hashing yields the same digest.
func TestHasherHashDeterministic(t *testing.T) {
	t.Parallel()

	h := New()
	first, err := h.Hash([]byte("docbridge"))
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	second, err := h.Hash([]byte("docbridge"))
	if err != nil {
		t.Fatalf("Hash() repeat error = %v", err)
	}
	if first != second {
		t.Fatalf("expected deterministic hash, got %s vs %s", first, second)
	}
}
