package checksum

import "testing"

func TestSum(t *testing.T) {
	// sha256("abc")
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got := Sum([]byte("abc")); got != want {
		t.Errorf("Sum = %s, want %s", got, want)
	}
}

func TestETag(t *testing.T) {
	a, b := ETag([]byte(`{"a":1}`)), ETag([]byte(`{"a":2}`))
	if a == b {
		t.Error("different bundles share an ETag")
	}
	if a != ETag([]byte(`{"a":1}`)) {
		t.Error("ETag is not stable")
	}
	if len(a) != 34 || a[0] != '"' || a[33] != '"' {
		t.Errorf("ETag = %s, want a quoted 32 char tag", a)
	}
}
