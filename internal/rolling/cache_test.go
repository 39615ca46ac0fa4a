package rolling

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeIndexRoundTrip(t *testing.T) {
	for _, i := range []int{0, 1, 43, 44, 45, 100, Capacity - 1} {
		code := Code(i)
		got, err := Index(code)
		if err != nil {
			t.Fatalf("Index(%q): %v", code, err)
		}
		if got != i {
			t.Fatalf("Index(Code(%d)) = %d", i, got)
		}
	}
	if l := len(Code(43)); l != 2 {
		t.Fatalf("entry 43 should use a 2-char code, got len %d", l)
	}
	if l := len(Code(44)); l != 3 {
		t.Fatalf("entry 44 should use a 3-char code, got len %d", l)
	}
}

func TestIndexRejectsGarbage(t *testing.T) {
	for _, s := range []string{"^", "^~", "^0000", "^00", "^ "} {
		if _, err := Index(s); err == nil {
			t.Fatalf("expected error for %q", s)
		}
	}
}

func TestIsCacheable(t *testing.T) {
	cases := []struct {
		s     string
		asKey bool
		want  bool
	}{
		{"abc", true, false},
		{"abcd", true, true},
		{"abcd", false, false},
		{"~:abc", false, true},
		{"~$abc", false, true},
		{"~#set", false, true},
		{"~#s", false, false},
		{"~iabcd", false, false},
	}
	for _, tc := range cases {
		if got := IsCacheable(tc.s, tc.asKey); got != tc.want {
			t.Fatalf("IsCacheable(%q, %v) = %v, want %v", tc.s, tc.asKey, got, tc.want)
		}
	}
}

func TestIsCacheCode(t *testing.T) {
	if IsCacheCode(MapAsArray) {
		t.Fatalf("map-as-array sentinel must not be a cache code")
	}
	if !IsCacheCode("^0") || IsCacheCode("abc") || IsCacheCode("") {
		t.Fatalf("IsCacheCode misclassified input")
	}
}

func TestEncodeFirstFullThenCode(t *testing.T) {
	c := New()
	if got := c.Encode("~:keyword", false); got != "~:keyword" {
		t.Fatalf("first occurrence should be written in full, got %q", got)
	}
	if got := c.Encode("~:keyword", false); got != "^0" {
		t.Fatalf("second occurrence should be a code, got %q", got)
	}
	if got := c.Encode("abc", true); got != "abc" {
		t.Fatalf("short strings are never cached, got %q", got)
	}
	if got := c.Encode("plain", false); got != "plain" || c.Len() != 1 {
		t.Fatalf("non-key plain strings are never cached")
	}
}

func TestDecodeMirrorsEncode(t *testing.T) {
	w, r := New(), New()
	var in []string
	for i := 0; i < 200; i++ {
		in = append(in, fmt.Sprintf("key-%d", i%150))
	}
	for i, s := range in {
		wired := w.Encode(s, true)
		got, err := r.Decode(wired, true)
		if err != nil {
			t.Fatalf("item %d: %v", i, err)
		}
		if got != s {
			t.Fatalf("item %d: got %q want %q (wire %q)", i, got, s, wired)
		}
	}
}

func TestDecodeUnboundCode(t *testing.T) {
	c := New()
	_, err := c.Decode("^5", false)
	if !errors.Is(err, ErrBadCode) {
		t.Fatalf("expected ErrBadCode, got %v", err)
	}
}

func TestRolloverStaysInSync(t *testing.T) {
	w, r := New(), New()
	resets := 0
	w.OnReset = func(n int) {
		if n != Capacity {
			t.Fatalf("reset dropped %d entries, want %d", n, Capacity)
		}
		resets++
	}
	total := Capacity + 300
	for round := 0; round < 2; round++ {
		for i := 0; i < total; i++ {
			s := fmt.Sprintf("name%05d", i)
			got, err := r.Decode(w.Encode(s, true), true)
			if err != nil {
				t.Fatalf("round %d item %d: %v", round, i, err)
			}
			if got != s {
				t.Fatalf("round %d item %d: got %q want %q", round, i, got, s)
			}
		}
	}
	if resets == 0 {
		t.Fatalf("expected the writer cache to roll over")
	}
	if w.Len() != r.Len() {
		t.Fatalf("cache sizes diverged: writer=%d reader=%d", w.Len(), r.Len())
	}
}

func TestNoStaleCodesAfterClear(t *testing.T) {
	c := New()
	c.Encode("~:alpha", false)
	c.Clear()
	if got := c.Encode("~:alpha", false); got != "~:alpha" {
		t.Fatalf("cleared cache must not hand out stale codes, got %q", got)
	}
}

func TestKeyBindingReusedOutsideKeys(t *testing.T) {
	w, r := New(), New()
	w.Encode("name", true)
	if _, err := r.Decode("name", true); err != nil {
		t.Fatalf("decode key: %v", err)
	}

	got := w.Encode("name", false)
	if got != "^0" {
		t.Fatalf("bound string should be replaced in value position, got %q", got)
	}
	back, err := r.Decode(got, false)
	if err != nil || back != "name" {
		t.Fatalf("decode %q = %q, %v", got, back, err)
	}

	// an unbound plain value is neither replaced nor bound
	if got := w.Encode("other", false); got != "other" {
		t.Fatalf("got %q", got)
	}
	if w.Len() != 1 {
		t.Fatalf("plain value must not be bound, len=%d", w.Len())
	}
}
