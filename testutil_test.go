package transit

import (
	"testing"

	"github.com/unkn0wn-root/transit/wire"
)

var allFormats = []wire.Format{wire.JSON{}, wire.JSONVerbose{}, wire.Msgpack{}, wire.CBOR{}}

func mustMarshal(t *testing.T, v any, f wire.Format) []byte {
	t.Helper()
	b, err := Marshal(v, WriterOptions{Format: f})
	if err != nil {
		t.Fatalf("Marshal(%v) as %s: %v", v, f.Name(), err)
	}
	return b
}

func mustUnmarshal(t *testing.T, b []byte, f wire.Format) any {
	t.Helper()
	v, err := Unmarshal(b, ReaderOptions{Format: f})
	if err != nil {
		t.Fatalf("Unmarshal(%q) as %s: %v", b, f.Name(), err)
	}
	return v
}

func roundTrip(t *testing.T, v any, f wire.Format) any {
	t.Helper()
	return mustUnmarshal(t, mustMarshal(t, v, f), f)
}

// mustJSON marshals v as compact JSON without the trailing newline.
func mustJSON(t *testing.T, v any) string {
	t.Helper()
	return string(mustMarshal(t, v, wire.JSON{}))
}
