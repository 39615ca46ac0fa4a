package store

import (
	"context"
	"testing"
	"time"

	"github.com/unkn0wn-root/transit"
	"github.com/unkn0wn-root/transit/internal/frame"
	pr "github.com/unkn0wn-root/transit/provider"
	"github.com/unkn0wn-root/transit/wire"
)

type memEntry struct {
	v   []byte
	exp time.Time // zero => no TTL
}

type memProvider struct {
	m      map[string]memEntry
	reject bool
}

var _ pr.Provider = (*memProvider)(nil)

func newMemProvider() *memProvider { return &memProvider{m: make(map[string]memEntry)} }

func (p *memProvider) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := p.m[key]
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		delete(p.m, key)
		return nil, false, nil
	}
	return e.v, true, nil
}

func (p *memProvider) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	if p.reject {
		return false, nil
	}
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	p.m[key] = memEntry{v: value, exp: exp}
	return true, nil
}

func (p *memProvider) Del(_ context.Context, key string) error { delete(p.m, key); return nil }
func (p *memProvider) Close(_ context.Context) error           { return nil }

type dropHooks struct {
	transit.NopHooks
	dropped map[string]string
}

func (h *dropHooks) EntryDropped(key, reason string) { h.dropped[key] = reason }

func newTestStore(t *testing.T, mp pr.Provider, optsOpt func(*Options)) *Store {
	t.Helper()
	opts := Options{Namespace: "doc", Provider: mp}
	if optsOpt != nil {
		optsOpt(&opts)
	}
	s, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestNewValidates(t *testing.T) {
	if _, err := New(Options{Namespace: "x"}); err == nil {
		t.Fatalf("expected error without provider")
	}
	if _, err := New(Options{Provider: newMemProvider()}); err == nil {
		t.Fatalf("expected error without namespace")
	}
}

func TestPutGetDelete(t *testing.T) {
	ctx := context.Background()
	doc := transit.MapOf(
		transit.Keyword("id"), 7,
		transit.Keyword("tags"), transit.NewSet(transit.Keyword("a"), transit.Keyword("b")),
		[]any{1, 2}, "vector key",
	)
	for _, f := range []wire.Format{wire.JSON{}, wire.JSONVerbose{}, wire.Msgpack{}, wire.CBOR{}} {
		mp := newMemProvider()
		s := newTestStore(t, mp, func(o *Options) { o.Format = f })

		if _, ok, err := s.Get(ctx, "k"); ok || err != nil {
			t.Fatalf("%s: expected miss, ok=%v err=%v", f.Name(), ok, err)
		}
		if err := s.Put(ctx, "k", doc, 0); err != nil {
			t.Fatalf("%s: Put: %v", f.Name(), err)
		}
		raw := mp.m["doc:doc:k"].v
		if id, _, err := frame.DecodeOne(raw); err != nil || id != f.ID() {
			t.Fatalf("%s: stored frame id=%d err=%v", f.Name(), id, err)
		}
		got, ok, err := s.Get(ctx, "k")
		if err != nil || !ok {
			t.Fatalf("%s: Get: ok=%v err=%v", f.Name(), ok, err)
		}
		if !transit.Equal(got, doc) {
			t.Fatalf("%s: got %v", f.Name(), got)
		}
		if err := s.Delete(ctx, "k"); err != nil {
			t.Fatalf("%s: Delete: %v", f.Name(), err)
		}
		if _, ok, _ := s.Get(ctx, "k"); ok {
			t.Fatalf("%s: expected miss after Delete", f.Name())
		}
	}
}

func TestReadFollowsStoredFormat(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	w := newTestStore(t, mp, func(o *Options) { o.Format = wire.Msgpack{} })
	r := newTestStore(t, mp, func(o *Options) { o.Format = wire.JSON{} })

	if err := w.Put(ctx, "k", []any{transit.Keyword("x")}, 0); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := r.Get(ctx, "k")
	if err != nil || !ok || !transit.Equal(got, []any{transit.Keyword("x")}) {
		t.Fatalf("cross-format read: got %v ok=%v err=%v", got, ok, err)
	}
}

func TestSelfHeal(t *testing.T) {
	ctx := context.Background()
	cases := map[string]struct {
		raw    []byte
		reason string
	}{
		"garbage":        {[]byte("not a frame"), "corrupt"},
		"unknown format": {frame.EncodeOne(99, []byte(`[1]`)), "format"},
		"bad payload":    {frame.EncodeOne(wire.JSON{}.ID(), []byte(`["^7"]`)), "decode"},
		"truncated json": {frame.EncodeOne(wire.JSON{}.ID(), []byte(`[1,`)), "decode"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			mp := newMemProvider()
			h := &dropHooks{dropped: map[string]string{}}
			s := newTestStore(t, mp, func(o *Options) { o.Hooks = h })
			mp.m["doc:doc:k"] = memEntry{v: tc.raw}

			if _, ok, err := s.Get(ctx, "k"); ok || err != nil {
				t.Fatalf("expected miss, ok=%v err=%v", ok, err)
			}
			if _, still := mp.m["doc:doc:k"]; still {
				t.Fatalf("unreadable entry was not deleted")
			}
			if h.dropped["doc:doc:k"] != tc.reason {
				t.Fatalf("reason %q want %q", h.dropped["doc:doc:k"], tc.reason)
			}
		})
	}
}

func TestPutEncodeErrorIsReturned(t *testing.T) {
	s := newTestStore(t, newMemProvider(), nil)
	err := s.Put(context.Background(), "k", struct{ A int }{1}, 0)
	if !transit.IsEncodeError(err) {
		t.Fatalf("want EncodeError, got %v", err)
	}
}

func TestPutRejectedIsNotAnError(t *testing.T) {
	mp := newMemProvider()
	mp.reject = true
	s := newTestStore(t, mp, nil)
	if err := s.Put(context.Background(), "k", 1, 0); err != nil {
		t.Fatalf("rejection should be silent: %v", err)
	}
}

func TestBatchRoundTrip(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	s := newTestStore(t, mp, nil)
	items := map[string]any{
		"a": transit.MapOf(transit.Keyword("name"), "ada"),
		"b": transit.MapOf(transit.Keyword("name"), "bob"),
		"c": []any{1, 2, 3},
	}
	if err := s.PutBatch(ctx, items, 0); err != nil {
		t.Fatalf("PutBatch: %v", err)
	}
	// drop singles so the batch entry must serve the read
	for k := range items {
		delete(mp.m, "doc:doc:"+k)
	}

	got, missing, err := s.GetBatch(ctx, []string{"c", "a", "b"})
	if err != nil || len(missing) != 0 {
		t.Fatalf("GetBatch: missing=%v err=%v", missing, err)
	}
	for k, v := range items {
		if !transit.Equal(got[k], v) {
			t.Fatalf("%s: got %v want %v", k, got[k], v)
		}
	}
}

func TestBatchFallsBackToSingles(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	h := &dropHooks{dropped: map[string]string{}}
	s := newTestStore(t, mp, func(o *Options) { o.Hooks = h })

	if err := s.PutBatch(ctx, map[string]any{"a": 1, "b": 2}, 0); err != nil {
		t.Fatalf("PutBatch: %v", err)
	}
	bk := s.batchKey([]string{"a", "b"})
	mp.m[bk] = memEntry{v: []byte("junk")}

	got, missing, err := s.GetBatch(ctx, []string{"a", "b", "z"})
	if err != nil {
		t.Fatalf("GetBatch: %v", err)
	}
	if !transit.Equal(got["a"], 1) || !transit.Equal(got["b"], 2) {
		t.Fatalf("singles not used: %v", got)
	}
	if len(missing) != 1 || missing[0] != "z" {
		t.Fatalf("missing = %v", missing)
	}

	// a different key set never reads the junk entry
	if _, still := mp.m[bk]; !still {
		t.Fatalf("unrelated batch entry should be untouched")
	}

	if _, _, err := s.GetBatch(ctx, []string{"b", "a"}); err != nil {
		t.Fatalf("GetBatch: %v", err)
	}
	if _, still := mp.m[bk]; still {
		t.Fatalf("corrupt batch entry was not deleted")
	}
	if h.dropped[bk] != "decode" {
		t.Fatalf("drop not reported: %v", h.dropped)
	}
}

func TestBatchSharesCacheAcrossItems(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	s := newTestStore(t, mp, nil)
	items := map[string]any{
		"a": transit.MapOf(transit.Keyword("name"), 1),
		"b": transit.MapOf(transit.Keyword("name"), 2),
	}
	if err := s.PutBatch(ctx, items, 0); err != nil {
		t.Fatalf("PutBatch: %v", err)
	}
	_, _, payload, err := frame.DecodeBatch(mp.m[s.batchKey([]string{"a", "b"})].v)
	if err != nil {
		t.Fatalf("DecodeBatch: %v", err)
	}
	want := "[\"a\",[\"^ \",\"~:name\",1]]\n[\"b\",[\"^ \",\"^0\",2]]"
	if string(payload) != want {
		t.Fatalf("payload %q want %q", payload, want)
	}
}
