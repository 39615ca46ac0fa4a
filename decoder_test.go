package transit

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/unkn0wn-root/transit/wire"
)

func unmarshalJSON(t *testing.T, in string, opts ReaderOptions) (any, error) {
	t.Helper()
	return Unmarshal([]byte(in), opts)
}

func TestUnmarshalScalars(t *testing.T) {
	cases := []struct {
		in   string
		want any
	}{
		{`["~#'",1]`, int64(1)},
		{`["~#'","~i9007199254740992"]`, int64(1 << 53)},
		{`["~#'","~i99999999999999999999"]`, mustBig("99999999999999999999")},
		{`["~#'","~n12"]`, big.NewInt(12)},
		{`["~#'","~?t"]`, true},
		{`["~#'","~_"]`, nil},
		{`["~#'","~d2.5"]`, 2.5},
		{`["~#'","~~x"]`, "~x"},
		{`["~#'","~^x"]`, "^x"},
		{"[\"~#'\",\"~`x\"]", "`x"},
		{`["~#'","~:ns/name"]`, Keyword("ns/name")},
		{`["~#'","~$sym"]`, Symbol("sym")},
		{`["~#'","~rhttp://x"]`, URI("http://x")},
		{`["~#'","~cz"]`, "z"},
		{`["~#'","~m0"]`, InstantMillis(0)},
		{`["~#'","~t1970-01-01T00:00:01.500Z"]`, InstantMillis(1500)},
		{`["~#'","plain"]`, "plain"},
		{`["~#'",""]`, ""},
		{`["~#'","~"]`, "~"},
	}
	for _, tc := range cases {
		got, err := unmarshalJSON(t, tc.in, ReaderOptions{})
		if err != nil {
			t.Fatalf("%s: %v", tc.in, err)
		}
		if !Equal(got, tc.want) {
			t.Fatalf("%s: got %#v want %#v", tc.in, got, tc.want)
		}
	}
}

func mustBig(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad big int " + s)
	}
	return n
}

func TestUnmarshalUUIDForms(t *testing.T) {
	want, err := unmarshalJSON(t, `["~#'","~u00000000-0000-0001-0000-000000000002"]`, ReaderOptions{})
	if err != nil {
		t.Fatalf("string form: %v", err)
	}
	got, err := unmarshalJSON(t, `["~#u",[1,2]]`, ReaderOptions{})
	if err != nil {
		t.Fatalf("halves form: %v", err)
	}
	if !Equal(got, want) {
		t.Fatalf("uuid forms disagree: %v vs %v", got, want)
	}
}

func TestUnmarshalContainers(t *testing.T) {
	got, err := unmarshalJSON(t, `["~#set",[3,1,2]]`, ReaderOptions{})
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if !Equal(got, NewSet(1, 2, 3)) {
		t.Fatalf("set: got %v", got)
	}

	got, err = unmarshalJSON(t, `["~#cmap",[[1,1],"one",[2,2],"two"]]`, ReaderOptions{})
	if err != nil {
		t.Fatalf("cmap: %v", err)
	}
	m, ok := got.(*Map)
	if !ok {
		t.Fatalf("cmap: got %T", got)
	}
	if v, _ := m.Get([]any{2, 2}); v != "two" {
		t.Fatalf("cmap lookup by vector key: got %v", v)
	}

	got, err = unmarshalJSON(t, `{"~#set":[1]}`, ReaderOptions{Format: wire.JSONVerbose{}})
	if err != nil {
		t.Fatalf("verbose tagged map: %v", err)
	}
	if !Equal(got, NewSet(1)) {
		t.Fatalf("verbose tagged map: got %v", got)
	}

	got, err = unmarshalJSON(t, `[["^ ","name","a"],["^ ","^0","b"]]`, ReaderOptions{})
	if err != nil {
		t.Fatalf("cached keys: %v", err)
	}
	if want := []any{MapOf("name", "a"), MapOf("name", "b")}; !Equal(got, want) {
		t.Fatalf("cached keys: got %v", got)
	}

	got, err = unmarshalJSON(t, `[["~#link",["^ ","href","~rhttp://x","rel","self","render","IMAGE"]]]`, ReaderOptions{})
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	if want := []any{Link{Href: "http://x", Rel: "self", Render: "IMAGE"}}; !Equal(got, want) {
		t.Fatalf("link render should be kept as written: got %#v", got)
	}
}

func TestUnmarshalUnknownTags(t *testing.T) {
	in := `["~#point",[1,2]]`
	got, err := unmarshalJSON(t, in, ReaderOptions{})
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	want := TaggedValue{Tag: "point", Rep: []any{int64(1), int64(2)}}
	if !Equal(got, want) {
		t.Fatalf("got %#v want %#v", got, want)
	}
	if out := mustJSON(t, got); out != in {
		t.Fatalf("re-encode: got %s want %s", out, in)
	}

	got, err = unmarshalJSON(t, `["~xfoo"]`, ReaderOptions{})
	if err != nil {
		t.Fatalf("scalar: %v", err)
	}
	if !Equal(got, []any{TaggedValue{Tag: "x", Rep: "foo"}}) {
		t.Fatalf("scalar: got %#v", got)
	}
	if out := mustJSON(t, got); out != `["~xfoo"]` {
		t.Fatalf("scalar re-encode: got %s", out)
	}

	_, err = unmarshalJSON(t, in, ReaderOptions{StrictTags: true})
	if !errors.Is(err, ErrUnknownTag) || !IsDecodeError(err) {
		t.Fatalf("strict: want ErrUnknownTag, got %v", err)
	}
}

type countingHooks struct {
	NopHooks
	unknown []string
	resets  []string
}

func (h *countingHooks) UnknownTag(tag string)               { h.unknown = append(h.unknown, tag) }
func (h *countingHooks) CacheReset(side string, entries int) { h.resets = append(h.resets, side) }

func TestUnmarshalReportsUnknownTags(t *testing.T) {
	h := &countingHooks{}
	if _, err := unmarshalJSON(t, `[["~#point",[1,2]],"~qx"]`, ReaderOptions{Hooks: h}); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(h.unknown) != 2 || h.unknown[0] != "point" || h.unknown[1] != "q" {
		t.Fatalf("unexpected hook calls: %v", h.unknown)
	}
}

func TestUnmarshalCustomDecoders(t *testing.T) {
	opts := ReaderOptions{
		Decoders: map[string]DecodeFunc{
			"point": func(rep any) (any, error) {
				xs := rep.([]any)
				return point{int(xs[0].(int64)), int(xs[1].(int64))}, nil
			},
			// ground tags keep their meaning
			"i": func(any) (any, error) { return "overridden", nil },
		},
	}
	got, err := unmarshalJSON(t, `[["~#point",[1,2]],"~i5"]`, opts)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	xs := got.([]any)
	if xs[0] != (point{1, 2}) {
		t.Fatalf("custom decoder: got %#v", xs[0])
	}
	if xs[1] != int64(5) {
		t.Fatalf("ground tag overridden: got %#v", xs[1])
	}

	opts = ReaderOptions{DefaultDecoder: func(tag string, rep any) (any, error) {
		return "unknown:" + tag, nil
	}}
	got, err = unmarshalJSON(t, `["~#point",[1,2]]`, opts)
	if err != nil {
		t.Fatalf("default decoder: %v", err)
	}
	if got != "unknown:point" {
		t.Fatalf("default decoder: got %#v", got)
	}
}

func TestDecoderRegisterAfterConstruction(t *testing.T) {
	d := NewDecoder(ReaderOptions{})
	d.Register("set", func(rep any) (any, error) { return len(rep.([]any)), nil })
	d.Register("'", func(any) (any, error) { return "nope", nil })
	got, err := d.Decode([]any{"~#set", []any{int64(1), int64(2)}})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != 2 {
		t.Fatalf("replacement decoder not used: %#v", got)
	}
	got, err = d.Decode([]any{"~#'", "x"})
	if err != nil || got != "x" {
		t.Fatalf("quote must stay ground: %#v %v", got, err)
	}
}

func TestUnmarshalErrors(t *testing.T) {
	cases := []struct {
		name string
		in   string
		opts ReaderOptions
		kind error
	}{
		{"unbound code", `["^5"]`, ReaderOptions{}, ErrCacheCode},
		{"garbage code", `["^~~"]`, ReaderOptions{}, ErrCacheCode},
		{"tagged array arity", `["~#set",[1],2]`, ReaderOptions{}, ErrShape},
		{"tag marker alone", `["~#set"]`, ReaderOptions{}, ErrShape},
		{"stray tag marker", `["a","~#set"]`, ReaderOptions{}, ErrShape},
		{"top-level tag marker", `"~#set"`, ReaderOptions{}, ErrShape},
		{"odd map-as-array", `["^ ","a"]`, ReaderOptions{}, ErrShape},
		{"tagged map with extra key", `{"~#set":[1],"a":2}`, ReaderOptions{Format: wire.JSONVerbose{}}, ErrShape},
		{"bad int literal", `["~i12x"]`, ReaderOptions{}, ErrLiteral},
		{"bad bool literal", `["~?x"]`, ReaderOptions{}, ErrLiteral},
		{"bad uuid", `["~unot-a-uuid"]`, ReaderOptions{}, ErrLiteral},
		{"bad link render", `["~#link",["^ ","href","x","rel","y","render","video"]]`, ReaderOptions{}, ErrLiteral},
		{"odd cmap", `["~#cmap",[1]]`, ReaderOptions{}, ErrLiteral},
		{"depth", `[[[[1]]]]`, ReaderOptions{MaxDepth: 2}, ErrDepth},
		{"too large", `["aaaaaaaaaaaaaaaaaaaa"]`, ReaderOptions{MaxBytes: 8}, ErrTooLarge},
		{"syntax", `["a",`, ReaderOptions{}, ErrSyntax},
		{"trailing", `[1] [2]`, ReaderOptions{}, ErrSyntax},
		{"empty", ``, ReaderOptions{}, ErrSyntax},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := unmarshalJSON(t, tc.in, tc.opts)
			if !errors.Is(err, tc.kind) {
				t.Fatalf("want %v, got %v", tc.kind, err)
			}
			if !IsDecodeError(err) {
				t.Fatalf("want a DecodeError, got %T", err)
			}
		})
	}
}

func TestUnmarshalRejectsBinaryKeys(t *testing.T) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	_ = enc.EncodeMapLen(1)
	_ = enc.EncodeBytes([]byte("key"))
	_ = enc.EncodeInt(1)

	_, err := Unmarshal(buf.Bytes(), ReaderOptions{Format: wire.Msgpack{}})
	if !errors.Is(err, ErrShape) {
		t.Fatalf("want ErrShape, got %v", err)
	}

	buf.Reset()
	_ = enc.EncodeArrayLen(1)
	_ = enc.EncodeBytes([]byte{1, 2})
	got, err := Unmarshal(buf.Bytes(), ReaderOptions{Format: wire.Msgpack{}})
	if err != nil {
		t.Fatalf("binary value: %v", err)
	}
	if !Equal(got, []any{[]byte{1, 2}}) {
		t.Fatalf("binary value passes through, got %#v", got)
	}
}
