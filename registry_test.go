package transit

import (
	"reflect"
	"testing"
)

func typeOf[T any]() reflect.Type { return reflect.TypeFor[T]() }

type celsius float64
type names []string
type code string
type byName map[string]int

func TestRegistryKindFallback(t *testing.T) {
	reg := NewRegistry()
	cases := []struct {
		in  any
		tag string
	}{
		{celsius(21.5), "d"},
		{names{"a"}, "array"},
		{code("x"), "s"},
		{byName{"a": 1}, "map"},
		{int8(1), "i"},
		{uint16(1), "i"},
		{[2]int{1, 2}, "array"},
		{[]byte("x"), "b"},
		{[]int{1}, "array"},
	}
	for _, tc := range cases {
		h, ok := reg.Lookup(tc.in)
		if !ok {
			t.Fatalf("%T: no handler", tc.in)
		}
		if got := h.Tag(tc.in); got != tc.tag {
			t.Fatalf("%T: tag %q want %q", tc.in, got, tc.tag)
		}
	}
}

func TestRegistryAncestorOrder(t *testing.T) {
	reg := NewRegistry()
	reg.Register(typeOf[shape](), TagHandler("shape", nil))
	if h, _ := reg.Lookup(square{1}); h.Tag(square{1}) != "shape" {
		t.Fatalf("interface handler not used")
	}

	// exact beats interface
	RegisterType[square](reg, TagHandler("square", nil))
	if h, _ := reg.Lookup(square{1}); h.Tag(square{1}) != "square" {
		t.Fatalf("exact handler must win after registration")
	}

	// pointers resolve through their element type
	h, v, ok := reg.resolve(&square{2})
	if !ok || h.Tag(v) != "square" || v != (square{2}) {
		t.Fatalf("pointer lookup: ok=%v value=%#v", ok, v)
	}

	// a nil pointer writes as nil
	h, v, ok = reg.resolve((*square)(nil))
	if !ok || h.Tag(v) != "_" || v != nil {
		t.Fatalf("nil pointer lookup: tag=%q value=%#v", h.Tag(v), v)
	}
}

type named interface{ Name() string }

func TestRegistryLatestInterfaceWins(t *testing.T) {
	reg := NewRegistry()
	reg.Register(typeOf[shape](), TagHandler("shape", nil))
	reg.Register(typeOf[named](), TagHandler("named", nil))
	if h, _ := reg.Lookup(both{}); h.Tag(both{}) != "named" {
		t.Fatalf("most recently registered interface should win")
	}
}

type both struct{}

func (both) Area() float64  { return 0 }
func (both) Name() string   { return "both" }

func TestRegistryLastWriteWins(t *testing.T) {
	reg := NewRegistry()
	RegisterType[point](reg, TagHandler("one", nil))
	if _, ok := reg.Lookup(point{}); !ok {
		t.Fatalf("lookup failed")
	}
	RegisterType[point](reg, TagHandler("two", nil))
	if h, _ := reg.Lookup(point{}); h.Tag(point{}) != "two" {
		t.Fatalf("re-registration must replace the cached handler")
	}
}

func TestRegistryCloneIsIndependent(t *testing.T) {
	reg := NewRegistry()
	c := reg.Clone()
	RegisterType[point](c, TagHandler("point", nil))
	if _, ok := reg.Lookup(point{}); ok {
		t.Fatalf("clone registration leaked into the original")
	}
	if _, ok := c.Lookup(point{}); !ok {
		t.Fatalf("clone lost its registration")
	}
}

func TestRegistryNoHandlerForStructs(t *testing.T) {
	if _, ok := NewRegistry().Lookup(struct{ A int }{}); ok {
		t.Fatalf("structs need an explicit handler")
	}
}
