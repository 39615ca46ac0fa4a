package transit

import (
	"math/big"
	"reflect"
	"sync"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/google/uuid"
)

// Registry maps Go types to write handlers.
//
// Lookup walks the ancestor chain of a value's dynamic type and uses the
// first registered entry:
//
//  1. the exact type
//  2. for pointers, the pointed-to types (outermost first)
//  3. registered interface types the value implements, most recent first
//  4. the canonical type for the value's reflect.Kind (int64 for all signed
//     integers, []any for slices, map[string]any for maps, ...)
//
// Resolved lookups are cached; Register invalidates the cache.
type Registry struct {
	mu       sync.RWMutex
	exact    map[reflect.Type]Handler
	ifaces   []reflect.Type
	resolved map[reflect.Type]resolved
}

type resolved struct {
	h      Handler
	derefs int
}

type ancestor struct {
	t      reflect.Type
	derefs int
}

// NewRegistry returns a registry holding the built-in handlers.
func NewRegistry() *Registry {
	r := &Registry{
		exact:    make(map[reflect.Type]Handler, 32),
		resolved: make(map[reflect.Type]resolved, 32),
	}
	for t, h := range builtinHandlers() {
		r.exact[t] = h
	}
	return r
}

func builtinHandlers() map[reflect.Type]Handler {
	return map[reflect.Type]Handler{
		reflect.TypeFor[bool]():           boolHandler{},
		reflect.TypeFor[int64]():          intHandler{},
		reflect.TypeFor[uint64]():         intHandler{},
		reflect.TypeFor[float64]():        floatHandler{},
		reflect.TypeFor[string]():         stringHandler{},
		reflect.TypeFor[Keyword]():        textHandler{tag: ":", text: reflectText},
		reflect.TypeFor[Symbol]():         textHandler{tag: "$", text: reflectText},
		reflect.TypeFor[URI]():            textHandler{tag: "r", text: reflectText},
		reflect.TypeFor[*big.Int]():       textHandler{tag: "n", text: bigIntText},
		reflect.TypeFor[big.Int]():        textHandler{tag: "n", text: bigIntText},
		reflect.TypeFor[*apd.Decimal]():   textHandler{tag: "f", text: decimalText},
		reflect.TypeFor[apd.Decimal]():    textHandler{tag: "f", text: decimalText},
		reflect.TypeFor[uuid.UUID]():      textHandler{tag: "u", text: uuidText},
		reflect.TypeFor[[]byte]():         textHandler{tag: "b", text: bytesText},
		reflect.TypeFor[time.Time]():      timeHandler{},
		reflect.TypeFor[[]any]():          arrayHandler{},
		reflect.TypeFor[List]():           listHandler{},
		reflect.TypeFor[*Set]():           setHandler{},
		reflect.TypeFor[*Map]():           mapHandler{},
		reflect.TypeFor[map[string]any](): mapHandler{},
		reflect.TypeFor[Link]():           linkHandler{},
		reflect.TypeFor[TaggedValue]():    taggedHandler{},
	}
}

// Register binds h to t. Registering an interface type makes h apply to
// every type implementing it that has no more specific handler.
func (r *Registry) Register(t reflect.Type, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.Kind() == reflect.Interface {
		if _, seen := r.exact[t]; !seen {
			r.ifaces = append(r.ifaces, t)
		}
	}
	r.exact[t] = h
	clear(r.resolved)
}

// RegisterType binds h to T.
func RegisterType[T any](r *Registry, h Handler) {
	r.Register(reflect.TypeFor[T](), h)
}

// Lookup returns the handler for v's dynamic type.
func (r *Registry) Lookup(v any) (Handler, bool) {
	h, _, ok := r.resolve(v)
	return h, ok
}

// Clone returns an independent copy of r.
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c := &Registry{
		exact:    make(map[reflect.Type]Handler, len(r.exact)),
		ifaces:   append([]reflect.Type(nil), r.ifaces...),
		resolved: make(map[reflect.Type]resolved, len(r.resolved)),
	}
	for t, h := range r.exact {
		c.exact[t] = h
	}
	return c
}

// resolve returns the handler for v and the value the handler should see:
// v itself, or v with pointers stripped when the match came from a
// pointed-to type.
func (r *Registry) resolve(v any) (Handler, any, bool) {
	t := reflect.TypeOf(v)
	if t == nil {
		return nilHandler{}, nil, true
	}

	r.mu.RLock()
	res, ok := r.resolved[t]
	r.mu.RUnlock()

	if !ok {
		r.mu.Lock()
		for _, a := range r.ancestors(t) {
			if h, found := r.exact[a.t]; found {
				res, ok = resolved{h: h, derefs: a.derefs}, true
				r.resolved[t] = res
				break
			}
		}
		r.mu.Unlock()
		if !ok {
			return nil, v, false
		}
	}

	if res.derefs == 0 {
		return res.h, v, true
	}
	rv := reflect.ValueOf(v)
	for i := 0; i < res.derefs; i++ {
		if rv.IsNil() {
			return nilHandler{}, nil, true
		}
		rv = rv.Elem()
	}
	return res.h, rv.Interface(), true
}

// ancestors lists the candidate types for t in lookup order.
// Caller holds r.mu.
func (r *Registry) ancestors(t reflect.Type) []ancestor {
	chain := []ancestor{{t: t}}
	base, ptrs := t, 0
	for base.Kind() == reflect.Pointer {
		base = base.Elem()
		ptrs++
		chain = append(chain, ancestor{t: base, derefs: ptrs})
	}
	for i := len(r.ifaces) - 1; i >= 0; i-- {
		if t.Implements(r.ifaces[i]) {
			chain = append(chain, ancestor{t: r.ifaces[i]})
		}
	}
	if k := kindBase(base); k != nil && k != base {
		chain = append(chain, ancestor{t: k, derefs: ptrs})
	}
	return chain
}

// kindBase is the canonical type whose handler serves every type of t's kind.
func kindBase(t reflect.Type) reflect.Type {
	switch t.Kind() {
	case reflect.Bool:
		return reflect.TypeFor[bool]()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return reflect.TypeFor[int64]()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return reflect.TypeFor[uint64]()
	case reflect.Float32, reflect.Float64:
		return reflect.TypeFor[float64]()
	case reflect.String:
		return reflect.TypeFor[string]()
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return reflect.TypeFor[[]byte]()
		}
		return reflect.TypeFor[[]any]()
	case reflect.Array:
		return reflect.TypeFor[[]any]()
	case reflect.Map:
		return reflect.TypeFor[map[string]any]()
	}
	return nil
}
