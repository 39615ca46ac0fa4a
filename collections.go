package transit

// Entry is one key/value pair of a Map.
type Entry struct {
	Key   any
	Value any
}

// Map is an immutable map whose keys may be any semantic value. Entries keep
// insertion order; equality ignores it.
type Map struct {
	entries []Entry
	index   map[uint64][]int
	hash    uint64
}

// MapBuilder accumulates entries for a Map. A builder must not be used after
// Map has been called.
type MapBuilder struct {
	m *Map
}

// NewMapBuilder returns a builder with room for n entries.
func NewMapBuilder(n int) *MapBuilder {
	return &MapBuilder{m: &Map{
		entries: make([]Entry, 0, n),
		index:   make(map[uint64][]int, n),
	}}
}

// Set adds k -> v. A later Set of an equal key replaces the value in place.
func (b *MapBuilder) Set(k, v any) *MapBuilder {
	m := b.m
	h := Hash(k)
	for _, i := range m.index[h] {
		if Equal(m.entries[i].Key, k) {
			m.entries[i].Value = v
			return b
		}
	}
	m.index[h] = append(m.index[h], len(m.entries))
	m.entries = append(m.entries, Entry{Key: k, Value: v})
	return b
}

// Len reports the number of distinct keys added so far.
func (b *MapBuilder) Len() int { return len(b.m.entries) }

// Map freezes and returns the built map.
func (b *MapBuilder) Map() *Map {
	m := b.m
	b.m = nil
	for _, e := range m.entries {
		m.hash ^= entryHash(e.Key, e.Value)
	}
	return m
}

// NewMap builds a Map from entries.
func NewMap(entries ...Entry) *Map {
	b := NewMapBuilder(len(entries))
	for _, e := range entries {
		b.Set(e.Key, e.Value)
	}
	return b.Map()
}

// MapOf builds a Map from alternating keys and values. It panics on an odd
// number of arguments.
func MapOf(kvs ...any) *Map {
	if len(kvs)%2 != 0 {
		panic("transit: MapOf needs an even number of arguments")
	}
	b := NewMapBuilder(len(kvs) / 2)
	for i := 0; i < len(kvs); i += 2 {
		b.Set(kvs[i], kvs[i+1])
	}
	return b.Map()
}

func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Get returns the value stored under a key equal to k.
func (m *Map) Get(k any) (any, bool) {
	if m == nil {
		return nil, false
	}
	for _, i := range m.index[Hash(k)] {
		if Equal(m.entries[i].Key, k) {
			return m.entries[i].Value, true
		}
	}
	return nil, false
}

// Entries returns a copy of the entries in insertion order.
func (m *Map) Entries() []Entry {
	if m == nil {
		return nil
	}
	return append([]Entry(nil), m.entries...)
}

// Range calls fn for each entry in insertion order until fn returns false.
func (m *Map) Range(fn func(k, v any) bool) {
	if m == nil {
		return
	}
	for _, e := range m.entries {
		if !fn(e.Key, e.Value) {
			return
		}
	}
}

func (m *Map) Equal(o *Map) bool {
	if m.Len() != o.Len() {
		return false
	}
	if m.Len() == 0 {
		return true
	}
	if m.hash != o.hash {
		return false
	}
	for _, e := range m.entries {
		v, ok := o.Get(e.Key)
		if !ok || !Equal(e.Value, v) {
			return false
		}
	}
	return true
}

// Set is an immutable unordered collection of semantic values.
type Set struct {
	elems []any
	index map[uint64][]int
	hash  uint64
}

// NewSet builds a Set; duplicates collapse to the first occurrence.
func NewSet(elems ...any) *Set {
	s := &Set{
		elems: make([]any, 0, len(elems)),
		index: make(map[uint64][]int, len(elems)),
	}
	for _, e := range elems {
		h := Hash(e)
		if s.find(h, e) >= 0 {
			continue
		}
		s.index[h] = append(s.index[h], len(s.elems))
		s.elems = append(s.elems, e)
		s.hash ^= h
	}
	return s
}

func (s *Set) find(h uint64, e any) int {
	for _, i := range s.index[h] {
		if Equal(s.elems[i], e) {
			return i
		}
	}
	return -1
}

func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.elems)
}

func (s *Set) Contains(e any) bool {
	if s == nil {
		return false
	}
	return s.find(Hash(e), e) >= 0
}

// Elems returns a copy of the elements in insertion order.
func (s *Set) Elems() []any {
	if s == nil {
		return nil
	}
	return append([]any(nil), s.elems...)
}

func (s *Set) Equal(o *Set) bool {
	if s.Len() != o.Len() {
		return false
	}
	if s.Len() == 0 {
		return true
	}
	if s.hash != o.hash {
		return false
	}
	for _, e := range s.elems {
		if !o.Contains(e) {
			return false
		}
	}
	return true
}
