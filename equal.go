package transit

import (
	"bytes"
	"math"
	"math/big"
	"math/bits"
	"reflect"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/apd/v3"
	"github.com/google/uuid"
)

// Equal reports whether a and b are the same semantic value. Go integer and
// float kinds are compared by value, slices element-wise, sets and maps
// regardless of order.
func Equal(a, b any) bool {
	a, b = canon(a), canon(b)
	switch x := a.(type) {
	case nil:
		return b == nil
	case float64:
		y, ok := b.(float64)
		return ok && (x == y || (math.IsNaN(x) && math.IsNaN(y)))
	case *big.Int:
		y, ok := b.(*big.Int)
		return ok && x.Cmp(y) == 0
	case *apd.Decimal:
		y, ok := b.(*apd.Decimal)
		return ok && x.String() == y.String()
	case time.Time:
		y, ok := b.(time.Time)
		return ok && x.Equal(y)
	case []any:
		y, ok := b.([]any)
		return ok && seqEqual(x, y)
	case List:
		y, ok := b.(List)
		return ok && seqEqual(x, y)
	case *Set:
		y, ok := b.(*Set)
		return ok && x.Equal(y)
	case *Map:
		y, ok := b.(*Map)
		return ok && x.Equal(y)
	case TaggedValue:
		y, ok := b.(TaggedValue)
		return ok && x.Tag == y.Tag && Equal(x.Rep, y.Rep)
	case []byte:
		y, ok := b.([]byte)
		return ok && bytes.Equal(x, y)
	}
	return reflect.TypeOf(a) == reflect.TypeOf(b) && reflect.DeepEqual(a, b)
}

func seqEqual(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

const (
	seedNil  uint64 = 0x6e696c
	seedTrue uint64 = 0x74727565
	seedFals uint64 = 0x66616c7365
	golden   uint64 = 0x9e3779b97f4a7c15
)

// Hash returns a structural hash consistent with Equal: Equal(a, b) implies
// Hash(a) == Hash(b). Set and Map hashes XOR their members, so order does not
// matter.
func Hash(v any) uint64 {
	v = canon(v)
	switch x := v.(type) {
	case nil:
		return seedNil
	case bool:
		if x {
			return seedTrue
		}
		return seedFals
	case int64:
		return hashWord('i', uint64(x))
	case float64:
		switch {
		case math.IsNaN(x):
			return hashWord('d', 0x7ff8000000000001)
		case x == 0:
			x = 0 // fold -0
		}
		return hashWord('d', math.Float64bits(x))
	case *big.Int:
		return hashText('n', x.String())
	case *apd.Decimal:
		return hashText('f', x.String())
	case string:
		return hashText('s', x)
	case Keyword:
		return hashText(':', string(x))
	case Symbol:
		return hashText('$', string(x))
	case URI:
		return hashText('r', string(x))
	case uuid.UUID:
		return xxhash.Sum64(x[:]) ^ hashWord('u', 0)
	case time.Time:
		return hashWord('m', uint64(x.UnixMilli()))
	case []any:
		return hashSeq('v', x)
	case List:
		return hashSeq('l', x)
	case *Set:
		if x == nil {
			return hashWord('#', 0)
		}
		return x.hash ^ hashWord('#', 0)
	case *Map:
		if x == nil {
			return hashWord('{', 0)
		}
		return x.hash ^ hashWord('{', 0)
	case Link:
		return hashText('L', string(x.Href)+"\x00"+x.Rel+"\x00"+x.Name+"\x00"+x.Render+"\x00"+x.Prompt)
	case TaggedValue:
		return hashText('T', x.Tag) ^ bits.RotateLeft64(Hash(x.Rep), 7)
	case []byte:
		return hashText('b', string(x))
	}
	return hashText('?', reflect.TypeOf(v).String()) ^ hashValue(reflect.ValueOf(v), 0)
}

// hashValue follows pointers, so two values that reflect.DeepEqual agrees on
// hash alike. Cycles are cut at a fixed depth.
func hashValue(rv reflect.Value, depth int) uint64 {
	if depth > 32 || !rv.IsValid() {
		return 0
	}
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return hashWord('0', 0)
		}
		return hashValue(rv.Elem(), depth+1)
	case reflect.Struct:
		h := hashWord('S', uint64(rv.NumField()))
		for i := 0; i < rv.NumField(); i++ {
			h = h*31 + hashValue(rv.Field(i), depth+1)
		}
		return h
	case reflect.Slice, reflect.Array:
		h := hashWord('A', uint64(rv.Len()))
		for i := 0; i < rv.Len(); i++ {
			h = h*31 + hashValue(rv.Index(i), depth+1)
		}
		return h
	case reflect.Map:
		h := hashWord('M', uint64(rv.Len()))
		it := rv.MapRange()
		for it.Next() {
			h += bits.RotateLeft64(hashValue(it.Key(), depth+1), 17) ^ hashValue(it.Value(), depth+1)
		}
		return h
	case reflect.String:
		return hashText('s', rv.String())
	case reflect.Bool:
		if rv.Bool() {
			return seedTrue
		}
		return seedFals
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return hashWord('i', uint64(rv.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return hashWord('u', rv.Uint())
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f == 0 {
			f = 0
		}
		return hashWord('d', math.Float64bits(f))
	case reflect.Complex64, reflect.Complex128:
		re, im := real(rv.Complex()), imag(rv.Complex())
		if re == 0 {
			re = 0
		}
		if im == 0 {
			im = 0
		}
		return hashWord('c', math.Float64bits(re)) ^ hashWord('C', math.Float64bits(im))
	}
	// chan, func, unsafe pointer
	return hashWord('k', uint64(rv.Kind()))
}

func hashWord(tag byte, w uint64) uint64 {
	var buf [9]byte
	buf[0] = tag
	for i := 0; i < 8; i++ {
		buf[1+i] = byte(w >> (8 * i))
	}
	return xxhash.Sum64(buf[:])
}

func hashText(tag byte, s string) uint64 {
	return xxhash.Sum64String(s) ^ uint64(tag)*golden
}

func hashSeq(tag byte, xs []any) uint64 {
	h := hashWord(tag, uint64(len(xs)))
	for _, e := range xs {
		h = h*31 + Hash(e)
	}
	return h
}

func entryHash(k, v any) uint64 {
	return bits.RotateLeft64(Hash(k), 17) ^ Hash(v)
}

// canon folds Go-native representations onto the semantic kinds so that,
// for example, int(1) and int64(1) compare and hash alike.
func canon(v any) any {
	switch x := v.(type) {
	case nil, bool, int64, float64, string, Keyword, Symbol, URI, []any, List,
		*Map, *Set, TaggedValue, Link, *big.Int, *apd.Decimal, time.Time, uuid.UUID, []byte:
		return v
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint:
		return canonUint(uint64(x))
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return canonUint(x)
	case float32:
		return float64(x)
	case big.Int:
		return &x
	case apd.Decimal:
		return &x
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return canonUint(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.String:
		return rv.String()
	case reflect.Slice:
		if rv.IsNil() {
			return []any{}
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return rv.Bytes()
		}
		return reflectSeq(rv)
	case reflect.Array:
		return reflectSeq(rv)
	case reflect.Map:
		b := NewMapBuilder(rv.Len())
		it := rv.MapRange()
		for it.Next() {
			b.Set(it.Key().Interface(), it.Value().Interface())
		}
		return b.Map()
	}
	return v
}

func canonUint(u uint64) any {
	if u <= math.MaxInt64 {
		return int64(u)
	}
	return new(big.Int).SetUint64(u)
}

func reflectSeq(rv reflect.Value) []any {
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}
