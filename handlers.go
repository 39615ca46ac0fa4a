package transit

import (
	"encoding/base64"
	"math"
	"math/big"
	"reflect"
	"sort"
	"strconv"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/google/uuid"
)

// Handler describes how values of one Go type are written.
//
// Tag names the semantic kind. The encoder treats these tags specially:
//
//	"_" "s" "?" "i" "d"  scalars written natively where the format allows
//	"array" "map"        containers; Rep must return []any or []Entry
//
// Any other single-character tag is an extension scalar ("~" + tag + rep);
// longer tags are written in tagged form.
type Handler interface {
	Tag(v any) string
	Rep(v any) any
	// StringRep returns the string form used in map keys and for formats that
	// prefer strings. ok=false means the value has none.
	StringRep(v any) (s string, ok bool)
}

// VerboseHandler is implemented by handlers that write a different, human
// readable form when the format is verbose.
type VerboseHandler interface {
	Verbose() Handler
}

// Validator is implemented by handlers that can reject a value before any of
// it is written.
type Validator interface {
	Validate(v any) error
}

// HandlerFuncs adapts plain functions to Handler. A nil RepFn returns the
// value unchanged; a nil StringRepFn makes the value unstringable.
type HandlerFuncs struct {
	TagFn       func(v any) string
	RepFn       func(v any) any
	StringRepFn func(v any) (string, bool)
	VerboseFn   func() Handler
}

func (h HandlerFuncs) Tag(v any) string {
	if h.TagFn == nil {
		return ""
	}
	return h.TagFn(v)
}

func (h HandlerFuncs) Rep(v any) any {
	if h.RepFn == nil {
		return v
	}
	return h.RepFn(v)
}

func (h HandlerFuncs) StringRep(v any) (string, bool) {
	if h.StringRepFn == nil {
		return "", false
	}
	return h.StringRepFn(v)
}

func (h HandlerFuncs) Verbose() Handler {
	if h.VerboseFn == nil {
		return h
	}
	return h.VerboseFn()
}

// TagHandler returns a Handler that always uses tag and rep.
func TagHandler(tag string, rep func(v any) any) Handler {
	return HandlerFuncs{TagFn: func(any) string { return tag }, RepFn: rep}
}

type nilHandler struct{}

func (nilHandler) Tag(any) string               { return "_" }
func (nilHandler) Rep(any) any                  { return nil }
func (nilHandler) StringRep(any) (string, bool) { return "", true }

type boolHandler struct{}

func (boolHandler) Tag(any) string { return "?" }
func (boolHandler) Rep(v any) any  { return reflect.ValueOf(v).Bool() }
func (boolHandler) StringRep(v any) (string, bool) {
	if reflect.ValueOf(v).Bool() {
		return "t", true
	}
	return "f", true
}

// intHandler covers every Go integer kind. Unsigned values above MaxInt64
// become arbitrary-precision integers.
type intHandler struct{}

func (intHandler) Tag(v any) string {
	if _, isBig := canon(v).(*big.Int); isBig {
		return "n"
	}
	return "i"
}

func (intHandler) Rep(v any) any {
	switch x := canon(v).(type) {
	case *big.Int:
		return x.String()
	default:
		return x
	}
}

func (intHandler) StringRep(v any) (string, bool) {
	switch x := canon(v).(type) {
	case int64:
		return strconv.FormatInt(x, 10), true
	case *big.Int:
		return x.String(), true
	}
	return "", false
}

type floatHandler struct{}

func (floatHandler) Tag(v any) string {
	f := reflect.ValueOf(v).Float()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "z"
	}
	return "d"
}

func (floatHandler) Rep(v any) any {
	f := reflect.ValueOf(v).Float()
	if s, special := specialFloat(f); special {
		return s
	}
	return f
}

func (floatHandler) StringRep(v any) (string, bool) {
	f := reflect.ValueOf(v).Float()
	if s, special := specialFloat(f); special {
		return s, true
	}
	return strconv.FormatFloat(f, 'g', -1, 64), true
}

func specialFloat(f float64) (string, bool) {
	switch {
	case math.IsNaN(f):
		return "NaN", true
	case math.IsInf(f, 1):
		return "INF", true
	case math.IsInf(f, -1):
		return "-INF", true
	}
	return "", false
}

type stringHandler struct{}

func (stringHandler) Tag(any) string                 { return "s" }
func (stringHandler) Rep(v any) any                  { return reflect.ValueOf(v).String() }
func (stringHandler) StringRep(v any) (string, bool) { return reflect.ValueOf(v).String(), true }

// textHandler writes scalars whose representation is always a string.
type textHandler struct {
	tag  string
	text func(v any) string
}

func (h textHandler) Tag(any) string                 { return h.tag }
func (h textHandler) Rep(v any) any                  { return h.text(v) }
func (h textHandler) StringRep(v any) (string, bool) { return h.text(v), true }

func reflectText(v any) string { return reflect.ValueOf(v).String() }

func bigIntText(v any) string {
	if x, ok := canon(v).(*big.Int); ok && x != nil {
		return x.String()
	}
	return "0"
}

func decimalText(v any) string {
	if x, ok := canon(v).(*apd.Decimal); ok && x != nil {
		return x.String()
	}
	return "0"
}

func uuidText(v any) string { return v.(uuid.UUID).String() }

func bytesText(v any) string {
	return base64.StdEncoding.EncodeToString(reflect.ValueOf(v).Bytes())
}

// timeHandler writes instants as epoch milliseconds.
type timeHandler struct{}

func (timeHandler) Tag(any) string { return "m" }
func (timeHandler) Rep(v any) any  { return v.(time.Time).UnixMilli() }
func (timeHandler) StringRep(v any) (string, bool) {
	return strconv.FormatInt(v.(time.Time).UnixMilli(), 10), true
}
func (timeHandler) Verbose() Handler { return isoTimeHandler{} }

// isoTimeHandler writes instants as RFC 3339 text with millisecond precision.
type isoTimeHandler struct{}

const isoMillis = "2006-01-02T15:04:05.000Z"

func (isoTimeHandler) Tag(any) string { return "t" }
func (isoTimeHandler) Rep(v any) any  { return v.(time.Time).UTC().Format(isoMillis) }
func (isoTimeHandler) StringRep(v any) (string, bool) {
	return v.(time.Time).UTC().Format(isoMillis), true
}

type arrayHandler struct{}

func (arrayHandler) Tag(any) string { return "array" }
func (arrayHandler) Rep(v any) any {
	if xs, ok := v.([]any); ok {
		return xs
	}
	return reflectSeq(reflect.ValueOf(v))
}
func (arrayHandler) StringRep(any) (string, bool) { return "", false }

type listHandler struct{}

func (listHandler) Tag(any) string               { return "list" }
func (listHandler) Rep(v any) any                { return []any(v.(List)) }
func (listHandler) StringRep(any) (string, bool) { return "", false }

type setHandler struct{}

func (setHandler) Tag(any) string               { return "set" }
func (setHandler) Rep(v any) any                { return v.(*Set).Elems() }
func (setHandler) StringRep(any) (string, bool) { return "", false }

// mapHandler writes *Map and any Go map kind. Go maps with string-kinded
// keys are written in key order so output is deterministic.
type mapHandler struct{}

func (mapHandler) Tag(any) string { return "map" }
func (mapHandler) Rep(v any) any {
	if m, ok := v.(*Map); ok {
		if m == nil {
			return []Entry{}
		}
		return m.entries
	}
	rv := reflect.ValueOf(v)
	out := make([]Entry, 0, rv.Len())
	it := rv.MapRange()
	for it.Next() {
		out = append(out, Entry{Key: it.Key().Interface(), Value: it.Value().Interface()})
	}
	if rv.Type().Key().Kind() == reflect.String {
		sort.Slice(out, func(i, j int) bool {
			return reflect.ValueOf(out[i].Key).String() < reflect.ValueOf(out[j].Key).String()
		})
	}
	return out
}
func (mapHandler) StringRep(any) (string, bool) { return "", false }

type linkHandler struct{}

func (linkHandler) Tag(any) string               { return "link" }
func (linkHandler) Rep(v any) any                { return v.(Link).asMap() }
func (linkHandler) StringRep(any) (string, bool) { return "", false }
func (linkHandler) Validate(v any) error         { return v.(Link).validate() }

// taggedHandler writes a TaggedValue back exactly as it was read.
type taggedHandler struct{}

func (taggedHandler) Tag(v any) string { return v.(TaggedValue).Tag }
func (taggedHandler) Rep(v any) any    { return v.(TaggedValue).Rep }
func (taggedHandler) StringRep(v any) (string, bool) {
	s, ok := v.(TaggedValue).Rep.(string)
	return s, ok
}
