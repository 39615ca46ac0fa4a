// Package wire adapts tree-shaped serialization formats to the transit codec.
//
// A parsed node is one of:
//
//	nil, bool, int64, float64, *big.Int, string, []byte, []any, Map
//
// Formats may surface other scalar types (e.g. time.Time from a MessagePack
// timestamp extension); the decoder passes those through unchanged.
//
// Map preserves the key order found on the wire. Transit relies on it: the
// rolling cache is filled in traversal order.
package wire

import (
	"errors"
	"io"
	"math"
	"math/big"
)

// Entry is one key/value pair of a Map node.
type Entry struct {
	Key   any
	Value any
}

// Map is an ordered map node.
type Map []Entry

// Emitter writes wire primitives. Container sizes are always known up front.
type Emitter interface {
	EmitNil() error
	EmitBool(b bool) error
	EmitInt(i int64) error
	EmitFloat(f float64) error
	EmitString(s string) error
	ArrayStart(n int) error
	ArrayEnd() error
	MapStart(n int) error
	MapEnd() error
	// Flush writes any buffered output to the underlying writer.
	Flush() error
}

// Parser reads one complete top-level node per call. It returns io.EOF once
// the input is exhausted between values.
type Parser interface {
	Next() (any, error)
}

// Format describes a wire substrate and how transit uses it.
type Format interface {
	// Name is a short human-readable identifier ("json", "msgpack", ...).
	Name() string
	// ID is a stable one-byte identifier used when framing stored payloads.
	ID() byte
	NewEmitter(w io.Writer) Emitter
	NewParser(r io.Reader) Parser
	// IntRange is the inclusive range of integers written as native numbers.
	IntRange() (min, max int64)
	// PrefersStrings makes single-character extension tags with non-string
	// representations use their string form.
	PrefersStrings() bool
	// Verbose disables the rolling cache and writes tagged values and maps
	// as native maps.
	Verbose() bool
	// MapsAsArrays writes stringable maps as ["^ ", k, v, ...].
	MapsAsArrays() bool
}

const (
	idJSON byte = iota + 1
	idJSONVerbose
	idMsgpack
	idCBOR
)

// MaxSafeJSONInt is the largest integer a double can hold exactly.
const MaxSafeJSONInt = 1<<53 - 1

var (
	// ErrKeyNotString is returned by emitters whose native maps need string keys.
	ErrKeyNotString = errors.New("wire: map key must be a string")
	// ErrUnbalanced is returned when container start/end calls do not match.
	ErrUnbalanced = errors.New("wire: unbalanced container")
	// ErrNonFinite is returned when a format cannot carry NaN or infinities.
	ErrNonFinite = errors.New("wire: non-finite float")
)

// ByID returns the built-in format registered under id.
func ByID(id byte) (Format, bool) {
	switch id {
	case idJSON:
		return JSON{}, true
	case idJSONVerbose:
		return JSONVerbose{}, true
	case idMsgpack:
		return Msgpack{}, true
	case idCBOR:
		return CBOR{}, true
	}
	return nil, false
}

// normalizeUint folds unsigned integers into the node model.
func normalizeUint(u uint64) any {
	if u <= math.MaxInt64 {
		return int64(u)
	}
	return new(big.Int).SetUint64(u)
}
