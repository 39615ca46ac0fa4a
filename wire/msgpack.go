package wire

import (
	"bufio"
	"io"
	"math"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

// Msgpack is the MessagePack substrate backed by vmihailenco/msgpack/v5.
// Maps are native, the full int64 range is written natively.
type Msgpack struct{}

var _ Format = Msgpack{}

func (Msgpack) Name() string                   { return "msgpack" }
func (Msgpack) ID() byte                       { return idMsgpack }
func (Msgpack) NewEmitter(w io.Writer) Emitter { return newMsgpackEmitter(w) }
func (Msgpack) NewParser(r io.Reader) Parser   { return &msgpackParser{dec: msgpack.NewDecoder(r)} }
func (Msgpack) IntRange() (int64, int64)       { return math.MinInt64, math.MaxInt64 }
func (Msgpack) PrefersStrings() bool           { return false }
func (Msgpack) Verbose() bool                  { return false }
func (Msgpack) MapsAsArrays() bool             { return false }

type msgpackEmitter struct {
	w   *bufio.Writer
	enc *msgpack.Encoder
}

func newMsgpackEmitter(w io.Writer) *msgpackEmitter {
	bw := bufio.NewWriter(w)
	return &msgpackEmitter{w: bw, enc: msgpack.NewEncoder(bw)}
}

func (e *msgpackEmitter) EmitNil() error            { return e.enc.EncodeNil() }
func (e *msgpackEmitter) EmitBool(b bool) error     { return e.enc.EncodeBool(b) }
func (e *msgpackEmitter) EmitInt(i int64) error     { return e.enc.EncodeInt(i) }
func (e *msgpackEmitter) EmitFloat(f float64) error { return e.enc.EncodeFloat64(f) }
func (e *msgpackEmitter) EmitString(s string) error { return e.enc.EncodeString(s) }
func (e *msgpackEmitter) ArrayStart(n int) error    { return e.enc.EncodeArrayLen(n) }
func (e *msgpackEmitter) ArrayEnd() error           { return nil }
func (e *msgpackEmitter) MapStart(n int) error      { return e.enc.EncodeMapLen(n) }
func (e *msgpackEmitter) MapEnd() error             { return nil }
func (e *msgpackEmitter) Flush() error              { return e.w.Flush() }

type msgpackParser struct {
	dec *msgpack.Decoder
}

func (p *msgpackParser) Next() (any, error) {
	if _, err := p.dec.PeekCode(); err != nil {
		return nil, err
	}
	return p.node()
}

func (p *msgpackParser) node() (any, error) {
	c, err := p.dec.PeekCode()
	if err == io.EOF {
		return nil, io.ErrUnexpectedEOF
	}
	if err != nil {
		return nil, err
	}
	switch {
	case msgpcode.IsFixedMap(c) || c == msgpcode.Map16 || c == msgpcode.Map32:
		n, err := p.dec.DecodeMapLen()
		if err != nil {
			return nil, err
		}
		m := make(Map, 0, min(n, 1024))
		for i := 0; i < n; i++ {
			k, err := p.node()
			if err != nil {
				return nil, err
			}
			v, err := p.node()
			if err != nil {
				return nil, err
			}
			m = append(m, Entry{Key: k, Value: v})
		}
		return m, nil
	case msgpcode.IsFixedArray(c) || c == msgpcode.Array16 || c == msgpcode.Array32:
		n, err := p.dec.DecodeArrayLen()
		if err != nil {
			return nil, err
		}
		arr := make([]any, 0, min(n, 1024))
		for i := 0; i < n; i++ {
			v, err := p.node()
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		return arr, nil
	}
	v, err := p.dec.DecodeInterfaceLoose()
	if err != nil {
		return nil, err
	}
	if u, ok := v.(uint64); ok {
		return normalizeUint(u), nil
	}
	return v, nil
}
