package wire

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"math/big"

	"github.com/fxamacker/cbor/v2"
)

// CBOR is the RFC 8949 substrate backed by fxamacker/cbor. Containers are
// written with indefinite length; maps are native.
type CBOR struct{}

var _ Format = CBOR{}

func (CBOR) Name() string                   { return "cbor" }
func (CBOR) ID() byte                       { return idCBOR }
func (CBOR) NewEmitter(w io.Writer) Emitter { return newCBOREmitter(w) }
func (CBOR) NewParser(r io.Reader) Parser   { return &cborParser{dec: cborDec.NewDecoder(r)} }
func (CBOR) IntRange() (int64, int64)       { return math.MinInt64, math.MaxInt64 }
func (CBOR) PrefersStrings() bool           { return false }
func (CBOR) Verbose() bool                  { return false }
func (CBOR) MapsAsArrays() bool             { return false }

var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	var err error
	cborEnc, err = cbor.EncOptions{IndefLength: cbor.IndefLengthAllowed}.EncMode()
	if err != nil {
		panic("wire: CBOR encoder initialization failed: " + err.Error())
	}
	cborDec, err = cbor.DecOptions{IndefLength: cbor.IndefLengthAllowed}.DecMode()
	if err != nil {
		panic("wire: CBOR decoder initialization failed: " + err.Error())
	}
}

type cborEmitter struct {
	w   *bufio.Writer
	enc *cbor.Encoder
}

func newCBOREmitter(w io.Writer) *cborEmitter {
	bw := bufio.NewWriter(w)
	return &cborEmitter{w: bw, enc: cborEnc.NewEncoder(bw)}
}

func (e *cborEmitter) EmitNil() error            { return e.enc.Encode(nil) }
func (e *cborEmitter) EmitBool(b bool) error     { return e.enc.Encode(b) }
func (e *cborEmitter) EmitInt(i int64) error     { return e.enc.Encode(i) }
func (e *cborEmitter) EmitFloat(f float64) error { return e.enc.Encode(f) }
func (e *cborEmitter) EmitString(s string) error { return e.enc.Encode(s) }
func (e *cborEmitter) ArrayStart(int) error      { return e.enc.StartIndefiniteArray() }
func (e *cborEmitter) ArrayEnd() error           { return e.enc.EndIndefinite() }
func (e *cborEmitter) MapStart(int) error        { return e.enc.StartIndefiniteMap() }
func (e *cborEmitter) MapEnd() error             { return e.enc.EndIndefinite() }
func (e *cborEmitter) Flush() error              { return e.w.Flush() }

// cborParser reads one complete data item per call and walks arrays and maps
// itself so map entry order survives; scalars go through cbor.Unmarshal.
type cborParser struct {
	dec *cbor.Decoder
}

func (p *cborParser) Next() (any, error) {
	var raw cbor.RawMessage
	if err := p.dec.Decode(&raw); err != nil {
		return nil, err
	}
	v, _, err := cborNode(raw)
	return v, err
}

const cborBreak = 0xff

func cborNode(b []byte) (any, int, error) {
	if len(b) == 0 {
		return nil, 0, io.ErrUnexpectedEOF
	}
	switch b[0] >> 5 {
	case 4:
		arr := make([]any, 0)
		w := cborEach(b, 1, func(item []byte) (int, error) {
			v, n, err := cborNode(item)
			if err == nil {
				arr = append(arr, v)
			}
			return n, err
		})
		if w.err != nil {
			return nil, 0, w.err
		}
		return arr, w.off, nil
	case 5:
		m := make(Map, 0)
		var key any
		haveKey := false
		w := cborEach(b, 2, func(item []byte) (int, error) {
			v, n, err := cborNode(item)
			if err != nil {
				return n, err
			}
			if haveKey {
				m = append(m, Entry{Key: key, Value: v})
			} else {
				key = v
			}
			haveKey = !haveKey
			return n, nil
		})
		if w.err != nil {
			return nil, 0, w.err
		}
		return m, w.off, nil
	}
	n, err := cborItemLen(b)
	if err != nil {
		return nil, 0, err
	}
	var v any
	if err := cborDec.Unmarshal(b[:n], &v); err != nil {
		return nil, 0, err
	}
	switch x := v.(type) {
	case uint64:
		return normalizeUint(x), n, nil
	case big.Int:
		return &x, n, nil
	}
	return v, n, nil
}

type cborWalk struct {
	off int
	err error
}

// cborEach calls fn for every child item of the array or map head at b[0].
// per is 1 for arrays and 2 for maps.
func cborEach(b []byte, per int, fn func(item []byte) (int, error)) cborWalk {
	if b[0]&0x1f == 31 {
		off := 1
		for {
			if off >= len(b) {
				return cborWalk{err: io.ErrUnexpectedEOF}
			}
			if b[off] == cborBreak {
				return cborWalk{off: off + 1}
			}
			n, err := fn(b[off:])
			if err != nil {
				return cborWalk{err: err}
			}
			off += n
		}
	}
	cnt, off, err := cborArg(b)
	if err != nil {
		return cborWalk{err: err}
	}
	if cnt > uint64(len(b)) {
		return cborWalk{err: io.ErrUnexpectedEOF}
	}
	for i := uint64(0); i < cnt*uint64(per); i++ {
		if off >= len(b) {
			return cborWalk{err: io.ErrUnexpectedEOF}
		}
		n, err := fn(b[off:])
		if err != nil {
			return cborWalk{err: err}
		}
		off += n
	}
	return cborWalk{off: off}
}

// cborArg decodes the argument of the head at b[0].
func cborArg(b []byte) (uint64, int, error) {
	info := b[0] & 0x1f
	var size int
	switch {
	case info < 24:
		return uint64(info), 1, nil
	case info == 24:
		size = 1
	case info == 25:
		size = 2
	case info == 26:
		size = 4
	case info == 27:
		size = 8
	default:
		return 0, 0, fmt.Errorf("wire: malformed cbor head 0x%02x", b[0])
	}
	if len(b) < 1+size {
		return 0, 0, io.ErrUnexpectedEOF
	}
	var v uint64
	for _, c := range b[1 : 1+size] {
		v = v<<8 | uint64(c)
	}
	return v, 1 + size, nil
}

// cborItemLen returns the encoded length of the data item starting at b[0].
func cborItemLen(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, io.ErrUnexpectedEOF
	}
	major, info := b[0]>>5, b[0]&0x1f
	switch major {
	case 0, 1:
		_, n, err := cborArg(b)
		return n, err
	case 2, 3:
		if info == 31 {
			w := cborEach(b, 1, cborItemLen)
			return w.off, w.err
		}
		l, n, err := cborArg(b)
		if err != nil {
			return 0, err
		}
		if l > uint64(len(b)-n) {
			return 0, io.ErrUnexpectedEOF
		}
		return n + int(l), nil
	case 4:
		w := cborEach(b, 1, cborItemLen)
		return w.off, w.err
	case 5:
		w := cborEach(b, 2, cborItemLen)
		return w.off, w.err
	case 6:
		_, n, err := cborArg(b)
		if err != nil {
			return 0, err
		}
		m, err := cborItemLen(b[n:])
		return n + m, err
	default: // 7: simple values and floats
		switch {
		case info < 24:
			return 1, nil
		case info == 24:
			return 2, nil
		case info == 25:
			return 3, nil
		case info == 26:
			return 5, nil
		case info == 27:
			return 9, nil
		}
		return 0, fmt.Errorf("wire: unexpected cbor break or reserved head 0x%02x", b[0])
	}
}
