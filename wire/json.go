package wire

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/big"
	"strconv"
	"strings"
)

// JSON is the compact JSON substrate: rolling cache on, maps written as
// ["^ ", k, v, ...] arrays, integers beyond ±(2^53-1) written as strings.
type JSON struct{}

var _ Format = JSON{}

func (JSON) Name() string                   { return "json" }
func (JSON) ID() byte                       { return idJSON }
func (JSON) NewEmitter(w io.Writer) Emitter { return newJSONEmitter(w) }
func (JSON) NewParser(r io.Reader) Parser   { return newJSONParser(r) }
func (JSON) IntRange() (int64, int64)       { return -MaxSafeJSONInt, MaxSafeJSONInt }
func (JSON) PrefersStrings() bool           { return true }
func (JSON) Verbose() bool                  { return false }
func (JSON) MapsAsArrays() bool             { return true }

// JSONVerbose is the human-readable JSON substrate: no rolling cache, maps
// written as JSON objects and tagged values as {"~#tag": rep}.
type JSONVerbose struct{}

var _ Format = JSONVerbose{}

func (JSONVerbose) Name() string                   { return "json-verbose" }
func (JSONVerbose) ID() byte                       { return idJSONVerbose }
func (JSONVerbose) NewEmitter(w io.Writer) Emitter { return newJSONEmitter(w) }
func (JSONVerbose) NewParser(r io.Reader) Parser   { return newJSONParser(r) }
func (JSONVerbose) IntRange() (int64, int64)       { return -MaxSafeJSONInt, MaxSafeJSONInt }
func (JSONVerbose) PrefersStrings() bool           { return true }
func (JSONVerbose) Verbose() bool                  { return true }
func (JSONVerbose) MapsAsArrays() bool             { return false }

type jsonFrame struct {
	isMap bool
	n     int
}

type jsonEmitter struct {
	w     *bufio.Writer
	stack []jsonFrame
	top   int
	buf   []byte
}

func newJSONEmitter(w io.Writer) *jsonEmitter {
	return &jsonEmitter{w: bufio.NewWriter(w), buf: make([]byte, 0, 32)}
}

// before writes the separator owed before the next value.
// Consecutive top-level values are separated by a newline.
func (e *jsonEmitter) before(isString bool) error {
	if len(e.stack) == 0 {
		if e.top > 0 {
			e.w.WriteByte('\n')
		}
		e.top++
		return nil
	}
	f := &e.stack[len(e.stack)-1]
	switch {
	case f.isMap && f.n%2 == 0:
		if !isString {
			return ErrKeyNotString
		}
		if f.n > 0 {
			e.w.WriteByte(',')
		}
	case f.isMap:
		e.w.WriteByte(':')
	case f.n > 0:
		e.w.WriteByte(',')
	}
	f.n++
	return nil
}

func (e *jsonEmitter) EmitNil() error {
	if err := e.before(false); err != nil {
		return err
	}
	_, err := e.w.WriteString("null")
	return err
}

func (e *jsonEmitter) EmitBool(b bool) error {
	if err := e.before(false); err != nil {
		return err
	}
	_, err := e.w.WriteString(strconv.FormatBool(b))
	return err
}

func (e *jsonEmitter) EmitInt(i int64) error {
	if err := e.before(false); err != nil {
		return err
	}
	e.buf = strconv.AppendInt(e.buf[:0], i, 10)
	_, err := e.w.Write(e.buf)
	return err
}

func (e *jsonEmitter) EmitFloat(f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return ErrNonFinite
	}
	if err := e.before(false); err != nil {
		return err
	}
	e.buf = strconv.AppendFloat(e.buf[:0], f, 'g', -1, 64)
	// keep a fraction or exponent so the reader sees a float again
	if !strings.ContainsAny(string(e.buf), ".eE") {
		e.buf = append(e.buf, '.', '0')
	}
	_, err := e.w.Write(e.buf)
	return err
}

func (e *jsonEmitter) EmitString(s string) error {
	if err := e.before(true); err != nil {
		return err
	}
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	_, err = e.w.Write(b)
	return err
}

func (e *jsonEmitter) ArrayStart(int) error {
	if err := e.before(false); err != nil {
		return err
	}
	e.stack = append(e.stack, jsonFrame{})
	return e.w.WriteByte('[')
}

func (e *jsonEmitter) ArrayEnd() error {
	if len(e.stack) == 0 || e.stack[len(e.stack)-1].isMap {
		return ErrUnbalanced
	}
	e.stack = e.stack[:len(e.stack)-1]
	return e.w.WriteByte(']')
}

func (e *jsonEmitter) MapStart(int) error {
	if err := e.before(false); err != nil {
		return err
	}
	e.stack = append(e.stack, jsonFrame{isMap: true})
	return e.w.WriteByte('{')
}

func (e *jsonEmitter) MapEnd() error {
	if len(e.stack) == 0 {
		return ErrUnbalanced
	}
	f := e.stack[len(e.stack)-1]
	if !f.isMap || f.n%2 != 0 {
		return ErrUnbalanced
	}
	e.stack = e.stack[:len(e.stack)-1]
	return e.w.WriteByte('}')
}

func (e *jsonEmitter) Flush() error { return e.w.Flush() }

type jsonParser struct {
	dec *json.Decoder
}

func newJSONParser(r io.Reader) *jsonParser {
	d := json.NewDecoder(r)
	d.UseNumber()
	return &jsonParser{dec: d}
}

func (p *jsonParser) Next() (any, error) {
	tok, err := p.dec.Token()
	if err != nil {
		return nil, err
	}
	return p.value(tok)
}

func (p *jsonParser) token() (json.Token, error) {
	tok, err := p.dec.Token()
	if err == io.EOF {
		return nil, io.ErrUnexpectedEOF
	}
	return tok, err
}

func (p *jsonParser) value(tok json.Token) (any, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '[':
			arr := make([]any, 0)
			for p.dec.More() {
				tok, err := p.token()
				if err != nil {
					return nil, err
				}
				v, err := p.value(tok)
				if err != nil {
					return nil, err
				}
				arr = append(arr, v)
			}
			if _, err := p.token(); err != nil { // ']'
				return nil, err
			}
			return arr, nil
		case '{':
			m := make(Map, 0)
			for p.dec.More() {
				tok, err := p.token()
				if err != nil {
					return nil, err
				}
				k, ok := tok.(string)
				if !ok {
					return nil, fmt.Errorf("wire: json object key %v is not a string", tok)
				}
				tok, err = p.token()
				if err != nil {
					return nil, err
				}
				v, err := p.value(tok)
				if err != nil {
					return nil, err
				}
				m = append(m, Entry{Key: k, Value: v})
			}
			if _, err := p.token(); err != nil { // '}'
				return nil, err
			}
			return m, nil
		}
		return nil, fmt.Errorf("wire: unexpected json delimiter %q", rune(t))
	case json.Number:
		return jsonNumber(t)
	default:
		return t, nil
	}
}

func jsonNumber(n json.Number) (any, error) {
	s := string(n)
	if strings.ContainsAny(s, ".eE") {
		return strconv.ParseFloat(s, 64)
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	b, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("wire: invalid json number %q", s)
	}
	return b, nil
}
