package transit

import (
	"strconv"

	"github.com/unkn0wn-root/transit/internal/rolling"
	"github.com/unkn0wn-root/transit/wire"
)

// Encoder walks semantic values and drives a wire.Emitter.
//
// An Encoder is safe for concurrent use as long as each call has its own
// emitter. Handler registration goes through its Registry.
type Encoder struct {
	reg      *Registry
	format   wire.Format
	minInt   int64
	maxInt   int64
	maxDepth int
	log      Logger
}

// NewEncoder returns an encoder configured from opts. A nil Registry gets
// the built-in handlers.
func NewEncoder(opts WriterOptions) *Encoder {
	f := opts.Format
	if f == nil {
		f = DefaultFormat
	}
	e := &Encoder{
		reg:      opts.Registry,
		format:   f,
		maxDepth: opts.MaxDepth,
		log:      opts.Logger,
	}
	if e.reg == nil {
		e.reg = NewRegistry()
	}
	if e.log == nil {
		e.log = NopLogger{}
	}
	e.minInt, e.maxInt = intRange(f, opts.MinInt, opts.MaxInt)
	return e
}

// Registry returns the registry the encoder dispatches through.
func (e *Encoder) Registry() *Registry { return e.reg }

// Encode writes v as one top-level value with a fresh rolling cache.
func (e *Encoder) Encode(em wire.Emitter, v any) error {
	var c *rolling.Cache
	if !e.format.Verbose() {
		c = rolling.New()
	}
	return e.encodeWith(em, v, c)
}

func (e *Encoder) encodeWith(em wire.Emitter, v any, c *rolling.Cache) error {
	s := &encodeState{e: e, em: em, cache: c, verbose: e.format.Verbose()}
	if err := s.top(v); err != nil {
		return err
	}
	return em.Flush()
}

type encodeState struct {
	e       *Encoder
	em      wire.Emitter
	cache   *rolling.Cache
	verbose bool
}

// top wraps single-character tagged values in a quote so every top-level
// value is a container.
func (s *encodeState) top(v any) error {
	h, v, err := s.handler(v)
	if err != nil {
		return err
	}
	if tag := h.Tag(v); len(tag) == 1 {
		return s.emitTagged("'", v, 0)
	}
	return s.marshal(v, false, 0)
}

func (s *encodeState) handler(v any) (Handler, any, error) {
	h, v, ok := s.e.reg.resolve(v)
	if !ok {
		return nil, v, encodeErr(v, "", ErrNoHandler, "")
	}
	if s.verbose {
		if vh, ok := h.(VerboseHandler); ok {
			h = vh.Verbose()
		}
	}
	return h, v, nil
}

func (s *encodeState) marshal(v any, asKey bool, depth int) error {
	if s.e.maxDepth > 0 && depth > s.e.maxDepth {
		return encodeErr(v, "", ErrDepth, "")
	}
	h, v, err := s.handler(v)
	if err != nil {
		return err
	}
	tag := h.Tag(v)
	if tag == "" {
		return encodeErr(v, "", ErrNilTag, "")
	}
	if vh, ok := h.(Validator); ok {
		if err := vh.Validate(v); err != nil {
			ee := encodeErr(v, tag, ErrRep, "invalid value")
			ee.Err = err
			return ee
		}
	}
	if _, ok := v.(TaggedValue); ok {
		return s.emitExtension(h, v, tag, asKey, depth)
	}

	switch tag {
	case "_":
		if asKey {
			return s.emitString(Esc+"_", true)
		}
		return s.em.EmitNil()
	case "s":
		str, ok := h.Rep(v).(string)
		if !ok {
			return encodeErr(v, tag, ErrRep, "want string")
		}
		return s.emitString(escape(str), asKey)
	case "?":
		b, ok := h.Rep(v).(bool)
		if !ok {
			return encodeErr(v, tag, ErrRep, "want bool")
		}
		if asKey {
			sr, _ := h.StringRep(v)
			return s.emitString(Esc+"?"+sr, true)
		}
		return s.em.EmitBool(b)
	case "i":
		i, ok := h.Rep(v).(int64)
		if !ok {
			return encodeErr(v, tag, ErrRep, "want int64")
		}
		if asKey || i < s.e.minInt || i > s.e.maxInt {
			return s.emitString(Esc+"i"+strconv.FormatInt(i, 10), asKey)
		}
		return s.em.EmitInt(i)
	case "d":
		f, ok := h.Rep(v).(float64)
		if !ok {
			return encodeErr(v, tag, ErrRep, "want float64")
		}
		if asKey {
			sr, _ := h.StringRep(v)
			return s.emitString(Esc+"d"+sr, true)
		}
		return s.em.EmitFloat(f)
	case "'":
		return s.emitTagged(tag, h.Rep(v), depth)
	case "array":
		xs, ok := h.Rep(v).([]any)
		if !ok {
			return encodeErr(v, tag, ErrRep, "want []any")
		}
		return s.emitArray(xs, depth)
	case "map":
		es, ok := h.Rep(v).([]Entry)
		if !ok {
			return encodeErr(v, tag, ErrRep, "want []Entry")
		}
		return s.emitMap(es, depth)
	}
	return s.emitExtension(h, v, tag, asKey, depth)
}

// emitExtension writes a value whose tag is not one of the natively handled
// kinds.
func (s *encodeState) emitExtension(h Handler, v any, tag string, asKey bool, depth int) error {
	if len(tag) != 1 {
		if asKey {
			return encodeErr(v, tag, ErrNotStringable, "multi-character tag")
		}
		return s.emitTagged(tag, h.Rep(v), depth)
	}

	rep := h.Rep(v)
	if str, ok := rep.(string); ok {
		return s.emitString(Esc+tag+str, asKey)
	}
	if asKey || s.e.format.PrefersStrings() {
		if sr, ok := h.StringRep(v); ok {
			return s.emitString(Esc+tag+sr, asKey)
		}
		if asKey {
			return encodeErr(v, tag, ErrNotStringable, "")
		}
	}
	return s.emitTagged(tag, rep, depth)
}

func (s *encodeState) emitTagged(tag string, rep any, depth int) error {
	if s.verbose {
		if err := s.em.MapStart(1); err != nil {
			return err
		}
		if err := s.emitString(TagPrefix+tag, true); err != nil {
			return err
		}
		if err := s.marshal(rep, false, depth+1); err != nil {
			return err
		}
		return s.em.MapEnd()
	}
	if err := s.em.ArrayStart(2); err != nil {
		return err
	}
	if err := s.emitString(TagPrefix+tag, false); err != nil {
		return err
	}
	if err := s.marshal(rep, false, depth+1); err != nil {
		return err
	}
	return s.em.ArrayEnd()
}

func (s *encodeState) emitArray(xs []any, depth int) error {
	if err := s.em.ArrayStart(len(xs)); err != nil {
		return err
	}
	for _, x := range xs {
		if err := s.marshal(x, false, depth+1); err != nil {
			return err
		}
	}
	return s.em.ArrayEnd()
}

// emitMap writes stringable maps natively (or as ["^ ", ...] when the format
// asks for it) and everything else as a cmap.
func (s *encodeState) emitMap(es []Entry, depth int) error {
	stringable, err := s.stringableKeys(es)
	if err != nil {
		return err
	}
	if !stringable {
		flat := make([]any, 0, 2*len(es))
		for _, e := range es {
			flat = append(flat, e.Key, e.Value)
		}
		return s.emitTagged("cmap", flat, depth)
	}

	if s.e.format.MapsAsArrays() && !s.verbose {
		if err := s.em.ArrayStart(2*len(es) + 1); err != nil {
			return err
		}
		if err := s.em.EmitString(MapAsArray); err != nil {
			return err
		}
		if err := s.entries(es, depth); err != nil {
			return err
		}
		return s.em.ArrayEnd()
	}

	if err := s.em.MapStart(len(es)); err != nil {
		return err
	}
	if err := s.entries(es, depth); err != nil {
		return err
	}
	return s.em.MapEnd()
}

func (s *encodeState) entries(es []Entry, depth int) error {
	for _, e := range es {
		if err := s.marshal(e.Key, true, depth+1); err != nil {
			return err
		}
		if err := s.marshal(e.Value, false, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// stringableKeys reports whether every key has a single-character tag.
func (s *encodeState) stringableKeys(es []Entry) (bool, error) {
	for _, e := range es {
		h, k, err := s.handler(e.Key)
		if err != nil {
			return false, err
		}
		if len(h.Tag(k)) != 1 {
			return false, nil
		}
	}
	return true, nil
}

func (s *encodeState) emitString(str string, asKey bool) error {
	if s.cache != nil {
		str = s.cache.Encode(str, asKey)
	}
	return s.em.EmitString(str)
}

// escape prefixes strings that would otherwise read as syntax.
func escape(s string) string {
	if s == "" {
		return s
	}
	switch s[0] {
	case Esc[0], Sub[0], Reserved[0]:
		return Esc + s
	}
	return s
}
