package transit

import (
	"errors"
	"maps"
	"sync"
	"unicode/utf8"

	"github.com/unkn0wn-root/transit/internal/rolling"
	"github.com/unkn0wn-root/transit/wire"
)

// Decoder turns parsed wire nodes into semantic values.
//
// A Decoder is safe for concurrent use. Registration takes effect for
// decode calls that start after it returns.
type Decoder struct {
	mu       sync.RWMutex
	fns      map[string]DecodeFunc // copy-on-write
	dflt     DefaultDecodeFunc
	strict   bool
	maxDepth int
	log      Logger
	hooks    Hooks
}

// NewDecoder returns a decoder configured from opts. Format, SharedCache and
// MaxBytes are ignored here; they belong to the reader.
func NewDecoder(opts ReaderOptions) *Decoder {
	d := &Decoder{
		fns:      defaultDecoders(),
		dflt:     opts.DefaultDecoder,
		strict:   opts.StrictTags,
		maxDepth: opts.MaxDepth,
		log:      opts.Logger,
		hooks:    opts.Hooks,
	}
	if d.dflt == nil {
		d.dflt = TaggedDefault
	}
	if d.log == nil {
		d.log = NopLogger{}
	}
	if d.hooks == nil {
		d.hooks = NopHooks{}
	}
	for tag, fn := range opts.Decoders {
		d.Register(tag, fn)
	}
	return d
}

// Register installs fn for tag. The ground tags "_", "?", "i" and "'" keep
// their built-in decoders. A nil fn removes a non-ground tag.
func (d *Decoder) Register(tag string, fn DecodeFunc) {
	if groundTags[tag] {
		d.log.Warn("transit.decoder_ground_tag", Fields{"tag": tag})
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	next := maps.Clone(d.fns)
	if fn == nil {
		delete(next, tag)
	} else {
		next[tag] = fn
	}
	d.fns = next
}

// Decode decodes one top-level node with a fresh rolling cache.
func (d *Decoder) Decode(node any) (any, error) {
	return d.decodeWith(node, rolling.New())
}

func (d *Decoder) decodeWith(node any, c *rolling.Cache) (any, error) {
	d.mu.RLock()
	s := &decodeState{d: d, fns: d.fns, cache: c}
	d.mu.RUnlock()
	return s.value(node, false, 0)
}

type decodeState struct {
	d     *Decoder
	fns   map[string]DecodeFunc
	cache *rolling.Cache
}

// value decodes a node in a position where a tag marker is not allowed.
func (s *decodeState) value(node any, asKey bool, depth int) (any, error) {
	v, err := s.decode(node, asKey, depth)
	if err != nil {
		return nil, err
	}
	if tm, ok := v.(tagMarker); ok {
		return nil, &DecodeError{Tag: string(tm), Kind: ErrShape, Reason: "tag marker outside tagged position"}
	}
	return v, nil
}

func (s *decodeState) decode(node any, asKey bool, depth int) (any, error) {
	if s.d.maxDepth > 0 && depth > s.d.maxDepth {
		return nil, &DecodeError{Kind: ErrDepth}
	}
	switch n := node.(type) {
	case string:
		return s.decodeString(n, asKey)
	case []any:
		return s.decodeArray(n, depth)
	case wire.Map:
		return s.decodeMap(n, depth)
	case []byte:
		if asKey {
			return nil, &DecodeError{Kind: ErrShape, Reason: "binary value used as map key"}
		}
		return n, nil
	case uint64:
		return canonUint(n), nil
	}
	return node, nil
}

func (s *decodeState) decodeString(str string, asKey bool) (any, error) {
	if s.cache != nil {
		var err error
		if str, err = s.cache.Decode(str, asKey); err != nil {
			return nil, &DecodeError{Kind: ErrCacheCode, Err: err}
		}
	}
	return s.parseString(str)
}

// parseString interprets escapes and "~x" scalars. Strings that do not start
// with the escape character are plain.
func (s *decodeState) parseString(str string) (any, error) {
	if len(str) < 2 || str[0] != Esc[0] {
		return str, nil
	}
	switch str[1] {
	case Esc[0], Sub[0], Reserved[0]:
		return str[1:], nil
	case '#':
		return tagMarker(str[2:]), nil
	}
	_, size := utf8.DecodeRuneInString(str[1:])
	return s.tagged(str[1:1+size], str[1+size:])
}

func (s *decodeState) tagged(tag string, rep any) (any, error) {
	if fn, ok := s.fns[tag]; ok {
		v, err := fn(rep)
		if err != nil {
			var de *DecodeError
			if errors.As(err, &de) {
				return nil, err
			}
			return nil, &DecodeError{Tag: tag, Kind: ErrLiteral, Err: err}
		}
		return v, nil
	}
	if s.d.strict {
		return nil, &DecodeError{Tag: tag, Kind: ErrUnknownTag}
	}
	s.d.hooks.UnknownTag(tag)
	s.d.log.Debug("transit.unknown_tag", Fields{"tag": tag})
	return s.d.dflt(tag, rep)
}

func (s *decodeState) decodeArray(a []any, depth int) (any, error) {
	if len(a) == 0 {
		return []any{}, nil
	}
	if first, ok := a[0].(string); ok && first == MapAsArray {
		return s.decodeMapAsArray(a[1:], depth)
	}

	first, err := s.decode(a[0], false, depth+1)
	if err != nil {
		return nil, err
	}
	if tm, ok := first.(tagMarker); ok {
		if len(a) != 2 {
			return nil, &DecodeError{Tag: string(tm), Kind: ErrShape, Reason: "tagged array must have 2 elements"}
		}
		rep, err := s.value(a[1], false, depth+1)
		if err != nil {
			return nil, err
		}
		return s.tagged(string(tm), rep)
	}

	out := make([]any, len(a))
	out[0] = first
	for i := 1; i < len(a); i++ {
		if out[i], err = s.value(a[i], false, depth+1); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *decodeState) decodeMapAsArray(kvs []any, depth int) (any, error) {
	if len(kvs)%2 != 0 {
		return nil, &DecodeError{Kind: ErrShape, Reason: "map-as-array has an odd number of elements"}
	}
	b := NewMapBuilder(len(kvs) / 2)
	for i := 0; i < len(kvs); i += 2 {
		k, err := s.value(kvs[i], true, depth+1)
		if err != nil {
			return nil, err
		}
		v, err := s.value(kvs[i+1], false, depth+1)
		if err != nil {
			return nil, err
		}
		b.Set(k, v)
	}
	return b.Map(), nil
}

// decodeMap handles native maps. A single entry keyed by a tag marker is the
// verbose tagged form.
func (s *decodeState) decodeMap(m wire.Map, depth int) (any, error) {
	b := NewMapBuilder(len(m))
	for i, e := range m {
		k, err := s.decode(e.Key, true, depth+1)
		if err != nil {
			return nil, err
		}
		if tm, ok := k.(tagMarker); ok {
			if len(m) != 1 || i != 0 {
				return nil, &DecodeError{Tag: string(tm), Kind: ErrShape, Reason: "tagged map must have 1 entry"}
			}
			rep, err := s.value(e.Value, false, depth+1)
			if err != nil {
				return nil, err
			}
			return s.tagged(string(tm), rep)
		}
		v, err := s.value(e.Value, false, depth+1)
		if err != nil {
			return nil, err
		}
		b.Set(k, v)
	}
	return b.Map(), nil
}
