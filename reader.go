package transit

import (
	"errors"
	"io"
	"iter"

	"github.com/unkn0wn-root/transit/internal/rolling"
	"github.com/unkn0wn-root/transit/wire"
)

// Reader decodes a stream of top-level transit values.
//
// A Reader is not safe for concurrent use.
type Reader struct {
	p     wire.Parser
	dec   *Decoder
	opts  ReaderOptions
	cache *rolling.Cache // shared across values when opts.SharedCache
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader, opts ReaderOptions) *Reader {
	opts = opts.withDefaults()
	if opts.MaxBytes > 0 {
		r = &capReader{r: r, left: opts.MaxBytes}
	}
	rd := &Reader{
		p:    opts.Format.NewParser(r),
		dec:  NewDecoder(opts),
		opts: opts,
	}
	if opts.SharedCache {
		rd.cache = rd.newCache()
	}
	return rd
}

// RegisterDecoder installs fn for tag on this reader's decoder.
func (r *Reader) RegisterDecoder(tag string, fn DecodeFunc) {
	r.dec.Register(tag, fn)
}

// Decoder returns the decoder backing r.
func (r *Reader) Decoder() *Decoder { return r.dec }

// Read decodes the next value. It returns io.EOF when the stream ends
// cleanly between values.
func (r *Reader) Read() (any, error) {
	node, err := r.p.Next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		if errors.Is(err, ErrTooLarge) {
			return nil, &DecodeError{Kind: ErrTooLarge, Reason: "input exceeds MaxBytes"}
		}
		return nil, &DecodeError{Kind: ErrSyntax, Reason: r.opts.Format.Name(), Err: err}
	}
	c := r.cache
	if c == nil {
		c = r.newCache()
	}
	return r.dec.decodeWith(node, c)
}

// All yields every remaining value. Iteration stops after the first error.
func (r *Reader) All() iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		for {
			v, err := r.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(v, err) || err != nil {
				return
			}
		}
	}
}

func (r *Reader) newCache() *rolling.Cache {
	c := rolling.New()
	c.OnReset = func(n int) {
		r.opts.Hooks.CacheReset("read", n)
		r.opts.Logger.Debug("transit.cache_reset", Fields{"side": "read", "entries": n})
	}
	return c
}

// capReader fails with ErrTooLarge instead of truncating like io.LimitReader.
type capReader struct {
	r    io.Reader
	left int64
}

func (c *capReader) Read(p []byte) (int, error) {
	if c.left <= 0 {
		if n, _ := c.r.Read(make([]byte, 1)); n > 0 {
			return 0, ErrTooLarge
		}
		return 0, io.EOF
	}
	if int64(len(p)) > c.left {
		p = p[:c.left]
	}
	n, err := c.r.Read(p)
	c.left -= int64(n)
	return n, err
}
