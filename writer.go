package transit

import (
	"io"
	"reflect"

	"github.com/unkn0wn-root/transit/internal/rolling"
	"github.com/unkn0wn-root/transit/wire"
)

// Writer encodes a stream of top-level transit values.
//
// A Writer is not safe for concurrent use.
type Writer struct {
	em    wire.Emitter
	enc   *Encoder
	opts  WriterOptions
	cache *rolling.Cache // shared across values when opts.SharedCache
	err   error          // first failed Write; the stream is unusable after it
}

// NewWriter returns a Writer to w. The registry in opts is cloned, so
// RegisterHandler affects only this writer.
func NewWriter(w io.Writer, opts WriterOptions) *Writer {
	opts = opts.withDefaults()
	if opts.Registry != nil {
		opts.Registry = opts.Registry.Clone()
	}
	wr := &Writer{
		em:   opts.Format.NewEmitter(w),
		enc:  NewEncoder(opts),
		opts: opts,
	}
	if opts.SharedCache && !opts.Format.Verbose() {
		wr.cache = wr.newCache()
	}
	return wr
}

// RegisterHandler binds h to t for this writer.
func (w *Writer) RegisterHandler(t reflect.Type, h Handler) {
	w.enc.Registry().Register(t, h)
}

// Write encodes v and flushes it to the underlying writer. After a failed
// Write the output may hold a partial value, so every later Write returns the
// same error.
func (w *Writer) Write(v any) error {
	if w.err != nil {
		return w.err
	}
	c := w.cache
	if c == nil && !w.opts.Format.Verbose() {
		c = w.newCache()
	}
	if err := w.enc.encodeWith(w.em, v, c); err != nil {
		w.err = err
		return err
	}
	return nil
}

// Err returns the error that stopped the writer, if any.
func (w *Writer) Err() error { return w.err }

func (w *Writer) newCache() *rolling.Cache {
	c := rolling.New()
	c.OnReset = func(n int) {
		w.opts.Hooks.CacheReset("write", n)
		w.opts.Logger.Debug("transit.cache_reset", Fields{"side": "write", "entries": n})
	}
	return c
}
