package transit

import "github.com/unkn0wn-root/transit/wire"

// WriterOptions configures an Encoder or Writer. The zero value writes
// compact JSON with the built-in handlers.
type WriterOptions struct {
	Format   wire.Format // nil => DefaultFormat
	Registry *Registry   // nil => NewRegistry(); a Writer clones it

	// Integers outside [MinInt, MaxInt] are written as "~i" strings. A bound
	// left at zero takes the format's value (±(2^53-1) for JSON).
	MinInt int64
	MaxInt int64

	// SharedCache keeps one rolling cache across every value a Writer
	// writes. The reading side must set it too.
	SharedCache bool

	// MaxDepth bounds container nesting; 0 = unlimited.
	MaxDepth int

	Logger Logger
	Hooks  Hooks
}

// ReaderOptions configures a Decoder or Reader. The zero value reads compact
// JSON and wraps unknown tags as TaggedValue.
type ReaderOptions struct {
	Format wire.Format // nil => DefaultFormat

	// Decoders are installed over the built-in read handlers. Ground tags
	// ("_", "?", "i", "'") cannot be replaced.
	Decoders map[string]DecodeFunc

	// DefaultDecoder handles tags with no decoder. nil => TaggedDefault.
	DefaultDecoder DefaultDecodeFunc

	// StrictTags makes unknown tags a DecodeError instead.
	StrictTags bool

	SharedCache bool

	// MaxDepth bounds container nesting; 0 = unlimited.
	MaxDepth int

	// MaxBytes caps the input a Reader consumes; 0 = unlimited.
	MaxBytes int64

	Logger Logger
	Hooks  Hooks
}

func (o WriterOptions) withDefaults() WriterOptions {
	o.Format = coalesce(o.Format, DefaultFormat)
	o.Logger = coalesce[Logger](o.Logger, NopLogger{})
	o.Hooks = coalesce[Hooks](o.Hooks, NopHooks{})
	return o
}

func (o ReaderOptions) withDefaults() ReaderOptions {
	o.Format = coalesce(o.Format, DefaultFormat)
	o.Logger = coalesce[Logger](o.Logger, NopLogger{})
	o.Hooks = coalesce[Hooks](o.Hooks, NopHooks{})
	return o
}
