package transit

import "github.com/unkn0wn-root/transit/wire"

// DefaultFormat is used when options leave Format nil.
var DefaultFormat wire.Format = wire.JSON{}

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

// intRange resolves the native integer range. Each bound left at zero takes
// the format's value.
func intRange(f wire.Format, min, max int64) (int64, int64) {
	fmin, fmax := f.IntRange()
	return coalesce(min, fmin), coalesce(max, fmax)
}
