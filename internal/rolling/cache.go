// Package rolling implements the string-interning cache shared by one transit
// writer pass and the matching reader pass.
//
// The writer sends the first occurrence of a cacheable string in full and
// assigns it the next sequential code; later occurrences are replaced by the
// code. The reader binds codes in the same traversal order, so both sides
// always hold identical tables.
//
// Codes:
//
//	^<d>      - entries 0..43
//	^<d><d>   - entries 44..1935
//
// where <d> is a character from '0' (0x30) to '[' (0x5b).
package rolling

import (
	"errors"
	"fmt"
)

const (
	// Prefix starts every cache code.
	Prefix = '^'
	// MapAsArray is the map-as-array sentinel; it is never a cache code.
	MapAsArray = "^ "

	// MinCacheable is the shortest string worth caching.
	MinCacheable = 4
	// Digits is the size of the code alphabet.
	Digits = 44
	// Capacity is the number of entries before the cache rolls over.
	Capacity = Digits * Digits

	baseChar = '0'
)

// ErrBadCode is returned when a string that looks like a cache code cannot be
// resolved against the current table.
var ErrBadCode = errors.New("rolling: unresolvable cache code")

// IsCacheCode reports whether s has cache-code syntax.
func IsCacheCode(s string) bool {
	return len(s) > 0 && s[0] == Prefix && s != MapAsArray
}

// IsCacheable reports whether s may be assigned a code. Map keys of at least
// MinCacheable bytes are cacheable, as are keyword, symbol and tag strings.
func IsCacheable(s string, asMapKey bool) bool {
	if len(s) < MinCacheable {
		return false
	}
	if asMapKey {
		return true
	}
	return s[0] == '~' && (s[1] == '#' || s[1] == ':' || s[1] == '$')
}

// Code returns the cache code for entry index i.
func Code(i int) string {
	hi, lo := i/Digits, i%Digits
	if hi == 0 {
		return string([]byte{Prefix, byte(baseChar + lo)})
	}
	return string([]byte{Prefix, byte(baseChar + hi), byte(baseChar + lo)})
}

// Index parses a cache code back to its entry index.
func Index(code string) (int, error) {
	digit := func(c byte) (int, error) {
		d := int(c) - baseChar
		if d < 0 || d >= Digits {
			return 0, fmt.Errorf("%w: %q", ErrBadCode, code)
		}
		return d, nil
	}
	switch len(code) {
	case 2:
		return digit(code[1])
	case 3:
		hi, err := digit(code[1])
		if err != nil {
			return 0, err
		}
		if hi == 0 {
			return 0, fmt.Errorf("%w: %q", ErrBadCode, code)
		}
		lo, err := digit(code[2])
		if err != nil {
			return 0, err
		}
		return hi*Digits + lo, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrBadCode, code)
	}
}

// Cache is a RollingCache. The zero value is ready to use.
// A Cache is not safe for concurrent use; each exchange owns one.
type Cache struct {
	codes  map[string]string // code -> string
	values map[string]string // string -> code
	next   int

	// OnReset, if set, is called with the number of entries dropped whenever
	// the cache reaches Capacity and restarts numbering.
	OnReset func(entries int)
}

// New returns an empty cache.
func New() *Cache {
	c := &Cache{}
	c.Clear()
	return c
}

// Clear drops all bindings and restarts numbering at zero.
func (c *Cache) Clear() {
	c.codes = make(map[string]string)
	c.values = make(map[string]string)
	c.next = 0
}

// Len returns the number of bound entries.
func (c *Cache) Len() int { return c.next }

// Encode is the writer side. A name bound earlier is replaced by its code in
// any position; otherwise name is returned as is and, when cacheable, bound.
func (c *Cache) Encode(name string, asMapKey bool) string {
	if c.values == nil {
		c.Clear()
	}
	if code, ok := c.values[name]; ok {
		return code
	}
	if IsCacheable(name, asMapKey) {
		c.bind(name)
	}
	return name
}

// Decode is the reader side. Cache codes are resolved to their bound string;
// any other cacheable string is bound to the next code and returned as is.
func (c *Cache) Decode(name string, asMapKey bool) (string, error) {
	if c.values == nil {
		c.Clear()
	}
	if IsCacheCode(name) {
		if _, err := Index(name); err != nil {
			return "", err
		}
		s, ok := c.codes[name]
		if !ok {
			return "", fmt.Errorf("%w: %q not bound", ErrBadCode, name)
		}
		return s, nil
	}
	if IsCacheable(name, asMapKey) {
		if _, seen := c.values[name]; !seen {
			c.bind(name)
		}
	}
	return name, nil
}

func (c *Cache) bind(name string) {
	if c.next >= Capacity {
		dropped := c.next
		c.Clear()
		if c.OnReset != nil {
			c.OnReset(dropped)
		}
	}
	code := Code(c.next)
	c.codes[code] = name
	c.values[name] = code
	c.next++
}
