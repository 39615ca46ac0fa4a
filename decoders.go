package transit

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/google/uuid"
)

// DecodeFunc turns the decoded representation of a tagged value into a
// semantic value. The representation is already fully decoded.
type DecodeFunc func(rep any) (any, error)

// DefaultDecodeFunc handles tags with no registered DecodeFunc.
type DefaultDecodeFunc func(tag string, rep any) (any, error)

// groundTags cannot be overridden: the codec itself depends on them.
var groundTags = map[string]bool{"_": true, "?": true, "i": true, "'": true}

// TaggedDefault is the default decoder for unknown tags.
func TaggedDefault(tag string, rep any) (any, error) {
	return TaggedValue{Tag: tag, Rep: rep}, nil
}

func defaultDecoders() map[string]DecodeFunc {
	return map[string]DecodeFunc{
		"_":    decodeNil,
		"?":    decodeBool,
		"i":    decodeInt,
		"d":    decodeFloat,
		"f":    decodeDecimal,
		"n":    decodeBigInt,
		":":    decodeText(func(s string) any { return Keyword(s) }),
		"$":    decodeText(func(s string) any { return Symbol(s) }),
		"r":    decodeText(func(s string) any { return URI(s) }),
		"c":    decodeText(func(s string) any { return s }),
		"u":    decodeUUID,
		"m":    decodeMillis,
		"t":    decodeISOTime,
		"z":    decodeSpecialFloat,
		"b":    decodeBinary,
		"'":    decodeQuote,
		"link": decodeLink,
		"list": decodeList,
		"set":  decodeSet,
		"cmap": decodeCmap,
	}
}

func repErr(want string, rep any) error {
	return fmt.Errorf("want %s, got %T", want, rep)
}

func decodeNil(any) (any, error) { return nil, nil }

func decodeQuote(rep any) (any, error) { return rep, nil }

func decodeBool(rep any) (any, error) {
	switch x := rep.(type) {
	case bool:
		return x, nil
	case string:
		switch x {
		case "t":
			return true, nil
		case "f":
			return false, nil
		}
		return nil, fmt.Errorf("bool literal %q", x)
	}
	return nil, repErr("string", rep)
}

// decodeInt widens to *big.Int when the text does not fit in int64.
func decodeInt(rep any) (any, error) {
	switch x := rep.(type) {
	case int64, *big.Int:
		return x, nil
	case string:
		if i, err := strconv.ParseInt(x, 10, 64); err == nil {
			return i, nil
		}
		n, ok := new(big.Int).SetString(x, 10)
		if !ok {
			return nil, fmt.Errorf("integer literal %q", x)
		}
		return n, nil
	}
	return nil, repErr("string", rep)
}

func decodeBigInt(rep any) (any, error) {
	switch x := rep.(type) {
	case *big.Int:
		return x, nil
	case int64:
		return big.NewInt(x), nil
	case string:
		n, ok := new(big.Int).SetString(x, 10)
		if !ok {
			return nil, fmt.Errorf("integer literal %q", x)
		}
		return n, nil
	}
	return nil, repErr("string", rep)
}

func decodeFloat(rep any) (any, error) {
	switch x := rep.(type) {
	case float64:
		return x, nil
	case int64:
		return float64(x), nil
	case string:
		return strconv.ParseFloat(x, 64)
	}
	return nil, repErr("string", rep)
}

func decodeSpecialFloat(rep any) (any, error) {
	s, ok := rep.(string)
	if !ok {
		return nil, repErr("string", rep)
	}
	switch s {
	case "NaN":
		return math.NaN(), nil
	case "INF":
		return math.Inf(1), nil
	case "-INF":
		return math.Inf(-1), nil
	}
	return nil, fmt.Errorf("special float %q", s)
}

func decodeDecimal(rep any) (any, error) {
	s, ok := rep.(string)
	if !ok {
		return nil, repErr("string", rep)
	}
	d, _, err := apd.NewFromString(s)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func decodeText(mk func(string) any) DecodeFunc {
	return func(rep any) (any, error) {
		s, ok := rep.(string)
		if !ok {
			return nil, repErr("string", rep)
		}
		return mk(s), nil
	}
}

// decodeUUID accepts the canonical text form or a pair of signed 64-bit
// halves (most significant first).
func decodeUUID(rep any) (any, error) {
	switch x := rep.(type) {
	case string:
		return uuid.Parse(x)
	case []any:
		if len(x) != 2 {
			return nil, fmt.Errorf("uuid halves: want 2, got %d", len(x))
		}
		hi, ok1 := x[0].(int64)
		lo, ok2 := x[1].(int64)
		if !ok1 || !ok2 {
			return nil, repErr("[int64 int64]", rep)
		}
		var u uuid.UUID
		binary.BigEndian.PutUint64(u[:8], uint64(hi))
		binary.BigEndian.PutUint64(u[8:], uint64(lo))
		return u, nil
	}
	return nil, repErr("string", rep)
}

func decodeMillis(rep any) (any, error) {
	switch x := rep.(type) {
	case int64:
		return InstantMillis(x), nil
	case string:
		ms, err := strconv.ParseInt(x, 10, 64)
		if err != nil {
			return nil, err
		}
		return InstantMillis(ms), nil
	}
	return nil, repErr("int64", rep)
}

func decodeISOTime(rep any) (any, error) {
	s, ok := rep.(string)
	if !ok {
		return nil, repErr("string", rep)
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, err
	}
	return Instant(t), nil
}

func decodeBinary(rep any) (any, error) {
	switch x := rep.(type) {
	case []byte:
		return x, nil
	case string:
		return base64.StdEncoding.DecodeString(x)
	}
	return nil, repErr("string", rep)
}

func decodeList(rep any) (any, error) {
	xs, ok := rep.([]any)
	if !ok {
		return nil, repErr("array", rep)
	}
	return List(xs), nil
}

func decodeSet(rep any) (any, error) {
	xs, ok := rep.([]any)
	if !ok {
		return nil, repErr("array", rep)
	}
	return NewSet(xs...), nil
}

func decodeCmap(rep any) (any, error) {
	xs, ok := rep.([]any)
	if !ok {
		return nil, repErr("array", rep)
	}
	if len(xs)%2 != 0 {
		return nil, fmt.Errorf("cmap needs an even number of elements, got %d", len(xs))
	}
	b := NewMapBuilder(len(xs) / 2)
	for i := 0; i < len(xs); i += 2 {
		b.Set(xs[i], xs[i+1])
	}
	return b.Map(), nil
}

// decodeLink accepts string or keyword field names.
func decodeLink(rep any) (any, error) {
	m, ok := rep.(*Map)
	if !ok {
		return nil, repErr("map", rep)
	}
	field := func(name string) (string, error) {
		v, ok := m.Get(name)
		if !ok {
			v, ok = m.Get(Keyword(name))
		}
		if !ok || v == nil {
			return "", nil
		}
		switch s := v.(type) {
		case string:
			return s, nil
		case URI:
			return string(s), nil
		case Keyword:
			return string(s), nil
		}
		return "", fmt.Errorf("link %s: %w", name, repErr("string", v))
	}
	var f [5]string
	for i, name := range []string{"href", "rel", "name", "render", "prompt"} {
		s, err := field(name)
		if err != nil {
			return nil, err
		}
		f[i] = s
	}
	return NewLink(URI(f[0]), f[1], f[2], f[3], f[4])
}
