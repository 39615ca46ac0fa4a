package transit

import (
	"errors"
	"fmt"
)

// Decode causes. Match them with errors.Is on a *DecodeError.
var (
	ErrSyntax     = errors.New("malformed wire data")
	ErrUnknownTag = errors.New("no decoder for tag")
	ErrCacheCode  = errors.New("unresolvable cache code")
	ErrLiteral    = errors.New("invalid literal for tag")
	ErrShape      = errors.New("malformed container")
	ErrTooLarge   = errors.New("payload too large")
)

// ErrDepth is reported by both sides when MaxDepth is exceeded.
var ErrDepth = errors.New("nesting too deep")

// Encode causes. Match them with errors.Is on an *EncodeError.
var (
	ErrNoHandler     = errors.New("no handler for type")
	ErrNilTag        = errors.New("handler returned an empty tag")
	ErrNotStringable = errors.New("value cannot be written as a map key")
	ErrRep           = errors.New("representation does not match tag")
)

// DecodeError reports malformed or desynchronized input. It is never
// retriable: the same bytes fail the same way.
type DecodeError struct {
	Tag    string // tag being decoded, if any
	Reason string
	Kind   error // one of the Err* decode causes
	Err    error // underlying cause, if any
}

func (e *DecodeError) Error() string {
	msg := "transit: decode"
	if e.Tag != "" {
		msg += fmt.Sprintf(" tag %q", e.Tag)
	}
	if e.Kind != nil {
		msg += ": " + e.Kind.Error()
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// EncodeError reports a value the writer cannot represent. It indicates a
// caller bug (missing handler, bad key) rather than bad input.
type EncodeError struct {
	Type   string // Go type of the offending value
	Tag    string
	Reason string
	Kind   error // one of the Err* encode causes
	Err    error
}

func (e *EncodeError) Error() string {
	msg := "transit: encode"
	if e.Type != "" {
		msg += " " + e.Type
	}
	if e.Tag != "" {
		msg += fmt.Sprintf(" (tag %q)", e.Tag)
	}
	if e.Kind != nil {
		msg += ": " + e.Kind.Error()
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *EncodeError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func encodeErr(v any, tag string, kind error, reason string) *EncodeError {
	return &EncodeError{Type: fmt.Sprintf("%T", v), Tag: tag, Kind: kind, Reason: reason}
}

// IsDecodeError reports whether err is (or wraps) a *DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// IsEncodeError reports whether err is (or wraps) an *EncodeError.
func IsEncodeError(err error) bool {
	var ee *EncodeError
	return errors.As(err, &ee)
}
