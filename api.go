package transit

import (
	"bytes"
	"io"
)

// Marshal encodes v as a single top-level value.
func Marshal(v any, opts WriterOptions) ([]byte, error) {
	var buf bytes.Buffer
	if err := NewWriter(&buf, opts).Write(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes exactly one top-level value from b.
func Unmarshal(b []byte, opts ReaderOptions) (any, error) {
	if opts.MaxBytes > 0 && int64(len(b)) > opts.MaxBytes {
		return nil, &DecodeError{Kind: ErrTooLarge, Reason: "input exceeds MaxBytes"}
	}
	opts.MaxBytes = 0
	r := NewReader(bytes.NewReader(b), opts)
	v, err := r.Read()
	if err == io.EOF {
		return nil, &DecodeError{Kind: ErrSyntax, Reason: "empty input"}
	}
	if err != nil {
		return nil, err
	}
	if _, err := r.Read(); err != io.EOF {
		if err == nil {
			return nil, &DecodeError{Kind: ErrSyntax, Reason: "trailing data after value"}
		}
		return nil, err
	}
	return v, nil
}
