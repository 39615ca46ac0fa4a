package transit

// Hooks are lightweight callbacks for protocol-level events.
// Implementations MUST be cheap and non-blocking; they run inside the
// decode/encode walk.
type Hooks interface {
	// The rolling cache reached capacity and restarted numbering.
	// side ∈ {"read", "write"}
	CacheReset(side string, entries int)

	// A tag with no registered decoder was wrapped as a TaggedValue.
	UnknownTag(tag string)

	// The store deleted an entry it could not use.
	// reason ∈ {"corrupt", "format", "decode"}
	EntryDropped(key, reason string)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) CacheReset(string, int)      {}
func (NopHooks) UnknownTag(string)           {}
func (NopHooks) EntryDropped(string, string) {}
