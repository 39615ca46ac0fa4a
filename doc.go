// Package transit reads and writes values in the Transit data format over
// JSON, verbose JSON, MessagePack and CBOR.
//
// Transit layers a small set of semantic types (keywords, symbols, instants,
// UUIDs, URIs, big numbers, sets, lists, links, maps with composite keys) on
// top of a host encoding using tagged strings ("~:name") and tagged arrays
// (["~#set", [...]]). Repeated keywords, symbols and map keys are replaced by
// short cache codes ("^0", "^1", ...) so long streams stay compact.
//
// Components:
//   - Writer / Encoder: walk a Go value, pick a Handler from the Registry by
//     type (exact, pointer, interface, then kind) and emit Transit.
//   - Reader / Decoder: parse one value at a time and dispatch tags to
//     DecodeFuncs. Unknown tags become TaggedValue unless StrictTags is set.
//   - wire.Format: the host encoding (JSON, JSONVerbose, MsgPack, CBOR).
//   - store.Store: Transit documents kept in a byte Provider (Ristretto,
//     BigCache, Redis) with self-healing reads.
//
// Round trip:
//
//	b, _ := transit.Marshal(transit.Keyword("a/b"), transit.WriterOptions{})
//	// b == `["~#'","~:a/b"]`
//	v, _ := transit.Unmarshal(b, transit.ReaderOptions{})
//	// v == transit.Keyword("a/b")
package transit
