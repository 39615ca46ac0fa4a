package transit

import (
	"fmt"
	"strings"
	"time"
)

// Wire syntax shared by every transit implementation.
const (
	Esc        = "~"
	Sub        = "^"
	Reserved   = "`"
	TagPrefix  = "~#"
	MapAsArray = "^ "
)

// Keyword is a transit keyword (":name" or ":ns/name" in Clojure notation).
// Two keywords are equal iff their text is equal.
type Keyword string

// Namespace returns the text before the first '/', or "" when there is none.
func (k Keyword) Namespace() string { return namespace(string(k)) }

// Name returns the text after the first '/', or the whole keyword.
func (k Keyword) Name() string { return name(string(k)) }

func (k Keyword) String() string { return string(k) }

// Symbol is a transit symbol. Equality is by text, like Keyword.
type Symbol string

func (s Symbol) Namespace() string { return namespace(string(s)) }
func (s Symbol) Name() string      { return name(string(s)) }
func (s Symbol) String() string    { return string(s) }

func namespace(s string) string {
	if i := strings.IndexByte(s, '/'); i > 0 && i < len(s)-1 {
		return s[:i]
	}
	return ""
}

func name(s string) string {
	if i := strings.IndexByte(s, '/'); i > 0 && i < len(s)-1 {
		return s[i+1:]
	}
	return s
}

// URI is an opaque URI payload. It is not parsed or normalized.
type URI string

func (u URI) String() string { return string(u) }

// List is an ordered sequence that is distinct from a plain vector ([]any)
// on the wire.
type List []any

// TaggedValue carries a tag and representation the reader has no decoder
// for. Writing it back reproduces the original tag and representation.
type TaggedValue struct {
	Tag string
	Rep any
}

func (tv TaggedValue) String() string { return fmt.Sprintf("#%s %v", tv.Tag, tv.Rep) }

// Link render kinds.
const (
	RenderLink  = "link"
	RenderImage = "image"
)

// Link is a hypermedia link. Href and Rel are required.
type Link struct {
	Href   URI
	Rel    string
	Name   string
	Render string
	Prompt string
}

// NewLink validates render and returns a Link.
func NewLink(href URI, rel, name, render, prompt string) (Link, error) {
	l := Link{Href: href, Rel: rel, Name: name, Render: render, Prompt: prompt}
	return l, l.validate()
}

func (l Link) validate() error {
	if l.Href == "" || l.Rel == "" {
		return fmt.Errorf("transit: link requires href and rel")
	}
	switch strings.ToLower(l.Render) {
	case "", RenderLink, RenderImage:
		return nil
	}
	return fmt.Errorf("transit: link render must be %q or %q, got %q", RenderLink, RenderImage, l.Render)
}

// asMap is the wire representation: string keys, optional fields omitted.
func (l Link) asMap() *Map {
	b := NewMapBuilder(5)
	b.Set("href", l.Href)
	b.Set("rel", l.Rel)
	if l.Name != "" {
		b.Set("name", l.Name)
	}
	if l.Render != "" {
		b.Set("render", l.Render)
	}
	if l.Prompt != "" {
		b.Set("prompt", l.Prompt)
	}
	return b.Map()
}

// Instant truncates t to millisecond precision in UTC, which is what survives
// a round trip.
func Instant(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// InstantMillis returns the UTC instant ms milliseconds after the epoch.
func InstantMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// tagMarker is the decoded form of a "~#tag" string. It only ever appears as
// the first element of a tagged array or the key of a single-entry map.
type tagMarker string
