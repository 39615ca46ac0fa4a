// Package sloghooks reports transit hook events through log/slog.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/transit"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	CacheResetEvery uint64
	UnknownTagEvery uint64
	DropEvery       uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	resetCtr   atomic.Uint64
	unknownCtr atomic.Uint64
	dropCtr    atomic.Uint64
}

var _ transit.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) CacheReset(side string, entries int) {
	if h.l == nil || !sample(h.opts.CacheResetEvery, &h.resetCtr) {
		return
	}
	h.l.Debug("transit.cache_reset",
		"side", side,
		"entries", entries)
}

func (h *Hooks) UnknownTag(tag string) {
	if h.l == nil || !sample(h.opts.UnknownTagEvery, &h.unknownCtr) {
		return
	}
	h.l.Info("transit.unknown_tag", "tag", tag)
}

func (h *Hooks) EntryDropped(key, reason string) {
	if h.l == nil || !sample(h.opts.DropEvery, &h.dropCtr) {
		return
	}
	h.l.Warn("transit.entry_dropped",
		"key", h.redact(key),
		"reason", reason)
}
