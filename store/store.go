// Package store keeps transit documents in a byte Provider.
//
// Each document is transit-encoded, wrapped in a frame that records the wire
// format, and stored under "doc:<ns>:<key>". Entries that fail frame
// validation, name an unknown format, or no longer decode are deleted on read
// and reported as misses.
//
// Batches are stored as a single entry under "batch:<ns>:<hash of keys>"
// holding a stream of [key, value] pairs written with one shared rolling
// cache.
package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/unkn0wn-root/transit"
	"github.com/unkn0wn-root/transit/internal/frame"
	"github.com/unkn0wn-root/transit/internal/util"
	"github.com/unkn0wn-root/transit/provider"
	"github.com/unkn0wn-root/transit/wire"
)

// SetCostFunc computes the provider cost of a framed entry. n is the number
// of documents in the entry (1 for single puts).
type SetCostFunc func(key string, raw []byte, batch bool, n int) int64

type Options struct {
	Namespace string            // required
	Provider  provider.Provider // required

	// Format is used for writes; reads follow the frame. nil => compact JSON.
	Format wire.Format

	DefaultTTL time.Duration // default 10m
	BatchTTL   time.Duration // default 10m

	// Reader and Writer carry codec settings (handlers, decoders, limits).
	// Their Format fields are ignored.
	Reader transit.ReaderOptions
	Writer transit.WriterOptions

	ComputeSetCost SetCostFunc // nil => 1 per entry
	Logger         transit.Logger
	Hooks          transit.Hooks
}

type Store struct {
	ns       string
	provider provider.Provider
	format   wire.Format
	ttl      time.Duration
	batchTTL time.Duration
	ropts    transit.ReaderOptions
	wopts    transit.WriterOptions
	cost     SetCostFunc
	log      transit.Logger
	hooks    transit.Hooks
}

func New(opts Options) (*Store, error) {
	if opts.Provider == nil {
		return nil, errors.New("store: provider is required")
	}
	if opts.Namespace == "" {
		return nil, errors.New("store: namespace is required")
	}

	s := &Store{
		ns:       opts.Namespace,
		provider: opts.Provider,
		ropts:    opts.Reader,
		wopts:    opts.Writer,
		cost:     opts.ComputeSetCost,
	}
	// defaults
	s.format = coalesce(opts.Format, transit.DefaultFormat)
	s.ttl = coalesce(opts.DefaultTTL, 10*time.Minute)
	s.batchTTL = coalesce(opts.BatchTTL, 10*time.Minute)
	s.log = coalesce[transit.Logger](opts.Logger, transit.NopLogger{})
	s.hooks = coalesce[transit.Hooks](opts.Hooks, transit.NopHooks{})
	if s.cost == nil {
		s.cost = func(string, []byte, bool, int) int64 { return 1 }
	}

	s.wopts.Format = s.format
	s.wopts.Logger = coalesce(s.wopts.Logger, s.log)
	s.wopts.Hooks = coalesce(s.wopts.Hooks, s.hooks)
	s.ropts.Logger = coalesce(s.ropts.Logger, s.log)
	s.ropts.Hooks = coalesce(s.ropts.Hooks, s.hooks)
	return s, nil
}

func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

func (s *Store) Close(ctx context.Context) error {
	return s.provider.Close(ctx)
}

// Get returns the document stored under key. Unreadable entries are deleted
// and reported as a miss.
func (s *Store) Get(ctx context.Context, key string) (any, bool, error) {
	k := s.docKey(key)
	raw, ok, err := s.provider.Get(ctx, k)
	if err != nil || !ok {
		return nil, false, err
	}
	id, payload, err := frame.DecodeOne(raw)
	if err != nil {
		s.drop(ctx, k, "corrupt", err)
		return nil, false, nil
	}
	f, ok := wire.ByID(id)
	if !ok {
		s.drop(ctx, k, "format", fmt.Errorf("unknown format id %d", id))
		return nil, false, nil
	}
	ro := s.ropts
	ro.Format = f
	v, err := transit.Unmarshal(payload, ro)
	if err != nil {
		s.drop(ctx, k, "decode", err)
		return nil, false, nil
	}
	return v, true, nil
}

// Put stores v under key. ttl <= 0 uses the default TTL. Encoding errors are
// returned; a provider rejecting the write under pressure is not an error.
func (s *Store) Put(ctx context.Context, key string, v any, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.ttl
	}
	payload, err := transit.Marshal(v, s.wopts)
	if err != nil {
		return err
	}
	k := s.docKey(key)
	raw := frame.EncodeOne(s.format.ID(), payload)
	ok, err := s.provider.Set(ctx, k, raw, s.cost(k, raw, false, 1), ttl)
	if err != nil {
		return err
	}
	if !ok {
		s.log.Debug("store.put_rejected", transit.Fields{"key": key})
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.provider.Del(ctx, s.docKey(key))
}

// PutBatch stores items as one batch entry and seeds the single entries.
func (s *Store) PutBatch(ctx context.Context, items map[string]any, ttl time.Duration) error {
	if len(items) == 0 {
		return nil
	}
	if ttl <= 0 {
		ttl = s.batchTTL
	}
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	wo := s.wopts
	wo.SharedCache = true
	w := transit.NewWriter(&buf, wo)
	for _, k := range keys {
		if err := w.Write([]any{k, items[k]}); err != nil {
			return err
		}
	}

	bk := s.batchKey(keys)
	raw := frame.EncodeBatch(s.format.ID(), len(keys), buf.Bytes())
	ok, err := s.provider.Set(ctx, bk, raw, s.cost(bk, raw, true, len(keys)), ttl)
	if err != nil {
		return err
	}
	if !ok {
		s.log.Debug("store.batch_rejected", transit.Fields{"batchKey": bk, "n": len(keys)})
	}

	// also seed singles best-effort
	for _, k := range keys {
		if err := s.Put(ctx, k, items[k], s.ttl); err != nil {
			return err
		}
	}
	return nil
}

// GetBatch returns the documents for keys and the keys it could not find.
// A stored batch for exactly this key set is used when present; otherwise
// each key is read individually.
func (s *Store) GetBatch(ctx context.Context, keys []string) (map[string]any, []string, error) {
	out := make(map[string]any, len(keys))
	if len(keys) == 0 {
		return out, nil, nil
	}

	sorted := make([]string, len(keys))
	copy(sorted, keys)
	sort.Strings(sorted)
	bk := s.batchKey(sorted)

	raw, ok, err := s.provider.Get(ctx, bk)
	if err != nil {
		return nil, nil, err
	}
	if ok {
		byKey, err := s.decodeBatch(raw, sorted)
		if err == nil {
			var missing []string
			for _, k := range keys {
				if v, ok := byKey[k]; ok {
					out[k] = v
				} else {
					missing = append(missing, k)
				}
			}
			return out, missing, nil
		}
		s.drop(ctx, bk, "decode", err)
	}

	var missing []string
	for _, k := range keys {
		v, ok, err := s.Get(ctx, k)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			out[k] = v
		} else {
			missing = append(missing, k)
		}
	}
	return out, missing, nil
}

var errBatchMismatch = errors.New("store: batch does not match requested keys")

func (s *Store) decodeBatch(raw []byte, sorted []string) (map[string]any, error) {
	id, n, payload, err := frame.DecodeBatch(raw)
	if err != nil {
		return nil, err
	}
	f, ok := wire.ByID(id)
	if !ok {
		return nil, fmt.Errorf("unknown format id %d", id)
	}
	if n != len(sorted) {
		return nil, errBatchMismatch
	}

	ro := s.ropts
	ro.Format = f
	ro.SharedCache = true
	r := transit.NewReader(bytes.NewReader(payload), ro)
	out := make(map[string]any, n)
	for i := 0; i < n; i++ {
		item, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, errBatchMismatch
			}
			return nil, err
		}
		pair, ok := item.([]any)
		if !ok || len(pair) != 2 {
			return nil, errBatchMismatch
		}
		k, ok := pair[0].(string)
		if !ok || k != sorted[i] {
			return nil, errBatchMismatch
		}
		out[k] = pair[1]
	}
	if _, err := r.Read(); !errors.Is(err, io.EOF) {
		return nil, errBatchMismatch
	}
	return out, nil
}

func (s *Store) drop(ctx context.Context, storageKey, reason string, cause error) {
	_ = s.provider.Del(ctx, storageKey) // self-heal
	s.hooks.EntryDropped(storageKey, reason)
	s.log.Warn("store.entry_dropped", transit.Fields{"key": storageKey, "reason": reason, "err": cause})
}

func (s *Store) docKey(userKey string) string {
	// isolate by namespace
	return "doc:" + s.ns + ":" + userKey
}

func (s *Store) batchKey(sortedKeys []string) string {
	return util.BatchKeySorted("batch:"+s.ns, sortedKeys)
}
