// Package overlay holds the local patches that override orders the
// authoritative backend has not accepted.
//
// The Store is the only owner of the durable overlay map. The reconciler
// reads through Get and Snapshot, the write pipeline writes through Merge and
// Clear, and the broadcast subscriber adopts other contexts' maps through
// ReplaceAll.
//
// Mutations are applied under a write lock, so no reader observes a
// half-applied merge. Persisting and publishing happen after the lock is
// released but are serialized among themselves, so the durable document and
// the broadcast stream always move forward in the same order as the
// in-memory map.
package overlay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/roach88/kiosksync/internal/metrics"
	"github.com/roach88/kiosksync/internal/order"
)

// DefaultKey is the document key the overlay map is stored under.
const DefaultKey = "kiosk.order_overlay"

// ErrNotLoaded is returned by mutations issued before LoadAll.
var ErrNotLoaded = errors.New("overlay: LoadAll has not run")

// Durable is the document storage the map is persisted to.
// Implemented by store.Store.
type Durable interface {
	ReadDocument(ctx context.Context, key string) ([]byte, bool, error)
	WriteDocument(ctx context.Context, key string, value []byte) error
}

// Publisher receives the full map after every local mutation.
// Implemented by the broadcast channels.
type Publisher interface {
	Publish(set order.PatchSet)
}

// Store is the overlay map with write-through persistence.
type Store struct {
	mu      sync.RWMutex
	entries order.PatchSet
	loaded  bool

	// writeMu orders persist+publish between concurrent mutations.
	writeMu sync.Mutex

	durable   Durable
	key       string
	publisher Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// Option configures a Store.
type Option func(*Store)

// WithPublisher broadcasts every local mutation.
func WithPublisher(p Publisher) Option {
	return func(s *Store) { s.publisher = p }
}

// WithLogger sets the logger used for storage warnings.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithMetrics records overlay size and storage failures.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithKey overrides the document key.
func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

// New creates a Store backed by durable. A nil durable keeps the map in
// memory only.
func New(durable Durable, opts ...Option) *Store {
	s := &Store{
		entries: make(order.PatchSet),
		durable: durable,
		key:     DefaultKey,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetPublisher installs the publisher after construction. The composition
// root needs this because the broadcast channel subscribes back into the
// store.
func (s *Store) SetPublisher(p Publisher) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.publisher = p
}

// LoadAll restores the map from durable storage. It must run before any
// Merge or Clear. A missing document yields an empty map; an unreadable one
// is an error, since serving without the overlay would resurrect stale
// remote statuses.
func (s *Store) LoadAll(ctx context.Context) error {
	loaded := make(order.PatchSet)
	if s.durable != nil {
		data, ok, err := s.durable.ReadDocument(ctx, s.key)
		if err != nil {
			return fmt.Errorf("overlay load: %w", err)
		}
		if ok && len(data) > 0 {
			if err := json.Unmarshal(data, &loaded); err != nil {
				return fmt.Errorf("overlay load: decode: %w", err)
			}
		}
	}

	s.mu.Lock()
	s.entries = loaded
	s.loaded = true
	n := len(s.entries)
	s.mu.Unlock()

	s.metrics.SetOverlayEntries(n)
	s.logger.Debug("overlay loaded", "entries", n)
	return nil
}

// Loaded reports whether LoadAll has completed.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Get returns the patch for orderID.
func (s *Store) Get(orderID string) (order.Patch, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.entries[orderID]
	return p, ok
}

// Len returns the number of overlay entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Snapshot returns a copy of the whole map.
func (s *Store) Snapshot() order.PatchSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries.Clone()
}

// Merge shallow-merges patch onto the entry for orderID (new fields win),
// persists the map and publishes it. Returns the merged entry.
//
// A storage failure is logged and absorbed: the session keeps the merged
// entry in memory and other contexts still receive the broadcast.
func (s *Store) Merge(ctx context.Context, orderID string, patch order.Patch) (order.Patch, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return order.Patch{}, ErrNotLoaded
	}
	merged := s.entries[orderID].Merge(patch)
	s.entries[orderID] = merged
	snapshot := s.entries.Clone()
	s.mu.Unlock()

	s.persistAndPublish(ctx, snapshot)
	return merged, nil
}

// Clear removes the entry for orderID. Returns whether an entry existed.
// Clearing an absent entry changes nothing and is neither persisted nor
// published.
func (s *Store) Clear(ctx context.Context, orderID string) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return false, ErrNotLoaded
	}
	if _, ok := s.entries[orderID]; !ok {
		s.mu.Unlock()
		return false, nil
	}
	delete(s.entries, orderID)
	snapshot := s.entries.Clone()
	s.mu.Unlock()

	s.persistAndPublish(ctx, snapshot)
	return true, nil
}

// ReplaceAll adopts a map received from another context. It neither
// persists (the sender already did) nor publishes (that would echo forever).
func (s *Store) ReplaceAll(set order.PatchSet) {
	s.mu.Lock()
	s.entries = set.Clone()
	s.loaded = true
	n := len(s.entries)
	s.mu.Unlock()

	s.metrics.SetOverlayEntries(n)
}

func (s *Store) persistAndPublish(ctx context.Context, snapshot order.PatchSet) {
	s.metrics.SetOverlayEntries(len(snapshot))

	if s.durable != nil {
		if err := s.persist(ctx, snapshot); err != nil {
			s.metrics.StorageFailure()
			s.logger.Warn("overlay not persisted; continuing memory-only",
				"key", s.key,
				"entries", len(snapshot),
				"error", err,
			)
		}
	}

	if s.publisher != nil {
		s.publisher.Publish(snapshot)
	}
}

func (s *Store) persist(ctx context.Context, snapshot order.PatchSet) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return s.durable.WriteDocument(ctx, s.key, data)
}
