package order

import (
	"strconv"
	"sync"

	"github.com/google/uuid"
)

// IDGenerator produces order identifiers.
// Implemented by UUIDv7Generator (production) and SequentialIDs (tests).
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 order ids, so ids created
// offline still sort by creation time next to backend-issued ones.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a hyphenated UUIDv7.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// SequentialIDs returns prefix-1, prefix-2, ... for deterministic tests.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialIDs creates a generator; an empty prefix defaults to "order".
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "order"
	}
	return &SequentialIDs{prefix: prefix}
}

// Generate returns the next id in sequence.
func (g *SequentialIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return g.prefix + "-" + strconv.Itoa(g.n)
}
