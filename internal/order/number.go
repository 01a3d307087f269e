package order

import (
	"math/rand/v2"
	"regexp"
	"sync"
)

// NumberPrefix starts every human-facing order number.
const NumberPrefix = "9Y-"

// numberLetters excludes I and O, which read as 1 and 0 on a receipt.
const numberLetters = "ABCDEFGHJKLMNPQRSTUVWXYZ"

const numberDigits = "0123456789"

// NumberPattern matches every generated order number.
var NumberPattern = regexp.MustCompile(`^9Y-[A-Z]{2}[0-9]{2}$`)

// NumberGenerator produces short, speakable order numbers like "9Y-KT42".
//
// There is no uniqueness check: with 24*24*100 = 57,600 combinations a
// duplicate within one kiosk's day is rare but possible, which is why the
// order ID, not the number, is the primary key.
//
// Thread-safety: Next is safe for concurrent use.
type NumberGenerator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewNumberGenerator creates a generator seeded from the runtime's random source.
func NewNumberGenerator() *NumberGenerator {
	return &NumberGenerator{rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
}

// NewSeededNumberGenerator creates a generator with a fixed seed for tests.
func NewSeededNumberGenerator(seed uint64) *NumberGenerator {
	return &NumberGenerator{rng: rand.New(rand.NewPCG(seed, seed))}
}

// Next returns a fresh order number.
func (g *NumberGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	b := []byte(NumberPrefix)
	b = append(b,
		numberLetters[g.rng.IntN(len(numberLetters))],
		numberLetters[g.rng.IntN(len(numberLetters))],
		numberDigits[g.rng.IntN(len(numberDigits))],
		numberDigits[g.rng.IntN(len(numberDigits))],
	)
	return string(b)
}
