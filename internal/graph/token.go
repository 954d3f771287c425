package graph

import (
	"strconv"
	"sync"

	"github.com/google/uuid"
)

// TokenGenerator issues propagation tokens. Every SendFrontNotification,
// SendBackNotification, Notify and Broadcast call gets one; cycle tracking
// and quota accounting are scoped to it.
type TokenGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 tokens.
// It is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
// Panics if the random source fails.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined tokens in order, for tests and
// golden traces. Once exhausted it keeps returning the last token with a
// numeric suffix so long scenarios stay deterministic.
type FixedGenerator struct {
	mu     sync.Mutex
	tokens []string
	idx    int
}

// NewFixedGenerator creates a generator that returns tokens in order.
func NewFixedGenerator(tokens ...string) *FixedGenerator {
	if len(tokens) == 0 {
		tokens = []string{"token"}
	}
	return &FixedGenerator{tokens: tokens}
}

// Generate returns the next token.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	i := g.idx
	g.idx++
	if i < len(g.tokens) {
		return g.tokens[i]
	}
	return g.tokens[len(g.tokens)-1] + "-" + strconv.Itoa(i-len(g.tokens)+2)
}

