package testutil

import (
	"strconv"
	"sync"
)

// TokenSequence issues propagation tokens "<prefix>-1", "<prefix>-2", ...
// It satisfies graph.TokenGenerator. Every token is distinct, so cycle
// tracking and quotas stay scoped per propagation, and a scenario run
// twice from a Reset sequence yields byte-identical traces.
type TokenSequence struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewTokenSequence creates a sequence. An empty prefix becomes "t".
func NewTokenSequence(prefix string) *TokenSequence {
	if prefix == "" {
		prefix = "t"
	}
	return &TokenSequence{prefix: prefix}
}

// Generate returns the next token.
func (s *TokenSequence) Generate() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return s.prefix + "-" + strconv.Itoa(s.n)
}

// Issued returns how many tokens have been generated since the last Reset.
func (s *TokenSequence) Issued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}

// Reset restarts the sequence at 1.
func (s *TokenSequence) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n = 0
}
